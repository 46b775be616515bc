// Package daemon wires the registry, the transition queue and the conversion
// coordinator to a compositor and exposes them to IPC clients. Every state
// change runs on a single executor loop.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/viewhost/internal/config"
	"github.com/1broseidon/viewhost/internal/conversion"
	"github.com/1broseidon/viewhost/internal/executor"
	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
	"github.com/1broseidon/viewhost/internal/runtimepath"
	"github.com/1broseidon/viewhost/internal/taskview"
	"github.com/1broseidon/viewhost/internal/transitions"
)

var (
	// ErrNoSuchView is returned for operations on a view name never created.
	ErrNoSuchView = errors.New("no such view")
	// ErrViewExists is returned when creating a view under a taken name.
	ErrViewExists = errors.New("view already exists")
	// ErrNotSimulated is returned by SIM_WINDOW against a real compositor.
	ErrNotSimulated = errors.New("compositor is not simulated")
)

// Options configures New.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Compositor overrides the one selected by Config. A SimCompositor
	// without a dispatch func stays in manual delivery mode.
	Compositor platform.Compositor
}

// Daemon owns every long-lived component.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	start  time.Time

	loop       *executor.Loop
	comp       platform.Compositor
	sim        *platform.SimCompositor
	reg        *registry.Registry
	tr         *taskview.Transitions
	disp       *transitions.Dispatcher
	conv       *conversion.Coordinator
	fullscreen *FullscreenListener
	sync       *StateSynchronizer
	reconciler *Reconciler
	overlay    *platform.Leash

	views map[string]*hostedEntry
	order []string
}

type hostedEntry struct {
	host *HostedView
	view *taskview.Controller
}

// eventSource is a compositor that needs its own event loop.
type eventSource interface {
	Run(ctx context.Context) error
}

// requestRouter is a compositor that initiates transitions on its own.
type requestRouter interface {
	SetRequestHandler(h platform.TransitionHandler)
}

// New builds a daemon from opts. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		start:  time.Now(),
		loop:   executor.NewLoop(cfg.ExecutorQueueSize, logger),
		views:  make(map[string]*hostedEntry),
	}

	comp, err := d.buildCompositor(opts.Compositor)
	if err != nil {
		return nil, err
	}
	d.comp = comp

	d.reg = registry.New(comp, logger)
	comp.SetObserver(d.reg)
	d.tr = taskview.NewTransitions(comp, d.reg, taskview.Options{
		SyncHiddenOnReorder: cfg.SyncHiddenOnReorder,
	}, logger)
	d.disp = transitions.NewDispatcher(comp, logger)
	d.disp.AddHandler(d.tr)
	if router, ok := comp.(requestRouter); ok {
		router.SetRequestHandler(d.disp)
	}

	d.conv = conversion.NewCoordinator(conversion.Config{
		Transitions: d.tr,
		Dispatcher:  d.disp,
		Animator:    d.animator(cfg),
		Display:     comp.Screen(),
		Logger:      logger,
	})

	d.fullscreen = NewFullscreenListener(comp, logger)
	if err := d.registerCategories(cfg); err != nil {
		return nil, err
	}

	d.reg.AddFocusListener(func(info *platform.WindowInfo) {
		logger.Debug("focus changed", "window_id", info.ID, "title", info.Title)
	})
	d.reg.AddLocusVisibilityListener(func(id platform.WindowID, locus string, visible bool) {
		logger.Debug("locus visibility changed", "window_id", id, "locus", locus, "visible", visible)
	})

	if cfg.HomeOverlay {
		leash, err := comp.CreateContainer("home-overlay", comp.Screen())
		if err != nil {
			return nil, fmt.Errorf("create home overlay: %w", err)
		}
		d.overlay = leash
		d.reg.SetHomeOverlay(leash)
	}

	d.sync = NewStateSynchronizer(d.reg, logger)
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: time.Duration(cfg.ReconcileIntervalSeconds) * time.Second,
		Executor: d.loop,
		Logger:   logger,
	}, d.sync, d.reg, func() ([]*platform.WindowInfo, error) {
		return d.comp.Windows(), nil
	})

	return d, nil
}

func (d *Daemon) buildCompositor(override platform.Compositor) (platform.Compositor, error) {
	if override != nil {
		if sim, ok := override.(*platform.SimCompositor); ok {
			d.sim = sim
		}
		return override, nil
	}

	switch d.cfg.Compositor {
	case config.CompositorX11:
		x, err := platform.NewX11Compositor(platform.X11Config{
			Display:       d.cfg.Display,
			BackKey:       d.cfg.BackKey,
			LaunchTimeout: time.Duration(d.cfg.LaunchTimeoutMs) * time.Millisecond,
			Dispatch:      d.loop.Post,
			Logger:        d.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to X11: %w", err)
		}
		return x, nil
	default:
		screen, err := d.cfg.Screen()
		if err != nil {
			return nil, err
		}
		sim := platform.NewSimCompositor(screen)
		sim.SetDispatch(d.loop.Post)
		d.sim = sim
		return sim, nil
	}
}

func (d *Daemon) animator(cfg *config.Config) conversion.Animator {
	if !cfg.Animation.Enabled || cfg.Animation.DurationMs <= 0 {
		return conversion.ImmediateAnimator{}
	}
	return &conversion.TimedAnimator{
		Exec:     d.loop,
		Applier:  d.comp,
		Duration: time.Duration(cfg.Animation.DurationMs) * time.Millisecond,
		Logger:   d.logger,
	}
}

func (d *Daemon) registerCategories(cfg *config.Config) error {
	modes, err := cfg.Categories()
	if err != nil {
		return err
	}
	d.reg.Unregister(d.fullscreen)
	if len(modes) == 0 {
		return nil
	}
	if err := d.reg.RegisterForCategories(d.fullscreen, modes...); err != nil {
		return fmt.Errorf("register fullscreen categories: %w", err)
	}
	return nil
}

// Run drives the loop, the reconciler and the compositor's event source
// until ctx is cancelled. Blocks.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		d.loop.Run(ctx)
	}()

	// Run an immediate reconciliation pass so that windows lost while no
	// daemon was running are dropped before the first request.
	d.loop.Post(d.reconciler.ReconcileNow)
	if d.cfg.ReconcileIntervalSeconds > 0 {
		go d.reconciler.Run(ctx)
	}

	errCh := make(chan error, 1)
	if src, ok := d.comp.(eventSource); ok {
		go func() { errCh <- src.Run(ctx) }()
	}

	d.logger.Info("viewhost daemon started", "compositor", d.comp.Name(), "screen", d.comp.Screen().String())

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			d.logger.Error("compositor event loop failed", "error", err)
		}
		cancel()
	}
	<-loopDone
	if closer, ok := d.comp.(interface{ Close() }); ok {
		closer.Close()
	}
	d.logger.Info("viewhost daemon stopped")
	return err
}

// Do runs fn on the serialization context and waits for it.
func (d *Daemon) Do(ctx context.Context, fn func()) error {
	return d.loop.Sync(ctx, fn)
}

// Sim returns the simulated compositor, or nil.
func (d *Daemon) Sim() *platform.SimCompositor { return d.sim }

// do is Do for operations that fail.
func (d *Daemon) do(ctx context.Context, fn func() error) error {
	var opErr error
	if err := d.loop.Sync(ctx, func() { opErr = fn() }); err != nil {
		return err
	}
	return opErr
}

func (d *Daemon) lookup(name string) (*hostedEntry, error) {
	e, ok := d.views[name]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", name, ErrNoSuchView)
	}
	return e, nil
}

func (d *Daemon) forget(name string) {
	delete(d.views, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Daemon) status() *ipc.StatusData {
	return &ipc.StatusData{
		DaemonRunning: true,
		Compositor:    d.comp.Name(),
		UptimeSeconds: int64(time.Since(d.start).Seconds()),
		Windows:       len(d.reg.Snapshot()),
		Views:         len(d.views),
		QueueLength:   d.tr.Len(),
		Conversions:   d.conv.Len(),
	}
}

func (d *Daemon) dump() *ipc.DumpData {
	out := &ipc.DumpData{
		Status:      *d.status(),
		Windows:     []ipc.WindowData{},
		Views:       []ipc.ViewData{},
		Queue:       []ipc.QueueEntry{},
		Conversions: []ipc.ConversionData{},
	}
	if f := d.reg.LastFocused(); f != nil {
		out.Focused = uint32(f.ID)
	}
	for _, snap := range d.reg.Snapshot() {
		info := snap.Info
		out.Windows = append(out.Windows, ipc.WindowData{
			ID:       uint32(info.ID),
			ParentID: uint32(info.ParentID),
			Title:    info.Title,
			Mode:     info.Mode.String(),
			Bounds:   info.Bounds.String(),
			Visible:  info.Visible,
			Focused:  info.Focused,
			Owner:    d.ownerName(snap.Owner),
			Source:   snap.Source.String(),
		})
	}
	repo := d.tr.Repository()
	for _, name := range d.order {
		e := d.views[name]
		st, _ := repo.Get(e.view)
		out.Views = append(out.Views, e.host.data(e.view, st))
	}
	for _, p := range d.tr.Pending() {
		out.Queue = append(out.Queue, ipc.QueueEntry{
			View:        p.View,
			Kind:        p.Kind,
			State:       p.State,
			Claim:       p.Claim,
			LaunchToken: p.LaunchToken,
			External:    p.External,
		})
	}
	for _, c := range d.conv.Snapshot() {
		out.Conversions = append(out.Conversions, ipc.ConversionData(c))
	}
	return out
}

func (d *Daemon) ownerName(l registry.Listener) string {
	switch owner := l.(type) {
	case nil:
		return ""
	case *taskview.Controller:
		return "view:" + owner.Name()
	case *FullscreenListener:
		return "fullscreen"
	default:
		return fmt.Sprintf("%T", l)
	}
}

// SaveState writes the current dump to the runtime directory.
func (d *Daemon) SaveState(ctx context.Context) error {
	var dump *ipc.DumpData
	if err := d.loop.Sync(ctx, func() { dump = d.dump() }); err != nil {
		return err
	}
	path, err := runtimepath.StatePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create runtime dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	d.logger.Debug("state saved", "path", path)
	return nil
}
