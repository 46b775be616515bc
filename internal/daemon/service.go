package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/1broseidon/viewhost/internal/config"
	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/platform"
)

var _ ipc.Service = (*Daemon)(nil)

// Status implements ipc.Service.
func (d *Daemon) Status(ctx context.Context) (*ipc.StatusData, error) {
	var out *ipc.StatusData
	if err := d.loop.Sync(ctx, func() { out = d.status() }); err != nil {
		return nil, err
	}
	return out, nil
}

// Dump implements ipc.Service.
func (d *Daemon) Dump(ctx context.Context) (*ipc.DumpData, error) {
	var out *ipc.DumpData
	if err := d.loop.Sync(ctx, func() { out = d.dump() }); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyConfig swaps the settings that can change without a restart. The
// compositor, display, queue size and reconcile interval only take effect on
// the next start.
func (d *Daemon) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	return d.do(ctx, func() error {
		if cfg.Compositor != d.cfg.Compositor || cfg.Display != d.cfg.Display || cfg.BackKey != d.cfg.BackKey {
			d.logger.Warn("compositor settings changed, restart the daemon to apply",
				"compositor", cfg.Compositor,
				"display", cfg.Display,
				"back_key", cfg.BackKey)
		}
		if cfg.ExecutorQueueSize != d.cfg.ExecutorQueueSize || cfg.ReconcileIntervalSeconds != d.cfg.ReconcileIntervalSeconds {
			d.logger.Warn("executor settings changed, restart the daemon to apply",
				"executor_queue_size", cfg.ExecutorQueueSize,
				"reconcile_interval_seconds", cfg.ReconcileIntervalSeconds)
		}
		if err := d.registerCategories(cfg); err != nil {
			return err
		}
		d.tr.Reconciler().SetSyncHiddenOnReorder(cfg.SyncHiddenOnReorder)
		d.conv.SetAnimator(d.animator(cfg))
		d.cfg = cfg
		return nil
	})
}

func (d *Daemon) parseBounds(s string) (platform.Rect, error) {
	if strings.TrimSpace(s) == "" {
		return platform.Rect{}, nil
	}
	return platform.ParseRect(s)
}

// CreateView implements ipc.Service.
func (d *Daemon) CreateView(ctx context.Context, p ipc.ViewCreatePayload) error {
	bounds, err := d.parseBounds(p.Bounds)
	if err != nil {
		return err
	}
	return d.do(ctx, func() error {
		if _, exists := d.views[p.Name]; exists {
			return fmt.Errorf("view %q: %w", p.Name, ErrViewExists)
		}
		if bounds.Empty() {
			bounds = d.comp.Screen()
		}
		host := NewHostedView(p.Name, bounds, d.comp, d.logger)
		if err := host.Realize(); err != nil {
			return err
		}
		view := d.tr.NewView(p.Name, host, host)
		d.views[p.Name] = &hostedEntry{host: host, view: view}
		d.order = append(d.order, p.Name)
		d.conv.SurfaceCreated(view)
		d.logger.Info("view created", "view", p.Name, "bounds", bounds.String())
		return nil
	})
}

// RemoveView implements ipc.Service. The container is destroyed once the
// view's task has vanished.
func (d *Daemon) RemoveView(ctx context.Context, name string) error {
	return d.do(ctx, func() error {
		e, err := d.lookup(name)
		if err != nil {
			return err
		}
		d.conv.Cancel(e.view)
		if err := d.tr.CloseTaskView(e.view); err != nil {
			return err
		}
		if e.view.Released() {
			d.dropView(name, e)
			return nil
		}
		e.host.onRemoval = func() {
			d.loop.Post(func() {
				if e.view.Released() {
					d.dropView(name, e)
				}
			})
		}
		return nil
	})
}

func (d *Daemon) dropView(name string, e *hostedEntry) {
	e.host.Destroy()
	if cur, ok := d.views[name]; ok && cur == e {
		d.forget(name)
	}
	d.logger.Info("view removed", "view", name)
}

func wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Launch implements ipc.Service.
func (d *Daemon) Launch(ctx context.Context, p ipc.ViewLaunchPayload) (*ipc.LaunchData, error) {
	req := platform.LaunchRequest{Token: p.Token, Command: strings.Fields(p.Command)}
	done := make(chan error, 1)
	var token string
	err := d.do(ctx, func() error {
		e, err := d.lookup(p.Name)
		if err != nil {
			return err
		}
		if !p.Animate {
			token, err = d.tr.StartTaskView(e.view, req)
			if err != nil {
				return err
			}
			e.host.lastLaunched = token
			return nil
		}
		enter, err := d.conv.Launch(e.view, req, func(err error) { done <- err })
		if err != nil {
			return err
		}
		token = enter.LaunchToken()
		e.host.lastLaunched = token
		if p.Expand {
			return d.conv.SetReadyToExpand(e.view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := &ipc.LaunchData{Token: token}
	if p.Animate && p.Wait {
		if err := wait(ctx, done); err != nil {
			return nil, err
		}
		out.Done = true
	}
	return out, nil
}

// Convert implements ipc.Service.
func (d *Daemon) Convert(ctx context.Context, p ipc.ViewConvertPayload) error {
	done := make(chan error, 1)
	err := d.do(ctx, func() error {
		e, err := d.lookup(p.Name)
		if err != nil {
			return err
		}
		_, err = d.conv.Convert(e.view, platform.WindowID(p.WindowID), func(err error) { done <- err })
		return err
	})
	if err != nil || !p.Wait {
		return err
	}
	return wait(ctx, done)
}

// Exit implements ipc.Service.
func (d *Daemon) Exit(ctx context.Context, p ipc.ViewExitPayload) error {
	bounds, err := d.parseBounds(p.Bounds)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	err = d.do(ctx, func() error {
		e, err := d.lookup(p.Name)
		if err != nil {
			return err
		}
		_, err = d.conv.Exit(e.view, bounds, func(err error) { done <- err })
		return err
	})
	if err != nil || !p.Wait {
		return err
	}
	return wait(ctx, done)
}

// SetBounds implements ipc.Service.
func (d *Daemon) SetBounds(ctx context.Context, p ipc.ViewBoundsPayload) error {
	bounds, err := platform.ParseRect(p.Bounds)
	if err != nil {
		return err
	}
	return d.do(ctx, func() error {
		e, err := d.lookup(p.Name)
		if err != nil {
			return err
		}
		e.host.Move(bounds)
		return d.tr.SetBounds(e.view, bounds)
	})
}

// SetVisible implements ipc.Service.
func (d *Daemon) SetVisible(ctx context.Context, p ipc.ViewVisiblePayload) error {
	return d.do(ctx, func() error {
		e, err := d.lookup(p.Name)
		if err != nil {
			return err
		}
		return d.tr.SetVisible(e.view, p.Visible, p.Reorder)
	})
}

// Expand implements ipc.Service.
func (d *Daemon) Expand(ctx context.Context, name string) error {
	return d.do(ctx, func() error {
		e, err := d.lookup(name)
		if err != nil {
			return err
		}
		return d.conv.SetReadyToExpand(e.view)
	})
}

// Cancel implements ipc.Service.
func (d *Daemon) Cancel(ctx context.Context, name string) error {
	return d.do(ctx, func() error {
		e, err := d.lookup(name)
		if err != nil {
			return err
		}
		d.conv.Cancel(e.view)
		return nil
	})
}

// SimWindow implements ipc.Service by driving the simulated compositor.
func (d *Daemon) SimWindow(ctx context.Context, p ipc.SimWindowPayload) (*ipc.SimWindowData, error) {
	if d.sim == nil {
		return nil, ErrNotSimulated
	}
	id := platform.WindowID(p.WindowID)
	out := &ipc.SimWindowData{WindowID: p.WindowID}

	switch p.Action {
	case ipc.SimAdd:
		info, err := simWindowInfo(p)
		if err != nil {
			return nil, err
		}
		added := d.sim.AddWindow(info)
		out.WindowID = uint32(added.ID)
	case ipc.SimUpdate:
		cur := d.sim.Window(id)
		if cur == nil {
			return nil, fmt.Errorf("window %d: %w", id, platform.ErrUnknownSurface)
		}
		if err := applySimUpdate(cur, p); err != nil {
			return nil, err
		}
		if err := d.sim.UpdateWindow(*cur); err != nil {
			return nil, err
		}
	case ipc.SimRemove:
		d.sim.RemoveWindow(id)
	case ipc.SimBack:
		d.sim.PressBackOnRoot(id)
	case ipc.SimFront:
		// Requests go through the dispatcher on the loop like any other
		// compositor-initiated transition.
		if err := d.loop.Sync(ctx, func() {
			d.sim.RequestTransition(platform.TransitToFront, id, d.disp)
		}); err != nil {
			return nil, err
		}
	case ipc.SimFailLaunch:
		if p.Token == "" {
			return nil, fmt.Errorf("token is required")
		}
		d.sim.FailLaunch(p.Token)
	default:
		return nil, fmt.Errorf("unknown sim action %q", p.Action)
	}
	return out, nil
}

func simWindowInfo(p ipc.SimWindowPayload) (platform.WindowInfo, error) {
	info := platform.WindowInfo{
		ID:          platform.WindowID(p.WindowID),
		ParentID:    platform.WindowID(p.ParentID),
		Title:       p.Title,
		Visible:     !p.Hidden,
		Mode:        platform.ModeFullscreen,
		LaunchToken: p.Token,
		Locus:       p.Locus,
		IsHome:      p.Home,
	}
	if p.Mode != "" {
		mode, err := platform.ParseWindowingMode(p.Mode)
		if err != nil {
			return info, err
		}
		info.Mode = mode
	}
	if p.Bounds != "" {
		bounds, err := platform.ParseRect(p.Bounds)
		if err != nil {
			return info, err
		}
		info.Bounds = bounds
	}
	return info, nil
}

func applySimUpdate(info *platform.WindowInfo, p ipc.SimWindowPayload) error {
	if p.Mode != "" {
		mode, err := platform.ParseWindowingMode(p.Mode)
		if err != nil {
			return err
		}
		info.Mode = mode
	}
	if p.Bounds != "" {
		bounds, err := platform.ParseRect(p.Bounds)
		if err != nil {
			return err
		}
		info.Bounds = bounds
	}
	if p.Title != "" {
		info.Title = p.Title
	}
	if p.Locus != "" {
		info.Locus = p.Locus
	}
	if p.ParentID != 0 {
		info.ParentID = platform.WindowID(p.ParentID)
	}
	info.Visible = !p.Hidden
	return nil
}
