package daemon

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/1broseidon/viewhost/internal/executor"
	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
)

// WindowLister is a function that returns the windows the compositor reports.
type WindowLister func() ([]*platform.WindowInfo, error)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	// Executor runs each pass on the serialization context. Nil runs passes
	// on the ticker goroutine, which is only safe in tests.
	Executor executor.Executor
	Logger   *slog.Logger
}

// Reconciler periodically checks for drift between the registry and the
// compositor and corrects it.
type Reconciler struct {
	interval    time.Duration
	exec        executor.Executor
	sync        *StateSynchronizer
	reg         *registry.Registry
	listWindows WindowLister
	logger      *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, sync *StateSynchronizer, reg *registry.Registry, listWindows WindowLister) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{
		interval:    interval,
		exec:        cfg.Executor,
		sync:        sync,
		reg:         reg,
		listWindows: listWindows,
		logger:      logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if r.exec != nil {
				r.exec.Post(r.reconcile)
			} else {
				r.reconcile()
			}
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	known := r.reg.Snapshot()
	if len(known) == 0 {
		return
	}

	actualWindows, err := r.listWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return
	}

	actual := make(map[platform.WindowID]*platform.WindowInfo, len(actualWindows))
	for _, w := range actualWindows {
		actual[w.ID] = w
	}

	// Vanished first so that re-resolved children never point at a dead parent.
	var orphaned []platform.WindowID
	for _, snap := range known {
		if _, ok := actual[snap.Info.ID]; !ok {
			orphaned = append(orphaned, snap.Info.ID)
		}
	}
	for _, id := range orphaned {
		r.logger.Info("reconciler: orphaned window detected", "window_id", id)
		r.sync.HandleWindowClosed(id)
	}

	for _, snap := range known {
		if w, ok := actual[snap.Info.ID]; ok {
			r.sync.HandleWindowChanged(w)
		}
	}
}

// ReconcileNow triggers an immediate reconciliation pass. Call it on the
// serialization context.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}
