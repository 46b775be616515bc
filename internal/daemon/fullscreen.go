package daemon

import (
	"log/slog"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
)

// FullscreenListener owns windows in the configured categories. It keeps
// their surfaces detached, visible and positioned at their reported bounds.
type FullscreenListener struct {
	comp   platform.Compositor
	logger *slog.Logger

	leashes map[platform.WindowID]*platform.Leash
	bounds  map[platform.WindowID]platform.Rect
	order   []platform.WindowID
}

var _ registry.Listener = (*FullscreenListener)(nil)

// NewFullscreenListener creates a listener that positions surfaces through comp.
func NewFullscreenListener(comp platform.Compositor, logger *slog.Logger) *FullscreenListener {
	return &FullscreenListener{
		comp:    comp,
		logger:  logger.With("listener", "fullscreen"),
		leashes: make(map[platform.WindowID]*platform.Leash),
		bounds:  make(map[platform.WindowID]platform.Rect),
	}
}

func (f *FullscreenListener) position(info *platform.WindowInfo, leash *platform.Leash) {
	if !leash.Valid() {
		return
	}
	t := platform.NewTransaction().
		Reparent(leash, nil).
		SetPosition(leash, info.Bounds.X, info.Bounds.Y).
		SetCrop(leash, info.Bounds.Size())
	if info.Visible {
		t.Show(leash)
	} else {
		t.Hide(leash)
	}
	if err := f.comp.ApplyTransaction(t); err != nil {
		f.logger.Warn("failed to position window", "window_id", info.ID, "error", err)
	}
	f.bounds[info.ID] = info.Bounds
}

// OnAppeared implements registry.Listener.
func (f *FullscreenListener) OnAppeared(info *platform.WindowInfo, leash *platform.Leash) {
	if _, ok := f.leashes[info.ID]; !ok {
		f.order = append(f.order, info.ID)
	}
	f.leashes[info.ID] = leash
	f.logger.Info("window taken", "window_id", info.ID, "bounds", info.Bounds.String())
	f.position(info, leash)
}

// OnInfoChanged implements registry.Listener.
func (f *FullscreenListener) OnInfoChanged(info *platform.WindowInfo) {
	leash, ok := f.leashes[info.ID]
	if !ok {
		return
	}
	f.position(info, leash)
}

// OnVanished implements registry.Listener.
func (f *FullscreenListener) OnVanished(info *platform.WindowInfo) {
	if _, ok := f.leashes[info.ID]; !ok {
		return
	}
	delete(f.leashes, info.ID)
	delete(f.bounds, info.ID)
	for i, id := range f.order {
		if id == info.ID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.logger.Debug("window released", "window_id", info.ID)
}

// OnRootBackPressed implements registry.Listener.
func (f *FullscreenListener) OnRootBackPressed(info *platform.WindowInfo) {
	f.logger.Debug("back pressed on fullscreen root", "window_id", info.ID)
}

// SupportsSideUI implements registry.Listener.
func (f *FullscreenListener) SupportsSideUI() bool { return true }

// Windows lists the windows the listener owns, in arrival order.
func (f *FullscreenListener) Windows() []platform.WindowID {
	return append([]platform.WindowID(nil), f.order...)
}
