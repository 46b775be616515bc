package daemon

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/viewhost/internal/ipc"
	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/taskview"
)

// HostedView is a named container owned by the daemon. It provides the
// drawing surface for one embedded view and records what the view reported.
type HostedView struct {
	name   string
	comp   platform.Compositor
	logger *slog.Logger

	bounds         platform.Rect
	surface        *platform.Leash
	contentVisible bool

	taskVisible  bool
	notFound     int
	backPresses  int
	onRemoval    func()
	lastLaunched string
}

var (
	_ taskview.Host         = (*HostedView)(nil)
	_ taskview.ViewListener = (*HostedView)(nil)
)

// NewHostedView creates an unrealized container.
func NewHostedView(name string, bounds platform.Rect, comp platform.Compositor, logger *slog.Logger) *HostedView {
	return &HostedView{
		name:           name,
		comp:           comp,
		bounds:         bounds,
		contentVisible: true,
		logger:         logger.With("view", name),
	}
}

// Realize allocates the container's drawing surface.
func (h *HostedView) Realize() error {
	if h.surface.Valid() {
		return nil
	}
	leash, err := h.comp.CreateContainer(h.name, h.bounds)
	if err != nil {
		return fmt.Errorf("create container %q: %w", h.name, err)
	}
	h.surface = leash
	h.logger.Debug("container realized", "leash", leash.String(), "bounds", h.bounds.String())
	return nil
}

// Destroy releases the drawing surface.
func (h *HostedView) Destroy() {
	if !h.surface.Valid() {
		return
	}
	if err := h.comp.DestroyContainer(h.surface); err != nil {
		h.logger.Warn("failed to destroy container", "error", err)
	}
	h.surface = nil
}

// Move repositions the container on screen.
func (h *HostedView) Move(bounds platform.Rect) {
	h.bounds = bounds
	if !h.surface.Valid() {
		return
	}
	t := platform.NewTransaction().
		SetPosition(h.surface, bounds.X, bounds.Y).
		SetCrop(h.surface, bounds.Size())
	if err := h.comp.ApplyTransaction(t); err != nil {
		h.logger.Warn("failed to move container", "error", err)
	}
}

// Surface implements taskview.Host.
func (h *HostedView) Surface() *platform.Leash { return h.surface }

// ScreenBounds implements taskview.Host.
func (h *HostedView) ScreenBounds() platform.Rect { return h.bounds }

// SetContentVisible implements taskview.Host.
func (h *HostedView) SetContentVisible(visible bool) {
	if h.contentVisible == visible {
		return
	}
	h.contentVisible = visible
	h.logger.Debug("container content visibility changed", "visible", visible)
}

// OnTaskCreated implements taskview.ViewListener.
func (h *HostedView) OnTaskCreated(info *platform.WindowInfo) {
	h.contentVisible = true
	h.logger.Info("task created", "window_id", info.ID, "title", info.Title)
}

// OnTaskVisibilityChanged implements taskview.ViewListener.
func (h *HostedView) OnTaskVisibilityChanged(id platform.WindowID, visible bool) {
	h.taskVisible = visible
	h.logger.Debug("task visibility changed", "window_id", id, "visible", visible)
}

// OnTaskRemovalStarted implements taskview.ViewListener.
func (h *HostedView) OnTaskRemovalStarted(id platform.WindowID) {
	h.logger.Info("task removal started", "window_id", id)
	h.taskVisible = false
	if h.onRemoval != nil {
		h.onRemoval()
	}
}

// OnBackPressedOnTaskRoot implements taskview.ViewListener.
func (h *HostedView) OnBackPressedOnTaskRoot(id platform.WindowID) {
	h.backPresses++
	h.logger.Info("back pressed on task root", "window_id", id)
}

// OnTaskNotFound implements taskview.ViewListener.
func (h *HostedView) OnTaskNotFound() {
	h.notFound++
	h.logger.Warn("launched task not found", "token", h.lastLaunched)
}

func (h *HostedView) data(view *taskview.Controller, st *taskview.State) ipc.ViewData {
	d := ipc.ViewData{
		Name:           h.name,
		Bounds:         h.bounds.String(),
		Surface:        h.surface.String(),
		ContentVisible: h.contentVisible,
		TaskID:         uint32(view.TaskID()),
		TaskVisible:    h.taskVisible,
		LaunchToken:    view.LaunchToken(),
		NotFound:       h.notFound,
		BackPresses:    h.backPresses,
	}
	if st != nil {
		d.Placed = st.Placed
		d.NeedsPlacement = st.NeedsPlacement
	}
	return d
}
