// Package taskview hosts windows inside destination containers. It holds
// the per-view state repository, the single-lane transition queue that
// serializes container mutations against the compositor, and the reconciler
// that places a window's surface into its container.
package taskview

import (
	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
)

// Host is the destination container a Controller renders into.
type Host interface {
	// Surface returns the container's drawing surface, or nil until it is realized.
	Surface() *platform.Leash
	// ScreenBounds is where the container sits on screen.
	ScreenBounds() platform.Rect
	// SetContentVisible toggles the container's own content. Exits call it
	// in the same step as the pluck so both land on one frame.
	SetContentVisible(visible bool)
}

// ViewListener receives task-level callbacks for one embedded view.
type ViewListener interface {
	OnTaskCreated(info *platform.WindowInfo)
	OnTaskVisibilityChanged(id platform.WindowID, visible bool)
	OnTaskRemovalStarted(id platform.WindowID)
	OnBackPressedOnTaskRoot(id platform.WindowID)
	// OnTaskNotFound is delivered at most once per launch.
	OnTaskNotFound()
}

// NopListener implements ViewListener with no-ops. Embed it to override a
// subset of callbacks.
type NopListener struct{}

func (NopListener) OnTaskCreated(*platform.WindowInfo)              {}
func (NopListener) OnTaskVisibilityChanged(platform.WindowID, bool) {}
func (NopListener) OnTaskRemovalStarted(platform.WindowID)          {}
func (NopListener) OnBackPressedOnTaskRoot(platform.WindowID)       {}
func (NopListener) OnTaskNotFound()                                 {}

// Controller is one embedded view. It owns at most one task window at a
// time and is registered with the surface registry as that window's owner.
type Controller struct {
	name     string
	host     Host
	listener ViewListener
	t        *Transitions

	task         *platform.WindowInfo
	leash        *platform.Leash
	launchToken  string
	notFoundSent bool
	closing      bool
	released     bool
}

var _ registry.Listener = (*Controller)(nil)

// Name returns the view's name.
func (c *Controller) Name() string { return c.name }

// Host returns the destination container.
func (c *Controller) Host() Host { return c.host }

// Task returns the hosted window, or nil.
func (c *Controller) Task() *platform.WindowInfo { return c.task.Clone() }

// TaskID returns the hosted window's id, or 0.
func (c *Controller) TaskID() platform.WindowID {
	if c.task == nil {
		return 0
	}
	return c.task.ID
}

// Leash returns the hosted window's surface, or nil.
func (c *Controller) Leash() *platform.Leash { return c.leash }

// LaunchToken returns the token of a launch still waiting for its window.
func (c *Controller) LaunchToken() string { return c.launchToken }

// Released reports whether the view has been removed.
func (c *Controller) Released() bool { return c.released }

// SetNotFound tells the listener the expected task never appeared. Only the
// first call per launch is delivered.
func (c *Controller) SetNotFound() {
	if c.notFoundSent {
		return
	}
	c.notFoundSent = true
	c.t.logger.Warn("task not found for view", "view", c.name, "token", c.launchToken)
	if c.launchToken != "" {
		c.t.reg.UnregisterLaunchToken(c.launchToken)
		c.launchToken = ""
	}
	c.listener.OnTaskNotFound()
}

// OnAppeared implements registry.Listener.
func (c *Controller) OnAppeared(info *platform.WindowInfo, leash *platform.Leash) {
	if c.task != nil && c.task.ID != info.ID {
		c.t.logger.Warn("view already hosts a task",
			"view", c.name,
			"window_id", c.task.ID,
			"incoming_window_id", info.ID)
	}
	c.task = info
	c.leash = leash
	if info.LaunchToken != "" && info.LaunchToken == c.launchToken {
		c.launchToken = ""
	}
}

// OnInfoChanged implements registry.Listener.
func (c *Controller) OnInfoChanged(info *platform.WindowInfo) {
	if c.task == nil || c.task.ID != info.ID {
		return
	}
	c.task = info
}

// OnVanished implements registry.Listener.
func (c *Controller) OnVanished(info *platform.WindowInfo) {
	if c.task == nil || c.task.ID != info.ID {
		return
	}
	c.listener.OnTaskRemovalStarted(info.ID)
	c.task = nil
	c.leash = nil
	if st, ok := c.t.repo.Get(c); ok {
		st.Visible = false
		st.Placed = false
		st.NeedsPlacement = false
	}
	if c.closing {
		c.t.finishRelease(c)
	}
}

// OnRootBackPressed implements registry.Listener.
func (c *Controller) OnRootBackPressed(info *platform.WindowInfo) {
	if c.task == nil || c.task.ID != info.ID {
		return
	}
	c.listener.OnBackPressedOnTaskRoot(info.ID)
}

// SupportsSideUI implements registry.Listener.
func (c *Controller) SupportsSideUI() bool { return false }
