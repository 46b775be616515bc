package taskview

import (
	"github.com/1broseidon/viewhost/internal/platform"
)

// Reconciler places task surfaces into their containers and keeps the
// repository consistent with what the compositor has been told.
type Reconciler struct {
	t                   *Transitions
	syncHiddenOnReorder bool
}

// SyncHiddenOnReorder reports the reorder compatibility mode.
func (r *Reconciler) SyncHiddenOnReorder() bool { return r.syncHiddenOnReorder }

// SetSyncHiddenOnReorder switches the reorder compatibility mode.
func (r *Reconciler) SetSyncHiddenOnReorder(on bool) { r.syncHiddenOnReorder = on }

// targetBounds is the state bounds, falling back to the container's bounds.
func (r *Reconciler) targetBounds(view *Controller, st *State) platform.Rect {
	if st != nil && !st.Bounds.Empty() {
		return st.Bounds
	}
	if view.host == nil {
		return platform.Rect{}
	}
	return view.host.ScreenBounds()
}

// ReconcileOpen places an opening (or re-shown) task into view's container.
// When the container has no surface yet, the task is hidden and placement
// is deferred until SurfaceCreated.
func (r *Reconciler) ReconcileOpen(view *Controller, st *State, change *platform.Change, startT, finishT *platform.Transaction, batch *platform.MutationBatch) {
	info := change.Window
	if view.task == nil || view.task.ID != info.ID {
		view.task = info.Clone()
	}
	if change.Leash.Valid() {
		view.leash = change.Leash
	}

	var surface *platform.Leash
	if view.host != nil {
		surface = view.host.Surface()
	}
	if !surface.Valid() {
		batch.SetHidden(info.ID, true)
		st.NeedsPlacement = true
		st.Visible = false
		r.t.logger.Debug("container surface not ready, deferring placement",
			"view", view.name,
			"window_id", info.ID)
		return
	}

	newPlacement := !st.Placed
	st.Visible = true
	r.place(view, st, info.ID, startT, finishT, batch)
	batch.SetTrimmable(info.ID, false)
	if newPlacement {
		batch.SetInterceptBackPressed(info.ID, true)
		view.listener.OnTaskCreated(info.Clone())
	}
	view.listener.OnTaskVisibilityChanged(info.ID, true)
}

// place emits reparent, position and crop into both transactions. The
// finish transaction needs them too because the compositor restores the
// original parent at transition end.
func (r *Reconciler) place(view *Controller, st *State, id platform.WindowID, startT, finishT *platform.Transaction, batch *platform.MutationBatch) {
	leash := view.leash
	surface := view.host.Surface()
	bounds := r.targetBounds(view, st)
	for _, tx := range []*platform.Transaction{startT, finishT} {
		tx.Reparent(leash, surface).
			SetPosition(leash, 0, 0).
			SetCrop(leash, bounds.Size())
		if st.Visible {
			tx.Show(leash)
		} else {
			tx.Hide(leash)
		}
	}
	batch.SetBounds(id, bounds)
	st.Placed = true
	st.NeedsPlacement = false
}

// reconcilePlacement re-applies the current bounds to a placed task.
func (r *Reconciler) reconcilePlacement(view *Controller, st *State, change *platform.Change, startT, finishT *platform.Transaction, batch *platform.MutationBatch) {
	if change.Leash.Valid() {
		view.leash = change.Leash
	}
	if view.host == nil || !view.host.Surface().Valid() {
		st.NeedsPlacement = true
		return
	}
	r.place(view, st, change.WindowID(), startT, finishT, batch)
}

// reconcileHidden hides a task that moved to the back.
func (r *Reconciler) reconcileHidden(view *Controller, st *State, change *platform.Change, startT, finishT *platform.Transaction) {
	leash := change.Leash
	if !leash.Valid() {
		leash = view.leash
	}
	startT.Hide(leash)
	finishT.Hide(leash)
	st.Visible = false
	view.listener.OnTaskVisibilityChanged(change.WindowID(), false)
}

// ReconcileBoundsChange records new bounds for view and, when the view is
// visible and idle, queues a bounds-only transition. A transition already
// queued for the view picks the bounds up when it animates.
func (r *Reconciler) ReconcileBoundsChange(view *Controller, bounds platform.Rect) {
	st, ok := r.t.repo.Get(view)
	if !ok {
		return
	}
	if st.Bounds == bounds {
		return
	}
	prev := st.Bounds
	st.Bounds = bounds
	if !st.Visible || view.task == nil {
		return
	}
	if r.t.HasPending(view) {
		r.t.logger.Debug("bounds change folded into in-flight transition", "view", view.name)
		return
	}
	batch := platform.NewMutationBatch().SetBounds(view.task.ID, bounds)
	r.t.enqueue(&pending{
		kind:       platform.TransitChange,
		batch:      batch,
		view:       view,
		setsBounds: true,
		bounds:     bounds,
		prevBounds: prev,
	})
}

// ReconcileVisibility queues a to-front or to-back transition for view.
// With reorder the container is also raised or lowered; whether the hidden
// flag follows depends on SyncHiddenOnReorder.
func (r *Reconciler) ReconcileVisibility(view *Controller, visible, reorder bool) {
	st, ok := r.t.repo.Get(view)
	if !ok {
		return
	}
	if st.Visible == visible && !reorder {
		return
	}
	prev := st.Visible
	st.Visible = visible
	if view.task == nil {
		return
	}
	id := view.task.ID
	batch := platform.NewMutationBatch()
	if reorder {
		batch.Reorder(id, visible)
		if r.syncHiddenOnReorder {
			batch.SetHidden(id, !visible)
		}
	} else {
		batch.SetHidden(id, !visible)
	}
	kind := platform.TransitToBack
	if visible {
		kind = platform.TransitToFront
	}
	r.t.enqueue(&pending{
		kind:        kind,
		batch:       batch,
		view:        view,
		setsVisible: true,
		prevVisible: prev,
	})
}

// SurfaceCreated is called once view's container surface is realized. A
// placement deferred by ReconcileOpen becomes a to-front transition.
func (r *Reconciler) SurfaceCreated(view *Controller) {
	st, ok := r.t.repo.Get(view)
	if !ok {
		return
	}
	if view.task == nil || !st.NeedsPlacement {
		return
	}
	r.t.logger.Debug("container surface created, placing task",
		"view", view.name,
		"window_id", view.task.ID)
	r.ReconcileVisibility(view, true, false)
}

// SurfaceDestroyed hides the task of a view whose surface went away. It is
// placed again when the surface comes back.
func (r *Reconciler) SurfaceDestroyed(view *Controller) {
	st, ok := r.t.repo.Get(view)
	if !ok || view.task == nil {
		return
	}
	r.ReconcileVisibility(view, false, false)
	st.NeedsPlacement = true
}

// Adopt records a task that a conversion placed into view itself.
func (r *Reconciler) Adopt(view *Controller, info *platform.WindowInfo, leash *platform.Leash) {
	st, ok := r.t.repo.Get(view)
	if !ok {
		return
	}
	view.task = info.Clone()
	view.leash = leash
	view.launchToken = ""
	st.Placed = true
	st.Visible = true
	st.NeedsPlacement = false
	if st.Bounds.Empty() && view.host != nil {
		st.Bounds = view.host.ScreenBounds()
	}
	view.listener.OnTaskCreated(info.Clone())
	view.listener.OnTaskVisibilityChanged(info.ID, true)
}

// TargetBounds returns where view's task should be placed.
func (r *Reconciler) TargetBounds(view *Controller) platform.Rect {
	st, _ := r.t.repo.Get(view)
	return r.targetBounds(view, st)
}

// Unembed forgets view's task and releases its registry ownership so the
// window routes to whichever listener resolves next.
func (r *Reconciler) Unembed(view *Controller) {
	if st, ok := r.t.repo.Get(view); ok {
		st.Placed = false
		st.Visible = false
		st.NeedsPlacement = false
	}
	view.task = nil
	view.leash = nil
	r.t.reg.Unregister(view)
}
