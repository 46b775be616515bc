package taskview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
)

var (
	// ErrLaunchNotFound means the window a launch was waiting for never
	// showed up in the transition's change set.
	ErrLaunchNotFound = errors.New("launch not found")
	// ErrUnknownView is returned for controllers that are not (or no longer) tracked.
	ErrUnknownView = errors.New("unknown view")
	// ErrNoTask is returned for operations that need a hosted window.
	ErrNoTask = errors.New("view has no task")
)

// PendingState is the lifecycle of a queued transition.
type PendingState int

const (
	StateCreated PendingState = iota
	StateSubmitted
	StateAnimating
	StateFinished
	StateAborted
)

func (s PendingState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateAnimating:
		return "animating"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StartFunc submits a transition through another handler. It returns false
// when there is nothing left to submit.
type StartFunc func() (platform.ClaimToken, bool)

// pending is one queued transition.
type pending struct {
	kind        platform.TransitionKind
	batch       *platform.MutationBatch
	view        *Controller
	launchToken string
	claim       platform.ClaimToken
	state       PendingState
	external    StartFunc

	// Repository values this transition overwrote before submission,
	// restored when the compositor aborts it.
	setsVisible bool
	prevVisible bool
	setsBounds  bool
	bounds      platform.Rect
	prevBounds  platform.Rect
}

// PendingInfo is a diagnostic snapshot of a queued transition.
type PendingInfo struct {
	Kind        string `json:"kind"`
	View        string `json:"view,omitempty"`
	LaunchToken string `json:"launch_token,omitempty"`
	Claim       string `json:"claim,omitempty"`
	State       string `json:"state"`
	External    bool   `json:"external,omitempty"`
}

// Options tunes the queue and reconciler.
type Options struct {
	// SyncHiddenOnReorder makes reorder-style visibility changes also set the
	// container hidden flag.
	SyncHiddenOnReorder bool
}

// Transitions serializes shell-initiated container mutations against the
// compositor. Only the head of the queue is ever outstanding. It must only
// be used from the serialization context.
type Transitions struct {
	comp   platform.Compositor
	reg    *registry.Registry
	repo   *Repository
	rec    *Reconciler
	logger *slog.Logger

	queue []*pending
}

var _ platform.TransitionHandler = (*Transitions)(nil)

// NewTransitions wires a queue, its repository and reconciler.
func NewTransitions(comp platform.Compositor, reg *registry.Registry, opts Options, logger *slog.Logger) *Transitions {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &Transitions{
		comp:   comp,
		reg:    reg,
		repo:   NewRepository(),
		logger: logger,
	}
	t.rec = &Reconciler{t: t, syncHiddenOnReorder: opts.SyncHiddenOnReorder}
	return t
}

// Repository returns the view state repository.
func (t *Transitions) Repository() *Repository { return t.repo }

// Reconciler returns the open/bounds reconciler.
func (t *Transitions) Reconciler() *Reconciler { return t.rec }

// Registry returns the surface registry the views register with.
func (t *Transitions) Registry() *registry.Registry { return t.reg }

// Compositor returns the compositor peer.
func (t *Transitions) Compositor() platform.Compositor { return t.comp }

// Logger returns the queue's logger.
func (t *Transitions) Logger() *slog.Logger { return t.logger }

// NewView creates and tracks an embedded view.
func (t *Transitions) NewView(name string, host Host, listener ViewListener) *Controller {
	if listener == nil {
		listener = NopListener{}
	}
	c := &Controller{name: name, host: host, listener: listener, t: t}
	t.repo.Add(c)
	t.logger.Debug("view created", "view", name)
	return c
}

// ExpectLaunch routes the first window carrying token to view.
func (t *Transitions) ExpectLaunch(view *Controller, token string) {
	view.launchToken = token
	view.notFoundSent = false
	t.reg.RegisterLaunchToken(token, view)
}

// StartTaskView launches a new window into view.
func (t *Transitions) StartTaskView(view *Controller, req platform.LaunchRequest) (string, error) {
	st, ok := t.repo.Get(view)
	if !ok {
		return "", fmt.Errorf("start task in %q: %w", view.name, ErrUnknownView)
	}
	if req.Token == "" {
		req.Token = uuid.NewString()
	}
	if req.Bounds.Empty() {
		req.Bounds = t.rec.targetBounds(view, st)
	}
	t.ExpectLaunch(view, req.Token)
	st.Visible = true
	st.Bounds = req.Bounds

	batch := platform.NewMutationBatch().StartTask(req)
	t.enqueue(&pending{
		kind:        platform.TransitOpen,
		batch:       batch,
		view:        view,
		launchToken: req.Token,
	})
	t.logger.Info("launch queued", "view", view.name, "token", req.Token)
	return req.Token, nil
}

// SetVisible is the queue entry point for visibility changes.
func (t *Transitions) SetVisible(view *Controller, visible, reorder bool) error {
	if _, ok := t.repo.Get(view); !ok {
		return fmt.Errorf("set visible on %q: %w", view.name, ErrUnknownView)
	}
	t.rec.ReconcileVisibility(view, visible, reorder)
	return nil
}

// SetBounds is the queue entry point for bounds changes.
func (t *Transitions) SetBounds(view *Controller, bounds platform.Rect) error {
	if _, ok := t.repo.Get(view); !ok {
		return fmt.Errorf("set bounds on %q: %w", view.name, ErrUnknownView)
	}
	t.rec.ReconcileBoundsChange(view, bounds)
	return nil
}

// CloseTaskView removes the hosted window and releases view once it vanished.
// A view without a task is released immediately.
func (t *Transitions) CloseTaskView(view *Controller) error {
	if _, ok := t.repo.Get(view); !ok {
		return fmt.Errorf("close %q: %w", view.name, ErrUnknownView)
	}
	view.closing = true
	if view.task == nil {
		t.finishRelease(view)
		return nil
	}
	batch := platform.NewMutationBatch().RemoveTask(view.task.ID)
	t.enqueue(&pending{kind: platform.TransitClose, batch: batch, view: view})
	return nil
}

func (t *Transitions) finishRelease(view *Controller) {
	if view.released {
		return
	}
	view.released = true
	if view.launchToken != "" {
		t.reg.UnregisterLaunchToken(view.launchToken)
		view.launchToken = ""
	}
	t.reg.Unregister(view)
	t.repo.Remove(view)
	t.logger.Debug("view released", "view", view.name)
}

// EnqueueExternal queues a transition that another handler submits. start
// runs when the entry reaches the head of the queue.
func (t *Transitions) EnqueueExternal(view *Controller, kind platform.TransitionKind, start StartFunc) {
	t.enqueue(&pending{kind: kind, view: view, external: start})
}

// ExternalDone marks the externally submitted transition token as captured
// and advances the queue.
func (t *Transitions) ExternalDone(token platform.ClaimToken) {
	p := t.find(token)
	if p == nil {
		return
	}
	t.remove(p)
	p.state = StateFinished
	t.startNext()
}

// HasPending reports whether any queued transition targets view.
func (t *Transitions) HasPending(view *Controller) bool {
	for _, p := range t.queue {
		if p.view == view {
			return true
		}
	}
	return false
}

// Len returns the queue length.
func (t *Transitions) Len() int { return len(t.queue) }

// Pending returns a snapshot of the queue, head first.
func (t *Transitions) Pending() []PendingInfo {
	out := make([]PendingInfo, 0, len(t.queue))
	for _, p := range t.queue {
		info := PendingInfo{
			Kind:        p.kind.String(),
			LaunchToken: p.launchToken,
			Claim:       string(p.claim),
			State:       p.state.String(),
			External:    p.external != nil,
		}
		if p.view != nil {
			info.View = p.view.name
		}
		out = append(out, info)
	}
	return out
}

func (t *Transitions) enqueue(p *pending) {
	t.queue = append(t.queue, p)
	t.logger.Debug("transition queued",
		"kind", p.kind.String(),
		"view", viewName(p.view),
		"queue_len", len(t.queue))
	if len(t.queue) == 1 {
		t.startNext()
	}
}

// startNext submits the head if it has not been submitted yet.
func (t *Transitions) startNext() {
	for len(t.queue) > 0 {
		head := t.queue[0]
		if head.state != StateCreated {
			return
		}
		if head.external != nil {
			token, ok := head.external()
			if !ok {
				t.logger.Debug("external transition already finished, dropping",
					"view", viewName(head.view))
				t.queue = t.queue[1:]
				continue
			}
			head.claim = token
			head.state = StateSubmitted
			return
		}
		head.claim = t.comp.StartTransition(head.kind, head.batch, t)
		head.state = StateSubmitted
		t.logger.Debug("transition submitted",
			"kind", head.kind.String(),
			"view", viewName(head.view),
			"claim", head.claim)
		return
	}
}

func (t *Transitions) find(token platform.ClaimToken) *pending {
	if token == "" {
		return nil
	}
	for _, p := range t.queue {
		if p.claim == token {
			return p
		}
	}
	return nil
}

func (t *Transitions) remove(p *pending) {
	for i, q := range t.queue {
		if q == p {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			return
		}
	}
}

// HandleRequest claims compositor-initiated visibility transitions that
// target a hosted window.
func (t *Transitions) HandleRequest(token platform.ClaimToken, req platform.TransitionRequest) *platform.MutationBatch {
	if req.Trigger == nil {
		return nil
	}
	view, st := t.repo.ByWindow(req.Trigger.ID)
	if view == nil {
		return nil
	}
	prev := st.Visible
	switch req.Kind {
	case platform.TransitOpen, platform.TransitToFront:
		st.Visible = true
	case platform.TransitToBack:
		st.Visible = false
	default:
		return nil
	}
	t.queue = append(t.queue, &pending{
		kind:        req.Kind,
		view:        view,
		claim:       token,
		state:       StateSubmitted,
		setsVisible: true,
		prevVisible: prev,
	})
	t.logger.Debug("claimed compositor request",
		"kind", req.Kind.String(),
		"view", view.name,
		"claim", token)
	return platform.NewMutationBatch()
}

// StartAnimation implements platform.TransitionHandler.
func (t *Transitions) StartAnimation(token platform.ClaimToken, info *platform.ChangeSet, startT, finishT *platform.Transaction, finish platform.FinishFunc) bool {
	p := t.find(token)
	if p == nil {
		return false
	}
	p.state = StateAnimating
	t.remove(p)

	batch := platform.NewMutationBatch()
	launchSeen := false
	for _, change := range info.Changes {
		view, st := t.viewFor(change, p)
		if view == nil {
			continue
		}
		switch change.Mode {
		case platform.TransitOpen:
			if view == p.view {
				launchSeen = true
			}
			t.rec.ReconcileOpen(view, st, change, startT, finishT, batch)
		case platform.TransitToFront:
			t.rec.ReconcileOpen(view, st, change, startT, finishT, batch)
		case platform.TransitToBack:
			t.rec.reconcileHidden(view, st, change, startT, finishT)
		case platform.TransitChange:
			t.rec.reconcilePlacement(view, st, change, startT, finishT, batch)
		case platform.TransitClose:
			startT.Hide(change.Leash)
		}
	}

	if p.launchToken != "" && !launchSeen && p.view != nil {
		t.logger.Warn("expected launch missing from transition",
			"view", p.view.name,
			"token", p.launchToken,
			"error", ErrLaunchNotFound)
		p.view.SetNotFound()
	}

	if err := t.comp.ApplyTransaction(startT); err != nil {
		t.logger.Warn("failed to apply start transaction", "claim", token, "error", err)
	}
	finish(batch)
	p.state = StateFinished
	t.startNext()
	return true
}

// viewFor maps a change to the view it affects. Opening windows only map
// through a matching launch token.
func (t *Transitions) viewFor(change *platform.Change, p *pending) (*Controller, *State) {
	if change.Window == nil {
		return nil, nil
	}
	if change.Mode == platform.TransitOpen {
		token := change.Window.LaunchToken
		if token == "" {
			return nil, nil
		}
		if p.view != nil && p.launchToken == token {
			st, ok := t.repo.Get(p.view)
			if !ok {
				return nil, nil
			}
			return p.view, st
		}
		if view, st := t.repo.ByLaunchToken(token); view != nil {
			return view, st
		}
		return t.repo.ByWindow(change.Window.ID)
	}
	return t.repo.ByWindow(change.Window.ID)
}

// MergeAnimation implements platform.TransitionHandler. Queue transitions
// never run long enough to absorb another one.
func (t *Transitions) MergeAnimation(token platform.ClaimToken, _ *platform.ChangeSet, mergeTarget platform.ClaimToken) {
	t.logger.Debug("merge requested", "claim", token, "target", mergeTarget)
}

// OnConsumed implements platform.TransitionHandler.
func (t *Transitions) OnConsumed(token platform.ClaimToken, aborted bool, _ *platform.Transaction) {
	p := t.find(token)
	if p == nil {
		return
	}
	later := t.after(p)
	t.remove(p)
	if aborted {
		p.state = StateAborted
		t.logger.Info("transition aborted",
			"kind", p.kind.String(),
			"view", viewName(p.view),
			"claim", token)
		if p.launchToken != "" && p.view != nil {
			p.view.SetNotFound()
		}
		t.unwind(p, later)
	} else {
		p.state = StateFinished
	}
	t.startNext()
}

// after returns the queued transitions behind p.
func (t *Transitions) after(p *pending) []*pending {
	for i, q := range t.queue {
		if q == p {
			return append([]*pending(nil), t.queue[i+1:]...)
		}
	}
	return nil
}

// unwind restores the repository values an aborted transition overwrote.
// A later transition for the same view that overwrote the same value has
// not reached the compositor either, so it inherits the restore point.
// Bounds recorded while p was outstanding were never delivered and are
// requested again.
func (t *Transitions) unwind(p *pending, later []*pending) {
	if p.view == nil {
		return
	}
	st, ok := t.repo.Get(p.view)
	if !ok {
		return
	}
	var nextVisible, nextBounds *pending
	for _, q := range later {
		if q.view != p.view {
			continue
		}
		if q.setsVisible && nextVisible == nil {
			nextVisible = q
		}
		if q.setsBounds && nextBounds == nil {
			nextBounds = q
		}
	}

	if p.setsVisible {
		if nextVisible != nil {
			nextVisible.prevVisible = p.prevVisible
		} else {
			st.Visible = p.prevVisible
		}
	}
	if !p.setsBounds {
		return
	}
	if nextBounds != nil {
		nextBounds.prevBounds = p.prevBounds
		return
	}
	latest := st.Bounds
	st.Bounds = p.prevBounds
	if latest != p.bounds {
		t.rec.ReconcileBoundsChange(p.view, latest)
	}
}

func viewName(v *Controller) string {
	if v == nil {
		return ""
	}
	return v.name
}
