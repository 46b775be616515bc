package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownSurface is returned when a surface op names a leash the compositor
// never issued or already released.
var ErrUnknownSurface = errors.New("unknown surface")

// SimSurface is the state of one leash inside the simulated compositor.
type SimSurface struct {
	Leash   *Leash
	Parent  uint64 // 0 is the root
	X, Y    int
	Crop    Rect
	Visible bool
	Alpha   float32
	Layer   int
}

type simWindow struct {
	info  *WindowInfo
	leash *Leash
}

type simTransition struct {
	token   ClaimToken
	kind    TransitionKind
	batch   *MutationBatch
	handler TransitionHandler
}

// SimCompositor is an in-process compositor peer. It keeps a window model and
// a leash tree, hands out claim tokens and delivers transitions either through
// a dispatch function (daemon mode) or on demand via DeliverNext (tests).
type SimCompositor struct {
	mu sync.Mutex

	display  Rect
	dispatch func(func())
	observer WindowObserver

	nextWindow WindowID
	nextLeash  uint64

	windows  map[WindowID]*simWindow
	order    []WindowID
	surfaces map[uint64]*SimSurface

	pending        []*simTransition
	active         map[ClaimToken]*simTransition
	finished       map[ClaimToken]bool
	failedLaunches map[string]bool
	started        int
}

var _ Compositor = (*SimCompositor)(nil)

// NewSimCompositor creates a simulated compositor for a display of the given size.
func NewSimCompositor(display Rect) *SimCompositor {
	return &SimCompositor{
		display:        display,
		nextWindow:     100,
		nextLeash:      1,
		windows:        make(map[WindowID]*simWindow),
		surfaces:       make(map[uint64]*SimSurface),
		active:         make(map[ClaimToken]*simTransition),
		finished:       make(map[ClaimToken]bool),
		failedLaunches: make(map[string]bool),
	}
}

// Name implements Compositor.
func (s *SimCompositor) Name() string { return "sim" }

// Screen implements Compositor.
func (s *SimCompositor) Screen() Rect { return s.display }

// SetDispatch switches the compositor to asynchronous delivery. Every
// callback into shell code is posted through fn.
func (s *SimCompositor) SetDispatch(fn func(func())) {
	s.mu.Lock()
	s.dispatch = fn
	s.mu.Unlock()
}

// SetObserver implements Compositor.
func (s *SimCompositor) SetObserver(observer WindowObserver) {
	s.mu.Lock()
	s.observer = observer
	s.mu.Unlock()
}

func (s *SimCompositor) post(fn func()) {
	s.mu.Lock()
	dispatch := s.dispatch
	s.mu.Unlock()
	if dispatch != nil {
		dispatch(fn)
		return
	}
	fn()
}

func (s *SimCompositor) newLeashLocked(window WindowID, name string) *Leash {
	l := &Leash{ID: s.nextLeash, Window: window, Name: name}
	s.nextLeash++
	s.surfaces[l.ID] = &SimSurface{Leash: l, Visible: true, Alpha: 1}
	return l
}

// AddWindow registers a window as if an application had just opened it and
// reports it to the observer. A zero ID is assigned automatically.
func (s *SimCompositor) AddWindow(info WindowInfo) *WindowInfo {
	s.mu.Lock()
	if info.ID == 0 {
		info.ID = s.nextWindow
		s.nextWindow++
	} else if info.ID >= s.nextWindow {
		s.nextWindow = info.ID + 1
	}
	if info.Bounds.Empty() {
		info.Bounds = s.display
	}
	w := &simWindow{info: info.Clone(), leash: s.newLeashLocked(info.ID, "")}
	w.leash.Window = info.ID
	surf := s.surfaces[w.leash.ID]
	surf.X, surf.Y = info.Bounds.X, info.Bounds.Y
	surf.Crop = info.Bounds.Size()
	surf.Visible = info.Visible
	s.windows[info.ID] = w
	s.order = append(s.order, info.ID)
	published := w.info.Clone()
	leash := w.leash
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		s.post(func() { observer.OnWindowAppeared(published.Clone(), leash) })
	}
	return published
}

// UpdateWindow replaces a window's info and reports the change.
func (s *SimCompositor) UpdateWindow(info WindowInfo) error {
	s.mu.Lock()
	w, ok := s.windows[info.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("window %d: %w", info.ID, ErrUnknownSurface)
	}
	w.info = info.Clone()
	published := w.info.Clone()
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		s.post(func() { observer.OnWindowInfoChanged(published) })
	}
	return nil
}

// RemoveWindow destroys a window outside of any transition.
func (s *SimCompositor) RemoveWindow(id WindowID) {
	s.mu.Lock()
	w, ok := s.windows[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.removeWindowLocked(id)
	published := w.info.Clone()
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		s.post(func() { observer.OnWindowVanished(published) })
	}
}

// PressBackOnRoot simulates a back press on a window that intercepts it.
func (s *SimCompositor) PressBackOnRoot(id WindowID) {
	s.mu.Lock()
	w, ok := s.windows[id]
	observer := s.observer
	var published *WindowInfo
	if ok {
		published = w.info.Clone()
	}
	s.mu.Unlock()
	if ok && observer != nil && published.InterceptBackPressed {
		s.post(func() { observer.OnBackPressedOnRoot(published) })
	}
}

// FailLaunch makes any StartTask carrying token produce no window.
func (s *SimCompositor) FailLaunch(token string) {
	s.mu.Lock()
	s.failedLaunches[token] = true
	s.mu.Unlock()
}

func (s *SimCompositor) removeWindowLocked(id WindowID) {
	if w, ok := s.windows[id]; ok {
		delete(s.surfaces, w.leash.ID)
	}
	delete(s.windows, id)
	for i, wid := range s.order {
		if wid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// StartTransition implements Compositor.
func (s *SimCompositor) StartTransition(kind TransitionKind, batch *MutationBatch, handler TransitionHandler) ClaimToken {
	token := ClaimToken(uuid.NewString())
	s.mu.Lock()
	if batch == nil {
		batch = NewMutationBatch()
	}
	s.pending = append(s.pending, &simTransition{token: token, kind: kind, batch: batch, handler: handler})
	s.started++
	dispatch := s.dispatch
	s.mu.Unlock()

	if dispatch != nil {
		dispatch(func() { s.deliver(token) })
	}
	return token
}

// RequestTransition starts a compositor-initiated transition. The handler is
// offered the request first and may fold its own mutations into it.
func (s *SimCompositor) RequestTransition(kind TransitionKind, trigger WindowID, handler TransitionHandler) ClaimToken {
	s.mu.Lock()
	var info *WindowInfo
	if w, ok := s.windows[trigger]; ok {
		info = w.info.Clone()
	}
	s.mu.Unlock()

	token := ClaimToken(uuid.NewString())
	batch := handler.HandleRequest(token, TransitionRequest{Kind: kind, Trigger: info})
	if batch == nil {
		batch = NewMutationBatch()
	}
	if info != nil {
		switch kind {
		case TransitToFront, TransitOpen:
			batch.SetHidden(info.ID, false)
		case TransitToBack:
			batch.SetHidden(info.ID, true)
		}
	}

	s.mu.Lock()
	s.pending = append(s.pending, &simTransition{token: token, kind: kind, batch: batch, handler: handler})
	s.started++
	dispatch := s.dispatch
	s.mu.Unlock()
	if dispatch != nil {
		dispatch(func() { s.deliver(token) })
	}
	return token
}

// Submitted returns the claim tokens accepted but not yet delivered.
func (s *SimCompositor) Submitted() []ClaimToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ClaimToken, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t.token)
	}
	return out
}

// StartedCount returns how many transitions were ever accepted.
func (s *SimCompositor) StartedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Finished reports whether the handler signalled completion for token.
func (s *SimCompositor) Finished(token ClaimToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished[token]
}

// DeliverNext delivers the oldest accepted transition. It reports false when
// nothing was pending.
func (s *SimCompositor) DeliverNext() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	token := s.pending[0].token
	s.mu.Unlock()
	s.deliver(token)
	return true
}

// DeliverAll delivers transitions until none are pending, including ones
// submitted while delivering.
func (s *SimCompositor) DeliverAll() int {
	n := 0
	for s.DeliverNext() {
		n++
	}
	return n
}

func (s *SimCompositor) takePending(token ClaimToken) *simTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.pending {
		if t.token == token {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return t
		}
	}
	return nil
}

// Abort drops a submitted transition and tells its handler.
func (s *SimCompositor) Abort(token ClaimToken) bool {
	t := s.takePending(token)
	if t == nil {
		return false
	}
	t.handler.OnConsumed(token, true, NewTransaction())
	return true
}

// Merge folds the submitted transition token into the animating mergeTarget.
func (s *SimCompositor) Merge(token, mergeTarget ClaimToken) bool {
	t := s.takePending(token)
	if t == nil {
		return false
	}
	s.mu.Lock()
	target, ok := s.active[mergeTarget]
	s.mu.Unlock()
	if !ok {
		s.mu.Lock()
		s.pending = append([]*simTransition{t}, s.pending...)
		s.mu.Unlock()
		return false
	}
	set, events := s.applyBatch(t.kind, t.batch)
	s.emit(events)
	target.handler.MergeAnimation(token, set, mergeTarget)
	t.handler.OnConsumed(token, false, NewTransaction())
	return true
}

func (s *SimCompositor) deliver(token ClaimToken) {
	t := s.takePending(token)
	if t == nil {
		return
	}
	set, events := s.applyBatch(t.kind, t.batch)
	s.emit(events.withoutVanished())

	s.mu.Lock()
	s.active[token] = t
	s.mu.Unlock()

	startT, finishT := NewTransaction(), NewTransaction()
	var once sync.Once
	finish := func(batch *MutationBatch) {
		once.Do(func() { s.finish(token, finishT, batch) })
	}
	if !t.handler.StartAnimation(token, set, startT, finishT, finish) {
		_ = startT.Apply(s)
		finish(nil)
	}
	s.emit(events.onlyVanished())
}

func (s *SimCompositor) finish(token ClaimToken, finishT *Transaction, batch *MutationBatch) {
	_ = finishT.Apply(s)
	if !batch.Empty() {
		_, events := s.applyBatch(TransitChange, batch)
		s.emit(events)
	}
	s.mu.Lock()
	delete(s.active, token)
	s.finished[token] = true
	s.mu.Unlock()
}

type simEvents struct {
	appeared []*simWindow
	changed  []*WindowInfo
	vanished []*WindowInfo
}

func (e simEvents) withoutVanished() simEvents {
	return simEvents{appeared: e.appeared, changed: e.changed}
}

func (e simEvents) onlyVanished() simEvents {
	return simEvents{vanished: e.vanished}
}

func (s *SimCompositor) emit(e simEvents) {
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer == nil {
		return
	}
	for _, w := range e.appeared {
		observer.OnWindowAppeared(w.info.Clone(), w.leash)
	}
	for _, info := range e.changed {
		observer.OnWindowInfoChanged(info)
	}
	for _, info := range e.vanished {
		observer.OnWindowVanished(info)
	}
}

// applyBatch mutates the window model and returns the resulting change set.
func (s *SimCompositor) applyBatch(kind TransitionKind, batch *MutationBatch) (*ChangeSet, simEvents) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := &ChangeSet{Kind: kind}
	byWindow := make(map[WindowID]*Change)
	var events simEvents
	var changedIDs []WindowID

	touch := func(w *simWindow, mode TransitionKind) *Change {
		c, ok := byWindow[w.info.ID]
		if !ok {
			c = &Change{Leash: w.leash, Mode: mode, StartBounds: w.info.Bounds}
			byWindow[w.info.ID] = c
			set.Changes = append(set.Changes, c)
			if mode != TransitOpen && mode != TransitClose {
				changedIDs = append(changedIDs, w.info.ID)
			}
			return c
		}
		if c.Mode == TransitChange && mode != TransitChange {
			c.Mode = mode
		}
		return c
	}

	for _, op := range batch.Ops() {
		if op.Kind == BatchStartTask {
			if op.Launch == nil || s.failedLaunches[op.Launch.Token] {
				continue
			}
			bounds := op.Launch.Bounds
			if bounds.Empty() {
				bounds = s.display
			}
			info := &WindowInfo{
				ID:          s.nextWindow,
				Visible:     true,
				Bounds:      bounds,
				Mode:        op.Launch.Mode,
				LaunchToken: op.Launch.Token,
			}
			s.nextWindow++
			w := &simWindow{info: info, leash: s.newLeashLocked(info.ID, "")}
			surf := s.surfaces[w.leash.ID]
			surf.X, surf.Y = bounds.X, bounds.Y
			surf.Crop = bounds.Size()
			s.windows[info.ID] = w
			s.order = append(s.order, info.ID)
			c := touch(w, TransitOpen)
			c.StartBounds = Rect{}
			events.appeared = append(events.appeared, w)
			continue
		}

		w, ok := s.windows[op.Window]
		if !ok {
			continue
		}
		next := w.info.Clone()
		switch op.Kind {
		case BatchSetHidden:
			next.Visible = !op.Flag
			if op.Flag {
				touch(w, TransitToBack)
			} else {
				touch(w, TransitToFront)
			}
		case BatchReorder:
			s.reorderLocked(op.Window, op.Flag)
			if op.Flag {
				touch(w, TransitToFront)
			} else {
				touch(w, TransitToBack)
			}
		case BatchSetBounds:
			next.Bounds = op.Bounds
			touch(w, TransitChange)
		case BatchSetMode:
			next.Mode = op.Mode
			touch(w, TransitChange)
		case BatchInterceptBack:
			next.InterceptBackPressed = op.Flag
		case BatchSetTrimmable:
			next.Trimmable = op.Flag
		case BatchRemoveTask:
			c := touch(w, TransitClose)
			c.Mode = TransitClose
			c.Window = next
			s.removeWindowLocked(op.Window)
			events.vanished = append(events.vanished, next)
			continue
		}
		w.info = next
	}

	for id, c := range byWindow {
		if c.Mode == TransitClose {
			continue
		}
		w, ok := s.windows[id]
		if !ok {
			continue
		}
		c.Window = w.info.Clone()
		c.EndBounds = w.info.Bounds
		if surf, ok := s.surfaces[w.leash.ID]; ok && surf.Parent != 0 {
			if parent, ok := s.surfaces[surf.Parent]; ok {
				c.Parent = parent.Leash
			}
		}
	}
	for _, id := range changedIDs {
		if w, ok := s.windows[id]; ok {
			events.changed = append(events.changed, w.info.Clone())
		}
	}
	return set, events
}

func (s *SimCompositor) reorderLocked(id WindowID, toTop bool) {
	for i, wid := range s.order {
		if wid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if toTop {
		s.order = append(s.order, id)
	} else {
		s.order = append([]WindowID{id}, s.order...)
	}
}

// ApplyBatch implements Compositor for mutations outside of a transition.
func (s *SimCompositor) ApplyBatch(batch *MutationBatch) error {
	if batch.Empty() {
		return nil
	}
	_, events := s.applyBatch(TransitChange, batch)
	s.emit(events)
	return nil
}

// ApplyTransaction implements Compositor.
func (s *SimCompositor) ApplyTransaction(t *Transaction) error {
	return t.Apply(s)
}

// ApplySurfaceOp implements SurfaceApplier.
func (s *SimCompositor) ApplySurfaceOp(op SurfaceOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces[op.Leash.ID]
	if !ok {
		return ErrUnknownSurface
	}
	switch op.Kind {
	case OpReparent:
		if op.Parent == nil {
			surf.Parent = 0
			return nil
		}
		if _, ok := s.surfaces[op.Parent.ID]; !ok {
			return fmt.Errorf("parent %s: %w", op.Parent, ErrUnknownSurface)
		}
		surf.Parent = op.Parent.ID
	case OpPosition:
		surf.X, surf.Y = op.X, op.Y
	case OpCrop:
		surf.Crop = op.Crop
	case OpShow:
		surf.Visible = true
	case OpHide:
		surf.Visible = false
	case OpAlpha:
		surf.Alpha = op.Alpha
	case OpLayer:
		surf.Layer = op.Layer
	}
	return nil
}

// Surface returns a copy of a leash's state.
func (s *SimCompositor) Surface(leash *Leash) (SimSurface, bool) {
	if !leash.Valid() {
		return SimSurface{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	surf, ok := s.surfaces[leash.ID]
	if !ok {
		return SimSurface{}, false
	}
	return *surf, true
}

// Window returns the current info of a window, or nil.
func (s *SimCompositor) Window(id WindowID) *WindowInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[id]; ok {
		return w.info.Clone()
	}
	return nil
}

// LeashOf returns the leash of a window, or nil.
func (s *SimCompositor) LeashOf(id WindowID) *Leash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[id]; ok {
		return w.leash
	}
	return nil
}

// CreateContainer implements Compositor.
func (s *SimCompositor) CreateContainer(name string, bounds Rect) (*Leash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.newLeashLocked(0, name)
	surf := s.surfaces[l.ID]
	surf.X, surf.Y = bounds.X, bounds.Y
	surf.Crop = bounds.Size()
	return l, nil
}

// DestroyContainer implements Compositor. Children fall back to the root.
func (s *SimCompositor) DestroyContainer(leash *Leash) error {
	if !leash.Valid() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surfaces[leash.ID]; !ok {
		return ErrUnknownSurface
	}
	delete(s.surfaces, leash.ID)
	for _, surf := range s.surfaces {
		if surf.Parent == leash.ID {
			surf.Parent = 0
		}
	}
	return nil
}

// Windows implements Compositor, in stacking order bottom to top.
func (s *SimCompositor) Windows() []*WindowInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*WindowInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.windows[id].info.Clone())
	}
	return out
}

// WindowIDs returns the ids of live windows in ascending order.
func (s *SimCompositor) WindowIDs() []WindowID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]WindowID, 0, len(s.windows))
	for id := range s.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
