package platform

import "testing"

var testDisplay = Rect{Width: 1280, Height: 720}

type consumedCall struct {
	token   ClaimToken
	aborted bool
}

type recordingHandler struct {
	decline  bool
	started  []*ChangeSet
	finish   FinishFunc
	merged   []ClaimToken
	mergeSet *ChangeSet
	consumed []consumedCall
}

func (h *recordingHandler) HandleRequest(ClaimToken, TransitionRequest) *MutationBatch { return nil }

func (h *recordingHandler) StartAnimation(_ ClaimToken, info *ChangeSet, _, _ *Transaction, finish FinishFunc) bool {
	if h.decline {
		return false
	}
	h.started = append(h.started, info)
	h.finish = finish
	return true
}

func (h *recordingHandler) MergeAnimation(token ClaimToken, info *ChangeSet, _ ClaimToken) {
	h.merged = append(h.merged, token)
	h.mergeSet = info
}

func (h *recordingHandler) OnConsumed(token ClaimToken, aborted bool, _ *Transaction) {
	h.consumed = append(h.consumed, consumedCall{token: token, aborted: aborted})
}

type recordingObserver struct {
	appeared []WindowID
	changed  []WindowID
	vanished []WindowID
}

func (o *recordingObserver) OnWindowAppeared(info *WindowInfo, _ *Leash) {
	o.appeared = append(o.appeared, info.ID)
}
func (o *recordingObserver) OnWindowInfoChanged(info *WindowInfo) {
	o.changed = append(o.changed, info.ID)
}
func (o *recordingObserver) OnWindowVanished(info *WindowInfo) {
	o.vanished = append(o.vanished, info.ID)
}
func (o *recordingObserver) OnBackPressedOnRoot(*WindowInfo) {}

func newTestSim(t *testing.T) (*SimCompositor, *recordingObserver, *WindowInfo) {
	t.Helper()
	sim := NewSimCompositor(testDisplay)
	obs := &recordingObserver{}
	sim.SetObserver(obs)
	existing := sim.AddWindow(WindowInfo{Visible: true})
	obs.appeared = nil
	return sim, obs, existing
}

func TestDeliverBuildsChangeSet(t *testing.T) {
	sim, obs, existing := newTestSim(t)
	launchBounds := Rect{X: 10, Y: 10, Width: 200, Height: 100}
	moved := Rect{X: 50, Y: 60, Width: 300, Height: 200}

	h := &recordingHandler{}
	batch := NewMutationBatch().
		StartTask(LaunchRequest{Token: "tok", Bounds: launchBounds, Mode: ModeMultiWindow}).
		SetBounds(existing.ID, moved).
		SetHidden(existing.ID, true)
	token := sim.StartTransition(TransitOpen, batch, h)
	if got := sim.Submitted(); len(got) != 1 || got[0] != token {
		t.Fatalf("Submitted() = %v, want [%s]", got, token)
	}
	if !sim.DeliverNext() {
		t.Fatalf("DeliverNext() = false")
	}
	if len(h.started) != 1 {
		t.Fatalf("StartAnimation called %d times", len(h.started))
	}

	set := h.started[0]
	if set.Kind != TransitOpen || len(set.Changes) != 2 {
		t.Fatalf("change set = %+v", set)
	}
	opened := set.FindLaunch("tok")
	if opened == nil {
		t.Fatalf("no opening change for launch token")
	}
	if opened.Mode != TransitOpen || !opened.StartBounds.Empty() || opened.EndBounds != launchBounds {
		t.Fatalf("opened change = %+v", opened)
	}
	if opened.Window.Mode != ModeMultiWindow || !opened.Leash.Valid() {
		t.Fatalf("opened window = %+v leash %v", opened.Window, opened.Leash)
	}

	change := set.Find(existing.ID)
	if change == nil {
		t.Fatalf("no change for window %d", existing.ID)
	}
	if change.Mode != TransitToBack {
		t.Fatalf("mode = %s, want %s", change.Mode, TransitToBack)
	}
	if change.StartBounds != testDisplay || change.EndBounds != moved {
		t.Fatalf("bounds %v -> %v, want %v -> %v", change.StartBounds, change.EndBounds, testDisplay, moved)
	}
	if change.Window.Visible {
		t.Fatalf("hidden window reported visible")
	}

	if len(obs.appeared) != 1 || obs.appeared[0] != opened.Window.ID {
		t.Fatalf("appeared = %v", obs.appeared)
	}
	if len(obs.changed) != 1 || obs.changed[0] != existing.ID {
		t.Fatalf("changed = %v", obs.changed)
	}

	if sim.Finished(token) {
		t.Fatalf("finished before the handler signalled")
	}
	h.finish(NewMutationBatch().SetInterceptBackPressed(opened.Window.ID, true))
	if !sim.Finished(token) {
		t.Fatalf("not finished after finish()")
	}
	if w := sim.Window(opened.Window.ID); w == nil || !w.InterceptBackPressed {
		t.Fatalf("finish batch not applied: %+v", w)
	}
}

func TestFailedLaunchOpensNothing(t *testing.T) {
	sim, obs, _ := newTestSim(t)
	sim.FailLaunch("gone")

	h := &recordingHandler{}
	sim.StartTransition(TransitOpen, NewMutationBatch().StartTask(LaunchRequest{Token: "gone"}), h)
	sim.DeliverAll()

	if len(h.started) != 1 || h.started[0].FindLaunch("gone") != nil {
		t.Fatalf("failed launch produced a change: %+v", h.started)
	}
	if len(obs.appeared) != 0 {
		t.Fatalf("appeared = %v", obs.appeared)
	}
}

func TestDeclinedTransitionFinishes(t *testing.T) {
	sim, _, existing := newTestSim(t)
	h := &recordingHandler{decline: true}
	token := sim.StartTransition(TransitChange, NewMutationBatch().SetBounds(existing.ID, Rect{Width: 10, Height: 10}), h)
	sim.DeliverAll()
	if !sim.Finished(token) {
		t.Fatalf("declined transition left active")
	}
}

func TestAbortConsumesWithoutApplying(t *testing.T) {
	sim, obs, existing := newTestSim(t)
	h := &recordingHandler{}
	token := sim.StartTransition(TransitChange, NewMutationBatch().SetBounds(existing.ID, Rect{Width: 10, Height: 10}), h)

	if !sim.Abort(token) {
		t.Fatalf("Abort() = false")
	}
	if len(h.consumed) != 1 || h.consumed[0] != (consumedCall{token: token, aborted: true}) {
		t.Fatalf("consumed = %+v", h.consumed)
	}
	if len(h.started) != 0 || len(sim.Submitted()) != 0 {
		t.Fatalf("aborted transition still delivered or queued")
	}
	if w := sim.Window(existing.ID); w.Bounds != testDisplay {
		t.Fatalf("aborted batch applied: bounds = %v", w.Bounds)
	}
	if len(obs.changed) != 0 {
		t.Fatalf("changed = %v", obs.changed)
	}
	if sim.Abort(token) {
		t.Fatalf("second Abort() = true")
	}
	if sim.DeliverNext() {
		t.Fatalf("DeliverNext() after abort = true")
	}
}

func TestMergeFoldsIntoActiveTransition(t *testing.T) {
	sim, _, existing := newTestSim(t)
	target := &recordingHandler{}
	first := sim.StartTransition(TransitToFront, NewMutationBatch().Reorder(existing.ID, true), target)
	sim.DeliverNext()

	merging := &recordingHandler{}
	bounds := Rect{X: 5, Y: 5, Width: 100, Height: 100}
	second := sim.StartTransition(TransitChange, NewMutationBatch().SetBounds(existing.ID, bounds), merging)

	if sim.Merge(second, "unknown") {
		t.Fatalf("Merge into an inactive target = true")
	}
	if got := sim.Submitted(); len(got) != 1 || got[0] != second {
		t.Fatalf("failed merge should leave the transition queued, got %v", got)
	}

	if !sim.Merge(second, first) {
		t.Fatalf("Merge() = false")
	}
	if len(target.merged) != 1 || target.merged[0] != second {
		t.Fatalf("merged = %v", target.merged)
	}
	if c := target.mergeSet.Find(existing.ID); c == nil || c.EndBounds != bounds {
		t.Fatalf("merge change set = %+v", target.mergeSet)
	}
	if len(merging.consumed) != 1 || merging.consumed[0] != (consumedCall{token: second, aborted: false}) {
		t.Fatalf("consumed = %+v", merging.consumed)
	}
	if len(merging.started) != 0 {
		t.Fatalf("merged transition was also started")
	}
	if w := sim.Window(existing.ID); w.Bounds != bounds {
		t.Fatalf("merged batch not applied: bounds = %v", w.Bounds)
	}

	target.finish(nil)
	if !sim.Finished(first) || sim.Finished(second) {
		t.Fatalf("finished first=%v second=%v", sim.Finished(first), sim.Finished(second))
	}
}
