package transitions

import (
	"testing"

	"github.com/1broseidon/viewhost/internal/platform"
)

type stubHandler struct {
	take     bool
	claim    bool
	started  int
	consumed []bool
}

func (s *stubHandler) HandleRequest(platform.ClaimToken, platform.TransitionRequest) *platform.MutationBatch {
	if s.claim {
		return platform.NewMutationBatch()
	}
	return nil
}

func (s *stubHandler) StartAnimation(_ platform.ClaimToken, _ *platform.ChangeSet, _, _ *platform.Transaction, finish platform.FinishFunc) bool {
	s.started++
	if !s.take {
		return false
	}
	finish(nil)
	return true
}

func (s *stubHandler) MergeAnimation(platform.ClaimToken, *platform.ChangeSet, platform.ClaimToken) {}

func (s *stubHandler) OnConsumed(_ platform.ClaimToken, aborted bool, _ *platform.Transaction) {
	s.consumed = append(s.consumed, aborted)
}

func TestDispatcherFirstTakerWins(t *testing.T) {
	sim := platform.NewSimCompositor(platform.Rect{Width: 100, Height: 100})
	d := NewDispatcher(sim, nil)
	first, second, third := &stubHandler{}, &stubHandler{take: true}, &stubHandler{take: true}
	d.AddHandler(first)
	d.AddHandler(second)
	d.AddHandler(third)

	token := sim.StartTransition(platform.TransitChange, nil, d)
	sim.DeliverAll()

	if first.started != 1 || second.started != 1 || third.started != 0 {
		t.Fatalf("started = %d/%d/%d, want 1/1/0", first.started, second.started, third.started)
	}
	if len(first.consumed) != 1 || len(third.consumed) != 1 || len(second.consumed) != 0 {
		t.Fatalf("consumed = %v/%v/%v", first.consumed, second.consumed, third.consumed)
	}
	if !sim.Finished(token) {
		t.Fatalf("transition not finished")
	}
}

func TestDispatcherDefaultFinishes(t *testing.T) {
	sim := platform.NewSimCompositor(platform.Rect{Width: 100, Height: 100})
	d := NewDispatcher(sim, nil)
	d.AddHandler(&stubHandler{})

	win := sim.AddWindow(platform.WindowInfo{Visible: true})
	token := sim.StartTransition(platform.TransitToBack, platform.NewMutationBatch().SetHidden(win.ID, true), d)
	sim.DeliverAll()

	if !sim.Finished(token) {
		t.Fatalf("default handler did not finish")
	}
	if sim.Window(win.ID).Visible {
		t.Fatalf("batch not applied")
	}
}

func TestDispatcherHandleRequestFirstClaim(t *testing.T) {
	d := NewDispatcher(platform.NewSimCompositor(platform.Rect{}), nil)
	d.AddHandler(&stubHandler{})
	if b := d.HandleRequest("t", platform.TransitionRequest{}); b != nil {
		t.Fatalf("unclaimed request returned a batch")
	}
	d.AddHandler(&stubHandler{claim: true})
	if b := d.HandleRequest("t", platform.TransitionRequest{}); b == nil {
		t.Fatalf("claimed request returned nil")
	}
}
