package conversion

import (
	"fmt"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/taskview"
)

// Exit takes an embedded view's task out into a detached window. When the
// transition is ready the surface is plucked out of the container in the
// same step that hides the container's content, and the transition is then
// handed to the dispatcher.
type Exit struct {
	c      *Coordinator
	view   *taskview.Controller
	window platform.WindowID
	bounds platform.Rect
	onDone func(error)

	phase Phase
	claim platform.ClaimToken
}

var _ platform.TransitionHandler = (*Exit)(nil)

// View implements Conversion.
func (x *Exit) View() *taskview.Controller { return x.view }

// Phase implements Conversion.
func (x *Exit) Phase() Phase { return x.phase }

func (x *Exit) snapshot() Info {
	return Info{View: x.view.Name(), Kind: "exit", Phase: x.phase.String(), Claim: string(x.claim)}
}

func (x *Exit) start() error {
	task := x.view.Task()
	if task == nil {
		return fmt.Errorf("exit view %q: %w", x.view.Name(), ErrNoTask)
	}
	x.window = task.ID
	if x.bounds.Empty() {
		x.bounds = x.c.display
	}
	batch := platform.NewMutationBatch().
		SetWindowingMode(x.window, platform.ModeFullscreen).
		SetBounds(x.window, x.bounds).
		Reorder(x.window, true).
		SetInterceptBackPressed(x.window, false).
		SetTrimmable(x.window, true)

	x.phase = PhaseAwaiting
	x.c.logger.Info("exit started", "view", x.view.Name(), "window_id", x.window)
	x.c.tr.EnqueueExternal(x.view, platform.TransitChange, func() (platform.ClaimToken, bool) {
		if x.phase.Terminal() {
			return "", false
		}
		x.claim = x.c.comp.StartTransition(platform.TransitChange, batch, x)
		return x.claim, true
	})
	return nil
}

// HandleRequest implements platform.TransitionHandler.
func (x *Exit) HandleRequest(platform.ClaimToken, platform.TransitionRequest) *platform.MutationBatch {
	return nil
}

// StartAnimation implements platform.TransitionHandler.
func (x *Exit) StartAnimation(token platform.ClaimToken, info *platform.ChangeSet, startT, finishT *platform.Transaction, finish platform.FinishFunc) bool {
	if token == "" || token != x.claim {
		return false
	}
	x.c.tr.ExternalDone(token)

	change := info.Find(x.window)
	if x.phase.Terminal() || change == nil || !change.Leash.Valid() {
		x.c.applyOrLog(startT, "start")
		finish(nil)
		x.end(PhaseFailed, fmt.Errorf("exit window %d: %w", x.window, ErrNoTask))
		return true
	}
	x.phase = PhaseAnimating

	leash := change.Leash
	end := change.EndBounds
	parent := change.Parent
	if host := x.view.Host(); host != nil {
		if surface := host.Surface(); surface.Valid() && parent.Valid() && parent.ID == surface.ID {
			parent = nil
		}
	}

	pluck := platform.NewTransaction()
	for _, t := range []*platform.Transaction{pluck, finishT} {
		t.Reparent(leash, parent).
			SetPosition(leash, end.X, end.Y).
			SetCrop(leash, end.Size()).
			SetAlpha(leash, 1).
			Show(leash)
	}
	if host := x.view.Host(); host != nil {
		host.SetContentVisible(false)
	}
	x.c.applyOrLog(pluck, "pluck")

	x.c.tr.Reconciler().Unembed(x.view)

	if x.c.dispatcher != nil {
		x.c.dispatcher.StartAnimation(token, info, startT, finishT, finish)
	} else {
		x.c.applyOrLog(startT, "start")
		finish(nil)
	}
	x.end(PhaseDone, nil)
	return true
}

// MergeAnimation implements platform.TransitionHandler.
func (x *Exit) MergeAnimation(token platform.ClaimToken, _ *platform.ChangeSet, mergeTarget platform.ClaimToken) {
	x.c.logger.Debug("merge ignored by exit", "claim", token, "target", mergeTarget)
}

// OnConsumed implements platform.TransitionHandler.
func (x *Exit) OnConsumed(token platform.ClaimToken, aborted bool, _ *platform.Transaction) {
	if token == "" || token != x.claim {
		return
	}
	x.c.tr.ExternalDone(token)
	x.c.logger.Info("exit transition consumed", "view", x.view.Name(), "aborted", aborted)
	x.end(PhaseFailed, ErrAbortedTransition)
}

// Cancel implements Conversion.
func (x *Exit) Cancel() {
	if x.phase != PhaseAwaiting {
		return
	}
	x.end(PhaseFailed, ErrAbortedTransition)
}

func (x *Exit) end(phase Phase, err error) {
	if x.phase.Terminal() {
		return
	}
	x.phase = phase
	x.c.release(x.view, x)
	if err != nil {
		x.c.logger.Warn("exit failed", "view", x.view.Name(), "error", err)
	}
	if x.onDone != nil {
		x.onDone(err)
	}
}
