package conversion

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/taskview"
)

// Mode selects how an Enter obtains its window.
type Mode int

const (
	// ModeLaunch starts a new window through a one-shot launch token.
	ModeLaunch Mode = iota
	// ModeConvert retargets a window that is already visible.
	ModeConvert
)

func (m Mode) String() string {
	switch m {
	case ModeLaunch:
		return "launch"
	case ModeConvert:
		return "convert"
	default:
		return "unknown"
	}
}

// Enter brings a window into an embedded view. It animates once the
// inflated, transition-ready and surface-ready gates have all been raised,
// in whatever order they arrive.
type Enter struct {
	c      *Coordinator
	mode   Mode
	view   *taskview.Controller
	launch platform.LaunchRequest
	window platform.WindowID
	onDone func(error)

	phase   Phase
	gates   *Gates
	claim   platform.ClaimToken
	change  *platform.Change
	finishT *platform.Transaction
	finish  platform.FinishFunc
}

var _ platform.TransitionHandler = (*Enter)(nil)

func newEnter(c *Coordinator, mode Mode, view *taskview.Controller, onDone func(error)) *Enter {
	e := &Enter{c: c, mode: mode, view: view, onDone: onDone, phase: PhaseStarted}
	e.gates = NewGates(e.play)
	return e
}

// View implements Conversion.
func (e *Enter) View() *taskview.Controller { return e.view }

// Phase implements Conversion.
func (e *Enter) Phase() Phase { return e.phase }

// Mode returns launch or convert.
func (e *Enter) Mode() Mode { return e.mode }

// Gates exposes the gate flags.
func (e *Enter) Gates() *Gates { return e.gates }

// LaunchToken returns the one-shot token of a launch.
func (e *Enter) LaunchToken() string { return e.launch.Token }

func (e *Enter) snapshot() Info {
	return Info{
		View:  e.view.Name(),
		Kind:  e.mode.String(),
		Phase: e.phase.String(),
		Gates: e.gates.String(),
		Claim: string(e.claim),
	}
}

func (e *Enter) start() error {
	rec := e.c.tr.Reconciler()
	bounds := rec.TargetBounds(e.view)
	batch := platform.NewMutationBatch()
	kind := platform.TransitChange

	switch e.mode {
	case ModeLaunch:
		if e.launch.Token == "" {
			e.launch.Token = uuid.NewString()
		}
		if e.launch.Bounds.Empty() {
			e.launch.Bounds = bounds
		}
		e.launch.Mode = platform.ModeMultiWindow
		e.c.tr.ExpectLaunch(e.view, e.launch.Token)
		batch.StartTask(e.launch)
		kind = platform.TransitOpen
	case ModeConvert:
		if _, _, ok := e.c.reg.Window(e.window); !ok {
			return fmt.Errorf("convert window %d: %w", e.window, ErrNoTask)
		}
		batch.SetWindowingMode(e.window, platform.ModeMultiWindow).
			SetBounds(e.window, bounds).
			Reorder(e.window, true)
	}

	e.c.logger.Info("conversion started",
		"view", e.view.Name(),
		"mode", e.mode.String(),
		"window_id", e.window,
		"token", e.launch.Token)

	e.phase = PhaseContentInflating
	e.c.inflater.Inflate(e.view, func() { e.Signal(GateInflated) })

	e.c.tr.EnqueueExternal(e.view, kind, func() (platform.ClaimToken, bool) {
		if e.phase.Terminal() {
			return "", false
		}
		e.claim = e.c.comp.StartTransition(kind, batch, e)
		return e.claim, true
	})

	if host := e.view.Host(); host != nil && host.Surface().Valid() {
		e.Signal(GateSurfaceReady)
	}
	return nil
}

// Signal raises gate. Signals after the conversion ended are ignored.
func (e *Enter) Signal(gate Gate) {
	if e.phase.Terminal() {
		return
	}
	e.gates.Set(gate)
	if gate == GateInflated && e.phase == PhaseContentInflating {
		e.phase = PhaseAwaiting
	}
}

// HandleRequest implements platform.TransitionHandler.
func (e *Enter) HandleRequest(platform.ClaimToken, platform.TransitionRequest) *platform.MutationBatch {
	return nil
}

// StartAnimation implements platform.TransitionHandler. It records the
// change for the converted window, hides it until the animation places it,
// and raises the transition-ready gate.
func (e *Enter) StartAnimation(token platform.ClaimToken, info *platform.ChangeSet, startT, finishT *platform.Transaction, finish platform.FinishFunc) bool {
	if token == "" || token != e.claim {
		return false
	}
	e.c.tr.ExternalDone(token)

	if e.phase.Terminal() {
		e.c.applyOrLog(startT, "start")
		finish(nil)
		return true
	}

	var change *platform.Change
	if e.mode == ModeLaunch {
		change = info.FindLaunch(e.launch.Token)
	} else {
		change = info.Find(e.window)
	}
	if change == nil || !change.Leash.Valid() {
		e.c.applyOrLog(startT, "start")
		finish(nil)
		if e.mode == ModeLaunch {
			e.releaseWindow()
			e.view.SetNotFound()
			e.end(PhaseFailed, fmt.Errorf("token %s: %w", e.launch.Token, ErrLaunchNotFound))
		} else {
			e.end(PhaseFailed, fmt.Errorf("window %d: %w", e.window, ErrNoTask))
		}
		return true
	}

	e.change = change
	e.finishT = finishT
	e.finish = finish
	startT.Hide(change.Leash)
	e.c.applyOrLog(startT, "start")
	e.Signal(GateTransitionReady)
	return true
}

// play runs once, when the gates first allow it.
func (e *Enter) play() {
	e.phase = PhaseAnimating
	view := e.view
	change := e.change
	leash := change.Leash
	info := change.Window
	bounds := e.c.tr.Reconciler().TargetBounds(view)
	surface := view.Host().Surface()

	place := platform.NewTransaction()
	for _, t := range []*platform.Transaction{place, e.finishT} {
		t.Reparent(leash, surface).
			SetPosition(leash, 0, 0).
			SetCrop(leash, bounds.Size()).
			Show(leash)
	}
	e.finishT.SetAlpha(leash, 1)
	e.c.applyOrLog(place, "place")

	e.c.tr.Reconciler().Adopt(view, info, leash)
	if err := e.c.reg.RegisterForWindow(view, info.ID); err != nil {
		e.c.logger.Warn("failed to hand window to view",
			"view", view.Name(),
			"window_id", info.ID,
			"error", err)
	}

	batch := platform.NewMutationBatch().
		SetBounds(info.ID, bounds).
		SetTrimmable(info.ID, false).
		SetInterceptBackPressed(info.ID, true)
	done := func() {
		if e.finish != nil {
			e.finish(batch)
			e.finish = nil
		}
		e.end(PhaseDone, nil)
	}

	if e.mode == ModeLaunch {
		e.c.animator.AnimateLaunch(leash, bounds, e.gates.Is(GateReadyToExpand), done)
	} else {
		e.c.animator.AnimateConvert(leash, change.StartBounds, bounds, done)
	}
}

// MergeAnimation implements platform.TransitionHandler.
func (e *Enter) MergeAnimation(token platform.ClaimToken, _ *platform.ChangeSet, mergeTarget platform.ClaimToken) {
	e.c.logger.Debug("merge ignored by conversion", "claim", token, "target", mergeTarget)
}

// OnConsumed implements platform.TransitionHandler. The compositor will not
// call StartAnimation for token, so the conversion ends here.
func (e *Enter) OnConsumed(token platform.ClaimToken, aborted bool, _ *platform.Transaction) {
	if token == "" || token != e.claim {
		return
	}
	e.c.tr.ExternalDone(token)
	if e.phase.Terminal() {
		return
	}
	e.c.logger.Info("conversion transition consumed",
		"view", e.view.Name(),
		"aborted", aborted)
	err := error(ErrAbortedTransition)
	if e.mode == ModeLaunch {
		e.view.SetNotFound()
		err = fmt.Errorf("%w: %w", ErrLaunchNotFound, ErrAbortedTransition)
	}
	e.end(PhaseFailed, err)
}

// Cancel implements Conversion. A transition that is ready but not yet
// animating is finished with the window shown where it was.
func (e *Enter) Cancel() {
	if e.phase.Terminal() || e.phase == PhaseAnimating {
		return
	}
	if e.finish != nil {
		e.finishT.Show(e.change.Leash)
		e.finish(nil)
		e.finish = nil
	}
	if e.mode == ModeLaunch {
		if e.change == nil {
			e.c.reg.UnregisterLaunchToken(e.launch.Token)
		}
		e.releaseWindow()
	}
	e.end(PhaseFailed, ErrAbortedTransition)
}

// releaseWindow drops the view's claim on a launched window that was routed
// to it by token but never placed, so the view can host another task.
func (e *Enter) releaseWindow() {
	id := e.view.TaskID()
	if id == 0 {
		return
	}
	e.c.tr.Reconciler().Unembed(e.view)
	e.c.logger.Info("released unplaced window",
		"view", e.view.Name(),
		"window_id", id)
}

func (e *Enter) end(phase Phase, err error) {
	if e.phase.Terminal() {
		return
	}
	e.phase = phase
	e.c.release(e.view, e)
	if err != nil {
		e.c.logger.Warn("conversion failed",
			"view", e.view.Name(),
			"mode", e.mode.String(),
			"error", err)
	} else {
		e.c.logger.Info("conversion finished", "view", e.view.Name(), "mode", e.mode.String())
	}
	if e.onDone != nil {
		e.onDone(err)
	}
}
