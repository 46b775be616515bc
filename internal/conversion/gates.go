// Package conversion drives windows into and out of embedded views. A
// conversion waits on several independently signalled gates before it may
// animate, and tolerates those signals arriving in any order.
package conversion

import (
	"errors"
	"strings"

	"github.com/1broseidon/viewhost/internal/taskview"
)

var (
	// ErrLaunchNotFound is reported when the launched window never appeared.
	ErrLaunchNotFound = taskview.ErrLaunchNotFound
	// ErrAbortedTransition is reported when the compositor dropped the transition.
	ErrAbortedTransition = errors.New("transition aborted")
	// ErrConversionActive is returned when the view already has a conversion in flight.
	ErrConversionActive = errors.New("conversion already active")
	// ErrNoTask is returned when the window to convert is not known.
	ErrNoTask = taskview.ErrNoTask
)

// Gate is one readiness signal.
type Gate int

const (
	GateInflated Gate = iota
	GateTransitionReady
	GateSurfaceReady
	GateReadyToExpand
)

func (g Gate) String() string {
	switch g {
	case GateInflated:
		return "inflated"
	case GateTransitionReady:
		return "transition-ready"
	case GateSurfaceReady:
		return "surface-ready"
	case GateReadyToExpand:
		return "ready-to-expand"
	default:
		return "unknown"
	}
}

// Gates holds the four flags of one conversion. onReady runs exactly once,
// the first time inflated, transition-ready and surface-ready all hold.
// ready-to-expand never gates it.
type Gates struct {
	flags   [4]bool
	onReady func()
	fired   bool
}

// NewGates returns cleared gates.
func NewGates(onReady func()) *Gates {
	return &Gates{onReady: onReady}
}

// Set raises gate. Setting a gate twice is harmless.
func (g *Gates) Set(gate Gate) {
	if gate < GateInflated || gate > GateReadyToExpand {
		return
	}
	g.flags[gate] = true
	if g.fired || !g.IsReadyToAnimate() {
		return
	}
	g.fired = true
	if g.onReady != nil {
		g.onReady()
	}
}

func (g *Gates) SetInflated()        { g.Set(GateInflated) }
func (g *Gates) SetTransitionReady() { g.Set(GateTransitionReady) }
func (g *Gates) SetSurfaceReady()    { g.Set(GateSurfaceReady) }
func (g *Gates) SetReadyToExpand()   { g.Set(GateReadyToExpand) }

// Is reports whether gate has been raised.
func (g *Gates) Is(gate Gate) bool {
	if gate < GateInflated || gate > GateReadyToExpand {
		return false
	}
	return g.flags[gate]
}

// IsReadyToAnimate reports inflated ∧ transition-ready ∧ surface-ready.
func (g *Gates) IsReadyToAnimate() bool {
	return g.flags[GateInflated] && g.flags[GateTransitionReady] && g.flags[GateSurfaceReady]
}

// Fired reports whether onReady has run.
func (g *Gates) Fired() bool { return g.fired }

// String lists the raised gates, e.g. "inflated,surface-ready".
func (g *Gates) String() string {
	var set []string
	for i, on := range g.flags {
		if on {
			set = append(set, Gate(i).String())
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ",")
}

// Phase is the coarse state of a conversion.
type Phase int

const (
	PhaseStarted Phase = iota
	PhaseContentInflating
	PhaseAwaiting
	PhaseAnimating
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseContentInflating:
		return "content-inflating"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseAnimating:
		return "animating"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the conversion has ended.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
