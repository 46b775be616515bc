package conversion

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
	"github.com/1broseidon/viewhost/internal/taskview"
	"github.com/1broseidon/viewhost/internal/transitions"
)

// ErrNoConversion is returned when a signal targets a view with nothing in flight.
var ErrNoConversion = errors.New("no active conversion")

// Conversion is an in-flight enter or exit.
type Conversion interface {
	View() *taskview.Controller
	Phase() Phase
	// Cancel unwinds the conversion and reports ErrAbortedTransition to its caller.
	Cancel()
	snapshot() Info
}

// Info is a diagnostic snapshot of one conversion.
type Info struct {
	View  string `json:"view"`
	Kind  string `json:"kind"`
	Phase string `json:"phase"`
	Gates string `json:"gates,omitempty"`
	Claim string `json:"claim,omitempty"`
}

// Config wires a Coordinator.
type Config struct {
	Transitions *taskview.Transitions
	// Dispatcher receives exit transitions after the pluck. Optional.
	Dispatcher *transitions.Dispatcher
	Inflater   Inflater
	Animator   Animator
	// Display is where exiting windows go when no bounds are given.
	Display platform.Rect
	Logger  *slog.Logger
}

// Coordinator runs at most one conversion per view and routes readiness
// signals to it. It must only be used from the serialization context.
type Coordinator struct {
	tr         *taskview.Transitions
	reg        *registry.Registry
	comp       platform.Compositor
	dispatcher *transitions.Dispatcher
	inflater   Inflater
	animator   Animator
	display    platform.Rect
	logger     *slog.Logger

	active map[*taskview.Controller]Conversion
	order  []*taskview.Controller
}

// NewCoordinator creates a coordinator. Missing collaborators default to the
// immediate implementations.
func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	inflater := cfg.Inflater
	if inflater == nil {
		inflater = ImmediateInflater{}
	}
	animator := cfg.Animator
	if animator == nil {
		animator = ImmediateAnimator{}
	}
	return &Coordinator{
		tr:         cfg.Transitions,
		reg:        cfg.Transitions.Registry(),
		comp:       cfg.Transitions.Compositor(),
		dispatcher: cfg.Dispatcher,
		inflater:   inflater,
		animator:   animator,
		display:    cfg.Display,
		logger:     logger,
		active:     make(map[*taskview.Controller]Conversion),
	}
}

// SetAnimator swaps the animator used by conversions started afterwards.
func (c *Coordinator) SetAnimator(a Animator) {
	if a == nil {
		a = ImmediateAnimator{}
	}
	c.animator = a
}

func (c *Coordinator) track(view *taskview.Controller, conv Conversion) error {
	if _, busy := c.active[view]; busy {
		return fmt.Errorf("view %q: %w", view.Name(), ErrConversionActive)
	}
	c.active[view] = conv
	c.order = append(c.order, view)
	return nil
}

func (c *Coordinator) release(view *taskview.Controller, conv Conversion) {
	if cur, ok := c.active[view]; !ok || cur != conv {
		return
	}
	delete(c.active, view)
	for i, v := range c.order {
		if v == view {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Launch starts a new window and converts it into view.
func (c *Coordinator) Launch(view *taskview.Controller, req platform.LaunchRequest, onDone func(error)) (*Enter, error) {
	e := newEnter(c, ModeLaunch, view, onDone)
	e.launch = req
	return e, c.begin(view, e)
}

// Convert moves the already visible window id into view.
func (c *Coordinator) Convert(view *taskview.Controller, id platform.WindowID, onDone func(error)) (*Enter, error) {
	e := newEnter(c, ModeConvert, view, onDone)
	e.window = id
	return e, c.begin(view, e)
}

func (c *Coordinator) begin(view *taskview.Controller, e *Enter) error {
	if err := c.track(view, e); err != nil {
		return err
	}
	if err := e.start(); err != nil {
		c.release(view, e)
		return err
	}
	return nil
}

// Exit plucks view's task out into a detached window at bounds. Empty
// bounds mean the whole display.
func (c *Coordinator) Exit(view *taskview.Controller, bounds platform.Rect, onDone func(error)) (*Exit, error) {
	x := &Exit{c: c, view: view, bounds: bounds, onDone: onDone}
	if err := c.track(view, x); err != nil {
		return nil, err
	}
	if err := x.start(); err != nil {
		c.release(view, x)
		return nil, err
	}
	return x, nil
}

// Active returns the conversion in flight for view.
func (c *Coordinator) Active(view *taskview.Controller) (Conversion, bool) {
	conv, ok := c.active[view]
	return conv, ok
}

func (c *Coordinator) activeEnter(view *taskview.Controller) (*Enter, error) {
	if e, ok := c.active[view].(*Enter); ok {
		return e, nil
	}
	return nil, fmt.Errorf("view %q: %w", view.Name(), ErrNoConversion)
}

// SurfaceCreated routes a container surface becoming available. Without an
// enter in flight it falls through to the reconciler's deferred placement.
func (c *Coordinator) SurfaceCreated(view *taskview.Controller) {
	if e, err := c.activeEnter(view); err == nil {
		e.Signal(GateSurfaceReady)
		return
	}
	c.tr.Reconciler().SurfaceCreated(view)
}

// Inflated raises the inflated gate of view's enter.
func (c *Coordinator) Inflated(view *taskview.Controller) error {
	e, err := c.activeEnter(view)
	if err != nil {
		return err
	}
	e.Signal(GateInflated)
	return nil
}

// SetReadyToExpand raises the ready-to-expand gate of view's enter.
func (c *Coordinator) SetReadyToExpand(view *taskview.Controller) error {
	e, err := c.activeEnter(view)
	if err != nil {
		return err
	}
	e.Signal(GateReadyToExpand)
	return nil
}

// Cancel unwinds whatever is in flight for view.
func (c *Coordinator) Cancel(view *taskview.Controller) {
	if conv, ok := c.active[view]; ok {
		conv.Cancel()
	}
}

// Snapshot lists conversions in start order.
func (c *Coordinator) Snapshot() []Info {
	out := make([]Info, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, c.active[v].snapshot())
	}
	return out
}

// Len returns the number of conversions in flight.
func (c *Coordinator) Len() int { return len(c.active) }

func (c *Coordinator) applyOrLog(t *platform.Transaction, what string) {
	if err := c.comp.ApplyTransaction(t); err != nil {
		c.logger.Warn("failed to apply transaction", "step", what, "error", err)
	}
}
