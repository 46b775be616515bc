// Package transitions routes compositor transitions through an ordered chain
// of handlers.
package transitions

import (
	"io"
	"log/slog"

	"github.com/1broseidon/viewhost/internal/platform"
)

// Dispatcher offers each transition to its handlers in registration order.
// The first handler that takes a transition animates it; if none does, the
// default behavior applies the start transaction and finishes immediately.
type Dispatcher struct {
	comp     platform.Compositor
	handlers []platform.TransitionHandler
	logger   *slog.Logger
}

var _ platform.TransitionHandler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher that falls back to applying transitions
// directly on comp.
func NewDispatcher(comp platform.Compositor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{comp: comp, logger: logger}
}

// AddHandler appends h to the chain.
func (d *Dispatcher) AddHandler(h platform.TransitionHandler) {
	d.handlers = append(d.handlers, h)
}

// Handlers returns the chain length.
func (d *Dispatcher) Handlers() int { return len(d.handlers) }

// HandleRequest returns the first non-nil batch from the chain.
func (d *Dispatcher) HandleRequest(token platform.ClaimToken, req platform.TransitionRequest) *platform.MutationBatch {
	for _, h := range d.handlers {
		if batch := h.HandleRequest(token, req); batch != nil {
			return batch
		}
	}
	return nil
}

// StartAnimation implements platform.TransitionHandler. It always takes the
// transition.
func (d *Dispatcher) StartAnimation(token platform.ClaimToken, info *platform.ChangeSet, startT, finishT *platform.Transaction, finish platform.FinishFunc) bool {
	for i, h := range d.handlers {
		if h.StartAnimation(token, info, startT, finishT, finish) {
			for j, other := range d.handlers {
				if j != i {
					other.OnConsumed(token, false, finishT)
				}
			}
			return true
		}
	}

	d.logger.Debug("no handler took transition, applying directly",
		"claim", token,
		"kind", info.Kind.String(),
		"changes", len(info.Changes))
	if err := d.comp.ApplyTransaction(startT); err != nil {
		d.logger.Warn("failed to apply start transaction", "claim", token, "error", err)
	}
	finish(nil)
	return true
}

// MergeAnimation forwards the merge to every handler.
func (d *Dispatcher) MergeAnimation(token platform.ClaimToken, info *platform.ChangeSet, mergeTarget platform.ClaimToken) {
	for _, h := range d.handlers {
		h.MergeAnimation(token, info, mergeTarget)
	}
}

// OnConsumed forwards to every handler.
func (d *Dispatcher) OnConsumed(token platform.ClaimToken, aborted bool, finishT *platform.Transaction) {
	for _, h := range d.handlers {
		h.OnConsumed(token, aborted, finishT)
	}
}
