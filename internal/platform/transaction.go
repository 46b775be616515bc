package platform

import (
	"errors"
	"fmt"
)

// SurfaceOpKind enumerates the operations a Transaction can carry.
type SurfaceOpKind int

const (
	OpReparent SurfaceOpKind = iota
	OpPosition
	OpCrop
	OpShow
	OpHide
	OpAlpha
	OpLayer
)

func (k SurfaceOpKind) String() string {
	switch k {
	case OpReparent:
		return "reparent"
	case OpPosition:
		return "position"
	case OpCrop:
		return "crop"
	case OpShow:
		return "show"
	case OpHide:
		return "hide"
	case OpAlpha:
		return "alpha"
	case OpLayer:
		return "layer"
	default:
		return "unknown"
	}
}

// SurfaceOp is a single leash mutation.
type SurfaceOp struct {
	Kind   SurfaceOpKind
	Leash  *Leash
	Parent *Leash // OpReparent; nil detaches to the root
	X, Y   int    // OpPosition
	Crop   Rect   // OpCrop
	Alpha  float32
	Layer  int
}

// SurfaceApplier executes surface operations against the real compositor.
type SurfaceApplier interface {
	ApplySurfaceOp(op SurfaceOp) error
}

// Transaction batches surface operations so they land on the same frame.
type Transaction struct {
	ops []SurfaceOp
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction {
	return &Transaction{}
}

func (t *Transaction) add(op SurfaceOp) *Transaction {
	if op.Leash.Valid() {
		t.ops = append(t.ops, op)
	}
	return t
}

// Reparent moves leash under parent. A nil parent detaches it to the root.
func (t *Transaction) Reparent(leash, parent *Leash) *Transaction {
	return t.add(SurfaceOp{Kind: OpReparent, Leash: leash, Parent: parent})
}

// SetPosition places leash relative to its parent.
func (t *Transaction) SetPosition(leash *Leash, x, y int) *Transaction {
	return t.add(SurfaceOp{Kind: OpPosition, Leash: leash, X: x, Y: y})
}

// SetCrop limits the visible region of leash.
func (t *Transaction) SetCrop(leash *Leash, crop Rect) *Transaction {
	return t.add(SurfaceOp{Kind: OpCrop, Leash: leash, Crop: crop})
}

func (t *Transaction) Show(leash *Leash) *Transaction {
	return t.add(SurfaceOp{Kind: OpShow, Leash: leash})
}

func (t *Transaction) Hide(leash *Leash) *Transaction {
	return t.add(SurfaceOp{Kind: OpHide, Leash: leash})
}

func (t *Transaction) SetAlpha(leash *Leash, alpha float32) *Transaction {
	return t.add(SurfaceOp{Kind: OpAlpha, Leash: leash, Alpha: alpha})
}

func (t *Transaction) SetLayer(leash *Leash, layer int) *Transaction {
	return t.add(SurfaceOp{Kind: OpLayer, Leash: leash, Layer: layer})
}

// Merge appends the operations of other and empties it.
func (t *Transaction) Merge(other *Transaction) *Transaction {
	if other == nil || other == t {
		return t
	}
	t.ops = append(t.ops, other.ops...)
	other.ops = nil
	return t
}

// Ops returns the queued operations in order.
func (t *Transaction) Ops() []SurfaceOp {
	if t == nil {
		return nil
	}
	out := make([]SurfaceOp, len(t.ops))
	copy(out, t.ops)
	return out
}

// Empty reports whether the transaction carries no operations.
func (t *Transaction) Empty() bool {
	return t == nil || len(t.ops) == 0
}

// Apply runs every operation through applier and clears the transaction.
// All operations are attempted; the returned error joins every failure.
func (t *Transaction) Apply(applier SurfaceApplier) error {
	if t == nil {
		return nil
	}
	ops := t.ops
	t.ops = nil
	var errs []error
	for _, op := range ops {
		if err := applier.ApplySurfaceOp(op); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", op.Kind, op.Leash, err))
		}
	}
	return errors.Join(errs...)
}
