package platform

// BatchOpKind enumerates container mutations.
type BatchOpKind int

const (
	BatchSetHidden BatchOpKind = iota
	BatchReorder
	BatchSetBounds
	BatchSetMode
	BatchInterceptBack
	BatchSetTrimmable
	BatchStartTask
	BatchRemoveTask
)

func (k BatchOpKind) String() string {
	switch k {
	case BatchSetHidden:
		return "set-hidden"
	case BatchReorder:
		return "reorder"
	case BatchSetBounds:
		return "set-bounds"
	case BatchSetMode:
		return "set-mode"
	case BatchInterceptBack:
		return "intercept-back"
	case BatchSetTrimmable:
		return "set-trimmable"
	case BatchStartTask:
		return "start-task"
	case BatchRemoveTask:
		return "remove-task"
	default:
		return "unknown"
	}
}

// LaunchRequest describes a window that does not exist yet.
type LaunchRequest struct {
	Token   string
	Command []string
	Bounds  Rect
	Mode    WindowingMode
}

// BatchOp is one container mutation. Only the fields relevant to Kind are set.
type BatchOp struct {
	Kind   BatchOpKind
	Window WindowID
	Flag   bool // hidden, to-top, intercept, trimmable
	Bounds Rect
	Mode   WindowingMode
	Launch *LaunchRequest
}

// MutationBatch is an ordered set of container mutations submitted to the
// compositor either directly or as the payload of a transition.
type MutationBatch struct {
	ops []BatchOp
}

// NewMutationBatch returns an empty batch.
func NewMutationBatch() *MutationBatch {
	return &MutationBatch{}
}

func (b *MutationBatch) add(op BatchOp) *MutationBatch {
	b.ops = append(b.ops, op)
	return b
}

func (b *MutationBatch) SetHidden(id WindowID, hidden bool) *MutationBatch {
	return b.add(BatchOp{Kind: BatchSetHidden, Window: id, Flag: hidden})
}

// Reorder raises (toTop) or lowers the window's container in z-order.
func (b *MutationBatch) Reorder(id WindowID, toTop bool) *MutationBatch {
	return b.add(BatchOp{Kind: BatchReorder, Window: id, Flag: toTop})
}

func (b *MutationBatch) SetBounds(id WindowID, bounds Rect) *MutationBatch {
	return b.add(BatchOp{Kind: BatchSetBounds, Window: id, Bounds: bounds})
}

func (b *MutationBatch) SetWindowingMode(id WindowID, mode WindowingMode) *MutationBatch {
	return b.add(BatchOp{Kind: BatchSetMode, Window: id, Mode: mode})
}

// SetInterceptBackPressed routes back presses on the window's root to its owner.
func (b *MutationBatch) SetInterceptBackPressed(id WindowID, intercept bool) *MutationBatch {
	return b.add(BatchOp{Kind: BatchInterceptBack, Window: id, Flag: intercept})
}

// SetTrimmable controls whether the compositor may trim the window's container.
func (b *MutationBatch) SetTrimmable(id WindowID, trimmable bool) *MutationBatch {
	return b.add(BatchOp{Kind: BatchSetTrimmable, Window: id, Flag: trimmable})
}

// StartTask asks the compositor to create a new window carrying req.Token.
func (b *MutationBatch) StartTask(req LaunchRequest) *MutationBatch {
	r := req
	return b.add(BatchOp{Kind: BatchStartTask, Launch: &r, Bounds: req.Bounds, Mode: req.Mode})
}

func (b *MutationBatch) RemoveTask(id WindowID) *MutationBatch {
	return b.add(BatchOp{Kind: BatchRemoveTask, Window: id})
}

// Merge appends the operations of other and empties it.
func (b *MutationBatch) Merge(other *MutationBatch) *MutationBatch {
	if other == nil || other == b {
		return b
	}
	b.ops = append(b.ops, other.ops...)
	other.ops = nil
	return b
}

// Ops returns the queued operations in order.
func (b *MutationBatch) Ops() []BatchOp {
	if b == nil {
		return nil
	}
	out := make([]BatchOp, len(b.ops))
	copy(out, b.ops)
	return out
}

func (b *MutationBatch) Empty() bool {
	return b == nil || len(b.ops) == 0
}
