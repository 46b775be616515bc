package platform

// TransitionKind is the intent of a transition.
type TransitionKind int

const (
	TransitOpen TransitionKind = iota
	TransitClose
	TransitToFront
	TransitToBack
	TransitChange
)

func (k TransitionKind) String() string {
	switch k {
	case TransitOpen:
		return "open"
	case TransitClose:
		return "close"
	case TransitToFront:
		return "to-front"
	case TransitToBack:
		return "to-back"
	case TransitChange:
		return "change"
	default:
		return "unknown"
	}
}

// ClaimToken identifies a transition accepted by the compositor. It is the
// only link between a request and the asynchronous callbacks that follow.
type ClaimToken string

// Change is the before/after delta of one window within a transition.
type Change struct {
	Window      *WindowInfo // nil for non-window containers
	Leash       *Leash
	Parent      *Leash // parent at the end of the transition; nil is the root
	Mode        TransitionKind
	StartBounds Rect
	EndBounds   Rect
}

// WindowID returns the changed window's id, or 0.
func (c *Change) WindowID() WindowID {
	if c == nil || c.Window == nil {
		return 0
	}
	return c.Window.ID
}

// ChangeSet is what the compositor reports once a transition is ready to animate.
type ChangeSet struct {
	Kind    TransitionKind
	Changes []*Change
	Root    *Leash
}

// Find returns the change for window id, or nil.
func (s *ChangeSet) Find(id WindowID) *Change {
	if s == nil {
		return nil
	}
	for _, c := range s.Changes {
		if c.WindowID() == id {
			return c
		}
	}
	return nil
}

// FindLaunch returns the opening change whose window carries token, or nil.
func (s *ChangeSet) FindLaunch(token string) *Change {
	if s == nil || token == "" {
		return nil
	}
	for _, c := range s.Changes {
		if c.Window == nil || c.Mode != TransitOpen {
			continue
		}
		if c.Window.LaunchToken == token {
			return c
		}
	}
	return nil
}

// TransitionRequest is a compositor-initiated transition offered to handlers.
type TransitionRequest struct {
	Kind    TransitionKind
	Trigger *WindowInfo
}

// FinishFunc signals the end of a transition back to the compositor. The
// optional batch is applied together with the finish transaction.
type FinishFunc func(batch *MutationBatch)

// TransitionHandler is implemented by everything that animates transitions.
type TransitionHandler interface {
	// HandleRequest may claim a compositor-initiated transition by returning
	// the mutations it wants folded in. Returning nil declines.
	HandleRequest(token ClaimToken, req TransitionRequest) *MutationBatch
	// StartAnimation reports whether the handler took the transition. A
	// handler that returns true must eventually call finish exactly once.
	StartAnimation(token ClaimToken, info *ChangeSet, startT, finishT *Transaction, finish FinishFunc) bool
	// MergeAnimation folds the transition identified by token into mergeTarget.
	MergeAnimation(token ClaimToken, info *ChangeSet, mergeTarget ClaimToken)
	// OnConsumed is called when the transition will not be animated by this
	// handler, either because another handler took it or because it aborted.
	OnConsumed(token ClaimToken, aborted bool, finishT *Transaction)
}

// WindowObserver receives window lifecycle events from the compositor.
// Implementations are called on the serialization context.
type WindowObserver interface {
	OnWindowAppeared(info *WindowInfo, leash *Leash)
	OnWindowInfoChanged(info *WindowInfo)
	OnWindowVanished(info *WindowInfo)
	OnBackPressedOnRoot(info *WindowInfo)
}

// Compositor is the asynchronous peer that owns windows and surfaces. For each
// claim token it later calls exactly one of StartAnimation or OnConsumed on
// the handler passed to StartTransition.
type Compositor interface {
	SurfaceApplier

	Name() string
	// Screen is the geometry of the display windows are placed on.
	Screen() Rect
	StartTransition(kind TransitionKind, batch *MutationBatch, handler TransitionHandler) ClaimToken
	ApplyBatch(batch *MutationBatch) error
	ApplyTransaction(t *Transaction) error

	// CreateContainer allocates a drawing surface for a host container.
	CreateContainer(name string, bounds Rect) (*Leash, error)
	DestroyContainer(leash *Leash) error

	// Windows lists the windows the compositor currently knows about.
	Windows() []*WindowInfo
	SetObserver(observer WindowObserver)
}
