package taskview

import (
	"github.com/1broseidon/viewhost/internal/platform"
)

// State is the live record of one embedded view.
type State struct {
	Controller *Controller
	Bounds     platform.Rect
	Visible    bool

	// Placed is set once the task surface has been reparented into the
	// container at least once.
	Placed bool
	// NeedsPlacement is set when an open arrived before the container's
	// surface existed.
	NeedsPlacement bool
}

// Repository holds the state of every embedded view, in creation order.
// It is only touched on the serialization context.
type Repository struct {
	states map[*Controller]*State
	order  []*Controller
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{states: make(map[*Controller]*State)}
}

// Add creates the state for c. Adding an existing controller returns its state.
func (r *Repository) Add(c *Controller) *State {
	if st, ok := r.states[c]; ok {
		return st
	}
	st := &State{Controller: c}
	r.states[c] = st
	r.order = append(r.order, c)
	return st
}

// Remove drops the state for c.
func (r *Repository) Remove(c *Controller) {
	if _, ok := r.states[c]; !ok {
		return
	}
	delete(r.states, c)
	for i, v := range r.order {
		if v == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the state for c.
func (r *Repository) Get(c *Controller) (*State, bool) {
	st, ok := r.states[c]
	return st, ok
}

// ByWindow returns the view currently hosting window id.
func (r *Repository) ByWindow(id platform.WindowID) (*Controller, *State) {
	if id == 0 {
		return nil, nil
	}
	for _, c := range r.order {
		if c.TaskID() == id {
			return c, r.states[c]
		}
	}
	return nil, nil
}

// ByLaunchToken returns the view waiting for a window carrying token.
func (r *Repository) ByLaunchToken(token string) (*Controller, *State) {
	if token == "" {
		return nil, nil
	}
	for _, c := range r.order {
		if c.launchToken == token {
			return c, r.states[c]
		}
	}
	return nil, nil
}

// ByName returns the view with the given name.
func (r *Repository) ByName(name string) (*Controller, *State) {
	for _, c := range r.order {
		if c.name == name {
			return c, r.states[c]
		}
	}
	return nil, nil
}

// Views lists controllers in creation order.
func (r *Repository) Views() []*Controller {
	out := make([]*Controller, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of views.
func (r *Repository) Len() int { return len(r.order) }
