// Package registry tracks which listener owns each window and dispatches
// window lifecycle events to that owner.
//
// Ownership is resolved with a fixed priority (highest first):
//
//  1. a one-shot launch token carried by the window (consumed on match)
//  2. an identity registration recorded before the window appeared
//  3. an identity registration
//  4. a registration on the window's parent identity
//  5. a category registration for the window's windowing mode
//
// Registry state is mutated on the serialization context only. The maps are
// additionally guarded by a mutex so lookups (synchronous back handling,
// diagnostics) may run elsewhere.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/1broseidon/viewhost/internal/platform"
)

var (
	// ErrDuplicateRegistration is a programmer error: a different listener
	// already owns the identity or category.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrNoSuchWindow is returned by surface ops on windows the caller does not own.
	ErrNoSuchWindow = errors.New("no such window")
	// ErrUnresolvedOwner marks events that no listener claimed.
	ErrUnresolvedOwner = errors.New("unresolved owner")
)

// Listener receives lifecycle events for the windows it owns.
type Listener interface {
	OnAppeared(info *platform.WindowInfo, leash *platform.Leash)
	OnInfoChanged(info *platform.WindowInfo)
	OnVanished(info *platform.WindowInfo)
	OnRootBackPressed(info *platform.WindowInfo)
	SupportsSideUI() bool
}

// Source records which rule resolved a window's owner.
type Source int

const (
	SourceNone Source = iota
	SourceLaunchToken
	SourcePending
	SourceIdentity
	SourceParent
	SourceCategory
)

func (s Source) String() string {
	switch s {
	case SourceLaunchToken:
		return "launch-token"
	case SourcePending:
		return "pending"
	case SourceIdentity:
		return "identity"
	case SourceParent:
		return "parent"
	case SourceCategory:
		return "category"
	default:
		return "none"
	}
}

type record struct {
	info   *platform.WindowInfo
	leash  *platform.Leash
	owner  Listener
	source Source
}

// FocusListener is told about the most recently focused window.
type FocusListener func(info *platform.WindowInfo)

// LocusVisibilityListener is told when a locus becomes visible or hidden.
type LocusVisibilityListener func(id platform.WindowID, locus string, visible bool)

// Registry is the single source of truth for window ownership.
type Registry struct {
	mu      sync.Mutex
	logger  *slog.Logger
	applier platform.SurfaceApplier

	windows    map[platform.WindowID]*record
	order      []platform.WindowID
	identity   map[platform.WindowID]Listener
	pending    map[platform.WindowID]Listener
	categories map[platform.WindowingMode]Listener
	tokens     map[string]Listener

	focusListeners []FocusListener
	locusListeners []LocusVisibilityListener
	visibleLocus   map[platform.WindowID]string
	lastFocused    *platform.WindowInfo

	homeOverlay *platform.Leash
	homeWindow  platform.WindowID
}

var _ platform.WindowObserver = (*Registry)(nil)

// New creates an empty registry. applier receives the home overlay reparent.
func New(applier platform.SurfaceApplier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		logger:       logger,
		applier:      applier,
		windows:      make(map[platform.WindowID]*record),
		identity:     make(map[platform.WindowID]Listener),
		pending:      make(map[platform.WindowID]Listener),
		categories:   make(map[platform.WindowingMode]Listener),
		tokens:       make(map[string]Listener),
		visibleLocus: make(map[platform.WindowID]string),
	}
}

// deliveries collects listener callbacks so they run after the lock is released.
type deliveries []func()

func (d *deliveries) add(fn func()) { *d = append(*d, fn) }

func (d deliveries) run() {
	for _, fn := range d {
		fn()
	}
}

// resolveLocked applies the priority order without side effects.
func (r *Registry) resolveLocked(info *platform.WindowInfo) (Listener, Source) {
	if info == nil {
		return nil, SourceNone
	}
	if info.LaunchToken != "" {
		if l, ok := r.tokens[info.LaunchToken]; ok {
			return l, SourceLaunchToken
		}
	}
	if l, ok := r.pending[info.ID]; ok {
		return l, SourcePending
	}
	if l, ok := r.identity[info.ID]; ok {
		return l, SourceIdentity
	}
	if info.ParentID != 0 {
		if l, ok := r.identity[info.ParentID]; ok {
			return l, SourceParent
		}
		if l, ok := r.pending[info.ParentID]; ok {
			return l, SourceParent
		}
	}
	if l, ok := r.categories[info.Mode]; ok {
		return l, SourceCategory
	}
	return nil, SourceNone
}

// claimLocked resolves the owner of a live window and converts one-shot and
// pending registrations into identity registrations.
func (r *Registry) claimLocked(info *platform.WindowInfo) (Listener, Source) {
	l, src := r.resolveLocked(info)
	switch src {
	case SourceLaunchToken:
		delete(r.tokens, info.LaunchToken)
		r.identity[info.ID] = l
	case SourcePending:
		delete(r.pending, info.ID)
		r.identity[info.ID] = l
	}
	return l, src
}

// transferLocked moves rec to newOwner, queueing vanished/appeared callbacks.
func (r *Registry) transferLocked(rec *record, newOwner Listener, src Source, d *deliveries) bool {
	old := rec.owner
	rec.source = src
	if old == newOwner {
		return false
	}
	rec.owner = newOwner
	info, leash := rec.info.Clone(), rec.leash
	if old != nil {
		d.add(func() { old.OnVanished(info.Clone()) })
	}
	if newOwner != nil {
		d.add(func() { newOwner.OnAppeared(info.Clone(), leash) })
	}
	r.logger.Debug("window owner changed",
		"window_id", info.ID,
		"source", src.String(),
		"had_owner", old != nil,
		"has_owner", newOwner != nil)
	return true
}

// ResolveOwner returns the listener that would own info right now.
func (r *Registry) ResolveOwner(info *platform.WindowInfo) (Listener, Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(info)
}

// RegisterForWindow binds l to a window identity. A window that has not
// appeared yet is recorded as pending and claimed when it appears.
func (r *Registry) RegisterForWindow(l Listener, id platform.WindowID) error {
	var d deliveries
	r.mu.Lock()
	if existing, ok := r.identity[id]; ok {
		r.mu.Unlock()
		if existing == l {
			return nil
		}
		return fmt.Errorf("window %d: %w", id, ErrDuplicateRegistration)
	}

	rec, appeared := r.windows[id]
	if !appeared {
		if existing, ok := r.pending[id]; ok && existing != l {
			r.logger.Warn("conflicting pending owner, last registration wins", "window_id", id)
		}
		r.pending[id] = l
		r.reresolveChildrenLocked(id, &d)
		r.mu.Unlock()
		d.run()
		return nil
	}

	r.identity[id] = l
	owner, src := r.claimLocked(rec.info)
	r.transferLocked(rec, owner, src, &d)
	r.reresolveChildrenLocked(id, &d)
	r.mu.Unlock()

	d.run()
	return nil
}

// reresolveChildrenLocked re-runs resolution for live windows parented to id.
func (r *Registry) reresolveChildrenLocked(id platform.WindowID, d *deliveries) {
	for _, wid := range r.order {
		rec := r.windows[wid]
		if rec.info.ParentID != id || wid == id {
			continue
		}
		owner, src := r.claimLocked(rec.info)
		r.transferLocked(rec, owner, src, d)
	}
}

// RegisterForCategories binds l to windowing modes and delivers appeared
// for every live window that now resolves to it, in registry order.
func (r *Registry) RegisterForCategories(l Listener, modes ...platform.WindowingMode) error {
	var d deliveries
	r.mu.Lock()
	for _, mode := range modes {
		if existing, ok := r.categories[mode]; ok && existing != l {
			r.mu.Unlock()
			return fmt.Errorf("category %s: %w", mode, ErrDuplicateRegistration)
		}
	}
	for _, mode := range modes {
		r.categories[mode] = l
	}
	for _, id := range r.order {
		rec := r.windows[id]
		owner, src := r.claimLocked(rec.info)
		r.transferLocked(rec, owner, src, &d)
	}
	r.mu.Unlock()

	d.run()
	return nil
}

// RegisterLaunchToken routes the first window appearing with token to l.
func (r *Registry) RegisterLaunchToken(token string, l Listener) {
	if token == "" {
		return
	}
	r.mu.Lock()
	if existing, ok := r.tokens[token]; ok && existing != l {
		r.logger.Warn("launch token re-registered, last registration wins", "token", token)
	}
	r.tokens[token] = l
	r.mu.Unlock()
}

// UnregisterLaunchToken drops an unconsumed token.
func (r *Registry) UnregisterLaunchToken(token string) {
	r.mu.Lock()
	delete(r.tokens, token)
	r.mu.Unlock()
}

// Unregister removes every registration of l and hands its windows to
// whichever listener resolves next. Calling it twice is harmless.
func (r *Registry) Unregister(l Listener) {
	var d deliveries
	r.mu.Lock()
	for id, owner := range r.identity {
		if owner == l {
			delete(r.identity, id)
		}
	}
	for id, owner := range r.pending {
		if owner == l {
			delete(r.pending, id)
		}
	}
	for mode, owner := range r.categories {
		if owner == l {
			delete(r.categories, mode)
		}
	}
	for token, owner := range r.tokens {
		if owner == l {
			delete(r.tokens, token)
		}
	}
	for _, id := range r.order {
		rec := r.windows[id]
		if rec.owner != l {
			continue
		}
		owner, src := r.claimLocked(rec.info)
		r.transferLocked(rec, owner, src, &d)
	}
	r.mu.Unlock()

	d.run()
}

// OnWindowAppeared implements platform.WindowObserver.
func (r *Registry) OnWindowAppeared(info *platform.WindowInfo, leash *platform.Leash) {
	if info == nil {
		return
	}
	var d deliveries
	var overlay *platform.Transaction

	r.mu.Lock()
	rec, known := r.windows[info.ID]
	if !known {
		rec = &record{}
		r.windows[info.ID] = rec
		r.order = append(r.order, info.ID)
	}
	rec.info = info.Clone()
	rec.leash = leash

	owner, src := r.claimLocked(rec.info)
	old := rec.owner
	rec.owner, rec.source = owner, src
	switch {
	case owner == nil:
		r.logger.Warn("window appeared without owner",
			"window_id", info.ID,
			"mode", info.Mode.String(),
			"error", ErrUnresolvedOwner)
	case known && old == owner:
		// A repeated appeared for a window we already track is an info change.
		published := rec.info.Clone()
		d.add(func() { owner.OnInfoChanged(published) })
	default:
		if known && old != nil {
			stale := rec.info.Clone()
			d.add(func() { old.OnVanished(stale) })
		}
		published := rec.info.Clone()
		d.add(func() { owner.OnAppeared(published, leash) })
	}

	if info.IsHome {
		r.homeWindow = info.ID
		if r.homeOverlay.Valid() && leash.Valid() {
			overlay = platform.NewTransaction().Reparent(r.homeOverlay, leash).SetLayer(r.homeOverlay, 1).Show(r.homeOverlay)
		}
	}
	r.updateLocusLocked(rec.info, rec.info.Visible, &d)
	applier := r.applier
	r.mu.Unlock()

	if overlay != nil && applier != nil {
		if err := overlay.Apply(applier); err != nil {
			r.logger.Warn("failed to attach home overlay", "window_id", info.ID, "error", err)
		}
	}
	d.run()
}

// OnWindowInfoChanged implements platform.WindowObserver.
func (r *Registry) OnWindowInfoChanged(info *platform.WindowInfo) {
	if info == nil {
		return
	}
	var d deliveries
	r.mu.Lock()
	rec, ok := r.windows[info.ID]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("info changed for unknown window", "window_id", info.ID, "error", ErrNoSuchWindow)
		return
	}
	rec.info = info.Clone()
	owner, src := r.claimLocked(rec.info)
	r.transferLocked(rec, owner, src, &d)
	if owner != nil {
		published := rec.info.Clone()
		d.add(func() { owner.OnInfoChanged(published) })
	} else {
		r.logger.Warn("info change without owner", "window_id", info.ID, "error", ErrUnresolvedOwner)
	}

	r.updateLocusLocked(rec.info, rec.info.Visible, &d)
	r.updateFocusLocked(rec.info, &d)
	r.mu.Unlock()

	d.run()
}

// OnWindowVanished implements platform.WindowObserver.
func (r *Registry) OnWindowVanished(info *platform.WindowInfo) {
	if info == nil {
		return
	}
	var d deliveries
	var overlay *platform.Transaction

	r.mu.Lock()
	var owner Listener
	if rec, ok := r.windows[info.ID]; ok {
		owner = rec.owner
		delete(r.windows, info.ID)
		for i, id := range r.order {
			if id == info.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	} else {
		owner, _ = r.resolveLocked(info)
	}
	delete(r.identity, info.ID)

	r.updateLocusLocked(info, false, &d)
	if r.lastFocused != nil && r.lastFocused.ID == info.ID {
		r.lastFocused = nil
	}
	if r.homeWindow == info.ID {
		r.homeWindow = 0
		if r.homeOverlay.Valid() {
			overlay = platform.NewTransaction().Hide(r.homeOverlay).Reparent(r.homeOverlay, nil)
		}
	}
	applier := r.applier
	r.mu.Unlock()

	if overlay != nil && applier != nil {
		if err := overlay.Apply(applier); err != nil {
			r.logger.Warn("failed to detach home overlay", "error", err)
		}
	}
	if owner == nil {
		r.logger.Warn("window vanished without owner", "window_id", info.ID, "error", ErrUnresolvedOwner)
	} else {
		published := info.Clone()
		d.add(func() { owner.OnVanished(published) })
	}
	d.run()
}

// OnBackPressedOnRoot implements platform.WindowObserver.
func (r *Registry) OnBackPressedOnRoot(info *platform.WindowInfo) {
	if info == nil {
		return
	}
	r.mu.Lock()
	var owner Listener
	if rec, ok := r.windows[info.ID]; ok {
		owner = rec.owner
	}
	r.mu.Unlock()
	if owner == nil {
		r.logger.Warn("root back press without owner", "window_id", info.ID, "error", ErrUnresolvedOwner)
		return
	}
	owner.OnRootBackPressed(info.Clone())
}

func (r *Registry) updateLocusLocked(info *platform.WindowInfo, visible bool, d *deliveries) {
	prev, had := r.visibleLocus[info.ID]
	id := info.ID
	notify := func(locus string, visible bool) {
		listeners := append([]LocusVisibilityListener(nil), r.locusListeners...)
		d.add(func() {
			for _, fn := range listeners {
				fn(id, locus, visible)
			}
		})
	}
	if visible && info.Locus != "" {
		if had && prev == info.Locus {
			return
		}
		if had {
			notify(prev, false)
		}
		r.visibleLocus[id] = info.Locus
		notify(info.Locus, true)
		return
	}
	if had {
		delete(r.visibleLocus, id)
		notify(prev, false)
	}
}

func (r *Registry) updateFocusLocked(info *platform.WindowInfo, d *deliveries) {
	if !info.Focused && !(info.IsHome && info.Visible) {
		return
	}
	if r.lastFocused != nil && r.lastFocused.ID == info.ID && r.lastFocused.Mode == info.Mode {
		return
	}
	r.lastFocused = info.Clone()
	published := info.Clone()
	listeners := append([]FocusListener(nil), r.focusListeners...)
	d.add(func() {
		for _, fn := range listeners {
			fn(published.Clone())
		}
	})
}

// AddFocusListener subscribes to focused-window changes.
func (r *Registry) AddFocusListener(fn FocusListener) {
	r.mu.Lock()
	r.focusListeners = append(r.focusListeners, fn)
	r.mu.Unlock()
}

// AddLocusVisibilityListener subscribes to locus visibility changes.
func (r *Registry) AddLocusVisibilityListener(fn LocusVisibilityListener) {
	r.mu.Lock()
	r.locusListeners = append(r.locusListeners, fn)
	r.mu.Unlock()
}

// SetHomeOverlay installs the process-wide overlay that follows the home
// window. It is attached immediately if the home window is live.
func (r *Registry) SetHomeOverlay(leash *platform.Leash) {
	var t *platform.Transaction
	r.mu.Lock()
	r.homeOverlay = leash
	if rec, ok := r.windows[r.homeWindow]; ok && leash.Valid() && rec.leash.Valid() {
		t = platform.NewTransaction().Reparent(leash, rec.leash).Show(leash)
	}
	applier := r.applier
	r.mu.Unlock()
	if t != nil && applier != nil {
		if err := t.Apply(applier); err != nil {
			r.logger.Warn("failed to attach home overlay", "error", err)
		}
	}
}

// AttachChildSurface points builder at the leash of a window owned by owner.
func (r *Registry) AttachChildSurface(owner Listener, id platform.WindowID, builder *platform.LeashBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.windows[id]
	if !ok || rec.owner != owner {
		return fmt.Errorf("attach to window %d: %w", id, ErrNoSuchWindow)
	}
	builder.Parent = rec.leash
	return nil
}

// ReparentChildSurface queues child under the leash of a window owned by owner.
func (r *Registry) ReparentChildSurface(owner Listener, id platform.WindowID, child *platform.Leash, t *platform.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.windows[id]
	if !ok || rec.owner != owner {
		return fmt.Errorf("reparent into window %d: %w", id, ErrNoSuchWindow)
	}
	t.Reparent(child, rec.leash)
	return nil
}

// Window returns the last reported info and leash of a live window.
func (r *Registry) Window(id platform.WindowID) (*platform.WindowInfo, *platform.Leash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.windows[id]
	if !ok {
		return nil, nil, false
	}
	return rec.info.Clone(), rec.leash, true
}

// Owner returns the current owner of a live window, or nil.
func (r *Registry) Owner(id platform.WindowID) Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.windows[id]; ok {
		return rec.owner
	}
	return nil
}

// WindowSnapshot is a point-in-time view of one tracked window.
type WindowSnapshot struct {
	Info   *platform.WindowInfo
	Owner  Listener
	Source Source
}

// Snapshot lists tracked windows in registry order.
func (r *Registry) Snapshot() []WindowSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WindowSnapshot, 0, len(r.order))
	for _, id := range r.order {
		rec := r.windows[id]
		out = append(out, WindowSnapshot{Info: rec.info.Clone(), Owner: rec.owner, Source: rec.source})
	}
	return out
}

// LastFocused returns the most recently reported focused window, or nil.
func (r *Registry) LastFocused() *platform.WindowInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFocused.Clone()
}
