package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/1broseidon/viewhost/internal/hotkeys"
	"github.com/1broseidon/viewhost/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/google/uuid"
)

// DefaultLaunchTimeout bounds how long a launch or close waits for the
// window to appear or vanish before the transition is aborted.
const DefaultLaunchTimeout = 10 * time.Second

// X11Config configures NewX11Compositor.
type X11Config struct {
	// Display overrides $DISPLAY.
	Display       string
	LaunchTimeout time.Duration
	// BackKey is grabbed globally and delivered as a back press on the
	// root of the focused window. Empty disables it.
	BackKey string
	// Dispatch runs callbacks into shell code on the serialization context.
	// Nil runs them on the X event goroutine.
	Dispatch func(func())
	Logger   *slog.Logger
}

type x11Window struct {
	info  *WindowInfo
	leash *Leash
	pid   int
}

type x11Surface struct {
	leash  *Leash
	xid    xproto.Window
	parent *Leash
	x, y   int
}

type x11Launch struct {
	token string
	pid   int
	req   LaunchRequest
}

type x11Transition struct {
	token    ClaimToken
	handler  TransitionHandler
	set      *ChangeSet
	byWindow map[WindowID]*Change

	launches map[string]*x11Launch
	closing  map[WindowID]bool
	timer    *time.Timer

	appeared []*x11Window
	changed  []WindowID
	vanished []*WindowInfo
}

func (t *x11Transition) touch(w *x11Window, mode TransitionKind) *Change {
	c, ok := t.byWindow[w.info.ID]
	if !ok {
		c = &Change{Leash: w.leash, Mode: mode, StartBounds: w.info.Bounds}
		t.byWindow[w.info.ID] = c
		t.set.Changes = append(t.set.Changes, c)
		if mode != TransitOpen && mode != TransitClose {
			t.changed = append(t.changed, w.info.ID)
		}
		return c
	}
	if c.Mode == TransitChange && mode != TransitChange {
		c.Mode = mode
	}
	return c
}

func (t *x11Transition) ready() bool {
	return len(t.launches) == 0 && len(t.closing) == 0
}

// X11Compositor drives top-level X11 windows through an EWMH window manager.
// Containers are plain child-less windows; hosting a window reparents it
// into its container. Launches are matched to windows by _NET_STARTUP_ID
// (set from DESKTOP_STARTUP_ID) or by _NET_WM_PID.
type X11Compositor struct {
	conn          *x11.Connection
	keys          *hotkeys.Handler
	logger        *slog.Logger
	dispatch      func(func())
	launchTimeout time.Duration
	screen        Rect

	mu        sync.Mutex
	observer  WindowObserver
	requests  TransitionHandler
	windows   map[WindowID]*x11Window
	order     []WindowID
	surfaces  map[uint64]*x11Surface
	nextLeash uint64
	pending   map[ClaimToken]*x11Transition
	active    WindowID
}

var _ Compositor = (*X11Compositor)(nil)

// NewX11Compositor connects to the X server and reads the screen geometry.
// Events are not processed until Run.
func NewX11Compositor(cfg X11Config) (*X11Compositor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}

	conn, err := x11.NewConnection(cfg.Display)
	if err != nil {
		return nil, err
	}
	mon, err := conn.ActiveMonitor()
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &X11Compositor{
		conn:          conn,
		logger:        logger.With("compositor", "x11"),
		dispatch:      cfg.Dispatch,
		launchTimeout: timeout,
		screen:        Rect{X: mon.X, Y: mon.Y, Width: mon.Width, Height: mon.Height},
		windows:       make(map[WindowID]*x11Window),
		surfaces:      make(map[uint64]*x11Surface),
		nextLeash:     1,
		pending:       make(map[ClaimToken]*x11Transition),
	}
	if err := conn.WatchRoot(); err != nil {
		conn.Close()
		return nil, err
	}
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		c.onRootProperty(ev)
	}).Connect(conn.XUtil, conn.Root)

	if cfg.BackKey != "" {
		c.keys = hotkeys.NewHandler(conn.XUtil, conn.Root)
		if err := c.keys.Register(cfg.BackKey, c.pressBack); err != nil {
			c.logger.Warn("back key unavailable", "key", cfg.BackKey, "error", err)
		}
	}

	c.logger.Info("connected to X server", "screen", c.screen.String(), "monitor", mon.Name)
	return c, nil
}

// Name implements Compositor.
func (c *X11Compositor) Name() string { return "x11" }

// Screen implements Compositor.
func (c *X11Compositor) Screen() Rect { return c.screen }

// SetObserver implements Compositor.
func (c *X11Compositor) SetObserver(observer WindowObserver) {
	c.mu.Lock()
	c.observer = observer
	c.mu.Unlock()
}

// SetRequestHandler receives transitions the user starts, such as
// activating a window from a taskbar.
func (c *X11Compositor) SetRequestHandler(h TransitionHandler) {
	c.mu.Lock()
	c.requests = h
	c.mu.Unlock()
}

func (c *X11Compositor) post(fn func()) {
	if c.dispatch != nil {
		c.dispatch(fn)
		return
	}
	fn()
}

// Run adopts the existing client windows and processes X events until ctx
// is cancelled or the connection fails.
func (c *X11Compositor) Run(ctx context.Context) error {
	c.scan()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.conn.EventLoop()
	}()

	select {
	case <-ctx.Done():
		c.conn.Quit()
		return nil
	case <-done:
		return errors.New("X11 event loop exited")
	}
}

// Close disconnects from the X server.
func (c *X11Compositor) Close() {
	c.mu.Lock()
	for _, t := range c.pending {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	c.mu.Unlock()
	if c.keys != nil {
		c.keys.Unregister()
	}
	c.conn.Close()
}

func (c *X11Compositor) scan() {
	clients, err := c.conn.ClientList()
	if err != nil {
		c.logger.Warn("failed to read client list", "error", err)
		return
	}
	for _, xid := range clients {
		c.adopt(xid)
	}
	if active, err := c.conn.GetActiveWindow(); err == nil {
		c.setActive(WindowID(active))
	}
}

func (c *X11Compositor) newLeashLocked(window WindowID, name string) *Leash {
	l := &Leash{ID: c.nextLeash, Window: window, Name: name}
	c.nextLeash++
	return l
}

// describe reads a client window's current state from the server.
func (c *X11Compositor) describe(xid xproto.Window) (*WindowInfo, int, bool) {
	if !c.conn.IsNormalWindow(xid) {
		return nil, 0, false
	}
	geom, err := c.conn.WindowGeometry(xid)
	if err != nil {
		return nil, 0, false
	}
	info := &WindowInfo{
		ID:          WindowID(xid),
		ParentID:    WindowID(c.conn.IsTransient(xid)),
		Title:       c.conn.WindowTitle(xid),
		Visible:     !c.conn.IsHidden(xid),
		Bounds:      Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height},
		Mode:        ModeFreeform,
		LaunchToken: c.conn.StartupID(xid),
	}
	if c.conn.IsFullscreen(xid) {
		info.Mode = ModeFullscreen
	}
	return info, c.conn.WindowPID(xid), true
}

// adopt starts tracking a client window. Windows that complete a pending
// launch are reported with that launch's transition; others appear at once.
func (c *X11Compositor) adopt(xid xproto.Window) {
	id := WindowID(xid)
	c.mu.Lock()
	_, known := c.windows[id]
	c.mu.Unlock()
	if known {
		return
	}

	info, pid, ok := c.describe(xid)
	if !ok {
		return
	}
	if err := c.conn.WatchWindow(xid); err != nil {
		c.logger.Debug("failed to watch window", "window_id", id, "error", err)
	}
	c.watchClient(xid)

	c.mu.Lock()
	info.Focused = id == c.active
	w := &x11Window{info: info, leash: c.newLeashLocked(id, ""), pid: pid}
	c.windows[id] = w
	c.order = append(c.order, id)
	c.surfaces[w.leash.ID] = &x11Surface{leash: w.leash, xid: xid, x: info.Bounds.X, y: info.Bounds.Y}

	t, launch := c.matchLaunchLocked(info, pid)
	if t == nil {
		observer := c.observer
		published := info.Clone()
		c.mu.Unlock()
		c.logger.Debug("window appeared", "window_id", id, "title", info.Title)
		if observer != nil {
			c.post(func() { observer.OnWindowAppeared(published, w.leash) })
		}
		return
	}

	info.LaunchToken = launch.token
	delete(t.launches, launch.token)
	ready := t.ready()
	c.mu.Unlock()

	c.placeLaunched(w, launch.req)

	c.mu.Lock()
	ch := t.touch(w, TransitOpen)
	ch.StartBounds = Rect{}
	t.appeared = append(t.appeared, w)
	c.mu.Unlock()

	c.logger.Info("launched window appeared", "window_id", id, "token", launch.token)
	if ready {
		c.post(func() { c.deliver(t.token) })
	}
}

func (c *X11Compositor) matchLaunchLocked(info *WindowInfo, pid int) (*x11Transition, *x11Launch) {
	for _, t := range c.pending {
		for _, l := range t.launches {
			if info.LaunchToken != "" && info.LaunchToken == l.token {
				return t, l
			}
			if pid != 0 && pid == l.pid {
				return t, l
			}
		}
	}
	return nil, nil
}

func (c *X11Compositor) placeLaunched(w *x11Window, req LaunchRequest) {
	xid := xproto.Window(w.info.ID)
	if req.Mode != ModeUndefined {
		if err := c.conn.SetFullscreen(xid, req.Mode == ModeFullscreen); err == nil {
			w.info.Mode = req.Mode
		}
	}
	if !req.Bounds.Empty() {
		b := req.Bounds
		if err := c.conn.MoveResizeWindow(xid, b.X, b.Y, b.Width, b.Height); err == nil {
			w.info.Bounds = b
		}
	}
}

func (c *X11Compositor) watchClient(xid xproto.Window) {
	xu := c.conn.XUtil
	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
		c.onDestroy(ev.Window)
	}).Connect(xu, xid)
	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		c.onConfigure(ev.Window)
	}).Connect(xu, xid)
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		c.onClientProperty(ev)
	}).Connect(xu, xid)
}

func (c *X11Compositor) onRootProperty(ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(c.conn.XUtil, ev.Atom)
	if err != nil {
		return
	}
	switch name {
	case "_NET_CLIENT_LIST":
		clients, err := c.conn.ClientList()
		if err != nil {
			return
		}
		for _, xid := range clients {
			c.adopt(xid)
		}
	case "_NET_ACTIVE_WINDOW":
		active, err := c.conn.GetActiveWindow()
		if err != nil {
			return
		}
		c.setActive(WindowID(active))
	}
}

func (c *X11Compositor) setActive(id WindowID) {
	c.mu.Lock()
	if id == c.active {
		c.mu.Unlock()
		return
	}
	var changed []*WindowInfo
	if prev, ok := c.windows[c.active]; ok {
		prev.info = prev.info.Clone()
		prev.info.Focused = false
		changed = append(changed, prev.info.Clone())
	}
	c.active = id
	next, known := c.windows[id]
	if known {
		next.info = next.info.Clone()
		next.info.Focused = true
		changed = append(changed, next.info.Clone())
	}
	observer, requests := c.observer, c.requests
	c.mu.Unlock()

	if observer != nil && len(changed) > 0 {
		c.post(func() {
			for _, info := range changed {
				observer.OnWindowInfoChanged(info)
			}
		})
	}
	if known && requests != nil {
		c.post(func() { c.request(TransitToFront, id, requests) })
	}
}

// pressBack walks from the focused window to its root and reports a back
// press if the root intercepts it.
func (c *X11Compositor) pressBack() {
	c.mu.Lock()
	w, ok := c.windows[c.active]
	for ok && w.info.ParentID != 0 {
		parent, found := c.windows[w.info.ParentID]
		if !found {
			break
		}
		w = parent
	}
	observer := c.observer
	var published *WindowInfo
	if ok {
		published = w.info.Clone()
	}
	c.mu.Unlock()

	if !ok || observer == nil || !published.InterceptBackPressed {
		return
	}
	c.logger.Debug("back pressed on root", "window_id", published.ID)
	c.post(func() { observer.OnBackPressedOnRoot(published) })
}

func (c *X11Compositor) onClientProperty(ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(c.conn.XUtil, ev.Atom)
	if err != nil {
		return
	}
	switch name {
	case "_NET_WM_NAME", "WM_NAME", "_NET_WM_STATE":
	default:
		return
	}
	xid := ev.Window
	c.mu.Lock()
	w, ok := c.windows[WindowID(xid)]
	c.mu.Unlock()
	if !ok {
		return
	}
	title := c.conn.WindowTitle(xid)
	hidden := c.conn.IsHidden(xid)
	mode := ModeFreeform
	if c.conn.IsFullscreen(xid) {
		mode = ModeFullscreen
	}

	c.mu.Lock()
	cur := w.info
	if cur.Title == title && cur.Visible == !hidden && (cur.Mode == mode || cur.Mode == ModeMultiWindow) {
		c.mu.Unlock()
		return
	}
	next := cur.Clone()
	next.Title = title
	next.Visible = !hidden
	if next.Mode != ModeMultiWindow {
		next.Mode = mode
	}
	w.info = next
	c.emitChangedLocked(next)
}

func (c *X11Compositor) onConfigure(xid xproto.Window) {
	c.mu.Lock()
	w, ok := c.windows[WindowID(xid)]
	var hosted bool
	if ok {
		hosted = c.surfaces[w.leash.ID].parent != nil
	}
	c.mu.Unlock()
	if !ok || hosted {
		return
	}
	geom, err := c.conn.WindowGeometry(xid)
	if err != nil {
		return
	}
	bounds := Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height}

	c.mu.Lock()
	if w.info.Bounds == bounds {
		c.mu.Unlock()
		return
	}
	next := w.info.Clone()
	next.Bounds = bounds
	w.info = next
	c.emitChangedLocked(next)
}

// emitChangedLocked releases c.mu.
func (c *X11Compositor) emitChangedLocked(info *WindowInfo) {
	observer := c.observer
	published := info.Clone()
	c.mu.Unlock()
	if observer != nil {
		c.post(func() { observer.OnWindowInfoChanged(published) })
	}
}

func (c *X11Compositor) onDestroy(xid xproto.Window) {
	id := WindowID(xid)
	c.mu.Lock()
	w, ok := c.windows[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.removeWindowLocked(id)
	published := w.info.Clone()

	var ready *x11Transition
	for _, t := range c.pending {
		if t.closing[id] {
			delete(t.closing, id)
			t.vanished = append(t.vanished, published)
			if t.ready() {
				ready = t
			}
			c.mu.Unlock()
			xevent.Detach(c.conn.XUtil, xid)
			if ready != nil {
				c.post(func() { c.deliver(ready.token) })
			}
			return
		}
	}
	observer := c.observer
	c.mu.Unlock()

	xevent.Detach(c.conn.XUtil, xid)
	c.logger.Debug("window vanished", "window_id", id)
	if observer != nil {
		c.post(func() { observer.OnWindowVanished(published) })
	}
}

func (c *X11Compositor) removeWindowLocked(id WindowID) {
	w, ok := c.windows[id]
	if !ok {
		return
	}
	delete(c.windows, id)
	delete(c.surfaces, w.leash.ID)
	for i, wid := range c.order {
		if wid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// StartTransition implements Compositor. Transitions that launch or close
// windows are delivered once those windows appeared or vanished.
func (c *X11Compositor) StartTransition(kind TransitionKind, batch *MutationBatch, handler TransitionHandler) ClaimToken {
	t := &x11Transition{
		token:    ClaimToken(uuid.NewString()),
		handler:  handler,
		set:      &ChangeSet{Kind: kind},
		byWindow: make(map[WindowID]*Change),
		launches: make(map[string]*x11Launch),
		closing:  make(map[WindowID]bool),
	}
	c.begin(t, batch)
	return t.token
}

func (c *X11Compositor) begin(t *x11Transition, batch *MutationBatch) {
	c.applyBatch(t, batch)

	c.mu.Lock()
	c.pending[t.token] = t
	ready := t.ready()
	if !ready {
		token := t.token
		t.timer = time.AfterFunc(c.launchTimeout, func() { c.expire(token) })
	}
	c.mu.Unlock()

	if ready {
		c.post(func() { c.deliver(t.token) })
	}
}

// request offers a user-initiated transition to h. Declined requests are
// left to the window manager.
func (c *X11Compositor) request(kind TransitionKind, id WindowID, h TransitionHandler) {
	c.mu.Lock()
	var trigger *WindowInfo
	if w, ok := c.windows[id]; ok {
		trigger = w.info.Clone()
	}
	c.mu.Unlock()
	if trigger == nil {
		return
	}

	token := ClaimToken(uuid.NewString())
	batch := h.HandleRequest(token, TransitionRequest{Kind: kind, Trigger: trigger})
	if batch == nil {
		return
	}
	batch.SetHidden(id, false)
	c.begin(&x11Transition{
		token:    token,
		handler:  h,
		set:      &ChangeSet{Kind: kind},
		byWindow: make(map[WindowID]*Change),
		launches: make(map[string]*x11Launch),
		closing:  make(map[WindowID]bool),
	}, batch)
}

func (c *X11Compositor) expire(token ClaimToken) {
	c.mu.Lock()
	t, ok := c.pending[token]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, token)
	vanished := t.vanished
	appeared := t.appeared
	observer := c.observer
	c.mu.Unlock()

	c.logger.Warn("transition timed out",
		"token", token,
		"waiting_launches", len(t.launches),
		"waiting_closes", len(t.closing))
	c.post(func() {
		if observer != nil {
			for _, w := range appeared {
				observer.OnWindowAppeared(w.info.Clone(), w.leash)
			}
		}
		t.handler.OnConsumed(token, true, nil)
		if observer != nil {
			for _, info := range vanished {
				observer.OnWindowVanished(info)
			}
		}
	})
}

// deliver hands a ready transition to its handler. Runs on the
// serialization context.
func (c *X11Compositor) deliver(token ClaimToken) {
	c.mu.Lock()
	t, ok := c.pending[token]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, token)
	if t.timer != nil {
		t.timer.Stop()
	}
	for id, ch := range t.byWindow {
		if ch.Mode == TransitClose {
			continue
		}
		w, ok := c.windows[id]
		if !ok {
			continue
		}
		ch.Window = w.info.Clone()
		ch.EndBounds = w.info.Bounds
		if surf := c.surfaces[w.leash.ID]; surf != nil {
			ch.Parent = surf.parent
		}
	}
	var changed []*WindowInfo
	for _, id := range t.changed {
		if w, ok := c.windows[id]; ok {
			changed = append(changed, w.info.Clone())
		}
	}
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		for _, w := range t.appeared {
			observer.OnWindowAppeared(w.info.Clone(), w.leash)
		}
		for _, info := range changed {
			observer.OnWindowInfoChanged(info)
		}
	}

	startT, finishT := NewTransaction(), NewTransaction()
	var once sync.Once
	finish := func(batch *MutationBatch) {
		once.Do(func() {
			if err := finishT.Apply(c); err != nil {
				c.logger.Warn("failed to apply finish transaction", "token", token, "error", err)
			}
			if err := c.ApplyBatch(batch); err != nil {
				c.logger.Warn("failed to apply finish batch", "token", token, "error", err)
			}
		})
	}
	if !t.handler.StartAnimation(token, t.set, startT, finishT, finish) {
		if err := startT.Apply(c); err != nil {
			c.logger.Warn("failed to apply start transaction", "token", token, "error", err)
		}
		finish(nil)
	}

	if observer != nil {
		for _, info := range t.vanished {
			observer.OnWindowVanished(info)
		}
	}
}

// applyBatch issues the X requests for batch and records the changes on t.
func (c *X11Compositor) applyBatch(t *x11Transition, batch *MutationBatch) {
	for _, op := range batch.Ops() {
		if op.Kind == BatchStartTask {
			c.spawn(t, op.Launch)
			continue
		}

		c.mu.Lock()
		w, ok := c.windows[op.Window]
		var hosted bool
		if ok {
			hosted = c.surfaces[w.leash.ID].parent != nil
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		xid := xproto.Window(op.Window)
		next := w.info.Clone()
		var err error
		var mode TransitionKind = -1

		switch op.Kind {
		case BatchSetHidden:
			next.Visible = !op.Flag
			if op.Flag {
				err, mode = c.conn.Unmap(xid), TransitToBack
			} else {
				err, mode = c.conn.Map(xid), TransitToFront
			}
		case BatchReorder:
			if op.Flag && !hosted {
				// Top-level windows are raised through the window manager
				// so stacking and focus stay consistent.
				err = c.conn.FocusWindow(uint32(xid))
			} else {
				err = c.conn.Restack(xid, op.Flag)
			}
			mode = TransitToBack
			if op.Flag {
				mode = TransitToFront
			}
		case BatchSetBounds:
			next.Bounds = op.Bounds
			if hosted {
				err = c.conn.Resize(xid, op.Bounds.Width, op.Bounds.Height)
			} else {
				err = c.conn.MoveResizeWindow(xid, op.Bounds.X, op.Bounds.Y, op.Bounds.Width, op.Bounds.Height)
			}
			mode = TransitChange
		case BatchSetMode:
			next.Mode = op.Mode
			err = c.conn.SetFullscreen(xid, op.Mode == ModeFullscreen)
			mode = TransitChange
		case BatchInterceptBack:
			next.InterceptBackPressed = op.Flag
		case BatchSetTrimmable:
			next.Trimmable = op.Flag
		case BatchRemoveTask:
			err = c.conn.CloseWindow(xid)
			c.mu.Lock()
			ch := t.touch(w, TransitClose)
			ch.Mode = TransitClose
			ch.Window = next
			t.closing[op.Window] = true
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("failed to close window", "window_id", op.Window, "error", err)
			}
			continue
		}
		if err != nil {
			c.logger.Warn("batch operation failed", "op", op.Kind.String(), "window_id", op.Window, "error", err)
		}

		c.mu.Lock()
		w.info = next
		if mode >= 0 {
			t.touch(w, mode)
		}
		c.mu.Unlock()
	}
}

func (c *X11Compositor) spawn(t *x11Transition, req *LaunchRequest) {
	if req == nil {
		return
	}
	l := &x11Launch{token: req.Token, req: *req}
	c.mu.Lock()
	t.launches[req.Token] = l
	c.mu.Unlock()

	if len(req.Command) == 0 {
		c.logger.Warn("launch without a command, waiting for a window to claim the token", "token", req.Token)
		return
	}
	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Env = append(os.Environ(), "DESKTOP_STARTUP_ID="+req.Token)
	if err := cmd.Start(); err != nil {
		c.logger.Error("failed to launch", "command", req.Command, "error", err)
		return
	}
	c.mu.Lock()
	l.pid = cmd.Process.Pid
	c.mu.Unlock()
	c.logger.Info("launched", "command", req.Command, "pid", cmd.Process.Pid, "token", req.Token)
	go func() { _ = cmd.Wait() }()
}

// ApplyBatch implements Compositor for mutations outside of a transition.
// Launches and closes are fire-and-forget here.
func (c *X11Compositor) ApplyBatch(batch *MutationBatch) error {
	if batch.Empty() {
		return nil
	}
	t := &x11Transition{
		set:      &ChangeSet{Kind: TransitChange},
		byWindow: make(map[WindowID]*Change),
		launches: make(map[string]*x11Launch),
		closing:  make(map[WindowID]bool),
	}
	c.applyBatch(t, batch)

	c.mu.Lock()
	var changed []*WindowInfo
	for _, id := range t.changed {
		if w, ok := c.windows[id]; ok {
			changed = append(changed, w.info.Clone())
		}
	}
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		for _, info := range changed {
			observer.OnWindowInfoChanged(info)
		}
	}
	return nil
}

// ApplyTransaction implements Compositor.
func (c *X11Compositor) ApplyTransaction(t *Transaction) error {
	return t.Apply(c)
}

// ApplySurfaceOp implements SurfaceApplier.
func (c *X11Compositor) ApplySurfaceOp(op SurfaceOp) error {
	c.mu.Lock()
	surf, ok := c.surfaces[op.Leash.ID]
	var parentXID xproto.Window
	if ok && op.Kind == OpReparent && op.Parent != nil {
		parent, pok := c.surfaces[op.Parent.ID]
		if !pok {
			c.mu.Unlock()
			return fmt.Errorf("parent %s: %w", op.Parent, ErrUnknownSurface)
		}
		parentXID = parent.xid
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownSurface
	}

	switch op.Kind {
	case OpReparent:
		if err := c.conn.Reparent(surf.xid, parentXID, surf.x, surf.y); err != nil {
			return err
		}
		c.mu.Lock()
		surf.parent = op.Parent
		c.mu.Unlock()
		return nil
	case OpPosition:
		if err := c.conn.Move(surf.xid, op.X, op.Y); err != nil {
			return err
		}
		c.mu.Lock()
		surf.x, surf.y = op.X, op.Y
		c.mu.Unlock()
		return nil
	case OpCrop:
		return c.conn.Resize(surf.xid, op.Crop.Width, op.Crop.Height)
	case OpShow:
		return c.conn.Map(surf.xid)
	case OpHide:
		return c.conn.Unmap(surf.xid)
	case OpAlpha:
		return c.conn.SetOpacity(surf.xid, op.Alpha)
	case OpLayer:
		return c.conn.Restack(surf.xid, op.Layer > 0)
	}
	return nil
}

// CreateContainer implements Compositor.
func (c *X11Compositor) CreateContainer(name string, bounds Rect) (*Leash, error) {
	xid, err := c.conn.CreateContainer(name, bounds.X, bounds.Y, bounds.Width, bounds.Height)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.newLeashLocked(0, name)
	c.surfaces[l.ID] = &x11Surface{leash: l, xid: xid, x: bounds.X, y: bounds.Y}
	return l, nil
}

// DestroyContainer implements Compositor.
func (c *X11Compositor) DestroyContainer(leash *Leash) error {
	if !leash.Valid() {
		return ErrUnknownSurface
	}
	c.mu.Lock()
	surf, ok := c.surfaces[leash.ID]
	if ok {
		delete(c.surfaces, leash.ID)
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownSurface
	}
	return c.conn.DestroyContainer(surf.xid)
}

// Windows implements Compositor.
func (c *X11Compositor) Windows() []*WindowInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*WindowInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.windows[id].info.Clone())
	}
	return out
}
