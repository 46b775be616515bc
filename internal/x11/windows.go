package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const (
	stateFullscreen = "_NET_WM_STATE_FULLSCREEN"
	stateHidden     = "_NET_WM_STATE_HIDDEN"
)

// Geometry is a window's position in root coordinates.
type Geometry struct {
	X, Y, Width, Height int
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// Maximized windows ignore move requests on most window managers.
	_ = c.unmaximizeWindow(windowID)

	err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height)
	if err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// unmaximizeWindow removes maximized state from a window
func (c *Connection) unmaximizeWindow(windowID xproto.Window) error {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return err
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, state)
		}
	}
	return nil
}

// SetFullscreen adds or removes the EWMH fullscreen state.
func (c *Connection) SetFullscreen(windowID xproto.Window, on bool) error {
	action := ewmh.StateRemove
	if on {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReq(c.XUtil, windowID, action, stateFullscreen)
}

// IsFullscreen reports whether the window carries the fullscreen state.
func (c *Connection) IsFullscreen(windowID xproto.Window) bool {
	return c.hasState(windowID, stateFullscreen)
}

// IsHidden reports whether the window manager marked the window hidden.
func (c *Connection) IsHidden(windowID xproto.Window) bool {
	return c.hasState(windowID, stateHidden)
}

func (c *Connection) hasState(windowID xproto.Window, want string) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == want {
			return true
		}
	}
	return false
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		// Reject desktop, dock, splash, etc.
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

// IsTransient reports the window a dialog is transient for, or 0.
func (c *Connection) IsTransient(windowID xproto.Window) xproto.Window {
	parent, err := icccm.WmTransientForGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return parent
}

// GetActiveWindow returns the window named by _NET_ACTIVE_WINDOW.
func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// ClientList returns the managed top-level windows.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	return ewmh.ClientListGet(c.XUtil)
}

// WindowGeometry returns the window's geometry in root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (Geometry, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, err
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// WindowTitle returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// StartupID returns the _NET_STARTUP_ID the window was launched with.
func (c *Connection) StartupID(windowID xproto.Window) string {
	id, err := xprop.PropValStr(xprop.GetProperty(c.XUtil, windowID, "_NET_STARTUP_ID"))
	if err != nil {
		return ""
	}
	return id
}

// WindowPID returns _NET_WM_PID, or 0.
func (c *Connection) WindowPID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}

// Map shows a window.
func (c *Connection) Map(windowID xproto.Window) error {
	return xproto.MapWindowChecked(c.XUtil.Conn(), windowID).Check()
}

// Unmap hides a window without destroying it.
func (c *Connection) Unmap(windowID xproto.Window) error {
	return xproto.UnmapWindowChecked(c.XUtil.Conn(), windowID).Check()
}

// Restack raises the window to the top, or lowers it to the bottom.
func (c *Connection) Restack(windowID xproto.Window, toTop bool) error {
	mode := uint32(xproto.StackModeBelow)
	if toTop {
		mode = xproto.StackModeAbove
	}
	return xproto.ConfigureWindowChecked(c.XUtil.Conn(), windowID,
		xproto.ConfigWindowStackMode, []uint32{mode}).Check()
}

// Reparent moves windowID under parent at (x, y). A zero parent is the root.
func (c *Connection) Reparent(windowID, parent xproto.Window, x, y int) error {
	if parent == 0 {
		parent = c.Root
	}
	return xproto.ReparentWindowChecked(c.XUtil.Conn(), windowID, parent, int16(x), int16(y)).Check()
}

// Move positions a window relative to its parent.
func (c *Connection) Move(windowID xproto.Window, x, y int) error {
	return xproto.ConfigureWindowChecked(c.XUtil.Conn(), windowID,
		xproto.ConfigWindowX|xproto.ConfigWindowY, []uint32{uint32(int32(x)), uint32(int32(y))}).Check()
}

// Resize changes a window's size without moving it.
func (c *Connection) Resize(windowID xproto.Window, width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("invalid size %dx%d", width, height)
	}
	return xproto.ConfigureWindowChecked(c.XUtil.Conn(), windowID,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight, []uint32{uint32(width), uint32(height)}).Check()
}

// SetOpacity sets _NET_WM_WINDOW_OPACITY. Compositing managers honour it.
func (c *Connection) SetOpacity(windowID xproto.Window, alpha float32) error {
	if alpha < 0 {
		alpha = 0
	}
	if alpha >= 1 {
		return xprop.ChangeProp32(c.XUtil, windowID, "_NET_WM_WINDOW_OPACITY", "CARDINAL", 0xffffffff)
	}
	return xprop.ChangeProp32(c.XUtil, windowID, "_NET_WM_WINDOW_OPACITY", "CARDINAL", uint(float64(alpha)*0xffffffff))
}

// CloseWindow requests graceful window close via WM_DELETE_WINDOW.
func (c *Connection) CloseWindow(windowID xproto.Window) error {
	deleteReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_DELETE_WINDOW")), "WM_DELETE_WINDOW").Reply()
	if err != nil {
		return err
	}
	protocolsReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_PROTOCOLS")), "WM_PROTOCOLS").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   protocolsReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(deleteReply.Atom), 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		windowID,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}
