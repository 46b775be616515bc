package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// CreateContainer creates and maps an undecorated top-level window that
// hosted client windows are reparented into.
func (c *Connection) CreateContainer(name string, x, y, width, height int) (xproto.Window, error) {
	if width < 1 || height < 1 {
		return 0, fmt.Errorf("invalid container size %dx%d", width, height)
	}
	conn := c.XUtil.Conn()
	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate window id: %w", err)
	}

	screen := c.XUtil.Screen()
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		c.Root,
		int16(x), int16(y), uint16(width), uint16(height),
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{screen.BlackPixel, xproto.EventMaskStructureNotify | xproto.EventMaskSubstructureNotify},
	).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create container window: %w", err)
	}

	if err := icccm.WmNameSet(c.XUtil, wid, name); err != nil {
		return 0, err
	}
	_ = ewmh.WmNameSet(c.XUtil, wid, name)
	_ = ewmh.WmWindowTypeSet(c.XUtil, wid, []string{"_NET_WM_WINDOW_TYPE_UTILITY"})

	if err := c.Map(wid); err != nil {
		return 0, err
	}
	return wid, nil
}

// DestroyContainer destroys a window created by CreateContainer. Children
// still inside it are reparented to the root first so they survive.
func (c *Connection) DestroyContainer(windowID xproto.Window) error {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), windowID).Reply()
	if err == nil {
		for _, child := range tree.Children {
			_ = c.Reparent(child, 0, 0, 0)
		}
	}
	return xproto.DestroyWindowChecked(c.XUtil.Conn(), windowID).Check()
}
