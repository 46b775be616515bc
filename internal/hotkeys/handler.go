package hotkeys

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Handler manages global keyboard shortcuts on one X connection.
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var initOnce sync.Once

// NewHandler prepares keyboard grabs on the root window of xu.
func NewHandler(xu *xgbutil.XUtil, root xproto.Window) *Handler {
	initOnce.Do(func() {
		keybind.Initialize(xu)
		configureIgnoreMods(xu)
	})
	return &Handler{xu: xu, root: root}
}

// Register grabs keySequence (xgbutil syntax, e.g. "Mod4-BackSpace") and
// runs callback on the X event goroutine for every press.
func (h *Handler) Register(keySequence string, callback func()) error {
	if keySequence == "" {
		return fmt.Errorf("empty key sequence")
	}
	err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
	if err != nil {
		return fmt.Errorf("failed to grab %q: %w", keySequence, err)
	}
	return nil
}

// Unregister releases every grab made on the root window.
func (h *Handler) Unregister() {
	keybind.Detach(h.xu, h.root)
}

// configureIgnoreMods makes grabs fire regardless of lock modifiers.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	xevent.IgnoreMods = ignoreMasks(base)
}

// ignoreMasks returns every combination of the given modifier masks,
// including the empty one.
func ignoreMasks(base []uint16) []uint16 {
	unique := make(map[uint16]struct{})
	unique[0] = struct{}{}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	return ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
