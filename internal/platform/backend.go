package platform

import (
	"fmt"
	"strings"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the rect covers no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Size returns the rect moved to the origin.
func (r Rect) Size() Rect {
	return Rect{Width: r.Width, Height: r.Height}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// ParseRect parses the WxH+X+Y form produced by Rect.String.
func ParseRect(s string) (Rect, error) {
	var r Rect
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%dx%d+%d+%d", &r.Width, &r.Height, &r.X, &r.Y); err != nil {
		return Rect{}, fmt.Errorf("invalid bounds %q (want WxH+X+Y): %w", s, err)
	}
	if r.Empty() {
		return Rect{}, fmt.Errorf("invalid bounds %q: width and height must be positive", s)
	}
	return r, nil
}

// WindowingMode is the coarse category a window is displayed in.
type WindowingMode int

const (
	ModeUndefined WindowingMode = iota
	ModeFullscreen
	ModeMultiWindow
	ModePinned
	ModeFreeform
)

var modeNames = map[WindowingMode]string{
	ModeUndefined:   "undefined",
	ModeFullscreen:  "fullscreen",
	ModeMultiWindow: "multi-window",
	ModePinned:      "pinned",
	ModeFreeform:    "freeform",
}

// String returns the config/wire name of the mode.
func (m WindowingMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseWindowingMode maps a config/wire name back to a mode.
func ParseWindowingMode(s string) (WindowingMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeUndefined, fmt.Errorf("unknown windowing mode %q", s)
}

// WindowInfo describes a live window as last reported by the compositor.
// It is replaced wholesale on every change; holders must not mutate a
// published value, use Clone instead.
type WindowInfo struct {
	ID       WindowID
	ParentID WindowID // 0 when the window has no parent
	Title    string
	Visible  bool
	Focused  bool
	Bounds   Rect
	Mode     WindowingMode

	// LaunchToken is the one-shot token the window was started with, if any.
	LaunchToken string
	// Locus keys side-channel visibility listeners; empty means untracked.
	Locus string

	IsHome               bool
	InterceptBackPressed bool
	Trimmable            bool
}

// Clone returns a copy that may be modified freely.
func (w *WindowInfo) Clone() *WindowInfo {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

// Leash is a reference to a compositor-managed drawable region. Application
// code only holds it; reparenting or destroying it goes through transactions.
type Leash struct {
	ID     uint64
	Window WindowID // 0 for containers and overlays
	Name   string
}

// Valid reports whether the leash refers to a surface.
func (l *Leash) Valid() bool {
	return l != nil && l.ID != 0
}

func (l *Leash) String() string {
	if !l.Valid() {
		return "leash(nil)"
	}
	if l.Name != "" {
		return fmt.Sprintf("leash(%d %s)", l.ID, l.Name)
	}
	return fmt.Sprintf("leash(%d win=%d)", l.ID, l.Window)
}

// LeashBuilder collects the parameters of a child surface before creation.
type LeashBuilder struct {
	Name   string
	Parent *Leash
}
