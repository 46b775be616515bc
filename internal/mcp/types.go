package mcp

import "github.com/1broseidon/viewhost/internal/ipc"

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// ViewInput names a view.
type ViewInput struct {
	Name string `json:"name" jsonschema:"required,Name of the view"`
}

// CreateViewInput is the input for the create_view tool.
type CreateViewInput struct {
	Name   string `json:"name" jsonschema:"required,Name of the new view"`
	Bounds string `json:"bounds,omitempty" jsonschema:"Container geometry as WxH+X+Y (default: the whole display)"`
}

// LaunchInput is the input for the launch_in_view tool.
type LaunchInput struct {
	Name    string `json:"name" jsonschema:"required,Name of the view to launch into"`
	Command string `json:"command,omitempty" jsonschema:"Command line to start; split on whitespace"`
	Animate bool   `json:"animate,omitempty" jsonschema:"Run the launch as an animated conversion instead of a plain queued launch"`
	Expand  bool   `json:"expand,omitempty" jsonschema:"Signal ready-to-expand right away so the animation can complete"`
	Wait    bool   `json:"wait,omitempty" jsonschema:"Block until an animated launch finished or failed"`
}

// LaunchOutput is the output for the launch_in_view tool.
type LaunchOutput struct {
	Token string `json:"token"`
	Done  bool   `json:"done"`
}

// ConvertInput is the input for the convert_window tool.
type ConvertInput struct {
	Name     string `json:"name" jsonschema:"required,Name of the view that takes the window"`
	WindowID uint32 `json:"window_id" jsonschema:"required,ID of a fullscreen window owned by the fullscreen listener"`
	Wait     bool   `json:"wait,omitempty" jsonschema:"Block until the conversion finished"`
}

// ExitInput is the input for the exit_view tool.
type ExitInput struct {
	Name   string `json:"name" jsonschema:"required,Name of the view whose window leaves"`
	Bounds string `json:"bounds,omitempty" jsonschema:"Final geometry as WxH+X+Y (default: the whole display)"`
	Wait   bool   `json:"wait,omitempty" jsonschema:"Block until the window is fullscreen again"`
}

// BoundsInput is the input for the set_view_bounds tool.
type BoundsInput struct {
	Name   string `json:"name" jsonschema:"required,Name of the view"`
	Bounds string `json:"bounds" jsonschema:"required,New geometry as WxH+X+Y"`
}

// VisibleInput is the input for the set_view_visible tool.
type VisibleInput struct {
	Name    string `json:"name" jsonschema:"required,Name of the view"`
	Visible bool   `json:"visible" jsonschema:"required,Whether the view's window should be visible"`
	Reorder bool   `json:"reorder,omitempty" jsonschema:"Also raise or lower the window in z-order"`
}

// AckOutput is the output for tools that only report success.
type AckOutput struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

// ListViewsOutput is the output for the list_views tool.
type ListViewsOutput struct {
	Views []ipc.ViewData `json:"views"`
}

// Wait conditions for the wait_for_view tool.
const (
	WaitPlaced   = "placed"
	WaitVisible  = "visible"
	WaitHidden   = "hidden"
	WaitEmpty    = "empty"
	WaitNotFound = "not_found"
	WaitIdle     = "idle"
)

// WaitForViewInput is the input for the wait_for_view tool.
type WaitForViewInput struct {
	Name      string `json:"name" jsonschema:"required,Name of the view to watch"`
	Condition string `json:"condition" jsonschema:"required,One of placed, visible, hidden, empty, not_found, idle (no queued transition or conversion for the view)"`
	Timeout   int    `json:"timeout,omitempty" jsonschema:"Timeout in seconds (default: 30)"`
}

// WaitForViewOutput is the output for the wait_for_view tool.
type WaitForViewOutput struct {
	Met  bool         `json:"met"`
	View ipc.ViewData `json:"view"`
}

// SimWindowInput is the input for the sim_window tool.
type SimWindowInput struct {
	Action   string `json:"action" jsonschema:"required,One of add, update, remove, back, front, fail-launch"`
	WindowID uint32 `json:"window_id,omitempty" jsonschema:"Window to act on; required for everything except add and fail-launch"`
	ParentID uint32 `json:"parent_id,omitempty" jsonschema:"Parent window for add"`
	Mode     string `json:"mode,omitempty" jsonschema:"Windowing mode: fullscreen, multi-window, pinned or freeform"`
	Bounds   string `json:"bounds,omitempty" jsonschema:"Geometry as WxH+X+Y"`
	Title    string `json:"title,omitempty" jsonschema:"Window title"`
	Locus    string `json:"locus,omitempty" jsonschema:"Locus key for visibility listeners"`
	Home     bool   `json:"home,omitempty" jsonschema:"Mark the window as the home screen"`
	Hidden   bool   `json:"hidden,omitempty" jsonschema:"Create or update the window as hidden"`
	Token    string `json:"token,omitempty" jsonschema:"Launch token; required for fail-launch"`
}
