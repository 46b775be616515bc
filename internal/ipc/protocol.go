package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandDump        CommandType = "DUMP"
	CommandViewCreate  CommandType = "VIEW_CREATE"
	CommandViewRemove  CommandType = "VIEW_REMOVE"
	CommandViewLaunch  CommandType = "VIEW_LAUNCH"
	CommandViewConvert CommandType = "VIEW_CONVERT"
	CommandViewExit    CommandType = "VIEW_EXIT"
	CommandViewBounds  CommandType = "VIEW_BOUNDS"
	CommandViewVisible CommandType = "VIEW_VISIBLE"
	CommandViewExpand  CommandType = "VIEW_EXPAND"
	CommandViewCancel  CommandType = "VIEW_CANCEL"
	CommandSimWindow   CommandType = "SIM_WINDOW"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning bool   `json:"daemon_running"`
	Compositor    string `json:"compositor"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Windows       int    `json:"windows"`
	Views         int    `json:"views"`
	QueueLength   int    `json:"queue_length"`
	Conversions   int    `json:"conversions"`
}

// WindowData is one registry entry.
type WindowData struct {
	ID       uint32 `json:"id"`
	ParentID uint32 `json:"parent_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Mode     string `json:"mode"`
	Bounds   string `json:"bounds"`
	Visible  bool   `json:"visible"`
	Focused  bool   `json:"focused,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Source   string `json:"source"`
}

// ViewData is one hosted view.
type ViewData struct {
	Name           string `json:"name"`
	Bounds         string `json:"bounds"`
	Surface        string `json:"surface"`
	ContentVisible bool   `json:"content_visible"`
	TaskID         uint32 `json:"task_id,omitempty"`
	TaskVisible    bool   `json:"task_visible"`
	Placed         bool   `json:"placed"`
	NeedsPlacement bool   `json:"needs_placement,omitempty"`
	LaunchToken    string `json:"launch_token,omitempty"`
	NotFound       int    `json:"not_found,omitempty"`
	BackPresses    int    `json:"back_presses,omitempty"`
}

// QueueEntry is one queued transition.
type QueueEntry struct {
	View        string `json:"view,omitempty"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	Claim       string `json:"claim,omitempty"`
	LaunchToken string `json:"launch_token,omitempty"`
	External    bool   `json:"external,omitempty"`
}

// ConversionData is one in-flight conversion.
type ConversionData struct {
	View  string `json:"view"`
	Kind  string `json:"kind"`
	Phase string `json:"phase"`
	Gates string `json:"gates,omitempty"`
	Claim string `json:"claim,omitempty"`
}

// DumpData represents the data returned by DUMP
type DumpData struct {
	Status      StatusData       `json:"status"`
	Focused     uint32           `json:"focused,omitempty"`
	Windows     []WindowData     `json:"windows"`
	Views       []ViewData       `json:"views"`
	Queue       []QueueEntry     `json:"queue"`
	Conversions []ConversionData `json:"conversions"`
}

// ViewPayload names a view. Used by VIEW_REMOVE, VIEW_EXPAND and VIEW_CANCEL.
type ViewPayload struct {
	Name string `json:"name"`
}

// ViewCreatePayload represents the payload for VIEW_CREATE
type ViewCreatePayload struct {
	Name   string `json:"name"`
	Bounds string `json:"bounds"` // WxH+X+Y
}

// ViewLaunchPayload represents the payload for VIEW_LAUNCH
type ViewLaunchPayload struct {
	Name    string `json:"name"`
	Command string `json:"command,omitempty"`
	// Token overrides the generated launch token.
	Token string `json:"token,omitempty"`
	// Animate runs the launch as a conversion; otherwise it goes straight
	// through the transition queue.
	Animate bool `json:"animate,omitempty"`
	Expand  bool `json:"expand,omitempty"`
	// Wait blocks the reply until an animated launch finished or failed.
	Wait bool `json:"wait,omitempty"`
}

// LaunchData represents the data returned by VIEW_LAUNCH
type LaunchData struct {
	Token string `json:"token"`
	Done  bool   `json:"done,omitempty"`
}

// ViewConvertPayload represents the payload for VIEW_CONVERT
type ViewConvertPayload struct {
	Name     string `json:"name"`
	WindowID uint32 `json:"window_id"`
	Wait     bool   `json:"wait,omitempty"`
}

// ViewExitPayload represents the payload for VIEW_EXIT
type ViewExitPayload struct {
	Name   string `json:"name"`
	Bounds string `json:"bounds,omitempty"` // empty means the whole display
	Wait   bool   `json:"wait,omitempty"`
}

// ViewBoundsPayload represents the payload for VIEW_BOUNDS
type ViewBoundsPayload struct {
	Name   string `json:"name"`
	Bounds string `json:"bounds"`
}

// ViewVisiblePayload represents the payload for VIEW_VISIBLE
type ViewVisiblePayload struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Reorder bool   `json:"reorder,omitempty"`
}

// Sim window actions.
const (
	SimAdd        = "add"
	SimUpdate     = "update"
	SimRemove     = "remove"
	SimBack       = "back"
	SimFront      = "front"
	SimFailLaunch = "fail-launch"
)

// SimWindowPayload represents the payload for SIM_WINDOW
type SimWindowPayload struct {
	Action   string `json:"action"`
	WindowID uint32 `json:"window_id,omitempty"`
	ParentID uint32 `json:"parent_id,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Bounds   string `json:"bounds,omitempty"`
	Title    string `json:"title,omitempty"`
	Locus    string `json:"locus,omitempty"`
	Home     bool   `json:"home,omitempty"`
	Hidden   bool   `json:"hidden,omitempty"`
	Token    string `json:"token,omitempty"`
}

// SimWindowData represents the data returned by SIM_WINDOW
type SimWindowData struct {
	WindowID uint32 `json:"window_id,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
