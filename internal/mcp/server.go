package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/viewhost/internal/ipc"
)

const (
	ServerName    = "viewhost"
	ServerVersion = "0.1.0"
)

// DaemonClient is the part of the IPC client the tools use.
type DaemonClient interface {
	GetStatus() (*ipc.StatusData, error)
	Dump() (*ipc.DumpData, error)
	CreateView(name, bounds string) error
	RemoveView(name string) error
	Launch(p ipc.ViewLaunchPayload) (*ipc.LaunchData, error)
	Convert(name string, windowID uint32, wait bool) error
	Exit(name, bounds string, wait bool) error
	SetBounds(name, bounds string) error
	SetVisible(name string, visible, reorder bool) error
	Expand(name string) error
	Cancel(name string) error
	SimWindow(p ipc.SimWindowPayload) (*ipc.SimWindowData, error)
}

var _ DaemonClient = (*ipc.Client)(nil)

// Server is the MCP server exposing the viewhost daemon as tools.
type Server struct {
	mcpServer *mcpsdk.Server
	client    DaemonClient
	logger    *slog.Logger

	pollInterval time.Duration
}

// NewServer creates an MCP server that forwards tool calls to the daemon.
func NewServer(client DaemonClient, logger *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, fmt.Errorf("daemon client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		client:       client,
		logger:       logger.With("component", "mcp"),
		pollInterval: 250 * time.Millisecond,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report whether the viewhost daemon is running, which compositor it drives and how many windows, views, queued transitions and conversions it tracks.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "dump_state",
		Description: "Return the full daemon state: every known window with its owner, every hosted view, the transition queue and in-flight conversions.",
	}, s.handleDumpState)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_views",
		Description: "List hosted views with their bounds, hosted window and visibility.",
	}, s.handleListViews)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "create_view",
		Description: "Create a named view: a container surface that can host one window.",
	}, s.handleCreateView)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_view",
		Description: "Close the view's window and release the view once the window is gone.",
	}, s.handleRemoveView)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "launch_in_view",
		Description: "Start a new window inside a view. With animate the launch runs as a conversion that waits for expand before completing. Returns the launch token.",
	}, s.handleLaunch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "convert_window",
		Description: "Move an existing fullscreen window into a view with the enter animation.",
	}, s.handleConvert)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "exit_view",
		Description: "Take a view's window out of its container and back to fullscreen.",
	}, s.handleExit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_view_bounds",
		Description: "Move or resize a view and the window it hosts.",
	}, s.handleSetBounds)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_view_visible",
		Description: "Show or hide the window hosted by a view.",
	}, s.handleSetVisible)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "expand_view",
		Description: "Signal that the view is ready to expand so a pending animated launch can finish.",
	}, s.handleExpand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cancel_conversion",
		Description: "Unwind whatever conversion is in flight for a view.",
	}, s.handleCancel)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "wait_for_view",
		Description: "Poll the daemon until a view reaches a condition (placed, visible, hidden, empty, not_found or idle) or the timeout elapses.",
	}, s.handleWaitForView)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sim_window",
		Description: "Drive the simulated compositor: add, update, remove or raise windows, press back, or fail a launch. Only available when the daemon runs the sim compositor.",
	}, s.handleSimWindow)
}

// waitForView polls the daemon until check accepts the named view.
func (s *Server) waitForView(ctx context.Context, name string, timeout time.Duration, check func(*ipc.DumpData, ipc.ViewData) bool) (ipc.ViewData, bool, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := s.pollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	lookup := func() (ipc.ViewData, bool, error) {
		dump, err := s.client.Dump()
		if err != nil {
			return ipc.ViewData{}, false, err
		}
		for _, v := range dump.Views {
			if v.Name == name {
				return v, check(dump, v), nil
			}
		}
		return ipc.ViewData{}, false, fmt.Errorf("no such view %q", name)
	}

	// Fast path: already there.
	if v, ok, err := lookup(); err != nil || ok {
		return v, ok, err
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ipc.ViewData{}, false, ctx.Err()
		case <-ticker.C:
			if v, ok, err := lookup(); err != nil || ok {
				return v, ok, err
			}
		case <-timer.C:
			v, ok, err := lookup()
			return v, ok, err
		}
	}
}
