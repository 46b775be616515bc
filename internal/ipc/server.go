package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/viewhost/internal/config"
	"github.com/1broseidon/viewhost/internal/runtimepath"
)

// DefaultRequestTimeout bounds how long one request may wait on the daemon.
const DefaultRequestTimeout = 30 * time.Second

// Service is the daemon side of the protocol. Every method is called from a
// connection goroutine and must hand its work to the serialization context.
type Service interface {
	Status(ctx context.Context) (*StatusData, error)
	Dump(ctx context.Context) (*DumpData, error)
	ApplyConfig(ctx context.Context, cfg *config.Config) error

	CreateView(ctx context.Context, p ViewCreatePayload) error
	RemoveView(ctx context.Context, name string) error
	Launch(ctx context.Context, p ViewLaunchPayload) (*LaunchData, error)
	Convert(ctx context.Context, p ViewConvertPayload) error
	Exit(ctx context.Context, p ViewExitPayload) error
	SetBounds(ctx context.Context, p ViewBoundsPayload) error
	SetVisible(ctx context.Context, p ViewVisiblePayload) error
	Expand(ctx context.Context, name string) error
	Cancel(ctx context.Context, name string) error

	SimWindow(ctx context.Context, p SimWindowPayload) (*SimWindowData, error)
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	cfg          *config.Config
	cfgMu        sync.RWMutex
	service      Service
	logger       *slog.Logger
	timeout      time.Duration
	reloadChan   chan struct{}
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on the runtime socket path
func NewServer(cfg *config.Config, service Service, reloadChan chan struct{}, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, cfg, service, reloadChan, logger), nil
}

// NewServerAt creates a new IPC server on socketPath
func NewServerAt(socketPath string, cfg *config.Config, service Service, reloadChan chan struct{}, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		cfg:        cfg,
		service:    service,
		logger:     logger.With("component", "ipc"),
		timeout:    DefaultRequestTimeout,
		reloadChan: reloadChan,
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	// Accept connections
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	// Parse request
	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Handle command
	resp := s.handleCommand(ctx, req)

	// Send response
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	switch req.Command {
	case CommandReload:
		return s.handleReload(ctx)
	case CommandGetStatus:
		status, err := s.service.Status(ctx)
		return reply(status, err)
	case CommandDump:
		dump, err := s.service.Dump(ctx)
		return reply(dump, err)
	case CommandViewCreate:
		return handlePayload(req.Payload, func(p ViewCreatePayload) (any, error) {
			if p.Name == "" {
				return nil, fmt.Errorf("name is required")
			}
			return nil, s.service.CreateView(ctx, p)
		})
	case CommandViewRemove:
		return handleNamed(req.Payload, func(name string) error { return s.service.RemoveView(ctx, name) })
	case CommandViewLaunch:
		return handlePayload(req.Payload, func(p ViewLaunchPayload) (any, error) {
			if p.Name == "" {
				return nil, fmt.Errorf("name is required")
			}
			return s.service.Launch(ctx, p)
		})
	case CommandViewConvert:
		return handlePayload(req.Payload, func(p ViewConvertPayload) (any, error) {
			if p.Name == "" || p.WindowID == 0 {
				return nil, fmt.Errorf("name and window_id are required")
			}
			return nil, s.service.Convert(ctx, p)
		})
	case CommandViewExit:
		return handlePayload(req.Payload, func(p ViewExitPayload) (any, error) {
			if p.Name == "" {
				return nil, fmt.Errorf("name is required")
			}
			return nil, s.service.Exit(ctx, p)
		})
	case CommandViewBounds:
		return handlePayload(req.Payload, func(p ViewBoundsPayload) (any, error) {
			if p.Name == "" || p.Bounds == "" {
				return nil, fmt.Errorf("name and bounds are required")
			}
			return nil, s.service.SetBounds(ctx, p)
		})
	case CommandViewVisible:
		return handlePayload(req.Payload, func(p ViewVisiblePayload) (any, error) {
			if p.Name == "" {
				return nil, fmt.Errorf("name is required")
			}
			return nil, s.service.SetVisible(ctx, p)
		})
	case CommandViewExpand:
		return handleNamed(req.Payload, func(name string) error { return s.service.Expand(ctx, name) })
	case CommandViewCancel:
		return handleNamed(req.Payload, func(name string) error { return s.service.Cancel(ctx, name) })
	case CommandSimWindow:
		return handlePayload(req.Payload, func(p SimWindowPayload) (any, error) {
			if p.Action == "" {
				return nil, fmt.Errorf("action is required")
			}
			return s.service.SimWindow(ctx, p)
		})
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// handleReload reloads the configuration
func (s *Server) handleReload(ctx context.Context) *Response {
	s.logger.Info("received RELOAD command")

	// Load new config
	newCfg, err := config.Load()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	if err := s.service.ApplyConfig(ctx, newCfg); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to apply config: %v", err))
	}

	// Update config atomically
	s.cfgMu.Lock()
	s.cfg = newCfg
	s.cfgMu.Unlock()

	// Notify the main daemon via channel (non-blocking)
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}

	s.logger.Info("config reloaded successfully")

	resp, _ := NewOKResponse(nil)
	return resp
}

func reply(data any, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func handlePayload[P any](payload json.RawMessage, fn func(P) (any, error)) *Response {
	var p P
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
		}
	}
	data, err := fn(p)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func handleNamed(payload json.RawMessage, fn func(name string) error) *Response {
	return handlePayload(payload, func(p ViewPayload) (any, error) {
		if p.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		return nil, fn(p.Name)
	})
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

// GetConfig returns the current config (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig updates the config (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}
