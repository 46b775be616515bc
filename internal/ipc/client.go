package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/viewhost/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the daemon listening on socketPath
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SetTimeout changes the per-request deadline. Requests that wait for a
// conversion need more than the default.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends command with payload and decodes the response data into out
// when out is non-nil.
func (c *Client) call(command CommandType, payload any, out any) error {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Dump retrieves the registry, views, queue and conversions
func (c *Client) Dump() (*DumpData, error) {
	var dump DumpData
	if err := c.call(CommandDump, nil, &dump); err != nil {
		return nil, err
	}
	return &dump, nil
}

// CreateView creates a named container at bounds (WxH+X+Y)
func (c *Client) CreateView(name, bounds string) error {
	return c.call(CommandViewCreate, ViewCreatePayload{Name: name, Bounds: bounds}, nil)
}

// RemoveView closes a view's task and releases the view
func (c *Client) RemoveView(name string) error {
	return c.call(CommandViewRemove, ViewPayload{Name: name}, nil)
}

// Launch starts a new window in a view
func (c *Client) Launch(p ViewLaunchPayload) (*LaunchData, error) {
	var data LaunchData
	if err := c.call(CommandViewLaunch, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Convert moves an existing window into a view
func (c *Client) Convert(name string, windowID uint32, wait bool) error {
	return c.call(CommandViewConvert, ViewConvertPayload{Name: name, WindowID: windowID, Wait: wait}, nil)
}

// Exit takes a view's window out of its container
func (c *Client) Exit(name, bounds string, wait bool) error {
	return c.call(CommandViewExit, ViewExitPayload{Name: name, Bounds: bounds, Wait: wait}, nil)
}

// SetBounds resizes a view
func (c *Client) SetBounds(name, bounds string) error {
	return c.call(CommandViewBounds, ViewBoundsPayload{Name: name, Bounds: bounds}, nil)
}

// SetVisible shows or hides a view's window
func (c *Client) SetVisible(name string, visible, reorder bool) error {
	return c.call(CommandViewVisible, ViewVisiblePayload{Name: name, Visible: visible, Reorder: reorder}, nil)
}

// Expand raises the ready-to-expand signal of a view's launch
func (c *Client) Expand(name string) error {
	return c.call(CommandViewExpand, ViewPayload{Name: name}, nil)
}

// Cancel unwinds whatever conversion is in flight for a view
func (c *Client) Cancel(name string) error {
	return c.call(CommandViewCancel, ViewPayload{Name: name}, nil)
}

// SimWindow drives the simulated compositor
func (c *Client) SimWindow(p SimWindowPayload) (*SimWindowData, error) {
	var data SimWindowData
	if err := c.call(CommandSimWindow, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
