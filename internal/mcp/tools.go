package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/viewhost/internal/ipc"
)

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("view name is required")
	}
	return name, nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	status, err := s.client.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, err
	}
	return nil, *status, nil
}

func (s *Server) handleDumpState(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ipc.DumpData, error) {
	dump, err := s.client.Dump()
	if err != nil {
		return nil, ipc.DumpData{}, err
	}
	return nil, *dump, nil
}

func (s *Server) handleListViews(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListViewsOutput, error) {
	dump, err := s.client.Dump()
	if err != nil {
		return nil, ListViewsOutput{}, err
	}
	views := dump.Views
	if views == nil {
		views = []ipc.ViewData{}
	}
	return nil, ListViewsOutput{Views: views}, nil
}

func (s *Server) handleCreateView(_ context.Context, _ *mcpsdk.CallToolRequest, args CreateViewInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.CreateView(name, strings.TrimSpace(args.Bounds)); err != nil {
		return nil, AckOutput{}, err
	}
	s.logger.Info("view created", "view", name, "bounds", args.Bounds)
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleRemoveView(_ context.Context, _ *mcpsdk.CallToolRequest, args ViewInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.RemoveView(name); err != nil {
		return nil, AckOutput{}, err
	}
	s.logger.Info("view removed", "view", name)
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleLaunch(_ context.Context, _ *mcpsdk.CallToolRequest, args LaunchInput) (*mcpsdk.CallToolResult, LaunchOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, LaunchOutput{}, err
	}
	if args.Wait && !args.Animate {
		return nil, LaunchOutput{}, fmt.Errorf("wait requires animate")
	}
	data, err := s.client.Launch(ipc.ViewLaunchPayload{
		Name:    name,
		Command: strings.TrimSpace(args.Command),
		Animate: args.Animate,
		Expand:  args.Expand,
		Wait:    args.Wait,
	})
	if err != nil {
		return nil, LaunchOutput{}, err
	}
	s.logger.Info("launch requested", "view", name, "token", data.Token, "animate", args.Animate)
	return nil, LaunchOutput{Token: data.Token, Done: data.Done}, nil
}

func (s *Server) handleConvert(_ context.Context, _ *mcpsdk.CallToolRequest, args ConvertInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if args.WindowID == 0 {
		return nil, AckOutput{}, fmt.Errorf("window_id is required")
	}
	if err := s.client.Convert(name, args.WindowID, args.Wait); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleExit(_ context.Context, _ *mcpsdk.CallToolRequest, args ExitInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.Exit(name, strings.TrimSpace(args.Bounds), args.Wait); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleSetBounds(_ context.Context, _ *mcpsdk.CallToolRequest, args BoundsInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	bounds := strings.TrimSpace(args.Bounds)
	if bounds == "" {
		return nil, AckOutput{}, fmt.Errorf("bounds is required")
	}
	if err := s.client.SetBounds(name, bounds); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleSetVisible(_ context.Context, _ *mcpsdk.CallToolRequest, args VisibleInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.SetVisible(name, args.Visible, args.Reorder); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleExpand(_ context.Context, _ *mcpsdk.CallToolRequest, args ViewInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.Expand(name); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

func (s *Server) handleCancel(_ context.Context, _ *mcpsdk.CallToolRequest, args ViewInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, AckOutput{}, err
	}
	if err := s.client.Cancel(name); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{Name: name, OK: true}, nil
}

// viewIdle reports whether nothing is queued or converting for the view.
func viewIdle(dump *ipc.DumpData, name string) bool {
	for _, q := range dump.Queue {
		if q.View == name {
			return false
		}
	}
	for _, c := range dump.Conversions {
		if c.View == name {
			return false
		}
	}
	return true
}

func waitCondition(condition, name string) (func(*ipc.DumpData, ipc.ViewData) bool, error) {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case WaitPlaced:
		return func(_ *ipc.DumpData, v ipc.ViewData) bool { return v.Placed }, nil
	case WaitVisible:
		return func(_ *ipc.DumpData, v ipc.ViewData) bool { return v.TaskID != 0 && v.TaskVisible }, nil
	case WaitHidden:
		return func(_ *ipc.DumpData, v ipc.ViewData) bool { return v.TaskID != 0 && !v.TaskVisible }, nil
	case WaitEmpty:
		return func(_ *ipc.DumpData, v ipc.ViewData) bool { return v.TaskID == 0 }, nil
	case WaitNotFound:
		return func(_ *ipc.DumpData, v ipc.ViewData) bool { return v.NotFound > 0 }, nil
	case WaitIdle:
		return func(d *ipc.DumpData, _ ipc.ViewData) bool { return viewIdle(d, name) }, nil
	default:
		return nil, fmt.Errorf("unknown condition %q; expected one of %s, %s, %s, %s, %s, %s",
			condition, WaitPlaced, WaitVisible, WaitHidden, WaitEmpty, WaitNotFound, WaitIdle)
	}
}

func (s *Server) handleWaitForView(ctx context.Context, _ *mcpsdk.CallToolRequest, args WaitForViewInput) (*mcpsdk.CallToolResult, WaitForViewOutput, error) {
	name, err := requireName(args.Name)
	if err != nil {
		return nil, WaitForViewOutput{}, err
	}
	check, err := waitCondition(args.Condition, name)
	if err != nil {
		return nil, WaitForViewOutput{}, err
	}
	view, met, err := s.waitForView(ctx, name, time.Duration(args.Timeout)*time.Second, check)
	if err != nil {
		return nil, WaitForViewOutput{}, err
	}
	if !met {
		s.logger.Debug("wait for view timed out", "view", name, "condition", args.Condition)
	}
	return nil, WaitForViewOutput{Met: met, View: view}, nil
}

func (s *Server) handleSimWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args SimWindowInput) (*mcpsdk.CallToolResult, ipc.SimWindowData, error) {
	data, err := s.client.SimWindow(ipc.SimWindowPayload{
		Action:   strings.TrimSpace(args.Action),
		WindowID: args.WindowID,
		ParentID: args.ParentID,
		Mode:     args.Mode,
		Bounds:   args.Bounds,
		Title:    args.Title,
		Locus:    args.Locus,
		Home:     args.Home,
		Hidden:   args.Hidden,
		Token:    args.Token,
	})
	if err != nil {
		return nil, ipc.SimWindowData{}, err
	}
	return nil, *data, nil
}
