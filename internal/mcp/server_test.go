package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/viewhost/internal/ipc"
)

type fakeClient struct {
	mu       sync.Mutex
	dumps    []*ipc.DumpData // returned in order; the last one repeats
	dumpErr  error
	launches []ipc.ViewLaunchPayload
	created  map[string]string
	removed  []string
	visible  map[string]bool
	sims     []ipc.SimWindowPayload
	failWith error
}

func newFakeClient() *fakeClient {
	return &fakeClient{created: make(map[string]string), visible: make(map[string]bool)}
}

func (f *fakeClient) GetStatus() (*ipc.StatusData, error) {
	return &ipc.StatusData{DaemonRunning: true, Compositor: "sim", Views: len(f.created)}, nil
}

func (f *fakeClient) Dump() (*ipc.DumpData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dumpErr != nil {
		return nil, f.dumpErr
	}
	if len(f.dumps) == 0 {
		return &ipc.DumpData{}, nil
	}
	d := f.dumps[0]
	if len(f.dumps) > 1 {
		f.dumps = f.dumps[1:]
	}
	return d, nil
}

func (f *fakeClient) CreateView(name, bounds string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.created[name] = bounds
	return nil
}

func (f *fakeClient) RemoveView(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeClient) Launch(p ipc.ViewLaunchPayload) (*ipc.LaunchData, error) {
	f.launches = append(f.launches, p)
	return &ipc.LaunchData{Token: "tok-1", Done: p.Wait}, nil
}

func (f *fakeClient) Convert(string, uint32, bool) error { return nil }
func (f *fakeClient) Exit(string, string, bool) error    { return nil }
func (f *fakeClient) SetBounds(string, string) error     { return nil }

func (f *fakeClient) SetVisible(name string, visible, _ bool) error {
	f.visible[name] = visible
	return nil
}

func (f *fakeClient) Expand(string) error { return nil }
func (f *fakeClient) Cancel(string) error { return nil }

func (f *fakeClient) SimWindow(p ipc.SimWindowPayload) (*ipc.SimWindowData, error) {
	f.sims = append(f.sims, p)
	return &ipc.SimWindowData{WindowID: 7}, nil
}

func newTestServer(t *testing.T, client *fakeClient) *Server {
	t.Helper()
	s, err := NewServer(client, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	s.pollInterval = 5 * time.Millisecond
	return s
}

func TestNewServerRequiresClient(t *testing.T) {
	if _, err := NewServer(nil, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestHandleCreateViewTrimsAndValidates(t *testing.T) {
	client := newFakeClient()
	s := newTestServer(t, client)

	if _, _, err := s.handleCreateView(context.Background(), nil, CreateViewInput{Name: "  "}); err == nil {
		t.Fatalf("expected error for blank name")
	}

	_, out, err := s.handleCreateView(context.Background(), nil, CreateViewInput{Name: " side ", Bounds: " 400x300+10+20 "})
	if err != nil {
		t.Fatalf("handleCreateView() error = %v", err)
	}
	if !out.OK || out.Name != "side" {
		t.Fatalf("output = %+v, want ok for side", out)
	}
	if got := client.created["side"]; got != "400x300+10+20" {
		t.Fatalf("bounds = %q, want 400x300+10+20", got)
	}
}

func TestHandleCreateViewPropagatesDaemonError(t *testing.T) {
	client := newFakeClient()
	client.failWith = errors.New(`view "side" already exists`)
	s := newTestServer(t, client)

	if _, _, err := s.handleCreateView(context.Background(), nil, CreateViewInput{Name: "side"}); err == nil {
		t.Fatalf("expected daemon error to propagate")
	}
}

func TestHandleLaunch(t *testing.T) {
	tests := []struct {
		name    string
		input   LaunchInput
		wantErr bool
	}{
		{"plain", LaunchInput{Name: "side", Command: "xterm"}, false},
		{"animated wait", LaunchInput{Name: "side", Animate: true, Expand: true, Wait: true}, false},
		{"wait without animate", LaunchInput{Name: "side", Wait: true}, true},
		{"missing name", LaunchInput{Command: "xterm"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			s := newTestServer(t, client)
			_, out, err := s.handleLaunch(context.Background(), nil, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if len(client.launches) != 0 {
					t.Fatalf("launch forwarded despite invalid input")
				}
				return
			}
			if err != nil {
				t.Fatalf("handleLaunch() error = %v", err)
			}
			if out.Token != "tok-1" {
				t.Fatalf("token = %q, want tok-1", out.Token)
			}
			if len(client.launches) != 1 || client.launches[0].Animate != tt.input.Animate {
				t.Fatalf("launches = %+v", client.launches)
			}
		})
	}
}

func TestHandleConvertRequiresWindow(t *testing.T) {
	s := newTestServer(t, newFakeClient())
	if _, _, err := s.handleConvert(context.Background(), nil, ConvertInput{Name: "side"}); err == nil {
		t.Fatalf("expected error without window_id")
	}
	if _, _, err := s.handleConvert(context.Background(), nil, ConvertInput{Name: "side", WindowID: 3}); err != nil {
		t.Fatalf("handleConvert() error = %v", err)
	}
}

func TestHandleListViewsNeverNil(t *testing.T) {
	s := newTestServer(t, newFakeClient())
	_, out, err := s.handleListViews(context.Background(), nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleListViews() error = %v", err)
	}
	if out.Views == nil {
		t.Fatalf("views should be an empty slice, not nil")
	}
}

func TestWaitConditions(t *testing.T) {
	dump := &ipc.DumpData{
		Queue:       []ipc.QueueEntry{{View: "busy", Kind: "launch", State: "pending"}},
		Conversions: []ipc.ConversionData{{View: "converting", Kind: "enter", Phase: "enter"}},
	}
	tests := []struct {
		condition string
		view      ipc.ViewData
		want      bool
	}{
		{WaitPlaced, ipc.ViewData{Name: "a", Placed: true}, true},
		{WaitPlaced, ipc.ViewData{Name: "a"}, false},
		{WaitVisible, ipc.ViewData{Name: "a", TaskID: 4, TaskVisible: true}, true},
		{WaitVisible, ipc.ViewData{Name: "a", TaskVisible: true}, false},
		{WaitHidden, ipc.ViewData{Name: "a", TaskID: 4}, true},
		{WaitEmpty, ipc.ViewData{Name: "a"}, true},
		{WaitEmpty, ipc.ViewData{Name: "a", TaskID: 4}, false},
		{WaitNotFound, ipc.ViewData{Name: "a", NotFound: 1}, true},
		{WaitIdle, ipc.ViewData{Name: "a"}, true},
		{WaitIdle, ipc.ViewData{Name: "busy"}, false},
		{WaitIdle, ipc.ViewData{Name: "converting"}, false},
	}
	for _, tt := range tests {
		check, err := waitCondition(tt.condition, tt.view.Name)
		if err != nil {
			t.Fatalf("waitCondition(%q) error = %v", tt.condition, err)
		}
		if got := check(dump, tt.view); got != tt.want {
			t.Errorf("%s on %+v = %v, want %v", tt.condition, tt.view, got, tt.want)
		}
	}

	if _, err := waitCondition("sideways", "a"); err == nil {
		t.Fatalf("expected error for unknown condition")
	}
}

func TestWaitForViewPollsUntilMet(t *testing.T) {
	client := newFakeClient()
	client.dumps = []*ipc.DumpData{
		{Views: []ipc.ViewData{{Name: "side"}}},
		{Views: []ipc.ViewData{{Name: "side"}}},
		{Views: []ipc.ViewData{{Name: "side", TaskID: 9, TaskVisible: true, Placed: true}}},
	}
	s := newTestServer(t, client)

	_, out, err := s.handleWaitForView(context.Background(), nil, WaitForViewInput{Name: "side", Condition: "placed", Timeout: 5})
	if err != nil {
		t.Fatalf("handleWaitForView() error = %v", err)
	}
	if !out.Met || out.View.TaskID != 9 {
		t.Fatalf("output = %+v, want met with task 9", out)
	}
}

func TestWaitForViewTimesOut(t *testing.T) {
	client := newFakeClient()
	client.dumps = []*ipc.DumpData{{Views: []ipc.ViewData{{Name: "side"}}}}
	s := newTestServer(t, client)

	view, met, err := s.waitForView(context.Background(), "side", 20*time.Millisecond, func(*ipc.DumpData, ipc.ViewData) bool { return false })
	if err != nil {
		t.Fatalf("waitForView() error = %v", err)
	}
	if met {
		t.Fatalf("condition should not be met")
	}
	if view.Name != "side" {
		t.Fatalf("view = %+v, want the last observed state", view)
	}
}

func TestWaitForViewUnknownView(t *testing.T) {
	client := newFakeClient()
	client.dumps = []*ipc.DumpData{{Views: []ipc.ViewData{{Name: "other"}}}}
	s := newTestServer(t, client)

	if _, _, err := s.handleWaitForView(context.Background(), nil, WaitForViewInput{Name: "side", Condition: WaitIdle}); err == nil {
		t.Fatalf("expected error for unknown view")
	}
}

func TestWaitForViewHonoursContext(t *testing.T) {
	client := newFakeClient()
	client.dumps = []*ipc.DumpData{{Views: []ipc.ViewData{{Name: "side"}}}}
	s := newTestServer(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.waitForView(ctx, "side", time.Minute, func(*ipc.DumpData, ipc.ViewData) bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHandleSimWindowForwardsPayload(t *testing.T) {
	client := newFakeClient()
	s := newTestServer(t, client)

	_, out, err := s.handleSimWindow(context.Background(), nil, SimWindowInput{Action: " add ", Mode: "fullscreen", Title: "mail"})
	if err != nil {
		t.Fatalf("handleSimWindow() error = %v", err)
	}
	if out.WindowID != 7 {
		t.Fatalf("window id = %d, want 7", out.WindowID)
	}
	if len(client.sims) != 1 || client.sims[0].Action != ipc.SimAdd || client.sims[0].Title != "mail" {
		t.Fatalf("sims = %+v", client.sims)
	}
}
