package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/viewhost/internal/config"
)

type fakeService struct {
	mu       sync.Mutex
	created  []ViewCreatePayload
	launches []ViewLaunchPayload
	removed  []string
	expanded []string
	visible  []ViewVisiblePayload
	applied  int
	failWith error
}

func (f *fakeService) Status(context.Context) (*StatusData, error) {
	return &StatusData{DaemonRunning: true, Compositor: "sim", Views: len(f.created)}, nil
}

func (f *fakeService) Dump(context.Context) (*DumpData, error) {
	return &DumpData{
		Status:  StatusData{DaemonRunning: true},
		Windows: []WindowData{{ID: 7, Mode: "fullscreen", Owner: "fullscreen"}},
		Views:   []ViewData{{Name: "main"}},
	}, nil
}

func (f *fakeService) ApplyConfig(context.Context, *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	return nil
}

func (f *fakeService) CreateView(_ context.Context, p ViewCreatePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakeService) RemoveView(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeService) Launch(_ context.Context, p ViewLaunchPayload) (*LaunchData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches = append(f.launches, p)
	return &LaunchData{Token: "tok-1", Done: p.Wait}, nil
}

func (f *fakeService) Convert(context.Context, ViewConvertPayload) error { return nil }
func (f *fakeService) Exit(context.Context, ViewExitPayload) error       { return nil }
func (f *fakeService) SetBounds(context.Context, ViewBoundsPayload) error {
	return nil
}

func (f *fakeService) SetVisible(_ context.Context, p ViewVisiblePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = append(f.visible, p)
	return nil
}

func (f *fakeService) Expand(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expanded = append(f.expanded, name)
	return nil
}

func (f *fakeService) Cancel(context.Context, string) error { return nil }

func (f *fakeService) SimWindow(_ context.Context, p SimWindowPayload) (*SimWindowData, error) {
	if p.Action == SimAdd {
		return &SimWindowData{WindowID: 42}, nil
	}
	return nil, errors.New("compositor is not simulated")
}

func startServer(t *testing.T, svc Service) (*Server, *Client) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "viewhost.sock")
	srv := NewServerAt(socket, config.DefaultConfig(), svc, make(chan struct{}, 1), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, NewClientAt(srv.SocketPath())
}

func TestClientServerRoundTrip(t *testing.T) {
	svc := &fakeService{}
	_, client := startServer(t, svc)

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := client.CreateView("main", "640x480+0+0"); err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.DaemonRunning || status.Compositor != "sim" || status.Views != 1 {
		t.Fatalf("status = %+v", status)
	}

	launch, err := client.Launch(ViewLaunchPayload{Name: "main", Command: "xterm", Animate: true, Wait: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if launch.Token != "tok-1" || !launch.Done {
		t.Fatalf("launch = %+v", launch)
	}
	if err := client.SetVisible("main", false, true); err != nil {
		t.Fatal(err)
	}
	if err := client.Expand("main"); err != nil {
		t.Fatal(err)
	}
	if err := client.RemoveView("main"); err != nil {
		t.Fatal(err)
	}

	dump, err := client.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(dump.Windows) != 1 || dump.Windows[0].ID != 7 || dump.Views[0].Name != "main" {
		t.Fatalf("dump = %+v", dump)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.created) != 1 || svc.created[0].Bounds != "640x480+0+0" {
		t.Fatalf("created = %+v", svc.created)
	}
	if len(svc.launches) != 1 || svc.launches[0].Command != "xterm" || !svc.launches[0].Animate {
		t.Fatalf("launches = %+v", svc.launches)
	}
	if len(svc.visible) != 1 || svc.visible[0].Visible || !svc.visible[0].Reorder {
		t.Fatalf("visible = %+v", svc.visible)
	}
	if len(svc.expanded) != 1 || len(svc.removed) != 1 {
		t.Fatalf("expanded = %v removed = %v", svc.expanded, svc.removed)
	}
}

func TestServerReportsErrors(t *testing.T) {
	svc := &fakeService{failWith: errors.New("view already exists")}
	_, client := startServer(t, svc)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"service error", func() error { return client.CreateView("main", "") }, "view already exists"},
		{"missing name", func() error { return client.CreateView("", "") }, "name is required"},
		{"missing window", func() error { return client.Convert("main", 0, false) }, "window_id are required"},
		{"missing bounds", func() error { return client.SetBounds("main", "") }, "bounds are required"},
		{"sim rejected", func() error {
			_, err := client.SimWindow(SimWindowPayload{Action: SimRemove, WindowID: 1})
			return err
		}, "not simulated"},
		{"missing action", func() error {
			_, err := client.SimWindow(SimWindowPayload{})
			return err
		}, "action is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	srv := NewServerAt(filepath.Join(t.TempDir(), "x.sock"), config.DefaultConfig(), &fakeService{}, nil, nil)
	resp := srv.handleCommand(context.Background(), &Request{Command: "EXPLODE"})
	if resp.Status != "ERROR" || !strings.Contains(resp.Error, "Unknown command") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestInvalidPayload(t *testing.T) {
	srv := NewServerAt(filepath.Join(t.TempDir(), "x.sock"), config.DefaultConfig(), &fakeService{}, nil, nil)
	resp := srv.handleCommand(context.Background(), &Request{Command: CommandViewCreate, Payload: []byte(`{"name": 3}`)})
	if resp.Status != "ERROR" || !strings.Contains(resp.Error, "Invalid payload") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestReloadAppliesConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	svc := &fakeService{}
	reload := make(chan struct{}, 1)
	srv := NewServerAt(filepath.Join(t.TempDir(), "x.sock"), nil, svc, reload, nil)

	resp := srv.handleCommand(context.Background(), &Request{Command: CommandReload})
	if resp.Status != "OK" {
		t.Fatalf("reload failed: %+v", resp)
	}
	if svc.applied != 1 {
		t.Fatalf("ApplyConfig called %d times", svc.applied)
	}
	select {
	case <-reload:
	default:
		t.Fatalf("reload not signalled")
	}
	if srv.GetConfig() == nil || srv.GetConfig().Compositor != config.CompositorSim {
		t.Fatalf("config not swapped: %+v", srv.GetConfig())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	srv, client := startServer(t, &fakeService{})
	srv.Stop()
	srv.Stop()
	if err := client.Ping(); err == nil {
		t.Fatalf("ping succeeded after Stop")
	}
}
