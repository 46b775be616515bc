package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/viewhost/internal/config"
	"github.com/1broseidon/viewhost/internal/ipc"
)

func newTestDaemon(t *testing.T) (*Daemon, context.Context) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Animation.Enabled = false
	cfg.ReconcileIntervalSeconds = 0

	d, err := New(Options{Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Sim() == nil {
		t.Fatalf("default config did not select the simulated compositor")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	t.Cleanup(reqCancel)
	return d, reqCtx
}

func eventually(t *testing.T, d *Daemon, ctx context.Context, what string, cond func(*ipc.DumpData) bool) *ipc.DumpData {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		dump, err := d.Dump(ctx)
		if err != nil {
			t.Fatalf("Dump: %v", err)
		}
		if cond(dump) {
			return dump
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; dump: %+v", what, dump)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func ownerOf(dump *ipc.DumpData, id uint32) string {
	for _, w := range dump.Windows {
		if w.ID == id {
			return w.Owner
		}
	}
	return ""
}

func TestCreateViewValidation(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main", Bounds: "640x480+10+10"}); err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main"}); !errors.Is(err, ErrViewExists) {
		t.Fatalf("duplicate CreateView err = %v, want ErrViewExists", err)
	}
	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "bad", Bounds: "nope"}); err == nil {
		t.Fatalf("CreateView accepted invalid bounds")
	}
	if err := d.SetVisible(ctx, ipc.ViewVisiblePayload{Name: "ghost", Visible: true}); !errors.Is(err, ErrNoSuchView) {
		t.Fatalf("SetVisible on unknown view err = %v", err)
	}

	dump, err := d.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dump.Views) != 1 {
		t.Fatalf("views = %+v, want one", dump.Views)
	}
	v := dump.Views[0]
	if v.Bounds != "640x480+10+10" || v.Surface == "leash(nil)" || !v.ContentVisible {
		t.Fatalf("view = %+v", v)
	}
}

func TestLaunchIntoViewThenRemove(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main", Bounds: "640x480+100+50"}); err != nil {
		t.Fatal(err)
	}
	launch, err := d.Launch(ctx, ipc.ViewLaunchPayload{Name: "main", Command: "xterm -e top"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if launch.Token == "" || launch.Done {
		t.Fatalf("launch data = %+v", launch)
	}

	dump := eventually(t, d, ctx, "task placed", func(dump *ipc.DumpData) bool {
		return len(dump.Views) == 1 && dump.Views[0].TaskID != 0 && dump.Views[0].Placed
	})
	id := dump.Views[0].TaskID
	if owner := ownerOf(dump, id); owner != "view:main" {
		t.Fatalf("owner = %q, want view:main", owner)
	}
	if dump.Status.QueueLength != 0 {
		t.Fatalf("queue not drained: %+v", dump.Queue)
	}

	if err := d.RemoveView(ctx, "main"); err != nil {
		t.Fatalf("RemoveView: %v", err)
	}
	eventually(t, d, ctx, "view removed", func(dump *ipc.DumpData) bool {
		return len(dump.Views) == 0 && len(dump.Windows) == 0
	})
	if err := d.RemoveView(ctx, "main"); !errors.Is(err, ErrNoSuchView) {
		t.Fatalf("second RemoveView err = %v", err)
	}
}

func TestRemoveEmptyViewIsImmediate(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "empty"}); err != nil {
		t.Fatal(err)
	}
	if err := d.RemoveView(ctx, "empty"); err != nil {
		t.Fatal(err)
	}
	status, err := d.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Views != 0 {
		t.Fatalf("views = %d after removing a view with no task", status.Views)
	}
}

func TestAnimatedLaunchWaits(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main", Bounds: "320x240+0+0"}); err != nil {
		t.Fatal(err)
	}
	launch, err := d.Launch(ctx, ipc.ViewLaunchPayload{Name: "main", Animate: true, Expand: true, Wait: true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !launch.Done {
		t.Fatalf("waited launch not done: %+v", launch)
	}
	dump, err := d.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dump.Conversions) != 0 {
		t.Fatalf("conversion still active: %+v", dump.Conversions)
	}
	if dump.Views[0].TaskID == 0 {
		t.Fatalf("no task after animated launch")
	}
}

func TestConvertAndExitFullscreenWindow(t *testing.T) {
	d, ctx := newTestDaemon(t)

	added, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: ipc.SimAdd, Title: "browser"})
	if err != nil {
		t.Fatalf("SimWindow add: %v", err)
	}
	id := added.WindowID
	eventually(t, d, ctx, "fullscreen owner", func(dump *ipc.DumpData) bool {
		return ownerOf(dump, id) == "fullscreen"
	})

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "side", Bounds: "400x300+20+20"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Convert(ctx, ipc.ViewConvertPayload{Name: "side", WindowID: id, Wait: true}); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	dump := eventually(t, d, ctx, "view owner", func(dump *ipc.DumpData) bool {
		return ownerOf(dump, id) == "view:side"
	})
	for _, w := range dump.Windows {
		if w.ID == id && (w.Mode != "multi-window" || w.Bounds != "400x300+20+20") {
			t.Fatalf("window after convert = %+v", w)
		}
	}

	if err := d.Exit(ctx, ipc.ViewExitPayload{Name: "side", Wait: true}); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	dump = eventually(t, d, ctx, "returned to fullscreen", func(dump *ipc.DumpData) bool {
		return ownerOf(dump, id) == "fullscreen"
	})
	if dump.Views[0].TaskID != 0 || dump.Views[0].ContentVisible {
		t.Fatalf("view after exit = %+v", dump.Views[0])
	}
}

func TestFailedLaunchReportsNotFound(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: ipc.SimFailLaunch, Token: "denied"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Launch(ctx, ipc.ViewLaunchPayload{Name: "main", Token: "denied"}); err != nil {
		t.Fatal(err)
	}
	dump := eventually(t, d, ctx, "not found", func(dump *ipc.DumpData) bool {
		return dump.Views[0].NotFound == 1
	})
	if dump.Views[0].TaskID != 0 || len(dump.Windows) != 0 {
		t.Fatalf("lost launch produced a task: %+v", dump)
	}
}

func TestSimWindowRejectsUnknownAction(t *testing.T) {
	d, ctx := newTestDaemon(t)

	if _, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: "explode"}); err == nil {
		t.Fatalf("unknown action accepted")
	}
	if _, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: ipc.SimUpdate, WindowID: 99}); err == nil {
		t.Fatalf("update of unknown window accepted")
	}
	if _, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: ipc.SimAdd, Mode: "sideways"}); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}

func TestApplyConfigReregistersCategories(t *testing.T) {
	d, ctx := newTestDaemon(t)

	added, err := d.SimWindow(ctx, ipc.SimWindowPayload{Action: ipc.SimAdd, Mode: "freeform"})
	if err != nil {
		t.Fatal(err)
	}
	dump := eventually(t, d, ctx, "window registered", func(dump *ipc.DumpData) bool {
		return len(dump.Windows) == 1
	})
	if owner := ownerOf(dump, added.WindowID); owner != "" {
		t.Fatalf("freeform window owned by %q before reload", owner)
	}

	cfg := config.DefaultConfig()
	cfg.Animation.Enabled = false
	cfg.FullscreenCategories = []string{"fullscreen", "freeform"}
	if err := d.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}

	eventually(t, d, ctx, "freeform owner", func(dump *ipc.DumpData) bool {
		return ownerOf(dump, added.WindowID) == "fullscreen"
	})

	bad := config.DefaultConfig()
	bad.FullscreenCategories = []string{"sideways"}
	if err := d.ApplyConfig(ctx, bad); err == nil {
		t.Fatalf("ApplyConfig accepted an unknown category")
	}
}

func TestSaveStateWritesDump(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	d, ctx := newTestDaemon(t)

	if err := d.CreateView(ctx, ipc.ViewCreatePayload{Name: "main"}); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "viewhost-state.json"))
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	var dump ipc.DumpData
	if err := json.Unmarshal(data, &dump); err != nil {
		t.Fatalf("state is not a dump: %v", err)
	}
	if len(dump.Views) != 1 || dump.Views[0].Name != "main" || dump.Status.Compositor != "sim" {
		t.Fatalf("state = %+v", dump)
	}
}
