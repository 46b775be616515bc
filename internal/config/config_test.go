package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/viewhost/internal/platform"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.SyncHiddenOnReorder {
		t.Fatalf("expected sync_hidden_on_reorder to default to true")
	}
	modes, err := cfg.Categories()
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(modes) != 1 || modes[0] != platform.ModeFullscreen {
		t.Fatalf("expected [fullscreen], got %v", modes)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Compositor != CompositorSim {
		t.Fatalf("expected compositor %q, got %q", CompositorSim, res.Config.Compositor)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files loaded, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ExecutorQueueSize != DefaultExecutorQueueSize {
		t.Fatalf("expected executor_queue_size %d, got %d", DefaultExecutorQueueSize, res.Config.ExecutorQueueSize)
	}
}

func TestLoadFromPath_OverridesDefaults(t *testing.T) {
	data := strings.Join([]string{
		"compositor: SIM",
		"sim_screen: 1280x720+0+0",
		"log_level: warn",
		"log_format: json",
		"sync_hidden_on_reorder: false",
		"home_overlay: true",
		"fullscreen_categories: [fullscreen, pinned]",
		"animation:",
		"  duration_ms: 100",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Compositor != CompositorSim {
		t.Fatalf("compositor = %q, want sim", cfg.Compositor)
	}
	if cfg.LogLevel != "warning" {
		t.Fatalf("log_level = %q, want warning", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("log_format = %q, want json", cfg.LogFormat)
	}
	if cfg.SyncHiddenOnReorder {
		t.Fatalf("expected sync_hidden_on_reorder false")
	}
	if !cfg.HomeOverlay {
		t.Fatalf("expected home_overlay true")
	}
	if !cfg.Animation.Enabled || cfg.Animation.DurationMs != 100 {
		t.Fatalf("animation = %+v, want enabled with 100ms", cfg.Animation)
	}
	screen, err := cfg.Screen()
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if screen.Width != 1280 || screen.Height != 720 {
		t.Fatalf("screen = %v, want 1280x720", screen)
	}
	modes, err := cfg.Categories()
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(modes) != 2 || modes[1] != platform.ModePinned {
		t.Fatalf("categories = %v", modes)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "no_such_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "no_such_key") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSourceContext(t *testing.T) {
	data := strings.Join([]string{
		"log_level: info",
		"compositor: wayland",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Path != "compositor" {
		t.Fatalf("path = %q, want compositor", verr.Path)
	}
	if verr.Source.Line != 2 {
		t.Fatalf("source line = %d, want 2", verr.Source.Line)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"zero queue", func(c *Config) { c.ExecutorQueueSize = 0 }, "executor_queue_size"},
		{"negative interval", func(c *Config) { c.ReconcileIntervalSeconds = -1 }, "reconcile_interval_seconds"},
		{"unknown category", func(c *Config) { c.FullscreenCategories = []string{"tiled"} }, "fullscreen_categories"},
		{"empty category", func(c *Config) { c.FullscreenCategories = []string{" "} }, "fullscreen_categories"},
		{"negative timeout", func(c *Config) { c.LaunchTimeoutMs = -5 }, "launch_timeout_ms"},
		{"negative duration", func(c *Config) { c.Animation.DurationMs = -1 }, "animation.duration_ms"},
		{"bad screen", func(c *Config) { c.SimScreen = "big" }, "sim_screen"},
		{"empty screen", func(c *Config) { c.SimScreen = "0x0+0+0" }, "sim_screen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("path = %q, want %q", verr.Path, tt.path)
			}
		})
	}
}

func TestValidate_X11SkipsSimScreen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compositor = CompositorX11
	cfg.Display = ":0"
	cfg.SimScreen = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected x11 config to validate, got %v", err)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, configD, "10-base.yaml", "executor_queue_size: 10\nhome_overlay: true\n")
	writeConfig(t, configD, "20-override.yaml", "executor_queue_size: 20\n")

	// Main file overrides includes.
	main := strings.Join([]string{
		"include:",
		"  - config.d",
		"executor_queue_size: 30",
		"",
	}, "\n")
	path := writeConfig(t, dir, "config.yaml", main)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ExecutorQueueSize != 30 {
		t.Fatalf("expected executor_queue_size to be 30, got %d", res.Config.ExecutorQueueSize)
	}
	if !res.Config.HomeOverlay {
		t.Fatalf("expected home_overlay from include")
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files loaded, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMergesAnimationFields(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "anim.yaml", "animation:\n  enabled: false\n")
	path := writeConfig(t, dir, "config.yaml", "include: anim.yaml\nanimation:\n  duration_ms: 50\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Animation.Enabled {
		t.Fatalf("expected animation disabled by include")
	}
	if res.Config.Animation.DurationMs != 50 {
		t.Fatalf("duration_ms = %d, want 50", res.Config.Animation.DurationMs)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestMarshal_RoundTripsThroughLoader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HomeOverlay = true
	cfg.ReconcileIntervalSeconds = 0
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := writeConfig(t, t.TempDir(), "config.yaml", string(data))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !res.Config.HomeOverlay || res.Config.ReconcileIntervalSeconds != 0 {
		t.Fatalf("unexpected config after reload: %+v", res.Config)
	}
}
