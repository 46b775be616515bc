package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/viewhost/internal/platform"
)

// Compositor backends.
const (
	CompositorSim = "sim"
	CompositorX11 = "x11"
)

const (
	DefaultExecutorQueueSize        = 256
	DefaultReconcileIntervalSeconds = 5
	DefaultLaunchTimeoutMs          = 10000
	DefaultAnimationDurationMs      = 250
	DefaultSimScreen                = "1920x1080+0+0"
)

// Animation configures the conversion animator.
type Animation struct {
	// Enabled selects the timed animator. When false conversions place
	// windows immediately.
	Enabled    bool `yaml:"enabled"`
	DurationMs int  `yaml:"duration_ms"`
}

// Config is the effective daemon configuration.
type Config struct {
	// Compositor selects the peer: "sim" (in-process) or "x11".
	Compositor string `yaml:"compositor"`
	// Display is the X display to connect to (x11 only). Empty uses $DISPLAY.
	Display string `yaml:"display,omitempty"`
	// BackKey is a global key grab (x11 only) delivered as a back press on
	// the focused window's root, e.g. "Mod4-BackSpace". Empty disables it.
	BackKey string `yaml:"back_key,omitempty"`
	// SimScreen is the simulated display geometry as WxH+X+Y (sim only).
	SimScreen string `yaml:"sim_screen"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ExecutorQueueSize        int `yaml:"executor_queue_size"`
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"` // 0 disables drift reconciliation

	// SyncHiddenOnReorder keeps the hidden flag in step with reorders.
	SyncHiddenOnReorder bool `yaml:"sync_hidden_on_reorder"`
	HomeOverlay         bool `yaml:"home_overlay"`

	// FullscreenCategories are the windowing modes owned by the fullscreen
	// listener, e.g. "fullscreen".
	FullscreenCategories []string `yaml:"fullscreen_categories"`

	LaunchTimeoutMs int       `yaml:"launch_timeout_ms"`
	Animation       Animation `yaml:"animation"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Compositor:               CompositorSim,
		SimScreen:                DefaultSimScreen,
		LogLevel:                 "info",
		LogFormat:                "text",
		ExecutorQueueSize:        DefaultExecutorQueueSize,
		ReconcileIntervalSeconds: DefaultReconcileIntervalSeconds,
		SyncHiddenOnReorder:      true,
		HomeOverlay:              false,
		FullscreenCategories:     []string{"fullscreen"},
		LaunchTimeoutMs:          DefaultLaunchTimeoutMs,
		Animation: Animation{
			Enabled:    true,
			DurationMs: DefaultAnimationDurationMs,
		},
	}
}

// Categories parses FullscreenCategories into windowing modes.
func (c *Config) Categories() ([]platform.WindowingMode, error) {
	modes := make([]platform.WindowingMode, 0, len(c.FullscreenCategories))
	for _, name := range c.FullscreenCategories {
		mode, err := platform.ParseWindowingMode(name)
		if err != nil {
			return nil, err
		}
		modes = append(modes, mode)
	}
	return modes, nil
}

// Screen parses SimScreen.
func (c *Config) Screen() (platform.Rect, error) {
	return platform.ParseRect(c.SimScreen)
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}

	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch c.Compositor {
	case CompositorSim, CompositorX11:
	default:
		return &ValidationError{Path: "compositor", Err: fmt.Errorf("compositor must be one of: sim, x11")}
	}
	if c.Compositor == CompositorSim {
		screen, err := c.Screen()
		if err != nil {
			return &ValidationError{Path: "sim_screen", Err: err}
		}
		if screen.Empty() {
			return &ValidationError{Path: "sim_screen", Err: fmt.Errorf("sim_screen must have a positive size")}
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return &ValidationError{Path: "log_format", Err: fmt.Errorf("log_format must be one of: text, json")}
	}
	if c.ExecutorQueueSize <= 0 {
		return &ValidationError{Path: "executor_queue_size", Err: fmt.Errorf("executor_queue_size must be > 0")}
	}
	if c.ReconcileIntervalSeconds < 0 {
		return &ValidationError{Path: "reconcile_interval_seconds", Err: fmt.Errorf("reconcile_interval_seconds must be >= 0")}
	}
	for i, name := range c.FullscreenCategories {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "fullscreen_categories", Err: fmt.Errorf("entry %d is empty", i)}
		}
		if _, err := platform.ParseWindowingMode(name); err != nil {
			return &ValidationError{Path: "fullscreen_categories", Err: err}
		}
	}
	if c.LaunchTimeoutMs < 0 {
		return &ValidationError{Path: "launch_timeout_ms", Err: fmt.Errorf("launch_timeout_ms must be >= 0")}
	}
	if c.Animation.DurationMs < 0 {
		return &ValidationError{Path: "animation.duration_ms", Err: fmt.Errorf("duration_ms must be >= 0")}
	}

	if warnings := c.validationWarnings(); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
	}
	return nil
}

func (c *Config) validationWarnings() []string {
	if c == nil {
		return nil
	}
	var warnings []string
	if c.Compositor == CompositorX11 && c.Display == "" && os.Getenv("DISPLAY") == "" {
		warnings = append(warnings, "compositor is x11 but neither display nor $DISPLAY is set")
	}
	if c.Animation.Enabled && c.Animation.DurationMs == 0 {
		warnings = append(warnings, "animation is enabled with duration_ms 0; windows will be placed immediately")
	}
	return warnings
}
