package config

import (
	"fmt"
	"strings"
)

// ValidationError pins a config error to a YAML path and, when known, the
// file position that last wrote it.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig overlays raw onto the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Compositor != nil {
		cfg.Compositor = strings.ToLower(strings.TrimSpace(*raw.Compositor))
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.BackKey != nil {
		cfg.BackKey = strings.TrimSpace(*raw.BackKey)
	}
	if raw.SimScreen != nil {
		cfg.SimScreen = strings.TrimSpace(*raw.SimScreen)
	}
	if raw.LogLevel != nil {
		level := strings.ToLower(strings.TrimSpace(*raw.LogLevel))
		if level == "warn" {
			level = "warning"
		}
		cfg.LogLevel = level
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(*raw.LogFormat))
	}
	if raw.ExecutorQueueSize != nil {
		cfg.ExecutorQueueSize = *raw.ExecutorQueueSize
	}
	if raw.ReconcileIntervalSeconds != nil {
		cfg.ReconcileIntervalSeconds = *raw.ReconcileIntervalSeconds
	}
	if raw.SyncHiddenOnReorder != nil {
		cfg.SyncHiddenOnReorder = *raw.SyncHiddenOnReorder
	}
	if raw.HomeOverlay != nil {
		cfg.HomeOverlay = *raw.HomeOverlay
	}
	if raw.FullscreenCategories != nil {
		cfg.FullscreenCategories = append([]string(nil), raw.FullscreenCategories...)
	}
	if raw.LaunchTimeoutMs != nil {
		cfg.LaunchTimeoutMs = *raw.LaunchTimeoutMs
	}
	if raw.Animation != nil {
		if raw.Animation.Enabled != nil {
			cfg.Animation.Enabled = *raw.Animation.Enabled
		}
		if raw.Animation.DurationMs != nil {
			cfg.Animation.DurationMs = *raw.Animation.DurationMs
		}
	}
	return cfg, nil
}
