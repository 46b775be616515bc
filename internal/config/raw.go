package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawAnimation struct {
	Enabled    *bool `yaml:"enabled"`
	DurationMs *int  `yaml:"duration_ms"`
}

// RawConfig mirrors Config with optional fields so that merged files only
// override what they set.
type RawConfig struct {
	Include IncludeList `yaml:"include"`

	Compositor *string `yaml:"compositor"`
	Display    *string `yaml:"display"`
	BackKey    *string `yaml:"back_key"`
	SimScreen  *string `yaml:"sim_screen"`

	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`

	ExecutorQueueSize        *int `yaml:"executor_queue_size"`
	ReconcileIntervalSeconds *int `yaml:"reconcile_interval_seconds"`

	SyncHiddenOnReorder *bool `yaml:"sync_hidden_on_reorder"`
	HomeOverlay         *bool `yaml:"home_overlay"`

	FullscreenCategories []string `yaml:"fullscreen_categories"`

	LaunchTimeoutMs *int          `yaml:"launch_timeout_ms"`
	Animation       *RawAnimation `yaml:"animation"`
}

func (r RawConfig) merge(other RawConfig) RawConfig {
	out := r
	if other.Compositor != nil {
		out.Compositor = other.Compositor
	}
	if other.Display != nil {
		out.Display = other.Display
	}
	if other.BackKey != nil {
		out.BackKey = other.BackKey
	}
	if other.SimScreen != nil {
		out.SimScreen = other.SimScreen
	}
	if other.LogLevel != nil {
		out.LogLevel = other.LogLevel
	}
	if other.LogFormat != nil {
		out.LogFormat = other.LogFormat
	}
	if other.ExecutorQueueSize != nil {
		out.ExecutorQueueSize = other.ExecutorQueueSize
	}
	if other.ReconcileIntervalSeconds != nil {
		out.ReconcileIntervalSeconds = other.ReconcileIntervalSeconds
	}
	if other.SyncHiddenOnReorder != nil {
		out.SyncHiddenOnReorder = other.SyncHiddenOnReorder
	}
	if other.HomeOverlay != nil {
		out.HomeOverlay = other.HomeOverlay
	}
	if other.FullscreenCategories != nil {
		out.FullscreenCategories = append([]string(nil), other.FullscreenCategories...)
	}
	if other.LaunchTimeoutMs != nil {
		out.LaunchTimeoutMs = other.LaunchTimeoutMs
	}
	if other.Animation != nil {
		merged := RawAnimation{}
		if out.Animation != nil {
			merged = *out.Animation
		}
		if other.Animation.Enabled != nil {
			merged.Enabled = other.Animation.Enabled
		}
		if other.Animation.DurationMs != nil {
			merged.DurationMs = other.Animation.DurationMs
		}
		out.Animation = &merged
	}
	return out
}
