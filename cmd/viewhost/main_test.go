package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/1broseidon/viewhost/internal/config"
)

func TestViewFlagsInterleaved(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantPos   []string
		wantRest  []string
		wantWait  bool
		wantToken string
	}{
		{
			name:    "flags after name",
			args:    []string{"side", "--wait"},
			wantPos: []string{"side"}, wantWait: true,
		},
		{
			name:    "flags before name",
			args:    []string{"--token", "abc", "side"},
			wantPos: []string{"side"}, wantToken: "abc",
		},
		{
			name:     "command after separator",
			args:     []string{"side", "--wait", "--", "xterm", "-e", "top"},
			wantPos:  []string{"side"},
			wantRest: []string{"xterm", "-e", "top"},
			wantWait: true,
		},
		{
			name:    "two positionals",
			args:    []string{"side", "0x2a", "--wait"},
			wantPos: []string{"side", "0x2a"}, wantWait: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			wait := fs.Bool("wait", false, "")
			token := fs.String("token", "", "")

			pos, rest, _, ok := viewFlags(fs, tt.args)
			if !ok {
				t.Fatalf("viewFlags(%v) failed", tt.args)
			}
			if !reflect.DeepEqual(pos, tt.wantPos) {
				t.Fatalf("positional = %v, want %v", pos, tt.wantPos)
			}
			if len(rest) != len(tt.wantRest) || (len(rest) > 0 && !reflect.DeepEqual(rest, tt.wantRest)) {
				t.Fatalf("rest = %v, want %v", rest, tt.wantRest)
			}
			if *wait != tt.wantWait || *token != tt.wantToken {
				t.Fatalf("wait=%v token=%q, want %v %q", *wait, *token, tt.wantWait, tt.wantToken)
			}
		})
	}
}

func TestViewFlagsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, _, code, ok := viewFlags(fs, []string{"side", "--bogus"}); ok || code != 2 {
		t.Fatalf("viewFlags with unknown flag = ok %v code %d, want false 2", ok, code)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.LogLevel = tt.level
		logger := newLogger(cfg)
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("level %q: %v not enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
			t.Errorf("level %q: %v should be disabled", tt.level, tt.want-4)
		}
	}
}

func TestFormatSource(t *testing.T) {
	tests := []struct {
		src  config.Source
		want string
	}{
		{config.Source{Kind: config.SourceDefault}, "default"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml"}, "file:/c.yaml"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml", Line: 3, Column: 5}, "file:/c.yaml:3:5"},
	}
	for _, tt := range tests {
		if got := formatSource(tt.src); got != tt.want {
			t.Errorf("formatSource(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}
