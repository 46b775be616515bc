package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got == "" {
		t.Fatal("Dir() returned empty path")
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/viewhost-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPathAndStatePath(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/viewhost.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}

	state, err := StatePath()
	if err != nil {
		t.Fatalf("StatePath() error: %v", err)
	}
	if !strings.HasSuffix(state, "/viewhost-state.json") {
		t.Fatalf("StatePath() = %q, missing suffix", state)
	}
}

func TestConfigPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"ConfigDir", ConfigDir, filepath.Join(home, ".config", "viewhost")},
		{"ConfigPath", ConfigPath, filepath.Join(home, ".config", "viewhost", "config.yaml")},
		{"LayoutsDir", LayoutsDir, filepath.Join(home, ".config", "viewhost", "layouts")},
	}
	for _, tt := range tests {
		got, err := tt.fn()
		if err != nil {
			t.Fatalf("%s() error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s() = %q, want %q", tt.name, got, tt.want)
		}
	}
	if _, err := os.Stat(filepath.Join(home, ".config")); !os.IsNotExist(err) {
		t.Fatalf("config dir should not be created, stat err = %v", err)
	}
}
