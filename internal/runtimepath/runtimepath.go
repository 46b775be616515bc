package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/viewhost, which holds the config file and
// saved layouts. It is not created.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "viewhost"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	return inConfigDir("config.yaml")
}

// LayoutsDir returns the directory saved layouts are stored in.
func LayoutsDir() (string, error) {
	return inConfigDir("layouts")
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Dir returns the runtime directory used by the viewhost IPC socket and
// state lookups. Priority:
// 1) XDG_RUNTIME_DIR (if set)
// 2) /run/user/<uid> (if present)
// 3) /tmp/viewhost-runtime-<uid> (created)
func Dir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir, nil
	}

	uid := os.Getuid()
	runUserDir := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUserDir); err == nil && info.IsDir() {
		return runUserDir, nil
	}

	tmpDir := fmt.Sprintf("/tmp/viewhost-runtime-%d", uid)
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return tmpDir, nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	return inDir("viewhost.sock")
}

// StatePath returns the path of the daemon's last diagnostic dump.
func StatePath() (string, error) {
	return inDir("viewhost-state.json")
}

func inDir(name string) (string, error) {
	runtimeDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(runtimeDir, name), nil
}
