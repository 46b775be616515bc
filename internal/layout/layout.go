// Package layout saves and restores named sets of views.
package layout

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/1broseidon/viewhost/internal/ipc"
)

// Layout is a persisted snapshot of the daemon's views.
type Layout struct {
	Name  string       `json:"name"`
	Views []ViewLayout `json:"views"`
}

// ViewLayout is one view of a layout. Command, when set, is launched into
// the view on load.
type ViewLayout struct {
	Name    string `json:"name"`
	Bounds  string `json:"bounds"`
	Visible bool   `json:"visible"`
	Command string `json:"command,omitempty"`
}

// Client is the part of the daemon API needed to apply a layout.
type Client interface {
	Dump() (*ipc.DumpData, error)
	CreateView(name, bounds string) error
	RemoveView(name string) error
	Launch(p ipc.ViewLaunchPayload) (*ipc.LaunchData, error)
	SetVisible(name string, visible, reorder bool) error
}

var _ Client = (*ipc.Client)(nil)

// LoadOptions control Apply.
type LoadOptions struct {
	// Replace removes views the layout does not name.
	Replace bool
	// Animate launches commands as animated conversions.
	Animate bool
	Logger  *slog.Logger
}

// Capture builds a layout named name from a daemon dump. Commands are not
// part of the dump; they are carried over from prev when a view of the
// same name exists there.
func Capture(name string, dump *ipc.DumpData, prev *Layout) (*Layout, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if dump == nil {
		return nil, fmt.Errorf("dump is nil")
	}
	commands := make(map[string]string)
	if prev != nil {
		for _, v := range prev.Views {
			commands[v.Name] = v.Command
		}
	}

	out := &Layout{Name: name, Views: make([]ViewLayout, 0, len(dump.Views))}
	for _, v := range dump.Views {
		out.Views = append(out.Views, ViewLayout{
			Name:    v.Name,
			Bounds:  v.Bounds,
			Visible: v.TaskID == 0 || v.TaskVisible,
			Command: commands[v.Name],
		})
	}
	return out, nil
}

// Apply creates every view of l that does not exist yet, launches its
// command and restores its visibility. Views that already exist are left
// alone. Errors for single views are collected and returned together.
func Apply(client Client, l *Layout, opts LoadOptions) error {
	if l == nil {
		return fmt.Errorf("layout is nil")
	}
	if client == nil {
		return fmt.Errorf("client is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("layout", l.Name)

	dump, err := client.Dump()
	if err != nil {
		return fmt.Errorf("failed to read daemon state: %w", err)
	}
	existing := make(map[string]bool, len(dump.Views))
	for _, v := range dump.Views {
		existing[v.Name] = true
	}

	var failures []string
	fail := func(view string, err error) {
		logger.Warn("view not restored", "view", view, "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", view, err))
	}

	wanted := make(map[string]bool, len(l.Views))
	for _, v := range l.Views {
		wanted[v.Name] = true
		if existing[v.Name] {
			logger.Debug("view already exists", "view", v.Name)
			continue
		}
		if err := client.CreateView(v.Name, v.Bounds); err != nil {
			fail(v.Name, err)
			continue
		}
		if strings.TrimSpace(v.Command) == "" {
			continue
		}
		if _, err := client.Launch(ipc.ViewLaunchPayload{
			Name:    v.Name,
			Command: v.Command,
			Animate: opts.Animate,
			Expand:  opts.Animate,
		}); err != nil {
			fail(v.Name, err)
			continue
		}
		if !v.Visible {
			if err := client.SetVisible(v.Name, false, true); err != nil {
				fail(v.Name, err)
			}
		}
		logger.Info("view restored", "view", v.Name, "bounds", v.Bounds)
	}

	if opts.Replace {
		for _, v := range dump.Views {
			if wanted[v.Name] {
				continue
			}
			if err := client.RemoveView(v.Name); err != nil {
				fail(v.Name, err)
			}
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("layout %q partially applied: %s", l.Name, strings.Join(failures, "; "))
	}
	return nil
}
