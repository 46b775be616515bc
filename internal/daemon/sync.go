package daemon

import (
	"io"
	"log/slog"

	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/registry"
)

// StateSynchronizer feeds events the compositor failed to deliver back into
// the registry. It must only be used from the serialization context.
type StateSynchronizer struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// NewStateSynchronizer creates a new state synchronizer.
func NewStateSynchronizer(reg *registry.Registry, logger *slog.Logger) *StateSynchronizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StateSynchronizer{
		reg:    reg,
		logger: logger,
	}
}

// HandleWindowClosed is called when a tracked window is gone from the
// compositor without a vanished event.
func (s *StateSynchronizer) HandleWindowClosed(windowID platform.WindowID) {
	info, _, ok := s.reg.Window(windowID)
	if !ok {
		return // Window not in registry, nothing to do
	}

	owner := s.reg.Owner(windowID)
	s.logger.Info("window closed, cleaning up",
		"window_id", windowID,
		"title", info.Title,
		"owned", owner != nil)

	s.reg.OnWindowVanished(info)
}

// HandleWindowChanged reconciles a window whose reported state differs from
// what the registry last saw.
func (s *StateSynchronizer) HandleWindowChanged(actual *platform.WindowInfo) {
	known, _, ok := s.reg.Window(actual.ID)
	if !ok || !drifted(known, actual) {
		return
	}

	s.logger.Info("window drifted, resyncing",
		"window_id", actual.ID,
		"mode", actual.Mode.String(),
		"was_mode", known.Mode.String(),
		"visible", actual.Visible,
		"parent_id", actual.ParentID)

	s.reg.OnWindowInfoChanged(actual.Clone())
}

// drifted compares the fields that drive ownership and visibility.
func drifted(known, actual *platform.WindowInfo) bool {
	return known.Mode != actual.Mode ||
		known.Visible != actual.Visible ||
		known.ParentID != actual.ParentID ||
		known.Locus != actual.Locus
}
