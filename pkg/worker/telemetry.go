package worker

import (
	"log/slog"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Telemetry receives every error the worker swallows at the job boundary.
// A single poisoned workspace must never halt the fleet, so job errors are
// consumed after routing through this hook; installing a real sink keeps
// the swallowed errors visible to operators.
type Telemetry interface {
	Swallowed(ws core.WorkspaceInfo, err error)
}

// logTelemetry is the default sink: structured log at error level.
type logTelemetry struct {
	logger *slog.Logger
}

func (t logTelemetry) Swallowed(ws core.WorkspaceInfo, err error) {
	t.logger.Error("workspace job failed",
		"workspace", ws.Workspace, "mode", ws.EffectiveMode(), "error", err)
}
