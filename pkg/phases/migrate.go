package phases

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// MigrateBackup backs up a workspace ahead of a region/version migration.
// The full integrity check is skipped: migration is time-critical, and a
// full check runs separately before the migration window.
func (h *Handlers) MigrateBackup(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.backupPhase(ctx, ws, core.PhaseMigrateBackup, false)
}

// MigrateClean drops the migrated-away workspace's database when cleanup
// is enabled, and emits the phase markers either way so the control-plane
// can advance the migration.
func (h *Handlers) MigrateClean(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.runPhase(ctx, ws, core.PhaseMigrateClean, h.cfg.MigrationCleanup, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		if h.cfg.MigrationCleanup {
			if err := h.destroyWorkspace(ctx, run); err != nil {
				return noDone, err
			}
			h.reindex(ctx, ws, false)
		} else {
			run.logger.Info("migration cleanup disabled, leaving database in place")
		}
		// The terminal marker historically carries progress 0 rather than
		// 100. Consumers key off the event name; changing the value would
		// alter the wire contract, so it stays.
		return doneAt(0), nil
	})
}
