package phases

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// ArchiveBackup backs up a workspace ahead of archival, with a full
// integrity check over the backed-up data.
func (h *Handlers) ArchiveBackup(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.backupPhase(ctx, ws, core.PhaseArchivingBackup, true)
}

// ArchiveClean drops an archived workspace's database after its backup
// completed, then asks the full-text service to drop and rebuild its
// indexes.
func (h *Handlers) ArchiveClean(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.runPhase(ctx, ws, core.PhaseArchivingClean, true, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		if err := h.destroyWorkspace(ctx, run); err != nil {
			return noDone, err
		}
		h.reindex(ctx, ws, false)
		return doneAt(100), nil
	})
}

// backupPhase is shared by the archive and migration backup phases; they
// differ only in the integrity check.
func (h *Handlers) backupPhase(ctx context.Context, ws core.WorkspaceInfo, phase core.Phase, fullCheck bool) error {
	return h.runPhase(ctx, ws, phase, false, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		adapter, err := h.deps.Adapters.Open(ctx, h.cfg.DBURL)
		if err != nil {
			return noDone, err
		}
		defer h.closeAdapter(ctx, adapter, run.logger)

		ok, err := h.deps.Backups.Backup(ctx, BackupRequest{
			Workspace: ws,
			Adapter:   adapter,
			Txes:      h.cfg.Txes,
			FullCheck: fullCheck,
			Options:   h.cfg.Backup,
			Logger:    run.logger,
			Progress:  run.report(ctx),
		})
		if err != nil {
			return noDone, err
		}
		if !ok {
			run.logger.Warn("backup made no progress, leaving workspace mode unchanged")
			return noDone, nil
		}
		return doneAt(100), nil
	})
}
