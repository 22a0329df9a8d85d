package phases

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Restore pulls a workspace's blobs back from backup storage and triggers
// a full-text rebuild. The transactional data is rebuilt by the serving
// tier on first open, so the restore is restricted to the blob domain.
func (h *Handlers) Restore(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.runPhase(ctx, ws, core.PhaseRestore, false, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		adapter, err := h.deps.Adapters.Open(ctx, h.cfg.DBURL)
		if err != nil {
			return noDone, err
		}
		defer h.closeAdapter(ctx, adapter, run.logger)

		err = h.deps.Backups.Restore(ctx, RestoreRequest{
			Workspace: ws,
			Adapter:   adapter,
			BlobsOnly: true,
			Options:   h.cfg.Backup,
			Logger:    run.logger,
			Progress:  run.report(ctx),
		})
		if err != nil {
			return noDone, err
		}

		h.reindex(ctx, ws, false)
		return doneAt(100), nil
	})
}
