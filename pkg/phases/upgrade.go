package phases

import (
	"context"
	"slices"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// upgradeSkippedModes are the modes an upgrade must not touch even if the
// control-plane's snapshot raced a concurrent transition: anything mid
// archive, mid migration, or mid restore.
var upgradeSkippedModes = map[core.Mode]bool{
	core.ModeArchivingPendingBackup: true,
	core.ModeArchivingBackup:        true,
	core.ModeArchivingPendingClean:  true,
	core.ModeArchivingClean:         true,
	core.ModeMigrationPendingBackup: true,
	core.ModeMigrationBackup:        true,
	core.ModeMigrationPendingClean:  true,
	core.ModeMigrationClean:         true,
	core.ModePendingRestore:         true,
	core.ModeRestoring:              true,
}

// Upgrade brings a workspace's schema up to the worker's version. Disabled
// workspaces, workspaces mid archive/migration/restore, and workspaces on
// the ignore list are consumed silently: no events, no error.
func (h *Handlers) Upgrade(ctx context.Context, ws core.WorkspaceInfo) error {
	if h.upgradeSkipped(ws) {
		h.logger.Debug("upgrade skipped",
			"workspace", ws.Workspace, "mode", ws.EffectiveMode(), "disabled", ws.Disabled)
		return nil
	}

	return h.runPhase(ctx, ws, core.PhaseUpgrade, false, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		err := h.deps.Upgrader.UpgradeWorkspace(ctx, UpgradeRequest{
			Workspace: ws,
			Version:   h.cfg.Version,
			Txes:      h.cfg.Txes,
			Force:     h.cfg.Force,
			Logger:    run.logger,
			Progress:  run.report(ctx),
		})
		if err != nil {
			return noDone, err
		}
		return doneAt(100), nil
	})
}

func (h *Handlers) upgradeSkipped(ws core.WorkspaceInfo) bool {
	if ws.Disabled {
		return true
	}
	if upgradeSkippedModes[ws.EffectiveMode()] {
		return true
	}
	return slices.Contains(h.cfg.Ignore, ws.Workspace)
}
