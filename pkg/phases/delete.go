package phases

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Delete destroys a workspace's database and drops its full-text indexes
// without rebuilding them.
func (h *Handlers) Delete(ctx context.Context, ws core.WorkspaceInfo) error {
	return h.runPhase(ctx, ws, core.PhaseDelete, true, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		if err := h.destroyWorkspace(ctx, run); err != nil {
			return noDone, err
		}
		h.reindex(ctx, ws, true)
		return doneAt(100), nil
	})
}
