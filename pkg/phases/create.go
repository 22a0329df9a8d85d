package phases

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// createResumeThreshold is the progress value past which the create init
// script is known to have completed. A creating workspace observed at or
// beyond it must not re-run the sequence: the init script is not reliably
// re-entrant, and advancing the state machine beats looping forever on a
// partially initialised workspace.
const createResumeThreshold = 30

// Create runs the full create sequence for a fresh workspace, or resumes a
// previous attempt that died after initialisation by emitting the terminal
// marker at the observed progress.
func (h *Handlers) Create(ctx context.Context, ws core.WorkspaceInfo) error {
	if ws.Mode == core.ModeCreating && ws.Progress >= createResumeThreshold {
		logger := h.logger.With("workspace", ws.Workspace, "phase", core.PhaseCreate)
		logger.Info("create already past initialisation, advancing", "progress", ws.Progress)
		h.newReporter(ws, core.PhaseCreate, logger).DoneAt(ctx, ws.Progress)
		return nil
	}

	return h.runPhase(ctx, ws, core.PhaseCreate, false, func(ctx context.Context, run *phaseRun) (phaseResult, error) {
		var branding *core.Branding
		if ws.Branding != "" {
			if b, ok := h.cfg.Brandings[ws.Branding]; ok {
				branding = &b
			} else {
				run.logger.Warn("unknown branding, creating unbranded", "branding", ws.Branding)
			}
		}

		err := h.deps.Creator.CreateWorkspace(ctx, CreateRequest{
			Workspace: ws,
			Branding:  branding,
			Version:   h.cfg.Version,
			Txes:      h.cfg.Txes,
			Logger:    run.logger,
			Progress:  run.report(ctx),
		})
		if err != nil {
			return noDone, err
		}
		return doneAt(100), nil
	})
}
