package phases

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/security"
	"github.com/foundry-works/workspace-worker/pkg/storageadapter"
	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// phaseRun is the per-execution context a phase body receives.
type phaseRun struct {
	ws       core.WorkspaceInfo
	reporter *worker.Reporter
	logger   *slog.Logger
}

// report adapts the run's reporter to the collaborator ProgressFunc.
func (r *phaseRun) report(ctx context.Context) ProgressFunc {
	return func(p float64) {
		r.reporter.Report(ctx, p)
	}
}

// phaseResult says whether and at which progress value the terminal done
// marker goes out.
type phaseResult struct {
	progress int
	emitDone bool
}

func doneAt(progress int) phaseResult {
	return phaseResult{progress: progress, emitDone: true}
}

// noDone ends a phase without a terminal marker; the workspace stays in
// its server-side mode and the control-plane may hand it back later.
var noDone = phaseResult{}

// runPhase is the skeleton every handler shares: log sink, destructive
// maintenance call, started marker, keepalive, phase body, terminal
// marker. The keepalive and the log sink are released on every exit path.
// A failing body is routed to the configured error handler and returned so
// the job boundary can record it; it never emits a done marker.
func (h *Handlers) runPhase(ctx context.Context, ws core.WorkspaceInfo, phase core.Phase, destructive bool, body func(ctx context.Context, run *phaseRun) (phaseResult, error)) error {
	logger, closeLog := h.openLogSink(ws, phase)
	defer closeLog()

	reporter := h.newReporter(ws, phase, logger)

	if destructive {
		// Live sessions would observe a half-destroyed workspace; ask the
		// serving tier to drop them first. Best-effort by contract.
		h.deps.Maintenance.ForceClose(ctx, ws.Workspace)
	}

	logger.Info("phase starting", "mode", ws.EffectiveMode())
	reporter.Started(ctx)
	stopKeepalive := reporter.StartKeepalive(ctx)
	defer stopKeepalive()

	res, err := body(ctx, &phaseRun{ws: ws, reporter: reporter, logger: logger})
	if err != nil {
		logger.Error("phase failed", "error", security.SanitizeErrorMessage(err.Error()))
		if h.cfg.ErrorHandler != nil {
			h.cfg.ErrorHandler(ws, err)
		}
		return fmt.Errorf("phases: %s %s: %w", phase, ws.Workspace, err)
	}

	if res.emitDone {
		reporter.DoneAt(ctx, res.progress)
		logger.Info("phase complete", "progress", res.progress)
	}
	return nil
}

// newReporter builds a reporter for one phase execution.
func (h *Handlers) newReporter(ws core.WorkspaceInfo, phase core.Phase, logger *slog.Logger) *worker.Reporter {
	version := h.cfg.Version
	return worker.NewReporter(h.deps.Client, h.cfg.Token, ws, phase, &version, h.deps.Backoff, logger, h.deps.Observer)
}

// openLogSink returns the phase's logger and its release function. With
// console logging the process logger is reused; otherwise log lines append
// to <logs>/<workspace>.log. A sink that cannot be opened falls back to
// the process logger rather than failing the phase.
func (h *Handlers) openLogSink(ws core.WorkspaceInfo, phase core.Phase) (*slog.Logger, func()) {
	tagged := h.logger.With("workspace", ws.Workspace, "phase", phase)
	if h.cfg.Console {
		return tagged, func() {}
	}

	path, err := security.SanitizeLogPath(h.cfg.LogsDir, ws.Workspace)
	if err != nil {
		tagged.Warn("refusing workspace log path, logging to console", "error", err)
		return tagged, func() {}
	}
	if err := os.MkdirAll(h.cfg.LogsDir, 0o755); err != nil {
		tagged.Warn("cannot create logs dir, logging to console", "error", err)
		return tagged, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		tagged.Warn("cannot open workspace log, logging to console", "error", err)
		return tagged, func() {}
	}

	fileLogger := slog.New(slog.NewTextHandler(f, nil)).With("workspace", ws.Workspace, "phase", phase)
	return fileLogger, func() {
		if err := f.Close(); err != nil {
			tagged.Warn("closing workspace log", "error", err)
		}
	}
}

// destroyWorkspace opens the destroy adapter for the configured DB URL,
// drops the workspace, and closes the adapter on every path.
func (h *Handlers) destroyWorkspace(ctx context.Context, run *phaseRun) error {
	adapter, err := h.deps.Adapters.Open(ctx, h.cfg.DBURL)
	if err != nil {
		return err
	}
	defer h.closeAdapter(ctx, adapter, run.logger)

	return adapter.DeleteWorkspace(ctx, storageadapter.WorkspaceRef{
		Name: run.ws.Workspace,
		UUID: run.ws.UUID,
	})
}

func (h *Handlers) closeAdapter(ctx context.Context, adapter storageadapter.Adapter, logger *slog.Logger) {
	if err := adapter.Close(ctx); err != nil {
		logger.Warn("closing storage adapter", "error", err)
	}
}

// reindex triggers the full-text service when one is configured. Failures
// are swallowed inside the client; the lifecycle event stays successful.
func (h *Handlers) reindex(ctx context.Context, ws core.WorkspaceInfo, onlyDrop bool) {
	if h.deps.Fulltext == nil {
		return
	}
	h.deps.Fulltext.Reindex(ctx, ws.Workspace, onlyDrop)
}
