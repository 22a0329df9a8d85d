package worker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Observer receives a copy of every event the reporter emits. Installed by
// the status surface to feed its SSE tail; nil observers are ignored.
type Observer func(workspace string, event core.Event, progress int)

const (
	// keepaliveInterval is how often a running phase pings the
	// control-plane so it does not reclaim the workspace as abandoned.
	keepaliveInterval = 5 * time.Second

	// updateBudget bounds retries of a single progress/ping update. After
	// the budget the update is dropped; the next one supersedes it.
	updateBudget = 5 * time.Second
)

// Reporter drives progress reporting for one (workspace, phase) execution.
// Progress is rounded to an integer percent and emitted only when the
// rounded value advances, so external pipelines can report as often as they
// like without flooding the control-plane. A fresh Reporter is built per
// phase execution; monotonicity is scoped to that execution.
type Reporter struct {
	client   controlplane.Client
	token    string
	ws       core.WorkspaceInfo
	phase    core.Phase
	version  *core.Version
	backoff  BackoffConfig
	logger   *slog.Logger
	observer Observer

	mu   sync.Mutex
	last int // last emitted rounded percent, -1 before the first emit
}

// NewReporter creates a reporter for one phase execution against ws.
func NewReporter(client controlplane.Client, token string, ws core.WorkspaceInfo, phase core.Phase, version *core.Version, backoff BackoffConfig, logger *slog.Logger, observer Observer) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		client:   client,
		token:    token,
		ws:       ws,
		phase:    phase,
		version:  version,
		backoff:  backoff,
		logger:   logger,
		observer: observer,
		last:     -1,
	}
}

// Started emits the "<phase>-started" marker at progress 0.
func (r *Reporter) Started(ctx context.Context) {
	r.mu.Lock()
	if r.last < 0 {
		r.last = 0
	}
	r.mu.Unlock()
	r.send(ctx, r.phase.Started(), 0, "")
}

// Done emits the "<phase>-done" marker at progress 100.
func (r *Reporter) Done(ctx context.Context) {
	r.DoneAt(ctx, 100)
}

// DoneAt emits the "<phase>-done" marker at an explicit progress value, for
// the phases whose terminal event does not carry 100.
func (r *Reporter) DoneAt(ctx context.Context, progress int) {
	r.mu.Lock()
	if progress > r.last {
		r.last = progress
	}
	r.mu.Unlock()
	r.send(ctx, r.phase.Done(), progress, "")
}

// Report feeds one raw progress observation. The value is rounded to an
// integer percent; an update goes out only when the rounded value advances
// past the last emitted one.
func (r *Reporter) Report(ctx context.Context, p float64) {
	rounded := int(math.Round(p))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}

	r.mu.Lock()
	if rounded <= r.last {
		r.mu.Unlock()
		return
	}
	r.last = rounded
	r.mu.Unlock()

	r.send(ctx, core.EventProgress, rounded, "")
}

// Progress returns the latest emitted progress value, 0 before any emit.
func (r *Reporter) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last < 0 {
		return 0
	}
	return r.last
}

// StartKeepalive launches the periodic ping and returns a stop function.
// The stop function is idempotent and must be called on every exit path of
// the phase so no ticker outlives its job.
func (r *Reporter) StartKeepalive(ctx context.Context) (stop func()) {
	pingCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				r.send(pingCtx, core.EventPing, r.Progress(), "")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}

// send pushes one event, retrying within the update budget and dropping the
// event on exhaustion. A dropped progress tick is harmless: the next one
// supersedes it, and the terminal marker is what advances the state machine.
func (r *Reporter) send(ctx context.Context, event core.Event, progress int, message string) {
	err := UntilTimeout(ctx, updateBudget, r.backoff, r.logger, func() error {
		return r.client.UpdateWorkspaceInfo(ctx, controlplane.Update{
			Token:     r.token,
			Workspace: r.ws.Workspace,
			Event:     event,
			Version:   r.version,
			Progress:  progress,
			Message:   message,
		})
	})
	if err != nil {
		r.logger.Warn("dropping workspace update",
			"workspace", r.ws.Workspace, "event", event, "progress", progress, "error", err)
		return
	}
	if r.observer != nil {
		r.observer(r.ws.Workspace, event, progress)
	}
}
