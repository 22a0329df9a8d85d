package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Worker pulls pending workspaces from the account service and drives each
// through its current lifecycle phase. One Worker runs per process; a fleet
// of them runs per region, with the account service handing each pending
// workspace to exactly one worker.
type Worker struct {
	client     controlplane.Client
	identity   core.WorkerIdentity
	token      string
	config     Config
	dispatcher *Dispatcher
	gate       *Gate
	waker      *Waker
	logger     *slog.Logger

	wg sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]bool // workspace id -> job running
}

// New creates a worker for the given account-service client and identity.
// It panics on a malformed identity; everything downstream assumes the
// identity invariants hold.
func New(client controlplane.Client, identity core.WorkerIdentity, token string, opts ...Option) *Worker {
	if err := identity.Validate(); err != nil {
		panic(fmt.Sprintf("worker: %v", err))
	}

	config := Config{
		WorkerID:    uuid.New().String(),
		WaitTimeout: 5 * time.Second,
		Backoff:     DefaultBackoffConfig(),
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}
	if config.Telemetry == nil {
		config.Telemetry = logTelemetry{logger: config.Logger}
	}

	identity.Limit = clampLimit(identity.Limit)
	logger := config.Logger.With("worker_id", config.WorkerID)

	waker := NewWaker()
	return &Worker{
		client:     client,
		identity:   identity,
		token:      token,
		config:     config,
		dispatcher: NewDispatcher(logger),
		gate:       NewGate(identity.Limit, waker.Wake),
		waker:      waker,
		logger:     logger,
		inFlight:   make(map[string]bool),
	}
}

// Register binds a phase handler to a workspace mode. All registration must
// happen before Run.
func (w *Worker) Register(mode core.Mode, fn PhaseFunc) {
	w.dispatcher.Register(mode, fn)
}

// Identity returns the worker's immutable identity.
func (w *Worker) Identity() core.WorkerIdentity {
	return w.identity
}

// WorkerID returns the process-lifetime worker id.
func (w *Worker) WorkerID() string {
	return w.config.WorkerID
}

// Running returns the number of jobs currently in flight.
func (w *Worker) Running() int {
	return w.gate.Running()
}

// NewReporter builds a progress reporter for one phase execution against
// ws, bound to this worker's client, token, and version.
func (w *Worker) NewReporter(ws core.WorkspaceInfo, phase core.Phase) *Reporter {
	version := w.identity.Version
	return NewReporter(w.client, w.token, ws, phase, &version, w.config.Backoff,
		w.logger.With("workspace", ws.Workspace, "phase", phase), w.config.Observer)
}

// registration is the handshake/pickup triple the account service matches
// pending work against.
func (w *Worker) registration() controlplane.Registration {
	return controlplane.Registration{
		Token:     w.token,
		Region:    w.identity.Region,
		Version:   w.identity.Version,
		Operation: w.identity.Operation,
	}
}

// Run performs the handshake and then polls for work until ctx is
// cancelled. Jobs already in flight are not interrupted on cancellation;
// Run waits for them to finish before returning.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker starting",
		"region", w.identity.Region,
		"version", w.identity.Version.String(),
		"operation", w.identity.Operation,
		"limit", w.identity.Limit)

	err := UntilSuccess(ctx, w.config.Backoff, w.logger, func() error {
		return w.client.Handshake(ctx, w.registration())
	})
	if err != nil {
		return err
	}
	w.logger.Info("handshake accepted")

	if w.config.HousekeepingSpec != "" {
		hk, err := newHousekeeping(w.config.HousekeepingSpec)
		if err != nil {
			return err
		}
		go hk.run(ctx, w)
	}

	for {
		if ctx.Err() != nil {
			break
		}

		if err := w.gate.Acquire(ctx); err != nil {
			break
		}

		ws, err := w.client.GetPending(ctx, w.registration())
		if err != nil {
			// Pickup errors are logged and treated as "no work"; the loop
			// must survive a flapping control-plane.
			if ctx.Err() == nil {
				w.logger.Warn("failed to fetch pending workspace", "error", err)
			}
			w.gate.Release()
			w.sleep(ctx)
			continue
		}

		if ws == nil {
			w.gate.Release()
			w.sleep(ctx)
			continue
		}

		if !w.claim(ws.Workspace) {
			// Already working on this workspace; the account service will
			// offer it again once the running job reports.
			w.gate.Release()
			w.sleep(ctx)
			continue
		}

		w.wg.Add(1)
		// Cancellation stops pickup, not jobs already in flight: they run
		// to completion on a detached context and Run waits for them.
		go w.runJob(context.WithoutCancel(ctx), *ws)
	}

	w.logger.Info("worker draining", "running", w.gate.Running())
	w.wg.Wait()
	w.logger.Info("worker stopped")
	return ctx.Err()
}

func (w *Worker) sleep(ctx context.Context) {
	// The poller's own gate.Release just signalled the waker; drop that
	// signal so only a release during the sleep cuts it short.
	select {
	case <-w.waker.ch:
	default:
	}
	_ = w.waker.Sleep(ctx, w.config.WaitTimeout)
}

// claim marks a workspace as in flight, refusing a second concurrent job
// for the same workspace.
func (w *Worker) claim(workspace string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[workspace] {
		return false
	}
	w.inFlight[workspace] = true
	return true
}

func (w *Worker) unclaim(workspace string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, workspace)
}

// runJob executes one dispatched job. Every error — including a panicking
// handler — is contained here: routed to telemetry, logged, and consumed.
// Nothing propagates back to the poll loop.
func (w *Worker) runJob(ctx context.Context, ws core.WorkspaceInfo) {
	defer w.wg.Done()
	defer w.gate.Release()
	defer w.unclaim(ws.Workspace)

	err := w.dispatch(ctx, ws)
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrUnknownMode) {
		// Already logged by the dispatcher; nothing to report.
		return
	}
	w.config.Telemetry.Swallowed(ws, err)
}

func (w *Worker) dispatch(ctx context.Context, ws core.WorkspaceInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.dispatcher.Dispatch(ctx, ws)
}
