package phases

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/fulltext"
	"github.com/foundry-works/workspace-worker/pkg/storageadapter"
	"github.com/foundry-works/workspace-worker/pkg/transactor"
	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// fakeClient is an in-memory account service shared by the end-to-end
// scenarios: a queue of pending workspaces and a recorder for updates.
type fakeClient struct {
	mu       sync.Mutex
	pending  []core.WorkspaceInfo
	updates  []controlplane.Update
	endpoint string
}

func (f *fakeClient) Handshake(ctx context.Context, reg controlplane.Registration) error {
	return nil
}

func (f *fakeClient) GetPending(ctx context.Context, reg controlplane.Registration) (*core.WorkspaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	ws := f.pending[0]
	f.pending = f.pending[1:]
	return &ws, nil
}

func (f *fakeClient) UpdateWorkspaceInfo(ctx context.Context, upd controlplane.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeClient) GetTransactorEndpoint(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoint, nil
}

type recordedEvent struct {
	Workspace string
	Event     core.Event
	Progress  int
}

// events returns the non-ping updates in emission order.
func (f *fakeClient) events() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, u := range f.updates {
		if u.Event == core.EventPing {
			continue
		}
		out = append(out, recordedEvent{Workspace: u.Workspace, Event: u.Event, Progress: u.Progress})
	}
	return out
}

// memAdapter records destroys; memRegistry hands out fresh ones and keeps
// every adapter it opened so tests can assert on close behavior.
type memAdapter struct {
	mu      sync.Mutex
	url     string
	deleted []storageadapter.WorkspaceRef
	closed  bool
}

func (m *memAdapter) URL() string { return m.url }

func (m *memAdapter) DeleteWorkspace(ctx context.Context, ref storageadapter.WorkspaceRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *memAdapter) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memRegistry struct {
	mu     sync.Mutex
	opened []*memAdapter
}

func (r *memRegistry) registry() *storageadapter.Registry {
	reg := storageadapter.NewRegistry()
	reg.Register("postgresql", func(ctx context.Context, dbURL string) (storageadapter.Adapter, error) {
		a := &memAdapter{url: dbURL}
		r.mu.Lock()
		r.opened = append(r.opened, a)
		r.mu.Unlock()
		return a, nil
	})
	return reg
}

func (r *memRegistry) allClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.opened {
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			return false
		}
	}
	return true
}

func (r *memRegistry) destroyed() []storageadapter.WorkspaceRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []storageadapter.WorkspaceRef
	for _, a := range r.opened {
		a.mu.Lock()
		out = append(out, a.deleted...)
		a.mu.Unlock()
	}
	return out
}

// Collaborator fakes.

type fakeCreator struct {
	mu    sync.Mutex
	calls []core.WorkspaceInfo
	err   error
	steps []float64
}

func (c *fakeCreator) CreateWorkspace(ctx context.Context, req CreateRequest) error {
	c.mu.Lock()
	c.calls = append(c.calls, req.Workspace)
	err := c.err
	steps := c.steps
	c.mu.Unlock()
	if err != nil {
		return err
	}
	for _, p := range steps {
		req.Progress(p)
	}
	return nil
}

func (c *fakeCreator) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeUpgrader struct {
	mu    sync.Mutex
	calls []core.WorkspaceInfo
	err   error
}

func (u *fakeUpgrader) UpgradeWorkspace(ctx context.Context, req UpgradeRequest) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, req.Workspace)
	return u.err
}

func (u *fakeUpgrader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type fakeBackups struct {
	mu         sync.Mutex
	backups    []BackupRequest
	restores   []RestoreRequest
	backupOK   bool
	backupErr  error
	restoreErr error
}

func (b *fakeBackups) Backup(ctx context.Context, req BackupRequest) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backups = append(b.backups, req)
	return b.backupOK, b.backupErr
}

func (b *fakeBackups) Restore(ctx context.Context, req RestoreRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restores = append(b.restores, req)
	return b.restoreErr
}

// transactorRecorder is an HTTP stand-in for the serving tier.
type transactorRecorder struct {
	mu    sync.Mutex
	calls []url.Values
	srv   *httptest.Server
}

func newTransactorRecorder(t *testing.T) *transactorRecorder {
	rec := &transactorRecorder{}
	rec.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.calls = append(rec.calls, r.URL.Query())
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rec.srv.Close)
	return rec
}

func (rec *transactorRecorder) forceCloses() []url.Values {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]url.Values, len(rec.calls))
	copy(out, rec.calls)
	return out
}

func fastBackoff() worker.BackoffConfig {
	return worker.BackoffConfig{
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// harness wires a real worker, real handlers, and fakes for everything
// external, the way cmd/workspaceworker does in production.
type harness struct {
	client   *fakeClient
	creator  *fakeCreator
	upgrader *fakeUpgrader
	backups  *fakeBackups
	adapters *memRegistry
	trans    *transactorRecorder
	worker   *worker.Worker
	handlers *Handlers
}

func newHarness(t *testing.T, mutate func(cfg *Config, deps *Deps)) *harness {
	t.Helper()

	h := &harness{
		client:   &fakeClient{},
		creator:  &fakeCreator{steps: []float64{25, 75}},
		upgrader: &fakeUpgrader{},
		backups:  &fakeBackups{backupOK: true},
		adapters: &memRegistry{},
		trans:    newTransactorRecorder(t),
	}
	h.client.endpoint = "ws://" + h.trans.srv.Listener.Addr().String()

	cfg := Config{
		Token:   "tok",
		DBURL:   "postgresql://db.internal:5432/workspaces",
		Version: core.Version{Major: 0, Minor: 7, Patch: 1},
		Txes:    []string{"tx-core", "tx-attachments"},
		Console: true,
	}
	deps := Deps{
		Client:      h.client,
		Adapters:    h.adapters.registry(),
		Maintenance: transactor.NewMaintenance(h.client, "tok", fastBackoff(), nil),
		Creator:     h.creator,
		Upgrader:    h.upgrader,
		Backups:     h.backups,
		Backoff:     fastBackoff(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	h.handlers = New(cfg, deps)

	identity := core.WorkerIdentity{
		Version:   cfg.Version,
		Region:    "eu",
		Limit:     1,
		Operation: core.OperationAll,
	}
	h.worker = worker.New(h.client, identity, "tok",
		worker.WithWaitTimeout(5*time.Millisecond),
		worker.WithBackoff(fastBackoff()),
	)
	h.handlers.RegisterAll(h.worker)
	return h
}

// process runs the worker until cond holds, then cancels and drains.
func (h *harness) process(t *testing.T, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.worker.Run(ctx)
		close(done)
	}()

	// Longer than the full-text client's 5s retry budget, so a phase whose
	// reindex keeps failing can still finish inside the window.
	deadline := time.Now().Add(15 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain")
	}
}

// drained reports whether the pending queue is empty and nothing is in
// flight anymore.
func (h *harness) drained() bool {
	h.client.mu.Lock()
	empty := len(h.client.pending) == 0
	h.client.mu.Unlock()
	return empty && h.worker.Running() == 0
}

func newFulltextServer(t *testing.T, status int) (*httptest.Server, func() int) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func newFulltextClient(srv *httptest.Server) *fulltext.Client {
	return fulltext.NewClient(srv.URL, "tok", fastBackoff(), nil)
}
