package worker

import (
	"context"
	"sync"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
)

// fakeClient is an in-memory account service: a queue of pending
// workspaces handed out one per poll, and a recorder for every update.
type fakeClient struct {
	mu         sync.Mutex
	handshakes []controlplane.Registration
	pending    []core.WorkspaceInfo
	updates    []controlplane.Update
	polls      int

	handshakeErr error
	pendingErr   error
	updateErr    error
	endpoint     string
}

func (f *fakeClient) Handshake(ctx context.Context, reg controlplane.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handshakeErr != nil {
		err := f.handshakeErr
		f.handshakeErr = nil
		return err
	}
	f.handshakes = append(f.handshakes, reg)
	return nil
}

func (f *fakeClient) GetPending(ctx context.Context, reg controlplane.Registration) (*core.WorkspaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pendingErr != nil {
		err := f.pendingErr
		f.pendingErr = nil
		return nil, err
	}
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
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeClient) GetTransactorEndpoint(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoint, nil
}

func (f *fakeClient) recordedUpdates() []controlplane.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]controlplane.Update, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeClient) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// events filters the recorded updates down to (event, progress) pairs,
// dropping pings, which fire on a wall-clock schedule and would make
// assertions flaky.
func (f *fakeClient) events() []recordedEvent {
	var out []recordedEvent
	for _, u := range f.recordedUpdates() {
		if u.Event == core.EventPing {
			continue
		}
		out = append(out, recordedEvent{Workspace: u.Workspace, Event: u.Event, Progress: u.Progress})
	}
	return out
}

type recordedEvent struct {
	Workspace string
	Event     core.Event
	Progress  int
}

func testIdentity(limit int) core.WorkerIdentity {
	return core.WorkerIdentity{
		Version:   core.Version{Major: 0, Minor: 7, Patch: 1},
		Region:    "eu",
		Limit:     limit,
		Operation: core.OperationAll,
	}
}
