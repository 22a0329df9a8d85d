package controlplane

import (
	"context"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Registration is the worker's announcement to the account service. The
// account service matches pending workspaces against the {region, version,
// operation} triple; a worker is never handed work outside its declared
// capability.
type Registration struct {
	Token     string         `json:"token"`
	Region    string         `json:"region,omitempty"`
	Version   core.Version   `json:"version"`
	Operation core.Operation `json:"operation"`
}

// Update is one workspace event sent back to the account service. Event
// values come from the closed vocabulary in package core.
type Update struct {
	Token     string        `json:"token"`
	Workspace string        `json:"workspace"`
	Event     core.Event    `json:"event"`
	Version   *core.Version `json:"version,omitempty"`
	Progress  int           `json:"progress"`
	Message   string        `json:"message,omitempty"`
}

// Client is the account-service surface the worker consumes. All durable
// workspace state lives behind this interface; the worker itself persists
// nothing.
type Client interface {
	// Handshake registers the worker's capabilities. It is idempotent:
	// repeated calls with the same registration are equivalent.
	Handshake(ctx context.Context, reg Registration) error

	// GetPending asks for one pending workspace matching the registration.
	// A nil WorkspaceInfo with a nil error means no work is available.
	GetPending(ctx context.Context, reg Registration) (*core.WorkspaceInfo, error)

	// UpdateWorkspaceInfo reports a lifecycle event for a workspace.
	UpdateWorkspaceInfo(ctx context.Context, upd Update) error

	// GetTransactorEndpoint returns the URL of the transactor currently
	// serving sessions, used for pre-destroy maintenance calls.
	GetTransactorEndpoint(ctx context.Context, token string) (string, error)
}
