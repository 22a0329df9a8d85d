// Package transactor issues maintenance calls against the stateful serving
// tier. Before a destructive phase the worker asks the transactor to
// force-close every live session to the workspace; the call is best-effort
// because the transactor may already be down, and the destructive action is
// authorised regardless.
package transactor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// maintenanceBudget bounds the whole endpoint-lookup-plus-PUT attempt. Kept
// short: a destructive phase should not stall behind a dead transactor.
const maintenanceBudget = 5 * time.Second

// Maintenance resolves the current transactor endpoint from the account
// service and issues management calls against it.
type Maintenance struct {
	client  controlplane.Client
	token   string
	http    *http.Client
	backoff worker.BackoffConfig
	logger  *slog.Logger
}

// NewMaintenance creates a maintenance caller.
func NewMaintenance(client controlplane.Client, token string, backoff worker.BackoffConfig, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{
		client:  client,
		token:   token,
		http:    &http.Client{Timeout: maintenanceBudget},
		backoff: backoff,
		logger:  logger,
	}
}

// ForceClose asks the serving transactor to drop every live session to the
// workspace. Errors are logged and swallowed.
func (m *Maintenance) ForceClose(ctx context.Context, workspace string) {
	err := worker.UntilTimeout(ctx, maintenanceBudget, m.backoff, m.logger, func() error {
		return m.forceCloseOnce(ctx, workspace)
	})
	if err != nil {
		m.logger.Warn("transactor force-close failed", "workspace", workspace, "error", err)
	}
}

func (m *Maintenance) forceCloseOnce(ctx context.Context, workspace string) error {
	endpoint, err := m.client.GetTransactorEndpoint(ctx, m.token)
	if err != nil {
		return fmt.Errorf("transactor: resolve endpoint: %w", err)
	}

	manageURL := ToHTTP(endpoint) + "/api/v1/manage?" + url.Values{
		"token":     {m.token},
		"operation": {"force-close"},
		"workspace": {workspace},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, manageURL, nil)
	if err != nil {
		return fmt.Errorf("transactor: build manage request: %w", err)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("transactor: manage call: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transactor: manage call: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ToHTTP rewrites a transactor ws(s):// endpoint to its http(s)://
// management address. Endpoints already on http pass through unchanged.
func ToHTTP(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	default:
		return endpoint
	}
}
