// Package fulltext triggers reindexing on the full-text service after a
// workspace restore or cleanup. Reindex failures never fail the lifecycle
// event that triggered them: the workspace state transition has already
// happened server-side, and reindexing can be retried out-of-band.
package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// reindexBudget bounds retries of a single reindex trigger.
const reindexBudget = 5 * time.Second

// Client calls the full-text service's reindex endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	backoff worker.BackoffConfig
	logger  *slog.Logger
}

// NewClient creates a reindex caller for the full-text service at baseURL.
func NewClient(baseURL, token string, backoff worker.BackoffConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: reindexBudget},
		backoff: backoff,
		logger:  logger,
	}
}

// Reindex asks the full-text service to rebuild the workspace's indexes.
// With onlyDrop the indexes are dropped and not rebuilt, for workspaces
// that are going away entirely. Errors are logged and swallowed.
func (c *Client) Reindex(ctx context.Context, workspace string, onlyDrop bool) {
	err := worker.UntilTimeout(ctx, reindexBudget, c.backoff, c.logger, func() error {
		return c.reindexOnce(ctx, workspace, onlyDrop)
	})
	if err != nil {
		c.logger.Warn("fulltext reindex failed",
			"workspace", workspace, "only_drop", onlyDrop, "error", err)
	}
}

func (c *Client) reindexOnce(ctx context.Context, workspace string, onlyDrop bool) error {
	body, err := json.Marshal(struct {
		Token     string `json:"token"`
		Workspace string `json:"workspace"`
		OnlyDrop  bool   `json:"onlyDrop"`
	}{Token: c.token, Workspace: workspace, OnlyDrop: onlyDrop})
	if err != nil {
		return fmt.Errorf("fulltext: marshal reindex request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/v1/reindex", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fulltext: build reindex request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fulltext: reindex call: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fulltext: reindex call: unexpected status %d", resp.StatusCode)
	}
	return nil
}
