package controlplane

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

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// HTTPClient implements Client over plain JSON-over-HTTP. It carries no
// retry logic of its own; callers wrap calls in the retry policies from
// package worker, so the transport stays thin and every failure surfaces.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the account service at baseURL.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Handshake registers the worker's capabilities with the account service.
func (c *HTTPClient) Handshake(ctx context.Context, reg Registration) error {
	return c.post(ctx, "/api/v1/worker/handshake", reg, nil)
}

// GetPending asks for one pending workspace. A 204 from the account service
// means no work is available and maps to (nil, nil).
func (c *HTTPClient) GetPending(ctx context.Context, reg Registration) (*core.WorkspaceInfo, error) {
	var ws core.WorkspaceInfo
	found, err := c.postMaybe(ctx, "/api/v1/worker/pending", reg, &ws)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &ws, nil
}

// UpdateWorkspaceInfo reports a lifecycle event for a workspace.
func (c *HTTPClient) UpdateWorkspaceInfo(ctx context.Context, upd Update) error {
	return c.post(ctx, "/api/v1/workspace/update", upd, nil)
}

// GetTransactorEndpoint returns the URL of the serving transactor.
func (c *HTTPClient) GetTransactorEndpoint(ctx context.Context, token string) (string, error) {
	var out struct {
		Endpoint string `json:"endpoint"`
	}
	req := struct {
		Token string `json:"token"`
	}{Token: token}
	if err := c.post(ctx, "/api/v1/transactor", req, &out); err != nil {
		return "", err
	}
	return out.Endpoint, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	_, err := c.postMaybe(ctx, path, in, out)
	return err
}

// postMaybe sends a JSON POST and decodes the response into out when the
// account service returned a body. It reports found=false on 204.
func (c *HTTPClient) postMaybe(ctx context.Context, path string, in, out any) (found bool, err error) {
	body, err := json.Marshal(in)
	if err != nil {
		return false, fmt.Errorf("controlplane: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("controlplane: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("controlplane: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("controlplane: %s: unexpected status %d: %s", path, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("controlplane: decode %s response: %w", path, err)
		}
	}
	return true, nil
}
