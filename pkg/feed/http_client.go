package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradekit/stratrunner/pkg/models"
)

// HTTPSnapshotClient implements SnapshotClient against the stratrunner batch
// snapshot endpoint.
type HTTPSnapshotClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSnapshotClient creates a snapshot client for the given server base
// URL (e.g. "http://localhost:8080"). token is sent as a Bearer token; pass
// "" for unauthenticated servers.
func NewHTTPSnapshotClient(baseURL, token string) *HTTPSnapshotClient {
	return &HTTPSnapshotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchSnapshots fetches the live logs for the given execution ids
func (c *HTTPSnapshotClient) FetchSnapshots(ctx context.Context, executionIDs []string) ([]models.ExecutionSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/executions/logs?ids=%s",
		c.baseURL, url.QueryEscape(strings.Join(executionIDs, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request returned %d", resp.StatusCode)
	}

	var body struct {
		Logs []models.ExecutionSnapshot `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	return body.Logs, nil
}
