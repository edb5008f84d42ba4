package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/backr/internal/domain/types"
)

// client is a thin JSON client for the Backr HTTP API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(cfg Config) *client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}
}

func (c *client) healthy(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

func (c *client) suggestions(ctx context.Context, entityID string, limit int) (types.SuggestionResult, error) {
	var out types.SuggestionResult
	path := "/api/entities/" + url.PathEscape(entityID) + "/suggestions?limit=" + strconv.Itoa(limit)
	status, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		return out, fmt.Errorf("suggestions for %s: unexpected status %d", entityID, status)
	}
	return out, nil
}

// lock posts a lock request and returns the status code with the decoded ack.
func (c *client) lock(ctx context.Context, backingID, key string) (int, types.LockAck, error) {
	var ack types.LockAck
	header := http.Header{"Idempotency-Key": {key}}
	status, err := c.do(ctx, http.MethodPost, "/api/backings/"+url.PathEscape(backingID)+"/lock", header, &ack)
	return status, ack, err
}

func (c *client) do(ctx context.Context, method, path string, header http.Header, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
