// Package ingest feeds the enrichment queue from a Microsoft To Do task
// list.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/httpclient"
	"github.com/ternarybob/ditare/internal/interfaces"
)

const (
	// DefaultGraphBaseURL is the Microsoft Graph v1.0 base URL.
	DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second
)

// GraphClient reads and deletes To Do tasks through Microsoft Graph. A 401
// on a cached token invalidates the cache and retries the call exactly once.
type GraphClient struct {
	baseURL    string
	tokens     interfaces.TokenSource
	httpClient *http.Client
	logger     arbor.ILogger
}

// GraphOption configures the client.
type GraphOption func(*GraphClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) GraphOption {
	return func(c *GraphClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) GraphOption {
	return func(c *GraphClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) GraphOption {
	return func(c *GraphClient) {
		c.logger = logger
	}
}

// NewGraphClient creates a Graph client over the given token source.
func NewGraphClient(tokens interfaces.TokenSource, opts ...GraphOption) *GraphClient {
	c := &GraphClient{
		baseURL:    DefaultGraphBaseURL,
		tokens:     tokens,
		httpClient: httpclient.NewDefaultHTTPClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ interfaces.TaskSource = (*GraphClient)(nil)

type taskListResponse struct {
	Value []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"value"`
}

// ListTasks returns up to limit tasks from the given list.
func (c *GraphClient) ListTasks(ctx context.Context, listID string, limit int) ([]interfaces.Task, error) {
	path := fmt.Sprintf("/me/todo/lists/%s/tasks?$top=%s", url.PathEscape(listID), strconv.Itoa(limit))

	var payload taskListResponse
	if err := c.do(ctx, http.MethodGet, path, &payload); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]interfaces.Task, 0, len(payload.Value))
	for _, item := range payload.Value {
		tasks = append(tasks, interfaces.Task{ID: item.ID, Title: item.Title})
	}
	return tasks, nil
}

// DeleteTask removes a task from the given list.
func (c *GraphClient) DeleteTask(ctx context.Context, listID, taskID string) error {
	path := fmt.Sprintf("/me/todo/lists/%s/tasks/%s", url.PathEscape(listID), url.PathEscape(taskID))
	if err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

func (c *GraphClient) do(ctx context.Context, method, path string, result interface{}) error {
	// One extra attempt covers a token the server already rejected
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire token: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			if c.logger != nil {
				c.logger.Warn().
					Str("path", path).
					Msg("Graph rejected cached token, refreshing")
			}
			c.tokens.Invalidate()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("graph request failed with status %d: %s", resp.StatusCode, string(body))
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				resp.Body.Close()
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		resp.Body.Close()
		return nil
	}
	return fmt.Errorf("graph request failed after token refresh")
}
