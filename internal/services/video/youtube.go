// Package video provides YouTube candidate search for the enrichment
// pipeline's video step.
package video

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
	"github.com/ternarybob/ditare/internal/models"
)

const (
	// DefaultBaseURL is the YouTube Data API v3 base URL.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults bounds one search response.
	DefaultMaxResults = 5
)

// YouTubeClient searches YouTube for candidate videos.
type YouTubeClient struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	logger     arbor.ILogger
}

// YouTubeOption configures the client.
type YouTubeOption func(*YouTubeClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) YouTubeOption {
	return func(c *YouTubeClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) YouTubeOption {
	return func(c *YouTubeClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) YouTubeOption {
	return func(c *YouTubeClient) {
		c.logger = logger
	}
}

// WithMaxResults bounds the number of candidates per search.
func WithMaxResults(maxResults int) YouTubeOption {
	return func(c *YouTubeClient) {
		if maxResults > 0 {
			c.maxResults = maxResults
		}
	}
}

// NewYouTubeClient creates a new search client.
func NewYouTubeClient(apiKey string, opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		maxResults: DefaultMaxResults,
		httpClient: httpclient.NewDefaultHTTPClient(DefaultTimeout),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.VideoSearcher = (*YouTubeClient)(nil)

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search returns candidate videos for the query, best match first. An empty
// result is not an error.
func (c *YouTubeClient) Search(ctx context.Context, query string) ([]models.Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	params.Set("key", c.apiKey)

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("query", query).
			Msg("YouTube search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("youtube search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	videos := make([]models.Video, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, models.Video{
			VideoID: item.ID.VideoID,
			Title:   item.Snippet.Title,
		})
	}
	return videos, nil
}
