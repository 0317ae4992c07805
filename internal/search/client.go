// Package search queries a web-search-pro style tools endpoint.
// file: internal/search/client.go
package search

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/httputils"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/ratelimit"
)

// ServiceName identifies this upstream in metrics.
const ServiceName = "search"

// DefaultTool is the tool name sent in each request.
const DefaultTool = "web-search-pro"

// ErrMissingAPIKey is returned when no API key has been configured.
var ErrMissingAPIKey = errors.New("search API key is not configured")

// Service runs a web search and returns the content of every hit.
type Service interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Recorder receives upstream call timings.
type Recorder interface {
	RecordUpstreamCall(service string, latency time.Duration, err error)
}

// Client is the HTTP implementation of Service.
type Client struct {
	endpoint   string
	apiKey     string
	tool       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	recorder   Recorder
	logger     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTool overrides the tool name sent upstream.
func WithTool(tool string) Option {
	return func(c *Client) {
		if tool != "" {
			c.tool = tool
		}
	}
}

// WithLimiter puts a rate limiter in front of every request.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRecorder reports each call to rec.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) { c.recorder = rec }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logger.WithField("component", "search_client") }
}

// NewClient creates a search client for endpoint.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		tool:       DefaultTool,
		httpClient: &http.Client{},
		logger:     logging.GetLogger("search_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type searchRequest struct {
	Tool     string    `json:"tool"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type searchResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				SearchResult []struct {
					Content string `json:"content"`
				} `json:"search_result"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Search returns the content field of every search result, in response order.
// Tool calls without results are skipped; no results at all is not an error.
func (c *Client) Search(ctx context.Context, query string) (results []string, err error) {
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.RecordUpstreamCall(ServiceName, time.Since(start), err)
		}
	}()

	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "Search: rate limit wait failed")
	}

	body := searchRequest{
		Tool:     c.tool,
		Messages: []message{{Role: "user", Content: query}},
		Stream:   false,
	}
	var resp searchResponse
	headers := map[string]string{"Authorization": c.apiKey}
	if err := httputils.PostJSON(ctx, c.httpClient, c.endpoint, headers, body, &resp); err != nil {
		c.logger.Warn("Search request failed.", "error", err)
		if httputils.IsStatus(err, http.StatusUnauthorized) {
			return nil, errors.Wrap(err, "Search: API key was rejected")
		}
		return nil, errors.Wrap(err, "Search: request failed")
	}

	for _, choice := range resp.Choices {
		for _, call := range choice.Message.ToolCalls {
			for _, r := range call.SearchResult {
				results = append(results, r.Content)
			}
		}
	}
	c.logger.Debug("Search completed.", "results", len(results), "duration_ms", time.Since(start).Milliseconds())
	return results, nil
}
