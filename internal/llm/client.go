// Package llm talks to an OpenAI-compatible chat completions endpoint.
// file: internal/llm/client.go
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/httputils"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/ratelimit"
)

// ServiceName identifies this upstream in metrics.
const ServiceName = "llm"

// ErrMissingAPIKey is returned when no API key has been configured.
var ErrMissingAPIKey = errors.New("LLM API key is not configured")

// ErrEmptyCompletion is returned when the response carries no choices.
var ErrEmptyCompletion = errors.New("LLM response contained no choices")

// Request is one completion request.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Service produces text completions.
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Recorder receives upstream call timings.
type Recorder interface {
	RecordUpstreamCall(service string, latency time.Duration, err error)
}

// Client is the HTTP implementation of Service.
type Client struct {
	apiBase    string
	apiKey     string
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
	return func(c *Client) { c.logger = logger.WithField("component", "llm_client") }
}

// NewClient creates a client for apiBase (for example https://api.openai.com/v1).
// No client-side timeout is set; callers bound requests through ctx.
func NewClient(apiBase, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     logging.GetLogger("llm_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the system and user messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (text string, err error) {
	start := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.RecordUpstreamCall(ServiceName, time.Since(start), err)
		}
	}()

	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "Complete: rate limit wait failed")
	}

	body := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := httputils.PostJSON(ctx, c.httpClient, c.apiBase+"/chat/completions", headers, body, &resp); err != nil {
		c.logger.Warn("Chat completion request failed.", "model", req.Model, "error", err)
		if httputils.IsStatus(err, http.StatusUnauthorized) {
			return "", errors.Wrap(err, "Complete: API key was rejected")
		}
		return "", errors.Wrap(err, "Complete: chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.WithStack(ErrEmptyCompletion)
	}

	c.logger.Debug("Chat completion received.",
		"model", req.Model,
		"chars", len(resp.Choices[0].Message.Content),
		"duration_ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Message.Content, nil
}
