// file: internal/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/httputils"
	"github.com/dkoosis/codebridge/internal/metrics"
	"github.com/dkoosis/codebridge/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Complete_ReturnsFirstChoice(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body chatRequest) {
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		assert.InDelta(t, 0.2, body.Temperature, 1e-9)
		assert.Equal(t, 2000, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "write hello", body.Messages[1].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"print('hello')"}},{"message":{"content":"other"}}]}`))
	})

	rec := metrics.NewCollector(4)
	c := NewClient(srv.URL+"/v1/", "sk-test", WithHTTPClient(srv.Client()), WithRecorder(rec),
		WithLimiter(ratelimit.New(100, 10)))
	text, err := c.Complete(context.Background(), Request{
		Model: "gpt-3.5-turbo", System: "persona", User: "write hello", Temperature: 0.2, MaxTokens: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "print('hello')", text)

	snap := rec.Snapshot()
	assert.Equal(t, 1, snap.Upstream[ServiceName].Calls)
	assert.Equal(t, 0, snap.Upstream[ServiceName].Failures)
}

func TestClient_Complete_EmptyChoicesIsError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ chatRequest) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	c := NewClient(srv.URL+"/v1", "sk-test", WithHTTPClient(srv.Client()))
	_, err := c.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCompletion))
}

func TestClient_Complete_Non2xxIsError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})
	rec := metrics.NewCollector(4)
	c := NewClient(srv.URL+"/v1", "sk-test", WithHTTPClient(srv.Client()), WithRecorder(rec))
	_, err := c.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.True(t, httputils.IsStatus(err, http.StatusTooManyRequests))
	assert.Contains(t, err.Error(), "slow down")
	assert.Equal(t, 1, rec.Snapshot().Upstream[ServiceName].Failures)
}

func TestClient_Complete_UnauthorizedNamesTheKey(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	})
	c := NewClient(srv.URL+"/v1", "sk-bad", WithHTTPClient(srv.Client()))
	_, err := c.Complete(context.Background(), Request{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key was rejected")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestClient_Complete_MissingKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	_, err := c.Complete(context.Background(), Request{User: "x"})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestClient_Complete_OmitsEmptySystemMessage(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body chatRequest) {
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})
	c := NewClient(srv.URL+"/v1", "sk-test", WithHTTPClient(srv.Client()))
	text, err := c.Complete(context.Background(), Request{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestClient_Complete_HonoursContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ chatRequest) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	})
	c := NewClient(srv.URL+"/v1", "sk-test", WithHTTPClient(srv.Client()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, Request{User: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
