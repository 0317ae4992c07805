// file: internal/mcp/router/router_test.go
package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dkoosis/codebridge/internal/logging"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockHandler = errors.New("mock handler error")

func echoHandler(method string) Handler {
	return func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"method": method, "params": string(params)})
	}
}

func failingHandler() Handler {
	return func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errMockHandler
	}
}

func countingNotification(counter *atomic.Int32) NotificationHandler {
	return func(context.Context, json.RawMessage) error {
		counter.Add(1)
		return nil
	}
}

func assertCode(t *testing.T, expected mcperrors.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	code, ok := mcperrors.Code(err)
	require.True(t, ok, "expected a coded error, got %T", err)
	assert.Equal(t, expected, code)
}

func TestRouter_AddRoute_Succeeds(t *testing.T) {
	r := NewRouter(logging.GetNoopLogger())
	require.NoError(t, r.AddRoute(Route{Method: "tools/list", Handler: echoHandler("tools/list")}))
	require.NoError(t, r.AddRoute(Route{Method: "notifications/initialized", NotificationHandler: countingNotification(new(atomic.Int32))}))
	assert.Equal(t, []string{"notifications/initialized", "tools/list"}, r.GetRoutes())
}

func TestRouter_AddRoute_Fails_When_Invalid(t *testing.T) {
	r := NewRouter(nil)
	assertCode(t, mcperrors.ErrConfiguration, r.AddRoute(Route{Handler: echoHandler("x")}))
	assertCode(t, mcperrors.ErrConfiguration, r.AddRoute(Route{Method: "x"}))

	require.NoError(t, r.AddRoute(Route{Method: "x", Handler: echoHandler("x")}))
	assertCode(t, mcperrors.ErrConfiguration, r.AddRoute(Route{Method: "x", Handler: echoHandler("x")}))
}

func TestRouter_Route_Request(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.AddRoute(Route{Method: "ping", Handler: echoHandler("ping")}))

	out, err := r.Route(context.Background(), "ping", json.RawMessage(`{"a":1}`), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"ping","params":"{\"a\":1}"}`, string(out))
}

func TestRouter_Route_PropagatesHandlerError(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.AddRoute(Route{Method: "boom", Handler: failingHandler()}))

	_, err := r.Route(context.Background(), "boom", nil, false)
	assert.ErrorIs(t, err, errMockHandler)
}

func TestRouter_Route_MethodNotFound(t *testing.T) {
	r := NewRouter(nil)
	_, err := r.Route(context.Background(), "resources/list", nil, false)
	assertCode(t, mcperrors.ErrMethodNotFound, err)
}

func TestRouter_Route_Notifications(t *testing.T) {
	r := NewRouter(nil)
	counter := new(atomic.Int32)
	require.NoError(t, r.AddRoute(Route{Method: "notifications/initialized", NotificationHandler: countingNotification(counter)}))
	require.NoError(t, r.AddRoute(Route{Method: "ping", Handler: echoHandler("ping")}))

	out, err := r.Route(context.Background(), "notifications/initialized", nil, true)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, int32(1), counter.Load())

	out, err = r.Route(context.Background(), "ping", nil, true)
	require.NoError(t, err)
	assert.Nil(t, out, "results of notifications are discarded")

	_, err = r.Route(context.Background(), "notifications/initialized", nil, false)
	assertCode(t, mcperrors.ErrMethodNotFound, err)
}
