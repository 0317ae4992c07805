// Package router dispatches inbound MCP method calls to registered handlers.
// file: internal/mcp/router/router.go
package router

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
)

// Handler answers a request. It returns the raw result or an error.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// NotificationHandler processes a notification; nothing is sent back.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Route maps a method name to its handlers.
type Route struct {
	Method              string
	Handler             Handler
	NotificationHandler NotificationHandler
}

// Router defines the method router used by the server loop.
type Router interface {
	AddRoute(route Route) error
	Route(ctx context.Context, method string, params json.RawMessage, isNotification bool) (json.RawMessage, error)
	GetRoutes() []string
}

type router struct {
	routes map[string]Route
	mu     sync.RWMutex
	logger logging.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger logging.Logger) Router {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &router{
		routes: make(map[string]Route),
		logger: logger.WithField("component", "mcp_router"),
	}
}

// AddRoute registers a route. Duplicate methods are rejected.
func (r *router) AddRoute(route Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if route.Method == "" {
		return mcperrors.NewConfigurationError("cannot register route with empty method name", nil, nil)
	}
	if route.Handler == nil && route.NotificationHandler == nil {
		return mcperrors.NewConfigurationError("route has no handler", nil,
			map[string]interface{}{"method": route.Method})
	}
	if _, exists := r.routes[route.Method]; exists {
		r.logger.Warn("Attempted to register duplicate route.", "method", route.Method)
		return mcperrors.NewConfigurationError("route already registered", nil,
			map[string]interface{}{"method": route.Method})
	}

	r.routes[route.Method] = route
	r.logger.Debug("Registered route.", "method", route.Method)
	return nil
}

// Route looks up the handler for method and runs it.
// A notification sent to a request-only method runs the handler and drops the result.
func (r *router) Route(ctx context.Context, method string, params json.RawMessage, isNotification bool) (json.RawMessage, error) {
	r.mu.RLock()
	route, exists := r.routes[method]
	r.mu.RUnlock()

	if !exists {
		r.logger.Warn("Method not found in router.", "method", method)
		return nil, mcperrors.NewMethodNotFoundError(method)
	}

	if isNotification {
		if route.NotificationHandler != nil {
			return nil, route.NotificationHandler(ctx, params)
		}
		r.logger.Warn("Notification sent to request-only method; result discarded.", "method", method)
		_, err := route.Handler(ctx, params)
		return nil, err
	}

	if route.Handler == nil {
		r.logger.Warn("Request sent to notification-only method.", "method", method)
		return nil, errors.WithDetail(mcperrors.NewMethodNotFoundError(method), "method is notification-only")
	}
	return route.Handler(ctx, params)
}

// GetRoutes returns the registered method names, sorted.
func (r *router) GetRoutes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.routes))
	for method := range r.routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
