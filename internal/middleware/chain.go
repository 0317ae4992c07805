// Package middleware provides chainable wrappers around tool handlers, used by
// the registry to add logging and metrics to every dispatched call.
package middleware

// file: internal/middleware/chain.go

import (
	"context"

	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// ToolHandler processes one tool call.
type ToolHandler func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)

// Middleware wraps a ToolHandler.
type Middleware func(next ToolHandler) ToolHandler

// Chain builds a middleware stack around a final handler.
type Chain interface {
	// Use appends a middleware. The first one added runs outermost.
	Use(mw Middleware) Chain
	// Handler returns the composed handler.
	Handler() ToolHandler
}

type middlewareChain struct {
	handler     ToolHandler
	middlewares []Middleware
	finalized   bool
}

// NewChain creates a new middleware chain with the given final handler.
func NewChain(finalHandler ToolHandler) Chain {
	return &middlewareChain{
		handler:     finalHandler,
		middlewares: make([]Middleware, 0),
	}
}

// Use adds a middleware function to the chain.
func (c *middlewareChain) Use(mw Middleware) Chain {
	if c.finalized {
		return NewChain(c.handler).Use(mw)
	}
	c.middlewares = append(c.middlewares, mw)
	return c
}

// Handler returns the final composed handler function.
func (c *middlewareChain) Handler() ToolHandler {
	if c.finalized {
		return c.handler
	}

	handler := c.handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	c.finalized = true
	c.handler = handler
	return handler
}
