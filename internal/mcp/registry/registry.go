// Package registry holds the tools a server exposes and dispatches tool calls
// to their handlers.
// file: internal/mcp/registry/registry.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/middleware"
	"github.com/dkoosis/codebridge/internal/schema"
)

// Handler executes one tool. args is the raw JSON object sent by the client.
type Handler func(ctx context.Context, args json.RawMessage) (*mcptypes.CallToolResult, error)

type entry struct {
	tool    mcptypes.Tool
	handler Handler
}

// Registry maps tool names to descriptors and handlers. Registration happens
// during server construction; Dispatch is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	order       []string
	middlewares []middleware.Middleware
	dispatch    middleware.ToolHandler
	logger      logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  logger.WithField("component", "tool_registry"),
	}
	r.dispatch = r.invoke
	return r
}

// Use installs middleware around every handler. The first middleware given
// runs outermost.
func (r *Registry) Use(mws ...middleware.Middleware) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.middlewares = append(r.middlewares, mws...)
	chain := middleware.NewChain(r.invoke)
	for _, mw := range r.middlewares {
		chain = chain.Use(mw)
	}
	r.dispatch = chain.Handler()
	return r
}

// Register adds a tool. It fails on an invalid or duplicate name, a nil
// handler, or an input schema that does not compile.
func (r *Registry) Register(tool mcptypes.Tool, handler Handler) error {
	if err := schema.ValidateToolName(tool.Name); err != nil {
		return mcperrors.NewConfigurationError("invalid tool name", err, map[string]interface{}{"tool": tool.Name})
	}
	if handler == nil {
		return mcperrors.NewConfigurationError("tool handler is nil", nil, map[string]interface{}{"tool": tool.Name})
	}
	compiled, err := schema.Compile(tool.Name, tool.InputSchema)
	if err != nil {
		return mcperrors.NewConfigurationError("tool input schema does not compile", err, map[string]interface{}{"tool": tool.Name})
	}
	tool.InputSchema = append(json.RawMessage(nil), compiled.Raw()...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[tool.Name]; exists {
		return mcperrors.NewConfigurationError("tool already registered", nil, map[string]interface{}{"tool": tool.Name})
	}
	r.entries[tool.Name] = &entry{tool: tool, handler: handler}
	r.order = append(r.order, tool.Name)
	r.logger.Debug("Registered tool.", "tool", tool.Name)
	return nil
}

// List returns the tool descriptors in registration order.
func (r *Registry) List() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Dispatch runs the named tool and always returns a result. Unknown tools,
// handler errors and handler panics become error-flagged results.
func (r *Registry) Dispatch(ctx context.Context, req mcptypes.CallToolRequest) (result *mcptypes.CallToolResult) {
	r.mu.RLock()
	_, ok := r.entries[req.Name]
	dispatch := r.dispatch
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("Unknown tool requested.", "tool", req.Name)
		return mcptypes.ErrorResult(fmt.Sprintf("Tool not found: %s", req.Name))
	}

	defer func() {
		if p := recover(); p != nil {
			result = r.panicResult(req.Name, p)
		}
	}()

	res, err := dispatch(ctx, req)
	if err != nil {
		r.logger.Warn("Tool handler failed.", "tool", req.Name, "error", fmt.Sprintf("%+v", err))
		return mcptypes.ErrorResult(fmt.Sprintf("Error calling %s: %v", req.Name, err))
	}
	if res == nil {
		return mcptypes.ErrorResult(fmt.Sprintf("Error calling %s: handler returned no result", req.Name))
	}
	return res
}

// invoke is the innermost link of the chain. A handler panic is converted
// to an error here so middleware observes it as a failed call.
func (r *Registry) invoke(ctx context.Context, req mcptypes.CallToolRequest) (res *mcptypes.CallToolResult, err error) {
	r.mu.RLock()
	e, ok := r.entries[req.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf("tool %q is not registered", req.Name)
	}

	defer func() {
		if p := recover(); p != nil {
			err = errors.WithStack(errors.Newf("panic: %v", p))
			r.logger.Error("Panic recovered in tool handler.",
				"tool", req.Name, "panic", p, "stack", string(debug.Stack()))
		}
	}()
	return e.handler(ctx, req.Arguments)
}

func (r *Registry) panicResult(tool string, p interface{}) *mcptypes.CallToolResult {
	r.logger.Error("Panic recovered during dispatch.", "tool", tool, "panic", p, "stack", string(debug.Stack()))
	return mcptypes.ErrorResult(fmt.Sprintf("Error calling %s: panic: %v", tool, p))
}
