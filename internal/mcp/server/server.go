// Package server runs the tool server side of the protocol over a Transport.
// file: internal/mcp/server/server.go
package server

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	"github.com/dkoosis/codebridge/internal/mcp/router"
	"github.com/dkoosis/codebridge/internal/mcp/state"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/metrics"
	"github.com/dkoosis/codebridge/internal/transport"
	"github.com/google/uuid"
)

// Config describes the server identity sent in the initialize response.
type Config struct {
	Name         string
	Version      string
	Instructions string
}

// Server answers initialize, ping, tools/list and tools/call for the tools in
// its registry. Messages are processed one at a time.
type Server struct {
	config     Config
	registry   *registry.Registry
	router     router.Router
	logger     logging.Logger
	metrics    *metrics.Collector
	instanceID string
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a collector; a summary is logged when Serve returns.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// New builds a server exposing the tools of reg.
func New(cfg Config, reg *registry.Registry, opts ...Option) (*Server, error) {
	if reg == nil {
		return nil, errors.New("server requires a tool registry")
	}
	if cfg.Name == "" {
		cfg.Name = "codebridge"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		config:     cfg,
		registry:   reg,
		logger:     logging.GetNoopLogger(),
		instanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "mcp_server").WithField("instance", s.instanceID)
	s.router = router.NewRouter(s.logger)

	if err := s.registerRoutes(); err != nil {
		return nil, errors.Wrap(err, "failed to register protocol routes")
	}
	return s, nil
}

// Info returns the implementation info sent to clients.
func (s *Server) Info() mcptypes.Implementation {
	return mcptypes.Implementation{Name: s.config.Name, Version: s.config.Version}
}

func (s *Server) registerRoutes() error {
	routes := []router.Route{
		{Method: mcptypes.MethodInitialize, Handler: s.handleInitialize},
		{Method: mcptypes.MethodInitialized, NotificationHandler: s.handleInitialized},
		{Method: mcptypes.MethodPing, Handler: s.handlePing},
		{Method: mcptypes.MethodToolsList, Handler: s.handleToolsList},
		{Method: mcptypes.MethodToolsCall, Handler: s.handleToolsCall},
	}
	for _, r := range routes {
		if err := s.router.AddRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// Serve processes messages from t until the peer disconnects or ctx ends.
// A clean disconnect returns nil. t is closed on return.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	machine, err := state.NewServerMachine(s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			s.logger.Debug("Error closing transport.", "error", closeErr)
		}
		if machine.CanTransition(state.EventTransportClosed) {
			_ = machine.Transition(context.Background(), state.EventTransportClosed, nil)
		}
		s.logSummary()
	}()

	s.logger.Info("Server processing loop started.", "tools", s.registry.Names())
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("Context canceled, stopping server loop.")
			return err
		}

		msg, readErr := t.ReadMessage(ctx)
		if readErr != nil {
			if stop, err := s.handleReadError(ctx, t, readErr); stop {
				return err
			}
			continue
		}

		resp := s.handleMessage(ctx, machine, msg)
		if resp == nil {
			continue
		}
		if writeErr := t.WriteMessage(ctx, resp); writeErr != nil {
			if transport.IsClosedError(writeErr) {
				s.logger.Info("Client went away before the response was written.", "error", writeErr)
				return nil
			}
			s.logger.Error("Failed to write response.", "error", fmt.Sprintf("%+v", writeErr))
			return errors.Wrap(writeErr, "failed to write response")
		}
	}
}

// handleReadError decides whether the loop stops. Malformed messages are
// answered with a JSON-RPC error and the loop continues.
func (s *Server) handleReadError(ctx context.Context, t transport.Transport, readErr error) (bool, error) {
	switch {
	case transport.IsClosedError(readErr):
		s.logger.Info("Client disconnected, stopping server loop.")
		return true, nil
	case ctx.Err() != nil:
		return true, ctx.Err()
	case transport.IsRecoverableReadError(readErr):
		s.logger.Warn("Rejected malformed message.", "error", readErr)
		code, message, data := transport.MapErrorToJSONRPC(readErr)
		resp, err := mcptypes.NewErrorResponse(nil, code, message, data)
		if err != nil {
			return true, err
		}
		if err := t.WriteMessage(ctx, resp); err != nil {
			s.logger.Warn("Failed to answer malformed message.", "error", err)
			return true, nil
		}
		return false, nil
	default:
		s.logger.Error("Transport read failed.", "error", fmt.Sprintf("%+v", readErr))
		return true, errors.Wrap(readErr, "transport read failed")
	}
}

func (s *Server) logSummary() {
	if s.metrics == nil {
		return
	}
	snap := s.metrics.Snapshot()
	s.logger.Info("Server loop finished.",
		"uptime", snap.Uptime,
		"totalCalls", snap.TotalCalls,
		"failedCalls", snap.FailedCalls,
		"tools", snap.ToolNames())
}
