// file: internal/mcp/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/dkoosis/codebridge/internal/mcp/state"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// handleMessage processes one inbound message and returns the encoded
// response, or nil when nothing is to be sent.
func (s *Server) handleMessage(ctx context.Context, machine *state.ServerMachine, msg []byte) []byte {
	var env mcptypes.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return s.errorResponse(nil, mcperrors.NewRPCError(int(mcperrors.ErrParseError), "Parse error", nil))
	}
	if env.IsResponse() {
		s.logger.Warn("Ignoring unexpected response from client.", "id", string(env.ID))
		return nil
	}

	isNotification := len(env.ID) == 0
	log := s.logger.WithField("method", env.Method)

	if err := machine.ValidateMethod(env.Method); err != nil {
		if isNotification {
			log.Debug("Dropping out-of-sequence notification.")
			return nil
		}
		return s.errorResponse(env.ID, err)
	}

	result, err := s.router.Route(ctx, env.Method, env.Params, isNotification)
	if err != nil {
		log.Warn("Method failed.", "id", string(env.ID), "error", fmt.Sprintf("%+v", err))
		if isNotification {
			return nil
		}
		return s.errorResponse(env.ID, err)
	}

	if err := machine.Observe(ctx, env.Method); err != nil {
		log.Warn("Lifecycle transition failed.", "error", err)
	}
	if isNotification {
		return nil
	}

	resp, err := mcptypes.NewResultResponse(env.ID, result)
	if err != nil {
		return s.errorResponse(env.ID, err)
	}
	return resp
}

func (s *Server) errorResponse(id json.RawMessage, cause error) []byte {
	code, message, data := mcperrors.MapMCPErrorToJSONRPC(cause)
	resp, err := mcptypes.NewErrorResponse(id, code, message, data)
	if err != nil {
		s.logger.Error("Failed to build error response.", "error", err)
		resp, _ = mcptypes.NewErrorResponse(id, int(mcperrors.ErrInternalError), "Internal error", nil)
	}
	return resp
}

func (s *Server) handleInitialize(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req mcptypes.InitializeRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, mcperrors.NewInvalidParamsError("invalid initialize params", err)
		}
	}
	if req.ProtocolVersion != "" && req.ProtocolVersion != mcptypes.ProtocolVersion {
		s.logger.Warn("Client requested a different protocol version; answering with ours.",
			"requested", req.ProtocolVersion, "supported", mcptypes.ProtocolVersion)
	}
	s.logger.Info("Client connected.", "client", req.ClientInfo.Name, "clientVersion", req.ClientInfo.Version)

	return marshalResult(mcptypes.InitializeResult{
		ProtocolVersion: mcptypes.ProtocolVersion,
		ServerInfo:      s.Info(),
		Capabilities:    mcptypes.ServerCapabilities{Tools: &mcptypes.ToolsCapability{}},
		Instructions:    s.config.Instructions,
	})
}

func (s *Server) handleInitialized(context.Context, json.RawMessage) error {
	s.logger.Debug("Client confirmed initialization.")
	return nil
}

func (s *Server) handlePing(context.Context, json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (s *Server) handleToolsList(context.Context, json.RawMessage) (json.RawMessage, error) {
	return marshalResult(mcptypes.ListToolsResult{Tools: s.registry.List()})
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req mcptypes.CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.NewInvalidParamsError("invalid tools/call params", err)
	}
	if req.Name == "" {
		return nil, mcperrors.NewInvalidParamsError("tools/call requires a tool name", nil)
	}
	return marshalResult(s.registry.Dispatch(ctx, req))
}

func marshalResult(v interface{}) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result")
	}
	return out, nil
}
