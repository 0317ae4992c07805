// Package session implements the client side of the tool protocol: the
// initialize handshake, the tool catalog and request/response correlation.
// file: internal/mcp/session/session.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/fsm"
	"github.com/dkoosis/codebridge/internal/logging"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/dkoosis/codebridge/internal/mcp/state"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/transport"
	"github.com/google/uuid"
)

// Session owns one transport and multiplexes tool calls over it. Responses
// are matched to requests by id, so concurrent callers are safe.
type Session struct {
	id         string
	transport  transport.Transport
	machine    *state.SessionMachine
	logger     logging.Logger
	clientInfo mcptypes.Implementation

	nextID atomic.Int64

	mu         sync.Mutex
	pending    map[int64]chan callResult
	abandoned  map[int64]struct{}
	catalog    []mcptypes.Tool
	serverInfo mcptypes.InitializeResult
	closed     bool
	closeCause error

	readCtx    context.Context
	readCancel context.CancelFunc
	readerDone chan struct{}
	started    atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

type callResult struct {
	resp mcptypes.Envelope
	err  error
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientInfo sets the implementation info sent in initialize.
func WithClientInfo(info mcptypes.Implementation) Option {
	return func(s *Session) { s.clientInfo = info }
}

// New creates an unconnected session that takes ownership of t.
func New(t transport.Transport, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, errors.New("session requires a transport")
	}
	s := &Session{
		id:         uuid.NewString(),
		transport:  t,
		logger:     logging.GetNoopLogger(),
		clientInfo: mcptypes.Implementation{Name: "codebridge-client", Version: "dev"},
		pending:    make(map[int64]chan callResult),
		abandoned:  make(map[int64]struct{}),
		readerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "mcp_session").WithField("session", s.id)

	machine, err := state.NewSessionMachine(s.logger)
	if err != nil {
		return nil, err
	}
	s.machine = machine
	s.readCtx, s.readCancel = context.WithCancel(context.Background())
	return s, nil
}

// ID returns the session's instance id.
func (s *Session) ID() string { return s.id }

// State reports the lifecycle state.
func (s *Session) State() fsm.State { return s.machine.CurrentState() }

// Connect performs the handshake: initialize, the initialized notification
// and tools/list. On failure the session is closed and a handshake error
// wrapping the cause is returned.
func (s *Session) Connect(ctx context.Context) error {
	if current := s.machine.CurrentState(); current != state.StateUnconnected {
		return mcperrors.NewProtocolError(mcperrors.ErrProtocolViolation,
			fmt.Sprintf("connect called in state %q", current), nil, nil)
	}
	if err := s.machine.Transition(ctx, state.EventConnect, nil); err != nil {
		return mcperrors.NewProtocolError(mcperrors.ErrProtocolViolation, "connect rejected", err, nil)
	}

	s.started.Store(true)
	go s.readLoop()

	raw, err := s.request(ctx, mcptypes.MethodInitialize, mcptypes.InitializeRequest{
		ProtocolVersion: mcptypes.ProtocolVersion,
		ClientInfo:      s.clientInfo,
		Capabilities:    mcptypes.ClientCapabilities{},
	})
	if err != nil {
		return s.failHandshake(ctx, "initialize failed", err)
	}
	var initResult mcptypes.InitializeResult
	if err := json.Unmarshal(raw, &initResult); err != nil {
		return s.failHandshake(ctx, "invalid initialize result", err)
	}
	if initResult.ProtocolVersion != mcptypes.ProtocolVersion {
		s.logger.Warn("Server answered with a different protocol version.",
			"server", initResult.ProtocolVersion, "client", mcptypes.ProtocolVersion)
	}

	if err := s.notify(ctx, mcptypes.MethodInitialized, nil); err != nil {
		return s.failHandshake(ctx, "initialized notification failed", err)
	}

	raw, err = s.request(ctx, mcptypes.MethodToolsList, nil)
	if err != nil {
		return s.failHandshake(ctx, "tools/list failed", err)
	}
	var list mcptypes.ListToolsResult
	if err := json.Unmarshal(raw, &list); err != nil {
		return s.failHandshake(ctx, "invalid tools/list result", err)
	}

	s.mu.Lock()
	s.serverInfo = initResult
	s.catalog = list.Tools
	s.mu.Unlock()

	if err := s.machine.Transition(ctx, state.EventHandshakeComplete, nil); err != nil {
		return s.failHandshake(ctx, "session closed during handshake", err)
	}
	s.logger.Info("Session ready.",
		"server", initResult.ServerInfo.Name,
		"serverVersion", initResult.ServerInfo.Version,
		"tools", len(list.Tools))
	return nil
}

func (s *Session) failHandshake(ctx context.Context, msg string, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !mcperrors.IsTransportFailure(cause) {
		cause = errors.Wrap(ctxErr, "handshake abandoned")
	}
	herr := mcperrors.NewHandshakeError(msg, cause, nil)
	s.logger.Warn("Handshake failed.", "error", fmt.Sprintf("%+v", cause))
	s.shutdown(herr)
	return herr
}

// ServerInfo returns the server identity reported during the handshake.
func (s *Session) ServerInfo() mcptypes.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo.ServerInfo
}

// Instructions returns the optional usage instructions sent by the server.
func (s *Session) Instructions() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo.Instructions
}

// ListTools returns the tool catalog in the server's order.
func (s *Session) ListTools() ([]mcptypes.Tool, error) {
	if err := s.machine.RequireReady(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mcptypes.Tool(nil), s.catalog...), nil
}

// CallTool invokes a tool. arguments must marshal to a JSON object; nil sends
// {}. Error-flagged results are returned as results, not errors.
func (s *Session) CallTool(ctx context.Context, name string, arguments interface{}) (*mcptypes.CallToolResult, error) {
	if err := s.machine.RequireReady(); err != nil {
		return nil, err
	}
	args, err := encodeArguments(arguments)
	if err != nil {
		return nil, err
	}

	raw, err := s.request(ctx, mcptypes.MethodToolsCall, mcptypes.CallToolRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result mcptypes.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		perr := mcperrors.NewProtocolError(mcperrors.ErrMalformedMessage, "malformed tools/call result", err,
			map[string]interface{}{"tool": name})
		s.shutdown(perr)
		return nil, perr
	}
	return &result, nil
}

func encodeArguments(arguments interface{}) (json.RawMessage, error) {
	var raw []byte
	switch v := arguments.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return nil, errors.Wrap(err, "failed to marshal tool arguments")
		}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, errors.Newf("tool arguments must be a JSON object, got %.40s", string(trimmed))
	}
	return json.RawMessage(trimmed), nil
}

// Close releases the transport and fails any pending calls. It is idempotent.
func (s *Session) Close() error {
	s.shutdown(mcperrors.NewTransportError("session closed", transport.NewClosedError("close"), nil))
	if s.started.Load() {
		<-s.readerDone
	}
	return s.closeErr
}

// Err returns the reason the session closed, or nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCause
}

// shutdown fails all pending calls with cause, moves to closed and closes
// the transport. Only the first call has any effect.
func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeCause = cause
		pending := s.pending
		s.pending = make(map[int64]chan callResult)
		s.mu.Unlock()

		failure := cause
		if !mcperrors.IsTransportFailure(failure) {
			failure = mcperrors.NewTransportError("session closed", cause, nil)
		}
		for id, ch := range pending {
			ch <- callResult{err: failure}
			s.logger.Debug("Failed pending call on shutdown.", "id", id)
		}

		s.machine.Close(context.Background(), cause.Error())
		s.readCancel()
		s.closeErr = s.transport.Close()
		if mcperrors.IsTransportClosed(cause) {
			s.logger.Info("Session closed.")
		} else {
			s.logger.Warn("Session closed after failure.", "cause", fmt.Sprintf("%+v", cause))
		}
	})
}
