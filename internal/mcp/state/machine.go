// file: internal/mcp/state/machine.go
package state

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/fsm"
	"github.com/dkoosis/codebridge/internal/logging"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// SessionMachine tracks a client session: unconnected → initializing →
// ready, with closed reachable from every other state.
type SessionMachine struct {
	fsm.FSM
	logger logging.Logger
}

// NewSessionMachine builds the client lifecycle machine.
func NewSessionMachine(logger logging.Logger) (*SessionMachine, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	log := logger.WithField("component", "session_state")

	m := fsm.NewFSM(StateUnconnected, log)
	m.AddTransition(fsm.Transition{From: []fsm.State{StateUnconnected}, Event: EventConnect, To: StateInitializing})
	m.AddTransition(fsm.Transition{From: []fsm.State{StateInitializing}, Event: EventHandshakeComplete, To: StateReady})
	m.AddTransition(fsm.Transition{
		From:  []fsm.State{StateUnconnected, StateInitializing, StateReady},
		Event: EventClose,
		To:    StateClosed,
	})
	if err := m.Build(); err != nil {
		return nil, errors.Wrap(err, "failed to build session state machine")
	}
	return &SessionMachine{FSM: m, logger: log}, nil
}

// RequireReady returns a not-connected error unless the session is ready.
func (m *SessionMachine) RequireReady() error {
	if s := m.CurrentState(); s != StateReady {
		return mcperrors.NewNotConnectedError(string(s))
	}
	return nil
}

// Close moves the machine to closed. It reports whether this call performed
// the transition, so only one caller runs the teardown.
func (m *SessionMachine) Close(ctx context.Context, reason string) bool {
	if m.CurrentState() == StateClosed {
		return false
	}
	if err := m.Transition(ctx, EventClose, reason); err != nil {
		m.logger.Debug("Close transition rejected.", "state", m.CurrentState(), "error", err)
		return false
	}
	return true
}

// ServerMachine tracks the server side of one connection.
type ServerMachine struct {
	fsm.FSM
	logger logging.Logger
}

// NewServerMachine builds the server lifecycle machine.
func NewServerMachine(logger logging.Logger) (*ServerMachine, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	log := logger.WithField("component", "server_state")

	m := fsm.NewFSM(StateUninitialized, log)
	m.AddTransition(fsm.Transition{From: []fsm.State{StateUninitialized}, Event: EventInitializeRequest, To: StateInitializing})
	m.AddTransition(fsm.Transition{From: []fsm.State{StateInitializing}, Event: EventClientInitialized, To: StateInitialized})
	m.AddTransition(fsm.Transition{
		From:  []fsm.State{StateUninitialized, StateInitializing, StateInitialized},
		Event: EventTransportClosed,
		To:    StateClosed,
	})
	if err := m.Build(); err != nil {
		return nil, errors.Wrap(err, "failed to build server state machine")
	}
	return &ServerMachine{FSM: m, logger: log}, nil
}

// ValidateMethod checks whether method may be processed in the current state.
// ping is always allowed. Tool methods need a completed initialize request;
// the initialized notification is not required before them.
func (m *ServerMachine) ValidateMethod(method string) error {
	current := m.CurrentState()
	if method == mcptypes.MethodPing {
		return nil
	}

	if event := EventForMethod(method); event != "" {
		if method == mcptypes.MethodInitialized && current == StateInitialized {
			return nil
		}
		if !m.CanTransition(event) {
			m.logger.Warn("Out-of-sequence lifecycle method.", "method", method, "state", current)
			return mcperrors.NewRequestSequenceError(method, string(current))
		}
		return nil
	}

	if current == StateInitializing || current == StateInitialized {
		return nil
	}
	m.logger.Warn("Method received before initialization.", "method", method, "state", current)
	return mcperrors.NewRequestSequenceError(method, string(current))
}

// Observe applies the lifecycle effect of a successfully handled method.
func (m *ServerMachine) Observe(ctx context.Context, method string) error {
	event := EventForMethod(method)
	if event == "" || !m.CanTransition(event) {
		return nil
	}
	return m.Transition(ctx, event, method)
}
