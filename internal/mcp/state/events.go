// file: internal/mcp/state/events.go
package state

import (
	"github.com/dkoosis/codebridge/internal/fsm"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// Client session events.
const (
	EventConnect           fsm.Event = "connect"            // Connect() called.
	EventHandshakeComplete fsm.Event = "handshake_complete" // initialize and tools/list answered.
	EventClose             fsm.Event = "close"              // Close() or transport loss.
)

// Server events.
const (
	EventInitializeRequest fsm.Event = "rcvd_initialize_request"
	EventClientInitialized fsm.Event = "rcvd_client_initialized_notif"
	EventTransportClosed   fsm.Event = "transport_closed"
)

// EventForMethod maps an inbound method to the server lifecycle event it
// triggers, or "" when the method does not change the lifecycle.
func EventForMethod(method string) fsm.Event {
	switch method {
	case mcptypes.MethodInitialize:
		return EventInitializeRequest
	case mcptypes.MethodInitialized:
		return EventClientInitialized
	default:
		return ""
	}
}
