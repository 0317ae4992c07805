// Package state defines the lifecycle states and events of client sessions
// and of the tool server.
// file: internal/mcp/state/states.go
package state

import "github.com/dkoosis/codebridge/internal/fsm"

// Client session states.
const (
	StateUnconnected  fsm.State = "unconnected"  // Created, no handshake attempted.
	StateInitializing fsm.State = "initializing" // Handshake in progress.
	StateReady        fsm.State = "ready"        // Handshake and tool listing done.
	StateClosed       fsm.State = "closed"       // Transport released; terminal.
)

// Server lifecycle states. The server shares StateInitializing and
// StateClosed with the client.
const (
	StateUninitialized fsm.State = "uninitialized" // No initialize request seen yet.
	StateInitialized   fsm.State = "initialized"   // Client confirmed the handshake.
)

// IsTerminal reports whether s allows no further transitions.
func IsTerminal(s fsm.State) bool {
	return s == StateClosed
}
