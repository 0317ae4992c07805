// Package mcperrors defines the error taxonomy of the tool-calling layer.
//
// Only transport, handshake and protocol failures terminate a call with an
// error. Unknown tools and handler failures travel as error-flagged tool
// results and never appear here as Go errors.
package mcperrors

// file: internal/mcp/mcp_errors/errors.go

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/transport"
)

// ErrorCode defines domain-specific error codes.
type ErrorCode int

// Connection errors (1000-1999).
const (
	ErrTransportFailure ErrorCode = 1000 + iota
	ErrTransportClosed
	ErrHandshakeFailed
	ErrNotConnected
)

// Protocol errors (2000-2999).
const (
	ErrProtocolViolation ErrorCode = 2000 + iota
	ErrUnmatchedResponse
	ErrMalformedMessage
)

// ErrConfiguration marks setup-time failures such as duplicate registrations.
const ErrConfiguration ErrorCode = 3000

// JSON-RPC codes used on the wire.
const (
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603

	// ErrRequestSequence is sent when a method arrives before the handshake.
	ErrRequestSequence ErrorCode = -32001
)

// BaseError is the common base for the error types in this package.
type BaseError struct {
	// Code is a numeric error code for categorization.
	Code ErrorCode
	// Message is a human-readable error message.
	Message string
	// Cause is the underlying error, if any.
	Cause error
	// Context contains additional key-value details.
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error (Cause), enabling errors.Is and errors.As.
func (e *BaseError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error's context map.
func (e *BaseError) WithContext(key string, value interface{}) *BaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *BaseError) base() *BaseError { return e }

// coded is implemented by every error type of this package through BaseError.
type coded interface {
	error
	base() *BaseError
}

// TransportError means the peer is unreachable or the channel failed.
// The session is unusable afterwards.
type TransportError struct {
	BaseError
}

// HandshakeError means initialize or the tool listing did not complete.
type HandshakeError struct {
	BaseError
}

// ProtocolError means a malformed or unexpected message was received.
type ProtocolError struct {
	BaseError
}

// NotConnectedError means a call was attempted before the session was ready.
type NotConnectedError struct {
	BaseError
	State string
}

// ConfigurationError is a setup-time failure such as a duplicate tool name.
type ConfigurationError struct {
	BaseError
}

// RPCError is a JSON-RPC error object, either received from the peer or
// produced by a server-side method handler.
type RPCError struct {
	BaseError
	RPCCode int
	Data    interface{}
}

func newBase(code ErrorCode, message string, cause error, context map[string]interface{}) BaseError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return BaseError{Code: code, Message: message, Cause: wrapped, Context: context}
}

// NewTransportError wraps a transport failure. A clean closure by the peer
// gets ErrTransportClosed so callers can tell it from an I/O failure.
func NewTransportError(message string, cause error, context map[string]interface{}) error {
	code := ErrTransportFailure
	if transport.IsClosedError(cause) {
		code = ErrTransportClosed
	}
	return &TransportError{BaseError: newBase(code, message, cause, context)}
}

// NewHandshakeError reports a failed initialize or tool listing exchange.
func NewHandshakeError(message string, cause error, context map[string]interface{}) error {
	return &HandshakeError{BaseError: newBase(ErrHandshakeFailed, message, cause, context)}
}

// NewProtocolError reports a malformed or unmatched message.
func NewProtocolError(code ErrorCode, message string, cause error, context map[string]interface{}) error {
	return &ProtocolError{BaseError: newBase(code, message, cause, context)}
}

// NewNotConnectedError reports a call attempted in the given lifecycle state.
func NewNotConnectedError(state string) error {
	return &NotConnectedError{
		BaseError: newBase(ErrNotConnected, fmt.Sprintf("not connected (session state %q)", state), nil, map[string]interface{}{"state": state}),
		State:     state,
	}
}

// NewConfigurationError reports an invalid setup.
func NewConfigurationError(message string, cause error, context map[string]interface{}) error {
	return &ConfigurationError{BaseError: newBase(ErrConfiguration, message, cause, context)}
}

// NewRPCError builds an error from a JSON-RPC error code and message.
func NewRPCError(rpcCode int, message string, data interface{}) error {
	return &RPCError{
		BaseError: newBase(ErrorCode(rpcCode), message, nil, nil),
		RPCCode:   rpcCode,
		Data:      data,
	}
}

// NewMethodNotFoundError builds the server-side error for an unknown method.
func NewMethodNotFoundError(method string) error {
	return NewRPCError(int(ErrMethodNotFound), fmt.Sprintf("Method '%s' not found", method), map[string]interface{}{"method": method})
}

// NewInvalidParamsError builds the server-side error for undecodable params.
func NewInvalidParamsError(message string, cause error) error {
	err := &RPCError{
		BaseError: newBase(ErrInvalidParams, message, cause, nil),
		RPCCode:   int(ErrInvalidParams),
	}
	return err
}

// NewRequestSequenceError builds the server-side error for a method received
// in the wrong lifecycle state.
func NewRequestSequenceError(method, state string) error {
	return NewRPCError(int(ErrRequestSequence),
		fmt.Sprintf("method '%s' not allowed in state '%s'", method, state),
		map[string]interface{}{"method": method, "state": state})
}

// Code returns the ErrorCode of the first error of this package in err's
// chain, and false when there is none.
func Code(err error) (ErrorCode, bool) {
	var c coded
	if errors.As(err, &c) {
		return c.base().Code, true
	}
	return 0, false
}

// IsTransportFailure reports whether err must be treated as a hard failure
// requiring a new connection: transport, handshake and protocol errors.
func IsTransportFailure(err error) bool {
	var te *TransportError
	var he *HandshakeError
	var pe *ProtocolError
	return errors.As(err, &te) || errors.As(err, &he) || errors.As(err, &pe)
}

// IsNotConnected reports whether err is a call-before-ready failure.
func IsNotConnected(err error) bool {
	var nc *NotConnectedError
	return errors.As(err, &nc)
}

// IsTransportClosed reports whether err stems from a clean peer closure.
func IsTransportClosed(err error) bool {
	code, ok := Code(err)
	return (ok && code == ErrTransportClosed) || transport.IsClosedError(err)
}

// MapMCPErrorToJSONRPC translates an error into JSON-RPC error components for
// a response written by the server.
func MapMCPErrorToJSONRPC(err error) (code int, message string, data interface{}) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.RPCCode, rpcErr.Error(), rpcErr.Data
	}

	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		c, m, d := transport.MapErrorToJSONRPC(err)
		return c, m, d
	}

	c, ok := Code(err)
	if !ok {
		return transport.JSONRPCInternalError, "Internal error", map[string]interface{}{"detail": err.Error()}
	}
	switch c {
	case ErrParseError, ErrInvalidRequest, ErrMethodNotFound, ErrInvalidParams, ErrInternalError, ErrRequestSequence:
		return int(c), err.Error(), nil
	case ErrMalformedMessage, ErrProtocolViolation:
		return transport.JSONRPCInvalidRequest, "Invalid Request", map[string]interface{}{"detail": err.Error()}
	default:
		return transport.JSONRPCInternalError, "Internal error", map[string]interface{}{"detail": err.Error(), "internalCode": int(c)}
	}
}
