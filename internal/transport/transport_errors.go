// file: internal/transport/transport_errors.go
package transport

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrorCode identifies a transport failure condition.
type ErrorCode int

// Transport error codes.
const (
	// ErrGeneric is an I/O failure such as a broken pipe.
	ErrGeneric ErrorCode = iota + 1000
	// ErrInvalidMessage marks a message that is not JSON-RPC 2.0 shaped.
	ErrInvalidMessage
	// ErrMessageTooLarge marks a message above MaxMessageSize.
	ErrMessageTooLarge
	// ErrTransportClosed marks a closed channel or a peer that exited.
	ErrTransportClosed
	// ErrReadTimeout marks a read abandoned through its context.
	ErrReadTimeout
	// ErrWriteTimeout marks a write abandoned through its context.
	ErrWriteTimeout
	// ErrJSONParseFailed marks bytes that are not JSON at all.
	ErrJSONParseFailed
	// ErrProcessStart marks a child process that could not be launched.
	ErrProcessStart
)

// ErrorType groups codes for coarse handling.
type ErrorType int

// Transport error types.
const (
	ErrorTypeGeneric ErrorType = iota
	ErrorTypeMessageSize
	ErrorTypeParse
	ErrorTypeTimeout
	ErrorTypeClosed
	ErrorTypeInvalid
)

// Error is a structured transport error.
type Error struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := fmt.Sprintf("transport error [%d] %s", e.Code, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches another *Error with the same type and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// NewError creates a transport error. The cause keeps its stack trace.
func NewError(code ErrorCode, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	errType := ErrorTypeGeneric
	switch code {
	case ErrTransportClosed:
		errType = ErrorTypeClosed
	case ErrInvalidMessage:
		errType = ErrorTypeInvalid
	}
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   wrapped,
		Context: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// NewInvalidMessageError reports a JSON-RPC shape violation.
func NewInvalidMessageError(reason string, message []byte) *Error {
	return NewError(ErrInvalidMessage, reason, nil).
		WithContext("messagePreview", preview(message))
}

// NewMessageSizeError reports a message above the size limit.
func NewMessageSizeError(size, maxSize int, fragment []byte) *Error {
	err := NewError(ErrMessageTooLarge, fmt.Sprintf("message size %d exceeds maximum allowed size %d", size, maxSize), nil)
	err.Type = ErrorTypeMessageSize
	return err.WithContext("size", size).
		WithContext("maxSize", maxSize).
		WithContext("messagePreview", preview(fragment))
}

// NewParseError reports bytes that could not be parsed as JSON.
func NewParseError(message []byte, cause error) *Error {
	err := NewError(ErrJSONParseFailed, "failed to parse JSON message syntax", cause)
	err.Type = ErrorTypeParse
	return err.WithContext("messagePreview", preview(message)).
		WithContext("messageLength", len(message))
}

// NewTimeoutError reports a read or write abandoned through its context.
func NewTimeoutError(operation string, cause error) *Error {
	code := ErrReadTimeout
	if operation == "write" {
		code = ErrWriteTimeout
	}
	err := NewError(code, fmt.Sprintf("%s operation timed out", operation), cause)
	err.Type = ErrorTypeTimeout
	return err.WithContext("operation", operation)
}

// NewClosedError reports an operation on a closed transport.
func NewClosedError(operation string) *Error {
	return NewError(ErrTransportClosed, fmt.Sprintf("cannot perform %s on closed transport", operation), nil).
		WithContext("operation", operation)
}

// JSON-RPC 2.0 error codes.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MapErrorToJSONRPC maps a transport error to JSON-RPC error components.
func MapErrorToJSONRPC(err error) (code int, message string, data map[string]interface{}) {
	data = make(map[string]interface{})

	var transportErr *Error
	if !errors.As(err, &transportErr) {
		data["detail"] = "An unexpected internal error occurred."
		return JSONRPCInternalError, "Internal error", data
	}

	data["internalCode"] = int(transportErr.Code)
	switch transportErr.Code {
	case ErrJSONParseFailed:
		code, message = JSONRPCParseError, "Parse error"
	case ErrInvalidMessage, ErrMessageTooLarge:
		code, message = JSONRPCInvalidRequest, "Invalid Request"
		data["detail"] = transportErr.Message
	default:
		code, message = JSONRPCInternalError, "Internal error"
	}
	if p, ok := transportErr.Context["messagePreview"].(string); ok {
		data["messagePreview"] = p
	}
	return code, message, data
}

// IsClosedError reports whether err signals that the channel is closed,
// as opposed to an I/O failure on an open channel.
func IsClosedError(err error) bool {
	var transportErr *Error
	if errors.As(err, &transportErr) && transportErr.Type == ErrorTypeClosed {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed)
}

// IsRecoverableReadError reports whether a read error concerned only the
// message just read, so the stream can continue with the next line.
func IsRecoverableReadError(err error) bool {
	var transportErr *Error
	if !errors.As(err, &transportErr) {
		return false
	}
	switch transportErr.Code {
	case ErrJSONParseFailed, ErrInvalidMessage, ErrMessageTooLarge:
		return true
	}
	return false
}

func preview(message []byte) string {
	const maxPreview = 100
	if len(message) > maxPreview {
		return string(message[:maxPreview])
	}
	return string(message)
}
