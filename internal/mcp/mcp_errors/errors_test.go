// file: internal/mcp/mcp_errors/errors_test.go
package mcperrors

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransportError_DistinguishesClosure(t *testing.T) {
	closed := NewTransportError("read failed", transport.NewClosedError("read"), nil)
	code, ok := Code(closed)
	require.True(t, ok)
	assert.Equal(t, ErrTransportClosed, code)
	assert.True(t, IsTransportClosed(closed))

	eof := NewTransportError("read failed", io.EOF, nil)
	assert.True(t, IsTransportClosed(eof))

	broken := NewTransportError("write failed", errors.New("broken pipe"), nil)
	code, _ = Code(broken)
	assert.Equal(t, ErrTransportFailure, code)
	assert.False(t, IsTransportClosed(broken))
	assert.Contains(t, broken.Error(), "broken pipe")
}

func TestIsTransportFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", NewTransportError("x", nil, nil), true},
		{"handshake", NewHandshakeError("x", nil, nil), true},
		{"protocol", NewProtocolError(ErrUnmatchedResponse, "x", nil, nil), true},
		{"wrapped protocol", errors.Wrap(NewProtocolError(ErrMalformedMessage, "x", nil, nil), "reading"), true},
		{"not connected", NewNotConnectedError("unconnected"), false},
		{"rpc", NewRPCError(-32601, "nope", nil), false},
		{"plain", errors.New("x"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransportFailure(tc.err))
		})
	}
}

func TestNotConnectedError_CarriesState(t *testing.T) {
	err := NewNotConnectedError("initializing")
	assert.True(t, IsNotConnected(err))
	assert.Contains(t, err.Error(), "initializing")

	var nc *NotConnectedError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, "initializing", nc.State)
}

func TestBaseError_WithContextAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewConfigurationError("bad setup", cause, nil)
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	ce.WithContext("tool", "echo")
	assert.Equal(t, "echo", ce.Context["tool"])
	assert.True(t, errors.Is(err, cause))
}

func TestCode_ReturnsFalse_When_Foreign(t *testing.T) {
	_, ok := Code(errors.New("foreign"))
	assert.False(t, ok)
}

func TestMapMCPErrorToJSONRPC(t *testing.T) {
	code, msg, data := MapMCPErrorToJSONRPC(NewMethodNotFoundError("resources/list"))
	assert.Equal(t, transport.JSONRPCMethodNotFound, code)
	assert.Contains(t, msg, "resources/list")
	assert.Equal(t, map[string]interface{}{"method": "resources/list"}, data)

	code, _, _ = MapMCPErrorToJSONRPC(NewRequestSequenceError("tools/call", "uninitialized"))
	assert.Equal(t, int(ErrRequestSequence), code)

	code, _, _ = MapMCPErrorToJSONRPC(NewInvalidParamsError("bad params", errors.New("eof")))
	assert.Equal(t, transport.JSONRPCInvalidParams, code)

	code, _, _ = MapMCPErrorToJSONRPC(NewProtocolError(ErrMalformedMessage, "junk", nil, nil))
	assert.Equal(t, transport.JSONRPCInvalidRequest, code)

	code, msg, _ = MapMCPErrorToJSONRPC(errors.New("mystery"))
	assert.Equal(t, transport.JSONRPCInternalError, code)
	assert.Equal(t, "Internal error", msg)
}
