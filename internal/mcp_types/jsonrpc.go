// file: internal/mcp_types/jsonrpc.go
package mcptypes

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// JSONRPCVersion is the only version accepted on the wire.
const JSONRPCVersion = "2.0"

// nullID is the id used when answering a message whose id could not be read.
var nullID = json.RawMessage("null")

// Request is an outbound or inbound JSON-RPC request. A request without an
// ID is a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC response carrying either Result or Error.
type Response struct {
	JSONRPC string               `json:"jsonrpc"`
	ID      json.RawMessage      `json:"id"`
	Result  json.RawMessage      `json:"result,omitempty"`
	Error   *JSONRPCErrorPayload `json:"error,omitempty"`
}

// JSONRPCErrorPayload represents the 'error' object in a JSON-RPC error response.
type JSONRPCErrorPayload struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Envelope is used to sniff an inbound message before decoding it fully.
type Envelope struct {
	JSONRPC string               `json:"jsonrpc"`
	ID      json.RawMessage      `json:"id,omitempty"`
	Method  string               `json:"method,omitempty"`
	Params  json.RawMessage      `json:"params,omitempty"`
	Result  json.RawMessage      `json:"result,omitempty"`
	Error   *JSONRPCErrorPayload `json:"error,omitempty"`
}

// IsResponse reports whether the envelope is a response rather than a request
// or notification.
func (e *Envelope) IsResponse() bool {
	return e.Method == "" && (e.Result != nil || e.Error != nil)
}

// IntID encodes a numeric request id.
func IntID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

// ParseIntID decodes a numeric id as produced by IntID.
func ParseIntID(raw json.RawMessage) (int64, error) {
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, errors.Wrapf(err, "response id %s is not an integer", string(raw))
	}
	return id, nil
}

// NewRequest marshals params into a request. A nil id builds a notification.
func NewRequest(id json.RawMessage, method string, params any) ([]byte, error) {
	req := Request{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal params for %s", method)
		}
		req.Params = raw
	}
	out, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s request", method)
	}
	return out, nil
}

// NewResultResponse marshals a successful response.
func NewResultResponse(id json.RawMessage, result json.RawMessage) ([]byte, error) {
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	out, err := json.Marshal(Response{JSONRPC: JSONRPCVersion, ID: orNull(id), Result: result})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result response")
	}
	return out, nil
}

// NewErrorResponse marshals an error response.
func NewErrorResponse(id json.RawMessage, code int, message string, data interface{}) ([]byte, error) {
	resp := Response{
		JSONRPC: JSONRPCVersion,
		ID:      orNull(id),
		Error:   &JSONRPCErrorPayload{Code: code, Message: message, Data: data},
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal error response")
	}
	return out, nil
}

func orNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}
