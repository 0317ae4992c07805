// Package transport defines the message channel between a client session and
// a tool server, and its newline-delimited JSON implementations.
package transport

// file: internal/transport/transport.go

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
)

// MaxMessageSize defines the maximum allowed size for a single message in bytes.
const MaxMessageSize = 1024 * 1024 // 1MB.

var (
	errInvalidJSON = errors.New("invalid JSON")
	errPeerGone    = errors.New("peer transport closed")
)

// Transport delivers discrete JSON-RPC messages in order in both directions.
// Implementations must be safe for one concurrent reader and any number of
// concurrent writers.
type Transport interface {
	// ReadMessage blocks until the next message arrives, the peer closes the
	// channel (IsClosedError is true) or ctx is done.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends one message.
	WriteMessage(ctx context.Context, message []byte) error

	// Close releases the channel and anything it owns. It is idempotent.
	Close() error
}

// ValidateMessage checks that message is a single JSON-RPC 2.0 request,
// notification or response.
func ValidateMessage(message []byte) error {
	trimmed := bytes.TrimSpace(message)
	if !json.Valid(trimmed) {
		return NewParseError(message, errInvalidJSON)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return NewInvalidMessageError("message must be a JSON object", message)
	}

	var version string
	raw, ok := fields["jsonrpc"]
	if !ok {
		return NewInvalidMessageError("missing 'jsonrpc' field", message)
	}
	if err := json.Unmarshal(raw, &version); err != nil || version != "2.0" {
		return NewInvalidMessageError("unsupported JSON-RPC version", message).WithContext("version", string(raw))
	}

	id, hasID := fields["id"]
	if hasID && !validID(id) {
		return NewInvalidMessageError("id must be a string, number or null", message)
	}
	_, hasResult := fields["result"]
	errObj, hasError := fields["error"]

	if rawMethod, ok := fields["method"]; ok {
		var method string
		if err := json.Unmarshal(rawMethod, &method); err != nil || method == "" {
			return NewInvalidMessageError("method must be a non-empty string", message)
		}
		if strings.HasPrefix(method, "rpc.") {
			return NewInvalidMessageError("method names starting with 'rpc.' are reserved", message)
		}
		if params, ok := fields["params"]; ok && !structured(params) {
			return NewInvalidMessageError("params must be an object or array", message)
		}
		if hasResult || hasError {
			return NewInvalidMessageError("request cannot carry 'result' or 'error'", message)
		}
		return nil
	}

	// Response.
	if !hasID {
		return NewInvalidMessageError("response message must contain 'id' field", message)
	}
	if hasResult == hasError {
		return NewInvalidMessageError("response must contain exactly one of 'result' or 'error'", message)
	}
	if hasError {
		var payload struct {
			Code    *json.Number `json:"code"`
			Message *string      `json:"message"`
		}
		if err := json.Unmarshal(errObj, &payload); err != nil || payload.Code == nil || payload.Message == nil {
			return NewInvalidMessageError("error object must contain numeric 'code' and string 'message'", message)
		}
	}
	return nil
}

func validID(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return false
	}
	switch t[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func structured(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

// NDJSONTransport implements Transport over a reader/writer pair, one JSON
// message per line.
type NDJSONTransport struct {
	reader    *bufio.Reader
	writer    io.Writer
	closer    io.Closer
	logger    logging.Logger
	readLock  sync.Mutex
	writeSem  chan struct{}
	closed    bool
	closeLock sync.RWMutex
	done      chan struct{}
}

// NewNDJSONTransport creates a transport reading from reader and writing to
// writer. closer, if not nil, is closed by Close.
func NewNDJSONTransport(reader io.Reader, writer io.Writer, closer io.Closer, logger logging.Logger) *NDJSONTransport {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &NDJSONTransport{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		closer:   closer,
		logger:   logger.WithField("component", "ndjson_transport"),
		writeSem: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

type readResult struct {
	data []byte
	err  error
}

// ReadMessage implements Transport.
func (t *NDJSONTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	if t.isClosed() {
		return nil, NewClosedError("read")
	}

	resultCh := make(chan readResult, 1)
	go func() {
		t.readLock.Lock()
		defer t.readLock.Unlock()
		data, err := t.readLine()
		resultCh <- readResult{data, err}
	}()

	select {
	case <-ctx.Done():
		t.logger.Debug("Context cancelled while reading message.", "error", ctx.Err())
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.done:
		return nil, NewClosedError("read")
	case result := <-resultCh:
		return result.data, result.err
	}
}

// readLine reads one non-empty line, enforcing MaxMessageSize. An oversized
// line is drained so the stream stays aligned on message boundaries.
func (t *NDJSONTransport) readLine() ([]byte, error) {
	for {
		var buffer bytes.Buffer
		oversized := false
		for {
			line, prefix, err := t.reader.ReadLine()
			if err != nil {
				if err == io.EOF {
					return nil, NewError(ErrTransportClosed, "connection closed by peer", io.EOF)
				}
				if t.isClosed() {
					return nil, NewClosedError("read")
				}
				return nil, NewError(ErrGeneric, "failed to read message line", err)
			}
			if !oversized {
				buffer.Write(line)
				if buffer.Len() > MaxMessageSize {
					oversized = true
				}
			}
			if !prefix {
				break
			}
		}

		if oversized {
			fragment := buffer.Bytes()
			return nil, NewMessageSizeError(buffer.Len(), MaxMessageSize, fragment)
		}

		message := bytes.TrimSpace(buffer.Bytes())
		if len(message) == 0 {
			continue
		}
		t.logger.Debug("Received raw message.", "size", len(message), "contentPreview", preview(message))
		if err := ValidateMessage(message); err != nil {
			t.logger.Warn("Invalid message received.", "validationError", err)
			return nil, err
		}
		return message, nil
	}
}

// WriteMessage implements Transport.
func (t *NDJSONTransport) WriteMessage(ctx context.Context, message []byte) error {
	if t.isClosed() {
		return NewClosedError("write")
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message)
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}

	// The write slot is held until the underlying Write returns, even when
	// ctx ends first, so a late frame never interleaves with the next one.
	select {
	case t.writeSem <- struct{}{}:
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case <-t.done:
		return NewClosedError("write")
	}

	resultCh := make(chan error, 1)
	go func() {
		defer func() { <-t.writeSem }()
		buf := make([]byte, len(message)+1)
		copy(buf, message)
		buf[len(message)] = '\n'

		t.logger.Debug("Writing message.", "size", len(buf), "contentPreview", preview(message))
		n, err := t.writer.Write(buf)
		if err == nil && n < len(buf) {
			err = io.ErrShortWrite
		}
		resultCh <- err
	}()

	select {
	case <-ctx.Done():
		t.logger.Warn("Context cancelled while writing message; it may still be delivered.", "error", ctx.Err())
		return NewTimeoutError("write", ctx.Err())
	case err := <-resultCh:
		if err != nil {
			if t.isClosed() {
				return NewClosedError("write")
			}
			t.logger.Error("Failed to write message.", "error", err)
			return NewError(ErrGeneric, "failed to write message", err)
		}
		return nil
	}
}

// Close implements Transport.
func (t *NDJSONTransport) Close() error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	t.logger.Debug("Closing NDJSON transport.")

	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return NewError(ErrTransportClosed, "failed to close underlying stream", err)
		}
	}
	return nil
}

func (t *NDJSONTransport) isClosed() bool {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	return t.closed
}
