// Package httputils holds the JSON-over-HTTP plumbing shared by the upstream
// clients.
// file: internal/httputils/response.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
)

// maxErrorBody caps how much of an error body is kept in a StatusError.
const maxErrorBody = 512

// maxResponseBody caps how much of any response body is read.
var maxResponseBody int64 = 8 << 20

// ErrResponseTooLarge is returned when a response body exceeds the read cap.
var ErrResponseTooLarge = errors.New("upstream response body too large")

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream HTTP error %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream HTTP error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// PostJSON marshals body, POSTs it to url with the given headers and decodes
// a 2xx response into out.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "PostJSON: failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "PostJSON: failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "PostJSON: failed to send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return errors.Wrap(err, "PostJSON: failed to read response body")
	}
	if int64(len(raw)) > maxResponseBody {
		return errors.Wrapf(ErrResponseTooLarge, "PostJSON: status %d, limit %d bytes", resp.StatusCode, maxResponseBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.WithStack(&StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "PostJSON: failed to decode response (%d bytes)", len(raw))
	}
	return nil
}

// errorMessage extracts {"error":{"message":...}} when present and falls back
// to a truncated body.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && len(envelope.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
			return s
		}
	}
	text := string(bytes.TrimSpace(raw))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
