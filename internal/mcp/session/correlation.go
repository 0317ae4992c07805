// file: internal/mcp/session/correlation.go
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/dkoosis/codebridge/internal/mcp/state"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/transport"
)

// request sends a request and waits for the response with the same id.
// A cancelled ctx frees the slot and marks the id abandoned, since the
// request may still reach the server.
func (s *Session) request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	ch := make(chan callResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, mcperrors.NewNotConnectedError(string(state.StateClosed))
	}
	s.pending[id] = ch
	s.mu.Unlock()

	msg, err := mcptypes.NewRequest(mcptypes.IntID(id), method, params)
	if err != nil {
		s.release(id, false)
		return nil, err
	}

	log := s.logger.WithField("method", method).WithField("id", id)
	log.Debug("Sending request.")
	if err := s.transport.WriteMessage(ctx, msg); err != nil {
		if ctx.Err() != nil {
			s.release(id, true)
			log.Debug("Call abandoned while sending.", "error", ctx.Err())
			return nil, errors.Wrapf(ctx.Err(), "%s abandoned while sending", method)
		}
		s.release(id, false)
		terr := mcperrors.NewTransportError("failed to send request", err, map[string]interface{}{"method": method})
		s.shutdown(terr)
		return nil, terr
	}

	select {
	case <-ctx.Done():
		s.release(id, true)
		log.Debug("Call abandoned by caller.", "error", ctx.Err())
		return nil, errors.Wrapf(ctx.Err(), "%s abandoned", method)
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp.Error != nil {
			log.Debug("Server returned an error.", "code", res.resp.Error.Code)
			return nil, mcperrors.NewRPCError(res.resp.Error.Code, res.resp.Error.Message, res.resp.Error.Data)
		}
		return res.resp.Result, nil
	}
}

// notify sends a notification; no response is expected.
func (s *Session) notify(ctx context.Context, method string, params interface{}) error {
	msg, err := mcptypes.NewRequest(nil, method, params)
	if err != nil {
		return err
	}
	if err := s.transport.WriteMessage(ctx, msg); err != nil {
		terr := mcperrors.NewTransportError("failed to send notification", err, map[string]interface{}{"method": method})
		if ctx.Err() == nil {
			s.shutdown(terr)
		}
		return terr
	}
	return nil
}

// release drops the pending slot for id. Abandoned ids are remembered so a
// late response for them is discarded instead of treated as unmatched.
func (s *Session) release(id int64, abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return
	}
	delete(s.pending, id)
	if abandoned {
		s.abandoned[id] = struct{}{}
	}
}

// readLoop is the single reader of the transport. It routes responses to
// their pending slot and closes the session on any transport or protocol
// failure.
func (s *Session) readLoop() {
	defer close(s.readerDone)

	for {
		msg, err := s.transport.ReadMessage(s.readCtx)
		if err != nil {
			if s.readCtx.Err() != nil {
				return
			}
			if transport.IsRecoverableReadError(err) {
				s.shutdown(mcperrors.NewProtocolError(mcperrors.ErrMalformedMessage, "malformed message from server", err, nil))
				return
			}
			s.shutdown(mcperrors.NewTransportError("connection to server lost", err, nil))
			return
		}
		if perr := s.route(msg); perr != nil {
			s.shutdown(perr)
			return
		}
	}
}

// route delivers one inbound message. A non-nil return is a protocol error.
func (s *Session) route(msg []byte) error {
	var env mcptypes.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return mcperrors.NewProtocolError(mcperrors.ErrMalformedMessage, "undecodable message from server", err, nil)
	}

	if !env.IsResponse() {
		if len(env.ID) == 0 {
			s.logger.Debug("Ignoring server notification.", "method", env.Method)
			return nil
		}
		s.rejectServerRequest(env)
		return nil
	}

	id, err := mcptypes.ParseIntID(env.ID)
	if err != nil {
		return mcperrors.NewProtocolError(mcperrors.ErrUnmatchedResponse, "response id is not one of ours", err,
			map[string]interface{}{"id": string(env.ID)})
	}

	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	_, wasAbandoned := s.abandoned[id]
	if wasAbandoned {
		delete(s.abandoned, id)
	}
	s.mu.Unlock()

	switch {
	case ok:
		ch <- callResult{resp: env}
		return nil
	case wasAbandoned:
		s.logger.Debug("Discarding late response to abandoned call.", "id", id)
		return nil
	default:
		return mcperrors.NewProtocolError(mcperrors.ErrUnmatchedResponse,
			fmt.Sprintf("response id %d matches no pending call", id), nil, nil)
	}
}

// rejectServerRequest answers server-initiated requests, which this client
// does not support.
func (s *Session) rejectServerRequest(env mcptypes.Envelope) {
	s.logger.Warn("Rejecting server-initiated request.", "method", env.Method)
	code, message, data := mcperrors.MapMCPErrorToJSONRPC(mcperrors.NewMethodNotFoundError(env.Method))
	resp, err := mcptypes.NewErrorResponse(env.ID, code, message, data)
	if err != nil {
		return
	}
	if err := s.transport.WriteMessage(s.readCtx, resp); err != nil {
		s.logger.Debug("Failed to reject server request.", "error", err)
	}
}
