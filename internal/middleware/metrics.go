// file: internal/middleware/metrics.go
package middleware

import (
	"context"
	"fmt"
	"time"

	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// Recorder receives per-call measurements. *metrics.Collector satisfies it.
type Recorder interface {
	RecordToolCall(tool string, latency time.Duration, failed bool)
	RecordError(component, message, stack string)
}

// Metrics records latency and outcome of every tool call. A call counts as
// failed when the handler errors or returns an error-flagged result.
func Metrics(rec Recorder) Middleware {
	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			start := time.Now()
			result, err := next(ctx, req)
			failed := err != nil || result == nil || result.IsError
			rec.RecordToolCall(req.Name, time.Since(start), failed)
			if err != nil {
				rec.RecordError("tool:"+req.Name, err.Error(), fmt.Sprintf("%+v", err))
			}
			return result, err
		}
	}
}
