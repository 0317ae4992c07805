// file: internal/middleware/logging.go
package middleware

import (
	"context"
	"time"

	"github.com/dkoosis/codebridge/internal/logging"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// Logging logs the start and outcome of every tool call.
func Logging(logger logging.Logger) Middleware {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	log := logger.WithField("component", "tool_dispatch")

	return func(next ToolHandler) ToolHandler {
		return func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			start := time.Now()
			log.Debug("Tool call started.", "tool", req.Name, "argsBytes", len(req.Arguments))

			result, err := next(ctx, req)

			elapsed := time.Since(start)
			switch {
			case err != nil:
				log.Warn("Tool call failed.", "tool", req.Name, "duration", elapsed, "error", err)
			case result != nil && result.IsError:
				log.Info("Tool call returned an error result.", "tool", req.Name, "duration", elapsed)
			default:
				log.Debug("Tool call completed.", "tool", req.Name, "duration", elapsed)
			}
			return result, err
		}
	}
}
