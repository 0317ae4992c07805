// Package assistant is the client-side API over a tool session: one method per
// capability, each returning the tool's text.
// file: internal/assistant/assistant.go
package assistant

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/mcp/session"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/transport"
)

// Reply is the text of a tool result. IsError is set when the tool reported
// a failure; the text then describes it.
type Reply struct {
	Text    string
	IsError bool
}

// Caller is the part of a session the assistant needs.
type Caller interface {
	CallTool(ctx context.Context, name string, arguments interface{}) (*mcptypes.CallToolResult, error)
	Close() error
}

// Assistant issues tool calls one at a time over a Caller.
type Assistant struct {
	caller Caller
	logger logging.Logger
}

// New wraps a connected session.
func New(caller Caller, logger logging.Logger) *Assistant {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Assistant{caller: caller, logger: logger.WithField("component", "assistant")}
}

// GenerateCode asks for code in language that does what description says.
func (a *Assistant) GenerateCode(ctx context.Context, language, description string) (Reply, error) {
	return a.call(ctx, config.ToolGenerateCode, map[string]string{
		"language":    language,
		"description": description,
	})
}

// OptimizeCode asks for code rewritten toward goal.
func (a *Assistant) OptimizeCode(ctx context.Context, language, code, goal string) (Reply, error) {
	return a.call(ctx, config.ToolOptimizeCode, map[string]string{
		"language":          language,
		"code":              code,
		"optimization_goal": goal,
	})
}

// ExplainCode asks for an explanation of code.
func (a *Assistant) ExplainCode(ctx context.Context, language, code string) (Reply, error) {
	return a.call(ctx, config.ToolExplainCode, map[string]string{
		"language": language,
		"code":     code,
	})
}

// WebSearch runs a web search. No results give an empty, successful Reply.
func (a *Assistant) WebSearch(ctx context.Context, query string) (Reply, error) {
	return a.call(ctx, config.ToolWebSearch, map[string]string{"query": query})
}

// Close closes the underlying session and its transport.
func (a *Assistant) Close() error {
	return a.caller.Close()
}

// call returns an error only for transport, handshake and protocol failures.
// Tool-reported failures come back as a Reply with IsError set.
func (a *Assistant) call(ctx context.Context, tool string, args map[string]string) (Reply, error) {
	res, err := a.caller.CallTool(ctx, tool, args)
	if err != nil {
		a.logger.Warn("Tool call failed.", "tool", tool, "error", err)
		return Reply{}, err
	}
	text, err := res.FirstText()
	if err != nil {
		if res.IsError {
			return Reply{Text: "tool reported an error without a message", IsError: true}, nil
		}
		return Reply{}, errors.Wrapf(err, "tool %s returned no text", tool)
	}
	if res.IsError {
		a.logger.Debug("Tool reported an error.", "tool", tool, "text", text)
	}
	return Reply{Text: text, IsError: res.IsError}, nil
}

// DialConfig describes the server process to launch.
type DialConfig struct {
	ServerCommand string
	ServerArgs    []string
	ClientInfo    mcptypes.Implementation
	Logger        logging.Logger
}

// Dial starts the server process, connects a session to it and returns an
// Assistant. Every error path closes the process.
func Dial(ctx context.Context, cfg DialConfig) (*Assistant, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("assistant")
	}
	if cfg.ServerCommand == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, "Dial: cannot locate own executable")
		}
		cfg.ServerCommand = exe
		if len(cfg.ServerArgs) == 0 {
			cfg.ServerArgs = []string{"serve"}
		}
	}

	t, err := transport.StartProcess(ctx, transport.ProcessConfig{
		Command: cfg.ServerCommand,
		Args:    cfg.ServerArgs,
	}, logger)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{session.WithLogger(logger)}
	if cfg.ClientInfo.Name != "" {
		opts = append(opts, session.WithClientInfo(cfg.ClientInfo))
	}
	sess, err := session.New(t, opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}

	tools, _ := sess.ListTools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	logger.Info("Connected to tool server.",
		"server", sess.ServerInfo().Name,
		"version", sess.ServerInfo().Version,
		"pid", t.Pid(),
		"tools", names)
	if instructions := sess.Instructions(); instructions != "" {
		logger.Debug("Server instructions.", "instructions", instructions)
	}
	return New(sess, logger), nil
}
