// file: internal/assistant/assistant_test.go
package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/llm"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	"github.com/dkoosis/codebridge/internal/mcp/server"
	"github.com/dkoosis/codebridge/internal/mcp/session"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/tools"
	"github.com/dkoosis/codebridge/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers generate requests with code and explain requests with
// a sentence that quotes the code it was given.
type scriptedLLM struct {
	err error
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(req.User, "Explain") {
		return "This explains: " + req.User[strings.Index(req.User, "```"):], nil
	}
	return "def add(a, b):\n    return a + b", nil
}

type fakeSearcher struct{ results []string }

func (f *fakeSearcher) Search(context.Context, string) ([]string, error) { return f.results, nil }

func newAssistant(t *testing.T, model llm.Service, searcher *fakeSearcher) *Assistant {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.EnabledTools = nil
	cfg.OptimizationGoals = []string{"performance"}

	reg := registry.New(nil)
	_, err := tools.RegisterAll(reg, cfg, tools.Deps{LLM: model, Search: searcher})
	require.NoError(t, err)

	srv, err := server.New(server.Config{Name: "codebridge", Version: "test"}, reg)
	require.NoError(t, err)

	pair := transport.NewInMemoryTransportPair()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx, pair.ServerTransport) }()
	t.Cleanup(cancel)

	sess, err := session.New(pair.ClientTransport)
	require.NoError(t, err)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer connectCancel()
	require.NoError(t, sess.Connect(connectCtx))

	a := New(sess, nil)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAssistant_GenerateThenExplain(t *testing.T) {
	a := newAssistant(t, &scriptedLLM{}, &fakeSearcher{})
	ctx := context.Background()

	gen, err := a.GenerateCode(ctx, "python", "add two numbers")
	require.NoError(t, err)
	require.False(t, gen.IsError, gen.Text)
	assert.True(t, strings.HasPrefix(gen.Text, "# python code - description: add two numbers\n\n"))

	exp, err := a.ExplainCode(ctx, "python", gen.Text)
	require.NoError(t, err)
	require.False(t, exp.IsError, exp.Text)
	assert.True(t, strings.HasPrefix(exp.Text, "# python code explanation\n\n"))
	assert.Contains(t, exp.Text, "def add(a, b)")
}

func TestAssistant_OptimizeCode_UnknownGoalIsReply(t *testing.T) {
	a := newAssistant(t, &scriptedLLM{}, &fakeSearcher{})
	reply, err := a.OptimizeCode(context.Background(), "go", "x := 1", "style")
	require.NoError(t, err)
	assert.True(t, reply.IsError)
	assert.Contains(t, reply.Text, "unknown optimization goal")

	reply, err = a.OptimizeCode(context.Background(), "go", "x := 1", "Performance")
	require.NoError(t, err)
	assert.False(t, reply.IsError, reply.Text)
	assert.True(t, strings.HasPrefix(reply.Text, "# Optimized go code - goal: Performance"))
}

func TestAssistant_UpstreamFailureIsReply(t *testing.T) {
	a := newAssistant(t, &scriptedLLM{err: errors.New("connection refused")}, &fakeSearcher{})
	reply, err := a.GenerateCode(context.Background(), "go", "hello")
	require.NoError(t, err)
	assert.True(t, reply.IsError)
	assert.Contains(t, reply.Text, "connection refused")
}

func TestAssistant_WebSearch(t *testing.T) {
	a := newAssistant(t, &scriptedLLM{}, &fakeSearcher{results: []string{"a", "b"}})
	reply, err := a.WebSearch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "a\n\nb"}, reply)

	empty := newAssistant(t, &scriptedLLM{}, &fakeSearcher{})
	reply, err = empty.WebSearch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, Reply{}, reply)
}

func TestAssistant_AfterClose_NotConnected(t *testing.T) {
	a := newAssistant(t, &scriptedLLM{}, &fakeSearcher{})
	require.NoError(t, a.Close())
	_, err := a.GenerateCode(context.Background(), "go", "x")
	require.Error(t, err)
	assert.True(t, mcperrors.IsNotConnected(err) || mcperrors.IsTransportFailure(err))
}

type stubCaller struct {
	res *mcptypes.CallToolResult
	err error
}

func (s *stubCaller) CallTool(context.Context, string, interface{}) (*mcptypes.CallToolResult, error) {
	return s.res, s.err
}

func (s *stubCaller) Close() error { return nil }

func TestAssistant_ErrorWithoutText(t *testing.T) {
	a := New(&stubCaller{res: &mcptypes.CallToolResult{IsError: true}}, nil)
	reply, err := a.ExplainCode(context.Background(), "go", "x")
	require.NoError(t, err)
	assert.True(t, reply.IsError)
	assert.NotEmpty(t, reply.Text)

	a = New(&stubCaller{res: &mcptypes.CallToolResult{}}, nil)
	_, err = a.ExplainCode(context.Background(), "go", "x")
	assert.Error(t, err)
}

func TestDial_MissingCommandFails(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{ServerCommand: "/nonexistent/codebridge-server"})
	require.Error(t, err)
}
