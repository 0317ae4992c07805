// file: internal/tools/tools_test.go
package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/llm"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type fakeSearcher struct {
	results []string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func newRegistry(t *testing.T, cfg *config.Config, model *fakeLLM, searcher *fakeSearcher) *registry.Registry {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Server.EnabledTools = nil
		cfg.Tools = config.DefaultPolicies()
		cfg.OptimizationGoals = nil
	}
	reg := registry.New(nil)
	_, err := RegisterAll(reg, cfg, Deps{LLM: model, Search: searcher})
	require.NoError(t, err)
	return reg
}

func call(reg *registry.Registry, name string, args map[string]string) *mcptypes.CallToolResult {
	raw, _ := json.Marshal(args)
	return reg.Dispatch(context.Background(), mcptypes.CallToolRequest{Name: name, Arguments: raw})
}

func TestRegisterAll_RegistersFourToolsInOrder(t *testing.T) {
	reg := newRegistry(t, nil, &fakeLLM{}, &fakeSearcher{})
	assert.Equal(t, []string{"generate_code", "optimize_code", "explain_code", "web_search"}, reg.Names())

	for _, tool := range reg.List() {
		var doc struct {
			Required []string `json:"required"`
		}
		require.NoError(t, json.Unmarshal(tool.InputSchema, &doc), tool.Name)
		assert.NotEmpty(t, doc.Required, tool.Name)
	}
}

func TestRegisterAll_HonoursEnabledTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.EnabledTools = []string{config.ToolWebSearch}
	reg := newRegistry(t, cfg, &fakeLLM{}, &fakeSearcher{})
	assert.Equal(t, []string{"web_search"}, reg.Names())
}

func TestGenerateCode_UsesPolicyAndHeader(t *testing.T) {
	model := &fakeLLM{reply: "def add(a, b):\n    return a + b"}
	reg := newRegistry(t, nil, model, &fakeSearcher{})

	res := call(reg, "generate_code", map[string]string{"language": "python", "description": "add two numbers"})
	require.False(t, res.IsError, res.Text())
	text, err := res.FirstText()
	require.NoError(t, err)
	assert.Equal(t, "# python code - description: add two numbers\n\ndef add(a, b):\n    return a + b\n", text)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, config.DefaultModel, req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9)
	assert.Equal(t, 2000, req.MaxTokens)
	assert.Equal(t, generatePersona, req.System)
	assert.Contains(t, req.User, "add two numbers")
	assert.Contains(t, req.User, "python")
}

func TestOptimizeCode_EmbedsCodeAndGoal(t *testing.T) {
	model := &fakeLLM{reply: "faster"}
	reg := newRegistry(t, nil, model, &fakeSearcher{})

	res := call(reg, "optimize_code", map[string]string{
		"language": "go", "code": "for i := 0; i < n; i++ {}", "optimization_goal": "performance",
	})
	require.False(t, res.IsError, res.Text())
	assert.True(t, strings.HasPrefix(res.Text(), "# Optimized go code - goal: performance\n\n"))
	require.Len(t, model.requests, 1)
	assert.Contains(t, model.requests[0].User, "```go\nfor i := 0; i < n; i++ {}\n```")
	assert.InDelta(t, 0.3, model.requests[0].Temperature, 1e-9)
}

func TestOptimizeCode_UnknownGoal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.EnabledTools = nil
	cfg.OptimizationGoals = []string{"performance", "Readability"}
	model := &fakeLLM{reply: "x"}
	reg := newRegistry(t, cfg, model, &fakeSearcher{})

	res := call(reg, "optimize_code", map[string]string{"language": "go", "code": "x", "optimization_goal": "vibes"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), ErrUnknownGoal)
	assert.Empty(t, model.requests)

	res = call(reg, "optimize_code", map[string]string{"language": "go", "code": "x", "optimization_goal": "readability"})
	assert.False(t, res.IsError, res.Text())
}

func TestExplainCode_Header(t *testing.T) {
	reg := newRegistry(t, nil, &fakeLLM{reply: "It prints."}, &fakeSearcher{})
	res := call(reg, "explain_code", map[string]string{"language": "rust", "code": "println!(\"hi\");"})
	require.False(t, res.IsError)
	assert.Equal(t, "# rust code explanation\n\nIt prints.\n", res.Text())
}

func TestCodeTools_UpstreamFailureIsErrorResult(t *testing.T) {
	reg := newRegistry(t, nil, &fakeLLM{err: errors.New("quota exceeded")}, &fakeSearcher{})
	for tool, args := range map[string]map[string]string{
		"generate_code": {"language": "go", "description": "d"},
		"optimize_code": {"language": "go", "code": "c", "optimization_goal": "g"},
		"explain_code":  {"language": "go", "code": "c"},
	} {
		res := call(reg, tool, args)
		assert.True(t, res.IsError, tool)
		assert.Contains(t, res.Text(), "quota exceeded", tool)
	}
}

func TestCodeTools_MissingArgumentIsErrorResult(t *testing.T) {
	model := &fakeLLM{reply: "x"}
	reg := newRegistry(t, nil, model, &fakeSearcher{})
	res := call(reg, "generate_code", map[string]string{"language": "go"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "Invalid arguments for generate_code")
	assert.Empty(t, model.requests)
}

func TestWebSearch_JoinsResults(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"one", "two"}}
	model := &fakeLLM{}
	reg := newRegistry(t, nil, model, searcher)

	res := call(reg, "web_search", map[string]string{"query": "go 1.24"})
	require.False(t, res.IsError)
	assert.Equal(t, "one\n\ntwo", res.Text())
	assert.Equal(t, []string{"go 1.24"}, searcher.queries)
	assert.Empty(t, model.requests)
}

func TestWebSearch_ZeroResultsIsEmptyText(t *testing.T) {
	reg := newRegistry(t, nil, &fakeLLM{}, &fakeSearcher{})
	res := call(reg, "web_search", map[string]string{"query": "nothing"})
	assert.False(t, res.IsError)
	text, err := res.FirstText()
	require.NoError(t, err)
	assert.Empty(t, text)

	wire, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(wire), `"text":""`)
}

func TestWebSearch_UpstreamFailure(t *testing.T) {
	reg := newRegistry(t, nil, &fakeLLM{}, &fakeSearcher{err: errors.New("503")})
	res := call(reg, "web_search", map[string]string{"query": "q"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "503")
}

func TestCodeService_PolicyReloadApplies(t *testing.T) {
	model := &fakeLLM{reply: "x"}
	cfg := config.DefaultConfig()
	store := config.NewPolicyStore(cfg)
	svc := NewCodeService(model, store, nil)

	updated := config.DefaultConfig()
	updated.Tools[config.ToolExplainCode] = config.ToolPolicy{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 500}
	store.Update(updated)

	_, err := svc.CallTool(context.Background(), config.ToolExplainCode, json.RawMessage(`{"language":"go","code":"x"}`))
	require.NoError(t, err)
	require.Len(t, model.requests, 1)
	assert.Equal(t, "gpt-4o", model.requests[0].Model)
	assert.Equal(t, 500, model.requests[0].MaxTokens)
}
