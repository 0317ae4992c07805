// file: internal/services/service_test.go
package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dkoosis/codebridge/internal/mcp/registry"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	calls []string
}

func (f *fakeService) GetName() string { return "fake" }

func (f *fakeService) GetTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{Name: "alpha", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "beta", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}
}

func (f *fakeService) CallTool(_ context.Context, name string, _ json.RawMessage) (*mcptypes.CallToolResult, error) {
	f.calls = append(f.calls, name)
	return mcptypes.TextResult("called " + name), nil
}

func TestRegister_RoutesByToolName(t *testing.T) {
	reg := registry.New(nil)
	svc := &fakeService{}
	added, err := Register(reg, svc, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, added)

	res := reg.Dispatch(context.Background(), mcptypes.CallToolRequest{Name: "beta"})
	assert.False(t, res.IsError)
	assert.Equal(t, "called beta", res.Text())
	assert.Equal(t, []string{"beta"}, svc.calls)
}

func TestRegister_HonoursFilter(t *testing.T) {
	reg := registry.New(nil)
	added, err := Register(reg, &fakeService{}, func(name string) bool { return name == "alpha" })
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, added)
	assert.False(t, reg.Has("beta"))
}

func TestRegister_DuplicateFails(t *testing.T) {
	reg := registry.New(nil)
	_, err := Register(reg, &fakeService{}, nil)
	require.NoError(t, err)
	_, err = Register(reg, &fakeService{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}
