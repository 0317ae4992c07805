// Package services defines the interface tool groups implement, so the server
// can register them without knowing their backends.
// file: internal/services/service.go
package services

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
)

// Service is a group of tools backed by one upstream.
type Service interface {
	// GetName returns a short lowercase identifier, used in logs.
	GetName() string

	// GetTools returns the descriptors of every tool the service offers.
	GetTools() []mcptypes.Tool

	// CallTool runs one of the service's tools. Failures inside the tool are
	// reported as an error-flagged result; a returned error means the call
	// could not be handled at all.
	CallTool(ctx context.Context, name string, args json.RawMessage) (*mcptypes.CallToolResult, error)
}

// Register adds the tools of svc to reg. Tools for which enabled returns
// false are skipped; a nil enabled registers everything. It returns the names
// that were registered.
func Register(reg *registry.Registry, svc Service, enabled func(string) bool) ([]string, error) {
	var added []string
	for _, tool := range svc.GetTools() {
		if enabled != nil && !enabled(tool.Name) {
			continue
		}
		name := tool.Name
		handler := func(ctx context.Context, args json.RawMessage) (*mcptypes.CallToolResult, error) {
			return svc.CallTool(ctx, name, args)
		}
		if err := reg.Register(tool, handler); err != nil {
			return added, errors.Wrapf(err, "failed to register tool %s of service %s", name, svc.GetName())
		}
		added = append(added, name)
	}
	return added, nil
}
