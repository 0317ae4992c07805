// file: internal/tools/register.go
package tools

import (
	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/llm"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	"github.com/dkoosis/codebridge/internal/search"
	"github.com/dkoosis/codebridge/internal/services"
)

// Deps are the backends the tools call.
type Deps struct {
	LLM      llm.Service
	Search   search.Service
	Policies *config.PolicyStore
	Logger   logging.Logger
}

// RegisterAll registers every tool enabled in cfg and returns their names in
// registration order.
func RegisterAll(reg *registry.Registry, cfg *config.Config, deps Deps) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("RegisterAll: config is nil")
	}
	if deps.Policies == nil {
		deps.Policies = config.NewPolicyStore(cfg)
	}
	svcs := []services.Service{
		NewCodeService(deps.LLM, deps.Policies, deps.Logger),
		NewSearchService(deps.Search, deps.Logger),
	}
	var names []string
	for _, svc := range svcs {
		added, err := services.Register(reg, svc, cfg.ToolEnabled)
		names = append(names, added...)
		if err != nil {
			return names, err
		}
	}
	return names, nil
}
