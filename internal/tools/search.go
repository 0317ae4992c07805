// file: internal/tools/search.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/logging"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/schema"
	"github.com/dkoosis/codebridge/internal/search"
)

// ResultSeparator joins individual search results.
const ResultSeparator = "\n\n"

type searchArgs struct {
	Query string `json:"query"`
}

// SearchService provides web_search.
type SearchService struct {
	searcher search.Service
	logger   logging.Logger
	schema   *schema.Schema
}

// NewSearchService creates the web search tool.
func NewSearchService(searcher search.Service, logger logging.Logger) *SearchService {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &SearchService{
		searcher: searcher,
		logger:   logger.WithField("service", "search"),
		schema: schema.MustCompile(config.ToolWebSearch, schema.StringObject(
			schema.RequiredString("query", "What to search the web for"),
		)),
	}
}

// GetName returns the service name.
func (s *SearchService) GetName() string { return "search" }

// GetTools returns the web_search descriptor.
func (s *SearchService) GetTools() []mcptypes.Tool {
	return []mcptypes.Tool{{
		Name:        config.ToolWebSearch,
		Description: "Search the web and return the content of every result.",
		InputSchema: s.schema.Raw(),
	}}
}

// CallTool runs web_search. Zero results give an empty, successful result.
func (s *SearchService) CallTool(ctx context.Context, name string, raw json.RawMessage) (*mcptypes.CallToolResult, error) {
	if name != config.ToolWebSearch {
		return mcptypes.ErrorResult(fmt.Sprintf("Tool not found: %s", name)), nil
	}
	var args searchArgs
	if err := s.schema.Decode(raw, &args); err != nil {
		return invalidArguments(config.ToolWebSearch, err), nil
	}
	if s.searcher == nil {
		return mcptypes.ErrorResult("Error searching the web: no search backend configured"), nil
	}
	results, err := s.searcher.Search(ctx, args.Query)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("Error searching the web: %v", err)), nil
	}
	s.logger.Debug("Web search finished.", "results", len(results))
	return mcptypes.TextResult(strings.Join(results, ResultSeparator)), nil
}
