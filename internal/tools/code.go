// Package tools implements the code assistant and web search tools.
// file: internal/tools/code.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/llm"
	"github.com/dkoosis/codebridge/internal/logging"
	mcptypes "github.com/dkoosis/codebridge/internal/mcp_types"
	"github.com/dkoosis/codebridge/internal/schema"
)

// ErrUnknownGoal is the text returned for a goal outside the configured list.
const ErrUnknownGoal = "unknown optimization goal"

const languageDescription = "Programming language (for example python, javascript, java, c#)"

type generateArgs struct {
	Language    string `json:"language"`
	Description string `json:"description"`
}

type optimizeArgs struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Goal     string `json:"optimization_goal"`
}

type explainArgs struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// CodeService provides generate_code, optimize_code and explain_code.
type CodeService struct {
	llm      llm.Service
	policies *config.PolicyStore
	logger   logging.Logger

	generateSchema *schema.Schema
	optimizeSchema *schema.Schema
	explainSchema  *schema.Schema
}

// NewCodeService creates the code tools on top of an llm.Service. Policies
// are read from store on every call, so reloads apply to the next request.
func NewCodeService(svc llm.Service, store *config.PolicyStore, logger logging.Logger) *CodeService {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if store == nil {
		store = config.NewPolicyStore(nil)
	}
	return &CodeService{
		llm:      svc,
		policies: store,
		logger:   logger.WithField("service", "code"),
		generateSchema: schema.MustCompile(config.ToolGenerateCode, schema.StringObject(
			schema.RequiredString("language", languageDescription),
			schema.RequiredString("description", "Detailed description of what the code should do"),
		)),
		optimizeSchema: schema.MustCompile(config.ToolOptimizeCode, schema.StringObject(
			schema.RequiredString("language", languageDescription),
			schema.RequiredString("code", "The code to optimize"),
			schema.RequiredString("optimization_goal", "Optimization goal (for example performance, readability, memory usage, conciseness)"),
		)),
		explainSchema: schema.MustCompile(config.ToolExplainCode, schema.StringObject(
			schema.RequiredString("language", languageDescription),
			schema.RequiredString("code", "The code to explain"),
		)),
	}
}

// GetName returns the service name.
func (s *CodeService) GetName() string { return "code" }

// GetTools returns the code tool descriptors.
func (s *CodeService) GetTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        config.ToolGenerateCode,
			Description: "Generate code from a description.",
			InputSchema: s.generateSchema.Raw(),
		},
		{
			Name:        config.ToolOptimizeCode,
			Description: "Optimize existing code toward a goal.",
			InputSchema: s.optimizeSchema.Raw(),
		},
		{
			Name:        config.ToolExplainCode,
			Description: "Explain what a piece of code does and how it works.",
			InputSchema: s.explainSchema.Raw(),
		},
	}
}

// CallTool routes a call to the matching handler.
func (s *CodeService) CallTool(ctx context.Context, name string, args json.RawMessage) (*mcptypes.CallToolResult, error) {
	switch name {
	case config.ToolGenerateCode:
		return s.handleGenerate(ctx, args), nil
	case config.ToolOptimizeCode:
		return s.handleOptimize(ctx, args), nil
	case config.ToolExplainCode:
		return s.handleExplain(ctx, args), nil
	default:
		return mcptypes.ErrorResult(fmt.Sprintf("Tool not found: %s", name)), nil
	}
}

func (s *CodeService) handleGenerate(ctx context.Context, raw json.RawMessage) *mcptypes.CallToolResult {
	var args generateArgs
	if err := s.generateSchema.Decode(raw, &args); err != nil {
		return invalidArguments(config.ToolGenerateCode, err)
	}
	text, err := s.complete(ctx, config.ToolGenerateCode, generatePersona, generatePrompt(args.Language, args.Description))
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("Error generating code: %v", err))
	}
	return mcptypes.TextResult(withHeader(generateHeader(args.Language, args.Description), text))
}

func (s *CodeService) handleOptimize(ctx context.Context, raw json.RawMessage) *mcptypes.CallToolResult {
	var args optimizeArgs
	if err := s.optimizeSchema.Decode(raw, &args); err != nil {
		return invalidArguments(config.ToolOptimizeCode, err)
	}
	if !s.policies.GoalAllowed(args.Goal) {
		s.logger.Debug("Rejected optimization goal.", "goal", args.Goal, "allowed", s.policies.Goals())
		return mcptypes.ErrorResult(fmt.Sprintf("%s: %q (allowed: %v)", ErrUnknownGoal, args.Goal, s.policies.Goals()))
	}
	text, err := s.complete(ctx, config.ToolOptimizeCode, optimizePersona, optimizePrompt(args.Language, args.Code, args.Goal))
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("Error optimizing code: %v", err))
	}
	return mcptypes.TextResult(withHeader(optimizeHeader(args.Language, args.Goal), text))
}

func (s *CodeService) handleExplain(ctx context.Context, raw json.RawMessage) *mcptypes.CallToolResult {
	var args explainArgs
	if err := s.explainSchema.Decode(raw, &args); err != nil {
		return invalidArguments(config.ToolExplainCode, err)
	}
	text, err := s.complete(ctx, config.ToolExplainCode, explainPersona, explainPrompt(args.Language, args.Code))
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("Error explaining code: %v", err))
	}
	return mcptypes.TextResult(withHeader(explainHeader(args.Language), text))
}

func (s *CodeService) complete(ctx context.Context, tool, system, user string) (string, error) {
	if s.llm == nil {
		return "", errors.New("no language model backend configured")
	}
	p := s.policies.Policy(tool)
	return s.llm.Complete(ctx, llm.Request{
		Model:       p.Model,
		System:      system,
		User:        user,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
}

func invalidArguments(tool string, err error) *mcptypes.CallToolResult {
	return mcptypes.ErrorResult(fmt.Sprintf("Invalid arguments for %s: %v", tool, err))
}
