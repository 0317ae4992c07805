// Package server wires configuration, credentials, upstream clients and the
// tool registry into a stdio tool server.
// file: cmd/server/server_runner.go
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/config"
	"github.com/dkoosis/codebridge/internal/credentials"
	"github.com/dkoosis/codebridge/internal/llm"
	"github.com/dkoosis/codebridge/internal/logging"
	"github.com/dkoosis/codebridge/internal/mcp/registry"
	mcpserver "github.com/dkoosis/codebridge/internal/mcp/server"
	"github.com/dkoosis/codebridge/internal/metrics"
	"github.com/dkoosis/codebridge/internal/middleware"
	"github.com/dkoosis/codebridge/internal/ratelimit"
	"github.com/dkoosis/codebridge/internal/search"
	"github.com/dkoosis/codebridge/internal/tools"
	"github.com/dkoosis/codebridge/internal/transport"
)

// errorBufferSize is how many recent errors the metrics collector keeps.
const errorBufferSize = 20

// Options are the serve subcommand flags.
type Options struct {
	ConfigPath string
	Debug      bool
	Version    string
}

// Components is everything a running server needs.
type Components struct {
	Server   *mcpserver.Server
	Registry *registry.Registry
	Policies *config.PolicyStore
	Metrics  *metrics.Collector
}

// LoadConfig reads configPath, or the defaults when it is empty, and validates it.
func LoadConfig(configPath string) (*config.Config, error) {
	var cfg *config.Config
	if configPath == "" {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Build resolves credentials and assembles the server. Missing API keys are
// logged but do not stop the server; the affected tools report the problem
// per call.
func Build(cfg *config.Config, keys *credentials.Store, version string, logger logging.Logger) (*Components, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}

	llmKey, llmSource := keys.Resolve(cfg.Upstream.APIKey, credentials.KeyOpenAI)
	if llmKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; code tools will fail until it is configured.")
	} else {
		logger.Info("LLM API key configured.", "source", llmSource)
	}
	logger.Info("Using LLM API base.", "api_base", cfg.Upstream.APIBase)

	searchKey, searchSource := keys.Resolve(cfg.Search.APIKey, credentials.KeySearch)
	if searchKey == "" {
		logger.Warn("SEARCH_API_KEY is not set; web_search will fail until it is configured.")
	} else {
		logger.Info("Search API key configured.", "source", searchSource, "endpoint", cfg.Search.Endpoint)
	}

	collector := metrics.NewCollector(errorBufferSize)
	llmClient := llm.NewClient(cfg.Upstream.APIBase, llmKey,
		llm.WithLimiter(ratelimit.New(cfg.Upstream.RequestsPerSecond, cfg.Upstream.Burst)),
		llm.WithRecorder(collector),
		llm.WithLogger(logger))
	searchClient := search.NewClient(cfg.Search.Endpoint, searchKey,
		search.WithTool(cfg.Search.Tool),
		search.WithLimiter(ratelimit.New(cfg.Upstream.RequestsPerSecond, cfg.Upstream.Burst)),
		search.WithRecorder(collector),
		search.WithLogger(logger))

	policies := config.NewPolicyStore(cfg)
	reg := registry.New(logger).Use(
		middleware.Logging(logger),
		middleware.Metrics(collector),
	)
	names, err := tools.RegisterAll(reg, cfg, tools.Deps{
		LLM:      llmClient,
		Search:   searchClient,
		Policies: policies,
		Logger:   logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to register tools")
	}
	logger.Info("Registered tools.", "tools", names)

	srv, err := mcpserver.New(mcpserver.Config{
		Name:         cfg.Server.Name,
		Version:      version,
		Instructions: serverInstructions(names),
	}, reg, mcpserver.WithLogger(logger), mcpserver.WithMetrics(collector))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tool server")
	}
	return &Components{Server: srv, Registry: reg, Policies: policies, Metrics: collector}, nil
}

// RunServer serves the tools over stdin/stdout until the client disconnects
// or a termination signal arrives. Logs go to stderr.
func RunServer(opts Options) error {
	startTime := time.Now()

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %+v\n", err)
		return err
	}
	level := cfg.Logging.Level
	if opts.Debug {
		level = "debug"
	}
	logging.SetupDefaultLogger(level)
	logger := logging.GetLogger("server_runner")

	logger.Info("Starting codebridge server.",
		"config_path", opts.ConfigPath,
		"version", opts.Version,
		"debug_mode", opts.Debug)

	parts, err := Build(cfg, credentials.NewStore(logger), opts.Version, logger)
	if err != nil {
		logger.Error("Server setup failed.", "error", fmt.Sprintf("%+v", err))
		return err
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, parts.Policies, logger)
		if err != nil {
			logger.Warn("Config hot reload disabled.", "error", err)
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := transport.NewNDJSONTransport(os.Stdin, os.Stdout, os.Stdin, logger)
	logger.Info("Server ready on stdio.", "startup_time_ms", time.Since(startTime).Milliseconds())

	err = parts.Server.Serve(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error.", "error", fmt.Sprintf("%+v", err))
		return err
	}
	logger.Info("Server stopped.", "uptime", time.Since(startTime).String())
	return nil
}

// serverInstructions is the usage hint sent to clients in the handshake.
func serverInstructions(tools []string) string {
	return fmt.Sprintf("Code assistant tools: %s. Failures come back as error results.", strings.Join(tools, ", "))
}
