// Package config handles loading, parsing, and validating application configuration.
// Defaults are overridden by a YAML file, which is in turn overridden by
// environment variables.
// file: internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
	"gopkg.in/yaml.v3"
)

// Tool names known to the server.
const (
	ToolGenerateCode = "generate_code"
	ToolOptimizeCode = "optimize_code"
	ToolExplainCode  = "explain_code"
	ToolWebSearch    = "web_search"
)

// KnownTools lists every tool the server can register, in registration order.
var KnownTools = []string{ToolGenerateCode, ToolOptimizeCode, ToolExplainCode, ToolWebSearch}

// Environment variables read by applyEnvironmentOverrides.
const (
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIAPIBase     = "OPENAI_API_BASE"
	EnvSearchAPIKey      = "SEARCH_API_KEY"
	EnvSearchAPIEndpoint = "SEARCH_API_ENDPOINT"
	EnvServerName        = "CODEBRIDGE_SERVER_NAME"
	EnvOutputDir         = "CODEBRIDGE_OUTPUT_DIR"
	EnvLogLevel          = "CODEBRIDGE_LOG_LEVEL"
)

// Defaults.
const (
	DefaultAPIBase        = "https://api.openai.com/v1"
	DefaultSearchEndpoint = "https://open.bigmodel.cn/api/paas/v4/tools"
	DefaultSearchTool     = "web-search-pro"
	DefaultModel          = "gpt-3.5-turbo"
	DefaultMaxTokens      = 2000
	DefaultOutputDir      = "output"
)

// ServerConfig contains settings for the tool server.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// EnabledTools limits the registered tools. Empty registers all of them.
	EnabledTools []string `yaml:"enabled_tools"`
}

// ClientConfig contains settings for the client front ends.
type ClientConfig struct {
	// ServerCommand is the server executable. Empty means the running binary.
	ServerCommand string   `yaml:"server_command"`
	ServerArgs    []string `yaml:"server_args"`
	OutputDir     string   `yaml:"output_dir"`
}

// UpstreamConfig configures the text generation backend.
type UpstreamConfig struct {
	APIBase           string  `yaml:"api_base"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Tool     string `yaml:"tool"`
}

// ToolPolicy is the generation policy of one code tool.
type ToolPolicy struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the root configuration structure.
type Config struct {
	Server            ServerConfig          `yaml:"server"`
	Client            ClientConfig          `yaml:"client"`
	Upstream          UpstreamConfig        `yaml:"upstream"`
	Search            SearchConfig          `yaml:"search"`
	Tools             map[string]ToolPolicy `yaml:"tools"`
	OptimizationGoals []string              `yaml:"optimization_goals"`
	Logging           LoggingConfig         `yaml:"logging"`
}

// DefaultPolicies returns the built-in policy of each code tool.
func DefaultPolicies() map[string]ToolPolicy {
	return map[string]ToolPolicy{
		ToolGenerateCode: {Model: DefaultModel, Temperature: 0.2, MaxTokens: DefaultMaxTokens},
		ToolOptimizeCode: {Model: DefaultModel, Temperature: 0.3, MaxTokens: DefaultMaxTokens},
		ToolExplainCode:  {Model: DefaultModel, Temperature: 0.3, MaxTokens: DefaultMaxTokens},
	}
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Name: "codebridge", Version: "dev"},
		Client: ClientConfig{OutputDir: DefaultOutputDir},
		Upstream: UpstreamConfig{
			APIBase:           DefaultAPIBase,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Search: SearchConfig{
			Endpoint: DefaultSearchEndpoint,
			Tool:     DefaultSearchTool,
		},
		Tools:   DefaultPolicies(),
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultConfig returns the defaults with environment overrides applied.
func DefaultConfig() *Config {
	cfg := defaults()
	applyEnvironmentOverrides(cfg, logging.GetLogger("config_default"))
	return cfg
}

// LoadFromFile loads configuration from a YAML file over the defaults and
// then applies environment overrides. A leading '~' is expanded.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvironmentOverrides(cfg, logging.GetLogger("config_load"))
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from a command-line flag.
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", expanded)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file YAML: %s", expanded)
	}

	// Tool policies merge per field, so a file can change one setting of one
	// tool without repeating the rest.
	var overrides struct {
		Tools map[string]policyOverride `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tools section: %s", expanded)
	}
	cfg.Tools = DefaultPolicies()
	for name, o := range overrides.Tools {
		cfg.Tools[name] = o.apply(cfg.Tools[name])
	}
	return cfg, nil
}

type policyOverride struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

func (o policyOverride) apply(base ToolPolicy) ToolPolicy {
	if o.Model != "" {
		base.Model = o.Model
	}
	if o.Temperature != nil {
		base.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		base.MaxTokens = *o.MaxTokens
	}
	return base
}

// ExpandPath expands a leading '~' to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory to expand path")
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// applyEnvironmentOverrides applies overrides from environment variables,
// which take precedence over the file and the defaults.
func applyEnvironmentOverrides(cfg *Config, logger logging.Logger) {
	override := func(envVar string, target *string, secret bool) {
		v := strings.TrimSpace(os.Getenv(envVar))
		if v == "" {
			return
		}
		if secret {
			logger.Debug("Overriding setting from environment.", "envVar", envVar)
		} else {
			logger.Debug("Overriding setting from environment.", "envVar", envVar, "value", v)
		}
		*target = v
	}

	override(EnvOpenAIAPIKey, &cfg.Upstream.APIKey, true)
	override(EnvOpenAIAPIBase, &cfg.Upstream.APIBase, false)
	override(EnvSearchAPIKey, &cfg.Search.APIKey, true)
	override(EnvSearchAPIEndpoint, &cfg.Search.Endpoint, false)
	override(EnvServerName, &cfg.Server.Name, false)
	override(EnvOutputDir, &cfg.Client.OutputDir, false)
	override(EnvLogLevel, &cfg.Logging.Level, false)

	cfg.Upstream.APIBase = strings.TrimRight(cfg.Upstream.APIBase, "/")
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	known := make(map[string]bool, len(KnownTools))
	for _, name := range KnownTools {
		known[name] = true
	}

	for _, name := range c.Server.EnabledTools {
		if !known[name] {
			return errors.Newf("server.enabled_tools: unknown tool %q", name)
		}
	}
	for name, p := range c.Tools {
		if !known[name] || name == ToolWebSearch {
			return errors.Newf("tools: no generation policy applies to %q", name)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return errors.Newf("tools.%s.temperature %.2f outside [0, 2]", name, p.Temperature)
		}
		if p.MaxTokens <= 0 {
			return errors.Newf("tools.%s.max_tokens must be positive", name)
		}
		if strings.TrimSpace(p.Model) == "" {
			return errors.Newf("tools.%s.model must not be empty", name)
		}
	}
	if c.Upstream.RequestsPerSecond < 0 || c.Upstream.Burst < 0 {
		return errors.New("upstream rate limit settings must not be negative")
	}
	if strings.TrimSpace(c.Upstream.APIBase) == "" {
		return errors.New("upstream.api_base must not be empty")
	}
	return nil
}

// ToolEnabled reports whether name should be registered.
func (c *Config) ToolEnabled(name string) bool {
	if len(c.Server.EnabledTools) == 0 {
		return true
	}
	for _, n := range c.Server.EnabledTools {
		if n == name {
			return true
		}
	}
	return false
}
