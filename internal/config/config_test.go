// file: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvOpenAIAPIKey, EnvOpenAIAPIBase, EnvSearchAPIKey, EnvSearchAPIEndpoint,
		EnvServerName, EnvOutputDir, EnvLogLevel} {
		t.Setenv(v, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	assert.Equal(t, "codebridge", cfg.Server.Name)
	assert.Equal(t, DefaultAPIBase, cfg.Upstream.APIBase)
	assert.Equal(t, DefaultSearchEndpoint, cfg.Search.Endpoint)
	assert.Equal(t, DefaultOutputDir, cfg.Client.OutputDir)
	assert.Equal(t, ToolPolicy{Model: "gpt-3.5-turbo", Temperature: 0.2, MaxTokens: 2000}, cfg.Tools[ToolGenerateCode])
	assert.Equal(t, 0.3, cfg.Tools[ToolOptimizeCode].Temperature)
	assert.Equal(t, 0.3, cfg.Tools[ToolExplainCode].Temperature)
	assert.Empty(t, cfg.OptimizationGoals)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	t.Setenv(EnvOpenAIAPIBase, "http://localhost:8080/v1/")
	t.Setenv(EnvSearchAPIKey, "search-key")
	t.Setenv(EnvSearchAPIEndpoint, "http://search.local/tools")
	t.Setenv(EnvServerName, "bridge-test")
	t.Setenv(EnvOutputDir, "/tmp/out")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	assert.Equal(t, "sk-test", cfg.Upstream.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Upstream.APIBase, "trailing slash trimmed")
	assert.Equal(t, "search-key", cfg.Search.APIKey)
	assert.Equal(t, "http://search.local/tools", cfg.Search.Endpoint)
	assert.Equal(t, "bridge-test", cfg.Server.Name)
	assert.Equal(t, "/tmp/out", cfg.Client.OutputDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_MergesOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  name: file-server
  enabled_tools: [generate_code, web_search]
upstream:
  api_base: https://llm.example/v1
tools:
  generate_code:
    temperature: 0
  explain_code:
    model: gpt-4o
    max_tokens: 500
optimization_goals: [performance, readability]
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file-server", cfg.Server.Name)
	assert.Equal(t, "https://llm.example/v1", cfg.Upstream.APIBase)
	assert.Equal(t, DefaultSearchEndpoint, cfg.Search.Endpoint, "untouched sections keep defaults")
	assert.Equal(t, ToolPolicy{Model: DefaultModel, Temperature: 0, MaxTokens: 2000}, cfg.Tools[ToolGenerateCode])
	assert.Equal(t, ToolPolicy{Model: "gpt-4o", Temperature: 0.3, MaxTokens: 500}, cfg.Tools[ToolExplainCode])
	assert.Equal(t, 0.3, cfg.Tools[ToolOptimizeCode].Temperature)
	assert.Equal(t, []string{"performance", "readability"}, cfg.OptimizationGoals)

	assert.True(t, cfg.ToolEnabled(ToolWebSearch))
	assert.False(t, cfg.ToolEnabled(ToolExplainCode))
}

func TestLoadFromFile_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvServerName, "from-env")
	cfg, err := LoadFromFile(writeConfig(t, "server:\n  name: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.Name)
}

func TestLoadFromFile_Errors(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestConfig_Validate_Rejects(t *testing.T) {
	clearEnv(t)
	cases := map[string]func(*Config){
		"temperature too high": func(c *Config) { c.Tools[ToolGenerateCode] = ToolPolicy{Model: "m", Temperature: 2.5, MaxTokens: 1} },
		"negative temperature": func(c *Config) { c.Tools[ToolExplainCode] = ToolPolicy{Model: "m", Temperature: -1, MaxTokens: 1} },
		"zero tokens":          func(c *Config) { c.Tools[ToolOptimizeCode] = ToolPolicy{Model: "m", MaxTokens: 0} },
		"unknown tool policy":  func(c *Config) { c.Tools["translate"] = ToolPolicy{Model: "m", MaxTokens: 1} },
		"search policy":        func(c *Config) { c.Tools[ToolWebSearch] = ToolPolicy{Model: "m", MaxTokens: 1} },
		"unknown enabled tool": func(c *Config) { c.Server.EnabledTools = []string{"translate"} },
		"empty api base":       func(c *Config) { c.Upstream.APIBase = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := ExpandPath("~/x.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.yaml"), got)

	got, err = ExpandPath("/abs/x.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/abs/x.yaml", got)
}

func TestPolicyStore(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	cfg.OptimizationGoals = []string{"Performance", " readability "}
	store := NewPolicyStore(cfg)

	assert.Equal(t, 0.2, store.Policy(ToolGenerateCode).Temperature)
	assert.Equal(t, DefaultModel, store.Policy("unknown").Model)
	assert.True(t, store.GoalAllowed("performance"))
	assert.True(t, store.GoalAllowed("READABILITY"))
	assert.False(t, store.GoalAllowed("speed"))

	store.Update(&Config{})
	assert.True(t, store.GoalAllowed("anything"), "empty goal list accepts any goal")
	assert.Equal(t, 0.2, store.Policy(ToolGenerateCode).Temperature, "defaults survive an empty update")
}
