// file: internal/config/policy.go
package config

import (
	"strings"
	"sync"
)

// PolicyStore holds the live per-tool policy and optimization goals.
// Handlers read it on every call; the Watcher swaps it on reload.
type PolicyStore struct {
	mu       sync.RWMutex
	policies map[string]ToolPolicy
	goals    []string
}

// NewPolicyStore creates a store seeded from cfg.
func NewPolicyStore(cfg *Config) *PolicyStore {
	s := &PolicyStore{}
	s.Update(cfg)
	return s
}

// Update replaces the policies and goals with those of cfg.
func (s *PolicyStore) Update(cfg *Config) {
	policies := DefaultPolicies()
	var goals []string
	if cfg != nil {
		for name, p := range cfg.Tools {
			policies[name] = p
		}
		goals = append(goals, cfg.OptimizationGoals...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = policies
	s.goals = goals
}

// Policy returns the policy for tool, falling back to the defaults.
func (s *PolicyStore) Policy(tool string) ToolPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.policies[tool]; ok {
		return p
	}
	return ToolPolicy{Model: DefaultModel, Temperature: 0.3, MaxTokens: DefaultMaxTokens}
}

// Goals returns a copy of the configured optimization goals.
func (s *PolicyStore) Goals() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.goals...)
}

// GoalAllowed reports whether goal is accepted. The match ignores case and
// surrounding space; an empty goal list accepts everything.
func (s *PolicyStore) GoalAllowed(goal string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.goals) == 0 {
		return true
	}
	goal = strings.TrimSpace(goal)
	for _, g := range s.goals {
		if strings.EqualFold(strings.TrimSpace(g), goal) {
			return true
		}
	}
	return false
}
