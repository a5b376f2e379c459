// Package config loads and validates the orchestrator's agents.yaml (spec §6.1).
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Role is one of the two phases an agent can be assigned to.
type Role string

const (
	RoleImplementation Role = "implementation"
	RoleReview         Role = "review"
)

// FallbackStrategy mirrors monitor.FallbackStrategy; duplicated here (rather
// than imported) so this package has no dependency on the monitor package.
type FallbackStrategy string

const (
	FallbackFail       FallbackStrategy = "fail"
	FallbackSameAgent  FallbackStrategy = "same_agent"
	FallbackNextInList FallbackStrategy = "next_in_list"
)

// AgentConfig is one entry under the `agents` top-level key.
type AgentConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Roles          []Role   `yaml:"roles"`
	Priority       int      `yaml:"priority"`
	MaxConcurrent  int      `yaml:"max_concurrent"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// SingleAgentMode is either a bare bool or a {enabled, agent} record in YAML.
type SingleAgentMode struct {
	Enabled bool   `yaml:"enabled"`
	Agent   string `yaml:"agent"`
}

// UnmarshalYAML accepts either a bare bool or an {enabled, agent} mapping.
func (s *SingleAgentMode) UnmarshalYAML(node *yaml.Node) error {
	var enabled bool
	if err := node.Decode(&enabled); err == nil {
		*s = SingleAgentMode{Enabled: enabled}
		return nil
	}
	type plain SingleAgentMode
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SingleAgentMode(p)
	return nil
}

// Config is the fully parsed, validated agents.yaml.
type Config struct {
	Version           string                 `yaml:"version"`
	Defaults          map[Role][]string      `yaml:"defaults"`
	Agents            map[string]AgentConfig `yaml:"agents"`
	FallbackStrategy  FallbackStrategy       `yaml:"fallback_strategy"`
	MaxRetries        int                    `yaml:"max_retries"`
	SingleAgentMode   SingleAgentMode        `yaml:"single_agent_mode"`
	GlobalConcurrency int                    `yaml:"global_concurrency"`
	GlobalTimeout     int                    `yaml:"global_timeout"`
}

// Validate enforces the rules in spec §6.1: every id referenced by defaults
// must exist in agents, an enabled single-agent target must be a configured
// and enabled agent, max_retries is non-negative, global_concurrency is
// positive.
func (c *Config) Validate() error {
	for role, ids := range c.Defaults {
		for _, id := range ids {
			if _, ok := c.Agents[id]; !ok {
				return fmt.Errorf("config: defaults[%s] references unknown agent %q", role, id)
			}
		}
	}
	if c.SingleAgentMode.Enabled {
		agent, ok := c.Agents[c.SingleAgentMode.Agent]
		if !ok {
			return fmt.Errorf("config: single_agent_mode.agent %q is not configured", c.SingleAgentMode.Agent)
		}
		if !agent.Enabled {
			return fmt.Errorf("config: single_agent_mode.agent %q is configured but not enabled", c.SingleAgentMode.Agent)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.GlobalConcurrency < 1 {
		return fmt.Errorf("config: global_concurrency must be >= 1, got %d", c.GlobalConcurrency)
	}
	switch c.FallbackStrategy {
	case FallbackFail, FallbackSameAgent, FallbackNextInList, "":
	default:
		return fmt.Errorf("config: unrecognized fallback_strategy %q", c.FallbackStrategy)
	}
	return nil
}

// HasRole reports whether agentID declares role among its roles.
func (c *Config) HasRole(agentID string, role Role) bool {
	agent, ok := c.Agents[agentID]
	if !ok {
		return false
	}
	for _, r := range agent.Roles {
		if r == role {
			return true
		}
	}
	return false
}
