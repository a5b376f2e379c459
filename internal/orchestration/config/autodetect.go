package config

// fixedPriority is the priority list spec §6.1 mandates when agents.yaml is
// absent and a default configuration must be synthesized from whatever
// agent CLIs are actually installed.
var fixedPriority = []string{
	"claude-code", "codex", "copilot", "gemini", "qwen",
	"opencode", "kilocode", "augment", "cursor",
}

const (
	defaultTimeoutSeconds = 600
	defaultMaxConcurrent  = 2
)

// Synthesize builds a Config from the set of agent ids actually found on
// PATH (as reported by agents.Registry.DetectInstalled), following the
// fixed priority list. Cursor is always wrapped with an external timeout
// command by its Invoker, independent of this config.
func Synthesize(installed []string) *Config {
	installedSet := make(map[string]bool, len(installed))
	for _, id := range installed {
		installedSet[id] = true
	}

	cfg := &Config{
		Version:           "1",
		Defaults:          map[Role][]string{RoleImplementation: {}, RoleReview: {}},
		Agents:            map[string]AgentConfig{},
		FallbackStrategy:  FallbackNextInList,
		MaxRetries:        2,
		GlobalConcurrency: 4,
		GlobalTimeout:     3600,
	}

	priority := 0
	for _, id := range fixedPriority {
		priority++
		enabled := installedSet[id]
		cfg.Agents[id] = AgentConfig{
			Enabled:        enabled,
			Roles:          []Role{RoleImplementation, RoleReview},
			Priority:       priority,
			MaxConcurrent:  defaultMaxConcurrent,
			TimeoutSeconds: defaultTimeoutSeconds,
		}
		if enabled {
			cfg.Defaults[RoleImplementation] = append(cfg.Defaults[RoleImplementation], id)
			cfg.Defaults[RoleReview] = append(cfg.Defaults[RoleReview], id)
		}
	}

	if len(cfg.Defaults[RoleImplementation]) == 1 {
		only := cfg.Defaults[RoleImplementation][0]
		cfg.SingleAgentMode = SingleAgentMode{Enabled: true, Agent: only}
	}

	return cfg
}
