package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the location spec §6.1 mandates, relative to repoRoot.
const DefaultConfigPath = ".kittify/agents.yaml"

// envPrefix namespaces the viper overlay so it never collides with an
// agent CLI's own environment variables (e.g. ANTHROPIC_API_KEY).
const envPrefix = "KITTIFY_ORCHESTRATOR"

// Load reads <repoRoot>/.kittify/agents.yaml, overlays environment
// variables, and validates the result. If the file is absent, a default
// configuration is synthesized from the set of installed agent ids (§6.1).
func Load(repoRoot string, installed []string) (*Config, error) {
	path := repoRoot + "/" + DefaultConfigPath

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Synthesize(installed)
			if verr := cfg.Validate(); verr != nil {
				return nil, verr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverlay(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverlay lets operators override a handful of run-level knobs
// without editing agents.yaml, e.g. KITTIFY_ORCHESTRATOR_GLOBAL_CONCURRENCY=4.
// Per-agent settings are deliberately not overridable this way: they are
// numerous and keyed by agent id, a poor fit for flat env vars.
func applyEnvOverlay(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{"global_concurrency", "global_timeout", "max_retries", "fallback_strategy"} {
		_ = v.BindEnv(key)
	}

	if v.IsSet("global_concurrency") {
		cfg.GlobalConcurrency = v.GetInt("global_concurrency")
	}
	if v.IsSet("global_timeout") {
		cfg.GlobalTimeout = v.GetInt("global_timeout")
	}
	if v.IsSet("max_retries") {
		cfg.MaxRetries = v.GetInt("max_retries")
	}
	if v.IsSet("fallback_strategy") {
		cfg.FallbackStrategy = FallbackStrategy(v.GetString("fallback_strategy"))
	}
}
