package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynthesizeEnablesOnlyInstalledAgents(t *testing.T) {
	cfg := Synthesize([]string{"claude-code", "gemini"})
	require.True(t, cfg.Agents["claude-code"].Enabled)
	require.True(t, cfg.Agents["gemini"].Enabled)
	require.False(t, cfg.Agents["codex"].Enabled)
	require.NoError(t, cfg.Validate())
}

func TestSynthesizePreservesFixedPriorityOrder(t *testing.T) {
	cfg := Synthesize([]string{"cursor", "claude-code", "codex"})
	require.Equal(t, []string{"claude-code", "codex"}, cfg.Defaults[RoleImplementation][:2])
}

func TestSynthesizeEntersSingleAgentModeWithOneInstalledAgent(t *testing.T) {
	cfg := Synthesize([]string{"claude-code"})
	require.True(t, cfg.SingleAgentMode.Enabled)
	require.Equal(t, "claude-code", cfg.SingleAgentMode.Agent)
}

func TestSynthesizeWithNoInstalledAgentsIsStillValid(t *testing.T) {
	cfg := Synthesize(nil)
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.SingleAgentMode.Enabled)
}
