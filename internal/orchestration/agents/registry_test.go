package agents

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryKnowsAllNineAgents(t *testing.T) {
	r := NewRegistry()
	require.Len(t, r.Known(), 9)
	for _, id := range DefaultPriority {
		require.NotNil(t, r.Get(id), "missing invoker for %s", id)
	}
}

func TestRegistryGetUnknownAgentReturnsNil(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Get("not-a-real-agent"))
}

func TestBuildCommandUsesStdinForAllDefaults(t *testing.T) {
	r := NewRegistry()
	for _, id := range DefaultPriority {
		inv := r.Get(id)
		require.True(t, inv.UsesStdin(), "%s expected to use stdin for prompt delivery", id)
		argv := inv.BuildCommand(RoleImplementation, "/tmp/wt", "/tmp/wt/prompt.md")
		require.NotEmpty(t, argv)
	}
}

func TestCursorWrapsWithTimeoutCommand(t *testing.T) {
	r := NewRegistry()
	argv := r.Get("cursor").BuildCommand(RoleImplementation, "/tmp/wt", "/tmp/wt/prompt.md")
	require.Equal(t, "timeout", argv[0])
}

func TestDetectInstalledOnlyReturnsAgentsOnPath(t *testing.T) {
	r := NewRegistry()
	// In a test environment none of these CLIs are expected on PATH.
	installed := r.DetectInstalled()
	for _, id := range installed {
		require.Contains(t, DefaultPriority, id)
		_, err := exec.LookPath(r.Get(id).Command())
		require.NoError(t, err, "%s reported installed but %s is not on PATH", id, r.Get(id).Command())
	}
}
