package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittify/orchestrator/internal/orchestration/agents"
)

// fakeInvoker runs a small shell script so tests don't depend on any real
// agent CLI being installed.
type fakeInvoker struct {
	argv      []string
	usesStdin bool
}

func (f *fakeInvoker) AgentID() string { return "fake" }
func (f *fakeInvoker) Command() string { return f.argv[0] }
func (f *fakeInvoker) UsesStdin() bool { return f.usesStdin }
func (f *fakeInvoker) BuildCommand(agents.Role, string, string) []string { return f.argv }
func (f *fakeInvoker) IsInstalled() bool { return true }

func (f *fakeInvoker) ParseOutput(stdout, stderr []byte, exitCode int, duration time.Duration) agents.InvocationResult {
	return agents.InvocationResult{
		Success:  exitCode == 0,
		ExitCode: exitCode,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
	}
}

func writePromptFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("do the thing"), 0o644))
	return path
}

func TestExecutorRunSuccess(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	exec := New(nil)
	result, err := exec.Run(context.Background(), Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{"sh", "-c", "cat > /dev/null; echo ok"}, usesStdin: true},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    5 * time.Second,
		LogPath:    filepath.Join(dir, "WP01-implementation.log"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Contains(t, result.Stdout, "ok")

	logContent, err := os.ReadFile(filepath.Join(dir, "WP01-implementation.log"))
	require.NoError(t, err)
	require.Contains(t, string(logContent), "--- STDOUT ---")
	require.Contains(t, string(logContent), "agent_id=fake")
}

func TestExecutorRunNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	exec := New(nil)
	result, err := exec.Run(context.Background(), Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{"sh", "-c", "cat > /dev/null; exit 3"}, usesStdin: true},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 3, result.ExitCode)
}

func TestExecutorRunTimeoutKillsAndReportsSentinel(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	exec := New(nil)
	result, err := exec.Run(context.Background(), Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{"sh", "-c", "cat > /dev/null; sleep 30"}, usesStdin: true},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    200 * time.Millisecond,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, agents.TimeoutExitCode, result.ExitCode)
	require.Contains(t, result.Stderr, "timeout")
}

func TestExecutorRunContextCancelReportsDistinctSentinelFromTimeout(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	exec := New(nil)
	result, err := exec.Run(ctx, Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{"sh", "-c", "cat > /dev/null; sleep 30"}, usesStdin: true},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    30 * time.Second,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, agents.CancelledExitCode, result.ExitCode)
	require.NotEqual(t, agents.TimeoutExitCode, result.ExitCode)
	require.Contains(t, result.Stderr, "cancelled")
}

func TestExecutorRunSpawnFailureForMissingCommand(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	exec := New(nil)
	_, err := exec.Run(context.Background(), Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{"definitely-not-a-real-binary-xyz"}, usesStdin: false},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    5 * time.Second,
	})
	require.Error(t, err)
}

func TestExecutorRunEmptyArgvErrors(t *testing.T) {
	dir := t.TempDir()
	promptPath := writePromptFile(t, dir)

	exec := New(nil)
	_, err := exec.Run(context.Background(), Request{
		WPID:       "WP01",
		Invoker:    &fakeInvoker{argv: []string{}, usesStdin: false},
		PromptPath: promptPath,
		WorkingDir: dir,
		Role:       agents.RoleImplementation,
		Timeout:    5 * time.Second,
	})
	require.Error(t, err)
}
