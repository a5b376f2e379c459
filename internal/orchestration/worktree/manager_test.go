package worktree

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)) *Manager {
	t.Helper()
	m := New("/repo")
	m.runner = runner
	return m
}

func TestEnsureWithoutBaseInvokesImplementWithWPIDOnly(t *testing.T) {
	var gotDir, gotName string
	var gotArgs []string
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return nil, nil
	})

	path, err := m.Ensure(context.Background(), "WP01", "")
	require.NoError(t, err)
	require.Equal(t, "/repo", gotDir)
	require.Equal(t, "implement", gotName)
	require.Equal(t, []string{"WP01"}, gotArgs)
	require.Equal(t, filepath.Join("/repo", ".kittify", "worktrees", "WP01"), path)
}

func TestEnsureWithBaseAppendsBaseFlag(t *testing.T) {
	var gotArgs []string
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	})

	_, err := m.Ensure(context.Background(), "WP02", "WP01")
	require.NoError(t, err)
	require.Equal(t, []string{"WP02", "--base", "WP01"}, gotArgs)
}

func TestEnsureReturnsWrappedErrorOnRunnerFailure(t *testing.T) {
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("fatal: branch exists"), errors.New("exit status 1")
	})

	_, err := m.Ensure(context.Background(), "WP01", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "WP01")
	require.Contains(t, err.Error(), "branch exists")
}

func TestPathIsDeterministicAndDoesNotInvokeRunner(t *testing.T) {
	called := false
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	})

	path := m.Path("WP03")
	require.Equal(t, filepath.Join("/repo", ".kittify", "worktrees", "WP03"), path)
	require.False(t, called)
}

func TestCleanupInvokesRemoveFlag(t *testing.T) {
	var gotArgs []string
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	})

	m.Cleanup(context.Background(), "WP01")
	require.Equal(t, []string{"WP01", "--remove"}, gotArgs)
}

func TestCleanupDoesNotPanicOnRunnerFailure(t *testing.T) {
	m := newTestManager(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return nil, errors.New("worktree busy")
	})

	require.NotPanics(t, func() {
		m.Cleanup(context.Background(), "WP01")
	})
}
