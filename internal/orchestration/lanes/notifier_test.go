package lanes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyInvokesExpectedArgv(t *testing.T) {
	var gotDir string
	var gotName string
	var gotArgs []string

	n := New("/repo")
	n.runner = func(ctx context.Context, dir, name string, args ...string) error {
		gotDir = dir
		gotName = name
		gotArgs = args
		return nil
	}

	n.Notify(context.Background(), "WP03", LaneForReview, "implementation complete")

	require.Equal(t, "/repo", gotDir)
	require.Equal(t, "move-task", gotName)
	require.Equal(t, []string{"WP03", "--to", "for_review", "--note", "implementation complete"}, gotArgs)
}

func TestNotifyDoesNotPanicOrBlockOnRunnerFailure(t *testing.T) {
	n := New("/repo")
	called := false
	n.runner = func(ctx context.Context, dir, name string, args ...string) error {
		called = true
		return errors.New("move-task: command not found")
	}

	require.NotPanics(t, func() {
		n.Notify(context.Background(), "WP03", LaneDone, "all review agents approved")
	})
	require.True(t, called)
}

func TestNotifyPassesThroughAllLanes(t *testing.T) {
	n := New("/repo")
	var seenLanes []string
	n.runner = func(ctx context.Context, dir, name string, args ...string) error {
		seenLanes = append(seenLanes, args[2])
		return nil
	}

	for _, lane := range []Lane{LanePlanned, LaneDoing, LaneForReview, LaneDone} {
		n.Notify(context.Background(), "WP01", lane, "")
	}

	require.Equal(t, []string{"planned", "doing", "for_review", "done"}, seenLanes)
}
