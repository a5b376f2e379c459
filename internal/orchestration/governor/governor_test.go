package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	g := New(2)
	g.RegisterAgent("claude-code", 1)

	release, err := g.Acquire(context.Background(), "claude-code")
	require.NoError(t, err)
	require.True(t, g.WouldBlock("claude-code"))
	release()
	require.False(t, g.WouldBlock("claude-code"))
}

func TestAcquireUnregisteredAgentErrors(t *testing.T) {
	g := New(2)
	_, err := g.Acquire(context.Background(), "unknown")
	require.Error(t, err)
}

func TestGlobalCapacityGatesAcrossAgents(t *testing.T) {
	g := New(1)
	g.RegisterAgent("a", 5)
	g.RegisterAgent("b", 5)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, g.WouldBlock("b"))
	release()
	require.False(t, g.WouldBlock("b"))
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	g := New(1)
	g.RegisterAgent("a", 1)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, "a")
	require.Error(t, err)
}

func TestTryAcquireSucceedsWhenCapacityFree(t *testing.T) {
	g := New(2)
	g.RegisterAgent("a", 1)

	release, ok := g.TryAcquire("a")
	require.True(t, ok)
	require.True(t, g.WouldBlock("a"))
	release()
}

func TestTryAcquireFailsWithoutBlockingWhenAgentFull(t *testing.T) {
	g := New(2)
	g.RegisterAgent("a", 1)

	release, ok := g.TryAcquire("a")
	require.True(t, ok)
	defer release()

	_, ok = g.TryAcquire("a")
	require.False(t, ok)
}

func TestTryAcquireRollsBackGlobalWhenAgentSlotUnavailable(t *testing.T) {
	g := New(2)
	g.RegisterAgent("a", 1)
	g.RegisterAgent("b", 1)

	releaseA, ok := g.TryAcquire("a")
	require.True(t, ok)
	defer releaseA()

	_, ok = g.TryAcquire("a")
	require.False(t, ok, "a should fail because its only agent slot is held")

	// Global slot must have been rolled back to exactly the state before
	// this failed attempt, not leaked: one of two global slots is still free.
	require.False(t, g.WouldBlock("b"))
	releaseB, ok := g.TryAcquire("b")
	require.True(t, ok)
	releaseB()
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New(1)
	g.RegisterAgent("a", 1)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release()
	require.False(t, g.WouldBlock("a"))
}
