// Package governor implements the two-level cooperative concurrency cap
// described in spec §4.3: one global semaphore and one per-agent semaphore,
// always acquired global-then-agent and released in reverse order.
package governor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Governor caps the number of concurrently in-flight agent invocations,
// both overall and per agent.
type Governor struct {
	global *semaphore.Weighted

	mu    sync.Mutex
	perAg map[string]*semaphore.Weighted
	caps  map[string]int64
}

// New returns a Governor with the given global capacity. Per-agent
// capacities are registered lazily via RegisterAgent.
func New(globalConcurrency int) *Governor {
	return &Governor{
		global: semaphore.NewWeighted(int64(globalConcurrency)),
		perAg:  make(map[string]*semaphore.Weighted),
		caps:   make(map[string]int64),
	}
}

// RegisterAgent sets (or resets) the capacity for agentID. Must be called
// before any Acquire for that agent; safe to call multiple times during
// config load.
func (g *Governor) RegisterAgent(agentID string, maxConcurrent int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.perAg[agentID] = semaphore.NewWeighted(int64(maxConcurrent))
	g.caps[agentID] = int64(maxConcurrent)
}

func (g *Governor) agentSem(agentID string) (*semaphore.Weighted, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sem, ok := g.perAg[agentID]
	if !ok {
		return nil, fmt.Errorf("governor: agent %q not registered", agentID)
	}
	return sem, nil
}

// Release is returned by Acquire; calling it releases both semaphores in
// the reverse (agent-then-global) order.
type Release func()

// Acquire blocks until both the global slot and the agentID slot are free,
// in that fixed order, or ctx is done. The returned Release must be called
// exactly once on every exit path.
func (g *Governor) Acquire(ctx context.Context, agentID string) (Release, error) {
	agentSem, err := g.agentSem(agentID)
	if err != nil {
		return nil, err
	}

	if err := g.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("governor: global acquire: %w", err)
	}
	if err := agentSem.Acquire(ctx, 1); err != nil {
		g.global.Release(1)
		return nil, fmt.Errorf("governor: agent %q acquire: %w", agentID, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			agentSem.Release(1)
			g.global.Release(1)
		})
	}
	return release, nil
}

// TryAcquire attempts to reserve both slots for agentID without blocking.
// On success it returns a Release and true; on failure (either level full)
// it rolls back any partial acquisition and returns false. This is the
// scheduler's real reservation call — WouldBlock is only an advisory
// pre-check to avoid calling TryAcquire on an agent that is obviously full.
func (g *Governor) TryAcquire(agentID string) (Release, bool) {
	agentSem, err := g.agentSem(agentID)
	if err != nil {
		return nil, false
	}

	if !g.global.TryAcquire(1) {
		return nil, false
	}
	if !agentSem.TryAcquire(1) {
		g.global.Release(1)
		return nil, false
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			agentSem.Release(1)
			g.global.Release(1)
		})
	}
	return release, true
}

// WouldBlock reports whether Acquire(agentID) would currently block,
// without actually acquiring anything. Used by the scheduler's
// non-blocking capacity check before it commits to an assignment.
func (g *Governor) WouldBlock(agentID string) bool {
	agentSem, err := g.agentSem(agentID)
	if err != nil {
		return true
	}

	if !g.global.TryAcquire(1) {
		return true
	}
	if !agentSem.TryAcquire(1) {
		g.global.Release(1)
		return true
	}
	// Both acquired just to probe; release immediately. There is an
	// unavoidable TOCTOU gap between this check and the caller's real
	// Acquire, which is why Acquire itself is the authority and this is
	// only an optimization to avoid queuing on obviously-full agents.
	agentSem.Release(1)
	g.global.Release(1)
	return false
}
