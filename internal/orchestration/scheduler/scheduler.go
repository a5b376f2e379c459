// Package scheduler is the core engine (spec §4.7): a single-threaded
// cooperative loop that assigns ready WPs to agents, spawns their two
// phases, and drives the run to completion, pause, or failure.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kittify/orchestrator/internal/logging"
	"github.com/kittify/orchestrator/internal/orchestration/agents"
	"github.com/kittify/orchestrator/internal/orchestration/config"
	"github.com/kittify/orchestrator/internal/orchestration/depgraph"
	"github.com/kittify/orchestrator/internal/orchestration/executor"
	"github.com/kittify/orchestrator/internal/orchestration/governor"
	"github.com/kittify/orchestrator/internal/orchestration/lanes"
	"github.com/kittify/orchestrator/internal/orchestration/monitor"
	"github.com/kittify/orchestrator/internal/orchestration/state"
	"github.com/kittify/orchestrator/internal/orchestration/worktree"
)

// cooldownSeconds is the delay before a single-agent-mode review runs on
// the same agent that just implemented the WP (§4.6). It is fixed at 30
// seconds and is not read from configuration.
const cooldownSeconds = 30

// Scheduler drives one run's WPs from ready to terminal state.
type Scheduler struct {
	graph    *depgraph.Graph
	run      *state.OrchestrationRun
	store    *state.Store
	cfg      *config.Config
	gov      *governor.Governor
	registry *agents.Registry
	exec     *executor.Executor
	mon      *monitor.Monitor
	lanes    *lanes.Notifier
	wt       *worktree.Manager
	metrics  *Metrics
	logger   logging.Logger
	logDir   string

	mu       sync.Mutex
	inFlight map[string]bool

	completions chan struct{}
}

// Deps bundles the Scheduler's collaborators, all already constructed.
type Deps struct {
	Graph    *depgraph.Graph
	Run      *state.OrchestrationRun
	Store    *state.Store
	Config   *config.Config
	Registry *agents.Registry
	Executor *executor.Executor
	Monitor  *monitor.Monitor
	Lanes    *lanes.Notifier
	Worktree *worktree.Manager
	Metrics  *Metrics
	LogDir   string
}

// New builds a Scheduler and registers every configured agent's capacity
// with a fresh Governor.
func New(d Deps) *Scheduler {
	gov := governor.New(d.Config.GlobalConcurrency)
	for id, agentCfg := range d.Config.Agents {
		if agentCfg.Enabled {
			gov.RegisterAgent(id, agentCfg.MaxConcurrent)
		}
	}
	return &Scheduler{
		graph:       d.Graph,
		run:         d.Run,
		store:       d.Store,
		cfg:         d.Config,
		gov:         gov,
		registry:    d.Registry,
		exec:        d.Executor,
		mon:         d.Monitor,
		lanes:       d.Lanes,
		wt:          d.Worktree,
		metrics:     d.Metrics,
		logger:      logging.NewComponentLogger("scheduler"),
		logDir:      d.LogDir,
		inFlight:    make(map[string]bool),
		completions: make(chan struct{}, 1),
	}
}

// Run executes the scheduler loop to completion, pause, or failure. It
// returns when the run reaches a terminal or paused status, or ctx is
// cancelled (abort).
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			s.handleCancellation(&wg)
			return ctx.Err()
		}

		ready := s.readyMinusInFlight()
		for _, wpID := range ready {
			s.tryLaunch(ctx, wpID, &wg)
		}

		s.mu.Lock()
		inFlightCount := len(s.inFlight)
		s.mu.Unlock()
		if inFlightCount > s.run.ParallelPeak {
			s.run.ParallelPeak = inFlightCount
			s.metrics.SetParallelPeak(inFlightCount)
		}

		if s.isTerminal() {
			s.run.Status = state.RunCompleted
			now := stamp()
			s.run.CompletedAt = &now
			return s.persist()
		}

		if inFlightCount == 0 {
			if len(ready) == 0 {
				s.logger.Error("deadlock: no WPs in flight and none ready; upstream failures block all forward progress")
				s.run.Status = state.RunFailed
				now := stamp()
				s.run.CompletedAt = &now
				return s.persist()
			}
			// Every ready WP failed to find an available agent this tick;
			// avoid a tight busy loop while waiting for a slot to free up.
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				continue
			}
			continue
		}

		select {
		case <-s.completions:
		case <-ctx.Done():
			continue
		}

		if err := s.persist(); err != nil {
			return err
		}

		if s.run.Status == state.RunPaused {
			return nil
		}
	}
}

func (s *Scheduler) handleCancellation(wg *sync.WaitGroup) {
	wg.Wait()
	s.run.Status = state.RunFailed
	now := stamp()
	s.run.CompletedAt = &now
	_ = s.persist()
}

func (s *Scheduler) isTerminal() bool {
	for _, wp := range s.run.WorkPackages {
		if wp.Status != state.WPCompleted && wp.Status != state.WPFailed {
			return false
		}
	}
	return true
}

func (s *Scheduler) readyMinusInFlight() []string {
	ready := depgraph.Ready(s.graph, s.run)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ready[:0:0]
	for _, id := range ready {
		if !s.inFlight[id] {
			out = append(out, id)
		}
	}
	return out
}

// pickAgent implements §4.7's assignment policy: first enabled agent in the
// role's preference list, declaring the role, not excluded, with a free
// slot at both levels.
func (s *Scheduler) pickAgent(role config.Role, exclude string) string {
	for _, id := range s.cfg.Defaults[role] {
		if id == exclude {
			continue
		}
		agentCfg, ok := s.cfg.Agents[id]
		if !ok || !agentCfg.Enabled {
			continue
		}
		if !s.cfg.HasRole(id, role) {
			continue
		}
		if s.gov.WouldBlock(id) {
			continue
		}
		return id
	}
	return ""
}

func (s *Scheduler) tryLaunch(ctx context.Context, wpID string, wg *sync.WaitGroup) {
	implAgent := s.pickAgent(config.RoleImplementation, "")
	if implAgent == "" {
		return
	}
	reviewAgent := s.pickAgent(config.RoleReview, implAgent)
	singleAgentFallback := reviewAgent == ""

	release, ok := s.gov.TryAcquire(implAgent)
	if !ok {
		return
	}

	s.mu.Lock()
	s.inFlight[wpID] = true
	s.mu.Unlock()

	wp := s.run.WorkPackages[wpID]
	wp.Status = state.WPImplementation
	started := stamp()
	wp.Implementation.StartedAt = &started
	wp.Implementation.AgentID = implAgent
	if err := s.persist(); err != nil {
		s.logger.Error("persist before launch of %s: %v", wpID, err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer release()
		defer s.notifyCompletion()
		s.runWP(ctx, wpID, implAgent, reviewAgent, singleAgentFallback)
	}()
}

func (s *Scheduler) notifyCompletion() {
	select {
	case s.completions <- struct{}{}:
	default:
	}
}

// runWP drives a single WP's two phases to completion or failure. It is the
// body of the "cooperative task" described in §4.7 step 2f.
func (s *Scheduler) runWP(ctx context.Context, wpID, implAgent, reviewAgent string, singleAgentFallback bool) {
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, wpID)
		s.mu.Unlock()
	}()

	wp := s.run.WorkPackages[wpID]
	node := s.graph.Get(wpID)

	base, extras := depgraph.BaseDependency(node)
	if len(extras) > 0 {
		wp.ExtraDependencies = extras
		s.logger.Warn("WP %s has multiple dependencies; base=%s, extras=%v require manual integration", wpID, base, extras)
	}
	wp.BaseDependency = base

	workDir, err := s.wt.Ensure(ctx, wpID, base)
	if err != nil {
		s.fail(wpID, state.PhaseImplementation, implAgent, fmt.Sprintf("worktree setup failed: %v", err))
		return
	}
	wp.WorktreePath = workDir

	s.lanes.Notify(ctx, wpID, lanes.LaneDoing, "implementation started on "+implAgent)

	implResult := s.runPhase(ctx, wpID, workDir, node.PromptPath, config.RoleImplementation, implAgent, "")
	if implResult.Escalated {
		s.fail(wpID, state.PhaseImplementation, implResult.AgentUsed, implResult.EscalationMsg)
		return
	}
	s.recordPhaseOutcome(wp, state.PhaseImplementation, implResult)

	if singleAgentFallback {
		s.logger.Info("WP %s falling back to single-agent review by %s after a %ds cooldown", wpID, implAgent, cooldownSeconds)
		select {
		case <-time.After(cooldownSeconds * time.Second):
		case <-ctx.Done():
			s.fail(wpID, state.PhaseReview, implAgent, "cancelled during cooldown")
			return
		}
		reviewAgent = implAgent
	}
	if reviewAgent == "" {
		s.fail(wpID, state.PhaseReview, "", "no review agent available")
		return
	}

	s.lanes.Notify(ctx, wpID, lanes.LaneForReview, "implementation complete, awaiting review by "+reviewAgent)

	excludeFromReview := implAgent
	if singleAgentFallback {
		excludeFromReview = ""
	}
	reviewResult := s.runPhase(ctx, wpID, workDir, node.PromptPath, config.RoleReview, reviewAgent, excludeFromReview)
	if reviewResult.Escalated {
		s.fail(wpID, state.PhaseReview, reviewResult.AgentUsed, reviewResult.EscalationMsg)
		return
	}
	s.recordPhaseOutcome(wp, state.PhaseReview, reviewResult)

	s.lanes.Notify(ctx, wpID, lanes.LaneDone, "review approved by "+reviewResult.AgentUsed)

	s.mu.Lock()
	wp.Status = state.WPCompleted
	s.run.WPsCompleted++
	s.mu.Unlock()
}

// runPhase wraps Monitor.RunPhase with the concrete Invoke/PickFallback
// closures bound to this scheduler's Executor, Registry, and Governor.
func (s *Scheduler) runPhase(ctx context.Context, wpID, workDir, promptPath string, role config.Role, agentID, excludeFromFallback string) monitor.PhaseResult {
	preference := append([]string{}, s.cfg.Defaults[role]...)

	invoke := func(ctx context.Context, id string) (agents.InvocationResult, error) {
		inv := s.registry.Get(id)
		if inv == nil {
			return agents.InvocationResult{}, fmt.Errorf("scheduler: agent %q is not a known invoker", id)
		}
		var ar agents.Role
		if role == config.RoleImplementation {
			ar = agents.RoleImplementation
		} else {
			ar = agents.RoleReview
		}
		agentCfg := s.cfg.Agents[id]
		logPath := filepath.Join(s.logDir, fmt.Sprintf("%s-%s.log", wpID, role))
		result, err := s.exec.Run(ctx, executor.Request{
			WPID:       wpID,
			Invoker:    inv,
			PromptPath: promptPath,
			WorkingDir: workDir,
			Role:       ar,
			Timeout:    time.Duration(agentCfg.TimeoutSeconds) * time.Second,
			LogPath:    logPath,
		})
		status := "success"
		if !result.Success {
			status = "failure"
		}
		s.metrics.ObserveInvocation(id, string(role), status, result.DurationSeconds)
		return result, err
	}

	pick := func(pref []string, tried map[string]bool, exclude string) string {
		for _, id := range pref {
			if tried[id] || id == exclude {
				continue
			}
			agentCfg, ok := s.cfg.Agents[id]
			if !ok || !agentCfg.Enabled || !s.cfg.HasRole(id, role) {
				continue
			}
			if s.gov.WouldBlock(id) {
				continue
			}
			return id
		}
		return ""
	}

	policy := monitor.Policy{
		MaxRetries:       s.cfg.MaxRetries,
		FallbackStrategy: monitor.FallbackStrategy(s.cfg.FallbackStrategy),
	}
	result := s.mon.RunPhase(ctx, agentID, preference, excludeFromFallback, policy, invoke, pick)
	for i := 0; i < result.Retries; i++ {
		s.metrics.ObserveRetry(agentID, string(role))
	}
	if result.Escalated {
		s.metrics.ObserveEscalation(result.AgentUsed, string(role))
	}
	return result
}

func (s *Scheduler) recordPhaseOutcome(wp *state.WPExecution, phase state.Phase, result monitor.PhaseResult) {
	now := stamp()
	exitCode := result.Result.ExitCode
	var target *state.PhaseExecution
	if phase == state.PhaseImplementation {
		target = &wp.Implementation
	} else {
		target = &wp.Review
	}
	target.AgentID = result.AgentUsed
	target.CompletedAt = &now
	target.ExitCode = &exitCode
	target.Retries = result.Retries
	wp.FallbackAgentsTried = append(wp.FallbackAgentsTried, result.TriedAgents...)
}

func (s *Scheduler) fail(wpID string, phase state.Phase, agentID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wp := s.run.WorkPackages[wpID]
	wp.Status = state.WPFailed
	wp.LastError = reason
	s.run.WPsFailed++
	s.run.Status = state.RunPaused
	s.logger.Error(
		"WP %s failed in %s phase (agent=%s): %s; log=%s; continuation options: resume after manual fix, skip the WP, abort",
		wpID, phase, agentID, reason, wp.LogFile,
	)
}

func (s *Scheduler) persist() error {
	return s.store.Save(s.run)
}

func stamp() time.Time { return time.Now().UTC() }

// SortedWPIDs is a small helper for diagnostics callers (lifecycle.Status,
// cmd/orchestrate) that want a deterministic WP listing.
func SortedWPIDs(m map[string]*state.WPExecution) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
