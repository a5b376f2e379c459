// Package lifecycle implements the orchestrator's public entry points
// (spec §4.9): start, status, resume, abort.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kittify/orchestrator/internal/logging"
	"github.com/kittify/orchestrator/internal/orchestration/agents"
	"github.com/kittify/orchestrator/internal/orchestration/config"
	"github.com/kittify/orchestrator/internal/orchestration/depgraph"
	"github.com/kittify/orchestrator/internal/orchestration/executor"
	"github.com/kittify/orchestrator/internal/orchestration/lanes"
	"github.com/kittify/orchestrator/internal/orchestration/monitor"
	"github.com/kittify/orchestrator/internal/orchestration/scheduler"
	"github.com/kittify/orchestrator/internal/orchestration/state"
	"github.com/kittify/orchestrator/internal/orchestration/worktree"
)

// Runner owns a repository's orchestration lifecycle.
type Runner struct {
	repoRoot string
	store    *state.Store
	registry *agents.Registry
	logger   logging.Logger
	tracer   executor.Tracer
	metrics  *scheduler.Metrics

	// cancelActive holds an in-process scheduler's cancel func while a run is
	// active in this same process, so Abort can request cooperative
	// cancellation rather than only flipping the on-disk status.
	cancelActive context.CancelFunc
}

// New returns a Runner rooted at repoRoot.
func New(repoRoot string, tracer executor.Tracer, metrics *scheduler.Metrics) *Runner {
	return &Runner{
		repoRoot: repoRoot,
		store:    state.New(repoRoot),
		registry: agents.NewRegistry(),
		logger:   logging.NewComponentLogger("lifecycle"),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Start begins a new run for featureSlug. It is synchronous: it returns
// once the scheduler loop exits (completed, paused, or failed).
func (r *Runner) Start(ctx context.Context, featureSlug string) error {
	active, err := r.store.HasActive()
	if err != nil {
		return fmt.Errorf("lifecycle: check active run: %w", err)
	}
	if active {
		return fmt.Errorf("lifecycle: a run is already active; resume or abort it first")
	}

	tasksDir := filepath.Join(r.repoRoot, "features", featureSlug, "tasks")
	graph, warnings, err := depgraph.Build(tasksDir)
	if err != nil {
		return fmt.Errorf("lifecycle: build dependency graph: %w", err)
	}
	for _, w := range warnings {
		r.logger.Warn("%s", w)
	}
	if err := depgraph.Validate(graph); err != nil {
		return fmt.Errorf("lifecycle: invalid dependency graph: %w", err)
	}

	installed := r.registry.DetectInstalled()
	cfg, err := config.Load(r.repoRoot, installed)
	if err != nil {
		return fmt.Errorf("lifecycle: load config: %w", err)
	}
	if err := requireCoverage(cfg, installed); err != nil {
		return err
	}

	run := &state.OrchestrationRun{
		RunID:             uuid.NewString(),
		FeatureSlug:       featureSlug,
		StartedAt:         time.Now().UTC(),
		Status:            state.RunRunning,
		ConfigHash:        hashConfig(cfg),
		ConcurrencyLimit:  cfg.GlobalConcurrency,
		WorkPackages:      make(map[string]*state.WPExecution),
	}
	for _, id := range graph.All() {
		run.WorkPackages[id] = &state.WPExecution{WPID: id, Status: state.WPPending}
	}
	run.WPsTotal = len(run.WorkPackages)

	if err := r.store.Save(run); err != nil {
		return fmt.Errorf("lifecycle: persist initial state: %w", err)
	}

	return r.enterLoop(ctx, graph, run, cfg)
}

// Status reports a point-in-time summary read from disk.
type Status struct {
	RunID        string
	FeatureSlug  string
	Status       state.RunStatus
	WPsTotal     int
	WPsCompleted int
	WPsFailed    int
	InFlight     []InFlightWP
	Pending      []string
	Completed    []string
	Failed       []string
}

// InFlightWP describes a single in-progress WP for the status report.
type InFlightWP struct {
	WPID    string
	Phase   state.Phase
	AgentID string
	Elapsed time.Duration
}

// Status reads the current state file and summarizes it. Returns
// state.ErrNoActiveRun if no run has ever started (or it was cleared).
func (r *Runner) Status() (*Status, error) {
	run, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	out := &Status{
		RunID:        run.RunID,
		FeatureSlug:  run.FeatureSlug,
		Status:       run.Status,
		WPsTotal:     run.WPsTotal,
		WPsCompleted: run.WPsCompleted,
		WPsFailed:    run.WPsFailed,
	}
	now := time.Now().UTC()
	for _, id := range scheduler.SortedWPIDs(run.WorkPackages) {
		wp := run.WorkPackages[id]
		switch wp.Status {
		case state.WPCompleted:
			out.Completed = append(out.Completed, id)
		case state.WPFailed:
			out.Failed = append(out.Failed, id)
		case state.WPPending, state.WPReady:
			out.Pending = append(out.Pending, id)
		case state.WPImplementation, state.WPReview:
			phase := state.PhaseImplementation
			started := wp.Implementation.StartedAt
			agentID := wp.Implementation.AgentID
			if wp.Status == state.WPReview {
				phase = state.PhaseReview
				started = wp.Review.StartedAt
				agentID = wp.Review.AgentID
			}
			elapsed := time.Duration(0)
			if started != nil {
				elapsed = now.Sub(*started)
			}
			out.InFlight = append(out.InFlight, InFlightWP{WPID: id, Phase: phase, AgentID: agentID, Elapsed: elapsed})
		}
	}
	return out, nil
}

// Resume re-enters the scheduler loop for a paused run. WPs that were
// mid-phase when the previous invocation terminated are reset to pending
// so they re-enter via depgraph.Ready — the orchestrator never attempts to
// recover an in-flight child process across invocations (§4.9).
func (r *Runner) Resume(ctx context.Context, featureSlug string) error {
	run, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("lifecycle: load state: %w", err)
	}
	if run.Status != state.RunPaused {
		return fmt.Errorf("lifecycle: resume requires status=paused, got %s", run.Status)
	}

	tasksDir := filepath.Join(r.repoRoot, "features", run.FeatureSlug, "tasks")
	graph, _, err := depgraph.Build(tasksDir)
	if err != nil {
		return fmt.Errorf("lifecycle: rebuild dependency graph: %w", err)
	}
	if err := depgraph.Validate(graph); err != nil {
		return fmt.Errorf("lifecycle: invalid dependency graph: %w", err)
	}

	installed := r.registry.DetectInstalled()
	cfg, err := config.Load(r.repoRoot, installed)
	if err != nil {
		return fmt.Errorf("lifecycle: load config: %w", err)
	}
	if hashConfig(cfg) != run.ConfigHash {
		r.logger.Warn("config has changed since this run started (config_hash mismatch); continuing with the new configuration")
	}
	// Re-verify that every agent this run still references is installed;
	// an agent that was present at start but has since been uninstalled
	// would otherwise stall every WP assigned to it silently.
	for _, id := range installedAgentIDsReferencedBy(run) {
		if !contains(installed, id) {
			r.logger.Warn("agent %s was used by this run but is no longer detected as installed; affected WPs may fail to reassign", id)
		}
	}

	for _, wp := range run.WorkPackages {
		if wp.Status == state.WPImplementation || wp.Status == state.WPReview {
			wp.Status = state.WPPending
			wp.Implementation = state.PhaseExecution{}
			wp.Review = state.PhaseExecution{}
		}
	}
	run.Status = state.RunRunning
	if err := r.store.Save(run); err != nil {
		return fmt.Errorf("lifecycle: persist resumed state: %w", err)
	}

	return r.enterLoop(ctx, graph, run, cfg)
}

// Abort loads the active run, cancels any in-process scheduler, marks the
// run failed, persists, and optionally cleans up worktrees.
func (r *Runner) Abort(ctx context.Context, cleanupWorktrees bool) error {
	run, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("lifecycle: load state: %w", err)
	}

	if r.cancelActive != nil {
		r.cancelActive()
	}

	run.Status = state.RunFailed
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := r.store.Save(run); err != nil {
		return fmt.Errorf("lifecycle: persist aborted state: %w", err)
	}

	if cleanupWorktrees {
		wt := worktree.New(r.repoRoot)
		for id := range run.WorkPackages {
			wt.Cleanup(ctx, id)
		}
	}
	return nil
}

func (r *Runner) enterLoop(ctx context.Context, graph *depgraph.Graph, run *state.OrchestrationRun, cfg *config.Config) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancelActive = cancel
	defer func() { r.cancelActive = nil }()

	if cfg.GlobalTimeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, time.Duration(cfg.GlobalTimeout)*time.Second)
		defer timeoutCancel()
	}

	logDir := filepath.Join(r.repoRoot, ".kittify", "logs", run.FeatureSlug)
	sched := scheduler.New(scheduler.Deps{
		Graph:    graph,
		Run:      run,
		Store:    r.store,
		Config:   cfg,
		Registry: r.registry,
		Executor: executor.New(r.tracer),
		Monitor:  monitor.New(),
		Lanes:    lanes.New(r.repoRoot),
		Worktree: worktree.New(r.repoRoot),
		Metrics:  r.metrics,
		LogDir:   logDir,
	})

	return sched.Run(runCtx)
}

func requireCoverage(cfg *config.Config, installed []string) error {
	installedSet := make(map[string]bool, len(installed))
	for _, id := range installed {
		installedSet[id] = true
	}
	if len(installed) == 0 {
		return fmt.Errorf("lifecycle: no agent CLI is installed")
	}
	for _, role := range []config.Role{config.RoleImplementation, config.RoleReview} {
		covered := false
		for _, id := range cfg.Defaults[role] {
			if agentCfg, ok := cfg.Agents[id]; ok && agentCfg.Enabled && installedSet[id] {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("lifecycle: no installed, enabled agent covers role %q", role)
		}
	}
	return nil
}

func hashConfig(cfg *config.Config) string {
	data, _ := json.Marshal(cfg)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func installedAgentIDsReferencedBy(run *state.OrchestrationRun) []string {
	seen := map[string]bool{}
	var out []string
	for _, wp := range run.WorkPackages {
		for _, id := range []string{wp.Implementation.AgentID, wp.Review.AgentID} {
			if id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
