// Package state holds the durable record of an orchestration run and the
// store that persists it atomically to a single JSON file.
package state

import "time"

// RunStatus is the lifecycle status of an OrchestrationRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// WPStatus is the lifecycle status of a single WPExecution.
type WPStatus string

const (
	WPPending        WPStatus = "pending"
	WPReady          WPStatus = "ready"
	WPImplementation WPStatus = "implementation"
	WPReview         WPStatus = "review"
	WPCompleted      WPStatus = "completed"
	WPFailed         WPStatus = "failed"
)

// Phase names a WPExecution sub-step.
type Phase string

const (
	PhaseImplementation Phase = "implementation"
	PhaseReview         Phase = "review"
)

// PhaseExecution records one attempt lineage of a single phase.
type PhaseExecution struct {
	AgentID     string     `json:"agent_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	Retries     int        `json:"retries"`
}

// WPExecution is the mutable, per-run record of one work package.
type WPExecution struct {
	WPID                string         `json:"wp_id"`
	Status              WPStatus       `json:"status"`
	Implementation      PhaseExecution `json:"implementation"`
	Review              PhaseExecution `json:"review"`
	LogFile             string         `json:"log_file,omitempty"`
	WorktreePath        string         `json:"worktree_path,omitempty"`
	LastError           string         `json:"last_error,omitempty"`
	FallbackAgentsTried []string       `json:"fallback_agents_tried,omitempty"`
	ExtraDependencies   []string       `json:"extra_dependencies,omitempty"`
	BaseDependency      string         `json:"base_dependency,omitempty"`

	// Unknown holds any JSON object fields not recognized by this version,
	// preserved pass-through across load/save per the forward-compatibility
	// contract.
	Unknown map[string]any `json:"-"`
}

// OrchestrationRun is the single persisted record for one feature execution.
type OrchestrationRun struct {
	RunID                 string                  `json:"run_id"`
	FeatureSlug           string                  `json:"feature_slug"`
	StartedAt             time.Time               `json:"started_at"`
	CompletedAt           *time.Time              `json:"completed_at,omitempty"`
	Status                RunStatus               `json:"status"`
	ConfigHash            string                  `json:"config_hash"`
	ConcurrencyLimit      int                     `json:"concurrency_limit"`
	WPsTotal              int                     `json:"wps_total"`
	WPsCompleted          int                     `json:"wps_completed"`
	WPsFailed             int                     `json:"wps_failed"`
	ParallelPeak          int                     `json:"parallel_peak"`
	TotalAgentInvocations int                     `json:"total_agent_invocations"`
	WorkPackages          map[string]*WPExecution `json:"work_packages"`

	// Unknown preserves unrecognized top-level fields across a load/save
	// round-trip (forward-compatibility, §4.2 serialization contract).
	Unknown map[string]any `json:"-"`
}

// Invariant checks implementing the state-transition rules of §3.1.
// Store.Load runs them on every state file it reads and reports a violation
// as *ErrCorrupt; Store.Save does not run them.

// ValidatePhaseOrdering reports whether completedAt may legally follow
// startedAt for a single phase: completed_at may only be set if started_at
// is set.
func ValidatePhaseOrdering(p PhaseExecution) bool {
	if p.CompletedAt != nil && p.StartedAt == nil {
		return false
	}
	return true
}

// ValidateReviewAfterImplementation enforces that review may only start
// once implementation has completed, and that review.started_at is
// strictly after implementation.completed_at when both are set.
func ValidateReviewAfterImplementation(wp *WPExecution) bool {
	if wp.Review.StartedAt != nil && wp.Implementation.CompletedAt == nil {
		return false
	}
	if wp.Review.StartedAt != nil && wp.Implementation.CompletedAt != nil {
		if !wp.Review.StartedAt.After(*wp.Implementation.CompletedAt) {
			return false
		}
	}
	return true
}

// ValidateCounters enforces wps_completed + wps_failed + non-terminal == wps_total.
func ValidateCounters(run *OrchestrationRun) bool {
	nonTerminal := 0
	for _, wp := range run.WorkPackages {
		if wp.Status != WPCompleted && wp.Status != WPFailed {
			nonTerminal++
		}
	}
	return run.WPsCompleted+run.WPsFailed+nonTerminal == run.WPsTotal
}
