// Package agents implements the AgentInvoker registry: the adapter layer
// mapping an agent identifier to its argv-construction and output-
// classification strategy (spec §4.4).
package agents

import "time"

// Role is one of the two phases an invoker may be used for.
type Role string

const (
	RoleImplementation Role = "implementation"
	RoleReview         Role = "review"
)

// TimeoutExitCode is the reserved sentinel exit code meaning "killed by
// timeout", whether that timeout was enforced by the Executor itself or
// (for Cursor) by the external wrapper command the Invoker prepends.
const TimeoutExitCode = 124

// CancelledExitCode is the reserved sentinel exit code meaning "killed
// because the run's own context was cancelled" (a global timeout or an
// operator abort), as opposed to the per-invocation timeout above.
const CancelledExitCode = 130

// InvocationResult is the structured outcome of a single agent invocation,
// transient: produced by the Executor, consumed by the Monitor, never
// persisted directly (its salient fields fold into WPExecution).
type InvocationResult struct {
	Success         bool
	ExitCode        int
	FilesModified   []string
	CommitsMade     []string
	Errors          []string
	Warnings        []string
	Stdout          string
	Stderr          string
	DurationSeconds float64
}

// Invoker is the per-agent adapter. Implementations are stateless value
// objects; the same Invoker value is safe to use concurrently across WPs.
type Invoker interface {
	AgentID() string
	Command() string
	UsesStdin() bool
	// BuildCommand returns the full argv. promptPath is only consulted when
	// UsesStdin() is false, in which case the invoker embeds the prompt
	// file's content (or path, per the agent's own convention) directly in
	// argv rather than leaving it to be piped on stdin.
	BuildCommand(role Role, workingDir, promptPath string) []string
	ParseOutput(stdout, stderr []byte, exitCode int, duration time.Duration) InvocationResult
	IsInstalled() bool
}
