// Package monitor is the policy layer over Executor results: outcome
// classification, same-agent retry, cross-agent fallback, and human
// escalation (spec §4.6).
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kittify/orchestrator/internal/logging"
	"github.com/kittify/orchestrator/internal/orcherrors"
	"github.com/kittify/orchestrator/internal/orchestration/agents"
)

// Outcome classifies a single invocation's InvocationResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeAuth
	OutcomeGenericFailure
	OutcomeCancelled
)

// authErrorMarkers are stderr substrings recognized as agent
// authentication failures across the known agents; these are
// non-retriable on the same agent and skip straight to fallback.
var authErrorMarkers = []string{
	"unauthorized", "authentication failed", "invalid api key",
	"401", "please run", "not logged in", "auth error",
}

// Classify derives an Outcome from an InvocationResult.
func Classify(result agents.InvocationResult) Outcome {
	if result.Success {
		return OutcomeSuccess
	}
	if result.ExitCode == agents.CancelledExitCode {
		return OutcomeCancelled
	}
	if result.ExitCode == agents.TimeoutExitCode {
		return OutcomeTransient
	}
	lowerStderr := strings.ToLower(result.Stderr)
	for _, marker := range authErrorMarkers {
		if strings.Contains(lowerStderr, marker) {
			return OutcomeAuth
		}
	}
	if isGenericTransientPattern(lowerStderr) {
		return OutcomeTransient
	}
	return OutcomeGenericFailure
}

func isGenericTransientPattern(lowerStderr string) bool {
	for _, marker := range []string{"rate limit", "rate-limited", "429", "temporarily unavailable", "connection reset"} {
		if strings.Contains(lowerStderr, marker) {
			return true
		}
	}
	return false
}

// FallbackStrategy is one of the three configured policies (§6.1).
type FallbackStrategy string

const (
	FallbackFail       FallbackStrategy = "fail"
	FallbackSameAgent  FallbackStrategy = "same_agent"
	FallbackNextInList FallbackStrategy = "next_in_list"
)

// Policy bundles the configuration the Monitor applies for a single phase.
type Policy struct {
	MaxRetries       int
	FallbackStrategy FallbackStrategy
	RetryConfig      orcherrors.RetryConfig
}

// Invoke is the function the Monitor calls to actually run one attempt;
// normally this is Executor.Run, threaded through so Monitor stays
// decoupled from subprocess mechanics.
type Invoke func(ctx context.Context, agentID string) (agents.InvocationResult, error)

// PickFallback selects the next candidate agent id from preference, given
// the set of agents already tried this phase and an agent to exclude
// (the implementation agent, for a review phase). It returns "" if none
// qualify.
type PickFallback func(preference []string, tried map[string]bool, exclude string) string

// PhaseResult is what RunPhase returns to the scheduler.
type PhaseResult struct {
	Result        agents.InvocationResult
	AgentUsed     string
	Retries       int
	TriedAgents   []string
	Escalated     bool
	EscalationMsg string
}

// Monitor applies retry/fallback/escalation policy around a single phase
// invocation loop.
type Monitor struct {
	logger logging.Logger
}

// New returns a Monitor.
func New() *Monitor {
	return &Monitor{logger: logging.NewComponentLogger("monitor")}
}

// RunPhase drives one phase (implementation or review) to its terminal
// outcome for a single agent-selection round: it retries the given agent
// up to policy.MaxRetries, then, if exhausted, asks pick for a fallback
// candidate and repeats with that agent's own retry budget, until either
// an invocation succeeds or no fallback candidate remains.
func (m *Monitor) RunPhase(
	ctx context.Context,
	agentID string,
	preference []string,
	exclude string,
	policy Policy,
	invoke Invoke,
	pick PickFallback,
) PhaseResult {
	tried := map[string]bool{}
	current := agentID
	var triedOrder []string
	totalRetries := 0

	for current != "" {
		tried[current] = true
		triedOrder = append(triedOrder, current)

		result, retries, outcome := m.runWithRetry(ctx, current, policy, invoke)
		totalRetries += retries

		if outcome == OutcomeSuccess {
			return PhaseResult{Result: result, AgentUsed: current, Retries: totalRetries, TriedAgents: triedOrder[:len(triedOrder)-1]}
		}

		if outcome == OutcomeCancelled {
			return PhaseResult{
				Result: result, AgentUsed: current, Retries: totalRetries, TriedAgents: triedOrder,
				Escalated:     true,
				EscalationMsg: "run cancelled",
			}
		}

		if policy.FallbackStrategy == FallbackFail || policy.FallbackStrategy == FallbackSameAgent {
			return PhaseResult{
				Result: result, AgentUsed: current, Retries: totalRetries, TriedAgents: triedOrder,
				Escalated:     true,
				EscalationMsg: escalationMessage(current, result),
			}
		}

		next := pick(preference, tried, exclude)
		if next == "" {
			return PhaseResult{
				Result: result, AgentUsed: current, Retries: totalRetries, TriedAgents: triedOrder,
				Escalated:     true,
				EscalationMsg: escalationMessage(current, result),
			}
		}
		m.logger.Info("falling back from %s to %s", current, next)
		current = next
	}

	return PhaseResult{Escalated: true, EscalationMsg: "no eligible agent"}
}

// runWithRetry retries a single agent up to policy.MaxRetries times,
// suppressing retries on auth failures, and returns the final result, the
// number of retries actually performed, and its outcome classification.
func (m *Monitor) runWithRetry(ctx context.Context, agentID string, policy Policy, invoke Invoke) (agents.InvocationResult, int, Outcome) {
	var last agents.InvocationResult
	var lastOutcome Outcome

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := invoke(ctx, agentID)
		if err != nil {
			last = agents.InvocationResult{Success: false, Errors: []string{err.Error()}}
			lastOutcome = OutcomeGenericFailure
			if orcherrors.IsTransient(err) {
				lastOutcome = OutcomeTransient
			}
		} else {
			last = result
			lastOutcome = Classify(result)
		}

		if lastOutcome == OutcomeSuccess {
			return last, attempt, lastOutcome
		}
		if lastOutcome == OutcomeAuth || lastOutcome == OutcomeCancelled {
			return last, attempt, lastOutcome
		}
		if attempt == policy.MaxRetries {
			return last, attempt, lastOutcome
		}

		delay := retryDelay(attempt, policy.RetryConfig)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return last, attempt, lastOutcome
		}
	}
	return last, policy.MaxRetries, lastOutcome
}

func retryDelay(attempt int, cfg orcherrors.RetryConfig) time.Duration {
	if cfg.BaseDelay == 0 {
		cfg = orcherrors.DefaultRetryConfig()
	}
	delay := cfg.BaseDelay << attempt
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

func escalationMessage(agentID string, result agents.InvocationResult) string {
	excerpt := result.Stderr
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	return fmt.Sprintf("agent %s exhausted retries and fallback; last error: %s", agentID, excerpt)
}
