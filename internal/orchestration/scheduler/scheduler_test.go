package scheduler

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kittify/orchestrator/internal/orchestration/config"
	"github.com/kittify/orchestrator/internal/orchestration/state"
)

func testConfig() *config.Config {
	return &config.Config{
		Defaults: map[config.Role][]string{
			config.RoleImplementation: {"claude-code", "codex"},
			config.RoleReview:         {"codex", "claude-code"},
		},
		Agents: map[string]config.AgentConfig{
			"claude-code": {Enabled: true, Roles: []config.Role{config.RoleImplementation, config.RoleReview}, MaxConcurrent: 1},
			"codex":       {Enabled: true, Roles: []config.Role{config.RoleImplementation, config.RoleReview}, MaxConcurrent: 1},
		},
		FallbackStrategy:  config.FallbackNextInList,
		MaxRetries:        1,
		GlobalConcurrency: 2,
	}
}

func newTestScheduler(run *state.OrchestrationRun) *Scheduler {
	registry := prometheus.NewRegistry()
	return New(Deps{
		Graph:   nil,
		Run:     run,
		Store:   nil,
		Config:  testConfig(),
		Metrics: MustNewMetrics(registry),
	})
}

func TestPickAgentSkipsExcluded(t *testing.T) {
	s := newTestScheduler(&state.OrchestrationRun{})
	agent := s.pickAgent(config.RoleReview, "codex")
	require.Equal(t, "claude-code", agent)
}

func TestPickAgentSkipsDisabledAgent(t *testing.T) {
	s := newTestScheduler(&state.OrchestrationRun{})
	cfg := s.cfg
	cfg.Agents["claude-code"] = config.AgentConfig{Enabled: false, Roles: []config.Role{config.RoleImplementation}}
	agent := s.pickAgent(config.RoleImplementation, "")
	require.Equal(t, "codex", agent)
}

func TestPickAgentReturnsEmptyWhenAllAtCapacity(t *testing.T) {
	s := newTestScheduler(&state.OrchestrationRun{})
	releaseA, ok := s.gov.TryAcquire("claude-code")
	require.True(t, ok)
	defer releaseA()
	releaseB, ok := s.gov.TryAcquire("codex")
	require.True(t, ok)
	defer releaseB()

	agent := s.pickAgent(config.RoleImplementation, "")
	require.Equal(t, "", agent)
}

func TestIsTerminalTrueWhenAllWPsDone(t *testing.T) {
	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{
		"WP01": {Status: state.WPCompleted},
		"WP02": {Status: state.WPFailed},
	}}
	s := newTestScheduler(run)
	require.True(t, s.isTerminal())
}

func TestIsTerminalFalseWithPendingWP(t *testing.T) {
	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{
		"WP01": {Status: state.WPCompleted},
		"WP02": {Status: state.WPPending},
	}}
	s := newTestScheduler(run)
	require.False(t, s.isTerminal())
}

func TestFailSetsWPFailedAndPausesRun(t *testing.T) {
	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{
		"WP01": {WPID: "WP01", Status: state.WPImplementation},
	}}
	s := newTestScheduler(run)
	s.fail("WP01", state.PhaseImplementation, "claude-code", "boom")

	require.Equal(t, state.WPFailed, run.WorkPackages["WP01"].Status)
	require.Equal(t, "boom", run.WorkPackages["WP01"].LastError)
	require.Equal(t, state.RunPaused, run.Status)
	require.Equal(t, 1, run.WPsFailed)
}

func TestSortedWPIDsIsDeterministic(t *testing.T) {
	wps := map[string]*state.WPExecution{"WP03": {}, "WP01": {}, "WP02": {}}
	require.Equal(t, []string{"WP01", "WP02", "WP03"}, SortedWPIDs(wps))
}
