package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittify/orchestrator/internal/orchestration/lifecycle"
	"github.com/kittify/orchestrator/internal/orchestration/state"
)

func TestRenderEscalationPanelReturnsEmptyWithNoFailures(t *testing.T) {
	status := &lifecycle.Status{}
	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{}}
	require.Equal(t, "", renderEscalationPanel(status, run))
}

func TestRenderEscalationPanelIncludesFailingWPDetails(t *testing.T) {
	status := &lifecycle.Status{Failed: []string{"WP01", "WP02"}}
	run := &state.OrchestrationRun{
		FeatureSlug: "add-retry-logic",
		WorkPackages: map[string]*state.WPExecution{
			"WP02": {
				WPID:           "WP02",
				Implementation: state.PhaseExecution{AgentID: "claude-code"},
				LastError:      "exit status 1: permission denied",
				LogFile:        ".kittify/logs/add-retry-logic/WP02.log",
			},
		},
	}

	panel := renderEscalationPanel(status, run)
	require.Contains(t, panel, "WP02")
	require.Contains(t, panel, "claude-code")
	require.Contains(t, panel, "permission denied")
	require.Contains(t, panel, ".kittify/logs/add-retry-logic/WP02.log")
	require.Contains(t, panel, "orchestrate resume add-retry-logic")
	require.Contains(t, panel, "orchestrate abort add-retry-logic")
}

func TestRenderEscalationPanelPrefersReviewPhaseWhenReviewAgentSet(t *testing.T) {
	status := &lifecycle.Status{Failed: []string{"WP01"}}
	run := &state.OrchestrationRun{
		FeatureSlug: "feat",
		WorkPackages: map[string]*state.WPExecution{
			"WP01": {
				WPID:           "WP01",
				Implementation: state.PhaseExecution{AgentID: "claude-code"},
				Review:         state.PhaseExecution{AgentID: "codex"},
				LastError:      "review rejected the diff",
			},
		},
	}

	panel := renderEscalationPanel(status, run)
	require.Contains(t, panel, string(state.PhaseReview))
	require.Contains(t, panel, "codex")
}

func TestRenderEscalationPanelTruncatesLongErrorExcerpt(t *testing.T) {
	longErr := ""
	for i := 0; i < 400; i++ {
		longErr += "x"
	}
	status := &lifecycle.Status{Failed: []string{"WP01"}}
	run := &state.OrchestrationRun{
		FeatureSlug: "feat",
		WorkPackages: map[string]*state.WPExecution{
			"WP01": {WPID: "WP01", LastError: longErr},
		},
	}

	panel := renderEscalationPanel(status, run)
	require.Contains(t, panel, "...")
	require.NotContains(t, panel, longErr)
}
