package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/kittify/orchestrator/internal/orchestration/lifecycle"
	"github.com/kittify/orchestrator/internal/orchestration/state"
)

var (
	panelTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	panelKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	panelBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	fieldGreen  = color.New(color.FgGreen).SprintFunc()
	fieldYellow = color.New(color.FgYellow).SprintFunc()
	fieldRed    = color.New(color.FgRed).SprintFunc()
)

// renderEscalationPanel formats a paused run's failing WP as the rich-text
// diagnostic panel described in the human escalation surface: WP id, phase,
// failing agent, last error excerpt, log file path, and the three
// continuation options (resume after a manual fix, skip the WP, abort).
func renderEscalationPanel(status *lifecycle.Status, run *state.OrchestrationRun) string {
	if len(status.Failed) == 0 {
		return ""
	}
	wpID := status.Failed[len(status.Failed)-1]
	wp := run.WorkPackages[wpID]

	phase := state.PhaseImplementation
	agentID := wp.Implementation.AgentID
	if wp.Review.AgentID != "" {
		phase = state.PhaseReview
		agentID = wp.Review.AgentID
	}

	excerpt := wp.LastError
	if len(excerpt) > 280 {
		excerpt = excerpt[:280] + "..."
	}

	var b strings.Builder
	fmt.Fprintln(&b, panelTitle.Render("run paused: a work package needs attention"))
	fmt.Fprintf(&b, "%s %s\n", panelKey.Render("work package:"), wpID)
	fmt.Fprintf(&b, "%s %s\n", panelKey.Render("phase:"), phase)
	fmt.Fprintf(&b, "%s %s\n", panelKey.Render("agent:"), agentID)
	fmt.Fprintf(&b, "%s %s\n", panelKey.Render("error:"), excerpt)
	if wp.LogFile != "" {
		fmt.Fprintf(&b, "%s %s\n", panelKey.Render("log:"), wp.LogFile)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "continue by:")
	fmt.Fprintf(&b, "  1. fix the problem, then %s\n", fieldGreen("orchestrate resume "+run.FeatureSlug))
	fmt.Fprintf(&b, "  2. mark this WP done manually and %s\n", fieldYellow("orchestrate resume "+run.FeatureSlug))
	fmt.Fprintf(&b, "  3. give up on this feature: %s\n", fieldRed("orchestrate abort "+run.FeatureSlug))

	return panelBox.Render(strings.TrimRight(b.String(), "\n"))
}
