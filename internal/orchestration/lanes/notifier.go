// Package lanes translates WP lane transitions into calls against the
// external task-file mutator (spec §4.8, §6.2).
package lanes

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/kittify/orchestrator/internal/logging"
)

// Lane is an externally-visible WP status label.
type Lane string

const (
	LanePlanned   Lane = "planned"
	LaneDoing     Lane = "doing"
	LaneForReview Lane = "for_review"
	LaneDone      Lane = "done"
)

// Notifier shells out to the move-task command. Failure is logged as a
// warning and never fails the run (§4.8).
type Notifier struct {
	command  string
	repoRoot string
	logger   logging.Logger
	runner   func(ctx context.Context, dir, name string, args ...string) error
}

// New returns a Notifier that invokes "move-task" from repoRoot.
func New(repoRoot string) *Notifier {
	return &Notifier{
		command:  "move-task",
		repoRoot: repoRoot,
		logger:   logging.NewComponentLogger("lane-notifier"),
		runner:   runCommand,
	}
}

// Notify advances wpID to lane with note, via `move-task <wp_id> --to <lane> --note "<text>"`.
// State is the source of truth (the caller must have already persisted the
// orchestrator's own state before calling this); the lane file is a
// human-visible projection only.
func (n *Notifier) Notify(ctx context.Context, wpID string, lane Lane, note string) {
	err := n.runner(ctx, n.repoRoot, n.command, wpID, "--to", string(lane), "--note", note)
	if err != nil {
		n.logger.Warn(
			"lane update failed for %s -> %s (run manually: %s %s --to %s --note %q): %v",
			wpID, lane, n.command, wpID, lane, note, err,
		)
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
