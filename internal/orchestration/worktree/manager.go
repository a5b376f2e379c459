// Package worktree wraps the external worktree manager contract (spec §6.3):
// `implement <wp_id> [--base <wp_id>]`, run from the repository root.
package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/kittify/orchestrator/internal/logging"
)

// Manager invokes the external "implement" command.
type Manager struct {
	command  string
	repoRoot string
	logger   logging.Logger
	runner   func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// New returns a Manager rooted at repoRoot.
func New(repoRoot string) *Manager {
	return &Manager{
		command:  "implement",
		repoRoot: repoRoot,
		logger:   logging.NewComponentLogger("worktree"),
		runner:   runCommand,
	}
}

// Ensure creates (or validates, idempotently) the working directory for
// wpID, branching from base's branch when base is non-empty, or from the
// main line otherwise. Returns the deterministic working-directory path on
// success.
func (m *Manager) Ensure(ctx context.Context, wpID, base string) (string, error) {
	args := []string{wpID}
	if base != "" {
		args = append(args, "--base", base)
	}
	out, err := m.runner(ctx, m.repoRoot, m.command, args...)
	if err != nil {
		return "", fmt.Errorf("worktree: implement %s: %w: %s", wpID, err, out)
	}
	return m.Path(wpID), nil
}

// Path returns the deterministic working-directory path for wpID, without
// invoking the external manager. The path layout mirrors the one `implement`
// itself uses: <repo>/.kittify/worktrees/<wp_id>.
func (m *Manager) Path(wpID string) string {
	return filepath.Join(m.repoRoot, ".kittify", "worktrees", wpID)
}

// Cleanup removes wpID's worktree via the external manager's --remove mode,
// used by Run.abort() when the operator opts in to worktree cleanup. Best
// effort: failures are logged, not returned, since an abort must still
// complete.
func (m *Manager) Cleanup(ctx context.Context, wpID string) {
	if _, err := m.runner(ctx, m.repoRoot, m.command, wpID, "--remove"); err != nil {
		m.logger.Warn("worktree cleanup failed for %s (run manually: %s %s --remove): %v", wpID, m.command, wpID, err)
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
