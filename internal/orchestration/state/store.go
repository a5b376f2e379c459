package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kittify/orchestrator/internal/filestore"
	"github.com/kittify/orchestrator/internal/logging"
)

// ErrNoActiveRun is returned by Load when no state file exists.
var ErrNoActiveRun = errors.New("state: no active run")

// ErrCorrupt wraps a load failure that points at the backup file for
// manual recovery, per §4.2's "no silent repair" contract.
type ErrCorrupt struct {
	Path       string
	BackupPath string
	Cause      error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("state: %s is corrupt (%v); see backup at %s", e.Path, e.Cause, e.BackupPath)
}

func (e *ErrCorrupt) Unwrap() error { return e.Cause }

const fileName = "orchestration-state.json"

// Store is a single-writer, file-backed OrchestrationRun persistence layer
// rooted at a repository's .kittify directory.
type Store struct {
	dir    string
	logger logging.Logger
}

// New returns a Store that reads and writes <repoRoot>/.kittify/orchestration-state.json.
func New(repoRoot string) *Store {
	return &Store{
		dir:    filepath.Join(repoRoot, ".kittify"),
		logger: logging.NewComponentLogger("state-store"),
	}
}

func (s *Store) path() string { return filepath.Join(s.dir, fileName) }

// Load reads the state file, returning ErrNoActiveRun if absent, or
// *ErrCorrupt if present but unparseable / invariant-violating.
func (s *Store) Load() (*OrchestrationRun, error) {
	data, err := filestore.ReadFileOrEmpty(s.path())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNoActiveRun
	}

	run, err := decode(data)
	if err != nil {
		return nil, &ErrCorrupt{Path: s.path(), BackupPath: s.path() + ".bak", Cause: err}
	}
	if !ValidateCounters(run) {
		return nil, &ErrCorrupt{Path: s.path(), BackupPath: s.path() + ".bak", Cause: fmt.Errorf("counter invariant violated")}
	}
	for id, wp := range run.WorkPackages {
		if !ValidatePhaseOrdering(wp.Implementation) || !ValidatePhaseOrdering(wp.Review) {
			return nil, &ErrCorrupt{Path: s.path(), BackupPath: s.path() + ".bak", Cause: fmt.Errorf("phase ordering invariant violated for %s", id)}
		}
		if !ValidateReviewAfterImplementation(wp) {
			return nil, &ErrCorrupt{Path: s.path(), BackupPath: s.path() + ".bak", Cause: fmt.Errorf("review-after-implementation invariant violated for %s", id)}
		}
	}
	return run, nil
}

// Save serializes run and writes it atomically: backup-then-temp-then-rename,
// per §4.2 steps 1-4.
func (s *Store) Save(run *OrchestrationRun) error {
	data, err := encode(run)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	if err := filestore.BackupThenAtomicWrite(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("state: write: %w", err)
	}
	s.logger.Debug("persisted run %s (status=%s)", run.RunID, run.Status)
	return nil
}

// HasActive reports whether a state file exists with status running or paused.
func (s *Store) HasActive() (bool, error) {
	run, err := s.Load()
	if errors.Is(err, ErrNoActiveRun) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return run.Status == RunRunning || run.Status == RunPaused, nil
}

// Clear deletes the state file. Used by abort --clear and completed cleanup.
func (s *Store) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func decode(data []byte) (*OrchestrationRun, error) {
	run := &OrchestrationRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, err
	}
	return run, nil
}

func encode(run *OrchestrationRun) ([]byte, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	return filestore.MarshalJSONIndent(indentable(data))
}

// indentable lets MarshalJSONIndent re-indent an already-marshaled document
// without re-running the run's custom MarshalJSON.
type indentable json.RawMessage

func (i indentable) MarshalJSON() ([]byte, error) { return i, nil }
