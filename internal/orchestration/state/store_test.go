package state

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRun() *OrchestrationRun {
	now := time.Now().UTC().Truncate(time.Second)
	return &OrchestrationRun{
		RunID:       "run-1",
		FeatureSlug: "feat",
		StartedAt:   now,
		Status:      RunRunning,
		ConfigHash:  "abc123",
		WPsTotal:    1,
		WorkPackages: map[string]*WPExecution{
			"WP01": {WPID: "WP01", Status: WPPending},
		},
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	run := sampleRun()
	require.NoError(t, store.Save(run))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, run.RunID, loaded.RunID)
	require.Equal(t, run.Status, loaded.Status)
	require.Equal(t, run.WorkPackages["WP01"].Status, loaded.WorkPackages["WP01"].Status)
}

func TestStoreLoadNoActiveRun(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoActiveRun)
}

func TestStoreHasActive(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	active, err := store.HasActive()
	require.NoError(t, err)
	require.False(t, active)

	run := sampleRun()
	require.NoError(t, store.Save(run))

	active, err = store.HasActive()
	require.NoError(t, err)
	require.True(t, active)

	run.Status = RunCompleted
	require.NoError(t, store.Save(run))
	active, err = store.HasActive()
	require.NoError(t, err)
	require.False(t, active)
}

func TestStoreSaveWritesBackupBeforeOverwrite(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	run := sampleRun()
	require.NoError(t, store.Save(run))

	run.Status = RunPaused
	require.NoError(t, store.Save(run))

	current, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, RunPaused, current.Status)

	data, err := os.ReadFile(store.path() + ".bak")
	require.NoError(t, err)
	backup, err := decode(data)
	require.NoError(t, err)
	require.Equal(t, RunRunning, backup.Status)
}

func TestStoreClear(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	require.NoError(t, store.Save(sampleRun()))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoActiveRun)
}

func TestUnknownFieldsPreservedAcrossRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	run := sampleRun()
	run.Unknown = map[string]any{"future_field": "kept"}
	require.NoError(t, store.Save(run))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "kept", loaded.Unknown["future_field"])
}

func TestValidateCountersRejectsMismatch(t *testing.T) {
	run := sampleRun()
	run.WPsTotal = 5
	require.False(t, ValidateCounters(run))
}
