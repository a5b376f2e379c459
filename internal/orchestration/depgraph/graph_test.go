package depgraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittify/orchestrator/internal/orchestration/state"
)

func writeWP(t *testing.T, dir, filename, id string, deps []string) {
	t.Helper()
	depLines := ""
	for _, d := range deps {
		depLines += "  - " + d + "\n"
	}
	content := "---\nwork_package_id: " + id + "\ntitle: \"" + id + " title\"\ndependencies:\n" + depLines + "---\n\nBody.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func TestBuildAndReadyLinearChain(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", nil)
	writeWP(t, dir, "WP02.md", "WP02", []string{"WP01"})
	writeWP(t, dir, "WP03.md", "WP03", []string{"WP02"})

	g, warnings, err := Build(dir)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.NoError(t, Validate(g))

	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{
		"WP01": {WPID: "WP01", Status: state.WPPending},
		"WP02": {WPID: "WP02", Status: state.WPPending},
		"WP03": {WPID: "WP03", Status: state.WPPending},
	}}

	require.Equal(t, []string{"WP01"}, Ready(g, run))

	run.WorkPackages["WP01"].Status = state.WPCompleted
	require.Equal(t, []string{"WP02"}, Ready(g, run))
}

func TestReadyTieBreaksLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", nil)
	writeWP(t, dir, "WP02.md", "WP02", []string{"WP01"})
	writeWP(t, dir, "WP03.md", "WP03", []string{"WP01"})
	writeWP(t, dir, "WP04.md", "WP04", []string{"WP01"})

	g, _, err := Build(dir)
	require.NoError(t, err)

	run := &state.OrchestrationRun{WorkPackages: map[string]*state.WPExecution{
		"WP01": {WPID: "WP01", Status: state.WPCompleted},
		"WP02": {WPID: "WP02", Status: state.WPPending},
		"WP03": {WPID: "WP03", Status: state.WPPending},
		"WP04": {WPID: "WP04", Status: state.WPPending},
	}}

	require.Equal(t, []string{"WP02", "WP03", "WP04"}, Ready(g, run))
}

func TestValidateRejectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", []string{"WP02"})
	writeWP(t, dir, "WP02.md", "WP02", []string{"WP01"})

	g, _, err := Build(dir)
	require.NoError(t, err)

	err = Validate(g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "WP01")
	require.Contains(t, err.Error(), "WP02")
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", []string{"WP99"})

	g, _, err := Build(dir)
	require.NoError(t, err)

	err = Validate(g)
	require.Error(t, err)
	require.Contains(t, err.Error(), "WP99")
}

func TestValidateRejectsSelfReference(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", []string{"WP01"})

	g, _, err := Build(dir)
	require.NoError(t, err)

	require.Error(t, Validate(g))
}

func TestFilenameMismatchWarns(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "wrong-name.md", "WP01", nil)

	_, warnings, err := Build(dir)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "wrong-name")
}

func TestBaseDependency(t *testing.T) {
	base, extras := BaseDependency(&WorkPackage{Dependencies: nil})
	require.Empty(t, base)
	require.Empty(t, extras)

	base, extras = BaseDependency(&WorkPackage{Dependencies: []string{"WP02"}})
	require.Equal(t, "WP02", base)
	require.Empty(t, extras)

	base, extras = BaseDependency(&WorkPackage{Dependencies: []string{"WP03", "WP01", "WP02"}})
	require.Equal(t, "WP01", base)
	require.Equal(t, []string{"WP02", "WP03"}, extras)
}

func TestDependents(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", nil)
	writeWP(t, dir, "WP02.md", "WP02", []string{"WP01"})
	writeWP(t, dir, "WP03.md", "WP03", []string{"WP01"})

	g, _, err := Build(dir)
	require.NoError(t, err)

	require.Equal(t, []string{"WP02", "WP03"}, Dependents(g, "WP01"))
}

func TestParseFrontmatterCachesByPathAndMtime(t *testing.T) {
	dir := t.TempDir()
	writeWP(t, dir, "WP01.md", "WP01", nil)

	path := filepath.Join(dir, "WP01.md")
	fm1, err := parseFrontmatter(path)
	require.NoError(t, err)

	// Rewrite with a later mtime and different content; cache must miss.
	time.Sleep(5 * time.Millisecond)
	writeWP(t, dir, "WP01.md", "WP01", []string{"WP00"})
	require.NoError(t, os.Chtimes(path, time.Now().Add(time.Second), time.Now().Add(time.Second)))
	fm2, err := parseFrontmatter(path)
	require.NoError(t, err)

	require.Equal(t, fm1.WorkPackageID, fm2.WorkPackageID)
	require.Equal(t, []string{"WP00"}, fm2.Dependencies)
}
