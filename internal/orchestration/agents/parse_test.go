package agents

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGenericTextSuccess(t *testing.T) {
	result := parseGenericText([]byte("did the thing\n"), nil, 0, 1.5)
	require.True(t, result.Success)
	require.Equal(t, 0, result.ExitCode)
}

func TestParseGenericTextFailure(t *testing.T) {
	result := parseGenericText(nil, []byte("boom"), 1, 0.2)
	require.False(t, result.Success)
	require.Equal(t, 1, result.ExitCode)
}

func TestParseJSONLinesPicksLastParseableObject(t *testing.T) {
	stdout := []byte("progress: starting\n" +
		`{"files_modified": ["a.go"]}` + "\n" +
		"progress: working\n" +
		`{"files_modified": ["a.go", "b.go"], "commits_made": ["deadbeef"]}` + "\n")

	result := parseJSONLines(stdout, nil, 0, 3.0)
	require.True(t, result.Success)
	require.Equal(t, []string{"a.go", "b.go"}, result.FilesModified)
	require.Equal(t, []string{"deadbeef"}, result.CommitsMade)
}

func TestParseJSONLinesNonEmptyErrorsIsFatalDespiteZeroExit(t *testing.T) {
	stdout := []byte(`{"errors": ["lint failed"]}` + "\n")
	result := parseJSONLines(stdout, nil, 0, 1.0)
	require.False(t, result.Success)
	require.Equal(t, []string{"lint failed"}, result.Errors)
}

func TestParseJSONLinesNoObjectFound(t *testing.T) {
	result := parseJSONLines([]byte("no json here\n"), nil, 0, 1.0)
	require.True(t, result.Success)
	require.Empty(t, result.FilesModified)
}

func TestParseCursorMapsWrapperTimeoutExit(t *testing.T) {
	result := parseCursorOutput(nil, nil, 124, 600)
	require.Equal(t, TimeoutExitCode, result.ExitCode)
	require.False(t, result.Success)
}
