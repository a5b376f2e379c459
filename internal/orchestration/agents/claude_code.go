package agents

import (
	"github.com/kittify/orchestrator/internal/agentcli/claudecode"
)

// newClaudeCode builds the claude-code Invoker: headless, JSON-lines
// stdout, autonomous confirmation via --dangerously-skip-permissions.
func newClaudeCode() Invoker {
	return &genericInvoker{
		id:        "claude-code",
		command:   "claude",
		usesStdin: true,
		installer: newInstallProbe("claude-code"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"claude",
				"-p",
				"--output-format", "stream-json",
				"--verbose",
				"--dangerously-skip-permissions",
				"--add-dir", workingDir,
			}
		},
		parseOutput: parseClaudeCodeStream,
	}
}

// parseClaudeCodeStream folds claude-code's stream-json lines through the
// shared StreamMessage parser, collecting the text of "error" messages and
// the arguments of Edit/Write tool events, rather than re-parsing raw JSON
// objects the way the generic parser does. Usage and cost reports are not
// read.
func parseClaudeCodeStream(stdout, stderr []byte, exitCode int, durationSeconds float64) InvocationResult {
	result := InvocationResult{
		ExitCode:        exitCode,
		Stdout:          string(stdout),
		Stderr:          string(stderr),
		DurationSeconds: durationSeconds,
	}

	var errs []string
	seenFiles := map[string]bool{}

	for _, line := range splitLines(stdout) {
		if len(line) == 0 {
			continue
		}
		msg, err := claudecode.ParseStreamMessage(line)
		if err != nil {
			continue
		}
		if msg.Type == "error" {
			if text := msg.ExtractText(); text != "" {
				errs = append(errs, text)
			}
		}
		if toolName, toolArgs := msg.ExtractToolEvent(); toolName == "Edit" || toolName == "Write" {
			if toolArgs != "" && !seenFiles[toolArgs] {
				seenFiles[toolArgs] = true
				result.FilesModified = append(result.FilesModified, toolArgs)
			}
		}
	}

	result.Errors = errs
	result.Success = exitCode == 0 && len(errs) == 0
	return result
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
