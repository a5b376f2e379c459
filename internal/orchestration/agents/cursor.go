package agents

import "strconv"

// cursorWrapTimeoutSeconds bounds how long the external timeout wrapper
// lets the Cursor CLI run before killing it; this is independent of the
// Executor's own per-invocation timeout (whose synthesized default is also
// 600 seconds), since Cursor is known to hang even when it would otherwise
// have succeeded.
const cursorWrapTimeoutSeconds = 600

// newCursor builds the Cursor invoker. Its CLI is known to hang, so every
// invocation is prepended with a platform timeout wrapper; when the
// wrapper kills the child it exits 124, which parseOutput below maps onto
// TimeoutExitCode so the Monitor treats it identically to an
// Executor-enforced timeout (§4.4's Cursor special case, §8's boundary
// behavior for exit 124 with no timer having actually fired).
func newCursor() Invoker {
	return &genericInvoker{
		id:        "cursor",
		command:   "cursor-agent",
		usesStdin: true,
		installer: newInstallProbe("cursor"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"timeout", strconv.Itoa(cursorWrapTimeoutSeconds),
				"cursor-agent",
				"--print",
				"--output-format", "json",
				"--force",
			}
		},
		parseOutput: parseCursorOutput,
	}
}

func parseCursorOutput(stdout, stderr []byte, exitCode int, durationSeconds float64) InvocationResult {
	if exitCode == 124 {
		exitCode = TimeoutExitCode
	}
	return parseJSONLines(stdout, stderr, exitCode, durationSeconds)
}
