package agents

// The remaining agents share the generic headless/JSON-lines shape; each
// differs only in its executable name and its specific flag spelling for
// headless mode, JSON output, and autonomous confirmation.

func newCodex() Invoker {
	return &genericInvoker{
		id:        "codex",
		command:   "codex",
		usesStdin: true,
		installer: newInstallProbe("codex"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"codex", "exec",
				"--json",
				"--full-auto",
				"--cd", workingDir,
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newCopilot() Invoker {
	return &genericInvoker{
		id:        "copilot",
		command:   "gh",
		usesStdin: true,
		installer: newInstallProbe("copilot"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"gh", "copilot", "suggest",
				"--json",
				"--yes",
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newGemini() Invoker {
	return &genericInvoker{
		id:        "gemini",
		command:   "gemini",
		usesStdin: true,
		installer: newInstallProbe("gemini"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"gemini",
				"--output-format", "json",
				"--yolo",
				"--include-directories", workingDir,
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newQwen() Invoker {
	return &genericInvoker{
		id:        "qwen",
		command:   "qwen",
		usesStdin: true,
		installer: newInstallProbe("qwen"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"qwen",
				"--output-format", "json",
				"--yolo",
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newOpencode() Invoker {
	return &genericInvoker{
		id:        "opencode",
		command:   "opencode",
		usesStdin: true,
		installer: newInstallProbe("opencode"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"opencode", "run",
				"--print-logs",
				"--format", "json",
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newKilocode() Invoker {
	return &genericInvoker{
		id:        "kilocode",
		command:   "kilocode",
		usesStdin: true,
		installer: newInstallProbe("kilocode"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"kilocode", "run",
				"--non-interactive",
				"--json",
			}
		},
		parseOutput: parseJSONLines,
	}
}

func newAugment() Invoker {
	return &genericInvoker{
		id:        "augment",
		command:   "auggie",
		usesStdin: true,
		installer: newInstallProbe("augment"),
		buildArgv: func(role Role, workingDir, promptPath string) []string {
			return []string{
				"auggie",
				"--print",
				"--format", "json",
			}
		},
		parseOutput: parseJSONLines,
	}
}
