// Package executor spawns a single agent invocation (implement or review
// phase), enforcing the per-invocation timeout and writing the combined
// log file, per spec §4.5.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kittify/orchestrator/internal/agentcli/subprocess"
	"github.com/kittify/orchestrator/internal/logging"
	"github.com/kittify/orchestrator/internal/orchestration/agents"
)

// Request bundles everything the Executor needs for a single invocation.
type Request struct {
	WPID       string
	Invoker    agents.Invoker
	PromptPath string
	WorkingDir string
	Role       agents.Role
	Timeout    time.Duration
	LogPath    string
}

// Executor spawns agent subprocesses and classifies their output.
type Executor struct {
	logger logging.Logger
	tracer Tracer
}

// New returns an Executor. tracer may be nil, in which case spans are
// no-ops (see tracing.go).
func New(tracer Tracer) *Executor {
	return &Executor{
		logger: logging.NewComponentLogger("executor"),
		tracer: orNopTracer(tracer),
	}
}

// Run spawns req.Invoker's command, feeds the prompt, waits up to
// req.Timeout, writes the log file, and returns the classified result.
// No process ever leaves this function alive: every exit path reaps the
// child or kills then reaps it.
func (e *Executor) Run(ctx context.Context, req Request) (agents.InvocationResult, error) {
	span := e.tracer.StartSpan(ctx, req.WPID, req.Invoker.AgentID(), req.Role)
	defer span.End()

	promptContent, err := os.ReadFile(req.PromptPath)
	if err != nil {
		return agents.InvocationResult{}, fmt.Errorf("executor: read prompt %s: %w", req.PromptPath, err)
	}

	argv := req.Invoker.BuildCommand(req.Role, req.WorkingDir, req.PromptPath)
	if len(argv) == 0 {
		return agents.InvocationResult{}, fmt.Errorf("executor: invoker %s returned empty argv", req.Invoker.AgentID())
	}

	proc := subprocess.New(subprocess.Config{
		Command:    argv[0],
		Args:       argv[1:],
		WorkingDir: req.WorkingDir,
		Timeout:    req.Timeout,
	})

	start := time.Now()
	if err := proc.Start(ctx); err != nil {
		span.SetAttribute("exit_code", -1)
		return agents.InvocationResult{
			Success: false,
			Errors:  []string{fmt.Sprintf("spawn failed: %v", err)},
		}, fmt.Errorf("executor: spawn %s: %w", req.Invoker.Command(), err)
	}

	if req.Invoker.UsesStdin() {
		if err := proc.Write(promptContent); err != nil {
			e.logger.Warn("executor: write prompt to stdin: %v", err)
		}
		if err := proc.CloseStdin(); err != nil {
			e.logger.Warn("executor: close stdin: %v", err)
		}
	}

	var stdout, stderr []byte
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		stdout, _ = io.ReadAll(proc.Stdout())
		stderr, _ = io.ReadAll(proc.Stderr())
	}()

	waitErr := proc.Wait()
	<-drainDone
	duration := time.Since(start)

	exitCode := proc.ExitCode()
	switch {
	case proc.TimedOut():
		exitCode = agents.TimeoutExitCode
	case ctx.Err() != nil:
		exitCode = agents.CancelledExitCode
	case exitCode < 0 && waitErr != nil:
		exitCode = agents.TimeoutExitCode
	}

	if err := e.writeLog(req, exitCode, duration, stdout, stderr); err != nil {
		e.logger.Warn("executor: write log %s: %v", req.LogPath, err)
	}

	result := req.Invoker.ParseOutput(stdout, stderr, exitCode, duration)
	switch {
	case proc.TimedOut():
		result.Success = false
		result.ExitCode = agents.TimeoutExitCode
		result.Stderr = strings.TrimSpace(result.Stderr + "\ntimeout: invocation exceeded " + req.Timeout.String())
	case exitCode == agents.CancelledExitCode:
		result.Success = false
		result.ExitCode = agents.CancelledExitCode
		result.Stderr = strings.TrimSpace(result.Stderr + "\ncancelled: " + ctx.Err().Error())
	}
	result.DurationSeconds = duration.Seconds()

	span.SetAttribute("exit_code", result.ExitCode)
	return result, nil
}

func (e *Executor) writeLog(req Request, exitCode int, duration time.Duration, stdout, stderr []byte) error {
	if req.LogPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(req.LogPath), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "agent_id=%s role=%s exit_code=%d duration=%s\n", req.Invoker.AgentID(), req.Role, exitCode, duration)
	b.WriteString("--- STDOUT ---\n")
	b.Write(stdout)
	b.WriteString("\n--- STDERR ---\n")
	b.Write(stderr)
	return os.WriteFile(req.LogPath, []byte(b.String()), 0o644)
}
