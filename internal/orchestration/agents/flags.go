package agents

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/kittify/orchestrator/internal/orcherrors"
)

// roleLabel returns the phase name as a plain string ("implementation" or
// "review"); it is the same for every agent.
func roleLabel(role Role) string {
	return string(role)
}

// genericInvoker covers the common case: a headless flag, a JSON-output
// flag, and an autonomous-confirmation flag, with prompt on stdin.
type genericInvoker struct {
	id          string
	command     string
	usesStdin   bool
	buildArgv   func(role Role, workingDir, promptPath string) []string
	parseOutput func(stdout, stderr []byte, exitCode int, durationSeconds float64) InvocationResult
	installer   *installProbe
}

func (g *genericInvoker) AgentID() string  { return g.id }
func (g *genericInvoker) Command() string  { return g.command }
func (g *genericInvoker) UsesStdin() bool  { return g.usesStdin }

func (g *genericInvoker) BuildCommand(role Role, workingDir, promptPath string) []string {
	return g.buildArgv(role, workingDir, promptPath)
}

func (g *genericInvoker) ParseOutput(stdout, stderr []byte, exitCode int, duration time.Duration) InvocationResult {
	return g.parseOutput(stdout, stderr, exitCode, duration.Seconds())
}

func (g *genericInvoker) IsInstalled() bool {
	return g.installer.isInstalled(g.command)
}

// installProbe wraps exec.LookPath with a circuit breaker so a flapping
// PATH lookup (e.g. a network-mounted binary) doesn't re-stat the
// filesystem on every scheduler tick.
type installProbe struct {
	breaker *orcherrors.CircuitBreaker
}

func newInstallProbe(name string) *installProbe {
	return &installProbe{breaker: orcherrors.NewCircuitBreaker(
		fmt.Sprintf("install-probe:%s", name),
		orcherrors.DefaultCircuitBreakerConfig(),
	)}
}

func (p *installProbe) isInstalled(command string) bool {
	if p.breaker.Allow() != nil {
		return false
	}
	_, err := exec.LookPath(command)
	p.breaker.Mark(err)
	return err == nil
}
