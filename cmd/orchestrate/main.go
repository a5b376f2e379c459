// Command orchestrate drives the autonomous multi-agent orchestrator: it
// starts, inspects, resumes, and aborts feature runs (spec §4.9, §6.6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kittify/orchestrator/internal/logging"
	"github.com/kittify/orchestrator/internal/orchestration/executor"
	"github.com/kittify/orchestrator/internal/orchestration/lifecycle"
	"github.com/kittify/orchestrator/internal/orchestration/scheduler"
	"github.com/kittify/orchestrator/internal/orchestration/state"
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		repoRoot     string
		logLevel     string
		otlpEndpoint string
	)

	root := &cobra.Command{
		Use:           "orchestrate",
		Short:         "run the autonomous multi-agent orchestrator against a feature's work packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Configure(logging.Config{
				Level:  logLevel,
				Format: "auto",
			})
			color.NoColor = !isTTY()
		},
	}
	root.PersistentFlags().StringVar(&repoRoot, "repo", ".", "repository root")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector endpoint for trace export (optional)")

	root.AddCommand(newStartCommand(&repoRoot, &otlpEndpoint))
	root.AddCommand(newStatusCommand(&repoRoot))
	root.AddCommand(newResumeCommand(&repoRoot, &otlpEndpoint))
	root.AddCommand(newAbortCommand(&repoRoot))

	return root
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so an
// in-flight scheduler loop gets a chance to mark the run failed and persist
// it instead of being killed mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func newTracer(ctx context.Context, endpoint string) (executor.Tracer, func(context.Context) error, error) {
	if endpoint == "" {
		return nil, func(context.Context) error { return nil }, nil
	}
	shutdown, err := executor.ConfigureOTLP(ctx, endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("configure otlp: %w", err)
	}
	return executor.NewOTelTracer(), shutdown, nil
}

func newStartCommand(repoRoot, otlpEndpoint *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start <feature-slug>",
		Short: "start a new run over a feature's work packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			tracer, shutdown, err := newTracer(ctx, *otlpEndpoint)
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			registry := newMetricsRegistry()
			metrics := scheduler.MustNewMetrics(registry)
			runner := lifecycle.New(*repoRoot, tracer, metrics)

			if err := runner.Start(ctx, args[0]); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			return printStatus(*repoRoot, runner)
		},
	}
}

func newResumeCommand(repoRoot, otlpEndpoint *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <feature-slug>",
		Short: "resume a paused run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			tracer, shutdown, err := newTracer(ctx, *otlpEndpoint)
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			registry := newMetricsRegistry()
			metrics := scheduler.MustNewMetrics(registry)
			runner := lifecycle.New(*repoRoot, tracer, metrics)

			if err := runner.Resume(ctx, args[0]); err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			return printStatus(*repoRoot, runner)
		},
	}
}

func newStatusCommand(repoRoot *string) *cobra.Command {
	var watch bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "report the active run's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := lifecycle.New(*repoRoot, nil, nil)
			if !watch {
				return printStatus(*repoRoot, runner)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				fmt.Print("\033[H\033[2J")
				if err := printStatus(*repoRoot, runner); err != nil {
					return err
				}
				<-ticker.C
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-read and redraw the status on an interval")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "redraw interval when --watch is set")
	return cmd
}

func newAbortCommand(repoRoot *string) *cobra.Command {
	var cleanupWorktrees bool
	cmd := &cobra.Command{
		Use:   "abort",
		Short: "abort the active run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := lifecycle.New(*repoRoot, nil, nil)
			if err := runner.Abort(context.Background(), cleanupWorktrees); err != nil {
				return fmt.Errorf("abort: %w", err)
			}
			fmt.Println("run aborted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanupWorktrees, "cleanup-worktrees", false, "remove all worktrees created by this run")
	return cmd
}

func printStatus(repoRoot string, runner *lifecycle.Runner) error {
	status, err := runner.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	fmt.Printf("run %s (%s): %s\n", status.RunID, status.FeatureSlug, status.Status)
	fmt.Printf("  work packages: %d total, %d completed, %d failed\n", status.WPsTotal, status.WPsCompleted, status.WPsFailed)
	for _, wp := range status.InFlight {
		fmt.Printf("  in flight: %s (%s, agent=%s, elapsed=%s)\n", wp.WPID, wp.Phase, wp.AgentID, wp.Elapsed.Round(1e9))
	}

	if status.Status == state.RunPaused && len(status.Failed) > 0 {
		store := state.New(repoRoot)
		run, err := store.Load()
		if err != nil {
			return nil
		}
		if panel := renderEscalationPanel(status, run); panel != "" {
			fmt.Println()
			fmt.Println(panel)
		}
	}
	return nil
}
