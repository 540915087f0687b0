// Package main implements the lsp-provision CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"lspprovision/cmd/lsp-provision/installer"
	"lspprovision/cmd/lsp-provision/providers"
	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/logx"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app holds the process boundaries so the whole CLI can run in tests.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// detect builds the workstation environment.
	detect func(cfg config.Config, logger logx.Logger) (*installer.Environment, error)
	// fetcher downloads remote artifacts; nil means the default provider.
	fetcher installer.ArchiveFetcher
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, detect: installer.DetectEnvironment}
}

// run executes the CLI and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	cfg, err := config.LoadWithOutput(args, a.stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(a.stderr, "lsp-provision: %v\n", err)
		return exitUsage
	}

	if cfg.ShowVersion {
		fmt.Fprint(a.stdout, config.VersionString(version, commit, date))
		return exitOK
	}

	logger := newLogger(cfg, a.stderr)

	if err := a.provision(ctx, cfg, logger); err != nil {
		if !cfg.Quiet {
			fmt.Fprintf(a.stderr, "\n❌ Provisioning failed: %v\n\n", err)
		}
		logger.Err(err, "stage", "run")
		return exitFailed
	}
	return exitOK
}

func newLogger(cfg config.Config, w io.Writer) logx.Logger {
	switch {
	case cfg.Verbose:
		return logx.NewWithWriter(w, logx.LevelDebug)
	case cfg.Quiet:
		return logx.NewWithWriter(w, logx.LevelError)
	case os.Getenv(logx.EnvLevel) != "":
		return logx.NewWithWriter(w, logx.ParseLevel(os.Getenv(logx.EnvLevel)))
	default:
		return logx.NewWithWriter(w, logx.LevelWarn)
	}
}

// provision executes the main provisioning logic.
func (a *app) provision(ctx context.Context, cfg config.Config, logger logx.Logger) error {
	started := time.Now()
	if dump, err := cfg.ToYAML(); err == nil {
		logger.Debug("effective configuration", "config", dump)
	}

	env, err := a.detect(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "detect environment")
	}

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = providers.NewArchiveProvider(providers.WithLogger(logger))
	}
	orch := installer.NewOrchestrator(env, installer.DefaultInstallers(cfg, fetcher), installer.WithForce(cfg.Force))

	presenter := installer.NewPresenter(a.stdout, cfg.Quiet)
	orch.SetProgressCallback(presenter.ShowProgress)

	if cfg.CheckOnly {
		return runCheckMode(ctx, orch, presenter, logger)
	}
	return a.runInstallMode(ctx, cfg, env, orch, presenter, logger, started)
}

// runCheckMode reports component status without installing anything. A
// check that errors fails the run; missing components do not.
func runCheckMode(ctx context.Context, orch *installer.Orchestrator, presenter *installer.Presenter, logger logx.Logger) error {
	logger.Debug("checking language servers (check-only mode)")

	outcomes, err := orch.Check(ctx)
	if err != nil {
		return errors.Wrap(err, "check failed")
	}
	presenter.ShowCheckResults(outcomes)

	stats := calculateStats(outcomes)
	logger.Debug("check completed", "satisfied", stats.Success, "missing", stats.Missing, "failed", stats.Failed)
	if stats.Failed > 0 {
		return errors.Errorf("%d component checks failed", stats.Failed)
	}
	return nil
}

// runInstallMode ensures every component and registers the destination.
func (a *app) runInstallMode(ctx context.Context, cfg config.Config, env *installer.Environment, orch *installer.Orchestrator, presenter *installer.Presenter, logger logx.Logger, started time.Time) error {
	presenter.ShowHeader(version)

	components := make([]installer.Component, 0, len(orch.Installers()))
	for _, inst := range orch.Installers() {
		components = append(components, inst.Component())
	}
	presenter.ShowPlan(components, cfg.DestDir)

	summary, runErr := orch.Run(ctx)

	if !cfg.Quiet {
		fmt.Fprintln(a.stdout)
	}
	for _, o := range summary.Outcomes {
		presenter.ShowResult(o)
	}
	presenter.ShowSummary(summary, runErr)

	if cfg.ReportPath != "" {
		report := installer.NewRunReport(version, started, summary, runErr)
		if err := installer.WriteReport(env.FS, cfg.ReportPath, report); err != nil {
			logger.Warn("run report not written", "path", cfg.ReportPath, "error", err.Error())
		} else {
			logger.Info("run report written", "path", cfg.ReportPath)
		}
	}

	stats := calculateStats(summary.Outcomes)
	logger.Debug("provisioning completed",
		"duration", summary.Duration,
		"success", stats.Success,
		"failed", stats.Failed,
	)
	return runErr
}

// Stats holds per-state outcome counts.
type Stats struct {
	Total   int
	Success int
	Missing int
	Failed  int
}

// calculateStats computes statistics from outcomes.
func calculateStats(outcomes []installer.InstallationOutcome) Stats {
	stats := Stats{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.State {
		case installer.StateInstalled, installer.StateAlreadySatisfied:
			stats.Success++
		case installer.StateMissing:
			stats.Missing++
		case installer.StateFailed:
			stats.Failed++
		}
	}
	return stats
}
