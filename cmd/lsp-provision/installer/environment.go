package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/logx"
	"lspprovision/internal/platform/runner"
)

// Filesystem is the filesystem the installers read and write.
type Filesystem = billy.Filesystem

// Environment is the installers' view of the workstation.
type Environment struct {
	FS     Filesystem
	Runner runner.Runner
	Logger logx.Logger

	Home        string
	PathEntries []string
	DestDir     string
	ShellRC     string
	TempDir     string
	// UserBinDir is the per-user binary directory (~/.local/bin).
	UserBinDir string

	// Setenv updates the process environment; nil in tests.
	Setenv func(key, value string) error

	progress       ProgressCallback
	indexRefreshed bool
}

// DetectEnvironment builds the production environment: the real root
// filesystem, the exec runner and the process PATH.
func DetectEnvironment(cfg config.Config, logger logx.Logger) (*Environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}

	var opts []runner.Option
	opts = append(opts, runner.WithSudo(cfg.UseSudo))
	if cfg.Verbose && !cfg.Quiet {
		opts = append(opts, runner.WithStream(os.Stderr))
	}

	env := &Environment{
		FS:          osfs.New("/"),
		Runner:      runner.NewExecRunner(logger, opts...),
		Logger:      logger,
		Home:        home,
		PathEntries: filepath.SplitList(os.Getenv("PATH")),
		DestDir:     cfg.DestDir,
		ShellRC:     cfg.ShellRC,
		TempDir:     os.TempDir(),
		UserBinDir:  xdg.BinHome,
		Setenv:      os.Setenv,
	}

	logger.Debug("environment detected",
		"home", env.Home,
		"dest_dir", env.DestDir,
		"shell_rc", env.ShellRC,
		"path_entries", len(env.PathEntries),
	)
	return env, nil
}

// Must runs a mandatory step. Any failure is returned and is fatal for the
// component.
func (e *Environment) Must(ctx context.Context, spec runner.CommandSpec) (*runner.Result, error) {
	res, err := e.Runner.Run(ctx, spec)
	if err == nil {
		return res, nil
	}
	if !errors.IsCommandFailed(err) {
		err = &runner.CommandError{Spec: spec, ExitCode: -1, Err: err}
	}
	return res, err
}

// Query runs a step that is expected to fail when something is absent. It
// returns the combined output and whether the command succeeded. Programs
// that cannot be located are not run at all.
func (e *Environment) Query(ctx context.Context, spec runner.CommandSpec) (string, bool) {
	if !e.resolvable(ctx, spec.Program) {
		e.Logger.Debug("query skipped, program absent", "program", spec.Program)
		return "", false
	}

	res, err := e.Runner.Run(ctx, spec)
	out := ""
	if res != nil {
		out = res.Combined
	}
	if err != nil {
		e.Logger.Debug("query failed", "command", spec.String(), "error", err.Error())
		return out, false
	}
	e.Logger.Debug("query succeeded", "command", spec.String())
	return out, true
}

func (e *Environment) resolvable(ctx context.Context, program string) bool {
	if filepath.IsAbs(program) {
		return exists(e.FS, program)
	}
	_, err := e.Locate(ctx, OnPath(program))
	return err == nil
}

// PrependPath puts dir first on the session PATH if it is not there yet.
func (e *Environment) PrependPath(dir string) {
	for _, p := range e.PathEntries {
		if filepath.Clean(p) == filepath.Clean(dir) {
			return
		}
	}
	e.PathEntries = append([]string{dir}, e.PathEntries...)
	if e.Setenv != nil {
		if err := e.Setenv("PATH", strings.Join(e.PathEntries, string(os.PathListSeparator))); err != nil {
			e.Logger.Warn("could not update process PATH", "error", err.Error())
		}
	}
}

// OnSessionPath reports whether dir is already on the session PATH.
func (e *Environment) OnSessionPath(dir string) bool {
	for _, p := range e.PathEntries {
		if filepath.Clean(p) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func (e *Environment) report(component string, phase InstallationPhase, message string) {
	e.Logger.Debug("phase", "component", component, "phase", string(phase), "message", message)
	if e.progress != nil {
		e.progress(component, phase, message)
	}
}
