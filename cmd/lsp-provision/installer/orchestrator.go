package installer

import (
	"context"
	"fmt"
	"time"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
)

// Summary is the result of an install run.
type Summary struct {
	Outcomes       []InstallationOutcome
	DestDir        string
	ShellRC        string
	PathRegistered bool
	// Halted names the component whose failure stopped the run.
	Halted   string
	Duration time.Duration
}

// Registrar puts the destination directory on the user's PATH.
type Registrar interface {
	Register(env *Environment) (bool, error)
}

// Orchestrator runs the installers in order, stopping at the first failure.
type Orchestrator struct {
	env        *Environment
	installers []Installer
	registrar  Registrar
	force      bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithForce reinstalls components that are already satisfied.
func WithForce(force bool) Option {
	return func(o *Orchestrator) { o.force = force }
}

// WithRegistrar replaces the shell startup file registrar.
func WithRegistrar(r Registrar) Option {
	return func(o *Orchestrator) { o.registrar = r }
}

// NewOrchestrator creates a new installation orchestrator.
func NewOrchestrator(env *Environment, installers []Installer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		env:        env,
		installers: installers,
		registrar:  NewPathRegistrar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultInstallers returns the four installers in their fixed order,
// without the components cfg skips.
func DefaultInstallers(cfg config.Config, fetcher ArchiveFetcher) []Installer {
	all := []Installer{
		NewPythonInstaller(cfg.Python),
		NewJavaInstaller(cfg.Java, fetcher),
		NewPHPInstaller(cfg.PHP),
		NewTypeScriptInstaller(cfg.TypeScript, fetcher, cfg.AllowRuntimeRemoval),
	}
	out := make([]Installer, 0, len(all))
	for _, inst := range all {
		if !cfg.Skips(inst.Name()) {
			out = append(out, inst)
		}
	}
	return out
}

// SetProgressCallback sets the progress callback for real-time updates.
func (o *Orchestrator) SetProgressCallback(callback ProgressCallback) {
	o.env.progress = callback
}

// Installers returns the installers in run order.
func (o *Orchestrator) Installers() []Installer {
	return o.installers
}

// Check verifies the status of all components without changing anything.
func (o *Orchestrator) Check(ctx context.Context) ([]InstallationOutcome, error) {
	outcomes := make([]InstallationOutcome, 0, len(o.installers))

	for _, inst := range o.installers {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		start := time.Now()
		o.env.report(inst.Name(), PhaseChecking, "checking")

		ok, version, err := inst.Check(ctx, o.env)
		outcome := InstallationOutcome{
			Component: inst.Name(),
			Version:   version,
			Duration:  time.Since(start),
		}
		switch {
		case err != nil:
			outcome.State = StateFailed
			outcome.Err = err
			outcome.Message = fmt.Sprintf("Check failed: %v", err)
			outcome.ErrorContext = AnalyzeError(inst.Name(), "check", err, GetDocumentationURL(inst.Name()))
		case ok:
			outcome.State = StateAlreadySatisfied
			outcome.Path = inst.Component().ArtifactPath(o.env)
			outcome.Message = "Already installed"
		default:
			outcome.State = StateMissing
			outcome.Message = "Not installed"
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// Run ensures every component in order. The first failure stops the run:
// later installers and the PATH registration are not attempted and the
// error is returned with the partial summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{DestDir: o.env.DestDir, ShellRC: o.env.ShellRC}
	defer func() { summary.Duration = time.Since(start) }()

	if err := EnsureInstallDir(o.env.FS, o.env.DestDir); err != nil {
		return summary, err
	}

	for _, inst := range o.installers {
		outcome, err := Ensure(ctx, inst, o.env, o.force)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if err != nil {
			summary.Halted = inst.Name()
			o.env.Logger.Err(err, "component", inst.Name())
			return summary, errors.Wrapf(err, "%s", inst.Name())
		}
	}

	changed, err := o.registrar.Register(o.env)
	if err != nil {
		return summary, errors.Wrap(err, "register destination directory")
	}
	summary.PathRegistered = changed
	return summary, nil
}

// Ensure brings one component to a usable state: an already satisfied
// component is left alone unless force is set, anything else is installed
// and validated.
func Ensure(ctx context.Context, inst Installer, env *Environment, force bool) (InstallationOutcome, error) {
	start := time.Now()
	name := inst.Name()
	outcome := InstallationOutcome{Component: name, Path: inst.Component().ArtifactPath(env)}

	fail := func(phase string, err error) (InstallationOutcome, error) {
		env.report(name, PhaseFailed, err.Error())
		outcome.State = StateFailed
		outcome.Err = err
		outcome.Message = fmt.Sprintf("%s failed: %v", phase, err)
		outcome.ErrorContext = AnalyzeError(name, phase, err, GetDocumentationURL(name))
		outcome.Duration = time.Since(start)
		return outcome, err
	}

	if err := ctx.Err(); err != nil {
		return fail("install", err)
	}

	env.report(name, PhaseChecking, "checking")
	ok, version, err := inst.Check(ctx, env)
	if err != nil {
		return fail("check", err)
	}
	if ok && !force {
		env.Logger.Info("component already satisfied", "component", name, "version", version)
		env.report(name, PhaseCompleted, "already installed")
		outcome.State = StateAlreadySatisfied
		outcome.Version = version
		outcome.Message = "Already installed"
		outcome.Duration = time.Since(start)
		return outcome, nil
	}

	env.report(name, PhaseInstalling, "installing")
	if err := inst.Install(ctx, env); err != nil {
		return fail("install", err)
	}

	env.report(name, PhaseValidating, "validating")
	if err := inst.Validate(ctx, env); err != nil {
		return fail("validate", err)
	}

	if _, v, err := inst.Check(ctx, env); err == nil {
		version = v
	}
	if n, ok := inst.(Noter); ok {
		outcome.Note = n.Note()
	}
	env.report(name, PhaseCompleted, "installed")
	outcome.State = StateInstalled
	outcome.Version = version
	outcome.Message = "Successfully installed"
	outcome.Duration = time.Since(start)
	return outcome, nil
}
