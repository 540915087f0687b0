package installer

import (
	"context"
	"path/filepath"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// PythonInstaller provides pylsp, trying the distribution package first
// and pip afterwards.
type PythonInstaller struct {
	cfg       config.Python
	component Component
}

// NewPythonInstaller creates the pylsp installer.
func NewPythonInstaller(cfg config.Python) *PythonInstaller {
	return &PythonInstaller{
		cfg: cfg,
		component: Component{
			Name:       config.ComponentPython,
			Command:    "pylsp",
			Artifact:   "pylsp",
			Constraint: "python3",
			Candidates: []SearchCandidate{
				OnPath("pylsp"),
				At("/usr/bin/pylsp"),
				At("/usr/local/bin/pylsp"),
				InUserBin("pylsp"),
			},
		},
	}
}

func (p *PythonInstaller) Name() string         { return p.component.Name }
func (p *PythonInstaller) Component() Component { return p.component }

// Check reports satisfied when the artifact is executable and answers
// --version.
func (p *PythonInstaller) Check(ctx context.Context, env *Environment) (bool, string, error) {
	path := p.component.ArtifactPath(env)
	if ok, _ := IsExecutable(env.FS, path); !ok {
		return false, "", nil
	}
	out, ok := env.Query(ctx, runner.Command(path, "--version"))
	if !ok {
		return false, "", nil
	}
	return true, ExtractVersion(out), nil
}

func (p *PythonInstaller) Install(ctx context.Context, env *Environment) error {
	name := p.component.Name

	if src, ok := existingInstall(ctx, env, p.component.Candidates); ok {
		env.Logger.Info("reusing installed server", "path", src)
		env.report(name, PhaseLinking, "copying "+filepath.Base(src)+" into "+env.DestDir)
		return copyExecutable(env.FS, src, p.component.ArtifactPath(env))
	}

	if err := env.ensureTool(ctx, "python3", "python3", "python3-pip"); err != nil {
		return err
	}
	if err := env.ensureTool(ctx, "pip3", "python3-pip"); err != nil {
		return err
	}

	// Externally managed interpreters (PEP 668) refuse a plain pip upgrade,
	// so an outdated pip is tolerated.
	if used, err := env.RunStrategies(ctx, "pip", p.pipUpgradeStrategies()); err != nil {
		env.Logger.Warn("pip upgrade skipped", "error", err.Error())
	} else {
		env.Logger.Debug("pip upgraded", "strategy", used)
	}

	if err := env.refreshIndex(ctx, false); err != nil {
		return err
	}

	env.report(name, PhaseInstalling, "installing python-lsp-server")
	used, err := env.RunStrategies(ctx, name, p.strategies())
	if err != nil {
		return errors.Wrapf(err, "all install strategies failed for %s", name)
	}
	env.Logger.Info("pylsp installed", "strategy", used)

	src, err := env.Locate(ctx, p.component.Candidates...)
	if err != nil {
		return errors.Wrapf(err, "pylsp not found after %s install", used)
	}
	if ok, err := IsExecutable(env.FS, src); err != nil || !ok {
		return errors.Wrapf(errors.ErrNotExecutable, "%s", src)
	}

	env.report(name, PhaseLinking, "copying "+filepath.Base(src)+" into "+env.DestDir)
	return copyExecutable(env.FS, src, p.component.ArtifactPath(env))
}

func (p *PythonInstaller) Validate(ctx context.Context, env *Environment) error {
	return verifyArtifact(env, p.component)
}

func (p *PythonInstaller) strategies() []InstallStrategy {
	pkg := p.cfg.PipPackage
	return []InstallStrategy{
		{Name: "apt", Spec: runner.Privileged("apt-get", "install", "-y", p.cfg.AptPackage)},
		{Name: "pip", Spec: runner.Privileged("pip3", "install", pkg)},
		{Name: "pip-break-system-packages", Spec: runner.Privileged("pip3", "install", "--break-system-packages", pkg)},
		{Name: "pip-user", Spec: runner.Command("pip3", "install", "--user", pkg)},
	}
}

func (p *PythonInstaller) pipUpgradeStrategies() []InstallStrategy {
	return []InstallStrategy{
		{Name: "pip", Spec: runner.Command("python3", "-m", "pip", "install", "--upgrade", "pip")},
		{Name: "pip-user", Spec: runner.Command("python3", "-m", "pip", "install", "--user", "--upgrade", "pip")},
	}
}
