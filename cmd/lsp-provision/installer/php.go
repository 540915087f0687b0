package installer

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// composerManifest is the composer.json written into the working directory.
type composerManifest struct {
	Require          map[string]string `json:"require"`
	MinimumStability string            `json:"minimum-stability"`
	PreferStable     bool              `json:"prefer-stable"`
}

// PHPInstaller provides phpactor through composer in a throwaway project.
type PHPInstaller struct {
	cfg       config.PHP
	component Component
	// copiedProxy is set when the artifact is composer's vendor/bin proxy
	// copied out of a working directory that no longer exists.
	copiedProxy bool
}

// NewPHPInstaller creates the phpactor installer.
func NewPHPInstaller(cfg config.PHP) *PHPInstaller {
	return &PHPInstaller{
		cfg: cfg,
		component: Component{
			Name:       config.ComponentPHP,
			Command:    "phpactor",
			Artifact:   "phpactor",
			Constraint: cfg.Package + " " + cfg.Constraint,
			Candidates: []SearchCandidate{
				OnPath("phpactor"),
				At("/usr/local/bin/phpactor"),
				InUserBin("phpactor"),
			},
		},
	}
}

func (p *PHPInstaller) Name() string         { return p.component.Name }
func (p *PHPInstaller) Component() Component { return p.component }

func (p *PHPInstaller) Check(ctx context.Context, env *Environment) (bool, string, error) {
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

func (p *PHPInstaller) Install(ctx context.Context, env *Environment) error {
	name := p.component.Name
	p.copiedProxy = false

	// a global phpactor keeps its vendor tree, so it is linked rather than copied
	if src, ok := existingInstall(ctx, env, p.component.Candidates); ok {
		env.Logger.Info("reusing installed server", "path", src)
		env.report(name, PhaseLinking, "linking "+src)
		return linkExecutable(env.FS, src, p.component.ArtifactPath(env))
	}

	if err := env.ensureTool(ctx, "php", p.cfg.Packages...); err != nil {
		return err
	}
	if err := env.ensureTool(ctx, "composer", "composer"); err != nil {
		return err
	}

	if err := env.FS.MkdirAll(env.TempDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", env.TempDir)
	}
	workdir, err := util.TempDir(env.FS, env.TempDir, "phpactor-")
	if err != nil {
		return errors.Wrap(err, "create composer working directory")
	}
	defer func() {
		if err := util.RemoveAll(env.FS, workdir); err != nil {
			env.Logger.Warn("composer working directory not removed", "dir", workdir, "error", err.Error())
		}
	}()

	if err := p.writeManifest(env, workdir); err != nil {
		return err
	}

	env.report(name, PhaseInstalling, "composer install "+p.cfg.Package)
	spec := runner.Command("composer", "install", "--no-interaction", "--no-dev").InDir(workdir)
	if _, err := env.Must(ctx, spec); err != nil {
		return errors.Wrapf(err, "composer install %s", p.cfg.Package)
	}

	src := filepath.Join(workdir, "vendor", "bin", "phpactor")
	if !exists(env.FS, src) {
		return errors.Wrapf(errors.ErrNotFound, "%s not produced by composer", src)
	}

	env.report(name, PhaseLinking, "copying phpactor into "+env.DestDir)
	if err := copyExecutable(env.FS, src, p.component.ArtifactPath(env)); err != nil {
		return err
	}
	p.copiedProxy = true
	return nil
}

// Note warns that the copied composer proxy resolves its vendor tree
// relative to itself.
func (p *PHPInstaller) Note() string {
	if !p.copiedProxy {
		return ""
	}
	return "phpactor was copied from a removed composer project; if it fails to start, install it globally (composer global require phpactor/phpactor) and rerun"
}

func (p *PHPInstaller) Validate(ctx context.Context, env *Environment) error {
	return verifyArtifact(env, p.component)
}

func (p *PHPInstaller) writeManifest(env *Environment, workdir string) error {
	data, err := json.MarshalIndent(composerManifest{
		Require:          map[string]string{p.cfg.Package: p.cfg.Constraint},
		MinimumStability: "dev",
		PreferStable:     true,
	}, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode composer.json")
	}
	path := filepath.Join(workdir, "composer.json")
	if err := util.WriteFile(env.FS, path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
