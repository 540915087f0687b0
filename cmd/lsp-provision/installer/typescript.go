package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

const tsServer = "typescript-language-server"

// TypeScriptInstaller provides typescript-language-server from the npm
// registry on top of a Node.js runtime of at least the minimum major.
type TypeScriptInstaller struct {
	cfg          config.TypeScript
	gate         VersionGate
	fetcher      ArchiveFetcher
	allowRemoval bool
	component    Component
}

// NewTypeScriptInstaller creates the TypeScript installer. allowRemoval
// permits removing an outdated distribution Node.js.
func NewTypeScriptInstaller(cfg config.TypeScript, fetcher ArchiveFetcher, allowRemoval bool) *TypeScriptInstaller {
	return &TypeScriptInstaller{
		cfg:          cfg,
		gate:         MinimumMajor(cfg.MinimumMajor),
		fetcher:      fetcher,
		allowRemoval: allowRemoval,
		component: Component{
			Name:       config.ComponentTypeScript,
			Command:    tsServer,
			Artifact:   tsServer,
			Constraint: fmt.Sprintf("node >= %d", cfg.MinimumMajor),
			Candidates: []SearchCandidate{
				OnPath(tsServer),
				At(filepath.Join("/usr/local/bin", tsServer)),
				At(filepath.Join("/usr/bin", tsServer)),
				At(filepath.Join(cfg.NpmGlobalBin, tsServer)),
			},
		},
	}
}

func (t *TypeScriptInstaller) Name() string         { return t.component.Name }
func (t *TypeScriptInstaller) Component() Component { return t.component }

// Check reports satisfied when the link resolves to an executable, node
// meets the minimum and the server answers --version.
func (t *TypeScriptInstaller) Check(ctx context.Context, env *Environment) (bool, string, error) {
	path := t.component.ArtifactPath(env)
	if ok, _ := IsExecutable(env.FS, path); !ok {
		return false, "", nil
	}
	if out, present := t.queryVersion(ctx, env); !present || !t.gate.Satisfied(out) {
		return false, "", nil
	}
	out, ok := env.Query(ctx, runner.Command(path, "--version"))
	if !ok {
		return false, "", nil
	}
	return true, ExtractVersion(out), nil
}

func (t *TypeScriptInstaller) Install(ctx context.Context, env *Environment) error {
	name := t.component.Name

	out, present := t.queryVersion(ctx, env)
	decision := t.gate.Decide(out, present)
	env.Logger.Info("node runtime", "version", ExtractVersion(out), "minimum", t.cfg.MinimumMajor, "decision", decision.String())

	if decision == DecisionSkip {
		if src, ok := existingInstall(ctx, env, t.candidates(ctx, env)); ok {
			env.Logger.Info("reusing installed server", "path", src)
			env.report(name, PhaseLinking, "linking "+src)
			return linkExecutable(env.FS, src, t.component.ArtifactPath(env))
		}
	}

	switch decision {
	case DecisionUpgrade:
		if !t.allowRemoval {
			return errors.Wrapf(errors.ErrConfirmationRequired,
				"node %s is below %d and must be removed; rerun with --allow-runtime-removal",
				ExtractVersion(out), t.cfg.MinimumMajor)
		}
		env.report(name, PhaseInstalling, "removing outdated nodejs")
		if _, err := env.Must(ctx, runner.Privileged("apt-get", "remove", "-y", "nodejs", "npm")); err != nil {
			return errors.Wrap(err, "remove outdated nodejs")
		}
		fallthrough
	case DecisionInstall:
		if err := t.installRuntime(ctx, env); err != nil {
			return err
		}
	}

	if err := env.ensureTool(ctx, "npm", "npm"); err != nil {
		return err
	}

	env.report(name, PhaseInstalling, "npm install -g "+strings.Join(t.cfg.Packages, " "))
	args := append([]string{"install", "-g"}, t.cfg.Packages...)
	if _, err := env.Must(ctx, runner.Privileged("npm", args...)); err != nil {
		return errors.Wrap(err, "npm global install")
	}

	src, err := env.Locate(ctx, t.candidates(ctx, env)...)
	if err != nil {
		return errors.Wrapf(err, "%s not found after npm install", tsServer)
	}

	env.report(name, PhaseLinking, "linking "+src)
	return linkExecutable(env.FS, src, t.component.ArtifactPath(env))
}

func (t *TypeScriptInstaller) Validate(ctx context.Context, env *Environment) error {
	return verifyArtifact(env, t.component)
}

func (t *TypeScriptInstaller) queryVersion(ctx context.Context, env *Environment) (string, bool) {
	return env.Query(ctx, runner.Command("node", "--version"))
}

// installRuntime runs the NodeSource setup script and installs nodejs.
func (t *TypeScriptInstaller) installRuntime(ctx context.Context, env *Environment) error {
	name := t.component.Name

	if err := env.FS.MkdirAll(env.TempDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", env.TempDir)
	}
	tmp, err := util.TempFile(env.FS, env.TempDir, "nodesource-setup-")
	if err != nil {
		return errors.Wrap(err, "create temporary setup script")
	}
	script := hostPath(env.FS, tmp.Name())
	tmp.Close()
	defer func() {
		if err := env.FS.Remove(script); err != nil {
			env.Logger.Debug("setup script not removed", "path", script, "error", err.Error())
		}
	}()

	env.report(name, PhaseDownloading, t.cfg.SetupURL)
	if err := t.fetcher.Download(ctx, env.FS, t.cfg.SetupURL, script); err != nil {
		return errors.Wrap(err, "download nodejs setup script")
	}
	if _, err := env.Must(ctx, runner.Privileged("bash", script)); err != nil {
		return errors.Wrap(err, "run nodejs setup script")
	}
	// the setup script registers a new source and refreshes the index itself
	env.indexRefreshed = true

	env.report(name, PhaseInstalling, "installing nodejs")
	if err := env.aptInstall(ctx, "nodejs"); err != nil {
		return err
	}

	out, present := t.queryVersion(ctx, env)
	if !present || !t.gate.Satisfied(out) {
		got := ExtractVersion(out)
		if got == "" {
			got = "none"
		}
		return errors.Wrapf(errors.ErrVersionUnsatisfied, "node >= %d required after install, found %s", t.cfg.MinimumMajor, got)
	}
	return nil
}

// candidates puts the npm global prefix first when npm reports one.
func (t *TypeScriptInstaller) candidates(ctx context.Context, env *Environment) []SearchCandidate {
	out, ok := env.Query(ctx, runner.Command("npm", "prefix", "-g"))
	prefix := strings.TrimSpace(out)
	if !ok || prefix == "" {
		return t.component.Candidates
	}
	first := At(filepath.Join(prefix, "bin", tsServer))
	return append([]SearchCandidate{first}, t.component.Candidates...)
}
