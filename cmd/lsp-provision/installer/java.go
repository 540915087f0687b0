package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"text/template"

	"github.com/go-git/go-billy/v5/util"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

var launcherTemplate = template.Must(template.New("jdtls").Parse(`#!/usr/bin/env bash
# Eclipse JDT Language Server launcher generated by lsp-provision.
# Usage: jdtls [workspace-data-dir]
JAVA_HOME="{{.JavaHome}}"
JDTLS_HOME="{{.JdtlsHome}}"
DATA_DIR="${1:-{{.DataDir}}}"

LAUNCHER_JAR="$(ls "$JDTLS_HOME"/plugins/org.eclipse.equinox.launcher_*.jar 2>/dev/null | head -n 1)"
if [ -z "$LAUNCHER_JAR" ]; then
  echo "jdtls: no equinox launcher jar under $JDTLS_HOME/plugins" >&2
  exit 1
fi

exec "$JAVA_HOME/bin/java" \
  -Declipse.application=org.eclipse.jdt.ls.core.id1 \
  -Dosgi.bundles.defaultStartLevel=4 \
  -Declipse.product=org.eclipse.jdt.ls.core.product \
  -Dlog.protocol=true \
  -Dlog.level=ALL \
  -Xms{{.MinHeap}} \
  -Xmx{{.MaxHeap}} \
  --add-modules=ALL-SYSTEM \
  --add-opens java.base/java.util=ALL-UNNAMED \
  --add-opens java.base/java.lang=ALL-UNNAMED \
  -jar "$LAUNCHER_JAR" \
  -configuration "$JDTLS_HOME/config_linux" \
  -data "$DATA_DIR"
`))

type launcherParams struct {
	JavaHome  string
	JdtlsHome string
	DataDir   string
	MinHeap   string
	MaxHeap   string
}

// JavaInstaller provides jdtls: an OpenJDK runtime of the required major,
// the JDT LS snapshot archive and a launcher script.
type JavaInstaller struct {
	cfg       config.Java
	gate      VersionGate
	fetcher   ArchiveFetcher
	component Component
}

// NewJavaInstaller creates the jdtls installer.
func NewJavaInstaller(cfg config.Java, fetcher ArchiveFetcher) *JavaInstaller {
	return &JavaInstaller{
		cfg:     cfg,
		gate:    ExactMajor(cfg.Major),
		fetcher: fetcher,
		component: Component{
			Name:       config.ComponentJava,
			Command:    "jdtls",
			Artifact:   "jdtls",
			Constraint: fmt.Sprintf("java %d", cfg.Major),
			Candidates: []SearchCandidate{OnPath("java")},
		},
	}
}

func (j *JavaInstaller) Name() string         { return j.component.Name }
func (j *JavaInstaller) Component() Component { return j.component }

// Check reports satisfied when the launcher exists, the extraction
// directory is present and java has the required major.
func (j *JavaInstaller) Check(ctx context.Context, env *Environment) (bool, string, error) {
	if ok, _ := IsExecutable(env.FS, j.component.ArtifactPath(env)); !ok {
		return false, "", nil
	}
	if !isDir(env.FS, j.cfg.InstallDir) {
		return false, "", nil
	}
	out, present := j.queryVersion(ctx, env)
	if !present || !j.gate.Satisfied(out) {
		return false, ExtractVersion(out), nil
	}
	return true, ExtractVersion(out), nil
}

func (j *JavaInstaller) Install(ctx context.Context, env *Environment) error {
	name := j.component.Name

	out, present := j.queryVersion(ctx, env)
	decision := j.gate.Decide(out, present)
	env.Logger.Info("java runtime", "version", ExtractVersion(out), "required", j.cfg.Major, "decision", decision.String())
	if decision != DecisionSkip {
		env.report(name, PhaseInstalling, fmt.Sprintf("installing %s", j.cfg.Package))
		if err := j.installRuntime(ctx, env); err != nil {
			return err
		}
	}

	javaHome, err := j.javaHome(ctx, env)
	if err != nil {
		return err
	}
	env.Logger.Debug("java home resolved", "java_home", javaHome)

	if err := j.ensureArchive(ctx, env); err != nil {
		return err
	}

	env.report(name, PhaseLinking, "writing launcher")
	return j.writeLauncher(env, javaHome)
}

func (j *JavaInstaller) Validate(ctx context.Context, env *Environment) error {
	if !isDir(env.FS, j.cfg.InstallDir) {
		return errors.Wrapf(errors.ErrVerificationFailed, "jdtls directory %s missing", j.cfg.InstallDir)
	}
	return verifyArtifact(env, j.component)
}

func (j *JavaInstaller) queryVersion(ctx context.Context, env *Environment) (string, bool) {
	return env.Query(ctx, runner.Command("java", "-version"))
}

func (j *JavaInstaller) installRuntime(ctx context.Context, env *Environment) error {
	if err := env.ensureTool(ctx, "add-apt-repository", "software-properties-common"); err != nil {
		return err
	}
	if _, err := env.Must(ctx, runner.Privileged("add-apt-repository", "-y", j.cfg.Repository)); err != nil {
		return errors.Wrapf(err, "add repository %s", j.cfg.Repository)
	}
	if err := env.refreshIndex(ctx, true); err != nil {
		return err
	}
	if err := env.aptInstall(ctx, j.cfg.Package); err != nil {
		return err
	}

	out, present := j.queryVersion(ctx, env)
	if !present || !j.gate.Satisfied(out) {
		got := ExtractVersion(out)
		if got == "" {
			got = "none"
		}
		return errors.Wrapf(errors.ErrVersionUnsatisfied, "java %d required after installing %s, found %s", j.cfg.Major, j.cfg.Package, got)
	}
	return nil
}

// javaHome resolves the runtime root from the real path of java, falling
// back to a scan of the JVM directory.
func (j *JavaInstaller) javaHome(ctx context.Context, env *Environment) (string, error) {
	if javaPath, err := env.Locate(ctx, j.component.Candidates...); err == nil {
		if real, err := realPath(env.FS, javaPath); err == nil {
			if root, ok := runtimeRoot(real); ok {
				return root, nil
			}
			env.Logger.Debug("java real path has unexpected layout", "path", real)
		}
	}

	entries, err := env.FS.ReadDir(j.cfg.JVMDir)
	if err != nil {
		return "", errors.Wrapf(errors.ErrNotFound, "no java %d runtime: read %s: %v", j.cfg.Major, j.cfg.JVMDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Mode()&os.ModeSymlink != 0 {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pattern := regexp.MustCompile(fmt.Sprintf(`(^|[^0-9])%d([^0-9]|$)`, j.cfg.Major))
	for _, n := range names {
		if pattern.MatchString(n) {
			return filepath.Join(j.cfg.JVMDir, n), nil
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "no java %d runtime under %s", j.cfg.Major, j.cfg.JVMDir)
}

// runtimeRoot returns the directory two levels above <root>/bin/java.
func runtimeRoot(javaReal string) (string, bool) {
	bin := filepath.Dir(javaReal)
	if filepath.Base(javaReal) != "java" || filepath.Base(bin) != "bin" {
		return "", false
	}
	root := filepath.Dir(bin)
	if root == "/" || root == "." {
		return "", false
	}
	return root, true
}

// ensureArchive downloads and extracts the snapshot unless the extraction
// directory already exists.
func (j *JavaInstaller) ensureArchive(ctx context.Context, env *Environment) error {
	name := j.component.Name
	if isDir(env.FS, j.cfg.InstallDir) {
		env.Logger.Info("reusing extracted jdtls", "dir", j.cfg.InstallDir)
		return nil
	}

	if err := env.FS.MkdirAll(env.TempDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", env.TempDir)
	}
	tmp, err := util.TempFile(env.FS, env.TempDir, "jdtls-archive-")
	if err != nil {
		return errors.Wrap(err, "create temporary archive")
	}
	archive := tmp.Name()
	tmp.Close()
	defer func() {
		if err := env.FS.Remove(archive); err != nil {
			env.Logger.Debug("temporary archive not removed", "path", archive, "error", err.Error())
		}
	}()

	env.report(name, PhaseDownloading, j.cfg.ArchiveURL)
	if err := j.fetcher.Download(ctx, env.FS, j.cfg.ArchiveURL, archive); err != nil {
		return errors.Wrap(err, "download jdtls")
	}

	env.report(name, PhaseExtracting, "extracting into "+j.cfg.InstallDir)
	if err := j.fetcher.ExtractTarGz(env.FS, archive, j.cfg.InstallDir); err != nil {
		// a partial directory would be mistaken for a finished one next run
		if rmErr := util.RemoveAll(env.FS, j.cfg.InstallDir); rmErr != nil {
			env.Logger.Warn("partial jdtls directory left behind", "dir", j.cfg.InstallDir, "error", rmErr.Error())
		}
		return errors.Wrap(err, "extract jdtls")
	}
	return nil
}

func (j *JavaInstaller) writeLauncher(env *Environment, javaHome string) error {
	var buf bytes.Buffer
	err := launcherTemplate.Execute(&buf, launcherParams{
		JavaHome:  javaHome,
		JdtlsHome: j.cfg.InstallDir,
		DataDir:   j.cfg.DataDirExpr,
		MinHeap:   j.cfg.MinHeap,
		MaxHeap:   j.cfg.MaxHeap,
	})
	if err != nil {
		return errors.Wrap(err, "render jdtls launcher")
	}
	return writeExecutable(env.FS, j.component.ArtifactPath(env), buf.Bytes())
}
