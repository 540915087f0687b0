package installer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
	"lspprovision/internal/testutil"
)

const (
	jdkRoot     = "/usr/lib/jvm/java-21-openjdk-amd64"
	jdtlsDir    = "/home/dev/jdtls"
	launcherJar = jdtlsDir + "/plugins/org.eclipse.equinox.launcher_1.6.900.v20240613-2009.jar"
)

func javaConfig(url string) config.Java {
	cfg := config.DefaultConfig().Java
	cfg.Package = "openjdk-21-jdk"
	cfg.InstallDir = jdtlsDir
	cfg.ArchiveURL = url
	return cfg
}

// installJDK lays out a runtime the way the Debian package does.
func installJDK(t *testing.T, env *Environment, root string) {
	t.Helper()
	testutil.WriteExecutable(t, env.FS, root+"/bin/java", "")
	testutil.Symlink(t, env.FS, root+"/bin/java", "/etc/alternatives/java")
	testutil.Symlink(t, env.FS, "/etc/alternatives/java", "/usr/bin/java")
}

func TestJava_RuntimeAbsent(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, testutil.TarGz(t, testutil.JdtlsFiles))

	r.Output("java -version", testutil.JavaVersion21)
	r.On("apt-get install -y software-properties-common", testutil.Creates(t, env.FS, "/usr/bin/add-apt-repository"))
	r.On("apt-get install -y openjdk-21-jdk", func(runner.CommandSpec) (*runner.Result, error) {
		installJDK(t, env, jdkRoot)
		return &runner.Result{}, nil
	})

	inst := NewJavaInstaller(javaConfig(srv.URL+"/jdt-language-server-latest.tar.gz"), srv.fetcher())
	outcome, err := Ensure(context.Background(), inst, env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)
	assert.Equal(t, "21.0.2", outcome.Version)

	cmds := r.Commands()
	assert.Contains(t, cmds, "add-apt-repository -y ppa:openjdk-r/ppa")
	assert.Contains(t, cmds, "apt-get install -y openjdk-21-jdk")
	assert.Less(t, indexOf(cmds, "add-apt-repository -y ppa:openjdk-r/ppa"), indexOf(cmds, "apt-get install -y openjdk-21-jdk"))
	assert.Equal(t, 2, r.Count("apt-get update"), "index refreshed again after adding the repository")

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.True(t, testutil.Exists(env.FS, launcherJar))
	assert.Empty(t, tempEntries(t, env), "temporary archive removed")

	launcher := testutil.ReadFile(t, env.FS, testDestDir+"/jdtls")
	assert.Contains(t, launcher, `JAVA_HOME="`+jdkRoot+`"`)
	assert.Contains(t, launcher, `JDTLS_HOME="`+jdtlsDir+`"`)
	assert.Contains(t, launcher, "-Xms1g")
	assert.Contains(t, launcher, "-Xmx2G")
	assert.Contains(t, launcher, `DATA_DIR="${1:-$HOME/.cache/jdtls-workspace}"`)
	assert.Contains(t, launcher, `-configuration "$JDTLS_HOME/config_linux"`)
	assert.Equal(t, 0o755, int(testutil.Mode(t, env.FS, testDestDir+"/jdtls")))
}

func TestJava_RuntimePresent(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, testutil.TarGz(t, testutil.JdtlsFiles))
	installJDK(t, env, jdkRoot)
	r.Output("java -version", testutil.JavaVersion21)

	inst := NewJavaInstaller(javaConfig(srv.URL+"/jdtls.tar.gz"), srv.fetcher())
	outcome, err := Ensure(context.Background(), inst, env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)

	assert.False(t, r.Ran("add-apt-repository"))
	assert.False(t, r.Ran("apt-get"))
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Contains(t, testutil.ReadFile(t, env.FS, testDestDir+"/jdtls"), `JAVA_HOME="`+jdkRoot+`"`)
}

func TestJava_ReusesExtractedArchive(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, testutil.TarGz(t, testutil.JdtlsFiles))
	installJDK(t, env, jdkRoot)
	r.Output("java -version", testutil.JavaVersion21)
	inst := NewJavaInstaller(javaConfig(srv.URL+"/jdtls.tar.gz"), srv.fetcher())

	require.NoError(t, inst.Install(context.Background(), env))
	require.NoError(t, inst.Install(context.Background(), env))
	assert.Equal(t, int32(1), srv.hits.Load(), "no second download")
}

func TestJava_AlreadySatisfied(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, nil)
	installJDK(t, env, jdkRoot)
	testutil.WriteExecutable(t, env.FS, testDestDir+"/jdtls", "#!/usr/bin/env bash\n")
	require.NoError(t, env.FS.MkdirAll(jdtlsDir, 0o755))
	r.Output("java -version", testutil.JavaVersion21)

	outcome, err := Ensure(context.Background(), NewJavaInstaller(javaConfig(srv.URL), srv.fetcher()), env, false)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySatisfied, outcome.State)
	assert.Equal(t, []string{"java -version"}, r.Commands())
	assert.Zero(t, srv.hits.Load())
}

func TestJava_WrongMajorAfterInstall(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, nil)
	installJDK(t, env, "/usr/lib/jvm/java-17-openjdk-amd64")
	testutil.WriteExecutable(t, env.FS, "/usr/bin/add-apt-repository", "")
	r.Output("java -version", testutil.JavaVersion17)

	err := NewJavaInstaller(javaConfig(srv.URL), srv.fetcher()).Install(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsVersionUnsatisfied(err))
	assert.Contains(t, err.Error(), "found 17.0.10")
	assert.True(t, r.Ran("apt-get install -y openjdk-21-jdk"))
	assert.Zero(t, srv.hits.Load(), "nothing downloaded after a fatal step")
}

func TestJava_MandatoryStepFails(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, nil)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/add-apt-repository", "")
	r.Fail("add-apt-repository", 1)

	err := NewJavaInstaller(javaConfig(srv.URL), srv.fetcher()).Install(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsCommandFailed(err))
	assert.Equal(t, []string{"add-apt-repository -y ppa:openjdk-r/ppa"}, r.Commands(), "no step after the failure")
}

func TestJava_InvalidArchiveLeavesNothing(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, []byte("<html>maintenance</html>"))
	installJDK(t, env, jdkRoot)
	r.Output("java -version", testutil.JavaVersion21)

	err := NewJavaInstaller(javaConfig(srv.URL), srv.fetcher()).Install(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidArchive)
	assert.False(t, testutil.Exists(env.FS, jdtlsDir))
	assert.False(t, testutil.Exists(env.FS, testDestDir+"/jdtls"))
	assert.Empty(t, tempEntries(t, env))
}

func TestJava_HomeFallsBackToJVMScan(t *testing.T) {
	env, _ := newTestEnv(t)
	for _, dir := range []string{"java-17-openjdk-amd64", "java-210-experimental", "java-21-openjdk-amd64"} {
		require.NoError(t, env.FS.MkdirAll("/usr/lib/jvm/"+dir, 0o755))
	}
	inst := NewJavaInstaller(javaConfig(""), nil)

	home, err := inst.javaHome(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, jdkRoot, home)
}

func TestJava_HomeNotFound(t *testing.T) {
	env, _ := newTestEnv(t)
	require.NoError(t, env.FS.MkdirAll("/usr/lib/jvm/java-17-openjdk-amd64", 0o755))

	_, err := NewJavaInstaller(javaConfig(""), nil).javaHome(context.Background(), env)
	assert.True(t, errors.IsNotFound(err))
}

func TestRuntimeRoot(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{jdkRoot + "/bin/java", jdkRoot, true},
		{"/opt/jdk-21/bin/java", "/opt/jdk-21", true},
		{"/opt/jdk-21/java", "", false},
		{"/bin/java", "", false},
		{"/usr/lib/jvm/x/bin/javac", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := runtimeRoot(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
