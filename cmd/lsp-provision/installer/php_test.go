package installer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
	"lspprovision/internal/testutil"
)

func newPHP() *PHPInstaller {
	return NewPHPInstaller(config.DefaultConfig().PHP)
}

func TestPHP_AlreadySatisfied(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, testDestDir+"/phpactor", "")
	r.Output(testDestDir+"/phpactor --version", testutil.PhpactorInfo)

	outcome, err := Ensure(context.Background(), newPHP(), env, false)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySatisfied, outcome.State)
	assert.Equal(t, "2024.06.30.0", outcome.Version)
	assert.False(t, r.Ran("composer"))
	assert.Len(t, r.Commands(), 1)
}

func TestPHP_Install(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/php", "")
	testutil.WriteExecutable(t, env.FS, "/usr/bin/composer", "")

	var manifest map[string]any
	var workdir string
	r.On("composer install --no-interaction --no-dev", func(spec runner.CommandSpec) (*runner.Result, error) {
		workdir = spec.Dir
		data := testutil.ReadFile(t, env.FS, filepath.Join(spec.Dir, "composer.json"))
		require.NoError(t, json.Unmarshal([]byte(data), &manifest))
		testutil.WriteExecutable(t, env.FS, filepath.Join(spec.Dir, "vendor/bin/phpactor"), "#!/usr/bin/env php\n")
		return &runner.Result{}, nil
	})

	outcome, err := Ensure(context.Background(), newPHP(), env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)
	assert.Contains(t, outcome.Note, "composer global require")

	assert.True(t, strings.HasPrefix(workdir, "/tmp/phpactor-"), workdir)
	assert.Equal(t, map[string]any{"phpactor/phpactor": "^2024.0"}, manifest["require"])
	assert.Equal(t, "dev", manifest["minimum-stability"])
	assert.Equal(t, true, manifest["prefer-stable"])

	assert.Equal(t, "#!/usr/bin/env php\n", testutil.ReadFile(t, env.FS, testDestDir+"/phpactor"))
	assert.Equal(t, 0o755, int(testutil.Mode(t, env.FS, testDestDir+"/phpactor")))
	assert.False(t, testutil.Exists(env.FS, workdir), "working directory removed")
	assert.False(t, r.Ran("apt-get"), "prerequisites were present")
}

func TestPHP_WorkdirRemovedOnFailure(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/php", "")
	testutil.WriteExecutable(t, env.FS, "/usr/bin/composer", "")
	r.Fail("composer install", 2)

	err := newPHP().Install(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsCommandFailed(err))
	assert.Empty(t, tempEntries(t, env))
	assert.False(t, testutil.Exists(env.FS, testDestDir+"/phpactor"))
}

func TestPHP_ComposerProducesNoBinary(t *testing.T) {
	env, _ := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/php", "")
	testutil.WriteExecutable(t, env.FS, "/usr/bin/composer", "")

	err := newPHP().Install(context.Background(), env)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, tempEntries(t, env))
}

func TestPHP_InstallsPrerequisites(t *testing.T) {
	env, r := newTestEnv(t)
	r.On("apt-get install -y php php-cli php-mbstring php-xml php-zip php-curl", testutil.Creates(t, env.FS, "/usr/bin/php"))
	r.On("apt-get install -y composer", testutil.Creates(t, env.FS, "/usr/bin/composer"))
	r.On("composer install", func(spec runner.CommandSpec) (*runner.Result, error) {
		testutil.WriteExecutable(t, env.FS, filepath.Join(spec.Dir, "vendor/bin/phpactor"), "")
		return &runner.Result{}, nil
	})

	require.NoError(t, newPHP().Install(context.Background(), env))
	assert.True(t, r.Ran("apt-get install -y php php-cli php-mbstring php-xml php-zip php-curl"))
	assert.True(t, r.Ran("apt-get install -y composer"))
	assert.Equal(t, 1, r.Count("apt-get update"))
}

func TestPHP_LinksGlobalInstall(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/local/bin/phpactor", "")
	r.Output("/usr/local/bin/phpactor --version", testutil.PhpactorInfo)

	outcome, err := Ensure(context.Background(), newPHP(), env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)
	assert.Empty(t, outcome.Note)

	assert.False(t, r.Ran("composer"))
	assert.False(t, r.Ran("apt-get"))
	target, err := env.FS.Readlink(testDestDir + "/phpactor")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/phpactor", target)
}
