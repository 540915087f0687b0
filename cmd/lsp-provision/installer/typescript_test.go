package installer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
	"lspprovision/internal/testutil"
)

const (
	tsLink   = testDestDir + "/typescript-language-server"
	tsGlobal = "/usr/local/lib/node_modules/typescript-language-server/lib/cli.mjs"
)

func tsConfig(setupURL string) config.TypeScript {
	cfg := config.DefaultConfig().TypeScript
	cfg.SetupURL = setupURL
	cfg.NpmGlobalBin = "/home/dev/.npm-global/bin"
	return cfg
}

// nodeRuntime fakes node whose version changes once nodejs is installed.
type nodeRuntime struct {
	version string
}

func (n *nodeRuntime) register(t *testing.T, env *Environment, r *testutil.FakeRunner, installed string) {
	r.On("node --version", func(runner.CommandSpec) (*runner.Result, error) {
		return &runner.Result{Stdout: n.version, Combined: n.version}, nil
	})
	r.On("apt-get install -y nodejs", func(runner.CommandSpec) (*runner.Result, error) {
		n.version = installed
		testutil.WriteExecutable(t, env.FS, "/usr/bin/node", "")
		testutil.WriteExecutable(t, env.FS, "/usr/bin/npm", "")
		return &runner.Result{}, nil
	})
	r.Output("npm prefix -g", "/usr/local\n")
	r.On("npm install -g typescript-language-server typescript", func(runner.CommandSpec) (*runner.Result, error) {
		testutil.WriteExecutable(t, env.FS, tsGlobal, "")
		testutil.Symlink(t, env.FS, tsGlobal, "/usr/local/bin/typescript-language-server")
		return &runner.Result{}, nil
	})
}

func TestTypeScript_AlreadySatisfied(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/node", "")
	testutil.WriteExecutable(t, env.FS, tsGlobal, "")
	testutil.Symlink(t, env.FS, tsGlobal, tsLink)
	r.Output("node --version", testutil.NodeVersion22)
	r.Output(tsLink+" --version", testutil.TSLSVersion)

	inst := NewTypeScriptInstaller(tsConfig(""), nil, false)
	outcome, err := Ensure(context.Background(), inst, env, false)
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySatisfied, outcome.State)
	assert.Equal(t, "4.3.3", outcome.Version)
	assert.False(t, r.Ran("npm"))
	assert.False(t, r.Ran("apt-get"))
}

func TestTypeScript_RemovalNeedsConfirmation(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, []byte("#!/bin/bash\n"))
	testutil.WriteExecutable(t, env.FS, "/usr/bin/node", "")
	r.Output("node --version", testutil.NodeVersion16)

	inst := NewTypeScriptInstaller(tsConfig(srv.URL), srv.fetcher(), false)
	outcome, err := Ensure(context.Background(), inst, env, false)
	require.Error(t, err)
	assert.True(t, errors.IsConfirmationRequired(err))
	assert.Contains(t, err.Error(), "--allow-runtime-removal")
	assert.Equal(t, StateFailed, outcome.State)
	require.NotNil(t, outcome.ErrorContext)
	assert.Contains(t, outcome.ErrorContext.Solutions[0], "--allow-runtime-removal")

	assert.False(t, r.Ran("apt-get"), "nothing removed without consent")
	assert.Zero(t, srv.hits.Load())
}

func TestTypeScript_UpgradeWithRemoval(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, []byte("#!/bin/bash\necho setup\n"))
	testutil.WriteExecutable(t, env.FS, "/usr/bin/node", "")
	node := &nodeRuntime{version: testutil.NodeVersion16}
	node.register(t, env, r, testutil.NodeVersion22)

	inst := NewTypeScriptInstaller(tsConfig(srv.URL+"/setup_22.x"), srv.fetcher(), true)
	outcome, err := Ensure(context.Background(), inst, env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)

	cmds := r.Commands()
	remove := indexOf(cmds, "apt-get remove -y nodejs npm")
	install := indexOf(cmds, "apt-get install -y nodejs")
	require.GreaterOrEqual(t, remove, 0)
	assert.Less(t, remove, install)

	setup, ok := r.Find("bash")
	require.True(t, ok)
	assert.True(t, setup.Privileged)
	assert.True(t, strings.HasPrefix(setup.Args[0], "/tmp/nodesource-setup-"), "child process gets an absolute path: %s", setup.Args[0])
	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Empty(t, tempEntries(t, env), "setup script removed")

	target, err := env.FS.Readlink(tsLink)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/typescript-language-server", target)
	require.NoError(t, inst.Validate(context.Background(), env))
}

func TestTypeScript_RuntimeAbsent(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, []byte("#!/bin/bash\n"))
	node := &nodeRuntime{}
	node.register(t, env, r, testutil.NodeVersion22)

	inst := NewTypeScriptInstaller(tsConfig(srv.URL), srv.fetcher(), false)
	require.NoError(t, inst.Install(context.Background(), env))

	assert.False(t, r.Ran("apt-get remove"), "no removal when nothing is installed")
	assert.Equal(t, 1, r.Count("node --version"), "node queried only once present")
	assert.True(t, r.Ran("bash"))
	assert.True(t, testutil.Exists(env.FS, tsLink))
}

func TestTypeScript_StillTooOldAfterInstall(t *testing.T) {
	env, r := newTestEnv(t)
	srv := newFileServer(t, []byte("#!/bin/bash\n"))
	node := &nodeRuntime{}
	node.register(t, env, r, testutil.NodeVersion16)

	err := NewTypeScriptInstaller(tsConfig(srv.URL), srv.fetcher(), false).Install(context.Background(), env)
	require.Error(t, err)
	assert.True(t, errors.IsVersionUnsatisfied(err))
	assert.False(t, r.Ran("npm install"))
}

func TestTypeScript_SetupDownloadFails(t *testing.T) {
	env, r := newTestEnv(t)

	inst := NewTypeScriptInstaller(tsConfig("http://127.0.0.1:1/setup"), newFileServer(t, nil).fetcher(), false)
	err := inst.Install(context.Background(), env)
	require.Error(t, err)
	assert.False(t, r.Ran("bash"))
	assert.False(t, r.Ran("apt-get install -y nodejs"))
}

func TestTypeScript_PrefersNpmPrefix(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/npm", "")
	testutil.WriteExecutable(t, env.FS, "/opt/node/bin/typescript-language-server", "")
	testutil.WriteExecutable(t, env.FS, "/usr/bin/typescript-language-server", "")
	r.Output("npm prefix -g", "/opt/node\n")

	inst := NewTypeScriptInstaller(tsConfig(""), nil, false)
	got, err := env.Locate(context.Background(), inst.candidates(context.Background(), env)...)
	require.NoError(t, err)
	assert.Equal(t, "/opt/node/bin/typescript-language-server", got)
}

func TestTypeScript_ReusesGlobalServer(t *testing.T) {
	env, r := newTestEnv(t)
	testutil.WriteExecutable(t, env.FS, "/usr/bin/node", "")
	testutil.WriteExecutable(t, env.FS, tsGlobal, "")
	testutil.Symlink(t, env.FS, tsGlobal, "/usr/local/bin/typescript-language-server")
	r.Output("node --version", testutil.NodeVersion22)

	outcome, err := Ensure(context.Background(), NewTypeScriptInstaller(tsConfig(""), nil, false), env, false)
	require.NoError(t, err)
	assert.Equal(t, StateInstalled, outcome.State)

	assert.False(t, r.Ran("npm install"))
	assert.False(t, r.Ran("apt-get"))
	assert.False(t, r.Ran("bash"))
	target, err := env.FS.Readlink(tsLink)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/typescript-language-server", target)
}
