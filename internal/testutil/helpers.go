// internal/testutil/helpers.go
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"lspprovision/internal/platform/runner"
)

// NewFS returns an empty in-memory filesystem.
func NewFS() billy.Filesystem {
	return memfs.New()
}

// WriteFile creates path with content and mode 0644, creating parents.
func WriteFile(t testing.TB, fs billy.Filesystem, path, content string) {
	t.Helper()
	writeMode(t, fs, path, content, 0o644)
}

// WriteExecutable creates path with content and mode 0755, creating parents.
func WriteExecutable(t testing.TB, fs billy.Filesystem, path, content string) {
	t.Helper()
	writeMode(t, fs, path, content, 0o755)
}

func writeMode(t testing.TB, fs billy.Filesystem, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, util.WriteFile(fs, path, []byte(content), mode))
}

// Symlink creates link pointing at target, creating the link's parent.
func Symlink(t testing.TB, fs billy.Filesystem, target, link string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(link), 0o755))
	require.NoError(t, fs.Symlink(target, link))
}

// ReadFile returns the content of path.
func ReadFile(t testing.TB, fs billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether path exists on fs.
func Exists(fs billy.Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// Mode returns the permission bits of path.
func Mode(t testing.TB, fs billy.Filesystem, path string) os.FileMode {
	t.Helper()
	fi, err := fs.Stat(path)
	require.NoError(t, err)
	return fi.Mode().Perm()
}

// Creates returns a handler that simulates a command producing executable
// files, e.g. a package manager dropping binaries into place.
func Creates(t testing.TB, fs billy.Filesystem, paths ...string) Handler {
	return func(runner.CommandSpec) (*runner.Result, error) {
		for _, p := range paths {
			WriteExecutable(t, fs, p, "#!/bin/sh\n")
		}
		return &runner.Result{}, nil
	}
}
