package installer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// chmodder is implemented by filesystems that can change permissions.
type chmodder interface {
	Chmod(name string, mode os.FileMode) error
}

// writeExecutable replaces path with data and mode 0755.
func writeExecutable(fs Filesystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	// an existing file keeps its old mode on O_TRUNC, so start fresh
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "replace %s", path)
	}

	out, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	// the process umask may have stripped bits from the create mode
	if ch, ok := fs.(chmodder); ok {
		if err := ch.Chmod(path, 0o755); err != nil {
			return errors.Wrapf(err, "chmod %s", path)
		}
	}
	return nil
}

// copyExecutable copies src to dst with mode 0755.
func copyExecutable(fs Filesystem, src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	in, err := fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrapf(err, "read %s", src)
	}
	return writeExecutable(fs, dst, data)
}

// linkExecutable points link at target, replacing an existing link or file.
func linkExecutable(fs Filesystem, target, link string) error {
	if filepath.Clean(target) == filepath.Clean(link) {
		return nil
	}
	if err := fs.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(link))
	}
	if err := fs.Remove(link); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "replace %s", link)
	}
	if err := fs.Symlink(target, link); err != nil {
		return errors.Wrapf(err, "link %s -> %s", link, target)
	}
	return nil
}

// verifyArtifact is the post-install check for every component: the
// artifact exists inside the destination directory and is executable.
func verifyArtifact(env *Environment, c Component) error {
	path := c.ArtifactPath(env)
	rel, err := filepath.Rel(env.DestDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return errors.Wrapf(errors.ErrVerificationFailed, "%s is outside %s", path, env.DestDir)
	}

	ok, err := IsExecutable(env.FS, path)
	if err != nil {
		return errors.Wrapf(errors.ErrVerificationFailed, "%s artifact: %v", c.Name, err)
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotExecutable, "%s", path)
	}
	return nil
}

// hostPath turns a path returned by fs into one a child process can open.
// billy temp files are named relative to the filesystem root.
func hostPath(fs Filesystem, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(fs.Root(), name)
}

// existingInstall returns a working copy of the command found outside the
// destination directory.
func existingInstall(ctx context.Context, env *Environment, candidates []SearchCandidate) (string, bool) {
	src, err := env.Locate(ctx, candidates...)
	if err != nil {
		return "", false
	}
	if ok, _ := IsExecutable(env.FS, src); !ok {
		return "", false
	}
	if _, ok := env.Query(ctx, runner.Command(src, "--version")); !ok {
		return "", false
	}
	return src, true
}
