package installer

import (
	"context"
	"os"
	"path/filepath"

	"lspprovision/internal/platform/errors"
)

// CandidateKind selects how a SearchCandidate is resolved to a path.
type CandidateKind int

const (
	// KindSearchPath joins each session PATH entry with the value.
	KindSearchPath CandidateKind = iota
	// KindAbsolute uses the value as is.
	KindAbsolute
	// KindUserLocal joins the per-user binary directory with the value.
	KindUserLocal
)

func (k CandidateKind) String() string {
	switch k {
	case KindSearchPath:
		return "search-path"
	case KindAbsolute:
		return "absolute"
	case KindUserLocal:
		return "user-local"
	default:
		return "unknown"
	}
}

// SearchCandidate is one place a binary may be found.
type SearchCandidate struct {
	Kind  CandidateKind
	Value string
}

// OnPath looks name up in the session PATH.
func OnPath(name string) SearchCandidate {
	return SearchCandidate{Kind: KindSearchPath, Value: name}
}

// At is a fixed absolute location.
func At(path string) SearchCandidate {
	return SearchCandidate{Kind: KindAbsolute, Value: path}
}

// InUserBin looks name up in the per-user binary directory.
func InUserBin(name string) SearchCandidate {
	return SearchCandidate{Kind: KindUserLocal, Value: name}
}

// Locate returns the first candidate that exists on the filesystem. It
// checks presence only; callers confirm executability with IsExecutable.
// The destination directory is never a search result, so an installer
// cannot pick up its own previous artifact.
func (e *Environment) Locate(ctx context.Context, candidates ...SearchCandidate) (string, error) {
	path, err := FirstSuccess(ctx, candidates, func(_ context.Context, c SearchCandidate) (string, error) {
		return e.resolve(c)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", errors.Wrapf(errors.ErrNotFound, "no candidate matched %s", describe(candidates))
	}
	e.Logger.Debug("binary located", "path", path)
	return path, nil
}

func (e *Environment) resolve(c SearchCandidate) (string, error) {
	switch c.Kind {
	case KindSearchPath:
		for _, dir := range e.PathEntries {
			if dir == "" || filepath.Clean(dir) == filepath.Clean(e.DestDir) {
				continue
			}
			p := filepath.Join(dir, c.Value)
			if exists(e.FS, p) {
				return p, nil
			}
		}
	case KindAbsolute:
		if exists(e.FS, c.Value) {
			return c.Value, nil
		}
	case KindUserLocal:
		if e.UserBinDir != "" {
			p := filepath.Join(e.UserBinDir, c.Value)
			if exists(e.FS, p) {
				return p, nil
			}
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "%s %s", c.Kind, c.Value)
}

func describe(candidates []SearchCandidate) string {
	if len(candidates) == 0 {
		return "(no candidates)"
	}
	names := ""
	for i, c := range candidates {
		if i > 0 {
			names += ", "
		}
		names += c.Kind.String() + ":" + c.Value
	}
	return names
}

// IsExecutable reports whether path is a regular file (following links)
// with at least one execute bit set.
func IsExecutable(fs Filesystem, path string) (bool, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, errors.Wrapf(errors.ErrNotFound, "%s", path)
		}
		return false, errors.Wrapf(err, "stat %s", path)
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0, nil
}

// EnsureInstallDir creates the destination directory if it doesn't exist.
func EnsureInstallDir(fs Filesystem, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create destination directory %s", dir)
	}
	return nil
}

func exists(fs Filesystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

func isDir(fs Filesystem, path string) bool {
	fi, err := fs.Stat(path)
	return err == nil && fi.IsDir()
}

// realPath follows symlinks on the final path element until it reaches a
// non-link.
func realPath(fs Filesystem, path string) (string, error) {
	for i := 0; i < 40; i++ {
		fi, err := fs.Lstat(path)
		if err != nil {
			return "", errors.Wrapf(err, "lstat %s", path)
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			return filepath.Clean(path), nil
		}
		target, err := fs.Readlink(path)
		if err != nil {
			return "", errors.Wrapf(err, "readlink %s", path)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		path = target
	}
	return "", errors.Errorf("too many levels of symbolic links at %s", path)
}
