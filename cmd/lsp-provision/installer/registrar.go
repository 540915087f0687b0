package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"

	"lspprovision/internal/platform/errors"
)

const registrationMarker = "# Added by lsp-provision"

// PathRegistrar adds the destination directory to the shell startup file.
type PathRegistrar struct{}

// NewPathRegistrar returns a registrar.
func NewPathRegistrar() *PathRegistrar {
	return &PathRegistrar{}
}

// Register appends an export line for env.DestDir to env.ShellRC unless an
// existing export PATH line already names the directory. It reports whether
// the file was changed. The directory is put on the session PATH either way.
func (r *PathRegistrar) Register(env *Environment) (bool, error) {
	dir := filepath.Clean(env.DestDir)

	content, err := util.ReadFile(env.FS, env.ShellRC)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "read %s", env.ShellRC)
	}

	if registered(string(content), dir, env.Home) {
		env.Logger.Debug("destination already registered", "dir", dir, "shell_rc", env.ShellRC)
		env.PrependPath(dir)
		return false, nil
	}

	if err := env.FS.MkdirAll(filepath.Dir(env.ShellRC), 0o755); err != nil {
		return false, errors.Wrapf(err, "create %s", filepath.Dir(env.ShellRC))
	}
	f, err := env.FS.OpenFile(env.ShellRC, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, errors.Wrapf(err, "open %s", env.ShellRC)
	}
	entry := fmt.Sprintf("\n%s\nexport PATH=\"%s:$PATH\"\n", registrationMarker, dir)
	if _, err := f.Write([]byte(entry)); err != nil {
		f.Close()
		return false, errors.Wrapf(err, "append to %s", env.ShellRC)
	}
	if err := f.Close(); err != nil {
		return false, errors.Wrapf(err, "close %s", env.ShellRC)
	}

	env.Logger.Info("destination registered", "dir", dir, "shell_rc", env.ShellRC)
	env.PrependPath(dir)
	return true, nil
}

// registered reports whether an export PATH line in content names dir,
// literally or through $HOME, ${HOME} or ~.
func registered(content, dir, home string) bool {
	forms := []string{dir}
	if home != "" {
		if rel, err := filepath.Rel(home, dir); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
			forms = append(forms, "$HOME/"+rel, "${HOME}/"+rel, "~/"+rel)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || !strings.HasPrefix(line, "export PATH") {
			continue
		}
		for _, f := range forms {
			if containsEntry(line, f) {
				return true
			}
		}
	}
	return false
}

// containsEntry matches dir as a whole PATH element, so /opt/bin matches
// neither /opt/bin2 nor /srv/opt/bin.
func containsEntry(line, dir string) bool {
	for i := 0; i < len(line); {
		j := strings.Index(line[i:], dir)
		if j < 0 {
			return false
		}
		start := i + j
		rest := strings.TrimPrefix(line[start+len(dir):], "/")
		before := start == 0 || strings.ContainsRune(`=:"' `, rune(line[start-1]))
		after := rest == "" || strings.ContainsRune(`:"' `, rune(rest[0]))
		if before && after {
			return true
		}
		i = start + 1
	}
	return false
}
