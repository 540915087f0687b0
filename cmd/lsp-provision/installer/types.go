// Package installer provisions language servers into a destination
// directory and registers that directory on the user's PATH.
package installer

import (
	"context"
	"path/filepath"
	"time"
)

// State is the final state of one component in a run.
type State string

const (
	StateAlreadySatisfied State = "already_satisfied"
	StateInstalled        State = "installed"
	StateFailed           State = "failed"
	// StateMissing is only reported by check-only runs.
	StateMissing State = "missing"
)

// InstallationPhase identifies the step an installer is in.
type InstallationPhase string

const (
	PhaseChecking    InstallationPhase = "checking"
	PhaseInstalling  InstallationPhase = "installing"
	PhaseDownloading InstallationPhase = "downloading"
	PhaseExtracting  InstallationPhase = "extracting"
	PhaseLinking     InstallationPhase = "linking"
	PhaseValidating  InstallationPhase = "validating"
	PhaseCompleted   InstallationPhase = "completed"
	PhaseFailed      InstallationPhase = "failed"
)

// ProgressCallback receives phase changes of the running installer.
type ProgressCallback func(component string, phase InstallationPhase, message string)

// Component describes one language server. It is fixed for a run.
type Component struct {
	Name string
	// Command is the executable name the component provides.
	Command string
	// Artifact is the file name inside the destination directory.
	Artifact string
	// Constraint is a human readable runtime requirement, for display.
	Constraint string
	// Candidates lists where the installed command may appear, in order
	// of preference.
	Candidates []SearchCandidate
}

// ArtifactPath returns the component's file in the destination directory.
func (c Component) ArtifactPath(env *Environment) string {
	return filepath.Join(env.DestDir, c.Artifact)
}

// InstallationOutcome is produced once per component per run.
type InstallationOutcome struct {
	Component    string
	State        State
	Path         string
	Version      string
	Message      string
	Err          error
	Duration     time.Duration
	ErrorContext *ErrorContext
	// Note is a caveat about the installed artifact, shown in the summary.
	Note string
}

// Succeeded reports whether the component ended usable.
func (o InstallationOutcome) Succeeded() bool {
	return o.State == StateInstalled || o.State == StateAlreadySatisfied
}

// Installer ensures a single component is present and usable.
type Installer interface {
	Name() string
	Component() Component
	// Check reports whether the component is already satisfied and its
	// version when known. It must not change the system.
	Check(ctx context.Context, env *Environment) (bool, string, error)
	Install(ctx context.Context, env *Environment) error
	Validate(ctx context.Context, env *Environment) error
}

// Noter is implemented by installers that can leave a caveat about what
// their last Install produced.
type Noter interface {
	Note() string
}

// ArchiveFetcher downloads and unpacks remote artifacts.
type ArchiveFetcher interface {
	Download(ctx context.Context, fs Filesystem, url, dest string) error
	ExtractTarGz(fs Filesystem, archive, destDir string) error
}
