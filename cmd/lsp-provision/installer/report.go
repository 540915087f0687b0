package installer

import (
	"path/filepath"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"lspprovision/internal/platform/config"
	"lspprovision/internal/platform/errors"
)

// machineID returns an application-scoped hash of the machine id.
var machineID = func() string {
	id, err := machineid.ProtectedID(config.AppName)
	if err != nil {
		return "unknown"
	}
	return id
}

// RunReport is the YAML receipt of one run.
type RunReport struct {
	Version        string          `yaml:"version"`
	Machine        string          `yaml:"machine"`
	StartedAt      time.Time       `yaml:"started_at"`
	Duration       string          `yaml:"duration"`
	DestDir        string          `yaml:"dest_dir"`
	ShellRC        string          `yaml:"shell_rc"`
	PathRegistered bool            `yaml:"path_registered"`
	Halted         string          `yaml:"halted,omitempty"`
	Error          string          `yaml:"error,omitempty"`
	Components     []ReportOutcome `yaml:"components"`
}

// ReportOutcome is one component's line in the report.
type ReportOutcome struct {
	Name     string `yaml:"name"`
	State    State  `yaml:"state"`
	Path     string `yaml:"path,omitempty"`
	Version  string `yaml:"version,omitempty"`
	Duration string `yaml:"duration"`
	Error    string `yaml:"error,omitempty"`
	Command  string `yaml:"command,omitempty"`
	Note     string `yaml:"note,omitempty"`
}

// NewRunReport builds the report for a finished run.
func NewRunReport(version string, started time.Time, s *Summary, runErr error) RunReport {
	r := RunReport{
		Version:        version,
		Machine:        machineID(),
		StartedAt:      started.UTC().Truncate(time.Second),
		Duration:       s.Duration.Round(time.Millisecond).String(),
		DestDir:        s.DestDir,
		ShellRC:        s.ShellRC,
		PathRegistered: s.PathRegistered,
		Halted:         s.Halted,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	for _, o := range s.Outcomes {
		line := ReportOutcome{
			Name:     o.Component,
			State:    o.State,
			Version:  firstLine(o.Version),
			Duration: o.Duration.Round(time.Millisecond).String(),
			Note:     o.Note,
		}
		if o.Succeeded() {
			line.Path = o.Path
		}
		if o.Err != nil {
			line.Error = o.Err.Error()
		}
		if o.ErrorContext != nil {
			line.Command = o.ErrorContext.Command
		}
		r.Components = append(r.Components, line)
	}
	return r
}

// WriteReport writes r as YAML to path, creating parent directories.
func WriteReport(fs Filesystem, path string, r RunReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode run report")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
