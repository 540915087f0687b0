package installer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lspprovision/internal/platform/errors"
)

func TestPresenter_FailureDetails(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, false)
	failure := commandError("apt-get install -y composer", "E: Could not get lock /var/lib/dpkg/lock-frontend")

	p.ShowResult(InstallationOutcome{
		Component:    "phpactor",
		State:        StateFailed,
		Err:          failure,
		ErrorContext: AnalyzeError("phpactor", "install", failure, GetDocumentationURL("phpactor")),
	})

	out := buf.String()
	assert.Contains(t, out, "phpactor")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "COMMAND: apt-get install -y composer")
	assert.Contains(t, out, "Could not get lock")
	assert.Contains(t, out, "REASON: The package manager is locked or was interrupted")
	assert.Contains(t, out, "DOCS: https://phpactor.readthedocs.io")
}

func TestPresenter_SummaryRegistered(t *testing.T) {
	var buf bytes.Buffer
	NewPresenter(&buf, false).ShowSummary(&Summary{
		DestDir:        testDestDir,
		ShellRC:        testShellRC,
		PathRegistered: true,
		Duration:       2 * time.Second,
		Outcomes: []InstallationOutcome{
			{Component: "pylsp", State: StateInstalled, Path: testDestDir + "/pylsp", Version: "1.12.0"},
		},
	}, nil)

	out := buf.String()
	assert.Contains(t, out, "READY (1)")
	assert.Contains(t, out, testDestDir+"/pylsp")
	assert.Contains(t, out, "source "+testShellRC)
	assert.NotContains(t, out, "NEXT STEPS")
}

func TestPresenter_SummaryHalted(t *testing.T) {
	var buf bytes.Buffer
	err := errors.Wrap(errors.ErrVersionUnsatisfied, "jdtls")
	NewPresenter(&buf, false).ShowSummary(&Summary{
		DestDir: testDestDir,
		ShellRC: testShellRC,
		Halted:  "jdtls",
		Outcomes: []InstallationOutcome{
			{Component: "pylsp", State: StateAlreadySatisfied, Path: testDestDir + "/pylsp"},
			{Component: "jdtls", State: StateFailed, Err: err, ErrorContext: AnalyzeError("jdtls", "install", err, "")},
		},
	}, err)

	out := buf.String()
	assert.Contains(t, out, "FAILED (1)")
	assert.Contains(t, out, "NEXT STEPS")
	assert.Contains(t, out, "lsp-provision --skip jdtls")
	assert.NotContains(t, out, "source "+testShellRC)
}

func TestPresenter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, true)

	p.ShowHeader("1.0.0")
	p.ShowPlan([]Component{{Name: "pylsp"}}, testDestDir)
	p.ShowProgress("pylsp", PhaseInstalling, "installing")
	p.ShowResult(InstallationOutcome{Component: "pylsp", State: StateAlreadySatisfied})
	assert.Empty(t, buf.String())

	p.ShowResult(InstallationOutcome{Component: "pylsp", State: StateInstalled, Version: "1.12.0"})
	assert.Equal(t, "✓ pylsp 1.12.0\n", buf.String())
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 10))

	wrapped := wrapText("install the distribution package and rerun the tool", 20)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 20, line)
	}
	assert.Equal(t, "install the distribution package and rerun the tool", strings.Join(strings.Split(wrapped, "\n"), " "))
}

func TestPresenter_SummaryNotes(t *testing.T) {
	var buf bytes.Buffer
	NewPresenter(&buf, false).ShowSummary(&Summary{
		DestDir: testDestDir,
		ShellRC: testShellRC,
		Outcomes: []InstallationOutcome{
			{Component: "pylsp", State: StateInstalled, Path: testDestDir + "/pylsp"},
			{Component: "phpactor", State: StateInstalled, Path: testDestDir + "/phpactor", Note: "copied proxy script"},
		},
	}, nil)

	out := buf.String()
	assert.Contains(t, out, "NOTES")
	assert.Contains(t, out, "phpactor: copied proxy script")
	assert.NotContains(t, out, "pylsp: ")
}
