package installer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionToken matches the first version-looking token, e.g. 21.0.2 in
// `openjdk version "21.0.2"` or 22.1.0 in `v22.1.0`.
var versionToken = regexp.MustCompile(`\d+(?:\.\d+)*`)

// ExtractVersion returns the first version-looking token of output, or ""
// when there is none. Lines mentioning "version" are preferred so that
// banners such as "Picked up JAVA_TOOL_OPTIONS: -Xmx512m" are skipped.
func ExtractVersion(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(strings.ToLower(line), "version") {
			if tok := versionToken.FindString(line); tok != "" {
				return tok
			}
		}
	}
	return versionToken.FindString(output)
}

// ParseMajor extracts the major version from a tool's version output.
func ParseMajor(output string) (int, bool) {
	token := ExtractVersion(output)
	if token == "" {
		return 0, false
	}
	if v, err := semver.NewVersion(token); err == nil {
		return int(v.Major()), true
	}
	lead, _, _ := strings.Cut(token, ".")
	n, err := strconv.Atoi(lead)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CheckMajor reports whether output carries exactly the required major.
func CheckMajor(output string, required int) bool {
	major, ok := ParseMajor(output)
	return ok && major == required
}

// CheckMinimum reports whether the version in output satisfies a semver
// constraint such as ">= 18".
func CheckMinimum(output, constraint string) bool {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	token := ExtractVersion(output)
	if token == "" {
		return false
	}
	v, err := semver.NewVersion(token)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// GateDecision is what an installer does with its runtime.
type GateDecision int

const (
	// DecisionSkip means the runtime satisfies the requirement.
	DecisionSkip GateDecision = iota
	// DecisionInstall means no runtime is present.
	DecisionInstall
	// DecisionUpgrade means a runtime is present but unsatisfactory.
	DecisionUpgrade
)

func (d GateDecision) String() string {
	switch d {
	case DecisionSkip:
		return "skip-install"
	case DecisionInstall:
		return "install"
	case DecisionUpgrade:
		return "upgrade"
	default:
		return "unknown"
	}
}

// VersionGate holds a runtime requirement. When Exact is set the major
// must match; otherwise the major must be at least Major.
type VersionGate struct {
	Major int
	Exact bool
}

// ExactMajor requires the runtime major to equal major.
func ExactMajor(major int) VersionGate {
	return VersionGate{Major: major, Exact: true}
}

// MinimumMajor requires the runtime major to be at least major.
func MinimumMajor(major int) VersionGate {
	return VersionGate{Major: major}
}

// Satisfied reports whether the version output meets the requirement.
func (g VersionGate) Satisfied(output string) bool {
	if g.Exact {
		return CheckMajor(output, g.Major)
	}
	return CheckMinimum(output, g.Constraint())
}

// Constraint renders the requirement as a semver constraint.
func (g VersionGate) Constraint() string {
	if g.Exact {
		return fmt.Sprintf("%d.x", g.Major)
	}
	return fmt.Sprintf(">= %d", g.Major)
}

// Decide maps a version query result to a decision. There is no downgrade path:
// anything unsatisfied is installed over.
func (g VersionGate) Decide(output string, present bool) GateDecision {
	switch {
	case present && g.Satisfied(output):
		return DecisionSkip
	case present:
		return DecisionUpgrade
	default:
		return DecisionInstall
	}
}
