package installer

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

const (
	separatorHeavy = "════════════════════════════════════════════════════════════"
	separatorLight = "────────────────────────────────────────────────────────────"
)

// Presenter renders progress and results on the terminal.
type Presenter struct {
	out   io.Writer
	quiet bool
}

// NewPresenter creates a presenter writing to out. In quiet mode only
// failures and the final result lines are printed.
func NewPresenter(out io.Writer, quiet bool) *Presenter {
	return &Presenter{out: out, quiet: quiet}
}

func (p *Presenter) println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Presenter) printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// ShowHeader displays the installation header.
func (p *Presenter) ShowHeader(version string) {
	if p.quiet {
		return
	}
	p.println(pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Sprint("lsp-provision " + version))
	p.println()
}

// ShowPlan lists the components about to be ensured.
func (p *Presenter) ShowPlan(components []Component, destDir string) {
	if p.quiet {
		return
	}
	p.println(pterm.DefaultSection.Sprint("Language servers"))
	for _, c := range components {
		p.printf("  • %-28s %s\n", c.Name, pterm.Gray(c.Constraint))
	}
	p.println()
	p.printf("  Destination: %s\n", pterm.Cyan(destDir))
	p.println()
	p.println(pterm.LightBlue(separatorLight))
	p.println()
}

// ShowProgress displays real-time installation progress.
func (p *Presenter) ShowProgress(component string, phase InstallationPhase, message string) {
	if p.quiet {
		return
	}
	phaseIcon := map[InstallationPhase]string{
		PhaseChecking:    "🔍",
		PhaseInstalling:  "🔧",
		PhaseDownloading: "⬇",
		PhaseExtracting:  "📦",
		PhaseLinking:     "🔗",
		PhaseValidating:  "✓",
	}
	switch phase {
	case PhaseCompleted:
		p.printf("  %s %-28s %s\n", pterm.Green("✓"), component, message)
		return
	case PhaseFailed:
		p.printf("  %s %-28s %s\n", pterm.Red("✗"), component, truncate(message, 60))
		return
	}
	icon := phaseIcon[phase]
	if icon == "" {
		icon = "•"
	}
	p.printf("  %s %-28s %s\n", icon, component, message)
}

// ShowCheckResults displays check-only mode results.
func (p *Presenter) ShowCheckResults(outcomes []InstallationOutcome) {
	p.println()
	p.println(pterm.DefaultSection.Sprint("Language server status"))

	data := pterm.TableData{{"Component", "Version", "State"}}
	missing := 0
	for _, o := range outcomes {
		state := pterm.Green("installed")
		switch o.State {
		case StateMissing:
			state = pterm.Yellow("missing")
			missing++
		case StateFailed:
			state = pterm.Red("check failed")
			missing++
		}
		data = append(data, []string{o.Component, orDash(firstLine(o.Version)), state})
	}
	if table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender(); err == nil {
		p.println(table)
	}

	p.println()
	if missing > 0 {
		p.printf("To install %d missing servers, run: lsp-provision\n", missing)
	} else {
		p.println("All language servers are installed ✓")
	}
	p.println()
}

// ShowResult displays a single installation outcome.
func (p *Presenter) ShowResult(o InstallationOutcome) {
	version := truncate(firstLine(o.Version), 20)
	switch o.State {
	case StateInstalled:
		if p.quiet {
			p.printf("✓ %s %s\n", o.Component, version)
		} else {
			p.printf("  ✓ %-28s %-12s (%.1fs)\n", o.Component, orDash(version), o.Duration.Seconds())
		}
	case StateAlreadySatisfied:
		if !p.quiet {
			p.printf("  ✓ %-28s %-12s (already installed)\n", o.Component, orDash(version))
		}
	case StateFailed:
		p.printf("  ✗ %-28s FAILED\n", o.Component)
		if o.ErrorContext != nil {
			p.println()
			p.showErrorContext(o.ErrorContext)
		}
	}
}

func (p *Presenter) showErrorContext(ec *ErrorContext) {
	indent := "      "

	p.printf("%sERROR: %s\n", indent, ec.Error)
	if ec.Command != "" {
		p.printf("%sCOMMAND: %s\n", indent, ec.Command)
	}
	if len(ec.Output) > 0 && !p.quiet {
		p.printf("%sOUTPUT:\n", indent)
		for _, line := range ec.Output {
			p.printf("%s  %s\n", indent, pterm.Gray(line))
		}
	}
	if ec.Reason != "" {
		p.printf("%sREASON: %s\n", indent, ec.Reason)
	}

	if len(ec.Solutions) > 0 {
		p.println()
		p.printf("%sSOLUTIONS:\n", indent)
		for i, solution := range ec.Solutions {
			lines := strings.Split(wrapText(solution, 60), "\n")
			p.printf("%s%d) %s\n", indent, i+1, lines[0])
			for _, l := range lines[1:] {
				p.printf("%s   %s\n", indent, l)
			}
		}
	}

	if ec.DocsURL != "" {
		p.println()
		p.printf("%sDOCS: %s\n", indent, ec.DocsURL)
	}
	p.println()
}

// ShowSummary displays the final installation summary. err is the error
// that stopped the run, if any.
func (p *Presenter) ShowSummary(s *Summary, err error) {
	p.println()
	p.println(separatorHeavy)
	p.println("⚡ INSTALLATION SUMMARY")
	p.println()

	var ok, failed []InstallationOutcome
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			ok = append(ok, o)
		} else {
			failed = append(failed, o)
		}
	}

	if len(ok) > 0 {
		p.println(pterm.Green(fmt.Sprintf("✓ READY (%d)", len(ok))))
		for _, o := range ok {
			note := "installed"
			if o.State == StateAlreadySatisfied {
				note = "already installed"
			}
			p.printf("  ✓ %-28s %-12s → %s (%s)\n", o.Component, orDash(truncate(firstLine(o.Version), 12)), o.Path, note)
		}
		p.println()
	}

	if len(failed) > 0 {
		p.println(pterm.Red(fmt.Sprintf("✗ FAILED (%d)", len(failed))))
		for _, o := range failed {
			reason := "unknown error"
			if o.ErrorContext != nil && o.ErrorContext.Reason != "" {
				reason = o.ErrorContext.Reason
			} else if o.Err != nil {
				reason = truncate(o.Err.Error(), 50)
			}
			p.printf("  ✗ %-28s → %s\n", o.Component, reason)
		}
		p.println()
	}

	var notes []InstallationOutcome
	for _, o := range ok {
		if o.Note != "" {
			notes = append(notes, o)
		}
	}
	if len(notes) > 0 {
		p.println(pterm.Yellow("📝 NOTES"))
		for _, o := range notes {
			lines := strings.Split(wrapText(o.Note, 60), "\n")
			p.printf("  • %s: %s\n", o.Component, lines[0])
			for _, l := range lines[1:] {
				p.printf("    %s\n", l)
			}
		}
		p.println()
	}

	p.println(separatorLight)
	p.printf("⏱  Duration: %.1fs\n", s.Duration.Seconds())

	switch {
	case err != nil && s.Halted != "":
		p.println()
		p.println("📋 NEXT STEPS")
		p.println()
		p.printf("   • %s stopped the run; later servers were not attempted\n", s.Halted)
		p.println("   • Review the error above for specific solutions")
		p.println("   • Run with --verbose for detailed logs")
		p.printf("   • Or skip it: lsp-provision --skip %s\n", s.Halted)
	case err != nil:
		p.println()
		p.printf("✗ %v\n", err)
	case s.PathRegistered:
		p.println()
		p.printf("➕ %s was added to PATH in %s\n", s.DestDir, s.ShellRC)
		p.println("   Reload your shell to use the servers in existing terminals:")
		p.println()
		p.printf("     source %s\n", s.ShellRC)
	default:
		p.println()
		p.printf("   %s is already on PATH via %s\n", s.DestDir, s.ShellRC)
	}

	p.println()
	p.println(separatorHeavy)
	p.println()
}

func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// wrapText wraps text at the specified width.
func wrapText(text string, width int) string {
	if len(text) <= width {
		return text
	}

	var result strings.Builder
	line := ""
	for _, word := range strings.Fields(text) {
		if line != "" && len(line)+len(word)+1 > width {
			if result.Len() > 0 {
				result.WriteString("\n")
			}
			result.WriteString(line)
			line = word
			continue
		}
		if line != "" {
			line += " "
		}
		line += word
	}

	if line != "" {
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		result.WriteString(line)
	}
	return result.String()
}
