package installer

import (
	"fmt"
	"strings"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// ErrorContext provides detailed context and solutions for installation errors.
type ErrorContext struct {
	Component string
	Phase     string // "check", "install", "validate"
	Error     error
	// Command is the failing command line, when a command failed.
	Command   string
	Output    []string
	Reason    string
	Solutions []string
	DocsURL   string
}

// String formats the error context for display.
func (ec *ErrorContext) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n    ERROR: %s\n", ec.Error))
	if ec.Command != "" {
		b.WriteString(fmt.Sprintf("    COMMAND: %s\n", ec.Command))
	}
	if ec.Reason != "" {
		b.WriteString(fmt.Sprintf("    REASON: %s\n", ec.Reason))
	}

	if len(ec.Solutions) > 0 {
		b.WriteString("\n    SOLUTIONS:\n")
		for i, solution := range ec.Solutions {
			b.WriteString(fmt.Sprintf("    %d) %s\n", i+1, solution))
		}
	}

	if ec.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n    For more help: %s\n", ec.DocsURL))
	}

	return b.String()
}

// maxOutputLines bounds the command output kept for display.
const maxOutputLines = 12

// AnalyzeError creates an ErrorContext from a raw error.
func AnalyzeError(component string, phase string, err error, docsURL string) *ErrorContext {
	if err == nil {
		return nil
	}

	ctx := &ErrorContext{
		Component: component,
		Phase:     phase,
		Error:     err,
		DocsURL:   docsURL,
	}

	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		ctx.Command = cmdErr.Spec.String()
		ctx.Output = tail(cmdErr.TrimmedOutput(), maxOutputLines)
	}

	errMsg := strings.ToLower(err.Error())
	if cmdErr != nil {
		errMsg += "\n" + strings.ToLower(cmdErr.Output)
	}

	switch {
	case errors.IsConfirmationRequired(err):
		ctx.Reason = "An installed runtime is too old and replacing it needs your consent"
		ctx.Solutions = []string{
			"Rerun with --allow-runtime-removal to remove the distribution package and install a newer one",
			"Or upgrade the runtime yourself and rerun lsp-provision",
			fmt.Sprintf("Or skip this server: lsp-provision --skip %s", component),
		}

	case errors.IsVersionUnsatisfied(err):
		ctx.Reason = "The runtime installed by the package manager still has the wrong version"
		ctx.Solutions = []string{
			"Check which package provides it: apt-cache policy",
			"Another installation earlier on PATH may shadow it: command -v -a",
			"Use update-alternatives to select the right runtime",
		}

	case strings.Contains(errMsg, "could not get lock") || strings.Contains(errMsg, "dpkg was interrupted"):
		ctx.Reason = "The package manager is locked or was interrupted"
		ctx.Solutions = []string{
			"Wait for other apt or unattended-upgrades processes to finish",
			"If dpkg was interrupted run: sudo dpkg --configure -a",
			"Then rerun lsp-provision",
		}

	case strings.Contains(errMsg, "unable to locate package") || strings.Contains(errMsg, "has no installation candidate"):
		ctx.Reason = "The package is not available from the configured repositories"
		ctx.Solutions = []string{
			"Refresh the package index: sudo apt-get update",
			"Check that the distribution release is supported",
			"Install the package manually and rerun",
		}

	case strings.Contains(errMsg, "externally-managed-environment"):
		ctx.Reason = "The system Python refuses pip installs outside a virtual environment"
		ctx.Solutions = []string{
			"Install the distribution package: sudo apt-get install python3-pylsp",
			"Or use pipx: pipx install python-lsp-server",
		}

	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		ctx.Reason = "Network request timeout - slow or unstable connection"
		ctx.Solutions = []string{
			"Check your internet connection and retry",
			"Set HTTPS_PROXY if you are behind a proxy",
		}

	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "temporary failure in name resolution"):
		ctx.Reason = "DNS resolution failed - cannot reach the download server"
		ctx.Solutions = []string{
			"Check your internet connection",
			"Verify DNS settings",
			"Set HTTPS_PROXY if you are behind a proxy",
		}

	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset"):
		ctx.Reason = "Network connection was refused or reset"
		ctx.Solutions = []string{
			"Check if a firewall is blocking outbound connections",
			"Verify proxy settings if behind corporate proxy",
			"Try again in a few moments (temporary network issue)",
		}

	case errors.Is(err, errors.ErrInvalidArchive):
		ctx.Reason = "The downloaded file is not a gzip archive"
		ctx.Solutions = []string{
			"The download may have been replaced by an error page; check the URL",
			"Set LSPPROVISION_JDTLS_URL to a mirror",
		}

	case strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "a password is required"):
		ctx.Reason = "Insufficient permissions"
		ctx.Solutions = []string{
			"Make sure sudo works: sudo -v",
			"Or install to a user-writable directory: lsp-provision --dir ~/bin",
		}

	case strings.Contains(errMsg, "no space left"):
		ctx.Reason = "Insufficient disk space"
		ctx.Solutions = []string{
			"Free up disk space and try again",
			"Check available space: df -h",
		}

	case errors.IsVerificationFailed(err):
		ctx.Reason = "Installation finished but the server is not an executable in the destination directory"
		ctx.Solutions = []string{
			"Try reinstalling: lsp-provision --force",
			"Check permissions of the destination directory",
		}

	case errors.IsNotFound(err):
		ctx.Reason = "A required program or file could not be found after installing it"
		ctx.Solutions = []string{
			"Run with --verbose to see where it was searched",
			"Check that the install step put it on PATH",
		}

	default:
		ctx.Reason = "An unexpected error occurred during installation"
		ctx.Solutions = []string{
			"Try running with verbose mode: lsp-provision --verbose",
			"Try forcing reinstall: lsp-provision --force",
		}
	}

	return ctx
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// GetDocumentationURL returns the documentation URL for a component.
func GetDocumentationURL(component string) string {
	urls := map[string]string{
		"pylsp":                      "https://github.com/python-lsp/python-lsp-server",
		"jdtls":                      "https://github.com/eclipse-jdtls/eclipse.jdt.ls",
		"phpactor":                   "https://phpactor.readthedocs.io/en/master/usage/standalone.html",
		"typescript-language-server": "https://github.com/typescript-language-server/typescript-language-server",
	}

	if url, ok := urls[strings.ToLower(component)]; ok {
		return url
	}

	return "https://github.com/search?q=" + component
}
