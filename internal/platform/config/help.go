// internal/platform/config/help.go
package config

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/pflag"
)

const usageHeader = `lsp-provision - language server provisioner

Installs pylsp, jdtls, phpactor and typescript-language-server into a
single directory and registers that directory on your PATH.

USAGE:
  lsp-provision [flags]

FLAGS:
`

const usageFooter = `
COMPONENTS (installed in this order):
  pylsp                        Python (apt, falling back to pip)
  jdtls                        Java (OpenJDK runtime + Eclipse JDT LS snapshot)
  phpactor                     PHP (composer)
  typescript-language-server   TypeScript (Node.js + npm)

EXAMPLES:
  # Install everything that is missing
  lsp-provision

  # Only report what is installed
  lsp-provision --check

  # Reinstall into a custom directory, skipping PHP
  lsp-provision --force --dir ~/bin/lsp --skip phpactor

  # Replace an outdated Node.js package and keep a report
  lsp-provision --allow-runtime-removal --report

ENVIRONMENT VARIABLES:
  LSPPROVISION_CONFIG                  Configuration file path
  LSPPROVISION_DIR                     Destination directory
  LSPPROVISION_SHELL_RC                Shell startup file
  LSPPROVISION_SKIP=phpactor,jdtls     Components to skip
  LSPPROVISION_NO_SUDO=true            Run privileged commands directly
  LSPPROVISION_ALLOW_RUNTIME_REMOVAL   Allow replacing an outdated Node.js
  LSPPROVISION_REPORT                  Run report path
  LSPPROVISION_JAVA_MAJOR=21           Required Java major version
  LSPPROVISION_JDTLS_URL               JDT LS archive URL
  LSPPROVISION_JDTLS_DIR               JDT LS extraction directory
  LSPPROVISION_NODE_MINIMUM_MAJOR=18   Minimum Node.js major version
  LSPPROVISION_NODE_SETUP_URL          NodeSource setup script URL
  LSPPROVISION_LOG_LEVEL=debug         Log level

  Flags override environment variables, which override the config file.
`

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprint(w, usageHeader)
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprint(w, usageFooter)
}

// VersionString renders version information for --version.
func VersionString(version, commit, date string) string {
	return fmt.Sprintf("%s %s\n  Commit:  %s\n  Built:   %s\n  Go:      %s\n",
		AppName, version, commit, date, runtime.Version())
}
