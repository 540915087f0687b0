// Package runner executes external commands for the installers.
//
// A CommandSpec describes one invocation. Runner implementations execute it
// synchronously and return the captured output; failures are reported as
// *CommandError values that match errors.ErrCommandFailed.
package runner

import (
	"context"
	"fmt"
	"strings"

	"lspprovision/internal/platform/errors"
)

// CommandSpec describes a single external command.
type CommandSpec struct {
	Program string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env holds extra variables layered over the process environment.
	Env map[string]string
	// Privileged marks commands that need root. The exec runner prefixes
	// sudo when the process is not already root.
	Privileged bool
}

// Command builds an unprivileged CommandSpec.
func Command(program string, args ...string) CommandSpec {
	return CommandSpec{Program: program, Args: args}
}

// Privileged builds a CommandSpec that needs root.
func Privileged(program string, args ...string) CommandSpec {
	return CommandSpec{Program: program, Args: args, Privileged: true}
}

// InDir returns a copy of the spec running in dir.
func (c CommandSpec) InDir(dir string) CommandSpec {
	c.Dir = dir
	return c
}

// String renders the command line without any sudo prefix.
func (c CommandSpec) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Program))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Runner executes commands. Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) (*Result, error)
}

// CommandError reports a command that could not start or exited non-zero.
type CommandError struct {
	Spec     CommandSpec
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: exit %d: %v", e.Spec, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: exit %d", e.Spec, e.ExitCode)
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{errors.ErrCommandFailed}
	}
	return []error{errors.ErrCommandFailed, e.Err}
}

// TrimmedOutput returns the non-empty output lines, indented for display.
func (e *CommandError) TrimmedOutput() []string {
	return trimLines(e.Output)
}

func trimLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, "   "+strings.TrimRight(line, "\r"))
		}
	}
	return lines
}
