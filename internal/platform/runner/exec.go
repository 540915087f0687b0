package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/logx"
)

// childEnv is added to every child process. It keeps package managers from
// prompting and command output free of color codes.
var childEnv = map[string]string{
	"NO_COLOR":         "1",
	"DEBIAN_FRONTEND":  "noninteractive",
	"NEEDRESTART_MODE": "a",
}

// ExecRunner runs commands on the local host through os/exec.
type ExecRunner struct {
	logger logx.Logger
	sudo   bool
	euid   func() int
	stream io.Writer
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithSudo enables or disables the sudo prefix for privileged commands.
func WithSudo(enabled bool) Option {
	return func(r *ExecRunner) { r.sudo = enabled }
}

// WithStream tees child output to w while it runs (verbose mode).
func WithStream(w io.Writer) Option {
	return func(r *ExecRunner) { r.stream = w }
}

// NewExecRunner creates a runner. Sudo is enabled by default.
func NewExecRunner(logger logx.Logger, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		logger: logger,
		sudo:   true,
		euid:   os.Geteuid,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes spec and waits for it. Cancelling ctx kills the child.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) (*Result, error) {
	name, args := r.argv(spec)
	r.logger.Debug("running command", "command", spec.String(), "privileged", spec.Privileged, "dir", spec.Dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), envList(spec.Env)...)
	// sudo may need the terminal for a password prompt
	cmd.Stdin = os.Stdin

	var stdout, stderr, combined bytes.Buffer
	outW := []io.Writer{&stdout, &combined}
	errW := []io.Writer{&stderr, &combined}
	if r.stream != nil {
		outW = append(outW, r.stream)
		errW = append(errW, r.stream)
	}
	cmd.Stdout = io.MultiWriter(outW...)
	cmd.Stderr = io.MultiWriter(errW...)

	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}
	if err == nil {
		return res, nil
	}

	res.ExitCode = exitCode(err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	cerr := &CommandError{Spec: spec, ExitCode: res.ExitCode, Output: res.Combined, Err: err}
	r.logger.Warn("command failed", "command", spec.String(), "exit_code", res.ExitCode, "error", err.Error())
	if lines := cerr.TrimmedOutput(); len(lines) > 0 {
		r.logger.Debug("command output", "output", strings.Join(lines, "\n"))
	}
	return res, cerr
}

func (r *ExecRunner) argv(spec CommandSpec) (string, []string) {
	if !spec.Privileged || !r.sudo || r.euid() == 0 {
		return spec.Program, spec.Args
	}
	// sudo resets the environment, so pass the child variables as
	// assignments in front of the program.
	args := envList(spec.Env)
	args = append(args, spec.Program)
	args = append(args, spec.Args...)
	return "sudo", args
}

func envList(extra map[string]string) []string {
	merged := make(map[string]string, len(childEnv)+len(extra))
	for k, v := range childEnv {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
