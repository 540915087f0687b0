// internal/testutil/mocks.go
package testutil

import (
	"context"
	"strings"
	"sync"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// Handler produces the result of a faked command.
type Handler func(spec runner.CommandSpec) (*runner.Result, error)

type rule struct {
	prefix string
	handle Handler
}

// FakeRunner records every command and answers from registered rules.
// Commands without a matching rule succeed with empty output.
type FakeRunner struct {
	mu    sync.Mutex
	calls []runner.CommandSpec
	rules []rule
}

// NewFakeRunner returns a runner with no rules.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers h for commands whose line starts with prefix on a word
// boundary. Later rules take precedence over earlier ones.
func (f *FakeRunner) On(prefix string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, handle: h})
	return f
}

// Output makes matching commands succeed with out as stdout.
func (f *FakeRunner) Output(prefix, out string) *FakeRunner {
	return f.On(prefix, func(runner.CommandSpec) (*runner.Result, error) {
		return &runner.Result{Stdout: out, Combined: out}, nil
	})
}

// Fail makes matching commands exit with code.
func (f *FakeRunner) Fail(prefix string, code int) *FakeRunner {
	return f.On(prefix, func(spec runner.CommandSpec) (*runner.Result, error) {
		res := &runner.Result{ExitCode: code, Stderr: "fake failure", Combined: "fake failure"}
		return res, &runner.CommandError{Spec: spec, ExitCode: code, Output: res.Combined, Err: errors.New("fake failure")}
	})
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, spec runner.CommandSpec) (*runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	h := f.match(spec.String())
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &runner.Result{ExitCode: -1}, &runner.CommandError{Spec: spec, ExitCode: -1, Err: err}
	}
	if h == nil {
		return &runner.Result{}, nil
	}

	res, err := h(spec)
	if res == nil {
		res = &runner.Result{}
	}
	if err != nil && !errors.IsCommandFailed(err) {
		err = &runner.CommandError{Spec: spec, ExitCode: 1, Output: res.Combined, Err: err}
	}
	return res, err
}

func (f *FakeRunner) match(line string) Handler {
	for i := len(f.rules) - 1; i >= 0; i-- {
		if matches(line, f.rules[i].prefix) {
			return f.rules[i].handle
		}
	}
	return nil
}

func matches(line, prefix string) bool {
	return line == prefix || strings.HasPrefix(line, prefix+" ")
}

// Calls returns the recorded command specs in order.
func (f *FakeRunner) Calls() []runner.CommandSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.CommandSpec(nil), f.calls...)
}

// Commands returns the recorded command lines in order.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded commands match prefix.
func (f *FakeRunner) Count(prefix string) int {
	n := 0
	for _, line := range f.Commands() {
		if matches(line, prefix) {
			n++
		}
	}
	return n
}

// Ran reports whether any recorded command matches prefix.
func (f *FakeRunner) Ran(prefix string) bool {
	return f.Count(prefix) > 0
}

// Find returns the first recorded spec matching prefix.
func (f *FakeRunner) Find(prefix string) (runner.CommandSpec, bool) {
	for _, c := range f.Calls() {
		if matches(c.String(), prefix) {
			return c, true
		}
	}
	return runner.CommandSpec{}, false
}
