package installer

import (
	"context"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// FirstSuccess calls attempt for each item in order and returns the first
// result without error. When every attempt fails the errors are joined.
// A cancelled context stops the chain.
func FirstSuccess[T, R any](ctx context.Context, items []T, attempt func(context.Context, T) (R, error)) (R, error) {
	var zero R
	if len(items) == 0 {
		return zero, errors.Wrap(errors.ErrNotFound, "nothing to try")
	}

	errs := make([]error, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		r, err := attempt(ctx, item)
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	return zero, errors.Join(errs...)
}

// InstallStrategy is one way of installing a component.
type InstallStrategy struct {
	Name string
	Spec runner.CommandSpec
}

// RunStrategies tries strategies in order until one succeeds and returns
// its name. Individual failures are logged, not returned.
func (e *Environment) RunStrategies(ctx context.Context, component string, strategies []InstallStrategy) (string, error) {
	return FirstSuccess(ctx, strategies, func(ctx context.Context, s InstallStrategy) (string, error) {
		e.Logger.Debug("trying install strategy", "component", component, "strategy", s.Name)
		if _, err := e.Runner.Run(ctx, s.Spec); err != nil {
			e.Logger.Warn("install strategy failed", "component", component, "strategy", s.Name, "error", err.Error())
			return "", err
		}
		e.Logger.Info("install strategy succeeded", "component", component, "strategy", s.Name)
		return s.Name, nil
	})
}
