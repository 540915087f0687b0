package installer

import (
	"context"

	"lspprovision/internal/platform/errors"
	"lspprovision/internal/platform/runner"
)

// refreshIndex runs apt-get update once per run, or again when force is
// set (after a repository was added).
func (e *Environment) refreshIndex(ctx context.Context, force bool) error {
	if e.indexRefreshed && !force {
		return nil
	}
	if _, err := e.Must(ctx, runner.Privileged("apt-get", "update")); err != nil {
		return errors.Wrap(err, "refresh package index")
	}
	e.indexRefreshed = true
	return nil
}

// aptInstall installs system packages non-interactively.
func (e *Environment) aptInstall(ctx context.Context, packages ...string) error {
	if err := e.refreshIndex(ctx, false); err != nil {
		return err
	}
	args := append([]string{"install", "-y"}, packages...)
	if _, err := e.Must(ctx, runner.Privileged("apt-get", args...)); err != nil {
		return errors.Wrapf(err, "install packages %v", packages)
	}
	return nil
}

// ensureTool installs packages when command is not on the session PATH.
func (e *Environment) ensureTool(ctx context.Context, command string, packages ...string) error {
	if _, err := e.Locate(ctx, OnPath(command)); err == nil {
		e.Logger.Debug("prerequisite present", "command", command)
		return nil
	}
	e.Logger.Info("installing prerequisite", "command", command, "packages", packages)
	if err := e.aptInstall(ctx, packages...); err != nil {
		return err
	}
	if _, err := e.Locate(ctx, OnPath(command)); err != nil {
		return errors.Wrapf(err, "%s still missing after installing %v", command, packages)
	}
	return nil
}
