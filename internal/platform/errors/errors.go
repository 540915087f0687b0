// Package errors provides error types and utilities for lsp-provision.
// It extends the standard errors package with provisioning sentinels and
// wrapping helpers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for provisioning failure classes
var (
	// ErrNotFound indicates a binary, directory or file could not be located
	ErrNotFound = errors.New("not found")

	// ErrNotExecutable indicates a located artifact lacks execute permission
	ErrNotExecutable = errors.New("not executable")

	// ErrCommandFailed indicates a mandatory external command exited unsuccessfully
	ErrCommandFailed = errors.New("command failed")

	// ErrVersionUnsatisfied indicates a runtime version does not meet the requirement
	ErrVersionUnsatisfied = errors.New("version requirement not satisfied")

	// ErrVerificationFailed indicates an installer finished but its artifact is unusable
	ErrVerificationFailed = errors.New("post-install verification failed")

	// ErrConfirmationRequired indicates a destructive step needs explicit consent
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrInvalidArchive indicates a downloaded archive has unexpected content
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrInvalidInput indicates invalid configuration or arguments
	ErrInvalidInput = errors.New("invalid input")
)

// wrappedError wraps an error with additional context
type wrappedError struct {
	msg   string
	cause error
}

// Error implements the error interface
func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap returns the underlying error
func (e *wrappedError) Unwrap() error {
	return e.cause
}

// Wrap wraps an error with additional context message.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	if err := env.FS.MkdirAll(dir, 0o755); err != nil {
//	    return errors.Wrap(err, "create destination directory")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg:   msg,
		cause: err,
	}
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf formats according to a format specifier and returns the string as a value that satisfies error.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join returns an error that wraps the given errors.
// Any nil error values are discarded.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsNotFound reports whether the error is a not found error
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsCommandFailed reports whether the error stems from a failed mandatory command
func IsCommandFailed(err error) bool {
	return Is(err, ErrCommandFailed)
}

// IsVerificationFailed reports whether the error is a post-install verification failure.
// Missing execute permission on the final artifact counts as one.
func IsVerificationFailed(err error) bool {
	return Is(err, ErrVerificationFailed) || Is(err, ErrNotExecutable)
}

// IsVersionUnsatisfied reports whether the error is a version requirement failure
func IsVersionUnsatisfied(err error) bool {
	return Is(err, ErrVersionUnsatisfied)
}

// IsConfirmationRequired reports whether the error asks for explicit consent
func IsConfirmationRequired(err error) bool {
	return Is(err, ErrConfirmationRequired)
}
