// Package common - Error taxonomy shared by the dataset, trainer and command packages.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Label contract violations. LabelError wraps exactly one of these.
var (
	ErrFieldCount      = errors.New("label line must have exactly 5 fields")
	ErrClassOutOfRange = errors.New("class index out of range")
	ErrCoordinateRange = errors.New("normalized coordinate outside [0, 1]")
	ErrNotANumber      = errors.New("field is not a number")
)

// ConfigError reports a bad or missing descriptor, a missing dataset directory or an
// invalid training run configuration.
type ConfigError struct {
	// Path is the file or directory the error refers to, if any.
	Path string
	// Field is the offending key, if any.
	Field string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Err }

// LabelError reports a label line that violates the label contract.
type LabelError struct {
	Path string
	// Line is 1-based.
	Line int
	Err  error
}

// Error implements the error interface.
func (e *LabelError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

// Unwrap returns the contract violation.
func (e *LabelError) Unwrap() error { return e.Err }

// FailureKind classifies a failure reported by the external detection framework.
type FailureKind string

const (
	// FailureUnknown is any framework failure that could not be classified.
	FailureUnknown FailureKind = "unknown"
	// FailureOutOfMemory is a CUDA or host out-of-memory condition.
	FailureOutOfMemory FailureKind = "out-of-memory"
	// FailureMissingWeights is a base-weights file that is missing or failed to download.
	FailureMissingWeights FailureKind = "missing-weights"
	// FailureInvalidDevice is a device specifier the framework rejected.
	FailureInvalidDevice FailureKind = "invalid-device"
	// FailureInterrupted is a run terminated by a signal.
	FailureInterrupted FailureKind = "interrupted"
	// FailureNotInstalled is a framework executable that could not be started.
	FailureNotInstalled FailureKind = "framework-not-installed"
)

// DelegatedTrainingError carries a failure surfaced by the external framework. The framework
// output is kept verbatim so the operator sees the underlying message intact.
type DelegatedTrainingError struct {
	// Op is the delegated operation ("train", "export").
	Op string
	// Kind is the classified failure.
	Kind FailureKind
	// ExitCode is the framework process exit code, -1 when it never ran.
	ExitCode int
	// Output is the tail of the framework output.
	Output []string
	// Err is the underlying process error.
	Err error
}

// Error implements the error interface.
func (e *DelegatedTrainingError) Error() string {
	msg := fmt.Sprintf("%s failed (%s, exit code %d)", e.Op, e.Kind, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Output) > 0 {
		msg += "\n" + strings.Join(e.Output, "\n")
	}
	return msg
}

// Unwrap returns the underlying process error.
func (e *DelegatedTrainingError) Unwrap() error { return e.Err }

// Process exit codes used by the command line.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitDelegated = 3
)

// ExitCode maps an error returned by a command to a process exit code.
//
// Arguments:
//   - err: The error returned by the command, may be nil.
//
// Returns:
//   - int: ExitConfig for configuration and label errors, ExitDelegated for framework
//     failures, ExitFailure otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	var lblErr *LabelError
	var delErr *DelegatedTrainingError
	switch {
	case errors.As(err, &delErr):
		return ExitDelegated
	case errors.As(err, &cfgErr), errors.As(err, &lblErr):
		return ExitConfig
	default:
		return ExitFailure
	}
}
