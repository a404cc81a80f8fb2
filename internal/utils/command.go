package utils

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandResult holds the captured streams and exit status of a finished process
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs an external program to completion
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner runs commands with os/exec, capturing stdout and stderr.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit yields the populated result
// and an *exec.ExitError; a launch failure yields ExitCode -1.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, err
	}

	return result, nil
}

// IsLaunchFailure reports whether err means the process never ran
// (missing binary, permission denied) as opposed to exiting non-zero.
func IsLaunchFailure(err error) bool {
	if err == nil {
		return false
	}
	var exitErr *exec.ExitError
	return !errors.As(err, &exitErr)
}
