package engine

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// UnavailableError means the engine CLI cannot serve invocations at all,
// the binary is missing or the daemon socket is not accessible.
type UnavailableError struct {
	Binary string
	Cause  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("engine %s unavailable: %v", e.Binary, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// NotFoundError means the reference has no local image.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such image: %s", e.Ref)
}

// cliError is a non-zero engine exit, with stderr when the invocation captured it
type cliError struct {
	args   []string
	stderr []byte
	cause  error
}

func (e *cliError) Error() string {
	sub := ""
	if len(e.args) > 0 {
		sub = " " + e.args[0]
	}
	msg := strings.TrimSpace(string(e.stderr))
	if msg == "" {
		return fmt.Sprintf("engine%s: %v", sub, e.cause)
	}
	return fmt.Sprintf("engine%s: %v: %s", sub, e.cause, msg)
}

func (e *cliError) Unwrap() error { return e.cause }

func isExecErrNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return errors.Is(execErr.Err, exec.ErrNotFound)
	}
	return false
}

// notFoundPhrases covers docker and podman stderr for missing local images
var notFoundPhrases = []string{
	"no such image",
	"image not known",
	"not found",
}

func isNotFound(err error) bool {
	var cli *cliError
	if !errors.As(err, &cli) {
		return false
	}
	s := strings.ToLower(string(cli.stderr))
	for _, phrase := range notFoundPhrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}

// isPermissionDenied matches a non-root client refused by a root-owned daemon socket
func isPermissionDenied(err error) bool {
	var cli *cliError
	if !errors.As(err, &cli) {
		return false
	}
	return strings.Contains(strings.ToLower(string(cli.stderr)), "permission denied")
}

// ExitCode extracts the subprocess exit code for propagation, -1 when err
// carries none.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
