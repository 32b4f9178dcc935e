// internal/cli/exit.go
package cli

import (
	"errors"
	"fmt"

	poks "github.com/poks-tools/poks"
)

// Exit codes of the poks binary.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitChecksum = 4
	ExitNetwork  = 5
)

// usageError marks a bad invocation (exit code 2).
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error onto the CLI exit-code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *usageError
	var sum *summaryError
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &sum):
		return sum.code
	case errors.Is(err, poks.ErrChecksumMismatch):
		return ExitChecksum
	case errors.Is(err, poks.ErrHTTP), errors.Is(err, poks.ErrBucketSync):
		return ExitNetwork
	case errors.Is(err, poks.ErrManifestNotFound),
		errors.Is(err, poks.ErrVersionNotFound),
		errors.Is(err, poks.ErrNotInstalled):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// summaryError carries the strongest per-app failure out of an install run
// so the process exit code reflects it.
type summaryError struct {
	failed int
	code   int
}

func (e *summaryError) Error() string {
	return fmt.Sprintf("%d app(s) failed to install", e.failed)
}

// strongestError picks the exit code to report when several apps failed:
// checksum mismatches outrank network errors, which outrank lookup misses.
func strongestError(results []poks.Result) error {
	var failed int
	codeSeen := map[int]bool{}
	for _, r := range results {
		if r.Status == poks.StatusFailed {
			failed++
			codeSeen[ExitCode(r.Err)] = true
		}
	}
	if failed == 0 {
		return nil
	}
	for _, code := range []int{ExitChecksum, ExitNetwork, ExitNotFound, ExitFailure} {
		if codeSeen[code] {
			return &summaryError{failed: failed, code: code}
		}
	}
	return &summaryError{failed: failed, code: ExitFailure}
}
