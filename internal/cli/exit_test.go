package cli

import (
	"errors"
	"fmt"
	"testing"

	poks "github.com/poks-tools/poks"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"usage", usagef("bad flags"), ExitUsage},
		{"checksum", fmt.Errorf("wrap: %w", poks.ErrChecksumMismatch), ExitChecksum},
		{"http", fmt.Errorf("wrap: %w", poks.ErrHTTP), ExitNetwork},
		{"bucket sync", fmt.Errorf("wrap: %w", poks.ErrBucketSync), ExitNetwork},
		{"manifest missing", fmt.Errorf("wrap: %w", poks.ErrManifestNotFound), ExitNotFound},
		{"version missing", fmt.Errorf("wrap: %w", poks.ErrVersionNotFound), ExitNotFound},
		{"not installed", fmt.Errorf("wrap: %w", poks.ErrNotInstalled), ExitNotFound},
		{"generic", errors.New("boom"), ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestStrongestError(t *testing.T) {
	if err := strongestError([]poks.Result{{Status: poks.StatusInstalled}}); err != nil {
		t.Errorf("no failures should yield nil, got %v", err)
	}

	results := []poks.Result{
		{Status: poks.StatusFailed, Err: fmt.Errorf("a: %w", poks.ErrVersionNotFound)},
		{Status: poks.StatusFailed, Err: fmt.Errorf("b: %w", poks.ErrChecksumMismatch)},
		{Status: poks.StatusSkippedPlatform},
	}
	err := strongestError(results)
	if err == nil {
		t.Fatal("failures should yield an error")
	}
	if got := ExitCode(err); got != ExitChecksum {
		t.Errorf("strongest code = %d, want %d", got, ExitChecksum)
	}
}
