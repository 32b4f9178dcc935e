// pkg/poker/poke.go
//
// Conda packages built for relocation embed a build-time prefix that has to
// be rewritten to the real install directory after extraction. Text files
// get a plain replacement; binaries get a null-padded replacement so file
// offsets stay valid.
package poker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrPrefixTooLong indicates the install path does not fit the placeholder.
var ErrPrefixTooLong = errors.New("install path longer than placeholder")

// FileModeText and FileModeBinary are the two patch modes in paths.json.
const (
	FileModeText   = "text"
	FileModeBinary = "binary"
)

// PatchEntry is a single file needing prefix replacement, as listed in a
// conda package's paths.json.
type PatchEntry struct {
	Path        string
	Placeholder string
	FileMode    string
}

// PrefixTooLongError reports a binary patch that cannot be applied because
// the replacement would not fit.
type PrefixTooLongError struct {
	File           string
	PathLen        int
	PlaceholderLen int
}

func (e *PrefixTooLongError) Error() string {
	return fmt.Sprintf("cannot poke %s: install path (%d bytes) exceeds placeholder (%d bytes)",
		e.File, e.PathLen, e.PlaceholderLen)
}

func (e *PrefixTooLongError) Unwrap() error { return ErrPrefixTooLong }

// Poke rewrites build prefixes under fileRoot so the package works from
// installDir. fileRoot is usually installDir itself, but during staged
// installs the files live elsewhere while installDir is the path they will
// be renamed to. Poking is idempotent: once no placeholder bytes remain,
// re-running changes nothing.
func Poke(fileRoot, installDir string, entries []PatchEntry, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	for _, entry := range entries {
		target := filepath.Join(fileRoot, filepath.FromSlash(entry.Path))
		info, err := os.Stat(target)
		if err != nil || info.IsDir() {
			logger.Printf("skipping patch for missing file: %s", entry.Path)
			continue
		}

		switch entry.FileMode {
		case FileModeText:
			err = pokeText(target, entry.Placeholder, installDir)
		case FileModeBinary:
			err = pokeBinary(target, entry.Placeholder, installDir)
		default:
			logger.Printf("unknown file_mode %q for %s, skipping", entry.FileMode, entry.Path)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func pokeText(target, placeholder, prefix string) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}

	updated := bytes.ReplaceAll(data, []byte(placeholder), []byte(prefix))
	if strings.Contains(placeholder, `\`) {
		// Windows placeholders also occur in forward-slash form.
		updated = bytes.ReplaceAll(updated,
			[]byte(strings.ReplaceAll(placeholder, `\`, "/")),
			[]byte(strings.ReplaceAll(prefix, `\`, "/")))
	}
	if bytes.Equal(updated, data) {
		return nil
	}
	return writeBack(target, updated)
}

func pokeBinary(target, placeholder, prefix string) error {
	placeholderBytes := []byte(placeholder)
	prefixBytes := []byte(prefix)
	if len(prefixBytes) > len(placeholderBytes) {
		return &PrefixTooLongError{
			File:           target,
			PathLen:        len(prefixBytes),
			PlaceholderLen: len(placeholderBytes),
		}
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}

	updated := bytes.ReplaceAll(data, placeholderBytes, pad(prefixBytes, len(placeholderBytes)))
	if strings.Contains(placeholder, `\`) {
		fwdPlaceholder := []byte(strings.ReplaceAll(placeholder, `\`, "/"))
		fwdPrefix := []byte(strings.ReplaceAll(prefix, `\`, "/"))
		updated = bytes.ReplaceAll(updated, fwdPlaceholder, pad(fwdPrefix, len(fwdPlaceholder)))
	}
	if bytes.Equal(updated, data) {
		return nil
	}
	return writeBack(target, updated)
}

// pad null-fills b to length n, preserving the patched file's size.
func pad(b []byte, n int) []byte {
	padded := make([]byte, n)
	copy(padded, b)
	return padded
}

func writeBack(target string, data []byte) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}
