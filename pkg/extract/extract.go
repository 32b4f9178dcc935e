// pkg/extract/extract.go
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/ulikunitz/xz"

	"github.com/poks-tools/poks/pkg/progress"
)

// ErrUnsupportedArchive indicates an archive extension with no extractor.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// ErrUnsafeArchive indicates an entry that would escape the destination.
var ErrUnsafeArchive = errors.New("unsafe archive entry")

// ErrExtractDirNotFound indicates the configured extract_dir is absent.
var ErrExtractDirNotFound = errors.New("extract_dir not found in archive")

// UnsafeArchiveError carries the offending member path.
type UnsafeArchiveError struct {
	Path string
}

func (e *UnsafeArchiveError) Error() string {
	return fmt.Sprintf("archive entry escapes destination: %q", e.Path)
}

func (e *UnsafeArchiveError) Unwrap() error { return ErrUnsafeArchive }

type format int

const (
	formatZip format = iota
	formatTarGz
	formatTarXz
	formatTarBz2
	format7z
	formatConda
)

var formats = map[string]format{
	".zip":     formatZip,
	".tar.gz":  formatTarGz,
	".tgz":     formatTarGz,
	".tar.xz":  formatTarXz,
	".txz":     formatTarXz,
	".tar.bz2": formatTarBz2,
	".tbz2":    formatTarBz2,
	".7z":      format7z,
	".conda":   formatConda,
}

// Extensions returns the supported archive extensions, longest first.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if len(exts[i]) != len(exts[j]) {
			return len(exts[i]) > len(exts[j])
		}
		return exts[i] < exts[j]
	})
	return exts
}

// detectFormat picks the extractor by longest matching filename suffix.
func detectFormat(name string) (format, error) {
	lower := strings.ToLower(filepath.Base(name))
	for _, ext := range Extensions() {
		if strings.HasSuffix(lower, ext) {
			return formats[ext], nil
		}
	}
	return 0, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedArchive, filepath.Base(name), strings.Join(Extensions(), ", "))
}

// Options tune a single extraction.
type Options struct {
	// ExtractDir names a top-level archive directory whose children are
	// flattened into the destination.
	ExtractDir string
	// App names the extraction in progress callbacks.
	App string
	// Progress is invoked per extracted member; a .conda payload reports
	// once, after it is fully unpacked.
	Progress progress.Func
	// Prefix is the install path embedded when patching relocatable conda
	// payloads. Defaults to the destination directory.
	Prefix string
	// Logger receives skip warnings; nil discards.
	Logger *log.Logger
}

// Extract unpacks an archive into destDir and returns destDir. Each member
// path is validated against traversal before that member is written;
// members written before a rejected one are left in destDir.
func Extract(ctx context.Context, archivePath, destDir string, opts Options) (string, error) {
	fmtKind, err := detectFormat(archivePath)
	if err != nil {
		return "", err
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", destDir, err)
	}

	switch fmtKind {
	case formatZip:
		err = extractZip(ctx, archivePath, destDir, opts)
	case formatTarGz, formatTarXz, formatTarBz2:
		err = extractTarFile(ctx, archivePath, fmtKind, destDir, opts)
	case format7z:
		err = extract7z(ctx, archivePath, destDir, opts)
	case formatConda:
		err = extractConda(ctx, archivePath, destDir, opts)
	}
	if err != nil {
		return "", err
	}

	if opts.ExtractDir != "" {
		if err := flattenExtractDir(destDir, opts.ExtractDir); err != nil {
			return "", err
		}
	}
	return destDir, nil
}

// securePath validates a member name and resolves it under destDir.
// Absolute paths and any ".." segment are rejected.
func securePath(destDir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) {
		return "", &UnsafeArchiveError{Path: name}
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", &UnsafeArchiveError{Path: name}
		}
	}

	target := filepath.Join(destDir, filepath.FromSlash(slashed))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", &UnsafeArchiveError{Path: name}
	}
	return target, nil
}

// writeSymlink creates a symlink only when its target stays inside destDir;
// otherwise the entry is skipped with a warning.
func writeSymlink(destDir, target, linkname string, logger *log.Logger) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}
	if resolved != destDir && !strings.HasPrefix(resolved, destDir+string(os.PathSeparator)) {
		logger.Printf("skipping symlink %s -> %s: target outside destination", target, linkname)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("creating symlink %s: %w", target, err)
	}
	return nil
}

func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	perm := fs.FileMode(0o644)
	if runtime.GOOS != "windows" && mode.Perm() != 0 {
		perm = mode.Perm()
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return f.Close()
}

func extractZip(ctx context.Context, archivePath, destDir string, opts Options) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	total := int64(len(zr.File))
	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := securePath(destDir, f.Name)
		if err != nil {
			return err
		}

		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case f.Mode()&fs.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("reading symlink %s: %w", f.Name, err)
			}
			linkname, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("reading symlink %s: %w", f.Name, err)
			}
			if err := writeSymlink(destDir, target, string(linkname), opts.Logger); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening member %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, f.Mode())
			rc.Close()
			if err != nil {
				return err
			}
		}

		if opts.Progress != nil {
			opts.Progress(opts.App, int64(i+1), total)
		}
	}
	return nil
}

func extractTarFile(ctx context.Context, archivePath string, fmtKind format, destDir string, opts Options) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader
	switch fmtKind {
	case formatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip init: %w", err)
		}
		defer gz.Close()
		r = gz
	case formatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz init: %w", err)
		}
		r = xr
	case formatTarBz2:
		r = bzip2.NewReader(f)
	}

	return extractTar(ctx, r, destDir, opts)
}

// extractTar unpacks an uncompressed tar stream. Also used for the inner
// payload tar of .conda files.
func extractTar(ctx context.Context, r io.Reader, destDir string, opts Options) error {
	tr := tar.NewReader(r)
	var count int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if name == "" || name == "." {
			continue
		}
		target, err := securePath(destDir, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, header.Linkname, opts.Logger); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, header.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			opts.Logger.Printf("skipping unsupported tar entry type %d: %s", header.Typeflag, name)
			continue
		}

		count++
		if opts.Progress != nil {
			opts.Progress(opts.App, count, 0)
		}
	}
}

func extract7z(ctx context.Context, archivePath, destDir string, opts Options) error {
	rc, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening 7z: %w", err)
	}
	defer rc.Close()

	total := int64(len(rc.File))
	for i, f := range rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := securePath(destDir, f.Name)
		if err != nil {
			return err
		}

		info := f.FileInfo()
		if info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		} else {
			member, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening member %s: %w", f.Name, err)
			}
			err = writeFile(target, member, info.Mode())
			member.Close()
			if err != nil {
				return err
			}
		}

		if opts.Progress != nil {
			opts.Progress(opts.App, int64(i+1), total)
		}
	}
	return nil
}

// flattenExtractDir moves the children of destDir/extractDir up into
// destDir and removes the then-empty wrapper. Sibling entries stay put.
func flattenExtractDir(destDir, extractDir string) error {
	source, err := securePath(destDir, extractDir)
	if err != nil {
		return err
	}
	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrExtractDirNotFound, extractDir)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}
	for _, entry := range entries {
		from := filepath.Join(source, entry.Name())
		to := filepath.Join(destDir, entry.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("relocating %s: %w", entry.Name(), err)
		}
	}
	return os.Remove(source)
}
