// pkg/extract/conda.go
//
// A .conda file is a zip container holding two zstd-compressed tarballs:
// info-*.tar.zst with package metadata (including paths.json, which lists
// prefix patches) and pkg-*.tar.zst with the actual payload.
package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/poks-tools/poks/pkg/poker"
)

type condaPathsFile struct {
	Paths []condaPathEntry `json:"paths"`
}

type condaPathEntry struct {
	Path              string `json:"_path"`
	PrefixPlaceholder string `json:"prefix_placeholder"`
	FileMode          string `json:"file_mode"`
}

func extractConda(ctx context.Context, archivePath, destDir string, opts Options) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening conda container: %w", err)
	}
	defer zr.Close()

	var infoMember, pkgMember *zip.File
	for _, f := range zr.File {
		base := path.Base(f.Name)
		switch {
		case strings.HasPrefix(base, "info-") && strings.HasSuffix(base, ".tar.zst"):
			if infoMember == nil {
				infoMember = f
			}
		case strings.HasPrefix(base, "pkg-") && strings.HasSuffix(base, ".tar.zst"):
			if pkgMember == nil {
				pkgMember = f
			}
		}
	}
	if pkgMember == nil {
		return fmt.Errorf("%w: no pkg-*.tar.zst member in %s", ErrUnsupportedArchive, path.Base(archivePath))
	}

	var patches []poker.PatchEntry
	if infoMember != nil {
		patches, err = readCondaPatches(infoMember)
		if err != nil {
			return err
		}
	}

	if err := extractZstdTar(ctx, pkgMember, destDir, opts); err != nil {
		return err
	}

	if len(patches) > 0 {
		prefix := opts.Prefix
		if prefix == "" {
			prefix = destDir
		}
		if err := poker.Poke(destDir, prefix, patches, opts.Logger); err != nil {
			return err
		}
	}

	if opts.Progress != nil {
		opts.Progress(opts.App, 1, 1)
	}
	return nil
}

// readCondaPatches pulls paths.json out of the info tarball and keeps the
// entries that declare a relocatable prefix.
func readCondaPatches(member *zip.File) ([]poker.PatchEntry, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", member.Name, err)
	}
	defer rc.Close()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading info tar: %w", err)
		}
		if path.Base(header.Name) != "paths.json" {
			continue
		}

		var pathsFile condaPathsFile
		if err := json.NewDecoder(tr).Decode(&pathsFile); err != nil {
			return nil, fmt.Errorf("parsing paths.json: %w", err)
		}

		var patches []poker.PatchEntry
		for _, entry := range pathsFile.Paths {
			if entry.PrefixPlaceholder == "" || entry.FileMode == "" {
				continue
			}
			patches = append(patches, poker.PatchEntry{
				Path:        entry.Path,
				Placeholder: entry.PrefixPlaceholder,
				FileMode:    entry.FileMode,
			})
		}
		return patches, nil
	}
}

func extractZstdTar(ctx context.Context, member *zip.File, destDir string, opts Options) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", member.Name, err)
	}
	defer rc.Close()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return fmt.Errorf("zstd init: %w", err)
	}
	defer zr.Close()

	// Member progress is reported once for the whole payload; the inner
	// tar size is unknown up front.
	inner := opts
	inner.Progress = nil
	return extractTar(ctx, zr, destDir, inner)
}
