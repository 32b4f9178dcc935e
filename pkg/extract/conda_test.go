package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

const condaPlaceholder = "/opt/anaconda1anaconda2anaconda3/_build_env_placehold_placehold_placehold"

func tarZst(t *testing.T, entries []entry) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, e := range entries {
		writeTarEntry(t, tw, e)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var zstBuf bytes.Buffer
	enc, err := zstd.NewWriter(&zstBuf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return zstBuf.Bytes()
}

func writeConda(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	defer zw.Close()

	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractCondaPatchesPrefixes(t *testing.T) {
	dir := t.TempDir()

	pathsJSON := `{"paths": [
		{"_path": "lib/tool.sh", "prefix_placeholder": "` + condaPlaceholder + `", "file_mode": "text"},
		{"_path": "bin/tool", "prefix_placeholder": "` + condaPlaceholder + `", "file_mode": "binary"},
		{"_path": "share/plain.txt"}
	]}`
	binPayload := append([]byte("\x7fELF"), []byte(condaPlaceholder+"/lib\x00trailer")...)

	archive := filepath.Join(dir, "pkg-1.0-0.conda")
	writeConda(t, archive, map[string][]byte{
		"info-pkg-1.0-0.tar.zst": tarZst(t, []entry{{name: "paths.json", data: pathsJSON}}),
		"pkg-pkg-1.0-0.tar.zst": tarZst(t, []entry{
			{name: "lib/tool.sh", data: "PREFIX=" + condaPlaceholder + "/lib\n", mode: 0o755},
			{name: "bin/tool", data: string(binPayload), mode: 0o755},
			{name: "share/plain.txt", data: "untouched"},
		}),
		"metadata.json": []byte(`{"conda_pkg_format_version": 2}`),
	})

	dest := filepath.Join(dir, "out")
	if _, err := Extract(context.Background(), archive, dest, Options{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Text patch: placeholder replaced by the install dir, no padding.
	text, err := os.ReadFile(filepath.Join(dest, "lib", "tool.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "PREFIX="+dest+"/lib\n" {
		t.Errorf("text patch = %q", text)
	}

	// Binary patch: length-preserving, null-padded.
	bin, err := os.ReadFile(filepath.Join(dest, "bin", "tool"))
	if err != nil {
		t.Fatal(err)
	}
	if len(bin) != len(binPayload) {
		t.Errorf("binary patch changed size: %d -> %d", len(binPayload), len(bin))
	}
	if !bytes.HasSuffix(bin, []byte("trailer")) {
		t.Errorf("binary tail corrupted: %q", bin)
	}

	// No placeholder bytes anywhere under the install dir.
	err = filepath.WalkDir(dest, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if bytes.Contains(data, []byte(condaPlaceholder)) {
			t.Errorf("placeholder survives in %s", p)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if data, _ := os.ReadFile(filepath.Join(dest, "share", "plain.txt")); string(data) != "untouched" {
		t.Errorf("unpatched file modified: %q", data)
	}
}

func TestExtractCondaStagedPrefix(t *testing.T) {
	// When extraction targets a staging dir, patched files embed the final
	// install path, not the staging path.
	dir := t.TempDir()
	finalDir := "/opt/poks/apps/pkg/1.0"

	archive := filepath.Join(dir, "pkg.conda")
	writeConda(t, archive, map[string][]byte{
		"info-pkg.tar.zst": tarZst(t, []entry{{
			name: "paths.json",
			data: `{"paths": [{"_path": "env.sh", "prefix_placeholder": "` + condaPlaceholder + `", "file_mode": "text"}]}`,
		}}),
		"pkg-pkg.tar.zst": tarZst(t, []entry{{name: "env.sh", data: "root=" + condaPlaceholder}}),
	})

	staging := filepath.Join(dir, "staging")
	if _, err := Extract(context.Background(), archive, staging, Options{Prefix: finalDir}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(staging, "env.sh"))
	if string(data) != "root="+finalDir {
		t.Errorf("staged patch = %q, want final prefix %q", data, finalDir)
	}
}

func TestExtractCondaMissingPayload(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.conda")
	writeConda(t, archive, map[string][]byte{
		"info-x.tar.zst": tarZst(t, []entry{{name: "paths.json", data: `{"paths": []}`}}),
	})

	_, err := Extract(context.Background(), archive, filepath.Join(dir, "out"), Options{})
	if !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("error = %v, want ErrUnsupportedArchive", err)
	}
}
