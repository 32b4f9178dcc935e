package manifest

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleManifest = `{
  "description": "A fast grep replacement",
  "homepage": "https://example.com/ripgrep",
  "versions": [
    {
      "version": "14.1.0",
      "url": "https://example.com/rg-${version}_${os}-${arch}${ext}",
      "bin": ["bin"],
      "archives": [
        {"os": "linux", "arch": "x86_64", "sha256": "aaaa", "ext": ".tar.gz"},
        {"os": "windows", "arch": "x86_64", "sha256": "bbbb", "ext": ".zip"}
      ]
    }
  ]
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Description != "A fast grep replacement" {
		t.Errorf("description = %q", m.Description)
	}
	if m.SchemaVersion != DefaultSchemaVersion {
		t.Errorf("schema_version = %q, want default %q", m.SchemaVersion, DefaultSchemaVersion)
	}
	if v := m.Version("14.1.0"); v == nil || len(v.Archives) != 2 {
		t.Fatalf("version 14.1.0 = %+v", v)
	}
	if m.Version("0.0.0") != nil {
		t.Error("unexpected hit for unknown version")
	}
}

func TestParseManifestPreservesUnknownFields(t *testing.T) {
	doc := `{
  "description": "tool",
  "maintainer": "someone@example.com",
  "versions": [
    {"version": "1.0.0", "archives": [{"os": "linux", "arch": "x86_64", "sha256": "cc", "ext": ".zip"}]}
  ]
}`
	m, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if _, ok := m.Unknown["maintainer"]; !ok {
		t.Fatalf("unknown field not preserved: %v", m.Unknown)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := ParseManifest(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(m, again) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", again, m)
	}
}

func TestManifestRoundTripFile(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rg.json")
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	again, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if !reflect.DeepEqual(m, again) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", again, m)
	}
}

func TestManifestValidate(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"no versions", `{"description": "x", "versions": []}`},
		{"duplicate version", `{"description": "x", "versions": [
			{"version": "1.0", "archives": [{"os": "linux", "arch": "x86_64", "sha256": "a", "ext": ".zip"}]},
			{"version": "1.0", "archives": [{"os": "linux", "arch": "x86_64", "sha256": "a", "ext": ".zip"}]}]}`},
		{"empty archives", `{"description": "x", "versions": [{"version": "1.0", "archives": []}]}`},
		{"duplicate platform", `{"description": "x", "versions": [{"version": "1.0", "archives": [
			{"os": "linux", "arch": "x86_64", "sha256": "a", "ext": ".zip"},
			{"os": "linux", "arch": "x86_64", "sha256": "b", "ext": ".zip"}]}]}`},
		{"missing ext and url", `{"description": "x", "versions": [{"version": "1.0", "archives": [
			{"os": "linux", "arch": "x86_64", "sha256": "a"}]}]}`},
		{"missing sha256", `{"description": "x", "versions": [{"version": "1.0", "archives": [
			{"os": "linux", "arch": "x86_64", "sha256": "", "ext": ".zip"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tc.doc)); !errors.Is(err, ErrManifestInvalid) {
				t.Errorf("error = %v, want ErrManifestInvalid", err)
			}
		})
	}
}

func TestSelectVersion(t *testing.T) {
	m := &Manifest{
		Description: "x",
		Versions: []AppVersion{
			{Version: "1.0.0", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "a", Ext: ".zip"}}},
			{Version: "2.0.0", Yanked: "CVE-2025-XXXX", Archives: []Archive{{OS: "linux", Arch: "x86_64", SHA256: "b", Ext: ".zip"}}},
		},
	}

	if v, err := m.SelectVersion("1.0.0"); err != nil || v.Version != "1.0.0" {
		t.Errorf("SelectVersion(1.0.0) = %v, %v", v, err)
	}
	if _, err := m.SelectVersion("3.0.0"); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("error = %v, want ErrVersionNotFound", err)
	}
	_, err := m.SelectVersion("2.0.0")
	if !errors.Is(err, ErrYankedVersion) {
		t.Errorf("error = %v, want ErrYankedVersion", err)
	}
	if err != nil && !strings.Contains(err.Error(), "CVE-2025-XXXX") {
		t.Errorf("yanked error should carry the reason, got %v", err)
	}
}

func TestAppSupports(t *testing.T) {
	any := &App{Name: "a", Version: "1"}
	if !any.Supports("linux", "x86_64") {
		t.Error("absent filters should match any platform")
	}

	windowsOnly := &App{Name: "a", Version: "1", OS: []string{"windows"}}
	if windowsOnly.Supports("linux", "x86_64") {
		t.Error("os filter should exclude linux")
	}
	if !windowsOnly.Supports("windows", "aarch64") {
		t.Error("os filter should include windows on any arch")
	}
}
