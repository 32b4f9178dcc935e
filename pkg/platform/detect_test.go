package platform

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		goos, goarch string
		os, arch     string
	}{
		{"darwin", "arm64", "macos", "aarch64"},
		{"darwin", "amd64", "macos", "x86_64"},
		{"windows", "amd64", "windows", "x86_64"},
		{"win32", "amd64", "windows", "x86_64"},
		{"linux", "amd64", "linux", "x86_64"},
		{"linux", "aarch64", "linux", "aarch64"},
		{"freebsd", "amd64", "linux", "x86_64"},
		{"linux", "RISCV64", "linux", "riscv64"},
	}
	for _, tc := range cases {
		os, arch := Normalize(tc.goos, tc.goarch)
		if os != tc.os || arch != tc.arch {
			t.Errorf("Normalize(%s, %s) = (%s, %s), want (%s, %s)",
				tc.goos, tc.goarch, os, arch, tc.os, tc.arch)
		}
	}
}

func TestCurrentIsStable(t *testing.T) {
	os1, arch1 := Current()
	os2, arch2 := Current()
	if os1 != os2 || arch1 != arch2 {
		t.Errorf("Current not stable: (%s,%s) vs (%s,%s)", os1, arch1, os2, arch2)
	}
	if os1 == "" || arch1 == "" {
		t.Errorf("Current returned empty token: (%q, %q)", os1, arch1)
	}
}
