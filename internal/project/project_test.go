package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"demo\"\nmain = \"main.yaml\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok, err := FindProjectRoot(nested)
	if err != nil || !ok {
		t.Fatalf("FindProjectRoot: ok=%v err=%v", ok, err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Fatalf("root: got=%q want=%q", got, want)
	}
}

func TestFindManifestMissing(t *testing.T) {
	_, ok, err := FindManifest(t.TempDir())
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v want not found", ok, err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `[package]
name = "shapes"
main = "desc/shapes.yaml"
description = "generic boxes"

[build]
max_diagnostics = 20
timings = true

[trace]
level = "phase"
mode = "ring"
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Package.Name != "shapes" || m.Build.MaxDiagnostics != 20 || !m.Build.Timings {
		t.Fatalf("manifest: got=%+v", m)
	}
	if got, want := m.MainPath(), filepath.Join(dir, "desc", "shapes.yaml"); got != want {
		t.Fatalf("MainPath: got=%q want=%q", got, want)
	}
	if got, want := m.OutputPath(), filepath.Join(dir, "build", "shapes.air"); got != want {
		t.Fatalf("OutputPath: got=%q want=%q", got, want)
	}
}

func TestLoadManifestRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		is   error
	}{
		{"no package", "[build]\ntimings = true\n", "", ErrPackageSectionMissing},
		{"no main", "[package]\nname = \"x\"\n", "", ErrPackageMainMissing},
		{"bad name", "[package]\nname = \"1x\"\nmain = \"m.yaml\"\n", "invalid [package].name", nil},
		{"escaping main", "[package]\nname = \"x\"\nmain = \"../m.yaml\"\n", "inside the project", nil},
		{"unknown key", "[package]\nname = \"x\"\nmain = \"m.yaml\"\ncolour = \"red\"\n", "unknown keys: package.colour", nil},
		{"bad level", "[package]\nname = \"x\"\nmain = \"m.yaml\"\n[trace]\nlevel = \"loud\"\n", "[trace].level", nil},
		{"bad toml", "[package\n", "failed to parse TOML", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := LoadManifest(path)
			if err == nil {
				t.Fatalf("got nil error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("err: got=%v want %v", err, tt.is)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err: got=%v want substring %q", err, tt.want)
			}
		})
	}
}

func TestIsValidName(t *testing.T) {
	for name, want := range map[string]bool{"demo": true, "_x-1": true, "": false, "9lives": false, "héllo": false} {
		if got := IsValidName(name); got != want {
			t.Fatalf("IsValidName(%q): got=%v want=%v", name, got, want)
		}
	}
}
