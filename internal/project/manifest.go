package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"airgen/internal/trace"
)

// Manifest is the decoded airgen.toml.
type Manifest struct {
	Package PackageSection `toml:"package"`
	Build   BuildSection   `toml:"build"`
	Trace   TraceSection   `toml:"trace"`

	// Path is the file the manifest was read from.
	Path string `toml:"-"`
}

// PackageSection describes [package].
type PackageSection struct {
	Name        string `toml:"name"`
	Main        string `toml:"main"` // program description, relative to the root
	Description string `toml:"description"`
}

// BuildSection describes [build].
type BuildSection struct {
	Output         string `toml:"output"` // default build/<name>.air
	MaxDiagnostics int    `toml:"max_diagnostics"`
	MaxClazzes     int    `toml:"max_clazzes"`
	Comments       bool   `toml:"comments"`
	Timings        bool   `toml:"timings"`
}

// TraceSection describes [trace]; empty values leave the CLI defaults.
type TraceSection struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

var (
	// ErrPackageSectionMissing indicates that [package] is missing.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageMainMissing indicates that [package].main is missing.
	ErrPackageMainMissing = errors.New("missing [package].main")
)

// LoadManifest parses and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	m.Path = path
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.setDefaults()
	return &m, nil
}

// Find locates and loads the manifest above startDir. ok is false when
// there is none.
func Find(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err = LoadManifest(path)
	return m, true, err
}

func (m *Manifest) validate() error {
	m.Package.Name = strings.TrimSpace(m.Package.Name)
	if !IsValidName(m.Package.Name) {
		return fmt.Errorf("invalid [package].name %q", m.Package.Name)
	}
	main := strings.TrimSpace(m.Package.Main)
	if main == "" {
		return ErrPackageMainMissing
	}
	if filepath.IsAbs(main) || !pathWithin(m.Root(), filepath.Join(m.Root(), main)) {
		return fmt.Errorf("invalid [package].main %q: must stay inside the project", main)
	}
	m.Package.Main = main
	if m.Build.MaxDiagnostics < 0 {
		return fmt.Errorf("invalid [build].max_diagnostics %d", m.Build.MaxDiagnostics)
	}
	if m.Build.MaxClazzes < 0 {
		return fmt.Errorf("invalid [build].max_clazzes %d", m.Build.MaxClazzes)
	}
	if m.Trace.Level != "" {
		if _, err := trace.ParseLevel(m.Trace.Level); err != nil {
			return fmt.Errorf("[trace].level: %w", err)
		}
	}
	if m.Trace.Mode != "" {
		if _, err := trace.ParseMode(m.Trace.Mode); err != nil {
			return fmt.Errorf("[trace].mode: %w", err)
		}
	}
	return nil
}

func (m *Manifest) setDefaults() {
	if m.Build.Output == "" {
		m.Build.Output = filepath.Join("build", m.Package.Name+".air")
	}
}

// Root is the directory holding the manifest.
func (m *Manifest) Root() string {
	return filepath.Dir(m.Path)
}

// MainPath returns the program description path.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.Root(), filepath.FromSlash(m.Package.Main))
}

// OutputPath returns where the IR file is written.
func (m *Manifest) OutputPath() string {
	if filepath.IsAbs(m.Build.Output) {
		return m.Build.Output
	}
	return filepath.Join(m.Root(), filepath.FromSlash(m.Build.Output))
}

// IsValidName reports ASCII identifiers: a letter or '_' followed by
// letters, digits, '_' or '-'.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && r != '_' && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func pathWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}
