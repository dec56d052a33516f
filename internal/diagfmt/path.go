package diagfmt

import (
	"path/filepath"
	"strings"
)

// autoPathLimit is the length above which PathModeAuto falls back to the basename.
const autoPathLimit = 48

func formatPath(path string, mode PathMode, base string) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.ToSlash(abs)
		}
		return path
	case PathModeRelative:
		if rel, ok := relativeTo(path, base); ok {
			return rel
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	}
	if rel, ok := relativeTo(path, base); ok {
		return rel
	}
	if len(path) > autoPathLimit {
		return filepath.Base(path)
	}
	return path
}

func relativeTo(path, base string) (string, bool) {
	if base == "" || !filepath.IsAbs(path) {
		return "", false
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
