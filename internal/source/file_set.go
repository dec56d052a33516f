package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
)

// File is one source file registered in a FileSet.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // смещения символов '\n'
	Virtual bool
}

// FileSet owns source files and resolves spans to human positions.
type FileSet struct {
	files []File
	index map[string]FileID
}

// NewFileSet creates a FileSet; slot 0 is reserved for NoFileID.
func NewFileSet() *FileSet {
	return &FileSet{
		files: []File{{ID: NoFileID, Path: "<builtin>", Virtual: true}},
		index: make(map[string]FileID),
	}
}

// Add stores file content and returns a new FileID. A later Add with the same path shadows the earlier one.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(n)
	norm := filepath.ToSlash(filepath.Clean(path))
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    norm,
		Content: content,
		LineIdx: buildLineIndex(content),
	})
	fs.index[norm] = id
	return id
}

// AddVirtual registers content that has no backing file (tests, stdin).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	id := fs.Add(name, content)
	fs.files[id].Virtual = true
	return id
}

// Load reads a file from disk, dropping a UTF-8 BOM and CRLF line endings.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return NoFileID, err
	}
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return fs.Add(path, content), nil
}

// Get returns the file for id, or nil when id is unknown.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// Lookup returns the latest FileID registered for path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[filepath.ToSlash(filepath.Clean(path))]
	return id, ok
}

// Len reports the number of registered files, excluding the builtin slot.
func (fs *FileSet) Len() int {
	return len(fs.files) - 1
}

// Resolve converts a span into start and end line/column positions.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fs.Get(span.File)
	if f == nil || span.IsBuiltin() {
		return LineCol{}, LineCol{}
	}
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// Format renders span as "path:line:col"; builtin spans render as "<builtin>".
func (fs *FileSet) Format(span Span) string {
	if span.IsBuiltin() {
		return "<builtin>"
	}
	f := fs.Get(span.File)
	if f == nil {
		return span.String()
	}
	start, _ := fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}

// Line returns the 1-based line of a file without its newline.
func (f *File) Line(line uint32) string {
	if f == nil || line == 0 {
		return ""
	}
	start := 0
	if line > 1 {
		if int(line-2) >= len(f.LineIdx) {
			return ""
		}
		start = int(f.LineIdx[line-2]) + 1
	}
	end := len(f.Content)
	if int(line-1) < len(f.LineIdx) {
		end = int(f.LineIdx[line-1])
	}
	if start > end {
		return ""
	}
	return strings.TrimSuffix(string(f.Content[start:end]), "\r")
}

func buildLineIndex(content []byte) []uint32 {
	idx := make([]uint32, 0, bytes.Count(content, []byte{'\n'}))
	for i, b := range content {
		if b == '\n' {
			off, err := safecast.Conv[uint32](i)
			if err != nil {
				panic(fmt.Errorf("line offset overflow: %w", err))
			}
			idx = append(idx, off)
		}
	}
	return idx
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// бинарный поиск первой '\n' не левее off
	lo, hi := 0, len(lineIdx)
	for lo < hi {
		mid := (lo + hi) / 2
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	line := uint32(lo) + 1 // #nosec G115 -- bounded by len(lineIdx)
	lineStart := uint32(0)
	if lo > 0 {
		lineStart = lineIdx[lo-1] + 1
	}
	return LineCol{Line: line, Col: off - lineStart + 1}
}
