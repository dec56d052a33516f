package source

import (
	"fmt"
)

// FileID identifies a file inside a FileSet. Zero is reserved for built-in positions.
type FileID uint32

// NoFileID marks spans that do not point into any file (built-in declarations).
const NoFileID FileID = 0

// Span is a half-open byte range inside one file.
type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

// Builtin is the span attached to compiler-provided declarations.
var Builtin = Span{}

func (s Span) IsBuiltin() bool {
	return s.File == NoFileID
}

func (s Span) String() string {
	if s.IsBuiltin() {
		return "<builtin>"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other. Spans of different files are not merged.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Less orders spans by file, start and end.
func (s Span) Less(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.Start != other.Start {
		return s.Start < other.Start
	}
	return s.End < other.End
}

// LineCol is a 1-based line and column pair.
type LineCol struct {
	Line uint32
	Col  uint32
}
