package layout

import (
	"fmt"
	"strings"

	"airgen/internal/mono"
	"airgen/internal/source"
)

// ErrorKind enumerates types of layout errors.
type ErrorKind uint8

const (
	// ErrCyclicNesting indicates value fields that contain each other.
	ErrCyclicNesting ErrorKind = iota + 1
)

func (k ErrorKind) String() string {
	switch k {
	case ErrCyclicNesting:
		return "cyclic nesting"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error represents an error found while laying out a clazz.
type Error struct {
	Kind  ErrorKind
	Clazz mono.ClazzID
	Cycle []source.Span // field declarations along the cycle, innermost first
	Names []string      // clazz names of the fields along the cycle
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrCyclicNesting:
		if len(e.Names) == 0 {
			return fmt.Sprintf("cyclic field nesting (clazz#%d)", e.Clazz)
		}
		return fmt.Sprintf("cyclic field nesting (cycle: %s)", strings.Join(e.Names, " -> "))
	default:
		return fmt.Sprintf("layout error kind=%d clazz#%d", e.Kind, e.Clazz)
	}
}
