package mono

import (
	"airgen/internal/hir"
	"airgen/internal/source"
)

// ClazzID addresses a clazz in the Registry arena.
type ClazzID uint32

// NoClazzID is the zero sentinel.
const NoClazzID ClazzID = 0

func (id ClazzID) IsValid() bool { return id != NoClazzID }

// Tri is a memo state for recursive predicates.
type Tri uint8

const (
	TriUnknown Tri = iota
	TriComputing
	TriYes
	TriNo
)

func (t Tri) String() string {
	switch t {
	case TriComputing:
		return "computing"
	case TriYes:
		return "yes"
	case TriNo:
		return "no"
	}
	return "unknown"
}

// TriOf converts a computed predicate.
func TriOf(b bool) Tri {
	if b {
		return TriYes
	}
	return TriNo
}

// Clazz is a feature instantiated with concrete generics in a concrete outer clazz.
type Clazz struct {
	ID       ClazzID
	Feature  hir.FeatureID
	Type     hir.TypeID // concrete; its outer is the outer clazz's type
	Generics []hir.TypeID
	Outer    ClazzID // NoClazzID only for the universe and the error clazz
	Select   int
	Ref      bool

	Normalized bool

	called         bool
	calledAsOuter  bool
	instantiated   bool
	instantiatedAt source.Span
	instTri        Tri

	inner   map[innerKey]ClazzID
	heirs   []ClazzID // sorted, includes the clazz itself
	parents []ClazzID

	// dependencies
	choices        []ClazzID
	args           []ClazzID
	actualGenerics []ClazzID
	resultField    ClazzID
	resultClazz    ClazzID
	outerRef       ClazzID
	asValue        ClazzID

	fields     []ClazzID
	fieldsDone bool
	processed  bool

	// per-expression facts discovered while inspecting code in this context
	runtime map[int32]ClazzID
}

type innerKey struct {
	feature  hir.FeatureID
	generics string
	sel      int
	pre      bool
}
