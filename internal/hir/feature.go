package hir

import "airgen/internal/source"

// FeatureKind classifies features.
type FeatureKind uint8

const (
	FeatureRoutine FeatureKind = iota + 1
	FeatureField
	FeatureIntrinsic
	FeatureAbstract
	FeatureChoice
	FeatureNative
	FeatureTypeParameter
	FeatureOpenTypeParameter
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureRoutine:
		return "routine"
	case FeatureField:
		return "field"
	case FeatureIntrinsic:
		return "intrinsic"
	case FeatureAbstract:
		return "abstract"
	case FeatureChoice:
		return "choice"
	case FeatureNative:
		return "native"
	case FeatureTypeParameter:
		return "type"
	case FeatureOpenTypeParameter:
		return "type..."
	}
	return "unknown"
}

// ParseFeatureKind is the inverse of FeatureKind.String.
func ParseFeatureKind(s string) (FeatureKind, bool) {
	for k := FeatureRoutine; k <= FeatureOpenTypeParameter; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Feature is one declaration. All cross references are ids into the owning Program.
type Feature struct {
	ID    FeatureID
	Name  source.StringID
	Kind  FeatureKind
	Outer FeatureID // NoFeatureID only for the universe
	Span  source.Span

	Ref         bool // instances are references
	Constructor bool // routine whose result is the new instance itself
	Fixed       bool // redefinitions in heirs are not inherited
	Primitive   bool // built-in numeric type

	TypeParams  []FeatureID
	Args        []FeatureID // value argument fields, in order
	Result      TypeID      // result type of non-constructors; field type for fields
	ResultField FeatureID   // field holding the routine result, if any
	OuterRef    FeatureID   // field holding the outer instance; set only when it is read
	OuterRefOf  FeatureID   // for outer-ref fields: the feature whose outer they hold

	Inherits  []*Call
	Code      *Block
	Pre       []Expr
	Post      []Expr
	Inner     []FeatureID
	Redefines []FeatureID
	Choices   []TypeID // alternatives of a choice feature
}

func (f *Feature) IsField() bool {
	return f != nil && f.Kind == FeatureField
}

func (f *Feature) IsRoutine() bool {
	return f != nil && f.Kind == FeatureRoutine
}

func (f *Feature) IsChoice() bool {
	return f != nil && f.Kind == FeatureChoice
}

func (f *Feature) IsTypeParameter() bool {
	return f != nil && (f.Kind == FeatureTypeParameter || f.Kind == FeatureOpenTypeParameter)
}

func (f *Feature) IsOpenTypeParameter() bool {
	return f != nil && f.Kind == FeatureOpenTypeParameter
}

func (f *Feature) IsOuterRef() bool {
	return f != nil && f.OuterRefOf.IsValid()
}

func (f *Feature) IsAbstract() bool {
	return f != nil && f.Kind == FeatureAbstract
}

// IsIntrinsicLike reports features whose code is provided by the backend.
func (f *Feature) IsIntrinsicLike() bool {
	return f != nil && (f.Kind == FeatureIntrinsic || f.Kind == FeatureNative)
}

// HasUsedOuterRef reports whether code of f reads its outer instance.
// Constructors keep the outer in the instance anyway, so they never count.
func (f *Feature) HasUsedOuterRef() bool {
	return f != nil && !f.Constructor && f.OuterRef.IsValid()
}
