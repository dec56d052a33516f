package hir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// TypeKind classifies types.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeFeature          // instance of a feature, with generics and outer
	TypeParam            // reference to a type parameter feature
	TypeThis             // `F.this`, the current instance of F or an heir of F
	TypeError            // placeholder after an earlier error
)

func (k TypeKind) String() string {
	switch k {
	case TypeFeature:
		return "feature"
	case TypeParam:
		return "param"
	case TypeThis:
		return "this"
	case TypeError:
		return "error"
	}
	return "invalid"
}

// Type is a structural type descriptor. Types are interned; compare TypeIDs, not Types.
type Type struct {
	Kind     TypeKind
	Feature  FeatureID // feature of the type, the type parameter, or F of F.this
	Generics []TypeID
	Outer    TypeID // NoTypeID only for the universe
	Ref      bool
}

// TypeTable interns types so that structural equality becomes id equality.
type TypeTable struct {
	types []Type
	index map[string]TypeID
	err   TypeID
}

func NewTypeTable() *TypeTable {
	tt := &TypeTable{
		types: []Type{{Kind: TypeInvalid}},
		index: make(map[string]TypeID, 64),
	}
	tt.err = tt.Intern(Type{Kind: TypeError})
	return tt
}

func typeKey(t Type) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(t.Kind)))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(uint64(t.Feature), 10))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(uint64(t.Outer), 10))
	if t.Ref {
		sb.WriteString(":r")
	}
	sb.WriteByte('<')
	for i, g := range t.Generics {
		if i > 0 {
			sb.WriteByte('#')
		}
		sb.WriteString(strconv.FormatUint(uint64(g), 10))
	}
	sb.WriteByte('>')
	return sb.String()
}

// Intern ensures the provided descriptor has a stable TypeID.
func (tt *TypeTable) Intern(t Type) TypeID {
	if t.Kind == TypeInvalid {
		return NoTypeID
	}
	if t.Kind != TypeFeature {
		// only feature types carry generics, outer and ref-ness
		t = Type{Kind: t.Kind, Feature: t.Feature}
	}
	key := typeKey(t)
	if id, ok := tt.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(tt.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	t.Generics = slices.Clone(t.Generics)
	tt.types = append(tt.types, t)
	tt.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (tt *TypeTable) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(tt.types) {
		return Type{}, false
	}
	return tt.types[id], true
}

// MustLookup panics when id is invalid.
func (tt *TypeTable) MustLookup(id TypeID) Type {
	t, ok := tt.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("hir: invalid TypeID %d", id))
	}
	return t
}

// Error returns the placeholder type used after errors.
func (tt *TypeTable) Error() TypeID {
	return tt.err
}

func (tt *TypeTable) IsError(id TypeID) bool {
	return id == tt.err
}

func (tt *TypeTable) Len() int {
	return len(tt.types)
}

// AsRef returns id with reference mode set. Non-feature types are returned unchanged.
func (tt *TypeTable) AsRef(id TypeID) TypeID {
	return tt.withRef(id, true)
}

// AsValue returns id with reference mode cleared.
func (tt *TypeTable) AsValue(id TypeID) TypeID {
	return tt.withRef(id, false)
}

func (tt *TypeTable) withRef(id TypeID, ref bool) TypeID {
	t, ok := tt.Lookup(id)
	if !ok || t.Kind != TypeFeature || t.Ref == ref {
		return id
	}
	t.Ref = ref
	return tt.Intern(t)
}

// WithOuter replaces the outer type of a feature type.
func (tt *TypeTable) WithOuter(id, outer TypeID) TypeID {
	t, ok := tt.Lookup(id)
	if !ok || t.Kind != TypeFeature || t.Outer == outer {
		return id
	}
	t.Outer = outer
	return tt.Intern(t)
}

// SameIgnoringOuter compares feature, generics and ref-ness.
func (tt *TypeTable) SameIgnoringOuter(a, b TypeID) bool {
	if a == b {
		return true
	}
	ta, okA := tt.Lookup(a)
	tb, okB := tt.Lookup(b)
	if !okA || !okB {
		return false
	}
	return ta.Kind == tb.Kind && ta.Feature == tb.Feature && ta.Ref == tb.Ref && slices.Equal(ta.Generics, tb.Generics)
}

// IsGeneric reports whether id mentions a type parameter or a this-type anywhere.
func (tt *TypeTable) IsGeneric(id TypeID) bool {
	t, ok := tt.Lookup(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case TypeParam, TypeThis:
		return true
	case TypeFeature:
		for _, g := range t.Generics {
			if tt.IsGeneric(g) {
				return true
			}
		}
		return t.Outer.IsValid() && tt.IsGeneric(t.Outer)
	}
	return false
}
