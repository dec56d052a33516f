package hir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"airgen/internal/source"
)

// UniverseName is the name of the root feature.
const UniverseName = "universe"

// Program is the whole resolved input of the monomorphizer.
type Program struct {
	Strings *source.Interner
	Files   *source.FileSet
	Types   *TypeTable

	Universe FeatureID
	Main     FeatureID

	features  []Feature // index 0 is the NoFeatureID sentinel
	nextExpr  ExprID
	selfTypes map[FeatureID]TypeID
}

// NewProgram creates an empty program containing only the universe.
func NewProgram() *Program {
	p := &Program{
		Strings:   source.NewInterner(),
		Files:     source.NewFileSet(),
		Types:     NewTypeTable(),
		features:  make([]Feature, 1, 64),
		selfTypes: make(map[FeatureID]TypeID),
	}
	p.Universe = p.AddFeature(Feature{
		Name:        p.Strings.Intern(UniverseName),
		Kind:        FeatureRoutine,
		Constructor: true,
	})
	return p
}

// AddFeature appends f and registers it as inner feature of its outer.
func (p *Program) AddFeature(f Feature) FeatureID {
	n, err := safecast.Conv[uint32](len(p.features))
	if err != nil {
		panic(fmt.Errorf("len(features) overflow: %w", err))
	}
	f.ID = FeatureID(n)
	p.features = append(p.features, f)
	if f.Outer.IsValid() {
		o := &p.features[f.Outer]
		o.Inner = append(o.Inner, f.ID)
	}
	return f.ID
}

// Feature returns the feature for id, or nil for invalid ids.
func (p *Program) Feature(id FeatureID) *Feature {
	if p == nil || id == NoFeatureID || int(id) >= len(p.features) {
		return nil
	}
	return &p.features[id]
}

// NumFeatures returns the number of features including the universe.
func (p *Program) NumFeatures() int {
	return len(p.features) - 1
}

// Name returns the base name of f.
func (p *Program) Name(id FeatureID) string {
	f := p.Feature(id)
	if f == nil {
		return "<none>"
	}
	return p.Strings.MustLookup(f.Name)
}

// QualifiedName returns the dotted name of f below the universe.
func (p *Program) QualifiedName(id FeatureID) string {
	if id == p.Universe {
		return UniverseName
	}
	var parts []string
	for f := p.Feature(id); f != nil && f.ID != p.Universe; f = p.Feature(f.Outer) {
		parts = append(parts, p.Strings.MustLookup(f.Name))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// LookupInner finds a direct inner feature of outer by name.
// When argCount >= 0 the number of value arguments must match as well.
func (p *Program) LookupInner(outer FeatureID, name string, argCount int) FeatureID {
	f := p.Feature(outer)
	sid, ok := p.Strings.Find(name)
	if f == nil || !ok {
		return NoFeatureID
	}
	for _, in := range f.Inner {
		g := p.Feature(in)
		if g.Name == sid && (argCount < 0 || len(g.Args) == argCount) {
			return in
		}
	}
	return NoFeatureID
}

// Resolve looks up a dotted path below the universe, e.g. "fuzion.sys.Pointer".
func (p *Program) Resolve(path string) FeatureID {
	cur := p.Universe
	for _, part := range strings.Split(path, ".") {
		cur = p.LookupInner(cur, part, -1)
		if !cur.IsValid() {
			return NoFeatureID
		}
	}
	return cur
}

// NewExprID hands out the next expression id.
func (p *Program) NewExprID() ExprID {
	p.nextExpr++
	return p.nextExpr
}

// TypeParamIndex returns the position of tp in its outer's type parameters.
func (p *Program) TypeParamIndex(tp FeatureID) int {
	f := p.Feature(tp)
	if f == nil {
		return -1
	}
	for i, x := range p.Feature(f.Outer).TypeParams {
		if x == tp {
			return i
		}
	}
	return -1
}

// SelfType returns the generic type of f as seen from inside f: its own type
// parameters as generics and the self type of its outer as outer.
func (p *Program) SelfType(id FeatureID) TypeID {
	if t, ok := p.selfTypes[id]; ok {
		return t
	}
	f := p.Feature(id)
	if f == nil {
		return p.Types.Error()
	}
	t := Type{Kind: TypeFeature, Feature: id, Ref: f.Ref}
	for _, tp := range f.TypeParams {
		t.Generics = append(t.Generics, p.ParamType(tp))
	}
	if f.Outer.IsValid() {
		t.Outer = p.SelfType(f.Outer)
	}
	res := p.Types.Intern(t)
	p.selfTypes[id] = res
	return res
}

// FeatureType returns the type of f with the given generics; the outer is the
// self type of f's outer feature.
func (p *Program) FeatureType(id FeatureID, generics ...TypeID) TypeID {
	f := p.Feature(id)
	if f == nil {
		return p.Types.Error()
	}
	t := Type{Kind: TypeFeature, Feature: id, Generics: generics, Ref: f.Ref}
	if f.Outer.IsValid() {
		t.Outer = p.SelfType(f.Outer)
	}
	return p.Types.Intern(t)
}

// ParamType returns the type that refers to type parameter tp.
func (p *Program) ParamType(tp FeatureID) TypeID {
	return p.Types.Intern(Type{Kind: TypeParam, Feature: tp})
}

// ThisType returns `f.this`.
func (p *Program) ThisType(f FeatureID) TypeID {
	return p.Types.Intern(Type{Kind: TypeThis, Feature: f})
}

// ApplyTypePars replaces the type parameters of f in t by actuals.
// An open type parameter expands to all remaining actuals.
func (p *Program) ApplyTypePars(t TypeID, f FeatureID, actuals []TypeID) TypeID {
	if len(p.Feature(f).TypeParams) == 0 {
		return t
	}
	res := p.replaceParams(t, f, actuals)
	if len(res) != 1 {
		return p.Types.Error()
	}
	return res[0]
}

// replaceParams returns one type, or several when t itself is an open parameter of f.
func (p *Program) replaceParams(t TypeID, f FeatureID, actuals []TypeID) []TypeID {
	tt, ok := p.Types.Lookup(t)
	if !ok {
		return []TypeID{t}
	}
	switch tt.Kind {
	case TypeParam:
		tp := p.Feature(tt.Feature)
		if tp.Outer != f {
			return []TypeID{t}
		}
		idx := p.TypeParamIndex(tt.Feature)
		if tp.IsOpenTypeParameter() {
			if idx > len(actuals) {
				return nil
			}
			return actuals[idx:]
		}
		if idx < 0 || idx >= len(actuals) {
			return []TypeID{p.Types.Error()}
		}
		return []TypeID{actuals[idx]}
	case TypeFeature:
		changed := false
		gens := make([]TypeID, 0, len(tt.Generics))
		for _, g := range tt.Generics {
			r := p.replaceParams(g, f, actuals)
			if len(r) != 1 || r[0] != g {
				changed = true
			}
			gens = append(gens, r...)
		}
		outer := tt.Outer
		if outer.IsValid() {
			if r := p.replaceParams(outer, f, actuals); len(r) == 1 && r[0] != outer {
				outer, changed = r[0], true
			}
		}
		if !changed {
			return []TypeID{t}
		}
		tt.Generics, tt.Outer = gens, outer
		return []TypeID{p.Types.Intern(tt)}
	}
	return []TypeID{t}
}

// TypeString renders t for diagnostics and dumps.
func (p *Program) TypeString(t TypeID) string {
	tt, ok := p.Types.Lookup(t)
	if !ok {
		return "<invalid>"
	}
	switch tt.Kind {
	case TypeError:
		return "<error>"
	case TypeParam:
		return p.Name(tt.Feature)
	case TypeThis:
		return p.QualifiedName(tt.Feature) + ".this"
	}
	var sb strings.Builder
	if tt.Ref {
		sb.WriteString("ref ")
	}
	if tt.Outer.IsValid() {
		if o := p.Types.MustLookup(tt.Outer); o.Kind != TypeFeature || o.Feature != p.Universe {
			sb.WriteString(p.TypeString(tt.Outer))
			sb.WriteByte('.')
		}
	}
	if tt.Feature == p.Universe {
		sb.WriteString(UniverseName)
	} else {
		sb.WriteString(p.Name(tt.Feature))
	}
	for _, g := range tt.Generics {
		s := p.TypeString(g)
		if strings.ContainsRune(s, ' ') {
			s = "(" + s + ")"
		}
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	return sb.String()
}

// ContainsOnlyDeclarations reports whether running f's own code has no effect:
// no statements, no contracts.
func (p *Program) ContainsOnlyDeclarations(id FeatureID) bool {
	f := p.Feature(id)
	return f != nil && f.Code.Len() == 0 && len(f.Pre) == 0 && len(f.Post) == 0
}

// IsOpenTyped reports a field whose type is an open type parameter; such a
// field stands for one field per actual type.
func (p *Program) IsOpenTyped(field FeatureID) bool {
	f := p.Feature(field)
	if f == nil || !f.Result.IsValid() {
		return false
	}
	t, ok := p.Types.Lookup(f.Result)
	return ok && t.Kind == TypeParam && p.Feature(t.Feature).IsOpenTypeParameter()
}
