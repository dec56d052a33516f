package hir

import "slices"

// InheritancePath returns the inherits calls leading from heir down to
// ancestor: path[0] is in heir's inherits list, the last call's Callee is
// ancestor. heir == ancestor yields an empty path.
func (p *Program) InheritancePath(heir, ancestor FeatureID) ([]*Call, bool) {
	if heir == ancestor {
		return nil, true
	}
	f := p.Feature(heir)
	if f == nil {
		return nil, false
	}
	for _, c := range f.Inherits {
		if rest, ok := p.InheritancePath(c.Callee, ancestor); ok {
			return append([]*Call{c}, rest...), true
		}
	}
	return nil, false
}

// InheritsFrom reports whether heir is ancestor or inherits from it.
func (p *Program) InheritsFrom(heir, ancestor FeatureID) bool {
	_, ok := p.InheritancePath(heir, ancestor)
	return ok
}

// HandDown rewrites t, given in terms of the type parameters of the last
// callee on path, into the terms of the feature holding path[0]. A type that
// is an open type parameter may expand into several types.
func (p *Program) HandDown(t TypeID, path []*Call) []TypeID {
	ts := []TypeID{t}
	for i := len(path) - 1; i >= 0; i-- {
		c := path[i]
		next := make([]TypeID, 0, len(ts))
		for _, x := range ts {
			next = append(next, p.replaceParams(x, c.Callee, c.Generics)...)
		}
		ts = next
	}
	return ts
}

// Redefines reports whether g redefines f, directly or through a chain of redefinitions.
func (p *Program) Redefines(g, f FeatureID) bool {
	gf := p.Feature(g)
	if gf == nil {
		return false
	}
	for _, r := range gf.Redefines {
		if r == f || p.Redefines(r, f) {
			return true
		}
	}
	return false
}

// FindRedefinition returns the most specific feature visible in `in` that is f
// or redefines f. Own declarations win over inherited ones, and earlier parents
// win over later ones. NoFeatureID means f is not visible in `in` at all.
func (p *Program) FindRedefinition(in, f FeatureID) FeatureID {
	inf := p.Feature(in)
	if inf == nil {
		return NoFeatureID
	}
	for _, g := range inf.Inner {
		if g == f || p.Redefines(g, f) {
			return g
		}
	}
	for _, c := range inf.Inherits {
		if r := p.FindRedefinition(c.Callee, f); r.IsValid() {
			return r
		}
	}
	return NoFeatureID
}

// AllInnerAndInherited lists f's own inner features followed by everything
// inherited from its parents, without duplicates and in a stable order.
// Redefined ancestors stay in the list: a dynamic call names the ancestor.
func (p *Program) AllInnerAndInherited(f FeatureID) []FeatureID {
	var out []FeatureID
	seen := make(map[FeatureID]bool)
	var collect func(FeatureID, int)
	collect = func(x FeatureID, depth int) {
		xf := p.Feature(x)
		if xf == nil || depth > len(p.features) {
			return
		}
		for _, in := range xf.Inner {
			if !seen[in] {
				seen[in] = true
				out = append(out, in)
			}
		}
		for _, c := range xf.Inherits {
			collect(c.Callee, depth+1)
		}
	}
	collect(f, 0)
	return out
}

// Parents returns the features f directly inherits from, in declaration order.
func (p *Program) Parents(f FeatureID) []FeatureID {
	ff := p.Feature(f)
	if ff == nil {
		return nil
	}
	out := make([]FeatureID, 0, len(ff.Inherits))
	for _, c := range ff.Inherits {
		if !slices.Contains(out, c.Callee) {
			out = append(out, c.Callee)
		}
	}
	return out
}

// InheritsType returns the type an inherits call instantiates: the parent's
// type with the call's generics, as seen from the heir.
func (p *Program) InheritsType(c *Call) TypeID {
	return p.FeatureType(c.Callee, c.Generics...)
}
