package mono

import (
	"fmt"
	"slices"
	"strings"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/trace"
)

// Create returns the interned clazz of type t with the given select inside outer.
// New clazzes are queued for processing, registered as heirs of their parents
// and get their dependencies created.
func (r *Registry) Create(t hir.TypeID, sel int, outer ClazzID) ClazzID {
	if r.types.IsError(t) {
		return r.ErrorClazz()
	}
	tt, ok := r.types.Lookup(t)
	if !ok || tt.Kind != hir.TypeFeature {
		panic(fmt.Sprintf("mono: Create with non-feature type %s", r.prog.TypeString(t)))
	}
	if o, rec := r.recursiveOuter(t, sel, outer); rec {
		return o
	}
	outer = r.normalizeOuter(tt, outer)

	key := clazzKey(sel, tt.Feature, tt.Ref, tt.Generics, outer)
	if id, ok := r.index[key]; ok {
		return id
	}
	ct := t
	if oc := r.Clazz(outer); oc != nil {
		ct = r.types.WithOuter(t, oc.Type)
	}
	id := r.add(Clazz{
		Feature:  tt.Feature,
		Type:     ct,
		Generics: slices.Clone(tt.Generics),
		Outer:    outer,
		Select:   sel,
		Ref:      tt.Ref,
	})
	r.index[key] = id
	r.queue = append(r.queue, id)
	trace.Point(r.trc, trace.ScopeClazz, "clazz", fmt.Sprintf("#%d %s", id, r.Name(id)), 0)
	r.registerAsHeir(id)
	r.dependencies(id)
	return id
}

// recursiveOuter detects a clazz whose outer chain already contains its own
// type. Value types that define a type are rejected; everything else reuses
// the outer found in the chain.
func (r *Registry) recursiveOuter(t hir.TypeID, sel int, outer ClazzID) (ClazzID, bool) {
	for o := outer; o.IsValid(); o = r.Clazz(o).Outer {
		oc := r.Clazz(o)
		if oc.Select != sel || !r.types.SameIgnoringOuter(oc.Type, t) {
			continue
		}
		of := r.feature(oc)
		if of == nil {
			continue
		}
		definesType := of.Constructor || of.IsChoice()
		if !definesType {
			continue
		}
		if !of.Ref && !of.IsIntrinsicLike() {
			r.reportRecursiveValue(t, outer, o)
		}
		return o, true
	}
	return NoClazzID, false
}

func (r *Registry) reportRecursiveValue(t hir.TypeID, outer, hit ClazzID) {
	f := r.prog.Feature(r.types.MustLookup(t).Feature)
	var chain strings.Builder
	fmt.Fprintf(&chain, "1: %s at %s\n", r.prog.TypeString(t), r.pos(f.Span))
	i := 2
	for c := outer; c.IsValid(); c = r.Clazz(c).Outer {
		fmt.Fprintf(&chain, "%d: %s at %s\n", i, r.Name(c), r.pos(r.FeatureOf(c).Span))
		if c == hit {
			break
		}
		i++
	}
	detail := "Value type " + r.prog.TypeString(t) + " equals type of outer feature.\n" +
		"The chain of outer types that lead to this recursion is:\n" +
		chain.String() + "\n" +
		"To solve this, you could add a 'ref' after the arguments list at " + r.pos(r.FeatureOf(hit).Span)
	r.sink.Fatal(diag.MonoRecursiveValue, f.Span, "Recursive value type is not allowed", detail)
}

// normalizeOuter shares clazzes of features that never read their outer ref
// across all heirs of their outer.
func (r *Registry) normalizeOuter(tt hir.Type, outer ClazzID) ClazzID {
	f := r.prog.Feature(tt.Feature)
	if !outer.IsValid() || f.HasUsedOuterRef() || f.IsField() {
		return outer
	}
	return r.normalize(outer, f.Outer)
}

func (r *Registry) normalize(id ClazzID, f hir.FeatureID) ClazzID {
	c := r.Clazz(id)
	if c == nil || !c.Ref || c.Feature == f || r.feature(c).HasUsedOuterRef() || r.IsError(id) {
		return id
	}
	t := r.types.AsRef(r.actualType(r.prog.SelfType(f), id, hir.NoSelect))
	if r.types.IsError(t) || r.types.IsGeneric(t) {
		return id
	}
	return r.normalize2(t)
}

func (r *Registry) normalize2(t hir.TypeID) ClazzID {
	tt := r.types.MustLookup(t)
	if tt.Feature == r.prog.Universe || !tt.Outer.IsValid() {
		return r.universe
	}
	res := r.Create(t, hir.NoSelect, r.normalize2(tt.Outer))
	if c := r.Clazz(res); c != nil && !r.IsError(res) {
		c.Normalized = true
	}
	return res
}

// AsRef returns the reference variant of id.
func (r *Registry) AsRef(id ClazzID) ClazzID {
	c := r.Clazz(id)
	if c == nil || c.Ref || r.IsError(id) {
		return id
	}
	return r.Create(r.types.AsRef(c.Type), c.Select, c.Outer)
}

// AsValue returns the value variant of id; for ref features this is an
// artificial clone that is never instantiated.
func (r *Registry) AsValue(id ClazzID) ClazzID {
	c := r.Clazz(id)
	if c == nil || !c.Ref || r.IsError(id) {
		return id
	}
	if c.asValue.IsValid() {
		return c.asValue
	}
	return r.Create(r.types.AsValue(c.Type), c.Select, c.Outer)
}

// IsBoxed reports a ref clazz of a value feature.
func (r *Registry) IsBoxed(id ClazzID) bool {
	c := r.Clazz(id)
	if c == nil || r.IsError(id) {
		return false
	}
	return c.Ref && !r.feature(c).Ref
}

// dependencies creates the clazzes every backend needs for id: choice
// alternatives, argument fields, actual generics, result, outer ref and the
// value variant.
func (r *Registry) dependencies(id ClazzID) {
	c := r.Clazz(id)
	f := r.feature(c)
	if f.IsChoice() {
		var alts []ClazzID
		for _, a := range f.Choices {
			for _, t := range r.actualTypes(a, id) {
				alts = append(alts, r.clazzOfType(t, hir.NoSelect))
			}
		}
		r.Clazz(id).choices = alts
	}
	if !r.IsBoxed(id) {
		var args []ClazzID
		for _, a := range f.Args {
			if r.isOpenTyped(a) {
				n := len(r.actualTypes(r.prog.Feature(a).Result, id))
				for s := range n {
					args = append(args, r.Lookup(id, Request{Feature: a, Select: s}))
				}
				continue
			}
			args = append(args, r.Lookup(id, Request{Feature: a, Select: hir.NoSelect}))
		}
		r.Clazz(id).args = args
	}
	gens := make([]ClazzID, 0, len(c.Generics))
	for _, g := range r.Clazz(id).Generics {
		gens = append(gens, r.clazzOfType(g, hir.NoSelect))
	}
	r.Clazz(id).actualGenerics = gens

	if f.ResultField.IsValid() {
		rf := r.Lookup(id, Request{Feature: f.ResultField, Select: hir.NoSelect})
		r.Clazz(id).resultField = rf
	}
	rc := r.computeResultClazz(id)
	r.Clazz(id).resultClazz = rc
	if (f.IsRoutine() || f.IsIntrinsicLike()) && f.OuterRef.IsValid() {
		or := r.Lookup(id, Request{Feature: f.OuterRef, Select: hir.NoSelect})
		r.Clazz(id).outerRef = or
	}
	if r.Clazz(id).Ref {
		v := r.AsValue(id)
		r.Clazz(id).asValue = v
	}
}

func (r *Registry) isOpenTyped(field hir.FeatureID) bool {
	return r.prog.IsOpenTyped(field)
}

func (r *Registry) computeResultClazz(id ClazzID) ClazzID {
	c := r.Clazz(id)
	f := r.feature(c)
	switch {
	case f.Constructor || f.IsChoice():
		return id
	case f.IsOuterRef():
		return r.inheritedOuterRefClazz(id)
	case f.IsTypeParameter():
		return r.actualClazz(r.prog.ParamType(c.Feature), c.Outer, c.Select)
	case !f.Result.IsValid():
		return NoClazzID
	}
	return r.actualClazz(f.Result, id, c.Select)
}

// inheritedOuterRefClazz returns the clazz held by outer-ref field id: the
// outer of the feature owning the field, as seen from the clazz the field was
// looked up in. For inherited outer refs this is the target of the inherits
// call that reaches the owner.
func (r *Registry) inheritedOuterRefClazz(id ClazzID) ClazzID {
	c := r.Clazz(id)
	owner := r.feature(c).OuterRefOf
	holder := c.Outer
	hc := r.Clazz(holder)
	if hc == nil {
		return r.ErrorClazz()
	}
	if hc.Feature == owner {
		if !hc.Outer.IsValid() {
			return r.universe
		}
		return hc.Outer
	}
	path, ok := r.prog.InheritancePath(hc.Feature, owner)
	if !ok || len(path) == 0 {
		return r.actualClazz(r.prog.ThisType(r.prog.Feature(owner).Outer), holder, hir.NoSelect)
	}
	// inherited code runs in the heir, so the target is evaluated there
	last := path[len(path)-1]
	if last.Target == nil {
		return r.universe
	}
	return r.clazzOf(last.Target, holder)
}
