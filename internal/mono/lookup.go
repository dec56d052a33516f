package mono

import (
	"fmt"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
	"airgen/internal/trace"
)

// Request describes one lookup of a feature in a receiver clazz.
type Request struct {
	Feature  hir.FeatureID
	Generics []hir.TypeID // concrete actual type parameters
	Select   int
	Pre      bool // lookup of a precondition, the receiver is not unboxed
	// At is the call position. When set and Inheritance is false the
	// callee is marked called and instantiated.
	At          *source.Span
	Inheritance bool
}

// Lookup resolves req in receiver recv: it picks the redefinition visible in
// recv, binds the generics and returns the callee clazz.
func (r *Registry) Lookup(recv ClazzID, req Request) ClazzID {
	rc := r.Clazz(recv)
	if rc == nil || r.IsError(recv) {
		return r.ErrorClazz()
	}
	if !r.isOpenTyped(req.Feature) {
		req.Select = hir.NoSelect
	}
	key := innerKey{feature: req.Feature, generics: generics(req.Generics), sel: req.Select, pre: req.Pre}
	if id, ok := rc.inner[key]; ok {
		r.markUse(recv, id, req)
		return id
	}

	af := r.resolveFeature(recv, req)
	if !af.IsValid() {
		return r.ErrorClazz()
	}
	var res ClazzID
	t := r.prog.ApplyTypePars(r.prog.SelfType(af), af, req.Generics)
	t = r.actualType(t, recv, hir.NoSelect)
	if r.types.IsError(t) {
		res = r.ErrorClazz()
	} else {
		outer := recv
		if r.IsBoxed(recv) && !r.prog.Feature(af).Constructor && !req.Pre {
			outer = r.AsValue(recv)
		}
		res = r.Create(t, req.Select, outer)
		if outer != recv {
			r.cache(outer, key, res)
		}
	}
	r.cache(recv, key, res)
	trace.Point(r.trc, trace.ScopeSite, "lookup",
		fmt.Sprintf("%s in %s -> #%d", r.prog.QualifiedName(req.Feature), r.Name(recv), res), 0)
	r.markUse(recv, res, req)
	return res
}

func (r *Registry) cache(recv ClazzID, key innerKey, res ClazzID) {
	c := r.Clazz(recv)
	if c.inner == nil {
		c.inner = make(map[innerKey]ClazzID)
	}
	c.inner[key] = res
}

func (r *Registry) markUse(recv, callee ClazzID, req Request) {
	if req.At == nil || req.Inheritance || r.IsError(callee) {
		return
	}
	r.MarkCalled(callee)
	r.MarkInstantiated(callee, *req.At)
	if c := r.Clazz(recv); !c.calledAsOuter {
		c.calledAsOuter = true
		r.epoch++
	}
}

// resolveFeature picks the feature a lookup of req in recv binds to and
// records calls of abstract features.
func (r *Registry) resolveFeature(recv ClazzID, req Request) hir.FeatureID {
	rc := r.Clazz(recv)
	f := r.prog.Feature(req.Feature)
	if f == nil {
		return hir.NoFeatureID
	}
	af := req.Feature
	if !f.IsTypeParameter() {
		af = r.prog.FindRedefinition(rc.Feature, req.Feature)
	}
	if !af.IsValid() {
		if !r.effectivelyAbstract(f, rc.Feature) {
			if r.sink.Errors() == 0 {
				r.sink.Report(diag.MonoFeatureNotFound, r.atOr(req.At, f.Span),
					fmt.Sprintf("Feature %s not found in %s", r.prog.QualifiedName(req.Feature), r.Name(recv)),
					"The feature is neither declared nor inherited by the target.")
			}
			return hir.NoFeatureID
		}
		af = req.Feature
	}
	if r.effectivelyAbstract(r.prog.Feature(af), rc.Feature) {
		r.addAbstractCall(recv, af, req.At)
	}
	return af
}

func (r *Registry) effectivelyAbstract(f *hir.Feature, in hir.FeatureID) bool {
	return f.IsAbstract() || (f.Fixed && f.Outer != in)
}

func (r *Registry) atOr(at *source.Span, def source.Span) source.Span {
	if at != nil {
		return *at
	}
	return def
}

// MarkCalled records that code of id runs.
func (r *Registry) MarkCalled(id ClazzID) {
	if c := r.Clazz(id); c != nil && !c.called {
		c.called = true
		r.epoch++
	}
}

// MarkInstantiated records that an instance of id exists; pos is kept for
// diagnostics from the first call only.
func (r *Registry) MarkInstantiated(id ClazzID, pos source.Span) {
	if c := r.Clazz(id); c != nil && !c.instantiated {
		c.instantiated = true
		c.instantiatedAt = pos
		r.epoch++
	}
}

func (r *Registry) IsCalled(id ClazzID) bool {
	c := r.Clazz(id)
	return c != nil && c.called
}

func (r *Registry) IsCalledAsOuter(id ClazzID) bool {
	c := r.Clazz(id)
	return c != nil && c.calledAsOuter
}

// InstantiatedAt returns the position of the first instantiation.
func (r *Registry) InstantiatedAt(id ClazzID) source.Span {
	c := r.Clazz(id)
	if c == nil {
		return source.Span{}
	}
	return c.instantiatedAt
}

// IsInstantiated reports whether instances of id may exist at runtime: the
// clazz was instantiated and so is its outer, unless the outer is normalized,
// the clazz is a choice, or the ref outer has an instantiated heir.
// Re-entry while computing yields false; results are memoized once closed.
func (r *Registry) IsInstantiated(id ClazzID) bool {
	c := r.Clazz(id)
	if c == nil {
		return false
	}
	switch c.instTri {
	case TriComputing:
		return false
	case TriYes:
		return true
	case TriNo:
		return false
	}
	c.instTri = TriComputing
	res := r.isInstantiated(id)
	c = r.Clazz(id)
	if r.closed {
		c.instTri = TriOf(res)
	} else {
		c.instTri = TriUnknown
	}
	return res
}

func (r *Registry) isInstantiated(id ClazzID) bool {
	c := r.Clazz(id)
	if !c.instantiated {
		return false
	}
	o := r.Clazz(c.Outer)
	if o == nil || o.Normalized || r.feature(c).IsChoice() || r.IsInstantiated(c.Outer) {
		return true
	}
	if o.Ref {
		for _, h := range o.heirs {
			if h != c.Outer && r.IsInstantiated(h) {
				return true
			}
		}
	}
	return false
}

// ResultClazz returns the clazz of the value produced by calling id.
func (r *Registry) ResultClazz(id ClazzID) ClazzID {
	if r.IsError(id) {
		return id
	}
	c := r.Clazz(id)
	if c == nil {
		return NoClazzID
	}
	return c.resultClazz
}

func (r *Registry) ResultField(id ClazzID) ClazzID {
	if c := r.Clazz(id); c != nil {
		return c.resultField
	}
	return NoClazzID
}

// OuterRef returns the field clazz holding id's outer, if code reads it.
func (r *Registry) OuterRef(id ClazzID) ClazzID {
	if c := r.Clazz(id); c != nil {
		return c.outerRef
	}
	return NoClazzID
}

func (r *Registry) Args(id ClazzID) []ClazzID {
	if c := r.Clazz(id); c != nil {
		return c.args
	}
	return nil
}

func (r *Registry) Choices(id ClazzID) []ClazzID {
	if c := r.Clazz(id); c != nil {
		return c.choices
	}
	return nil
}

func (r *Registry) ActualGenerics(id ClazzID) []ClazzID {
	if c := r.Clazz(id); c != nil {
		return c.actualGenerics
	}
	return nil
}

// Fields returns the field clazzes of id. They are computed while id is processed.
func (r *Registry) Fields(id ClazzID) []ClazzID {
	c := r.Clazz(id)
	if c == nil {
		return nil
	}
	if !c.fieldsDone && !r.closed {
		r.computeFields(id)
	}
	return r.Clazz(id).fields
}

func (r *Registry) computeFields(id ClazzID) {
	c := r.Clazz(id)
	c.fieldsDone = true
	f := r.feature(c)
	if r.IsError(id) || f.IsChoice() || f.IsField() || f.IsTypeParameter() {
		return
	}
	var out []ClazzID
	for _, g := range r.allInner(c.Feature) {
		gf := r.prog.Feature(g)
		if !gf.IsField() || r.prog.FindRedefinition(c.Feature, g) != g {
			continue
		}
		if r.isOpenTyped(g) {
			n := len(r.actualTypes(gf.Result, id))
			for s := range n {
				out = append(out, r.Lookup(id, Request{Feature: g, Select: s}))
			}
			continue
		}
		out = append(out, r.Lookup(id, Request{Feature: g, Select: hir.NoSelect}))
	}
	r.Clazz(id).fields = out
}

func (r *Registry) allInner(f hir.FeatureID) []hir.FeatureID {
	if all, ok := r.innerAll[f]; ok {
		return all
	}
	all := r.prog.AllInnerAndInherited(f)
	r.innerAll[f] = all
	return all
}

// TypeParameterActualType returns the clazz a type-parameter clazz stands for.
func (r *Registry) TypeParameterActualType(id ClazzID) ClazzID {
	c := r.Clazz(id)
	if c == nil || !r.feature(c).IsTypeParameter() {
		return NoClazzID
	}
	return c.resultClazz
}
