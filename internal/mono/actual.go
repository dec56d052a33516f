package mono

import (
	"fmt"

	"airgen/internal/diag"
	"airgen/internal/hir"
)

// actualTypes resolves t, written inside the feature of ctx or one of its
// outers, into concrete types. Only an open type parameter yields more than
// one type.
func (r *Registry) actualTypes(t hir.TypeID, ctx ClazzID) []hir.TypeID {
	tt, ok := r.types.Lookup(t)
	if !ok {
		return []hir.TypeID{r.types.Error()}
	}
	switch tt.Kind {
	case hir.TypeError:
		return []hir.TypeID{t}
	case hir.TypeParam:
		return r.actualParam(t, tt.Feature, ctx)
	case hir.TypeThis:
		o := r.findOuter(tt.Feature, ctx)
		if !o.IsValid() {
			return []hir.TypeID{r.types.Error()}
		}
		return []hir.TypeID{r.Clazz(o).Type}
	case hir.TypeFeature:
		if !r.types.IsGeneric(t) {
			return []hir.TypeID{t}
		}
		gens := make([]hir.TypeID, 0, len(tt.Generics))
		for _, g := range tt.Generics {
			gens = append(gens, r.actualTypes(g, ctx)...)
		}
		if tt.Outer.IsValid() {
			tt.Outer = r.actualType(tt.Outer, ctx, hir.NoSelect)
		}
		tt.Generics = gens
		return []hir.TypeID{r.types.Intern(tt)}
	}
	return []hir.TypeID{r.types.Error()}
}

// actualParam walks the outer chain of ctx to the clazz that binds tp, either
// directly or through inheritance.
func (r *Registry) actualParam(t hir.TypeID, tp hir.FeatureID, ctx ClazzID) []hir.TypeID {
	owner := r.prog.Feature(tp).Outer
	for c := ctx; c.IsValid(); c = r.Clazz(c).Outer {
		cc := r.Clazz(c)
		if r.IsError(c) {
			break
		}
		if cc.Feature == owner {
			idx := r.prog.TypeParamIndex(tp)
			switch {
			case r.prog.Feature(tp).IsOpenTypeParameter() && idx <= len(cc.Generics):
				return cc.Generics[idx:]
			case idx >= 0 && idx < len(cc.Generics):
				return []hir.TypeID{cc.Generics[idx]}
			}
			return []hir.TypeID{r.types.Error()}
		}
		if path, ok := r.prog.InheritancePath(cc.Feature, owner); ok {
			var out []hir.TypeID
			for _, h := range r.prog.HandDown(t, path) {
				out = append(out, r.actualTypes(h, c)...)
			}
			return out
		}
	}
	return []hir.TypeID{r.types.Error()}
}

// actualType is actualTypes for a single result; sel picks from an open expansion.
func (r *Registry) actualType(t hir.TypeID, ctx ClazzID, sel int) hir.TypeID {
	ts := r.actualTypes(t, ctx)
	switch {
	case sel >= 0 && r.isOpenParam(t):
		if sel < len(ts) {
			return ts[sel]
		}
		r.reportSelectOutOfRange(t, ctx, sel, len(ts))
		return r.types.Error()
	case len(ts) == 1:
		return ts[0]
	}
	return r.types.Error()
}

func (r *Registry) isOpenParam(t hir.TypeID) bool {
	tt, ok := r.types.Lookup(t)
	return ok && tt.Kind == hir.TypeParam && r.prog.Feature(tt.Feature).IsOpenTypeParameter()
}

func (r *Registry) reportSelectOutOfRange(t hir.TypeID, ctx ClazzID, sel, n int) {
	if r.sink.Errors() > 0 {
		return
	}
	r.sink.Report(diag.MonoOpenSelectOutOfRange, spanOf(r.FeatureOf(ctx)),
		fmt.Sprintf("Select %d of open type parameter %s is out of range", sel, r.prog.TypeString(t)),
		fmt.Sprintf("The actual type list in %s has %d elements.", r.Name(ctx), n))
}

// findOuter returns the innermost clazz in ctx's outer chain whose feature is
// f or inherits from f.
func (r *Registry) findOuter(f hir.FeatureID, ctx ClazzID) ClazzID {
	for c := ctx; c.IsValid(); c = r.Clazz(c).Outer {
		cc := r.Clazz(c)
		if r.IsError(c) {
			return NoClazzID
		}
		if cc.Feature == f || r.prog.InheritsFrom(cc.Feature, f) {
			return c
		}
	}
	return NoClazzID
}

// actualClazz resolves t in the context of ctx and returns its clazz.
func (r *Registry) actualClazz(t hir.TypeID, ctx ClazzID, sel int) ClazzID {
	if tt, ok := r.types.Lookup(t); ok && tt.Kind == hir.TypeThis {
		if o := r.findOuter(tt.Feature, ctx); o.IsValid() {
			return o
		}
		return r.ErrorClazz()
	}
	return r.clazzOfType(r.actualType(t, ctx, sel), hir.NoSelect)
}

// clazzOfType creates the clazz of a concrete type, outers first.
func (r *Registry) clazzOfType(t hir.TypeID, sel int) ClazzID {
	tt, ok := r.types.Lookup(t)
	if !ok || tt.Kind != hir.TypeFeature {
		return r.ErrorClazz()
	}
	if tt.Feature == r.prog.Universe {
		return r.universe
	}
	outer := r.universe
	if tt.Outer.IsValid() {
		outer = r.clazzOfType(tt.Outer, hir.NoSelect)
		if r.IsError(outer) {
			return outer
		}
	}
	return r.Create(t, sel, outer)
}

// ActualClazz resolves t in the context of ctx.
func (r *Registry) ActualClazz(t hir.TypeID, ctx ClazzID) ClazzID {
	return r.actualClazz(t, ctx, hir.NoSelect)
}
