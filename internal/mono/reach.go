package mono

import (
	"context"
	"errors"
	"fmt"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/trace"
)

// Slot layout per expression kind.
const (
	slotCallInner  = 0
	slotCallTarget = 1
	slotCallOuter  = 2 // inherits calls: outer ref field of the parent in the heir
	slotCallArgs   = 3 // inherits calls: parent argument fields in the heir
	slotCallPre    = 2 // other calls: clazz checking the callee's preconditions

	slotAssignTarget = 0
	slotAssignField  = 1

	slotBoxValue  = 0
	slotBoxResult = 1

	slotTagValue  = 0
	slotTagChoice = 1

	slotMatchSubject = 0

	slotCaseField = 0 // followed by one slot per matched type

	slotArray     = 0
	slotArrayElem = 1

	slotClazz = 0 // constants and env
)

func callSlots(c *hir.Call) int {
	if c.Inheritance {
		return slotCallArgs + len(c.Args)
	}
	return slotCallPre + 1
}

// Reach computes the closure of clazzes reachable from main and closes the
// registry. A fatal diagnostic aborts discovery and is returned as error.
func (r *Registry) Reach(ctx context.Context, main hir.FeatureID) (err error) {
	if t := trace.FromContext(ctx); t.Enabled() {
		r.trc = t
	}
	span := trace.Begin(r.trc, trace.ScopePass, "reach", trace.CurrentSpan(ctx))
	defer func() {
		if rec := recover(); rec != nil {
			fe, ok := rec.(*diag.FatalError)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("mono: %w", fe)
		}
		span.WithExtra("clazzes", fmt.Sprint(r.Len())).End("")
	}()

	mf := r.prog.Feature(main)
	if mf == nil {
		return errors.New("mono: no main feature")
	}
	at := mf.Span
	r.MarkCalled(r.universe)
	r.MarkInstantiated(r.universe, at)
	r.Lookup(r.universe, Request{Feature: main, Select: hir.NoSelect, At: &at})

	for s := SpecialClazz(1); s < specialCount; s++ {
		id := r.Special(s)
		if !id.IsValid() {
			continue
		}
		switch s {
		case SpecialI32, SpecialU32, SpecialI64, SpecialU64, SpecialF32, SpecialF64:
			r.MarkCalled(id)
			r.MarkInstantiated(id, at)
		case SpecialConstString, SpecialBool, SpecialTrue, SpecialFalse, SpecialUnit:
			r.MarkInstantiated(id, at)
		}
	}

	for {
		for len(r.queue) > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("mono: reach: %w", err)
			}
			c := r.queue[0]
			r.queue = r.queue[1:]
			r.process(c)
		}
		if !r.sweepDynamic() && len(r.queue) == 0 {
			break
		}
	}
	r.Close()
	r.reportAbstract()
	return nil
}

func (r *Registry) process(id ClazzID) {
	c := r.Clazz(id)
	if c.processed || r.IsError(id) {
		return
	}
	c.processed = true
	f := r.feature(c)
	trace.Point(r.trc, trace.ScopeClazz, "process", r.Name(id), 0)
	r.Fields(id)
	if f.IsRoutine() {
		r.inspectInherited(id, c.Feature, 0)
		r.inspect(id, f.Code)
	}
	for _, e := range f.Pre {
		r.inspect(id, e)
	}
	for _, e := range f.Post {
		r.inspect(id, e)
	}
	if r.Clazz(id).Ref {
		for _, g := range r.allInner(r.Clazz(id).Feature) {
			r.whenCalledDynamically(g, id)
		}
	}
}

// inspectInherited visits the inherits calls of f and the code of every
// ancestor in the context of the heir id.
func (r *Registry) inspectInherited(id ClazzID, f hir.FeatureID, depth int) {
	if depth > r.prog.NumFeatures() {
		return
	}
	for _, call := range r.prog.Feature(f).Inherits {
		r.inspect(id, call)
		pf := r.prog.Feature(call.Callee)
		n := callSlots(call)
		if pf.OuterRef.IsValid() {
			or := r.Lookup(id, Request{Feature: pf.OuterRef, Select: hir.NoSelect})
			r.SetSlot(id, call.ID(), n, slotCallOuter, or)
		}
		for i := range call.Args {
			field, sel := r.argField(pf, i)
			fc := r.Lookup(id, Request{Feature: field, Select: sel})
			r.SetSlot(id, call.ID(), n, slotCallArgs+i, fc)
		}
		r.inspectInherited(id, call.Callee, depth+1)
		r.inspect(id, pf.Code)
	}
}

// argField maps actual argument i of a call to f onto f's argument field,
// expanding a trailing open-typed argument into selects.
func (r *Registry) argField(f *hir.Feature, i int) (hir.FeatureID, int) {
	n := len(f.Args)
	if n == 0 {
		return hir.NoFeatureID, hir.NoSelect
	}
	if last := f.Args[n-1]; r.isOpenTyped(last) && i >= n-1 {
		return last, i - (n - 1)
	}
	if i < n {
		return f.Args[i], hir.NoSelect
	}
	return hir.NoFeatureID, hir.NoSelect
}

func (r *Registry) inspect(ctx ClazzID, e hir.Expr) {
	if e == nil {
		return
	}
	if b, ok := e.(*hir.Block); ok && b == nil {
		return
	}
	e.Accept(&clazzFinder{r: r, ctx: ctx})
}

// clazzFinder creates the clazzes used by code running in ctx and records
// per-site facts in ctx's slots.
type clazzFinder struct {
	r   *Registry
	ctx ClazzID
}

func (v *clazzFinder) visit(e hir.Expr) {
	if e != nil {
		e.Accept(v)
	}
}

func (v *clazzFinder) VisitCall(e *hir.Call) {
	r := v.r
	v.visit(e.Target)
	tclazz := r.clazzOf(e.Target, v.ctx)
	cf := r.prog.Feature(e.Callee)
	n := callSlots(e)
	pos := e.Pos()
	req := Request{
		Feature:     e.Callee,
		Generics:    r.actualGenerics(e.Generics, v.ctx),
		Select:      e.Select,
		At:          &pos,
		Inheritance: e.Inheritance,
	}
	inner := r.Lookup(tclazz, req)
	r.SetSlot(v.ctx, e.ID(), n, slotCallInner, inner)
	r.SetSlot(v.ctx, e.ID(), n, slotCallTarget, tclazz)
	if cf.IsChoice() {
		for _, a := range r.Choices(inner) {
			if !r.Clazz(a).Ref {
				r.MarkInstantiated(a, pos)
			}
		}
	}
	if len(cf.Pre) > 0 && !e.Inheritance {
		pc := inner
		if r.IsBoxed(tclazz) {
			pre := req
			pre.Pre = true
			pc = r.Lookup(tclazz, pre)
		}
		r.SetSlot(v.ctx, e.ID(), n, slotCallPre, pc)
	}
	if r.IsDynamicCall(e, tclazz) {
		r.markDynamic(req)
	}
	for i, a := range e.Args {
		if !e.Inheritance {
			field, sel := r.argField(cf, i)
			if field.IsValid() {
				fc := r.Lookup(inner, Request{Feature: field, Select: sel})
				v.propagate(a, r.ResultClazz(fc))
			}
		}
		v.visit(a)
	}
}

// IsDynamicCall reports whether call e on static target tclazz binds at runtime.
func (r *Registry) IsDynamicCall(e *hir.Call, tclazz ClazzID) bool {
	if !e.Dynamic || e.Inheritance {
		return false
	}
	if c := r.Clazz(tclazz); c != nil && c.Ref {
		return true
	}
	if t, ok := e.Target.(*hir.Call); ok {
		return r.prog.Feature(t.Callee).IsOuterRef()
	}
	return false
}

// IsDynamicAssign reports whether assignment e on static target tclazz writes
// the field of the runtime heir. Assignments to fields of the current
// instance never are.
func (r *Registry) IsDynamicAssign(e *hir.Assign, tclazz ClazzID) bool {
	if _, ok := e.Target.(*hir.Current); ok {
		return false
	}
	c := r.Clazz(tclazz)
	return c != nil && c.Ref && !r.IsError(tclazz)
}

// propagate hands the clazz expected by the consumer of e down to boxing sites.
func (v *clazzFinder) propagate(e hir.Expr, expected ClazzID) {
	r := v.r
	switch x := e.(type) {
	case *hir.Box:
		if r.Slot(v.ctx, x.ID(), slotBoxResult).IsValid() || !expected.IsValid() {
			return
		}
		vc := r.clazzOf(x.Value, v.ctx)
		r.SetSlot(v.ctx, x.ID(), 2, slotBoxValue, vc)
		r.SetSlot(v.ctx, x.ID(), 2, slotBoxResult, r.boxResult(vc, expected))
	case *hir.Block:
		if len(x.Exprs) > 0 {
			v.propagate(x.Exprs[len(x.Exprs)-1], expected)
		}
	}
}

// boxResult picks the clazz a boxed vc becomes when expected is wanted:
// a choice that takes vc as a value alternative keeps it unboxed.
func (r *Registry) boxResult(vc, expected ClazzID) ClazzID {
	ec := r.Clazz(expected)
	if ec != nil && r.feature(ec).IsChoice() {
		for _, a := range ec.choices {
			if a == vc {
				return vc
			}
		}
	}
	return r.AsRef(vc)
}

func (v *clazzFinder) VisitCurrent(*hir.Current) {}

func (v *clazzFinder) VisitAssign(e *hir.Assign) {
	r := v.r
	v.visit(e.Target)
	tc := r.clazzOf(e.Target, v.ctx)
	pos := e.Pos()
	fc := r.Lookup(r.AsValue(tc), Request{Feature: e.Field, Select: hir.NoSelect, At: &pos})
	r.SetSlot(v.ctx, e.ID(), 2, slotAssignTarget, tc)
	r.SetSlot(v.ctx, e.ID(), 2, slotAssignField, fc)
	if r.IsDynamicAssign(e, tc) {
		// every ref heir gets its own copy of the field
		r.markDynamic(Request{Feature: e.Field, Select: hir.NoSelect, At: &pos})
	}
	v.propagate(e.Value, r.ResultClazz(fc))
	v.visit(e.Value)
}

func (v *clazzFinder) VisitMatch(e *hir.Match) {
	r := v.r
	v.visit(e.Subject)
	sc := r.clazzOf(e.Subject, v.ctx)
	r.SetSlot(v.ctx, e.ID(), 1, slotMatchSubject, sc)
	for _, cs := range e.Cases {
		n := 1 + len(cs.Types)
		if cs.Field.IsValid() {
			pos := cs.Pos()
			fc := r.Lookup(v.ctx, Request{Feature: cs.Field, Select: hir.NoSelect, At: &pos})
			r.SetSlot(v.ctx, cs.ID(), n, slotCaseField, fc)
		}
		for k, t := range cs.Types {
			r.SetSlot(v.ctx, cs.ID(), n, slotCaseField+1+k, r.actualClazz(t, v.ctx, hir.NoSelect))
		}
		if cs.Code != nil {
			v.visit(cs.Code)
		}
	}
}

func (v *clazzFinder) VisitTag(e *hir.Tag) {
	r := v.r
	v.visit(e.Value)
	vc := r.clazzOf(e.Value, v.ctx)
	tc := r.actualClazz(e.Type, v.ctx, hir.NoSelect)
	r.SetSlot(v.ctx, e.ID(), 2, slotTagValue, vc)
	r.SetSlot(v.ctx, e.ID(), 2, slotTagChoice, tc)
	r.MarkInstantiated(tc, e.Pos())
}

func (v *clazzFinder) VisitBox(e *hir.Box) {
	r := v.r
	v.visit(e.Value)
	vc := r.Slot(v.ctx, e.ID(), slotBoxValue)
	if !vc.IsValid() {
		vc = r.clazzOf(e.Value, v.ctx)
		r.SetSlot(v.ctx, e.ID(), 2, slotBoxValue, vc)
	}
	rc := r.Slot(v.ctx, e.ID(), slotBoxResult)
	if !rc.IsValid() {
		rc = r.boxResult(vc, r.actualClazz(e.Type, v.ctx, hir.NoSelect))
		r.SetSlot(v.ctx, e.ID(), 2, slotBoxResult, rc)
	}
	r.MarkInstantiated(rc, e.Pos())
}

func (v *clazzFinder) VisitConstant(e *hir.Constant) {
	r := v.r
	cc := r.actualClazz(e.Type, v.ctx, hir.NoSelect)
	r.SetSlot(v.ctx, e.ID(), 1, slotClazz, cc)
	r.MarkInstantiated(cc, e.Pos())
}

func (v *clazzFinder) VisitInlineArray(e *hir.InlineArray) {
	r := v.r
	ac := r.actualClazz(e.Type, v.ctx, hir.NoSelect)
	ec := r.actualClazz(e.Elem, v.ctx, hir.NoSelect)
	r.SetSlot(v.ctx, e.ID(), 2, slotArray, ac)
	r.SetSlot(v.ctx, e.ID(), 2, slotArrayElem, ec)
	r.MarkInstantiated(ac, e.Pos())
	for _, el := range e.Elements {
		v.propagate(el, ec)
		v.visit(el)
	}
}

func (v *clazzFinder) VisitEnv(e *hir.Env) {
	r := v.r
	ec := r.actualClazz(e.Type, v.ctx, hir.NoSelect)
	r.SetSlot(v.ctx, e.ID(), 1, slotClazz, ec)
	r.MarkInstantiated(ec, e.Pos())
}

func (v *clazzFinder) VisitBlock(e *hir.Block) {
	for _, x := range e.Exprs {
		v.visit(x)
	}
}

func (r *Registry) actualGenerics(gs []hir.TypeID, ctx ClazzID) []hir.TypeID {
	if len(gs) == 0 {
		return nil
	}
	out := make([]hir.TypeID, 0, len(gs))
	for _, g := range gs {
		out = append(out, r.actualTypes(g, ctx)...)
	}
	return out
}

// ClazzOf returns the static clazz of the value e produces when run in ctx.
func (r *Registry) ClazzOf(e hir.Expr, ctx ClazzID) ClazzID {
	return r.clazzOf(e, ctx)
}

func (r *Registry) clazzOf(e hir.Expr, ctx ClazzID) ClazzID {
	if e == nil {
		return r.universe
	}
	q := &clazzQuery{r: r, ctx: ctx}
	e.Accept(q)
	return q.res
}

// clazzQuery computes the static result clazz of one expression.
type clazzQuery struct {
	r   *Registry
	ctx ClazzID
	res ClazzID
}

func (q *clazzQuery) VisitCall(e *hir.Call) {
	r := q.r
	inner := r.Slot(q.ctx, e.ID(), slotCallInner)
	if !inner.IsValid() {
		tclazz := r.clazzOf(e.Target, q.ctx)
		inner = r.Lookup(tclazz, Request{
			Feature:  e.Callee,
			Generics: r.actualGenerics(e.Generics, q.ctx),
			Select:   e.Select,
		})
	}
	q.res = r.ResultClazz(inner)
	if !q.res.IsValid() {
		q.res = r.unitOrError()
	}
}

func (q *clazzQuery) VisitCurrent(*hir.Current) { q.res = q.ctx }

func (q *clazzQuery) VisitAssign(*hir.Assign) { q.res = q.r.unitOrError() }

func (q *clazzQuery) VisitMatch(e *hir.Match) { q.res = q.r.actualClazz(e.Type, q.ctx, hir.NoSelect) }

func (q *clazzQuery) VisitTag(e *hir.Tag) { q.res = q.r.actualClazz(e.Type, q.ctx, hir.NoSelect) }

func (q *clazzQuery) VisitBox(e *hir.Box) {
	r := q.r
	if rc := r.Slot(q.ctx, e.ID(), slotBoxResult); rc.IsValid() {
		q.res = rc
		return
	}
	q.res = r.AsRef(r.clazzOf(e.Value, q.ctx))
}

func (q *clazzQuery) VisitConstant(e *hir.Constant) {
	q.res = q.r.actualClazz(e.Type, q.ctx, hir.NoSelect)
}

func (q *clazzQuery) VisitInlineArray(e *hir.InlineArray) {
	q.res = q.r.actualClazz(e.Type, q.ctx, hir.NoSelect)
}

func (q *clazzQuery) VisitEnv(e *hir.Env) { q.res = q.r.actualClazz(e.Type, q.ctx, hir.NoSelect) }

func (q *clazzQuery) VisitBlock(e *hir.Block) {
	if len(e.Exprs) == 0 {
		q.res = q.r.unitOrError()
		return
	}
	q.res = q.r.clazzOf(e.Exprs[len(e.Exprs)-1], q.ctx)
}

func (r *Registry) unitOrError() ClazzID {
	if u := r.Special(SpecialUnit); u.IsValid() {
		return u
	}
	return r.ErrorClazz()
}
