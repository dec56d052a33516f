package fuir

import (
	"encoding/binary"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/source"
)

// Options configures code emission.
type Options struct {
	// Comments prefixes every routine body with a Comment site naming the clazz.
	Comments bool
}

type contractKey struct {
	clazz mono.ClazzID
	kind  ContractKind
	ix    int
}

// Emitter flattens routine bodies of a closed registry into sites. Code of a
// clazz is built once and memoized.
type Emitter struct {
	reg  *mono.Registry
	prog *hir.Program
	lay  *layout.Engine
	sink *diag.Sink
	opt  Options

	st        *siteStore
	code      map[mono.ClazzID]SiteID
	contracts map[contractKey]SiteID
}

// NewEmitter creates an Emitter. reg must be closed.
func NewEmitter(reg *mono.Registry, lay *layout.Engine, opt Options) *Emitter {
	return &Emitter{
		reg:       reg,
		prog:      reg.Program(),
		lay:       lay,
		sink:      reg.Sink(),
		opt:       opt,
		st:        newSiteStore(),
		code:      make(map[mono.ClazzID]SiteID),
		contracts: make(map[contractKey]SiteID),
	}
}

// NeedsCode reports whether a backend must generate code for c: it runs
// because of a normal (not inherits) call or it is an outer ref read by code.
func (em *Emitter) NeedsCode(c mono.ClazzID) bool {
	f := em.reg.FeatureOf(c)
	switch kindOf(f) {
	case KindRoutine, KindIntrinsic, KindNative, KindField:
		return (em.reg.IsInstantiated(c) || f.IsOuterRef()) &&
			c != em.reg.Special(mono.SpecialConstString) &&
			!em.reg.IsError(c)
	default:
		return false
	}
}

// ClazzCode returns the first site of the code of routine c, or NoSite when c
// is no routine or needs no code.
func (em *Emitter) ClazzCode(c mono.ClazzID) SiteID {
	if s, ok := em.code[c]; ok {
		return s
	}
	f := em.reg.FeatureOf(c)
	if !f.IsRoutine() || !em.NeedsCode(c) || em.st.frozen {
		return NoSite
	}
	b := em.newBlock(c)
	if em.opt.Comments {
		b.add(ExprComment, f.Span, &siteData{comment: "code for " + em.reg.Name(c)})
	}
	if !em.lay.IsVoidType(c) {
		b.prolog()
		b.inherited(c, em.reg.Clazz(c).Feature, 0)
		b.expr(f.Code, false)
	}
	s := em.st.appendBlock(c, b.entries)
	em.code[c] = s
	return s
}

// ClazzContract returns the code of condition ix of kind ck of clazz c, or
// NoSite when there is no such condition.
func (em *Emitter) ClazzContract(c mono.ClazzID, ck ContractKind, ix int) SiteID {
	key := contractKey{clazz: c, kind: ck, ix: ix}
	if s, ok := em.contracts[key]; ok {
		return s
	}
	f := em.reg.FeatureOf(c)
	if f == nil || em.st.frozen {
		return NoSite
	}
	conds := f.Pre
	if ck == ContractPost {
		conds = f.Post
	}
	if ix < 0 || ix >= len(conds) {
		return NoSite
	}
	b := em.newBlock(c)
	b.prolog()
	b.expr(conds[ix], false)
	s := em.st.appendBlock(c, b.entries)
	em.contracts[key] = s
	return s
}

// block collects the entries of one code block running in ctx.
type block struct {
	em      *Emitter
	ctx     mono.ClazzID
	entries []entry
}

func (em *Emitter) newBlock(ctx mono.ClazzID) *block {
	return &block{em: em, ctx: ctx}
}

func (b *block) add(k ExprKind, pos source.Span, d *siteData) {
	b.entries = append(b.entries, entry{kind: k, pos: pos, data: d})
}

func (b *block) assign(field, target mono.ClazzID, pos source.Span) {
	r := b.em.reg
	b.add(ExprAssign, pos, &siteData{accessed: field, target: target, pairs: []mono.ClazzID{target, field}, assigned: r.ResultClazz(field)})
}

// prolog stores the outer instance into the outer ref field.
func (b *block) prolog() {
	r := b.em.reg
	vc := r.AsValue(b.ctx)
	or := r.OuterRef(vc)
	if !or.IsValid() || b.em.lay.IsUnitType(r.Clazz(b.ctx).Outer) {
		return
	}
	pos := r.FeatureOf(or).Span
	b.add(ExprOuter, pos, nil)
	b.add(ExprCurrent, pos, nil)
	b.assign(or, b.ctx, pos)
}

// inherited inlines the ancestor constructors of f in declaration order.
func (b *block) inherited(heir mono.ClazzID, f hir.FeatureID, depth int) {
	em := b.em
	r := em.reg
	if depth > em.prog.NumFeatures() {
		return
	}
	for _, call := range em.prog.Feature(f).Inherits {
		pf := em.prog.Feature(call.Callee)
		pos := call.Pos()
		or := r.InheritedOuterRef(heir, call)
		needsOuterRef := or.IsValid() && call.Target != nil && !em.lay.IsUnitType(r.ResultClazz(or))
		b.expr(call.Target, !needsOuterRef)
		if needsOuterRef {
			rc := r.ResultClazz(or)
			if rf := r.FeatureOf(rc); !r.Clazz(rc).Ref && rf != nil && !rf.Primitive {
				b.add(ExprAdrOf, pos, nil)
			}
			b.add(ExprCurrent, pos, nil)
			b.assign(or, heir, pos)
		}
		for i, a := range call.Args {
			b.expr(a, false)
			b.add(ExprCurrent, a.Pos(), nil)
			b.assign(r.InheritedArgField(heir, call, i), heir, a.Pos())
		}
		b.inherited(heir, call.Callee, depth+1)
		b.expr(pf.Code, true)
	}
}

// expr appends the code of e. dump discards the value e produces.
func (b *block) expr(e hir.Expr, dump bool) {
	em := b.em
	r := em.reg
	switch x := e.(type) {
	case nil:
	case *hir.Block:
		if x == nil {
			return
		}
		for i, s := range x.Exprs {
			b.expr(s, dump || i < len(x.Exprs)-1)
		}
	case *hir.Current:
		b.add(ExprCurrent, x.Pos(), nil)
	case *hir.Call:
		if em.isConst(b.ctx, x) {
			if !dump {
				b.add(ExprConst, x.Pos(), &siteData{constClazz: em.constClazz(b.ctx, x), constData: em.constData(b.ctx, x)})
			}
			return
		}
		b.expr(x.Target, false)
		for _, a := range x.Args {
			b.expr(a, false)
		}
		b.add(ExprCall, x.Pos(), em.callData(b.ctx, x))
		if dump {
			b.add(ExprPop, x.Pos(), nil)
		}
	case *hir.Assign:
		b.expr(x.Value, false)
		b.expr(x.Target, false)
		b.add(ExprAssign, x.Pos(), em.assignData(b.ctx, x))
	case *hir.Match:
		b.expr(x.Subject, false)
		subject := r.MatchSubject(b.ctx, x)
		d := &siteData{subject: subject}
		for _, cs := range x.Cases {
			field := r.CaseField(b.ctx, cs)
			matched := r.CaseTypes(b.ctx, cs)
			if field.IsValid() {
				matched = []mono.ClazzID{r.ResultClazz(field)}
			}
			cb := em.newBlock(b.ctx)
			cb.expr(cs.Code, dump)
			d.cases = append(d.cases, caseData{
				tags:  em.caseTags(subject, matched),
				code:  em.st.appendBlock(b.ctx, cb.entries),
				field: field,
			})
		}
		b.add(ExprMatch, x.Pos(), d)
	case *hir.Tag:
		b.expr(x.Value, false)
		vc, nc := r.TagValue(b.ctx, x), r.TagChoice(b.ctx, x)
		b.add(ExprTag, x.Pos(), &siteData{tagValue: vc, tagNew: nc, tagNum: em.tagNum(vc, nc)})
	case *hir.Box:
		b.expr(x.Value, false)
		vc, rc := r.BoxValue(b.ctx, x), r.BoxResult(b.ctx, x)
		if vc != rc {
			b.add(ExprBox, x.Pos(), &siteData{boxValue: vc, boxResult: rc})
		}
	case *hir.Constant:
		b.add(ExprConst, x.Pos(), &siteData{constClazz: r.ConstClazz(b.ctx, x), constData: slices.Clone(x.Data)})
	case *hir.InlineArray:
		if !em.isConst(b.ctx, x) {
			em.sink.Fatal(diag.EmitIllegalExpr, x.Pos(),
				"Inline array is not a compile-time constant",
				fmt.Sprintf("Inline array of %s in %s must have been lowered to calls.", em.reg.Name(r.ArrayClazz(b.ctx, x)), em.reg.Name(b.ctx)))
		}
		if !dump {
			b.add(ExprConst, x.Pos(), &siteData{constClazz: r.ArrayClazz(b.ctx, x), constData: em.constData(b.ctx, x)})
		}
	case *hir.Env:
		b.add(ExprEnv, x.Pos(), &siteData{env: r.EnvClazz(b.ctx, x)})
	default:
		em.sink.Fatal(diag.EmitIllegalExpr, e.Pos(),
			fmt.Sprintf("Expression %T not supported", e),
			fmt.Sprintf("Found while emitting code for %s.", em.reg.Name(b.ctx)))
	}
}

func (em *Emitter) callData(ctx mono.ClazzID, e *hir.Call) *siteData {
	r := em.reg
	inner := r.CallInner(ctx, e)
	target := r.CallTarget(ctx, e)
	d := &siteData{accessed: inner, target: target, pre: r.CallPrecondition(ctx, e)}
	if r.IsDynamicCall(e, target) {
		d.dynamic = true
		d.pairs = em.dispatch(target, r.CallRequest(ctx, e), true)
	} else {
		d.pairs = []mono.ClazzID{target, inner}
	}
	return d
}

func (em *Emitter) assignData(ctx mono.ClazzID, e *hir.Assign) *siteData {
	r := em.reg
	field := r.AssignField(ctx, e)
	target := r.AssignTarget(ctx, e)
	d := &siteData{accessed: field, target: target, assigned: r.ClazzOf(e.Value, ctx)}
	if r.IsDynamicAssign(e, target) {
		d.dynamic = true
		d.pairs = em.dispatch(target, r.AssignRequest(e), false)
	} else {
		d.pairs = []mono.ClazzID{target, field}
	}
	return d
}

// dispatch builds the (heir, inner) table of a dynamic access, ordered by
// heir. Calls drop heirs whose callee has no code.
func (em *Emitter) dispatch(target mono.ClazzID, req mono.Request, needCode bool) []mono.ClazzID {
	r := em.reg
	var pairs []mono.ClazzID
	for _, h := range r.DispatchHeirs(target) {
		inner, ok := r.Peek(h, req)
		if !ok || (needCode && !em.NeedsCode(inner)) {
			continue
		}
		pairs = append(pairs, h, inner)
	}
	return pairs
}

// tagNum is the index of the alternative of choice that takes vc.
func (em *Emitter) tagNum(vc, choice mono.ClazzID) int {
	r := em.reg
	alts := r.Choices(choice)
	if i := slices.Index(alts, vc); i >= 0 {
		return i
	}
	if c := r.Clazz(vc); c != nil && c.Ref {
		for i, a := range alts {
			if r.Clazz(a).Ref && slices.Contains(r.Heirs(a), vc) {
				return i
			}
		}
		for i, a := range alts {
			if r.Clazz(a).Ref {
				return i
			}
		}
	}
	return -1
}

// caseTags lists the alternatives of subject matched by any of matched.
func (em *Emitter) caseTags(subject mono.ClazzID, matched []mono.ClazzID) []int {
	r := em.reg
	var tags []int
	for i, a := range r.Choices(subject) {
		for _, m := range matched {
			if a == m || (r.Clazz(m) != nil && r.Clazz(m).Ref && r.Clazz(a).Ref && slices.Contains(r.Heirs(m), a)) {
				tags = append(tags, i)
				break
			}
		}
	}
	return tags
}

// isConst reports whether e folds into a constant: a value constructor call
// without code whose actuals all fold, a constant, or an inline array of those.
func (em *Emitter) isConst(ctx mono.ClazzID, e hir.Expr) bool {
	switch x := e.(type) {
	case *hir.Constant:
		return true
	case *hir.Block:
		return x != nil && len(x.Exprs) == 1 && em.isConst(ctx, x.Exprs[0])
	case *hir.InlineArray:
		ec := em.reg.ArrayElem(ctx, x)
		if !ec.IsValid() || em.lay.IsVoidType(ec) {
			return false
		}
		for _, el := range x.Elements {
			if !em.isConst(ctx, el) {
				return false
			}
		}
		return true
	case *hir.Call:
		return em.isConstCall(ctx, x)
	}
	return false
}

func (em *Emitter) isConstCall(ctx mono.ClazzID, e *hir.Call) bool {
	cf := em.prog.Feature(e.Callee)
	if e.Inheritance || e.Target != nil || !cf.Constructor || cf.Ref || len(e.Args) == 0 {
		return false
	}
	inner := em.reg.CallInner(ctx, e)
	if c := em.reg.Clazz(inner); c == nil || c.Ref || em.reg.IsError(inner) {
		return false
	}
	if !em.onlyDeclarations(e.Callee, 0) {
		return false
	}
	for _, a := range e.Args {
		if !em.isConst(ctx, a) {
			return false
		}
	}
	return true
}

// onlyDeclarations: f and its ancestors run no code and ancestors take no arguments.
func (em *Emitter) onlyDeclarations(f hir.FeatureID, depth int) bool {
	if !em.prog.ContainsOnlyDeclarations(f) || depth > em.prog.NumFeatures() {
		return false
	}
	for _, p := range em.prog.Feature(f).Inherits {
		if len(p.Args) > 0 || !em.onlyDeclarations(p.Callee, depth+1) {
			return false
		}
	}
	return true
}

func (em *Emitter) constClazz(ctx mono.ClazzID, e hir.Expr) mono.ClazzID {
	r := em.reg
	switch x := e.(type) {
	case *hir.Constant:
		return r.ConstClazz(ctx, x)
	case *hir.Block:
		return em.constClazz(ctx, x.Exprs[0])
	case *hir.InlineArray:
		return r.ArrayClazz(ctx, x)
	case *hir.Call:
		return r.ResultClazz(r.CallInner(ctx, x))
	}
	return mono.NoClazzID
}

// constData serializes a foldable expression: constants as their little-endian
// bytes, constructor calls as the concatenated fields, arrays as a uint32
// count followed by the elements.
func (em *Emitter) constData(ctx mono.ClazzID, e hir.Expr) []byte {
	switch x := e.(type) {
	case *hir.Constant:
		return slices.Clone(x.Data)
	case *hir.Block:
		return em.constData(ctx, x.Exprs[0])
	case *hir.Call:
		var out []byte
		for _, a := range x.Args {
			out = append(out, em.constData(ctx, a)...)
		}
		return out
	case *hir.InlineArray:
		n, err := safecast.Conv[uint32](len(x.Elements))
		if err != nil {
			panic(fmt.Errorf("inline array length overflow: %w", err))
		}
		out := binary.LittleEndian.AppendUint32(nil, n)
		for _, el := range x.Elements {
			out = append(out, em.constData(ctx, el)...)
		}
		return out
	}
	return nil
}
