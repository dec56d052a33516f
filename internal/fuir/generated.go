package fuir

import (
	"context"
	"errors"
	"fmt"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/trace"
)

// Generated serves IR straight from a closed registry. Code is emitted on
// demand until Freeze; a frozen Generated is safe for concurrent readers.
type Generated struct {
	reg  *mono.Registry
	lay  *layout.Engine
	em   *Emitter
	main mono.ClazzID

	frozen bool
	unit   []bool
	heirs  map[mono.ClazzID][]ClazzID
}

// NewGenerated prepares IR for the program rooted at main. reg must have been
// reached from main and lay must have run.
func NewGenerated(reg *mono.Registry, lay *layout.Engine, main hir.FeatureID, opt Options) (*Generated, error) {
	if !reg.Closed() {
		return nil, fmt.Errorf("fuir: %w", errors.New("registry is still open"))
	}
	mc, ok := reg.Peek(reg.Universe(), mono.Request{Feature: main, Select: hir.NoSelect})
	if !ok {
		return nil, fmt.Errorf("fuir: main feature %s was not reached", reg.Program().QualifiedName(main))
	}
	return &Generated{
		reg:   reg,
		lay:   lay,
		em:    NewEmitter(reg, lay, opt),
		main:  mc,
		heirs: make(map[mono.ClazzID][]ClazzID),
	}, nil
}

func (g *Generated) Registry() *mono.Registry { return g.reg }

func (g *Generated) Emitter() *Emitter { return g.em }

// Freeze emits the code and contracts of every clazz that needs code, in id
// order, and precomputes the memoized facts readers would otherwise write.
// A fatal emission error is returned.
func (g *Generated) Freeze(ctx context.Context) (err error) {
	if g.frozen {
		return nil
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "emit", trace.CurrentSpan(ctx))
	defer func() {
		if rec := recover(); rec != nil {
			fe, ok := rec.(*diag.FatalError)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("fuir: %w", fe)
		}
		span.WithExtra("sites", fmt.Sprint(len(g.em.st.kinds))).End("")
	}()

	all := g.reg.All()
	g.unit = make([]bool, len(all)+1)
	for _, c := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.unit[c] = g.lay.IsUnitType(c)
		g.heirs[c] = g.instantiatedHeirs(c)
		if !g.em.NeedsCode(c) {
			continue
		}
		g.em.ClazzCode(c)
		f := g.reg.FeatureOf(c)
		for ix := range f.Pre {
			g.em.ClazzContract(c, ContractPre, ix)
		}
		for ix := range f.Post {
			g.em.ClazzContract(c, ContractPost, ix)
		}
	}
	g.em.st.frozen = true
	g.frozen = true
	return nil
}

func (g *Generated) Frozen() bool { return g.frozen }

func (g *Generated) id(c mono.ClazzID) ClazzID {
	if !c.IsValid() {
		return NoClazz
	}
	return ClazzBase + ClazzID(c) - 1 // #nosec G115 -- bounded by the registry size
}

func (g *Generated) ids(cs []mono.ClazzID) []ClazzID {
	if len(cs) == 0 {
		return nil
	}
	out := make([]ClazzID, len(cs))
	for i, c := range cs {
		out[i] = g.id(c)
	}
	return out
}

func (g *Generated) mc(c ClazzID) mono.ClazzID {
	if !c.IsValid() {
		return mono.NoClazzID
	}
	return mono.ClazzID(c-ClazzBase) + 1 // #nosec G115 -- c >= ClazzBase
}

func (g *Generated) FirstClazz() ClazzID { return ClazzBase }

func (g *Generated) LastClazz() ClazzID {
	return g.id(mono.ClazzID(g.reg.Len())) // #nosec G115 -- registry size fits
}

func (g *Generated) MainClazz() ClazzID     { return g.id(g.main) }
func (g *Generated) UniverseClazz() ClazzID { return g.id(g.reg.Universe()) }

func (g *Generated) ClazzKind(c ClazzID) ClazzKind {
	return kindOf(g.reg.FeatureOf(g.mc(c)))
}

func (g *Generated) ClazzBaseName(c ClazzID) string     { return g.reg.BaseName(g.mc(c)) }
func (g *Generated) ClazzAsString(c ClazzID) string     { return g.reg.Name(g.mc(c)) }
func (g *Generated) ClazzOriginalName(c ClazzID) string { return g.reg.OriginalName(g.mc(c)) }
func (g *Generated) ClazzTypeName(c ClazzID) string     { return g.reg.TypeName(g.mc(c)) }

func (g *Generated) ClazzOuterClazz(c ClazzID) ClazzID {
	if mc := g.reg.Clazz(g.mc(c)); mc != nil {
		return g.id(mc.Outer)
	}
	return NoClazz
}

func (g *Generated) ClazzResultClazz(c ClazzID) ClazzID { return g.id(g.reg.ResultClazz(g.mc(c))) }
func (g *Generated) ClazzResultField(c ClazzID) ClazzID { return g.id(g.reg.ResultField(g.mc(c))) }
func (g *Generated) ClazzOuterRef(c ClazzID) ClazzID    { return g.id(g.reg.OuterRef(g.mc(c))) }
func (g *Generated) ClazzArgs(c ClazzID) []ClazzID      { return g.ids(g.reg.Args(g.mc(c))) }
func (g *Generated) ClazzFields(c ClazzID) []ClazzID    { return g.ids(g.reg.Fields(g.mc(c))) }
func (g *Generated) ClazzChoices(c ClazzID) []ClazzID   { return g.ids(g.reg.Choices(g.mc(c))) }

func (g *Generated) ClazzActualGenerics(c ClazzID) []ClazzID {
	return g.ids(g.reg.ActualGenerics(g.mc(c)))
}

func (g *Generated) ClazzTypeParameterActualType(c ClazzID) ClazzID {
	return g.id(g.reg.TypeParameterActualType(g.mc(c)))
}

func (g *Generated) ClazzIsRef(c ClazzID) bool {
	mc := g.reg.Clazz(g.mc(c))
	return mc != nil && mc.Ref
}

func (g *Generated) ClazzIsBoxed(c ClazzID) bool { return g.reg.IsBoxed(g.mc(c)) }

func (g *Generated) ClazzIsUnitType(c ClazzID) bool {
	mc := g.mc(c)
	if g.frozen && int(mc) < len(g.unit) {
		return g.unit[mc]
	}
	return g.lay.IsUnitType(mc)
}

func (g *Generated) ClazzIsVoidType(c ClazzID) bool { return g.lay.IsVoidType(g.mc(c)) }

func (g *Generated) ClazzIsChoice(c ClazzID) bool { return g.reg.FeatureOf(g.mc(c)).IsChoice() }

func (g *Generated) ClazzIsChoiceWithRefs(c ClazzID) bool {
	return g.lay.IsChoiceWithRefs(g.mc(c))
}

func (g *Generated) ClazzIsChoiceOfOnlyRefs(c ClazzID) bool {
	return g.lay.IsChoiceOfOnlyRefs(g.mc(c))
}

func (g *Generated) ClazzNeedsCode(c ClazzID) bool { return g.em.NeedsCode(g.mc(c)) }

// HasData reports whether instances of c carry data a backend has to store.
func (g *Generated) HasData(c ClazzID) bool {
	switch g.ClazzKind(c) {
	case KindRoutine, KindChoice, KindIntrinsic, KindNative:
		return g.ClazzIsRef(c) || (!g.ClazzIsUnitType(c) && !g.ClazzIsVoidType(c))
	}
	return false
}

// ClazzFieldIsAdrOfValue reports an outer ref field holding the address of a
// value instance.
func (g *Generated) ClazzFieldIsAdrOfValue(c ClazzID) bool {
	mc := g.mc(c)
	if !g.reg.FeatureOf(mc).IsOuterRef() {
		return false
	}
	rc := g.reg.ResultClazz(mc)
	rf := g.reg.FeatureOf(rc)
	return rf != nil && !g.reg.Clazz(rc).Ref && !rf.Primitive && !g.lay.IsUnitType(rc)
}

func (g *Generated) instantiatedHeirs(c mono.ClazzID) []ClazzID {
	return g.ids(g.reg.DispatchHeirs(c))
}

func (g *Generated) ClazzInstantiatedHeirs(c ClazzID) []ClazzID {
	if hs, ok := g.heirs[g.mc(c)]; ok || g.frozen {
		return hs
	}
	return g.instantiatedHeirs(g.mc(c))
}

func (g *Generated) ClazzAsValue(c ClazzID) ClazzID { return g.id(g.reg.AsValue(g.mc(c))) }

func (g *Generated) ClazzCode(c ClazzID) SiteID { return g.em.ClazzCode(g.mc(c)) }

func (g *Generated) ClazzContract(c ClazzID, ck ContractKind, ix int) SiteID {
	return g.em.ClazzContract(g.mc(c), ck, ix)
}

// LifeTime is Undefined for clazzes that are never instantiated, Unknown for
// references and constructors whose instance is their result, Call otherwise.
func (g *Generated) LifeTime(c ClazzID) LifeTime {
	mc := g.mc(c)
	f := g.reg.FeatureOf(mc)
	if kindOf(f) != KindRoutine || !g.reg.IsInstantiated(mc) {
		return LifeUndefined
	}
	if g.reg.Clazz(mc).Ref || f.Constructor {
		return LifeUnknown
	}
	return LifeCall
}

func (g *Generated) ClazzSpecial(c ClazzID) mono.SpecialClazz { return g.reg.SpecialOf(g.mc(c)) }

func (g *Generated) SpecialClazz(s mono.SpecialClazz) ClazzID { return g.id(g.reg.Special(s)) }

func (g *Generated) InlineArrayElementClazz(c ClazzID) ClazzID {
	if gs := g.reg.ActualGenerics(g.mc(c)); len(gs) > 0 {
		return g.id(gs[0])
	}
	return NoClazz
}

func (g *Generated) FirstSite() SiteID { return SiteBase }

func (g *Generated) SiteEnd() SiteID { return g.em.st.next() }

func (g *Generated) WithinCode(s SiteID) bool { return g.em.st.kind(s) != ExprNone }

func (g *Generated) ClazzAt(s SiteID) ClazzID { return g.id(g.em.st.owner(s)) }

func (g *Generated) CodeAt(s SiteID) ExprKind { return g.em.st.kind(s) }

// AlwaysResultsInVoid reports a call whose callee never returns.
func (g *Generated) AlwaysResultsInVoid(s SiteID) bool {
	if g.CodeAt(s) != ExprCall {
		return false
	}
	return g.lay.IsVoidType(g.reg.ResultClazz(g.em.st.at(s).accessed))
}

func (g *Generated) SitePos(s SiteID) string {
	sp := g.em.st.span(s)
	if sp.IsBuiltin() {
		return "<builtin>"
	}
	return g.reg.Pos(sp)
}

func (g *Generated) Comment(s SiteID) string { return g.em.st.at(s).comment }

func (g *Generated) ConstClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).constClazz) }
func (g *Generated) ConstData(s SiteID) []byte   { return g.em.st.at(s).constData }

func (g *Generated) AccessedClazz(s SiteID) ClazzID     { return g.id(g.em.st.at(s).accessed) }
func (g *Generated) AccessedClazzes(s SiteID) []ClazzID { return g.ids(g.em.st.at(s).pairs) }
func (g *Generated) AccessTargetClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).target) }
func (g *Generated) AccessIsDynamic(s SiteID) bool      { return g.em.st.at(s).dynamic }
func (g *Generated) AssignedType(s SiteID) ClazzID      { return g.id(g.em.st.at(s).assigned) }

func (g *Generated) AccessedPreconditionClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).pre) }

func (g *Generated) TagValueClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).tagValue) }
func (g *Generated) TagNewClazz(s SiteID) ClazzID   { return g.id(g.em.st.at(s).tagNew) }
func (g *Generated) TagTagNum(s SiteID) int         { return g.em.st.at(s).tagNum }

func (g *Generated) BoxValueClazz(s SiteID) ClazzID  { return g.id(g.em.st.at(s).boxValue) }
func (g *Generated) BoxResultClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).boxResult) }

func (g *Generated) EnvClazz(s SiteID) ClazzID { return g.id(g.em.st.at(s).env) }

func (g *Generated) MatchStaticSubject(s SiteID) ClazzID { return g.id(g.em.st.at(s).subject) }
func (g *Generated) MatchCaseCount(s SiteID) int         { return len(g.em.st.at(s).cases) }

func (g *Generated) matchCase(s SiteID, cix int) (caseData, bool) {
	cs := g.em.st.at(s).cases
	if cix < 0 || cix >= len(cs) {
		return caseData{code: NoSite}, false
	}
	return cs[cix], true
}

func (g *Generated) MatchCaseTags(s SiteID, cix int) []int {
	c, _ := g.matchCase(s, cix)
	return c.tags
}

func (g *Generated) MatchCaseCode(s SiteID, cix int) SiteID {
	c, _ := g.matchCase(s, cix)
	return c.code
}

func (g *Generated) MatchCaseField(s SiteID, cix int) ClazzID {
	c, _ := g.matchCase(s, cix)
	return g.id(c.field)
}

var _ IR = (*Generated)(nil)
