package irfile

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"airgen/internal/fuir"
	"airgen/internal/mono"
	"airgen/internal/trace"
)

// sites per worker
const siteChunk = 4096

// FromIR collects the records of ir. Records are built concurrently, so ir
// must be safe for concurrent readers: a frozen *fuir.Generated or a Library.
func FromIR(ctx context.Context, ir fuir.IR) (*File, error) {
	if fz, ok := ir.(interface{ Frozen() bool }); ok && !fz.Frozen() {
		return nil, errors.New("irfile: IR is not frozen")
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "serialize", trace.CurrentSpan(ctx))
	defer span.End("")

	nc := int(ir.LastClazz()-ir.FirstClazz()) + 1
	ns := int(ir.SiteEnd() - ir.FirstSite())
	f := &File{
		Magic:    Magic,
		Schema:   SchemaVersion,
		Main:     clazzRef(ir.MainClazz()),
		Universe: clazzRef(ir.UniverseClazz()),
		Clazzes:  make([]ClazzRecord, nc),
		Sites:    make([]SiteRecord, ns),
		Specials: make([]int32, mono.NumSpecials()),
	}
	for s := range f.Specials {
		sc, err := safecast.Conv[uint8](s)
		if err != nil {
			return nil, fmt.Errorf("irfile: special index: %w", err)
		}
		f.Specials[s] = clazzRef(ir.SpecialClazz(mono.SpecialClazz(sc)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	g.Go(func() error {
		for i := range f.Clazzes {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := ir.FirstClazz() + fuir.ClazzID(i) // #nosec G115 -- i < nc
			f.Clazzes[i] = clazzRecord(ir, c)
		}
		return nil
	})
	for lo := 0; lo < ns; lo += siteChunk {
		hi := min(lo+siteChunk, ns)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s := ir.FirstSite() + fuir.SiteID(i) // #nosec G115 -- i < ns
				f.Sites[i] = siteRecord(ir, s)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	span.WithExtra("clazzes", fmt.Sprint(nc)).WithExtra("sites", fmt.Sprint(ns))
	return f, nil
}

func clazzRecord(ir fuir.IR, c fuir.ClazzID) ClazzRecord {
	var flags uint16
	set := func(f uint16, on bool) {
		if on {
			flags |= f
		}
	}
	set(FlagRef, ir.ClazzIsRef(c))
	set(FlagBoxed, ir.ClazzIsBoxed(c))
	set(FlagUnit, ir.ClazzIsUnitType(c))
	set(FlagVoid, ir.ClazzIsVoidType(c))
	set(FlagChoice, ir.ClazzIsChoice(c))
	set(FlagChoiceWithRefs, ir.ClazzIsChoiceWithRefs(c))
	set(FlagChoiceOfOnlyRefs, ir.ClazzIsChoiceOfOnlyRefs(c))
	set(FlagNeedsCode, ir.ClazzNeedsCode(c))
	set(FlagHasData, ir.HasData(c))
	set(FlagFieldIsAdrOfValue, ir.ClazzFieldIsAdrOfValue(c))

	return ClazzRecord{
		Kind:         uint8(ir.ClazzKind(c)),
		BaseName:     ir.ClazzBaseName(c),
		Name:         ir.ClazzAsString(c),
		OriginalName: ir.ClazzOriginalName(c),
		TypeName:     ir.ClazzTypeName(c),
		Flags:        flags,
		LifeTime:     uint8(ir.LifeTime(c)),
		Special:      uint8(ir.ClazzSpecial(c)),
		Outer:        clazzRef(ir.ClazzOuterClazz(c)),
		Result:       clazzRef(ir.ClazzResultClazz(c)),
		ResultField:  clazzRef(ir.ClazzResultField(c)),
		OuterRef:     clazzRef(ir.ClazzOuterRef(c)),
		TypeParam:    clazzRef(ir.ClazzTypeParameterActualType(c)),
		AsValue:      clazzRef(ir.ClazzAsValue(c)),
		ArrayElement: clazzRef(ir.InlineArrayElementClazz(c)),
		Code:         siteRef(ir.ClazzCode(c)),
		Args:         clazzRefs(ir.ClazzArgs(c)),
		Fields:       clazzRefs(ir.ClazzFields(c)),
		Choices:      clazzRefs(ir.ClazzChoices(c)),
		Generics:     clazzRefs(ir.ClazzActualGenerics(c)),
		Heirs:        clazzRefs(ir.ClazzInstantiatedHeirs(c)),
		Pre:          contracts(ir, c, fuir.ContractPre),
		Post:         contracts(ir, c, fuir.ContractPost),
	}
}

func contracts(ir fuir.IR, c fuir.ClazzID, ck fuir.ContractKind) []int32 {
	var out []int32
	for ix := 0; ; ix++ {
		s := ir.ClazzContract(c, ck, ix)
		if !s.IsValid() {
			return out
		}
		out = append(out, siteRef(s))
	}
}

func siteRecord(ir fuir.IR, s fuir.SiteID) SiteRecord {
	k := ir.CodeAt(s)
	rec := SiteRecord{Kind: uint8(k), Clazz: clazzRef(ir.ClazzAt(s))}
	if k == fuir.ExprNone {
		return rec
	}
	rec.Pos = ir.SitePos(s)
	switch k {
	case fuir.ExprComment:
		rec.Comment = ir.Comment(s)
	case fuir.ExprConst:
		rec.Const = clazzRef(ir.ConstClazz(s))
		rec.Data = ir.ConstData(s)
	case fuir.ExprCall:
		rec.Void = ir.AlwaysResultsInVoid(s)
		rec.Accessed = clazzRef(ir.AccessedClazz(s))
		rec.Target = clazzRef(ir.AccessTargetClazz(s))
		rec.Dynamic = ir.AccessIsDynamic(s)
		rec.Pairs = clazzRefs(ir.AccessedClazzes(s))
		rec.Pre = clazzRef(ir.AccessedPreconditionClazz(s))
	case fuir.ExprAssign:
		rec.Accessed = clazzRef(ir.AccessedClazz(s))
		rec.Target = clazzRef(ir.AccessTargetClazz(s))
		rec.Dynamic = ir.AccessIsDynamic(s)
		rec.Pairs = clazzRefs(ir.AccessedClazzes(s))
		rec.Assigned = clazzRef(ir.AssignedType(s))
	case fuir.ExprTag:
		rec.TagValue = clazzRef(ir.TagValueClazz(s))
		rec.TagNew = clazzRef(ir.TagNewClazz(s))
		rec.TagNum = int32(ir.TagTagNum(s)) // #nosec G115 -- bounded by the choice count
	case fuir.ExprBox:
		rec.BoxValue = clazzRef(ir.BoxValueClazz(s))
		rec.BoxResult = clazzRef(ir.BoxResultClazz(s))
	case fuir.ExprEnv:
		rec.Env = clazzRef(ir.EnvClazz(s))
	case fuir.ExprMatch:
		rec.Subject = clazzRef(ir.MatchStaticSubject(s))
		n := ir.MatchCaseCount(s)
		rec.Cases = make([]CaseRecord, n)
		for cix := range n {
			var tags []int32
			for _, t := range ir.MatchCaseTags(s, cix) {
				tags = append(tags, int32(t)) // #nosec G115 -- bounded by the choice count
			}
			rec.Cases[cix] = CaseRecord{
				Tags:  tags,
				Code:  siteRef(ir.MatchCaseCode(s, cix)),
				Field: clazzRef(ir.MatchCaseField(s, cix)),
			}
		}
	}
	return rec
}
