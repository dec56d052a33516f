package fuir_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"slices"
	"strings"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/fuir"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/testkit"
)

func generate(t *testing.T, fix *testkit.Fixture, opt fuir.Options) *fuir.Generated {
	t.Helper()
	bag := diag.NewBag(0)
	r := mono.NewRegistry(fix.Prog, mono.Options{Sink: diag.NewSink(diag.BagReporter{Bag: bag})})
	ctx := context.Background()
	if err := r.Reach(ctx, fix.Prog.Main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	lay := layout.New(r)
	if err := lay.Run(ctx); err != nil {
		t.Fatalf("layout: %v", err)
	}
	g, err := fuir.NewGenerated(r, lay, fix.Prog.Main, opt)
	if err != nil {
		t.Fatalf("NewGenerated: %v", err)
	}
	if err := g.Freeze(ctx); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if err := fuir.Validate(g); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return g
}

func kinds(ir fuir.IR, s fuir.SiteID) []fuir.ExprKind {
	var out []fuir.ExprKind
	for ; ir.WithinCode(s); s++ {
		out = append(out, ir.CodeAt(s))
	}
	return out
}

func mustClazz(t *testing.T, ir fuir.IR, name string) fuir.ClazzID {
	t.Helper()
	c, ok := fuir.ClazzByName(ir, name)
	if !ok {
		t.Fatalf("no clazz named %q", name)
	}
	return c
}

func TestSingleRoutineCode(t *testing.T) {
	g := generate(t, testkit.SingleRoutine(), fuir.Options{})
	if got := g.LastClazz() - g.FirstClazz() + 1; got != 2 {
		t.Fatalf("clazz count: got=%d want=2", got)
	}
	main := g.MainClazz()
	if got := g.ClazzAsString(main); got != "f" {
		t.Fatalf("main: got=%q want=%q", got, "f")
	}
	code := g.ClazzCode(main)
	if got := fuir.CodeSize(g, code); got != 3 {
		t.Fatalf("code size: got=%d want=3", got)
	}
	for _, k := range kinds(g, code) {
		if k != fuir.ExprCurrent {
			t.Fatalf("site kind: got=%s want=Current", k)
		}
	}
	if got := g.ClazzAt(code); got != main {
		t.Fatalf("ClazzAt: got=%d want=%d", got, main)
	}
	if got := g.SitePos(code); !strings.HasPrefix(got, "single.fz:") {
		t.Fatalf("SitePos: got=%q", got)
	}
	if got := g.LifeTime(main); got != fuir.LifeUnknown {
		t.Fatalf("LifeTime: got=%s want=Unknown", got)
	}
}

func TestCommentsOption(t *testing.T) {
	g := generate(t, testkit.SingleRoutine(), fuir.Options{Comments: true})
	code := g.ClazzCode(g.MainClazz())
	if got := fuir.CodeSize(g, code); got != 4 {
		t.Fatalf("code size: got=%d want=4", got)
	}
	if g.CodeAt(code) != fuir.ExprComment || g.Comment(code) != "code for f" {
		t.Fatalf("first site: got=%s %q want Comment %q", g.CodeAt(code), g.Comment(code), "code for f")
	}
}

func TestDynamicCallDispatchTable(t *testing.T) {
	g := generate(t, testkit.RefDispatch(), fuir.Options{})
	code := g.ClazzCode(g.MainClazz())
	want := []fuir.ExprKind{fuir.ExprCall, fuir.ExprPop, fuir.ExprCall, fuir.ExprPop, fuir.ExprCall, fuir.ExprCall}
	if got := kinds(g, code); !slices.Equal(got, want) {
		t.Fatalf("main code: got=%v want=%v", got, want)
	}
	m := code + 5
	if !g.AccessIsDynamic(m) {
		t.Fatalf("call of m is not dynamic")
	}
	pairs := g.AccessedClazzes(m)
	if len(pairs) != 4 {
		t.Fatalf("dispatch table: got=%d entries want=4", len(pairs))
	}
	for i, want := range []string{"A", "m", "B", "m"} {
		if got := g.ClazzBaseName(pairs[i]); got != want {
			t.Fatalf("pair entry %d: got=%q want=%q", i, got, want)
		}
	}
	if !g.ClazzIsRef(pairs[0]) || !g.ClazzIsRef(pairs[2]) {
		t.Fatalf("dispatch targets must be refs: %v", pairs)
	}
	if pairs[1] == pairs[3] {
		t.Fatalf("A and B dispatch to the same callee")
	}
	if !g.ClazzIsRef(g.AccessTargetClazz(m)) {
		t.Fatalf("static target of m is not a ref")
	}

	// the static calls of A and B carry exactly one pair
	if got := len(g.AccessedClazzes(code)); got != 2 {
		t.Fatalf("static dispatch table: got=%d want=2", got)
	}
	heirs := g.ClazzInstantiatedHeirs(g.AccessTargetClazz(m))
	if len(heirs) != 2 {
		t.Fatalf("instantiated heirs: got=%v want 2", heirs)
	}
}

func TestConstructorCallFolds(t *testing.T) {
	g := generate(t, testkit.FoldableCtor(), fuir.Options{})
	code := g.ClazzCode(g.MainClazz())
	if got := kinds(g, code); !slices.Equal(got, []fuir.ExprKind{fuir.ExprConst}) {
		t.Fatalf("main code: got=%v want=[Const]", got)
	}
	point := mustClazz(t, g, "point")
	if got := g.ConstClazz(code); got != point {
		t.Fatalf("const clazz: got=%s want=point", g.ClazzAsString(got))
	}
	if got := hex.EncodeToString(g.ConstData(code)); got != "0300000004000000" {
		t.Fatalf("const data: got=%s want=0300000004000000", got)
	}
}

func TestTagNumber(t *testing.T) {
	g := generate(t, testkit.ChoiceRefUnit(), fuir.Options{})
	code := g.ClazzCode(g.MainClazz())
	want := []fuir.ExprKind{fuir.ExprCall, fuir.ExprTag}
	if got := kinds(g, code); !slices.Equal(got, want) {
		t.Fatalf("main code: got=%v want=%v", got, want)
	}
	tag := code + 1
	if got := g.TagTagNum(tag); got != 1 {
		t.Fatalf("tag number: got=%d want=1", got)
	}
	c := g.TagNewClazz(tag)
	if !g.ClazzIsChoiceWithRefs(c) || !g.ClazzIsChoiceOfOnlyRefs(c) {
		t.Fatalf("choice flags of %s: refs=%v onlyRefs=%v", g.ClazzAsString(c), g.ClazzIsChoiceWithRefs(c), g.ClazzIsChoiceOfOnlyRefs(c))
	}
	if !g.ClazzIsUnitType(g.TagValueClazz(tag)) {
		t.Fatalf("tagged value %s is not a unit type", g.ClazzAsString(g.TagValueClazz(tag)))
	}
}

func TestContracts(t *testing.T) {
	g := generate(t, testkit.Contracted(), fuir.Options{})
	f := mustClazz(t, g, "f")
	for _, ck := range []fuir.ContractKind{fuir.ContractPre, fuir.ContractPost} {
		s := g.ClazzContract(f, ck, 0)
		want := []fuir.ExprKind{fuir.ExprCurrent, fuir.ExprCall}
		if got := kinds(g, s); !slices.Equal(got, want) {
			t.Fatalf("%s 0: got=%v want=%v", ck, got, want)
		}
		if got := g.ClazzContract(f, ck, 1); got != fuir.NoSite {
			t.Fatalf("%s 1: got=%d want=NoSite", ck, got)
		}
	}
	want := []fuir.ExprKind{fuir.ExprConst, fuir.ExprCall}
	code := g.ClazzCode(g.MainClazz())
	if got := kinds(g, code); !slices.Equal(got, want) {
		t.Fatalf("main code: got=%v want=%v", got, want)
	}
	if got := g.AccessedPreconditionClazz(code + 1); got != f {
		t.Fatalf("precondition clazz: got=%s want=f", g.ClazzAsString(got))
	}
}

func TestFrozenEmitsNothingNew(t *testing.T) {
	g := generate(t, testkit.RefDispatch(), fuir.Options{})
	end := g.SiteEnd()
	for c := g.FirstClazz(); c <= g.LastClazz(); c++ {
		g.ClazzCode(c)
	}
	if got := g.SiteEnd(); got != end {
		t.Fatalf("SiteEnd after reads: got=%d want=%d", got, end)
	}
}

func TestPrintIsDeterministic(t *testing.T) {
	dump := func() string {
		g := generate(t, testkit.RefDispatch(), fuir.Options{Comments: true})
		var buf bytes.Buffer
		if err := fuir.Print(&buf, g, fuir.PrintOptions{Positions: true}); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}
	first, second := dump(), dump()
	if first != second {
		t.Fatalf("listings differ:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "dynamic") {
		t.Fatalf("listing lacks the dynamic call:\n%s", first)
	}
}

func TestCollectStats(t *testing.T) {
	g := generate(t, testkit.RefDispatch(), fuir.Options{})
	st, err := fuir.CollectStats(context.Background(), g)
	if err != nil {
		t.Fatalf("CollectStats: %v", err)
	}
	if want := int(g.LastClazz()-g.FirstClazz()) + 1; st.Clazzes != want {
		t.Fatalf("clazzes: got=%d want=%d", st.Clazzes, want)
	}
	total, calls := 0, 0
	for s := g.FirstSite(); s < g.SiteEnd(); s++ {
		total++
		if g.WithinCode(s) && g.CodeAt(s) == fuir.ExprCall {
			calls++
		}
	}
	sum := 0
	for _, n := range st.BySite {
		sum += n
	}
	if sum != total || st.Sites != total {
		t.Fatalf("sites: got=%d sum=%d want=%d", st.Sites, sum, total)
	}
	if st.BySite[fuir.ExprCall] != calls {
		t.Fatalf("calls: got=%d want=%d", st.BySite[fuir.ExprCall], calls)
	}
	if st.Refs == 0 || st.WithCode == 0 || st.MaxCode == 0 {
		t.Fatalf("expected refs and code in a dispatch program: got=%+v", st)
	}
	byKind := 0
	for _, n := range st.ByKind {
		byKind += n
	}
	if byKind != st.Clazzes {
		t.Fatalf("kinds: got=%d want=%d", byKind, st.Clazzes)
	}
}

func TestCollectStatsHonorsCancellation(t *testing.T) {
	g := generate(t, testkit.RefDispatch(), fuir.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fuir.CollectStats(ctx, g); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func sitesOf(ir fuir.IR, k fuir.ExprKind) []fuir.SiteID {
	var out []fuir.SiteID
	for s := ir.FirstSite(); s < ir.SiteEnd(); s++ {
		if ir.WithinCode(s) && ir.CodeAt(s) == k {
			out = append(out, s)
		}
	}
	return out
}

func dynamicSites(ir fuir.IR, k fuir.ExprKind) []fuir.SiteID {
	var out []fuir.SiteID
	for _, s := range sitesOf(ir, k) {
		if ir.AccessIsDynamic(s) {
			out = append(out, s)
		}
	}
	return out
}

func TestOuterRefCallOnValueOuter(t *testing.T) {
	g := generate(t, testkit.OuterValueCall(), fuir.Options{})
	dyn := dynamicSites(g, fuir.ExprCall)
	if len(dyn) != 1 {
		t.Fatalf("dynamic calls: got=%d want=1", len(dyn))
	}
	m := dyn[0]
	target := g.AccessTargetClazz(m)
	if g.ClazzIsRef(target) {
		t.Fatalf("outer %s is a ref", g.ClazzAsString(target))
	}
	pairs := g.AccessedClazzes(m)
	if len(pairs) != 2 || pairs[0] != target || pairs[1] != g.AccessedClazz(m) {
		t.Fatalf("dispatch table: got=%v want=[%d %d]", pairs, target, g.AccessedClazz(m))
	}
	if got := g.ClazzBaseName(pairs[1]); got != "m" {
		t.Fatalf("callee: got=%q want=%q", got, "m")
	}
	if heirs := g.ClazzInstantiatedHeirs(target); !slices.Equal(heirs, []fuir.ClazzID{target}) {
		t.Fatalf("instantiated heirs of %s: got=%v", g.ClazzAsString(target), heirs)
	}
}

// emptyTable hides the dispatch table of one site.
type emptyTable struct {
	fuir.IR
	site fuir.SiteID
}

func (e emptyTable) AccessedClazzes(s fuir.SiteID) []fuir.ClazzID {
	if s == e.site {
		return nil
	}
	return e.IR.AccessedClazzes(s)
}

func TestValidateRejectsEmptyDispatchTable(t *testing.T) {
	g := generate(t, testkit.OuterValueCall(), fuir.Options{})
	dyn := dynamicSites(g, fuir.ExprCall)
	if len(dyn) != 1 {
		t.Fatalf("dynamic calls: got=%d want=1", len(dyn))
	}
	err := fuir.Validate(emptyTable{IR: g, site: dyn[0]})
	if err == nil || !strings.Contains(err.Error(), "empty dispatch table") {
		t.Fatalf("Validate: got=%v want empty dispatch table", err)
	}
}

func TestDynamicAssignDispatchTable(t *testing.T) {
	g := generate(t, testkit.RefFieldAssign(), fuir.Options{})
	assigns := dynamicSites(g, fuir.ExprAssign)
	if len(assigns) != 1 {
		t.Fatalf("dynamic assignments: got=%d want=1", len(assigns))
	}
	s := assigns[0]
	if !g.ClazzIsRef(g.AccessTargetClazz(s)) {
		t.Fatalf("static target %s is not a ref", g.ClazzAsString(g.AccessTargetClazz(s)))
	}
	pairs := g.AccessedClazzes(s)
	if len(pairs) != 4 {
		t.Fatalf("dispatch table: got=%d entries want=4", len(pairs))
	}
	for i, want := range []string{"A", "x", "B", "x"} {
		if got := g.ClazzBaseName(pairs[i]); got != want {
			t.Fatalf("pair entry %d: got=%q want=%q", i, got, want)
		}
	}
	for i := 0; i < len(pairs); i += 2 {
		if got := g.ClazzOuterClazz(pairs[i+1]); got != pairs[i] {
			t.Fatalf("field of %s has outer %s", g.ClazzAsString(pairs[i]), g.ClazzAsString(got))
		}
	}
	if pairs[1] == pairs[3] {
		t.Fatalf("A and B share the field clazz")
	}

	// every other assignment has a single pair
	for _, a := range sitesOf(g, fuir.ExprAssign) {
		if a != s && len(g.AccessedClazzes(a)) != 2 {
			t.Fatalf("static assignment %d: got=%d entries want=2", a, len(g.AccessedClazzes(a)))
		}
	}
}

func TestBoxedReceiverPrecondition(t *testing.T) {
	g := generate(t, testkit.BoxedPrecondition(), fuir.Options{})
	call := fuir.NoSite
	for _, s := range sitesOf(g, fuir.ExprCall) {
		if g.ClazzBaseName(g.AccessedClazz(s)) == "m" {
			call = s
		}
	}
	if call == fuir.NoSite {
		t.Fatalf("no call of m")
	}
	callee, pre := g.AccessedClazz(call), g.AccessedPreconditionClazz(call)
	if !pre.IsValid() || pre == callee {
		t.Fatalf("precondition clazz: got=%d callee=%d", pre, callee)
	}
	if !g.ClazzIsRef(g.ClazzOuterClazz(pre)) || g.ClazzIsRef(g.ClazzOuterClazz(callee)) {
		t.Fatalf("outers: pre=%s callee=%s", g.ClazzAsString(g.ClazzOuterClazz(pre)), g.ClazzAsString(g.ClazzOuterClazz(callee)))
	}
	if s := g.ClazzContract(pre, fuir.ContractPre, 0); !s.IsValid() {
		t.Fatalf("no precondition code for %s", g.ClazzAsString(pre))
	}
	if got := len(sitesOf(g, fuir.ExprBox)); got != 1 {
		t.Fatalf("box sites: got=%d want=1", got)
	}
}
