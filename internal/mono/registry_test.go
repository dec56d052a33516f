package mono

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/testkit"
)

func reach(t *testing.T, fix *testkit.Fixture) (*Registry, *diag.Bag, error) {
	t.Helper()
	if err := testkit.CheckSpanInvariants(fix.Prog); err != nil {
		t.Fatalf("fixture spans: %v", err)
	}
	bag := diag.NewBag(0)
	r := NewRegistry(fix.Prog, Options{Sink: diag.NewSink(diag.BagReporter{Bag: bag})})
	err := r.Reach(context.Background(), fix.Prog.Main)
	return r, bag, err
}

func mustReach(t *testing.T, fix *testkit.Fixture) (*Registry, *diag.Bag) {
	t.Helper()
	r, bag, err := reach(t, fix)
	if err != nil {
		t.Fatalf("Reach: %v", err)
	}
	return r, bag
}

func clazzOfFeature(r *Registry, outer ClazzID, f hir.FeatureID) ClazzID {
	return r.Lookup(outer, Request{Feature: f})
}

func TestCreateInterns(t *testing.T) {
	fix := testkit.SingleRoutine()
	r := NewRegistry(fix.Prog, Options{})
	ft := fix.Prog.FeatureType(fix.F("f"))

	a := r.Create(ft, hir.NoSelect, r.Universe())
	b := r.Create(ft, hir.NoSelect, r.Universe())
	if a != b {
		t.Fatalf("Create is not interned: got=%d want=%d", b, a)
	}
	ref := r.AsRef(a)
	if ref == a || !r.Clazz(ref).Ref {
		t.Fatalf("AsRef: got=%d (ref=%v)", ref, r.Clazz(ref).Ref)
	}
	if got := r.AsValue(ref); got != a {
		t.Fatalf("AsValue(AsRef(c)): got=%d want=%d", got, a)
	}
	if !r.IsBoxed(ref) || r.IsBoxed(a) {
		t.Fatalf("IsBoxed misclassifies value feature clazzes")
	}
	if got := r.Name(ref); got != "ref f" {
		t.Fatalf("Name: got=%q want=%q", got, "ref f")
	}
}

func TestReachSingleRoutine(t *testing.T) {
	fix := testkit.SingleRoutine()
	r, bag := mustReach(t, fix)
	if got := r.Len(); got != 2 {
		var buf bytes.Buffer
		_ = Dump(&buf, r, DumpOptions{})
		t.Fatalf("clazz count: got=%d want=2\n%s", got, buf.String())
	}
	f := clazzOfFeature(r, r.Universe(), fix.F("f"))
	if !r.IsInstantiated(f) || !r.IsCalled(f) {
		t.Fatalf("main clazz not instantiated")
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if !r.Closed() {
		t.Fatalf("registry not closed after Reach")
	}
}

func TestReachIsDeterministic(t *testing.T) {
	dump := func() string {
		r, _ := mustReach(t, testkit.RefDispatch())
		var buf bytes.Buffer
		if err := Dump(&buf, r, DumpOptions{}); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}
	first, second := dump(), dump()
	if first != second {
		t.Fatalf("dumps differ:\n%s\n---\n%s", first, second)
	}
}

func TestDynamicCallReachesHeirs(t *testing.T) {
	fix := testkit.RefDispatch()
	r, bag := mustReach(t, fix)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	a := clazzOfFeature(r, r.Universe(), fix.F("A"))
	b := clazzOfFeature(r, r.Universe(), fix.F("B"))
	heirs := r.Heirs(a)
	if len(heirs) < 2 || heirs[0] != a {
		t.Fatalf("heirs of A: got=%v", heirs)
	}
	found := false
	for _, h := range heirs {
		found = found || h == b
	}
	if !found {
		t.Fatalf("B missing from heirs of A: %v", heirs)
	}
	bm := clazzOfFeature(r, b, fix.F("A.m"))
	if got := r.Clazz(bm).Feature; got != fix.F("B.m") {
		t.Fatalf("A.m in B: got=%s want=B.m", fix.Prog.QualifiedName(got))
	}
	if !r.IsInstantiated(bm) {
		t.Fatalf("B.m not instantiated by the dynamic call")
	}
	if r.DynamicCalls() != 1 {
		t.Fatalf("dynamic calls: got=%d want=1", r.DynamicCalls())
	}
}

func TestNormalizationSharesInheritedRoutines(t *testing.T) {
	b := hir.NewBuilder()
	u := b.Program().Universe
	a := b.Constructor(u, "A", hir.Ref())
	n := b.Routine(a, "n", hir.NoTypeID)
	o := b.Routine(a, "o", hir.NoTypeID)
	b.Code(o, b.OuterCall(o))
	bb := b.Constructor(u, "B", hir.Ref())
	b.Inherit(bb, nil, a, nil)
	main := b.Constructor(u, "main")
	b.Code(main,
		b.Call(nil, a),
		b.Call(b.Call(nil, bb), n),
		b.Call(b.Call(nil, bb), o),
		b.Call(b.Call(nil, a), n),
		b.Call(b.Call(nil, a), o),
	)
	b.SetMain(main)
	prog := b.MustBuild()

	r := NewRegistry(prog, Options{})
	if err := r.Reach(context.Background(), main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	ac := clazzOfFeature(r, r.Universe(), a)
	bc := clazzOfFeature(r, r.Universe(), bb)

	nInB, nInA := clazzOfFeature(r, bc, n), clazzOfFeature(r, ac, n)
	if nInB != nInA {
		t.Fatalf("n not shared: in B=%s in A=%s", r.Name(nInB), r.Name(nInA))
	}
	if !r.Clazz(r.Clazz(nInB).Outer).Normalized {
		t.Fatalf("outer of shared n not marked normalized")
	}
	// o reads its outer ref and keeps the exact receiver
	oInB, oInA := clazzOfFeature(r, bc, o), clazzOfFeature(r, ac, o)
	if oInB == oInA || r.Clazz(oInB).Outer != bc {
		t.Fatalf("o normalized although it reads its outer: in B outer=%s", r.Name(r.Clazz(oInB).Outer))
	}
	if got := r.ResultClazz(r.OuterRef(oInB)); got != bc {
		t.Fatalf("outer ref of o in B: got=%s want=%s", r.Name(got), r.Name(bc))
	}
}

func TestGenericInstances(t *testing.T) {
	b := hir.NewBuilder()
	bs := b.WithBase()
	u := b.Program().Universe
	box := b.Constructor(u, "box")
	tp := b.TypeParam(box, "T")
	val := b.Arg(box, "val", b.P(tp))
	main := b.Constructor(u, "main")
	i32, i64 := b.T(bs.I32), b.T(bs.I64)
	b.Code(main,
		b.CallG(nil, box, []hir.TypeID{i32}, b.Int(i32, 4, 1)),
		b.CallG(nil, box, []hir.TypeID{i64}, b.Int(i64, 8, 2)),
	)
	b.SetMain(main)
	prog := b.MustBuild()
	r := NewRegistry(prog, Options{})
	if err := r.Reach(context.Background(), main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	b32 := r.Lookup(r.Universe(), Request{Feature: box, Generics: []hir.TypeID{i32}})
	b64 := r.Lookup(r.Universe(), Request{Feature: box, Generics: []hir.TypeID{i64}})
	if b32 == b64 {
		t.Fatalf("box i32 and box i64 share clazz %d", b32)
	}
	if got := r.Name(b32); got != "box i32" {
		t.Fatalf("Name: got=%q want=%q", got, "box i32")
	}
	v := clazzOfFeature(r, b32, val)
	if got := r.ResultClazz(v); got != r.Special(SpecialI32) {
		t.Fatalf("box i32 .val result: got=%s want=i32", r.Name(got))
	}
	if args := r.Args(b64); len(args) != 1 || r.ResultClazz(args[0]) != r.Special(SpecialI64) {
		t.Fatalf("box i64 args: got=%v", args)
	}
}

func TestRecursiveValueIsFatal(t *testing.T) {
	_, bag, err := reach(t, testkit.RecursiveValue())
	var fe *diag.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("Reach: got err=%v, want *diag.FatalError", err)
	}
	if fe.Diag.Code != diag.MonoRecursiveValue {
		t.Fatalf("code: got=%s want=%s", fe.Diag.Code, diag.MonoRecursiveValue)
	}
	if bag.Count(diag.MonoRecursiveValue) != 1 {
		t.Fatalf("diagnostics: got=%d want=1", bag.Count(diag.MonoRecursiveValue))
	}
	d := bag.Items()[0]
	if d.Message != "Recursive value type is not allowed" || !strings.Contains(d.Detail, "add a 'ref'") {
		t.Fatalf("unexpected diagnostic: %q / %q", d.Message, d.Detail)
	}
	if !strings.Contains(d.Detail, "recursive.fz:") {
		t.Fatalf("detail lacks positions: %q", d.Detail)
	}
}

func TestAbstractCallsAreBatchedPerReceiver(t *testing.T) {
	fix := testkit.AbstractMissing()
	_, bag := mustReach(t, fix)
	if got := bag.Count(diag.MonoAbstractNotImplemented); got != 1 {
		t.Fatalf("abstract diagnostics: got=%d want=1: %v", got, bag.Items())
	}
	d := bag.Items()[0]
	want := "Used abstract features `A.m`, `A.n` are not implemented"
	if d.Message != want {
		t.Fatalf("message: got=%q want=%q", d.Message, want)
	}
	if !strings.HasPrefix(d.Detail, "Feature B instantiated at abstract.fz:") ||
		!strings.HasSuffix(d.Detail, "without providing an implementation\n") {
		t.Fatalf("detail: %q", d.Detail)
	}
}

func TestSpecials(t *testing.T) {
	b := hir.NewBuilder()
	b.WithBase()
	u := b.Program().Universe
	main := b.Constructor(u, "main")
	b.SetMain(main)
	prog := b.MustBuild()
	r := NewRegistry(prog, Options{})
	if err := r.Reach(context.Background(), main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	for _, s := range []SpecialClazz{SpecialI32, SpecialBool, SpecialConstString, SpecialPointer} {
		id := r.Special(s)
		if !id.IsValid() {
			t.Fatalf("special %s missing", s)
		}
		if got := r.SpecialOf(id); got != s {
			t.Fatalf("SpecialOf(%s): got=%s", s, got)
		}
	}
	if r.Special(SpecialJava).IsValid() {
		t.Fatalf("fuzion.java resolved although not declared")
	}
	if !r.IsInstantiated(r.Special(SpecialI64)) || r.IsCalled(r.Special(SpecialBool)) {
		t.Fatalf("special marks wrong")
	}
	if got := SpecialPointer.String(); got != "fuzion.sys.Pointer" {
		t.Fatalf("SpecialPointer.String: got=%q", got)
	}
}

func TestCreateAfterCloseFails(t *testing.T) {
	fix := testkit.SingleRoutine()
	r, _ := mustReach(t, fix)
	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.Is(err, ErrClosed) {
			t.Fatalf("recover: got=%v want ErrClosed", rec)
		}
	}()
	r.AsRef(clazzOfFeature(r, r.Universe(), fix.F("f")))
}

func TestCompare(t *testing.T) {
	fix := testkit.RefDispatch()
	r, _ := mustReach(t, fix)
	a := clazzOfFeature(r, r.Universe(), fix.F("A"))
	b := clazzOfFeature(r, r.Universe(), fix.F("B"))
	if r.Compare(a, a) != 0 || r.Compare(a, b) != -r.Compare(b, a) || r.Compare(a, b) == 0 {
		t.Fatalf("Compare is not a strict order on A/B")
	}
	av := r.AsValue(a)
	if r.Compare(av, a) >= 0 {
		t.Fatalf("value clone must sort before ref: got=%d", r.Compare(av, a))
	}
}

func TestReopenAllowsCreation(t *testing.T) {
	fix := testkit.SingleRoutine()
	r, _ := mustReach(t, fix)
	if !r.Closed() {
		t.Fatalf("Closed after Reach: got=false want=true")
	}
	r.Reopen()
	if r.Closed() {
		t.Fatalf("Closed after Reopen: got=true want=false")
	}
	f := clazzOfFeature(r, r.Universe(), fix.F("f"))
	if ref := r.AsRef(f); !r.Clazz(ref).Ref {
		t.Fatalf("AsRef after Reopen: got=%d", ref)
	}
	r.Close()
	if !r.Closed() {
		t.Fatalf("Closed after Close: got=false want=true")
	}
}

func TestActualClazzOfPlainType(t *testing.T) {
	fix := testkit.SingleRoutine()
	r, _ := mustReach(t, fix)
	want := clazzOfFeature(r, r.Universe(), fix.F("f"))
	got := r.ActualClazz(fix.Prog.FeatureType(fix.F("f")), r.Universe())
	if got != want {
		t.Fatalf("ActualClazz: got=%d want=%d", got, want)
	}
}

func TestAbstractCallsPerReceiver(t *testing.T) {
	fix := testkit.AbstractMissing()
	r, _ := mustReach(t, fix)
	found := false
	for _, c := range r.All() {
		calls := r.AbstractCalls(c)
		if len(calls) == 0 {
			continue
		}
		found = true
		if !slices.Contains(calls, fix.F("A.m")) || !slices.Contains(calls, fix.F("A.n")) {
			t.Fatalf("AbstractCalls(%s): got=%v", r.Name(c), calls)
		}
	}
	if !found {
		t.Fatalf("no receiver records abstract calls")
	}
}

func TestAllocSlots(t *testing.T) {
	r := NewRegistry(testkit.SingleRoutine().Prog, Options{})
	a := r.AllocSlots(hir.ExprID(1), 3)
	b := r.AllocSlots(hir.ExprID(2), 2)
	if a != 0 || b != 3 {
		t.Fatalf("bases: got=%d,%d want=0,3", a, b)
	}
	if again := r.AllocSlots(hir.ExprID(1), 3); again != a {
		t.Fatalf("repeated AllocSlots: got=%d want=%d", again, a)
	}
	if got := r.NumSlots(); got != 5 {
		t.Fatalf("NumSlots: got=%d want=5", got)
	}
}

func TestClosedRegistryDoesNotInternErrorClazz(t *testing.T) {
	fix := testkit.SingleRoutine()
	r, _ := mustReach(t, fix)
	n := r.Len()
	if got := r.ErrorClazz(); got.IsValid() {
		t.Fatalf("ErrorClazz after clean Reach: got=%d want=NoClazzID", got)
	}
	if r.Len() != n || !r.Closed() {
		t.Fatalf("ErrorClazz changed the registry: len=%d want=%d closed=%v", r.Len(), n, r.Closed())
	}
}

func TestOpenSelectFieldsPerActualType(t *testing.T) {
	fix := testkit.OpenTuple()
	r, bag := mustReach(t, fix)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	i32, i64 := fix.Prog.FeatureType(fix.Base.I32), fix.Prog.FeatureType(fix.Base.I64)
	tup := r.Lookup(r.Universe(), Request{Feature: fix.F("tup"), Generics: []hir.TypeID{i32, i64}})
	args := r.Args(tup)
	if len(args) != 2 {
		t.Fatalf("args of %s: got=%d want=2", r.Name(tup), len(args))
	}
	for i, want := range []struct {
		name   string
		result ClazzID
	}{
		{"values.0", r.Special(SpecialI32)},
		{"values.1", r.Special(SpecialI64)},
	} {
		if got := r.BaseName(args[i]); got != want.name {
			t.Fatalf("arg %d: got=%q want=%q", i, got, want.name)
		}
		if got := r.ResultClazz(args[i]); got != want.result {
			t.Fatalf("%s result: got=%s want=%s", want.name, r.Name(got), r.Name(want.result))
		}
	}
	main := clazzOfFeature(r, r.Universe(), fix.F("main"))
	call := fix.Prog.Feature(fix.F("main")).Code.Exprs[0].(*hir.Call)
	if got := r.CallInner(main, call); got != args[1] {
		t.Fatalf("select 1: got=%s want=%s", r.Name(got), r.Name(args[1]))
	}
	if !r.IsCalled(args[1]) {
		t.Fatalf("selected field values.1 not marked called")
	}
}

func TestOpenSelectOutOfRange(t *testing.T) {
	_, bag, _ := reach(t, testkit.OpenTupleOutOfRange())
	if got := bag.Count(diag.MonoOpenSelectOutOfRange); got != 1 {
		t.Fatalf("select diagnostics: got=%d want=1: %v", got, bag.Items())
	}
	for _, d := range bag.Items() {
		if d.Code != diag.MonoOpenSelectOutOfRange {
			continue
		}
		if !strings.Contains(d.Message, "Select 2") || !strings.Contains(d.Detail, "has 2 elements") {
			t.Fatalf("unexpected diagnostic: %q / %q", d.Message, d.Detail)
		}
	}
}

func TestDynamicAssignReachesHeirFields(t *testing.T) {
	fix := testkit.RefFieldAssign()
	r, bag := mustReach(t, fix)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	a := clazzOfFeature(r, r.Universe(), fix.F("A"))
	b := clazzOfFeature(r, r.Universe(), fix.F("B"))
	assign := fix.Prog.Feature(fix.F("main")).Code.Exprs[2].(*hir.Assign)
	if !r.IsDynamicAssign(assign, a) || r.IsDynamicAssign(assign, r.AsValue(a)) {
		t.Fatalf("IsDynamicAssign: ref=%v value=%v", r.IsDynamicAssign(assign, a), r.IsDynamicAssign(assign, r.AsValue(a)))
	}
	main := clazzOfFeature(r, r.Universe(), fix.F("main"))
	if got := r.AssignTarget(main, assign); got != a {
		t.Fatalf("static target: got=%s want=%s", r.Name(got), r.Name(a))
	}
	want := []ClazzID{a, b}
	slices.Sort(want)
	if got := r.DispatchHeirs(a); !slices.Equal(got, want) {
		t.Fatalf("dispatch heirs: got=%v want=%v", got, want)
	}
	req := Request{Feature: fix.F("A.x"), Select: hir.NoSelect}
	for _, h := range []ClazzID{a, b} {
		x, ok := r.Peek(h, req)
		if !ok {
			t.Fatalf("field x never looked up in %s", r.Name(h))
		}
		if !r.IsCalled(x) || r.Clazz(x).Outer != h {
			t.Fatalf("x in %s: called=%v outer=%s", r.Name(h), r.IsCalled(x), r.Name(r.Clazz(x).Outer))
		}
	}
	if r.DynamicCalls() != 1 {
		t.Fatalf("dynamic accesses: got=%d want=1", r.DynamicCalls())
	}
}

func TestPreconditionOnBoxedReceiver(t *testing.T) {
	fix := testkit.BoxedPrecondition()
	r, bag := mustReach(t, fix)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	main := clazzOfFeature(r, r.Universe(), fix.F("main"))
	call := fix.Prog.Feature(fix.F("main")).Code.Exprs[0].(*hir.Call)
	target := r.CallTarget(main, call)
	if !r.IsBoxed(target) {
		t.Fatalf("target %s is not boxed", r.Name(target))
	}
	inner, pre := r.CallInner(main, call), r.CallPrecondition(main, call)
	if !pre.IsValid() || pre == inner {
		t.Fatalf("precondition clazz: got=%d inner=%d", pre, inner)
	}
	if got := r.Clazz(pre).Outer; got != target {
		t.Fatalf("precondition outer: got=%s want=%s", r.Name(got), r.Name(target))
	}
	if got := r.Clazz(inner).Outer; got != r.AsValue(target) {
		t.Fatalf("callee outer: got=%s want=%s", r.Name(got), r.Name(r.AsValue(target)))
	}
	if got, ok := r.Peek(target, Request{Feature: fix.F("V.m"), Select: hir.NoSelect, Pre: true}); !ok || got != pre {
		t.Fatalf("Peek with Pre: got=%d ok=%v want=%d", got, ok, pre)
	}
	if !r.IsCalled(pre) {
		t.Fatalf("precondition clazz not called")
	}
}

func TestPreconditionOnValueReceiverIsCallee(t *testing.T) {
	fix := testkit.Contracted()
	r, _ := mustReach(t, fix)
	main := clazzOfFeature(r, r.Universe(), fix.F("main"))
	call := fix.Prog.Feature(fix.F("main")).Code.Exprs[0].(*hir.Call)
	if got, want := r.CallPrecondition(main, call), r.CallInner(main, call); got != want {
		t.Fatalf("precondition clazz: got=%s want=%s", r.Name(got), r.Name(want))
	}
}
