package layout_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/testkit"
)

func reachFixture(t *testing.T, fix *testkit.Fixture) (*mono.Registry, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(0)
	r := mono.NewRegistry(fix.Prog, mono.Options{Sink: diag.NewSink(diag.BagReporter{Bag: bag})})
	if err := r.Reach(context.Background(), fix.Prog.Main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	return r, bag
}

func clazzOf(t *testing.T, r *mono.Registry, f hir.FeatureID, ref bool) mono.ClazzID {
	t.Helper()
	for _, id := range r.All() {
		if c := r.Clazz(id); c.Feature == f && c.Ref == ref {
			return id
		}
	}
	t.Fatalf("no clazz for feature %s (ref=%v)", r.Program().QualifiedName(f), ref)
	return mono.NoClazzID
}

func TestChoiceOfRefAndUnit(t *testing.T) {
	fix := testkit.ChoiceRefUnit()
	r, bag := reachFixture(t, fix)
	e := layout.New(r)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	c := clazzOf(t, r, fix.F("c"), false)
	if got := len(r.Choices(c)); got != 2 {
		t.Fatalf("choices: got=%d want=2", got)
	}
	if !e.IsChoiceWithRefs(c) {
		t.Fatalf("IsChoiceWithRefs: got=false want=true")
	}
	if !e.IsChoiceOfOnlyRefs(c) {
		t.Fatalf("IsChoiceOfOnlyRefs: got=false want=true")
	}
	unit := clazzOf(t, r, fix.Base.Unit, false)
	if !e.IsUnitType(unit) {
		t.Fatalf("IsUnitType(unit): got=false want=true")
	}
	if e.IsUnitType(c) {
		t.Fatalf("IsUnitType(choice): got=true want=false")
	}
	i32 := r.Special(mono.SpecialI32)
	if e.IsUnitType(i32) {
		t.Fatalf("IsUnitType(i32): got=true want=false")
	}
}

func TestCyclicValueFieldReportedOnce(t *testing.T) {
	fix := testkit.CyclicValueField()
	r, bag := reachFixture(t, fix)
	e := layout.New(r)

	err := e.Run(context.Background())
	var le *layout.Error
	if !errors.As(err, &le) {
		t.Fatalf("Run: got=%v want *layout.Error", err)
	}
	if le.Kind != layout.ErrCyclicNesting || len(le.Cycle) != 1 {
		t.Fatalf("error: got kind=%v cycle=%d want cyclic nesting of 1", le.Kind, len(le.Cycle))
	}
	if got := bag.Count(diag.LayoutCyclicNesting); got != 1 {
		t.Fatalf("cyclic nesting diagnostics: got=%d want=1", got)
	}
	d := bag.Items()[0]
	if d.Message != "Cyclic field nesting is not permitted" {
		t.Fatalf("message: got=%q", d.Message)
	}
	if !strings.Contains(d.Detail, "cyclic.fz:2:3: field V.v") {
		t.Fatalf("detail does not name the field: %q", d.Detail)
	}
	if !strings.HasSuffix(d.Detail, "by adding 'ref' before the type.") {
		t.Fatalf("detail lacks the hint: %q", d.Detail)
	}

	// laying out again terminates and stays silent
	v := clazzOf(t, r, fix.F("V"), false)
	if got := e.LayoutAndHandleCycle(v); got != nil {
		t.Fatalf("second layout reported again: %v", got)
	}
	if e.IsUnitType(v) {
		t.Fatalf("IsUnitType(V): got=true want=false")
	}
	if got := bag.Count(diag.LayoutCyclicNesting); got != 1 {
		t.Fatalf("after relayout: got=%d want=1", got)
	}
}

func TestMutualCycleExcludesOuterHolder(t *testing.T) {
	fix := testkit.MutualValueFields()
	r, bag := reachFixture(t, fix)
	e := layout.New(r)
	if err := e.Run(context.Background()); err == nil {
		t.Fatalf("Run: expected a cycle error")
	}
	if got := bag.Count(diag.LayoutCyclicNesting); got != 1 {
		t.Fatalf("cyclic nesting diagnostics: got=%d want=1", got)
	}
	errs := e.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors: got=%d want=1", len(errs))
	}
	names := slices.Clone(errs[0].Names)
	slices.Sort(names)
	if want := []string{"V.w", "W.v"}; !slices.Equal(names, want) {
		t.Fatalf("cycle: got=%v want=%v", names, want)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	r, _ := reachFixture(t, testkit.SingleRoutine())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := layout.New(r).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got=%v want context.Canceled", err)
	}
}
