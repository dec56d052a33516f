package progdesc_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"airgen/internal/diag"
	"airgen/internal/fuir"
	"airgen/internal/hir"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/progdesc"
	"airgen/internal/testkit"
)

func load(t *testing.T, name string) *hir.Program {
	t.Helper()
	bag := diag.NewBag(0)
	p, err := progdesc.Load(filepath.Join("testdata", name), diag.NewSink(diag.BagReporter{Bag: bag}))
	if err != nil {
		t.Fatalf("Load %s: %v (%+v)", name, err, bag.Items())
	}
	if err := testkit.CheckSpanInvariants(p); err != nil {
		t.Fatalf("spans: %v", err)
	}
	return p
}

func TestDispatchDescription(t *testing.T) {
	p := load(t, "dispatch.yaml")
	a, b := p.Resolve("A"), p.Resolve("B")
	am, bm := p.Resolve("A.m"), p.Resolve("B.m")
	if !a.IsValid() || !b.IsValid() || !am.IsValid() || !bm.IsValid() {
		t.Fatalf("features: A=%d B=%d A.m=%d B.m=%d", a, b, am, bm)
	}
	if !p.Feature(a).Ref || !p.Feature(a).Constructor {
		t.Fatalf("A: got ref=%v ctor=%v want both", p.Feature(a).Ref, p.Feature(a).Constructor)
	}
	if !p.InheritsFrom(b, a) {
		t.Fatalf("B does not inherit A")
	}
	if !slices.Equal(p.Feature(bm).Redefines, []hir.FeatureID{am}) {
		t.Fatalf("B.m redefines: got=%v want=[%d]", p.Feature(bm).Redefines, am)
	}
	if got := p.Feature(p.Resolve("pick")).Kind; got != hir.FeatureIntrinsic {
		t.Fatalf("pick kind: got=%v want=intrinsic", got)
	}

	code := p.Feature(p.Main).Code.Exprs
	if len(code) != 3 {
		t.Fatalf("main statements: got=%d want=3", len(code))
	}
	c, ok := code[2].(*hir.Call)
	if !ok || c.Callee != am || !c.Dynamic {
		t.Fatalf("third statement: got=%s want dynamic call of A.m", hir.ExprString(p, code[2]))
	}
	if tc, ok := c.Target.(*hir.Call); !ok || tc.Callee != p.Resolve("pick") || tc.Target != nil {
		t.Fatalf("target: got=%s want pick", hir.ExprString(p, c.Target))
	}
}

func TestPointDescriptionFolds(t *testing.T) {
	p := load(t, "point.yaml")
	ctx := context.Background()
	bag := diag.NewBag(0)
	r := mono.NewRegistry(p, mono.Options{Sink: diag.NewSink(diag.BagReporter{Bag: bag})})
	if err := r.Reach(ctx, p.Main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	lay := layout.New(r)
	if err := lay.Run(ctx); err != nil {
		t.Fatalf("layout: %v", err)
	}
	g, err := fuir.NewGenerated(r, lay, p.Main, fuir.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Freeze(ctx); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	s := g.ClazzCode(g.MainClazz())
	if g.CodeAt(s) != fuir.ExprConst || g.WithinCode(s+1) {
		t.Fatalf("main code: got %v first and within=%v after, want a single Const", g.CodeAt(s), g.WithinCode(s+1))
	}
	if got, want := g.ConstData(s), []byte{3, 0, 0, 0, 4, 0, 0, 0}; !slices.Equal(got, want) {
		t.Fatalf("const data: got=%x want=%x", got, want)
	}
}

func TestShapesDescription(t *testing.T) {
	p := load(t, "shapes.yaml")

	box := p.Resolve("box")
	if n := len(p.Feature(box).TypeParams); n != 1 {
		t.Fatalf("box type params: got=%d want=1", n)
	}
	get := p.Feature(p.Resolve("box.get"))
	if !get.ResultField.IsValid() {
		t.Fatalf("box.get has no result field")
	}
	as, ok := get.Code.Exprs[0].(*hir.Assign)
	if !ok || as.Field != get.ResultField {
		t.Fatalf("box.get code: got=%s want assignment to result", hir.ExprString(p, get.Code.Exprs[0]))
	}
	// v lives in box, so it is read through get's outer ref
	v, ok := as.Value.(*hir.Call)
	if !ok || v.Callee != p.Resolve("box.v") {
		t.Fatalf("value: got=%s want box.v", hir.ExprString(p, as.Value))
	}
	if or, ok := v.Target.(*hir.Call); !ok || !p.Feature(or.Callee).IsOuterRef() {
		t.Fatalf("value target: got=%s want outer ref", hir.ExprString(p, v.Target))
	}

	opt := p.Feature(p.Resolve("opt"))
	if !opt.IsChoice() || len(opt.Choices) != 2 {
		t.Fatalf("opt: got kind=%v choices=%d", opt.Kind, len(opt.Choices))
	}
	check := p.Feature(p.Resolve("check"))
	if len(check.Pre) != 1 {
		t.Fatalf("check pre: got=%d want=1", len(check.Pre))
	}
	m, ok := check.Code.Exprs[0].(*hir.Match)
	if !ok || len(m.Cases) != 2 {
		t.Fatalf("check code: got=%s", hir.ExprString(p, check.Code.Exprs[0]))
	}
	if m.Cases[0].Field != p.Resolve("check.hit") || len(m.Cases[1].Types) != 1 {
		t.Fatalf("cases: got field=%d types=%v", m.Cases[0].Field, m.Cases[1].Types)
	}

	main := p.Feature(p.Main).Code.Exprs
	if c, ok := main[2].(*hir.Constant); !ok || string(c.Data) != "hello" {
		t.Fatalf("string constant: got=%s", hir.ExprString(p, main[2]))
	}
}

func TestReportsProblems(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"yaml", "main: [", diag.DescSyntax},
		{"unknown top key", "main: f\nfoo: 1\n", diag.DescSyntax},
		{"unknown feature key", "main: f\nfeatures:\n  - name: f\n    colour: red\n", diag.DescSyntax},
		{"kind", "main: f\nfeatures:\n  - name: f\n    kind: gizmo\n", diag.DescBadKind},
		{"duplicate", "main: f\nfeatures:\n  - name: f\n  - name: f\n", diag.DescDuplicateName},
		{"unknown callee", "main: f\nfeatures:\n  - name: f\n    code: [g]\n", diag.DescUnknownName},
		{"unknown type", "main: f\nfeatures:\n  - name: f\n    args:\n      - {name: x, type: nope}\n", diag.DescUnknownName},
		{"no main", "features:\n  - name: f\n", diag.DescUnknownName},
		{"int without base", "main: f\nfeatures:\n  - name: f\n    code:\n      - int: 1\n", diag.DescSyntax},
		{"two heads", "main: f\nfeatures:\n  - name: f\n    code:\n      - {call: f, box: f}\n", diag.DescSyntax},
		{"open param not last", "main: f\nfeatures:\n  - name: f\n    type_params: [A..., B]\n", diag.DescSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diag.NewBag(0)
			_, err := progdesc.Parse([]byte(tt.src), tt.name+".yaml", diag.NewSink(diag.BagReporter{Bag: bag}))
			if !errors.Is(err, progdesc.ErrInvalid) {
				t.Fatalf("err: got=%v want ErrInvalid", err)
			}
			if bag.Count(tt.code) == 0 {
				t.Fatalf("diagnostics: got=%+v want code %v", bag.Items(), tt.code)
			}
		})
	}
}

func TestSyntaxErrorPointsAtLine(t *testing.T) {
	bag := diag.NewBag(0)
	src := "main: f\nfeatures:\n  - name: f\n    args: {\n"
	_, err := progdesc.Parse([]byte(src), "bad.yaml", diag.NewSink(diag.BagReporter{Bag: bag}))
	if err == nil || bag.Len() != 1 {
		t.Fatalf("got err=%v diags=%d want one diagnostic", err, bag.Len())
	}
	d := bag.Items()[0]
	if d.Primary.Start == 0 {
		t.Fatalf("span: got=%v want a position past line 1", d.Primary)
	}
}
