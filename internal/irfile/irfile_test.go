package irfile_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"airgen/internal/diag"
	"airgen/internal/fuir"
	"airgen/internal/irfile"
	"airgen/internal/layout"
	"airgen/internal/mono"
	"airgen/internal/testkit"
)

func generate(t *testing.T, fix *testkit.Fixture) *fuir.Generated {
	t.Helper()
	ctx := context.Background()
	r := mono.NewRegistry(fix.Prog, mono.Options{Sink: diag.NewSink(diag.NopReporter{})})
	if err := r.Reach(ctx, fix.Prog.Main); err != nil {
		t.Fatalf("Reach: %v", err)
	}
	lay := layout.New(r)
	if err := lay.Run(ctx); err != nil {
		t.Fatalf("layout: %v", err)
	}
	g, err := fuir.NewGenerated(r, lay, fix.Prog.Main, fuir.Options{Comments: true})
	if err != nil {
		t.Fatalf("NewGenerated: %v", err)
	}
	if err := g.Freeze(ctx); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	return g
}

func fixtures() map[string]func() *testkit.Fixture {
	return map[string]func() *testkit.Fixture{
		"single":   testkit.SingleRoutine,
		"choice":   testkit.ChoiceRefUnit,
		"dispatch": testkit.RefDispatch,
		"point":    testkit.FoldableCtor,
		"contract": testkit.Contracted,
		"outer":    testkit.OuterValueCall,
		"assign":   testkit.RefFieldAssign,
		"boxpre":   testkit.BoxedPrecondition,
		"match":    testkit.BoxTagMatch,
	}
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	for name, mk := range fixtures() {
		t.Run(name, func(t *testing.T) {
			g := generate(t, mk())
			first, err := irfile.Marshal(ctx, g)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			f, err := irfile.Decode(first)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			lib := irfile.NewLibrary(f)
			second, err := irfile.Marshal(ctx, lib)
			if err != nil {
				t.Fatalf("Marshal library: %v", err)
			}
			if !bytes.Equal(first, second) {
				t.Fatalf("re-serialization differs: got=%d bytes want=%d bytes", len(second), len(first))
			}

			var a, b bytes.Buffer
			if err := fuir.Print(&a, g, fuir.PrintOptions{All: true, Positions: true}); err != nil {
				t.Fatal(err)
			}
			if err := fuir.Print(&b, lib, fuir.PrintOptions{All: true, Positions: true}); err != nil {
				t.Fatal(err)
			}
			if a.String() != b.String() {
				t.Fatalf("listings differ:\n%s\n---\n%s", a.String(), b.String())
			}
			if err := fuir.Validate(lib); err != nil {
				t.Fatalf("Validate library: %v", err)
			}
		})
	}
}

func TestBuildIDIsDeterministic(t *testing.T) {
	ctx := context.Background()
	build := func() string {
		f, err := irfile.FromIR(ctx, generate(t, testkit.RefDispatch()))
		if err != nil {
			t.Fatalf("FromIR: %v", err)
		}
		if _, err := irfile.Encode(f); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return f.BuildID
	}
	first, second := build(), build()
	if first == "" || first != second {
		t.Fatalf("build ids: got=%q and %q", first, second)
	}
	other, err := irfile.FromIR(ctx, generate(t, testkit.SingleRoutine()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irfile.Encode(other); err != nil {
		t.Fatal(err)
	}
	if other.BuildID == first {
		t.Fatalf("different programs share build id %s", first)
	}
}

func TestLibraryKeepsDispatchTable(t *testing.T) {
	ctx := context.Background()
	data, err := irfile.Marshal(ctx, generate(t, testkit.RefDispatch()))
	if err != nil {
		t.Fatal(err)
	}
	f, err := irfile.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	lib := irfile.NewLibrary(f)
	var dyn []fuir.SiteID
	for s := lib.FirstSite(); s < lib.SiteEnd(); s++ {
		if lib.CodeAt(s) == fuir.ExprCall && lib.AccessIsDynamic(s) {
			dyn = append(dyn, s)
		}
	}
	if len(dyn) != 1 {
		t.Fatalf("dynamic calls: got=%d want=1", len(dyn))
	}
	if got := len(lib.AccessedClazzes(dyn[0])); got != 4 {
		t.Fatalf("dispatch entries: got=%d want=4", got)
	}
	if got := lib.ClazzAsString(lib.MainClazz()); got != "main" {
		t.Fatalf("main: got=%q want=%q", got, "main")
	}
	if got := lib.SpecialClazz(mono.SpecialUniverse); got != lib.UniverseClazz() {
		t.Fatalf("universe special: got=%d want=%d", got, lib.UniverseClazz())
	}
}

func reload(t *testing.T, g *fuir.Generated) *irfile.Library {
	t.Helper()
	data, err := irfile.Marshal(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	f, err := irfile.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	return irfile.NewLibrary(f)
}

func TestLibraryKeepsMatchTagAndBox(t *testing.T) {
	g := generate(t, testkit.BoxTagMatch())
	lib := reload(t, g)
	var match, tag, box int
	for s := lib.FirstSite(); s < lib.SiteEnd(); s++ {
		if !lib.WithinCode(s) {
			continue
		}
		switch lib.CodeAt(s) {
		case fuir.ExprMatch:
			match++
			if got := lib.MatchCaseCount(s); got != 2 {
				t.Fatalf("cases: got=%d want=2", got)
			}
			for cix := range 2 {
				if got, want := lib.MatchCaseTags(s, cix), g.MatchCaseTags(s, cix); !slices.Equal(got, want) {
					t.Fatalf("case %d tags: got=%v want=%v", cix, got, want)
				}
			}
			if !slices.Equal(lib.MatchCaseTags(s, 0), []int{1}) || !slices.Equal(lib.MatchCaseTags(s, 1), []int{0}) {
				t.Fatalf("case tags: got=%v %v want=[1] [0]", lib.MatchCaseTags(s, 0), lib.MatchCaseTags(s, 1))
			}
			if got := lib.MatchStaticSubject(s); got != g.MatchStaticSubject(s) {
				t.Fatalf("subject: got=%d want=%d", got, g.MatchStaticSubject(s))
			}
		case fuir.ExprTag:
			tag++
			if lib.TagNewClazz(s) != g.TagNewClazz(s) || lib.TagValueClazz(s) != g.TagValueClazz(s) || lib.TagTagNum(s) != g.TagTagNum(s) {
				t.Fatalf("tag site %d differs", s)
			}
		case fuir.ExprBox:
			box++
			if lib.BoxValueClazz(s) != g.BoxValueClazz(s) || lib.BoxResultClazz(s) != g.BoxResultClazz(s) {
				t.Fatalf("box site %d differs", s)
			}
			if !lib.ClazzIsRef(lib.BoxResultClazz(s)) {
				t.Fatalf("box result %s is not a ref", lib.ClazzAsString(lib.BoxResultClazz(s)))
			}
		}
	}
	if match != 1 || tag != 1 || box != 1 {
		t.Fatalf("sites: got match=%d tag=%d box=%d want 1 each", match, tag, box)
	}
}

func TestLibraryKeepsDynamicAssignAndPrecondition(t *testing.T) {
	g := generate(t, testkit.RefFieldAssign())
	lib := reload(t, g)
	var dyn []fuir.SiteID
	for s := lib.FirstSite(); s < lib.SiteEnd(); s++ {
		if lib.WithinCode(s) && lib.CodeAt(s) == fuir.ExprAssign && lib.AccessIsDynamic(s) {
			dyn = append(dyn, s)
		}
	}
	if len(dyn) != 1 {
		t.Fatalf("dynamic assignments: got=%d want=1", len(dyn))
	}
	if got, want := lib.AccessedClazzes(dyn[0]), g.AccessedClazzes(dyn[0]); len(got) != 4 || !slices.Equal(got, want) {
		t.Fatalf("assignment table: got=%v want=%v", got, want)
	}

	g = generate(t, testkit.BoxedPrecondition())
	lib = reload(t, g)
	found := false
	for s := lib.FirstSite(); s < lib.SiteEnd(); s++ {
		if !lib.WithinCode(s) || lib.CodeAt(s) != fuir.ExprCall {
			continue
		}
		if got, want := lib.AccessedPreconditionClazz(s), g.AccessedPreconditionClazz(s); got != want {
			t.Fatalf("site %d precondition: got=%d want=%d", s, got, want)
		}
		if pre := lib.AccessedPreconditionClazz(s); pre.IsValid() && pre != lib.AccessedClazz(s) {
			found = true
		}
	}
	if !found {
		t.Fatalf("no call with a separate precondition clazz")
	}
}

func TestDecodeRejects(t *testing.T) {
	if _, err := irfile.Decode([]byte("not msgpack at all")); !errors.Is(err, irfile.ErrBadMagic) {
		t.Fatalf("garbage: got=%v want ErrBadMagic", err)
	}

	data, err := msgpack.Marshal(&irfile.File{Magic: irfile.Magic, Schema: irfile.SchemaVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irfile.Decode(data); !errors.Is(err, irfile.ErrSchema) {
		t.Fatalf("schema: got=%v want ErrSchema", err)
	}

	f, err := irfile.FromIR(context.Background(), generate(t, testkit.SingleRoutine()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irfile.Encode(f); err != nil {
		t.Fatal(err)
	}
	f.Clazzes[0].Name = "tampered"
	data, err = msgpack.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	_, err = irfile.Decode(data)
	if !errors.Is(err, irfile.ErrCorrupt) {
		t.Fatalf("tampered: got=%v want ErrCorrupt", err)
	}
	if got := irfile.DiagCode(err); got != diag.SerialCorrupt {
		t.Fatalf("DiagCode: got=%v want=%v", got, diag.SerialCorrupt)
	}
}

func TestWriteAndLoad(t *testing.T) {
	ctx := context.Background()
	g := generate(t, testkit.FoldableCtor())
	f, err := irfile.FromIR(ctx, g)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out", "point.air")
	if err := irfile.Write(path, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("files after write: got=%d want=1 (temp file left behind?)", len(entries))
	}
	lib, err := irfile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	code := lib.ClazzCode(lib.MainClazz())
	var kinds []fuir.ExprKind
	for s := code; lib.WithinCode(s); s++ {
		kinds = append(kinds, lib.CodeAt(s))
	}
	want := []fuir.ExprKind{fuir.ExprComment, fuir.ExprConst}
	if !slices.Equal(kinds, want) {
		t.Fatalf("main code: got=%v want=%v", kinds, want)
	}
	if got := lib.ConstData(code + 1); !bytes.Equal(got, []byte{3, 0, 0, 0, 4, 0, 0, 0}) {
		t.Fatalf("const data: got=%x", got)
	}
	if lib.BuildID() != f.BuildID {
		t.Fatalf("build id: got=%s want=%s", lib.BuildID(), f.BuildID)
	}
}

func TestFromIRRequiresFrozen(t *testing.T) {
	ctx := context.Background()
	fix := testkit.SingleRoutine()
	r := mono.NewRegistry(fix.Prog, mono.Options{Sink: diag.NewSink(diag.NopReporter{})})
	if err := r.Reach(ctx, fix.Prog.Main); err != nil {
		t.Fatal(err)
	}
	g, err := fuir.NewGenerated(r, layout.New(r), fix.Prog.Main, fuir.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irfile.FromIR(ctx, g); err == nil {
		t.Fatalf("FromIR on an open IR: got=nil want error")
	}
}
