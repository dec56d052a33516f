package testkit

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"airgen/internal/hir"
	"airgen/internal/source"
)

// Fixture is a small validated program with named features. Spans point
// into a virtual source file holding the program text.
type Fixture struct {
	Prog  *hir.Program
	Base  *hir.Base // nil when the fixture declares no base library
	File  source.FileID
	names map[string]hir.FeatureID
}

// F returns the feature registered under name and panics when missing.
func (f *Fixture) F(name string) hir.FeatureID {
	id, ok := f.names[name]
	if !ok {
		panic(fmt.Sprintf("testkit: no feature %q in fixture", name))
	}
	return id
}

type fixtureBuilder struct {
	*hir.Builder
	fix *Fixture
	src string
}

func newFixture(path, src string, base bool) *fixtureBuilder {
	b := hir.NewBuilder()
	fb := &fixtureBuilder{Builder: b, src: src, fix: &Fixture{Prog: b.Program(), names: make(map[string]hir.FeatureID)}}
	fb.fix.File = b.Program().Files.AddVirtual(path, []byte(src))
	if base {
		fb.fix.Base = b.WithBase()
	}
	return fb
}

// at points subsequent declarations at the first occurrence of text.
func (fb *fixtureBuilder) at(text string) *fixtureBuilder {
	i := strings.Index(fb.src, text)
	if i < 0 {
		panic(fmt.Sprintf("testkit: %q not in fixture source", text))
	}
	start, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(err)
	}
	end, err := safecast.Conv[uint32](i + len(text))
	if err != nil {
		panic(err)
	}
	fb.At(source.Span{File: fb.fix.File, Start: start, End: end})
	return fb
}

func (fb *fixtureBuilder) name(n string, id hir.FeatureID) hir.FeatureID {
	fb.fix.names[n] = id
	return id
}

func (fb *fixtureBuilder) done(main hir.FeatureID) *Fixture {
	fb.SetMain(main)
	fb.fix.Prog = fb.MustBuild()
	return fb.fix
}

// SingleRoutine is a program of one constructor f whose body has three statements.
func SingleRoutine() *Fixture {
	const src = "f is\n  f.this\n  f.this\n  f.this\n"
	fb := newFixture("single.fz", src, false)
	u := fb.Program().Universe
	f := fb.at(src).name("f", fb.Constructor(u, "f"))
	fb.Code(f, fb.Current(), fb.Current(), fb.Current())
	return fb.done(f)
}

// ChoiceRefUnit declares `c : choice (ref Any) unit` and tags a unit into it.
func ChoiceRefUnit() *Fixture {
	const src = "c : choice (ref Any) unit\nmain is\n  x c := unit\n"
	fb := newFixture("choice.fz", src, true)
	u := fb.Program().Universe
	bs := fb.fix.Base
	c := fb.at("c : choice (ref Any) unit").name("c", fb.Feature(u, "c", hir.FeatureChoice))
	fb.Choices(c, fb.RefT(bs.Any), fb.T(bs.Unit))
	main := fb.at("main is\n  x c := unit").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Tag(fb.Call(nil, bs.Unit), fb.T(c)))
	return fb.done(main)
}

// RefDispatch declares ref A with m, its heir B redefining m, and a call
// of m on a value of static type A.
func RefDispatch() *Fixture {
	const src = `A ref is
  m is
B ref : A is
  redef m is
pick A => intrinsic
main is
  A
  B
  pick.m
`
	fb := newFixture("dispatch.fz", src, false)
	u := fb.Program().Universe
	a := fb.at("A ref is\n  m is").name("A", fb.Constructor(u, "A", hir.Ref()))
	am := fb.at("m is").name("A.m", fb.Routine(a, "m", hir.NoTypeID))
	b := fb.at("B ref : A is\n  redef m is").name("B", fb.Constructor(u, "B", hir.Ref()))
	fb.Inherit(b, nil, a, nil)
	fb.at("redef m is").name("B.m", fb.Routine(b, "m", hir.NoTypeID, hir.Redefines(am)))
	pick := fb.at("pick A => intrinsic").name("pick", fb.Feature(u, "pick", hir.FeatureIntrinsic, hir.Result(fb.T(a))))
	main := fb.at("main is\n  A\n  B\n  pick.m").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, a), fb.Call(nil, b), fb.Call(fb.Call(nil, pick), am))
	return fb.done(main)
}

// FoldableCtor calls `point 3 4` where point has only argument fields.
func FoldableCtor() *Fixture {
	const src = "point(x, y i32) is\nmain is\n  point 3 4\n"
	fb := newFixture("point.fz", src, true)
	u := fb.Program().Universe
	bs := fb.fix.Base
	i32 := fb.T(bs.I32)
	p := fb.at("point(x, y i32) is").name("point", fb.Constructor(u, "point"))
	fb.name("point.x", fb.Arg(p, "x", i32))
	fb.name("point.y", fb.Arg(p, "y", i32))
	main := fb.at("main is\n  point 3 4").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, p, fb.Int(i32, 4, 3), fb.Int(i32, 4, 4)))
	return fb.done(main)
}

// CyclicValueField declares a value type V with a field of type V.
func CyclicValueField() *Fixture {
	const src = "V is\n  v V := V\nmain is\n  V\n"
	fb := newFixture("cyclic.fz", src, false)
	u := fb.Program().Universe
	v := fb.at("V is\n  v V := V").name("V", fb.Constructor(u, "V"))
	fb.at("v V").name("V.v", fb.Field(v, "v", fb.T(v)))
	main := fb.at("main is\n  V").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, v))
	return fb.done(main)
}

// RecursiveValue declares value a with an inner b inheriting a, so b.b
// would contain itself.
func RecursiveValue() *Fixture {
	const src = "a is\n  b : a is\n  b\n"
	fb := newFixture("recursive.fz", src, false)
	u := fb.Program().Universe
	a := fb.at(src).name("a", fb.Constructor(u, "a"))
	b := fb.at("b : a is").name("a.b", fb.Constructor(a, "b"))
	fb.Inherit(b, nil, a, nil)
	fb.at(src)
	fb.Code(a, fb.Call(fb.Current(), b))
	return fb.done(a)
}

// AbstractMissing declares ref A with abstract m and n, an heir B that
// implements neither, and dynamic calls of both.
func AbstractMissing() *Fixture {
	const src = `A ref is
  m unit => abstract
  n unit => abstract
B ref : A is
pick A => intrinsic
main is
  B
  pick.m
  pick.n
`
	fb := newFixture("abstract.fz", src, false)
	u := fb.Program().Universe
	a := fb.at("A ref is\n  m unit => abstract\n  n unit => abstract").name("A", fb.Constructor(u, "A", hir.Ref()))
	m := fb.at("m unit => abstract").name("A.m", fb.Feature(a, "m", hir.FeatureAbstract))
	n := fb.at("n unit => abstract").name("A.n", fb.Feature(a, "n", hir.FeatureAbstract))
	b := fb.at("B ref : A is").name("B", fb.Constructor(u, "B", hir.Ref()))
	fb.Inherit(b, nil, a, nil)
	pick := fb.at("pick A => intrinsic").name("pick", fb.Feature(u, "pick", hir.FeatureIntrinsic, hir.Result(fb.T(a))))
	main := fb.at("main is\n  B\n  pick.m\n  pick.n").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, b), fb.Call(fb.Call(nil, pick), m), fb.Call(fb.Call(nil, pick), n))
	return fb.done(main)
}

// MutualValueFields declares value types V and W holding each other, and
// X holding a V.
func MutualValueFields() *Fixture {
	const src = "V is\n  w W := W\nW is\n  v V := V\nX is\n  x V := V\nmain is\n  X\n"
	fb := newFixture("mutual.fz", src, false)
	u := fb.Program().Universe
	v := fb.at("V is\n  w W := W").name("V", fb.Constructor(u, "V"))
	w := fb.at("W is\n  v V := V").name("W", fb.Constructor(u, "W"))
	x := fb.at("X is\n  x V := V").name("X", fb.Constructor(u, "X"))
	fb.at("w W").name("V.w", fb.Field(v, "w", fb.T(w)))
	fb.at("v V").name("W.v", fb.Field(w, "v", fb.T(v)))
	fb.at("x V").name("X.x", fb.Field(x, "x", fb.T(v)))
	main := fb.at("main is\n  X").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, x), fb.Call(nil, v), fb.Call(nil, w))
	return fb.done(main)
}

// Contracted declares f with one pre- and one postcondition reading its
// argument, and calls it once.
func Contracted() *Fixture {
	const src = "f(x i32) is\n  pre x\n  post x\nmain is\n  f 7\n"
	fb := newFixture("contract.fz", src, true)
	u := fb.Program().Universe
	i32 := fb.T(fb.fix.Base.I32)
	f := fb.at("f(x i32) is\n  pre x\n  post x").name("f", fb.Constructor(u, "f"))
	x := fb.name("f.x", fb.Arg(f, "x", i32))
	fb.at("pre x")
	fb.Pre(f, fb.Call(fb.Current(), x))
	fb.at("post x")
	fb.Post(f, fb.Call(fb.Current(), x))
	main := fb.at("main is\n  f 7").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, f, fb.Int(i32, 4, 7)))
	return fb.done(main)
}

// OuterValueCall declares value V with routines m and g, where g calls m on
// its outer instance through the outer ref.
func OuterValueCall() *Fixture {
	const src = "V is\n  m is\n  g is\n    V.this.m\nmain is\n  V.g\n"
	fb := newFixture("outer.fz", src, false)
	u := fb.Program().Universe
	v := fb.at("V is\n  m is\n  g is\n    V.this.m").name("V", fb.Constructor(u, "V"))
	m := fb.at("m is").name("V.m", fb.Routine(v, "m", hir.NoTypeID))
	g := fb.at("g is\n    V.this.m").name("V.g", fb.Routine(v, "g", hir.NoTypeID))
	fb.at("V.this.m")
	fb.Code(g, fb.Call(fb.OuterCall(g), m))
	main := fb.at("main is\n  V.g").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(fb.Call(nil, v), g))
	return fb.done(main)
}

// RefFieldAssign declares ref A with field x, its heir B, and an assignment
// to x on a value of static type A.
func RefFieldAssign() *Fixture {
	const src = `A ref is
  x i32 := 0
B ref : A is
pick A => intrinsic
main is
  A
  B
  pick.x := 1
`
	fb := newFixture("assign.fz", src, true)
	u := fb.Program().Universe
	i32 := fb.T(fb.fix.Base.I32)
	a := fb.at("A ref is\n  x i32 := 0").name("A", fb.Constructor(u, "A", hir.Ref()))
	x := fb.at("x i32").name("A.x", fb.Field(a, "x", i32))
	b := fb.at("B ref : A is").name("B", fb.Constructor(u, "B", hir.Ref()))
	fb.Inherit(b, nil, a, nil)
	pick := fb.at("pick A => intrinsic").name("pick", fb.Feature(u, "pick", hir.FeatureIntrinsic, hir.Result(fb.T(a))))
	main := fb.at("main is\n  A\n  B\n  pick.x := 1").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(nil, a), fb.Call(nil, b), fb.Assign(fb.Call(nil, pick), x, fb.Int(i32, 4, 1)))
	return fb.done(main)
}

// BoxedPrecondition calls a routine with a precondition on a boxed value.
func BoxedPrecondition() *Fixture {
	const src = "V is\n  m(x i32) is\n    pre x\nmain is\n  (ref V).m 3\n"
	fb := newFixture("boxpre.fz", src, true)
	u := fb.Program().Universe
	i32 := fb.T(fb.fix.Base.I32)
	v := fb.at("V is\n  m(x i32) is\n    pre x").name("V", fb.Constructor(u, "V"))
	m := fb.at("m(x i32) is\n    pre x").name("V.m", fb.Routine(v, "m", hir.NoTypeID))
	x := fb.name("V.m.x", fb.Arg(m, "x", i32))
	fb.at("pre x")
	fb.Pre(m, fb.Call(fb.Current(), x))
	main := fb.at("main is\n  (ref V).m 3").name("main", fb.Constructor(u, "main"))
	fb.Code(main, fb.Call(fb.Box(fb.Call(nil, v), fb.RefT(v)), m, fb.Int(i32, 4, 3)))
	return fb.done(main)
}

// BoxTagMatch boxes V, tags the ref into `c : choice (ref Any) unit` and
// matches on the result.
func BoxTagMatch() *Fixture {
	const src = `c : choice (ref Any) unit
V is
main is
  match c (ref V)
    unit =>
    ref Any =>
`
	fb := newFixture("match.fz", src, true)
	u := fb.Program().Universe
	bs := fb.fix.Base
	c := fb.at("c : choice (ref Any) unit").name("c", fb.Feature(u, "c", hir.FeatureChoice))
	fb.Choices(c, fb.RefT(bs.Any), fb.T(bs.Unit))
	v := fb.at("V is").name("V", fb.Constructor(u, "V"))
	main := fb.at("main is\n  match c (ref V)\n    unit =>\n    ref Any =>").name("main", fb.Constructor(u, "main"))
	fb.at("c (ref V)")
	subject := fb.Tag(fb.Box(fb.Call(nil, v), fb.RefT(bs.Any)), fb.T(c))
	fb.at("unit =>")
	unitCase := fb.CaseTypes([]hir.TypeID{fb.T(bs.Unit)})
	fb.at("ref Any =>")
	refCase := fb.CaseTypes([]hir.TypeID{fb.RefT(bs.Any)})
	fb.at("match c (ref V)\n    unit =>\n    ref Any =>")
	fb.Code(main, fb.Match(subject, fb.T(bs.Unit), unitCase, refCase))
	return fb.done(main)
}

// OpenTuple declares tup with an open type parameter and reads the second
// of its argument fields.
func OpenTuple() *Fixture {
	return openTuple(1)
}

// OpenTupleOutOfRange selects past the end of tup's actual type list.
func OpenTupleOutOfRange() *Fixture {
	return openTuple(2)
}

func openTuple(sel int) *Fixture {
	const src = "tup(T type...)(values T...) is\nmain is\n  (tup i32 i64 3 4).values.N\n"
	fb := newFixture("tup.fz", src, true)
	u := fb.Program().Universe
	bs := fb.fix.Base
	i32, i64 := fb.T(bs.I32), fb.T(bs.I64)
	tup := fb.at("tup(T type...)(values T...) is").name("tup", fb.Constructor(u, "tup"))
	tp := fb.at("T type...").name("tup.T", fb.OpenTypeParam(tup, "T"))
	values := fb.at("values T...").name("tup.values", fb.Arg(tup, "values", fb.P(tp)))
	main := fb.at("main is\n  (tup i32 i64 3 4).values.N").name("main", fb.Constructor(u, "main"))
	fb.at("(tup i32 i64 3 4).values.N")
	t := fb.CallG(nil, tup, []hir.TypeID{i32, i64}, fb.Int(i32, 4, 3), fb.Int(i64, 8, 4))
	fb.Code(main, fb.Select(t, values, sel))
	return fb.done(main)
}
