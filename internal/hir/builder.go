package hir

import (
	"encoding/binary"
	"fmt"
	"math"

	"airgen/internal/source"
)

// Builder assembles a Program. It is used by the description loader and by tests.
type Builder struct {
	p   *Program
	pos source.Span
}

func NewBuilder() *Builder {
	return &Builder{p: NewProgram()}
}

// Program returns the program under construction.
func (b *Builder) Program() *Program {
	return b.p
}

// Build validates and returns the program.
func (b *Builder) Build() (*Program, error) {
	if err := b.p.Validate(); err != nil {
		return nil, err
	}
	return b.p, nil
}

// At sets the span attached to subsequently created features and expressions.
func (b *Builder) At(sp source.Span) *Builder {
	b.pos = sp
	return b
}

// FeatureOption customizes a feature while it is declared.
type FeatureOption func(*Feature)

func Ref() FeatureOption         { return func(f *Feature) { f.Ref = true } }
func Constructor() FeatureOption { return func(f *Feature) { f.Constructor = true } }
func Fixed() FeatureOption       { return func(f *Feature) { f.Fixed = true } }
func Primitive() FeatureOption   { return func(f *Feature) { f.Primitive = true } }
func Result(t TypeID) FeatureOption {
	return func(f *Feature) { f.Result = t }
}
func Span(sp source.Span) FeatureOption {
	return func(f *Feature) { f.Span = sp }
}
func Redefines(ids ...FeatureID) FeatureOption {
	return func(f *Feature) { f.Redefines = append(f.Redefines, ids...) }
}

// Feature declares a new feature inside outer.
func (b *Builder) Feature(outer FeatureID, name string, kind FeatureKind, opts ...FeatureOption) FeatureID {
	f := Feature{
		Name:  b.p.Strings.Intern(name),
		Kind:  kind,
		Outer: outer,
		Span:  b.pos,
	}
	for _, o := range opts {
		o(&f)
	}
	return b.p.AddFeature(f)
}

// Constructor declares a value or ref constructor routine.
func (b *Builder) Constructor(outer FeatureID, name string, opts ...FeatureOption) FeatureID {
	return b.Feature(outer, name, FeatureRoutine, append([]FeatureOption{Constructor()}, opts...)...)
}

// Routine declares a routine with the given result type (NoTypeID for unit-like results).
func (b *Builder) Routine(outer FeatureID, name string, result TypeID, opts ...FeatureOption) FeatureID {
	return b.Feature(outer, name, FeatureRoutine, append([]FeatureOption{Result(result)}, opts...)...)
}

// TypeParam adds a type parameter to f.
func (b *Builder) TypeParam(f FeatureID, name string) FeatureID {
	tp := b.Feature(f, name, FeatureTypeParameter)
	ff := b.p.Feature(f)
	ff.TypeParams = append(ff.TypeParams, tp)
	return tp
}

// OpenTypeParam adds the trailing open type parameter to f.
func (b *Builder) OpenTypeParam(f FeatureID, name string) FeatureID {
	tp := b.Feature(f, name, FeatureOpenTypeParameter)
	ff := b.p.Feature(f)
	ff.TypeParams = append(ff.TypeParams, tp)
	return tp
}

// Arg adds a value argument field of type t to f.
func (b *Builder) Arg(f FeatureID, name string, t TypeID) FeatureID {
	a := b.Feature(f, name, FeatureField, Result(t))
	ff := b.p.Feature(f)
	ff.Args = append(ff.Args, a)
	return a
}

// Field declares a non-argument field of type t inside f.
func (b *Builder) Field(f FeatureID, name string, t TypeID, opts ...FeatureOption) FeatureID {
	return b.Feature(f, name, FeatureField, append([]FeatureOption{Result(t)}, opts...)...)
}

// OuterRef declares the field through which code of f reads its outer instance.
func (b *Builder) OuterRef(f FeatureID) FeatureID {
	ff := b.p.Feature(f)
	if ff.OuterRef.IsValid() {
		return ff.OuterRef
	}
	or := b.Feature(f, "#^"+b.p.Name(f), FeatureField, Result(b.p.ThisType(ff.Outer)))
	b.p.Feature(or).OuterRefOf = f
	b.p.Feature(f).OuterRef = or
	return or
}

// ResultField declares the field that receives f's result.
func (b *Builder) ResultField(f FeatureID) FeatureID {
	ff := b.p.Feature(f)
	if ff.ResultField.IsValid() {
		return ff.ResultField
	}
	r := b.Feature(f, "result", FeatureField, Result(ff.Result))
	b.p.Feature(f).ResultField = r
	return r
}

// Choices sets the alternatives of a choice feature.
func (b *Builder) Choices(f FeatureID, alts ...TypeID) {
	ff := b.p.Feature(f)
	ff.Choices = append(ff.Choices, alts...)
}

// Inherit appends an inherits call to heir's list. target nil addresses the universe.
func (b *Builder) Inherit(heir FeatureID, target Expr, parent FeatureID, generics []TypeID, args ...Expr) *Call {
	c := b.CallG(target, parent, generics, args...)
	c.Inheritance = true
	c.Dynamic = false
	ff := b.p.Feature(heir)
	ff.Inherits = append(ff.Inherits, c)
	return c
}

// Code sets f's body.
func (b *Builder) Code(f FeatureID, exprs ...Expr) {
	b.p.Feature(f).Code = b.Block(exprs...)
}

// Pre appends precondition expressions to f.
func (b *Builder) Pre(f FeatureID, exprs ...Expr) {
	ff := b.p.Feature(f)
	ff.Pre = append(ff.Pre, exprs...)
}

// Post appends postcondition expressions to f.
func (b *Builder) Post(f FeatureID, exprs ...Expr) {
	ff := b.p.Feature(f)
	ff.Post = append(ff.Post, exprs...)
}

// SetMain selects the feature the program starts with.
func (b *Builder) SetMain(f FeatureID) {
	b.p.Main = f
}

// T returns the type of f instantiated with generics.
func (b *Builder) T(f FeatureID, generics ...TypeID) TypeID {
	return b.p.FeatureType(f, generics...)
}

// RefT returns the reference mode type of f.
func (b *Builder) RefT(f FeatureID, generics ...TypeID) TypeID {
	return b.p.Types.AsRef(b.p.FeatureType(f, generics...))
}

// ValT returns the value mode type of f.
func (b *Builder) ValT(f FeatureID, generics ...TypeID) TypeID {
	return b.p.Types.AsValue(b.p.FeatureType(f, generics...))
}

// P returns the type referring to type parameter tp.
func (b *Builder) P(tp FeatureID) TypeID {
	return b.p.ParamType(tp)
}

// This returns `f.this`.
func (b *Builder) This(f FeatureID) TypeID {
	return b.p.ThisType(f)
}

func (b *Builder) node() node {
	return node{id: b.p.NewExprID(), pos: b.pos}
}

// Call builds a call without type arguments. Calls on a non-universe target
// may bind dynamically.
func (b *Builder) Call(target Expr, callee FeatureID, args ...Expr) *Call {
	return b.CallG(target, callee, nil, args...)
}

// CallG builds a call with actual type arguments.
func (b *Builder) CallG(target Expr, callee FeatureID, generics []TypeID, args ...Expr) *Call {
	return &Call{
		node:     b.node(),
		Target:   target,
		Callee:   callee,
		Generics: generics,
		Args:     args,
		Select:   NoSelect,
		Dynamic:  target != nil,
	}
}

// Select builds a call that reads field number sel of an open generic field.
func (b *Builder) Select(target Expr, field FeatureID, sel int) *Call {
	c := b.Call(target, field)
	c.Select = sel
	return c
}

// OuterCall reads f's outer instance through its outer-ref field.
func (b *Builder) OuterCall(f FeatureID) *Call {
	return b.Call(b.Current(), b.OuterRef(f))
}

func (b *Builder) Current() *Current {
	return &Current{node: b.node()}
}

func (b *Builder) Assign(target Expr, field FeatureID, value Expr) *Assign {
	return &Assign{node: b.node(), Target: target, Field: field, Value: value}
}

func (b *Builder) Const(t TypeID, data []byte) *Constant {
	return &Constant{node: b.node(), Type: t, Data: data}
}

// Int builds an integer constant of numeric type t with the given byte width.
func (b *Builder) Int(t TypeID, width int, v int64) *Constant {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(v)) // #nosec G115 -- two's complement bytes are intended
	return b.Const(t, data[:width])
}

// Float64 builds an f64 constant of type t.
func (b *Builder) Float64(t TypeID, v float64) *Constant {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(v))
	return b.Const(t, data)
}

func (b *Builder) Box(value Expr, t TypeID) *Box {
	return &Box{node: b.node(), Value: value, Type: t}
}

func (b *Builder) Tag(value Expr, choice TypeID) *Tag {
	return &Tag{node: b.node(), Value: value, Type: choice}
}

func (b *Builder) Match(subject Expr, t TypeID, cases ...*Case) *Match {
	return &Match{node: b.node(), Subject: subject, Type: t, Cases: cases}
}

// CaseField builds a case that binds the matched value to field.
func (b *Builder) CaseField(field FeatureID, code ...Expr) *Case {
	return &Case{node: b.node(), Field: field, Code: b.Block(code...)}
}

// CaseTypes builds a case that matches the given alternatives without binding.
func (b *Builder) CaseTypes(types []TypeID, code ...Expr) *Case {
	return &Case{node: b.node(), Types: types, Code: b.Block(code...)}
}

func (b *Builder) InlineArray(t, elem TypeID, elems ...Expr) *InlineArray {
	return &InlineArray{node: b.node(), Type: t, Elem: elem, Elements: elems}
}

func (b *Builder) Env(t TypeID) *Env {
	return &Env{node: b.node(), Type: t}
}

func (b *Builder) Block(exprs ...Expr) *Block {
	return &Block{node: b.node(), Exprs: exprs}
}

// MustBuild is Build for tests; it panics on validation errors.
func (b *Builder) MustBuild() *Program {
	p, err := b.Build()
	if err != nil {
		panic(fmt.Errorf("hir: invalid program: %w", err))
	}
	return p
}
