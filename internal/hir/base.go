package hir

// Base lists the base library features declared by WithBase.
type Base struct {
	Any, Unit, Void           FeatureID
	Bool, True, False         FeatureID
	I8, I16, I32, I64         FeatureID
	U8, U16, U32, U64         FeatureID
	F32, F64                  FeatureID
	String, ConstString, UTF8 FeatureID
	Fuzion, Sys, Pointer      FeatureID
}

// NumWidth maps the numeric features to their size in bytes.
func (bs *Base) NumWidth() map[FeatureID]int {
	return map[FeatureID]int{
		bs.I8: 1, bs.I16: 2, bs.I32: 4, bs.I64: 8,
		bs.U8: 1, bs.U16: 2, bs.U32: 4, bs.U64: 8,
		bs.F32: 4, bs.F64: 8,
	}
}

// WithBase declares the minimal base library the monomorphizer knows by name:
// Any, unit, void, bool with true_/false_, the numeric types, String,
// Const_String and fuzion.sys.Pointer.
func (b *Builder) WithBase() *Base {
	u := b.p.Universe
	bs := &Base{}
	bs.Any = b.Constructor(u, "Any", Ref())
	bs.Unit = b.Constructor(u, "unit")
	bs.Void = b.Constructor(u, "void")

	bs.False = b.Constructor(u, "false_")
	bs.True = b.Constructor(u, "true_")
	bs.Bool = b.Feature(u, "bool", FeatureChoice)
	b.Choices(bs.Bool, b.T(bs.False), b.T(bs.True))

	num := func(name string) FeatureID {
		f := b.Constructor(u, name, Primitive())
		b.Arg(f, "val", b.T(f))
		return f
	}
	bs.I8, bs.I16, bs.I32, bs.I64 = num("i8"), num("i16"), num("i32"), num("i64")
	bs.U8, bs.U16, bs.U32, bs.U64 = num("u8"), num("u16"), num("u32"), num("u64")
	bs.F32, bs.F64 = num("f32"), num("f64")

	bs.String = b.Constructor(u, "String", Ref())
	bs.ConstString = b.Constructor(u, "Const_String")
	b.Inherit(bs.ConstString, nil, bs.String, nil)
	bs.UTF8 = b.Feature(bs.ConstString, "utf8_data", FeatureIntrinsic, Result(b.T(bs.U8)))

	bs.Fuzion = b.Constructor(u, "fuzion")
	bs.Sys = b.Constructor(bs.Fuzion, "sys")
	bs.Pointer = b.Constructor(bs.Sys, "Pointer", Primitive())
	return bs
}
