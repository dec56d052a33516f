package mono

import "airgen/internal/hir"

// SpecialClazz names clazzes backends treat specially.
type SpecialClazz uint8

const (
	SpecialNone SpecialClazz = iota
	SpecialUniverse
	SpecialAny
	SpecialI8
	SpecialI16
	SpecialI32
	SpecialI64
	SpecialU8
	SpecialU16
	SpecialU32
	SpecialU64
	SpecialF32
	SpecialF64
	SpecialUnit
	SpecialVoid
	SpecialBool
	SpecialTrue
	SpecialFalse
	SpecialConstString
	SpecialString
	SpecialError
	SpecialFuzion
	SpecialSys
	SpecialPointer
	SpecialJava

	specialCount
)

type specialDesc struct {
	name  string
	args  int
	outer SpecialClazz
}

var specials = [specialCount]specialDesc{
	SpecialUniverse:    {name: hir.UniverseName},
	SpecialAny:         {"Any", 0, SpecialUniverse},
	SpecialI8:          {"i8", 1, SpecialUniverse},
	SpecialI16:         {"i16", 1, SpecialUniverse},
	SpecialI32:         {"i32", 1, SpecialUniverse},
	SpecialI64:         {"i64", 1, SpecialUniverse},
	SpecialU8:          {"u8", 1, SpecialUniverse},
	SpecialU16:         {"u16", 1, SpecialUniverse},
	SpecialU32:         {"u32", 1, SpecialUniverse},
	SpecialU64:         {"u64", 1, SpecialUniverse},
	SpecialF32:         {"f32", 1, SpecialUniverse},
	SpecialF64:         {"f64", 1, SpecialUniverse},
	SpecialUnit:        {"unit", 0, SpecialUniverse},
	SpecialVoid:        {"void", 0, SpecialUniverse},
	SpecialBool:        {"bool", 0, SpecialUniverse},
	SpecialTrue:        {"true_", 0, SpecialUniverse},
	SpecialFalse:       {"false_", 0, SpecialUniverse},
	SpecialConstString: {"Const_String", 0, SpecialUniverse},
	SpecialString:      {"String", 0, SpecialUniverse},
	SpecialError:       {"error", 1, SpecialUniverse},
	SpecialFuzion:      {"fuzion", 0, SpecialUniverse},
	SpecialSys:         {"sys", 0, SpecialFuzion},
	SpecialPointer:     {"Pointer", 0, SpecialSys},
	SpecialJava:        {"java", 0, SpecialFuzion},
}

func (s SpecialClazz) String() string {
	switch {
	case s == SpecialNone:
		return "none"
	case s < specialCount:
		if o := specials[s].outer; o > SpecialUniverse {
			return o.String() + "." + specials[s].name
		}
		return specials[s].name
	}
	return "unknown"
}

// NumSpecials returns the number of special clazz kinds including SpecialNone.
func NumSpecials() int { return int(specialCount) }

// Special returns the clazz of s, or NoClazzID when the program does not
// declare it. Specials resolve once; Reach resolves all of them.
func (r *Registry) Special(s SpecialClazz) ClazzID {
	if s == SpecialNone || s >= specialCount {
		return NoClazzID
	}
	if r.specialOK[s] {
		return r.specials[s]
	}
	if s == SpecialUniverse {
		return r.universe
	}
	d := specials[s]
	res := NoClazzID
	if outer := r.Special(d.outer); outer.IsValid() {
		if f := r.prog.LookupInner(r.Clazz(outer).Feature, d.name, d.args); f.IsValid() {
			res = r.Create(r.prog.FeatureType(f), hir.NoSelect, outer)
		}
	}
	if r.closed {
		return res
	}
	r.specials[s], r.specialOK[s] = res, true
	return res
}

// SpecialOf is the reverse of Special.
func (r *Registry) SpecialOf(id ClazzID) SpecialClazz {
	if id == r.universe {
		return SpecialUniverse
	}
	for s := SpecialAny; s < specialCount; s++ {
		if r.specialOK[s] && r.specials[s] == id {
			return s
		}
	}
	return SpecialNone
}
