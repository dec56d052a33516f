package irfile

import (
	"errors"

	"airgen/internal/diag"
	"airgen/internal/fuir"
)

// Magic opens every IR file.
const Magic = "AIRG"

// Current schema version - increment when the record layout changes
const SchemaVersion uint16 = 2

var (
	ErrBadMagic = errors.New("irfile: not an IR file")
	ErrSchema   = errors.New("irfile: unsupported schema")
	ErrCorrupt  = errors.New("irfile: corrupt IR file")
)

// DiagCode maps a load error to its diagnostic code.
func DiagCode(err error) diag.Code {
	switch {
	case errors.Is(err, ErrBadMagic):
		return diag.SerialBadMagic
	case errors.Is(err, ErrSchema):
		return diag.SerialSchema
	case errors.Is(err, ErrCorrupt):
		return diag.SerialCorrupt
	}
	return diag.SerialWriteFail
}

// File is the serialized form of an IR. Clazz and site ids are stored as in
// the IR; zero stands for "none".
type File struct {
	Magic    string        `msgpack:"magic"`
	Schema   uint16        `msgpack:"schema"`
	BuildID  string        `msgpack:"build,omitempty"`
	Main     int32         `msgpack:"main"`
	Universe int32         `msgpack:"universe"`
	Clazzes  []ClazzRecord `msgpack:"clazzes"`
	Sites    []SiteRecord  `msgpack:"sites"`
	Specials []int32       `msgpack:"specials"` // indexed by mono.SpecialClazz
}

// Clazz flag bits.
const (
	FlagRef uint16 = 1 << iota
	FlagBoxed
	FlagUnit
	FlagVoid
	FlagChoice
	FlagChoiceWithRefs
	FlagChoiceOfOnlyRefs
	FlagNeedsCode
	FlagHasData
	FlagFieldIsAdrOfValue
)

type ClazzRecord struct {
	Kind         uint8  `msgpack:"k"`
	BaseName     string `msgpack:"bn,omitempty"`
	Name         string `msgpack:"n,omitempty"`
	OriginalName string `msgpack:"on,omitempty"`
	TypeName     string `msgpack:"tn,omitempty"`
	Flags        uint16 `msgpack:"f,omitempty"`
	LifeTime     uint8  `msgpack:"lt,omitempty"`
	Special      uint8  `msgpack:"sp,omitempty"`

	Outer        int32 `msgpack:"o,omitempty"`
	Result       int32 `msgpack:"r,omitempty"`
	ResultField  int32 `msgpack:"rf,omitempty"`
	OuterRef     int32 `msgpack:"or,omitempty"`
	TypeParam    int32 `msgpack:"tp,omitempty"`
	AsValue      int32 `msgpack:"av,omitempty"`
	ArrayElement int32 `msgpack:"ae,omitempty"`
	Code         int32 `msgpack:"c,omitempty"`

	Args     []int32 `msgpack:"a,omitempty"`
	Fields   []int32 `msgpack:"fs,omitempty"`
	Choices  []int32 `msgpack:"ch,omitempty"`
	Generics []int32 `msgpack:"g,omitempty"`
	Heirs    []int32 `msgpack:"h,omitempty"`
	Pre      []int32 `msgpack:"pre,omitempty"`
	Post     []int32 `msgpack:"post,omitempty"`
}

func (c *ClazzRecord) has(f uint16) bool { return c.Flags&f != 0 }

// SiteRecord is one site. Fields not used by Kind stay zero.
type SiteRecord struct {
	Kind    uint8  `msgpack:"k"`
	Clazz   int32  `msgpack:"c"`
	Pos     string `msgpack:"p,omitempty"`
	Void    bool   `msgpack:"v,omitempty"`
	Comment string `msgpack:"cm,omitempty"`

	Const int32  `msgpack:"cc,omitempty"`
	Data  []byte `msgpack:"d,omitempty"`

	Accessed int32   `msgpack:"ac,omitempty"`
	Target   int32   `msgpack:"t,omitempty"`
	Dynamic  bool    `msgpack:"dy,omitempty"`
	Pairs    []int32 `msgpack:"pr,omitempty"`
	Assigned int32   `msgpack:"as,omitempty"`
	Pre      int32   `msgpack:"pe,omitempty"`

	TagValue int32 `msgpack:"tv,omitempty"`
	TagNew   int32 `msgpack:"tw,omitempty"`
	TagNum   int32 `msgpack:"tn,omitempty"`

	BoxValue  int32 `msgpack:"bv,omitempty"`
	BoxResult int32 `msgpack:"br,omitempty"`

	Env int32 `msgpack:"e,omitempty"`

	Subject int32        `msgpack:"s,omitempty"`
	Cases   []CaseRecord `msgpack:"cs,omitempty"`
}

type CaseRecord struct {
	Tags  []int32 `msgpack:"t,omitempty"`
	Code  int32   `msgpack:"c,omitempty"`
	Field int32   `msgpack:"f,omitempty"`
}

func clazzRef(c fuir.ClazzID) int32 {
	if !c.IsValid() {
		return 0
	}
	return int32(c)
}

func clazzID(v int32) fuir.ClazzID {
	if v < int32(fuir.ClazzBase) {
		return fuir.NoClazz
	}
	return fuir.ClazzID(v)
}

func siteRef(s fuir.SiteID) int32 {
	if !s.IsValid() {
		return 0
	}
	return int32(s)
}

func siteID(v int32) fuir.SiteID {
	if v < int32(fuir.SiteBase) {
		return fuir.NoSite
	}
	return fuir.SiteID(v)
}

func clazzRefs(cs []fuir.ClazzID) []int32 {
	if len(cs) == 0 {
		return nil
	}
	out := make([]int32, len(cs))
	for i, c := range cs {
		out[i] = clazzRef(c)
	}
	return out
}

func clazzIDs(vs []int32) []fuir.ClazzID {
	if len(vs) == 0 {
		return nil
	}
	out := make([]fuir.ClazzID, len(vs))
	for i, v := range vs {
		out[i] = clazzID(v)
	}
	return out
}
