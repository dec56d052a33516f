package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Мономорфизация
	MonoInfo                   Code = 1000
	MonoRecursiveValue         Code = 1001
	MonoAbstractNotImplemented Code = 1002
	MonoFeatureNotFound        Code = 1003
	MonoOpenSelectOutOfRange   Code = 1004
	MonoTooManyClazzes         Code = 1005
	MonoRegistryClosed         Code = 1006

	// Раскладка
	LayoutInfo          Code = 2000
	LayoutCyclicNesting Code = 2001

	// Эмиссия кода
	EmitInfo        Code = 3000
	EmitIllegalExpr Code = 3001
	EmitNoCode      Code = 3002

	// Сериализация
	SerialInfo      Code = 4000
	SerialBadMagic  Code = 4001
	SerialSchema    Code = 4002
	SerialCorrupt   Code = 4003
	SerialWriteFail Code = 4004

	// Описание программы (progdesc)
	DescInfo          Code = 5000
	DescSyntax        Code = 5001
	DescUnknownName   Code = 5002
	DescDuplicateName Code = 5003
	DescBadKind       Code = 5004
)

var codeName = map[Code]string{
	UnknownCode:                "unknown",
	MonoInfo:                   "mono info",
	MonoRecursiveValue:         "recursive value type",
	MonoAbstractNotImplemented: "abstract feature not implemented",
	MonoFeatureNotFound:        "feature not found",
	MonoOpenSelectOutOfRange:   "open generic select out of range",
	MonoTooManyClazzes:         "too many clazzes",
	MonoRegistryClosed:         "registry closed",
	LayoutInfo:                 "layout info",
	LayoutCyclicNesting:        "cyclic field nesting",
	EmitInfo:                   "emit info",
	EmitIllegalExpr:            "illegal expression",
	EmitNoCode:                 "clazz has no code",
	SerialInfo:                 "serial info",
	SerialBadMagic:             "bad magic",
	SerialSchema:               "unsupported schema",
	SerialCorrupt:              "corrupt IR file",
	SerialWriteFail:            "write failed",
	DescInfo:                   "description info",
	DescSyntax:                 "description syntax",
	DescUnknownName:            "unknown name",
	DescDuplicateName:          "duplicate name",
	DescBadKind:                "bad feature kind",
}

// ID returns the stable short form, e.g. "MON1001".
func (c Code) ID() string {
	switch {
	case c >= 1000 && c < 2000:
		return fmt.Sprintf("MON%04d", uint16(c))
	case c >= 2000 && c < 3000:
		return fmt.Sprintf("LAY%04d", uint16(c))
	case c >= 3000 && c < 4000:
		return fmt.Sprintf("EMT%04d", uint16(c))
	case c >= 4000 && c < 5000:
		return fmt.Sprintf("SER%04d", uint16(c))
	case c >= 5000 && c < 6000:
		return fmt.Sprintf("DSC%04d", uint16(c))
	}
	return "E0000"
}

func (c Code) Title() string {
	if s, ok := codeName[c]; ok {
		return s
	}
	return codeName[UnknownCode]
}

func (c Code) String() string {
	return c.ID()
}
