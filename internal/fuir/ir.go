package fuir

import "airgen/internal/mono"

// ClazzID addresses a clazz of an IR. Ids are contiguous from ClazzBase.
type ClazzID int32

// SiteID addresses one instruction. Ids are contiguous from SiteBase.
type SiteID int32

const (
	ClazzBase ClazzID = 0x1000_0000
	SiteBase  SiteID  = 0x2000_0000

	NoClazz ClazzID = -1
	NoSite  SiteID  = -1
)

func (c ClazzID) IsValid() bool { return c >= ClazzBase }

func (s SiteID) IsValid() bool { return s >= SiteBase }

// IR is the read interface backends consume. It is served by *Generated while
// code is emitted from a registry, and by a reloaded library file.
//
// Methods taking a ClazzID or SiteID expect a valid id of the IR.
type IR interface {
	FirstClazz() ClazzID
	LastClazz() ClazzID
	MainClazz() ClazzID
	UniverseClazz() ClazzID

	ClazzKind(c ClazzID) ClazzKind
	ClazzBaseName(c ClazzID) string
	ClazzAsString(c ClazzID) string
	ClazzOriginalName(c ClazzID) string
	ClazzTypeName(c ClazzID) string
	ClazzOuterClazz(c ClazzID) ClazzID
	ClazzResultClazz(c ClazzID) ClazzID
	ClazzResultField(c ClazzID) ClazzID
	ClazzOuterRef(c ClazzID) ClazzID
	ClazzArgs(c ClazzID) []ClazzID
	ClazzFields(c ClazzID) []ClazzID
	ClazzChoices(c ClazzID) []ClazzID
	ClazzActualGenerics(c ClazzID) []ClazzID
	ClazzTypeParameterActualType(c ClazzID) ClazzID
	ClazzIsRef(c ClazzID) bool
	ClazzIsBoxed(c ClazzID) bool
	ClazzIsUnitType(c ClazzID) bool
	ClazzIsVoidType(c ClazzID) bool
	ClazzIsChoice(c ClazzID) bool
	ClazzIsChoiceWithRefs(c ClazzID) bool
	ClazzIsChoiceOfOnlyRefs(c ClazzID) bool
	ClazzNeedsCode(c ClazzID) bool
	HasData(c ClazzID) bool
	ClazzFieldIsAdrOfValue(c ClazzID) bool
	ClazzInstantiatedHeirs(c ClazzID) []ClazzID
	ClazzAsValue(c ClazzID) ClazzID
	ClazzCode(c ClazzID) SiteID
	// ClazzContract returns the code of condition ix of kind ck, or NoSite.
	ClazzContract(c ClazzID, ck ContractKind, ix int) SiteID
	LifeTime(c ClazzID) LifeTime
	ClazzSpecial(c ClazzID) mono.SpecialClazz
	// SpecialClazz returns NoClazz when the program lacks s.
	SpecialClazz(s mono.SpecialClazz) ClazzID
	InlineArrayElementClazz(c ClazzID) ClazzID

	FirstSite() SiteID
	// SiteEnd is one past the last site.
	SiteEnd() SiteID
	WithinCode(s SiteID) bool
	ClazzAt(s SiteID) ClazzID
	CodeAt(s SiteID) ExprKind
	AlwaysResultsInVoid(s SiteID) bool
	SitePos(s SiteID) string
	Comment(s SiteID) string

	ConstClazz(s SiteID) ClazzID
	ConstData(s SiteID) []byte
	AccessedClazz(s SiteID) ClazzID
	// AccessedClazzes returns (target, inner) pairs flattened.
	AccessedClazzes(s SiteID) []ClazzID
	AccessTargetClazz(s SiteID) ClazzID
	AccessIsDynamic(s SiteID) bool
	AssignedType(s SiteID) ClazzID
	// AccessedPreconditionClazz is the clazz whose preconditions a call
	// checks; NoClazz when the callee declares none.
	AccessedPreconditionClazz(s SiteID) ClazzID
	TagValueClazz(s SiteID) ClazzID
	TagNewClazz(s SiteID) ClazzID
	TagTagNum(s SiteID) int
	BoxValueClazz(s SiteID) ClazzID
	BoxResultClazz(s SiteID) ClazzID
	EnvClazz(s SiteID) ClazzID
	MatchStaticSubject(s SiteID) ClazzID
	MatchCaseCount(s SiteID) int
	MatchCaseTags(s SiteID, cix int) []int
	MatchCaseCode(s SiteID, cix int) SiteID
	MatchCaseField(s SiteID, cix int) ClazzID
}

// CodeSize counts the sites of the block starting at s.
func CodeSize(ir IR, s SiteID) int {
	n := 0
	for ; ir.WithinCode(s); s++ {
		n++
	}
	return n
}

// ClazzByName finds the clazz whose human name is name.
func ClazzByName(ir IR, name string) (ClazzID, bool) {
	for c := ir.FirstClazz(); c <= ir.LastClazz(); c++ {
		if ir.ClazzAsString(c) == name {
			return c, true
		}
	}
	return NoClazz, false
}
