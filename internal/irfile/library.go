package irfile

import (
	"fortio.org/safecast"

	"airgen/internal/fuir"
	"airgen/internal/mono"
)

// Library serves fuir.IR from a decoded File. It never changes and is safe
// for concurrent use.
type Library struct {
	f *File
}

func NewLibrary(f *File) *Library { return &Library{f: f} }

func (l *Library) File() *File     { return l.f }
func (l *Library) BuildID() string { return l.f.BuildID }
func (l *Library) Frozen() bool    { return true }

var (
	noClazzRecord ClazzRecord
	noSiteRecord  SiteRecord
)

func (l *Library) clazz(c fuir.ClazzID) *ClazzRecord {
	i := int(c - fuir.ClazzBase)
	if !c.IsValid() || i >= len(l.f.Clazzes) {
		return &noClazzRecord
	}
	return &l.f.Clazzes[i]
}

func (l *Library) site(s fuir.SiteID) *SiteRecord {
	i := int(s - fuir.SiteBase)
	if !s.IsValid() || i >= len(l.f.Sites) {
		return &noSiteRecord
	}
	return &l.f.Sites[i]
}

func (l *Library) FirstClazz() fuir.ClazzID { return fuir.ClazzBase }

func (l *Library) LastClazz() fuir.ClazzID {
	n, err := safecast.Conv[int32](len(l.f.Clazzes))
	if err != nil {
		panic(err)
	}
	return fuir.ClazzBase + fuir.ClazzID(n) - 1
}

func (l *Library) MainClazz() fuir.ClazzID     { return clazzID(l.f.Main) }
func (l *Library) UniverseClazz() fuir.ClazzID { return clazzID(l.f.Universe) }

func (l *Library) ClazzKind(c fuir.ClazzID) fuir.ClazzKind {
	return fuir.ClazzKind(l.clazz(c).Kind)
}

func (l *Library) ClazzBaseName(c fuir.ClazzID) string     { return l.clazz(c).BaseName }
func (l *Library) ClazzAsString(c fuir.ClazzID) string     { return l.clazz(c).Name }
func (l *Library) ClazzOriginalName(c fuir.ClazzID) string { return l.clazz(c).OriginalName }
func (l *Library) ClazzTypeName(c fuir.ClazzID) string     { return l.clazz(c).TypeName }

func (l *Library) ClazzOuterClazz(c fuir.ClazzID) fuir.ClazzID  { return clazzID(l.clazz(c).Outer) }
func (l *Library) ClazzResultClazz(c fuir.ClazzID) fuir.ClazzID { return clazzID(l.clazz(c).Result) }

func (l *Library) ClazzResultField(c fuir.ClazzID) fuir.ClazzID {
	return clazzID(l.clazz(c).ResultField)
}

func (l *Library) ClazzOuterRef(c fuir.ClazzID) fuir.ClazzID { return clazzID(l.clazz(c).OuterRef) }

func (l *Library) ClazzArgs(c fuir.ClazzID) []fuir.ClazzID    { return clazzIDs(l.clazz(c).Args) }
func (l *Library) ClazzFields(c fuir.ClazzID) []fuir.ClazzID  { return clazzIDs(l.clazz(c).Fields) }
func (l *Library) ClazzChoices(c fuir.ClazzID) []fuir.ClazzID { return clazzIDs(l.clazz(c).Choices) }

func (l *Library) ClazzActualGenerics(c fuir.ClazzID) []fuir.ClazzID {
	return clazzIDs(l.clazz(c).Generics)
}

func (l *Library) ClazzTypeParameterActualType(c fuir.ClazzID) fuir.ClazzID {
	return clazzID(l.clazz(c).TypeParam)
}

func (l *Library) ClazzIsRef(c fuir.ClazzID) bool      { return l.clazz(c).has(FlagRef) }
func (l *Library) ClazzIsBoxed(c fuir.ClazzID) bool    { return l.clazz(c).has(FlagBoxed) }
func (l *Library) ClazzIsUnitType(c fuir.ClazzID) bool { return l.clazz(c).has(FlagUnit) }
func (l *Library) ClazzIsVoidType(c fuir.ClazzID) bool { return l.clazz(c).has(FlagVoid) }
func (l *Library) ClazzIsChoice(c fuir.ClazzID) bool   { return l.clazz(c).has(FlagChoice) }
func (l *Library) ClazzNeedsCode(c fuir.ClazzID) bool  { return l.clazz(c).has(FlagNeedsCode) }
func (l *Library) HasData(c fuir.ClazzID) bool         { return l.clazz(c).has(FlagHasData) }

func (l *Library) ClazzIsChoiceWithRefs(c fuir.ClazzID) bool {
	return l.clazz(c).has(FlagChoiceWithRefs)
}

func (l *Library) ClazzIsChoiceOfOnlyRefs(c fuir.ClazzID) bool {
	return l.clazz(c).has(FlagChoiceOfOnlyRefs)
}

func (l *Library) ClazzFieldIsAdrOfValue(c fuir.ClazzID) bool {
	return l.clazz(c).has(FlagFieldIsAdrOfValue)
}

func (l *Library) ClazzInstantiatedHeirs(c fuir.ClazzID) []fuir.ClazzID {
	return clazzIDs(l.clazz(c).Heirs)
}

func (l *Library) ClazzAsValue(c fuir.ClazzID) fuir.ClazzID { return clazzID(l.clazz(c).AsValue) }
func (l *Library) ClazzCode(c fuir.ClazzID) fuir.SiteID     { return siteID(l.clazz(c).Code) }

func (l *Library) ClazzContract(c fuir.ClazzID, ck fuir.ContractKind, ix int) fuir.SiteID {
	conds := l.clazz(c).Pre
	if ck == fuir.ContractPost {
		conds = l.clazz(c).Post
	}
	if ix < 0 || ix >= len(conds) {
		return fuir.NoSite
	}
	return siteID(conds[ix])
}

func (l *Library) LifeTime(c fuir.ClazzID) fuir.LifeTime { return fuir.LifeTime(l.clazz(c).LifeTime) }

func (l *Library) ClazzSpecial(c fuir.ClazzID) mono.SpecialClazz {
	return mono.SpecialClazz(l.clazz(c).Special)
}

func (l *Library) SpecialClazz(s mono.SpecialClazz) fuir.ClazzID {
	if int(s) >= len(l.f.Specials) {
		return fuir.NoClazz
	}
	return clazzID(l.f.Specials[s])
}

func (l *Library) InlineArrayElementClazz(c fuir.ClazzID) fuir.ClazzID {
	return clazzID(l.clazz(c).ArrayElement)
}

func (l *Library) FirstSite() fuir.SiteID { return fuir.SiteBase }

func (l *Library) SiteEnd() fuir.SiteID {
	n, err := safecast.Conv[int32](len(l.f.Sites))
	if err != nil {
		panic(err)
	}
	return fuir.SiteBase + fuir.SiteID(n)
}

func (l *Library) WithinCode(s fuir.SiteID) bool {
	return fuir.ExprKind(l.site(s).Kind) != fuir.ExprNone
}

func (l *Library) ClazzAt(s fuir.SiteID) fuir.ClazzID     { return clazzID(l.site(s).Clazz) }
func (l *Library) CodeAt(s fuir.SiteID) fuir.ExprKind     { return fuir.ExprKind(l.site(s).Kind) }
func (l *Library) AlwaysResultsInVoid(s fuir.SiteID) bool { return l.site(s).Void }
func (l *Library) SitePos(s fuir.SiteID) string           { return l.site(s).Pos }
func (l *Library) Comment(s fuir.SiteID) string           { return l.site(s).Comment }

func (l *Library) ConstClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).Const) }
func (l *Library) ConstData(s fuir.SiteID) []byte        { return l.site(s).Data }

func (l *Library) AccessedClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).Accessed) }

func (l *Library) AccessedClazzes(s fuir.SiteID) []fuir.ClazzID {
	return clazzIDs(l.site(s).Pairs)
}

func (l *Library) AccessTargetClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).Target) }
func (l *Library) AccessIsDynamic(s fuir.SiteID) bool           { return l.site(s).Dynamic }
func (l *Library) AssignedType(s fuir.SiteID) fuir.ClazzID      { return clazzID(l.site(s).Assigned) }

func (l *Library) AccessedPreconditionClazz(s fuir.SiteID) fuir.ClazzID {
	return clazzID(l.site(s).Pre)
}

func (l *Library) TagValueClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).TagValue) }
func (l *Library) TagNewClazz(s fuir.SiteID) fuir.ClazzID   { return clazzID(l.site(s).TagNew) }
func (l *Library) TagTagNum(s fuir.SiteID) int              { return int(l.site(s).TagNum) }

func (l *Library) BoxValueClazz(s fuir.SiteID) fuir.ClazzID  { return clazzID(l.site(s).BoxValue) }
func (l *Library) BoxResultClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).BoxResult) }

func (l *Library) EnvClazz(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).Env) }

func (l *Library) MatchStaticSubject(s fuir.SiteID) fuir.ClazzID { return clazzID(l.site(s).Subject) }
func (l *Library) MatchCaseCount(s fuir.SiteID) int              { return len(l.site(s).Cases) }

func (l *Library) matchCase(s fuir.SiteID, cix int) *CaseRecord {
	cs := l.site(s).Cases
	if cix < 0 || cix >= len(cs) {
		return &CaseRecord{}
	}
	return &cs[cix]
}

func (l *Library) MatchCaseTags(s fuir.SiteID, cix int) []int {
	tags := l.matchCase(s, cix).Tags
	if len(tags) == 0 {
		return nil
	}
	out := make([]int, len(tags))
	for i, t := range tags {
		out[i] = int(t)
	}
	return out
}

func (l *Library) MatchCaseCode(s fuir.SiteID, cix int) fuir.SiteID {
	return siteID(l.matchCase(s, cix).Code)
}

func (l *Library) MatchCaseField(s fuir.SiteID, cix int) fuir.ClazzID {
	return clazzID(l.matchCase(s, cix).Field)
}

var _ fuir.IR = (*Library)(nil)
