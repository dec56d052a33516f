package fuir

import (
	"fmt"

	"fortio.org/safecast"

	"airgen/internal/mono"
	"airgen/internal/source"
)

// siteData is the kind-specific payload of one site.
type siteData struct {
	comment string

	constClazz mono.ClazzID
	constData  []byte

	accessed mono.ClazzID
	target   mono.ClazzID
	dynamic  bool
	pairs    []mono.ClazzID
	assigned mono.ClazzID
	pre      mono.ClazzID

	tagValue mono.ClazzID
	tagNew   mono.ClazzID
	tagNum   int

	boxValue  mono.ClazzID
	boxResult mono.ClazzID

	env mono.ClazzID

	subject mono.ClazzID
	cases   []caseData
}

type caseData struct {
	tags  []int
	code  SiteID
	field mono.ClazzID
}

const maxSites = 0x5fff_ffff // keeps SiteBase+n within int32

type entry struct {
	kind ExprKind
	pos  source.Span
	data *siteData
}

// siteStore is the flat instruction stream. Blocks are appended whole and
// each is followed by an ExprNone terminator.
type siteStore struct {
	kinds  []ExprKind
	owners []mono.ClazzID
	pos    []source.Span
	data   map[SiteID]*siteData
	frozen bool
}

func newSiteStore() *siteStore {
	return &siteStore{data: make(map[SiteID]*siteData)}
}

func (st *siteStore) appendBlock(owner mono.ClazzID, entries []entry) SiteID {
	if st.frozen {
		panic(fmt.Sprintf("fuir: append to frozen site store (owner #%d)", owner))
	}
	first := st.next()
	for _, e := range entries {
		s := st.next()
		st.kinds = append(st.kinds, e.kind)
		st.owners = append(st.owners, owner)
		st.pos = append(st.pos, e.pos)
		if e.data != nil {
			st.data[s] = e.data
		}
	}
	st.kinds = append(st.kinds, ExprNone)
	st.owners = append(st.owners, owner)
	st.pos = append(st.pos, source.Span{})
	return first
}

func (st *siteStore) next() SiteID {
	n, err := safecast.Conv[int32](len(st.kinds))
	if err != nil {
		panic(fmt.Errorf("site count overflow: %w", err))
	}
	if n > maxSites {
		panic(fmt.Sprintf("fuir: more than %d sites", maxSites))
	}
	return SiteBase + SiteID(n)
}

func (st *siteStore) index(s SiteID) (int, bool) {
	i := int(s - SiteBase)
	return i, s >= SiteBase && i < len(st.kinds)
}

func (st *siteStore) kind(s SiteID) ExprKind {
	if i, ok := st.index(s); ok {
		return st.kinds[i]
	}
	return ExprNone
}

func (st *siteStore) owner(s SiteID) mono.ClazzID {
	if i, ok := st.index(s); ok {
		return st.owners[i]
	}
	return mono.NoClazzID
}

func (st *siteStore) span(s SiteID) source.Span {
	if i, ok := st.index(s); ok {
		return st.pos[i]
	}
	return source.Span{}
}

var emptyData siteData

func (st *siteStore) at(s SiteID) *siteData {
	if d, ok := st.data[s]; ok {
		return d
	}
	return &emptyData
}
