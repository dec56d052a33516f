package mono

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
	"airgen/internal/trace"
)

// ErrClosed is wrapped by the panic raised when a new clazz is requested from
// a closed registry.
var ErrClosed = errors.New("mono: registry is closed")

// Options tunes a Registry.
type Options struct {
	// MaxClazzes aborts discovery when exceeded. Zero means DefaultMaxClazzes.
	MaxClazzes int
	Sink       *diag.Sink
	Tracer     trace.Tracer
}

const DefaultMaxClazzes = 1 << 20

// Registry owns every clazz of one compilation.
type Registry struct {
	prog  *hir.Program
	types *hir.TypeTable
	sink  *diag.Sink
	trc   trace.Tracer
	opt   Options

	clazzes []Clazz // index 0 is the NoClazzID sentinel
	index   map[string]ClazzID
	queue   []ClazzID

	universe ClazzID
	errClazz ClazzID

	specials  [specialCount]ClazzID
	specialOK [specialCount]bool

	nextSlot int32
	slotBase map[hir.ExprID]int32

	dyn       []dynCall
	dynKeys   map[string]int
	dynByFeat map[hir.FeatureID][]int
	dynDone   map[dynKey]bool
	waiters   map[hir.FeatureID][]ClazzID

	abstractCalled map[ClazzID][]abstractUse
	innerAll       map[hir.FeatureID][]hir.FeatureID

	epoch  int
	closed bool
}

// NewRegistry creates the registry and the universe clazz.
func NewRegistry(prog *hir.Program, opt Options) *Registry {
	if opt.MaxClazzes <= 0 {
		opt.MaxClazzes = DefaultMaxClazzes
	}
	if opt.Sink == nil {
		opt.Sink = diag.NewSink(nil)
	}
	if opt.Tracer == nil {
		opt.Tracer = trace.Nop
	}
	r := &Registry{
		prog:           prog,
		types:          prog.Types,
		sink:           opt.Sink,
		trc:            opt.Tracer,
		opt:            opt,
		clazzes:        make([]Clazz, 1, 256),
		index:          make(map[string]ClazzID, 256),
		slotBase:       make(map[hir.ExprID]int32),
		dynKeys:        make(map[string]int),
		dynByFeat:      make(map[hir.FeatureID][]int),
		dynDone:        make(map[dynKey]bool),
		waiters:        make(map[hir.FeatureID][]ClazzID),
		abstractCalled: make(map[ClazzID][]abstractUse),
		innerAll:       make(map[hir.FeatureID][]hir.FeatureID),
	}
	r.universe = r.Create(prog.SelfType(prog.Universe), hir.NoSelect, NoClazzID)
	return r
}

func (r *Registry) Program() *hir.Program { return r.prog }

func (r *Registry) Sink() *diag.Sink { return r.sink }

// Universe returns the root clazz.
func (r *Registry) Universe() ClazzID { return r.universe }

// Clazz returns the clazz for id, or nil.
func (r *Registry) Clazz(id ClazzID) *Clazz {
	if r == nil || id == NoClazzID || int(id) >= len(r.clazzes) {
		return nil
	}
	return &r.clazzes[id]
}

// Len returns the number of clazzes.
func (r *Registry) Len() int {
	return len(r.clazzes) - 1
}

// All returns every clazz id in creation order.
func (r *Registry) All() []ClazzID {
	out := make([]ClazzID, 0, r.Len())
	for i := 1; i < len(r.clazzes); i++ {
		out = append(out, ClazzID(i)) // #nosec G115 -- bounded by intern
	}
	return out
}

func (r *Registry) Closed() bool { return r.closed }

// Close freezes the registry. Instantiation facts are memoized here so that
// readers after Close never write.
func (r *Registry) Close() {
	r.closed = true
	for i := 1; i < len(r.clazzes); i++ {
		r.IsInstantiated(ClazzID(i)) // #nosec G115 -- bounded by intern
	}
}

// Reopen allows creating clazzes again, e.g. for late lookups of a
// serialization or optimization pass. Memoized facts are dropped.
func (r *Registry) Reopen() {
	r.closed = false
	for i := range r.clazzes {
		r.clazzes[i].instTri = TriUnknown
	}
}

func (r *Registry) feature(c *Clazz) *hir.Feature {
	return r.prog.Feature(c.Feature)
}

// FeatureOf is a shortcut for the feature of clazz id.
func (r *Registry) FeatureOf(id ClazzID) *hir.Feature {
	c := r.Clazz(id)
	if c == nil {
		return nil
	}
	return r.prog.Feature(c.Feature)
}

// IsError reports whether id is the error clazz.
func (r *Registry) IsError(id ClazzID) bool {
	return id.IsValid() && id == r.errClazz
}

// ErrorClazz returns the placeholder clazz used after an error. It is
// interned on first use while the registry is open; a closed registry that
// never met an error type returns NoClazzID.
func (r *Registry) ErrorClazz() ClazzID {
	if !r.errClazz.IsValid() && !r.closed {
		r.errClazz = r.add(Clazz{Type: r.types.Error(), Select: hir.NoSelect, processed: true})
	}
	return r.errClazz
}

func generics(gs []hir.TypeID) string {
	var sb strings.Builder
	for i, g := range gs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(g), 10))
	}
	return sb.String()
}

func clazzKey(sel int, f hir.FeatureID, ref bool, gens []hir.TypeID, outer ClazzID) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(sel))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(uint64(f), 10))
	if ref {
		sb.WriteString("|r")
	}
	sb.WriteString("|<")
	sb.WriteString(generics(gens))
	sb.WriteString(">|")
	sb.WriteString(strconv.FormatUint(uint64(outer), 10))
	return sb.String()
}

// add appends c to the arena without interning.
func (r *Registry) add(c Clazz) ClazzID {
	if r.closed {
		panic(fmt.Errorf("mono: create %s: %w", r.prog.TypeString(c.Type), ErrClosed))
	}
	if len(r.clazzes) > r.opt.MaxClazzes {
		r.sink.Fatal(diag.MonoTooManyClazzes, spanOf(r.prog.Feature(c.Feature)),
			fmt.Sprintf("More than %d clazzes created", r.opt.MaxClazzes),
			"Instantiation does not converge; increase max_clazzes if the program is really that large.")
	}
	n, err := safecast.Conv[uint32](len(r.clazzes))
	if err != nil {
		panic(fmt.Errorf("len(clazzes) overflow: %w", err))
	}
	c.ID = ClazzID(n)
	r.clazzes = append(r.clazzes, c)
	r.epoch++
	return c.ID
}

// AllocSlots reserves n consecutive per-expression data slots for e and
// returns the first. Repeated calls for the same expression return the same base.
func (r *Registry) AllocSlots(e hir.ExprID, n int) int32 {
	if base, ok := r.slotBase[e]; ok {
		return base
	}
	cnt, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("slot count overflow: %w", err))
	}
	base := r.nextSlot
	r.nextSlot += cnt
	r.slotBase[e] = base
	return base
}

// NumSlots returns the number of slots handed out.
func (r *Registry) NumSlots() int {
	return int(r.nextSlot)
}

// SetSlot records value v for slot i of expression e in context ctx.
func (r *Registry) SetSlot(ctx ClazzID, e hir.ExprID, n, i int, v ClazzID) {
	c := r.Clazz(ctx)
	if c == nil {
		return
	}
	if c.runtime == nil {
		c.runtime = make(map[int32]ClazzID)
	}
	c.runtime[r.AllocSlots(e, n)+int32(i)] = v // #nosec G115 -- i < n
}

// Slot reads slot i of e in context ctx; NoClazzID when never set.
func (r *Registry) Slot(ctx ClazzID, e hir.ExprID, i int) ClazzID {
	c := r.Clazz(ctx)
	base, ok := r.slotBase[e]
	if c == nil || !ok {
		return NoClazzID
	}
	return c.runtime[base+int32(i)] // #nosec G115 -- i is a slot index
}

// Heirs returns the sorted heirs of id, id itself included.
func (r *Registry) Heirs(id ClazzID) []ClazzID {
	c := r.Clazz(id)
	if c == nil {
		return nil
	}
	return c.heirs
}

func (r *Registry) registerAsHeir(id ClazzID) {
	for _, p := range r.Parents(id) {
		pc := r.Clazz(p)
		if i, found := slices.BinarySearch(pc.heirs, id); !found {
			pc.heirs = slices.Insert(pc.heirs, i, id)
		}
	}
}

// Parents returns id and the clazzes of all its ancestors.
func (r *Registry) Parents(id ClazzID) []ClazzID {
	c := r.Clazz(id)
	if c == nil {
		return nil
	}
	if c.parents != nil {
		return c.parents
	}
	c.parents = []ClazzID{id}
	out := []ClazzID{id}
	f := r.feature(c)
	if f != nil && !r.IsError(id) {
		for _, call := range f.Inherits {
			pc := r.actualClazz(r.prog.InheritsType(call), id, hir.NoSelect)
			if r.IsError(pc) || !pc.IsValid() {
				continue
			}
			if c.Ref {
				pc = r.AsRef(pc)
			}
			for _, x := range r.Parents(pc) {
				if !slices.Contains(out, x) {
					out = append(out, x)
				}
			}
		}
	}
	r.Clazz(id).parents = out
	return out
}

// Compare orders clazzes by select, then type ignoring the outer, then outer.
// Ref outers compare structurally, value outers by id, and a ref outer sorts
// after a value outer.
func (r *Registry) Compare(a, b ClazzID) int {
	if a == b {
		return 0
	}
	ca, cb := r.Clazz(a), r.Clazz(b)
	if ca.Select != cb.Select {
		return cmpInt(ca.Select, cb.Select)
	}
	if d := r.compareTypeIgnoringOuter(ca.Type, cb.Type); d != 0 {
		return d
	}
	oa, ob := r.Clazz(ca.Outer), r.Clazz(cb.Outer)
	switch {
	case oa == nil || ob == nil:
		return cmpInt(int(ca.Outer), int(cb.Outer))
	case oa.Ref && ob.Ref:
		return r.Compare(ca.Outer, cb.Outer)
	case oa.Ref != ob.Ref:
		if oa.Ref {
			return 1
		}
		return -1
	}
	return cmpInt(int(ca.Outer), int(cb.Outer))
}

func (r *Registry) compareTypeIgnoringOuter(a, b hir.TypeID) int {
	if a == b {
		return 0
	}
	ta, _ := r.types.Lookup(a)
	tb, _ := r.types.Lookup(b)
	if ta.Kind != tb.Kind {
		return cmpInt(int(ta.Kind), int(tb.Kind))
	}
	if ta.Feature != tb.Feature {
		return cmpInt(int(ta.Feature), int(tb.Feature))
	}
	if ta.Ref != tb.Ref {
		if ta.Ref {
			return 1
		}
		return -1
	}
	if len(ta.Generics) != len(tb.Generics) {
		return cmpInt(len(ta.Generics), len(tb.Generics))
	}
	for i := range ta.Generics {
		if d := r.compareType(ta.Generics[i], tb.Generics[i]); d != 0 {
			return d
		}
	}
	return 0
}

func (r *Registry) compareType(a, b hir.TypeID) int {
	if d := r.compareTypeIgnoringOuter(a, b); d != 0 {
		return d
	}
	ta, _ := r.types.Lookup(a)
	tb, _ := r.types.Lookup(b)
	if ta.Outer == tb.Outer {
		return 0
	}
	if !ta.Outer.IsValid() || !tb.Outer.IsValid() {
		return cmpInt(int(ta.Outer), int(tb.Outer))
	}
	return r.compareType(ta.Outer, tb.Outer)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func spanOf(f *hir.Feature) source.Span {
	if f == nil {
		return source.Span{}
	}
	return f.Span
}
