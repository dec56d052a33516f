package mono

import (
	"strconv"

	"airgen/internal/hir"
	"airgen/internal/source"
)

// dynCall is one feature called through dynamic binding somewhere.
type dynCall struct {
	req Request
	at  source.Span
}

type dynKey struct {
	clazz ClazzID
	call  int
}

func dynCallKey(req Request) string {
	return strconv.FormatUint(uint64(req.Feature), 10) + "<" + generics(req.Generics) + ">" + strconv.Itoa(req.Select)
}

// markDynamic records that req may be bound at runtime in any heir of the
// static receiver and applies it to the ref clazzes already waiting for it.
func (r *Registry) markDynamic(req Request) {
	key := dynCallKey(req)
	if _, ok := r.dynKeys[key]; ok {
		return
	}
	var at source.Span
	if req.At != nil {
		at = *req.At
	}
	req.At = nil
	req.Inheritance = false
	idx := len(r.dyn)
	r.dyn = append(r.dyn, dynCall{req: req, at: at})
	r.dynKeys[key] = idx
	r.dynByFeat[req.Feature] = append(r.dynByFeat[req.Feature], idx)
	for _, c := range r.waiters[req.Feature] {
		r.applyDynamic(c, idx)
	}
}

// whenCalledDynamically registers ref clazz c as a possible receiver of f.
func (r *Registry) whenCalledDynamically(f hir.FeatureID, c ClazzID) {
	r.waiters[f] = append(r.waiters[f], c)
	for _, idx := range r.dynByFeat[f] {
		r.applyDynamic(c, idx)
	}
}

// applyDynamic looks up dynamic call idx in c once c is known to be instantiated.
func (r *Registry) applyDynamic(c ClazzID, idx int) {
	k := dynKey{clazz: c, call: idx}
	if r.dynDone[k] || !r.Clazz(c).instantiated {
		return
	}
	r.dynDone[k] = true
	dc := r.dyn[idx]
	req := dc.req
	at := dc.at
	req.At = &at
	r.Lookup(c, req)
}

// sweepDynamic applies every dynamic call to every instantiated ref clazz
// that can answer it. It reports whether anything changed.
func (r *Registry) sweepDynamic() bool {
	before := r.epoch
	for i := 1; i < len(r.clazzes); i++ {
		id := ClazzID(i) // #nosec G115 -- bounded by intern
		c := r.Clazz(id)
		if !c.Ref || !c.instantiated || r.IsError(id) {
			continue
		}
		for _, g := range r.allInner(c.Feature) {
			for _, idx := range r.dynByFeat[g] {
				r.applyDynamic(id, idx)
			}
		}
	}
	return r.epoch != before
}

// DynamicCalls returns the number of distinct dynamically bound calls.
func (r *Registry) DynamicCalls() int {
	return len(r.dyn)
}

// DispatchHeirs returns the instantiated heirs a dynamic access on target may
// bind to. Ref targets dispatch over ref heirs and value targets reached
// through an outer ref over value heirs.
func (r *Registry) DispatchHeirs(target ClazzID) []ClazzID {
	c := r.Clazz(target)
	if c == nil {
		return nil
	}
	var out []ClazzID
	for _, h := range c.heirs {
		if r.Clazz(h).Ref == c.Ref && r.IsInstantiated(h) {
			out = append(out, h)
		}
	}
	return out
}
