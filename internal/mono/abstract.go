package mono

import (
	"fmt"
	"slices"
	"strings"

	"airgen/internal/diag"
	"airgen/internal/hir"
	"airgen/internal/source"
)

type abstractUse struct {
	feature hir.FeatureID
	at      source.Span
	hasAt   bool
}

func (r *Registry) addAbstractCall(recv ClazzID, f hir.FeatureID, at *source.Span) {
	u := abstractUse{feature: f}
	if at != nil {
		u.at, u.hasAt = *at, true
	}
	for _, x := range r.abstractCalled[recv] {
		if x == u {
			return
		}
	}
	r.abstractCalled[recv] = append(r.abstractCalled[recv], u)
}

// reportAbstract emits one diagnostic per instantiated receiver that calls
// abstract features it does not implement.
func (r *Registry) reportAbstract() {
	for _, recv := range r.All() {
		uses := r.abstractCalled[recv]
		if len(uses) == 0 || !r.IsInstantiated(recv) {
			continue
		}
		var names []string
		var detail strings.Builder
		fmt.Fprintf(&detail, "Feature %s instantiated at %s\n", r.Name(recv), r.pos(r.InstantiatedAt(recv)))
		for _, u := range uses {
			q := "`" + r.prog.QualifiedName(u.feature) + "`"
			if !slices.Contains(names, q) {
				names = append(names, q)
			}
			fmt.Fprintf(&detail, "inherits or declares abstract feature %s declared at %s\n", q, r.pos(r.prog.Feature(u.feature).Span))
			if u.hasAt {
				fmt.Fprintf(&detail, "which is called at %s\n", r.pos(u.at))
			}
		}
		detail.WriteString("without providing an implementation\n")
		msg := "Used abstract feature " + names[0] + " is not implemented"
		if len(names) > 1 {
			msg = "Used abstract features " + strings.Join(names, ", ") + " are not implemented"
		}
		r.sink.Report(diag.MonoAbstractNotImplemented, r.InstantiatedAt(recv), msg, detail.String())
	}
}

// AbstractCalls returns the abstract features called on recv.
func (r *Registry) AbstractCalls(recv ClazzID) []hir.FeatureID {
	var out []hir.FeatureID
	for _, u := range r.abstractCalled[recv] {
		out = append(out, u.feature)
	}
	return out
}
