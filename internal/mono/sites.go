package mono

import "airgen/internal/hir"

// Readers for the per-expression facts recorded while code was inspected in a
// context clazz. They never create clazzes and are safe on a closed registry.

// CallInner returns the callee clazz of call e running in ctx.
func (r *Registry) CallInner(ctx ClazzID, e *hir.Call) ClazzID {
	return r.Slot(ctx, e.ID(), slotCallInner)
}

// CallTarget returns the static target clazz of call e running in ctx.
func (r *Registry) CallTarget(ctx ClazzID, e *hir.Call) ClazzID {
	return r.Slot(ctx, e.ID(), slotCallTarget)
}

// CallPrecondition returns the clazz whose preconditions call e checks. It
// differs from the callee when the target is boxed: the precondition then
// runs on the ref receiver. NoClazzID when the callee has no preconditions.
func (r *Registry) CallPrecondition(ctx ClazzID, e *hir.Call) ClazzID {
	if e.Inheritance {
		return NoClazzID
	}
	return r.Slot(ctx, e.ID(), slotCallPre)
}

// AssignRequest is the lookup of the field written by e, without position.
func (r *Registry) AssignRequest(e *hir.Assign) Request {
	return Request{Feature: e.Field, Select: hir.NoSelect}
}

// InheritedOuterRef returns the heir's field holding the outer of the parent
// called by inherits call e, or NoClazzID.
func (r *Registry) InheritedOuterRef(heir ClazzID, e *hir.Call) ClazzID {
	if !e.Inheritance {
		return NoClazzID
	}
	return r.Slot(heir, e.ID(), slotCallOuter)
}

// InheritedArgField returns the heir's field receiving actual i of inherits call e.
func (r *Registry) InheritedArgField(heir ClazzID, e *hir.Call, i int) ClazzID {
	if !e.Inheritance || i < 0 || i >= len(e.Args) {
		return NoClazzID
	}
	return r.Slot(heir, e.ID(), slotCallArgs+i)
}

func (r *Registry) AssignTarget(ctx ClazzID, e *hir.Assign) ClazzID {
	return r.Slot(ctx, e.ID(), slotAssignTarget)
}

func (r *Registry) AssignField(ctx ClazzID, e *hir.Assign) ClazzID {
	return r.Slot(ctx, e.ID(), slotAssignField)
}

func (r *Registry) BoxValue(ctx ClazzID, e *hir.Box) ClazzID {
	return r.Slot(ctx, e.ID(), slotBoxValue)
}

func (r *Registry) BoxResult(ctx ClazzID, e *hir.Box) ClazzID {
	return r.Slot(ctx, e.ID(), slotBoxResult)
}

func (r *Registry) TagValue(ctx ClazzID, e *hir.Tag) ClazzID {
	return r.Slot(ctx, e.ID(), slotTagValue)
}

func (r *Registry) TagChoice(ctx ClazzID, e *hir.Tag) ClazzID {
	return r.Slot(ctx, e.ID(), slotTagChoice)
}

func (r *Registry) MatchSubject(ctx ClazzID, e *hir.Match) ClazzID {
	return r.Slot(ctx, e.ID(), slotMatchSubject)
}

// CaseField returns the field clazz bound by case cs, or NoClazzID.
func (r *Registry) CaseField(ctx ClazzID, cs *hir.Case) ClazzID {
	if !cs.Field.IsValid() {
		return NoClazzID
	}
	return r.Slot(ctx, cs.ID(), slotCaseField)
}

// CaseTypes returns the clazzes matched by a case without field.
func (r *Registry) CaseTypes(ctx ClazzID, cs *hir.Case) []ClazzID {
	if len(cs.Types) == 0 {
		return nil
	}
	out := make([]ClazzID, len(cs.Types))
	for k := range cs.Types {
		out[k] = r.Slot(ctx, cs.ID(), slotCaseField+1+k)
	}
	return out
}

func (r *Registry) ArrayClazz(ctx ClazzID, e *hir.InlineArray) ClazzID {
	return r.Slot(ctx, e.ID(), slotArray)
}

func (r *Registry) ArrayElem(ctx ClazzID, e *hir.InlineArray) ClazzID {
	return r.Slot(ctx, e.ID(), slotArrayElem)
}

// ConstClazz returns the clazz of constant e.
func (r *Registry) ConstClazz(ctx ClazzID, e *hir.Constant) ClazzID {
	return r.Slot(ctx, e.ID(), slotClazz)
}

func (r *Registry) EnvClazz(ctx ClazzID, e *hir.Env) ClazzID {
	return r.Slot(ctx, e.ID(), slotClazz)
}

// Peek returns the result of an earlier lookup of req in recv without
// resolving anything new.
func (r *Registry) Peek(recv ClazzID, req Request) (ClazzID, bool) {
	c := r.Clazz(recv)
	if c == nil {
		return NoClazzID, false
	}
	if !r.isOpenTyped(req.Feature) {
		req.Select = hir.NoSelect
	}
	id, ok := c.inner[innerKey{feature: req.Feature, generics: generics(req.Generics), sel: req.Select, pre: req.Pre}]
	return id, ok
}

// CallRequest rebuilds the lookup request of call e running in ctx, without position.
func (r *Registry) CallRequest(ctx ClazzID, e *hir.Call) Request {
	return Request{Feature: e.Callee, Generics: r.actualGenerics(e.Generics, ctx), Select: e.Select}
}
