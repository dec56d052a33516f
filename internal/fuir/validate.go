package fuir

import (
	"errors"
	"fmt"
)

// Validate checks structural invariants of ir and returns all violations.
func Validate(ir IR) error {
	if ir == nil {
		return nil
	}
	var errs []error
	if !ir.MainClazz().IsValid() {
		errs = append(errs, errors.New("no main clazz"))
	}
	for c := ir.FirstClazz(); c <= ir.LastClazz(); c++ {
		if s := ir.ClazzCode(c); s.IsValid() {
			if err := validateBlock(ir, c, s); err != nil {
				errs = append(errs, fmt.Errorf("clazz %s: %w", ir.ClazzAsString(c), err))
			}
		}
		for _, ck := range []ContractKind{ContractPre, ContractPost} {
			for ix := 0; ; ix++ {
				s := ir.ClazzContract(c, ck, ix)
				if !s.IsValid() {
					break
				}
				if err := validateBlock(ir, c, s); err != nil {
					errs = append(errs, fmt.Errorf("clazz %s %s %d: %w", ir.ClazzAsString(c), ck, ix, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func validateBlock(ir IR, owner ClazzID, s SiteID) error {
	var errs []error
	prev := ExprNone
	for ; ir.WithinCode(s); s++ {
		if s >= ir.SiteEnd() {
			return fmt.Errorf("block runs past site end %d", ir.SiteEnd())
		}
		if got := ir.ClazzAt(s); got != owner {
			errs = append(errs, fmt.Errorf("site %d: owner %s", s, ir.ClazzAsString(got)))
		}
		if err := validateSite(ir, owner, s, prev); err != nil {
			errs = append(errs, fmt.Errorf("site %d (%s): %w", s, ir.CodeAt(s), err))
		}
		prev = ir.CodeAt(s)
	}
	return errors.Join(errs...)
}

func validateSite(ir IR, owner ClazzID, s SiteID, prev ExprKind) error {
	switch ir.CodeAt(s) {
	case ExprCall:
		if !ir.AccessedClazz(s).IsValid() {
			return errors.New("call without callee")
		}
		pairs := ir.AccessedClazzes(s)
		if len(pairs)%2 != 0 {
			return fmt.Errorf("odd dispatch table of %d entries", len(pairs))
		}
		if !ir.AccessIsDynamic(s) && len(pairs) != 2 {
			return fmt.Errorf("static call with %d dispatch pairs", len(pairs)/2)
		}
		if ir.AccessIsDynamic(s) && len(pairs) == 0 && ir.ClazzNeedsCode(ir.AccessedClazz(s)) && hasReceivers(ir, ir.AccessTargetClazz(s)) {
			return errors.New("dynamic call with empty dispatch table")
		}
	case ExprAssign:
		if !ir.AccessedClazz(s).IsValid() {
			return errors.New("assignment without field")
		}
		pairs := ir.AccessedClazzes(s)
		if len(pairs)%2 != 0 {
			return fmt.Errorf("odd dispatch table of %d entries", len(pairs))
		}
		if ir.AccessIsDynamic(s) && !ir.ClazzIsRef(ir.AccessTargetClazz(s)) {
			return errors.New("dynamic assignment to a value target")
		}
	case ExprPop:
		if prev != ExprCall {
			return fmt.Errorf("pop after %s", prev)
		}
	case ExprConst:
		if !ir.ConstClazz(s).IsValid() {
			return errors.New("constant without clazz")
		}
	case ExprTag:
		n := ir.TagTagNum(s)
		if n < 0 || n >= len(ir.ClazzChoices(ir.TagNewClazz(s))) {
			return fmt.Errorf("tag number %d out of range", n)
		}
	case ExprBox:
		if ir.BoxValueClazz(s) == ir.BoxResultClazz(s) {
			return errors.New("box into the same clazz")
		}
	case ExprMatch:
		alts := len(ir.ClazzChoices(ir.MatchStaticSubject(s)))
		for cix := 0; cix < ir.MatchCaseCount(s); cix++ {
			for _, t := range ir.MatchCaseTags(s, cix) {
				if t < 0 || t >= alts {
					return fmt.Errorf("case %d: tag %d out of range", cix, t)
				}
			}
			if err := validateBlock(ir, owner, ir.MatchCaseCode(s, cix)); err != nil {
				return fmt.Errorf("case %d: %w", cix, err)
			}
		}
	}
	return nil
}

// hasReceivers reports whether a dynamic access on target can find an
// instance at runtime: value targets always can, ref targets through an
// instantiated heir.
func hasReceivers(ir IR, target ClazzID) bool {
	return !ir.ClazzIsRef(target) || len(ir.ClazzInstantiatedHeirs(target)) > 0
}
