package fuir

import (
	"fmt"

	"airgen/internal/hir"
)

// ExprKind is the instruction kind of a site.
type ExprKind uint8

const (
	// ExprNone marks the end of a code block; it is never within code.
	ExprNone ExprKind = iota
	ExprAdrOf
	ExprAssign
	ExprBox
	ExprCall
	ExprCurrent
	ExprComment
	ExprConst
	ExprDup
	ExprMatch
	ExprTag
	ExprEnv
	ExprPop
	ExprOuter
	exprKindCount
)

var exprKindNames = [...]string{
	ExprNone:    "None",
	ExprAdrOf:   "AdrOf",
	ExprAssign:  "Assign",
	ExprBox:     "Box",
	ExprCall:    "Call",
	ExprCurrent: "Current",
	ExprComment: "Comment",
	ExprConst:   "Const",
	ExprDup:     "Dup",
	ExprMatch:   "Match",
	ExprTag:     "Tag",
	ExprEnv:     "Env",
	ExprPop:     "Pop",
	ExprOuter:   "Outer",
}

func (k ExprKind) String() string {
	if k < exprKindCount {
		return exprKindNames[k]
	}
	return fmt.Sprintf("ExprKind(%d)", k)
}

// ParseExprKind is the inverse of ExprKind.String.
func ParseExprKind(s string) (ExprKind, bool) {
	for k := ExprNone; k < exprKindCount; k++ {
		if exprKindNames[k] == s {
			return k, true
		}
	}
	return ExprNone, false
}

// ClazzKind classifies clazzes for backends.
type ClazzKind uint8

const (
	KindRoutine ClazzKind = iota
	KindField
	KindIntrinsic
	KindAbstract
	KindChoice
	KindNative
	KindTypeParameter
)

func (k ClazzKind) String() string {
	switch k {
	case KindRoutine:
		return "Routine"
	case KindField:
		return "Field"
	case KindIntrinsic:
		return "Intrinsic"
	case KindAbstract:
		return "Abstract"
	case KindChoice:
		return "Choice"
	case KindNative:
		return "Native"
	case KindTypeParameter:
		return "TypeParameter"
	}
	return fmt.Sprintf("ClazzKind(%d)", k)
}

// kindOf maps a feature to its clazz kind; a missing feature is the error clazz.
func kindOf(f *hir.Feature) ClazzKind {
	if f == nil {
		return KindAbstract
	}
	switch f.Kind {
	case hir.FeatureRoutine:
		return KindRoutine
	case hir.FeatureField:
		return KindField
	case hir.FeatureIntrinsic:
		return KindIntrinsic
	case hir.FeatureChoice:
		return KindChoice
	case hir.FeatureNative:
		return KindNative
	case hir.FeatureTypeParameter, hir.FeatureOpenTypeParameter:
		return KindTypeParameter
	default:
		return KindAbstract
	}
}

// LifeTime is a conservative estimate of how long an instance lives.
type LifeTime uint8

const (
	// LifeUndefined: calling the clazz creates no instance.
	LifeUndefined LifeTime = iota
	// LifeCall: the instance is unreachable once the call returned.
	LifeCall
	// LifeUnknown: the instance may escape.
	LifeUnknown
)

func (l LifeTime) String() string {
	switch l {
	case LifeUndefined:
		return "Undefined"
	case LifeCall:
		return "Call"
	case LifeUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("LifeTime(%d)", l)
}

// ContractKind selects pre- or postconditions.
type ContractKind uint8

const (
	ContractPre ContractKind = iota
	ContractPost
)

func (k ContractKind) String() string {
	if k == ContractPost {
		return "post"
	}
	return "pre"
}
