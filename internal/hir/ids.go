package hir

// FeatureID identifies a feature within a Program.
type FeatureID uint32

// TypeID identifies an interned type within a TypeTable.
type TypeID uint32

// ExprID identifies an expression node; mono keys per-site data by it.
type ExprID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoFeatureID FeatureID = 0
	NoTypeID    TypeID    = 0
	NoExprID    ExprID    = 0
)

// NoSelect marks calls and clazzes that do not pick one field of an open generic.
const NoSelect = -1

func (id FeatureID) IsValid() bool { return id != NoFeatureID }
func (id TypeID) IsValid() bool    { return id != NoTypeID }
func (id ExprID) IsValid() bool    { return id != NoExprID }
