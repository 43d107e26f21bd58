package ast

import "fmt"

// Kind identifies a node variant. Visitors register handlers per Kind.
type Kind int

const (
	// Statements.
	KindExpr Kind = iota
	KindReturn
	KindVar
	KindVars
	KindIf
	KindWhile
	KindDoWhile
	KindForInfinite
	KindForLoop
	KindForList
	KindForRange
	KindSwitch
	KindBreak
	KindContinue
	KindGoto
	KindLabel
	KindDel
	KindSpawn
	KindTryCatch
	KindThrow
	KindCrash
	KindSetting

	// Expressions.
	KindConstant
	KindIdentifier
	KindList
	KindBinaryOp
	KindAssignOp
	KindTernaryOp
	KindUnaryOp
	KindInterpString
	KindLocate
	KindPrefab
	KindIndex
	KindField
	KindStaticField
	KindCall
	KindSelfCall
	KindParentCall
	KindExternalCall
	KindNewPrefab
	KindNewImplicit
	KindNewExpr
	KindDynamicCall
	KindInput
	KindPick

	numKinds
)

var kindNames = [numKinds]string{
	KindExpr:         "Expr",
	KindReturn:       "Return",
	KindVar:          "Var",
	KindVars:         "Vars",
	KindIf:           "If",
	KindWhile:        "While",
	KindDoWhile:      "DoWhile",
	KindForInfinite:  "ForInfinite",
	KindForLoop:      "ForLoop",
	KindForList:      "ForList",
	KindForRange:     "ForRange",
	KindSwitch:       "Switch",
	KindBreak:        "Break",
	KindContinue:     "Continue",
	KindGoto:         "Goto",
	KindLabel:        "Label",
	KindDel:          "Del",
	KindSpawn:        "Spawn",
	KindTryCatch:     "TryCatch",
	KindThrow:        "Throw",
	KindCrash:        "Crash",
	KindSetting:      "Setting",
	KindConstant:     "Constant",
	KindIdentifier:   "Identifier",
	KindList:         "List",
	KindBinaryOp:     "BinaryOp",
	KindAssignOp:     "AssignOp",
	KindTernaryOp:    "TernaryOp",
	KindUnaryOp:      "UnaryOp",
	KindInterpString: "InterpString",
	KindLocate:       "Locate",
	KindPrefab:       "Prefab",
	KindIndex:        "Index",
	KindField:        "Field",
	KindStaticField:  "StaticField",
	KindCall:         "Call",
	KindSelfCall:     "SelfCall",
	KindParentCall:   "ParentCall",
	KindExternalCall: "ExternalCall",
	KindNewPrefab:    "NewPrefab",
	KindNewImplicit:  "NewImplicit",
	KindNewExpr:      "NewExpr",
	KindDynamicCall:  "DynamicCall",
	KindInput:        "Input",
	KindPick:         "Pick",
}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsStatement reports whether k names a statement variant.
func (k Kind) IsStatement() bool { return k >= KindExpr && k < KindConstant }

// ParseKind looks a kind up by name, e.g. "Call".
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Kinds returns every variant in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}
