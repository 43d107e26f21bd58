package ast

// UnaryOperator is a prefix or postfix operator.
type UnaryOperator int

const (
	Neg UnaryOperator = iota
	Not
	BitNot
	PreIncr
	PostIncr
	PreDecr
	PostDecr
)

var unaryNames = [...]string{"-", "!", "~", "++", "++", "--", "--"}

func (op UnaryOperator) String() string { return unaryNames[op] }

// Postfix reports whether the operator follows its operand.
func (op UnaryOperator) Postfix() bool { return op == PostIncr || op == PostDecr }

// BinaryOperator is an infix operator.
type BinaryOperator int

const (
	Add BinaryOperator = iota
	Sub
	Mul
	Div
	Pow
	Mod
	FloatMod
	Eq
	NotEq
	Less
	Greater
	LessEq
	GreaterEq
	Equiv
	NotEquiv
	BitAnd
	BitXor
	BitOr
	LShift
	RShift
	And
	Or
	In
	To
)

var binaryNames = [...]string{
	"+", "-", "*", "/", "**", "%", "%%", "==", "!=", "<", ">", "<=", ">=",
	"~=", "~!", "&", "^", "|", "<<", ">>", "&&", "||", "in", "to",
}

func (op BinaryOperator) String() string { return binaryNames[op] }

// AssignOperator is "=" or a compound assignment.
type AssignOperator int

const (
	Assign AssignOperator = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
	AssignFloatMod
	AssignInto
	AssignBitAnd
	AssignAnd
	AssignOr
	AssignBitOr
	AssignBitXor
	AssignLShift
	AssignRShift
)

var assignNames = [...]string{
	"=", "+=", "-=", "*=", "/=", "%=", "%%=", ":=", "&=", "&&=", "||=", "|=", "^=", "<<=", ">>=",
}

func (op AssignOperator) String() string { return assignNames[op] }

// AssignOperatorFor maps source punctuation to an assignment operator.
func AssignOperatorFor(punct string) (AssignOperator, bool) {
	for i, n := range assignNames {
		if n == punct {
			return AssignOperator(i), true
		}
	}
	return 0, false
}
