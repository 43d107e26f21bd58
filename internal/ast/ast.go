// Package ast models DM procedure bodies as a closed set of statement and
// expression nodes. Nodes own their children; nothing is shared between
// nodes and there are no back references.
package ast

import (
	"avulto/internal/constant"
	"avulto/internal/dmpath"
	"avulto/internal/source"
)

// Node is implemented by every statement and expression.
type Node interface {
	Kind() Kind
	Loc() source.Location
}

// Statement nodes appear in procedure bodies.
type Statement interface {
	Node
	statementNode()
}

// Expression nodes compute values.
type Expression interface {
	Node
	expressionNode()
}

// Base carries the location every node has.
type Base struct {
	Pos source.Location
}

// At is shorthand for Base{Pos: loc}.
func At(loc source.Location) Base { return Base{Pos: loc} }

func (b Base) Loc() source.Location { return b.Pos }

// ---- Statements ----

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	Base
	X Expression
}

type Return struct {
	Base
	Value Expression // nil for a bare return
}

// Var declares a local: var/<Type>/<Name> = <Value>.
type Var struct {
	Base
	Name  string
	Type  dmpath.Path
	Value Expression
}

// Vars is a comma-separated declaration list: var/a, b = 2.
type Vars struct {
	Base
	Decls []*Var
}

type IfArm struct {
	Cond Expression
	Body []Statement
}

// If holds the if / else if chain; Else is nil when absent.
type If struct {
	Base
	Arms []IfArm
	Else []Statement
}

type While struct {
	Base
	Cond Expression
	Body []Statement
}

type DoWhile struct {
	Base
	Body []Statement
	Cond Expression
}

// ForInfinite is for() with no clauses.
type ForInfinite struct {
	Base
	Body []Statement
}

// ForLoop is the C-style for(init; test; inc). Any clause may be nil.
type ForLoop struct {
	Base
	Init Statement
	Test Expression
	Inc  Statement
	Body []Statement
}

// ForList iterates a container: for(var/obj/O in L).
type ForList struct {
	Base
	Name    string
	VarType dmpath.Path
	Declare bool
	In      Expression // nil iterates the world
	Body    []Statement
}

// ForRange counts: for(var/i = 1 to 10 step 2).
type ForRange struct {
	Base
	Name    string
	VarType dmpath.Path
	Declare bool
	Start   Expression
	End     Expression
	Step    Expression
	Body    []Statement
}

// Case matches a single value, or a range when End is set.
type Case struct {
	Start Expression
	End   Expression
}

type SwitchCase struct {
	Cases []Case
	Body  []Statement
}

type Switch struct {
	Base
	Value   Expression
	Cases   []SwitchCase
	Default []Statement
}

type Break struct {
	Base
	Label string
}

type Continue struct {
	Base
	Label string
}

type Goto struct {
	Base
	Label string
}

type Label struct {
	Base
	Name string
	Body []Statement
}

type Del struct {
	Base
	Value Expression
}

type Spawn struct {
	Base
	Delay Expression
	Body  []Statement
}

type TryCatch struct {
	Base
	Try       []Statement
	CatchVar  string
	CatchType dmpath.Path
	Catch     []Statement
}

type Throw struct {
	Base
	Value Expression
}

// Crash is CRASH(message).
type Crash struct {
	Base
	Value Expression
}

// SettingMode distinguishes set x = y from set x in y.
type SettingMode int

const (
	SettingAssign SettingMode = iota
	SettingIn
)

// Setting is a verb setting such as set name = "Use".
type Setting struct {
	Base
	Name  string
	Mode  SettingMode
	Value Expression
}

// ---- Expressions ----

type Constant struct {
	Base
	Value constant.Value
}

type Identifier struct {
	Base
	Name string
}

// ListEntry is an element of list(); Key is nil for unkeyed entries.
type ListEntry struct {
	Key   Expression
	Value Expression
}

type List struct {
	Base
	Entries []ListEntry
}

type BinaryOp struct {
	Base
	Op  BinaryOperator
	Lhs Expression
	Rhs Expression
}

type AssignOp struct {
	Base
	Op  AssignOperator
	Lhs Expression
	Rhs Expression
}

type TernaryOp struct {
	Base
	Cond Expression
	If   Expression
	Else Expression
}

type UnaryOp struct {
	Base
	Op   UnaryOperator
	Expr Expression
}

// StringPart is literal text, or an embedded expression when Expr is set.
type StringPart struct {
	Text string
	Expr Expression
}

// InterpString is a string with embedded [expressions].
type InterpString struct {
	Base
	Parts []StringPart
}

type Locate struct {
	Base
	Args []Expression
	In   Expression
}

type PrefabVar struct {
	Name  string
	Value Expression
}

// Prefab is a path literal with variable overrides: /obj/foo{a = 1}.
type Prefab struct {
	Base
	Path dmpath.Path
	Vars []PrefabVar
}

type Index struct {
	Base
	Expr  Expression
	Index Expression
	Safe  bool // ?[
}

// Field is a runtime member access: a.b, a?.b or a:b.
type Field struct {
	Base
	Expr Expression
	Name string
	Safe bool
}

// StaticField is a compile-time access: a::b.
type StaticField struct {
	Base
	Expr Expression
	Name string
}

// Call invokes a proc by name. Target is nil for a bare call such as
// foo(); otherwise it is the expression before the dot.
type Call struct {
	Base
	Target Expression
	Name   string
	Args   []Expression
	Safe   bool
}

// SelfCall is .(args), re-invoking the current proc.
type SelfCall struct {
	Base
	Args []Expression
}

// ParentCall is ..(args).
type ParentCall struct {
	Base
	Args []Expression
}

// ExternalCall is call_ext(library, function)(args).
type ExternalCall struct {
	Base
	Library  Expression
	Function Expression
	Args     []Expression
}

// DynamicCall is call(proc_ref)(args) or call(object, "name")(args).
type DynamicCall struct {
	Base
	Callee []Expression
	Args   []Expression
}

type NewPrefab struct {
	Base
	Prefab *Prefab
	Args   []Expression
}

// NewImplicit is new(args) with the type inferred from the assignee.
type NewImplicit struct {
	Base
	Args []Expression
}

// NewExpr is new with a computed type: new some_type(args).
type NewExpr struct {
	Base
	Type Expression
	Args []Expression
}

// Input is input(args) as <types> in <list>.
type Input struct {
	Base
	Args  []Expression
	Types []string
	In    Expression
}

// PickEntry is one choice of pick(); Weight is nil when unweighted.
type PickEntry struct {
	Weight Expression
	Value  Expression
}

type Pick struct {
	Base
	Entries []PickEntry
}

func (*ExprStmt) Kind() Kind    { return KindExpr }
func (*Return) Kind() Kind      { return KindReturn }
func (*Var) Kind() Kind         { return KindVar }
func (*Vars) Kind() Kind        { return KindVars }
func (*If) Kind() Kind          { return KindIf }
func (*While) Kind() Kind       { return KindWhile }
func (*DoWhile) Kind() Kind     { return KindDoWhile }
func (*ForInfinite) Kind() Kind { return KindForInfinite }
func (*ForLoop) Kind() Kind     { return KindForLoop }
func (*ForList) Kind() Kind     { return KindForList }
func (*ForRange) Kind() Kind    { return KindForRange }
func (*Switch) Kind() Kind      { return KindSwitch }
func (*Break) Kind() Kind       { return KindBreak }
func (*Continue) Kind() Kind    { return KindContinue }
func (*Goto) Kind() Kind        { return KindGoto }
func (*Label) Kind() Kind       { return KindLabel }
func (*Del) Kind() Kind         { return KindDel }
func (*Spawn) Kind() Kind       { return KindSpawn }
func (*TryCatch) Kind() Kind    { return KindTryCatch }
func (*Throw) Kind() Kind       { return KindThrow }
func (*Crash) Kind() Kind       { return KindCrash }
func (*Setting) Kind() Kind     { return KindSetting }

func (*Constant) Kind() Kind     { return KindConstant }
func (*Identifier) Kind() Kind   { return KindIdentifier }
func (*List) Kind() Kind         { return KindList }
func (*BinaryOp) Kind() Kind     { return KindBinaryOp }
func (*AssignOp) Kind() Kind     { return KindAssignOp }
func (*TernaryOp) Kind() Kind    { return KindTernaryOp }
func (*UnaryOp) Kind() Kind      { return KindUnaryOp }
func (*InterpString) Kind() Kind { return KindInterpString }
func (*Locate) Kind() Kind       { return KindLocate }
func (*Prefab) Kind() Kind       { return KindPrefab }
func (*Index) Kind() Kind        { return KindIndex }
func (*Field) Kind() Kind        { return KindField }
func (*StaticField) Kind() Kind  { return KindStaticField }
func (*Call) Kind() Kind         { return KindCall }
func (*SelfCall) Kind() Kind     { return KindSelfCall }
func (*ParentCall) Kind() Kind   { return KindParentCall }
func (*ExternalCall) Kind() Kind { return KindExternalCall }
func (*DynamicCall) Kind() Kind  { return KindDynamicCall }
func (*NewPrefab) Kind() Kind    { return KindNewPrefab }
func (*NewImplicit) Kind() Kind  { return KindNewImplicit }
func (*NewExpr) Kind() Kind      { return KindNewExpr }
func (*Input) Kind() Kind        { return KindInput }
func (*Pick) Kind() Kind         { return KindPick }

func (*ExprStmt) statementNode()    {}
func (*Return) statementNode()      {}
func (*Var) statementNode()         {}
func (*Vars) statementNode()        {}
func (*If) statementNode()          {}
func (*While) statementNode()       {}
func (*DoWhile) statementNode()     {}
func (*ForInfinite) statementNode() {}
func (*ForLoop) statementNode()     {}
func (*ForList) statementNode()     {}
func (*ForRange) statementNode()    {}
func (*Switch) statementNode()      {}
func (*Break) statementNode()       {}
func (*Continue) statementNode()    {}
func (*Goto) statementNode()        {}
func (*Label) statementNode()       {}
func (*Del) statementNode()         {}
func (*Spawn) statementNode()       {}
func (*TryCatch) statementNode()    {}
func (*Throw) statementNode()       {}
func (*Crash) statementNode()       {}
func (*Setting) statementNode()     {}

func (*Constant) expressionNode()     {}
func (*Identifier) expressionNode()   {}
func (*List) expressionNode()         {}
func (*BinaryOp) expressionNode()     {}
func (*AssignOp) expressionNode()     {}
func (*TernaryOp) expressionNode()    {}
func (*UnaryOp) expressionNode()      {}
func (*InterpString) expressionNode() {}
func (*Locate) expressionNode()       {}
func (*Prefab) expressionNode()       {}
func (*Index) expressionNode()        {}
func (*Field) expressionNode()        {}
func (*StaticField) expressionNode()  {}
func (*Call) expressionNode()         {}
func (*SelfCall) expressionNode()     {}
func (*ParentCall) expressionNode()   {}
func (*ExternalCall) expressionNode() {}
func (*DynamicCall) expressionNode()  {}
func (*NewPrefab) expressionNode()    {}
func (*NewImplicit) expressionNode()  {}
func (*NewExpr) expressionNode()      {}
func (*Input) expressionNode()        {}
func (*Pick) expressionNode()         {}
