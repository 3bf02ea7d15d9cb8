// Package jack implements the JackC front end: lexing, recursive-descent
// parsing, symbol/type resolution and VM code emission for the Jack
// object-oriented language.
package jack

import (
	"its-hmny.dev/nand2tetris/pkg/source"
	"its-hmny.dev/nand2tetris/pkg/utils"
)

// ----------------------------------------------------------------------------
// General information

// A Jack Program is just a set of multiple classes, in the Jack spec each class is translated
// to its own .vm file (just like Java .class file) so the class is to be considered the top-level
// entity of the program and is mapped to a role equal to module or namespace in other languages.
type Program map[string]Class

// ----------------------------------------------------------------------------
// Classes

// A Class is a list of Vars that contains the state and Subroutines to change said state.
//
// Both Vars and Subroutines come in a static variant (resp. static Variable or function Subroutine)
// where the instance of the class is not scoped to the single object instantiation but to the program
// as a whole.
type Class struct {
	Name        string                              // The class name or id, will also identify the instantiated object type
	Vars        utils.OrderedMap[string, Variable]   // Static and field declarations, in source order
	Subroutines utils.OrderedMap[string, Subroutine] // The subroutines (static or not) associated to the class or object instance
	Loc         source.Location
}

// ----------------------------------------------------------------------------
// Subroutines

// A Subroutine is somewhat like a math function: it takes a series of inputs and returns an output.
//
// As part of its computation (statement evaluation) it may change the state of some variables in the
// program either by direct manipulation of the class' fields (static or not) or by just returning values
// that will influence the program flow once returned to the caller.
type Subroutine struct {
	Name string         // Name/id, with the class id will identify universally the subroutine
	Kind SubroutineKind // Subroutine flavor, determines the codegen prologue (see §4.4)

	ReturnType DataType // The type of value returned by the procedure ('void' for no value)
	ReturnName string   // The class name of the return type, populated only when ReturnType == Object

	Parameters []Variable // Declared parameters, in declaration order (their Arg index depends on Kind)
	Locals     []Variable // Declared 'var' locals, in declaration order

	Statements []Statement // The list of statements to be executed
	Loc        source.Location
}

// SubroutineKind distinguishes the three subroutine flavors; each builds its
// subroutine scope differently (see HandleSubroutine in the Lowerer and the TypeChecker).
type SubroutineKind string

const (
	Method      SubroutineKind = "method"
	Function    SubroutineKind = "function"
	Constructor SubroutineKind = "constructor"
)

// ----------------------------------------------------------------------------
// Statements

// A statement produces a side effect in the program flow, whether by changing a var or jumping
// to another instruction. We declare a shared 'Statement' interface for every statement form, then
// define each one with its specific data.
type Statement interface{ statementNode() }

type DoStmt struct { // Unconditional call, ignores the subroutine's return value
	Call FuncCallExpr
	Loc  source.Location
}

type LetStmt struct { // Variable (or indexed-element) assignment
	Name  string     // The target variable's name
	Index Expression // nil unless the target is an indexed access `name[Index]`
	Rhs   Expression // The expression evaluated and assigned to the target
	Loc   source.Location
}

type ReturnStmt struct { // Returns to the caller, optionally with a value
	Value Expression // nil for a bare `return;`
	Loc   source.Location
}

type IfStmt struct { // Conditional jump construct, forks execution based on a condition
	Cond Expression
	Then []Statement
	Else []Statement // nil when there is no else block
	Loc  source.Location
}

type WhileStmt struct { // Conditional iteration construct
	Cond Expression
	Body []Statement
	Loc  source.Location
}

func (DoStmt) statementNode()     {}
func (LetStmt) statementNode()    {}
func (ReturnStmt) statementNode() {}
func (IfStmt) statementNode()     {}
func (WhileStmt) statementNode()  {}

// ----------------------------------------------------------------------------
// Expressions

// Expressions combine sub-expressions/terms to produce a new value. We declare a shared
// 'Expression' interface for every term/expression form available in Jack.
//
// The grammar is intentionally flat: BinaryExpr.Rhs recurses into the full expression, not
// a higher-precedence sub-grammar, so `a+b*c` parses as `a+(b*c)` (see Parser.parseExpr).
type Expression interface{ expressionNode() }

type IntegerExpr struct { // An integer literal, 0..=32767
	Value uint16
	Loc   source.Location
}

type StringExpr struct { // A string literal
	Value string
	Loc   source.Location
}

// KeywordConstKind distinguishes the four keyword-constant terms (true/false/null/this).
type KeywordConstKind string

const (
	KeywordTrue  KeywordConstKind = "true"
	KeywordFalse KeywordConstKind = "false"
	KeywordNull  KeywordConstKind = "null"
	KeywordThis  KeywordConstKind = "this"
)

type KeywordConstExpr struct {
	Kind KeywordConstKind
	Loc  source.Location
}

type VarExpr struct { // Reads the value of a variable
	Name string
	Loc  source.Location
}

type IndexExpr struct { // Reads a single cell/element of an array-like variable
	Name  string
	Index Expression
	Loc   source.Location
}

type FuncCallExpr struct { // Calls another subroutine, either unqualified or via `recv.name(...)`
	Receiver string // "" when the call has no receiver (implicit `this`, or a same-class function)
	Name     string
	Args     []Expression
	Loc      source.Location
}

// UnaryOp names a unary term operator: arithmetic negation or boolean not.
type UnaryOp string

const (
	UnaryNeg UnaryOp = "-"
	UnaryNot UnaryOp = "~"
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
	Loc     source.Location
}

// ExprType names a binary operator.
type ExprType string

const (
	Plus      ExprType = "+"
	Minus     ExprType = "-"
	Multiply  ExprType = "*"
	Divide    ExprType = "/"
	BoolAnd   ExprType = "&"
	BoolOr    ExprType = "|"
	LessThan  ExprType = "<"
	GreatThan ExprType = ">"
	Equal     ExprType = "="
)

type BinaryExpr struct { // Lhs op Rhs, where Rhs recurses into the (flat) expression grammar
	Op  ExprType
	Lhs Expression
	Rhs Expression
	Loc source.Location
}

func (IntegerExpr) expressionNode()      {}
func (StringExpr) expressionNode()       {}
func (KeywordConstExpr) expressionNode() {}
func (VarExpr) expressionNode()          {}
func (IndexExpr) expressionNode()        {}
func (FuncCallExpr) expressionNode()     {}
func (UnaryExpr) expressionNode()        {}
func (BinaryExpr) expressionNode()       {}

// ----------------------------------------------------------------------------
// Variables

// Variables are containers of value that can be read/written through expressions/statements.
//
// The declared 'Variable' struct accommodates multiple configurations at once:
// - Static & instance fields for classes
// - Local variables, parameters and the synthesized method receiver for subroutines
type Variable struct {
	Name      string   // The var name, acts as identifier in the scope it is declared
	Kind      VarKind  // The symbol kind; determines both scope placement and VM segment
	DataType  DataType // The data type defines how to read or cast the value contained by the variable
	ClassName string   // The additional and specific class type if (DataType == Object)
	Loc       source.Location
}

// VarKind is the Jack symbol-table "kind". Kinds map to VM segments:
// Static→static, Field→this, Arg→argument, Var→local, This→pointer.
type VarKind string

const (
	Static VarKind = "static"
	Field  VarKind = "field"
	Arg    VarKind = "arg"
	Var    VarKind = "var"
	This   VarKind = "this"
)

// DataType is a Jack value's static type. Class(name) types are represented as Object,
// with the class name carried in the owning Variable/Subroutine's ClassName/ReturnName field.
type DataType string

const (
	Int    DataType = "int"
	Char   DataType = "char"
	Bool   DataType = "boolean"
	Void   DataType = "void"
	Object DataType = "object"
)
