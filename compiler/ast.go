package compiler

import "github.com/chazu/plume/pkg/symbols"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Plume
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Resolution is the symbol slot of a declaration or reference. It holds an
// index into the compilation's symbols.Table, never the symbol itself.
type Resolution struct {
	id       symbols.SymbolID
	resolved bool
}

// Unresolved is the zero Resolution.
var Unresolved = Resolution{id: symbols.NoSymbol}

// Resolved binds a slot to a symbol.
func Resolved(id symbols.SymbolID) Resolution {
	return Resolution{id: id, resolved: true}
}

// Symbol returns the bound symbol ID.
func (r Resolution) Symbol() (symbols.SymbolID, bool) {
	return r.id, r.resolved
}

// IsResolved reports whether the slot has been bound.
func (r Resolution) IsResolved() bool { return r.resolved }

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Program is a compilation unit. Its top-level statements become the body of
// the entry function.
type Program struct {
	SpanVal Span
	Stmts   []Stmt

	Sym   Resolution      // entry function, filled by Enter
	Scope symbols.ScopeID // filled by Enter
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// Block represents { stmts }.
type Block struct {
	SpanVal Span
	Stmts   []Stmt

	Scope symbols.ScopeID
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// FunctionDecl represents function name(params): ReturnType { body }.
// A nil ReturnType is inferred from the body's return statements.
type FunctionDecl struct {
	SpanVal    Span
	Name       string
	Params     []*VariableDecl
	ReturnType symbols.Type
	Body       *Block

	Sym   Resolution
	Scope symbols.ScopeID // holds the parameters and the body's top level
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}
func (n *FunctionDecl) stmt()      {}

// VariableDecl represents let name: Type = init. Parameters are also
// VariableDecls without an initializer.
type VariableDecl struct {
	SpanVal Span
	Name    string
	Type    symbols.Type // nil: inferred from Init, else any
	Init    Expr         // may be nil

	Sym Resolution
}

func (n *VariableDecl) Span() Span { return n.SpanVal }
func (n *VariableDecl) node()      {}
func (n *VariableDecl) stmt()      {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// ReturnStmt represents return [value].
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // may be nil
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// IfStmt represents if (cond) then [else else].
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // may be nil
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// ForStmt represents for (init; cond; inc) body. Any header part may be nil.
type ForStmt struct {
	SpanVal Span
	Init    Stmt // *VariableDecl or *ExprStmt
	Cond    Expr
	Inc     Expr
	Body    Stmt

	Scope symbols.ScopeID
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntegerLiteral represents an integer literal.
type IntegerLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntegerLiteral) Span() Span { return n.SpanVal }
func (n *IntegerLiteral) node()      {}
func (n *IntegerLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// Variable represents a variable reference.
type Variable struct {
	SpanVal Span
	Name    string

	Sym Resolution
}

func (n *Variable) Span() Span { return n.SpanVal }
func (n *Variable) node()      {}
func (n *Variable) expr()      {}

// Assignment represents name = value, or a compound form such as name += value.
type Assignment struct {
	SpanVal Span
	Target  *Variable
	Op      string // "=", "+=", "-=", "*=", "/=", "%="
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) expr()      {}

// Binary represents x op y.
type Binary struct {
	SpanVal Span
	Op      string
	X       Expr
	Y       Expr

	// Type is the static result type, set by the resolver. A string-typed
	// "+" compiles to sadd.
	Type symbols.Type
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Unary represents a prefix or postfix operator: ++, --, - or +.
type Unary struct {
	SpanVal Span
	Op      string
	X       Expr
	Prefix  bool
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// FunctionCall represents name(args).
type FunctionCall struct {
	SpanVal Span
	Name    string
	Args    []Expr

	Sym Resolution
}

func (n *FunctionCall) Span() Span { return n.SpanVal }
func (n *FunctionCall) node()      {}
func (n *FunctionCall) expr()      {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// isComparison reports whether op yields 0 or 1 from two integers.
func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// isLogical reports whether op short-circuits.
func isLogical(op string) bool {
	return op == "&&" || op == "||"
}

// isArithmetic reports whether op is a two-operand arithmetic operator.
func isArithmetic(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}
