package compiler

import "github.com/chazu/plume/pkg/symbols"

// ---------------------------------------------------------------------------
// Builders: construct AST nodes without a parser
// ---------------------------------------------------------------------------

// These constructors leave spans zero. Callers that want positioned
// diagnostics can set SpanVal afterwards or use At.

// At sets the start position of n and returns it.
func At[N Node](n N, line, column int) N {
	setStart(n, Position{Line: line, Column: column})
	return n
}

func setStart(n Node, p Position) {
	switch n := n.(type) {
	case *Program:
		n.SpanVal.Start = p
	case *Block:
		n.SpanVal.Start = p
	case *FunctionDecl:
		n.SpanVal.Start = p
	case *VariableDecl:
		n.SpanVal.Start = p
	case *ExprStmt:
		n.SpanVal.Start = p
	case *ReturnStmt:
		n.SpanVal.Start = p
	case *IfStmt:
		n.SpanVal.Start = p
	case *ForStmt:
		n.SpanVal.Start = p
	case *IntegerLiteral:
		n.SpanVal.Start = p
	case *StringLiteral:
		n.SpanVal.Start = p
	case *Variable:
		n.SpanVal.Start = p
	case *Assignment:
		n.SpanVal.Start = p
	case *Binary:
		n.SpanVal.Start = p
	case *Unary:
		n.SpanVal.Start = p
	case *FunctionCall:
		n.SpanVal.Start = p
	}
}

// Prog builds a program from top-level statements.
func Prog(stmts ...Stmt) *Program { return &Program{Stmts: stmts} }

// Body builds a block.
func Body(stmts ...Stmt) *Block { return &Block{Stmts: stmts} }

// Func declares an untyped function. Its return type is inferred.
func Func(name string, params []string, body ...Stmt) *FunctionDecl {
	d := &FunctionDecl{Name: name, Body: Body(body...)}
	for _, p := range params {
		d.Params = append(d.Params, &VariableDecl{Name: p})
	}
	return d
}

// TypedFunc declares a function with explicit parameter and return types.
func TypedFunc(name string, params []*VariableDecl, ret symbols.Type, body ...Stmt) *FunctionDecl {
	return &FunctionDecl{Name: name, Params: params, ReturnType: ret, Body: Body(body...)}
}

// Param builds a typed parameter declaration.
func Param(name string, t symbols.Type) *VariableDecl {
	return &VariableDecl{Name: name, Type: t}
}

// Let declares a variable with an initializer. init may be nil.
func Let(name string, init Expr) *VariableDecl {
	return &VariableDecl{Name: name, Init: init}
}

// Do wraps an expression as a statement.
func Do(x Expr) *ExprStmt { return &ExprStmt{X: x} }

// Return builds a return statement. value may be nil.
func Return(value Expr) *ReturnStmt { return &ReturnStmt{Value: value} }

// If builds an if statement. els may be nil.
func If(cond Expr, then, els Stmt) *IfStmt {
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

// For builds a for loop. Any header part may be nil.
func For(init Stmt, cond, inc Expr, body Stmt) *ForStmt {
	return &ForStmt{Init: init, Cond: cond, Inc: inc, Body: body}
}

// Int builds an integer literal.
func Int(v int64) *IntegerLiteral { return &IntegerLiteral{Value: v} }

// Str builds a string literal.
func Str(v string) *StringLiteral { return &StringLiteral{Value: v} }

// Var builds a variable reference.
func Var(name string) *Variable { return &Variable{Name: name} }

// Assign builds name op value, where op is "=" or a compound operator.
func Assign(name, op string, value Expr) *Assignment {
	return &Assignment{Target: Var(name), Op: op, Value: value}
}

// Bin builds x op y.
func Bin(x Expr, op string, y Expr) *Binary { return &Binary{Op: op, X: x, Y: y} }

// Neg builds -x.
func Neg(x Expr) *Unary { return &Unary{Op: "-", X: x, Prefix: true} }

// Inc builds ++name or name++.
func Inc(name string, prefix bool) *Unary {
	return &Unary{Op: "++", X: Var(name), Prefix: prefix}
}

// Dec builds --name or name--.
func Dec(name string, prefix bool) *Unary {
	return &Unary{Op: "--", X: Var(name), Prefix: prefix}
}

// Call builds name(args...).
func Call(name string, args ...Expr) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

// Println builds a println(x) statement.
func Println(x Expr) *ExprStmt { return Do(Call(symbols.PrintlnName, x)) }
