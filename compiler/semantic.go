package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/plume/pkg/symbols"
)

var log = commonlog.GetLogger("plume.compiler")

// EntryName is the name of the function holding a program's top-level code.
const EntryName = "main"

// ---------------------------------------------------------------------------
// Analysis: the output of resolution
// ---------------------------------------------------------------------------

// Analysis holds the symbol table built for a Program and the diagnostics
// produced while building it.
type Analysis struct {
	Table       *symbols.Table
	Entry       *symbols.FunctionSymbol
	Diagnostics Diagnostics

	// Decls maps every user function to its declaration.
	Decls map[*symbols.FunctionSymbol]*FunctionDecl
}

// Var returns the variable bound to r.
func (a *Analysis) Var(r Resolution) (*symbols.VarSymbol, error) {
	id, ok := r.Symbol()
	if !ok {
		return nil, fmt.Errorf("%w: unresolved variable reference", ErrInternal)
	}
	v, ok := a.Table.Symbol(id).(*symbols.VarSymbol)
	if !ok {
		return nil, fmt.Errorf("%w: symbol %d is not a variable", ErrInternal, id)
	}
	return v, nil
}

// Function returns the function bound to r.
func (a *Analysis) Function(r Resolution) (*symbols.FunctionSymbol, error) {
	id, ok := r.Symbol()
	if !ok {
		return nil, fmt.Errorf("%w: unresolved function reference", ErrInternal)
	}
	fn, ok := a.Table.Symbol(id).(*symbols.FunctionSymbol)
	if !ok {
		return nil, fmt.Errorf("%w: symbol %d is not a function", ErrInternal, id)
	}
	return fn, nil
}

// Resolve runs both resolver passes over prog: Enter declares every function
// and variable in the scope of its enclosing block, then RefResolver binds
// every reference. prog is updated in place.
func Resolve(prog *Program, builtins *symbols.BuiltinTable) *Analysis {
	if builtins == nil {
		builtins = symbols.Builtins
	}
	a := &Analysis{
		Table: symbols.NewTable(builtins),
		Decls: make(map[*symbols.FunctionSymbol]*FunctionDecl),
	}

	e := &enter{analysis: a}
	e.program(prog)

	r := &refResolver{analysis: a}
	r.program(prog)

	log.Debugf("resolved program: %d scopes, %d diagnostics", a.Table.ScopeCount(), len(a.Diagnostics))
	return a
}

func (a *Analysis) errorAt(node Node, format string, args ...any) {
	a.Diagnostics = append(a.Diagnostics, Diagnostic{
		Severity: SeverityError,
		Pos:      node.Span().Start,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (a *Analysis) warnAt(node Node, format string, args ...any) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Pos:      node.Span().Start,
		Message:  fmt.Sprintf(format, args...),
	}
	a.Diagnostics = append(a.Diagnostics, d)
	log.Warning(d.String())
}

// returnTypeOf infers the return type of an unannotated body: any if some
// return statement carries a value, void otherwise. Nested functions are not
// searched.
func returnTypeOf(stmts []Stmt) symbols.Type {
	for _, s := range stmts {
		if returnsValue(s) {
			return symbols.Any
		}
	}
	return symbols.Void
}

func returnsValue(s Stmt) bool {
	switch s := s.(type) {
	case *ReturnStmt:
		return s.Value != nil
	case *Block:
		return returnTypeOf(s.Stmts) != symbols.Void
	case *IfStmt:
		return returnsValue(s.Then) || (s.Else != nil && returnsValue(s.Else))
	case *ForStmt:
		return s.Body != nil && returnsValue(s.Body)
	}
	return false
}

// ---------------------------------------------------------------------------
// Enter: declaration pass
// ---------------------------------------------------------------------------

type enter struct {
	analysis *Analysis
	scope    symbols.ScopeID
	fn       *symbols.FunctionSymbol
}

func (e *enter) program(prog *Program) {
	t := e.analysis.Table
	main := symbols.NewFunctionSymbol(EntryName, symbols.NewFunctionType(returnTypeOf(prog.Stmts)))
	prog.Sym = Resolved(t.Add(main))
	prog.Scope = t.NewScope(symbols.NoScope)
	e.analysis.Entry = main

	e.scope, e.fn = prog.Scope, main
	e.stmts(prog.Stmts)
}

func (e *enter) stmts(stmts []Stmt) {
	for _, s := range stmts {
		e.stmt(s)
	}
}

func (e *enter) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		s.Scope = e.analysis.Table.NewScope(e.scope)
		saved := e.scope
		e.scope = s.Scope
		e.stmts(s.Stmts)
		e.scope = saved

	case *FunctionDecl:
		e.function(s)

	case *VariableDecl:
		e.variable(s)

	case *IfStmt:
		e.stmt(s.Then)
		if s.Else != nil {
			e.stmt(s.Else)
		}

	case *ForStmt:
		s.Scope = e.analysis.Table.NewScope(e.scope)
		saved := e.scope
		e.scope = s.Scope
		if s.Init != nil {
			e.stmt(s.Init)
		}
		if s.Body != nil {
			e.stmt(s.Body)
		}
		e.scope = saved
	}
}

// declare binds name in the current scope. Redeclaration is allowed; the last
// declaration wins and a warning is recorded.
func (e *enter) declare(node Node, name string, sym symbols.Symbol) symbols.SymbolID {
	id, replaced := e.analysis.Table.Enter(e.scope, name, sym)
	if replaced {
		e.analysis.warnAt(node, "duplicate declaration of '%s'; the later one wins", name)
	}
	return id
}

func (e *enter) function(d *FunctionDecl) {
	params := make([]symbols.Type, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.Type
		if params[i] == nil {
			params[i] = symbols.Any
		}
	}
	ret := d.ReturnType
	if ret == nil {
		ret = symbols.Void
		if d.Body != nil {
			ret = returnTypeOf(d.Body.Stmts)
		}
	}

	fn := symbols.NewFunctionSymbol(d.Name, symbols.NewFunctionType(ret, params...))
	d.Sym = Resolved(e.declare(d, d.Name, fn))
	e.analysis.Decls[fn] = d

	d.Scope = e.analysis.Table.NewScope(e.scope)
	savedScope, savedFn := e.scope, e.fn
	e.scope, e.fn = d.Scope, fn

	for i, p := range d.Params {
		v := symbols.NewVarSymbol(p.Name, params[i])
		fn.AddVar(v)
		p.Sym = Resolved(e.declare(p, p.Name, v))
	}
	if d.Body != nil {
		d.Body.Scope = d.Scope
		e.stmts(d.Body.Stmts)
	} else {
		e.analysis.warnAt(d, "function '%s' has no body", d.Name)
	}

	e.scope, e.fn = savedScope, savedFn
}

func (e *enter) variable(d *VariableDecl) {
	v := symbols.NewVarSymbol(d.Name, d.Type)
	e.fn.AddVar(v)
	d.Sym = Resolved(e.declare(d, d.Name, v))
}

// ---------------------------------------------------------------------------
// RefResolver: reference pass
// ---------------------------------------------------------------------------

type refResolver struct {
	analysis *Analysis
	scope    symbols.ScopeID
	fn       *symbols.FunctionSymbol
}

func (r *refResolver) program(prog *Program) {
	r.scope, r.fn = prog.Scope, r.analysis.Entry
	r.stmts(prog.Stmts)
}

func (r *refResolver) stmts(stmts []Stmt) {
	for _, s := range stmts {
		r.stmt(s)
	}
}

func (r *refResolver) withScope(scope symbols.ScopeID, f func()) {
	saved := r.scope
	r.scope = scope
	f()
	r.scope = saved
}

func (r *refResolver) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		r.withScope(s.Scope, func() { r.stmts(s.Stmts) })

	case *FunctionDecl:
		fn, err := r.analysis.Function(s.Sym)
		if err != nil {
			r.analysis.errorAt(s, "function '%s' was not declared", s.Name)
			return
		}
		savedFn := r.fn
		r.fn = fn
		if s.Body != nil {
			r.withScope(s.Scope, func() { r.stmts(s.Body.Stmts) })
		}
		r.fn = savedFn

	case *VariableDecl:
		if s.Init == nil {
			return
		}
		t := r.expr(s.Init, true)
		if s.Type == nil && (t == symbols.Integer || t == symbols.String) {
			if v, err := r.analysis.Var(s.Sym); err == nil {
				v.SetType(t)
			}
		}

	case *ExprStmt:
		r.expr(s.X, false)

	case *ReturnStmt:
		if s.Value == nil {
			return
		}
		if !r.fn.FuncType().ReturnsValue() {
			r.analysis.errorAt(s, "function '%s' is void but returns a value", r.fn.Name())
		}
		r.expr(s.Value, true)

	case *IfStmt:
		r.expr(s.Cond, true)
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}

	case *ForStmt:
		r.withScope(s.Scope, func() {
			if s.Init != nil {
				r.stmt(s.Init)
			}
			if s.Cond != nil {
				r.expr(s.Cond, true)
			}
			if s.Inc != nil {
				r.expr(s.Inc, false)
			}
			if s.Body != nil {
				r.stmt(s.Body)
			}
		})

	default:
		r.analysis.errorAt(s, "unsupported statement %T", s)
	}
}

// expr resolves e and returns its static type. wantValue is false when the
// value is discarded.
func (r *refResolver) expr(e Expr, wantValue bool) symbols.Type {
	switch e := e.(type) {
	case *IntegerLiteral:
		return symbols.Integer

	case *StringLiteral:
		return symbols.String

	case *Variable:
		return r.variable(e)

	case *Assignment:
		t := r.variable(e.Target)
		vt := r.expr(e.Value, true)
		switch e.Op {
		case "=":
			return vt
		case "+=":
			if t == symbols.String || vt == symbols.String {
				return symbols.String
			}
			return symbols.Integer
		case "-=", "*=", "/=", "%=":
			return symbols.Integer
		}
		r.analysis.errorAt(e, "unsupported assignment operator '%s'", e.Op)
		return symbols.Any

	case *Binary:
		xt := r.expr(e.X, true)
		yt := r.expr(e.Y, true)
		switch {
		case e.Op == "+" && (xt == symbols.String || yt == symbols.String):
			e.Type = symbols.String
		case isArithmetic(e.Op):
			e.Type = symbols.Integer
		case isComparison(e.Op) || isLogical(e.Op):
			e.Type = symbols.Boolean
		default:
			r.analysis.errorAt(e, "unsupported binary operator '%s'", e.Op)
			e.Type = symbols.Any
		}
		return e.Type

	case *Unary:
		switch e.Op {
		case "++", "--":
			v, ok := e.X.(*Variable)
			if !ok {
				r.analysis.errorAt(e, "operand of '%s' must be a variable", e.Op)
				return symbols.Integer
			}
			r.variable(v)
		case "-", "+":
			r.expr(e.X, true)
		default:
			r.analysis.errorAt(e, "unsupported unary operator '%s'", e.Op)
		}
		return symbols.Integer

	case *FunctionCall:
		return r.call(e, wantValue)
	}

	r.analysis.errorAt(e, "unsupported expression %T", e)
	return symbols.Any
}

func (r *refResolver) variable(v *Variable) symbols.Type {
	t := r.analysis.Table
	id, ok := t.LookupCascade(r.scope, v.Name)
	if !ok {
		r.analysis.errorAt(v, "undefined variable '%s'", v.Name)
		return symbols.Any
	}
	vs, ok := t.Symbol(id).(*symbols.VarSymbol)
	if !ok {
		r.analysis.errorAt(v, "'%s' is a function, not a variable", v.Name)
		return symbols.Any
	}
	if vs.Owner != r.fn {
		r.analysis.errorAt(v, "'%s' is a local of enclosing function '%s'; closures are not supported",
			v.Name, vs.Owner.Name())
		return symbols.Any
	}
	v.Sym = Resolved(id)
	return vs.Type()
}

// call resolves a call by lexical lookup first and the built-in table second.
func (r *refResolver) call(c *FunctionCall, wantValue bool) symbols.Type {
	for _, arg := range c.Args {
		r.expr(arg, true)
	}

	t := r.analysis.Table
	id, ok := t.LookupCascade(r.scope, c.Name)
	if !ok {
		id, ok = t.LookupBuiltin(c.Name)
	}
	if !ok {
		r.analysis.errorAt(c, "undefined function '%s'", c.Name)
		return symbols.Any
	}
	fn, ok := t.Symbol(id).(*symbols.FunctionSymbol)
	if !ok {
		r.analysis.errorAt(c, "'%s' is a variable, not a function", c.Name)
		return symbols.Any
	}

	if len(c.Args) != fn.ParamCount() {
		r.analysis.errorAt(c, "'%s' expects %d arguments, got %d", c.Name, fn.ParamCount(), len(c.Args))
	}
	if wantValue && !fn.FuncType().ReturnsValue() {
		r.analysis.errorAt(c, "'%s' does not return a value", c.Name)
	}
	c.Sym = Resolved(id)
	return fn.FuncType().ReturnType
}
