package compiler

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/symbols"
)

// ---------------------------------------------------------------------------
// Interpreter: reference tree-walking evaluator
// ---------------------------------------------------------------------------

// Interpreter evaluates a resolved Program directly from the tree. It shares
// bytecode.Value and bytecode.Result with the VM and reports the same failure
// codes, so a program's output and result are the same whichever way it runs.
type Interpreter struct {
	Out          io.Writer        // println target; os.Stdout when nil
	Clock        func() time.Time // tick source; time.Now when nil
	MaxCallDepth int              // bytecode.DefaultMaxCallDepth when zero
	Builtins     *symbols.BuiltinTable

	analysis *Analysis
	depth    int
}

// NewInterpreter creates an interpreter writing to out.
func NewInterpreter(out io.Writer) *Interpreter {
	return &Interpreter{Out: out}
}

type failure struct {
	code   bytecode.FailureCode
	fn     string
	detail string
}

type frame struct {
	fn     *symbols.FunctionSymbol
	locals []bytecode.Value
}

// outcome is the control state after a statement.
type outcome struct {
	returned bool
	value    bytecode.Value
	hasValue bool
}

// Run resolves and evaluates prog. A non-nil error means resolution failed
// and the error is the Diagnostics list; runtime failures are reported in
// the Result.
func (in *Interpreter) Run(prog *Program) (bytecode.Result, error) {
	if in.Out == nil {
		in.Out = os.Stdout
	}
	if in.Clock == nil {
		in.Clock = time.Now
	}
	if in.MaxCallDepth <= 0 {
		in.MaxCallDepth = bytecode.DefaultMaxCallDepth
	}

	in.analysis = Resolve(prog, in.Builtins)
	if in.analysis.Diagnostics.HasErrors() {
		return bytecode.Result{}, in.analysis.Diagnostics
	}

	main := in.analysis.Entry
	in.depth = 1
	f := &frame{fn: main, locals: make([]bytecode.Value, len(main.Vars))}
	out, fail := in.body(f, prog.Stmts)
	if fail != nil {
		return bytecode.Result{Failure: fail.code, Function: fail.fn, Detail: fail.detail}, nil
	}
	return bytecode.Result{Value: out.value, HasValue: out.hasValue}, nil
}

// body runs a function body and applies the implicit trailing return.
func (in *Interpreter) body(f *frame, stmts []Stmt) (outcome, *failure) {
	out, fail := in.stmts(f, stmts)
	if fail != nil {
		return outcome{}, fail
	}
	if !out.returned {
		out = in.bareReturn(f)
	}
	return out, nil
}

func (in *Interpreter) bareReturn(f *frame) outcome {
	if f.fn.FuncType().ReturnsValue() {
		return outcome{returned: true, value: bytecode.Int(0), hasValue: true}
	}
	return outcome{returned: true}
}

func (in *Interpreter) fail(f *frame, code bytecode.FailureCode, format string, args ...any) *failure {
	return &failure{code: code, fn: f.fn.Name(), detail: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (in *Interpreter) stmts(f *frame, stmts []Stmt) (outcome, *failure) {
	for _, s := range stmts {
		out, fail := in.stmt(f, s)
		if fail != nil || out.returned {
			return out, fail
		}
	}
	return outcome{}, nil
}

func (in *Interpreter) stmt(f *frame, s Stmt) (outcome, *failure) {
	switch s := s.(type) {
	case *Block:
		return in.stmts(f, s.Stmts)

	case *FunctionDecl:
		return outcome{}, nil

	case *VariableDecl:
		if s.Init == nil {
			return outcome{}, nil
		}
		v, fail := in.expr(f, s.Init)
		if fail != nil {
			return outcome{}, fail
		}
		return outcome{}, in.store(f, s.Sym, v)

	case *ExprStmt:
		_, _, fail := in.eval(f, s.X)
		return outcome{}, fail

	case *ReturnStmt:
		if s.Value == nil {
			return in.bareReturn(f), nil
		}
		v, fail := in.expr(f, s.Value)
		if fail != nil {
			return outcome{}, fail
		}
		return outcome{returned: true, value: v, hasValue: true}, nil

	case *IfStmt:
		ok, fail := in.truth(f, s.Cond)
		if fail != nil {
			return outcome{}, fail
		}
		if ok {
			return in.stmt(f, s.Then)
		}
		if s.Else != nil {
			return in.stmt(f, s.Else)
		}
		return outcome{}, nil

	case *ForStmt:
		if s.Init != nil {
			if _, fail := in.stmt(f, s.Init); fail != nil {
				return outcome{}, fail
			}
		}
		for {
			if s.Cond != nil {
				ok, fail := in.truth(f, s.Cond)
				if fail != nil {
					return outcome{}, fail
				}
				if !ok {
					return outcome{}, nil
				}
			}
			if s.Body != nil {
				out, fail := in.stmt(f, s.Body)
				if fail != nil || out.returned {
					return out, fail
				}
			}
			if s.Inc != nil {
				if _, _, fail := in.eval(f, s.Inc); fail != nil {
					return outcome{}, fail
				}
			}
		}
	}
	return outcome{}, in.fail(f, bytecode.FailUnknownOpcode, "unexpected statement %T", s)
}

// truth evaluates a condition the way ifeq tests it.
func (in *Interpreter) truth(f *frame, e Expr) (bool, *failure) {
	v, fail := in.expr(f, e)
	if fail != nil {
		return false, fail
	}
	n, ok := v.AsInt()
	if !ok {
		return false, in.fail(f, bytecode.FailTypeMismatch, "condition is %s", v.Kind())
	}
	return n != 0, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// expr evaluates e for its value.
func (in *Interpreter) expr(f *frame, e Expr) (bytecode.Value, *failure) {
	v, _, fail := in.eval(f, e)
	return v, fail
}

// eval evaluates e. The bool result is false for calls of void functions.
func (in *Interpreter) eval(f *frame, e Expr) (bytecode.Value, bool, *failure) {
	switch e := e.(type) {
	case *IntegerLiteral:
		return bytecode.Int(e.Value), true, nil

	case *StringLiteral:
		return bytecode.Str(e.Value), true, nil

	case *Variable:
		v, fail := in.load(f, e.Sym)
		return v, true, fail

	case *Assignment:
		v, fail := in.assign(f, e)
		return v, true, fail

	case *Binary:
		v, fail := in.binary(f, e)
		return v, true, fail

	case *Unary:
		v, fail := in.unary(f, e)
		return v, true, fail

	case *FunctionCall:
		return in.call(f, e)
	}
	return bytecode.Undefined, false, in.fail(f, bytecode.FailUnknownOpcode, "unexpected expression %T", e)
}

func (in *Interpreter) slot(f *frame, r Resolution) (int, *failure) {
	v, err := in.analysis.Var(r)
	if err != nil || v.Slot >= len(f.locals) {
		return 0, in.fail(f, bytecode.FailBadLocal, "%v", err)
	}
	return v.Slot, nil
}

func (in *Interpreter) load(f *frame, r Resolution) (bytecode.Value, *failure) {
	i, fail := in.slot(f, r)
	if fail != nil {
		return bytecode.Undefined, fail
	}
	return f.locals[i], nil
}

func (in *Interpreter) store(f *frame, r Resolution, v bytecode.Value) *failure {
	i, fail := in.slot(f, r)
	if fail != nil {
		return fail
	}
	f.locals[i] = v
	return nil
}

func (in *Interpreter) assign(f *frame, a *Assignment) (bytecode.Value, *failure) {
	if a.Op == "=" {
		v, fail := in.expr(f, a.Value)
		if fail != nil {
			return bytecode.Undefined, fail
		}
		return v, in.store(f, a.Target.Sym, v)
	}

	cur, fail := in.load(f, a.Target.Sym)
	if fail != nil {
		return bytecode.Undefined, fail
	}
	rhs, fail := in.expr(f, a.Value)
	if fail != nil {
		return bytecode.Undefined, fail
	}
	op := a.Op[:len(a.Op)-1]
	var v bytecode.Value
	if target, err := in.analysis.Var(a.Target.Sym); err == nil && op == "+" && target.Type() == symbols.String {
		v = bytecode.Str(cur.String() + rhs.String())
	} else if v, fail = in.arithmetic(f, op, cur, rhs); fail != nil {
		return bytecode.Undefined, fail
	}
	return v, in.store(f, a.Target.Sym, v)
}

func (in *Interpreter) binary(f *frame, b *Binary) (bytecode.Value, *failure) {
	if isLogical(b.Op) {
		x, fail := in.truth(f, b.X)
		if fail != nil {
			return bytecode.Undefined, fail
		}
		if b.Op == "&&" && !x {
			return bytecode.Int(0), nil
		}
		if b.Op == "||" && x {
			return bytecode.Int(1), nil
		}
		y, fail := in.truth(f, b.Y)
		if fail != nil {
			return bytecode.Undefined, fail
		}
		return boolValue(y), nil
	}

	x, fail := in.expr(f, b.X)
	if fail != nil {
		return bytecode.Undefined, fail
	}
	y, fail := in.expr(f, b.Y)
	if fail != nil {
		return bytecode.Undefined, fail
	}

	if isComparison(b.Op) {
		return in.compare(f, b.Op, x, y)
	}
	if b.Op == "+" && b.Type == symbols.String {
		return bytecode.Str(x.String() + y.String()), nil
	}
	return in.arithmetic(f, b.Op, x, y)
}

func (in *Interpreter) compare(f *frame, op string, x, y bytecode.Value) (bytecode.Value, *failure) {
	a, okx := x.AsInt()
	b, oky := y.AsInt()
	if !okx || !oky {
		switch op {
		case "==":
			return boolValue(x.Equal(y)), nil
		case "!=":
			return boolValue(!x.Equal(y)), nil
		}
		return bytecode.Undefined, in.fail(f, bytecode.FailTypeMismatch, "%s on %s and %s", op, x.Kind(), y.Kind())
	}
	var r bool
	switch op {
	case "==":
		r = a == b
	case "!=":
		r = a != b
	case "<":
		r = a < b
	case "<=":
		r = a <= b
	case ">":
		r = a > b
	case ">=":
		r = a >= b
	}
	return boolValue(r), nil
}

func (in *Interpreter) arithmetic(f *frame, op string, x, y bytecode.Value) (bytecode.Value, *failure) {
	a, okx := x.AsInt()
	b, oky := y.AsInt()
	if op == "+" {
		if okx && oky {
			return bytecode.Int(a + b), nil
		}
		return bytecode.Str(x.String() + y.String()), nil
	}
	if !okx || !oky {
		return bytecode.Undefined, in.fail(f, bytecode.FailTypeMismatch, "%s on %s and %s", op, x.Kind(), y.Kind())
	}
	switch op {
	case "-":
		return bytecode.Int(a - b), nil
	case "*":
		return bytecode.Int(a * b), nil
	case "/", "%":
		if b == 0 {
			return bytecode.Undefined, in.fail(f, bytecode.FailDivideByZero, "%s", op)
		}
		if op == "/" {
			return bytecode.Int(a / b), nil
		}
		return bytecode.Int(a % b), nil
	}
	return bytecode.Undefined, in.fail(f, bytecode.FailUnknownOpcode, "binary operator %q", op)
}

func (in *Interpreter) unary(f *frame, u *Unary) (bytecode.Value, *failure) {
	switch u.Op {
	case "+":
		return in.expr(f, u.X)
	case "-":
		v, fail := in.expr(f, u.X)
		if fail != nil {
			return bytecode.Undefined, fail
		}
		n, ok := v.AsInt()
		if !ok {
			return bytecode.Undefined, in.fail(f, bytecode.FailTypeMismatch, "negation of %s", v.Kind())
		}
		return bytecode.Int(-n), nil
	}

	target := u.X.(*Variable)
	old, fail := in.load(f, target.Sym)
	if fail != nil {
		return bytecode.Undefined, fail
	}
	n, ok := old.AsInt()
	if !ok {
		return bytecode.Undefined, in.fail(f, bytecode.FailTypeMismatch, "%s on %s", u.Op, old.Kind())
	}
	next := bytecode.Int(n + 1)
	if u.Op == "--" {
		next = bytecode.Int(n - 1)
	}
	if fail := in.store(f, target.Sym, next); fail != nil {
		return bytecode.Undefined, fail
	}
	if u.Prefix {
		return next, nil
	}
	return old, nil
}

func (in *Interpreter) call(f *frame, c *FunctionCall) (bytecode.Value, bool, *failure) {
	fn, err := in.analysis.Function(c.Sym)
	if err != nil {
		return bytecode.Undefined, false, in.fail(f, bytecode.FailBadConstant, "%v", err)
	}
	args := make([]bytecode.Value, len(c.Args))
	for i, a := range c.Args {
		v, fail := in.expr(f, a)
		if fail != nil {
			return bytecode.Undefined, false, fail
		}
		args[i] = v
	}

	if fn.IsBuiltin() {
		v, fail := in.native(f, fn, args)
		return v, fn.FuncType().ReturnsValue(), fail
	}

	decl := in.analysis.Decls[fn]
	if decl == nil || decl.Body == nil {
		return bytecode.Undefined, false, in.fail(f, bytecode.FailMissingBody, "%s", fn.Name())
	}
	if in.depth >= in.MaxCallDepth {
		return bytecode.Undefined, false, in.fail(f, bytecode.FailCallDepth, "depth %d calling %s", in.depth, fn.Name())
	}

	callee := &frame{fn: fn, locals: make([]bytecode.Value, max(len(fn.Vars), len(args)))}
	copy(callee.locals, args)

	in.depth++
	out, fail := in.body(callee, decl.Body.Stmts)
	in.depth--
	if fail != nil {
		return bytecode.Undefined, false, fail
	}
	return out.value, out.hasValue, nil
}

func (in *Interpreter) native(f *frame, fn *symbols.FunctionSymbol, args []bytecode.Value) (bytecode.Value, *failure) {
	switch fn.Name() {
	case symbols.PrintlnName:
		fmt.Fprintln(in.Out, args[0].String())
		return bytecode.Undefined, nil
	case symbols.TickName:
		return bytecode.Int(in.Clock().UTC().UnixMilli()), nil
	case symbols.IntegerToStringName:
		n, ok := args[0].AsInt()
		if !ok {
			return bytecode.Undefined, in.fail(f, bytecode.FailTypeMismatch, "built-in %s", fn.Name())
		}
		return bytecode.Str(strconv.FormatInt(n, 10)), nil
	}
	return bytecode.Undefined, in.fail(f, bytecode.FailMissingBody, "%s", fn.Name())
}

func boolValue(b bool) bytecode.Value {
	if b {
		return bytecode.Int(1)
	}
	return bytecode.Int(0)
}
