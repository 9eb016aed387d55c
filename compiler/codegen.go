package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/symbols"
)

// ---------------------------------------------------------------------------
// Codegen: Compile a resolved AST to bytecode
// ---------------------------------------------------------------------------

// Generator compiles a resolved Program into a bytecode.Module. Every
// statement and expression compiles to a fragment whose jump targets are
// offsets from the fragment's own start; fragments are joined with
// bytecode.Relocate.
type Generator struct {
	analysis *Analysis
	m        *bytecode.Module
	fn       *symbols.FunctionSymbol
}

// NewGenerator creates a generator over a completed analysis.
func NewGenerator(a *Analysis) *Generator {
	return &Generator{analysis: a}
}

// Generate builds the module. The entry function is added to the pool first,
// followed by every declared function in source order, so forward calls
// always have a pool index.
func (g *Generator) Generate(prog *Program) (*bytecode.Module, error) {
	a := g.analysis
	if a.Diagnostics.HasErrors() {
		return nil, fmt.Errorf("%w: cannot generate code for a program with errors", ErrInternal)
	}
	if a.Entry == nil {
		return nil, fmt.Errorf("%w: program was not resolved", ErrInternal)
	}

	g.m = bytecode.NewModule(a.Table.Builtins())
	g.m.AddFunction(a.Entry)
	g.m.Entry = a.Entry

	var decls []*FunctionDecl
	collectFunctions(prog.Stmts, &decls)
	for _, d := range decls {
		fn, err := a.Function(d.Sym)
		if err != nil {
			return nil, err
		}
		g.m.AddFunction(fn)
	}

	if err := g.function(a.Entry, prog.Stmts); err != nil {
		return nil, err
	}
	for _, d := range decls {
		if d.Body == nil {
			continue
		}
		fn, _ := a.Function(d.Sym)
		if err := g.function(fn, d.Body.Stmts); err != nil {
			return nil, err
		}
	}
	return g.m, nil
}

// collectFunctions appends every function declaration in pre-order.
func collectFunctions(stmts []Stmt, out *[]*FunctionDecl) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *FunctionDecl:
			*out = append(*out, s)
			if s.Body != nil {
				collectFunctions(s.Body.Stmts, out)
			}
		case *Block:
			collectFunctions(s.Stmts, out)
		case *IfStmt:
			collectFunctions([]Stmt{s.Then}, out)
			if s.Else != nil {
				collectFunctions([]Stmt{s.Else}, out)
			}
		case *ForStmt:
			if s.Body != nil {
				collectFunctions([]Stmt{s.Body}, out)
			}
		}
	}
}

func (g *Generator) function(fn *symbols.FunctionSymbol, stmts []Stmt) error {
	g.fn = fn
	code, err := g.stmts(stmts)
	if err != nil {
		return fmt.Errorf("function %s: %w", fn.Name(), err)
	}

	// Implicit trailing return.
	if len(stmts) == 0 || !isReturn(stmts[len(stmts)-1]) {
		code = append(code, g.bareReturn()...)
	}
	if len(code) > 0xFFFF {
		return fmt.Errorf("%w: function %s: code exceeds 65535 bytes", ErrInternal, fn.Name())
	}

	fn.Code = code
	fn.OpStackSize = estimateStack(g.m, code)
	return nil
}

func isReturn(s Stmt) bool {
	_, ok := s.(*ReturnStmt)
	return ok
}

// bareReturn leaves the current function without an explicit value. A
// value-returning function yields 0.
func (g *Generator) bareReturn() []byte {
	if g.fn.FuncType().ReturnsValue() {
		return []byte{byte(bytecode.OpIconst0), byte(bytecode.OpIreturn)}
	}
	return []byte{byte(bytecode.OpReturn)}
}

// ---------------------------------------------------------------------------
// Fragment assembly
// ---------------------------------------------------------------------------

// asm accumulates a fragment. The first error sticks and turns later calls
// into no-ops.
type asm struct {
	code []byte
	err  error
}

// add appends a child fragment, relocating its jumps to its new position.
func (a *asm) add(part []byte) {
	if a.err != nil || len(part) == 0 {
		return
	}
	moved, err := bytecode.Relocate(part, len(a.code))
	if err != nil {
		a.err = fmt.Errorf("%w: %w", ErrInternal, err)
		return
	}
	a.code = append(a.code, moved...)
}

// raw appends bytes whose jump targets are already relative to this fragment.
func (a *asm) raw(b ...byte) {
	if a.err == nil {
		a.code = append(a.code, b...)
	}
}

// gen appends the output of a generator call.
func (a *asm) gen(part []byte, err error) {
	if a.err == nil && err != nil {
		a.err = err
		return
	}
	a.add(part)
}

func (a *asm) len() int { return len(a.code) }

func (a *asm) result() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.code, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) stmts(stmts []Stmt) ([]byte, error) {
	var a asm
	for _, s := range stmts {
		a.gen(g.stmt(s))
	}
	return a.result()
}

func (g *Generator) stmt(s Stmt) ([]byte, error) {
	switch s := s.(type) {
	case *Block:
		return g.stmts(s.Stmts)

	case *FunctionDecl:
		// Compiled separately by Generate.
		return nil, nil

	case *VariableDecl:
		if s.Init == nil {
			return nil, nil
		}
		v, err := g.analysis.Var(s.Sym)
		if err != nil {
			return nil, err
		}
		var a asm
		a.gen(g.expr(s.Init))
		a.gen(g.store(v))
		return a.result()

	case *ExprStmt:
		return g.effect(s.X)

	case *ReturnStmt:
		if s.Value == nil {
			return g.bareReturn(), nil
		}
		var a asm
		a.gen(g.expr(s.Value))
		a.raw(byte(bytecode.OpIreturn))
		return a.result()

	case *IfStmt:
		return g.ifStmt(s)

	case *ForStmt:
		return g.forStmt(s)
	}
	return nil, fmt.Errorf("%w: unexpected statement %T", ErrInternal, s)
}

// ifStmt lowers to:
//
//	cond; ifeq ELSE; then; goto NEXT; ELSE: else; NEXT:
func (g *Generator) ifStmt(s *IfStmt) ([]byte, error) {
	cond, err := g.expr(s.Cond)
	if err != nil {
		return nil, err
	}
	then, err := g.stmt(s.Then)
	if err != nil {
		return nil, err
	}
	var els []byte
	if s.Else != nil {
		if els, err = g.stmt(s.Else); err != nil {
			return nil, err
		}
	}

	offElse := len(cond) + len(then) + 6
	offNext := offElse + len(els)

	var a asm
	a.add(cond)
	a.raw(bytecode.EmitJump(bytecode.OpIfeq, offElse)...)
	a.add(then)
	a.raw(bytecode.EmitJump(bytecode.OpGoto, offNext)...)
	a.add(els)
	return a.result()
}

// forStmt lowers to:
//
//	init; COND: cond; ifeq NEXT; body; inc; goto COND; NEXT:
func (g *Generator) forStmt(s *ForStmt) ([]byte, error) {
	var init, cond, inc, body []byte
	var err error
	if s.Init != nil {
		if init, err = g.stmt(s.Init); err != nil {
			return nil, err
		}
	}
	if s.Cond != nil {
		if cond, err = g.expr(s.Cond); err != nil {
			return nil, err
		}
	}
	if s.Inc != nil {
		if inc, err = g.effect(s.Inc); err != nil {
			return nil, err
		}
	}
	if s.Body != nil {
		if body, err = g.stmt(s.Body); err != nil {
			return nil, err
		}
	}

	offCond := len(init)
	offBody := offCond + len(cond)
	if len(cond) > 0 {
		offBody += 3
	}
	offNext := offBody + len(body) + len(inc) + 3

	var a asm
	a.add(init)
	if len(cond) > 0 {
		a.add(cond)
		a.raw(bytecode.EmitJump(bytecode.OpIfeq, offNext)...)
	}
	a.add(body)
	a.add(inc)
	a.raw(bytecode.EmitJump(bytecode.OpGoto, offCond)...)
	return a.result()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// effect compiles e for its side effects only; nothing is left on the stack.
func (g *Generator) effect(e Expr) ([]byte, error) {
	switch e := e.(type) {
	case *Assignment:
		return g.assign(e, false)

	case *Unary:
		if e.Op == "++" || e.Op == "--" {
			return g.incr(e, false)
		}

	case *FunctionCall:
		fn, err := g.analysis.Function(e.Sym)
		if err != nil {
			return nil, err
		}
		code, err := g.call(e, fn)
		if err != nil || !fn.FuncType().ReturnsValue() {
			return code, err
		}
		return append(code, byte(bytecode.OpPop)), nil
	}

	code, err := g.expr(e)
	if err != nil {
		return nil, err
	}
	return append(code, byte(bytecode.OpPop)), nil
}

// expr compiles e so that it leaves exactly one value on the stack.
func (g *Generator) expr(e Expr) ([]byte, error) {
	switch e := e.(type) {
	case *IntegerLiteral:
		return bytecode.EmitInt(g.m, e.Value)

	case *StringLiteral:
		return bytecode.EmitString(g.m, e.Value)

	case *Variable:
		v, err := g.analysis.Var(e.Sym)
		if err != nil {
			return nil, err
		}
		return g.load(v)

	case *Assignment:
		return g.assign(e, true)

	case *Binary:
		return g.binary(e)

	case *Unary:
		switch e.Op {
		case "++", "--":
			return g.incr(e, true)
		case "-":
			var a asm
			a.gen(g.expr(e.X))
			a.raw(byte(bytecode.OpIneg))
			return a.result()
		case "+":
			return g.expr(e.X)
		}
		return nil, fmt.Errorf("%w: unary operator %q", ErrInternal, e.Op)

	case *FunctionCall:
		fn, err := g.analysis.Function(e.Sym)
		if err != nil {
			return nil, err
		}
		return g.call(e, fn)
	}
	return nil, fmt.Errorf("%w: unexpected expression %T", ErrInternal, e)
}

var arithmeticOps = map[string]bytecode.Opcode{
	"+": bytecode.OpIadd,
	"-": bytecode.OpIsub,
	"*": bytecode.OpImul,
	"/": bytecode.OpIdiv,
	"%": bytecode.OpIrem,
}

// comparisonJumps maps each comparison to the jump taken when it is false.
var comparisonJumps = map[string]bytecode.Opcode{
	">":  bytecode.OpIfIcmple,
	">=": bytecode.OpIfIcmplt,
	"<":  bytecode.OpIfIcmpge,
	"<=": bytecode.OpIfIcmpgt,
	"==": bytecode.OpIfIcmpne,
	"!=": bytecode.OpIfIcmpeq,
}

func (g *Generator) binary(b *Binary) ([]byte, error) {
	if isLogical(b.Op) {
		return g.logical(b)
	}

	var a asm
	a.gen(g.expr(b.X))
	a.gen(g.expr(b.Y))

	if jump, ok := comparisonJumps[b.Op]; ok {
		// x; y; if_not L0; iconst_1; goto L1; L0: iconst_0; L1:
		l0 := a.len() + 7
		a.raw(bytecode.EmitJump(jump, l0)...)
		a.raw(byte(bytecode.OpIconst1))
		a.raw(bytecode.EmitJump(bytecode.OpGoto, l0+1)...)
		a.raw(byte(bytecode.OpIconst0))
		return a.result()
	}

	op, ok := arithmeticOps[b.Op]
	if !ok {
		return nil, fmt.Errorf("%w: binary operator %q", ErrInternal, b.Op)
	}
	if op == bytecode.OpIadd && b.Type == symbols.String {
		op = bytecode.OpSadd
	}
	a.raw(byte(op))
	return a.result()
}

// logical lowers && and || with short-circuit evaluation to a 0/1 value:
//
//	x; ifeq F; y; ifeq F; iconst_1; goto E; F: iconst_0; E:   (&&)
//	x; ifne T; y; ifne T; iconst_0; goto E; T: iconst_1; E:   (||)
func (g *Generator) logical(b *Binary) ([]byte, error) {
	x, err := g.expr(b.X)
	if err != nil {
		return nil, err
	}
	y, err := g.expr(b.Y)
	if err != nil {
		return nil, err
	}

	test, fallthru, jumped := bytecode.OpIfeq, bytecode.OpIconst1, bytecode.OpIconst0
	if b.Op == "||" {
		test, fallthru, jumped = bytecode.OpIfne, bytecode.OpIconst0, bytecode.OpIconst1
	}
	short := len(x) + len(y) + 10
	end := short + 1

	var a asm
	a.add(x)
	a.raw(bytecode.EmitJump(test, short)...)
	a.add(y)
	a.raw(bytecode.EmitJump(test, short)...)
	a.raw(byte(fallthru))
	a.raw(bytecode.EmitJump(bytecode.OpGoto, end)...)
	a.raw(byte(jumped))
	return a.result()
}

func (g *Generator) assign(e *Assignment, wantValue bool) ([]byte, error) {
	v, err := g.analysis.Var(e.Target.Sym)
	if err != nil {
		return nil, err
	}

	var a asm
	if e.Op == "=" {
		a.gen(g.expr(e.Value))
	} else {
		op, ok := arithmeticOps[e.Op[:len(e.Op)-1]]
		if !ok {
			return nil, fmt.Errorf("%w: assignment operator %q", ErrInternal, e.Op)
		}
		if op == bytecode.OpIadd && v.Type() == symbols.String {
			op = bytecode.OpSadd
		}
		a.gen(g.load(v))
		a.gen(g.expr(e.Value))
		a.raw(byte(op))
	}
	a.gen(g.store(v))
	if wantValue {
		a.gen(g.load(v))
	}
	return a.result()
}

// incr lowers ++ and -- to iinc. In value context a prefix form loads after
// the increment and a postfix form loads before it.
func (g *Generator) incr(u *Unary, wantValue bool) ([]byte, error) {
	target, ok := u.X.(*Variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s operand is %T", ErrInternal, u.Op, u.X)
	}
	v, err := g.analysis.Var(target.Sym)
	if err != nil {
		return nil, err
	}
	delta := int8(1)
	if u.Op == "--" {
		delta = -1
	}

	var a asm
	if wantValue && !u.Prefix {
		a.gen(g.load(v))
	}
	a.gen(bytecode.EmitIinc(v.Slot, delta))
	if wantValue && u.Prefix {
		a.gen(g.load(v))
	}
	return a.result()
}

// call evaluates arguments left to right and emits invokestatic with the
// callee's pool index.
func (g *Generator) call(c *FunctionCall, fn *symbols.FunctionSymbol) ([]byte, error) {
	idx := g.m.FunctionIndex(fn)
	if idx < 0 {
		return nil, fmt.Errorf("%w: function %s is not in the constant pool", ErrInternal, fn.Name())
	}
	var a asm
	for _, arg := range c.Args {
		a.gen(g.expr(arg))
	}
	a.gen(bytecode.EmitCall(idx))
	return a.result()
}

func (g *Generator) load(v *symbols.VarSymbol) ([]byte, error) {
	if err := g.checkOwner(v); err != nil {
		return nil, err
	}
	code, err := bytecode.EmitLoad(v.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return code, nil
}

func (g *Generator) store(v *symbols.VarSymbol) ([]byte, error) {
	if err := g.checkOwner(v); err != nil {
		return nil, err
	}
	code, err := bytecode.EmitStore(v.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return code, nil
}

func (g *Generator) checkOwner(v *symbols.VarSymbol) error {
	if v.Owner != g.fn {
		return fmt.Errorf("%w: variable %s does not belong to %s", ErrInternal, v.Name(), g.fn.Name())
	}
	return nil
}

// estimateStack computes an operand stack size hint with a linear scan of
// the code.
func estimateStack(m *bytecode.Module, code []byte) uint8 {
	depth, max := 0, 0
	_ = bytecode.WalkInstructions(code, func(_ int, op bytecode.Opcode, operands []byte) error {
		info := bytecode.GetOpcodeInfo(op)
		pop, push := info.StackPop, info.StackPush
		if op == bytecode.OpInvokestatic {
			pop, push = 0, 0
			if c, ok := m.Const(int(binary.BigEndian.Uint16(operands))); ok {
				if fc, ok := c.(bytecode.FuncConst); ok {
					pop = fc.Fn.ParamCount()
					if fc.Fn.FuncType().ReturnsValue() {
						push = 1
					}
				}
			}
		}
		depth -= pop
		if depth < 0 {
			depth = 0
		}
		depth += push
		if depth > max {
			max = depth
		}
		return nil
	})
	if max > 255 {
		max = 255
	}
	return uint8(max)
}
