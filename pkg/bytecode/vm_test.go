package bytecode

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/chazu/plume/pkg/symbols"
)

// code concatenates instruction fragments.
func code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func op(o Opcode, operands ...byte) []byte { return Emit(o, operands...) }

func invoke(idx int) []byte {
	out, err := EmitCall(idx)
	if err != nil {
		panic(err)
	}
	return out
}

// newTestModule builds a module whose entry is main with the given locals.
func newTestModule(ret symbols.Type, locals int, body []byte) (*Module, *symbols.FunctionSymbol) {
	m := NewModule(symbols.Builtins)
	main := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(ret))
	for i := 0; i < locals; i++ {
		main.AddVar(symbols.NewVarSymbol(string(rune('a'+i)), symbols.Integer))
	}
	main.Code = body
	m.AddFunction(main)
	m.Entry = main
	return m, main
}

func runInt(t *testing.T, body []byte) int64 {
	t.Helper()
	m, _ := newTestModule(symbols.Integer, 4, body)
	r := NewVM().Execute(m)
	if !r.OK() {
		t.Fatalf("execution failed: %v", r.Err())
	}
	n, ok := r.Value.AsInt()
	if !r.HasValue || !ok {
		t.Fatalf("expected integer result, got %v (has=%v)", r.Value, r.HasValue)
	}
	return n
}

func TestExecutePrintsSum(t *testing.T) {
	m, _ := newTestModule(symbols.Void, 2, code(
		op(OpIconst1), op(OpIstore0),
		op(OpIconst2), op(OpIstore1),
		op(OpIload0), op(OpIload1), op(OpIadd),
		invoke(0),
		op(OpReturn),
	))

	var out bytes.Buffer
	r := NewVM(WithOutput(&out)).Execute(m)
	if !r.OK() {
		t.Fatalf("execution failed: %v", r.Err())
	}
	if r.HasValue {
		t.Errorf("void entry should not produce a value, got %v", r.Value)
	}
	if out.String() != "3\n" {
		t.Errorf("output = %q, want %q", out.String(), "3\n")
	}
}

func TestPushSignExtension(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want int64
	}{
		{"bipush -1", op(OpBipush, 0xff), -1},
		{"bipush -128", op(OpBipush, 0x80), -128},
		{"sipush -129", op(OpSipush, 0xff, 0x7f), -129},
		{"sipush 32767", op(OpSipush, 0x7f, 0xff), 32767},
		{"iconst_4", op(OpIconst4), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runInt(t, code(tt.body, op(OpIreturn))); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b int8
		op   Opcode
		want int64
	}{
		{"add", 7, 5, OpIadd, 12},
		{"sub", 7, 10, OpIsub, -3},
		{"mul", -7, 6, OpImul, -42},
		{"div truncates toward zero", -7, 2, OpIdiv, -3},
		{"rem", 7, 3, OpIrem, 1},
		{"rem takes sign of dividend", -7, 2, OpIrem, -1},
		{"lcmp less", 1, 2, OpLcmp, -1},
		{"lcmp equal", 2, 2, OpLcmp, 0},
		{"lcmp greater", 3, 2, OpLcmp, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := code(op(OpBipush, byte(tt.a)), op(OpBipush, byte(tt.b)), op(tt.op), op(OpIreturn))
			if got := runInt(t, body); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIincAndNeg(t *testing.T) {
	body := code(
		op(OpBipush, 10), op(OpIstore2),
		op(OpIinc, 2, 0xfd),
		op(OpIload2), op(OpIneg),
		op(OpIreturn),
	)
	if got := runInt(t, body); got != -7 {
		t.Errorf("got %d, want -7", got)
	}
}

// Each comparison is lowered to: a; b; negated if_icmp -> L0; iconst_1;
// goto L1; L0: iconst_0; L1: ireturn.
func TestComparisonLowering(t *testing.T) {
	tests := []struct {
		test Opcode
		a, b int8
		want int64
	}{
		{OpIfIcmpeq, 3, 3, 1},
		{OpIfIcmpeq, 3, 4, 0},
		{OpIfIcmpne, 3, 4, 1},
		{OpIfIcmplt, 3, 4, 1},
		{OpIfIcmplt, 4, 4, 0},
		{OpIfIcmpge, 4, 4, 1},
		{OpIfIcmpgt, 5, 4, 1},
		{OpIfIcmpgt, 4, 5, 0},
		{OpIfIcmple, 4, 4, 1},
		{OpIfIcmple, 5, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.test.String(), func(t *testing.T) {
			neg, _ := tt.test.Negate()
			body := code(
				op(OpBipush, byte(tt.a)), op(OpBipush, byte(tt.b)),
				EmitJump(neg, 11),
				op(OpIconst1),
				EmitJump(OpGoto, 12),
				op(OpIconst0),
				op(OpIreturn),
			)
			if got := runInt(t, body); got != tt.want {
				t.Errorf("%d %s %d = %d, want %d", tt.a, tt.test, tt.b, got, tt.want)
			}
		})
	}
}

func TestZeroTestJumps(t *testing.T) {
	tests := []struct {
		test Opcode
		v    int8
		want int64
	}{
		{OpIfeq, 0, 1}, {OpIfeq, 2, 0},
		{OpIfne, 2, 1}, {OpIfne, 0, 0},
		{OpIflt, -1, 1}, {OpIflt, 0, 0},
		{OpIfge, 0, 1}, {OpIfge, -1, 0},
		{OpIfgt, 1, 1}, {OpIfgt, 0, 0},
		{OpIfle, 0, 1}, {OpIfle, 1, 0},
	}
	for _, tt := range tests {
		body := code(
			op(OpBipush, byte(tt.v)), // 0
			EmitJump(tt.test, 7),     // 2
			op(OpIconst0),            // 5
			op(OpIreturn),            // 6
			op(OpIconst1),            // 7
			op(OpIreturn),            // 8
		)
		if got := runInt(t, body); got != tt.want {
			t.Errorf("%s %d: got %d, want %d", tt.test, tt.v, got, tt.want)
		}
	}
}

func TestCallSlotOrdering(t *testing.T) {
	m := NewModule(symbols.Builtins)

	// f(a, b) = a*10 + b
	f := symbols.NewFunctionSymbol("f", symbols.NewFunctionType(symbols.Integer, symbols.Integer, symbols.Integer))
	f.AddVar(symbols.NewVarSymbol("a", symbols.Integer))
	f.AddVar(symbols.NewVarSymbol("b", symbols.Integer))
	f.Code = code(op(OpIload0), op(OpBipush, 10), op(OpImul), op(OpIload1), op(OpIadd), op(OpIreturn))

	main := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(symbols.Integer))
	m.AddFunction(main)
	m.Entry = main
	fidx := m.AddFunction(f)
	main.Code = code(op(OpIconst1), op(OpIconst2), invoke(fidx), op(OpIreturn))

	r := NewVM().Execute(m)
	if got, _ := r.Value.AsInt(); !r.OK() || got != 12 {
		t.Fatalf("f(1, 2) = %v (%v), want 12", r.Value, r.Err())
	}
}

func TestBuiltins(t *testing.T) {
	m, _ := newTestModule(symbols.String, 0, nil)
	s := m.AddString("n=")
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Entry.Code = code(
		op(OpSldc, byte(s)),
		op(OpBipush, 42), invoke(2), // integer_to_string
		op(OpSadd),
		op(OpIreturn),
	)
	r := NewVM(WithClock(func() time.Time { return fixed })).Execute(m)
	if got, ok := r.Value.AsString(); !r.OK() || !ok || got != "n=42" {
		t.Errorf("got %v (%v), want n=42", r.Value, r.Err())
	}

	tick, _ := newTestModule(symbols.Integer, 0, code(invoke(1), op(OpIreturn)))
	r = NewVM(WithClock(func() time.Time { return fixed })).Execute(tick)
	if got, _ := r.Value.AsInt(); got != fixed.UnixMilli() {
		t.Errorf("tick = %d, want %d", got, fixed.UnixMilli())
	}
}

func TestGenericAddConcatenates(t *testing.T) {
	m, _ := newTestModule(symbols.String, 0, nil)
	s := m.AddString("x")
	m.Entry.Code = code(op(OpSldc, byte(s)), op(OpIconst3), op(OpIadd), op(OpIreturn))
	r := NewVM().Execute(m)
	if got := r.Value.String(); got != "x3" {
		t.Errorf("got %q, want x3", got)
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want FailureCode
	}{
		{"unknown opcode", []byte{0xEE}, FailUnknownOpcode},
		{"divide by zero", code(op(OpIconst1), op(OpIconst0), op(OpIdiv)), FailDivideByZero},
		{"remainder by zero", code(op(OpIconst1), op(OpIconst0), op(OpIrem)), FailDivideByZero},
		{"underflow", code(op(OpIadd)), FailStackUnderflow},
		{"ireturn on empty stack", code(op(OpIreturn)), FailStackUnderflow},
		{"bad local", code(op(OpIload, 9)), FailBadLocal},
		{"bad constant", code(op(OpLdc, 200)), FailBadConstant},
		{"ldc of a function", code(op(OpLdc, 0)), FailBadConstant},
		{"truncated", []byte{byte(OpSipush), 1}, FailTruncated},
		{"jump past end", EmitJump(OpGoto, 100), FailTruncated},
		{"type mismatch", code(op(OpSldc, 3), op(OpIneg)), FailTypeMismatch},
		{"call missing", invoke(60), FailBadConstant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModule(symbols.Void, 1, tt.body)
			m.AddString("s") // pool index 4 after main
			m.Consts[3], m.Consts[4] = m.Consts[4], m.Consts[3]
			m.Entry = m.Consts[4].(FuncConst).Fn

			r := NewVM().Execute(m)
			if r.Failure != tt.want {
				t.Fatalf("Failure = %s, want %s (%v)", r.Failure, tt.want, r.Err())
			}
			if r.Err() == nil || !strings.Contains(r.Err().Error(), tt.want.String()) {
				t.Errorf("Err() = %v", r.Err())
			}
		})
	}
}

func TestNoEntryAndMissingBody(t *testing.T) {
	if r := NewVM().Execute(NewModule(symbols.Builtins)); r.Failure != FailNoEntry {
		t.Errorf("no entry: got %s", r.Failure)
	}
	if r := NewVM().Execute(nil); r.Failure != FailNoEntry {
		t.Errorf("nil module: got %s", r.Failure)
	}

	m, _ := newTestModule(symbols.Void, 0, nil)
	if r := NewVM().Execute(m); r.Failure != FailMissingBody {
		t.Errorf("empty entry: got %s", r.Failure)
	}

	stub := symbols.NewFunctionSymbol("stub", nil)
	idx := m.AddFunction(stub)
	m.Entry.Code = code(invoke(idx), op(OpReturn))
	if r := NewVM().Execute(m); r.Failure != FailMissingBody || r.Function != "main" {
		t.Errorf("missing callee body: got %s in %q", r.Failure, r.Function)
	}
}

func TestCallDepthLimit(t *testing.T) {
	m, main := newTestModule(symbols.Void, 0, nil)
	main.Code = code(invoke(3), op(OpReturn))

	r := NewVM(WithMaxCallDepth(16)).Execute(m)
	if r.Failure != FailCallDepth {
		t.Fatalf("Failure = %s, want %s", r.Failure, FailCallDepth)
	}
}

func TestImplicitReturnAtEndOfBody(t *testing.T) {
	var out bytes.Buffer
	m, _ := newTestModule(symbols.Void, 0, code(op(OpIconst5), invoke(0)))
	r := NewVM(WithOutput(&out), WithTrace(true)).Execute(m)
	if !r.OK() || r.HasValue {
		t.Fatalf("unexpected result %+v", r)
	}
	if out.String() != "5\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestVMIsReusable(t *testing.T) {
	vm := NewVM()
	a, _ := newTestModule(symbols.Integer, 0, code(op(OpIconst1), op(OpIreturn)))
	b, _ := newTestModule(symbols.Integer, 0, code(op(OpIconst2), op(OpIreturn)))
	for i, tc := range []struct {
		m    *Module
		want int64
	}{{a, 1}, {b, 2}, {a, 1}} {
		if got, _ := vm.Execute(tc.m).Value.AsInt(); got != tc.want {
			t.Errorf("run %d: got %d, want %d", i, got, tc.want)
		}
	}
}
