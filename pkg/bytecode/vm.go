package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/plume/pkg/symbols"
)

var log = commonlog.GetLogger("plume.vm")

// DefaultMaxCallDepth bounds the call stack unless WithMaxCallDepth is given.
const DefaultMaxCallDepth = 1024

// FailureCode identifies why execution stopped abnormally.
type FailureCode uint8

const (
	FailNone FailureCode = iota
	FailNoEntry
	FailMissingBody
	FailUnknownOpcode
	FailStackUnderflow
	FailBadConstant
	FailBadLocal
	FailTruncated
	FailDivideByZero
	FailTypeMismatch
	FailCallDepth
)

var failureNames = [...]string{
	FailNone:           "none",
	FailNoEntry:        "no entry function",
	FailMissingBody:    "missing function body",
	FailUnknownOpcode:  "unknown opcode",
	FailStackUnderflow: "operand stack underflow",
	FailBadConstant:    "bad constant reference",
	FailBadLocal:       "bad local slot",
	FailTruncated:      "truncated instruction",
	FailDivideByZero:   "division by zero",
	FailTypeMismatch:   "operand type mismatch",
	FailCallDepth:      "call stack too deep",
}

func (f FailureCode) String() string {
	if int(f) < len(failureNames) {
		return failureNames[f]
	}
	return fmt.Sprintf("FailureCode(%d)", f)
}

// Result is the outcome of Execute. When Failure is FailNone, HasValue tells
// whether the entry function returned a value.
type Result struct {
	Value    Value
	HasValue bool
	Failure  FailureCode

	// Where execution stopped on failure.
	Function string
	IP       int
	Detail   string
}

// OK reports whether execution finished by returning from the entry function.
func (r Result) OK() bool { return r.Failure == FailNone }

// Err converts a failed Result into an error. It returns nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ExecError{Result: r}
}

// ExecError is the error form of a failed Result.
type ExecError struct {
	Result Result
}

func (e *ExecError) Error() string {
	r := e.Result
	msg := fmt.Sprintf("vm: %s", r.Failure)
	if r.Function != "" {
		msg += fmt.Sprintf(" in %s at %04x", r.Function, r.IP)
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	return msg
}

// Option configures a VM.
type Option func(*VM)

// WithTrace logs every dispatched instruction at debug level.
func WithTrace(trace bool) Option {
	return func(vm *VM) { vm.trace = trace }
}

// WithMaxCallDepth bounds the number of live frames.
func WithMaxCallDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxDepth = n
		}
	}
}

// WithOutput sets the writer println writes to. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithClock sets the time source of the tick built-in.
func WithClock(clock func() time.Time) Option {
	return func(vm *VM) { vm.clock = clock }
}

// WithBuiltins sets the built-in table the VM executes natively.
func WithBuiltins(table *symbols.BuiltinTable) Option {
	return func(vm *VM) { vm.builtins = table }
}

// VM executes Modules. A VM is not safe for concurrent use; Execute resets all
// execution state, so one VM may run several modules in sequence.
type VM struct {
	out      io.Writer
	clock    func() time.Time
	trace    bool
	maxDepth int
	builtins *symbols.BuiltinTable
	natives  map[*symbols.FunctionSymbol]NativeFunc

	// Execution state
	module *Module
	frames []*StackFrame
	frame  *StackFrame
	code   []byte
	ip     int
}

// NewVM creates a VM with the standard built-ins.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		out:      os.Stdout,
		clock:    time.Now,
		maxDepth: DefaultMaxCallDepth,
		builtins: symbols.Builtins,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.natives = bindNatives(vm.builtins)
	return vm
}

// Execute runs m from its entry function until the call stack empties or a
// failure occurs.
func (vm *VM) Execute(m *Module) Result {
	vm.module = m
	vm.frames = vm.frames[:0]
	vm.frame = nil

	if m == nil || m.Entry == nil {
		return Result{Failure: FailNoEntry}
	}
	if len(m.Entry.Code) == 0 {
		return Result{Failure: FailMissingBody, Function: m.Entry.Name()}
	}
	vm.enter(newFrame(m.Entry, 0))
	return vm.run()
}

func (vm *VM) enter(f *StackFrame) {
	vm.frames = append(vm.frames, f)
	vm.frame = f
	vm.code = f.Fn.Code
	vm.ip = 0
}

func (vm *VM) fail(code FailureCode, ip int, format string, args ...any) Result {
	r := Result{Failure: code, IP: ip, Detail: fmt.Sprintf(format, args...)}
	if vm.frame != nil {
		r.Function = vm.frame.Fn.Name()
	}
	log.Debugf("execution failed: %s", r.Err())
	return r
}

// run is the main execution loop.
func (vm *VM) run() Result {
	for {
		if vm.ip > len(vm.code) {
			return vm.fail(FailTruncated, vm.ip, "jump past end of %d-byte body", len(vm.code))
		}
		if vm.ip == len(vm.code) {
			// Falling off the end of a body is a void return.
			if r, done := vm.ret(Undefined, false); done {
				return r
			}
			continue
		}

		start := vm.ip
		op := Opcode(vm.code[start])
		info, ok := LookupOpcode(op)
		if !ok {
			return vm.fail(FailUnknownOpcode, start, "0x%02x", byte(op))
		}
		if start+1+info.OperandLen > len(vm.code) {
			return vm.fail(FailTruncated, start, "%s", info.Name)
		}
		operands := vm.code[start+1 : start+1+info.OperandLen]
		vm.ip = start + 1 + info.OperandLen

		if vm.trace {
			log.Debugf("%s %04x %-14s stack=%d", vm.frame.Fn.Name(), start, info.Name, len(vm.frame.Stack))
		}

		f := vm.frame
		switch op {
		// ============ Constants ============
		case OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
			f.push(Int(int64(op - OpIconst0)))

		case OpBipush:
			f.push(Int(int64(int8(operands[0]))))

		case OpSipush:
			f.push(Int(int64(int16(binary.BigEndian.Uint16(operands)))))

		case OpLdc:
			c, _ := vm.module.Const(int(operands[0]))
			n, ok := c.(IntConst)
			if !ok {
				return vm.fail(FailBadConstant, start, "ldc %d is not a numeric constant", operands[0])
			}
			f.push(Int(int64(n)))

		case OpSldc:
			c, _ := vm.module.Const(int(operands[0]))
			s, ok := c.(StringConst)
			if !ok {
				return vm.fail(FailBadConstant, start, "sldc %d is not a string constant", operands[0])
			}
			f.push(Str(string(s)))

		// ============ Local Variables ============
		case OpIload, OpIload0, OpIload1, OpIload2, OpIload3:
			slot := int(op - OpIload0)
			if op == OpIload {
				slot = int(operands[0])
			}
			if slot >= len(f.Locals) {
				return vm.fail(FailBadLocal, start, "slot %d of %d", slot, len(f.Locals))
			}
			f.push(f.Locals[slot])

		case OpIstore, OpIstore0, OpIstore1, OpIstore2, OpIstore3:
			slot := int(op - OpIstore0)
			if op == OpIstore {
				slot = int(operands[0])
			}
			if slot >= len(f.Locals) {
				return vm.fail(FailBadLocal, start, "slot %d of %d", slot, len(f.Locals))
			}
			v, ok := f.pop()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "%s", info.Name)
			}
			f.Locals[slot] = v

		case OpIinc:
			slot := int(operands[0])
			if slot >= len(f.Locals) {
				return vm.fail(FailBadLocal, start, "slot %d of %d", slot, len(f.Locals))
			}
			n, ok := f.Locals[slot].AsInt()
			if !ok {
				return vm.fail(FailTypeMismatch, start, "iinc on %s", f.Locals[slot].Kind())
			}
			f.Locals[slot] = Int(n + int64(int8(operands[1])))

		// ============ Stack and arithmetic ============
		case OpPop:
			if _, ok := f.pop(); !ok {
				return vm.fail(FailStackUnderflow, start, "pop")
			}

		case OpIadd, OpSadd:
			a, b, ok := f.pop2()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "%s", info.Name)
			}
			if op == OpSadd {
				f.push(Str(a.String() + b.String()))
			} else {
				f.push(add(a, b))
			}

		case OpIsub, OpImul, OpIdiv, OpIrem, OpLcmp:
			a, b, ok := f.pop2()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "%s", info.Name)
			}
			x, okx := a.AsInt()
			y, oky := b.AsInt()
			if !okx || !oky {
				return vm.fail(FailTypeMismatch, start, "%s on %s and %s", info.Name, a.Kind(), b.Kind())
			}
			switch op {
			case OpIsub:
				f.push(Int(x - y))
			case OpImul:
				f.push(Int(x * y))
			case OpIdiv, OpIrem:
				if y == 0 {
					return vm.fail(FailDivideByZero, start, "%s", info.Name)
				}
				if op == OpIdiv {
					f.push(Int(x / y))
				} else {
					f.push(Int(x % y))
				}
			case OpLcmp:
				f.push(Int(int64(compareInts(x, y))))
			}

		case OpIneg:
			v, ok := f.pop()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "ineg")
			}
			n, ok := v.AsInt()
			if !ok {
				return vm.fail(FailTypeMismatch, start, "ineg on %s", v.Kind())
			}
			f.push(Int(-n))

		// ============ Control flow ============
		case OpGoto:
			vm.ip = int(binary.BigEndian.Uint16(operands))

		case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
			v, ok := f.pop()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "%s", info.Name)
			}
			n, ok := v.AsInt()
			if !ok {
				return vm.fail(FailTypeMismatch, start, "%s on %s", info.Name, v.Kind())
			}
			if branchTaken(op-OpIfeq, compareInts(n, 0)) {
				vm.ip = int(binary.BigEndian.Uint16(operands))
			}

		case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
			a, b, ok := f.pop2()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "%s", info.Name)
			}
			var cmp int
			x, okx := a.AsInt()
			y, oky := b.AsInt()
			switch {
			case okx && oky:
				cmp = compareInts(x, y)
			case op == OpIfIcmpeq || op == OpIfIcmpne:
				// Mixed or string operands only support equality.
				cmp = 1
				if a.Equal(b) {
					cmp = 0
				}
			default:
				return vm.fail(FailTypeMismatch, start, "%s on %s and %s", info.Name, a.Kind(), b.Kind())
			}
			if branchTaken(op-OpIfIcmpeq, cmp) {
				vm.ip = int(binary.BigEndian.Uint16(operands))
			}

		// ============ Calls and returns ============
		case OpInvokestatic:
			idx := int(binary.BigEndian.Uint16(operands))
			c, _ := vm.module.Const(idx)
			fc, ok := c.(FuncConst)
			if !ok || fc.Fn == nil {
				return vm.fail(FailBadConstant, start, "invokestatic %d is not a function", idx)
			}
			if r, failed := vm.call(fc.Fn, start); failed {
				return r
			}

		case OpIreturn:
			v, ok := f.pop()
			if !ok {
				return vm.fail(FailStackUnderflow, start, "ireturn")
			}
			if r, done := vm.ret(v, true); done {
				return r
			}

		case OpReturn:
			if r, done := vm.ret(Undefined, false); done {
				return r
			}

		default:
			return vm.fail(FailUnknownOpcode, start, "%s", info.Name)
		}
	}
}

// call invokes fn. Arguments are popped in reverse so the first argument
// lands in slot 0. The bool result is true when execution must stop.
func (vm *VM) call(fn *symbols.FunctionSymbol, start int) (Result, bool) {
	caller := vm.frame
	n := fn.ParamCount()
	if len(caller.Stack) < n {
		return vm.fail(FailStackUnderflow, start, "call %s needs %d arguments", fn.Name(), n), true
	}

	if native, ok := vm.natives[fn]; ok {
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i], _ = caller.pop()
		}
		v, failure := native(vm, args)
		if failure != FailNone {
			return vm.fail(failure, start, "built-in %s", fn.Name()), true
		}
		if fn.FuncType().ReturnsValue() {
			caller.push(v)
		}
		return Result{}, false
	}

	if len(fn.Code) == 0 {
		return vm.fail(FailMissingBody, start, "%s", fn.Name()), true
	}
	if len(vm.frames) >= vm.maxDepth {
		return vm.fail(FailCallDepth, start, "depth %d calling %s", len(vm.frames), fn.Name()), true
	}

	callee := newFrame(fn, vm.ip)
	for i := n - 1; i >= 0; i-- {
		callee.Locals[i], _ = caller.pop()
	}
	vm.enter(callee)
	return Result{}, false
}

// ret pops the current frame. The bool result is true when the call stack is
// empty and r holds the program result.
func (vm *VM) ret(v Value, hasValue bool) (Result, bool) {
	done := vm.frame
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		vm.frame = nil
		return Result{Value: v, HasValue: hasValue}, true
	}
	vm.frame = vm.frames[len(vm.frames)-1]
	vm.code = vm.frame.Fn.Code
	vm.ip = done.ReturnIP
	if hasValue {
		vm.frame.push(v)
	}
	return Result{}, false
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// branchTaken evaluates a conditional jump given its position in the
// eq, ne, lt, ge, gt, le ordering shared by both jump families.
func branchTaken(test Opcode, cmp int) bool {
	switch test {
	case 0:
		return cmp == 0
	case 1:
		return cmp != 0
	case 2:
		return cmp < 0
	case 3:
		return cmp >= 0
	case 4:
		return cmp > 0
	case 5:
		return cmp <= 0
	}
	return false
}
