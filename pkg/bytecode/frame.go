package bytecode

import "github.com/chazu/plume/pkg/symbols"

// StackFrame is the activation record of one call. Frames live only on the
// VM's call stack.
type StackFrame struct {
	Fn       *symbols.FunctionSymbol
	Locals   []Value
	Stack    []Value
	ReturnIP int // Caller's instruction pointer to resume at
}

func newFrame(fn *symbols.FunctionSymbol, returnIP int) *StackFrame {
	n := len(fn.Vars)
	if p := fn.ParamCount(); p > n {
		n = p
	}
	return &StackFrame{
		Fn:       fn,
		Locals:   make([]Value, n),
		Stack:    make([]Value, 0, int(fn.OpStackSize)),
		ReturnIP: returnIP,
	}
}

func (f *StackFrame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *StackFrame) pop() (Value, bool) {
	n := len(f.Stack)
	if n == 0 {
		return Undefined, false
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v, true
}

// pop2 pops the right operand then the left one and returns them in source
// order.
func (f *StackFrame) pop2() (a, b Value, ok bool) {
	if len(f.Stack) < 2 {
		return Undefined, Undefined, false
	}
	b, _ = f.pop()
	a, _ = f.pop()
	return a, b, true
}
