package bytecode

import (
	"fmt"

	"github.com/chazu/plume/pkg/symbols"
)

// Constant is a constant-pool entry: IntConst, StringConst or FuncConst.
type Constant interface {
	constant()
}

// IntConst is a numeric constant loaded with ldc.
type IntConst int64

// StringConst is a string constant loaded with sldc.
type StringConst string

// FuncConst is a function referenced by invokestatic.
type FuncConst struct {
	Fn *symbols.FunctionSymbol
}

func (IntConst) constant()    {}
func (StringConst) constant() {}
func (FuncConst) constant()   {}

// Module is a compiled program: an append-only constant pool and the entry
// function. Built-ins occupy pool slots 0..n-1 in table order.
type Module struct {
	Consts []Constant
	Entry  *symbols.FunctionSymbol

	builtins *symbols.BuiltinTable
}

// NewModule creates a module whose pool starts with the given built-ins.
func NewModule(builtins *symbols.BuiltinTable) *Module {
	if builtins == nil {
		builtins = symbols.Builtins
	}
	m := &Module{builtins: builtins}
	for _, b := range builtins.All() {
		m.Consts = append(m.Consts, FuncConst{Fn: b})
	}
	return m
}

// Builtins returns the built-in table the module was created with.
func (m *Module) Builtins() *symbols.BuiltinTable { return m.builtins }

// BuiltinCount returns the number of leading pool slots held by built-ins.
func (m *Module) BuiltinCount() int { return m.builtins.Len() }

// Add appends c to the pool and returns its index.
func (m *Module) Add(c Constant) int {
	m.Consts = append(m.Consts, c)
	return len(m.Consts) - 1
}

// AddInt returns the index of the numeric constant v, appending it if absent.
func (m *Module) AddInt(v int64) int {
	for i, c := range m.Consts {
		if ic, ok := c.(IntConst); ok && int64(ic) == v {
			return i
		}
	}
	return m.Add(IntConst(v))
}

// AddString returns the index of the string constant s, appending it if absent.
func (m *Module) AddString(s string) int {
	for i, c := range m.Consts {
		if sc, ok := c.(StringConst); ok && string(sc) == s {
			return i
		}
	}
	return m.Add(StringConst(s))
}

// AddFunction appends fn to the pool unless it is already present.
func (m *Module) AddFunction(fn *symbols.FunctionSymbol) int {
	if i := m.FunctionIndex(fn); i >= 0 {
		return i
	}
	return m.Add(FuncConst{Fn: fn})
}

// FunctionIndex returns the pool index of fn, or -1.
func (m *Module) FunctionIndex(fn *symbols.FunctionSymbol) int {
	for i, c := range m.Consts {
		if fc, ok := c.(FuncConst); ok && fc.Fn == fn {
			return i
		}
	}
	return -1
}

// Const returns the pool entry at index i.
func (m *Module) Const(i int) (Constant, bool) {
	if i < 0 || i >= len(m.Consts) {
		return nil, false
	}
	return m.Consts[i], true
}

// Functions returns the user functions in pool order.
func (m *Module) Functions() []*symbols.FunctionSymbol {
	var fns []*symbols.FunctionSymbol
	for _, c := range m.Consts[m.BuiltinCount():] {
		if fc, ok := c.(FuncConst); ok {
			fns = append(fns, fc.Fn)
		}
	}
	return fns
}

// Function looks up a user function by name. The first match in pool order
// wins.
func (m *Module) Function(name string) (*symbols.FunctionSymbol, bool) {
	for _, fn := range m.Functions() {
		if fn.Name() == name {
			return fn, true
		}
	}
	return nil, false
}

// Validate checks structural properties the VM relies on: an entry function
// that lives in the pool, and a body for every user function.
func (m *Module) Validate() error {
	if m.Entry == nil {
		return ErrNoEntry
	}
	if m.FunctionIndex(m.Entry) < m.BuiltinCount() {
		return fmt.Errorf("%w: entry %q is not a user function in the pool", ErrNoEntry, m.Entry.Name())
	}
	for _, fn := range m.Functions() {
		if len(fn.Code) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingBody, fn.Name())
		}
	}
	return nil
}
