package symbols

import "fmt"

// SymbolKind distinguishes variables from functions.
type SymbolKind uint8

const (
	SymVariable SymbolKind = iota
	SymFunction
)

func (k SymbolKind) String() string {
	if k == SymFunction {
		return "function"
	}
	return "variable"
}

// Symbol is implemented by *VarSymbol and *FunctionSymbol.
type Symbol interface {
	Name() string
	Kind() SymbolKind
	Type() Type
	symbol()
}

// VarSymbol is a parameter or local variable.
type VarSymbol struct {
	name string
	typ  Type

	// Owner is the function whose frame holds this variable.
	Owner *FunctionSymbol
	// Slot is the index into Owner's local-slot array. Assigned once, in
	// declaration order, by FunctionSymbol.AddVar.
	Slot int
}

// NewVarSymbol creates a variable that is not yet attached to a function.
func NewVarSymbol(name string, t Type) *VarSymbol {
	if t == nil {
		t = Any
	}
	return &VarSymbol{name: name, typ: t, Slot: -1}
}

func (s *VarSymbol) Name() string     { return s.name }
func (s *VarSymbol) Kind() SymbolKind { return SymVariable }
func (s *VarSymbol) Type() Type       { return s.typ }
func (s *VarSymbol) symbol()          {}

// SetType narrows the declared type, e.g. from an initializer.
func (s *VarSymbol) SetType(t Type) {
	if t != nil {
		s.typ = t
	}
}

func (s *VarSymbol) String() string {
	return fmt.Sprintf("var %s: %s", s.name, typeName(s.typ))
}

// FunctionSymbol is a user function or a built-in. Built-ins have no Code.
type FunctionSymbol struct {
	name string
	typ  *FunctionType

	// Vars holds parameters first, then locals, in declaration order.
	Vars []*VarSymbol

	// OpStackSize is a hint for the operand stack capacity of a frame.
	OpStackSize uint8

	// Code is the instruction stream; nil for built-ins.
	Code []byte

	builtin bool
}

// NewFunctionSymbol creates a user function symbol.
func NewFunctionSymbol(name string, t *FunctionType) *FunctionSymbol {
	if t == nil {
		t = NewFunctionType(Void)
	}
	return &FunctionSymbol{name: name, typ: t}
}

func (s *FunctionSymbol) Name() string     { return s.name }
func (s *FunctionSymbol) Kind() SymbolKind { return SymFunction }
func (s *FunctionSymbol) Type() Type       { return s.typ }
func (s *FunctionSymbol) symbol()          {}

// FuncType returns the function's signature.
func (s *FunctionSymbol) FuncType() *FunctionType { return s.typ }

// SetFuncType replaces the signature. Used by the resolver once the return
// type of an unannotated function is known.
func (s *FunctionSymbol) SetFuncType(t *FunctionType) { s.typ = t }

// IsBuiltin reports whether the function is executed natively by the VM.
func (s *FunctionSymbol) IsBuiltin() bool { return s.builtin }

// ParamCount returns the number of declared parameters.
func (s *FunctionSymbol) ParamCount() int { return len(s.typ.ParamTypes) }

// AddVar appends v to the function's local-slot layout and returns its slot.
func (s *FunctionSymbol) AddVar(v *VarSymbol) int {
	v.Owner = s
	v.Slot = len(s.Vars)
	s.Vars = append(s.Vars, v)
	return v.Slot
}

func (s *FunctionSymbol) String() string {
	return fmt.Sprintf("function %s: %s (%d vars)", s.name, s.typ.Name(), len(s.Vars))
}
