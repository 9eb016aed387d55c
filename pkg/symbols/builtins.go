package symbols

// Built-in function names.
const (
	PrintlnName         = "println"
	TickName            = "tick"
	IntegerToStringName = "integer_to_string"
)

// BuiltinTable is an immutable, ordered set of built-in function symbols.
// The order fixes each built-in's constant-pool index.
type BuiltinTable struct {
	list   []*FunctionSymbol
	byName map[string]int
}

// NewBuiltinTable creates a table from the given symbols, in order.
func NewBuiltinTable(fns ...*FunctionSymbol) *BuiltinTable {
	bt := &BuiltinTable{byName: make(map[string]int, len(fns))}
	for _, f := range fns {
		f.builtin = true
		f.Code = nil
		bt.byName[f.name] = len(bt.list)
		bt.list = append(bt.list, f)
	}
	return bt
}

// All returns the built-ins in pool order. The slice must not be modified.
func (bt *BuiltinTable) All() []*FunctionSymbol { return bt.list }

// Len returns the number of built-ins.
func (bt *BuiltinTable) Len() int { return len(bt.list) }

// Lookup finds a built-in by name.
func (bt *BuiltinTable) Lookup(name string) (*FunctionSymbol, bool) {
	i, ok := bt.byName[name]
	if !ok {
		return nil, false
	}
	return bt.list[i], true
}

// Index returns the pool position of fn, or -1 if fn is not in the table.
func (bt *BuiltinTable) Index(fn *FunctionSymbol) int {
	for i, f := range bt.list {
		if f == fn {
			return i
		}
	}
	return -1
}

// Contains reports whether fn is one of the table's symbols.
func (bt *BuiltinTable) Contains(fn *FunctionSymbol) bool {
	return bt.Index(fn) >= 0
}

// Builtins is the standard table: println, tick, integer_to_string.
var Builtins = NewBuiltinTable(
	NewFunctionSymbol(PrintlnName, NewFunctionType(Void, Any)),
	NewFunctionSymbol(TickName, NewFunctionType(Integer)),
	NewFunctionSymbol(IntegerToStringName, NewFunctionType(String, Integer)),
)
