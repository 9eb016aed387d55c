package symbols

// ScopeID indexes a Scope in a Table. Scopes refer to their parent by ID.
type ScopeID int32

// SymbolID indexes a Symbol in a Table.
type SymbolID int32

const (
	NoScope  ScopeID  = -1
	NoSymbol SymbolID = -1
)

// Scope maps names to symbols declared directly in it.
type Scope struct {
	Parent ScopeID
	names  map[string]SymbolID
	order  []string
}

// Names returns the names bound in the scope in first-declaration order.
func (s *Scope) Names() []string { return s.order }

// Table is the arena owning every Scope and Symbol of a compilation.
// Built-in function symbols are registered first so their IDs are stable.
type Table struct {
	scopes   []Scope
	symbols  []Symbol
	builtins *BuiltinTable
}

// NewTable creates an empty table seeded with the given built-ins.
func NewTable(builtins *BuiltinTable) *Table {
	t := &Table{builtins: builtins}
	if builtins != nil {
		for _, b := range builtins.All() {
			t.symbols = append(t.symbols, b)
		}
	}
	return t
}

// Builtins returns the built-in table the Table was seeded with.
func (t *Table) Builtins() *BuiltinTable { return t.builtins }

// NewScope creates a scope nested in parent (NoScope for the root).
func (t *Table) NewScope(parent ScopeID) ScopeID {
	t.scopes = append(t.scopes, Scope{Parent: parent, names: make(map[string]SymbolID)})
	return ScopeID(len(t.scopes) - 1)
}

// Scope returns the scope with the given ID.
func (t *Table) Scope(id ScopeID) *Scope {
	if id < 0 || int(id) >= len(t.scopes) {
		return nil
	}
	return &t.scopes[id]
}

// ScopeCount returns the number of scopes in the arena.
func (t *Table) ScopeCount() int { return len(t.scopes) }

// Add stores sym in the arena without binding it to any name.
func (t *Table) Add(sym Symbol) SymbolID {
	t.symbols = append(t.symbols, sym)
	return SymbolID(len(t.symbols) - 1)
}

// Symbol returns the symbol with the given ID, or nil.
func (t *Table) Symbol(id SymbolID) Symbol {
	if id < 0 || int(id) >= len(t.symbols) {
		return nil
	}
	return t.symbols[id]
}

// Enter binds name to sym in scope. An existing binding is overwritten and
// reported through the replaced return value.
func (t *Table) Enter(scope ScopeID, name string, sym Symbol) (id SymbolID, replaced bool) {
	s := t.Scope(scope)
	id = t.Add(sym)
	if _, replaced = s.names[name]; !replaced {
		s.order = append(s.order, name)
	}
	s.names[name] = id
	return id, replaced
}

// LookupLocal finds name in scope only.
func (t *Table) LookupLocal(scope ScopeID, name string) (SymbolID, bool) {
	s := t.Scope(scope)
	if s == nil {
		return NoSymbol, false
	}
	id, ok := s.names[name]
	return id, ok
}

// LookupCascade finds name in scope or the nearest enclosing scope.
func (t *Table) LookupCascade(scope ScopeID, name string) (SymbolID, bool) {
	for scope != NoScope {
		if id, ok := t.LookupLocal(scope, name); ok {
			return id, true
		}
		s := t.Scope(scope)
		if s == nil {
			break
		}
		scope = s.Parent
	}
	return NoSymbol, false
}

// LookupBuiltin returns the arena ID of the built-in with the given name.
func (t *Table) LookupBuiltin(name string) (SymbolID, bool) {
	if t.builtins == nil {
		return NoSymbol, false
	}
	b, ok := t.builtins.Lookup(name)
	if !ok {
		return NoSymbol, false
	}
	return SymbolID(t.builtins.Index(b)), true
}
