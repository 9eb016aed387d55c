package compiler

import (
	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/symbols"
)

// Compiler runs resolution and code generation over a Program.
type Compiler struct {
	builtins *symbols.BuiltinTable
	analysis *Analysis
}

// NewCompiler creates a compiler that resolves calls against builtins. A nil
// table selects symbols.Builtins.
func NewCompiler(builtins *symbols.BuiltinTable) *Compiler {
	if builtins == nil {
		builtins = symbols.Builtins
	}
	return &Compiler{builtins: builtins}
}

// Compile resolves prog and generates a module. When resolution reports an
// error no code is generated: the module is nil and the returned error is the
// full Diagnostics list.
func (c *Compiler) Compile(prog *Program) (*bytecode.Module, error) {
	c.analysis = Resolve(prog, c.builtins)
	if c.analysis.Diagnostics.HasErrors() {
		log.Infof("compilation failed with %d errors", len(c.analysis.Diagnostics.Errors()))
		return nil, c.analysis.Diagnostics
	}

	m, err := NewGenerator(c.analysis).Generate(prog)
	if err != nil {
		return nil, err
	}
	log.Debugf("compiled %d functions, %d constants", len(m.Functions()), len(m.Consts))
	return m, nil
}

// Analysis returns the result of the most recent resolution.
func (c *Compiler) Analysis() *Analysis { return c.analysis }

// Diagnostics returns the diagnostics of the most recent compilation,
// warnings included.
func (c *Compiler) Diagnostics() Diagnostics {
	if c.analysis == nil {
		return nil
	}
	return c.analysis.Diagnostics
}

// Compile compiles prog against the default built-ins.
func Compile(prog *Program) (*bytecode.Module, error) {
	return NewCompiler(nil).Compile(prog)
}
