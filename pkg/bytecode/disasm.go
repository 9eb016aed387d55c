package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chazu/plume/pkg/symbols"
)

// Disassemble returns a human-readable listing of the module: the constant
// pool followed by the code of every user function.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	sb.WriteString("; Plume module\n")
	if m.Entry != nil {
		sb.WriteString(fmt.Sprintf("; Entry: %s\n", m.Entry.Name()))
	}
	sb.WriteString("\n; Constants:\n")
	for i, c := range m.Consts {
		sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, m.describeConst(c)))
	}

	for _, fn := range m.Functions() {
		sb.WriteString("\n")
		sb.WriteString(DisassembleFunction(m, fn))
	}
	return sb.String()
}

// DisassembleFunction lists the code of a single function. m is used to
// annotate constant-pool operands and may be nil.
func DisassembleFunction(m *Module, fn *symbols.FunctionSymbol) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s %s ===\n", fn.Name(), fn.FuncType().Name()))
	if len(fn.Vars) > 0 {
		sb.WriteString(fmt.Sprintf("; Locals (%d): ", len(fn.Vars)))
		for i, v := range fn.Vars {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%d=%s", i, v.Name()))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("; Stack: %d\n", fn.OpStackSize))

	err := WalkInstructions(fn.Code, func(offset int, op Opcode, operands []byte) error {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, formatInstruction(m, fn, op, operands)))
		return nil
	})
	if err != nil {
		sb.WriteString(fmt.Sprintf("; error: %v\n", err))
	}
	return sb.String()
}

// DisassembleCode lists raw instructions without module context.
func DisassembleCode(code []byte) []string {
	var lines []string
	err := WalkInstructions(code, func(offset int, op Opcode, operands []byte) error {
		lines = append(lines, fmt.Sprintf("%04X  %s", offset, formatInstruction(nil, nil, op, operands)))
		return nil
	})
	if err != nil {
		lines = append(lines, fmt.Sprintf("; error: %v", err))
	}
	return lines
}

func formatInstruction(m *Module, fn *symbols.FunctionSymbol, op Opcode, operands []byte) string {
	name := op.String()
	switch {
	case op.IsJump():
		return fmt.Sprintf("%-14s %04X", name, binary.BigEndian.Uint16(operands))

	case op == OpBipush:
		return fmt.Sprintf("%-14s %d", name, int8(operands[0]))

	case op == OpSipush:
		return fmt.Sprintf("%-14s %d", name, int16(binary.BigEndian.Uint16(operands)))

	case op == OpLdc || op == OpSldc:
		idx := int(operands[0])
		return fmt.Sprintf("%-14s %d%s", name, idx, constComment(m, idx))

	case op == OpInvokestatic:
		idx := int(binary.BigEndian.Uint16(operands))
		return fmt.Sprintf("%-14s %d%s", name, idx, constComment(m, idx))

	case op == OpIinc:
		return fmt.Sprintf("%-14s %d %d%s", name, operands[0], int8(operands[1]), localComment(fn, int(operands[0])))

	case op == OpIload || op == OpIstore:
		return fmt.Sprintf("%-14s %d%s", name, operands[0], localComment(fn, int(operands[0])))

	case op >= OpIload0 && op <= OpIload3:
		return name + localComment(fn, int(op-OpIload0))

	case op >= OpIstore0 && op <= OpIstore3:
		return name + localComment(fn, int(op-OpIstore0))
	}
	return name
}

func constComment(m *Module, idx int) string {
	if m == nil {
		return ""
	}
	c, ok := m.Const(idx)
	if !ok {
		return " ; <out of range>"
	}
	return " ; " + m.describeConst(c)
}

func localComment(fn *symbols.FunctionSymbol, slot int) string {
	if fn == nil || slot >= len(fn.Vars) {
		return ""
	}
	return " ; " + fn.Vars[slot].Name()
}

func (m *Module) describeConst(c Constant) string {
	switch c := c.(type) {
	case IntConst:
		return fmt.Sprintf("Number: %d", int64(c))
	case StringConst:
		display := string(c)
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		return fmt.Sprintf("String: %q", display)
	case FuncConst:
		if c.Fn.IsBuiltin() {
			return fmt.Sprintf("Builtin: %s %s", c.Fn.Name(), c.Fn.FuncType().Name())
		}
		return fmt.Sprintf("Function: %s %s", c.Fn.Name(), c.Fn.FuncType().Name())
	}
	return fmt.Sprintf("unknown %T", c)
}
