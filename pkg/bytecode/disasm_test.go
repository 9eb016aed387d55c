package bytecode

import (
	"strings"
	"testing"

	"github.com/chazu/plume/pkg/symbols"
)

func TestDisassembleModule(t *testing.T) {
	m, main := newTestModule(symbols.Void, 5, nil)
	s := m.AddString("hi")
	main.Code = code(
		op(OpSldc, byte(s)), invoke(0),
		op(OpBipush, 0xfe), op(OpIstore, 4),
		op(OpIinc, 4, 1),
		EmitJump(OpGoto, 0),
	)

	output := m.Disassemble()
	for _, want := range []string{
		"; Entry: main",
		"Builtin: println fn(any):void",
		"Function: main fn():void",
		`String: "hi"`,
		"sldc           4 ; String: \"hi\"",
		"invokestatic   0 ; Builtin: println",
		"bipush         -2",
		"istore         4 ; e",
		"iinc           4 1 ; e",
		"goto           0000",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleCodeReportsBadStream(t *testing.T) {
	lines := DisassembleCode([]byte{byte(OpIconst1), 0xEE})
	if len(lines) != 2 || lines[0] != "0000  iconst_1" {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[1], "unknown opcode") {
		t.Errorf("expected an error line, got %q", lines[1])
	}
}
