package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if info.Jump && info.OperandLen != 2 {
			t.Errorf("%s: jump opcodes must carry a 2-byte target", info.Name)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 46 {
		t.Errorf("OpcodeCount() = %d, want 46", got)
	}
}

func TestJVMNumbering(t *testing.T) {
	tests := []struct {
		op   Opcode
		want byte
		name string
	}{
		{OpIconst0, 0x03, "iconst_0"},
		{OpIconst5, 0x08, "iconst_5"},
		{OpBipush, 0x10, "bipush"},
		{OpSipush, 0x11, "sipush"},
		{OpLdc, 0x12, "ldc"},
		{OpSldc, 0x13, "sldc"},
		{OpIload, 0x15, "iload"},
		{OpIload0, 0x1a, "iload_0"},
		{OpIstore, 0x36, "istore"},
		{OpIstore3, 0x3e, "istore_3"},
		{OpIadd, 0x60, "iadd"},
		{OpSadd, 0x61, "sadd"},
		{OpIdiv, 0x6c, "idiv"},
		{OpIinc, 0x84, "iinc"},
		{OpLcmp, 0x94, "lcmp"},
		{OpIfeq, 0x99, "ifeq"},
		{OpIfIcmple, 0xa4, "if_icmple"},
		{OpGoto, 0xa7, "goto"},
		{OpIreturn, 0xac, "ireturn"},
		{OpReturn, 0xb1, "return"},
		{OpInvokestatic, 0xb8, "invokestatic"},
	}

	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.name, byte(tt.op), tt.want)
		}
		if got := tt.op.String(); got != tt.name {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.name)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if _, ok := LookupOpcode(op); ok {
		t.Error("LookupOpcode should report undefined opcodes")
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpIconst3, 0},
		{OpBipush, 1},
		{OpSipush, 2},
		{OpLdc, 1},
		{OpSldc, 1},
		{OpIload, 1},
		{OpIload2, 0},
		{OpIstore, 1},
		{OpIinc, 2},
		{OpIfne, 2},
		{OpIfIcmpgt, 2},
		{OpGoto, 2},
		{OpInvokestatic, 2},
		{OpIreturn, 0},
		{OpPop, 0},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.InstructionLen(); got != tt.want+1 {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.want+1)
		}
	}
}

func TestNegateIsInvolution(t *testing.T) {
	for _, op := range AllOpcodes() {
		neg, ok := op.Negate()
		if !ok {
			if op.IsJump() && op != OpGoto {
				t.Errorf("%s is conditional but has no negation", op)
			}
			continue
		}
		back, _ := neg.Negate()
		if back != op {
			t.Errorf("Negate(Negate(%s)) = %s", op, back)
		}
	}
}
