package bytecode

import "fmt"

// Opcode represents a bytecode instruction. Numbering follows the JVM where
// an equivalent instruction exists.
type Opcode byte

const (
	// ========================================================================
	// Constants
	// ========================================================================

	OpIconst0 Opcode = 0x03 // Push 0
	OpIconst1 Opcode = 0x04 // Push 1
	OpIconst2 Opcode = 0x05 // Push 2
	OpIconst3 Opcode = 0x06 // Push 3
	OpIconst4 Opcode = 0x07 // Push 4
	OpIconst5 Opcode = 0x08 // Push 5
	OpBipush  Opcode = 0x10 // Push signed byte: bipush <value:i8>
	OpSipush  Opcode = 0x11 // Push signed short: sipush <value:i16>
	OpLdc     Opcode = 0x12 // Push numeric constant: ldc <index:u8>
	OpSldc    Opcode = 0x13 // Push string constant: sldc <index:u8>

	// ========================================================================
	// Local variables
	// ========================================================================

	OpIload   Opcode = 0x15 // Push local: iload <slot:u8>
	OpIload0  Opcode = 0x1a
	OpIload1  Opcode = 0x1b
	OpIload2  Opcode = 0x1c
	OpIload3  Opcode = 0x1d
	OpIstore  Opcode = 0x36 // Pop into local: istore <slot:u8>
	OpIstore0 Opcode = 0x3b
	OpIstore1 Opcode = 0x3c
	OpIstore2 Opcode = 0x3d
	OpIstore3 Opcode = 0x3e

	// ========================================================================
	// Stack and arithmetic
	// ========================================================================

	OpPop  Opcode = 0x57 // Discard top of stack
	OpIadd Opcode = 0x60 // Pop two, push a + b
	OpSadd Opcode = 0x61 // Pop two, push string concatenation
	OpIsub Opcode = 0x64
	OpImul Opcode = 0x68
	OpIdiv Opcode = 0x6c
	OpIrem Opcode = 0x70
	OpIneg Opcode = 0x74
	OpIinc Opcode = 0x84 // Add to local in place: iinc <slot:u8> <delta:i8>
	OpLcmp Opcode = 0x94 // Pop two, push -1, 0 or 1

	// ========================================================================
	// Control flow. Targets are absolute offsets in the same function.
	// ========================================================================

	OpIfeq     Opcode = 0x99 // Pop, jump if == 0: ifeq <target:u16>
	OpIfne     Opcode = 0x9a
	OpIflt     Opcode = 0x9b
	OpIfge     Opcode = 0x9c
	OpIfgt     Opcode = 0x9d
	OpIfle     Opcode = 0x9e
	OpIfIcmpeq Opcode = 0x9f // Pop two, jump if a == b: if_icmpeq <target:u16>
	OpIfIcmpne Opcode = 0xa0
	OpIfIcmplt Opcode = 0xa1
	OpIfIcmpge Opcode = 0xa2
	OpIfIcmpgt Opcode = 0xa3
	OpIfIcmple Opcode = 0xa4
	OpGoto     Opcode = 0xa7 // goto <target:u16>

	// ========================================================================
	// Calls and returns
	// ========================================================================

	OpIreturn      Opcode = 0xac // Return top of stack
	OpReturn       Opcode = 0xb1 // Return without a value
	OpInvokestatic Opcode = 0xb8 // Call function constant: invokestatic <index:u16>
)

// OpcodeInfo provides metadata about each opcode. It is the single source of
// instruction widths for the generator, the relocator, the VM and the
// disassembler.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack (-1 = variable)
	OperandLen int    // Number of operand bytes following the opcode
	Jump       bool   // Operand is a 2-byte absolute jump target
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpIconst0: {"iconst_0", 0, 1, 0, false},
	OpIconst1: {"iconst_1", 0, 1, 0, false},
	OpIconst2: {"iconst_2", 0, 1, 0, false},
	OpIconst3: {"iconst_3", 0, 1, 0, false},
	OpIconst4: {"iconst_4", 0, 1, 0, false},
	OpIconst5: {"iconst_5", 0, 1, 0, false},
	OpBipush:  {"bipush", 0, 1, 1, false},
	OpSipush:  {"sipush", 0, 1, 2, false},
	OpLdc:     {"ldc", 0, 1, 1, false},
	OpSldc:    {"sldc", 0, 1, 1, false},

	OpIload:   {"iload", 0, 1, 1, false},
	OpIload0:  {"iload_0", 0, 1, 0, false},
	OpIload1:  {"iload_1", 0, 1, 0, false},
	OpIload2:  {"iload_2", 0, 1, 0, false},
	OpIload3:  {"iload_3", 0, 1, 0, false},
	OpIstore:  {"istore", 1, 0, 1, false},
	OpIstore0: {"istore_0", 1, 0, 0, false},
	OpIstore1: {"istore_1", 1, 0, 0, false},
	OpIstore2: {"istore_2", 1, 0, 0, false},
	OpIstore3: {"istore_3", 1, 0, 0, false},

	OpPop:  {"pop", 1, 0, 0, false},
	OpIadd: {"iadd", 2, 1, 0, false},
	OpSadd: {"sadd", 2, 1, 0, false},
	OpIsub: {"isub", 2, 1, 0, false},
	OpImul: {"imul", 2, 1, 0, false},
	OpIdiv: {"idiv", 2, 1, 0, false},
	OpIrem: {"irem", 2, 1, 0, false},
	OpIneg: {"ineg", 1, 1, 0, false},
	OpIinc: {"iinc", 0, 0, 2, false},
	OpLcmp: {"lcmp", 2, 1, 0, false},

	OpIfeq:     {"ifeq", 1, 0, 2, true},
	OpIfne:     {"ifne", 1, 0, 2, true},
	OpIflt:     {"iflt", 1, 0, 2, true},
	OpIfge:     {"ifge", 1, 0, 2, true},
	OpIfgt:     {"ifgt", 1, 0, 2, true},
	OpIfle:     {"ifle", 1, 0, 2, true},
	OpIfIcmpeq: {"if_icmpeq", 2, 0, 2, true},
	OpIfIcmpne: {"if_icmpne", 2, 0, 2, true},
	OpIfIcmplt: {"if_icmplt", 2, 0, 2, true},
	OpIfIcmpge: {"if_icmpge", 2, 0, 2, true},
	OpIfIcmpgt: {"if_icmpgt", 2, 0, 2, true},
	OpIfIcmple: {"if_icmple", 2, 0, 2, true},
	OpGoto:     {"goto", 0, 0, 2, true},

	OpIreturn:      {"ireturn", 1, 0, 0, false},
	OpReturn:       {"return", 0, 0, 0, false},
	OpInvokestatic: {"invokestatic", -1, -1, 2, false},
}

// LookupOpcode returns metadata for an opcode and whether it is defined.
func LookupOpcode(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if the opcode carries a 2-byte jump target.
func (op Opcode) IsJump() bool {
	return GetOpcodeInfo(op).Jump
}

// IsReturn returns true if this opcode leaves the current function.
func (op Opcode) IsReturn() bool {
	return op == OpIreturn || op == OpReturn
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// Negate returns the conditional jump with the opposite test. The second
// result is false for opcodes that are not conditional jumps.
func (op Opcode) Negate() (Opcode, bool) {
	switch op {
	case OpIfeq:
		return OpIfne, true
	case OpIfne:
		return OpIfeq, true
	case OpIflt:
		return OpIfge, true
	case OpIfge:
		return OpIflt, true
	case OpIfgt:
		return OpIfle, true
	case OpIfle:
		return OpIfgt, true
	case OpIfIcmpeq:
		return OpIfIcmpne, true
	case OpIfIcmpne:
		return OpIfIcmpeq, true
	case OpIfIcmplt:
		return OpIfIcmpge, true
	case OpIfIcmpge:
		return OpIfIcmplt, true
	case OpIfIcmpgt:
		return OpIfIcmple, true
	case OpIfIcmple:
		return OpIfIcmpgt, true
	}
	return op, false
}
