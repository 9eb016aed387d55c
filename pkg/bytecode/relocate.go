package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is returned when a byte stream contains an opcode the
	// metadata table does not define.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncatedInstruction is returned when an instruction's operands run
	// past the end of the stream.
	ErrTruncatedInstruction = errors.New("truncated instruction")

	// ErrJumpRange is returned when a relocated jump target does not fit in
	// two bytes.
	ErrJumpRange = errors.New("jump target out of range")
)

// Relocate returns a copy of code in which every jump target has been moved by
// delta. code is not modified. Operand bytes are skipped using the opcode
// metadata table, so operands that happen to look like jump opcodes are never
// rewritten.
func Relocate(code []byte, delta int) ([]byte, error) {
	out := make([]byte, len(code))
	copy(out, code)
	if delta == 0 {
		if err := WalkInstructions(code, nil); err != nil {
			return nil, err
		}
		return out, nil
	}
	err := WalkInstructions(code, func(offset int, op Opcode, operands []byte) error {
		if !op.IsJump() {
			return nil
		}
		target := int(binary.BigEndian.Uint16(operands)) + delta
		if target < 0 || target > 0xFFFF {
			return fmt.Errorf("%w: %s at %d -> %d", ErrJumpRange, op, offset, target)
		}
		binary.BigEndian.PutUint16(out[offset+1:], uint16(target))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Concat joins fragments, relocating each one by the combined length of the
// fragments before it.
func Concat(fragments ...[]byte) ([]byte, error) {
	var out []byte
	for _, f := range fragments {
		moved, err := Relocate(f, len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, moved...)
	}
	return out, nil
}

// WalkInstructions decodes code one instruction at a time and calls fn with
// the instruction's offset, opcode and operand bytes. fn may be nil to only
// validate the stream.
func WalkInstructions(code []byte, fn func(offset int, op Opcode, operands []byte) error) error {
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		info, ok := LookupOpcode(op)
		if !ok {
			return fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, byte(op), pc)
		}
		end := pc + 1 + info.OperandLen
		if end > len(code) {
			return fmt.Errorf("%w: %s at offset %d", ErrTruncatedInstruction, info.Name, pc)
		}
		if fn != nil {
			if err := fn(pc, op, code[pc+1:end]); err != nil {
				return err
			}
		}
		pc = end
	}
	return nil
}
