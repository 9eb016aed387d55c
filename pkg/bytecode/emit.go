package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPoolIndex is returned when a constant lands beyond the reach of a
	// 1-byte ldc/sldc operand.
	ErrPoolIndex = errors.New("constant pool index does not fit in one byte")

	// ErrCallIndex is returned when a function constant lands beyond the
	// reach of the 2-byte invokestatic operand.
	ErrCallIndex = errors.New("function pool index does not fit in two bytes")

	// ErrSlotIndex is returned for local slots above 255.
	ErrSlotIndex = errors.New("local slot does not fit in one byte")
)

// Emit encodes a single instruction.
func Emit(op Opcode, operands ...byte) []byte {
	out := make([]byte, 0, 1+len(operands))
	out = append(out, byte(op))
	return append(out, operands...)
}

// EmitJump encodes a jump to an absolute target.
func EmitJump(op Opcode, target int) []byte {
	out := []byte{byte(op), 0, 0}
	binary.BigEndian.PutUint16(out[1:], uint16(target))
	return out
}

// EmitCall encodes invokestatic for the given pool index.
func EmitCall(index int) ([]byte, error) {
	if index < 0 || index > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrCallIndex, index)
	}
	out := []byte{byte(OpInvokestatic), 0, 0}
	binary.BigEndian.PutUint16(out[1:], uint16(index))
	return out, nil
}

// EmitInt encodes the cheapest push of n: iconst_0..5, bipush, sipush, or ldc
// of a pool constant added to m.
func EmitInt(m *Module, n int64) ([]byte, error) {
	switch {
	case n >= 0 && n <= 5:
		return Emit(OpIconst0 + Opcode(n)), nil
	case n >= math.MinInt8 && n <= math.MaxInt8:
		return Emit(OpBipush, byte(int8(n))), nil
	case n >= math.MinInt16 && n <= math.MaxInt16:
		out := []byte{byte(OpSipush), 0, 0}
		binary.BigEndian.PutUint16(out[1:], uint16(int16(n)))
		return out, nil
	}
	idx := m.AddInt(n)
	if idx > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d at %d", ErrPoolIndex, n, idx)
	}
	return Emit(OpLdc, byte(idx)), nil
}

// EmitString encodes sldc of a pool constant added to m.
func EmitString(m *Module, s string) ([]byte, error) {
	idx := m.AddString(s)
	if idx > math.MaxUint8 {
		return nil, fmt.Errorf("%w: string at %d", ErrPoolIndex, idx)
	}
	return Emit(OpSldc, byte(idx)), nil
}

// EmitLoad encodes a load of a local slot.
func EmitLoad(slot int) ([]byte, error) {
	return emitSlot(OpIload, OpIload0, slot)
}

// EmitStore encodes a store into a local slot.
func EmitStore(slot int) ([]byte, error) {
	return emitSlot(OpIstore, OpIstore0, slot)
}

func emitSlot(generic, short Opcode, slot int) ([]byte, error) {
	switch {
	case slot >= 0 && slot <= 3:
		return Emit(short + Opcode(slot)), nil
	case slot >= 0 && slot <= math.MaxUint8:
		return Emit(generic, byte(slot)), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrSlotIndex, slot)
}

// EmitIinc encodes iinc of slot by a signed 1-byte delta.
func EmitIinc(slot int, delta int8) ([]byte, error) {
	if slot < 0 || slot > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d", ErrSlotIndex, slot)
	}
	return Emit(OpIinc, byte(slot), byte(delta)), nil
}
