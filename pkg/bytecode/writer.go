package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/plume/pkg/symbols"
)

// Section markers.
const (
	TypesMarker  = "types"
	ConstsMarker = "consts"
)

// Constant tags in the consts section.
const (
	tagByte     byte = 1 // numeric constant 0..255 in one byte
	tagString   byte = 2
	tagFunction byte = 3
	tagWideInt  byte = 4 // numeric constant, 8 bytes big-endian signed
)

// ModuleWriter encodes a Module into the binary module format.
type ModuleWriter struct {
	buf   []byte
	types []symbols.Type
	seen  map[string]bool
}

// NewModuleWriter creates a writer.
func NewModuleWriter() *ModuleWriter {
	return &ModuleWriter{}
}

// Serialize encodes m with a fresh ModuleWriter.
func (m *Module) Serialize() ([]byte, error) {
	return NewModuleWriter().Write(m)
}

// Write encodes m. Built-ins and system types are never written. The entry
// function must be the first user function in the pool.
//
// Format:
//
//	[len:1] "types" [type_count:1] type records
//	[len:1] "consts" [const_count:1] constant records
func (w *ModuleWriter) Write(m *Module) ([]byte, error) {
	w.buf = w.buf[:0]
	w.types = nil
	w.seen = make(map[string]bool)

	consts := m.Consts[m.BuiltinCount():]
	if len(consts) > 255 {
		return nil, ErrTooManyConsts
	}
	if fns := m.Functions(); m.Entry != nil && (len(fns) == 0 || fns[0] != m.Entry) {
		return nil, fmt.Errorf("%w: entry %q must be the first function constant", ErrEncode, m.Entry.Name())
	}

	for _, c := range consts {
		fc, ok := c.(FuncConst)
		if !ok {
			continue
		}
		w.collectType(fc.Fn.FuncType())
		for _, v := range fc.Fn.Vars {
			w.collectType(v.Type())
		}
	}
	if len(w.types) > 255 {
		return nil, ErrTooManyTypes
	}

	// Types section
	if err := w.writeName(TypesMarker); err != nil {
		return nil, err
	}
	w.buf = append(w.buf, byte(len(w.types)))
	for _, t := range w.types {
		if err := w.writeType(t); err != nil {
			return nil, err
		}
	}

	// Consts section
	if err := w.writeName(ConstsMarker); err != nil {
		return nil, err
	}
	w.buf = append(w.buf, byte(len(consts)))
	for i, c := range consts {
		if err := w.writeConst(c); err != nil {
			return nil, fmt.Errorf("constant %d: %w", i+m.BuiltinCount(), err)
		}
	}

	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out, nil
}

// collectType records t and every non-system type it references, dependencies
// first. Types are identified by name.
func (w *ModuleWriter) collectType(t symbols.Type) {
	if t == nil || symbols.IsSystemType(t) || w.seen[t.Name()] {
		return
	}
	w.seen[t.Name()] = true
	switch t := t.(type) {
	case *symbols.SimpleType:
		for _, u := range t.UpperTypes {
			w.collectType(u)
		}
	case *symbols.FunctionType:
		w.collectType(t.ReturnType)
		for _, p := range t.ParamTypes {
			w.collectType(p)
		}
	case *symbols.UnionType:
		for _, u := range t.Types {
			w.collectType(u)
		}
	}
	w.types = append(w.types, t)
}

func (w *ModuleWriter) writeType(t symbols.Type) error {
	w.buf = append(w.buf, byte(t.Kind()))
	if err := w.writeName(t.Name()); err != nil {
		return err
	}
	switch t := t.(type) {
	case *symbols.SimpleType:
		return w.writeTypeNames(t.UpperTypes)
	case *symbols.FunctionType:
		if err := w.writeTypeName(t.ReturnType); err != nil {
			return err
		}
		return w.writeTypeNames(t.ParamTypes)
	case *symbols.UnionType:
		return w.writeTypeNames(t.Types)
	}
	return fmt.Errorf("%w: %T", ErrUnencodableType, t)
}

func (w *ModuleWriter) writeConst(c Constant) error {
	switch c := c.(type) {
	case IntConst:
		if c >= 0 && c <= 255 {
			w.buf = append(w.buf, tagByte, byte(c))
		} else {
			w.buf = append(w.buf, tagWideInt)
			w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(c))
		}
		return nil

	case StringConst:
		w.buf = append(w.buf, tagString)
		return w.writeName(string(c))

	case FuncConst:
		fn := c.Fn
		w.buf = append(w.buf, tagFunction)
		if err := w.writeName(fn.Name()); err != nil {
			return err
		}
		if err := w.writeTypeName(fn.FuncType()); err != nil {
			return err
		}
		w.buf = append(w.buf, fn.OpStackSize)
		if len(fn.Vars) > 255 {
			return ErrTooManyLocals
		}
		w.buf = append(w.buf, byte(len(fn.Vars)))
		for _, v := range fn.Vars {
			if err := w.writeName(v.Name()); err != nil {
				return err
			}
			if err := w.writeTypeName(v.Type()); err != nil {
				return err
			}
		}
		if len(fn.Code) > 0xFFFF {
			return ErrCodeTooLong
		}
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(fn.Code)))
		w.buf = append(w.buf, fn.Code...)
		return nil
	}
	return fmt.Errorf("%w: constant %T", ErrEncode, c)
}

func (w *ModuleWriter) writeName(s string) error {
	if len(s) > 255 {
		return fmt.Errorf("%w: %.20q...", ErrNameTooLong, s)
	}
	w.buf = append(w.buf, byte(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *ModuleWriter) writeTypeName(t symbols.Type) error {
	if t == nil {
		t = symbols.Any
	}
	return w.writeName(t.Name())
}

func (w *ModuleWriter) writeTypeNames(ts []symbols.Type) error {
	if len(ts) > 255 {
		return fmt.Errorf("%w: type list of %d", ErrEncode, len(ts))
	}
	w.buf = append(w.buf, byte(len(ts)))
	for _, t := range ts {
		if err := w.writeTypeName(t); err != nil {
			return err
		}
	}
	return nil
}
