package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/plume/pkg/symbols"
)

// ModuleReader decodes the binary module format.
type ModuleReader struct {
	builtins *symbols.BuiltinTable

	data    []byte
	pos     int
	section string
}

// NewModuleReader creates a reader whose modules are seeded with builtins.
// A nil table selects symbols.Builtins.
func NewModuleReader(builtins *symbols.BuiltinTable) *ModuleReader {
	if builtins == nil {
		builtins = symbols.Builtins
	}
	return &ModuleReader{builtins: builtins}
}

// Deserialize decodes a module using the standard built-ins.
func Deserialize(data []byte) (*Module, error) {
	return NewModuleReader(nil).Read(data)
}

// typeStub is a type whose references are filled in once every name in the
// types section is known.
type typeStub struct {
	t    symbols.Type
	refs []string // upper types, return+params, or members
}

// Read decodes data. Failures are returned as *DecodeError. The entry
// function is the first function constant.
func (r *ModuleReader) Read(data []byte) (*Module, error) {
	r.data = data
	r.pos = 0
	r.section = "header"

	// Types section
	if err := r.expectMarker(TypesMarker); err != nil {
		return nil, err
	}
	r.section = TypesMarker
	count, err := r.readByte("type count")
	if err != nil {
		return nil, err
	}

	named := make(map[string]symbols.Type, count)
	stubs := make([]typeStub, 0, count)
	for i := 0; i < int(count); i++ {
		stub, err := r.readTypeStub()
		if err != nil {
			return nil, err
		}
		named[stub.t.Name()] = stub.t
		stubs = append(stubs, stub)
	}

	resolve := func(name string) (symbols.Type, error) {
		if t, ok := symbols.SystemType(name); ok {
			return t, nil
		}
		if t, ok := named[name]; ok {
			return t, nil
		}
		return nil, r.errorf(ErrUnknownType, "%q", name)
	}

	// Second pass: back-fill references now that every name is known.
	for _, s := range stubs {
		refs := make([]symbols.Type, len(s.refs))
		for i, name := range s.refs {
			if refs[i], err = resolve(name); err != nil {
				return nil, err
			}
		}
		switch t := s.t.(type) {
		case *symbols.SimpleType:
			t.UpperTypes = refs
		case *symbols.FunctionType:
			t.ReturnType = refs[0]
			t.ParamTypes = refs[1:]
		case *symbols.UnionType:
			t.Types = refs
		}
	}

	// Consts section
	if err := r.expectMarker(ConstsMarker); err != nil {
		return nil, err
	}
	r.section = ConstsMarker
	count, err = r.readByte("constant count")
	if err != nil {
		return nil, err
	}

	m := NewModule(r.builtins)
	for i := 0; i < int(count); i++ {
		c, err := r.readConst(resolve)
		if err != nil {
			return nil, err
		}
		m.Add(c)
		if fc, ok := c.(FuncConst); ok && m.Entry == nil {
			m.Entry = fc.Fn
		}
	}

	if r.pos != len(r.data) {
		return nil, r.errorf(ErrTrailingData, "%d bytes", len(r.data)-r.pos)
	}
	return m, nil
}

func (r *ModuleReader) readTypeStub() (typeStub, error) {
	tag, err := r.readByte("type tag")
	if err != nil {
		return typeStub{}, err
	}
	kind := symbols.TypeKind(tag)
	if kind != symbols.KindSimple && kind != symbols.KindFunction && kind != symbols.KindUnion {
		return typeStub{}, r.errorf(ErrUnknownTypeTag, "%d", tag)
	}
	name, err := r.readName("type name")
	if err != nil {
		return typeStub{}, err
	}

	var stub typeStub
	switch kind {
	case symbols.KindSimple:
		stub.t = symbols.NewSimpleType(name)
	case symbols.KindFunction:
		ret, err := r.readName("return type")
		if err != nil {
			return typeStub{}, err
		}
		stub.refs = append(stub.refs, ret)
		stub.t = symbols.NewNamedFunctionType(name, nil)
	case symbols.KindUnion:
		stub.t = symbols.NewUnionType(name)
	}
	names, err := r.readNames("type list")
	if err != nil {
		return typeStub{}, err
	}
	stub.refs = append(stub.refs, names...)
	return stub, nil
}

func (r *ModuleReader) readConst(resolve func(string) (symbols.Type, error)) (Constant, error) {
	tag, err := r.readByte("constant tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagByte:
		b, err := r.readByte("numeric constant")
		if err != nil {
			return nil, err
		}
		return IntConst(b), nil

	case tagWideInt:
		raw, err := r.readBytes(8, "wide numeric constant")
		if err != nil {
			return nil, err
		}
		return IntConst(int64(binary.BigEndian.Uint64(raw))), nil

	case tagString:
		s, err := r.readName("string constant")
		if err != nil {
			return nil, err
		}
		return StringConst(s), nil

	case tagFunction:
		return r.readFunction(resolve)
	}
	return nil, r.errorf(ErrUnknownConstTag, "%d", tag)
}

func (r *ModuleReader) readFunction(resolve func(string) (symbols.Type, error)) (Constant, error) {
	name, err := r.readName("function name")
	if err != nil {
		return nil, err
	}
	typeName, err := r.readName("function type")
	if err != nil {
		return nil, err
	}
	t, err := resolve(typeName)
	if err != nil {
		return nil, err
	}
	ft, ok := t.(*symbols.FunctionType)
	if !ok {
		return nil, r.errorf(ErrUnknownType, "%q is not a function type", typeName)
	}
	fn := symbols.NewFunctionSymbol(name, ft)

	if fn.OpStackSize, err = r.readByte("operand stack size"); err != nil {
		return nil, err
	}
	nvars, err := r.readByte("local count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nvars); i++ {
		vname, err := r.readName("local name")
		if err != nil {
			return nil, err
		}
		vtypeName, err := r.readName("local type")
		if err != nil {
			return nil, err
		}
		vt, err := resolve(vtypeName)
		if err != nil {
			return nil, err
		}
		fn.AddVar(symbols.NewVarSymbol(vname, vt))
	}

	raw, err := r.readBytes(2, "code length")
	if err != nil {
		return nil, err
	}
	codeLen := int(binary.BigEndian.Uint16(raw))
	if codeLen > 0 {
		code, err := r.readBytes(codeLen, "code")
		if err != nil {
			return nil, err
		}
		fn.Code = make([]byte, codeLen)
		copy(fn.Code, code)
	}
	return FuncConst{Fn: fn}, nil
}

// Primitive readers

func (r *ModuleReader) errorf(sentinel error, format string, args ...any) error {
	return &DecodeError{
		Section: r.section,
		Offset:  r.pos,
		Err:     fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

func (r *ModuleReader) expectMarker(marker string) error {
	start := r.pos
	got, err := r.readName(marker + " marker")
	if err != nil || got != marker {
		r.pos = start
		return r.errorf(ErrMissingMarker, "want %q", marker)
	}
	return nil
}

func (r *ModuleReader) readByte(what string) (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.errorf(ErrUnexpectedEOF, "reading %s", what)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *ModuleReader) readBytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, r.errorf(ErrUnexpectedEOF, "reading %s: need %d bytes", what, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *ModuleReader) readName(what string) (string, error) {
	n, err := r.readByte(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *ModuleReader) readNames(what string) ([]string, error) {
	n, err := r.readByte(what + " count")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := r.readName(what)
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	return names, nil
}
