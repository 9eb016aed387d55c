package symbols

import "strings"

// TypeKind discriminates the Type variants. The numeric values double as the
// record discriminator in the binary module format.
type TypeKind uint8

const (
	KindSimple   TypeKind = 1
	KindFunction TypeKind = 2
	KindUnion    TypeKind = 3
)

func (k TypeKind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindFunction:
		return "function"
	case KindUnion:
		return "union"
	default:
		return "invalid"
	}
}

// Type is implemented by SimpleType, FunctionType and UnionType.
type Type interface {
	Name() string
	Kind() TypeKind
	typ()
}

// SimpleType is a named type with an ordered list of supertypes.
type SimpleType struct {
	name       string
	UpperTypes []Type
	system     bool
}

// NewSimpleType creates a user-level simple type.
func NewSimpleType(name string, upper ...Type) *SimpleType {
	return &SimpleType{name: name, UpperTypes: upper}
}

func (t *SimpleType) Name() string   { return t.name }
func (t *SimpleType) Kind() TypeKind { return KindSimple }
func (t *SimpleType) typ()           {}

// FunctionType is a function signature. Its name is derived from the
// signature unless one is given explicitly.
type FunctionType struct {
	name       string
	ReturnType Type
	ParamTypes []Type
}

// NewFunctionType creates a function type whose name is derived from its
// signature, e.g. "fn(number,string):void".
func NewFunctionType(ret Type, params ...Type) *FunctionType {
	return &FunctionType{ReturnType: ret, ParamTypes: params}
}

// NewNamedFunctionType creates a function type with an explicit name.
func NewNamedFunctionType(name string, ret Type, params ...Type) *FunctionType {
	return &FunctionType{name: name, ReturnType: ret, ParamTypes: params}
}

func (t *FunctionType) Name() string {
	if t.name != "" {
		return t.name
	}
	var sb strings.Builder
	sb.WriteString("fn(")
	for i, p := range t.ParamTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(typeName(p))
	}
	sb.WriteString("):")
	sb.WriteString(typeName(t.ReturnType))
	return sb.String()
}

func (t *FunctionType) Kind() TypeKind { return KindFunction }
func (t *FunctionType) typ()           {}

// UnionType is the union of its member types.
type UnionType struct {
	name  string
	Types []Type
}

// NewUnionType creates a named union type.
func NewUnionType(name string, members ...Type) *UnionType {
	return &UnionType{name: name, Types: members}
}

func (t *UnionType) Name() string   { return t.name }
func (t *UnionType) Kind() TypeKind { return KindUnion }
func (t *UnionType) typ()           {}

func typeName(t Type) string {
	if t == nil {
		return Any.Name()
	}
	return t.Name()
}

// System types. These are process-wide singletons and are never serialized.
var (
	Any       = &SimpleType{name: "any", system: true}
	String    = &SimpleType{name: "string", UpperTypes: []Type{Any}, system: true}
	Number    = &SimpleType{name: "number", UpperTypes: []Type{Any}, system: true}
	Integer   = &SimpleType{name: "integer", UpperTypes: []Type{Number}, system: true}
	Decimal   = &SimpleType{name: "decimal", UpperTypes: []Type{Number}, system: true}
	Boolean   = &SimpleType{name: "boolean", UpperTypes: []Type{Any}, system: true}
	Null      = &SimpleType{name: "null", system: true}
	Undefined = &SimpleType{name: "undefined", system: true}
	Void      = &SimpleType{name: "void", system: true}
)

var systemTypes = map[string]Type{}

func init() {
	for _, t := range []*SimpleType{Any, String, Number, Integer, Decimal, Boolean, Null, Undefined, Void} {
		systemTypes[t.name] = t
	}
}

// SystemType returns the system type with the given name.
func SystemType(name string) (Type, bool) {
	t, ok := systemTypes[name]
	return t, ok
}

// IsSystemType reports whether t is one of the built-in singletons.
func IsSystemType(t Type) bool {
	st, ok := t.(*SimpleType)
	return ok && st.system
}

// ReturnsValue reports whether a function of type ft leaves a value on the
// caller's operand stack.
func (t *FunctionType) ReturnsValue() bool {
	return t.ReturnType != nil && t.ReturnType != Void
}
