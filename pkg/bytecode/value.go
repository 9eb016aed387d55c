package bytecode

import "strconv"

// ValueKind tags the dynamic type of a Value.
type ValueKind uint8

const (
	KindUndefined ValueKind = iota
	KindInt
	KindString
)

// String names the kind for diagnostics.
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindString:
		return "string"
	default:
		return "undefined"
	}
}

// Value is an operand-stack or local-slot value. The language has no heap
// objects, so a Value is either an integer or a string.
type Value struct {
	kind ValueKind
	i    int64
	s    string
}

// Undefined is the value held by a local slot before its first store.
var Undefined = Value{}

// Int wraps an integer.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Str wraps a string.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the value's dynamic type.
func (v Value) Kind() ValueKind { return v.kind }

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// String returns the textual form println writes.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	default:
		return "undefined"
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.i == o.i && v.s == o.s
}

// add implements the generic "+": integer addition when both sides are
// integers, concatenation of textual forms otherwise.
func add(a, b Value) Value {
	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i + b.i)
	}
	return Str(a.String() + b.String())
}
