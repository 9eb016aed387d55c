package bytecode

import (
	"errors"
	"fmt"
)

var (
	ErrNoEntry     = errors.New("module has no entry function")
	ErrMissingBody = errors.New("function has no code")
)

// Decode errors.
var (
	ErrMissingMarker   = errors.New("missing section marker")
	ErrUnexpectedEOF   = errors.New("unexpected end of module data")
	ErrUnknownTypeTag  = errors.New("unknown type tag")
	ErrUnknownConstTag = errors.New("unknown constant tag")
	ErrUnknownType     = errors.New("reference to unknown type")
	ErrTrailingData    = errors.New("trailing data after module")
)

// Encode errors. The binary format stores counts and names in single bytes.
var (
	ErrEncode          = errors.New("cannot encode module")
	ErrTooManyTypes    = fmt.Errorf("%w: more than 255 types", ErrEncode)
	ErrTooManyConsts   = fmt.Errorf("%w: more than 255 constants", ErrEncode)
	ErrTooManyLocals   = fmt.Errorf("%w: more than 255 locals", ErrEncode)
	ErrNameTooLong     = fmt.Errorf("%w: name longer than 255 bytes", ErrEncode)
	ErrCodeTooLong     = fmt.Errorf("%w: code longer than 65535 bytes", ErrEncode)
	ErrUnencodableType = fmt.Errorf("%w: unsupported type", ErrEncode)
)

// DecodeError reports where a malformed module buffer failed to decode.
type DecodeError struct {
	Section string // "types", "consts" or "header"
	Offset  int    // Byte offset where decoding stopped
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
