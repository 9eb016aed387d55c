package bytecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/chazu/plume/pkg/symbols"
)

func TestEmitIntBoundaries(t *testing.T) {
	tests := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{0x03}},
		{5, []byte{0x08}},
		{6, []byte{0x10, 0x06}},
		{127, []byte{0x10, 0x7f}},
		{128, []byte{0x11, 0x00, 0x80}},
		{-1, []byte{0x10, 0xff}},
		{-128, []byte{0x10, 0x80}},
		{-129, []byte{0x11, 0xff, 0x7f}},
		{32767, []byte{0x11, 0x7f, 0xff}},
		{-32768, []byte{0x11, 0x80, 0x00}},
		{32768, []byte{0x12, 0x03}},
	}

	for _, tt := range tests {
		m := NewModule(symbols.Builtins)
		got, err := EmitInt(m, tt.n)
		if err != nil {
			t.Fatalf("EmitInt(%d): %v", tt.n, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EmitInt(%d) = % x, want % x", tt.n, got, tt.want)
		}
	}
}

func TestEmitIntPoolConstant(t *testing.T) {
	m := NewModule(symbols.Builtins)
	code, err := EmitInt(m, 32768)
	if err != nil {
		t.Fatal(err)
	}
	idx := int(code[1])
	if c, _ := m.Const(idx); c != IntConst(32768) {
		t.Errorf("pool[%d] = %v, want 32768", idx, c)
	}
	again, _ := EmitInt(m, 32768)
	if !bytes.Equal(code, again) {
		t.Error("repeated constant should reuse its pool slot")
	}
}

func TestEmitSlots(t *testing.T) {
	tests := []struct {
		slot int
		load []byte
		stor []byte
	}{
		{0, []byte{0x1a}, []byte{0x3b}},
		{3, []byte{0x1d}, []byte{0x3e}},
		{4, []byte{0x15, 4}, []byte{0x36, 4}},
		{255, []byte{0x15, 255}, []byte{0x36, 255}},
	}
	for _, tt := range tests {
		load, err := EmitLoad(tt.slot)
		if err != nil || !bytes.Equal(load, tt.load) {
			t.Errorf("EmitLoad(%d) = % x, %v; want % x", tt.slot, load, err, tt.load)
		}
		store, err := EmitStore(tt.slot)
		if err != nil || !bytes.Equal(store, tt.stor) {
			t.Errorf("EmitStore(%d) = % x, %v; want % x", tt.slot, store, err, tt.stor)
		}
	}
	if _, err := EmitLoad(256); !errors.Is(err, ErrSlotIndex) {
		t.Errorf("EmitLoad(256) error = %v, want ErrSlotIndex", err)
	}
}

func TestEmitCallRange(t *testing.T) {
	got, err := EmitCall(0xffff)
	if err != nil || !bytes.Equal(got, []byte{0xb8, 0xff, 0xff}) {
		t.Errorf("EmitCall(0xffff) = % x, %v", got, err)
	}
	for _, idx := range []int{-1, 0x10000} {
		if _, err := EmitCall(idx); !errors.Is(err, ErrCallIndex) {
			t.Errorf("EmitCall(%d) error = %v, want ErrCallIndex", idx, err)
		}
	}
}

// Every integer pushed by EmitInt must come back unchanged from the VM.
func TestEmitIntExecutesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("push then ireturn yields the literal", prop.ForAll(
		func(n int64) bool {
			m := NewModule(symbols.Builtins)
			push, err := EmitInt(m, n)
			if err != nil {
				return false
			}
			entry := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(symbols.Integer))
			entry.Code = append(push, byte(OpIreturn))
			m.AddFunction(entry)
			m.Entry = entry

			r := NewVM().Execute(m)
			got, ok := r.Value.AsInt()
			return r.OK() && r.HasValue && ok && got == n
		},
		gen.OneGenOf(
			gen.Int64Range(-40000, 40000),
			gen.Int64(),
		),
	))

	properties.TestingRun(t)
}
