package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/chazu/plume/pkg/symbols"
)

func TestSerializeLayout(t *testing.T) {
	m, _ := newTestModule(symbols.Void, 0, op(OpReturn))

	got, err := m.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	var want []byte
	want = append(want, 5)
	want = append(want, "types"...)
	want = append(want, 1, 2, 9)
	want = append(want, "fn():void"...)
	want = append(want, 4)
	want = append(want, "void"...)
	want = append(want, 0, 6)
	want = append(want, "consts"...)
	want = append(want, 1, 3, 4)
	want = append(want, "main"...)
	want = append(want, 9)
	want = append(want, "fn():void"...)
	want = append(want, 0, 0, 0, 1, byte(OpReturn))

	if !bytes.Equal(got, want) {
		t.Errorf("Serialize =\n% x\nwant\n% x", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	point := symbols.NewSimpleType("Point", symbols.Any)
	shape := symbols.NewSimpleType("Shape")
	circle := symbols.NewSimpleType("Circle", shape)
	shape.UpperTypes = []symbols.Type{symbols.Any}
	either := symbols.NewUnionType("PointOrCircle", point, circle)

	m := NewModule(symbols.Builtins)
	main := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(symbols.Integer))
	main.AddVar(symbols.NewVarSymbol("p", point))
	main.AddVar(symbols.NewVarSymbol("u", either))
	main.OpStackSize = 4
	m.AddFunction(main)
	m.Entry = main

	helper := symbols.NewFunctionSymbol("helper", symbols.NewFunctionType(symbols.Integer, symbols.Integer, circle))
	helper.AddVar(symbols.NewVarSymbol("n", symbols.Integer))
	helper.AddVar(symbols.NewVarSymbol("c", circle))
	helper.Code = code(op(OpIload0), op(OpIreturn))
	helper.OpStackSize = 1

	big := m.AddInt(100000)
	neg := m.AddInt(-7)
	small := m.AddInt(200)
	str := m.AddString("hello")
	hidx := m.AddFunction(helper)
	main.Code = code(
		op(OpLdc, byte(big)), op(OpLdc, byte(neg)), op(OpIadd),
		op(OpLdc, byte(small)), op(OpIadd),
		op(OpSldc, byte(str)), op(OpPop),
		op(OpIconst0), op(OpIconst0),
		invoke(hidx), op(OpIadd),
		op(OpIreturn),
	)

	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if len(back.Consts) != len(m.Consts) {
		t.Fatalf("pool size %d, want %d", len(back.Consts), len(m.Consts))
	}
	for i := 0; i < m.BuiltinCount(); i++ {
		if back.Consts[i].(FuncConst).Fn != symbols.Builtins.All()[i] {
			t.Errorf("pool[%d] should be the shared built-in", i)
		}
	}
	for i := m.BuiltinCount(); i < len(m.Consts); i++ {
		switch want := m.Consts[i].(type) {
		case FuncConst:
			got, ok := back.Consts[i].(FuncConst)
			if !ok {
				t.Fatalf("pool[%d] = %T, want function", i, back.Consts[i])
			}
			if got.Fn.Name() != want.Fn.Name() || !bytes.Equal(got.Fn.Code, want.Fn.Code) {
				t.Errorf("pool[%d] function %s differs", i, want.Fn.Name())
			}
			if got.Fn.FuncType().Name() != want.Fn.FuncType().Name() || got.Fn.OpStackSize != want.Fn.OpStackSize {
				t.Errorf("pool[%d] signature %s, want %s", i, got.Fn.FuncType().Name(), want.Fn.FuncType().Name())
			}
			for j, v := range want.Fn.Vars {
				gv := got.Fn.Vars[j]
				if gv.Name() != v.Name() || gv.Type().Name() != v.Type().Name() || gv.Slot != j {
					t.Errorf("%s var %d = %s, want %s", want.Fn.Name(), j, gv, v)
				}
			}
		default:
			if back.Consts[i] != want {
				t.Errorf("pool[%d] = %v, want %v", i, back.Consts[i], want)
			}
		}
	}
	if back.Entry == nil || back.Entry.Name() != "main" {
		t.Fatalf("entry not restored")
	}

	// Type graph: Circle -> Shape -> any; the union references both.
	u := back.Entry.Vars[1].Type().(*symbols.UnionType)
	if len(u.Types) != 2 || u.Types[0].Name() != "Point" || u.Types[1].Name() != "Circle" {
		t.Fatalf("union members = %v", u.Types)
	}
	c := u.Types[1].(*symbols.SimpleType)
	if len(c.UpperTypes) != 1 || c.UpperTypes[0].Name() != "Shape" {
		t.Fatalf("Circle supertypes = %v", c.UpperTypes)
	}
	if s := c.UpperTypes[0].(*symbols.SimpleType); s.UpperTypes[0] != symbols.Any {
		t.Error("system types must resolve to the shared singletons")
	}
	hp := back.Consts[hidx].(FuncConst).Fn
	if hp.FuncType().ParamTypes[1] != c {
		t.Error("types referenced in several places must decode to one object")
	}

	r1 := NewVM().Execute(m)
	r2 := NewVM().Execute(back)
	if !r1.OK() || !r2.OK() || !r1.Value.Equal(r2.Value) {
		t.Errorf("results differ: %v (%v) vs %v (%v)", r1.Value, r1.Err(), r2.Value, r2.Err())
	}
}

func TestWideConstantsRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 255, 256, -1, math.MinInt64, math.MaxInt64} {
		m, _ := newTestModule(symbols.Integer, 0, nil)
		m.Entry.Code = code(op(OpLdc, byte(m.AddInt(n))), op(OpIreturn))
		data, err := m.Serialize()
		if err != nil {
			t.Fatal(err)
		}
		back, err := Deserialize(data)
		if err != nil {
			t.Fatalf("%d: %v", n, err)
		}
		if got, _ := NewVM().Execute(back).Value.AsInt(); got != n {
			t.Errorf("round trip of %d gave %d", n, got)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	m, _ := newTestModule(symbols.Void, 1, op(OpReturn))
	good, err := m.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	typesEnd := bytes.Index(good, []byte("consts")) - 1

	tests := []struct {
		name    string
		data    []byte
		want    error
		section string
	}{
		{"empty", nil, ErrMissingMarker, "header"},
		{"wrong marker", append([]byte{5}, "typez\x00"...), ErrMissingMarker, "header"},
		{"no consts marker", good[:typesEnd], ErrMissingMarker, "types"},
		{"truncated code", good[:len(good)-1], ErrUnexpectedEOF, "consts"},
		{"trailing data", append(append([]byte(nil), good...), 0), ErrTrailingData, "consts"},
		{"unknown type tag", append([]byte{5}, "types\x01\x09"...), ErrUnknownTypeTag, "types"},
		{"unknown const tag", append([]byte{5}, "types\x00\x06consts\x01\x09"...), ErrUnknownConstTag, "consts"},
		{"unknown type reference", append([]byte{5}, "types\x01\x01\x01A\x01\x01B"...), ErrUnknownType, "types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a *DecodeError", err)
			}
			if de.Section != tt.section {
				t.Errorf("Section = %q, want %q", de.Section, tt.section)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	m, _ := newTestModule(symbols.Void, 0, op(OpReturn))
	for i := 0; i < 255; i++ {
		m.AddString(fmt.Sprintf("s%d", i))
	}
	if _, err := m.Serialize(); !errors.Is(err, ErrTooManyConsts) {
		t.Errorf("256 constants: got %v", err)
	}

	m, main := newTestModule(symbols.Void, 0, op(OpReturn))
	other := symbols.NewFunctionSymbol("other", nil)
	other.Code = op(OpReturn)
	m.Consts[3] = FuncConst{Fn: other}
	m.AddFunction(main)
	if _, err := m.Serialize(); !errors.Is(err, ErrEncode) {
		t.Errorf("entry not first: got %v", err)
	}
}

func TestRoundTripExecutesProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("deserialize(serialize(m)) executes like m", prop.ForAll(
		func(values []int64) bool {
			m, main := newTestModule(symbols.Integer, 0, nil)
			body, _ := EmitInt(m, 0)
			for _, v := range values {
				push, err := EmitInt(m, v)
				if err != nil {
					return false
				}
				body = append(body, push...)
				body = append(body, byte(OpIadd))
			}
			main.Code = append(body, byte(OpIreturn))

			data, err := m.Serialize()
			if err != nil {
				return false
			}
			back, err := Deserialize(data)
			if err != nil {
				return false
			}
			r1, r2 := NewVM().Execute(m), NewVM().Execute(back)
			return r1.OK() && r2.OK() && r1.Value.Equal(r2.Value)
		},
		gen.SliceOfN(20, gen.Int64Range(-1<<40, 1<<40)),
	))

	properties.TestingRun(t)
}
