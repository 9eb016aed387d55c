package dist

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/symbols"
)

// sampleModule returns a module whose entry prints 42 and returns 7.
func sampleModule() *bytecode.Module {
	m := bytecode.NewModule(nil)
	main := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(symbols.Integer))
	main.Code = []byte{
		byte(bytecode.OpBipush), 42,
		byte(bytecode.OpInvokestatic), 0, 0,
		byte(bytecode.OpIconst0 + 5), byte(bytecode.OpIconst2), byte(bytecode.OpIadd),
		byte(bytecode.OpIreturn),
	}
	main.OpStackSize = 2
	m.AddFunction(main)
	m.Entry = main
	return m
}

func TestEnvelope_CBORRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	env, err := SealAt("answer", sampleModule(), created)
	if err != nil {
		t.Fatalf("SealAt: %v", err)
	}
	if env.ID == uuid.Nil {
		t.Error("envelope has no ID")
	}
	if env.Entry != "main" {
		t.Errorf("Entry = %q", env.Entry)
	}

	data, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatalf("MarshalEnvelope: %v", err)
	}
	got, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope: %v", err)
	}

	if got.ID != env.ID {
		t.Errorf("ID: got %s, want %s", got.ID, env.ID)
	}
	if got.Name != "answer" || got.Version != FormatVersion {
		t.Errorf("Name/Version: got %q/%d", got.Name, got.Version)
	}
	if got.Hash != env.Hash || !bytes.Equal(got.Module, env.Module) {
		t.Error("module payload mismatch")
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, created)
	}
}

func TestEnvelope_CanonicalEncoding(t *testing.T) {
	env, err := SealAt("answer", sampleModule(), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("SealAt: %v", err)
	}
	a, _ := MarshalEnvelope(env)
	b, _ := MarshalEnvelope(env)
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestEnvelope_OpenRuns(t *testing.T) {
	env, err := Seal("answer", sampleModule())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	data, _ := MarshalEnvelope(env)
	got, _ := UnmarshalEnvelope(data)

	m, err := got.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var out bytes.Buffer
	r := bytecode.NewVM(bytecode.WithOutput(&out)).Execute(m)
	if !r.OK() {
		t.Fatalf("execute: %v", r.Err())
	}
	if n, _ := r.Value.AsInt(); n != 7 || out.String() != "42\n" {
		t.Errorf("result %v, output %q", r.Value, out.String())
	}
}

func TestEnvelope_VerifyFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Envelope)
		want   error
	}{
		{"tampered module", func(e *Envelope) { e.Module[len(e.Module)-1] ^= 0xff }, ErrHashMismatch},
		{"tampered hash", func(e *Envelope) { e.Hash[0] ^= 0xff }, ErrHashMismatch},
		{"empty module", func(e *Envelope) { e.Module = nil }, ErrEmptyModule},
		{"future version", func(e *Envelope) { e.Version = FormatVersion + 1 }, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Seal("answer", sampleModule())
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			tt.mutate(env)
			if _, err := env.Open(); !errors.Is(err, tt.want) {
				t.Errorf("Open() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnvelope_OpenReportsDecodeErrors(t *testing.T) {
	junk := []byte("not a module")
	env := &Envelope{Version: FormatVersion, Name: "junk", Module: junk, Hash: Digest(junk)}
	_, err := env.Open()
	var de *bytecode.DecodeError
	if !errors.As(err, &de) {
		t.Errorf("Open() = %v, want a DecodeError", err)
	}
}

func TestUnmarshalEnvelope_Garbage(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}
