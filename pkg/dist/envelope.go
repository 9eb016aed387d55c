// Package dist packages serialized Plume modules for distribution. An
// Envelope carries the module bytes together with an identity and a SHA-256
// content hash, encoded as canonical CBOR.
package dist

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/plume/pkg/bytecode"
)

// FormatVersion is written into every envelope.
const FormatVersion byte = 1

var (
	// ErrHashMismatch is returned by Open when the module bytes do not hash
	// to the declared content hash.
	ErrHashMismatch = errors.New("dist: content hash mismatch")

	// ErrUnsupportedVersion is returned for envelopes from a newer format.
	ErrUnsupportedVersion = errors.New("dist: unsupported envelope version")

	// ErrEmptyModule is returned for envelopes without module bytes.
	ErrEmptyModule = errors.New("dist: envelope carries no module")
)

// Envelope wraps one serialized module.
type Envelope struct {
	Version   byte      `cbor:"1,keyasint"`
	ID        uuid.UUID `cbor:"2,keyasint"`
	Name      string    `cbor:"3,keyasint"`
	Hash      [32]byte  `cbor:"4,keyasint"`
	Module    []byte    `cbor:"5,keyasint"`
	CreatedAt time.Time `cbor:"6,keyasint"`
	Entry     string    `cbor:"7,keyasint,omitempty"` // entry function name, informational
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Digest returns the content hash of serialized module bytes.
func Digest(module []byte) [32]byte {
	return sha256.Sum256(module)
}

// Seal serializes m and wraps it in a new envelope stamped with the current
// time.
func Seal(name string, m *bytecode.Module) (*Envelope, error) {
	return SealAt(name, m, time.Now())
}

// SealAt is Seal with an explicit creation time. CBOR keeps whole seconds.
func SealAt(name string, m *bytecode.Module, now time.Time) (*Envelope, error) {
	data, err := m.Serialize()
	if err != nil {
		return nil, fmt.Errorf("dist: serialize module %q: %w", name, err)
	}
	env := &Envelope{
		Version:   FormatVersion,
		ID:        uuid.New(),
		Name:      name,
		Hash:      Digest(data),
		Module:    data,
		CreatedAt: now.UTC().Truncate(time.Second),
	}
	if m.Entry != nil {
		env.Entry = m.Entry.Name()
	}
	return env, nil
}

// Verify checks the envelope's version and content hash.
func (e *Envelope) Verify() error {
	if e.Version > FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if len(e.Module) == 0 {
		return ErrEmptyModule
	}
	if computed := Digest(e.Module); computed != e.Hash {
		return fmt.Errorf("%w: declared %x, computed %x", ErrHashMismatch, e.Hash, computed)
	}
	return nil
}

// Open verifies the envelope and deserializes its module.
func (e *Envelope) Open() (*bytecode.Module, error) {
	if err := e.Verify(); err != nil {
		return nil, err
	}
	m, err := bytecode.Deserialize(e.Module)
	if err != nil {
		return nil, fmt.Errorf("dist: open %q: %w", e.Name, err)
	}
	return m, nil
}

// MarshalEnvelope serializes an Envelope to CBOR bytes.
func MarshalEnvelope(e *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEnvelope deserializes an Envelope from CBOR bytes. The content
// hash is not checked; call Verify or Open.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("dist: unmarshal envelope: %w", err)
	}
	return &e, nil
}
