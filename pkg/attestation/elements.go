package attestation

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/smartpanel-home/panel-go/pkg/tlv"
)

// NonceSize is the required length of commissioner-supplied nonces.
const NonceSize = 32

// maxFirmwareInfo bounds the optional firmware information field.
const maxFirmwareInfo = 256

// ErrInvalidNonce indicates a nonce of the wrong length.
var ErrInvalidNonce = errors.New("nonce must be 32 bytes")

// Elements is the transient attestation-elements structure. It is
// constructed fresh per attestation request; the nonce is echoed from
// the request and must not be reused across two successful responses.
type Elements struct {
	// CertificationDeclaration is the TLV-encoded declaration.
	CertificationDeclaration []byte

	// Nonce is the commissioner-supplied 32-byte single-use nonce.
	Nonce []byte

	// Timestamp is epoch seconds at construction.
	Timestamp uint64

	// FirmwareInformation optionally describes the running firmware.
	FirmwareInformation []byte
}

// Attestation elements TLV context tags.
const (
	elemTagDeclaration  = 1
	elemTagNonce        = 2
	elemTagTimestamp    = 3
	elemTagFirmwareInfo = 4
)

// Encode serializes the elements to TLV.
func (e *Elements) Encode() ([]byte, error) {
	if len(e.Nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytesCapped(tlv.ContextTag(elemTagDeclaration), e.CertificationDeclaration, DeclarationMaxSize)
	w.PutBytes(tlv.ContextTag(elemTagNonce), e.Nonce)
	w.PutUint(tlv.ContextTag(elemTagTimestamp), e.Timestamp)
	if len(e.FirmwareInformation) > 0 {
		w.PutBytesCapped(tlv.ContextTag(elemTagFirmwareInfo), e.FirmwareInformation, maxFirmwareInfo)
	}
	w.EndContainer()
	return w.Bytes()
}

// DecodeElements parses TLV attestation elements. Used by tests and by
// commissioner-side validation.
func DecodeElements(data []byte) (*Elements, error) {
	r := tlv.NewReader(data)
	if err := r.Next(); err != nil {
		return nil, err
	}
	if r.Type() != tlv.ElementTypeStruct {
		return nil, fmt.Errorf("%w: elements is not a structure", tlv.ErrMalformedPayload)
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	e := &Elements{}
	for {
		err := r.Next()
		if errors.Is(err, tlv.ErrEndOfContainer) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !r.Tag().IsContext() {
			continue
		}

		switch r.Tag().Number() {
		case elemTagDeclaration:
			b, err := r.Bytes(DeclarationMaxSize)
			if err != nil {
				return nil, err
			}
			e.CertificationDeclaration = b
		case elemTagNonce:
			b, err := r.Bytes(NonceSize)
			if err != nil {
				return nil, err
			}
			e.Nonce = b
		case elemTagTimestamp:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			e.Timestamp = v
		case elemTagFirmwareInfo:
			b, err := r.Bytes(maxFirmwareInfo)
			if err != nil {
				return nil, err
			}
			e.FirmwareInformation = b
		}
	}

	if len(e.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: missing or short nonce", tlv.ErrMalformedPayload)
	}
	if len(e.CertificationDeclaration) == 0 {
		return nil, fmt.Errorf("%w: missing certification declaration", tlv.ErrMalformedPayload)
	}
	return e, nil
}

// Equal reports whether two element values are identical field by
// field.
func (e *Elements) Equal(other *Elements) bool {
	if e == nil || other == nil {
		return e == other
	}
	return bytes.Equal(e.CertificationDeclaration, other.CertificationDeclaration) &&
		bytes.Equal(e.Nonce, other.Nonce) &&
		e.Timestamp == other.Timestamp &&
		bytes.Equal(e.FirmwareInformation, other.FirmwareInformation)
}

// Signer produces attestation signatures without exposing the private
// key. *cred.Store satisfies this.
type Signer interface {
	SignWithAttestationKey(message []byte) ([]byte, error)
}

// Engine builds and signs attestation responses for a device with a
// fixed declaration.
type Engine struct {
	signer Signer
	decl   Declaration

	// now is the timestamp source, replaceable in tests.
	now func() time.Time
}

// NewEngine creates an attestation engine signing through the given
// signer.
func NewEngine(signer Signer, decl Declaration) *Engine {
	return &Engine{signer: signer, decl: decl, now: time.Now}
}

// Declaration returns the engine's certification declaration.
func (e *Engine) Declaration() Declaration {
	return e.decl
}

// BuildAttestationResponse assembles and signs attestation elements
// echoing the supplied nonce. Idempotent; it reads only cached key
// material, so retried requests are harmless.
func (e *Engine) BuildAttestationResponse(nonce []byte) (elements, signature []byte, err error) {
	if len(nonce) != NonceSize {
		return nil, nil, ErrInvalidNonce
	}

	declData, err := e.decl.Encode()
	if err != nil {
		return nil, nil, err
	}

	el := &Elements{
		CertificationDeclaration: declData,
		Nonce:                    nonce,
		Timestamp:                uint64(e.now().Unix()),
	}
	elements, err = el.Encode()
	if err != nil {
		return nil, nil, err
	}

	signature, err = e.signer.SignWithAttestationKey(elements)
	if err != nil {
		return nil, nil, err
	}
	return elements, signature, nil
}
