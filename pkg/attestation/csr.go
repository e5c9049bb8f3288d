package attestation

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"

	"github.com/smartpanel-home/panel-go/pkg/cert"
	"github.com/smartpanel-home/panel-go/pkg/tlv"
)

// maxCSRPayload bounds the DER CSR inside the CSR elements.
const maxCSRPayload = 512

// CSR elements TLV context tags.
const (
	csrTagPayload = 1
	csrTagNonce   = 2
)

// CSRElements is the NOC signing request structure: the DER-encoded
// PKCS#10 request for the fresh operational key, plus the
// commissioner's CSR nonce.
type CSRElements struct {
	CSRPayload []byte
	Nonce      []byte
}

// Encode serializes the CSR elements to TLV.
func (c *CSRElements) Encode() ([]byte, error) {
	if len(c.Nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytesCapped(tlv.ContextTag(csrTagPayload), c.CSRPayload, maxCSRPayload)
	w.PutBytes(tlv.ContextTag(csrTagNonce), c.Nonce)
	w.EndContainer()
	return w.Bytes()
}

// DecodeCSRElements parses TLV CSR elements.
func DecodeCSRElements(data []byte) (*CSRElements, error) {
	r := tlv.NewReader(data)
	if err := r.Next(); err != nil {
		return nil, err
	}
	if r.Type() != tlv.ElementTypeStruct {
		return nil, fmt.Errorf("%w: CSR elements is not a structure", tlv.ErrMalformedPayload)
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	c := &CSRElements{}
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
		case csrTagPayload:
			b, err := r.Bytes(maxCSRPayload)
			if err != nil {
				return nil, err
			}
			c.CSRPayload = b
		case csrTagNonce:
			b, err := r.Bytes(NonceSize)
			if err != nil {
				return nil, err
			}
			c.Nonce = b
		}
	}

	if len(c.CSRPayload) == 0 || len(c.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: missing CSR payload or nonce", tlv.ErrMalformedPayload)
	}
	return c, nil
}

// BuildCSRResponse creates a PKCS#10 request for the operational key,
// wraps it with the commissioner's nonce, and signs the encoded
// elements with the attestation key. The attestation signature proves
// the fresh operational key originates from an attested device.
func (e *Engine) BuildCSRResponse(opKey *cert.KeyPair, csrNonce []byte) (elements, signature []byte, err error) {
	if len(csrNonce) != NonceSize {
		return nil, nil, ErrInvalidNonce
	}
	if opKey == nil || opKey.PrivateKey == nil {
		return nil, nil, fmt.Errorf("nil operational key")
	}

	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: "Smart Panel Operational"},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}
	csrDER, err := x509.CreateCertificateRequest(rand.Reader, template, opKey.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("CSR generation failed: %w", err)
	}

	el := &CSRElements{CSRPayload: csrDER, Nonce: csrNonce}
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
