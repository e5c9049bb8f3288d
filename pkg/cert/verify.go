package cert

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// Verification errors.
var (
	ErrInvalidCert     = errors.New("invalid certificate")
	ErrInvalidChain    = errors.New("invalid certificate chain")
	ErrCertExpired     = errors.New("certificate has expired")
	ErrCertNotYetValid = errors.New("certificate is not yet valid")
)

// VerifyAttestationChain verifies the structural invariants of a
// {DAC, PAI} pair: the leaf's authority key identifier matches the
// intermediate's subject key identifier, the leaf's signature verifies
// under the intermediate's public key, and both are within their
// validity windows.
func VerifyAttestationChain(dac, pai *x509.Certificate) error {
	if dac == nil || pai == nil {
		return ErrInvalidCert
	}

	if !bytes.Equal(dac.AuthorityKeyId, pai.SubjectKeyId) {
		return fmt.Errorf("%w: DAC issuer key id does not match PAI subject key id", ErrInvalidChain)
	}

	now := time.Now()
	for _, c := range []*x509.Certificate{dac, pai} {
		if now.Before(c.NotBefore) {
			return ErrCertNotYetValid
		}
		if now.After(c.NotAfter) {
			return ErrCertExpired
		}
	}

	if err := dac.CheckSignatureFrom(pai); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	return nil
}

// VerifySignature verifies an ASN.1 DER ECDSA signature over a message
// against a certificate's public key. Used by tests and by
// commissioner-side validation of attestation and CSR signatures.
func VerifySignature(c *x509.Certificate, message, signature []byte) error {
	if c == nil {
		return ErrInvalidCert
	}
	pub, ok := c.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: not an ECDSA certificate", ErrInvalidCert)
	}
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(pub, digest[:], signature) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalidChain)
	}
	return nil
}
