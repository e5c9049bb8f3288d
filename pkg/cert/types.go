package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"time"
)

// Certificate validity periods.
const (
	// PAIValidity is the validity period for the product attestation
	// intermediate. 20 years to match expected device lifetime.
	PAIValidity = 20 * 365 * 24 * time.Hour
)

// NoExpiry is the notAfter value for development-grade certificates
// that never expire.
var NoExpiry = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// KeyPair holds an ECDSA P-256 key pair.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// DeviceIdentity holds the identity constants embedded in the
// attestation certificates.
type DeviceIdentity struct {
	// VendorID identifies the device manufacturer.
	VendorID uint16

	// ProductID identifies the product within the vendor.
	ProductID uint16

	// DeviceTypeID is the primary device type exposed on endpoint 1.
	DeviceTypeID uint32

	// SerialNumber is the device serial number (optional).
	SerialNumber string
}

// AttestationChain is the ordered {DAC, PAI} pair the device presents
// during commissioning. The DAC is signed by the PAI; the chain is
// generated once per process and never regenerated mid-session, since
// regenerating would invalidate in-flight attestation signatures.
type AttestationChain struct {
	// DAC is the device attestation (leaf) certificate.
	DAC *x509.Certificate

	// PAI is the product attestation intermediate certificate.
	PAI *x509.Certificate
}

// Validate checks the structural chain invariants: the DAC's issuer
// key identifier must match the PAI's subject key identifier, and the
// DAC's signature must verify under the PAI's public key.
func (c *AttestationChain) Validate() error {
	if c == nil || c.DAC == nil || c.PAI == nil {
		return ErrInvalidChain
	}
	return VerifyAttestationChain(c.DAC, c.PAI)
}
