package cert

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"
)

// CommissionerCA is a minimal commissioner-side certificate authority:
// it holds a self-signed root and signs operational certificates for
// commissioned devices. The device engine never signs NOCs itself;
// this type exists for the demo commissioning flow and for tests that
// need a complete counterpart.
type CommissionerCA struct {
	key  *KeyPair
	root *x509.Certificate
}

// NewCommissionerCA generates a commissioner root for the given fabric
// identifier.
func NewCommissionerCA(fabricID uint64) (*CommissionerCA, error) {
	key, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertGeneration, err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:         "Commissioner Root CA",
			OrganizationalUnit: []string{fmt.Sprintf("fid:%016X", fabricID)},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              NoExpiry,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
		SubjectKeyId:          subjectKeyID(key.PublicKey),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.PublicKey, key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: commissioner root: %v", ErrCertGeneration, err)
	}
	root, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: commissioner root parse: %v", ErrCertGeneration, err)
	}
	return &CommissionerCA{key: key, root: root}, nil
}

// RootCertificate returns the DER-encoded root, as sent in
// AddTrustedRootCertificate.
func (ca *CommissionerCA) RootCertificate() []byte {
	return ca.root.Raw
}

// SignCSR issues a node operational certificate for the public key in
// the CSR. The fabric and node identifiers are carried as
// organizational-unit entries, matching the vid/pid convention used on
// attestation certificates.
func (ca *CommissionerCA) SignCSR(csrDER []byte, fabricID, nodeID uint64) ([]byte, error) {
	csr, err := x509.ParseCertificateRequest(csrDER)
	if err != nil {
		return nil, fmt.Errorf("%w: CSR parse: %v", ErrCertGeneration, err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("%w: CSR signature: %v", ErrCertGeneration, err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertGeneration, err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "Node Operational Certificate",
			OrganizationalUnit: []string{
				fmt.Sprintf("fid:%016X", fabricID),
				fmt.Sprintf("nid:%016X", nodeID),
			},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              NoExpiry,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		AuthorityKeyId:        ca.root.SubjectKeyId,
	}
	return x509.CreateCertificate(rand.Reader, template, ca.root, csr.PublicKey, ca.key.PrivateKey)
}
