package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Generation errors.
var (
	ErrKeyGeneration  = errors.New("key generation failed")
	ErrCertGeneration = errors.New("certificate generation failed")
)

// GenerateKeyPair generates a new ECDSA P-256 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: &priv.PublicKey}, nil
}

// GenerateOperationalKeyPair generates the fresh key pair for an
// upcoming operational identity. Ownership transfers to the active
// commissioning session; the key never touches durable storage until
// the fabric is committed.
func GenerateOperationalKeyPair() (*KeyPair, error) {
	return GenerateKeyPair()
}

// subjectKeyID derives a subject key identifier from a public key.
func subjectKeyID(pub *ecdsa.PublicKey) []byte {
	raw := elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)
	sum := sha1.Sum(raw)
	return sum[:]
}

// randomSerial returns a random positive certificate serial number.
func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

// IssueAttestationChain generates the device's attestation chain: a
// fresh PAI acting as issuing CA and a DAC for the given device key,
// signed by the PAI. The DAC subject carries the vendor and product
// identifiers; both certificates are development-grade and never
// expire.
//
// Invoked exactly once per process lifetime through the credential
// store's idempotent guard.
func IssueAttestationChain(dacKey *KeyPair, identity DeviceIdentity) (*AttestationChain, error) {
	if dacKey == nil || dacKey.PrivateKey == nil {
		return nil, fmt.Errorf("%w: nil device key", ErrCertGeneration)
	}

	paiKey, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	paiSerial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertGeneration, err)
	}

	now := time.Now().Add(-time.Minute)
	paiTemplate := &x509.Certificate{
		SerialNumber: paiSerial,
		Subject: pkix.Name{
			CommonName:         "Smart Panel PAI",
			Organization:       []string{"Smart Panel"},
			OrganizationalUnit: []string{fmt.Sprintf("vid:%04X", identity.VendorID)},
		},
		NotBefore:             now,
		NotAfter:              NoExpiry,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SubjectKeyId:          subjectKeyID(paiKey.PublicKey),
	}

	paiDER, err := x509.CreateCertificate(rand.Reader, paiTemplate, paiTemplate, paiKey.PublicKey, paiKey.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: PAI: %v", ErrCertGeneration, err)
	}
	pai, err := x509.ParseCertificate(paiDER)
	if err != nil {
		return nil, fmt.Errorf("%w: PAI parse: %v", ErrCertGeneration, err)
	}

	dacSerial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertGeneration, err)
	}

	dacTemplate := &x509.Certificate{
		SerialNumber: dacSerial,
		Subject: pkix.Name{
			CommonName:   "Smart Panel DAC",
			Organization: []string{"Smart Panel"},
			OrganizationalUnit: []string{
				fmt.Sprintf("vid:%04X", identity.VendorID),
				fmt.Sprintf("pid:%04X", identity.ProductID),
			},
			SerialNumber: identity.SerialNumber,
		},
		NotBefore:             now,
		NotAfter:              NoExpiry,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		SubjectKeyId:          subjectKeyID(dacKey.PublicKey),
		AuthorityKeyId:        pai.SubjectKeyId,
	}

	dacDER, err := x509.CreateCertificate(rand.Reader, dacTemplate, pai, dacKey.PublicKey, paiKey.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: DAC: %v", ErrCertGeneration, err)
	}
	dac, err := x509.ParseCertificate(dacDER)
	if err != nil {
		return nil, fmt.Errorf("%w: DAC parse: %v", ErrCertGeneration, err)
	}

	return &AttestationChain{DAC: dac, PAI: pai}, nil
}
