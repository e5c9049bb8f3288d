package cert

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"testing"
)

func testIdentity() DeviceIdentity {
	return DeviceIdentity{
		VendorID:     0xFFF1,
		ProductID:    0x8000,
		DeviceTypeID: 0x0100,
		SerialNumber: "SP-TEST-001",
	}
}

func TestIssueAttestationChain(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	chain, err := IssueAttestationChain(kp, testIdentity())
	if err != nil {
		t.Fatalf("IssueAttestationChain() error = %v", err)
	}

	t.Run("ChainValidates", func(t *testing.T) {
		if err := chain.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("DACCarriesDeviceKey", func(t *testing.T) {
		pub, ok := chain.DAC.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			t.Fatal("DAC public key is not ECDSA")
		}
		if !pub.Equal(kp.PublicKey) {
			t.Error("DAC public key does not match device key")
		}
	})

	t.Run("NoExpiry", func(t *testing.T) {
		if chain.DAC.NotAfter.Year() != 9999 {
			t.Errorf("DAC NotAfter = %v, want year 9999", chain.DAC.NotAfter)
		}
	})

	t.Run("PAIIsCA", func(t *testing.T) {
		if !chain.PAI.IsCA {
			t.Error("PAI is not a CA certificate")
		}
		if chain.DAC.IsCA {
			t.Error("DAC must not be a CA certificate")
		}
	})

	t.Run("SignatureVerifiesAgainstDAC", func(t *testing.T) {
		msg := []byte("attestation elements")
		digest := sha256.Sum256(msg)
		sig, err := ecdsa.SignASN1(rand.Reader, kp.PrivateKey, digest[:])
		if err != nil {
			t.Fatalf("SignASN1() error = %v", err)
		}
		if err := VerifySignature(chain.DAC, msg, sig); err != nil {
			t.Errorf("VerifySignature() error = %v", err)
		}
		if err := VerifySignature(chain.DAC, []byte("tampered"), sig); err == nil {
			t.Error("VerifySignature() accepted a signature over different data")
		}
	})
}

func TestVerifyAttestationChainRejectsMismatch(t *testing.T) {
	kp1, _ := GenerateKeyPair()
	kp2, _ := GenerateKeyPair()
	chain1, err := IssueAttestationChain(kp1, testIdentity())
	if err != nil {
		t.Fatalf("IssueAttestationChain() error = %v", err)
	}
	chain2, err := IssueAttestationChain(kp2, testIdentity())
	if err != nil {
		t.Fatalf("IssueAttestationChain() error = %v", err)
	}

	// Cross-matched leaf and intermediate must not verify.
	if err := VerifyAttestationChain(chain1.DAC, chain2.PAI); err == nil {
		t.Error("VerifyAttestationChain() accepted mismatched chain")
	}
}

func TestPEMRoundTrip(t *testing.T) {
	kp, _ := GenerateKeyPair()
	chain, err := IssueAttestationChain(kp, testIdentity())
	if err != nil {
		t.Fatalf("IssueAttestationChain() error = %v", err)
	}

	t.Run("Certificate", func(t *testing.T) {
		data := EncodeCertPEM(chain.DAC)
		got, err := DecodeCertPEM(data)
		if err != nil {
			t.Fatalf("DecodeCertPEM() error = %v", err)
		}
		if !got.Equal(chain.DAC) {
			t.Error("round-tripped certificate differs")
		}
	})

	t.Run("Key", func(t *testing.T) {
		data, err := EncodeKeyPEM(kp.PrivateKey)
		if err != nil {
			t.Fatalf("EncodeKeyPEM() error = %v", err)
		}
		got, err := DecodeKeyPEM(data)
		if err != nil {
			t.Fatalf("DecodeKeyPEM() error = %v", err)
		}
		if !got.PublicKey.Equal(kp.PublicKey) {
			t.Error("round-tripped key differs")
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := DecodeCertPEM([]byte("not pem")); err != ErrInvalidPEM {
			t.Errorf("DecodeCertPEM(garbage) = %v, want ErrInvalidPEM", err)
		}
	})
}

func TestGenerateOperationalKeyPairIsFresh(t *testing.T) {
	a, err := GenerateOperationalKeyPair()
	if err != nil {
		t.Fatalf("GenerateOperationalKeyPair() error = %v", err)
	}
	b, err := GenerateOperationalKeyPair()
	if err != nil {
		t.Fatalf("GenerateOperationalKeyPair() error = %v", err)
	}
	if a.PublicKey.Equal(b.PublicKey) {
		t.Error("two operational key pairs share a public key")
	}
}
