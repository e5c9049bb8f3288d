package cred

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smartpanel-home/panel-go/pkg/cert"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// File names under the store directory.
const (
	stateFile = "credentials.json"
	keyFile   = "attestation.key"
)

// deviceState is the durable on-disk form of the store.
type deviceState struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	VendorID     uint16 `json:"vendor_id"`
	ProductID    uint16 `json:"product_id"`
	SerialNumber string `json:"serial_number,omitempty"`

	// DER-encoded attestation certificates, present once issued.
	DACDER []byte `json:"dac_der,omitempty"`
	PAIDER []byte `json:"pai_der,omitempty"`

	Fabrics []FabricRecord `json:"fabrics,omitempty"`
}

// load reads persisted state, if any. Missing files mean a fresh
// device.
func (s *Store) load() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var st deviceState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("corrupt state file: %w", err)
	}
	s.fabrics = st.Fabrics

	if len(st.DACDER) > 0 && len(st.PAIDER) > 0 {
		dac, err := x509.ParseCertificate(st.DACDER)
		if err != nil {
			return fmt.Errorf("corrupt DAC: %w", err)
		}
		pai, err := x509.ParseCertificate(st.PAIDER)
		if err != nil {
			return fmt.Errorf("corrupt PAI: %w", err)
		}
		key, err := cert.ReadKeyFile(filepath.Join(s.dir, keyFile))
		if err != nil {
			return fmt.Errorf("attestation key unreadable: %w", err)
		}
		s.chain = &cert.AttestationChain{DAC: dac, PAI: pai}
		s.dacKey = key
	}
	return nil
}

// persistLocked writes the state file atomically: write to a temporary
// file in the same directory, fsync, then rename over the target. A
// crash mid-write leaves either the old state or the new state, never
// a half-written table. Caller holds s.mu.
func (s *Store) persistLocked() error {
	st := deviceState{
		Version:      StateVersion,
		SavedAt:      time.Now(),
		VendorID:     s.identity.VendorID,
		ProductID:    s.identity.ProductID,
		SerialNumber: s.identity.SerialNumber,
		Fabrics:      s.fabrics,
	}
	if s.chain != nil {
		st.DACDER = s.chain.DAC.Raw
		st.PAIDER = s.chain.PAI.Raw
	}

	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return err
	}

	if s.dacKey != nil {
		if err := s.writeKeyAtomic(); err != nil {
			return err
		}
	}
	return writeFileAtomic(filepath.Join(s.dir, stateFile), data, 0600)
}

func (s *Store) writeKeyAtomic() error {
	data, err := cert.EncodeKeyPEM(s.dacKey)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, keyFile), data, 0600)
}

// clearLocked removes all persisted state. Caller holds s.mu.
func (s *Store) clearLocked() error {
	for _, name := range []string{stateFile, keyFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// writeFileAtomic writes data to path via a temporary file and rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
