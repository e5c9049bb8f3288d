package cred

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/smartpanel-home/panel-go/pkg/cert"
)

// MaxFabrics is the maximum number of fabrics the device can join.
const MaxFabrics = 5

// Store errors.
var (
	ErrCapacityExceeded = errors.New("fabric table at capacity")
	ErrFabricNotFound   = errors.New("fabric not found")
	ErrNoAttestationKey = errors.New("attestation identity not initialized")
)

// Store holds the device's attestation identity and fabric table.
// A single Store instance is constructed at process start and shared
// by reference; there is no ambient global.
type Store struct {
	mu sync.Mutex

	dir      string
	identity cert.DeviceIdentity
	maxFab   int

	// Cached attestation identity. Generated lazily on first use and
	// never regenerated for the process lifetime: regenerating
	// mid-commissioning would invalidate in-flight signatures.
	chain  *cert.AttestationChain
	dacKey *ecdsa.PrivateKey

	fabrics []FabricRecord
}

// Options tunes store construction.
type Options struct {
	// MaxFabrics overrides the fabric table capacity. Zero means
	// MaxFabrics. Used by tests exercising capacity behavior.
	MaxFabrics int
}

// NewStore opens (or initializes) the credential store rooted at dir.
// Existing state, including a previously issued attestation chain and
// committed fabrics, is loaded from disk.
func NewStore(dir string, identity cert.DeviceIdentity, opts Options) (*Store, error) {
	s := &Store{
		dir:      dir,
		identity: identity,
		maxFab:   opts.MaxFabrics,
	}
	if s.maxFab <= 0 {
		s.maxFab = MaxFabrics
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load credential store: %w", err)
	}
	return s, nil
}

// Identity returns the device identity constants.
func (s *Store) Identity() cert.DeviceIdentity {
	return s.identity
}

// EnsureAttestationIdentity returns the device's attestation chain,
// issuing it on first use. Idempotent: repeated calls within one
// process return the identical cached chain.
func (s *Store) EnsureAttestationIdentity() (*cert.AttestationChain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureAttestationIdentityLocked()
}

func (s *Store) ensureAttestationIdentityLocked() (*cert.AttestationChain, error) {
	if s.chain != nil {
		return s.chain, nil
	}

	kp, err := cert.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	chain, err := cert.IssueAttestationChain(kp, s.identity)
	if err != nil {
		return nil, err
	}

	s.chain = chain
	s.dacKey = kp.PrivateKey
	if err := s.persistLocked(); err != nil {
		s.chain = nil
		s.dacKey = nil
		return nil, err
	}
	return s.chain, nil
}

// SignWithAttestationKey signs SHA-256(message) with the attestation
// private key, returning an ASN.1 DER ECDSA signature (64-72 bytes).
// The key itself never leaves the store. The attestation identity is
// issued on demand so the returned signature always verifies against
// the cached DAC.
func (s *Store) SignWithAttestationKey(message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureAttestationIdentityLocked(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, s.dacKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("attestation signing failed: %w", err)
	}
	return sig, nil
}

// FactoryReset wipes the fabric table and the attestation identity,
// both in memory and on disk.
func (s *Store) FactoryReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chain = nil
	s.dacKey = nil
	s.fabrics = nil
	return s.clearLocked()
}
