package cred

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/crypto/hkdf"
)

// CompressedFabricIDSize is the length of a compressed fabric
// identifier in bytes.
const CompressedFabricIDSize = 8

// FabricRecord describes one committed fabric membership.
type FabricRecord struct {
	// Index is the local 1-based fabric index assigned at commit.
	Index uint8 `json:"index"`

	// FabricID is the 64-bit fabric identifier from the NOC.
	FabricID uint64 `json:"fabric_id"`

	// NodeID is the device's operational node id within the fabric.
	NodeID uint64 `json:"node_id"`

	// VendorID is the commissioning administrator's vendor id.
	VendorID uint16 `json:"vendor_id"`

	// RootPublicKeyFingerprint identifies the fabric's trusted root:
	// the compressed fabric identifier derived from the root public
	// key and fabric id.
	RootPublicKeyFingerprint []byte `json:"root_public_key_fingerprint"`

	// CaseAdminSubject is the administrator subject granted access at
	// commit.
	CaseAdminSubject uint64 `json:"case_admin_subject"`

	// Label is an optional human-readable fabric label.
	Label string `json:"label,omitempty"`

	// JoinedAt is when the fabric was committed.
	JoinedAt time.Time `json:"joined_at"`
}

// CompressedFabricID derives the 8-byte compressed fabric identifier
// from the fabric's root public key and fabric id using HKDF-SHA256.
// The uncompressed point prefix (0x04) is stripped from the key before
// derivation.
func CompressedFabricID(rootPublicKey []byte, fabricID uint64) ([]byte, error) {
	if len(rootPublicKey) == 0 {
		return nil, fmt.Errorf("empty root public key")
	}
	key := rootPublicKey
	if key[0] == 0x04 && len(key) > 1 {
		key = key[1:]
	}
	var salt [8]byte
	binary.BigEndian.PutUint64(salt[:], fabricID)

	out := make([]byte, CompressedFabricIDSize)
	r := hkdf.New(sha256.New, key, salt[:], []byte("CompressedFabric"))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("compressed fabric id derivation failed: %w", err)
	}
	return out, nil
}

// ListFabrics returns the committed fabric records ordered by index.
// The returned slice is a copy.
func (s *Store) ListFabrics() []FabricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FabricRecord, len(s.fabrics))
	copy(out, s.fabrics)
	return out
}

// FabricCount returns the number of committed fabrics.
func (s *Store) FabricCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fabrics)
}

// CommitFabric appends a fabric record, assigns it the lowest free
// index, and persists the table durably before returning. The capacity
// check and the append happen in one critical section so two racing
// commits can never both succeed past the limit.
func (s *Store) CommitFabric(rec FabricRecord) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.fabrics) >= s.maxFab {
		return 0, ErrCapacityExceeded
	}

	rec.Index = s.nextIndexLocked()
	if rec.JoinedAt.IsZero() {
		rec.JoinedAt = time.Now()
	}
	s.fabrics = append(s.fabrics, rec)
	sort.Slice(s.fabrics, func(i, j int) bool { return s.fabrics[i].Index < s.fabrics[j].Index })

	if err := s.persistLocked(); err != nil {
		// Roll back: an unpersisted commit must not be acknowledged.
		s.removeIndexLocked(rec.Index)
		return 0, fmt.Errorf("fabric commit not durable: %w", err)
	}
	return rec.Index, nil
}

// RemoveFabric deletes the fabric with the given index and persists
// the change.
func (s *Store) RemoveFabric(index uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeIndexLocked(index) {
		return ErrFabricNotFound
	}
	return s.persistLocked()
}

// nextIndexLocked returns the lowest unused 1-based fabric index.
func (s *Store) nextIndexLocked() uint8 {
	used := make(map[uint8]bool, len(s.fabrics))
	for _, f := range s.fabrics {
		used[f.Index] = true
	}
	for i := uint8(1); ; i++ {
		if !used[i] {
			return i
		}
	}
}

func (s *Store) removeIndexLocked(index uint8) bool {
	for i, f := range s.fabrics {
		if f.Index == index {
			s.fabrics = append(s.fabrics[:i], s.fabrics[i+1:]...)
			return true
		}
	}
	return false
}
