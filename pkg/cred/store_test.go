package cred

import (
	"errors"
	"sync"
	"testing"

	"github.com/smartpanel-home/panel-go/pkg/cert"
)

func testIdentity() cert.DeviceIdentity {
	return cert.DeviceIdentity{
		VendorID:     0xFFF1,
		ProductID:    0x8000,
		DeviceTypeID: 0x0100,
	}
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), testIdentity(), opts)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestEnsureAttestationIdentityIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})

	first, err := s.EnsureAttestationIdentity()
	if err != nil {
		t.Fatalf("EnsureAttestationIdentity() error = %v", err)
	}
	second, err := s.EnsureAttestationIdentity()
	if err != nil {
		t.Fatalf("EnsureAttestationIdentity() second call error = %v", err)
	}

	if !first.DAC.Equal(second.DAC) || !first.PAI.Equal(second.PAI) {
		t.Error("two calls returned different chains")
	}
	if err := first.Validate(); err != nil {
		t.Errorf("chain Validate() error = %v", err)
	}
}

func TestSignatureVerifiesAgainstCachedDAC(t *testing.T) {
	s := newTestStore(t, Options{})

	msg := []byte("elements")
	sig, err := s.SignWithAttestationKey(msg)
	if err != nil {
		t.Fatalf("SignWithAttestationKey() error = %v", err)
	}
	if len(sig) < 64 || len(sig) > 72 {
		t.Errorf("signature length = %d, want 64-72", len(sig))
	}

	chain, err := s.EnsureAttestationIdentity()
	if err != nil {
		t.Fatalf("EnsureAttestationIdentity() error = %v", err)
	}
	if err := cert.VerifySignature(chain.DAC, msg, sig); err != nil {
		t.Errorf("signature does not verify against cached DAC: %v", err)
	}
}

func TestAttestationIdentitySurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir, testIdentity(), Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	chain1, err := s1.EnsureAttestationIdentity()
	if err != nil {
		t.Fatalf("EnsureAttestationIdentity() error = %v", err)
	}

	s2, err := NewStore(dir, testIdentity(), Options{})
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	chain2, err := s2.EnsureAttestationIdentity()
	if err != nil {
		t.Fatalf("EnsureAttestationIdentity() after reopen error = %v", err)
	}

	if !chain1.DAC.Equal(chain2.DAC) {
		t.Error("DAC changed across restart")
	}

	// The reloaded key must still produce signatures the original DAC
	// verifies.
	sig, err := s2.SignWithAttestationKey([]byte("msg"))
	if err != nil {
		t.Fatalf("SignWithAttestationKey() error = %v", err)
	}
	if err := cert.VerifySignature(chain1.DAC, []byte("msg"), sig); err != nil {
		t.Errorf("reloaded key signature invalid: %v", err)
	}
}

func TestCommitFabric(t *testing.T) {
	s := newTestStore(t, Options{})

	idx, err := s.CommitFabric(FabricRecord{FabricID: 0x10, NodeID: 0x20, VendorID: 0xFFF1})
	if err != nil {
		t.Fatalf("CommitFabric() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("first fabric index = %d, want 1", idx)
	}

	fabrics := s.ListFabrics()
	if len(fabrics) != 1 || fabrics[0].Index != 1 || fabrics[0].FabricID != 0x10 {
		t.Errorf("ListFabrics() = %+v", fabrics)
	}
}

func TestCommitFabricCapacity(t *testing.T) {
	s := newTestStore(t, Options{MaxFabrics: 1})

	if _, err := s.CommitFabric(FabricRecord{FabricID: 1}); err != nil {
		t.Fatalf("CommitFabric() error = %v", err)
	}
	if _, err := s.CommitFabric(FabricRecord{FabricID: 2}); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("CommitFabric() at capacity = %v, want ErrCapacityExceeded", err)
	}
}

func TestCommitFabricConcurrentCapacityOne(t *testing.T) {
	s := newTestStore(t, Options{MaxFabrics: 1})

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CommitFabric(FabricRecord{FabricID: uint64(i + 1)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d commits succeeded with capacity 1, want exactly 1", succeeded)
	}
	if got := s.FabricCount(); got != 1 {
		t.Errorf("FabricCount() = %d, want 1", got)
	}
}

func TestRemoveFabric(t *testing.T) {
	s := newTestStore(t, Options{})

	idx, _ := s.CommitFabric(FabricRecord{FabricID: 1})
	if err := s.RemoveFabric(idx); err != nil {
		t.Errorf("RemoveFabric() error = %v", err)
	}
	if err := s.RemoveFabric(idx); !errors.Is(err, ErrFabricNotFound) {
		t.Errorf("RemoveFabric() twice = %v, want ErrFabricNotFound", err)
	}
	if got := s.FabricCount(); got != 0 {
		t.Errorf("FabricCount() = %d, want 0", got)
	}
}

func TestFabricIndexReuse(t *testing.T) {
	s := newTestStore(t, Options{})

	i1, _ := s.CommitFabric(FabricRecord{FabricID: 1})
	i2, _ := s.CommitFabric(FabricRecord{FabricID: 2})
	if i1 != 1 || i2 != 2 {
		t.Fatalf("indices = %d, %d, want 1, 2", i1, i2)
	}

	s.RemoveFabric(i1)
	i3, _ := s.CommitFabric(FabricRecord{FabricID: 3})
	if i3 != 1 {
		t.Errorf("index after removal = %d, want reused 1", i3)
	}

	// Ordered by index, stable.
	fabrics := s.ListFabrics()
	if len(fabrics) != 2 || fabrics[0].Index != 1 || fabrics[1].Index != 2 {
		t.Errorf("ListFabrics() order = %+v", fabrics)
	}
}

func TestFabricsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	s1, _ := NewStore(dir, testIdentity(), Options{})
	s1.CommitFabric(FabricRecord{FabricID: 0xAA, NodeID: 0xBB, Label: "home"})

	s2, err := NewStore(dir, testIdentity(), Options{})
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	fabrics := s2.ListFabrics()
	if len(fabrics) != 1 || fabrics[0].FabricID != 0xAA || fabrics[0].Label != "home" {
		t.Errorf("fabrics after reopen = %+v", fabrics)
	}
}

func TestFactoryReset(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, testIdentity(), Options{})
	s.EnsureAttestationIdentity()
	s.CommitFabric(FabricRecord{FabricID: 1})

	if err := s.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset() error = %v", err)
	}
	if s.FabricCount() != 0 {
		t.Error("fabrics survived factory reset")
	}

	s2, _ := NewStore(dir, testIdentity(), Options{})
	if s2.FabricCount() != 0 {
		t.Error("fabrics survived factory reset on disk")
	}
}

func TestCompressedFabricID(t *testing.T) {
	key := append([]byte{0x04}, make([]byte, 64)...)

	a, err := CompressedFabricID(key, 1)
	if err != nil {
		t.Fatalf("CompressedFabricID() error = %v", err)
	}
	if len(a) != CompressedFabricIDSize {
		t.Errorf("length = %d, want %d", len(a), CompressedFabricIDSize)
	}

	b, _ := CompressedFabricID(key, 1)
	if string(a) != string(b) {
		t.Error("derivation is not deterministic")
	}

	c, _ := CompressedFabricID(key, 2)
	if string(a) == string(c) {
		t.Error("different fabric ids derived the same value")
	}

	if _, err := CompressedFabricID(nil, 1); err == nil {
		t.Error("empty key accepted")
	}
}
