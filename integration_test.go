package panelgo_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/cert"
	"github.com/smartpanel-home/panel-go/pkg/config"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/discovery"
	"github.com/smartpanel-home/panel-go/pkg/log"
	"github.com/smartpanel-home/panel-go/pkg/service"
	"github.com/smartpanel-home/panel-go/pkg/tlv"
	"github.com/smartpanel-home/panel-go/pkg/wire"
)

// memAdvertiser records advertisements in memory so the end-to-end
// flow can run without mDNS.
type memAdvertiser struct {
	mu             sync.Mutex
	commissionable bool
	operational    map[string]bool
}

func newMemAdvertiser() *memAdvertiser {
	return &memAdvertiser{operational: make(map[string]bool)}
}

func (a *memAdvertiser) AdvertiseCommissionable(_ context.Context, info *discovery.CommissionableInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commissionable = true
	return nil
}

func (a *memAdvertiser) StopCommissionable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commissionable = false
	return nil
}

func (a *memAdvertiser) AdvertiseOperational(_ context.Context, info *discovery.OperationalInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.operational[info.InstanceName()] = true
	return nil
}

func (a *memAdvertiser) StopOperational(instanceName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.operational[instanceName] {
		return discovery.ErrNotAdvertising
	}
	delete(a.operational, instanceName)
	return nil
}

func (a *memAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commissionable = false
	a.operational = make(map[string]bool)
}

func (a *memAdvertiser) advertising(instanceName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.operational[instanceName]
}

// commissioner drives one commissioning attempt against a dispatcher,
// the way an administrator on an authenticated channel would.
type commissioner struct {
	t          *testing.T
	dispatcher *service.Dispatcher
	channel    string
	ca         *cert.CommissionerCA
	fabricID   uint64
}

func newCommissioner(t *testing.T, d *service.Dispatcher, channel string, fabricID uint64) *commissioner {
	t.Helper()
	ca, err := cert.NewCommissionerCA(fabricID)
	if err != nil {
		t.Fatalf("NewCommissionerCA() error = %v", err)
	}
	return &commissioner{t: t, dispatcher: d, channel: channel, ca: ca, fabricID: fabricID}
}

func (c *commissioner) invoke(cmd uint8, fields []byte) wire.CommandResponse {
	c.t.Helper()
	return c.dispatcher.Dispatch(c.channel, &wire.CommandRequest{
		ClusterID: wire.OperationalCredentialsClusterID,
		CommandID: cmd,
		Fields:    fields,
	})
}

func (c *commissioner) mustInvoke(cmd uint8, fields []byte) wire.CommandResponse {
	c.t.Helper()
	resp := c.invoke(cmd, fields)
	if !resp.IsSuccess() {
		c.t.Fatalf("command 0x%02X status = %v", cmd, resp.Status)
	}
	return resp
}

func (c *commissioner) bytesField(tag uint8, value []byte) []byte {
	c.t.Helper()
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(tag), value)
	w.EndContainer()
	data, err := w.Bytes()
	if err != nil {
		c.t.Fatalf("field encode error = %v", err)
	}
	return data
}

func (c *commissioner) uintField(tag uint8, value uint64) []byte {
	c.t.Helper()
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutUint(tlv.ContextTag(tag), value)
	w.EndContainer()
	data, err := w.Bytes()
	if err != nil {
		c.t.Fatalf("field encode error = %v", err)
	}
	return data
}

func (c *commissioner) responseBytes(resp wire.CommandResponse, tag uint8) []byte {
	c.t.Helper()
	fv, err := wire.Normalize(resp.Payload)
	if err != nil {
		c.t.Fatalf("response decode error = %v", err)
	}
	b, ok := fv.BytesField(tag, int(tag))
	if !ok {
		c.t.Fatalf("response missing byte field %d", tag)
	}
	return b
}

// commission runs the complete attempt and returns the assigned index.
func (c *commissioner) commission(nodeID uint64, adminVendorID uint16) uint8 {
	c.t.Helper()

	c.mustInvoke(wire.CmdCertificateChainRequest, c.uintField(0, uint64(wire.CertificateChainTypeDAC)))
	c.mustInvoke(wire.CmdCertificateChainRequest, c.uintField(0, uint64(wire.CertificateChainTypePAI)))

	nonce := make([]byte, attestation.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		c.t.Fatalf("nonce: %v", err)
	}
	resp := c.mustInvoke(wire.CmdAttestationRequest, c.bytesField(0, nonce))
	el, err := attestation.DecodeElements(c.responseBytes(resp, 0))
	if err != nil {
		c.t.Fatalf("DecodeElements() error = %v", err)
	}
	if !bytes.Equal(el.Nonce, nonce) {
		c.t.Fatal("attestation nonce not echoed")
	}

	if _, err := rand.Read(nonce); err != nil {
		c.t.Fatalf("nonce: %v", err)
	}
	resp = c.mustInvoke(wire.CmdCSRRequest, c.bytesField(0, nonce))
	csrEl, err := attestation.DecodeCSRElements(c.responseBytes(resp, 0))
	if err != nil {
		c.t.Fatalf("DecodeCSRElements() error = %v", err)
	}

	noc, err := c.ca.SignCSR(csrEl.CSRPayload, c.fabricID, nodeID)
	if err != nil {
		c.t.Fatalf("SignCSR() error = %v", err)
	}

	c.mustInvoke(wire.CmdAddTrustedRootCert, c.bytesField(0, c.ca.RootCertificate()))

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(0), noc)
	w.PutBytes(tlv.ContextTag(2), bytes.Repeat([]byte{0x5A}, 16))
	w.PutUint(tlv.ContextTag(3), 112233)
	w.PutUint(tlv.ContextTag(4), uint64(adminVendorID))
	w.EndContainer()
	fields, err := w.Bytes()
	if err != nil {
		c.t.Fatalf("AddNOC encode error = %v", err)
	}
	resp = c.mustInvoke(wire.CmdAddNOC, fields)

	fv, err := wire.Normalize(resp.Payload)
	if err != nil {
		c.t.Fatalf("NOCResponse decode error = %v", err)
	}
	status, _ := fv.UintField(0, 0)
	index, _ := fv.UintField(1, 1)
	if status != uint64(wire.StatusSuccess) || index == 0 {
		c.t.Fatalf("NOCResponse = status %d index %d", status, index)
	}
	return uint8(index)
}

// TestDeviceCommissioningEndToEnd wires the full device stack the way
// cmd/panel-device does and commissions it twice from two channels.
func TestDeviceCommissioningEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = t.TempDir()

	store, err := cred.NewStore(cfg.StateDir, cert.DeviceIdentity{
		VendorID:     cfg.VendorID,
		ProductID:    cfg.ProductID,
		DeviceTypeID: cfg.DeviceTypeID,
		SerialNumber: cfg.SerialNumber,
	}, cred.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	engine := attestation.NewEngine(store, attestation.Declaration{
		FormatVersion:     1,
		VendorID:          cfg.VendorID,
		ProductIDs:        []uint16{cfg.ProductID},
		DeviceTypeID:      cfg.DeviceTypeID,
		CertificateID:     "CSA00000SWC00000-00",
		VersionNumber:     1,
		CertificationType: attestation.CertificationTypeDevelopment,
	})
	dispatcher := service.NewDispatcher(store, engine, service.Options{Logger: log.NoopLogger{}})

	adv := newMemAdvertiser()
	manager := discovery.NewManager(adv, &discovery.CommissionableInfo{
		Discriminator: cfg.Discriminator,
		VendorID:      cfg.VendorID,
		ProductID:     cfg.ProductID,
		DeviceType:    cfg.DeviceTypeID,
		DeviceName:    cfg.DeviceName,
	})

	ctx := context.Background()
	if err := manager.OpenCommissioningWindow(ctx, time.Hour); err != nil {
		t.Fatalf("OpenCommissioningWindow() error = %v", err)
	}

	// First administrator commissions node 0x11 on fabric A.
	admin1 := newCommissioner(t, dispatcher, "case-admin-1", 0xA11CE00000000001)
	index1 := admin1.commission(0x11, cfg.VendorID)
	if index1 != 1 {
		t.Fatalf("first commit index = %d, want 1", index1)
	}

	// Second administrator on a separate channel, fabric B.
	admin2 := newCommissioner(t, dispatcher, "case-admin-2", 0xB0B0000000000002)
	index2 := admin2.commission(0x22, cfg.VendorID)
	if index2 != 2 {
		t.Fatalf("second commit index = %d, want 2", index2)
	}

	fabrics := store.ListFabrics()
	if len(fabrics) != 2 {
		t.Fatalf("fabric count = %d, want 2", len(fabrics))
	}

	// Advertise both fabrics operationally and close the window.
	for _, rec := range fabrics {
		if err := manager.AddFabric(ctx, &discovery.OperationalInfo{
			CompressedFabricID: rec.RootPublicKeyFingerprint,
			NodeID:             rec.NodeID,
		}); err != nil {
			t.Fatalf("AddFabric() error = %v", err)
		}
	}
	if err := manager.CloseCommissioningWindow(); err != nil {
		t.Fatalf("CloseCommissioningWindow() error = %v", err)
	}
	if manager.State() != discovery.StateOperational {
		t.Errorf("discovery state = %v, want OPERATIONAL", manager.State())
	}

	// Credentials survive a store reopen.
	reopened, err := cred.NewStore(cfg.StateDir, store.Identity(), cred.Options{})
	if err != nil {
		t.Fatalf("reopen NewStore() error = %v", err)
	}
	if reopened.FabricCount() != 2 {
		t.Errorf("reopened fabric count = %d, want 2", reopened.FabricCount())
	}

	// Removing the first fabric frees its index and its advertisement.
	name1 := (&discovery.OperationalInfo{
		CompressedFabricID: fabrics[0].RootPublicKeyFingerprint,
		NodeID:             fabrics[0].NodeID,
	}).InstanceName()
	resp := admin2.invoke(wire.CmdRemoveFabric, admin2.uintField(0, uint64(index1)))
	if !resp.IsSuccess() {
		t.Fatalf("RemoveFabric status = %v", resp.Status)
	}
	if err := manager.RemoveFabric(name1); err != nil {
		t.Fatalf("discovery RemoveFabric() error = %v", err)
	}
	if adv.advertising(name1) {
		t.Error("removed fabric still advertised")
	}
	if store.FabricCount() != 1 {
		t.Errorf("fabric count after removal = %d, want 1", store.FabricCount())
	}

	// A third attempt reuses the freed index.
	admin3 := newCommissioner(t, dispatcher, "case-admin-3", 0xC0DE000000000003)
	if index3 := admin3.commission(0x33, cfg.VendorID); index3 != 1 {
		t.Errorf("third commit index = %d, want freed index 1", index3)
	}
}

// TestFreshDeviceRejectsOperationalCommands checks the pristine-state
// ordering guard through the whole stack.
func TestFreshDeviceRejectsOperationalCommands(t *testing.T) {
	store, err := cred.NewStore(t.TempDir(), cert.DeviceIdentity{
		VendorID:  config.DefaultVendorID,
		ProductID: config.DefaultProductID,
	}, cred.Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	engine := attestation.NewEngine(store, attestation.Declaration{
		FormatVersion: 1,
		VendorID:      config.DefaultVendorID,
		ProductIDs:    []uint16{config.DefaultProductID},
	})
	dispatcher := service.NewDispatcher(store, engine, service.Options{})

	c := newCommissioner(t, dispatcher, "premature", 0x1)
	if resp := c.invoke(wire.CmdAddNOC, c.bytesField(0, []byte{0x30, 0x00})); resp.Status != wire.StatusOutOfOrder {
		t.Errorf("AddNOC on fresh device status = %v, want OutOfOrder", resp.Status)
	}
	if resp := c.invoke(wire.CmdCSRRequest, c.bytesField(0, make([]byte, attestation.NonceSize))); resp.Status != wire.StatusOutOfOrder {
		t.Errorf("CSR on fresh device status = %v, want OutOfOrder", resp.Status)
	}
	if store.FabricCount() != 0 {
		t.Error("rejected commands mutated the store")
	}
}
