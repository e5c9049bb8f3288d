package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser publishes the device's discovery services.
type Advertiser interface {
	// AdvertiseCommissionable starts the commissionable advertisement.
	// It replaces any previous one.
	AdvertiseCommissionable(ctx context.Context, info *CommissionableInfo) error

	// StopCommissionable withdraws the commissionable advertisement.
	StopCommissionable() error

	// AdvertiseOperational starts an operational advertisement for one
	// committed fabric. Multiple fabrics advertise simultaneously.
	AdvertiseOperational(ctx context.Context, info *OperationalInfo) error

	// StopOperational withdraws the advertisement for the fabric with
	// the given instance name.
	StopOperational(instanceName string) error

	// StopAll withdraws every advertisement.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser
// configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// MDNSAdvertiser implements Advertiser with zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu sync.Mutex

	commissionable *zeroconf.Server
	operational    map[string]*zeroconf.Server // keyed by instance name
}

// NewMDNSAdvertiser creates an mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{
		config:      config,
		operational: make(map[string]*zeroconf.Server),
	}
}

// getInterfaces returns the interfaces to advertise on, nil for all.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func (a *MDNSAdvertiser) serverOptions() []zeroconf.ServerOption {
	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}
	return opts
}

// AdvertiseCommissionable starts the commissionable advertisement.
func (a *MDNSAdvertiser) AdvertiseCommissionable(ctx context.Context, info *CommissionableInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commissionable != nil {
		a.commissionable.Shutdown()
		a.commissionable = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(
		CommissionableInstanceName(info.Discriminator),
		ServiceTypeCommissionable,
		Domain,
		port,
		EncodeCommissionableTXT(info),
		a.getInterfaces(),
		a.serverOptions()...,
	)
	if err != nil {
		return fmt.Errorf("failed to register commissionable service: %w", err)
	}
	a.commissionable = server
	return nil
}

// StopCommissionable withdraws the commissionable advertisement.
func (a *MDNSAdvertiser) StopCommissionable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commissionable != nil {
		a.commissionable.Shutdown()
		a.commissionable = nil
	}
	return nil
}

// AdvertiseOperational starts an operational advertisement for one
// committed fabric.
func (a *MDNSAdvertiser) AdvertiseOperational(ctx context.Context, info *OperationalInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := info.InstanceName()
	if server, exists := a.operational[name]; exists {
		server.Shutdown()
		delete(a.operational, name)
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(
		name,
		ServiceTypeOperational,
		Domain,
		port,
		nil,
		a.getInterfaces(),
		a.serverOptions()...,
	)
	if err != nil {
		return fmt.Errorf("failed to register operational service: %w", err)
	}
	a.operational[name] = server
	return nil
}

// StopOperational withdraws one fabric's operational advertisement.
func (a *MDNSAdvertiser) StopOperational(instanceName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.operational[instanceName]
	if !exists {
		return ErrNotAdvertising
	}
	server.Shutdown()
	delete(a.operational, instanceName)
	return nil
}

// StopAll withdraws every advertisement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.commissionable != nil {
		a.commissionable.Shutdown()
		a.commissionable = nil
	}
	for name, server := range a.operational {
		server.Shutdown()
		delete(a.operational, name)
	}
}

// Compile-time interface satisfaction check.
var _ Advertiser = (*MDNSAdvertiser)(nil)
