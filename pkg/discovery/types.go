package discovery

import (
	"errors"
	"fmt"
)

// Service types and defaults for commissioning discovery.
const (
	// ServiceTypeCommissionable is advertised while the commissioning
	// window is open.
	ServiceTypeCommissionable = "_matterc._udp"

	// ServiceTypeOperational is advertised per committed fabric.
	ServiceTypeOperational = "_matter._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the default operational port.
	DefaultPort = 5540

	// MaxDiscriminator is the largest 12-bit discriminator.
	MaxDiscriminator = 0xFFF

	// MinPasscode and MaxPasscode bound valid setup passcodes.
	MinPasscode = 1
	MaxPasscode = 99999998
)

// Validation errors.
var (
	ErrInvalidDiscriminator = errors.New("discriminator out of range")
	ErrInvalidPasscode      = errors.New("setup passcode out of range")
	ErrInvalidPayload       = errors.New("invalid onboarding payload")
	ErrNotAdvertising       = errors.New("service not advertised")
)

// invalidPasscodes are the trivially guessable values the protocol
// forbids.
var invalidPasscodes = map[uint32]bool{
	11111111: true, 22222222: true, 33333333: true, 44444444: true,
	55555555: true, 66666666: true, 77777777: true, 88888888: true,
	12345678: true, 87654321: true,
}

// ValidPasscode reports whether the setup passcode is in range and not
// one of the forbidden trivial values.
func ValidPasscode(passcode uint32) bool {
	if passcode < MinPasscode || passcode > MaxPasscode {
		return false
	}
	return !invalidPasscodes[passcode]
}

// CommissionableInfo describes the device while its commissioning
// window is open.
type CommissionableInfo struct {
	// Discriminator is the 12-bit value commissioners filter on.
	Discriminator uint16

	// VendorID and ProductID identify the product.
	VendorID  uint16
	ProductID uint16

	// DeviceType is the primary device type identifier.
	DeviceType uint32

	// DeviceName is an optional human-readable name.
	DeviceName string

	// Port is the service port. Zero selects DefaultPort.
	Port uint16

	// PairingHint describes how to put the device into pairing mode.
	PairingHint uint16
}

// Validate checks the commissionable info fields.
func (c *CommissionableInfo) Validate() error {
	if c.Discriminator > MaxDiscriminator {
		return fmt.Errorf("%w: %d", ErrInvalidDiscriminator, c.Discriminator)
	}
	return nil
}

// OperationalInfo describes one committed fabric's operational
// service.
type OperationalInfo struct {
	// CompressedFabricID is the 8-byte compressed fabric identifier.
	CompressedFabricID []byte

	// NodeID is the device's node id within the fabric.
	NodeID uint64

	// Port is the service port. Zero selects DefaultPort.
	Port uint16
}

// InstanceName returns the operational instance name,
// "<compressed-fabric-id>-<node-id>" in uppercase hex.
func (o *OperationalInfo) InstanceName() string {
	return fmt.Sprintf("%X-%016X", o.CompressedFabricID, o.NodeID)
}
