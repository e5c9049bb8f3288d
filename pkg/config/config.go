// Package config loads the device configuration from YAML with
// development defaults matching the reference smart panel.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartpanel-home/panel-go/pkg/discovery"
	"github.com/smartpanel-home/panel-go/pkg/failsafe"
)

// Default device identity constants, development-grade.
const (
	DefaultVendorID      = 0xFFF1
	DefaultProductID     = 0x8000
	DefaultDeviceTypeID  = 0x0100
	DefaultDiscriminator = 3840
	DefaultPasscode      = 20202021
)

// Config is the device configuration.
type Config struct {
	// Device identity.
	VendorID     uint16 `yaml:"vendor_id"`
	ProductID    uint16 `yaml:"product_id"`
	DeviceTypeID uint32 `yaml:"device_type_id"`
	SerialNumber string `yaml:"serial_number"`
	DeviceName   string `yaml:"device_name"`

	// Onboarding material.
	Discriminator uint16 `yaml:"discriminator"`
	Passcode      uint32 `yaml:"passcode"`

	// StateDir is where credentials and fabric records persist.
	StateDir string `yaml:"state_dir"`

	// FailSafeWindow bounds one commissioning attempt. Zero selects
	// the default.
	FailSafeWindow time.Duration `yaml:"fail_safe_window"`

	// Port is the operational service port. Zero selects the default.
	Port uint16 `yaml:"port"`

	// Interface restricts mDNS advertising to one interface.
	Interface string `yaml:"interface"`

	// LogFile receives the binary event trace when set.
	LogFile string `yaml:"log_file"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		VendorID:      DefaultVendorID,
		ProductID:     DefaultProductID,
		DeviceTypeID:  DefaultDeviceTypeID,
		SerialNumber:  "SP-DEV-0001",
		DeviceName:    "Smart Panel",
		Discriminator: DefaultDiscriminator,
		Passcode:      DefaultPasscode,
		StateDir:      "panel-state",
	}
}

// Load reads a YAML configuration file over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Discriminator > discovery.MaxDiscriminator {
		return fmt.Errorf("discriminator must be 0-%d, got %d", discovery.MaxDiscriminator, c.Discriminator)
	}
	if !discovery.ValidPasscode(c.Passcode) {
		return fmt.Errorf("passcode %d is out of range or trivially guessable", c.Passcode)
	}
	if c.FailSafeWindow != 0 &&
		(c.FailSafeWindow < failsafe.MinWindow || c.FailSafeWindow > failsafe.MaxWindow) {
		return fmt.Errorf("fail-safe window %v outside [%v, %v]", c.FailSafeWindow, failsafe.MinWindow, failsafe.MaxWindow)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	return nil
}

// OnboardingPayload returns the QR/manual-code material for this
// configuration.
func (c *Config) OnboardingPayload() *discovery.OnboardingPayload {
	return &discovery.OnboardingPayload{
		VendorID:      c.VendorID,
		ProductID:     c.ProductID,
		Discriminator: c.Discriminator,
		Passcode:      c.Passcode,
	}
}
