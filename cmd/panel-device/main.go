// Command panel-device runs the smart panel commissioning device.
//
// It opens the credential store, starts mDNS advertising, and drops
// into an interactive shell for inspecting and driving the
// commissioning engine.
//
// Usage:
//
//	# Start with development defaults
//	panel-device
//
//	# Start with a config file and verbose event logging
//	panel-device -config /etc/panel/device.yaml -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartpanel-home/panel-go/cmd/panel-device/interactive"
	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/cert"
	"github.com/smartpanel-home/panel-go/pkg/config"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/discovery"
	"github.com/smartpanel-home/panel-go/pkg/log"
	"github.com/smartpanel-home/panel-go/pkg/service"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Configuration file path")
		stateDir      = flag.String("state-dir", "", "Override the credential state directory")
		discriminator = flag.Uint("discriminator", 0, "Override the 12-bit discriminator")
		logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logFile       = flag.String("log-file", "", "Write the binary event trace to this file")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}
	if *discriminator != 0 {
		cfg.Discriminator = uint16(*discriminator)
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(*logLevel),
	}))
	logger, closeLogger, err := buildEventLogger(slogger, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open event log: %v\n", err)
		os.Exit(1)
	}
	defer closeLogger()

	store, err := cred.NewStore(cfg.StateDir, cert.DeviceIdentity{
		VendorID:     cfg.VendorID,
		ProductID:    cfg.ProductID,
		DeviceTypeID: cfg.DeviceTypeID,
		SerialNumber: cfg.SerialNumber,
	}, cred.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open credential store: %v\n", err)
		os.Exit(1)
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

	dispatcher := service.NewDispatcher(store, engine, service.Options{
		Window: cfg.FailSafeWindow,
		Logger: logger,
	})

	advertiser := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
		Interface: cfg.Interface,
		TTL:       discovery.DefaultAdvertiserConfig().TTL,
	})
	manager := discovery.NewManager(advertiser, &discovery.CommissionableInfo{
		Discriminator: cfg.Discriminator,
		VendorID:      cfg.VendorID,
		ProductID:     cfg.ProductID,
		DeviceType:    cfg.DeviceTypeID,
		DeviceName:    cfg.DeviceName,
		Port:          cfg.Port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Re-advertise fabrics surviving from a previous run.
	for _, rec := range store.ListFabrics() {
		info := &discovery.OperationalInfo{
			CompressedFabricID: rec.RootPublicKeyFingerprint,
			NodeID:             rec.NodeID,
			Port:               cfg.Port,
		}
		if err := manager.AddFabric(ctx, info); err != nil {
			slogger.Warn("operational advertise failed", "fabric", rec.Index, "err", err)
		}
	}

	if err := manager.OpenCommissioningWindow(ctx, 0); err != nil {
		slogger.Warn("commissioning window did not open", "err", err)
	} else {
		slogger.Info("commissioning window open",
			"discriminator", cfg.Discriminator,
			"fabrics", store.FabricCount(),
		)
	}

	shell, err := interactive.New(interactive.Deps{
		Config:     cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Discovery:  manager,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start shell: %v\n", err)
		os.Exit(1)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	shell.Run(ctx, cancel)

	manager.Stop()
	dispatcher.Registry().Close()
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildEventLogger assembles the event trace pipeline: console via
// slog, plus the binary file trace when configured.
func buildEventLogger(slogger *slog.Logger, logFile string) (log.Logger, func(), error) {
	console := log.NewSlogAdapter(slogger)
	if logFile == "" {
		return console, func() {}, nil
	}

	file, err := log.NewFileLogger(logFile)
	if err != nil {
		return nil, nil, err
	}
	return log.NewMultiLogger(console, file), func() { _ = file.Close() }, nil
}
