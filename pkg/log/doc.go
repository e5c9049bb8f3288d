// Package log provides structured event logging for the commissioning
// engine.
//
// This package defines the Logger interface and Event types for capturing
// commissioning events at the wire and service layers. It is separate from
// operational logging (slog) - event capture provides a complete
// machine-readable trace of a commissioning attempt for debugging and
// analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/panel/device.clog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at two layers:
//   - Wire: Decoded command invocations and responses (CommandEvent)
//   - Service: Session and phase changes (StateChangeEvent)
//
// Errors have a dedicated event type usable at any layer.
//
// # File Format
//
// Log files use CBOR encoding. Reader streams them back with optional
// filtering by channel, layer, category, time range, or fabric.
package log
