// Package log provides structured protocol capture for NVMe-MI endpoints.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, engine).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable trace of every exchange for debugging and
// analysis.
//
// # Basic Usage
//
// The logging context is configured once on the mi.Root:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For field captures: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/nvme-mi/bmc.mlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw message bytes (FrameEvent)
//   - Wire: Decoded headers (MessageEvent)
//   - Engine: Chunks of a transfer (ChunkEvent), endpoint and controller
//     state changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .mlog extension.
// The nvme-mi-log command provides viewing, filtering, and export.
package log
