// Package logging provides structured logging for the MusaLCE server.
//
// This package wraps Go's standard log/slog package so that every component
// (MIDI directory, OSC transport, DAW registries, infrastructure clients)
// logs with the same format and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("osc listening", "addr", addr)
//	logger.Warn("osc send failed", "address", msg.Address, "error", err)
package logging
