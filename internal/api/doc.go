// Package api implements the local HTTP control API.
//
// This package provides:
//   - Read-only views of tracks, MIDI devices and (Bitwig) controllers
//   - Transport and sync commands forwarded to the DAW extension
//   - A local MIDI panic
//   - Prometheus metrics exposition
//   - The embedded routing status page under /panel/
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API is an operator surface next to the OSC conversation, not part of
// it. Reads come from the registry snapshots; commands go through the same
// daw.Commands the driver uses, so they are fire-and-forget and a send
// failure is reported as 502.
//
// # Graceful Degradation
//
// Optional dependencies (clock, controllers, metrics, health checkers) may be
// nil; their routes then report 404 or are omitted from the health payload.
package api
