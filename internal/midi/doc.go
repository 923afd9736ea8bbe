// Package midi maintains the directory of attached MIDI output devices and
// exposes each device's 16 channels as output sinks.
//
// # Architecture
//
// The Directory is fed by an Enumerator. SystemEnumerator talks to the OS
// through gomidi and the rtmidi driver; tests substitute a fake. Sync diffs
// the enumerated port names against the resident devices: new names become
// Devices, vanished names are detached and dropped. Resident devices keep
// their identity (and open port) across syncs.
//
//	Enumerator ──Sync──▶ Directory ──Find/Lookup──▶ Device ──Channel(i)──▶ Channel (output.Sink)
//
// A detached Device is not reused even if a port of the same name returns;
// the next Sync creates a fresh Device and the DAW registries re-resolve on
// their next routing update.
//
// # Thread Safety
//
// All Directory and Device methods are safe for concurrent use.
package midi
