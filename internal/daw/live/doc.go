// Package live implements the Ableton Live driver.
//
// Live identifies tracks by integer id and allows several tracks to share a
// name. The Live extension pushes the whole track list on request and
// field-level updates afterwards. A track's output follows its MIDI input
// routing: when Live routes a track's MIDI input from "Driver IAC (Bus 1)",
// sub-routing "Ch. 3", the track's Cell is bound to channel 3 of the MIDI
// output device whose name ends with "Bus 1".
package live
