// Package daw holds what the Live and Bitwig drivers share: the driver
// contract and factory, the read-only TrackSet view, routing events,
// outbound commands and the /hello handshake.
//
// # Architecture
//
// Each DAW flavor lives in its own subpackage (daw/live, daw/bitwig) with a
// registry that reconciles the DAW's pushed state and a driver that maps
// inbound OSC addresses onto registry operations:
//
//	osc.Server ──Message──▶ Driver handler ──▶ Registry ──Rebind──▶ output.Cell
//	                                              │
//	                                              └──RoutingEvent──▶ observers (metrics, MQTT, InfluxDB)
//
// The flavor to run is chosen at startup through a Factory that main
// populates explicitly.
//
// # Thread Safety
//
// Driver handlers run on the OSC server's single handler goroutine, so
// registry mutation is single-writer. Registries still guard their maps and
// entities with RWMutexes for concurrent readers (HTTP API, metrics).
package daw
