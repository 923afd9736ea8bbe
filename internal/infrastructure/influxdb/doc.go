// Package influxdb records routing telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// Every routing change becomes a point in the "routing" measurement
// (tags flavor, track, device; fields name, channel, bound), so the history
// of where each track played can be graphed next to the session timeline.
// MIDI hot-plug events go to "midi_devices".
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	observers = append(observers, client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; write errors
// are delivered to the SetOnError callback.
package influxdb
