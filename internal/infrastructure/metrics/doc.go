// Package metrics exposes server counters in the Prometheus text format.
//
// A Collector owns a private prometheus.Registry, so several collectors can
// coexist in one process (tests) and nothing is registered globally. It
// implements the metrics hooks of the osc and daw packages and observes
// routing changes.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Methods on a nil *Collector are
// no-ops.
package metrics
