// Package panel serves the routing status page as an embedded asset.
//
// The page is a small static bundle (HTML, JS, CSS) compiled into the
// binary with go:embed. It polls the HTTP API for tracks, devices and
// transport state, and offers the transport buttons.
//
// Handler serves the bundle with single-page fallback: a request for a
// file that does not exist gets index.html. Responses are marked no-cache
// so a rebuilt binary is picked up by open browsers.
package panel
