package daw

import (
	"time"

	"github.com/musalce/musalce-server/internal/output"
)

// TrackInfo is a point-in-time view of one track for listings.
type TrackInfo struct {
	// Key is the registry identity: the numeric id for Live, the name for Bitwig.
	Key        string `json:"key"`
	Name       string `json:"name"`
	Controller string `json:"controller,omitempty"`
	Device     string `json:"device,omitempty"`
	Channel    int    `json:"channel,omitempty"` // 1-based; 0 when unbound
	Bound      bool   `json:"bound"`
	Target     string `json:"target,omitempty"`
}

// TrackSet is the read-only surface both registries expose.
type TrackSet interface {
	Len() int
	Snapshot() []TrackInfo
	// Outputs returns the cells of every track named name. Bitwig names are
	// unique, so it returns at most one cell there.
	Outputs(name string) []*output.Cell
}

// RoutingEvent describes a track whose output was rebound or unbound.
type RoutingEvent struct {
	Flavor  Flavor    `json:"flavor"`
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Device  string    `json:"device,omitempty"`
	Channel int       `json:"channel,omitempty"` // 1-based; 0 when unbound
	Bound   bool      `json:"bound"`
	Time    time.Time `json:"time"`
}

// RoutingObserver is notified after a routing change. Implementations must
// not block; the call is made on the OSC handler goroutine.
type RoutingObserver interface {
	RoutingChanged(ev RoutingEvent)
}

// Observers fans an event out to each non-nil observer.
type Observers []RoutingObserver

// RoutingChanged implements RoutingObserver.
func (o Observers) RoutingChanged(ev RoutingEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.RoutingChanged(ev)
		}
	}
}
