package live

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/output"
)

// Registry holds the Live tracks keyed by id.
//
// ApplyFullSync and ApplyPartial are called from a single goroutine (the
// OSC handler). Readers may call the lookup methods concurrently.
type Registry struct {
	devices DeviceFinder

	mu     sync.RWMutex
	tracks map[int]*Track

	observer daw.RoutingObserver
	logger   daw.Logger
}

// NewRegistry creates an empty registry resolving routings against devices.
func NewRegistry(devices DeviceFinder) *Registry {
	return &Registry{
		devices: devices,
		tracks:  make(map[int]*Track),
		logger:  daw.NoopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger daw.Logger) {
	r.logger = logger
}

// SetObserver sets the routing change observer.
func (r *Registry) SetObserver(o daw.RoutingObserver) {
	r.observer = o
}

// ApplyFullSync reconciles the registry with a complete snapshot: tracks
// absent from rows are removed (their cells unbound), new ids are created
// and every row is applied.
func (r *Registry) ApplyFullSync(rows []TrackUpdate) {
	present := make(map[int]bool, len(rows))
	for _, row := range rows {
		present[row.ID] = true
	}

	r.mu.Lock()
	var removed []*Track
	for id, t := range r.tracks {
		if !present[id] {
			removed = append(removed, t)
			delete(r.tracks, id)
		}
	}
	r.mu.Unlock()

	for _, t := range removed {
		r.logger.Info("live track removed", "id", t.id, "name", t.Name())
		r.unbind(t)
	}

	for _, row := range rows {
		r.ApplyPartial(row)
	}

	r.logger.Debug("live tracks synced", "count", len(rows), "removed", len(removed))
}

// ApplyPartial creates the track if needed and applies the supplied fields.
// Routing is re-resolved whenever the update touches the MIDI input flag or
// either input routing field.
func (r *Registry) ApplyPartial(u TrackUpdate) {
	r.mu.Lock()
	t, ok := r.tracks[u.ID]
	if !ok {
		t = newTrack(u.ID)
		r.tracks[u.ID] = t
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("live track created", "id", u.ID)
	}

	t.apply(u)

	if u.touchesInput() {
		r.reroute(t)
	}
}

// Reroute re-resolves every track, e.g. after the device directory changed.
func (r *Registry) Reroute() {
	for _, t := range r.All() {
		r.reroute(t)
	}
}

func (r *Registry) reroute(t *Track) {
	hasMIDIInput, routing, sub := t.routingInputs()

	ch, err := resolve(r.devices, hasMIDIInput, routing, sub)
	if err != nil {
		if hasMIDIInput {
			r.logger.Info("live track routing unresolved", "id", t.id, "name", t.Name(), "reason", err)
		}
		r.unbind(t)
		return
	}

	if t.out.Is(ch) {
		return
	}
	if err := t.out.Rebind(ch, true); err != nil {
		r.logger.Debug("flushing previous output failed", "id", t.id, "error", err)
	}
	t.setResolved(ch.Device().Name(), ch.Number()+1)
	r.logger.Info("live track routed", "id", t.id, "name", t.Name(), "output", ch.String())
	r.notify(t, true)
}

func (r *Registry) unbind(t *Track) {
	if !t.out.Bound() {
		return
	}
	if err := t.out.Rebind(nil, true); err != nil {
		r.logger.Debug("flushing previous output failed", "id", t.id, "error", err)
	}
	t.setResolved("", 0)
	r.notify(t, false)
}

func (r *Registry) notify(t *Track, bound bool) {
	if r.observer == nil {
		return
	}
	info := t.info()
	r.observer.RoutingChanged(daw.RoutingEvent{
		Flavor:  daw.FlavorLive,
		Key:     strconv.Itoa(t.id),
		Name:    info.Name,
		Device:  info.Device,
		Channel: info.Channel,
		Bound:   bound,
		Time:    time.Now(),
	})
}

// Get returns the track with id.
func (r *Registry) Get(id int) (*Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	return t, ok
}

// FindByName returns every track currently named name, ordered by id.
func (r *Registry) FindByName(name string) []*Track {
	var out []*Track
	for _, t := range r.All() {
		if t.Name() == name {
			out = append(out, t)
		}
	}
	return out
}

// All returns every track ordered by id.
func (r *Registry) All() []*Track {
	r.mu.RLock()
	out := make([]*Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// IDs returns the resident ids in ascending order.
func (r *Registry) IDs() []int {
	tracks := r.All()
	ids := make([]int, len(tracks))
	for i, t := range tracks {
		ids[i] = t.id
	}
	return ids
}

// Len implements daw.TrackSet.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}

// Snapshot implements daw.TrackSet.
func (r *Registry) Snapshot() []daw.TrackInfo {
	tracks := r.All()
	out := make([]daw.TrackInfo, len(tracks))
	for i, t := range tracks {
		out[i] = t.info()
	}
	return out
}

// Outputs implements daw.TrackSet.
func (r *Registry) Outputs(name string) []*output.Cell {
	var out []*output.Cell
	for _, t := range r.FindByName(name) {
		out = append(out, t.out)
	}
	return out
}
