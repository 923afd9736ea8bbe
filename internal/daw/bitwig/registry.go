package bitwig

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/output"
)

// DeviceFinder resolves a controller name to a MIDI device by suffix.
// *midi.Directory implements it.
type DeviceFinder interface {
	Find(suffix string) (*midi.Device, bool)
}

// Registry holds controllers, their channels and the tracks the channels
// define.
//
// Mutations are expected from a single goroutine. They compute their effect
// under the lock and perform cell rebinds, clock changes and observer
// notification after releasing it.
type Registry struct {
	devices DeviceFinder
	clock   daw.ClockSource

	mu          sync.RWMutex
	controllers map[string]*Controller
	tracks      map[string]*Track
	clockOwner  string

	observer daw.RoutingObserver
	logger   daw.Logger
}

// NewRegistry creates an empty registry. clock may be nil.
func NewRegistry(devices DeviceFinder, clock daw.ClockSource) *Registry {
	return &Registry{
		devices:     devices,
		clock:       clock,
		controllers: make(map[string]*Controller),
		tracks:      make(map[string]*Track),
		logger:      daw.NoopLogger{},
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

// rebind is a deferred cell change. sink nil means unbind.
type rebind struct {
	track *Track
	sink  *midi.Channel
}

// plan collects side effects to run after the lock is released.
type plan struct {
	rebinds    []rebind
	clearClock bool
}

func (p *plan) bind(t *Track, sink *midi.Channel) {
	p.rebinds = append(p.rebinds, rebind{track: t, sink: sink})
}

// ApplyControllerList reconciles the controller set with names: unknown
// names are created, resident controllers not in names are removed
// together with their channel assignments, and the devices of the others
// are looked up again.
func (r *Registry) ApplyControllerList(names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var p plan
	r.mu.Lock()
	for name, c := range r.controllers {
		if !want[name] {
			r.removeLocked(c, &p)
		}
	}
	for _, name := range names {
		if c, ok := r.controllers[name]; ok {
			r.refreshLocked(c, &p)
			continue
		}
		c := newController(name)
		r.resolveDeviceLocked(c)
		r.controllers[name] = c
		r.logger.Info("bitwig controller added", "controller", name, "device", deviceName(c.device))
	}
	r.mu.Unlock()

	r.execute(p)
}

// DefineController sets the port name and clock flag of a resident controller.
func (r *Registry) DefineController(ctx context.Context, name, portName string, isClock bool) error {
	r.mu.Lock()
	c, ok := r.controllers[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: controller %q", daw.ErrNotFound, name)
	}
	c.portName = portName
	r.mu.Unlock()

	r.applyClock(ctx, c, isClock)
	return nil
}

// RenameController moves a controller from oldName to newName, keeping its
// channels and their track assignments. The device is re-resolved under the
// new name and assigned tracks follow it.
func (r *Registry) RenameController(ctx context.Context, oldName, newName, portName string, isClock bool) error {
	var p plan

	r.mu.Lock()
	c, ok := r.controllers[oldName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: controller %q", daw.ErrNotFound, oldName)
	}

	if newName != oldName {
		if other, exists := r.controllers[newName]; exists {
			r.removeLocked(other, &p)
		}
		delete(r.controllers, oldName)
		c.name = newName
		r.controllers[newName] = c
		if r.clockOwner == oldName {
			r.clockOwner = newName
		}

		prev := c.device
		r.resolveDeviceLocked(c)
		if c.device != prev {
			r.repointLocked(c, &p)
		}
		r.logger.Info("bitwig controller renamed", "from", oldName, "to", newName, "device", deviceName(c.device))
	}
	c.portName = portName
	r.mu.Unlock()

	r.execute(p)
	r.applyClock(ctx, c, isClock)
	return nil
}

// NameChannels assigns names to the first len(names) channels of a
// controller. An empty name leaves the channel unnamed. Names beyond the
// 16th are ignored.
func (r *Registry) NameChannels(controller string, names []string) error {
	if len(names) > midi.ChannelCount {
		r.logger.Warn("bitwig channel names truncated", "controller", controller, "count", len(names))
		names = names[:midi.ChannelCount]
	}

	var p plan
	r.mu.Lock()
	c, ok := r.controllers[controller]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: controller %q", daw.ErrNotFound, controller)
	}
	for i, name := range names {
		r.nameChannelLocked(c.channels[i], name, &p)
	}
	r.mu.Unlock()

	r.execute(p)
	return nil
}

func (r *Registry) nameChannelLocked(ch *Channel, name string, p *plan) {
	if old := ch.name; old != "" && old != name {
		if t, ok := r.tracks[old]; ok && t.boundChannel() == ch {
			t.setChannel(nil)
			p.bind(t, nil)
		}
	}
	ch.name = name
	if name == "" {
		return
	}

	t, ok := r.tracks[name]
	if !ok {
		t = newTrack(name)
		r.tracks[name] = t
		r.logger.Debug("bitwig track created", "track", name)
	}
	t.setChannel(ch)
	r.logger.Debug("bitwig channel named", "channel", ch.String())

	sink := ch.sink()
	if sink == nil {
		r.logger.Info("bitwig track routing unresolved", "track", name,
			"reason", fmt.Errorf("%w: controller %q has no midi device", daw.ErrUnresolvedRouting, ch.controller.name))
	}
	p.bind(t, sink)
}

// removeLocked drops a controller, unbinding the tracks its channels hold.
func (r *Registry) removeLocked(c *Controller, p *plan) {
	for _, ch := range c.channels {
		if ch.name == "" {
			continue
		}
		if t, ok := r.tracks[ch.name]; ok && t.boundChannel() == ch {
			t.setChannel(nil)
			p.bind(t, nil)
		}
	}
	if r.clockOwner == c.name {
		r.clockOwner = ""
		p.clearClock = true
	}
	delete(r.controllers, c.name)
	r.logger.Info("bitwig controller removed", "controller", c.name)
}

// repointLocked rebinds every track held by c's channels to c's current device.
func (r *Registry) repointLocked(c *Controller, p *plan) {
	for _, ch := range c.channels {
		if ch.name == "" {
			continue
		}
		if t, ok := r.tracks[ch.name]; ok && t.boundChannel() == ch {
			p.bind(t, ch.sink())
		}
	}
}

// Reroute re-resolves every controller's device against the directory,
// e.g. after a port was unplugged and plugged back in. Tracks follow their
// controller's current device. The clock is re-selected when its owner's
// device changed, or taken by a controller that claimed it while its
// device was missing.
func (r *Registry) Reroute(ctx context.Context) {
	var p plan
	var reclock *Controller

	r.mu.Lock()
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := r.controllers[name]
		changed := r.refreshLocked(c, &p)
		switch {
		case r.clockOwner == name && changed:
			reclock = c
		case r.clockOwner == "" && reclock == nil && c.isClock && c.device != nil:
			reclock = c
		}
	}
	r.mu.Unlock()

	r.execute(p)
	if reclock != nil {
		r.applyClock(ctx, reclock, true)
	}
}

// refreshLocked looks c's device up again and re-points c's tracks at it.
// It reports whether the device changed.
func (r *Registry) refreshLocked(c *Controller, p *plan) bool {
	dev, _ := r.devices.Find(c.name)
	changed := dev != c.device
	if changed {
		c.device = dev
		r.logger.Info("bitwig controller device changed", "controller", c.name, "device", deviceName(dev))
	}
	r.repointLocked(c, p)
	return changed
}

func (r *Registry) resolveDeviceLocked(c *Controller) {
	dev, ok := r.devices.Find(c.name)
	if !ok {
		c.device = nil
		r.logger.Warn("no midi device for bitwig controller", "controller", c.name)
		return
	}
	c.device = dev
}

// applyClock selects or clears the clock for c. Taking the clock clears the
// previous owner's flag. It never promotes another controller when the
// owner gives the clock up.
func (r *Registry) applyClock(ctx context.Context, c *Controller, isClock bool) {
	r.mu.Lock()
	c.isClock = isClock
	name, dev, owner := c.name, c.device, r.clockOwner
	r.mu.Unlock()

	if r.clock == nil {
		return
	}

	switch {
	case isClock && dev == nil:
		r.logger.Warn("clock controller has no midi device", "controller", name)
		if owner == name {
			r.releaseClock(name)
		}
	case isClock:
		if err := r.clock.Select(ctx, dev.Name()); err != nil {
			r.logger.Warn("clock input not available", "controller", name, "port", dev.Name(), "error", err)
			return
		}
		r.mu.Lock()
		if prev, ok := r.controllers[owner]; ok && prev != c {
			prev.isClock = false
		}
		r.clockOwner = name
		r.mu.Unlock()
	case owner == name:
		r.releaseClock(name)
	}
}

func (r *Registry) releaseClock(name string) {
	r.clock.Clear()
	r.mu.Lock()
	if r.clockOwner == name {
		r.clockOwner = ""
	}
	r.mu.Unlock()
}

func (r *Registry) execute(p plan) {
	if p.clearClock && r.clock != nil {
		r.clock.Clear()
	}
	for _, rb := range p.rebinds {
		var sink output.Sink
		if rb.sink != nil {
			sink = rb.sink
		}
		if rb.sink != nil && rb.track.out.Is(rb.sink) {
			continue
		}
		if rb.sink == nil && !rb.track.out.Bound() {
			continue
		}
		if err := rb.track.out.Rebind(sink, true); err != nil {
			r.logger.Debug("flushing previous output failed", "track", rb.track.name, "error", err)
		}
		if rb.sink != nil {
			r.logger.Info("bitwig track routed", "track", rb.track.name, "output", rb.sink.String())
		}
		r.notify(rb.track)
	}
}

func (r *Registry) notify(t *Track) {
	if r.observer == nil {
		return
	}
	r.mu.RLock()
	info := t.info()
	r.mu.RUnlock()
	r.observer.RoutingChanged(daw.RoutingEvent{
		Flavor:  daw.FlavorBitwig,
		Key:     t.name,
		Name:    t.name,
		Device:  info.Device,
		Channel: info.Channel,
		Bound:   info.Bound,
		Time:    time.Now(),
	})
}

// Lookup returns the track named name.
func (r *Registry) Lookup(name string) (*Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[name]
	return t, ok
}

// Controller returns a view of the named controller.
func (r *Registry) Controller(name string) (ControllerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[name]
	if !ok {
		return ControllerInfo{}, false
	}
	return controllerInfo(c), true
}

// Controllers returns views of all controllers ordered by name.
func (r *Registry) Controllers() []ControllerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ControllerInfo, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, controllerInfo(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClockOwner returns the controller currently feeding the clock, or "".
func (r *Registry) ClockOwner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clockOwner
}

func controllerInfo(c *Controller) ControllerInfo {
	info := ControllerInfo{
		Name:     c.name,
		PortName: c.portName,
		IsClock:  c.isClock,
		Device:   deviceName(c.device),
		Channels: make([]string, len(c.channels)),
	}
	for i, ch := range c.channels {
		info.Channels[i] = ch.name
	}
	return info
}

func deviceName(d *midi.Device) string {
	if d == nil {
		return ""
	}
	return d.Name()
}

// All returns every track ordered by name.
func (r *Registry) All() []*Track {
	r.mu.RLock()
	out := make([]*Track, 0, len(r.tracks))
	for _, t := range r.tracks {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
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
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]daw.TrackInfo, len(tracks))
	for i, t := range tracks {
		out[i] = t.info()
	}
	return out
}

// Outputs implements daw.TrackSet. Names are unique, so at most one cell
// is returned.
func (r *Registry) Outputs(name string) []*output.Cell {
	if t, ok := r.Lookup(name); ok {
		return []*output.Cell{t.out}
	}
	return nil
}
