package live

import (
	"context"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/osc"
)

// OSC addresses spoken by the Live extension.
const (
	Prefix = "/musalce4live"

	AddressTracks        = Prefix + "/tracks"
	AddressTrackName     = Prefix + "/track/name"
	AddressTrackMIDI     = Prefix + "/track/midi"
	AddressTrackAudio    = Prefix + "/track/audio"
	AddressTrackRoutings = Prefix + "/track/routings"
)

// Group sizes of the track messages (track id included).
const (
	tracksGroup   = 10
	nameGroup     = 2
	flagsGroup    = 3
	routingsGroup = 5
)

// Driver connects the Live extension to a Registry.
type Driver struct {
	*daw.Base
	registry *Registry
}

// New builds the Live driver. It satisfies daw.Constructor.
func New(deps daw.Deps) (daw.Driver, error) {
	return NewDriver(deps)
}

// NewDriver is New returning the concrete type.
func NewDriver(deps daw.Deps) (*Driver, error) {
	base, err := daw.NewBase(daw.FlavorLive, deps, Prefix, AddressTracks)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(deps.Devices)
	reg.SetLogger(base.Logger())
	if deps.Observer != nil {
		reg.SetObserver(deps.Observer)
	}

	return &Driver{Base: base, registry: reg}, nil
}

// Registry returns the track registry.
func (d *Driver) Registry() *Registry {
	return d.registry
}

// Tracks implements daw.Driver.
func (d *Driver) Tracks() daw.TrackSet {
	return d.registry
}

// Routes implements daw.Driver.
func (d *Driver) Routes(r daw.Router) {
	r.Handle(daw.AddressHello, d.handleHello)
	r.Handle(AddressTracks, d.handleTracks)
	r.Handle(AddressTrackName, d.handleName)
	r.Handle(AddressTrackMIDI, d.handleMIDI)
	r.Handle(AddressTrackAudio, d.handleAudio)
	r.Handle(AddressTrackRoutings, d.handleRoutings)
}

// Start selects the configured clock input, then runs the shared handshake.
func (d *Driver) Start(ctx context.Context) error {
	deps := d.Deps()
	if deps.Clock != nil && deps.ClockPort != "" {
		if err := deps.Clock.Select(ctx, deps.ClockPort); err != nil {
			d.Logger().Warn("clock input not available", "port", deps.ClockPort, "error", err)
		}
	}
	return d.Base.Start(ctx)
}

// Stop releases the clock input.
func (d *Driver) Stop() {
	if c := d.Deps().Clock; c != nil {
		c.Clear()
	}
	d.Base.Stop()
}

// Reroute implements daw.Driver.
func (d *Driver) Reroute(context.Context) {
	d.registry.Reroute()
}

// handleHello resyncs devices, re-resolves every track against the fresh
// directory and asks Live for a new snapshot.
func (d *Driver) handleHello(msg osc.Message) {
	d.HandleHello(msg)
	d.registry.Reroute()
}

func (d *Driver) handleTracks(msg osc.Message) {
	groups, ok := d.Groups(msg, tracksGroup)
	if !ok {
		return
	}
	rows := make([]TrackUpdate, 0, len(groups))
	for _, g := range groups {
		u, err := parseRow(g)
		if err != nil {
			// A snapshot with a broken row would delete that track; drop the
			// whole snapshot instead.
			d.Reject(msg.Address, "type", err)
			return
		}
		rows = append(rows, u)
	}
	d.registry.ApplyFullSync(rows)
}

func (d *Driver) handleName(msg osc.Message) {
	d.applyGroups(msg, nameGroup, func(g []any) (TrackUpdate, error) {
		u, err := parseID(g[0])
		if err != nil {
			return u, err
		}
		u.Name, err = osc.OptString(g[1])
		return u, err
	})
}

func (d *Driver) handleMIDI(msg osc.Message) {
	d.applyGroups(msg, flagsGroup, func(g []any) (TrackUpdate, error) {
		u, err := parseID(g[0])
		if err != nil {
			return u, err
		}
		if u.HasMIDIInput, err = osc.OptFlag(g[1]); err != nil {
			return u, err
		}
		u.HasMIDIOutput, err = osc.OptFlag(g[2])
		return u, err
	})
}

func (d *Driver) handleAudio(msg osc.Message) {
	d.applyGroups(msg, flagsGroup, func(g []any) (TrackUpdate, error) {
		u, err := parseID(g[0])
		if err != nil {
			return u, err
		}
		if u.HasAudioInput, err = osc.OptFlag(g[1]); err != nil {
			return u, err
		}
		u.HasAudioOutput, err = osc.OptFlag(g[2])
		return u, err
	})
}

func (d *Driver) handleRoutings(msg osc.Message) {
	d.applyGroups(msg, routingsGroup, func(g []any) (TrackUpdate, error) {
		u, err := parseID(g[0])
		if err != nil {
			return u, err
		}
		return u, parseRoutings(&u, g[1:])
	})
}

// applyGroups applies each well-formed group as a partial update. A group
// with a bad argument is skipped; the others still apply.
func (d *Driver) applyGroups(msg osc.Message, size int, parse func([]any) (TrackUpdate, error)) {
	groups, ok := d.Groups(msg, size)
	if !ok {
		return
	}
	for _, g := range groups {
		u, err := parse(g)
		if err != nil {
			d.Reject(msg.Address, "type", err)
			continue
		}
		d.registry.ApplyPartial(u)
	}
}

func parseID(v any) (TrackUpdate, error) {
	id, err := osc.Int(v)
	return TrackUpdate{ID: id}, err
}

// parseRow decodes a full-sync row: id, name, four flags, four routings.
func parseRow(g []any) (TrackUpdate, error) {
	u, err := parseID(g[0])
	if err != nil {
		return u, err
	}
	if u.Name, err = osc.OptString(g[1]); err != nil {
		return u, err
	}
	flags := []**bool{&u.HasMIDIInput, &u.HasMIDIOutput, &u.HasAudioInput, &u.HasAudioOutput}
	for i, dst := range flags {
		if *dst, err = osc.OptFlag(g[2+i]); err != nil {
			return u, err
		}
	}
	return u, parseRoutings(&u, g[6:10])
}

// parseRoutings decodes input, input-sub, output, output-sub.
func parseRoutings(u *TrackUpdate, g []any) error {
	fields := []**string{&u.InputRouting, &u.InputSubRouting, &u.OutputRouting, &u.OutputSubRouting}
	for i, dst := range fields {
		var err error
		if *dst, err = osc.OptString(g[i]); err != nil {
			return err
		}
	}
	return nil
}
