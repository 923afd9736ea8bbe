package live

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/musalce/musalce-server/internal/daw/dawtest"
	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/midi/miditest"
)

func ptr[T any](v T) *T { return &v }

func newTestRegistry(t testing.TB, devices ...string) (*Registry, *midi.Directory, *dawtest.Observer) {
	t.Helper()
	dir, _, err := miditest.Directory(context.Background(), devices...)
	require.NoError(t, err)
	reg := NewRegistry(dir)
	obs := &dawtest.Observer{}
	reg.SetObserver(obs)
	return reg, dir, obs
}

func channel(t testing.TB, dir *midi.Directory, device string, n int) *midi.Channel {
	t.Helper()
	dev, ok := dir.Lookup(device)
	require.True(t, ok, "device %q", device)
	ch, err := dev.Channel(n)
	require.NoError(t, err)
	return ch
}

func fullRow(id int, name, routing, sub string) TrackUpdate {
	return TrackUpdate{
		ID:               id,
		Name:             ptr(name),
		HasMIDIInput:     ptr(true),
		HasMIDIOutput:    ptr(false),
		HasAudioInput:    ptr(false),
		HasAudioOutput:   ptr(true),
		InputRouting:     ptr(routing),
		InputSubRouting:  ptr(sub),
		OutputRouting:    ptr("Master"),
		OutputSubRouting: ptr(""),
	}
}

func TestNormalizeDeviceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Driver IAC (Bus 1)", want: "Bus 1"},
		{in: "Driver IAC (Foo (2))", want: "Foo (2)"},
		{in: "USB MIDI Device A", want: "USB MIDI Device A"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDeviceName(tt.in), tt.in)
	}
}

func TestParseSubRouting(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{in: "Ch. 3", want: 3, wantOK: true},
		{in: "Ch. 16", want: 16, wantOK: true},
		{in: "All Channels", wantOK: false},
		{in: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseSubRouting(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRegistry_FullSyncCreatesAndDeletes(t *testing.T) {
	reg, _, _ := newTestRegistry(t, "Bus 1")

	reg.ApplyFullSync([]TrackUpdate{
		fullRow(1, "Bass", "Driver IAC (Bus 1)", "Ch. 1"),
		fullRow(2, "Lead", "Driver IAC (Bus 1)", "Ch. 2"),
		fullRow(3, "Pad", "Driver IAC (Bus 1)", "Ch. 3"),
	})
	assert.Equal(t, []int{1, 2, 3}, reg.IDs())

	held, _ := reg.Get(2)
	heldCell := held.Out()

	reg.ApplyFullSync([]TrackUpdate{
		fullRow(1, "Bass", "Driver IAC (Bus 1)", "Ch. 1"),
		fullRow(3, "Pad", "Driver IAC (Bus 1)", "Ch. 3"),
		fullRow(4, "Keys", "Driver IAC (Bus 1)", "Ch. 4"),
	})
	assert.Equal(t, []int{1, 3, 4}, reg.IDs())

	// A removed track's cell stays usable and silent.
	assert.False(t, heldCell.Bound())
	assert.NoError(t, heldCell.NoteOn(60, 100))
}

func TestRegistry_ResolvesRouting(t *testing.T) {
	reg, dir, obs := newTestRegistry(t, "IAC Driver Foo")

	reg.ApplyPartial(TrackUpdate{
		ID:              7,
		HasMIDIInput:    ptr(true),
		InputRouting:    ptr("Driver IAC (Foo)"),
		InputSubRouting: ptr("Ch. 3"),
	})

	tr, ok := reg.Get(7)
	require.True(t, ok)
	assert.True(t, tr.Out().Is(channel(t, dir, "IAC Driver Foo", 2)))
	assert.Equal(t, "Foo", tr.State().InputRouting)

	events := obs.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "IAC Driver Foo", events[0].Device)
	assert.Equal(t, 3, events[0].Channel)
	assert.True(t, events[0].Bound)
}

func TestRegistry_UnresolvedRoutingLeavesCellUnbound(t *testing.T) {
	tests := []struct {
		name   string
		update TrackUpdate
	}{
		{
			name:   "missing device",
			update: TrackUpdate{ID: 1, HasMIDIInput: ptr(true), InputRouting: ptr("Nowhere"), InputSubRouting: ptr("Ch. 1")},
		},
		{
			name:   "no channel in sub-routing",
			update: TrackUpdate{ID: 1, HasMIDIInput: ptr(true), InputRouting: ptr("Bus 1"), InputSubRouting: ptr("All Channels")},
		},
		{
			name:   "channel out of range",
			update: TrackUpdate{ID: 1, HasMIDIInput: ptr(true), InputRouting: ptr("Bus 1"), InputSubRouting: ptr("Ch. 17")},
		},
		{
			name:   "no midi input",
			update: TrackUpdate{ID: 1, HasMIDIInput: ptr(false), InputRouting: ptr("Bus 1"), InputSubRouting: ptr("Ch. 1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, obs := newTestRegistry(t, "Bus 1")
			reg.ApplyPartial(tt.update)

			tr, ok := reg.Get(1)
			require.True(t, ok)
			assert.False(t, tr.Out().Bound())
			assert.Empty(t, obs.Events())
		})
	}
}

func TestRegistry_LosingRoutingUnbinds(t *testing.T) {
	reg, _, obs := newTestRegistry(t, "Bus 1")
	reg.ApplyPartial(fullRow(1, "Bass", "Bus 1", "Ch. 1"))
	tr, _ := reg.Get(1)
	require.True(t, tr.Out().Bound())

	reg.ApplyPartial(TrackUpdate{ID: 1, HasMIDIInput: ptr(false)})

	assert.False(t, tr.Out().Bound())
	events := obs.Events()
	require.Len(t, events, 2)
	assert.False(t, events[1].Bound)
	assert.Equal(t, 0, events[1].Channel)
}

func TestRegistry_RoutingFieldsArriveSeparately(t *testing.T) {
	reg, dir, _ := newTestRegistry(t, "Bus 1")

	reg.ApplyPartial(TrackUpdate{ID: 1, HasMIDIInput: ptr(true)})
	reg.ApplyPartial(TrackUpdate{ID: 1, InputSubRouting: ptr("Ch. 5")})
	tr, _ := reg.Get(1)
	assert.False(t, tr.Out().Bound())

	reg.ApplyPartial(TrackUpdate{ID: 1, InputRouting: ptr("Driver IAC (Bus 1)")})
	assert.True(t, tr.Out().Is(channel(t, dir, "Bus 1", 4)))
}

func TestRegistry_NameAndRoutingOrderIndependent(t *testing.T) {
	name := TrackUpdate{ID: 1, Name: ptr("Bass")}
	route := TrackUpdate{ID: 1, HasMIDIInput: ptr(true), InputRouting: ptr("Bus 1"), InputSubRouting: ptr("Ch. 2")}

	a, dirA, _ := newTestRegistry(t, "Bus 1")
	a.ApplyPartial(name)
	a.ApplyPartial(route)

	b, dirB, _ := newTestRegistry(t, "Bus 1")
	b.ApplyPartial(route)
	b.ApplyPartial(name)

	ta, _ := a.Get(1)
	tb, _ := b.Get(1)
	assert.Equal(t, ta.State(), tb.State())
	assert.True(t, ta.Out().Is(channel(t, dirA, "Bus 1", 1)))
	assert.True(t, tb.Out().Is(channel(t, dirB, "Bus 1", 1)))
}

func TestRegistry_PartialDoesNotDelete(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	reg.ApplyFullSync([]TrackUpdate{{ID: 1}, {ID: 2}})
	reg.ApplyPartial(TrackUpdate{ID: 3, Name: ptr("New")})
	assert.Equal(t, []int{1, 2, 3}, reg.IDs())
}

func TestRegistry_UnsuppliedFieldsKept(t *testing.T) {
	reg, _, _ := newTestRegistry(t, "Bus 1")
	reg.ApplyPartial(fullRow(1, "Bass", "Bus 1", "Ch. 1"))
	reg.ApplyPartial(TrackUpdate{ID: 1, Name: ptr("Sub Bass")})

	tr, _ := reg.Get(1)
	st := tr.State()
	assert.Equal(t, "Sub Bass", st.Name)
	assert.True(t, st.HasMIDIInput)
	assert.True(t, st.HasAudioOutput)
	assert.Equal(t, "Bus 1", st.InputRouting)
	assert.Equal(t, "Master", st.OutputRouting)
	assert.True(t, tr.Out().Bound())
}

func TestRegistry_FindByNameReturnsAllMatches(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	reg.ApplyFullSync([]TrackUpdate{
		{ID: 4, Name: ptr("Drums")},
		{ID: 2, Name: ptr("Drums")},
		{ID: 3, Name: ptr("Bass")},
	})

	found := reg.FindByName("Drums")
	require.Len(t, found, 2)
	assert.Equal(t, 2, found[0].ID())
	assert.Equal(t, 4, found[1].ID())
	assert.Len(t, reg.Outputs("Drums"), 2)
	assert.Empty(t, reg.FindByName("Keys"))
}

func TestRegistry_RerouteAfterDeviceReturns(t *testing.T) {
	ctx := context.Background()
	enum := miditest.NewEnumerator()
	dir := midi.NewDirectory(enum)
	_, _, err := dir.Sync(ctx)
	require.NoError(t, err)

	reg := NewRegistry(dir)
	reg.ApplyPartial(fullRow(1, "Bass", "Bus 1", "Ch. 1"))
	tr, _ := reg.Get(1)
	require.False(t, tr.Out().Bound())

	enum.SetOutputs("Bus 1")
	_, _, err = dir.Sync(ctx)
	require.NoError(t, err)
	reg.Reroute()

	assert.True(t, tr.Out().Is(channel(t, dir, "Bus 1", 0)))
}

func TestRegistry_SnapshotInfo(t *testing.T) {
	reg, _, _ := newTestRegistry(t, "Bus 1")
	reg.ApplyFullSync([]TrackUpdate{
		fullRow(2, "Lead", "Bus 1", "Ch. 2"),
		{ID: 1, Name: ptr("Audio")},
	})

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "1", snap[0].Key)
	assert.False(t, snap[0].Bound)
	assert.Equal(t, "2", snap[1].Key)
	assert.Equal(t, "Bus 1", snap[1].Device)
	assert.Equal(t, 2, snap[1].Channel)
	assert.Equal(t, `channel 2 on "Bus 1"`, snap[1].Target)
	assert.Equal(t, 2, reg.Len())
}

// rowGen draws a full-sync row over a small id space and a mix of
// resolvable and unresolvable routings.
func rowGen(id int) *rapid.Generator[TrackUpdate] {
	return rapid.Custom(func(t *rapid.T) TrackUpdate {
		routing := rapid.SampledFrom([]string{"Driver IAC (Bus 1)", "Bus 2", "Missing", ""}).Draw(t, "routing")
		sub := fmt.Sprintf("Ch. %d", rapid.IntRange(0, 17).Draw(t, "channel"))
		row := fullRow(id, rapid.SampledFrom([]string{"Bass", "Lead", "Pad"}).Draw(t, "name"), routing, sub)
		row.HasMIDIInput = ptr(rapid.Bool().Draw(t, "midi"))
		return row
	})
}

func snapshotGen() *rapid.Generator[[]TrackUpdate] {
	return rapid.Custom(func(t *rapid.T) []TrackUpdate {
		ids := rapid.SliceOfNDistinct(rapid.IntRange(0, 20), 0, 8, rapid.ID[int]).Draw(t, "ids")
		rows := make([]TrackUpdate, len(ids))
		for i, id := range ids {
			rows[i] = rowGen(id).Draw(t, fmt.Sprintf("row%d", i))
		}
		return rows
	})
}

func TestRegistry_PropertyResidentSetMatchesSnapshot(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg, _, _ := newTestRegistry(t, "IAC Bus 1", "Bus 2")

		steps := rapid.IntRange(1, 5).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			rows := snapshotGen().Draw(rt, fmt.Sprintf("snapshot%d", i))
			reg.ApplyFullSync(rows)

			want := make(map[int]bool, len(rows))
			for _, r := range rows {
				want[r.ID] = true
			}
			got := reg.IDs()
			if len(got) != len(want) {
				rt.Fatalf("resident ids %v, want %v", got, want)
			}
			for _, id := range got {
				if !want[id] {
					rt.Fatalf("id %d resident but not in snapshot", id)
				}
			}
		}
	})
}

func TestRegistry_PropertyFullSyncIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg, _, obs := newTestRegistry(t, "IAC Bus 1", "Bus 2")
		rows := snapshotGen().Draw(rt, "rows")

		reg.ApplyFullSync(rows)
		before := reg.Snapshot()
		obs.Reset()

		reg.ApplyFullSync(rows)

		if after := reg.Snapshot(); fmt.Sprint(after) != fmt.Sprint(before) {
			rt.Fatalf("second sync changed state:\n%v\n%v", before, after)
		}
		if n := len(obs.Events()); n != 0 {
			rt.Fatalf("second sync emitted %d routing events", n)
		}
	})
}

func TestRegistry_PropertyCellMatchesLatestRouting(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg, dir, _ := newTestRegistry(t, "IAC Bus 1", "Bus 2")

		n := rapid.IntRange(1, 20).Draw(rt, "updates")
		for i := 0; i < n; i++ {
			u := TrackUpdate{ID: 1}
			if rapid.Bool().Draw(rt, "setMIDI") {
				u.HasMIDIInput = ptr(rapid.Bool().Draw(rt, "midi"))
			}
			if rapid.Bool().Draw(rt, "setRouting") {
				u.InputRouting = ptr(rapid.SampledFrom([]string{"Driver IAC (Bus 1)", "Bus 2", "Missing"}).Draw(rt, "routing"))
			}
			if rapid.Bool().Draw(rt, "setSub") {
				u.InputSubRouting = ptr(fmt.Sprintf("Ch. %d", rapid.IntRange(0, 17).Draw(rt, "ch")))
			}
			reg.ApplyPartial(u)
		}

		tr, _ := reg.Get(1)
		st := tr.State()
		ch, err := resolve(dir, st.HasMIDIInput, st.InputRouting, st.InputSubRouting)
		if err != nil {
			if tr.Out().Bound() {
				rt.Fatalf("cell bound to %s, want unbound (%v)", tr.Out().Target(), err)
			}
			return
		}
		if !tr.Out().Is(ch) {
			rt.Fatalf("cell bound to %q, want %s", tr.Out().Target(), ch)
		}
	})
}
