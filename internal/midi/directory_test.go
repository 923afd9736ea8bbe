package midi_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/midi/miditest"
)

func names(devs []*midi.Device) []string {
	out := make([]string, 0, len(devs))
	for _, d := range devs {
		out = append(out, d.Name())
	}
	return out
}

func TestDirectory_SyncAddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	enum := miditest.NewEnumerator("IAC Bus 1", "USB MIDI Device A")
	dir := midi.NewDirectory(enum)

	added, removed, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"IAC Bus 1", "USB MIDI Device A"}, added)
	assert.Empty(t, removed)
	assert.Equal(t, 2, dir.Len())

	first, ok := dir.Lookup("IAC Bus 1")
	require.True(t, ok)

	enum.SetOutputs("IAC Bus 1", "Launchpad X")
	added, removed, err = dir.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Launchpad X"}, added)
	assert.Equal(t, []string{"USB MIDI Device A"}, removed)
	assert.Equal(t, []string{"IAC Bus 1", "Launchpad X"}, names(dir.Devices()))

	// Resident devices keep their identity.
	again, ok := dir.Lookup("IAC Bus 1")
	require.True(t, ok)
	assert.Same(t, first, again)
	assert.True(t, enum.Out("USB MIDI Device A").Closed())
}

func TestDirectory_OnChange(t *testing.T) {
	ctx := context.Background()
	enum := miditest.NewEnumerator("A", "B")
	dir := midi.NewDirectory(enum)

	var changes []string
	dir.SetOnChange(func(attached bool, device string, total int) {
		state := "-"
		if attached {
			state = "+"
		}
		changes = append(changes, fmt.Sprintf("%s%s/%d", state, device, total))
	})

	_, _, err := dir.Sync(ctx)
	require.NoError(t, err)
	enum.SetOutputs("B", "C")
	_, _, err = dir.Sync(ctx)
	require.NoError(t, err)
	_, _, err = dir.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"+A/2", "+B/2", "+C/2", "-A/2"}, changes)
}

func TestDirectory_SyncIdempotent(t *testing.T) {
	ctx := context.Background()
	dir, _, err := miditest.Directory(ctx, "A", "B")
	require.NoError(t, err)

	before := dir.Devices()
	added, removed, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, removed)
	assert.Equal(t, before, dir.Devices())
}

func TestDirectory_SyncEmpty(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "A")
	require.NoError(t, err)

	enum.SetOutputs()
	_, removed, err := dir.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, removed)
	assert.Zero(t, dir.Len())
}

func TestDirectory_SyncFailureLeavesDirectory(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "A", "B")
	require.NoError(t, err)

	enum.FailWith(midi.ErrEnumerationTimeout)
	_, _, err = dir.Sync(ctx)
	require.ErrorIs(t, err, midi.ErrEnumerationTimeout)
	assert.Equal(t, []string{"A", "B"}, names(dir.Devices()))
}

func TestDirectory_DuplicatePortNames(t *testing.T) {
	ctx := context.Background()
	dir, _, err := miditest.Directory(ctx, "A", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.Len())
}

func TestDirectory_Find(t *testing.T) {
	ctx := context.Background()
	dir, _, err := miditest.Directory(ctx, "Launchpad X", "USB MIDI Device A", "Other Device A")
	require.NoError(t, err)

	tests := []struct {
		name   string
		suffix string
		want   string
		found  bool
	}{
		{name: "suffix of longer name", suffix: "Device A", want: "USB MIDI Device A", found: true},
		{name: "exact name", suffix: "Launchpad X", want: "Launchpad X", found: true},
		{name: "no match", suffix: "Device B", found: false},
		{name: "prefix is not a match", suffix: "USB", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, ok := dir.Find(tt.suffix)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, dev.Name())
			}
		})
	}
}

func TestDirectory_LookupIsExact(t *testing.T) {
	ctx := context.Background()
	dir, _, err := miditest.Directory(ctx, "USB MIDI Device A")
	require.NoError(t, err)

	_, ok := dir.Lookup("Device A")
	assert.False(t, ok)
}

func TestDevice_Channels(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "Synth")
	require.NoError(t, err)
	dev, _ := dir.Lookup("Synth")

	require.Len(t, dev.Channels(), midi.ChannelCount)

	ch, err := dev.Channel(2)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Number())
	assert.Same(t, dev, ch.Device())
	assert.Equal(t, `channel 3 on "Synth"`, ch.String())

	require.NoError(t, ch.NoteOn(60, 100))
	require.NoError(t, ch.NoteOff(60))
	require.NoError(t, ch.ControlChange(7, 64))
	require.NoError(t, ch.ProgramChange(9))

	msgs := enum.Out("Synth").Messages()
	require.Len(t, msgs, 4)

	var channel, key, vel, ctl, val, prog uint8
	require.True(t, msgs[0].GetNoteOn(&channel, &key, &vel))
	assert.Equal(t, []uint8{2, 60, 100}, []uint8{channel, key, vel})
	require.True(t, msgs[1].GetNoteOff(&channel, &key, &vel))
	assert.Equal(t, uint8(60), key)
	require.True(t, msgs[2].GetControlChange(&channel, &ctl, &val))
	assert.Equal(t, []uint8{2, 7, 64}, []uint8{channel, ctl, val})
	require.True(t, msgs[3].GetProgramChange(&channel, &prog))
	assert.Equal(t, uint8(9), prog)

	for _, n := range []int{-1, 16} {
		_, err := dev.Channel(n)
		assert.ErrorIs(t, err, midi.ErrChannelOutOfRange)
	}
}

func TestDevice_DetachedChannelsError(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "Synth")
	require.NoError(t, err)
	dev, _ := dir.Lookup("Synth")
	ch, _ := dev.Channel(0)

	enum.SetOutputs()
	_, _, err = dir.Sync(ctx)
	require.NoError(t, err)

	assert.True(t, dev.Detached())
	assert.ErrorIs(t, ch.NoteOn(60, 100), midi.ErrDeviceDetached)
	assert.Empty(t, enum.Out("Synth").Messages())
}

func TestDevice_SendErrorWrapped(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "Synth")
	require.NoError(t, err)
	dev, _ := dir.Lookup("Synth")
	ch, _ := dev.Channel(0)

	boom := errors.New("driver gone")
	enum.Out("Synth").FailWith(boom)
	assert.ErrorIs(t, ch.AllNotesOff(), boom)
}

func TestDirectory_Panic(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "A", "B")
	require.NoError(t, err)

	require.NoError(t, dir.Panic())

	for _, name := range []string{"A", "B"} {
		msgs := enum.Out(name).Messages()
		require.Len(t, msgs, 2*midi.ChannelCount)
		var ch, ctl, val uint8
		require.True(t, msgs[0].GetControlChange(&ch, &ctl, &val))
		assert.Equal(t, uint8(123), ctl)
		require.True(t, msgs[1].GetControlChange(&ch, &ctl, &val))
		assert.Equal(t, uint8(121), ctl)
		require.True(t, msgs[len(msgs)-1].GetControlChange(&ch, &ctl, &val))
		assert.Equal(t, uint8(15), ch)
	}
}

func TestDirectory_PanicJoinsErrors(t *testing.T) {
	ctx := context.Background()
	dir, enum, err := miditest.Directory(ctx, "A", "B")
	require.NoError(t, err)

	boom := errors.New("boom")
	enum.Out("A").FailWith(boom)

	err = dir.Panic()
	require.ErrorIs(t, err, boom)
	assert.Len(t, enum.Out("B").Messages(), 2*midi.ChannelCount)
}

func TestDirectory_RunPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enum := miditest.NewEnumerator("A")
	dir := midi.NewDirectory(enum)

	done := make(chan struct{})
	go func() {
		dir.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return dir.Len() == 1 }, time.Second, 5*time.Millisecond)
	enum.SetOutputs("A", "B")
	require.Eventually(t, func() bool { return dir.Len() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDirectory_RunWithoutInterval(t *testing.T) {
	enum := miditest.NewEnumerator("A")
	dir := midi.NewDirectory(enum)

	dir.Run(context.Background(), 0)
	assert.Equal(t, 1, dir.Len())
}
