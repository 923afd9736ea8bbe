package live

import (
	"strconv"
	"sync"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/output"
)

// TrackUpdate carries the fields of one track row. nil means "not supplied";
// only supplied fields are applied.
type TrackUpdate struct {
	ID               int
	Name             *string
	HasMIDIInput     *bool
	HasMIDIOutput    *bool
	HasAudioInput    *bool
	HasAudioOutput   *bool
	InputRouting     *string
	InputSubRouting  *string
	OutputRouting    *string
	OutputSubRouting *string
}

// touchesInput reports whether u changes anything routing resolution reads.
func (u TrackUpdate) touchesInput() bool {
	return u.HasMIDIInput != nil || u.InputRouting != nil || u.InputSubRouting != nil
}

// Track is one Live track. Its Cell is created with the track and survives
// every rebind.
type Track struct {
	id  int
	out *output.Cell

	mu               sync.RWMutex
	name             string
	hasMIDIInput     bool
	hasMIDIOutput    bool
	hasAudioInput    bool
	hasAudioOutput   bool
	inputRouting     string
	inputSubRouting  string
	outputRouting    string
	outputSubRouting string

	// resolved routing
	device  string
	channel int
}

func newTrack(id int) *Track {
	return &Track{id: id, out: output.New()}
}

// ID returns the Live track id.
func (t *Track) ID() int {
	return t.id
}

// Out returns the track's output cell.
func (t *Track) Out() *output.Cell {
	return t.out
}

// Name returns the current track name.
func (t *Track) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// State is a copy of a track's fields.
type State struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	HasMIDIInput     bool   `json:"has_midi_input"`
	HasMIDIOutput    bool   `json:"has_midi_output"`
	HasAudioInput    bool   `json:"has_audio_input"`
	HasAudioOutput   bool   `json:"has_audio_output"`
	InputRouting     string `json:"input_routing"`
	InputSubRouting  string `json:"input_sub_routing"`
	OutputRouting    string `json:"output_routing"`
	OutputSubRouting string `json:"output_sub_routing"`
}

// State returns a consistent copy of the track's fields.
func (t *Track) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return State{
		ID:               t.id,
		Name:             t.name,
		HasMIDIInput:     t.hasMIDIInput,
		HasMIDIOutput:    t.hasMIDIOutput,
		HasAudioInput:    t.hasAudioInput,
		HasAudioOutput:   t.hasAudioOutput,
		InputRouting:     t.inputRouting,
		InputSubRouting:  t.inputSubRouting,
		OutputRouting:    t.outputRouting,
		OutputSubRouting: t.outputSubRouting,
	}
}

func (t *Track) info() daw.TrackInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return daw.TrackInfo{
		Key:     strconv.Itoa(t.id),
		Name:    t.name,
		Device:  t.device,
		Channel: t.channel,
		Bound:   t.out.Bound(),
		Target:  t.out.Target(),
	}
}

// apply writes the supplied fields in their fixed order.
func (t *Track) apply(u TrackUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Name != nil {
		t.name = *u.Name
	}
	if u.HasMIDIInput != nil {
		t.hasMIDIInput = *u.HasMIDIInput
	}
	if u.HasMIDIOutput != nil {
		t.hasMIDIOutput = *u.HasMIDIOutput
	}
	if u.HasAudioInput != nil {
		t.hasAudioInput = *u.HasAudioInput
	}
	if u.HasAudioOutput != nil {
		t.hasAudioOutput = *u.HasAudioOutput
	}
	if u.InputRouting != nil {
		t.inputRouting = NormalizeDeviceName(*u.InputRouting)
	}
	if u.InputSubRouting != nil {
		t.inputSubRouting = *u.InputSubRouting
	}
	if u.OutputRouting != nil {
		t.outputRouting = NormalizeDeviceName(*u.OutputRouting)
	}
	if u.OutputSubRouting != nil {
		t.outputSubRouting = *u.OutputSubRouting
	}
}

func (t *Track) routingInputs() (hasMIDIInput bool, routing, sub string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hasMIDIInput, t.inputRouting, t.inputSubRouting
}

func (t *Track) setResolved(device string, channel int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.device = device
	t.channel = channel
}
