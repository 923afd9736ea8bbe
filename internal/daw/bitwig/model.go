package bitwig

import (
	"fmt"
	"sync"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/output"
)

// Controller is a hardware controller as configured in Bitwig.
type Controller struct {
	name     string
	portName string
	isClock  bool
	device   *midi.Device
	channels [midi.ChannelCount]*Channel
}

func newController(name string) *Controller {
	c := &Controller{name: name}
	for i := range c.channels {
		c.channels[i] = &Channel{controller: c, index: i}
	}
	return c
}

// Channel is one of a controller's 16 channels.
type Channel struct {
	controller *Controller
	index      int
	name       string
}

// String describes the channel for logs. Call it holding the registry lock.
func (ch *Channel) String() string {
	return fmt.Sprintf("Channel %d '%s' on port '%s' (controller '%s')",
		ch.index+1, ch.name, ch.controller.portName, ch.controller.name)
}

// sink returns the hardware channel behind this channel, or nil when the
// controller has no device.
func (ch *Channel) sink() *midi.Channel {
	dev := ch.controller.device
	if dev == nil {
		return nil
	}
	s, err := dev.Channel(ch.index)
	if err != nil {
		return nil
	}
	return s
}

// ControllerInfo is a point-in-time view of a controller.
type ControllerInfo struct {
	Name     string   `json:"name"`
	PortName string   `json:"port_name"`
	IsClock  bool     `json:"is_clock"`
	Device   string   `json:"device,omitempty"`
	Channels []string `json:"channels"`
}

// Track is a named output defined by a channel.
type Track struct {
	name string
	out  *output.Cell

	mu      sync.RWMutex
	channel *Channel
}

func newTrack(name string) *Track {
	return &Track{name: name, out: output.New()}
}

// Name returns the track name.
func (t *Track) Name() string {
	return t.name
}

// Out returns the track's output cell.
func (t *Track) Out() *output.Cell {
	return t.out
}

func (t *Track) boundChannel() *Channel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.channel
}

func (t *Track) setChannel(ch *Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = ch
}

// info must be called with the registry read lock held, since it reads
// controller fields.
func (t *Track) info() daw.TrackInfo {
	info := daw.TrackInfo{
		Key:    t.name,
		Name:   t.name,
		Bound:  t.out.Bound(),
		Target: t.out.Target(),
	}
	if ch := t.boundChannel(); ch != nil {
		info.Controller = ch.controller.name
		info.Channel = ch.index + 1
		if ch.controller.device != nil {
			info.Device = ch.controller.device.Name()
		}
	}
	return info
}
