package midi

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ChannelCount is the number of channels on every MIDI port.
const ChannelCount = 16

// Channel mode controller numbers.
const (
	ccResetAllControllers = 121
	ccAllNotesOff         = 123
)

// Device is one MIDI output port and its 16 channels.
type Device struct {
	name     string
	port     OutPort
	channels [ChannelCount]*Channel
	detached atomic.Bool
}

func newDevice(port OutPort) *Device {
	d := &Device{
		name: port.Name(),
		port: port,
	}
	for i := range d.channels {
		d.channels[i] = &Channel{device: d, number: uint8(i)}
	}
	return d
}

// Name returns the port name the device was enumerated with.
func (d *Device) Name() string {
	return d.name
}

// Channel returns channel n (0-based).
func (d *Device) Channel(n int) (*Channel, error) {
	if n < 0 || n >= ChannelCount {
		return nil, fmt.Errorf("%w: %d", ErrChannelOutOfRange, n)
	}
	return d.channels[n], nil
}

// Channels returns all 16 channels in order.
func (d *Device) Channels() []*Channel {
	out := make([]*Channel, ChannelCount)
	copy(out, d.channels[:])
	return out
}

// Detached reports whether a Sync has removed the device.
func (d *Device) Detached() bool {
	return d.detached.Load()
}

// Panic sends all-notes-off and reset-all-controllers on every channel.
func (d *Device) Panic() error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.AllNotesOff(); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := ch.send(gomidi.ControlChange(ch.number, ccResetAllControllers, 0)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Device) detach() error {
	d.detached.Store(true)
	if c, ok := d.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Channel is one of a Device's 16 channels. It implements output.Sink.
type Channel struct {
	device *Device
	number uint8
}

// Number returns the 0-based channel number.
func (c *Channel) Number() int {
	return int(c.number)
}

// Device returns the owning device.
func (c *Channel) Device() *Device {
	return c.device
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel %d on %q", c.number+1, c.device.name)
}

func (c *Channel) send(msg gomidi.Message) error {
	if c.device.detached.Load() {
		return fmt.Errorf("%w: %s", ErrDeviceDetached, c.device.name)
	}
	if err := c.device.port.Send(msg); err != nil {
		return fmt.Errorf("sending to %s: %w", c, err)
	}
	return nil
}

// NoteOn sends a note-on.
func (c *Channel) NoteOn(key, velocity uint8) error {
	return c.send(gomidi.NoteOn(c.number, key, velocity))
}

// NoteOff sends a note-off.
func (c *Channel) NoteOff(key uint8) error {
	return c.send(gomidi.NoteOff(c.number, key))
}

// ControlChange sends a control change.
func (c *Channel) ControlChange(controller, value uint8) error {
	return c.send(gomidi.ControlChange(c.number, controller, value))
}

// ProgramChange sends a program change.
func (c *Channel) ProgramChange(program uint8) error {
	return c.send(gomidi.ProgramChange(c.number, program))
}

// AllNotesOff sends the all-notes-off channel mode message.
func (c *Channel) AllNotesOff() error {
	return c.send(gomidi.ControlChange(c.number, ccAllNotesOff, 0))
}
