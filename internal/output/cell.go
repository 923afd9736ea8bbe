package output

import (
	"fmt"
	"sync/atomic"
)

// Sink is the set of musical operations a Cell forwards.
// midi.Channel is the production implementation.
type Sink interface {
	NoteOn(key, velocity uint8) error
	NoteOff(key uint8) error
	ControlChange(controller, value uint8) error
	ProgramChange(program uint8) error
	AllNotesOff() error
}

// binding boxes a Sink so that a nil interface can be stored atomically.
type binding struct {
	sink Sink
}

// Cell is a stable, rebindable reference to a Sink.
// The zero value is an unbound cell ready for use.
type Cell struct {
	current atomic.Pointer[binding]
}

// New returns an unbound Cell.
func New() *Cell {
	return &Cell{}
}

// Bind points the cell at sink. A nil sink unbinds.
func (c *Cell) Bind(sink Sink) {
	c.swap(sink)
}

// Unbind disconnects the cell. Subsequent operations are no-ops.
func (c *Cell) Unbind() {
	c.swap(nil)
}

// Rebind points the cell at sink and, when flush is set, sends all-notes-off
// to the previously bound sink so no note is left hanging on it.
// Flushing an identical sink is skipped.
func (c *Cell) Rebind(sink Sink, flush bool) error {
	prev := c.swap(sink)
	if !flush || prev == nil || prev == sink {
		return nil
	}
	if err := prev.AllNotesOff(); err != nil {
		return fmt.Errorf("flushing previous sink: %w", err)
	}
	return nil
}

func (c *Cell) swap(sink Sink) Sink {
	var next *binding
	if sink != nil {
		next = &binding{sink: sink}
	}
	prev := c.current.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.sink
}

// load returns the bound sink or nil.
func (c *Cell) load() Sink {
	b := c.current.Load()
	if b == nil {
		return nil
	}
	return b.sink
}

// Bound reports whether the cell currently forwards to a sink.
func (c *Cell) Bound() bool {
	return c.current.Load() != nil
}

// Target describes the bound sink, or returns "" when unbound.
func (c *Cell) Target() string {
	s := c.load()
	if s == nil {
		return ""
	}
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", s)
}

// Is reports whether the cell is bound to exactly sink.
func (c *Cell) Is(sink Sink) bool {
	return c.load() == sink
}

// NoteOn forwards to the bound sink.
func (c *Cell) NoteOn(key, velocity uint8) error {
	if s := c.load(); s != nil {
		return s.NoteOn(key, velocity)
	}
	return nil
}

// NoteOff forwards to the bound sink.
func (c *Cell) NoteOff(key uint8) error {
	if s := c.load(); s != nil {
		return s.NoteOff(key)
	}
	return nil
}

// ControlChange forwards to the bound sink.
func (c *Cell) ControlChange(controller, value uint8) error {
	if s := c.load(); s != nil {
		return s.ControlChange(controller, value)
	}
	return nil
}

// ProgramChange forwards to the bound sink.
func (c *Cell) ProgramChange(program uint8) error {
	if s := c.load(); s != nil {
		return s.ProgramChange(program)
	}
	return nil
}

// AllNotesOff forwards to the bound sink.
func (c *Cell) AllNotesOff() error {
	if s := c.load(); s != nil {
		return s.AllNotesOff()
	}
	return nil
}
