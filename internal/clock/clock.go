// Package clock follows the MIDI clock of one selected input port.
//
// The source that drives the transport is chosen at runtime: by the
// is-clock flag of a Bitwig controller, or by configuration for Live.
// Only one port is followed at a time. Selecting another port replaces the
// listener; Clear leaves the transport without a clock.
package clock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/musalce/musalce-server/internal/midi"
)

// TicksPerBeat is the MIDI clock resolution.
const TicksPerBeat = 24

// ErrPortNotFound is returned by Select when no input port matches.
var ErrPortNotFound = errors.New("clock: input port not found")

// Event is a transport event read from the clock port.
type Event int

const (
	Tick Event = iota
	Start
	Stop
	Continue
)

func (e Event) String() string {
	switch e {
	case Tick:
		return "tick"
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Logger defines the logging interface used by the Source.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Source follows the clock messages of one input port.
type Source struct {
	enum midi.Enumerator

	mu   sync.Mutex
	port string
	stop func()

	ticks   atomic.Uint64
	running atomic.Bool
	events  chan Event

	logger Logger
}

// New creates a Source with no port selected. Events are buffered up to
// buffer entries; when the consumer falls behind, events are dropped.
func New(enum midi.Enumerator, buffer int) *Source {
	if buffer < 1 {
		buffer = 1
	}
	return &Source{
		enum:   enum,
		events: make(chan Event, buffer),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the source.
func (s *Source) SetLogger(logger Logger) {
	s.logger = logger
}

// Events returns the transport event stream.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Select follows the first input port whose name ends with name.
// Selecting the port already followed is a no-op.
func (s *Source) Select(ctx context.Context, name string) error {
	ports, err := s.enum.InPorts(ctx)
	if err != nil {
		return fmt.Errorf("enumerating input ports: %w", err)
	}

	var port midi.InPort
	for _, p := range ports {
		if strings.HasSuffix(p.Name(), name) {
			port = p
			break
		}
	}
	if port == nil {
		return fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil && s.port == port.Name() {
		return nil
	}

	stop, err := port.Listen(s.handle)
	if err != nil {
		return err
	}

	s.stopLocked()
	s.port = port.Name()
	s.stop = stop
	s.logger.Info("clock source selected", "port", s.port)
	return nil
}

// Clear stops following the current port, if any.
func (s *Source) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.logger.Info("clock source cleared", "port", s.port)
	}
	s.stopLocked()
}

func (s *Source) stopLocked() {
	if s.stop != nil {
		s.stop()
	}
	s.stop = nil
	s.port = ""
	s.running.Store(false)
}

// Port returns the followed port name, or "" when no clock is selected.
func (s *Source) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Ticks returns the clock ticks received since the last Start.
func (s *Source) Ticks() uint64 {
	return s.ticks.Load()
}

// Running reports whether the followed transport is playing.
func (s *Source) Running() bool {
	return s.running.Load()
}

// Close stops the listener. The Source may not be reused.
func (s *Source) Close() {
	s.Clear()
}

func (s *Source) handle(msg gomidi.Message) {
	var ev Event
	switch msg.Type() {
	case gomidi.TimingClockMsg:
		s.ticks.Add(1)
		ev = Tick
	case gomidi.StartMsg:
		s.ticks.Store(0)
		s.running.Store(true)
		ev = Start
	case gomidi.StopMsg:
		s.running.Store(false)
		ev = Stop
	case gomidi.ContinueMsg:
		s.running.Store(true)
		ev = Continue
	default:
		return
	}

	select {
	case s.events <- ev:
	default:
	}
}
