// Package miditest provides in-memory ports and an enumerator for tests of
// code built on the midi package.
package miditest

import (
	"context"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/musalce/musalce-server/internal/midi"
)

// OutPort records every message sent to it.
type OutPort struct {
	name string

	mu     sync.Mutex
	sent   []gomidi.Message
	err    error
	closed bool
}

// NewOutPort returns a recording output port.
func NewOutPort(name string) *OutPort {
	return &OutPort{name: name}
}

func (p *OutPort) Name() string { return p.name }

func (p *OutPort) Send(msg gomidi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *OutPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// FailWith makes subsequent sends return err. nil restores normal operation.
func (p *OutPort) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Messages returns a copy of everything sent so far.
func (p *OutPort) Messages() []gomidi.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]gomidi.Message, len(p.sent))
	copy(out, p.sent)
	return out
}

// Closed reports whether Close was called.
func (p *OutPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// InPort delivers messages injected with Emit to its listener.
type InPort struct {
	name string

	mu       sync.Mutex
	listener func(gomidi.Message)
	stops    int
}

// NewInPort returns an injectable input port.
func NewInPort(name string) *InPort {
	return &InPort{name: name}
}

func (p *InPort) Name() string { return p.name }

func (p *InPort) Listen(fn func(gomidi.Message)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listener = nil
		p.stops++
	}, nil
}

// Emit delivers msg to the current listener, if any.
func (p *InPort) Emit(msg gomidi.Message) {
	p.mu.Lock()
	fn := p.listener
	p.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// Listening reports whether a listener is attached.
func (p *InPort) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener != nil
}

// Stops returns how many times the listener was stopped.
func (p *InPort) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// Enumerator serves a mutable list of ports. Ports are created on first
// mention and reused afterwards, so tests can inspect them by name.
type Enumerator struct {
	mu   sync.Mutex
	outs []string
	ins  []string
	out  map[string]*OutPort
	in   map[string]*InPort
	err  error
}

// NewEnumerator returns an enumerator offering the named output ports.
func NewEnumerator(outputs ...string) *Enumerator {
	e := &Enumerator{
		out: make(map[string]*OutPort),
		in:  make(map[string]*InPort),
	}
	e.SetOutputs(outputs...)
	return e
}

// SetOutputs replaces the offered output port names.
func (e *Enumerator) SetOutputs(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outs = append([]string(nil), names...)
	for _, n := range names {
		if _, ok := e.out[n]; !ok {
			e.out[n] = NewOutPort(n)
		}
	}
}

// SetInputs replaces the offered input port names.
func (e *Enumerator) SetInputs(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ins = append([]string(nil), names...)
	for _, n := range names {
		if _, ok := e.in[n]; !ok {
			e.in[n] = NewInPort(n)
		}
	}
}

// FailWith makes enumeration return err. nil restores normal operation.
func (e *Enumerator) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Out returns the output port created for name, or nil.
func (e *Enumerator) Out(name string) *OutPort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out[name]
}

// In returns the input port created for name, or nil.
func (e *Enumerator) In(name string) *InPort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.in[name]
}

func (e *Enumerator) OutPorts(context.Context) ([]midi.OutPort, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	ports := make([]midi.OutPort, 0, len(e.outs))
	for _, n := range e.outs {
		ports = append(ports, e.out[n])
	}
	return ports, nil
}

func (e *Enumerator) InPorts(context.Context) ([]midi.InPort, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	ports := make([]midi.InPort, 0, len(e.ins))
	for _, n := range e.ins {
		ports = append(ports, e.in[n])
	}
	return ports, nil
}

// Directory returns a synced directory over the given output names,
// together with its enumerator.
func Directory(ctx context.Context, outputs ...string) (*midi.Directory, *Enumerator, error) {
	enum := NewEnumerator(outputs...)
	dir := midi.NewDirectory(enum)
	if _, _, err := dir.Sync(ctx); err != nil {
		return nil, nil, err
	}
	return dir, enum, nil
}
