package midi

import (
	"context"
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DefaultEnumerateTimeout bounds a single OS port enumeration.
const DefaultEnumerateTimeout = 3 * time.Second

// OutPort is a MIDI output port as seen by the Directory.
type OutPort interface {
	Name() string
	Send(msg gomidi.Message) error
}

// InPort is a MIDI input port. Listen delivers messages until stop is called.
type InPort interface {
	Name() string
	Listen(fn func(msg gomidi.Message)) (stop func(), err error)
}

// Enumerator lists the ports currently offered by the system.
type Enumerator interface {
	OutPorts(ctx context.Context) ([]OutPort, error)
	InPorts(ctx context.Context) ([]InPort, error)
}

// SystemEnumerator enumerates ports through the registered gomidi driver.
type SystemEnumerator struct {
	Timeout time.Duration
}

// NewSystemEnumerator returns an enumerator bounded by timeout.
// A non-positive timeout selects DefaultEnumerateTimeout.
func NewSystemEnumerator(timeout time.Duration) *SystemEnumerator {
	if timeout <= 0 {
		timeout = DefaultEnumerateTimeout
	}
	return &SystemEnumerator{Timeout: timeout}
}

// OutPorts returns the system output ports.
func (e *SystemEnumerator) OutPorts(ctx context.Context) ([]OutPort, error) {
	outs, err := enumerate(ctx, e.Timeout, func() gomidi.OutPorts { return gomidi.GetOutPorts() })
	if err != nil {
		return nil, err
	}
	ports := make([]OutPort, 0, len(outs))
	for _, o := range outs {
		ports = append(ports, &systemOut{out: o})
	}
	return ports, nil
}

// InPorts returns the system input ports.
func (e *SystemEnumerator) InPorts(ctx context.Context) ([]InPort, error) {
	ins, err := enumerate(ctx, e.Timeout, func() gomidi.InPorts { return gomidi.GetInPorts() })
	if err != nil {
		return nil, err
	}
	ports := make([]InPort, 0, len(ins))
	for _, in := range ins {
		ports = append(ports, &systemIn{in: in})
	}
	return ports, nil
}

// enumerate runs list in its own goroutine so a hung driver cannot block the caller.
func enumerate[T any](ctx context.Context, timeout time.Duration, list func() T) (T, error) {
	ch := make(chan T, 1)
	go func() {
		ch <- list()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case result := <-ch:
		return result, nil
	case <-timer.C:
		return zero, ErrEnumerationTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// systemOut opens the driver port lazily on first send.
type systemOut struct {
	out drivers.Out

	once sync.Once
	send func(gomidi.Message) error
	err  error
}

func (p *systemOut) Name() string { return p.out.String() }

func (p *systemOut) Send(msg gomidi.Message) error {
	p.once.Do(func() {
		p.send, p.err = gomidi.SendTo(p.out)
	})
	if p.err != nil {
		return fmt.Errorf("opening %q: %w", p.out.String(), p.err)
	}
	return p.send(msg)
}

// Close releases the driver port if it was opened.
func (p *systemOut) Close() error {
	if p.out.IsOpen() {
		return p.out.Close()
	}
	return nil
}

type systemIn struct {
	in drivers.In
}

func (p *systemIn) Name() string { return p.in.String() }

func (p *systemIn) Listen(fn func(msg gomidi.Message)) (func(), error) {
	stop, err := gomidi.ListenTo(p.in, func(msg gomidi.Message, _ int32) {
		fn(msg)
	}, gomidi.UseTimeCode())
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", p.in.String(), err)
	}
	return stop, nil
}

// CloseDriver shuts the gomidi driver down. Call once at process exit.
func CloseDriver() {
	gomidi.CloseDriver()
}
