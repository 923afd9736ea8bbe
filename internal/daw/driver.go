package daw

import (
	"context"
	"fmt"
	"sync"

	"github.com/musalce/musalce-server/internal/midi"
	"github.com/musalce/musalce-server/internal/osc"
)

// AddressHello is sent by both DAW extensions when they (re)connect.
const AddressHello = "/hello"

// Driver is one DAW flavor wired to the OSC transport.
type Driver interface {
	Flavor() Flavor
	Tracks() TrackSet
	Commands() *Commands
	// Routes registers the flavor's inbound handlers.
	Routes(r Router)
	// Start runs the startup handshake. Stop releases the clock and other
	// resources.
	Start(ctx context.Context) error
	Stop()
	// Reroute re-resolves every output against the device directory. Call
	// it on the OSC handling goroutine.
	Reroute(ctx context.Context)
}

// Router is satisfied by *osc.Server.
type Router interface {
	Handle(address string, h osc.Handler)
}

// ClockSource is the transport clock input. *clock.Source implements it.
type ClockSource interface {
	Select(ctx context.Context, port string) error
	Clear()
	Port() string
}

// DeviceDirectory is what drivers need from *midi.Directory.
type DeviceDirectory interface {
	Sync(ctx context.Context) (added, removed []string, err error)
	Find(suffix string) (*midi.Device, bool)
	Panic() error
}

// Metrics counts rejected inbound messages.
type Metrics interface {
	ObserveRejected(address, reason string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRejected(string, string) {}

// Logger defines the logging interface used by drivers and registries.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// Deps holds what a driver constructor needs.
type Deps struct {
	// Devices is the MIDI output directory. Required.
	Devices DeviceDirectory

	// Sender delivers outbound messages to the DAW. Required.
	Sender osc.Sender

	// Clock is the transport clock input. Optional.
	Clock ClockSource

	// ClockPort selects the clock input at startup for flavors that do not
	// choose it from DAW state. Optional.
	ClockPort string

	// BeatsPerBar converts bars to beats for Goto. Defaults to 4.
	BeatsPerBar int

	// Version is announced to the DAW.
	Version string

	// Observer is notified of routing changes. Optional.
	Observer RoutingObserver

	// Metrics is optional.
	Metrics Metrics

	// Logger is optional structured logger.
	Logger Logger
}

// Validate checks the required dependencies.
func (d Deps) Validate() error {
	if d.Devices == nil {
		return fmt.Errorf("%w: device directory", ErrMissingDependency)
	}
	if d.Sender == nil {
		return fmt.Errorf("%w: osc sender", ErrMissingDependency)
	}
	return nil
}

// Base implements the parts of Driver common to both flavors. Flavor
// drivers embed it.
type Base struct {
	flavor   Flavor
	deps     Deps
	commands *Commands
	logger   Logger
	metrics  Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewBase validates deps and prepares the shared driver state.
func NewBase(flavor Flavor, deps Deps, prefix, syncAddress string) (*Base, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	b := &Base{
		flavor:   flavor,
		deps:     deps,
		commands: NewCommands(deps.Sender, prefix, syncAddress, deps.BeatsPerBar, deps.Version, deps.Devices),
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
	if b.logger == nil {
		b.logger = NoopLogger{}
	}
	if b.metrics == nil {
		b.metrics = noopMetrics{}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// Flavor implements Driver.
func (b *Base) Flavor() Flavor {
	return b.flavor
}

// Commands implements Driver.
func (b *Base) Commands() *Commands {
	return b.commands
}

// Deps returns the dependencies the driver was built with.
func (b *Base) Deps() Deps {
	return b.deps
}

// Logger returns the driver logger.
func (b *Base) Logger() Logger {
	return b.logger
}

// Context is cancelled by Stop. Handlers use it for blocking work.
func (b *Base) Context() context.Context {
	return b.ctx
}

// Start announces the server version and requests a full snapshot. Send
// failures are logged; the DAW may simply not be running yet and will say
// /hello when it is.
func (b *Base) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel()
	b.ctx, b.cancel = ctx, cancel

	b.greet()
	b.logger.Info("daw driver started", "flavor", b.flavor)
	return nil
}

// Stop cancels the driver context.
func (b *Base) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		b.logger.Info("daw driver stopped", "flavor", b.flavor)
	})
}

// HandleHello resyncs MIDI devices and asks the DAW for a fresh snapshot.
func (b *Base) HandleHello(osc.Message) {
	if _, _, err := b.deps.Devices.Sync(b.ctx); err != nil {
		b.logger.Warn("midi device sync failed", "error", err)
	}
	b.greet()
}

func (b *Base) greet() {
	if err := b.commands.AnnounceVersion(); err != nil {
		b.logger.Debug("version announce failed", "error", err)
	}
	if err := b.commands.Sync(); err != nil {
		b.logger.Debug("sync request failed", "error", err)
	}
}

// Groups splits msg into groups of size, logging and counting a rejection
// when the argument count does not fit.
func (b *Base) Groups(msg osc.Message, size int) ([][]any, bool) {
	groups, err := osc.Groups(msg.Args, size)
	if err != nil {
		b.Reject(msg.Address, "arity", err)
		return nil, false
	}
	return groups, true
}

// Reject logs and counts an inbound message (or part of one) that was not applied.
func (b *Base) Reject(address, reason string, err error) {
	b.metrics.ObserveRejected(address, reason)
	b.logger.Warn("osc message rejected", "address", address, "reason", reason, "error", err)
}
