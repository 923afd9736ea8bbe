// Package dawtest provides recording fakes for driver tests.
package dawtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/musalce/musalce-server/internal/daw"
)

// Sent is one recorded outbound message.
type Sent struct {
	Address string
	Args    []any
}

// Sender records outbound messages. It implements osc.Sender.
type Sender struct {
	mu   sync.Mutex
	sent []Sent
	err  error
}

func (s *Sender) Send(address string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{Address: address, Args: args})
	return s.err
}

// FailWith makes Send record and return err.
func (s *Sender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Sent returns the recorded messages.
func (s *Sender) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// Addresses returns the recorded addresses in order.
func (s *Sender) Addresses() []string {
	var out []string
	for _, m := range s.Sent() {
		out = append(out, m.Address)
	}
	return out
}

// Reset forgets recorded messages.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// Observer records routing events.
type Observer struct {
	mu     sync.Mutex
	events []daw.RoutingEvent
}

func (o *Observer) RoutingChanged(ev daw.RoutingEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

// Events returns the recorded events.
func (o *Observer) Events() []daw.RoutingEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]daw.RoutingEvent(nil), o.events...)
}

// Reset forgets recorded events.
func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

// ErrNoPort is returned by Clock.Select for ports not in Ports.
var ErrNoPort = errors.New("dawtest: no such clock port")

// Clock is a ClockSource that selects any port whose name ends with the
// requested suffix among Ports.
type Clock struct {
	mu      sync.Mutex
	Ports   []string
	port    string
	selects int
	clears  int
}

func (c *Clock) Select(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.Ports {
		if strings.HasSuffix(p, name) {
			c.port = p
			c.selects++
			return nil
		}
	}
	return ErrNoPort
}

func (c *Clock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.port = ""
	c.clears++
}

func (c *Clock) Port() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

// Counts returns how often Select succeeded and Clear was called.
func (c *Clock) Counts() (selects, clears int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selects, c.clears
}

// Metrics records rejections.
type Metrics struct {
	mu       sync.Mutex
	Rejected []string
}

func (m *Metrics) ObserveRejected(address, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected = append(m.Rejected, address+":"+reason)
}

// Rejections returns the recorded "address:reason" entries.
func (m *Metrics) Rejections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Rejected...)
}
