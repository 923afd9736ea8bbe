package osc

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	goosc "github.com/hypebeast/go-osc/osc"
)

// DefaultSendAttempts is used when a non-positive attempt count is configured.
const DefaultSendAttempts = 3

// Sender delivers one OSC message to the DAW.
type Sender interface {
	Send(address string, args ...any) error
}

// packetSender is satisfied by *goosc.Client.
type packetSender interface {
	Send(packet goosc.Packet) error
}

// Client sends messages to the DAW extension with bounded retry.
type Client struct {
	transport packetSender
	target    string
	attempts  int

	logger  Logger
	metrics Metrics
}

// NewClient creates a client for host:port. attempts bounds the tries per
// message on transient failures.
func NewClient(host string, port, attempts int) *Client {
	return newClient(goosc.NewClient(host, port), fmt.Sprintf("%s:%d", host, port), attempts)
}

func newClient(transport packetSender, target string, attempts int) *Client {
	if attempts < 1 {
		attempts = DefaultSendAttempts
	}
	return &Client{
		transport: transport,
		target:    target,
		attempts:  attempts,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetMetrics sets the metrics sink for the client.
func (c *Client) SetMetrics(m Metrics) {
	c.metrics = m
}

// Target returns the host:port messages are sent to.
func (c *Client) Target() string {
	return c.target
}

// Send encodes and sends one message. Transient failures are retried
// immediately up to the configured attempt count; any other failure is
// returned at once. Both cases wrap ErrSendFailed.
func (c *Client) Send(address string, args ...any) error {
	msg := goosc.NewMessage(address)
	for _, a := range args {
		msg.Append(normalizeArg(a))
	}

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.transport.Send(msg)
		if err == nil {
			c.metrics.ObserveSend(address, nil)
			return nil
		}
		if !isTransient(err) {
			break
		}
		c.logger.Debug("osc send retry", "address", address, "attempt", attempt, "error", err)
	}

	c.metrics.ObserveSend(address, err)
	c.logger.Warn("osc send failed", "address", address, "target", c.target, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrSendFailed, address, err)
}

// isTransient reports whether err is worth an immediate retry.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// normalizeArg converts Go values to types the OSC encoder understands.
func normalizeArg(a any) any {
	switch v := a.(type) {
	case int:
		return int32(v)
	case int8:
		return int32(v)
	case int16:
		return int32(v)
	case uint8:
		return int32(v)
	case uint16:
		return int32(v)
	case uint32:
		return int64(v)
	case float64:
		return float32(v)
	default:
		return a
	}
}
