package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	goosc "github.com/hypebeast/go-osc/osc"
)

// maxPacketSize is the largest UDP datagram accepted.
const maxPacketSize = 65507

// Message is a decoded inbound OSC message.
type Message struct {
	Address string
	Args    []any
}

// Handler processes one inbound message. Handlers run on the server's single
// handling goroutine.
type Handler func(msg Message)

// job is a queued message, or a function posted with Do.
type job struct {
	msg Message
	fn  func()
}

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	// Addr is the UDP listen address, e.g. "0.0.0.0:11011".
	Addr string

	// QueueSize bounds the packets waiting for the handler goroutine.
	QueueSize int

	// Logger is optional structured logger.
	Logger Logger

	// Metrics is optional.
	Metrics Metrics
}

// Server receives OSC packets and dispatches them sequentially.
type Server struct {
	addr     string
	queue    chan job
	handlers map[string]Handler
	mu       sync.RWMutex

	conn     net.PacketConn
	started  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
	cancel   context.CancelFunc

	logger  Logger
	metrics Metrics
}

// NewServer creates a server. Register handlers with Handle, then call Start.
func NewServer(opts ServerOptions) *Server {
	size := opts.QueueSize
	if size < 1 {
		size = 1
	}
	s := &Server{
		addr:     opts.Addr,
		queue:    make(chan job, size),
		handlers: make(map[string]Handler),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

// Handle registers h for an exact address, replacing any previous handler.
func (s *Server) Handle(address string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[address] = h
}

// Start binds the UDP socket and starts the reader and handler goroutines.
// The server runs until Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.conn = conn

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.read(ctx)
	go s.handle(ctx)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	s.logger.Info("osc listening", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket and waits for both goroutines to exit.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		s.wg.Wait()
		s.logger.Info("osc server stopped")
	})
}

func (s *Server) read(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("osc read failed", "error", err)
			continue
		}

		packet, err := goosc.ParsePacket(string(buf[:n]))
		if err != nil {
			s.logger.Warn("osc packet rejected", "from", from.String(), "error", err)
			continue
		}
		s.enqueue(packet)
	}
}

// enqueue flattens bundles so their messages are handled in order.
func (s *Server) enqueue(packet goosc.Packet) {
	switch p := packet.(type) {
	case *goosc.Message:
		msg := Message{Address: p.Address, Args: p.Arguments}
		select {
		case s.queue <- job{msg: msg}:
		default:
			s.metrics.ObserveDropped(msg.Address)
			s.logger.Warn("osc queue full, message dropped", "address", msg.Address)
		}
	case *goosc.Bundle:
		for _, m := range p.Messages {
			s.enqueue(m)
		}
		for _, b := range p.Bundles {
			s.enqueue(b)
		}
	}
}

func (s *Server) handle(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if j.fn != nil {
				s.run(j.fn)
				continue
			}
			s.Dispatch(j.msg)
		}
	}
}

// Do queues fn to run on the handler goroutine, in order with inbound
// messages. It reports false when the queue is full.
func (s *Server) Do(fn func()) bool {
	select {
	case s.queue <- job{fn: fn}:
		return true
	default:
		return false
	}
}

func (s *Server) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("osc queued func panic", "panic", r)
		}
	}()
	fn()
}

// Dispatch runs the handler registered for msg.Address on the calling
// goroutine. The server calls it from its handler goroutine; tests may call
// it directly.
func (s *Server) Dispatch(msg Message) {
	s.mu.RLock()
	h, ok := s.handlers[msg.Address]
	s.mu.RUnlock()

	s.metrics.ObserveInbound(msg.Address, ok)
	if !ok {
		s.logger.Debug("osc message without handler", "address", msg.Address)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("osc handler panic", "address", msg.Address, "panic", r)
		}
	}()
	h(msg)
}
