package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/musalce/musalce-server/internal/clock"
	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/daw/bitwig"
	"github.com/musalce/musalce-server/internal/infrastructure/config"
	"github.com/musalce/musalce-server/internal/infrastructure/logging"
	"github.com/musalce/musalce-server/internal/midi"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceLister is the read side of the MIDI device directory.
type DeviceLister interface {
	Devices() []*midi.Device
	Len() int
}

// ClockStatus reports the state of the MIDI clock input.
type ClockStatus interface {
	Port() string
	Running() bool
	Ticks() uint64
}

// ControllerLister lists the configured controllers of a Bitwig session.
type ControllerLister interface {
	Controllers() []bitwig.ControllerInfo
}

// HealthChecker is implemented by components that report their health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Driver  daw.Driver
	Devices DeviceLister

	Clock       ClockStatus      // optional
	Controllers ControllerLister // optional; Bitwig only
	Metrics     http.Handler     // optional; served at /metrics
	Hub         *Hub             // optional; served at /api/v1/ws
	Health      map[string]HealthChecker

	Version string
}

// Server is the local HTTP control API.
//
// It is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	driver      daw.Driver
	devices     DeviceLister
	clock       ClockStatus
	controllers ControllerLister
	metrics     http.Handler
	hub         *Hub
	health      map[string]HealthChecker
	version     string

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, driver, devices)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Driver == nil {
		return nil, fmt.Errorf("daw driver is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device directory is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		driver:      deps.Driver,
		devices:     deps.Devices,
		clock:       deps.Clock,
		controllers: deps.Controllers,
		metrics:     deps.Metrics,
		hub:         deps.Hub,
		health:      deps.Health,
		version:     deps.Version,
	}, nil
}

// Handler returns the routed handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// Binding happens synchronously so a port already in use is reported here.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// The MIDI clock input serves as ClockStatus.
var _ ClockStatus = (*clock.Source)(nil)
