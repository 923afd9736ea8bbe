package osc

// Metrics receives transport counters. The infrastructure/metrics package
// provides the Prometheus implementation.
type Metrics interface {
	ObserveInbound(address string, handled bool)
	ObserveDropped(address string)
	ObserveSend(address string, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveInbound(string, bool) {}
func (noopMetrics) ObserveDropped(string)       {}
func (noopMetrics) ObserveSend(string, error)   {}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
