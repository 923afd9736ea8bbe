package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/musalce/musalce-server/internal/daw"
)

// Namespace prefixes every metric name.
const Namespace = "musalce"

// Collector holds the server's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	inbound  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	sends    *prometheus.CounterVec
	rejected *prometheus.CounterVec
	routing  *prometheus.CounterVec
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "osc",
			Name:      "messages_received_total",
			Help:      "Inbound OSC messages by address and whether a handler was registered.",
		}, []string{"address", "handled"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "osc",
			Name:      "messages_dropped_total",
			Help:      "Inbound OSC messages dropped because the handler queue was full.",
		}, []string{"address"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "osc",
			Name:      "messages_sent_total",
			Help:      "Outbound OSC messages by address and result.",
		}, []string{"address", "result"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "daw",
			Name:      "messages_rejected_total",
			Help:      "Inbound DAW messages (or groups) not applied, by reason.",
		}, []string{"address", "reason"}),
		routing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "daw",
			Name:      "routing_changes_total",
			Help:      "Track output rebinds by flavor and resulting state.",
		}, []string{"flavor", "state"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.inbound, c.dropped, c.sends, c.rejected, c.routing,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WatchDevices exports the number of attached MIDI devices.
func (c *Collector) WatchDevices(count func() int) {
	c.gauge("midi", "devices", "Attached MIDI output devices.", count)
}

// WatchTracks exports the number of resident tracks.
func (c *Collector) WatchTracks(count func() int) {
	c.gauge("daw", "tracks", "Tracks resident in the registry.", count)
}

// WatchClockTicks exports the number of MIDI clock ticks received.
func (c *Collector) WatchClockTicks(ticks func() uint64) {
	if c == nil || ticks == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "clock",
		Name:      "ticks_total",
		Help:      "MIDI clock ticks received from the selected input.",
	}, func() float64 { return float64(ticks()) }))
}

func (c *Collector) gauge(subsystem, name, help string, count func() int) {
	if c == nil || count == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(count()) }))
}

// ObserveInbound implements osc.Metrics.
func (c *Collector) ObserveInbound(address string, handled bool) {
	if c == nil {
		return
	}
	h := "false"
	if handled {
		h = "true"
	}
	c.inbound.WithLabelValues(address, h).Inc()
}

// ObserveDropped implements osc.Metrics.
func (c *Collector) ObserveDropped(address string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(address).Inc()
}

// ObserveSend implements osc.Metrics.
func (c *Collector) ObserveSend(address string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.sends.WithLabelValues(address, result).Inc()
}

// ObserveRejected implements daw.Metrics.
func (c *Collector) ObserveRejected(address, reason string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(address, reason).Inc()
}

// RoutingChanged implements daw.RoutingObserver.
func (c *Collector) RoutingChanged(ev daw.RoutingEvent) {
	if c == nil {
		return
	}
	state := "unbound"
	if ev.Bound {
		state = "bound"
	}
	c.routing.WithLabelValues(string(ev.Flavor), state).Inc()
}
