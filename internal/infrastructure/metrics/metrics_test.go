package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/osc"
)

var (
	_ osc.Metrics         = (*Collector)(nil)
	_ daw.Metrics         = (*Collector)(nil)
	_ daw.RoutingObserver = (*Collector)(nil)
)

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.ObserveInbound("/hello", true)
	c.ObserveInbound("/hello", true)
	c.ObserveInbound("/nope", false)
	c.ObserveDropped("/musalce4live/tracks")
	c.ObserveSend("/musalce4live/tracks", nil)
	c.ObserveSend("/musalce4live/tracks", errors.New("refused"))
	c.ObserveRejected("/musalce4bitwig/controller", "not_found")
	c.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Bound: true})
	c.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.inbound.WithLabelValues("/hello", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inbound.WithLabelValues("/nope", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dropped.WithLabelValues("/musalce4live/tracks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sends.WithLabelValues("/musalce4live/tracks", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sends.WithLabelValues("/musalce4live/tracks", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("/musalce4bitwig/controller", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routing.WithLabelValues("live", "bound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routing.WithLabelValues("live", "unbound")))
}

func TestCollector_HandlerExposesGauges(t *testing.T) {
	c := New()
	devices := 3
	c.WatchDevices(func() int { return devices })
	c.WatchTracks(func() int { return 12 })
	c.WatchClockTicks(func() uint64 { return 96 })
	c.ObserveInbound("/hello", true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, want := range []string{
		"musalce_midi_devices 3",
		"musalce_daw_tracks 12",
		"musalce_clock_ticks_total 96",
		`musalce_osc_messages_received_total{address="/hello",handled="true"} 1`,
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(string(body), want), "missing %q", want)
	}
}

func TestCollector_Independent(t *testing.T) {
	a, b := New(), New()
	a.ObserveDropped("/x")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.dropped.WithLabelValues("/x")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ObserveInbound("/hello", true)
	c.ObserveDropped("/hello")
	c.ObserveSend("/hello", nil)
	c.ObserveRejected("/hello", "arity")
	c.RoutingChanged(daw.RoutingEvent{})
	c.WatchDevices(func() int { return 1 })
	c.WatchClockTicks(func() uint64 { return 1 })
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
