package influxdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/infrastructure/config"
)

var _ daw.RoutingObserver = (*Client)(nil)

// testConfig returns a configuration for a local InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "musalce-dev-token",
		Org:           "musalce",
		Bucket:        "musalce",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

type recordingWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func newRecordingClient() (*Client, *recordingWriter) {
	w := &recordingWriter{}
	return &Client{writeAPI: w, cfg: testConfig(), connected: true}, w
}

func tagMap(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fieldMap(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestRoutingChanged(t *testing.T) {
	client, w := newRecordingClient()
	at := time.Date(2026, 5, 4, 20, 15, 0, 0, time.UTC)

	client.RoutingChanged(daw.RoutingEvent{
		Flavor:  daw.FlavorLive,
		Key:     "3",
		Name:    "Bass",
		Device:  "IAC Driver Bus 1",
		Channel: 3,
		Bound:   true,
		Time:    at,
	})
	client.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorLive, Key: "4", Name: "Pad"})

	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}

	p := w.points[0]
	if p.Name() != MeasurementRouting {
		t.Errorf("measurement = %q, want %q", p.Name(), MeasurementRouting)
	}
	if !p.Time().Equal(at) {
		t.Errorf("time = %v, want %v", p.Time(), at)
	}
	tags := tagMap(p)
	if tags["flavor"] != "live" || tags["track"] != "3" || tags["device"] != "IAC Driver Bus 1" {
		t.Errorf("tags = %v", tags)
	}
	fields := fieldMap(p)
	if fields["bound"] != true || fields["name"] != "Bass" {
		t.Errorf("fields = %v", fields)
	}
	if ch, ok := fields["channel"].(int64); !ok || ch != 3 {
		t.Errorf("channel field = %#v, want int64(3)", fields["channel"])
	}

	// Unbound tracks carry no device tag and are stamped now.
	unbound := w.points[1]
	if _, ok := tagMap(unbound)["device"]; ok {
		t.Error("unbound point has a device tag")
	}
	if unbound.Time().IsZero() {
		t.Error("zero event time was not replaced")
	}
}

func TestWriteDeviceChange(t *testing.T) {
	client, w := newRecordingClient()

	client.WriteDeviceChange("IAC Driver Bus 2", false, 1)

	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementDevices {
		t.Errorf("measurement = %q", p.Name())
	}
	if tagMap(p)["device"] != "IAC Driver Bus 2" {
		t.Errorf("tags = %v", tagMap(p))
	}
	if fields := fieldMap(p); fields["attached"] != false {
		t.Errorf("fields = %v", fields)
	}
}

func TestWrite_NotConnectedIsNoop(t *testing.T) {
	client, w := newRecordingClient()
	client.connected = false

	client.RoutingChanged(daw.RoutingEvent{Flavor: daw.FlavorBitwig, Key: "Bass"})
	client.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	client.Flush()

	if len(w.points) != 0 || w.flushes != 0 {
		t.Errorf("points = %d, flushes = %d; want none", len(w.points), w.flushes)
	}
}

func TestFlush(t *testing.T) {
	client, w := newRecordingClient()
	client.Flush()
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
}

func TestSetOnError(t *testing.T) {
	client, _ := newRecordingClient()

	got := make(chan error, 1)
	client.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("write rejected")
	close(errs)
	client.handleWriteErrors(errs)

	select {
	case err := <-got:
		if err.Error() != "write rejected" {
			t.Errorf("callback got %v", err)
		}
	default:
		t.Fatal("error callback not invoked")
	}
}

func TestConnect_OptionFallbacks(t *testing.T) {
	if got := positiveOr(0, 100); got != 100 {
		t.Errorf("positiveOr(0, 100) = %d", got)
	}
	if got := positiveOr(25, 100); got != 25 {
		t.Errorf("positiveOr(25, 100) = %d", got)
	}

	cfg := testConfig()
	cfg.FlushInterval = 0
	if got := flushInterval(cfg); got != fallbackFlushInterval {
		t.Errorf("flushInterval() = %v, want %v", got, fallbackFlushInterval)
	}
	cfg.FlushInterval = 3
	if got := flushInterval(cfg); got != 3*time.Second {
		t.Errorf("flushInterval() = %v, want 3s", got)
	}
}
