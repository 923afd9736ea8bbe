package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/musalce/musalce-server/internal/daw"
)

// Measurement names.
const (
	MeasurementRouting = "routing"
	MeasurementDevices = "midi_devices"
)

// RoutingChanged implements daw.RoutingObserver. It records one point per
// rebind; the write is non-blocking.
func (c *Client) RoutingChanged(ev daw.RoutingEvent) {
	c.WritePointWithTime(MeasurementRouting, routingTags(ev), routingFields(ev), ev.Time)
}

func routingTags(ev daw.RoutingEvent) map[string]string {
	tags := map[string]string{
		"flavor": string(ev.Flavor),
		"track":  ev.Key,
	}
	if ev.Device != "" {
		tags["device"] = ev.Device
	}
	return tags
}

func routingFields(ev daw.RoutingEvent) map[string]interface{} {
	return map[string]interface{}{
		"name":    ev.Name,
		"channel": ev.Channel,
		"bound":   ev.Bound,
	}
}

// WriteDeviceChange records a MIDI device attach or detach with the device
// count after it.
func (c *Client) WriteDeviceChange(device string, attached bool, total int) {
	c.WritePoint(MeasurementDevices,
		map[string]string{"device": device},
		map[string]interface{}{"attached": attached, "total": total},
	)
}

// WritePoint writes a point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point at timestamp, or now when it is zero.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
