package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementPinLevel is the measurement holding pin level history.
const MeasurementPinLevel = "pin_level"

// LevelPoint builds a pin_level point.
//
// Tags:
//   - device: device name
//   - source: what drove the change (lifecycle, command, toggler)
//
// Fields:
//   - high: raw electrical level
//   - active: whether the LED is lit
func LevelPoint(device, source string, high, active bool, t time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPinLevel,
		map[string]string{"device": device, "source": source},
		map[string]any{"high": high, "active": active},
		t,
	)
}

// WriteLevel queues one pin level change. Samples written after Close
// are dropped.
func (c *Client) WriteLevel(device, source string, high, active bool, t time.Time) {
	if c == nil || c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(LevelPoint(device, source, high, active, t))
	c.points.Add(1)
}
