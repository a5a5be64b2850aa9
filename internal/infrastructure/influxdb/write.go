package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementHeartbeat = "coordinator_heartbeat"
	MeasurementDispatch  = "dispatch"
)

// WriteHeartbeat records one coordinator heartbeat.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - device: Coordinator name, stored as the "device" tag
//   - fields: Heartbeat values (uptime_s, rssi, failure counters, ...)
//
// Example:
//
//	client.WriteHeartbeat("stagelink", map[string]interface{}{
//	    "uptime_s": 3600, "rssi": -61, "bus_connected": true,
//	})
func (c *Client) WriteHeartbeat(device string, fields map[string]interface{}) {
	c.writePoint(MeasurementHeartbeat, map[string]string{"device": device}, fields, time.Now())
}

// DispatchPoint describes one radio send attempt.
type DispatchPoint struct {
	PanelID    uint8
	Mode       string
	Effect     string
	Brightness uint8
	Speed      uint8
	Regions    int
	SequenceID uint8
	Step       uint8
	Outcome    string
	At         time.Time
}

// WriteDispatch records one dispatch attempt.
//
// Panel, mode, effect and outcome are tags so a dashboard can group show
// traffic by them; the remaining values are fields.
func (c *Client) WriteDispatch(d DispatchPoint) {
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writePoint(MeasurementDispatch,
		map[string]string{
			"panel_id": strconv.Itoa(int(d.PanelID)),
			"mode":     d.Mode,
			"effect":   d.Effect,
			"outcome":  d.Outcome,
		},
		map[string]interface{}{
			"brightness":  int(d.Brightness),
			"speed":       int(d.Speed),
			"regions":     d.Regions,
			"sequence_id": int(d.SequenceID),
			"step":        int(d.Step),
		},
		at,
	)
}

// writePoint queues one point on the batching write API. Points written
// before Connect or after Close are dropped.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
