package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/ta25stage/stagelink/internal/supervisor"
)

// Publisher sends a message on the bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsWriter stores heartbeat fields as a time-series point.
type MetricsWriter interface {
	WriteHeartbeat(device string, fields map[string]interface{})
}

// LastCommandSource reports the most recent command.
type LastCommandSource interface {
	LastCommand() (LastCommand, bool)
}

// FailureCounter reports failed dispatches.
type FailureCounter interface {
	Failures() uint64
}

// Heartbeat is the telemetry payload published on <prefix>/telemetry.
type Heartbeat struct {
	Device            string       `json:"device"`
	UptimeS           int64        `json:"uptime_s"`
	RSSI              int          `json:"rssi"`
	BusConnected      bool         `json:"bus_connected"`
	State             string       `json:"state"`
	ReconnectFailures int          `json:"reconnect_failures"`
	HeartbeatFailures int          `json:"heartbeat_failures"`
	DispatchFailures  uint64       `json:"dispatch_failures"`
	FreeMemory        uint64       `json:"free_memory"`
	LastCommand       *LastCommand `json:"last_command,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Fields returns the numeric and boolean values for a metrics point.
func (h Heartbeat) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"uptime_s":           h.UptimeS,
		"rssi":               h.RSSI,
		"bus_connected":      h.BusConnected,
		"state":              h.State,
		"reconnect_failures": h.ReconnectFailures,
		"heartbeat_failures": h.HeartbeatFailures,
		"dispatch_failures":  int64(h.DispatchFailures), //nolint:gosec // counter
		"free_memory":        int64(h.FreeMemory),       //nolint:gosec // bytes
	}
	if h.LastCommand != nil {
		f["last_command_age_s"] = h.Timestamp.Sub(h.LastCommand.At).Seconds()
	}
	return f
}

// TelemetryConfig wires a Telemetry.
type TelemetryConfig struct {
	Device    string
	Topic     string
	QoS       byte
	Publisher Publisher

	// Optional.
	Metrics     MetricsWriter
	LastCommand LastCommandSource
	Failures    FailureCounter
	Observer    func(Heartbeat)
	Now         func() time.Time
}

// Telemetry builds and publishes heartbeats. It implements
// supervisor.Heartbeater.
type Telemetry struct {
	cfg        TelemetryConfig
	freeMemory func() uint64
}

// NewTelemetry creates the heartbeat publisher.
func NewTelemetry(cfg TelemetryConfig) *Telemetry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Telemetry{cfg: cfg, freeMemory: heapFree}
}

// SetSources attaches the dispatch failure counter and last-command source.
// The supervisor needs the Telemetry before the dispatcher and runner exist,
// so main wires these afterwards. Call before the control loop starts.
func (t *Telemetry) SetSources(failures FailureCounter, last LastCommandSource) {
	t.cfg.Failures = failures
	t.cfg.LastCommand = last
}

// heapFree is the heap the runtime holds but has not allocated.
func heapFree() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapSys - ms.HeapAlloc
}

// Build assembles a heartbeat from a supervisor snapshot.
func (t *Telemetry) Build(snap supervisor.Snapshot) Heartbeat {
	hb := Heartbeat{
		Device:            t.cfg.Device,
		UptimeS:           int64(snap.Uptime / time.Second),
		RSSI:              snap.SignalStrength,
		BusConnected:      snap.BusConnected,
		State:             snap.State.String(),
		ReconnectFailures: snap.ReconnectFailures,
		HeartbeatFailures: snap.HeartbeatFailures,
		FreeMemory:        t.freeMemory(),
		Timestamp:         t.cfg.Now().UTC(),
	}
	if t.cfg.Failures != nil {
		hb.DispatchFailures = t.cfg.Failures.Failures()
	}
	if t.cfg.LastCommand != nil {
		if lc, ok := t.cfg.LastCommand.LastCommand(); ok {
			hb.LastCommand = &lc
		}
	}
	return hb
}

// Heartbeat publishes one heartbeat to the bus and the metrics store.
// A publish failure is returned for the supervisor to count.
func (t *Telemetry) Heartbeat(_ context.Context, snap supervisor.Snapshot) error {
	hb := t.Build(snap)

	if t.cfg.Metrics != nil {
		t.cfg.Metrics.WriteHeartbeat(t.cfg.Device, hb.Fields())
	}
	if t.cfg.Observer != nil {
		t.cfg.Observer(hb)
	}

	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encoding heartbeat: %w", err)
	}
	if err := t.cfg.Publisher.Publish(t.cfg.Topic, payload, t.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing heartbeat: %w", err)
	}
	return nil
}
