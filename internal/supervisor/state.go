package supervisor

import (
	"fmt"
	"time"
)

// State is the supervisor's connectivity state.
type State uint8

// Connectivity states.
const (
	Disconnected State = iota
	Connecting
	Connected
	Degraded
	LowPower
)

var stateNames = [...]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Degraded:     "degraded",
	LowPower:     "low_power",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of the supervisor's counters.
type Snapshot struct {
	State             State         `json:"state"`
	Since             time.Time     `json:"since"`
	StartedAt         time.Time     `json:"started_at"`
	Uptime            time.Duration `json:"uptime_ns"`
	BusConnected      bool          `json:"bus_connected"`
	Associated        bool          `json:"associated"`
	SignalStrength    int           `json:"rssi"`
	ReconnectFailures int           `json:"reconnect_failures"`
	HeartbeatFailures int           `json:"heartbeat_failures"`
	RecoveryChecks    int           `json:"recovery_checks"`
	LowPowerEntries   int           `json:"low_power_entries"`
	RetryTimeout      time.Duration `json:"retry_timeout_ns"`
	LastHeartbeat     time.Time     `json:"last_heartbeat,omitempty"`
}
