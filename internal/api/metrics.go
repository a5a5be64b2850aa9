package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/ta25stage/stagelink/internal/coordinator"
	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/journal"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

// StatusResponse is the coordinator's operational state.
type StatusResponse struct {
	Timestamp       string                   `json:"timestamp"`
	Version         string                   `json:"version"`
	UptimeSeconds   int64                    `json:"uptime_seconds"`
	BusConnected    bool                     `json:"bus_connected"`
	TransmitAllowed bool                     `json:"transmit_allowed"`
	Connectivity    *supervisor.Snapshot     `json:"connectivity,omitempty"`
	Control         *coordinator.Stats       `json:"control,omitempty"`
	LastCommand     *coordinator.LastCommand `json:"last_command,omitempty"`
	SequenceActive  bool                     `json:"sequence_active"`
	RunningShow     uint8                    `json:"running_show,omitempty"`
	Dispatch        *dispatch.Stats          `json:"dispatch,omitempty"`
	Journal         *journal.RecorderStats   `json:"journal,omitempty"`
}

// handleStatus returns supervisor, control loop and dispatcher state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Version:         s.version,
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		TransmitAllowed: true,
	}

	if s.bus != nil {
		resp.BusConnected = s.bus.IsConnected()
	}
	if s.connectivity != nil {
		snap := s.connectivity.Snapshot()
		resp.Connectivity = &snap
		resp.TransmitAllowed = s.connectivity.TransmitAllowed()
	}
	if s.control != nil {
		st := s.control.Stats()
		resp.Control = &st
		resp.SequenceActive = s.control.SequenceActive()
		if lc, ok := s.control.LastCommand(); ok {
			resp.LastCommand = &lc
		}
	}
	if s.shows != nil && s.shows.Running() {
		resp.SequenceActive = true
		resp.RunningShow = s.shows.Current()
	}
	if s.dispatcher != nil {
		st := s.dispatcher.Stats()
		resp.Dispatch = &st
	}
	if s.recorder != nil {
		st := s.recorder.Stats()
		resp.Journal = &st
	}

	writeJSON(w, http.StatusOK, resp)
}

// SystemMetrics represents the runtime metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	HeapFreeMB    float64 `json:"heap_free_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns process metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			HeapFreeMB:    float64(memStats.HeapSys-memStats.HeapAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
