// Package influxdb provides InfluxDB connectivity for the show coordinator.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring.
//
// # Purpose
//
// This package stores the coordinator's time-series telemetry:
//   - Heartbeats (uptime, RSSI, connectivity state, failure counters)
//   - Per-dispatch points (panel, effect, outcome)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "ta25stage",
//	    Bucket:  "show",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteHeartbeat("stagelink", fields)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a
// callback. Connection and health check errors are returned directly.
package influxdb
