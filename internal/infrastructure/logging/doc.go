// Package logging provides structured logging for the stagelink binaries.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the coordinator, the panel agent
// and the showctl CLI.
//
// # Features
//
//   - JSON output for the coordinator (machine-parsable)
//   - Text output for a panel's serial console
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, logging.ServiceCoordinator, version)
//	logger.Component("supervisor").Warn("message bus connect failed", "error", err)
//
// Never log MQTT or InfluxDB credentials.
package logging
