// Package api implements the coordinator's read-only HTTP status API and
// live event stream.
//
// This package provides:
//   - Health and status endpoints for the connectivity supervisor, control
//     loop and dispatcher counters
//   - The region table, cross-panel groups and show catalogue
//   - The dispatch journal, filtered and paginated
//   - A WebSocket hub that streams dispatch results and heartbeats
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - Optional HS256 bearer tokens on everything except /health
//
// # Architecture
//
// Commands never enter through HTTP; they arrive on the MQTT bus. The API
// only reads from the components the coordinator wires into Deps. Every
// source is optional so the server can run on a partially started
// coordinator and in tests.
//
//	server, err := api.New(deps)
//	dispatcher.Observe(server.BroadcastDispatch)
//	server.Start(ctx)
//	defer server.Close()
package api
