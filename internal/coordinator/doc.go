// Package coordinator is the show coordinator's control loop.
//
// It turns inbound MQTT messages into radio dispatches:
//
//	ta25stage/+/command ─┐
//	ta25stage/command  ──┼─> ParseCommand ─> inbox ─> Runner.Run ─┬─> dispatch.Dispatcher.Send
//	ta25stage/audio    ──┘   (ErrParse)      (bounded)             └─> sequence.Orchestrator.Run
//
// MQTT callbacks run on the client's goroutines and only enqueue work.
// A single goroutine (Runner.Run) owns everything that blocks: sequence
// holds, and the connectivity supervisor's backoff and suspension sleeps.
// A sequence request that arrives while another sequence is queued or
// running is dropped, never queued behind it.
//
// The Telemetry type publishes the periodic heartbeat for the supervisor.
package coordinator
