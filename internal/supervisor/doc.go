// Package supervisor keeps the coordinator's message-bus link alive.
//
// The Supervisor is a state machine advanced by Tick from the coordinator's
// control loop:
//
//	Disconnected ──connect ok──▶ Connected ──bus lost──▶ Disconnected
//	     │  ▲                        │
//	 fail│  │backoff            watchdog: transport lost
//	     ▼  │                        ▼
//	  Connecting                  Degraded ──bring-up ok──▶ Connected
//	     │
//	 10 failures
//	     ▼
//	  LowPower ──suspension over──▶ Disconnected (counters reset)
//
// Reconnect failures grow a linear, capped backoff that Tick sleeps through.
// From the fifth consecutive failure each failure also checks the network
// transport and re-runs bring-up if association was lost. At the tenth the
// supervisor stops transmission and suspends; afterwards it behaves as if
// freshly booted.
//
// While Connected a heartbeat is published every HeartbeatInterval and a
// watchdog checks transport association every WatchdogInterval.
package supervisor
