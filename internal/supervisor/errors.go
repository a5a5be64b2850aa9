package supervisor

import "errors"

var (
	// ErrTransportDegraded is returned by Tick when the watchdog finds the
	// network transport has lost association. Recovery is automatic.
	ErrTransportDegraded = errors.New("supervisor: transport degraded")

	// ErrConnectivityExhausted is returned by Tick after the reconnect
	// failure limit sent the supervisor into low-power suspension.
	ErrConnectivityExhausted = errors.New("supervisor: connectivity exhausted")

	// ErrBusUnavailable wraps a failed bus connect attempt.
	ErrBusUnavailable = errors.New("supervisor: bus unavailable")
)
