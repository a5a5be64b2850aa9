package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Default timings and thresholds.
const (
	DefaultInitialBackoff    = 5 * time.Second
	DefaultBackoffStep       = 10 * time.Second
	DefaultMaxBackoff        = 120 * time.Second
	DefaultRecoveryThreshold = 5
	DefaultLowPowerThreshold = 10
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWatchdogInterval  = 60 * time.Second
	DefaultSuspendDuration   = 5 * time.Minute
)

// Bus is the message-bus connection being supervised.
type Bus interface {
	Connect(ctx context.Context) error
	IsConnected() bool
}

// Transport is the network association underneath the bus.
type Transport interface {
	Associated() bool
	BringUp(ctx context.Context) error
	SignalStrength() int
}

// Heartbeater publishes the periodic heartbeat.
type Heartbeater interface {
	Heartbeat(ctx context.Context, snap Snapshot) error
}

// Sleeper blocks for backoff and suspension.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Logger is the logging interface the supervisor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config holds the supervisor's timings. Zero values select the defaults.
type Config struct {
	InitialBackoff    time.Duration
	BackoffStep       time.Duration
	MaxBackoff        time.Duration
	RecoveryThreshold int
	LowPowerThreshold int
	HeartbeatInterval time.Duration
	WatchdogInterval  time.Duration
	SuspendDuration   time.Duration
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = DefaultBackoffStep
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = DefaultRecoveryThreshold
	}
	if c.LowPowerThreshold <= 0 {
		c.LowPowerThreshold = DefaultLowPowerThreshold
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = DefaultWatchdogInterval
	}
	if c.SuspendDuration <= 0 {
		c.SuspendDuration = DefaultSuspendDuration
	}
}

// Options holds the supervisor's optional collaborators.
type Options struct {
	Logger    Logger
	Sleeper   Sleeper
	Heartbeat Heartbeater
	Now       func() time.Time
}

// Supervisor drives reconnects, heartbeats and the transport watchdog.
//
// Thread Safety: Tick must be called from a single goroutine. Snapshot and
// TransmitAllowed are safe to call from any goroutine.
type Supervisor struct {
	bus       Bus
	transport Transport
	heartbeat Heartbeater
	sleeper   Sleeper
	logger    Logger
	now       func() time.Time
	cfg       Config

	transmit atomic.Bool

	mu                sync.Mutex
	state             State
	since             time.Time
	started           time.Time
	failures          int
	heartbeatFailures int
	recoveryChecks    int
	lowPowerEntries   int
	retryTimeout      time.Duration
	lastHeartbeat     time.Time
	lastWatchdog      time.Time
}

// New creates a supervisor in the Disconnected state.
func New(bus Bus, transport Transport, cfg Config, opts Options) *Supervisor {
	cfg.applyDefaults()
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Sleeper == nil {
		opts.Sleeper = timerSleeper{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if transport == nil {
		transport = AlwaysAssociated{}
	}
	now := opts.Now()
	s := &Supervisor{
		bus:          bus,
		transport:    transport,
		heartbeat:    opts.Heartbeat,
		sleeper:      opts.Sleeper,
		logger:       opts.Logger,
		now:          opts.Now,
		cfg:          cfg,
		state:        Disconnected,
		since:        now,
		started:      now,
		retryTimeout: cfg.InitialBackoff,
		lastWatchdog: now,
	}
	s.transmit.Store(true)
	return s
}

// TransmitAllowed reports whether radio transmission is permitted. It is
// false only while suspended in LowPower.
func (s *Supervisor) TransmitAllowed() bool {
	return s.transmit.Load()
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current counters.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:             s.state,
		Since:             s.since,
		StartedAt:         s.started,
		ReconnectFailures: s.failures,
		HeartbeatFailures: s.heartbeatFailures,
		RecoveryChecks:    s.recoveryChecks,
		LowPowerEntries:   s.lowPowerEntries,
		RetryTimeout:      s.retryTimeout,
		LastHeartbeat:     s.lastHeartbeat,
	}
	s.mu.Unlock()

	snap.Uptime = s.now().Sub(snap.StartedAt)
	snap.BusConnected = s.bus.IsConnected()
	snap.Associated = s.transport.Associated()
	snap.SignalStrength = s.transport.SignalStrength()
	return snap
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	if prev != next {
		s.state = next
		s.since = s.now()
	}
	s.mu.Unlock()

	if prev != next {
		s.logger.Info("connectivity state changed", "from", prev.String(), "to", next.String())
	}
}

// Tick advances the state machine once. It may block for a backoff sleep
// or a low-power suspension; ctx cancellation ends those waits early and
// is meant for shutdown only.
//
// Returned errors describe what happened during the tick and are for
// logging; the supervisor has already acted on them.
func (s *Supervisor) Tick(ctx context.Context) error {
	now := s.now()

	if err := s.watchdog(ctx, now); err != nil {
		return err
	}

	switch s.State() {
	case Disconnected, Connecting:
		return s.connect(ctx)
	case Connected:
		if !s.bus.IsConnected() {
			s.logger.Warn("message bus connection lost")
			s.setState(Disconnected)
			return nil
		}
		s.maybeHeartbeat(ctx, now)
		return nil
	case Degraded:
		return s.bringUp(ctx)
	default:
		return nil
	}
}

// watchdog checks transport association once per WatchdogInterval.
func (s *Supervisor) watchdog(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	due := now.Sub(s.lastWatchdog) >= s.cfg.WatchdogInterval
	if due {
		s.lastWatchdog = now
	}
	state := s.state
	s.mu.Unlock()

	if !due || state == Degraded || s.transport.Associated() {
		return nil
	}

	s.logger.Warn("network transport lost association", "state", state.String())
	s.setState(Degraded)
	if err := s.bringUp(ctx); err != nil {
		return err
	}
	return ErrTransportDegraded
}

// bringUp re-runs transport bring-up and leaves Degraded on success.
func (s *Supervisor) bringUp(ctx context.Context) error {
	if err := s.transport.BringUp(ctx); err != nil {
		s.logger.Warn("transport bring-up failed", "error", err)
		return fmt.Errorf("%w: %w", ErrTransportDegraded, err)
	}
	if s.bus.IsConnected() {
		s.setState(Connected)
	} else {
		s.setState(Disconnected)
	}
	s.logger.Info("transport association restored", "rssi", s.transport.SignalStrength())
	return nil
}

// connect makes one bus connect attempt.
func (s *Supervisor) connect(ctx context.Context) error {
	s.setState(Connecting)

	err := s.bus.Connect(ctx)
	if err == nil {
		s.mu.Lock()
		s.failures = 0
		s.retryTimeout = s.cfg.InitialBackoff
		s.lastHeartbeat = time.Time{}
		s.mu.Unlock()
		s.setState(Connected)
		s.maybeHeartbeat(ctx, s.now())
		return nil
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.retryTimeout += s.cfg.BackoffStep
	if s.retryTimeout > s.cfg.MaxBackoff {
		s.retryTimeout = s.cfg.MaxBackoff
	}
	wait := s.retryTimeout
	s.mu.Unlock()

	s.logger.Warn("message bus connect failed",
		"failures", failures,
		"retry_in", wait.String(),
		"error", err,
	)

	if failures >= s.cfg.LowPowerThreshold {
		return s.lowPower(ctx)
	}
	if failures >= s.cfg.RecoveryThreshold {
		s.recoveryCheck(ctx)
	}

	s.setState(Disconnected)
	if serr := s.sleeper.Sleep(ctx, wait); serr != nil {
		return serr
	}
	return fmt.Errorf("%w: %w", ErrBusUnavailable, err)
}

// recoveryCheck checks transport association without touching the failure
// counter.
func (s *Supervisor) recoveryCheck(ctx context.Context) {
	s.mu.Lock()
	s.recoveryChecks++
	s.mu.Unlock()

	if s.transport.Associated() {
		s.logger.Info("transport still associated, continuing reconnect attempts")
		return
	}
	s.logger.Warn("transport not associated, re-running bring-up")
	if err := s.transport.BringUp(ctx); err != nil {
		s.logger.Warn("transport bring-up failed", "error", err)
	}
}

// lowPower stops transmission, suspends, then resets as if rebooted.
func (s *Supervisor) lowPower(ctx context.Context) error {
	s.transmit.Store(false)
	s.mu.Lock()
	s.lowPowerEntries++
	failures := s.failures
	s.mu.Unlock()
	s.setState(LowPower)

	s.logger.Error("connectivity exhausted, entering low power",
		"failures", failures,
		"suspend", s.cfg.SuspendDuration.String(),
	)

	serr := s.sleeper.Sleep(ctx, s.cfg.SuspendDuration)

	now := s.now()
	s.mu.Lock()
	s.failures = 0
	s.retryTimeout = s.cfg.InitialBackoff
	s.lastHeartbeat = time.Time{}
	s.lastWatchdog = now
	s.mu.Unlock()
	s.transmit.Store(true)
	s.setState(Disconnected)
	s.logger.Info("low power suspension over, restarting connectivity")

	if serr != nil {
		return serr
	}
	return fmt.Errorf("%w after %d failures", ErrConnectivityExhausted, failures)
}

// maybeHeartbeat publishes a heartbeat when one is due.
func (s *Supervisor) maybeHeartbeat(ctx context.Context, now time.Time) {
	if s.heartbeat == nil {
		return
	}
	s.mu.Lock()
	last := s.lastHeartbeat
	s.mu.Unlock()
	if !last.IsZero() && now.Sub(last) < s.cfg.HeartbeatInterval {
		return
	}

	s.mu.Lock()
	s.lastHeartbeat = now
	s.mu.Unlock()

	if err := s.heartbeat.Heartbeat(ctx, s.Snapshot()); err != nil {
		s.mu.Lock()
		s.heartbeatFailures++
		n := s.heartbeatFailures
		s.mu.Unlock()
		s.logger.Warn("heartbeat failed", "error", err, "heartbeat_failures", n)
	}
}
