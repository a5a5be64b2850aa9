package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
)

// Logger is the logging interface the dispatcher needs.
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

// Gate decides whether transmission is currently allowed.
type Gate interface {
	TransmitAllowed() bool
}

// Result describes one send attempt. It is passed to observers for
// diagnostics only; nothing in the send path depends on it.
type Result struct {
	Packet protocol.Packet
	Dst    radio.Addr
	Err    error
	At     time.Time
}

// Send outcomes as reported by Result.Outcome.
const (
	OutcomeSent         = "sent"
	OutcomeFailed       = "failed"
	OutcomeUnknownPanel = "unknown_panel"
	OutcomeSuppressed   = "suppressed"
)

// Outcome classifies the result for logs, the journal and metrics.
func (r Result) Outcome() string {
	switch {
	case r.Err == nil:
		return OutcomeSent
	case errors.Is(r.Err, ErrUnknownPanel):
		return OutcomeUnknownPanel
	case errors.Is(r.Err, ErrTransmitSuspended):
		return OutcomeSuppressed
	default:
		return OutcomeFailed
	}
}

// Observer receives send results.
type Observer func(Result)

// Stats counts send outcomes since start-up.
type Stats struct {
	Sent       uint64 `json:"sent"`
	Failed     uint64 `json:"failed"`
	Unknown    uint64 `json:"unknown_panel"`
	Suppressed uint64 `json:"suppressed"`
}

// Options configures a Dispatcher.
type Options struct {
	Logger Logger
	Gate   Gate
}

// Dispatcher sends packets over the radio link.
//
// Delivery is at-most-once and unacknowledged. A nil error from Send means
// the frame left the coordinator.
type Dispatcher struct {
	link     radio.Link
	registry *Registry
	logger   Logger
	gate     Gate

	obsMu     sync.RWMutex
	observers []Observer

	sent, failed, unknown, suppressed atomic.Uint64
}

// New creates a dispatcher over link using registry for unicast targets.
func New(link radio.Link, registry *Registry, opts Options) *Dispatcher {
	d := &Dispatcher{
		link:     link,
		registry: registry,
		logger:   opts.Logger,
		gate:     opts.Gate,
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d
}

// Observe registers an observer for send results.
func (d *Dispatcher) Observe(o Observer) {
	d.obsMu.Lock()
	d.observers = append(d.observers, o)
	d.obsMu.Unlock()
}

// Send transmits p. PanelID 0 goes to the broadcast address; any other id
// must be in the registry or ErrUnknownPanel is returned. Failed sends are
// not retried.
func (d *Dispatcher) Send(ctx context.Context, p protocol.Packet) error {
	if d.gate != nil && !d.gate.TransmitAllowed() {
		d.suppressed.Add(1)
		d.logger.Debug("dispatch suppressed", "panel", p.PanelID)
		d.notify(Result{Packet: p, Err: ErrTransmitSuspended, At: time.Now()})
		return ErrTransmitSuspended
	}

	dst, err := d.registry.Resolve(p.PanelID)
	if err != nil {
		d.unknown.Add(1)
		d.logger.Warn("dropping command for unknown panel", "panel", p.PanelID)
		d.notify(Result{Packet: p, Err: err, At: time.Now()})
		return err
	}

	err = d.link.Send(ctx, dst, p.Bytes())
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("radio send failed", "dst", dst.String(), "error", err)
	} else {
		d.sent.Add(1)
		d.logger.Debug("packet sent", "dst", dst.String(), "packet", p.String())
	}
	d.notify(Result{Packet: p, Dst: dst, Err: err, At: time.Now()})
	return err
}

func (d *Dispatcher) notify(r Result) {
	d.obsMu.RLock()
	obs := d.observers
	d.obsMu.RUnlock()
	for _, o := range obs {
		o(r)
	}
}

// CheckChannel compares the link's channel with the channel the panels are
// built for. A mismatch is logged as a warning and operation continues.
func (d *Dispatcher) CheckChannel(expected uint8) bool {
	actual := d.link.Channel()
	if actual == expected {
		d.logger.Info("radio channel verified", "channel", actual)
		return true
	}
	d.logger.Warn("radio channel mismatch, panels will not hear the coordinator",
		"expected", expected,
		"actual", actual,
	)
	return false
}

// Stats returns the send counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:       d.sent.Load(),
		Failed:     d.failed.Load(),
		Unknown:    d.unknown.Load(),
		Suppressed: d.suppressed.Load(),
	}
}

// Failures returns the number of sends that did not leave the coordinator.
func (d *Dispatcher) Failures() uint64 {
	return d.failed.Load() + d.unknown.Load()
}
