package panel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ta25stage/stagelink/internal/effect"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/regions"
)

// ErrUnknownPanel is returned when the panel id is not in the region table.
var ErrUnknownPanel = errors.New("panel: unknown panel id")

// Logger is the logging interface the panel needs.
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

// State is an immutable snapshot of what the panel should be showing.
// A new State replaces the old one wholesale on every accepted packet.
type State struct {
	Packet protocol.Packet

	// Epoch increments whenever the effect type changes, telling the
	// renderer to restart the effect from its canonical values.
	Epoch uint64

	// AcceptedAt is zero until the first packet is accepted.
	AcceptedAt time.Time
	Sender     radio.Addr
}

// bootState is the idle state a panel starts in: static at the default
// brightness with all of its own regions enabled.
func bootState(layout regions.Layout) *State {
	var mask regions.Set
	for i := 0; i < layout.Count; i++ {
		mask = mask.Add(layout.Offset + regions.Index(i))
	}
	return &State{
		Packet: protocol.Packet{
			PanelID:    layout.Panel,
			Effect:     protocol.DefaultEffect,
			Brightness: protocol.DefaultBrightness,
			Speed:      protocol.DefaultSpeed,
			Regions:    mask,
		},
	}
}

// Render converts the state into effect input for a panel layout.
func (s *State) Render(layout regions.Layout) effect.State {
	enabled := make([]bool, layout.Count)
	for i := range enabled {
		enabled[i] = s.Packet.Regions.Has(layout.Offset + regions.Index(i))
	}
	return effect.State{
		Effect:         s.Packet.Effect,
		Epoch:          s.Epoch,
		Enabled:        enabled,
		Brightness:     s.Packet.Brightness,
		Speed:          s.Packet.Speed,
		AudioReactive:  s.Packet.AudioReactive,
		AudioIntensity: s.Packet.AudioIntensity,
	}
}

// ReceiverStats counts inbound packets by outcome.
type ReceiverStats struct {
	Accepted  uint64
	Ignored   uint64 // well-formed, addressed to another panel
	Malformed uint64 // wrong size
}

// Receiver validates inbound packets and publishes the panel state.
//
// Thread Safety: OnPacket and State may be called concurrently.
type Receiver struct {
	self   uint8
	layout regions.Layout
	logger Logger
	now    func() time.Time

	state atomic.Pointer[State]

	accepted, ignored, malformed atomic.Uint64
}

// NewReceiver creates the receiver for panel self in its boot state.
func NewReceiver(self uint8, logger Logger) (*Receiver, error) {
	layout, ok := regions.PanelLayout(self)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPanel, self)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Receiver{
		self:   self,
		layout: layout,
		logger: logger,
		now:    time.Now,
	}
	r.state.Store(bootState(layout))
	return r, nil
}

// OnPacket handles one inbound payload. It has the radio.Handler signature.
//
// The packet is accepted only if it decodes and is addressed to this panel
// or to all panels; anything else leaves the state untouched.
func (r *Receiver) OnPacket(payload []byte, from radio.Addr) {
	p, err := protocol.Decode(payload)
	if err != nil {
		r.malformed.Add(1)
		r.logger.Debug("packet dropped", "from", from.String(), "error", err)
		return
	}
	if !p.Addressed(r.self) {
		r.ignored.Add(1)
		return
	}

	now := r.now()
	for {
		prev := r.state.Load()
		next := &State{
			Packet:     p,
			Epoch:      prev.Epoch,
			AcceptedAt: now,
			Sender:     from,
		}
		if p.Effect != prev.Packet.Effect {
			next.Epoch++
		}
		if r.state.CompareAndSwap(prev, next) {
			break
		}
	}

	r.accepted.Add(1)
	r.logger.Debug("command accepted", "packet", p.String())
}

// State returns the current state snapshot. Callers must not modify it.
func (r *Receiver) State() *State {
	return r.state.Load()
}

// Layout returns the panel's region layout.
func (r *Receiver) Layout() regions.Layout {
	return r.layout
}

// Self returns the panel id.
func (r *Receiver) Self() uint8 {
	return r.self
}

// Stats returns packet counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Accepted:  r.accepted.Load(),
		Ignored:   r.ignored.Load(),
		Malformed: r.malformed.Load(),
	}
}
