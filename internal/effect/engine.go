package effect

import (
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
)

// Engine renders frames for one panel. It is not safe for concurrent use;
// the panel's render loop owns it.
type Engine struct {
	regions int
	active  Effect
	epoch   uint64
	last    []uint8
}

// NewEngine creates an engine for a panel with the given region count.
func NewEngine(regions int) *Engine {
	return &Engine{regions: regions, last: make([]uint8, regions)}
}

// Render advances the active effect and returns the frame to actuate.
//
// When st names a different effect type, or carries a new epoch, the active
// variant is replaced by a freshly reset one before advancing.
func (e *Engine) Render(st State, elapsed time.Duration) []uint8 {
	t := st.Effect
	if !t.Valid() {
		t = protocol.EffectStatic
	}
	if e.active == nil || e.active.Type() != t || e.epoch != st.Epoch {
		e.active = New(t, e.regions)
		e.epoch = st.Epoch
	}

	frame := e.active.Advance(st, elapsed)
	for i := range frame {
		if !enabledAt(st.Enabled, i) {
			frame[i] = 0
		}
	}
	e.last = frame

	out := make([]uint8, len(frame))
	copy(out, frame)
	return out
}

// Active returns the effect type currently being rendered.
func (e *Engine) Active() protocol.EffectType {
	if e.active == nil {
		return protocol.EffectStatic
	}
	return e.active.Type()
}

// Last returns a copy of the most recent frame.
func (e *Engine) Last() []uint8 {
	out := make([]uint8, len(e.last))
	copy(out, e.last)
	return out
}
