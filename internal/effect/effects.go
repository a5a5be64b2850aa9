package effect

import (
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
)

// Ramp steps and bounds.
const (
	breathingStep = 5
	pulseStep     = 10
	fadeStep      = 5
	maxLevel      = 255
)

// State is what an effect renders from: the active command as seen by one
// panel, in local region order.
type State struct {
	Effect protocol.EffectType

	// Epoch changes whenever the effect must restart from its canonical
	// values, even if Effect is unchanged.
	Epoch uint64

	Enabled        []bool
	Brightness     uint8
	Speed          uint8
	AudioReactive  bool
	AudioIntensity uint8
}

// Effect is one rendering state machine.
type Effect interface {
	// Type returns the effect this variant renders.
	Type() protocol.EffectType

	// Advance moves the animation by elapsed and returns a level per
	// region. The returned slice is owned by the caller.
	Advance(st State, elapsed time.Duration) []uint8
}

// New returns a freshly reset effect for t. Unknown types render as static.
func New(t protocol.EffectType, regions int) Effect {
	switch t {
	case protocol.EffectBreathing:
		return &breathing{regions: regions, dir: 1}
	case protocol.EffectWave:
		return &wave{regions: regions, active: -1}
	case protocol.EffectPulse:
		return &pulse{regions: regions, dir: 1}
	case protocol.EffectFadeIn:
		return &fadeIn{regions: regions}
	case protocol.EffectFadeOut:
		return &fadeOut{regions: regions, level: maxLevel}
	default:
		return &static{regions: regions}
	}
}

// fill sets every enabled region to level and the rest to 0.
func fill(n int, enabled []bool, level uint8) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		if i < len(enabled) && enabled[i] {
			out[i] = level
		}
	}
	return out
}

func scale(level int, ceiling uint8) uint8 {
	return uint8(linearMap(level, 0, maxLevel, 0, int(ceiling)))
}

// ─── STATIC ────────────────────────────────────────────────────────

type static struct {
	regions int
}

func (s *static) Type() protocol.EffectType { return protocol.EffectStatic }

func (s *static) Advance(st State, _ time.Duration) []uint8 {
	return fill(s.regions, st.Enabled, st.Brightness)
}

// ─── BREATHING ─────────────────────────────────────────────────────

type breathing struct {
	regions int
	tick    cadence
	level   int
	dir     int
}

func (b *breathing) Type() protocol.EffectType { return protocol.EffectBreathing }

func (b *breathing) Advance(st State, elapsed time.Duration) []uint8 {
	if b.tick.due(elapsed, Interval(protocol.EffectBreathing, st.Speed)) {
		b.level, b.dir = triangle(b.level, b.dir, breathingStep)
	}
	return fill(b.regions, st.Enabled, scale(b.level, st.Brightness))
}

// triangle advances a ramp that reflects at 0 and maxLevel.
func triangle(level, dir, step int) (int, int) {
	level += dir * step
	switch {
	case level >= maxLevel:
		return maxLevel, -1
	case level <= 0:
		return 0, 1
	default:
		return level, dir
	}
}

// ─── WAVE ──────────────────────────────────────────────────────────

type wave struct {
	regions int
	tick    cadence
	active  int // region lit on the next step, -1 before the first step
	frame   []uint8
}

func (w *wave) Type() protocol.EffectType { return protocol.EffectWave }

func (w *wave) Advance(st State, elapsed time.Duration) []uint8 {
	if w.tick.due(elapsed, Interval(protocol.EffectWave, st.Speed)) {
		w.step(st)
	}
	if w.frame == nil {
		return make([]uint8, w.regions)
	}
	out := make([]uint8, w.regions)
	copy(out, w.frame)
	return out
}

func (w *wave) step(st State) {
	w.frame = make([]uint8, w.regions)
	if w.regions == 0 {
		return
	}
	if w.active < 0 || !enabledAt(st.Enabled, w.active) {
		w.active = w.next(st.Enabled, w.active)
	}
	if !enabledAt(st.Enabled, w.active) {
		return
	}
	w.frame[w.active] = st.Brightness
	w.active = w.next(st.Enabled, w.active)
}

// next returns the next enabled region after from, wrapping around. It
// returns from unchanged when no other region is enabled.
func (w *wave) next(enabled []bool, from int) int {
	for k := 1; k <= w.regions; k++ {
		j := (from + k) % w.regions
		if enabledAt(enabled, j) {
			return j
		}
	}
	if from < 0 {
		return 0
	}
	return from
}

func enabledAt(enabled []bool, i int) bool {
	return i >= 0 && i < len(enabled) && enabled[i]
}

// ─── PULSE ─────────────────────────────────────────────────────────

type pulse struct {
	regions int
	tick    cadence
	level   int
	dir     int
}

func (p *pulse) Type() protocol.EffectType { return protocol.EffectPulse }

func (p *pulse) Advance(st State, elapsed time.Duration) []uint8 {
	if p.tick.due(elapsed, Interval(protocol.EffectPulse, st.Speed)) {
		p.level, p.dir = triangle(p.level, p.dir, pulseStep)
	}
	level := p.level
	if st.AudioReactive && st.AudioIntensity > 0 {
		level = linearMap(int(st.AudioIntensity), 0, maxLevel, level/2, level)
	}
	return fill(p.regions, st.Enabled, uint8(level))
}

// ─── FADE_IN / FADE_OUT ────────────────────────────────────────────

type fadeIn struct {
	regions int
	tick    cadence
	level   int
}

func (f *fadeIn) Type() protocol.EffectType { return protocol.EffectFadeIn }

// Advance ramps toward the configured brightness. A lowered target stops
// the ramp where it is; the level never moves down.
func (f *fadeIn) Advance(st State, elapsed time.Duration) []uint8 {
	if f.tick.due(elapsed, Interval(protocol.EffectFadeIn, st.Speed)) {
		target := int(st.Brightness)
		if f.level < target {
			f.level += fadeStep
			if f.level > target {
				f.level = target
			}
		}
	}
	return fill(f.regions, st.Enabled, uint8(f.level))
}

type fadeOut struct {
	regions int
	tick    cadence
	level   int
}

func (f *fadeOut) Type() protocol.EffectType { return protocol.EffectFadeOut }

func (f *fadeOut) Advance(st State, elapsed time.Duration) []uint8 {
	if f.tick.due(elapsed, Interval(protocol.EffectFadeOut, st.Speed)) {
		if f.level > 0 {
			f.level -= fadeStep
			if f.level < 0 {
				f.level = 0
			}
		}
	}
	return fill(f.regions, st.Enabled, uint8(f.level))
}
