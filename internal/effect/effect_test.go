package effect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta25stage/stagelink/internal/protocol"
)

func allOn(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func TestInterval(t *testing.T) {
	tests := []struct {
		effect protocol.EffectType
		speed  uint8
		want   time.Duration
	}{
		{protocol.EffectStatic, 50, 0},
		{protocol.EffectBreathing, 0, 50 * time.Millisecond},
		{protocol.EffectBreathing, 50, 28 * time.Millisecond},
		{protocol.EffectBreathing, 100, 5 * time.Millisecond},
		{protocol.EffectWave, 0, 1000 * time.Millisecond},
		{protocol.EffectWave, 50, 550 * time.Millisecond},
		{protocol.EffectWave, 100, 100 * time.Millisecond},
		{protocol.EffectPulse, 0, 30 * time.Millisecond},
		{protocol.EffectPulse, 100, 5 * time.Millisecond},
		{protocol.EffectFadeIn, 200, 5 * time.Millisecond},
		{protocol.EffectFadeOut, 0, 50 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Interval(tt.effect, tt.speed), "%v at speed %d", tt.effect, tt.speed)
	}
}

func TestInterval_HigherSpeedIsNeverSlower(t *testing.T) {
	for _, e := range []protocol.EffectType{protocol.EffectBreathing, protocol.EffectWave, protocol.EffectPulse, protocol.EffectFadeIn} {
		prev := Interval(e, 0)
		for s := 1; s <= protocol.MaxSpeed; s++ {
			cur := Interval(e, uint8(s))
			assert.LessOrEqual(t, cur, prev, "%v speed %d", e, s)
			prev = cur
		}
	}
}

func TestStatic(t *testing.T) {
	fx := New(protocol.EffectStatic, 4)
	st := State{Enabled: []bool{true, false, true, false}, Brightness: 200}

	assert.Equal(t, []uint8{200, 0, 200, 0}, fx.Advance(st, 0))
	assert.Equal(t, []uint8{200, 0, 200, 0}, fx.Advance(st, time.Hour))
}

func TestBreathing_RampReflectsAndScales(t *testing.T) {
	fx := New(protocol.EffectBreathing, 1)
	st := State{Enabled: allOn(1), Brightness: 255, Speed: 100}
	step := Interval(protocol.EffectBreathing, 100)

	assert.Equal(t, []uint8{5}, fx.Advance(st, 0), "first advance steps immediately")

	var last uint8
	for i := 0; i < 50; i++ {
		last = fx.Advance(st, step)[0]
	}
	assert.Equal(t, uint8(255), last, "peak after 51 steps")

	assert.Equal(t, []uint8{250}, fx.Advance(st, step), "reflects at the top")

	// Half the ceiling halves the output.
	half := New(protocol.EffectBreathing, 1)
	st.Brightness = 128
	for i := 0; i < 51; i++ {
		last = half.Advance(st, step)[0]
	}
	assert.Equal(t, uint8(128), last)
}

func TestBreathing_NoStepBeforeInterval(t *testing.T) {
	fx := New(protocol.EffectBreathing, 1)
	st := State{Enabled: allOn(1), Brightness: 255, Speed: 0}

	fx.Advance(st, 0)
	assert.Equal(t, []uint8{5}, fx.Advance(st, 10*time.Millisecond))
	assert.Equal(t, []uint8{5}, fx.Advance(st, 30*time.Millisecond))
	assert.Equal(t, []uint8{10}, fx.Advance(st, 10*time.Millisecond), "50ms accumulated")
}

func TestWave_OneEnabledRegionPerStep(t *testing.T) {
	fx := New(protocol.EffectWave, 5)
	st := State{Enabled: []bool{true, false, true, true, false}, Brightness: 200, Speed: 100}
	step := Interval(protocol.EffectWave, 100)

	wantLit := []int{0, 2, 3, 0, 2}
	for i, want := range wantLit {
		elapsed := step
		if i == 0 {
			elapsed = 0
		}
		frame := fx.Advance(st, elapsed)

		lit := 0
		for r, v := range frame {
			if v != 0 {
				lit++
				assert.Equal(t, want, r, "step %d lit the wrong region", i)
				assert.Equal(t, uint8(200), v)
			}
		}
		assert.Equal(t, 1, lit, "step %d: %v", i, frame)
	}
}

func TestWave_SkipsRegionDisabledMidRun(t *testing.T) {
	fx := New(protocol.EffectWave, 3)
	st := State{Enabled: allOn(3), Brightness: 100, Speed: 100}
	step := Interval(protocol.EffectWave, 100)

	assert.Equal(t, []uint8{100, 0, 0}, fx.Advance(st, 0))

	st.Enabled = []bool{true, false, true}
	assert.Equal(t, []uint8{0, 0, 100}, fx.Advance(st, step))
}

func TestWave_NothingEnabled(t *testing.T) {
	fx := New(protocol.EffectWave, 3)
	st := State{Enabled: make([]bool, 3), Brightness: 100}
	assert.Equal(t, []uint8{0, 0, 0}, fx.Advance(st, 0))
}

func TestPulse_RawRangeAndAudio(t *testing.T) {
	st := State{Enabled: allOn(1), Brightness: 10, Speed: 100}
	step := Interval(protocol.EffectPulse, 100)

	fx := New(protocol.EffectPulse, 1)
	assert.Equal(t, []uint8{10}, fx.Advance(st, 0))
	for i := 0; i < 9; i++ {
		fx.Advance(st, step)
	}
	assert.Equal(t, []uint8{100}, fx.Advance(st, 0), "pulse ignores the brightness ceiling")

	st.AudioReactive = true
	st.AudioIntensity = 255
	assert.Equal(t, []uint8{100}, fx.Advance(st, 0), "full intensity keeps the pulse level")

	st.AudioIntensity = 1
	assert.Equal(t, []uint8{50}, fx.Advance(st, 0), "minimal intensity halves it")

	st.AudioIntensity = 128
	assert.Equal(t, []uint8{75}, fx.Advance(st, 0))

	st.AudioIntensity = 0
	assert.Equal(t, []uint8{100}, fx.Advance(st, 0), "zero intensity disables modulation")
}

func TestPulse_ReflectsAtTop(t *testing.T) {
	fx := New(protocol.EffectPulse, 1)
	st := State{Enabled: allOn(1), Speed: 100}
	step := Interval(protocol.EffectPulse, 100)

	var levels []uint8
	levels = append(levels, fx.Advance(st, 0)[0])
	for i := 0; i < 27; i++ {
		levels = append(levels, fx.Advance(st, step)[0])
	}
	assert.Equal(t, uint8(250), levels[24])
	assert.Equal(t, uint8(255), levels[25], "clamped at the bound")
	assert.Equal(t, uint8(245), levels[26])
}

func TestFadeIn_StopsAtTarget(t *testing.T) {
	fx := New(protocol.EffectFadeIn, 2)
	st := State{Enabled: []bool{true, false}, Brightness: 12, Speed: 100}
	step := Interval(protocol.EffectFadeIn, 100)

	assert.Equal(t, []uint8{5, 0}, fx.Advance(st, 0))
	assert.Equal(t, []uint8{10, 0}, fx.Advance(st, step))
	assert.Equal(t, []uint8{12, 0}, fx.Advance(st, step))
	assert.Equal(t, []uint8{12, 0}, fx.Advance(st, step))

	st.Brightness = 6
	assert.Equal(t, []uint8{12, 0}, fx.Advance(st, step), "never reverses")
}

func TestFadeOut_StopsAtZero(t *testing.T) {
	fx := New(protocol.EffectFadeOut, 1)
	st := State{Enabled: allOn(1), Speed: 100}
	step := Interval(protocol.EffectFadeOut, 100)

	assert.Equal(t, []uint8{250}, fx.Advance(st, 0))

	var last uint8
	for i := 0; i < 60; i++ {
		last = fx.Advance(st, step)[0]
	}
	assert.Equal(t, uint8(0), last)
}

func TestEngine_PulseToFadeInStartsFromZero(t *testing.T) {
	eng := NewEngine(1)
	step := Interval(protocol.EffectPulse, 100)

	st := State{Effect: protocol.EffectPulse, Epoch: 1, Enabled: allOn(1), Brightness: 255, Speed: 100}
	eng.Render(st, 0)
	for i := 0; i < 10; i++ {
		eng.Render(st, step)
	}
	require.Equal(t, uint8(110), eng.Last()[0])

	st.Effect = protocol.EffectFadeIn
	st.Epoch = 2
	assert.Equal(t, []uint8{5}, eng.Render(st, step), "fade restarts from 0, not from pulse's level")
	assert.Equal(t, protocol.EffectFadeIn, eng.Active())
}

func TestEngine_NewEpochResetsSameEffect(t *testing.T) {
	eng := NewEngine(1)
	step := Interval(protocol.EffectFadeOut, 100)
	st := State{Effect: protocol.EffectFadeOut, Epoch: 7, Enabled: allOn(1), Speed: 100}

	eng.Render(st, 0)
	eng.Render(st, step)
	require.Equal(t, uint8(245), eng.Last()[0])

	// Same epoch: keep ramping.
	assert.Equal(t, []uint8{240}, eng.Render(st, step))

	st.Epoch = 8
	assert.Equal(t, []uint8{250}, eng.Render(st, step))
}

func TestEngine_DisabledRegionsAlwaysZero(t *testing.T) {
	types := []protocol.EffectType{
		protocol.EffectStatic, protocol.EffectBreathing, protocol.EffectWave,
		protocol.EffectPulse, protocol.EffectFadeIn, protocol.EffectFadeOut,
	}
	for _, ft := range types {
		eng := NewEngine(4)
		st := State{Effect: ft, Enabled: []bool{false, true, false, true}, Brightness: 255, Speed: 100}
		for i := 0; i < 40; i++ {
			frame := eng.Render(st, 5*time.Millisecond)
			assert.Zero(t, frame[0], "%v region 0", ft)
			assert.Zero(t, frame[2], "%v region 2", ft)
		}
	}
}

func TestEngine_UnknownEffectRendersStatic(t *testing.T) {
	eng := NewEngine(2)
	frame := eng.Render(State{Effect: protocol.EffectType(42), Enabled: allOn(2), Brightness: 77}, 0)

	assert.Equal(t, []uint8{77, 77}, frame)
	assert.Equal(t, protocol.EffectStatic, eng.Active())
}
