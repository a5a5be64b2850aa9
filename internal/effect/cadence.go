package effect

import (
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
)

// Update intervals in milliseconds at speed 0 and speed 100.
var intervalRange = map[protocol.EffectType][2]int{
	protocol.EffectBreathing: {50, 5},
	protocol.EffectWave:      {1000, 100},
	protocol.EffectPulse:     {30, 5},
	protocol.EffectFadeIn:    {50, 5},
	protocol.EffectFadeOut:   {50, 5},
}

// Interval returns the step interval of an effect at the given speed.
// Static has no cadence and returns 0. Speeds above 100 are treated as 100.
func Interval(t protocol.EffectType, speed uint8) time.Duration {
	r, ok := intervalRange[t]
	if !ok {
		return 0
	}
	s := int(speed)
	if s > protocol.MaxSpeed {
		s = protocol.MaxSpeed
	}
	return time.Duration(linearMap(s, 0, protocol.MaxSpeed, r[0], r[1])) * time.Millisecond
}

// linearMap re-maps v from [inLo, inHi] onto [outLo, outHi] with integer
// arithmetic truncating toward zero.
func linearMap(v, inLo, inHi, outLo, outHi int) int {
	return (v-inLo)*(outHi-outLo)/(inHi-inLo) + outLo
}

// cadence gates steps to one per interval. The first call always steps.
type cadence struct {
	started bool
	acc     time.Duration
}

func (c *cadence) due(elapsed, interval time.Duration) bool {
	if !c.started {
		c.started = true
		c.acc = 0
		return true
	}
	c.acc += elapsed
	if c.acc >= interval {
		c.acc = 0
		return true
	}
	return false
}
