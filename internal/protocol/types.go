package protocol

import (
	"fmt"
	"strings"
)

// EffectType selects the rendering state machine on the panel.
type EffectType uint8

// Effect types, in wire order.
const (
	EffectStatic EffectType = iota
	EffectBreathing
	EffectWave
	EffectPulse
	EffectFadeIn
	EffectFadeOut

	numEffects
)

var effectNames = [numEffects]string{
	EffectStatic:    "static",
	EffectBreathing: "breathing",
	EffectWave:      "wave",
	EffectPulse:     "pulse",
	EffectFadeIn:    "fade_in",
	EffectFadeOut:   "fade_out",
}

// Valid reports whether e is a known effect.
func (e EffectType) Valid() bool {
	return e < numEffects
}

// String returns the effect name.
func (e EffectType) String() string {
	if !e.Valid() {
		return fmt.Sprintf("effect(%d)", uint8(e))
	}
	return effectNames[e]
}

// ParseEffect resolves an effect by name ("pulse", "fade-in") or number.
func ParseEffect(s string) (EffectType, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for e := EffectType(0); e < numEffects; e++ {
		if effectNames[e] == n {
			return e, nil
		}
	}
	var v int
	if _, err := fmt.Sscanf(n, "%d", &v); err == nil && v >= 0 && v < int(numEffects) {
		return EffectType(v), nil
	}
	return 0, fmt.Errorf("unknown effect %q", s)
}

// Mode tells the coordinator how a command selects its regions.
type Mode uint8

// Command modes.
const (
	ModeDirect   Mode = 0 // explicit region list
	ModeSequence Mode = 1 // run a predefined show
	ModeGroup    Mode = 2 // cross-panel group by groupId
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeSequence:
		return "sequence"
	case ModeGroup:
		return "group"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Defaults applied by Encode when a request leaves a field unset.
const (
	DefaultBrightness = 128
	DefaultSpeed      = 50
	DefaultEffect     = EffectStatic

	MaxSpeed = 100
)

// BroadcastPanel is the panelId that addresses every panel.
const BroadcastPanel = 0
