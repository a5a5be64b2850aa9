package sequence

import (
	"fmt"
	"sort"
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
)

// Show ids of the compiled-in catalogue.
const (
	ShowSymbols uint8 = 1
	ShowRaavana uint8 = 2
	ShowFinale  uint8 = 3
)

var catalogue = []Show{
	{
		ID:   ShowSymbols,
		Name: "symbols",
		Steps: []Step{
			{Op: OpClear, Effect: protocol.EffectStatic, Brightness: 0, Speed: 50, Hold: 2 * time.Second},
			{Op: OpReplace, Select: Group(regions.Symbol), Effect: protocol.EffectFadeIn, Brightness: 255, Speed: 60, Hold: 4 * time.Second},
			{Op: OpReplace, Select: List(0, 1), Effect: protocol.EffectBreathing, Brightness: 200, Speed: 40, Hold: 6 * time.Second},
			{Op: OpAdd, Select: List(2, 3, 4), Effect: protocol.EffectBreathing, Brightness: 200, Speed: 40, Hold: 6 * time.Second},
			{Op: OpReplace, Select: List(6, 7), Effect: protocol.EffectStatic, Brightness: 180, Speed: 50, Hold: 5 * time.Second},
			{Op: OpAdd, Select: List(8, 9, 10), Effect: protocol.EffectWave, Brightness: 220, Speed: 70, Hold: 6 * time.Second},
			{Op: OpReplace, Select: List(13, 14), Effect: protocol.EffectStatic, Brightness: 200, Speed: 50, Hold: 5 * time.Second},
			{Op: OpAdd, Select: Group(regions.Continent), Effect: protocol.EffectBreathing, Brightness: 160, Speed: 30, Hold: 8 * time.Second},
			{Op: OpAdd, Select: Group(regions.Symbol), Effect: protocol.EffectFadeOut, Brightness: 255, Speed: 50, Hold: 4 * time.Second},
		},
	},
	{
		ID:   ShowRaavana,
		Name: "raavana",
		Steps: []Step{
			{Op: OpClear, Effect: protocol.EffectStatic, Brightness: 0, Speed: 50, Hold: 1 * time.Second},
			{Op: OpReplace, Select: Group(regions.RaavanaHead), Effect: protocol.EffectPulse, Brightness: 255, Speed: 80, Hold: 5 * time.Second},
			{Op: OpAdd, Select: Group(regions.Raavana), Effect: protocol.EffectPulse, Brightness: 255, Speed: 100, Hold: 5 * time.Second},
			{Op: OpReplace, Select: Group(regions.Raavana), Effect: protocol.EffectWave, Brightness: 255, Speed: 90, Hold: 6 * time.Second},
			{Op: OpReplace, Select: Group(regions.Raavana), Effect: protocol.EffectFadeOut, Brightness: 255, Speed: 30, Hold: 5 * time.Second},
		},
	},
	{
		ID:   ShowFinale,
		Name: "finale",
		Steps: []Step{
			{Op: OpAll, Effect: protocol.EffectFadeIn, Brightness: 255, Speed: 50, Hold: 5 * time.Second},
			{Op: OpAll, Effect: protocol.EffectWave, Brightness: 255, Speed: 100, Hold: 8 * time.Second},
			{Op: OpAll, Effect: protocol.EffectBreathing, Brightness: 255, Speed: 70, Hold: 8 * time.Second},
			{Op: OpAll, Effect: protocol.EffectStatic, Brightness: 255, Speed: 50, Hold: 3 * time.Second},
			{Op: OpAll, Effect: protocol.EffectFadeOut, Brightness: 255, Speed: 20, Hold: 6 * time.Second},
			{Op: OpClear, Effect: protocol.EffectStatic, Brightness: 0, Speed: 50},
		},
	},
}

func init() {
	seen := make(map[uint8]bool, len(catalogue))
	for _, s := range catalogue {
		if err := s.Validate(); err != nil {
			panic(fmt.Sprintf("sequence: invalid catalogue: %v", err))
		}
		if seen[s.ID] {
			panic(fmt.Sprintf("sequence: duplicate show id %d", s.ID))
		}
		seen[s.ID] = true
	}
}

// Catalogue returns the compiled-in shows ordered by id.
func Catalogue() []Show {
	out := make([]Show, len(catalogue))
	copy(out, catalogue)
	sortShows(out)
	return out
}

func sortShows(s []Show) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// Lookup finds a compiled-in show by id.
func Lookup(id uint8) (Show, bool) {
	for _, s := range catalogue {
		if s.ID == id {
			return s, true
		}
	}
	return Show{}, false
}
