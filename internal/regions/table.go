package regions

import (
	"fmt"
	"strings"
)

// MaxRegions is the number of addressable regions in the installation.
const MaxRegions = 20

// NumPanels is the number of panels in the installation. Panel ids run
// from 1 to NumPanels; id 0 is reserved for broadcast.
const NumPanels = 4

// Index identifies a region across the whole installation.
type Index uint8

// LocalIndex identifies a region within its owning panel.
type LocalIndex uint8

// Tag is a cross-panel group. Its numeric value is the groupId carried in
// show commands.
type Tag uint8

// Cross-panel groups.
const (
	Symbol Tag = iota
	Raavana
	RaavanaHead
	Continent

	numTags
)

var tagNames = [numTags]string{
	Symbol:      "SYMBOL",
	Raavana:     "RAAVANA",
	RaavanaHead: "RAAVANA_HEAD",
	Continent:   "CONTINENT",
}

// String returns the group name.
func (t Tag) String() string {
	if t >= numTags {
		return fmt.Sprintf("TAG(%d)", uint8(t))
	}
	return tagNames[t]
}

// LocalTag is a group confined to one panel.
type LocalTag uint8

// Panel-local groups.
const (
	Bull LocalTag = iota
	Bharathi
	Veena
	Dancer
	Valluvar
	RaavanaLocal

	numLocalTags

	// NoLocalGroup marks a region that belongs to no local group.
	NoLocalGroup LocalTag = 0xFF
)

var localTagNames = [numLocalTags]string{
	Bull:         "BULL",
	Bharathi:     "BHARATHI",
	Veena:        "VEENA",
	Dancer:       "DANCER",
	Valluvar:     "VALLUVAR",
	RaavanaLocal: "RAAVANA_LOCAL",
}

// String returns the group name.
func (t LocalTag) String() string {
	if t == NoLocalGroup {
		return "NONE"
	}
	if t >= numLocalTags {
		return fmt.Sprintf("LOCAL(%d)", uint8(t))
	}
	return localTagNames[t]
}

// Region describes one PWM-driven illumination zone.
type Region struct {
	Index       Index
	Panel       uint8
	Local       LocalIndex
	Name        string
	Pin         int   // GPIO number on the panel controller
	VerticalPos uint8 // top-to-bottom order within the panel
	LocalGroup  LocalTag
	tags        uint8 // bit per Tag
}

// HasTag reports whether the region belongs to the cross-panel group.
func (r Region) HasTag(t Tag) bool {
	return t < numTags && r.tags&(1<<t) != 0
}

// Tags returns the cross-panel groups the region belongs to, in tag order.
func (r Region) Tags() []Tag {
	var out []Tag
	for t := Tag(0); t < numTags; t++ {
		if r.HasTag(t) {
			out = append(out, t)
		}
	}
	return out
}

func tags(ts ...Tag) uint8 {
	var m uint8
	for _, t := range ts {
		m |= 1 << t
	}
	return m
}

// table is the installation layout. Panel order and local order must match
// the wiring of each panel controller.
var table = [MaxRegions]Region{
	// Panel 1
	{Index: 0, Panel: 1, Local: 0, Name: "BULL_SYMBOL", Pin: 25, VerticalPos: 0, LocalGroup: Bull, tags: tags(Symbol)},
	{Index: 1, Panel: 1, Local: 1, Name: "BULL_HEAD", Pin: 26, VerticalPos: 1, LocalGroup: Bull},
	{Index: 2, Panel: 1, Local: 2, Name: "BHARATHI_EYES", Pin: 27, VerticalPos: 2, LocalGroup: Bharathi},
	{Index: 3, Panel: 1, Local: 3, Name: "BHARATHI_SYMBOL", Pin: 14, VerticalPos: 3, LocalGroup: Bharathi, tags: tags(Symbol)},
	{Index: 4, Panel: 1, Local: 4, Name: "BHARATHI_CLOTH", Pin: 12, VerticalPos: 4, LocalGroup: Bharathi},

	// Panel 2
	{Index: 5, Panel: 2, Local: 0, Name: "CONTINENT_F", Pin: 25, VerticalPos: 0, LocalGroup: NoLocalGroup, tags: tags(Continent)},
	{Index: 6, Panel: 2, Local: 1, Name: "VEENA_SYMBOL", Pin: 26, VerticalPos: 1, LocalGroup: Veena, tags: tags(Symbol)},
	{Index: 7, Panel: 2, Local: 2, Name: "VEENA_REST", Pin: 27, VerticalPos: 2, LocalGroup: Veena},
	{Index: 8, Panel: 2, Local: 3, Name: "DANCER_SYMBOL", Pin: 14, VerticalPos: 3, LocalGroup: Dancer, tags: tags(Symbol)},
	{Index: 9, Panel: 2, Local: 4, Name: "DANCER_TOP", Pin: 12, VerticalPos: 4, LocalGroup: Dancer},
	{Index: 10, Panel: 2, Local: 5, Name: "DANCER_BOTTOM", Pin: 13, VerticalPos: 5, LocalGroup: Dancer},

	// Panel 3
	{Index: 11, Panel: 3, Local: 0, Name: "CONTINENT_U", Pin: 25, VerticalPos: 0, LocalGroup: NoLocalGroup, tags: tags(Continent)},
	{Index: 12, Panel: 3, Local: 1, Name: "RAAVANA_HEAD_P3", Pin: 26, VerticalPos: 1, LocalGroup: RaavanaLocal, tags: tags(Raavana, RaavanaHead)},
	{Index: 13, Panel: 3, Local: 2, Name: "VALLUVAR_SYMBOL", Pin: 27, VerticalPos: 2, LocalGroup: Valluvar, tags: tags(Symbol)},
	{Index: 14, Panel: 3, Local: 3, Name: "VALLUVAR_REST", Pin: 14, VerticalPos: 3, LocalGroup: Valluvar},
	{Index: 15, Panel: 3, Local: 4, Name: "CONTINENT_C", Pin: 12, VerticalPos: 4, LocalGroup: NoLocalGroup, tags: tags(Continent)},

	// Panel 4. RAAVANA_HEAD_SYMBOL is deliberately not in SYMBOL: the
	// symbol cue covers the five figure emblems only.
	{Index: 16, Panel: 4, Local: 0, Name: "RAAVANA_HEAD_SYMBOL", Pin: 25, VerticalPos: 0, LocalGroup: RaavanaLocal, tags: tags(Raavana, RaavanaHead)},
	{Index: 17, Panel: 4, Local: 1, Name: "RAAVANA_HEAD_REST", Pin: 26, VerticalPos: 1, LocalGroup: RaavanaLocal, tags: tags(Raavana, RaavanaHead)},
	{Index: 18, Panel: 4, Local: 2, Name: "RAAVANA_CORE", Pin: 27, VerticalPos: 2, LocalGroup: RaavanaLocal, tags: tags(Raavana)},
	{Index: 19, Panel: 4, Local: 3, Name: "RAAVANA_TORSO", Pin: 14, VerticalPos: 3, LocalGroup: RaavanaLocal, tags: tags(Raavana)},
}

// panelCounts is the number of regions wired to each panel, by panel id - 1.
var panelCounts = [NumPanels]int{5, 6, 5, 4}

func init() {
	if err := Validate(); err != nil {
		panic(fmt.Sprintf("regions: invalid static table: %v", err))
	}
}

// Validate checks the static table for layout errors.
//
// The table must hold exactly MaxRegions entries in global order, each
// panel must own one contiguous run of indices with local indices counting
// from zero, and per-panel counts must match the wiring.
func Validate() error {
	var errs []string

	counts := [NumPanels]int{}
	prevPanel := uint8(0)
	for i, r := range table {
		if int(r.Index) != i {
			errs = append(errs, fmt.Sprintf("entry %d has index %d", i, r.Index))
		}
		if r.Panel < 1 || r.Panel > NumPanels {
			errs = append(errs, fmt.Sprintf("region %d has invalid panel %d", i, r.Panel))
			continue
		}
		if r.Panel < prevPanel {
			errs = append(errs, fmt.Sprintf("region %d breaks panel order", i))
		}
		if r.Panel != prevPanel && r.Panel != prevPanel+1 {
			errs = append(errs, fmt.Sprintf("region %d skips panel %d", i, prevPanel+1))
		}
		if int(r.Local) != counts[r.Panel-1] {
			errs = append(errs, fmt.Sprintf("region %d has local index %d, want %d", i, r.Local, counts[r.Panel-1]))
		}
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("region %d has no name", i))
		}
		if r.LocalGroup != NoLocalGroup && r.LocalGroup >= numLocalTags {
			errs = append(errs, fmt.Sprintf("region %d has unknown local group %d", i, r.LocalGroup))
		}
		if r.tags>>numTags != 0 {
			errs = append(errs, fmt.Sprintf("region %d has unknown cross-panel tags", i))
		}
		counts[r.Panel-1]++
		prevPanel = r.Panel
	}

	for p, want := range panelCounts {
		if counts[p] != want {
			errs = append(errs, fmt.Sprintf("panel %d has %d regions, want %d", p+1, counts[p], want))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// All returns a copy of the region table in global order.
func All() []Region {
	out := make([]Region, len(table))
	copy(out, table[:])
	return out
}

// Lookup returns the region with the given global index.
func Lookup(i Index) (Region, bool) {
	if int(i) >= MaxRegions {
		return Region{}, false
	}
	return table[i], true
}
