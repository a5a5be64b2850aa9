package regions

import (
	"fmt"
	"strings"
)

// ByGroup returns the global indices of every region in the cross-panel
// group, in ascending order. An unknown or empty group yields an empty
// slice.
func ByGroup(t Tag) []Index {
	out := []Index{}
	for _, r := range table {
		if r.HasTag(t) {
			out = append(out, r.Index)
		}
	}
	return out
}

// Tags returns every cross-panel group in id order.
func Tags() []Tag {
	out := make([]Tag, 0, numTags)
	for t := Tag(0); t < numTags; t++ {
		out = append(out, t)
	}
	return out
}

// TagByID maps a groupId from a show command to a cross-panel group.
func TagByID(id int) (Tag, bool) {
	if id < 0 || id >= int(numTags) {
		return 0, false
	}
	return Tag(id), true
}

// ParseTag resolves a group name such as "symbol" or "RAAVANA_HEAD".
func ParseTag(name string) (Tag, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for t := Tag(0); t < numTags; t++ {
		if tagNames[t] == n {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown region group %q", name)
}

// Layout is one panel's slice of the region table.
type Layout struct {
	Panel  uint8
	Offset Index
	Count  int
}

// PanelLayout returns the layout of the panel with the given id (1-based).
func PanelLayout(panel uint8) (Layout, bool) {
	if panel < 1 || panel > NumPanels {
		return Layout{}, false
	}
	offset := 0
	for p := 0; p < int(panel)-1; p++ {
		offset += panelCounts[p]
	}
	return Layout{Panel: panel, Offset: Index(offset), Count: panelCounts[panel-1]}, true
}

// PanelIDs returns every panel id in ascending order.
func PanelIDs() []uint8 {
	ids := make([]uint8, NumPanels)
	for i := range ids {
		ids[i] = uint8(i + 1)
	}
	return ids
}

// Contains reports whether the global index belongs to this panel.
func (l Layout) Contains(i Index) bool {
	return i >= l.Offset && int(i) < int(l.Offset)+l.Count
}

// Global converts a local index on this panel to its global index.
func (l Layout) Global(li LocalIndex) (Index, bool) {
	if int(li) >= l.Count {
		return 0, false
	}
	return l.Offset + Index(li), true
}

// Local converts a global index to this panel's local index.
func (l Layout) Local(i Index) (LocalIndex, bool) {
	if !l.Contains(i) {
		return 0, false
	}
	return LocalIndex(i - l.Offset), true
}

// Regions returns this panel's regions in local order.
func (l Layout) Regions() []Region {
	out := make([]Region, l.Count)
	copy(out, table[int(l.Offset):int(l.Offset)+l.Count])
	return out
}

// LocalGroup returns the local indices of this panel's regions in the
// panel-local group, ascending. The result is empty when the group has no
// members on this panel.
func (l Layout) LocalGroup(t LocalTag) []LocalIndex {
	out := []LocalIndex{}
	for _, r := range l.Regions() {
		if r.LocalGroup == t {
			out = append(out, r.Local)
		}
	}
	return out
}

// Set is a bit-per-region selection over global indices.
type Set uint32

// AllRegions is the set of every region in the installation.
const AllRegions Set = 1<<MaxRegions - 1

// SetOf builds a set from indices. Indices outside the table are ignored.
func SetOf(indices ...Index) Set {
	var s Set
	for _, i := range indices {
		s = s.Add(i)
	}
	return s
}

// GroupSet returns the set of regions in a cross-panel group.
func GroupSet(t Tag) Set {
	return SetOf(ByGroup(t)...)
}

// Add returns s with i enabled.
func (s Set) Add(i Index) Set {
	if int(i) >= MaxRegions {
		return s
	}
	return s | 1<<i
}

// Has reports whether i is enabled.
func (s Set) Has(i Index) bool {
	return int(i) < MaxRegions && s&(1<<i) != 0
}

// Union returns the regions enabled in either set.
func (s Set) Union(o Set) Set {
	return (s | o) & AllRegions
}

// Count returns the number of enabled regions.
func (s Set) Count() int {
	n := 0
	for i := Index(0); i < MaxRegions; i++ {
		if s.Has(i) {
			n++
		}
	}
	return n
}

// Indices returns the enabled regions in ascending order.
func (s Set) Indices() []Index {
	out := []Index{}
	for i := Index(0); i < MaxRegions; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}
