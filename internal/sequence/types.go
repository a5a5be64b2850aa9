package sequence

import (
	"fmt"
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
)

// Op is how a step changes the region mask.
type Op uint8

// Region operations.
const (
	OpReplace Op = iota // mask = selection
	OpAdd               // mask |= selection
	OpClear             // mask = none
	OpAll               // mask = every region
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpReplace:
		return "replace"
	case OpAdd:
		return "add"
	case OpClear:
		return "clear"
	case OpAll:
		return "all"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Selection picks regions either by cross-panel group or by explicit list.
type Selection struct {
	Group   *regions.Tag
	Regions []regions.Index
}

// Group selects every region of a cross-panel group.
func Group(t regions.Tag) Selection {
	return Selection{Group: &t}
}

// List selects the given regions.
func List(idx ...regions.Index) Selection {
	return Selection{Regions: idx}
}

// Set returns the selected regions as a mask.
func (s Selection) Set() regions.Set {
	if s.Group != nil {
		return regions.GroupSet(*s.Group)
	}
	return regions.SetOf(s.Regions...)
}

// Step is one cue of a show.
type Step struct {
	Op         Op                  `json:"op"`
	Select     Selection           `json:"-"`
	Effect     protocol.EffectType `json:"effect"`
	Brightness uint8               `json:"brightness"`
	Speed      uint8               `json:"speed"`
	Hold       time.Duration       `json:"hold"`
}

// Apply returns the mask after this step's region operation.
func (s Step) Apply(mask regions.Set) regions.Set {
	switch s.Op {
	case OpReplace:
		return s.Select.Set()
	case OpAdd:
		return mask.Union(s.Select.Set())
	case OpClear:
		return 0
	case OpAll:
		return regions.AllRegions
	default:
		return mask
	}
}

// groupID is the group carried in the packet for a group selection.
func (s Step) groupID() uint8 {
	if s.Select.Group != nil {
		return uint8(*s.Select.Group)
	}
	return 0
}

// Show is a named, ordered list of steps.
type Show struct {
	ID    uint8  `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Duration is the sum of all holds.
func (s Show) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Hold
	}
	return d
}

// Validate checks that the show can be broadcast.
func (s Show) Validate() error {
	if s.ID == 0 {
		return fmt.Errorf("%w: id 0 is reserved", ErrInvalidShow)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: show %d has no name", ErrInvalidShow, s.ID)
	}
	if len(s.Steps) == 0 || len(s.Steps) > 255 {
		return fmt.Errorf("%w: show %d has %d steps", ErrInvalidShow, s.ID, len(s.Steps))
	}
	for i, st := range s.Steps {
		if st.Op > OpAll {
			return fmt.Errorf("%w: show %d step %d: unknown op %d", ErrInvalidShow, s.ID, i, st.Op)
		}
		if !st.Effect.Valid() {
			return fmt.Errorf("%w: show %d step %d: unknown effect %d", ErrInvalidShow, s.ID, i, st.Effect)
		}
		if st.Speed > protocol.MaxSpeed {
			return fmt.Errorf("%w: show %d step %d: speed %d", ErrInvalidShow, s.ID, i, st.Speed)
		}
		if st.Hold < 0 {
			return fmt.Errorf("%w: show %d step %d: negative hold", ErrInvalidShow, s.ID, i)
		}
	}
	return nil
}
