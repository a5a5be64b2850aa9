package regions

import (
	"reflect"
	"testing"
)

func TestValidate_StaticTable(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestByGroup(t *testing.T) {
	tests := []struct {
		tag  Tag
		want []Index
	}{
		{Symbol, []Index{0, 3, 6, 8, 13}},
		{RaavanaHead, []Index{12, 16, 17}},
		{Raavana, []Index{12, 16, 17, 18, 19}},
		{Continent, []Index{5, 11, 15}},
	}

	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			got := ByGroup(tt.tag)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ByGroup(%v) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestByGroup_StableAndAscending(t *testing.T) {
	first := ByGroup(Symbol)
	for i := 0; i < 10; i++ {
		got := ByGroup(Symbol)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("ByGroup(Symbol) changed between calls: %v vs %v", got, first)
		}
	}
	if len(first) != 5 {
		t.Errorf("len(ByGroup(Symbol)) = %d, want 5", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i] <= first[i-1] {
			t.Errorf("ByGroup(Symbol) not ascending at %d: %v", i, first)
		}
	}
}

func TestByGroup_UnknownTagIsEmpty(t *testing.T) {
	got := ByGroup(Tag(42))
	if got == nil || len(got) != 0 {
		t.Errorf("ByGroup(unknown) = %#v, want empty non-nil slice", got)
	}
}

func TestTagByID(t *testing.T) {
	if tag, ok := TagByID(3); !ok || tag != Continent {
		t.Errorf("TagByID(3) = %v, %v; want CONTINENT, true", tag, ok)
	}
	if _, ok := TagByID(4); ok {
		t.Error("TagByID(4) ok = true, want false")
	}
	if _, ok := TagByID(-1); ok {
		t.Error("TagByID(-1) ok = true, want false")
	}
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag(" raavana_head ")
	if err != nil {
		t.Fatalf("ParseTag() error = %v", err)
	}
	if tag != RaavanaHead {
		t.Errorf("ParseTag() = %v, want RAAVANA_HEAD", tag)
	}
	if _, err := ParseTag("BULL"); err == nil {
		t.Error("ParseTag(BULL) expected error: BULL is a panel-local group")
	}
}

func TestPanelLayout(t *testing.T) {
	tests := []struct {
		panel  uint8
		offset Index
		count  int
	}{
		{1, 0, 5},
		{2, 5, 6},
		{3, 11, 5},
		{4, 16, 4},
	}

	total := 0
	for _, tt := range tests {
		l, ok := PanelLayout(tt.panel)
		if !ok {
			t.Fatalf("PanelLayout(%d) ok = false", tt.panel)
		}
		if l.Offset != tt.offset || l.Count != tt.count {
			t.Errorf("PanelLayout(%d) = %+v, want offset %d count %d", tt.panel, l, tt.offset, tt.count)
		}
		total += l.Count
	}
	if total != MaxRegions {
		t.Errorf("panel counts sum to %d, want %d", total, MaxRegions)
	}

	if _, ok := PanelLayout(0); ok {
		t.Error("PanelLayout(0) ok = true, want false")
	}
	if _, ok := PanelLayout(5); ok {
		t.Error("PanelLayout(5) ok = true, want false")
	}
}

func TestPanelIDs(t *testing.T) {
	ids := PanelIDs()
	if len(ids) != NumPanels {
		t.Fatalf("len(PanelIDs()) = %d, want %d", len(ids), NumPanels)
	}
	for i, id := range ids {
		if _, ok := PanelLayout(id); !ok {
			t.Errorf("PanelIDs()[%d] = %d has no layout", i, id)
		}
	}
}

func TestLayout_LocalGlobalConversion(t *testing.T) {
	l, _ := PanelLayout(2)

	li, ok := l.Local(7)
	if !ok || li != 2 {
		t.Errorf("Local(7) = %d, %v; want 2, true", li, ok)
	}
	if _, ok := l.Local(4); ok {
		t.Error("Local(4) on panel 2 ok = true, want false")
	}

	gi, ok := l.Global(5)
	if !ok || gi != 10 {
		t.Errorf("Global(5) = %d, %v; want 10, true", gi, ok)
	}
	if _, ok := l.Global(6); ok {
		t.Error("Global(6) on panel 2 ok = true, want false")
	}
}

func TestLayout_LocalGroup(t *testing.T) {
	p2, _ := PanelLayout(2)
	if got, want := p2.LocalGroup(Dancer), []LocalIndex{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("panel 2 LocalGroup(DANCER) = %v, want %v", got, want)
	}
	if got := p2.LocalGroup(Bull); len(got) != 0 {
		t.Errorf("panel 2 LocalGroup(BULL) = %v, want empty", got)
	}

	p4, _ := PanelLayout(4)
	if got, want := p4.LocalGroup(RaavanaLocal), []LocalIndex{0, 1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("panel 4 LocalGroup(RAAVANA_LOCAL) = %v, want %v", got, want)
	}
}

func TestSet(t *testing.T) {
	s := SetOf(0, 3, 19, 25)
	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3 (index 25 is out of range)", s.Count())
	}
	if !s.Has(19) || s.Has(1) {
		t.Errorf("Has() mismatch for %b", s)
	}
	if got, want := s.Indices(), []Index{0, 3, 19}; !reflect.DeepEqual(got, want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}

	u := s.Union(GroupSet(Continent))
	if got, want := u.Indices(), []Index{0, 3, 5, 11, 15, 19}; !reflect.DeepEqual(got, want) {
		t.Errorf("Union().Indices() = %v, want %v", got, want)
	}

	if AllRegions.Count() != MaxRegions {
		t.Errorf("AllRegions.Count() = %d, want %d", AllRegions.Count(), MaxRegions)
	}
}
