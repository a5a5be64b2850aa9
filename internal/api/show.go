package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/sequence"
)

// RegionView is one entry of the region table.
type RegionView struct {
	Index      int      `json:"index"`
	Panel      int      `json:"panel"`
	Local      int      `json:"local"`
	Name       string   `json:"name"`
	Pin        int      `json:"pin"`
	LocalGroup string   `json:"local_group"`
	Groups     []string `json:"groups"`
}

// GroupView is one cross-panel group.
type GroupView struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Regions []int  `json:"regions"`
}

// ShowSummary describes a show without its steps.
type ShowSummary struct {
	ID         uint8  `json:"id"`
	Name       string `json:"name"`
	Steps      int    `json:"steps"`
	DurationMS int64  `json:"duration_ms"`
	Running    bool   `json:"running"`
}

// StepView is one step with the mask it broadcasts.
type StepView struct {
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Regions    []int  `json:"regions"`
	Effect     string `json:"effect"`
	Brightness uint8  `json:"brightness"`
	Speed      uint8  `json:"speed"`
	HoldMS     int64  `json:"hold_ms"`
}

// ShowDetail is a show with its steps expanded.
type ShowDetail struct {
	ShowSummary
	Cues []StepView `json:"cues"`
}

// handleListRegions returns the region table, optionally for one panel.
func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	var panel int
	if v := r.URL.Query().Get("panel"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 || p > regions.NumPanels {
			writeBadRequest(w, "panel must be between 1 and "+strconv.Itoa(regions.NumPanels))
			return
		}
		panel = p
	}

	out := make([]RegionView, 0, regions.MaxRegions)
	for _, reg := range regions.All() {
		if panel != 0 && int(reg.Panel) != panel {
			continue
		}
		groups := []string{}
		for _, t := range reg.Tags() {
			groups = append(groups, t.String())
		}
		out = append(out, RegionView{
			Index:      int(reg.Index),
			Panel:      int(reg.Panel),
			Local:      int(reg.Local),
			Name:       reg.Name,
			Pin:        reg.Pin,
			LocalGroup: reg.LocalGroup.String(),
			Groups:     groups,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"regions": out,
		"count":   len(out),
	})
}

// handleListGroups returns every cross-panel group with its members.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	tags := regions.Tags()
	out := make([]GroupView, 0, len(tags))
	for _, t := range tags {
		out = append(out, GroupView{
			ID:      int(t),
			Name:    t.String(),
			Regions: indexList(regions.ByGroup(t)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

// handleListSequences returns the show catalogue.
func (s *Server) handleListSequences(w http.ResponseWriter, _ *http.Request) {
	shows := s.catalogue()
	out := make([]ShowSummary, 0, len(shows))
	for _, sh := range shows {
		out = append(out, s.summary(sh))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sequences": out,
		"count":     len(out),
	})
}

// handleGetSequence returns one show with the mask each step broadcasts.
func (s *Server) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id > 255 {
		writeBadRequest(w, "sequence id must be between 0 and 255")
		return
	}

	for _, sh := range s.catalogue() {
		if int(sh.ID) != id {
			continue
		}
		detail := ShowDetail{ShowSummary: s.summary(sh), Cues: make([]StepView, 0, len(sh.Steps))}
		var mask regions.Set
		for i, st := range sh.Steps {
			mask = st.Apply(mask)
			detail.Cues = append(detail.Cues, StepView{
				Step:       i,
				Op:         st.Op.String(),
				Regions:    indexList(mask.Indices()),
				Effect:     st.Effect.String(),
				Brightness: st.Brightness,
				Speed:      st.Speed,
				HoldMS:     st.Hold.Milliseconds(),
			})
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}

	writeNotFound(w, "sequence not found")
}

// catalogue returns the orchestrator's shows, or the compiled-in
// catalogue when no orchestrator is wired.
func (s *Server) catalogue() []sequence.Show {
	if s.shows != nil {
		return s.shows.Shows()
	}
	return sequence.Catalogue()
}

func (s *Server) summary(sh sequence.Show) ShowSummary {
	running := s.shows != nil && s.shows.Running() && s.shows.Current() == sh.ID
	return ShowSummary{
		ID:         sh.ID,
		Name:       sh.Name,
		Steps:      len(sh.Steps),
		DurationMS: sh.Duration().Milliseconds(),
		Running:    running,
	}
}

func indexList(idx []regions.Index) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
