package api

import (
	"net/http"
	"strconv"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/journal"
)

// validOutcomes are the outcome filters the journal accepts.
var validOutcomes = map[string]bool{
	dispatch.OutcomeSent:         true,
	dispatch.OutcomeFailed:       true,
	dispatch.OutcomeUnknownPanel: true,
	dispatch.OutcomeSuppressed:   true,
}

// handleListJournal returns recent dispatch journal entries.
//
// Query parameters:
//   - panel: panel id, 0 for broadcasts
//   - outcome: sent, failed, unknown_panel or suppressed
//   - limit, offset: pagination
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "dispatch journal is disabled")
		return
	}

	q := r.URL.Query()
	var filter journal.Filter

	if v := q.Get("panel"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 || id > 255 {
			writeBadRequest(w, "panel must be between 0 and 255")
			return
		}
		filter.PanelID = &id
	}
	if v := q.Get("outcome"); v != "" {
		if !validOutcomes[v] {
			writeBadRequest(w, "unknown outcome: "+v)
			return
		}
		filter.Outcome = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list dispatch journal", "error", err)
		writeInternalError(w, "failed to list dispatch journal")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
