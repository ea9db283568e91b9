// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListActivities handles GET /v1/activities/{player} requests.
func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_activities"
	activities, err := s.deps.ListActivities(r.Context(), chi.URLParam(r, "player"), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, activities)
}
