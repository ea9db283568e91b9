// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/vigil/internal/adapters/docstore"
)

// handleListViolations handles GET /v1/violations/{player} requests.
func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_violations"
	violations, err := s.deps.ListViolations(r.Context(), chi.URLParam(r, "player"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, violations)
}

// handleResolveViolation handles POST /v1/violations/{id}/resolve requests.
func (s *Server) handleResolveViolation(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_violation"
	violation, err := s.deps.ResolveViolation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", wrapOp(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, violation)
}
