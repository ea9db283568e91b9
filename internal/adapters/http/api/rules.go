// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/okian/vigil/internal/adapters/docstore"
	"github.com/okian/vigil/internal/domain/model"
)

// ruleRequest mirrors the OpenAPI schema for POST /v1/rules.
type ruleRequest struct {
	ID            string                       `json:"id,omitempty"`
	Name          string                       `json:"name"`
	Description   string                       `json:"description,omitempty"`
	GameID        string                       `json:"gameId,omitempty"`
	Action        string                       `json:"action"`
	Threshold     int                          `json:"threshold,omitempty"`
	WindowSeconds int                          `json:"windowSeconds,omitempty"`
	Normals       map[string]model.NormalRange `json:"normals,omitempty"`
	Severity      string                       `json:"severity,omitempty"`
	Active        *bool                        `json:"active,omitempty"`
}

func (rr ruleRequest) validate() error {
	switch {
	case strings.TrimSpace(rr.Name) == "":
		return fmt.Errorf("%w: missing name", ErrBadRequest)
	case strings.TrimSpace(rr.Action) == "":
		return fmt.Errorf("%w: missing action", ErrBadRequest)
	}
	if rr.Threshold < 0 || rr.WindowSeconds < 0 {
		return fmt.Errorf("%w: threshold and windowSeconds must not be negative", ErrBadRequest)
	}
	return nil
}

type rulePatch struct {
	Active *bool `json:"active"`
}

// handlePostRule handles POST /v1/rules requests.
func (s *Server) handlePostRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rule"
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule, err := s.deps.UpsertRule(r.Context(), model.Rule{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		GameID:        req.GameID,
		Action:        req.Action,
		Threshold:     req.Threshold,
		WindowSeconds: req.WindowSeconds,
		Normals:       req.Normals,
		Severity:      req.Severity,
		Active:        active,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// handleListRules handles GET /v1/rules requests.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_rules"
	rules, err := s.deps.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleGetRule handles GET /v1/rules/{id} requests.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rule"
	rule, err := s.deps.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", wrapOp(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule handles DELETE /v1/rules/{id} requests.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_rule"
	if err := s.deps.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchRule handles PATCH /v1/rules/{id} requests. Only the active
// flag is patchable; everything else goes through a full upsert.
func (s *Server) handlePatchRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_rule"
	var patch rulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}
	if patch.Active == nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, fmt.Errorf("%w: missing active", ErrBadRequest)))
		return
	}

	rule, err := s.deps.SetRuleActive(r.Context(), chi.URLParam(r, "id"), *patch.Active)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", wrapOp(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
