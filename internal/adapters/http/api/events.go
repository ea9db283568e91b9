// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/okian/vigil/internal/adapters/docstore"
	"github.com/okian/vigil/internal/domain/model"
)

// eventRequest mirrors the OpenAPI schema for POST /v1/events.
type eventRequest struct {
	ID        string         `json:"id,omitempty"`
	PlayerID  string         `json:"playerId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	TS        string         `json:"ts,omitempty"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Type) == "":
		return fmt.Errorf("%w: missing type", ErrBadRequest)
	case e.PlayerID == "" && e.SessionID == "":
		return fmt.Errorf("%w: either playerId or sessionId is required", ErrBadRequest)
	case e.PlayerID != "" && e.SessionID != "":
		return fmt.Errorf("%w: playerId and sessionId are mutually exclusive", ErrBadRequest)
	}
	if e.TS != "" {
		if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
			return fmt.Errorf("%w: invalid ts; must be RFC3339", ErrBadRequest)
		}
	}
	return nil
}

type eventAck struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// handlePostEvent handles POST /v1/events requests.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}

	ev := model.Event{
		ID:        req.ID,
		PlayerID:  req.PlayerID,
		SessionID: req.SessionID,
		Type:      req.Type,
		Payload:   req.Payload,
	}
	if req.TS != "" {
		ts, _ := time.Parse(time.RFC3339, req.TS)
		ev.CreatedAt = ts.UTC()
	}

	stored, err := s.deps.IngestEvent(r.Context(), ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, eventAck{Status: "accepted", ID: stored.ID})
}

// handleListEvents handles GET /v1/events?player=&limit= requests.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	player := r.URL.Query().Get("player")
	if player == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, fmt.Errorf("%w: missing player", ErrBadRequest)))
		return
	}
	events, err := s.deps.ListEvents(r.Context(), player, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleGetEvent handles GET /v1/events/{id} requests.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_event"
	ev, err := s.deps.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", wrapOp(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
