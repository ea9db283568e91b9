// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// scoreRequest mirrors the OpenAPI schema for POST /v1/player-scores.
type scoreRequest struct {
	PlayerID string   `json:"playerId"`
	GameID   string   `json:"gameId,omitempty"`
	Scope    string   `json:"scope,omitempty"`
	LocalID  string   `json:"localId,omitempty"`
	Score    *float64 `json:"score"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.PlayerID) == "":
		return fmt.Errorf("%w: missing playerId", ErrBadRequest)
	case s.Score == nil:
		return fmt.Errorf("%w: missing score", ErrBadRequest)
	}
	return nil
}

// handlePostScore handles POST /v1/player-scores requests.
func (s *Server) handlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, err))
		return
	}

	result, err := s.deps.SubmitScore(r.Context(), req.PlayerID, req.GameID, req.Scope, req.LocalID, *req.Score)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListScores handles GET /v1/player-scores?gameId=&scope=&localId=&limit=.
func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_scores"
	q := r.URL.Query()
	gameID := q.Get("gameId")
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrapOp(op, fmt.Errorf("%w: missing gameId", ErrBadRequest)))
		return
	}
	scope := q.Get("scope")
	if scope == "" {
		scope = "global"
	}

	scores, err := s.deps.TopScores(r.Context(), gameID, scope, q.Get("localId"), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapOp(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// queryLimit parses ?limit=, returning 0 when absent or malformed so the
// service applies its own cap.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
