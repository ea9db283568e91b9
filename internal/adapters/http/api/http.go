// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/okian/vigil/internal/domain/ledger"
	"github.com/okian/vigil/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestEvent(ctx context.Context, ev model.Event) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, subject string, limit int) ([]model.Event, error)

	SubmitScore(ctx context.Context, player, gameID, scope, localID string, score float64) (ledger.SubmitResult, error)
	TopScores(ctx context.Context, gameID, scope, localID string, limit int) ([]model.PlayerScore, error)

	UpsertRule(ctx context.Context, rule model.Rule) (model.Rule, error)
	SetRuleActive(ctx context.Context, id string, active bool) (model.Rule, error)
	GetRule(ctx context.Context, id string) (model.Rule, error)
	ListRules(ctx context.Context) ([]model.Rule, error)
	DeleteRule(ctx context.Context, id string) error

	ListViolations(ctx context.Context, player string) ([]model.Violation, error)
	ResolveViolation(ctx context.Context, id string) (model.Violation, error)

	ListActivities(ctx context.Context, player string, limit int) ([]model.PlayerActivity, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	r.Get("/metrics", MetricsMiddleware(s.handleMetrics, "metrics"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", MetricsMiddleware(s.handlePostEvent, "events"))
		r.Get("/events", MetricsMiddleware(s.handleListEvents, "events"))
		r.Get("/events/{id}", MetricsMiddleware(s.handleGetEvent, "event"))

		r.Post("/player-scores", MetricsMiddleware(s.handlePostScore, "player_scores"))
		r.Get("/player-scores", MetricsMiddleware(s.handleListScores, "player_scores"))

		r.Post("/rules", MetricsMiddleware(s.handlePostRule, "rules"))
		r.Get("/rules", MetricsMiddleware(s.handleListRules, "rules"))
		r.Get("/rules/{id}", MetricsMiddleware(s.handleGetRule, "rule"))
		r.Patch("/rules/{id}", MetricsMiddleware(s.handlePatchRule, "rule"))
		r.Delete("/rules/{id}", MetricsMiddleware(s.handleDeleteRule, "rule"))

		r.Get("/violations/{player}", MetricsMiddleware(s.handleListViolations, "violations"))
		r.Post("/violations/{id}/resolve", MetricsMiddleware(s.handleResolveViolation, "violation_resolve"))

		r.Get("/activities/{player}", MetricsMiddleware(s.handleListActivities, "activities"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
