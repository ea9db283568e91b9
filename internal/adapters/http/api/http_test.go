package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/okian/vigil/internal/adapters/docstore"
	"github.com/okian/vigil/internal/adapters/http/api"
	"github.com/okian/vigil/internal/domain/ledger"
	"github.com/okian/vigil/internal/domain/model"
)

// fakeDeps records calls and returns canned responses.
type fakeDeps struct {
	ingested    []model.Event
	submissions []float64

	submitResult ledger.SubmitResult
	scores       []model.PlayerScore
	events       []model.Event
	rules        []model.Rule
	violations   []model.Violation
	activities   []model.PlayerActivity

	lastLimit int
	notFound  bool
}

func (f *fakeDeps) IngestEvent(_ context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = "generated-id"
	}
	f.ingested = append(f.ingested, ev)
	return ev, nil
}

func (f *fakeDeps) GetEvent(_ context.Context, id string) (model.Event, error) {
	if f.notFound {
		return model.Event{}, docstore.ErrNotFound
	}
	return model.Event{ID: id}, nil
}

func (f *fakeDeps) ListEvents(_ context.Context, _ string, limit int) ([]model.Event, error) {
	f.lastLimit = limit
	return f.events, nil
}

func (f *fakeDeps) SubmitScore(_ context.Context, _, _, _, _ string, score float64) (ledger.SubmitResult, error) {
	f.submissions = append(f.submissions, score)
	return f.submitResult, nil
}

func (f *fakeDeps) TopScores(_ context.Context, _, _, _ string, limit int) ([]model.PlayerScore, error) {
	f.lastLimit = limit
	return f.scores, nil
}

func (f *fakeDeps) UpsertRule(_ context.Context, rule model.Rule) (model.Rule, error) {
	if rule.ID == "" {
		rule.ID = "rule-id"
	}
	f.rules = append(f.rules, rule)
	return rule, nil
}

func (f *fakeDeps) SetRuleActive(_ context.Context, id string, active bool) (model.Rule, error) {
	if f.notFound {
		return model.Rule{}, docstore.ErrNotFound
	}
	return model.Rule{ID: id, Active: active}, nil
}

func (f *fakeDeps) GetRule(_ context.Context, id string) (model.Rule, error) {
	if f.notFound {
		return model.Rule{}, docstore.ErrNotFound
	}
	return model.Rule{ID: id}, nil
}

func (f *fakeDeps) ListRules(_ context.Context) ([]model.Rule, error) {
	return f.rules, nil
}

func (f *fakeDeps) DeleteRule(_ context.Context, _ string) error {
	return nil
}

func (f *fakeDeps) ListViolations(_ context.Context, _ string) ([]model.Violation, error) {
	return f.violations, nil
}

func (f *fakeDeps) ResolveViolation(_ context.Context, id string) (model.Violation, error) {
	if f.notFound {
		return model.Violation{}, docstore.ErrNotFound
	}
	return model.Violation{ID: id, Resolved: true}, nil
}

func (f *fakeDeps) ListActivities(_ context.Context, _ string, limit int) ([]model.PlayerActivity, error) {
	f.lastLimit = limit
	return f.activities, nil
}

func serve(deps api.Dependencies, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	api.NewServer(deps).Router().ServeHTTP(rec, req)
	return rec
}

func TestPostEvent(t *testing.T) {
	t.Run("accepts a valid player event", func(t *testing.T) {
		deps := &fakeDeps{}
		rec := serve(deps, http.MethodPost, "/v1/events", map[string]any{
			"playerId": "p1",
			"type":     "rapid_fire",
			"payload":  map[string]any{"score": 10},
		})

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(deps.ingested) != 1 {
			t.Fatalf("expected 1 ingested event, got %d", len(deps.ingested))
		}
		if deps.ingested[0].PlayerID != "p1" {
			t.Errorf("unexpected player: %s", deps.ingested[0].PlayerID)
		}

		var ack struct {
			Status string `json:"status"`
			ID     string `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ack.Status != "accepted" || ack.ID == "" {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})

	t.Run("rejects an event without a subject", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/events", map[string]any{"type": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects an event with both subjects", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/events", map[string]any{
			"type": "x", "playerId": "p1", "sessionId": "s1",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a malformed timestamp", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/events", map[string]any{
			"type": "x", "playerId": "p1", "ts": "yesterday",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a non-JSON body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		api.NewServer(&fakeDeps{}).Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestListAndGetEvents(t *testing.T) {
	t.Run("requires a player filter", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodGet, "/v1/events", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("passes the limit through", func(t *testing.T) {
		deps := &fakeDeps{}
		rec := serve(deps, http.MethodGet, "/v1/events?player=p1&limit=7", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deps.lastLimit != 7 {
			t.Errorf("expected limit 7, got %d", deps.lastLimit)
		}
	})

	t.Run("maps missing events to 404", func(t *testing.T) {
		rec := serve(&fakeDeps{notFound: true}, http.MethodGet, "/v1/events/ev-1", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestScores(t *testing.T) {
	t.Run("submits a score", func(t *testing.T) {
		prev := 50.0
		deps := &fakeDeps{submitResult: ledger.SubmitResult{Updated: true, PreviousScore: &prev}}
		rec := serve(deps, http.MethodPost, "/v1/player-scores", map[string]any{
			"playerId": "p1", "gameId": "racer", "score": 100,
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(deps.submissions) != 1 || deps.submissions[0] != 100 {
			t.Errorf("unexpected submissions: %v", deps.submissions)
		}

		var res ledger.SubmitResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if !res.Updated || res.PreviousScore == nil || *res.PreviousScore != 50 {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("accepts a zero score", func(t *testing.T) {
		deps := &fakeDeps{}
		rec := serve(deps, http.MethodPost, "/v1/player-scores", map[string]any{
			"playerId": "p1", "score": 0,
		})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("rejects a missing score", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/player-scores", map[string]any{"playerId": "p1"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("requires gameId when listing", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodGet, "/v1/player-scores", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("lists scores for a game", func(t *testing.T) {
		deps := &fakeDeps{scores: []model.PlayerScore{{Player: "p1", Score: 999}}}
		rec := serve(deps, http.MethodGet, "/v1/player-scores?gameId=racer", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var scores []model.PlayerScore
		if err := json.Unmarshal(rec.Body.Bytes(), &scores); err != nil {
			t.Fatalf("decode scores: %v", err)
		}
		if len(scores) != 1 || scores[0].Score != 999 {
			t.Errorf("unexpected scores: %+v", scores)
		}
	})
}

func TestRules(t *testing.T) {
	t.Run("creates a rule defaulting to active", func(t *testing.T) {
		deps := &fakeDeps{}
		rec := serve(deps, http.MethodPost, "/v1/rules", map[string]any{
			"name": "rapid_fire", "action": "flag", "threshold": 3, "windowSeconds": 60,
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(deps.rules) != 1 || !deps.rules[0].Active {
			t.Errorf("expected one active rule, got %+v", deps.rules)
		}
	})

	t.Run("rejects a rule without an action", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/rules", map[string]any{"name": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("patches the active flag", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPatch, "/v1/rules/r1", map[string]any{"active": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var rule model.Rule
		if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
			t.Fatalf("decode rule: %v", err)
		}
		if rule.ID != "r1" || rule.Active {
			t.Errorf("unexpected rule: %+v", rule)
		}
	})

	t.Run("rejects a patch without the active field", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPatch, "/v1/rules/r1", map[string]any{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("deletes a rule", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodDelete, "/v1/rules/r1", nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("maps missing rules to 404", func(t *testing.T) {
		rec := serve(&fakeDeps{notFound: true}, http.MethodPatch, "/v1/rules/r1", map[string]any{"active": true})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestViolations(t *testing.T) {
	t.Run("lists a player's violations", func(t *testing.T) {
		deps := &fakeDeps{violations: []model.Violation{{ID: "v1", PlayerID: "p1"}}}
		rec := serve(deps, http.MethodGet, "/v1/violations/p1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var violations []model.Violation
		if err := json.Unmarshal(rec.Body.Bytes(), &violations); err != nil {
			t.Fatalf("decode violations: %v", err)
		}
		if len(violations) != 1 || violations[0].ID != "v1" {
			t.Errorf("unexpected violations: %+v", violations)
		}
	})

	t.Run("resolves a violation", func(t *testing.T) {
		rec := serve(&fakeDeps{}, http.MethodPost, "/v1/violations/v1/resolve", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var violation model.Violation
		if err := json.Unmarshal(rec.Body.Bytes(), &violation); err != nil {
			t.Fatalf("decode violation: %v", err)
		}
		if !violation.Resolved {
			t.Errorf("expected resolved violation, got %+v", violation)
		}
	})

	t.Run("maps an unknown violation to 404", func(t *testing.T) {
		rec := serve(&fakeDeps{notFound: true}, http.MethodPost, "/v1/violations/v1/resolve", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestActivities(t *testing.T) {
	deps := &fakeDeps{activities: []model.PlayerActivity{{ID: "a1", Type: model.ActivityHighScore}}}
	rec := serve(deps, http.MethodGet, "/v1/activities/p1?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deps.lastLimit != 3 {
		t.Errorf("expected limit 3, got %d", deps.lastLimit)
	}

	var activities []model.PlayerActivity
	if err := json.Unmarshal(rec.Body.Bytes(), &activities); err != nil {
		t.Fatalf("decode activities: %v", err)
	}
	if len(activities) != 1 || activities[0].Type != model.ActivityHighScore {
		t.Errorf("unexpected activities: %+v", activities)
	}
}

func TestHealthz(t *testing.T) {
	rec := serve(&fakeDeps{}, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("unexpected status: %s", res.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(&fakeDeps{}, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a non-empty metrics exposition")
	}
}
