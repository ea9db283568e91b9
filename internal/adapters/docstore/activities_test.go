package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/okian/vigil/internal/domain/model"
)

func TestAppendActivity_FillsDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.AppendActivity(ctx, model.PlayerActivity{
		Player:  "p1",
		Type:    model.ActivityHighScore,
		Details: map[string]any{"newScore": 100},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Error("expected generated id")
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}

	_, err = s.AppendActivity(ctx, model.PlayerActivity{Player: "p1"})
	if err == nil {
		t.Error("expected error for missing type")
	}
	_, err = s.AppendActivity(ctx, model.PlayerActivity{Type: model.ActivityInfo})
	if err == nil {
		t.Error("expected error for missing player")
	}
}

func TestListActivitiesByPlayer_NewestFirstAndScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Now().UTC()

	for i, typ := range []string{model.ActivityInfo, model.ActivityAlert, model.ActivityHighScore} {
		_, err := s.AppendActivity(ctx, model.PlayerActivity{
			Player:    "p1",
			Type:      typ,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := s.AppendActivity(ctx, model.PlayerActivity{Player: "p2", Type: model.ActivityInfo, CreatedAt: base}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := s.ListActivitiesByPlayer(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(rows))
	}
	if rows[0].Type != model.ActivityHighScore || rows[2].Type != model.ActivityInfo {
		t.Errorf("expected newest-first order, got %s..%s", rows[0].Type, rows[2].Type)
	}

	limited, err := s.ListActivitiesByPlayer(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].Type != model.ActivityHighScore {
		t.Errorf("expected only the newest activity, got %+v", limited)
	}
}
