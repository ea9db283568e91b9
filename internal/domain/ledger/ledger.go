// Package ledger implements the high-score ledger and the deduplicated
// activity pipeline on top of the document store's atomic primitives.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default dedupe window for high-score activity notifications.
const defaultDedupeWindow = 5 * time.Second

// ScoreStore performs the atomic max-merge on score records.
type ScoreStore interface {
	SubmitScore(ctx context.Context, player, gameID, scope, localID string, score float64, now time.Time) (updated bool, previous *float64, err error)
	TopScores(ctx context.Context, gameID, scope, localID string, limit int) ([]model.PlayerScore, error)
}

// GuardStore performs the atomic per-player dedup claim.
type GuardStore interface {
	TryClaimActivity(ctx context.Context, player string, now time.Time, window time.Duration) (bool, error)
}

// ActivitySink appends player activity notifications.
type ActivitySink interface {
	AppendActivity(ctx context.Context, activity model.PlayerActivity) (model.PlayerActivity, error)
}

// SubmitResult reports the outcome of a score submission.
type SubmitResult struct {
	// Updated is true when the submission genuinely raised the stored
	// score. Resubmitting an equal value is not an update.
	Updated bool `json:"updated"`

	// PreviousScore is the score before the submission, nil when the
	// record was created by it.
	PreviousScore *float64 `json:"previousScore,omitempty"`
}

// Ledger coordinates score submissions with activity notifications.
type Ledger struct {
	scores     ScoreStore
	guards     GuardStore
	activities ActivitySink

	dedupeWindow time.Duration
	now          func() time.Time
	logger       logger.Logger
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithDedupeWindow sets the high-score notification dedupe window.
func WithDedupeWindow(window time.Duration) Option {
	return func(l *Ledger) {
		if window > 0 {
			l.dedupeWindow = window
		}
	}
}

// WithClock overrides the ledger's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.logger = log
		}
	}
}

// New constructs a Ledger.
func New(scores ScoreStore, guards GuardStore, activities ActivitySink, opts ...Option) *Ledger {
	l := &Ledger{
		scores:       scores,
		guards:       guards,
		activities:   activities,
		dedupeWindow: defaultDedupeWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SubmitScore applies max-merge semantics to the score record and, when the
// submission was a genuine increase, races for the per-player dedup claim.
// Only the claim winner appends the high_score activity; concurrent
// improvements inside one window back off silently, so at most one
// notification is emitted per player per window.
func (l *Ledger) SubmitScore(ctx context.Context, player, gameID, scope, localID string, score float64) (SubmitResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreSubmitLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()
	metrics.RecordScoreSubmission()

	if scope == "" {
		scope = model.ScopeGlobal
	}
	if gameID == "" {
		gameID = "default"
	}

	now := l.now()
	updated, previous, err := l.scores.SubmitScore(ctx, player, gameID, scope, localID, score, now)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit score: %w", err)
	}
	result := SubmitResult{Updated: updated, PreviousScore: previous}
	if !updated {
		return result, nil
	}
	metrics.RecordScoreImprovement()

	// The score update is committed at this point; the notification is
	// best-effort on top of it and its failures never fail the submission.
	claimed, err := l.guards.TryClaimActivity(ctx, player, now, l.dedupeWindow)
	if err != nil {
		l.logError(ctx, "activity claim failed", player, err)
		return result, nil
	}
	if !claimed {
		metrics.RecordActivityClaimLost()
		return result, nil
	}

	details := map[string]any{
		"newScore": score,
		"gameId":   gameID,
	}
	if previous != nil {
		details["prev"] = *previous
	}
	if _, err := l.activities.AppendActivity(ctx, model.PlayerActivity{
		Player:  player,
		Type:    model.ActivityHighScore,
		Details: details,
	}); err != nil {
		l.logError(ctx, "high_score activity append failed", player, err)
		return result, nil
	}
	metrics.RecordActivityEmitted(model.ActivityHighScore)

	if l.logger != nil {
		l.logger.Debug(ctx, "high score recorded",
			logger.String("player", player),
			logger.String("gameId", gameID),
			logger.Float64("score", score),
		)
	}
	return result, nil
}

func (l *Ledger) logError(ctx context.Context, msg, player string, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Error(ctx, msg, logger.String("player", player), logger.Error(err))
}

// TopScores lists score records ordered by score descending.
func (l *Ledger) TopScores(ctx context.Context, gameID, scope, localID string, limit int) ([]model.PlayerScore, error) {
	rows, err := l.scores.TopScores(ctx, gameID, scope, localID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return rows, nil
}
