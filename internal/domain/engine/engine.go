// Package engine evaluates telemetry events against configured detection
// rules and records violations and player activity.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// EventSource provides the event reads and the one-way evaluated flip the
// evaluator needs.
type EventSource interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CountEventsInWindow(ctx context.Context, subject, eventType string, from, to time.Time) (int, error)
	MarkEvaluated(ctx context.Context, id string, matchedRuleIDs []string, result map[string]any) (bool, error)
}

// RuleSource provides active rule configuration.
type RuleSource interface {
	ListActiveRulesByName(ctx context.Context, name string) ([]model.Rule, error)
	ListActiveRulesByGame(ctx context.Context, gameID string) ([]model.Rule, error)
}

// ViolationSink records rule triggers.
type ViolationSink interface {
	RecordViolation(ctx context.Context, ruleID, playerID, severity string, evidence map[string]any, details string, now time.Time) (model.Violation, error)
}

// ActivitySink appends player activity notifications.
type ActivitySink interface {
	AppendActivity(ctx context.Context, activity model.PlayerActivity) (model.PlayerActivity, error)
}

// Outcome reports what one evaluation did.
type Outcome struct {
	EventID        string
	NoOp           bool
	MatchedRuleIDs []string
}

// Evaluator turns raw events into violations and activity records.
type Evaluator struct {
	events     EventSource
	rules      RuleSource
	violations ViolationSink
	activities ActivitySink

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithClock overrides the evaluator's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// New constructs an Evaluator.
func New(events EventSource, rules RuleSource, violations ViolationSink, activities ActivitySink, opts ...Option) *Evaluator {
	e := &Evaluator{
		events:     events,
		rules:      rules,
		violations: violations,
		activities: activities,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one event through every applicable rule. An event that is
// already marked evaluated yields a no-op, which makes re-invocation after
// a partial failure safe. The evaluated flip is the last write; everything
// recorded before it is idempotent only through that entry guard, so a
// crash between the violation writes and the flip can at worst re-count
// one event on retry (accepted at-least-once behavior).
func (e *Evaluator) Evaluate(ctx context.Context, eventID string) (Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordEvaluationLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	ev, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		metrics.RecordEvaluationError()
		return Outcome{}, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if ev.Evaluated {
		metrics.RecordEvaluationNoOp()
		return Outcome{EventID: eventID, NoOp: true}, nil
	}

	now := e.now()
	var matched []string

	// Count-mode rules apply only to events owned by a player.
	if ev.PlayerID != "" {
		ids, err := e.evaluateCountRules(ctx, &ev, now)
		if err != nil {
			metrics.RecordEvaluationError()
			return Outcome{}, err
		}
		matched = append(matched, ids...)
	}

	// Range-mode rules inspect snapshot payloads for the game named in the
	// payload.
	if ev.Type == "snapshot" {
		if gameID, ok := ev.Payload["gameId"].(string); ok && gameID != "" {
			ids, err := e.evaluateRangeRules(ctx, &ev, gameID, now)
			if err != nil {
				metrics.RecordEvaluationError()
				return Outcome{}, err
			}
			matched = append(matched, ids...)
		}
	}

	var result map[string]any
	if len(matched) > 0 {
		result = map[string]any{"matched": matched}
	}
	changed, err := e.events.MarkEvaluated(ctx, ev.ID, matched, result)
	if err != nil {
		metrics.RecordEvaluationError()
		return Outcome{}, fmt.Errorf("mark event %s evaluated: %w", ev.ID, err)
	}
	if !changed && e.logger != nil {
		// A concurrent evaluator finished first; its results stand.
		e.logger.Debug(ctx, "event was evaluated concurrently", logger.String("eventID", ev.ID))
	}

	metrics.RecordEventEvaluated()
	return Outcome{EventID: ev.ID, MatchedRuleIDs: matched}, nil
}

// evaluateCountRules applies frequency-threshold rules whose name matches
// the event type.
func (e *Evaluator) evaluateCountRules(ctx context.Context, ev *model.Event, now time.Time) ([]string, error) {
	rules, err := e.rules.ListActiveRulesByName(ctx, ev.Type)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", ev.Type, err)
	}

	var matched []string
	for _, rule := range rules {
		if rule.Threshold <= 0 || rule.WindowSeconds <= 0 {
			continue
		}

		windowStart := now.Add(-rule.Window())
		count, err := e.events.CountEventsInWindow(ctx, ev.PlayerID, ev.Type, windowStart, now)
		if err != nil {
			return nil, fmt.Errorf("count events for rule %s: %w", rule.ID, err)
		}
		if count < rule.Threshold {
			continue
		}

		matched = append(matched, rule.ID)
		metrics.RecordRuleMatched("count")

		severity := rule.Severity
		if severity == "" {
			severity = model.SeverityMedium
		}
		evidence := map[string]any{
			"count":         count,
			"threshold":     rule.Threshold,
			"windowSeconds": rule.WindowSeconds,
		}
		if _, err := e.violations.RecordViolation(ctx, rule.ID, ev.PlayerID, severity, evidence, "", now); err != nil {
			return nil, fmt.Errorf("record violation for rule %s: %w", rule.ID, err)
		}
		metrics.RecordViolation(severity)

		if err := e.emit(ctx, ev, model.ActivityViolation, map[string]any{
			"rule":  rule.Name,
			"count": count,
		}); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

// evaluateRangeRules applies normal-range rules against the snapshot
// payload. An attribute above the normal maximum but within the escalation
// threshold yields an alert without a violation; above the threshold it
// escalates to a cheat-severity violation.
func (e *Evaluator) evaluateRangeRules(ctx context.Context, ev *model.Event, gameID string, now time.Time) ([]string, error) {
	rules, err := e.rules.ListActiveRulesByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load rules for game %s: %w", gameID, err)
	}

	var matched []string
	for _, rule := range rules {
		attr, ok := ev.NumericAttr(rule.Action)
		if !ok {
			// Missing or non-numeric attribute: the rule does not match.
			continue
		}
		normal, ok := rule.Normals[rule.Action]
		if !ok {
			continue
		}
		if attr <= normal.Max {
			continue
		}

		metrics.RecordRuleMatched("range")

		allowedMax := normal.Max
		if normal.Threshold != 0 {
			allowedMax = normal.Threshold
		}
		if attr > allowedMax {
			matched = append(matched, rule.ID)
			evidence := map[string]any{
				"attr":      attr,
				"max":       normal.Max,
				"threshold": normal.Threshold,
			}
			if _, err := e.violations.RecordViolation(ctx, rule.ID, ev.Subject(), model.SeverityCheat, evidence, "", now); err != nil {
				return nil, fmt.Errorf("record violation for rule %s: %w", rule.ID, err)
			}
			metrics.RecordViolation(model.SeverityCheat)

			if err := e.emit(ctx, ev, model.ActivityViolation, map[string]any{
				"rule": rule.Name,
				"attr": attr,
			}); err != nil {
				return nil, err
			}
			continue
		}

		if err := e.emit(ctx, ev, model.ActivityAlert, map[string]any{
			"rule": rule.Name,
			"attr": attr,
			"note": "above normal but within threshold",
		}); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

func (e *Evaluator) emit(ctx context.Context, ev *model.Event, activityType string, details map[string]any) error {
	_, err := e.activities.AppendActivity(ctx, model.PlayerActivity{
		Player:   ev.Subject(),
		EventRef: ev.ID,
		Type:     activityType,
		Details:  details,
	})
	if err != nil {
		return fmt.Errorf("append %s activity: %w", activityType, err)
	}
	metrics.RecordActivityEmitted(activityType)
	return nil
}
