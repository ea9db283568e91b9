// Package model contains the domain records persisted in the document store.
package model

import (
	"errors"
	"time"
)

// Activity types recorded in the player activity log.
const (
	ActivityAlert     = "alert"
	ActivityInfo      = "info"
	ActivityViolation = "violation"
	ActivityHighScore = "high_score"
)

// Violation severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
	SeverityCheat  = "cheat"
)

// Score scopes.
const (
	ScopeLocal   = "local"
	ScopeGlobal  = "global"
	ScopeFriends = "friends"
)

// Event is one recorded gameplay telemetry record awaiting or having
// undergone rule evaluation. Exactly one of PlayerID/SessionID is set.
// Evaluated flips to true exactly once and is never reverted.
type Event struct {
	ID               string         `json:"id"`
	PlayerID         string         `json:"playerId,omitempty"`
	SessionID        string         `json:"sessionId,omitempty"`
	Type             string         `json:"type"`
	Payload          map[string]any `json:"payload,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	Evaluated        bool           `json:"evaluated"`
	MatchedRuleIDs   []string       `json:"matchedRuleIds,omitempty"`
	EvaluationResult map[string]any `json:"evaluationResult,omitempty"`
}

// Validate checks the ownership invariant for ingestion.
func (e *Event) Validate() error {
	if e.Type == "" {
		return errors.New("missing event type")
	}
	if e.PlayerID == "" && e.SessionID == "" {
		return errors.New("one of playerId or sessionId is required")
	}
	if e.PlayerID != "" && e.SessionID != "" {
		return errors.New("playerId and sessionId are mutually exclusive")
	}
	return nil
}

// Subject returns whichever of PlayerID/SessionID owns the event.
func (e *Event) Subject() string {
	if e.PlayerID != "" {
		return e.PlayerID
	}
	return e.SessionID
}

// NumericAttr reads a numeric payload attribute. The second return is false
// when the attribute is absent or not numeric; per the evaluation contract a
// malformed attribute is not an error, the rule simply does not match.
func (e *Event) NumericAttr(key string) (float64, bool) {
	if e.Payload == nil {
		return 0, false
	}
	switch v := e.Payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// NormalRange describes the expected bounds for one payload attribute.
// Exceeding Max flags the event; exceeding Threshold escalates to a
// cheat-severity violation.
type NormalRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Threshold float64 `json:"threshold"`
}

// Rule is a configured detection criterion. Count-mode rules fire when the
// number of same-type events for a player inside WindowSeconds reaches
// Threshold. Range-mode rules inspect the payload attribute named by Action
// against Normals[Action].
type Rule struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	GameID        string                 `json:"gameId,omitempty"`
	Action        string                 `json:"action"`
	Threshold     int                    `json:"threshold"`
	WindowSeconds int                    `json:"windowSeconds"`
	Normals       map[string]NormalRange `json:"normals,omitempty"`
	Severity      string                 `json:"severity,omitempty"`
	Active        bool                   `json:"active"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// Window returns the count-mode evaluation window as a duration.
func (r *Rule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Violation accumulates rule triggers per (ruleId, playerId). Count never
// decreases and LastViolationAt never goes backward.
type Violation struct {
	ID               string         `json:"id"`
	RuleID           string         `json:"ruleId"`
	PlayerID         string         `json:"playerId"`
	Count            int            `json:"count"`
	Severity         string         `json:"severity,omitempty"`
	Evidence         map[string]any `json:"evidence,omitempty"`
	FirstViolationAt time.Time      `json:"firstViolationAt"`
	LastViolationAt  time.Time      `json:"lastViolationAt"`
	Resolved         bool           `json:"resolved"`
	Details          string         `json:"details,omitempty"`
}

// PlayerScore is the per-(player, game, scope, localId) maximum-score record.
// Score is monotonically non-decreasing; UpdatedAt advances only when Score
// actually increases.
type PlayerScore struct {
	Player    string    `json:"player"`
	GameID    string    `json:"gameId"`
	Scope     string    `json:"scope"`
	LocalID   string    `json:"localId,omitempty"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActivityGuard is the per-player concurrency-control record behind activity
// deduplication. Not user-visible; LastActivityAt only moves forward.
type ActivityGuard struct {
	Player         string     `json:"player"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}

// PlayerActivity is one append-only notification record.
type PlayerActivity struct {
	ID        string         `json:"id"`
	Player    string         `json:"player"`
	EventRef  string         `json:"eventRef,omitempty"`
	Type      string         `json:"type"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
