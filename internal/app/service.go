// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/adapters/docstore"
	"github.com/okian/vigil/internal/domain/engine"
	"github.com/okian/vigil/internal/domain/ledger"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/poller"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

const (
	defaultMaxListLimit   = 500
	pollerShutdownTimeout = 10 * time.Second
)

// Service wires the document store, rule engine, score ledger, and poller
// into one unit behind the API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *docstore.Store
	evaluator *engine.Evaluator
	ledger    *ledger.Ledger
	poller    *poller.Poller

	// Configuration
	dataDir       string
	inMemoryStore bool
	pollInterval  time.Duration
	pollBatchSize int
	dedupeWindow  time.Duration
	maxListLimit  int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataDir sets the document store directory.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		s.dataDir = dir
	}
}

// WithInMemoryStore selects a non-persistent store.
func WithInMemoryStore() Option {
	return func(s *Service) {
		s.inMemoryStore = true
	}
}

// WithPollInterval sets how often the evaluation poller runs.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithPollBatchSize bounds how many events one poll cycle evaluates.
func WithPollBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pollBatchSize = size
		}
	}
}

// WithDedupeWindow sets the high-score notification dedupe window.
func WithDedupeWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.dedupeWindow = window
		}
	}
}

// WithMaxListLimit caps list query limits.
func WithMaxListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxListLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dataDir:       "data",
		pollInterval:  30 * time.Second,
		pollBatchSize: 100,
		dedupeWindow:  5 * time.Second,
		maxListLimit:  defaultMaxListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the background poller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting vigil service...")

	storeOpts := []docstore.Option{docstore.WithDataDir(s.dataDir)}
	if s.inMemoryStore {
		storeOpts = append(storeOpts, docstore.WithInMemory())
	}
	store, err := docstore.Open(ctx, storeOpts...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.evaluator = engine.New(store, store, store, store,
		engine.WithLogger(s.logger.Named("engine")),
	)
	s.ledger = ledger.New(store, store, store,
		ledger.WithDedupeWindow(s.dedupeWindow),
		ledger.WithLogger(s.logger.Named("ledger")),
	)
	s.poller = poller.New(store, s.evaluator,
		poller.WithInterval(s.pollInterval),
		poller.WithBatchSize(s.pollBatchSize),
		poller.WithLogger(s.logger.Named("poller")),
	)
	go s.poller.Run(ctx)

	s.started = true
	s.logger.Info(ctx, "vigil service started",
		logger.String("dataDir", s.dataDir),
		logger.Bool("inMemory", s.inMemoryStore),
		logger.Duration("pollInterval", s.pollInterval),
		logger.Int("pollBatchSize", s.pollBatchSize),
	)
	return nil
}

// Stop gracefully shuts down the poller and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pollerShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping vigil service...")

	if s.poller != nil {
		if err := s.poller.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "poller did not stop cleanly", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "vigil service stopped")
}

// IngestEvent stores a telemetry event and kicks off the follow-up work it
// implies: a payload score feeds the ledger, and a snapshot is evaluated
// synchronously so range-mode cheating is caught at ingestion rather than
// on the next poll cycle. Follow-up failures are logged, not returned; the
// event itself is durable once stored and the poller retries evaluation.
// Re-ingesting an id that already exists returns the stored event untouched.
func (s *Service) IngestEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			// A redelivery of an id we already hold. The stored document is
			// authoritative; rerunning the follow-ups would double count.
			s.logger.Warn(ctx, "duplicate event ingest ignored", logger.String("eventID", ev.ID))
			return s.store.GetEvent(ctx, ev.ID)
		}
		return model.Event{}, fmt.Errorf("store event: %w", err)
	}
	metrics.RecordEventIngested()

	if score, ok := ev.NumericAttr("score"); ok && ev.PlayerID != "" {
		gameID, _ := ev.Payload["gameId"].(string)
		scope, _ := ev.Payload["scope"].(string)
		localID, _ := ev.Payload["localId"].(string)
		if _, err := s.ledger.SubmitScore(ctx, ev.PlayerID, gameID, scope, localID, score); err != nil {
			s.logger.Error(ctx, "score submission from event failed",
				logger.String("eventID", ev.ID),
				logger.Error(err),
			)
		}
	}

	if ev.Type == "snapshot" {
		if _, err := s.evaluator.Evaluate(ctx, ev.ID); err != nil {
			s.logger.Error(ctx, "inline snapshot evaluation failed",
				logger.String("eventID", ev.ID),
				logger.Error(err),
			)
		}
	}

	return ev, nil
}

// GetEvent fetches one event by id.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// ListEvents returns a subject's events, newest first.
func (s *Service) ListEvents(ctx context.Context, subject string, limit int) ([]model.Event, error) {
	return s.store.ListEventsBySubject(ctx, subject, s.clampLimit(limit))
}

// SubmitScore runs a direct score submission through the ledger.
func (s *Service) SubmitScore(ctx context.Context, player, gameID, scope, localID string, score float64) (ledger.SubmitResult, error) {
	return s.ledger.SubmitScore(ctx, player, gameID, scope, localID, score)
}

// TopScores lists score records ordered by score descending.
func (s *Service) TopScores(ctx context.Context, gameID, scope, localID string, limit int) ([]model.PlayerScore, error) {
	return s.ledger.TopScores(ctx, gameID, scope, localID, s.clampLimit(limit))
}

// UpsertRule creates or replaces a detection rule.
func (s *Service) UpsertRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := s.store.PutRule(ctx, rule); err != nil {
		return model.Rule{}, fmt.Errorf("store rule: %w", err)
	}
	return s.store.GetRule(ctx, rule.ID)
}

// SetRuleActive flips a rule's active flag.
func (s *Service) SetRuleActive(ctx context.Context, id string, active bool) (model.Rule, error) {
	if err := s.store.SetRuleActive(ctx, id, active); err != nil {
		return model.Rule{}, err
	}
	return s.store.GetRule(ctx, id)
}

// DeleteRule removes a rule configuration.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	return s.store.DeleteRule(ctx, id)
}

// GetRule fetches one rule by id.
func (s *Service) GetRule(ctx context.Context, id string) (model.Rule, error) {
	return s.store.GetRule(ctx, id)
}

// ListRules returns every configured rule.
func (s *Service) ListRules(ctx context.Context) ([]model.Rule, error) {
	return s.store.ListRules(ctx)
}

// ListViolations returns a player's violation records.
func (s *Service) ListViolations(ctx context.Context, player string) ([]model.Violation, error) {
	return s.store.ListViolationsByPlayer(ctx, player)
}

// ResolveViolation marks a violation as handled.
func (s *Service) ResolveViolation(ctx context.Context, id string) (model.Violation, error) {
	if err := s.store.ResolveViolation(ctx, id); err != nil {
		return model.Violation{}, err
	}
	return s.store.GetViolation(ctx, id)
}

// ListActivities returns a player's activity feed, newest first.
func (s *Service) ListActivities(ctx context.Context, player string, limit int) ([]model.PlayerActivity, error) {
	return s.store.ListActivitiesByPlayer(ctx, player, s.clampLimit(limit))
}

// Drain runs one poll cycle on demand, mostly useful in tests and admin
// tooling.
func (s *Service) Drain(ctx context.Context) (int, error) {
	return s.poller.Drain(ctx, s.pollBatchSize)
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.maxListLimit {
		return s.maxListLimit
	}
	return limit
}
