// Package poller drives periodic evaluation of events that have not been
// evaluated yet.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/engine"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default poller configuration constants.
const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 100
)

// Backlog lists events awaiting evaluation, oldest first.
type Backlog interface {
	ListUnevaluated(ctx context.Context, limit int) ([]model.Event, error)
}

// Evaluator runs one event through the rule engine.
type Evaluator interface {
	Evaluate(ctx context.Context, eventID string) (engine.Outcome, error)
}

// Poller repeatedly drains the evaluation backlog on a fixed interval.
// Cycles never overlap; a slow cycle delays the next tick rather than
// stacking a second one on top of it.
type Poller struct {
	backlog   Backlog
	evaluator Evaluator

	interval  time.Duration
	batchSize int

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a poller with configuration options.
func New(backlog Backlog, evaluator Evaluator, opts ...Option) *Poller {
	p := &Poller{
		backlog:   backlog,
		evaluator: evaluator,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the poll loop until ctx is canceled or Shutdown is called.
// The first cycle runs immediately rather than waiting one interval.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// Shutdown stops the loop and waits for any in-flight cycle to finish.
func (p *Poller) Shutdown(ctx context.Context) error {
	close(p.shutdown)

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "poller shutdown timed out")
		return fmt.Errorf("poller shutdown timed out: %w", ctx.Err())
	}
}

func (p *Poller) cycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.RecordPollerCycleDuration(float64(time.Since(start).Milliseconds()))
	}()
	metrics.RecordPollerCycle()

	n, err := p.Drain(ctx, p.batchSize)
	if err != nil {
		p.logger.Error(ctx, "poll cycle failed", logger.Error(err))
		return
	}
	if n > 0 {
		p.logger.Debug(ctx, "poll cycle processed events", logger.Int("count", n))
	}
}

// Drain evaluates up to batchSize backlog events sequentially and returns
// how many were processed. A failing event is logged and skipped so one bad
// record cannot wedge the whole backlog; it stays unevaluated and will be
// retried on the next cycle.
func (p *Poller) Drain(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events, err := p.backlog.ListUnevaluated(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unevaluated events: %w", err)
	}

	processed := 0
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		outcome, err := p.evaluator.Evaluate(ctx, ev.ID)
		if err != nil {
			metrics.RecordPollerItemError()
			p.logger.Error(ctx, "event evaluation failed",
				logger.String("eventID", ev.ID),
				logger.Error(err),
			)
			continue
		}
		if outcome.NoOp {
			continue
		}
		processed++
	}

	if processed > 0 {
		metrics.RecordPollerEventsProcessed(processed)
	}
	return processed, nil
}
