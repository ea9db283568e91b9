package poller

import (
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Poller.
type Option func(*Poller)

// WithInterval sets how often a poll cycle runs.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithBatchSize bounds how many events one cycle evaluates.
func WithBatchSize(size int) Option {
	return func(p *Poller) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}
