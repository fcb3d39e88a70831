package checkout

import (
	"time"

	"github.com/carelane/checkout/logger"
	"github.com/carelane/checkout/metrics"
	"github.com/carelane/checkout/receipt"
)

// Option configures a Checkout beyond what Config carries.
type Option func(*Checkout)

// WithLogger overrides the config-derived logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Checkout) {
		c.log = l
	}
}

// WithMetrics overrides the config-derived metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Checkout) {
		c.rec = r
	}
}

// WithSink registers the verification collaborator that receives each
// confirmed PaymentResult from Pay. Callers driving sessions step by
// step hand the emitted result over themselves.
func WithSink(s receipt.Sink) Option {
	return func(c *Checkout) {
		c.sink = s
	}
}

// WithClock replaces the time source used for quote and receipt
// timestamps, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checkout) {
		c.clock = now
	}
}
