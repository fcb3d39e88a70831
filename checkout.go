// Package checkout orchestrates a stablecoin checkout: quote a priced
// service, connect the payer's wallet, verify the network, submit a
// token transfer and emit an auditable receipt. It holds custody of
// nothing; each checkout is a single direct wallet-to-recipient
// transfer.
package checkout

import (
	"context"
	"time"

	"github.com/carelane/checkout/chain"
	"github.com/carelane/checkout/logger"
	"github.com/carelane/checkout/metrics"
	"github.com/carelane/checkout/quote"
	"github.com/carelane/checkout/receipt"
	"github.com/carelane/checkout/session"
	"github.com/carelane/checkout/types"
	"github.com/carelane/checkout/wallet"
)

// Checkout is the entry point wiring the quote service, wallet gateway,
// chain policy and receipt emitter together. Construct one per process
// and share it; sessions are per purchase.
type Checkout struct {
	config  *types.Config
	quotes  *quote.Service
	gateway *wallet.Gateway
	policy  *chain.Policy
	emitter *receipt.Emitter
	sink    receipt.Sink

	log    logger.Logger
	rec    metrics.Recorder
	clock  func() time.Time
	maxTry int
}

// New creates a Checkout from config and wallet provider sources, tried
// in priority order during discovery.
func New(config *types.Config, sources []wallet.Source, opts ...Option) *Checkout {
	c := &Checkout{
		config: config,
		log:    logger.NoopLogger{},
		rec:    metrics.NoopRecorder{},
		clock:  time.Now,
		maxTry: config.MaxRetries,
	}
	if c.maxTry <= 0 {
		c.maxTry = types.DefaultMaxRetries
	}
	if config.LogLevel != "" {
		c.log = logger.NewZapLogger(config.LogLevel)
	}
	if config.EnableMetrics {
		c.rec = metrics.NewPrometheusRecorder()
	}

	for _, opt := range opts {
		opt(c)
	}

	c.quotes = quote.NewService(config.TreasuryAddress, config.MaxAmountUSD).WithClock(c.clock)
	c.gateway = wallet.NewGateway(sources, c.log)
	c.policy = chain.NewPolicy(config.Chain, c.log)
	c.emitter = receipt.NewEmitter()
	return c
}

// NewSession quotes the intent and returns a session already in
// QuoteReady, or a validation error and no session.
func (c *Checkout) NewSession(intent types.CheckoutIntent) (*session.Session, error) {
	q, err := c.quotes.BuildQuote(intent)
	if err != nil {
		return nil, err
	}

	s := session.New(c.gateway, c.policy, c.maxTry, c.log, c.rec).
		WithClock(c.clock).
		WithMaxAmount(c.config.MaxAmountUSD)
	if err := s.SetQuote(q); err != nil {
		return nil, err
	}
	c.rec.IncCounter("session_created", map[string]string{"network": c.config.Chain.Name})
	return s, nil
}

// Pay drives a full checkout: quote, connect, confirm, submit, receipt.
// Retryable (provider/transport) failures are retried automatically up
// to the configured bound; rejection and validation failures are
// surfaced immediately for the user to decide. Intended for callers
// that do not need to render intermediate states.
func (c *Checkout) Pay(ctx context.Context, intent types.CheckoutIntent) (*types.PaymentResult, error) {
	s, err := c.NewSession(intent)
	if err != nil {
		return nil, err
	}

	for {
		err = c.runAttempt(ctx, s)
		if err == nil {
			result, emitErr := c.emitter.Emit(s)
			if emitErr != nil {
				return nil, emitErr
			}
			c.submitResult(ctx, result)
			return result, nil
		}

		ce := types.AsCheckoutError(err)
		if !ce.Retryable || !s.CanRetry() {
			return nil, ce
		}
		if retryErr := s.Retry(); retryErr != nil {
			return nil, ce
		}
		c.log.Info("retrying checkout after transient failure", map[string]any{
			"orderId": s.Quote().OrderID,
			"attempt": s.RetryCount(),
		})
	}
}

// submitResult hands the receipt to the configured verification sink.
// The checkout is already Confirmed at this point; a sink failure is
// logged for reconciliation, never unwound into the payer's result.
func (c *Checkout) submitResult(ctx context.Context, result *types.PaymentResult) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Submit(ctx, result); err != nil {
		c.log.Warn("payment result submission failed", map[string]any{
			"orderId": result.OrderID,
			"txHash":  result.TxHash,
			"error":   err.Error(),
		})
	}
}

func (c *Checkout) runAttempt(ctx context.Context, s *session.Session) error {
	if err := s.ConnectWallet(ctx); err != nil {
		return err
	}
	if err := s.RequestConfirm(); err != nil {
		return err
	}
	return s.Confirm(ctx)
}

// Emit exposes the receipt emitter for callers driving sessions
// step by step.
func (c *Checkout) Emit(s *session.Session) (*types.PaymentResult, error) {
	return c.emitter.Emit(s)
}

// Close releases what New set up, flushing any buffered log output.
// Call it once the facade is no longer needed, typically deferred right
// after New.
func (c *Checkout) Close() {
	if s, ok := c.log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// Policy exposes the chain policy (target chain, explorer links).
func (c *Checkout) Policy() *chain.Policy {
	return c.policy
}

// Gateway exposes the shared wallet gateway.
func (c *Checkout) Gateway() *wallet.Gateway {
	return c.gateway
}
