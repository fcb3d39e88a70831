// Package session drives one purchase from intent to terminal outcome.
// The state machine owns the transition guards, the retry bound, the
// error classification policy and cooperative cancellation; all wallet
// I/O goes through the stateless gateway and chain policy it is handed.
package session

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/carelane/checkout/chain"
	"github.com/carelane/checkout/logger"
	"github.com/carelane/checkout/metrics"
	"github.com/carelane/checkout/txbuilder"
	"github.com/carelane/checkout/types"
	"github.com/carelane/checkout/wallet"
)

// Session is the mutable aggregate root for one checkout. It is
// manipulated by one logical caller at a time; the mutex exists because
// a slow wallet call and a fast Cancel click can race, and the
// generation counter makes sure the loser of that race is discarded
// rather than reviving a cancelled session.
type Session struct {
	mu         sync.Mutex
	state      State
	quote      *types.Quote
	wallet     *types.WalletSession
	provider   wallet.Provider
	txHash     string
	err        *types.CheckoutError
	retryCount int
	maxRetries int
	maxAmount  decimal.Decimal
	generation uint64

	confirmedAt time.Time

	gateway *wallet.Gateway
	policy  *chain.Policy
	log     logger.Logger
	rec     metrics.Recorder
	now     func() time.Time
}

// New builds an Idle session bound to the shared gateway and chain
// policy. maxRetries <= 0 means types.DefaultMaxRetries.
func New(gw *wallet.Gateway, policy *chain.Policy, maxRetries int, log logger.Logger, rec metrics.Recorder) *Session {
	if maxRetries <= 0 {
		maxRetries = types.DefaultMaxRetries
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Session{
		state:      StateIdle,
		maxRetries: maxRetries,
		maxAmount:  types.DefaultMaxAmountUSD,
		gateway:    gw,
		policy:     policy,
		log:        log,
		rec:        rec,
		now:        time.Now,
	}
}

// WithMaxAmount overrides the per-checkout USD cap enforced by the
// defensive quote re-check. Zero keeps the default.
func (s *Session) WithMaxAmount(max decimal.Decimal) *Session {
	if !max.IsZero() {
		s.maxAmount = max
	}
	return s
}

// WithClock replaces the session's time source, for tests.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// SetQuote attaches a validated quote: Idle -> QuoteReady. The quote is
// re-checked defensively even though the quote service validated it
// upstream.
func (s *Session) SetQuote(q *types.Quote) error {
	if err := checkQuote(q, s.maxAmount); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return s.illegalLocked("SetQuote")
	}
	s.quote = q
	s.setStateLocked(StateQuoteReady)
	return nil
}

// ConnectWallet discovers a provider, requests accounts and verifies
// the chain: QuoteReady -> WalletConnecting -> WalletReady. Rejection
// and missing-wallet failures are not auto-retried; chain failures are
// fatal; transport failures are retryable.
func (s *Session) ConnectWallet(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateQuoteReady {
		defer s.mu.Unlock()
		return s.illegalLocked("ConnectWallet")
	}
	s.setStateLocked(StateWalletConnecting)
	gen := s.generation
	s.mu.Unlock()

	started := s.now()

	provider := s.gateway.Discover(ctx)
	if provider == nil {
		return s.resolve(gen, StateWalletConnecting, func() error {
			return s.failLocked(types.NewCheckoutError(types.ErrNoWallet, "no wallet provider available"))
		})
	}

	address, err := s.gateway.RequestAccounts(ctx, provider)
	if err != nil {
		ce := types.AsCheckoutError(err)
		return s.resolve(gen, StateWalletConnecting, func() error {
			return s.failLocked(ce)
		})
	}

	chainID, err := s.policy.EnsureTargetChain(ctx, s.gateway, provider)
	if err != nil {
		ce := types.AsCheckoutError(err)
		return s.resolve(gen, StateWalletConnecting, func() error {
			return s.failLocked(ce)
		})
	}

	return s.resolve(gen, StateWalletConnecting, func() error {
		s.provider = provider
		s.wallet = &types.WalletSession{Address: address, ChainID: chainID}
		s.setStateLocked(StateWalletReady)
		s.observe("wallet_connect", started)
		s.count("wallet_connected")
		return nil
	})
}

// RequestConfirm signals the UI that the wallet is ready and the user
// should be shown the final confirmation: WalletReady -> AwaitingConfirm.
// No I/O.
func (s *Session) RequestConfirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWalletReady {
		return s.illegalLocked("RequestConfirm")
	}
	s.setStateLocked(StateAwaitingConfirm)
	return nil
}

// Confirm submits the token transfer: AwaitingConfirm -> Pending, then
// Confirmed once the wallet reports a transaction hash. Wallet-level
// acceptance counts as checkout completion from the payer's side;
// on-chain finality is reconciled by the external verifier. A user
// decline moves to Cancelled; any other provider failure is a
// retryable Failed.
func (s *Session) Confirm(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAwaitingConfirm {
		defer s.mu.Unlock()
		return s.illegalLocked("Confirm")
	}
	if s.wallet == nil {
		defer s.mu.Unlock()
		return s.failLocked(types.NewCheckoutError(types.ErrChainMismatch,
			"no verified wallet session to submit with"))
	}
	s.setStateLocked(StatePending)
	gen := s.generation
	q := s.quote
	from := s.wallet.Address
	provider := s.provider
	s.mu.Unlock()

	started := s.now()

	callData, err := txbuilder.EncodeTransfer(q.RecipientAddress, q.AmountTokenUnits)
	if err != nil {
		ce := types.AsCheckoutError(err)
		return s.resolve(gen, StatePending, func() error {
			return s.failLocked(ce)
		})
	}

	// The wallet may have hopped networks since connect; re-verify
	// against the chain policy before submitting anything.
	chainID, err := s.gateway.ChainID(ctx, provider)
	if err != nil {
		ce := types.AsCheckoutError(err)
		return s.resolve(gen, StatePending, func() error {
			return s.failLocked(ce)
		})
	}
	if !s.policy.IsTargetChain(chainID) {
		return s.resolve(gen, StatePending, func() error {
			return s.failLocked(types.Errorf(types.ErrChainMismatch,
				"wallet moved to chain %d, expected %d", chainID, s.policy.TargetChainID()))
		})
	}

	txHash, err := s.gateway.SendTransaction(ctx, provider, from, s.policy.TokenAddress(), callData)
	if err != nil {
		ce := types.AsCheckoutError(err)
		return s.resolve(gen, StatePending, func() error {
			if ce.Code == types.ErrUserRejected {
				s.setStateLocked(StateCancelled)
				s.err = ce
				s.count("checkout_cancelled")
				return ce
			}
			return s.failLocked(ce)
		})
	}

	return s.resolve(gen, StatePending, func() error {
		s.txHash = txHash
		s.confirmedAt = s.now().UTC()
		s.setStateLocked(StateConfirmed)
		s.observe("tx_submit", started)
		s.count("checkout_confirmed")
		s.log.Info("transaction submitted", map[string]any{
			"orderId": q.OrderID,
			"txHash":  txHash,
			"url":     s.policy.TxURL(txHash),
		})
		return nil
	})
}

// SignMessage signs an ownership-check message with the connected
// wallet. Valid once the wallet is connected; does not transition state.
func (s *Session) SignMessage(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	if s.wallet == nil || (s.state != StateWalletReady && s.state != StateAwaitingConfirm) {
		s.mu.Unlock()
		return "", types.Errorf(types.ErrBadState, "SignMessage requires a connected wallet")
	}
	provider := s.provider
	address := s.wallet.Address
	s.mu.Unlock()

	return s.gateway.SignMessage(ctx, provider, address, message)
}

// Retry re-enters the flow at QuoteReady with the same quote and order
// id. Permitted only from Failed, only while the retry budget lasts,
// and never for fatal (validation/chain) failures.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return s.illegalLocked("Retry")
	}
	if !s.canRetryLocked() {
		return s.illegalLocked("Retry")
	}

	s.wallet = nil
	s.provider = nil
	s.err = nil
	s.generation++
	s.setStateLocked(StateQuoteReady)
	s.count("checkout_retried")
	return nil
}

// Cancel marks the session Cancelled. Permitted from every state except
// Confirmed; idempotent on Cancelled. An in-flight wallet call cannot
// be aborted, so the generation bump makes its late result fall on the
// floor instead of reviving the session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConfirmed || s.state == StateCancelled {
		return
	}
	s.generation++
	s.setStateLocked(StateCancelled)
	s.count("checkout_cancelled")
}

// CanRetry reports whether Retry would currently be accepted. For
// display the session reads as non-retryable once the budget is spent,
// even though the stored error keeps its classification for telemetry.
func (s *Session) CanRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateFailed && s.canRetryLocked()
}

func (s *Session) canRetryLocked() bool {
	if s.err == nil {
		return false
	}
	switch s.err.Code {
	case types.ErrValidation, types.ErrChainMismatch, types.ErrChainSwitch:
		return false
	}
	return s.retryCount < s.maxRetries
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Quote returns the attached quote, nil while Idle.
func (s *Session) Quote() *types.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote
}

// Wallet returns the connected wallet session, nil before WalletReady.
func (s *Session) Wallet() *types.WalletSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// TxHash returns the submitted transaction hash, "" before Confirmed.
func (s *Session) TxHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txHash
}

// Err returns the last checkout error, nil when none.
func (s *Session) Err() *types.CheckoutError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RetryCount returns how many times the session has entered Failed.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// ConfirmedAt returns when the wallet reported the transaction hash.
func (s *Session) ConfirmedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedAt
}

// resolve applies the completion of a suspended call, discarding it
// when the session moved on (cancelled or superseded) while the call
// was in flight.
func (s *Session) resolve(gen uint64, expect State, apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != expect {
		s.log.Debug("stale wallet result discarded", map[string]any{
			"state": s.state.String(),
		})
		return nil
	}
	return apply()
}

func (s *Session) failLocked(ce *types.CheckoutError) error {
	if s.retryCount < s.maxRetries {
		s.retryCount++
	}
	s.err = ce
	s.setStateLocked(StateFailed)
	s.count("checkout_failed")
	s.log.Warn("checkout failed", map[string]any{
		"code":       ce.Code,
		"retryable":  ce.Retryable,
		"retryCount": s.retryCount,
	})
	return ce
}

func (s *Session) illegalLocked(op string) error {
	return types.Errorf(types.ErrBadState, "%s is not allowed in state %s", op, s.state)
}

func (s *Session) setStateLocked(next State) {
	s.log.Debug("session transition", map[string]any{
		"from": s.state.String(),
		"to":   next.String(),
	})
	s.state = next
}

func (s *Session) count(event string) {
	s.rec.IncCounter(event, map[string]string{
		"network": strconv.FormatInt(s.policy.TargetChainID(), 10),
	})
}

func (s *Session) observe(op string, started time.Time) {
	s.rec.ObserveLatency(op, s.now().Sub(started), map[string]string{
		"network": strconv.FormatInt(s.policy.TargetChainID(), 10),
	})
}

func checkQuote(q *types.Quote, maxAmount decimal.Decimal) error {
	if q == nil {
		return types.Errorf(types.ErrValidation, "quote is required")
	}
	if !q.AmountUSD.IsPositive() {
		return types.Errorf(types.ErrValidation, "quote amount must be positive")
	}
	if q.AmountUSD.GreaterThan(maxAmount) {
		return types.Errorf(types.ErrValidation,
			"quote amount %s exceeds the %s USD limit", q.AmountUSD, maxAmount)
	}
	if !common.IsHexAddress(q.RecipientAddress) {
		return types.Errorf(types.ErrValidation, "quote recipient %q is not a valid address", q.RecipientAddress)
	}
	if units, ok := new(big.Int).SetString(q.AmountTokenUnits, 10); !ok || units.Sign() <= 0 {
		return types.Errorf(types.ErrValidation, "quote token amount %q is not a positive integer", q.AmountTokenUnits)
	}
	return nil
}
