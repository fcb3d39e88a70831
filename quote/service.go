// Package quote turns inbound checkout intents into immutable,
// validated price quotes.
package quote

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carelane/checkout/types"
)

// Service builds quotes. Stateless apart from configuration; shared by
// all sessions.
type Service struct {
	treasury  string
	maxAmount decimal.Decimal
	validate  *validator.Validate
	now       func() time.Time
}

// NewService builds a quote service. treasury is the default recipient
// when an intent names none; maxAmount caps a single checkout (zero
// means types.DefaultMaxAmountUSD).
func NewService(treasury string, maxAmount decimal.Decimal) *Service {
	if maxAmount.IsZero() {
		maxAmount = types.DefaultMaxAmountUSD
	}
	return &Service{
		treasury:  treasury,
		maxAmount: maxAmount,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// WithClock replaces the quote timestamp source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BuildQuote validates intent and produces the immutable Quote for one
// checkout attempt. Amount must be finite and within (0, max]; the
// recipient must be a valid address. Ad-hoc intents get a generated
// order id; intents with an order id keep it verbatim so retries and
// reconciliation share one idempotency key.
func (s *Service) BuildQuote(intent types.CheckoutIntent) (*types.Quote, error) {
	if err := s.validate.Struct(&intent); err != nil {
		return nil, types.Errorf(types.ErrValidation, "invalid intent: %v", err)
	}

	if !intent.AmountUSD.IsPositive() {
		return nil, types.Errorf(types.ErrValidation,
			"amount must be greater than zero, got %s", intent.AmountUSD)
	}
	if intent.AmountUSD.GreaterThan(s.maxAmount) {
		return nil, types.Errorf(types.ErrValidation,
			"amount %s exceeds the %s USD checkout limit", intent.AmountUSD, s.maxAmount)
	}

	recipient := intent.RecipientAddress
	if recipient == "" {
		recipient = s.treasury
	}
	if !common.IsHexAddress(recipient) {
		return nil, types.Errorf(types.ErrValidation, "invalid recipient address %q", recipient)
	}

	orderID := intent.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	return &types.Quote{
		OrderID:          orderID,
		ServiceName:      intent.ServiceName,
		AmountUSD:        intent.AmountUSD,
		AmountTokenUnits: TokenUnits(intent.AmountUSD),
		RecipientAddress: common.HexToAddress(recipient).Hex(),
		ProviderID:       intent.ProviderID,
		ProviderName:     intent.ProviderName,
		CreatedAt:        s.now().UTC(),
	}, nil
}

// TokenUnits converts a USD amount to the token's smallest unit:
// floor(amountUsd * 10^6). Flooring, never rounding up, so the payer
// never overpays on conversion.
func TokenUnits(amountUSD decimal.Decimal) string {
	return amountUSD.Shift(types.TokenDecimals).Floor().String()
}
