// Package receipt projects a confirmed checkout session into the
// immutable PaymentResult handed to the external verification system.
package receipt

import (
	"context"

	"github.com/carelane/checkout/session"
	"github.com/carelane/checkout/types"
)

// Sink receives payment results for server-side verification and
// persistence. POSTing the record anywhere is the implementation's
// concern; the emitter never performs I/O itself.
type Sink interface {
	Submit(ctx context.Context, result *types.PaymentResult) error
}

// Emitter assembles receipts from confirmed sessions.
type Emitter struct{}

// NewEmitter returns a receipt emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Emit builds the PaymentResult for s. Only a Confirmed session has a
// receipt; anything else is an illegal-transition error. The result is
// a pure projection of session fields, produced exactly once per
// successful checkout by construction (a session confirms once).
func (e *Emitter) Emit(s *session.Session) (*types.PaymentResult, error) {
	if s.State() != session.StateConfirmed {
		return nil, types.Errorf(types.ErrBadState,
			"cannot emit a receipt in state %s", s.State())
	}

	q := s.Quote()
	w := s.Wallet()

	return &types.PaymentResult{
		OrderID:          q.OrderID,
		TxHash:           s.TxHash(),
		Sender:           w.Address,
		Recipient:        q.RecipientAddress,
		AmountTokenUnits: q.AmountTokenUnits,
		ChainID:          w.ChainID,
		ConfirmedAt:      s.ConfirmedAt(),
	}, nil
}
