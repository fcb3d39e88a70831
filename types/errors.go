package types

import (
	"errors"
	"fmt"
	"strings"
)

// Checkout error codes. The UI branches on Retryable, never on these,
// but they are stable identifiers for telemetry and logs.
const (
	ErrNoWallet      = "no_wallet"
	ErrUserRejected  = "user_rejected"
	ErrNoAccount     = "no_account"
	ErrChainMismatch = "chain_mismatch"
	ErrChainSwitch   = "chain_switch_failed"
	ErrValidation    = "validation_failed"
	ErrProvider      = "provider_error"
	ErrBadState      = "illegal_transition"
)

// CheckoutError is the typed failure surfaced by every component.
// Retryable means a transient provider/transport fault that is safe to
// re-attempt automatically within the retry bound; everything else
// requires a fresh user decision.
type CheckoutError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *CheckoutError) Error() string {
	return e.Message
}

// NewCheckoutError builds an error with the retryability implied by its
// code: only provider/transport failures are retryable.
func NewCheckoutError(code, message string) *CheckoutError {
	return &CheckoutError{
		Code:      code,
		Message:   message,
		Retryable: code == ErrProvider,
	}
}

// Errorf is NewCheckoutError with a format string.
func Errorf(code, format string, args ...any) *CheckoutError {
	return NewCheckoutError(code, fmt.Sprintf(format, args...))
}

// AsCheckoutError unwraps err into a *CheckoutError, classifying
// foreign errors as generic provider failures.
func AsCheckoutError(err error) *CheckoutError {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce
	}
	return ClassifyProviderError(err)
}

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
)

// RPCError is a JSON-RPC style error as reported by a wallet provider.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode satisfies the go-ethereum rpc.Error interface so RPCError
// values interoperate with geth-backed providers.
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// errorCoder matches both RPCError and go-ethereum's rpc.Error.
type errorCoder interface {
	ErrorCode() int
}

// ClassifyProviderError maps a raw provider error to the checkout
// taxonomy. Explicit user rejection is never retryable; everything else
// coming out of a provider is treated as transient.
func ClassifyProviderError(err error) *CheckoutError {
	if err == nil {
		return nil
	}

	var coder errorCoder
	if errors.As(err, &coder) {
		switch coder.ErrorCode() {
		case CodeUserRejected, CodeUnauthorized:
			return NewCheckoutError(ErrUserRejected, "user rejected the request")
		}
	}

	// Some wallets report rejection only in the message text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied") {
		return NewCheckoutError(ErrUserRejected, "user rejected the request")
	}

	return NewCheckoutError(ErrProvider, err.Error())
}

// IsUnrecognizedChain reports whether err is the provider saying it has
// never heard of the requested chain (EIP-3085 add-chain fallback).
func IsUnrecognizedChain(err error) bool {
	var coder errorCoder
	return errors.As(err, &coder) && coder.ErrorCode() == CodeUnrecognizedChain
}
