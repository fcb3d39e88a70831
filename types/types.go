// Package types holds the shared data model for the checkout core:
// intents, quotes, wallet sessions, payment results, configuration and
// the checkout error taxonomy.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutIntent is the inbound request to start a checkout. Either
// OrderID references a server-priced booking, or AmountUSD plus
// ServiceName describe an ad-hoc purchase.
type CheckoutIntent struct {
	// OrderID, when set, references a server-known booking and is reused
	// as the idempotency key for the whole flow.
	OrderID string `json:"orderId,omitempty"`

	// AmountUSD is the price in USD for ad-hoc purchases.
	AmountUSD decimal.Decimal `json:"amountUsd,omitempty"`

	// ServiceName names what is being purchased (e.g. "Basic Screening").
	ServiceName string `json:"serviceName,omitempty" validate:"omitempty,max=200"`

	// ServiceDescription is an optional longer description.
	ServiceDescription string `json:"serviceDescription,omitempty" validate:"omitempty,max=2000"`

	// RecipientAddress is the wallet being paid. Empty means the
	// configured treasury address.
	RecipientAddress string `json:"recipientAddress,omitempty"`

	// ProviderID/ProviderName identify the healthcare provider being paid.
	ProviderID   string `json:"providerId,omitempty"`
	ProviderName string `json:"providerName,omitempty"`
}

// Quote is an immutable, validated price snapshot for one checkout.
// Once attached to a session it never changes; a new checkout needs a
// new Quote.
type Quote struct {
	OrderID     string `json:"orderId"`
	ServiceName string `json:"serviceName"`

	// AmountUSD is the quoted price in USD.
	AmountUSD decimal.Decimal `json:"amountUsd"`

	// AmountTokenUnits is AmountUSD converted to the token's smallest
	// unit at quote time. Represented as a string because Go does not
	// support uint256.
	AmountTokenUnits string `json:"amountTokenUnits"`

	RecipientAddress string    `json:"recipientAddress"`
	ProviderID       string    `json:"providerId,omitempty"`
	ProviderName     string    `json:"providerName,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// WalletSession is a connected wallet for the duration of one checkout
// attempt. Not persisted; re-derived on reconnect.
type WalletSession struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

// PaymentResult is the receipt handed to the external verification
// collaborator once a transaction has been submitted. Produced exactly
// once per successful checkout; immutable.
type PaymentResult struct {
	OrderID          string    `json:"orderId"`
	TxHash           string    `json:"txHash"`
	Sender           string    `json:"sender"`
	Recipient        string    `json:"recipient"`
	AmountTokenUnits string    `json:"amountTokenUnits"`
	ChainID          int64     `json:"chainId"`
	ConfirmedAt      time.Time `json:"confirmedAt"`
}

// NativeCurrency describes the chain's gas currency, needed when the
// wallet is asked to register an unknown chain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainConfig describes the one network checkouts are sent on. Swapping
// networks (test vs. production) is a configuration change, never a
// code change.
type ChainConfig struct {
	ChainID        int64          `json:"chainId" validate:"required,gt=0"`
	Name           string         `json:"name" validate:"required"`
	RPCURL         string         `json:"rpcUrl" validate:"required,url"`
	ExplorerURL    string         `json:"explorerUrl,omitempty" validate:"omitempty,url"`
	TokenAddress   string         `json:"tokenAddress" validate:"required"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
}

// Config is the global configuration for the checkout core.
type Config struct {
	Chain ChainConfig `json:"chain"`

	// TreasuryAddress receives payment when an intent names no explicit
	// recipient.
	TreasuryAddress string `json:"treasuryAddress"`

	// MaxAmountUSD is the upper bound on a single checkout. Zero means
	// DefaultMaxAmountUSD.
	MaxAmountUSD decimal.Decimal `json:"maxAmountUsd,omitempty"`

	// MaxRetries bounds automatic retries of provider failures. Zero
	// means DefaultMaxRetries.
	MaxRetries int `json:"maxRetries,omitempty"`

	LogLevel      string `json:"logLevel,omitempty"`
	EnableMetrics bool   `json:"enableMetrics,omitempty"`
}

// TokenDecimals is fixed: amounts are quoted against a 6-decimals
// stable-value token (USDC-style).
const TokenDecimals = 6

// DefaultMaxRetries bounds automatic retries when Config.MaxRetries is zero.
const DefaultMaxRetries = 3

// DefaultMaxAmountUSD caps a single checkout when Config.MaxAmountUSD is zero.
var DefaultMaxAmountUSD = decimal.NewFromInt(1000)
