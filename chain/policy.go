// Package chain enforces the network a checkout is allowed to settle
// on: verifying the wallet's chain, switching it, and registering the
// chain with the wallet when it is unknown there.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/carelane/checkout/logger"
	"github.com/carelane/checkout/types"
	"github.com/carelane/checkout/wallet"
)

// Policy knows the one target network and how to get a wallet onto it.
// Stateless; shared by all sessions.
type Policy struct {
	cfg types.ChainConfig
	log logger.Logger
}

// NewPolicy builds a policy for the configured network.
func NewPolicy(cfg types.ChainConfig, log logger.Logger) *Policy {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Policy{cfg: cfg, log: log}
}

// TargetChainID returns the only chain transactions may be sent on.
func (p *Policy) TargetChainID() int64 {
	return p.cfg.ChainID
}

// TokenAddress returns the stablecoin contract on the target chain.
func (p *Policy) TokenAddress() string {
	return p.cfg.TokenAddress
}

// IsTargetChain reports whether chainID is the configured network.
func (p *Policy) IsTargetChain(chainID int64) bool {
	return chainID == p.cfg.ChainID
}

// TxURL renders a block-explorer link for a submitted transaction, or
// "" when no explorer is configured.
func (p *Policy) TxURL(txHash string) string {
	if p.cfg.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(p.cfg.ExplorerURL, "/"), txHash)
}

// AddOrSwitchChain moves the wallet onto the target chain. It first
// requests a switch; if the provider has never heard of the chain it
// registers it and retries the switch once. Any other provider failure
// is fatal — the caller decides whether to start over.
func (p *Policy) AddOrSwitchChain(ctx context.Context, gw *wallet.Gateway, provider wallet.Provider) error {
	err := gw.SwitchChain(ctx, provider, p.cfg.ChainID)
	if err == nil {
		return nil
	}

	if !types.IsUnrecognizedChain(err) {
		return types.Errorf(types.ErrChainSwitch,
			"failed to switch to %s (chain %d): %v", p.cfg.Name, p.cfg.ChainID, err)
	}

	p.log.Info("chain unknown to wallet, registering", map[string]any{
		"chain":   p.cfg.Name,
		"chainId": p.cfg.ChainID,
	})

	if err := gw.AddChain(ctx, provider, p.cfg); err != nil {
		return types.Errorf(types.ErrChainSwitch,
			"failed to add chain %s: %v", p.cfg.Name, err)
	}
	if err := gw.SwitchChain(ctx, provider, p.cfg.ChainID); err != nil {
		return types.Errorf(types.ErrChainSwitch,
			"failed to switch to %s after adding it: %v", p.cfg.Name, err)
	}
	return nil
}

// EnsureTargetChain verifies the wallet's current chain and, when it is
// wrong, drives AddOrSwitchChain. Returns the chain id the wallet ends
// up on.
func (p *Policy) EnsureTargetChain(ctx context.Context, gw *wallet.Gateway, provider wallet.Provider) (int64, error) {
	chainID, err := gw.ChainID(ctx, provider)
	if err != nil {
		return 0, err
	}
	if p.IsTargetChain(chainID) {
		return chainID, nil
	}

	p.log.Info("wallet on wrong chain", map[string]any{
		"have": chainID,
		"want": p.cfg.ChainID,
	})
	if err := p.AddOrSwitchChain(ctx, gw, provider); err != nil {
		return 0, err
	}
	return p.cfg.ChainID, nil
}
