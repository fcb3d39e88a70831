package wallet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/carelane/checkout/logger"
	"github.com/carelane/checkout/types"
)

// Gateway is the shared, stateless wallet service. It owns no session
// state and is safe to use from many checkout sessions at once.
type Gateway struct {
	sources []Source
	log     logger.Logger
}

// NewGateway builds a gateway that discovers providers from sources in
// priority order (host-embedded first, browser-injected last).
func NewGateway(sources []Source, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Gateway{sources: sources, log: log}
}

// Discover returns the first provider that responds, or nil when no
// wallet is reachable. A provider "responds" when it answers a chain-id
// probe without transport failure.
func (g *Gateway) Discover(ctx context.Context) Provider {
	for _, src := range g.sources {
		p := src.Provider(ctx)
		if p == nil {
			continue
		}
		if _, err := p.Request(ctx, MethodChainID); err != nil {
			g.log.Debug("provider probe failed", map[string]any{
				"source": src.Name(),
				"error":  err.Error(),
			})
			continue
		}
		g.log.Info("wallet provider discovered", map[string]any{"source": src.Name()})
		return p
	}
	return nil
}

// RequestAccounts asks the wallet to expose its accounts and returns
// the primary address.
func (g *Gateway) RequestAccounts(ctx context.Context, p Provider) (string, error) {
	if p == nil {
		return "", types.NewCheckoutError(types.ErrNoWallet, "no wallet provider available")
	}

	result, err := p.Request(ctx, MethodRequestAccounts)
	if err != nil {
		return "", types.ClassifyProviderError(err)
	}

	accounts := toStringSlice(result)
	if len(accounts) == 0 {
		return "", types.NewCheckoutError(types.ErrNoAccount, "wallet returned no accounts")
	}
	return accounts[0], nil
}

// ChainID reports the chain the wallet is currently on.
func (g *Gateway) ChainID(ctx context.Context, p Provider) (int64, error) {
	if p == nil {
		return 0, types.NewCheckoutError(types.ErrNoWallet, "no wallet provider available")
	}

	result, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return 0, types.ClassifyProviderError(err)
	}
	id, err := parseChainID(result)
	if err != nil {
		return 0, types.Errorf(types.ErrProvider, "unparseable chain id: %v", err)
	}
	return id, nil
}

// SwitchChain asks the wallet to move to chainID. The raw provider
// error is returned so the chain policy can detect the unrecognized
// chain case and fall back to registration.
func (g *Gateway) SwitchChain(ctx context.Context, p Provider, chainID int64) error {
	_, err := p.Request(ctx, MethodSwitchChain, map[string]any{
		"chainId": HexChainID(chainID),
	})
	return err
}

// AddChain asks the wallet to register the configured network.
func (g *Gateway) AddChain(ctx context.Context, p Provider, cfg types.ChainConfig) error {
	_, err := p.Request(ctx, MethodAddChain, map[string]any{
		"chainId":   HexChainID(cfg.ChainID),
		"chainName": cfg.Name,
		"rpcUrls":   []string{cfg.RPCURL},
		"blockExplorerUrls": []string{
			cfg.ExplorerURL,
		},
		"nativeCurrency": map[string]any{
			"name":     cfg.NativeCurrency.Name,
			"symbol":   cfg.NativeCurrency.Symbol,
			"decimals": cfg.NativeCurrency.Decimals,
		},
	})
	return err
}

// SignMessage signs message with address via personal_sign. Wallets
// disagree on the parameter order, so a failed first attempt is retried
// once with the arguments swapped. The fallback is intentional
// cross-wallet compatibility behavior; an explicit user rejection is
// never re-prompted.
func (g *Gateway) SignMessage(ctx context.Context, p Provider, address, message string) (string, error) {
	if p == nil {
		return "", types.NewCheckoutError(types.ErrNoWallet, "no wallet provider available")
	}

	result, err := p.Request(ctx, MethodPersonalSign, message, address)
	if err != nil {
		first := types.ClassifyProviderError(err)
		if first.Code == types.ErrUserRejected {
			return "", first
		}
		g.log.Debug("personal_sign retrying with swapped argument order", map[string]any{
			"error": err.Error(),
		})
		result, err = p.Request(ctx, MethodPersonalSign, address, message)
		if err != nil {
			return "", types.ClassifyProviderError(err)
		}
	}

	sig, ok := result.(string)
	if !ok || sig == "" {
		return "", types.Errorf(types.ErrProvider, "wallet returned empty signature")
	}
	return sig, nil
}

// SendTransaction submits a raw contract call and returns the
// transaction hash reported by the wallet.
func (g *Gateway) SendTransaction(ctx context.Context, p Provider, from, to, data string) (string, error) {
	if p == nil {
		return "", types.NewCheckoutError(types.ErrNoWallet, "no wallet provider available")
	}

	result, err := p.Request(ctx, MethodSendTransaction, map[string]any{
		"from": from,
		"to":   to,
		"data": data,
	})
	if err != nil {
		return "", types.ClassifyProviderError(err)
	}

	txHash, ok := result.(string)
	if !ok || txHash == "" {
		return "", types.Errorf(types.ErrProvider, "wallet returned no transaction hash")
	}
	return txHash, nil
}

// HexChainID renders a chain id the way EIP-695 expects it on the wire.
func HexChainID(id int64) string {
	return fmt.Sprintf("0x%x", id)
}

func parseChainID(v any) (int64, error) {
	switch id := v.(type) {
	case string:
		s := strings.TrimPrefix(strings.ToLower(id), "0x")
		if s == id {
			return strconv.ParseInt(id, 10, 64)
		}
		return strconv.ParseInt(s, 16, 64)
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case float64:
		return int64(id), nil
	default:
		return 0, fmt.Errorf("unexpected chain id type %T", v)
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
