// Package wallet abstracts over whatever wallet/provider source is
// available (host-embedded, SDK-managed, browser-injected) behind a
// single gateway. The gateway performs no retries; retry policy lives
// in the session state machine.
package wallet

import "context"

// JSON-RPC methods the gateway speaks. The wire format behind them is
// the provider's contract, not this package's.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodPersonalSign    = "personal_sign"
	MethodSendTransaction = "eth_sendTransaction"
)

// Provider is the capability interface every wallet variant reduces to:
// a duck-typed JSON-RPC request pipe. Concrete providers differ only in
// where they come from, never in shape.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (any, error)
}

// Source yields a Provider when its backing wallet is present.
// Returning nil means "not available here", not an error.
type Source interface {
	Name() string
	Provider(ctx context.Context) Provider
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context) Provider
}

func (s SourceFunc) Name() string { return s.SourceName }

func (s SourceFunc) Provider(ctx context.Context) Provider {
	if s.Fn == nil {
		return nil
	}
	return s.Fn(ctx)
}

// StaticSource wraps an already-constructed provider, e.g. one handed
// over by an embedding host app.
func StaticSource(name string, p Provider) Source {
	return SourceFunc{
		SourceName: name,
		Fn: func(context.Context) Provider {
			return p
		},
	}
}
