package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/checkout/types"
	"github.com/carelane/checkout/wallet"
)

var testChain = types.ChainConfig{
	ChainID:      8453,
	Name:         "Base",
	RPCURL:       "https://mainnet.base.org",
	ExplorerURL:  "https://basescan.org",
	TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	NativeCurrency: types.NativeCurrency{
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	},
}

// switchProvider scripts wallet_switchEthereumChain and
// wallet_addEthereumChain responses.
type switchProvider struct {
	chainHex   string
	switchErrs []error // popped per switch attempt
	addErr     error

	switches int
	adds     int
	addParam map[string]any
}

func (p *switchProvider) Request(_ context.Context, method string, params ...any) (any, error) {
	switch method {
	case wallet.MethodChainID:
		return p.chainHex, nil
	case wallet.MethodSwitchChain:
		p.switches++
		if len(p.switchErrs) > 0 {
			err := p.switchErrs[0]
			p.switchErrs = p.switchErrs[1:]
			return nil, err
		}
		return nil, nil
	case wallet.MethodAddChain:
		p.adds++
		if m, ok := params[0].(map[string]any); ok {
			p.addParam = m
		}
		return nil, p.addErr
	}
	return nil, nil
}

func TestIsTargetChain(t *testing.T) {
	p := NewPolicy(testChain, nil)
	assert.True(t, p.IsTargetChain(8453))
	assert.False(t, p.IsTargetChain(1))
	assert.Equal(t, int64(8453), p.TargetChainID())
}

func TestAddOrSwitchChainSwitchSucceedsFirstTry(t *testing.T) {
	policy := NewPolicy(testChain, nil)
	gw := wallet.NewGateway(nil, nil)
	provider := &switchProvider{}

	require.NoError(t, policy.AddOrSwitchChain(context.Background(), gw, provider))
	assert.Equal(t, 1, provider.switches)
	assert.Zero(t, provider.adds, "add chain must not run when switching works")
}

func TestAddOrSwitchChainRegistersUnknownChain(t *testing.T) {
	policy := NewPolicy(testChain, nil)
	gw := wallet.NewGateway(nil, nil)
	provider := &switchProvider{
		switchErrs: []error{&types.RPCError{Code: types.CodeUnrecognizedChain, Message: "unknown chain"}},
	}

	require.NoError(t, policy.AddOrSwitchChain(context.Background(), gw, provider))
	assert.Equal(t, 2, provider.switches, "switch retried once after registration")
	assert.Equal(t, 1, provider.adds)

	require.NotNil(t, provider.addParam)
	assert.Equal(t, "0x2105", provider.addParam["chainId"])
	assert.Equal(t, "Base", provider.addParam["chainName"])
	assert.Equal(t, []string{"https://mainnet.base.org"}, provider.addParam["rpcUrls"])
}

func TestAddOrSwitchChainOtherErrorsAreFatal(t *testing.T) {
	policy := NewPolicy(testChain, nil)
	gw := wallet.NewGateway(nil, nil)
	provider := &switchProvider{switchErrs: []error{errors.New("internal wallet error")}}

	err := policy.AddOrSwitchChain(context.Background(), gw, provider)
	require.Error(t, err)
	ce := types.AsCheckoutError(err)
	assert.Equal(t, types.ErrChainSwitch, ce.Code)
	assert.False(t, ce.Retryable)
	assert.Zero(t, provider.adds)
}

func TestAddOrSwitchChainAddFailureIsFatal(t *testing.T) {
	policy := NewPolicy(testChain, nil)
	gw := wallet.NewGateway(nil, nil)
	provider := &switchProvider{
		switchErrs: []error{&types.RPCError{Code: types.CodeUnrecognizedChain, Message: "unknown chain"}},
		addErr:     errors.New("user has add-chain disabled"),
	}

	err := policy.AddOrSwitchChain(context.Background(), gw, provider)
	require.Error(t, err)
	assert.Equal(t, types.ErrChainSwitch, types.AsCheckoutError(err).Code)
}

func TestEnsureTargetChain(t *testing.T) {
	policy := NewPolicy(testChain, nil)
	gw := wallet.NewGateway(nil, nil)

	t.Run("already correct", func(t *testing.T) {
		provider := &switchProvider{chainHex: "0x2105"}
		id, err := policy.EnsureTargetChain(context.Background(), gw, provider)
		require.NoError(t, err)
		assert.Equal(t, int64(8453), id)
		assert.Zero(t, provider.switches)
	})

	t.Run("wrong chain, switch works", func(t *testing.T) {
		provider := &switchProvider{chainHex: "0x1"}
		id, err := policy.EnsureTargetChain(context.Background(), gw, provider)
		require.NoError(t, err)
		assert.Equal(t, int64(8453), id)
		assert.Equal(t, 1, provider.switches)
	})
}

func TestTxURL(t *testing.T) {
	assert.Equal(t,
		"https://basescan.org/tx/0xabc",
		NewPolicy(testChain, nil).TxURL("0xabc"))

	bare := testChain
	bare.ExplorerURL = ""
	assert.Empty(t, NewPolicy(bare, nil).TxURL("0xabc"))
}
