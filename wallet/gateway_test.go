package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/checkout/types"
)

// fakeProvider scripts provider behavior per JSON-RPC method and
// records every call it sees.
type fakeProvider struct {
	chainHex    string
	chainErr    error
	accounts    []string
	accountsErr error
	signResults map[int]signResult // keyed by personal_sign attempt index
	txHash      string
	sendErr     error

	calls []recordedCall
}

type signResult struct {
	sig string
	err error
}

type recordedCall struct {
	method string
	params []any
}

func (p *fakeProvider) Request(_ context.Context, method string, params ...any) (any, error) {
	p.calls = append(p.calls, recordedCall{method: method, params: params})

	switch method {
	case MethodChainID:
		if p.chainErr != nil {
			return nil, p.chainErr
		}
		return p.chainHex, nil
	case MethodRequestAccounts:
		if p.accountsErr != nil {
			return nil, p.accountsErr
		}
		return p.accounts, nil
	case MethodPersonalSign:
		attempt := 0
		for _, c := range p.calls[:len(p.calls)-1] {
			if c.method == MethodPersonalSign {
				attempt++
			}
		}
		r := p.signResults[attempt]
		return r.sig, r.err
	case MethodSendTransaction:
		if p.sendErr != nil {
			return nil, p.sendErr
		}
		return p.txHash, nil
	default:
		return nil, nil
	}
}

func (p *fakeProvider) callsTo(method string) []recordedCall {
	var out []recordedCall
	for _, c := range p.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func TestDiscoverHonorsSourceOrder(t *testing.T) {
	broken := &fakeProvider{chainErr: errors.New("rpc unreachable")}
	healthy := &fakeProvider{chainHex: "0x2105"}

	gw := NewGateway([]Source{
		SourceFunc{SourceName: "host", Fn: func(context.Context) Provider { return nil }},
		StaticSource("sdk", broken),
		StaticSource("injected", healthy),
	}, nil)

	p := gw.Discover(context.Background())
	require.NotNil(t, p)
	assert.Same(t, Provider(healthy), p)
}

func TestDiscoverReturnsNilWhenNothingResponds(t *testing.T) {
	gw := NewGateway([]Source{
		SourceFunc{SourceName: "host", Fn: func(context.Context) Provider { return nil }},
	}, nil)
	assert.Nil(t, gw.Discover(context.Background()))
}

func TestRequestAccounts(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(nil, nil)

	t.Run("no provider", func(t *testing.T) {
		_, err := gw.RequestAccounts(ctx, nil)
		require.Error(t, err)
		assert.Equal(t, types.ErrNoWallet, types.AsCheckoutError(err).Code)
	})

	t.Run("user rejects", func(t *testing.T) {
		p := &fakeProvider{accountsErr: &types.RPCError{Code: types.CodeUserRejected, Message: "denied"}}
		_, err := gw.RequestAccounts(ctx, p)
		require.Error(t, err)
		ce := types.AsCheckoutError(err)
		assert.Equal(t, types.ErrUserRejected, ce.Code)
		assert.False(t, ce.Retryable)
	})

	t.Run("empty account list", func(t *testing.T) {
		p := &fakeProvider{accounts: []string{}}
		_, err := gw.RequestAccounts(ctx, p)
		require.Error(t, err)
		assert.Equal(t, types.ErrNoAccount, types.AsCheckoutError(err).Code)
	})

	t.Run("success", func(t *testing.T) {
		p := &fakeProvider{accounts: []string{"0xabc", "0xdef"}}
		addr, err := gw.RequestAccounts(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", addr)
	})
}

func TestChainIDParsesHexAndDecimal(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(nil, nil)

	id, err := gw.ChainID(ctx, &fakeProvider{chainHex: "0x2105"})
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id)

	id, err = gw.ChainID(ctx, &fakeProvider{chainHex: "8453"})
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id)
}

func TestSignMessageFallsBackToSwappedArguments(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(nil, nil)

	p := &fakeProvider{signResults: map[int]signResult{
		0: {err: errors.New("invalid parameters")},
		1: {sig: "0xsigned"},
	}}

	sig, err := gw.SignMessage(ctx, p, "0xaddr", "hello")
	require.NoError(t, err)
	assert.Equal(t, "0xsigned", sig)

	signs := p.callsTo(MethodPersonalSign)
	require.Len(t, signs, 2)
	assert.Equal(t, []any{"hello", "0xaddr"}, signs[0].params)
	assert.Equal(t, []any{"0xaddr", "hello"}, signs[1].params)
}

func TestSignMessageDoesNotRepromptAfterRejection(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(nil, nil)

	p := &fakeProvider{signResults: map[int]signResult{
		0: {err: &types.RPCError{Code: types.CodeUserRejected, Message: "denied"}},
	}}

	_, err := gw.SignMessage(ctx, p, "0xaddr", "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrUserRejected, types.AsCheckoutError(err).Code)
	assert.Len(t, p.callsTo(MethodPersonalSign), 1)
}

func TestSendTransaction(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(nil, nil)

	t.Run("success", func(t *testing.T) {
		p := &fakeProvider{txHash: "0xfeed"}
		hash, err := gw.SendTransaction(ctx, p, "0xfrom", "0xtoken", "0xdata")
		require.NoError(t, err)
		assert.Equal(t, "0xfeed", hash)

		sends := p.callsTo(MethodSendTransaction)
		require.Len(t, sends, 1)
		tx, ok := sends[0].params[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "0xfrom", tx["from"])
		assert.Equal(t, "0xtoken", tx["to"])
		assert.Equal(t, "0xdata", tx["data"])
	})

	t.Run("user declines", func(t *testing.T) {
		p := &fakeProvider{sendErr: &types.RPCError{Code: types.CodeUserRejected, Message: "denied"}}
		_, err := gw.SendTransaction(ctx, p, "0xfrom", "0xtoken", "0xdata")
		require.Error(t, err)
		assert.Equal(t, types.ErrUserRejected, types.AsCheckoutError(err).Code)
	})

	t.Run("transport failure is retryable", func(t *testing.T) {
		p := &fakeProvider{sendErr: errors.New("connection reset")}
		_, err := gw.SendTransaction(ctx, p, "0xfrom", "0xtoken", "0xdata")
		require.Error(t, err)
		ce := types.AsCheckoutError(err)
		assert.Equal(t, types.ErrProvider, ce.Code)
		assert.True(t, ce.Retryable)
	})
}
