// Package txbuilder encodes token-transfer calls into wire-ready call
// data. Pure and deterministic; no network access.
package txbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/carelane/checkout/types"
)

// transferSelector is the first four bytes of
// keccak256("transfer(address,uint256)").
var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// EncodeTransfer builds the call data for an ERC-20 transfer of
// amountTokenUnits (a base-10 integer string in the token's smallest
// unit) to recipient: selector, then the address and amount each
// left-padded to 32 bytes.
func EncodeTransfer(recipient string, amountTokenUnits string) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", types.Errorf(types.ErrValidation, "invalid recipient address %q", recipient)
	}

	amount, ok := new(big.Int).SetString(amountTokenUnits, 10)
	if !ok || amount.Sign() <= 0 {
		return "", types.Errorf(types.ErrValidation, "invalid token amount %q", amountTokenUnits)
	}

	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(recipient).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

	return hexutil.Encode(data), nil
}
