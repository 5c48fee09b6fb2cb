// Package dex quotes swaps and builds swap payloads against an on-chain AMM.
package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"aptos-copytrade/internal/aptos"
)

var (
	// ErrNoPool is returned when no pool exists for the requested pair.
	ErrNoPool = errors.New("no liquidity pool for pair")
	// ErrInsufficientLiquidity is returned when a pool cannot fill the trade.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

// Router quotes conversions and builds the payload executing them.
type Router interface {
	// Quote returns the expected output of swapping amountIn of from into to.
	Quote(ctx context.Context, from, to string, amountIn *big.Int) (*big.Int, error)

	// BuildSwapPayload returns the entry function swapping amountIn of from into to,
	// accepting at least expectedOut reduced by slippage.
	BuildSwapPayload(from, to string, amountIn, expectedOut *big.Int, slippage decimal.Decimal) *aptos.EntryFunctionPayload
}

// MinOutput applies slippage to expectedOut and rounds down.
func MinOutput(expectedOut *big.Int, slippage decimal.Decimal) *big.Int {
	if expectedOut == nil || expectedOut.Sign() <= 0 {
		return new(big.Int)
	}
	keep := decimal.NewFromInt(1).Sub(slippage)
	if keep.Sign() <= 0 {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(expectedOut, 0).Mul(keep).Floor().BigInt()
}
