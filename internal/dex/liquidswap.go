package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"aptos-copytrade/internal/aptos"
)

// Liquidswap mainnet deployment.
const (
	LiquidswapResourceAccount = "0x05a97986a9d031c4567e15b797be516910cfcb4156312482efc6a19c0a30c948"
	LiquidswapModuleAccount   = "0x190d44266241744264b964a37b8f09863167a12d3e70cda39376cfb4e3561e12"
)

// Curve names.
const (
	CurveUncorrelated = "Uncorrelated"
	CurveStable       = "Stable"
)

// feeScale is the denominator of the pool fee (30 = 0.3%).
const feeScale = 10000

// ResourceReader reads typed account resources.
type ResourceReader interface {
	GetAccountResource(ctx context.Context, address, resourceType string, out interface{}) error
}

// Liquidswap routes swaps through a single Liquidswap pool.
// Only the constant-product (Uncorrelated) curve is quoted.
type Liquidswap struct {
	reader          ResourceReader
	resourceAccount string
	moduleAccount   string
	curve           string
}

// LiquidswapOption configures Liquidswap.
type LiquidswapOption func(*Liquidswap)

// WithAccounts overrides the resource and module accounts (testnet deployments).
func WithAccounts(resourceAccount, moduleAccount string) LiquidswapOption {
	return func(l *Liquidswap) {
		if resourceAccount != "" {
			l.resourceAccount = resourceAccount
		}
		if moduleAccount != "" {
			l.moduleAccount = moduleAccount
		}
	}
}

// NewLiquidswap creates a router reading pools through reader.
func NewLiquidswap(reader ResourceReader, opts ...LiquidswapOption) *Liquidswap {
	l := &Liquidswap{
		reader:          reader,
		resourceAccount: LiquidswapResourceAccount,
		moduleAccount:   LiquidswapModuleAccount,
		curve:           CurveUncorrelated,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Router = (*Liquidswap)(nil)

// Pool is the reserve state of one pool, oriented as (in, out) for a trade.
type Pool struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
	Fee        uint64 // scaled by feeScale
}

type rawPool struct {
	CoinXReserve struct {
		Value string `json:"value"`
	} `json:"coin_x_reserve"`
	CoinYReserve struct {
		Value string `json:"value"`
	} `json:"coin_y_reserve"`
	Fee string `json:"fee"`
}

// CurveType returns the fully qualified curve type.
func (l *Liquidswap) CurveType() string {
	return l.moduleAccount + "::curves::" + l.curve
}

func (l *Liquidswap) poolType(x, y string) string {
	return fmt.Sprintf("%s::liquidity_pool::LiquidityPool<%s, %s, %s>", l.moduleAccount, x, y, l.CurveType())
}

// GetPool loads the pool of the pair, trying both coin orders.
func (l *Liquidswap) GetPool(ctx context.Context, from, to string) (*Pool, error) {
	var raw rawPool
	err := l.reader.GetAccountResource(ctx, l.resourceAccount, l.poolType(from, to), &raw)
	reversed := false
	if aptos.IsNotFound(err) {
		err = l.reader.GetAccountResource(ctx, l.resourceAccount, l.poolType(to, from), &raw)
		reversed = true
	}
	if err != nil {
		if aptos.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s / %s", ErrNoPool, from, to)
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}

	x, okX := new(big.Int).SetString(raw.CoinXReserve.Value, 10)
	y, okY := new(big.Int).SetString(raw.CoinYReserve.Value, 10)
	fee, okFee := new(big.Int).SetString(raw.Fee, 10)
	if !okX || !okY || !okFee || !fee.IsUint64() {
		return nil, fmt.Errorf("decode pool %s / %s: unexpected reserves", from, to)
	}

	pool := &Pool{ReserveIn: x, ReserveOut: y, Fee: fee.Uint64()}
	if reversed {
		pool.ReserveIn, pool.ReserveOut = y, x
	}
	return pool, nil
}

// Quote returns the expected output of swapping amountIn of from into to.
func (l *Liquidswap) Quote(ctx context.Context, from, to string, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("quote: non-positive amount")
	}

	pool, err := l.GetPool(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := AmountOut(amountIn, pool.ReserveIn, pool.ReserveOut, pool.Fee)
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s / %s", ErrInsufficientLiquidity, from, to)
	}
	return out, nil
}

// BuildSwapPayload returns a scripts_v2::swap call for the configured curve.
func (l *Liquidswap) BuildSwapPayload(from, to string, amountIn, expectedOut *big.Int, slippage decimal.Decimal) *aptos.EntryFunctionPayload {
	return aptos.NewEntryFunctionPayload(
		l.moduleAccount+"::scripts_v2::swap",
		[]string{from, to, l.CurveType()},
		amountIn.String(),
		MinOutput(expectedOut, slippage).String(),
	)
}

// AmountOut is the constant-product output for amountIn after the pool fee:
//
//	in' = amountIn * (feeScale - fee)
//	out = in' * reserveOut / (reserveIn * feeScale + in')
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint64) *big.Int {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || fee >= feeScale {
		return new(big.Int)
	}

	scale := big.NewInt(feeScale)
	inAfterFee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(feeScale-fee))
	num := new(big.Int).Mul(inAfterFee, reserveOut)
	den := new(big.Int).Add(new(big.Int).Mul(reserveIn, scale), inAfterFee)
	return num.Quo(num, den)
}
