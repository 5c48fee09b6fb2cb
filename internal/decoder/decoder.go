// Package decoder turns raw master transactions into swap intents.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"aptos-copytrade/internal/domain"
)

var (
	// ErrNotSwap means the transaction is not a swap and must not be dispatched.
	ErrNotSwap = errors.New("not a swap")
	// ErrMalformed means the transaction looks like a swap but lacks the expected arguments.
	ErrMalformed = errors.New("malformed swap")
)

// swapToken is matched case-insensitively against the entry function id.
const swapToken = "swap"

// DefaultMinOutRatio is the share of the master's min-out argument kept as the quoted minimum.
var DefaultMinOutRatio = decimal.RequireFromString("0.95")

// IsSwapFunction reports whether an entry function id qualifies as a swap.
// Any function whose id contains "swap" qualifies, whatever its module.
func IsSwapFunction(function string) bool {
	return strings.Contains(strings.ToLower(function), swapToken)
}

// ParseSwap extracts swap parameters from tx without any I/O.
// Returns ErrNotSwap or ErrMalformed (wrapped with detail) when tx must not be dispatched.
func ParseSwap(tx domain.Transaction, minOutRatio decimal.Decimal) (*domain.SwapIntent, error) {
	if !IsSwapFunction(tx.Function) {
		return nil, ErrNotSwap
	}
	if len(tx.TypeArguments) < 2 {
		return nil, fmt.Errorf("%w: %d type arguments", ErrMalformed, len(tx.TypeArguments))
	}
	if len(tx.Arguments) < 1 {
		return nil, fmt.Errorf("%w: missing input amount", ErrMalformed)
	}

	amount, ok := parseRaw(tx.Arguments[0])
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: input amount %q", ErrMalformed, tx.Arguments[0])
	}

	// The master's min-out is informational; missing or non-numeric reads as zero.
	minOut := new(big.Int)
	if len(tx.Arguments) > 1 {
		if v, ok := parseRaw(tx.Arguments[1]); ok {
			minOut = decimal.NewFromBigInt(v, 0).Mul(minOutRatio).Floor().BigInt()
		}
	}

	return &domain.SwapIntent{
		Version:         tx.Version,
		Function:        tx.Function,
		InputAsset:      tx.TypeArguments[0],
		OutputAsset:     tx.TypeArguments[1],
		InputAmountRaw:  amount,
		QuotedMinOutRaw: minOut,
	}, nil
}

func parseRaw(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// Decoder decodes swaps and normalizes the input amount with the asset's decimals.
type Decoder struct {
	decimals    *DecimalsCache
	minOutRatio decimal.Decimal
}

// Option configures Decoder.
type Option func(*Decoder)

// WithMinOutRatio overrides DefaultMinOutRatio.
func WithMinOutRatio(r decimal.Decimal) Option {
	return func(d *Decoder) {
		d.minOutRatio = r
	}
}

// New creates a Decoder backed by the given decimals cache.
func New(decimals *DecimalsCache, opts ...Option) *Decoder {
	d := &Decoder{
		decimals:    decimals,
		minOutRatio: DefaultMinOutRatio,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses tx and fills in the human-readable input amount.
// Only a chain read failure while resolving decimals is returned as a plain error;
// everything else is ErrNotSwap or ErrMalformed.
func (d *Decoder) Decode(ctx context.Context, tx domain.Transaction) (*domain.SwapIntent, error) {
	intent, err := ParseSwap(tx, d.minOutRatio)
	if err != nil {
		return nil, err
	}

	decimals, known, err := d.decimals.Get(ctx, intent.InputAsset)
	if err != nil {
		return nil, fmt.Errorf("resolve decimals of %s: %w", intent.InputAsset, err)
	}
	if known {
		intent.DecimalsKnown = true
		intent.InputDecimals = decimals
		intent.InputAmountHuman = decimal.NewFromBigInt(intent.InputAmountRaw, -decimals)
	}
	return intent, nil
}
