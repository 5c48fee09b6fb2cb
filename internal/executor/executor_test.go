package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/dex"
	"aptos-copytrade/internal/domain"
)

type fakeSigner struct{}

func (fakeSigner) Address() string {
	return "0xfollower000000000000000000000000000000000000000000000000000001"
}
func (fakeSigner) PublicKeyHex() string   { return "0xpub" }
func (fakeSigner) Sign(msg []byte) []byte { return msg }

type fakeChain struct {
	mu sync.Mutex

	hasStore    bool
	hasStoreErr error
	submitErr   map[string]error // function -> error
	waitErr     map[string]error // hash -> error

	submitted []*aptos.EntryFunctionPayload
	waited    []string
	balances  int
}

func (c *fakeChain) HasResource(_ context.Context, _, _ string) (bool, error) {
	return c.hasStore, c.hasStoreErr
}

func (c *fakeChain) GetBalance(_ context.Context, _, _ string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances++
	return 10, nil
}

func (c *fakeChain) SignAndSubmit(_ context.Context, _ aptos.Signer, payload *aptos.EntryFunctionPayload) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.submitErr[payload.Function]; err != nil {
		return "", err
	}
	c.submitted = append(c.submitted, payload)
	return fmt.Sprintf("0xhash%d", len(c.submitted)), nil
}

func (c *fakeChain) WaitForTransaction(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waited = append(c.waited, hash)
	return c.waitErr[hash]
}

type fakeRouter struct {
	out *big.Int
	err error
}

func (r *fakeRouter) Quote(_ context.Context, _, _ string, _ *big.Int) (*big.Int, error) {
	return r.out, r.err
}

func (r *fakeRouter) BuildSwapPayload(from, to string, amountIn, expectedOut *big.Int, slippage decimal.Decimal) *aptos.EntryFunctionPayload {
	return aptos.NewEntryFunctionPayload("0xdex::scripts::swap", []string{from, to},
		amountIn.String(), dex.MinOutput(expectedOut, slippage).String())
}

func testIntent() *domain.SwapIntent {
	return &domain.SwapIntent{
		Version:         77,
		Function:        "0xabc::router::swap_exact_in",
		InputAsset:      "0x1::a::A",
		OutputAsset:     "0x1::b::B",
		InputAmountRaw:  big.NewInt(1000000),
		QuotedMinOutRaw: big.NewInt(902500),
	}
}

func TestExecute_RegistersThenSwaps(t *testing.T) {
	chain := &fakeChain{}
	e := New(chain, &fakeRouter{out: big.NewInt(2000)}, Options{LogBalance: true})

	hash, err := e.Execute(context.Background(), fakeSigner{}, testIntent())
	require.NoError(t, err)
	assert.Equal(t, "0xhash2", hash)

	require.Len(t, chain.submitted, 2)
	register := chain.submitted[0]
	assert.Equal(t, DefaultRegisterFunction, register.Function)
	assert.Equal(t, []string{"0x1::b::B"}, register.TypeArguments)

	swap := chain.submitted[1]
	assert.Equal(t, "0xdex::scripts::swap", swap.Function)
	// 2000 * (1 - 0.005) = 1990
	assert.Equal(t, []interface{}{"1000000", "1990"}, swap.Arguments)

	assert.Equal(t, []string{"0xhash1", "0xhash2"}, chain.waited)
	assert.Equal(t, 1, chain.balances)
}

func TestExecute_SkipsRegistrationWhenStoreExists(t *testing.T) {
	chain := &fakeChain{hasStore: true}
	e := New(chain, &fakeRouter{out: big.NewInt(2000)}, Options{})

	hash, err := e.Execute(context.Background(), fakeSigner{}, testIntent())
	require.NoError(t, err)
	assert.Equal(t, "0xhash1", hash)
	require.Len(t, chain.submitted, 1)
	assert.Equal(t, 0, chain.balances)
}

func TestExecute_RegistrationFailuresDoNotAbort(t *testing.T) {
	tests := []struct {
		name  string
		chain *fakeChain
	}{
		{
			name: "already registered on chain",
			chain: &fakeChain{waitErr: map[string]error{
				"0xhash1": &aptos.TransactionFailedError{Hash: "0xhash1", VMStatus: "Move abort in 0x1::coin: ECOIN_STORE_ALREADY_PUBLISHED(0x80004)"},
			}},
		},
		{
			name: "rejected at submission",
			chain: &fakeChain{submitErr: map[string]error{
				DefaultRegisterFunction: &aptos.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid transaction: SEQUENCE_NUMBER_TOO_OLD"},
			}},
		},
		{
			name:  "lookup failed",
			chain: &fakeChain{hasStoreErr: &aptos.APIError{StatusCode: http.StatusBadGateway}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.chain, &fakeRouter{out: big.NewInt(2000)}, Options{})

			hash, err := e.Execute(context.Background(), fakeSigner{}, testIntent())
			require.NoError(t, err)
			assert.NotEmpty(t, hash)

			last := tt.chain.submitted[len(tt.chain.submitted)-1]
			assert.Equal(t, "0xdex::scripts::swap", last.Function)
		})
	}
}

func TestExecute_QuoteFailure(t *testing.T) {
	chain := &fakeChain{hasStore: true}
	e := New(chain, &fakeRouter{err: dex.ErrNoPool}, Options{})

	_, err := e.Execute(context.Background(), fakeSigner{}, testIntent())
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, StageQuote, execErr.Stage)
	assert.ErrorIs(t, err, dex.ErrNoPool)
	assert.Empty(t, chain.submitted, "no swap may be submitted without a quote")
}

func TestExecute_InsufficientFunds(t *testing.T) {
	chain := &fakeChain{
		hasStore: true,
		waitErr: map[string]error{
			"0xhash1": &aptos.TransactionFailedError{Hash: "0xhash1", VMStatus: "Move abort in 0x1::coin: EINSUFFICIENT_BALANCE(0x10006)"},
		},
	}
	e := New(chain, &fakeRouter{out: big.NewInt(2000)}, Options{})

	hash, err := e.Execute(context.Background(), fakeSigner{}, testIntent())
	require.Error(t, err)
	assert.Equal(t, "0xhash1", hash)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, StageConfirm, execErr.Stage)
	assert.Contains(t, err.Error(), "EINSUFFICIENT_BALANCE")
}

func TestExecute_SubmitFailure(t *testing.T) {
	chain := &fakeChain{
		hasStore:  true,
		submitErr: map[string]error{"0xdex::scripts::swap": &aptos.APIError{StatusCode: http.StatusBadRequest, Message: "INSUFFICIENT_BALANCE_FOR_TRANSACTION_FEE"}},
	}
	e := New(chain, &fakeRouter{out: big.NewInt(2000)}, Options{})

	_, err := e.Execute(context.Background(), fakeSigner{}, testIntent())

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, StageSubmit, execErr.Stage)
}

func TestExecute_AmountExceedsU64(t *testing.T) {
	chain := &fakeChain{hasStore: true}
	e := New(chain, &fakeRouter{out: big.NewInt(2000)}, Options{})

	intent := testIntent()
	intent.InputAmountRaw, _ = new(big.Int).SetString("18446744073709551616", 10)

	_, err := e.Execute(context.Background(), fakeSigner{}, intent)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, StageBuild, execErr.Stage)
	assert.Empty(t, chain.submitted)
}

func TestIsAlreadyRegistered(t *testing.T) {
	assert.True(t, IsAlreadyRegistered(&aptos.TransactionFailedError{VMStatus: "ECOIN_STORE_ALREADY_PUBLISHED"}))
	assert.True(t, IsAlreadyRegistered(fmt.Errorf("wrapped: %w", &aptos.APIError{StatusCode: 400, Message: "coin store already exists"})))
	assert.False(t, IsAlreadyRegistered(&aptos.TransactionFailedError{VMStatus: "EINSUFFICIENT_BALANCE"}))
	assert.False(t, IsAlreadyRegistered(errors.New("ALREADY but untyped")))
	assert.False(t, IsAlreadyRegistered(nil))
}

func TestNew_Defaults(t *testing.T) {
	e := New(&fakeChain{}, &fakeRouter{}, Options{})

	assert.True(t, e.opts.Slippage.Equal(DefaultSlippage))
	assert.Equal(t, DefaultTimeout, e.opts.Timeout)
	assert.NotNil(t, e.log)
}
