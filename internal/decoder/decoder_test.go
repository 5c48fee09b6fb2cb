package decoder

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/domain"
)

type fakeDecimals struct {
	mu       sync.Mutex
	decimals map[string]int32
	err      error
	calls    int
}

func (f *fakeDecimals) GetCoinDecimals(_ context.Context, coinType string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	d, ok := f.decimals[coinType]
	if !ok {
		return 0, &aptos.APIError{StatusCode: http.StatusNotFound, ErrorCode: aptos.ErrorCodeResourceNotFound}
	}
	return d, nil
}

func swapTx() domain.Transaction {
	return domain.Transaction{
		Version:       42,
		Function:      "0xabc::router::swap_exact_in",
		TypeArguments: []string{"0x1::a::A", "0x1::b::B"},
		Arguments:     []string{"1000000", "950000"},
	}
}

func TestDecode_SwapPositive(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{"0x1::a::A": 6}}
	d := New(NewDecimalsCache(source, nil, nil))

	intent, err := d.Decode(context.Background(), swapTx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.InputAsset != "0x1::a::A" {
		t.Errorf("expected input asset 0x1::a::A, got %s", intent.InputAsset)
	}
	if intent.OutputAsset != "0x1::b::B" {
		t.Errorf("expected output asset 0x1::b::B, got %s", intent.OutputAsset)
	}
	if intent.InputAmountRaw.String() != "1000000" {
		t.Errorf("expected raw amount 1000000, got %s", intent.InputAmountRaw)
	}
	if !intent.DecimalsKnown || intent.InputDecimals != 6 {
		t.Errorf("expected decimals 6, got %d (known=%v)", intent.InputDecimals, intent.DecimalsKnown)
	}
	if !intent.InputAmountHuman.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected human amount 1, got %s", intent.InputAmountHuman)
	}
	if intent.QuotedMinOutRaw.String() != "902500" {
		t.Errorf("expected quoted min out 902500, got %s", intent.QuotedMinOutRaw)
	}
	if intent.Version != 42 {
		t.Errorf("expected version 42, got %d", intent.Version)
	}
}

func TestDecode_NotSwap(t *testing.T) {
	source := &fakeDecimals{}
	d := New(NewDecimalsCache(source, nil, nil))

	tx := domain.Transaction{
		Version:       7,
		Function:      "0x1::coin::transfer",
		TypeArguments: []string{"0x1::aptos_coin::AptosCoin"},
		Arguments:     []string{"0xdead", "100"},
	}

	_, err := d.Decode(context.Background(), tx)
	if !errors.Is(err, ErrNotSwap) {
		t.Fatalf("expected ErrNotSwap, got %v", err)
	}
	if source.calls != 0 {
		t.Errorf("expected no chain lookups for a non-swap, got %d", source.calls)
	}
}

func TestIsSwapFunction(t *testing.T) {
	tests := []struct {
		function string
		want     bool
	}{
		{"0xabc::router::swap_exact_in", true},
		{"0x190d::scripts_v2::swap", true},
		{"0x1::SomeModule::DoSWAPThing", true},
		{"0x1::swapper::deposit", true},
		{"0x1::coin::transfer", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSwapFunction(tt.function); got != tt.want {
			t.Errorf("IsSwapFunction(%q) = %v, want %v", tt.function, got, tt.want)
		}
	}
}

func TestParseSwap_Malformed(t *testing.T) {
	tests := []struct {
		name string
		tx   domain.Transaction
	}{
		{"one type argument", domain.Transaction{Function: "x::m::swap", TypeArguments: []string{"0x1::a::A"}, Arguments: []string{"1", "1"}}},
		{"no type arguments", domain.Transaction{Function: "x::m::swap", Arguments: []string{"1", "1"}}},
		{"no arguments", domain.Transaction{Function: "x::m::swap", TypeArguments: []string{"0x1::a::A", "0x1::b::B"}}},
		{"non-numeric amount", domain.Transaction{Function: "x::m::swap", TypeArguments: []string{"0x1::a::A", "0x1::b::B"}, Arguments: []string{"abc", "1"}}},
		{"negative amount", domain.Transaction{Function: "x::m::swap", TypeArguments: []string{"0x1::a::A", "0x1::b::B"}, Arguments: []string{"-5", "1"}}},
		{"zero amount", domain.Transaction{Function: "x::m::swap", TypeArguments: []string{"0x1::a::A", "0x1::b::B"}, Arguments: []string{"0", "1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSwap(tt.tx, DefaultMinOutRatio)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParseSwap_MissingMinOut(t *testing.T) {
	tx := swapTx()
	tx.Arguments = []string{"5000"}

	intent, err := ParseSwap(tx, DefaultMinOutRatio)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.QuotedMinOutRaw.Sign() != 0 {
		t.Errorf("expected zero min out, got %s", intent.QuotedMinOutRaw)
	}
}

func TestParseSwap_LargeAmounts(t *testing.T) {
	tx := swapTx()
	tx.Arguments = []string{"18446744073709551615", "101"}

	intent, err := ParseSwap(tx, DefaultMinOutRatio)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.InputAmountRaw.String() != "18446744073709551615" {
		t.Errorf("expected max u64, got %s", intent.InputAmountRaw)
	}
	// 101 * 0.95 = 95.95, floored
	if intent.QuotedMinOutRaw.String() != "95" {
		t.Errorf("expected 95, got %s", intent.QuotedMinOutRaw)
	}
}

func TestDecode_UnknownDecimals(t *testing.T) {
	d := New(NewDecimalsCache(&fakeDecimals{}, nil, nil))

	intent, err := d.Decode(context.Background(), swapTx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.DecimalsKnown {
		t.Error("expected decimals to be unknown")
	}
	if !intent.InputAmountHuman.IsZero() {
		t.Errorf("expected zero human amount, got %s", intent.InputAmountHuman)
	}
}

func TestDecode_ChainErrorPropagates(t *testing.T) {
	source := &fakeDecimals{err: &aptos.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}}
	d := New(NewDecimalsCache(source, nil, nil))

	_, err := d.Decode(context.Background(), swapTx())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotSwap) || errors.Is(err, ErrMalformed) {
		t.Errorf("chain failure must not be classified as a rejection: %v", err)
	}
	if !aptos.IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestDecode_CustomMinOutRatio(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{"0x1::a::A": 8}}
	d := New(NewDecimalsCache(source, nil, nil), WithMinOutRatio(decimal.RequireFromString("0.5")))

	intent, err := d.Decode(context.Background(), swapTx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.QuotedMinOutRaw.String() != "475000" {
		t.Errorf("expected 475000, got %s", intent.QuotedMinOutRaw)
	}
	if !intent.InputAmountHuman.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("expected 0.01, got %s", intent.InputAmountHuman)
	}
}
