package decoder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShared struct {
	mu      sync.Mutex
	entries map[string]int32
	readErr error
	sets    int
}

func (f *fakeShared) GetDecimals(_ context.Context, assetType string) (int32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, false, f.readErr
	}
	d, ok := f.entries[assetType]
	return d, ok, nil
}

func (f *fakeShared) SetDecimals(_ context.Context, assetType string, decimals int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[assetType] = decimals
	return nil
}

func TestDecimalsCache_ReadThrough(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{"0x1::a::A": 6}}
	cache := NewDecimalsCache(source, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, known, err := cache.Get(ctx, "0x1::a::A")
		require.NoError(t, err)
		assert.True(t, known)
		assert.Equal(t, int32(6), d)
	}

	assert.Equal(t, 1, source.calls, "decimals must be fetched once per asset")
	assert.Equal(t, 1, cache.Len())
}

func TestDecimalsCache_NotFoundIsNotCached(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{}}
	cache := NewDecimalsCache(source, nil, nil)
	ctx := context.Background()

	_, known, err := cache.Get(ctx, "0x1::fa::FA")
	require.NoError(t, err)
	assert.False(t, known)

	_, _, _ = cache.Get(ctx, "0x1::fa::FA")
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 0, cache.Len())
}

func TestDecimalsCache_SharedTier(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{"0x1::a::A": 6}}
	shared := &fakeShared{entries: map[string]int32{"0x1::b::B": 8}}
	cache := NewDecimalsCache(source, shared, nil)
	ctx := context.Background()

	d, known, err := cache.Get(ctx, "0x1::b::B")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, int32(8), d)
	assert.Equal(t, 0, source.calls, "shared hit must not reach the chain")

	d, _, err = cache.Get(ctx, "0x1::a::A")
	require.NoError(t, err)
	assert.Equal(t, int32(6), d)
	assert.Equal(t, 1, shared.sets, "chain result must be written to the shared tier")
	assert.Equal(t, int32(6), shared.entries["0x1::a::A"])
}

func TestDecimalsCache_SharedFailureFallsBackToChain(t *testing.T) {
	source := &fakeDecimals{decimals: map[string]int32{"0x1::a::A": 6}}
	shared := &fakeShared{entries: map[string]int32{}, readErr: errors.New("connection refused")}
	cache := NewDecimalsCache(source, shared, nil)

	d, known, err := cache.Get(context.Background(), "0x1::a::A")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, int32(6), d)
	assert.Equal(t, 1, source.calls)
}
