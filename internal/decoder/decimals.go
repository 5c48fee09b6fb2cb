package decoder

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/aptos"
)

// DecimalsSource reads the decimals of a coin type from the chain.
type DecimalsSource interface {
	GetCoinDecimals(ctx context.Context, coinType string) (int32, error)
}

// DecimalsStore is an optional shared cache tier behind the in-process map.
type DecimalsStore interface {
	GetDecimals(ctx context.Context, assetType string) (int32, bool, error)
	SetDecimals(ctx context.Context, assetType string, decimals int32) error
}

// DecimalsCache is a read-through cache of asset decimals.
// Decimals never change once published, so entries never expire.
type DecimalsCache struct {
	source DecimalsSource
	shared DecimalsStore
	log    logrus.FieldLogger

	mu      sync.RWMutex
	entries map[string]int32
}

// NewDecimalsCache creates a cache in front of source. shared and log may be nil.
func NewDecimalsCache(source DecimalsSource, shared DecimalsStore, log logrus.FieldLogger) *DecimalsCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DecimalsCache{
		source:  source,
		shared:  shared,
		log:     log,
		entries: make(map[string]int32),
	}
}

// Get returns the decimals of assetType.
// known is false when the asset publishes no CoinInfo; that outcome is not cached.
func (c *DecimalsCache) Get(ctx context.Context, assetType string) (decimals int32, known bool, err error) {
	c.mu.RLock()
	decimals, ok := c.entries[assetType]
	c.mu.RUnlock()
	if ok {
		return decimals, true, nil
	}

	if c.shared != nil {
		d, found, err := c.shared.GetDecimals(ctx, assetType)
		if err != nil {
			c.log.WithError(err).WithField("asset", assetType).Warn("shared decimals cache read failed")
		} else if found {
			c.put(assetType, d)
			return d, true, nil
		}
	}

	decimals, err = c.source.GetCoinDecimals(ctx, assetType)
	if err != nil {
		if aptos.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	c.put(assetType, decimals)
	if c.shared != nil {
		if err := c.shared.SetDecimals(ctx, assetType, decimals); err != nil {
			c.log.WithError(err).WithField("asset", assetType).Warn("shared decimals cache write failed")
		}
	}
	return decimals, true, nil
}

// Len returns the number of cached assets.
func (c *DecimalsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *DecimalsCache) put(assetType string, decimals int32) {
	c.mu.Lock()
	c.entries[assetType] = decimals
	c.mu.Unlock()
}
