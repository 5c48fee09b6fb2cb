// Package redis keeps shared, process-independent caches in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// DefaultPrefix namespaces every key written by the engine.
const DefaultPrefix = "copytrade:"

// DecimalsCache stores asset decimals. Decimals are immutable, so keys carry no TTL.
type DecimalsCache struct {
	client *redis.Client
	prefix string
}

// NewDecimalsCache creates a cache on an existing client.
func NewDecimalsCache(client *redis.Client, prefix string) *DecimalsCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &DecimalsCache{client: client, prefix: prefix}
}

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *DecimalsCache) key(assetType string) string {
	return c.prefix + "decimals:" + assetType
}

// GetDecimals returns the cached decimals of assetType; found is false on a miss.
func (c *DecimalsCache) GetDecimals(ctx context.Context, assetType string) (int32, bool, error) {
	val, err := c.client.Get(ctx, c.key(assetType)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	d, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt decimals for %s: %w", assetType, err)
	}
	return int32(d), true, nil
}

// SetDecimals stores the decimals of assetType.
func (c *DecimalsCache) SetDecimals(ctx context.Context, assetType string, decimals int32) error {
	return c.client.Set(ctx, c.key(assetType), strconv.FormatInt(int64(decimals), 10), 0).Err()
}
