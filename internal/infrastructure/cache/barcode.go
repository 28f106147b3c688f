// Package cache provides the barcode lookup cache used by product scans.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"consigna/internal/domain/catalog/product"
	"consigna/pkg/logger"
)

const (
	// DefaultTTL bounds how long a barcode mapping lives without a refresh.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "consigna:barcode:"
)

// RedisBarcodeCache maps barcodes to product ids in Redis.
type RedisBarcodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ product.BarcodeCache = (*RedisBarcodeCache)(nil)

// NewRedisBarcodeCache creates a cache over client. A non-positive ttl uses DefaultTTL.
func NewRedisBarcodeCache(client *redis.Client, ttl time.Duration) *RedisBarcodeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBarcodeCache{client: client, ttl: ttl}
}

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options) (*RedisBarcodeCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	logger.Info(ctx, "redis connected", "addr", opts.Addr, "db", opts.DB)
	return NewRedisBarcodeCache(client, opts.TTL), nil
}

func key(code string) string { return keyPrefix + code }

// Get implements product.BarcodeCache. A miss is (0, false, nil).
func (c *RedisBarcodeCache) Get(ctx context.Context, code string) (int64, bool, error) {
	val, err := c.client.Get(ctx, key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", code, err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.client.Del(ctx, key(code)).Err()
		return 0, false, nil
	}
	return id, true, nil
}

// Set implements product.BarcodeCache.
func (c *RedisBarcodeCache) Set(ctx context.Context, code string, productID int64) error {
	if err := c.client.Set(ctx, key(code), strconv.FormatInt(productID, 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", code, err)
	}
	return nil
}

// Delete implements product.BarcodeCache.
func (c *RedisBarcodeCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, key(code)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", code, err)
	}
	return nil
}

// Close releases the client.
func (c *RedisBarcodeCache) Close() error {
	return c.client.Close()
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

var _ product.BarcodeCache = Noop{}

func (Noop) Get(context.Context, string) (int64, bool, error) { return 0, false, nil }
func (Noop) Set(context.Context, string, int64) error         { return nil }
func (Noop) Delete(context.Context, string) error             { return nil }
