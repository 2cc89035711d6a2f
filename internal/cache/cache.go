package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/golos/golosmind/pkg/config"
	"github.com/golos/golosmind/pkg/logging"
)

const namespace = "golosmind"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCacheDisabled is returned by redis operations when no redis is configured
var ErrCacheDisabled = fmt.Errorf("cache is disabled")

// Cache is a two level response cache: an in-process map in front of an
// optional shared redis.
type Cache struct {
	client *redis.Client
	local  *gocache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// New creates the cache. Redis is only dialled when it is enabled.
func New(redisCfg *config.RedisConfig, cacheCfg *config.CacheConfig) (*Cache, error) {
	logger := logging.WithComponent("cache")
	c := &Cache{
		local:  gocache.New(cacheCfg.LocalExpiry, 2*cacheCfg.LocalExpiry+time.Second),
		ttl:    cacheCfg.TTL,
		logger: logger,
	}
	if !redisCfg.Enabled {
		logger.Info("Redis cache disabled")
		return c, nil
	}

	opt, err := redis.ParseURL(redisCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Redis connection established")

	c.client = client
	return c, nil
}

// HashKey folds parts into a fixed length key.
func HashKey(parts ...string) string {
	sum := xxh3.HashString128(strings.Join(parts, "\x00")).Bytes()
	return hex.EncodeToString(sum[:])
}

func (c *Cache) namespaceKey(key string) string {
	return namespace + ":" + key
}

// Load returns the raw JSON stored under key.
func (c *Cache) Load(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	key = c.namespaceKey(key)
	if v, ok := c.local.Get(key); ok {
		return v.([]byte), true
	}
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	c.local.SetDefault(key, data)
	return data, true
}

// Store encodes v and keeps it under key in both levels.
func (c *Cache) Store(ctx context.Context, key string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return data, nil
	}
	key = c.namespaceKey(key)
	c.local.SetDefault(key, data)
	if c.client != nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return data, nil
}

// FlushLocal drops the in-process level, typically after a new block.
func (c *Cache) FlushLocal() {
	if c != nil {
		c.local.Flush()
	}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}
