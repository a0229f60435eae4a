package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "jobalerts:search:cache:"

// Cache 在 Redis 中缓存搜索响应。
//
// 一次调度运行里多个告警经常共享同一组 query/location，
// 短 TTL 的缓存让它们只消耗一次上游配额。
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache 创建 Cache，ttl<=0 时使用 10 分钟。
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get 读取缓存的响应，未命中返回 (nil, nil)。
func (c *Cache) Get(ctx context.Context, key string) (*Response, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search cache get: %w", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("search cache decode: %w", err)
	}
	return &resp, nil
}

// Set 写入缓存。
func (c *Cache) Set(ctx context.Context, key string, resp *Response) error {
	if c == nil || c.rdb == nil || resp == nil {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("search cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("search cache set: %w", err)
	}
	return nil
}

// CacheKey 基于最终检索参数生成缓存键。
func CacheKey(query, location, employmentType string, page int) string {
	raw := BuildQuery(query, location) + "|" + employmentType + "|" + strconv.Itoa(page)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CachedClient 是带缓存的 Client 装饰器。
//
// 缓存故障只降级为直接访问上游，绝不让一次搜索因为 Redis 失败而失败。
type CachedClient struct {
	inner  Client
	cache  *Cache
	logger *slog.Logger
}

// NewCachedClient 创建 CachedClient。
func NewCachedClient(inner Client, cache *Cache, logger *slog.Logger) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, logger: logger}
}

// Search 先查缓存，未命中再调用上游并回填。
func (c *CachedClient) Search(ctx context.Context, query, location, employmentType string, page int) (*Response, error) {
	key := CacheKey(query, location, employmentType, page)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("search cache read failed", slog.String("error", err.Error()))
	}
	if cached != nil {
		c.logger.Debug("search cache hit", slog.String("query", query))
		return cached, nil
	}

	resp, err := c.inner.Search(ctx, query, location, employmentType, page)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, resp); err != nil {
		c.logger.Warn("search cache write failed", slog.String("error", err.Error()))
	}
	return resp, nil
}
