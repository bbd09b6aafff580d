// Package cache wraps redis for JSON-encoded read-through caching of KPI and dashboard results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/shared/metrics"
	"github.com/redis/go-redis/v9"
)

// Cache JSON缓存，rdb为nil时所有操作直接穿透
type Cache struct {
	rdb    *redis.Client
	prefix string
}

// New 创建缓存；rdb 可为 nil
func New(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

// Enabled 是否连接了redis
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get 读取缓存，命中返回true
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("读取缓存失败: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("解析缓存失败: %w", err)
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

// Set 写入缓存
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}
	return c.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

// InvalidatePrefix 删除某前缀下所有键
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("扫描缓存键失败: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Remember 读穿透：命中直接返回，否则调用load并写入缓存。缓存错误只记录日志。
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.Get(ctx, key, &cached); err != nil {
		log.Printf("[CRM] cache get %s: %v", key, err)
	} else if hit {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Printf("[CRM] cache set %s: %v", key, err)
	}
	return value, nil
}
