// Package cache 提供带容量与过期控制的泛型缓存
//
// 底层使用 golang-lru 的 expirable.LRU：超过容量按 LRU 驱逐，TTL 按写入时间计算。
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config 缓存配置
type Config struct {
	// Name 缓存名称（用于日志和统计）
	Name string

	// MaxSize 最大条目数，0 表示不限制
	MaxSize int

	// TTL 写入后的过期时间，0 表示永不过期
	TTL time.Duration

	// OnEvict 驱逐回调（容量驱逐、过期、删除都会触发）
	OnEvict func(key, value any)
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Cache 通用泛型缓存，并发安全
type Cache[K comparable, V any] struct {
	name string
	lru  *expirable.LRU[K, V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New 创建缓存
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	c := &Cache[K, V]{name: config.Name}
	onEvict := func(key K, value V) {
		c.evictions.Add(1)
		if config.OnEvict != nil {
			config.OnEvict(key, value)
		}
	}
	c.lru = expirable.NewLRU[K, V](config.MaxSize, onEvict, config.TTL)
	return c
}

// Name 缓存名称
func (c *Cache[K, V]) Name() string { return c.name }

// Get 获取未过期的缓存值
func (c *Cache[K, V]) Get(key K) (V, bool) {
	value, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// Set 写入缓存，已存在时覆盖并重置过期时间
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Delete 删除条目，返回是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	return c.lru.Remove(key)
}

// Clear 清空全部条目
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// Size 当前条目数（可能包含尚未清理的过期条目）
func (c *Cache[K, V]) Size() int {
	return c.lru.Len()
}

// Stats 返回统计快照
func (c *Cache[K, V]) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
}

// HitRate 命中率，没有访问时为 0
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
