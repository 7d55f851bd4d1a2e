// Package cache 提供带 TTL 和容量上限的泛型缓存
//
// 设计原则：
// 1. 简洁 - 只包含必需的功能
// 2. 类型安全 - 使用泛型提供编译时类型检查
// 3. 容量管理 - 防止 OOM，超限时按插入顺序驱逐最老条目
// 4. 并发安全 - 互斥锁保护
//
// 与一般的 LRU 缓存不同，过期基于条目的创建时间而不是访问时间：
// 幂等性记录的保留窗口不应因为重复请求的查询而被无限延长。
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache 通用泛型缓存
type Cache[K comparable, V any] struct {
	config Config

	items map[K]*entry[K, V]

	// 插入顺序链表（最新的在前），容量驱逐从尾部开始
	order *list.List

	mu sync.Mutex

	stats Stats
}

// entry 缓存条目
type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	element   *list.Element
}

// Config 缓存配置
type Config struct {
	// MaxSize 最大缓存条目数，0 表示无限制（不推荐）
	MaxSize int

	// TTL 缓存过期时间，基于创建时间；0 表示永不过期
	TTL time.Duration
}

// Stats 缓存统计信息
type Stats struct {
	Hits      int64 // 命中次数
	Misses    int64 // 未命中次数
	Evictions int64 // 容量驱逐次数
	Expires   int64 // TTL 过期次数
	Size      int   // 当前条目数
}

// New 创建新的缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	return &Cache[K, V]{
		config: config,
		items:  make(map[K]*entry[K, V]),
		order:  list.New(),
	}
}

// Get 获取缓存值
//
// 返回：
//   - value: 缓存的值
//   - found: 是否找到且未过期
func (c *Cache[K, V]) Get(key K) (value V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		return value, false
	}

	if c.isExpired(e) {
		c.removeLocked(e)
		c.stats.Misses++
		c.stats.Expires++
		return value, false
	}

	c.stats.Hits++
	return e.value, true
}

// Has 检查键是否存在且未过期（不记入命中统计）
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		return false
	}
	if c.isExpired(e) {
		c.removeLocked(e)
		c.stats.Expires++
		return false
	}
	return true
}

// Set 设置缓存值
//
// 已存在的键只更新值，不刷新创建时间：保留窗口从首次写入起算。
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		e.value = value
		return
	}

	if c.config.MaxSize > 0 && len(c.items) >= c.config.MaxSize {
		c.evictOldestLocked()
	}

	e := &entry[K, V]{
		key:       key,
		value:     value,
		createdAt: time.Now(),
	}
	e.element = c.order.PushFront(e)
	c.items[key] = e
}

// Delete 删除缓存条目
//
// 返回：是否存在并被删除
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeLocked(e)
	return true
}

// Clear 清空所有缓存
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*entry[K, V])
	c.order = list.New()
}

// CleanExpired 清理过期条目
//
// 返回：清理的条目数量
func (c *Cache[K, V]) CleanExpired() int {
	if c.config.TTL <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cleaned := 0
	now := time.Now()
	for _, e := range c.items {
		if now.Sub(e.createdAt) >= c.config.TTL {
			c.removeLocked(e)
			cleaned++
		}
	}
	c.stats.Expires += int64(cleaned)
	return cleaned
}

// Size 获取当前缓存条目数
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats 获取缓存统计信息（副本）
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	return stats
}

// isExpired 检查条目是否过期（需要持锁调用）
func (c *Cache[K, V]) isExpired(e *entry[K, V]) bool {
	if c.config.TTL <= 0 {
		return false
	}
	return time.Since(e.createdAt) >= c.config.TTL
}

// evictOldestLocked 驱逐最老的条目（需要持锁调用）
func (c *Cache[K, V]) evictOldestLocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*entry[K, V]))
	c.stats.Evictions++
}

// removeLocked 删除条目（需要持锁调用）
func (c *Cache[K, V]) removeLocked(e *entry[K, V]) {
	if e.element != nil {
		c.order.Remove(e.element)
	}
	delete(c.items, e.key)
}
