package idempotency

import (
	"context"
	"sync"
	"time"

	"taskmq/cache"
)

// MemoryStore 内存幂等性存储
//
// 基于带 TTL 和容量上限的缓存：保留窗口防止无限增长，容量上限
// 防止 OOM。单进程部署适用；多实例部署请使用 RedisStore 或
// SQLStore 共享记录。
type MemoryStore struct {
	records *cache.Cache[string, struct{}]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// MemoryConfig 内存存储配置
type MemoryConfig struct {
	// TTL 记录保留窗口（默认：1小时）
	TTL time.Duration

	// MaxEntries 最大记录数（默认：100000）
	MaxEntries int

	// CleanupInterval 过期记录清理间隔（默认：10分钟）
	CleanupInterval time.Duration
}

// DefaultMemoryConfig 默认配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		TTL:             time.Hour,
		MaxEntries:      100000,
		CleanupInterval: 10 * time.Minute,
	}
}

// NewMemoryStore 创建内存幂等性存储
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	def := DefaultMemoryConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	s := &MemoryStore{
		records: cache.New[string, struct{}](cache.Config{
			MaxSize: cfg.MaxEntries,
			TTL:     cfg.TTL,
		}),
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	// 后台清理 goroutine
	go s.cleanupWorker()

	return s
}

// Seen 检查请求是否已处理
func (s *MemoryStore) Seen(ctx context.Context, requestID string) (bool, error) {
	return s.records.Has(requestID), nil
}

// Mark 标记请求已处理
func (s *MemoryStore) Mark(ctx context.Context, requestID string) error {
	s.records.Set(requestID, struct{}{})
	return nil
}

// Size 当前记录数（监控用）
func (s *MemoryStore) Size() int {
	return s.records.Size()
}

// Stop 停止后台清理（测试和优雅关闭用）
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) cleanupWorker() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.records.CleanExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

var _ Store = (*MemoryStore)(nil)
