package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskmq/errors"
)

// RedisStore Redis 幂等性存储
//
// 多实例部署时各消费者共享同一份处理记录。Mark 使用 SET NX 写入
// 带 TTL 的键，保留窗口由 Redis 过期机制维护，不需要清理任务。
type RedisStore struct {
	client    redis.UniversalClient
	ownClient bool
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig Redis 存储配置
type RedisConfig struct {
	// Client 已有的 Redis 客户端；为空时按 Addr 自建
	Client redis.UniversalClient

	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix 键前缀（默认："taskmq:idempotency:"）
	KeyPrefix string

	// TTL 记录保留窗口（默认：1小时）
	TTL time.Duration
}

// NewRedisStore 创建 Redis 幂等性存储
func NewRedisStore(cfg RedisConfig) *RedisStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "taskmq:idempotency:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	client := cfg.Client
	ownClient := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		ownClient = true
	}

	return &RedisStore{
		client:    client,
		ownClient: ownClient,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}
}

// Seen 检查请求是否已处理
func (s *RedisStore) Seen(ctx context.Context, requestID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(requestID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "idempotency check failed")
	}
	return n > 0, nil
}

// Mark 标记请求已处理
func (s *RedisStore) Mark(ctx context.Context, requestID string) error {
	if err := s.client.SetNX(ctx, s.key(requestID), "1", s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "idempotency mark failed")
	}
	return nil
}

// Close 关闭自建的客户端；外部传入的客户端由调用方负责关闭
func (s *RedisStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) key(requestID string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, requestID)
}

var _ Store = (*RedisStore)(nil)
