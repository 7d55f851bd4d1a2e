package retry

import (
	"context"
	"time"
)

// Operation 可重试的操作函数类型
type Operation func(ctx context.Context) error

// Config 重试配置
type Config struct {
	MaxAttempts   int           // 最大尝试次数（包括首次）
	InitialDelay  time.Duration // 初始退避延迟
	BackoffFactor float64       // 退避倍数（指数退避）
	MaxDelay      time.Duration // 最大延迟
}

// DefaultConfig 返回默认配置
//
// 默认值：
//   - MaxAttempts: 4（1次初始 + 3次重试，与消息管线的最大重试次数一致）
//   - InitialDelay: 1s
//   - BackoffFactor: 2.0（指数退避）
//   - MaxDelay: 30s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   4,
		InitialDelay:  1 * time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
}

// DelayFor 计算第 attempt 次失败后的退避延迟（attempt 从 0 开始）
//
// 公式：InitialDelay * BackoffFactor^attempt，封顶 MaxDelay。
// 调度器用它把 Broker 的投递次数映射为重新入队前的等待时间。
func (c Config) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(c.InitialDelay) * pow(c.BackoffFactor, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do 执行带重试的操作
//
// 参数：
//   - ctx: 上下文（支持取消）
//   - op: 要执行的操作
//   - cfg: 重试配置
//
// 返回：
//   - 最后一次执行的错误（如果所有尝试都失败）
//   - nil（如果任意一次尝试成功）
func Do(ctx context.Context, op Operation, cfg Config) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := op(ctx)
		if err == nil {
			return nil // 成功
		}

		lastErr = err

		// 最后一次尝试不需要等待
		if attempt < cfg.MaxAttempts {
			delay := cfg.DelayFor(attempt - 1)

			// 等待退避延迟（支持上下文取消）
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// pow 简单的幂运算实现（避免引入 math 包）
func pow(base, exp float64) float64 {
	if exp <= 0 {
		return 1
	}
	result := base
	for i := 1; i < int(exp); i++ {
		result *= base
	}
	return result
}
