// Package idempotency 提供请求处理记录的存取，用于在至少一次投递
// 的传输之上实现至多一次的业务效果
//
// 以请求 id 为键。调度器在执行领域操作前调用 Seen，仅在操作成功
// 后调用 Mark——绝不提前标记，崩溃在执行与标记之间最多造成一次
// 无害的重复检查，而不是静默吞掉一次操作。
//
// Seen 与 Mark 各自必须对并发调用安全；两者之间没有事务联结，
// 与领域操作之间也没有。这是已接受的一致性缺口（见 DESIGN.md）。
package idempotency

import "context"

// Store 幂等性存储接口
type Store interface {
	// Seen 返回请求 id 是否已被成功处理
	Seen(ctx context.Context, requestID string) (bool, error)

	// Mark 记录请求 id 已被成功处理；重复标记不是错误
	Mark(ctx context.Context, requestID string) error
}
