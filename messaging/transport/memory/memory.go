// Package memory 提供基于内存队列的 Broker 实现
// 适用于单机部署、开发环境和测试场景
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"taskmq/logging"
	"taskmq/messaging"
)

// item 队列中的消息及其投递历史
type item struct {
	pub      messaging.Publishing
	attempts int
}

// Broker 内存 Broker 实现
//
// 特性:
//   - 基于有缓冲 channel 的工作队列，Worker 池并发消费
//   - Nack(requeue=true) 重新入队并递增投递计数
//   - Nack(requeue=false) 模拟死信路由，消息进入死信队列
//   - 命名回复队列，投向不存在的队列时静默丢弃
//
// 使用场景:
//   - 单进程部署
//   - 集成测试（死信队列可直接检查）
type Broker struct {
	queueSize   int
	workerCount int

	queue   chan *item
	replies map[string]chan *item
	dead    []messaging.Publishing

	requestHandler messaging.DeliveryHandler

	running bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  logging.Logger
}

// Config 内存 Broker 配置
type Config struct {
	QueueSize   int // 工作队列容量（<=0 时使用默认 1000）
	WorkerCount int // 请求消费 Worker 数（<=0 时使用默认 4）
	Logger      logging.Logger
}

// NewBroker 创建内存 Broker
func NewBroker(cfg Config) *Broker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.Component("transport.memory"))
	}
	return &Broker{
		queueSize:   cfg.QueueSize,
		workerCount: cfg.WorkerCount,
		queue:       make(chan *item, cfg.QueueSize),
		replies:     make(map[string]chan *item),
		logger:      cfg.Logger,
	}
}

// Start 启动 Broker
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return fmt.Errorf("memory broker already running")
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.running = true
	return nil
}

// Close 停止 Broker 并等待 Worker 退出
func (b *Broker) Close() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Publish 发布请求消息到工作队列
func (b *Broker) Publish(ctx context.Context, pub messaging.Publishing) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("memory broker is not running")
	}

	select {
	case b.queue <- &item{pub: pub}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("work queue is full")
	}
}

// Reply 投递响应到指定回复队列
//
// 队列不存在时静默丢弃，与 AMQP 默认交换机对已删除队列的行为一致。
func (b *Broker) Reply(ctx context.Context, queue string, pub messaging.Publishing) error {
	b.mu.RLock()
	ch, ok := b.replies[queue]
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("memory broker is not running")
	}
	if !ok {
		b.logger.Debug(ctx, "reply queue gone, dropping response",
			logging.String("queue", queue),
			logging.String("correlation_id", pub.CorrelationID))
		return nil
	}

	select {
	case ch <- &item{pub: pub}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeadLetter 将消息放入死信队列
func (b *Broker) DeadLetter(ctx context.Context, pub messaging.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return fmt.Errorf("memory broker is not running")
	}
	b.dead = append(b.dead, pub)
	return nil
}

// ConsumeRequests 启动 Worker 池消费工作队列
func (b *Broker) ConsumeRequests(handler messaging.DeliveryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return fmt.Errorf("memory broker is not running")
	}
	if b.requestHandler != nil {
		return fmt.Errorf("request consumer already registered")
	}
	b.requestHandler = handler

	for i := 0; i < b.workerCount; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return nil
}

// ConsumeReplies 声明回复队列并启动消费 goroutine
func (b *Broker) ConsumeReplies(handler messaging.DeliveryHandler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return "", fmt.Errorf("memory broker is not running")
	}

	// 模仿 AMQP 服务端命名队列
	name := "amq.gen-" + uuid.NewString()
	ch := make(chan *item, b.queueSize)
	b.replies[name] = ch

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case it := <-ch:
				d := messaging.NewDelivery(it.pub.Body, it.pub.CorrelationID, "", 0, noopAcker{})
				handler(b.ctx, d)
			case <-b.ctx.Done():
				b.mu.Lock()
				delete(b.replies, name)
				b.mu.Unlock()
				return
			}
		}
	}()

	return name, nil
}

// DeadLetters 返回死信队列内容的副本（测试用）
func (b *Broker) DeadLetters() []messaging.Publishing {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]messaging.Publishing, len(b.dead))
	copy(out, b.dead)
	return out
}

// QueueDepth 返回工作队列当前深度（测试用）
func (b *Broker) QueueDepth() int {
	return len(b.queue)
}

// worker 消费工作队列
func (b *Broker) worker() {
	defer b.wg.Done()
	for {
		select {
		case it := <-b.queue:
			d := messaging.NewDelivery(it.pub.Body, it.pub.CorrelationID, it.pub.ReplyTo, it.attempts, &requestAcker{broker: b, it: it})
			b.requestHandler(b.ctx, d)
		case <-b.ctx.Done():
			return
		}
	}
}

// requestAcker 工作队列投递的确认实现
type requestAcker struct {
	broker *Broker
	it     *item
}

func (a *requestAcker) Ack() error {
	return nil
}

// Nack 否定确认
//
// requeue=true 时递增投递计数并重新入队；requeue=false 时按死信
// 配置把消息路由到死信队列（模拟队列的 x-dead-letter-exchange 参数）。
func (a *requestAcker) Nack(requeue bool) error {
	if !requeue {
		return a.broker.DeadLetter(context.Background(), a.it.pub)
	}

	next := &item{pub: a.it.pub, attempts: a.it.attempts + 1}
	select {
	case a.broker.queue <- next:
		return nil
	case <-a.broker.ctx.Done():
		return a.broker.ctx.Err()
	}
}

// noopAcker 回复队列按至多一次语义消费，确认是空操作
type noopAcker struct{}

func (noopAcker) Ack() error              { return nil }
func (noopAcker) Nack(requeue bool) error { return nil }
