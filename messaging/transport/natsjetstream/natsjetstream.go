// Package natsjetstream 提供基于 NATS JetStream 的 Broker 实现
//
// 工作队列映射为 WorkQueue 保留策略的流，重投计数直接取自 JetStream
// 的投递元数据。响应走 core NATS：每个客户端实例订阅一个 inbox 主题
// 充当回复队列。死信是一条独立的 Limits 流，供离线检查。
package natsjetstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"taskmq/errors"
	"taskmq/logging"
	"taskmq/messaging"
)

// 消息头
const (
	headerCorrelationID = "Correlation-Id"
	headerReplyTo       = "Reply-To"
)

// Config JetStream 传输配置
type Config struct {
	// URL 连接地址（默认：nats.DefaultURL）；Conn 非空时忽略
	URL  string
	Conn *nats.Conn

	// Stream 工作流名称（默认："TASKMQ"）
	Stream string

	// Subject 请求主题（默认："taskmq.requests"）
	Subject string

	// DeadStream 死信流名称（默认："TASKMQ_DLQ"）
	DeadStream string

	// DeadSubject 死信主题（默认："taskmq.dead"）
	DeadSubject string

	// Durable 工作消费者的持久化名称（默认："taskmq-workers"）
	Durable string

	// AckWait 投递确认超时（默认：30s）
	AckWait time.Duration

	// MaxAckPending 未确认消息上限（默认：64）
	MaxAckPending int

	Logger logging.Logger
}

// Broker NATS JetStream 传输
type Broker struct {
	cfg      Config
	logger   logging.Logger
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	subs    []*nats.Subscription
}

// NewBroker 创建 JetStream 传输
func NewBroker(cfg Config) *Broker {
	if cfg.Stream == "" {
		cfg.Stream = "TASKMQ"
	}
	if cfg.Subject == "" {
		cfg.Subject = "taskmq.requests"
	}
	if cfg.DeadStream == "" {
		cfg.DeadStream = "TASKMQ_DLQ"
	}
	if cfg.DeadSubject == "" {
		cfg.DeadSubject = "taskmq.dead"
	}
	if cfg.Durable == "" {
		cfg.Durable = "taskmq-workers"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Broker{
		cfg:    cfg,
		logger: logger.WithFields(logging.Component("natsjetstream")),
	}
}

// Start 建立连接并确保流存在
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New(errors.ErrCodeQueue, "broker already started")
	}

	if b.cfg.Conn != nil {
		b.conn = b.cfg.Conn
	} else {
		url := b.cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeQueue, "connect to nats")
		}
		b.conn = conn
		b.ownsConn = true
	}

	js, err := b.conn.JetStream()
	if err != nil {
		b.closeConn()
		return errors.Wrap(err, errors.ErrCodeQueue, "jetstream context")
	}
	b.js = js

	if err := b.ensureStream(b.cfg.Stream, b.cfg.Subject, nats.WorkQueuePolicy); err != nil {
		b.closeConn()
		return err
	}
	if err := b.ensureStream(b.cfg.DeadStream, b.cfg.DeadSubject, nats.LimitsPolicy); err != nil {
		b.closeConn()
		return err
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.running = true
	b.logger.Info(ctx, "connected", logging.String("stream", b.cfg.Stream))
	return nil
}

// Close 排空订阅并断开连接
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.running = false
	b.cancel()

	for _, sub := range b.subs {
		_ = sub.Drain()
	}
	b.subs = nil
	b.closeConn()
	return nil
}

// Publish 发布请求到工作流
func (b *Broker) Publish(ctx context.Context, pub messaging.Publishing) error {
	if _, err := b.jetStream(); err != nil {
		return err
	}
	msg := b.newMsg(b.cfg.Subject, pub)
	if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "publish request")
	}
	return nil
}

// Reply 通过 core NATS 投递响应到指定 inbox 主题
func (b *Broker) Reply(ctx context.Context, queue string, pub messaging.Publishing) error {
	if b.conn == nil {
		return errors.New(errors.ErrCodeQueue, "broker not started")
	}
	if err := b.conn.PublishMsg(b.newMsg(queue, pub)); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "publish reply")
	}
	return nil
}

// DeadLetter 发布到死信流
func (b *Broker) DeadLetter(ctx context.Context, pub messaging.Publishing) error {
	if _, err := b.jetStream(); err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(b.newMsg(b.cfg.DeadSubject, pub), nats.Context(ctx)); err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "publish dead letter")
	}
	return nil
}

// ConsumeRequests 以持久化消费者消费工作流
func (b *Broker) ConsumeRequests(handler messaging.DeliveryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return errors.New(errors.ErrCodeQueue, "broker not started")
	}

	sub, err := b.js.QueueSubscribe(b.cfg.Subject, b.cfg.Durable, func(msg *nats.Msg) {
		handler(b.ctx, b.newRequestDelivery(msg))
	},
		nats.ManualAck(),
		nats.Durable(b.cfg.Durable),
		nats.AckWait(b.cfg.AckWait),
		nats.MaxAckPending(b.cfg.MaxAckPending))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "subscribe work stream")
	}
	b.subs = append(b.subs, sub)
	return nil
}

// ConsumeReplies 订阅本实例的 inbox 主题并返回其名称
func (b *Broker) ConsumeReplies(handler messaging.DeliveryHandler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return "", errors.New(errors.ErrCodeQueue, "broker not started")
	}

	inbox := nats.NewInbox()
	sub, err := b.conn.Subscribe(inbox, func(msg *nats.Msg) {
		handler(b.ctx, messaging.NewDelivery(
			msg.Data,
			msg.Header.Get(headerCorrelationID),
			msg.Header.Get(headerReplyTo),
			0,
			coreAcker{}))
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeQueue, "subscribe reply inbox")
	}
	b.subs = append(b.subs, sub)
	return inbox, nil
}

func (b *Broker) jetStream() (nats.JetStreamContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running || b.js == nil {
		return nil, errors.New(errors.ErrCodeQueue, "broker not started")
	}
	return b.js, nil
}

func (b *Broker) ensureStream(name, subject string, retention nats.RetentionPolicy) error {
	_, err := b.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNotFound && !strings.Contains(err.Error(), "stream not found") {
		return errors.Wrap(err, errors.ErrCodeQueue, "stream info")
	}

	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: retention,
		// 工作队列中滞留过久的请求早已超时，没有处理价值
		MaxAge: messaging.DefaultMessageTTL,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "add stream")
	}
	return nil
}

func (b *Broker) newMsg(subject string, pub messaging.Publishing) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = pub.Body
	if pub.CorrelationID != "" {
		msg.Header.Set(headerCorrelationID, pub.CorrelationID)
	}
	if pub.ReplyTo != "" {
		msg.Header.Set(headerReplyTo, pub.ReplyTo)
	}
	for k, v := range pub.Headers {
		msg.Header.Set(k, fmt.Sprint(v))
	}
	return msg
}

func (b *Broker) newRequestDelivery(msg *nats.Msg) *messaging.Delivery {
	attempts := 0
	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 0 {
		attempts = int(meta.NumDelivered) - 1
	}
	return messaging.NewDelivery(
		msg.Data,
		msg.Header.Get(headerCorrelationID),
		msg.Header.Get(headerReplyTo),
		attempts,
		jetStreamAcker{msg})
}

func (b *Broker) closeConn() {
	if b.ownsConn && b.conn != nil {
		b.conn.Close()
	}
	b.conn = nil
	b.js = nil
}

// jetStreamAcker 工作流投递的确认器
//
// Nak 触发重投并递增 NumDelivered；Term 终结消息，显式的死信副本
// 由调用方负责发布。
type jetStreamAcker struct {
	msg *nats.Msg
}

func (a jetStreamAcker) Ack() error {
	return a.msg.Ack()
}

func (a jetStreamAcker) Nack(requeue bool) error {
	if requeue {
		return a.msg.Nak()
	}
	return a.msg.Term()
}

// coreAcker inbox 消息没有确认语义
type coreAcker struct{}

func (coreAcker) Ack() error              { return nil }
func (coreAcker) Nack(requeue bool) error { return nil }

var _ messaging.Broker = (*Broker)(nil)
