// Package client 提供消息管线的调用端：发布请求并等待关联响应
package client

import (
	"context"
	"sync"
	"time"

	"taskmq/envelope"
	"taskmq/errors"
	"taskmq/logging"
	"taskmq/messaging"
)

// DefaultTimeout 默认请求等待窗口
const DefaultTimeout = 30 * time.Second

// future 单次完成的响应占位
type future struct {
	done chan struct{}
	resp *envelope.Response
	err  error
	once sync.Once
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) complete(resp *envelope.Response, err error) {
	f.once.Do(func() {
		f.resp = resp
		f.err = err
		close(f.done)
	})
}

// Client 请求发布端
//
// Publish 即发即弃；Request 注册关联等待者后发布，阻塞到响应到达
// 或超时。同一实例可被多 goroutine 并发使用，每个实例持有一条
// 独占回复队列。
type Client struct {
	broker  messaging.Broker
	timeout time.Duration
	logger  logging.Logger

	mu         sync.Mutex
	pending    map[string]*future
	replyQueue string
	closed     bool
}

// Config 客户端配置
type Config struct {
	Broker messaging.Broker

	// Timeout 请求等待窗口（默认：30s）
	Timeout time.Duration

	Logger logging.Logger
}

// New 创建客户端
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Client{
		broker:  cfg.Broker,
		timeout: cfg.Timeout,
		logger:  logger.WithFields(logging.Component("client")),
		pending: make(map[string]*future),
	}
}

// Start 声明回复队列并开始消费响应
//
// 必须在 broker.Start 之后、首次 Request 之前调用。只调用 Publish
// 的发布端可以不 Start，请求将不携带回复队列。
func (c *Client) Start() error {
	queue, err := c.broker.ConsumeReplies(c.handleReply)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "consume replies")
	}

	c.mu.Lock()
	c.replyQueue = queue
	c.mu.Unlock()
	return nil
}

// Publish 发布请求但不等待响应，返回请求 id
func (c *Client) Publish(ctx context.Context, action string, data any, auth string) (string, error) {
	req, err := envelope.NewRequest(action, data, auth)
	if err != nil {
		return "", err
	}
	if err := c.publish(ctx, req); err != nil {
		return "", err
	}
	return req.ID, nil
}

// Request 发布请求并阻塞等待关联响应
//
// 超时后等待者被移除，迟到的响应按多余响应丢弃。响应与超时同时
// 发生时以二者中先摘除等待者的一方为准，调用方得到且仅得到一个
// 结果。
func (c *Client) Request(ctx context.Context, action string, data any, auth string) (*envelope.Response, error) {
	req, err := envelope.NewRequest(action, data, auth)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrCodeQueue, "client closed")
	}
	if c.replyQueue == "" {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrCodeQueue, "client not started")
	}
	fut := newFuture()
	c.pending[req.ID] = fut
	c.mu.Unlock()

	if err := c.publish(ctx, req); err != nil {
		c.remove(req.ID)
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-fut.done:
		return fut.resp, fut.err

	case <-ctx.Done():
		if c.remove(req.ID) {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "request cancelled")
		}
		// 响应处理方已摘除等待者，结果即将就绪
		<-fut.done
		return fut.resp, fut.err

	case <-timer.C:
		if c.remove(req.ID) {
			return nil, errors.Newf(errors.ErrCodeTimeout,
				"request %s timed out after %s", req.ID, c.timeout)
		}
		<-fut.done
		return fut.resp, fut.err
	}
}

// Close 关闭客户端，所有在途等待者立即收到错误
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	waiters := c.pending
	c.pending = make(map[string]*future)
	c.mu.Unlock()

	for _, fut := range waiters {
		fut.complete(nil, errors.New(errors.ErrCodeQueue, "client closed"))
	}
	return nil
}

func (c *Client) publish(ctx context.Context, req *envelope.Request) error {
	body, err := envelope.EncodeRequest(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	replyQueue := c.replyQueue
	c.mu.Unlock()

	err = c.broker.Publish(ctx, messaging.Publishing{
		Body:          body,
		CorrelationID: req.ID,
		ReplyTo:       replyQueue,
		Persistent:    true,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueue, "publish request")
	}

	c.logger.Debug(ctx, "request published",
		logging.String("request_id", req.ID),
		logging.String("action", req.Action))
	return nil
}

// remove 摘除等待者；返回 false 表示已被响应处理方摘除
func (c *Client) remove(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[requestID]; !ok {
		return false
	}
	delete(c.pending, requestID)
	return true
}

// handleReply 消费回复队列
//
// 无论是否匹配到等待者都确认消息：响应消费是尽力而为的，迟到或
// 多余的响应只记日志，不能阻塞队列。
func (c *Client) handleReply(ctx context.Context, delivery *messaging.Delivery) {
	defer func() {
		if err := delivery.Ack(); err != nil {
			c.logger.Error(ctx, "ack reply failed", logging.Error(err))
		}
	}()

	resp, err := envelope.DecodeResponse(delivery.Body)
	if err != nil {
		c.logger.Error(ctx, "malformed response discarded", logging.Error(err))
		return
	}

	correlationID := resp.CorrelationID
	if correlationID == "" {
		correlationID = delivery.CorrelationID
	}

	c.mu.Lock()
	fut, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn(ctx, "unsolicited response discarded",
			logging.String("correlation_id", correlationID),
			logging.String("status", resp.Status))
		return
	}
	fut.complete(resp, nil)
}
