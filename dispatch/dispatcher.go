package dispatch

import (
	"context"
	"time"

	"taskmq/envelope"
	"taskmq/errors"
	"taskmq/idempotency"
	"taskmq/logging"
	"taskmq/messaging"
	"taskmq/patterns/retry"
)

// ActionRouter 动作执行入口
type ActionRouter interface {
	Route(ctx context.Context, req *envelope.Request) (any, error)
}

// Dispatcher 消费端调度器
//
// 对每条投递执行固定的状态机：
//
//	解码失败      -> 尽力提取关联 id 回错误响应，原始消息进死信，确认
//	幂等命中      -> 回缓存成功响应（is_cached），确认
//	应用级错误    -> 回错误响应，确认（不重试）
//	意外错误      -> 指数退避后重投；超过上限回错误响应并进死信
//	成功          -> 标记幂等，回成功响应，确认
//
// 两条不变式贯穿所有路径：响应总是在确认之前发出；幂等标记只在
// 领域操作成功之后写入，失败的请求重投后仍会被完整处理。
type Dispatcher struct {
	broker messaging.Broker
	router ActionRouter
	store  idempotency.Store
	retry  retry.Config
	logger logging.Logger
}

// Config 调度器配置
type Config struct {
	Broker messaging.Broker
	Router ActionRouter
	Store  idempotency.Store

	// Retry 重投策略；MaxAttempts 是死信前的最大重投次数
	// （默认：3 次，基础延迟 1s，倍率 2）
	Retry retry.Config

	Logger logging.Logger
}

// DefaultRetryConfig 调度器默认重投策略
func DefaultRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
}

// NewDispatcher 创建调度器
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Dispatcher{
		broker: cfg.Broker,
		router: cfg.Router,
		store:  cfg.Store,
		retry:  cfg.Retry,
		logger: logger.WithFields(logging.Component("dispatcher")),
	}
}

// Handle 处理一条请求投递，可作为 messaging.DeliveryHandler 使用
func (d *Dispatcher) Handle(ctx context.Context, delivery *messaging.Delivery) {
	req, err := envelope.DecodeRequest(delivery.Body)
	if err != nil {
		d.handleMalformed(ctx, delivery, err)
		return
	}

	seen, err := d.store.Seen(ctx, req.ID)
	if err != nil {
		// 幂等检查失败按未处理继续：宁可重复执行也不丢请求
		d.logger.Warn(ctx, "idempotency check failed, proceeding",
			logging.String("request_id", req.ID), logging.Error(err))
		seen = false
	}
	if seen {
		d.logger.Info(ctx, "duplicate request, returning cached response",
			logging.String("request_id", req.ID),
			logging.String("action", req.Action))
		d.respond(ctx, delivery, d.cachedResponse(req))
		d.ack(ctx, delivery)
		return
	}

	data, err := d.router.Route(ctx, req)
	if err != nil {
		if errors.IsApplication(err) {
			d.handleFailed(ctx, delivery, req, err)
		} else {
			d.handleUnexpected(ctx, delivery, req, err)
		}
		return
	}

	if err := d.store.Mark(ctx, req.ID); err != nil {
		// 标记失败只影响后续去重，不影响本次结果
		d.logger.Warn(ctx, "idempotency mark failed",
			logging.String("request_id", req.ID), logging.Error(err))
	}

	resp, err := envelope.OkResponse(req.ID, data)
	if err != nil {
		d.logger.Error(ctx, "encode success payload failed",
			logging.String("request_id", req.ID), logging.Error(err))
		resp = envelope.ErrorResponse(req.ID, "internal error: response serialization failed")
	}
	d.respond(ctx, delivery, resp)
	d.ack(ctx, delivery)
}

// handleMalformed 处理无法解码的消息：死信留证，尽力回错误响应
func (d *Dispatcher) handleMalformed(ctx context.Context, delivery *messaging.Delivery, cause error) {
	d.logger.Error(ctx, "malformed request, dead-lettering", logging.Error(cause))

	correlationID := delivery.CorrelationID
	if correlationID == "" {
		correlationID = envelope.SalvageCorrelationID(delivery.Body)
	}
	if correlationID != "" && delivery.ReplyTo != "" {
		d.respond(ctx, delivery, envelope.ErrorResponse(correlationID, "malformed request: "+errors.MessageOf(cause)))
	}

	d.deadLetter(ctx, delivery, cause)
	d.ack(ctx, delivery)
}

// handleFailed 处理应用级失败：错误响应是终态，消息确认不重投
func (d *Dispatcher) handleFailed(ctx context.Context, delivery *messaging.Delivery, req *envelope.Request, cause error) {
	d.logger.Info(ctx, "action failed",
		logging.String("request_id", req.ID),
		logging.String("action", req.Action),
		logging.String("code", string(errors.CodeOf(cause))),
		logging.Error(cause))

	d.respond(ctx, delivery, envelope.ErrorResponse(req.ID, errors.MessageOf(cause)))
	d.ack(ctx, delivery)
}

// handleUnexpected 处理意外失败：退避重投，超限后死信
func (d *Dispatcher) handleUnexpected(ctx context.Context, delivery *messaging.Delivery, req *envelope.Request, cause error) {
	attempts := delivery.Attempts
	if attempts < d.retry.MaxAttempts {
		delay := d.retry.DelayFor(attempts)
		d.logger.Warn(ctx, "unexpected failure, requeueing",
			logging.String("request_id", req.ID),
			logging.String("action", req.Action),
			logging.Int("attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(cause))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		if err := delivery.Nack(true); err != nil {
			d.logger.Error(ctx, "requeue failed", logging.Error(err))
		}
		return
	}

	d.logger.Error(ctx, "retries exhausted, dead-lettering",
		logging.String("request_id", req.ID),
		logging.String("action", req.Action),
		logging.Int("attempts", attempts),
		logging.Error(cause))

	d.respond(ctx, delivery, envelope.ErrorResponse(req.ID,
		"request failed after retries: "+errors.MessageOf(cause)))
	d.deadLetter(ctx, delivery, cause)
	d.ack(ctx, delivery)
}

// cachedResponse 幂等命中时的替身响应
//
// 原始响应不落盘，重复请求拿到的是标记了 is_cached 的占位成功，
// 调用方据此知道效果已生效但首次响应可能已丢失。
func (d *Dispatcher) cachedResponse(req *envelope.Request) *envelope.Response {
	resp, err := envelope.OkResponse(req.ID, map[string]any{
		"is_cached": true,
		"message":   "request already processed",
	})
	if err != nil {
		return envelope.ErrorResponse(req.ID, "internal error")
	}
	return resp
}

func (d *Dispatcher) respond(ctx context.Context, delivery *messaging.Delivery, resp *envelope.Response) {
	if delivery.ReplyTo == "" {
		d.logger.Debug(ctx, "no reply-to queue, skipping response",
			logging.String("correlation_id", resp.CorrelationID))
		return
	}

	body, err := envelope.EncodeResponse(resp)
	if err != nil {
		d.logger.Error(ctx, "encode response failed",
			logging.String("correlation_id", resp.CorrelationID), logging.Error(err))
		return
	}
	err = d.broker.Reply(ctx, delivery.ReplyTo, messaging.Publishing{
		Body:          body,
		CorrelationID: resp.CorrelationID,
	})
	if err != nil {
		d.logger.Error(ctx, "publish response failed",
			logging.String("correlation_id", resp.CorrelationID),
			logging.String("reply_to", delivery.ReplyTo),
			logging.Error(err))
	}
}

// deadLetter 发布带失败原因的消息副本到死信交换机，随后确认原消息
func (d *Dispatcher) deadLetter(ctx context.Context, delivery *messaging.Delivery, cause error) {
	err := d.broker.DeadLetter(ctx, messaging.Publishing{
		Body:          delivery.Body,
		CorrelationID: delivery.CorrelationID,
		Persistent:    true,
		Headers: map[string]any{
			messaging.HeaderDeadLetterReason: cause.Error(),
			messaging.HeaderDeadLetterTime:   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		d.logger.Error(ctx, "dead-letter publish failed", logging.Error(err))
	}
}

func (d *Dispatcher) ack(ctx context.Context, delivery *messaging.Delivery) {
	if err := delivery.Ack(); err != nil {
		d.logger.Error(ctx, "ack failed", logging.Error(err))
	}
}
