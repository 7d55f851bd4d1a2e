package server

import (
	"context"

	"taskmq/dispatch"
	"taskmq/domain"
	"taskmq/idempotency"
	"taskmq/logging"
	"taskmq/messaging"
	"taskmq/patterns/retry"
)

// Consumer 工作队列消费端进程
//
// 把消息中间件、调度器和领域服务装配成一个可被 Engine 托管的
// IServer，进程内唯一的职责是消费请求并产出响应。
type Consumer struct {
	name    string
	broker  messaging.Broker
	handler messaging.DeliveryHandler
	logger  logging.Logger
}

// ConsumerConfig 消费端配置
type ConsumerConfig struct {
	// Name 进程名（默认："taskmq-consumer"）
	Name string

	Broker messaging.Broker

	// Services 路由目标的服务集合
	Services domain.Services

	// Store 幂等性存储（默认：内存存储）
	Store idempotency.Store

	// Retry 重投策略（默认：dispatch.DefaultRetryConfig）
	Retry retry.Config

	// Handler 自定义投递处理函数；设置后忽略 Services/Store/Retry
	Handler messaging.DeliveryHandler

	Logger logging.Logger
}

// NewConsumer 装配消费端
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Name == "" {
		cfg.Name = "taskmq-consumer"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	handler := cfg.Handler
	if handler == nil {
		store := cfg.Store
		if store == nil {
			store = idempotency.NewMemoryStore(idempotency.DefaultMemoryConfig())
		}
		dispatcher := dispatch.NewDispatcher(dispatch.Config{
			Broker: cfg.Broker,
			Router: dispatch.NewRouter(cfg.Services, logger),
			Store:  store,
			Retry:  cfg.Retry,
			Logger: logger,
		})
		handler = dispatcher.Handle
	}

	return &Consumer{
		name:    cfg.Name,
		broker:  cfg.Broker,
		handler: handler,
		logger:  logger.WithFields(logging.Component("consumer")),
	}
}

// Name 实现 IServer
func (c *Consumer) Name() string {
	return c.name
}

// LoadConfig 实现 IServer；装配在 NewConsumer 完成，无额外配置
func (c *Consumer) LoadConfig() error {
	return nil
}

// SetupDependencies 建立中间件连接并声明拓扑
func (c *Consumer) SetupDependencies(ctx context.Context) error {
	return c.broker.Start(ctx)
}

// StartBackgroundTasks 开始消费工作队列
func (c *Consumer) StartBackgroundTasks(ctx context.Context) error {
	if err := c.broker.ConsumeRequests(c.handler); err != nil {
		return err
	}
	c.logger.Info(ctx, "consuming requests")
	return nil
}

// Run 阻塞到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Shutdown 停止消费并断开连接
func (c *Consumer) Shutdown(ctx context.Context) error {
	return c.broker.Close()
}

var _ IServer = (*Consumer)(nil)
