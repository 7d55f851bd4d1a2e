package messaging

import "context"

// 死信消息的元数据头
const (
	HeaderDeadLetterReason = "original_error"
	HeaderDeadLetterTime   = "timestamp"
)

// Publishing 待发布的消息
type Publishing struct {
	// Body 消息体（已编码的信封 JSON）
	Body []byte

	// CorrelationID 传输层关联 id，与信封内的 id/correlation_id 一致
	CorrelationID string

	// ReplyTo 响应投递的目标队列名，仅请求消息携带
	ReplyTo string

	// Persistent 持久化投递标志
	Persistent bool

	// Headers 附加元数据（死信原因等）
	Headers map[string]any
}

// DeliveryHandler 投递处理函数
//
// 处理函数负责调用 Ack/Nack 终结投递；任何投递最终都必须有一个
// 显式的确认决定。
type DeliveryHandler func(ctx context.Context, delivery *Delivery)

// Broker 消息中间件接口
//
// 服务端用 Publish/DeadLetter/Reply 和 ConsumeRequests，客户端用
// Publish 和 ConsumeReplies。实现必须可被多 goroutine 并发使用。
type Broker interface {
	// Publish 将请求消息发布到工作队列（经由直连交换机）
	Publish(ctx context.Context, pub Publishing) error

	// Reply 将响应消息直接投递到指定队列（默认交换机语义）
	Reply(ctx context.Context, queue string, pub Publishing) error

	// DeadLetter 将消息发布到死信交换机，供离线检查
	DeadLetter(ctx context.Context, pub Publishing) error

	// ConsumeRequests 开始消费工作队列
	// 必须在 Start 之后调用；投递可能并发到达处理函数
	ConsumeRequests(handler DeliveryHandler) error

	// ConsumeReplies 声明本实例的独占、自动删除回复队列并开始消费，
	// 返回队列名（作为请求消息的 ReplyTo）
	// 必须在 Start 之后调用
	ConsumeReplies(handler DeliveryHandler) (string, error)

	// Start 建立连接并声明拓扑
	Start(ctx context.Context) error

	// Close 停止消费并释放连接
	Close() error
}
