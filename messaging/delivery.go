package messaging

// Acker 投递确认接口，由具体传输实现
type Acker interface {
	// Ack 确认投递
	Ack() error

	// Nack 否定确认；requeue 为 true 时消息重新入队等待再投递，
	// 为 false 时按队列的死信配置路由
	Nack(requeue bool) error
}

// Delivery 一次到达的投递
type Delivery struct {
	// Body 原始消息体
	Body []byte

	// CorrelationID 传输层关联 id（可能为空，信封内的 id 才是权威）
	CorrelationID string

	// ReplyTo 响应投递的目标队列名
	ReplyTo string

	// Attempts 此前失败并重新入队的次数，首次投递为 0
	// 由 Broker 维护（AMQP 的 x-death 计数），重试决策的唯一输入
	Attempts int

	acker Acker
}

// NewDelivery 构造投递（传输实现使用）
func NewDelivery(body []byte, correlationID, replyTo string, attempts int, acker Acker) *Delivery {
	return &Delivery{
		Body:          body,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Attempts:      attempts,
		acker:         acker,
	}
}

// Ack 确认投递
func (d *Delivery) Ack() error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Ack()
}

// Nack 否定确认
func (d *Delivery) Nack(requeue bool) error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Nack(requeue)
}
