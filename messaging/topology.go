// Package messaging 提供消息管线的传输层抽象
//
// Broker 接口屏蔽具体消息中间件；AMQP、内存、NATS JetStream 三种
// 实现位于 transport 子包。拓扑名称是线上契约的一部分，默认值与
// 既有部署保持一致，不可随意更改。
package messaging

import "time"

// 默认拓扑名称（线上契约）
const (
	DefaultExchange       = "task_system_exchange"
	DefaultQueue          = "job_operations_queue"
	DefaultRoutingKey     = "job.operations"
	DefaultDeadExchange   = "dead_letter_exchange"
	DefaultDeadQueue      = "dead_letter_queue"
	DefaultDeadRoutingKey = "dead.letter"
)

// DefaultMessageTTL 工作队列中未处理消息的存活时间
const DefaultMessageTTL = 5 * time.Minute

// Topology 描述 Broker 侧的拓扑结构
//
// 一个持久化直连交换机、一个绑定其上的持久化工作队列（带死信参数
// 和消息 TTL），以及一对独立的死信交换机/队列。每个客户端实例另外
// 声明自己的独占、自动删除回复队列，不在此处描述。
type Topology struct {
	Exchange       string
	Queue          string
	RoutingKey     string
	DeadExchange   string
	DeadQueue      string
	DeadRoutingKey string
	MessageTTL     time.Duration
}

// DefaultTopology 返回默认拓扑
func DefaultTopology() Topology {
	return Topology{
		Exchange:       DefaultExchange,
		Queue:          DefaultQueue,
		RoutingKey:     DefaultRoutingKey,
		DeadExchange:   DefaultDeadExchange,
		DeadQueue:      DefaultDeadQueue,
		DeadRoutingKey: DefaultDeadRoutingKey,
		MessageTTL:     DefaultMessageTTL,
	}
}

// Normalize 为零值字段填入默认值
func (t Topology) Normalize() Topology {
	def := DefaultTopology()
	if t.Exchange == "" {
		t.Exchange = def.Exchange
	}
	if t.Queue == "" {
		t.Queue = def.Queue
	}
	if t.RoutingKey == "" {
		t.RoutingKey = def.RoutingKey
	}
	if t.DeadExchange == "" {
		t.DeadExchange = def.DeadExchange
	}
	if t.DeadQueue == "" {
		t.DeadQueue = def.DeadQueue
	}
	if t.DeadRoutingKey == "" {
		t.DeadRoutingKey = def.DeadRoutingKey
	}
	if t.MessageTTL <= 0 {
		t.MessageTTL = def.MessageTTL
	}
	return t
}
