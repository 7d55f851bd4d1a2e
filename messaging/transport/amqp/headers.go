package amqp

import amqp "github.com/rabbitmq/amqp091-go"

// headerRetryCount 消费端重新发布时携带的重投计数头
const headerRetryCount = "x-retry-count"

// headerDeath RabbitMQ 在死信/过期时写入的队列级计数头
const headerDeath = "x-death"

// attemptsFromHeaders 从消息头推导此前的失败投递次数
//
// 首次投递为 0。两个来源取较大值：消费端重新发布累积的
// x-retry-count，和队列层事件累积的 x-death 计数。
func attemptsFromHeaders(headers amqp.Table) int {
	attempts := 0

	switch v := headers[headerRetryCount].(type) {
	case int64:
		attempts = int(v)
	case int32:
		attempts = int(v)
	case int:
		attempts = v
	}

	if deaths, ok := headers[headerDeath].([]any); ok {
		total := 0
		for _, entry := range deaths {
			table, ok := entry.(amqp.Table)
			if !ok {
				continue
			}
			if count, ok := table["count"].(int64); ok {
				total += int(count)
			}
		}
		if total > attempts {
			attempts = total
		}
	}

	if attempts < 0 {
		attempts = 0
	}
	return attempts
}
