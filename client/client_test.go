package client

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmq/envelope"
	"taskmq/errors"
	"taskmq/logging"
	"taskmq/messaging"
	"taskmq/messaging/transport/memory"
)

// startEchoConsumer 启动把请求 data 原样回显为成功响应的消费端
func startEchoConsumer(t *testing.T, broker *memory.Broker) {
	t.Helper()
	err := broker.ConsumeRequests(func(ctx context.Context, delivery *messaging.Delivery) {
		req, err := envelope.DecodeRequest(delivery.Body)
		require.NoError(t, err)

		resp, err := envelope.OkResponse(req.ID, req.Data)
		require.NoError(t, err)
		body, err := envelope.EncodeResponse(resp)
		require.NoError(t, err)

		_ = broker.Reply(ctx, delivery.ReplyTo, messaging.Publishing{
			Body:          body,
			CorrelationID: req.ID,
		})
		_ = delivery.Ack()
	})
	require.NoError(t, err)
}

func newStartedBroker(t *testing.T) *memory.Broker {
	t.Helper()
	broker := memory.NewBroker(memory.Config{Logger: logging.NewNoopLogger()})
	require.NoError(t, broker.Start(context.Background()))
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func TestClient_RequestRoundTrip(t *testing.T) {
	broker := newStartedBroker(t)
	startEchoConsumer(t, broker)

	c := New(Config{Broker: broker, Timeout: 5 * time.Second, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())
	defer c.Close()

	resp, err := c.Request(context.Background(), "get_job",
		map[string]any{"job_id": "j1"}, "")
	require.NoError(t, err)
	assert.True(t, resp.IsOK())

	var payload struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, resp.DecodeData(&payload))
	assert.Equal(t, "j1", payload.JobID)
}

func TestClient_RequestTimeout(t *testing.T) {
	broker := newStartedBroker(t)
	// 没有消费端，请求必然超时

	c := New(Config{Broker: broker, Timeout: 50 * time.Millisecond, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())
	defer c.Close()

	_, err := c.Request(context.Background(), "get_job", map[string]any{"job_id": "j1"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestClient_ContextCancellation(t *testing.T) {
	broker := newStartedBroker(t)

	c := New(Config{Broker: broker, Timeout: 10 * time.Second, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, "get_job", map[string]any{"job_id": "j1"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestClient_ConcurrentRequestsCorrelateCorrectly(t *testing.T) {
	broker := newStartedBroker(t)
	startEchoConsumer(t, broker)

	c := New(Config{Broker: broker, Timeout: 5 * time.Second, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())
	defer c.Close()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			want := fmt.Sprintf("job-%d", i)
			resp, err := c.Request(context.Background(), "get_job",
				map[string]any{"job_id": want}, "")
			require.NoError(t, err)

			var payload struct {
				JobID string `json:"job_id"`
			}
			require.NoError(t, resp.DecodeData(&payload))
			// 每个调用方拿到的必须是自己那条响应
			assert.Equal(t, want, payload.JobID)
		}(i)
	}
	wg.Wait()
}

func TestClient_UnsolicitedResponseDiscarded(t *testing.T) {
	broker := newStartedBroker(t)

	c := New(Config{Broker: broker, Timeout: time.Second, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())
	defer c.Close()

	// 直接往回复队列塞一条无人等待的响应
	resp := envelope.ErrorResponse("nobody-waits-for-this", "late")
	body, err := envelope.EncodeResponse(resp)
	require.NoError(t, err)

	c.mu.Lock()
	queue := c.replyQueue
	c.mu.Unlock()
	require.NoError(t, broker.Reply(context.Background(), queue, messaging.Publishing{
		Body:          body,
		CorrelationID: resp.CorrelationID,
	}))

	// 处理是异步的；之后客户端应完好无损
	time.Sleep(50 * time.Millisecond)

	_, err = c.Request(context.Background(), "get_job", map[string]any{"job_id": "j1"}, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestClient_PublishFireAndForget(t *testing.T) {
	broker := newStartedBroker(t)

	received := make(chan *messaging.Delivery, 1)
	err := broker.ConsumeRequests(func(ctx context.Context, delivery *messaging.Delivery) {
		received <- delivery
		_ = delivery.Ack()
	})
	require.NoError(t, err)

	// 未 Start 的客户端只能即发即弃
	c := New(Config{Broker: broker, Logger: logging.NewNoopLogger()})
	defer c.Close()

	id, err := c.Publish(context.Background(), "delete_job", map[string]any{"job_id": "j1"}, "tok")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case delivery := <-received:
		req, err := envelope.DecodeRequest(delivery.Body)
		require.NoError(t, err)
		assert.Equal(t, id, req.ID)
		assert.Empty(t, delivery.ReplyTo)
	case <-time.After(time.Second):
		t.Fatal("request not delivered")
	}
}

func TestClient_RequestWithoutStart(t *testing.T) {
	broker := newStartedBroker(t)

	c := New(Config{Broker: broker, Logger: logging.NewNoopLogger()})
	_, err := c.Request(context.Background(), "get_job", nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueue))
}

func TestClient_CloseFailsPendingWaiters(t *testing.T) {
	broker := newStartedBroker(t)

	c := New(Config{Broker: broker, Timeout: 10 * time.Second, Logger: logging.NewNoopLogger()})
	require.NoError(t, c.Start())

	done := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), "get_job", map[string]any{"job_id": "j1"}, "")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeQueue))
	case <-time.After(time.Second):
		t.Fatal("waiter not released on close")
	}
}
