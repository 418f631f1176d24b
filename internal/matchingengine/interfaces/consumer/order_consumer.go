// Package consumer 订单队列消费入口
package consumer

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/application"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

// OrderConsumer 将队列投递转交给 WorkerService。
// 确认语义由 mq.Consume 统一处理：handler 返回后才 ack。
type OrderConsumer struct {
	conn    *mq.Conn
	queue   string
	service *application.WorkerService
	logger  *slog.Logger
}

// NewOrderConsumer 构造函数
func NewOrderConsumer(conn *mq.Conn, queue string, service *application.WorkerService, logger *slog.Logger) *OrderConsumer {
	return &OrderConsumer{
		conn:    conn,
		queue:   queue,
		service: service,
		logger:  logger.With("module", "order_consumer"),
	}
}

// Run 阻塞消费直到 ctx 取消
func (c *OrderConsumer) Run(ctx context.Context) error {
	c.logger.Info("worker is waiting for messages...", "queue", c.queue)
	return c.conn.Consume(ctx, c.queue, "order-worker", func(ctx context.Context, d amqp.Delivery) error {
		if d.MessageId == "" {
			// 无消息 ID 时放弃去重，重复投递可能产生重复撮合
			c.logger.Warn("delivery without message id, dedup disabled for this message")
		}
		return c.service.HandleMessage(ctx, d.MessageId, d.Body)
	})
}
