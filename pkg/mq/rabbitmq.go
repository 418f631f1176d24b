// Package mq 提供 RabbitMQ 连接、拓扑声明与发布/消费通用实现
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wyfcoding/onchainexchange/pkg/logger"
)

// Config RabbitMQ 配置
type Config struct {
	URL                string
	OrderQueue         string
	OrdersExchange     string
	MarketDataExchange string
}

// Conn RabbitMQ 连接包装，持有一个复用的 channel
type Conn struct {
	config  Config
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial 建立连接并打开 channel
func Dial(cfg Config) (*Conn, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Get().Info("rabbitmq connected", "url_set", cfg.URL != "")
	return &Conn{config: cfg, conn: conn, channel: ch}, nil
}

// DeclareTopology 声明交换机与队列并完成绑定。
// 幂等：重复声明同名同参实体是安全的。
func (c *Conn) DeclareTopology() error {
	if err := c.channel.ExchangeDeclare(
		c.config.OrdersExchange, "topic", true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("failed to declare orders exchange: %w", err)
	}

	if err := c.channel.ExchangeDeclare(
		c.config.MarketDataExchange, "topic", true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("failed to declare market data exchange: %w", err)
	}

	if _, err := c.channel.QueueDeclare(
		c.config.OrderQueue, true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("failed to declare order queue: %w", err)
	}

	if err := c.channel.QueueBind(
		c.config.OrderQueue, "order.new", c.config.OrdersExchange, false, nil,
	); err != nil {
		return fmt.Errorf("failed to bind order queue: %w", err)
	}

	return nil
}

// PublishJSON 序列化并发布一条消息
func (c *Conn) PublishJSON(ctx context.Context, exchange, routingKey, messageID string, persistent bool, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	err = c.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		MessageId:    messageID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
	}

	logger.Get().Debug("message published", "exchange", exchange, "routing_key", routingKey)
	return nil
}

// HandlerFunc 单条消息处理函数。返回错误表示处理失败，但消息仍会被确认，
// 错误处理策略由 handler 内部决定（记录日志、丢弃等）。
type HandlerFunc func(ctx context.Context, d amqp.Delivery) error

// Consume 以 prefetch=1 逐条消费队列。handler 返回后才确认消息，
// 保证消费中途崩溃的消息会被重新投递。ctx 取消后返回。
func (c *Conn) Consume(ctx context.Context, queue, consumerTag string, handler HandlerFunc) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := c.channel.ConsumeWithContext(ctx, queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	log := logger.Get().With("module", "mq_consumer", "queue", queue)
	log.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", queue)
			}
			if err := handler(ctx, d); err != nil {
				log.Error("message handler failed", "message_id", d.MessageId, "error", err)
			}
			if err := d.Ack(false); err != nil {
				log.Error("failed to ack message", "message_id", d.MessageId, "error", err)
			}
		}
	}
}

// SubscribeEphemeral 声明一个排他临时队列并绑定到指定交换机，
// 供行情订阅方使用。返回投递通道与清理函数。
func (c *Conn) SubscribeEphemeral(exchange, routingKey string) (<-chan amqp.Delivery, func(), error) {
	// 每个订阅方使用独立 channel，排他队列随 channel 关闭自动删除
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open subscriber channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to declare ephemeral queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to bind ephemeral queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to consume ephemeral queue: %w", err)
	}

	return deliveries, func() { ch.Close() }, nil
}

// Close 关闭 channel 与连接
func (c *Conn) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
