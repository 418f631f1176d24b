// Package application 订单接入的编排层：验签、入队与订单管理
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wyfcoding/onchainexchange/internal/intake/domain"
	matching "github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

// Publisher 订单消息发布能力，由 mq.Conn 满足
type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey, messageID string, persistent bool, value any) error
}

// IntakeService 接收签名订单并投递到订单交换机
type IntakeService struct {
	publisher      Publisher
	ordersExchange string
	orders         domain.OrderReader
	logger         *slog.Logger
}

// NewIntakeService 构造函数
func NewIntakeService(publisher Publisher, ordersExchange string, orders domain.OrderReader, logger *slog.Logger) *IntakeService {
	return &IntakeService{
		publisher:      publisher,
		ordersExchange: ordersExchange,
		orders:         orders,
		logger:         logger.With("module", "intake_service"),
	}
}

var _ Publisher = (*mq.Conn)(nil)

// SubmitOrder 校验、验签并将订单持久化投递到 order.new。
// 每条消息携带新生成的消息 ID，供 Worker 幂等去重。
func (s *IntakeService) SubmitOrder(ctx context.Context, req *domain.OrderRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := req.VerifySignature(); err != nil {
		s.logger.Warn("order signature rejected", "address", req.Address, "error", err)
		return err
	}

	messageID := uuid.NewString()
	if err := s.publisher.PublishJSON(ctx, s.ordersExchange, "order.new", messageID, true, req); err != nil {
		return fmt.Errorf("failed to publish order message: %w", err)
	}

	s.logger.Info("order accepted for processing",
		"message_id", messageID, "symbol", req.Symbol, "side", req.Side)
	return nil
}

// ListOrders 返回最近的订单，最多 100 条
func (s *IntakeService) ListOrders(ctx context.Context) ([]*matching.Order, error) {
	return s.orders.ListOrders(ctx, 100)
}

// CancelOrder 从持久化存储删除订单。
// 驻留在内存订单簿中的副本要到进程重启才会消失。
func (s *IntakeService) CancelOrder(ctx context.Context, orderID string) error {
	return s.orders.CancelOrder(ctx, orderID)
}
