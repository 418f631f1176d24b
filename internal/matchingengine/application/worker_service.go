// Package application 撮合 Worker 的编排层：幂等、校验、撮合、落库与快照发布
package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
	"github.com/wyfcoding/onchainexchange/pkg/logger"
	"github.com/wyfcoding/onchainexchange/pkg/metrics"
)

// SnapshotDepth 快照档位深度
const SnapshotDepth = 10

// WorkerService 处理订单队列投递的每一条消息。
// 错误全部就地消化：任何失败分支都记录日志后正常返回，
// 由消费端统一确认消息，避免毒消息循环。
type WorkerService struct {
	engine        *domain.Engine
	orderRepo     domain.OrderRepository
	tradeRepo     domain.TradeRepository
	processedRepo domain.ProcessedMessageRepository
	publisher     domain.SnapshotPublisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewWorkerService 构造函数
func NewWorkerService(
	engine *domain.Engine,
	orderRepo domain.OrderRepository,
	tradeRepo domain.TradeRepository,
	processedRepo domain.ProcessedMessageRepository,
	publisher domain.SnapshotPublisher,
	m *metrics.Metrics,
	log *slog.Logger,
) *WorkerService {
	return &WorkerService{
		engine:        engine,
		orderRepo:     orderRepo,
		tradeRepo:     tradeRepo,
		processedRepo: processedRepo,
		publisher:     publisher,
		metrics:       m,
		logger:        log.With("module", "worker_service"),
	}
}

// RecoverState 启动时从持久化存储重建内存订单簿。
// 订单按 created_at 升序重放，保证同价位时间优先的确定性。
func (s *WorkerService) RecoverState(ctx context.Context) error {
	s.logger.Info("starting matching engine state recovery...")

	orders, err := s.orderRepo.LoadOpenOrders(ctx)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if !o.Quantity.IsPositive() {
			continue
		}
		s.engine.ReplayOrder(o)
	}

	s.metrics.OrdersResting.Set(float64(s.engine.RestingCount()))
	s.logger.Info("state recovery finished", "replayed_count", len(orders))
	return nil
}

// HandleMessage 处理一条订单消息。messageID 用于幂等去重，
// 为空时跳过去重（仅测试路径）。
func (s *WorkerService) HandleMessage(ctx context.Context, messageID string, body []byte) error {
	defer logger.LogDuration(ctx, "order message processed", "message_id", messageID)()
	s.metrics.OrdersConsumed.Inc()

	if messageID != "" {
		seen, err := s.processedRepo.Seen(ctx, messageID)
		if err != nil {
			s.logger.Error("dedup lookup failed, processing anyway", "message_id", messageID, "error", err)
		} else if seen {
			s.logger.Warn("duplicate delivery dropped", "message_id", messageID)
			s.metrics.OrdersRejected.Inc()
			return nil
		}
	}

	var order domain.Order
	if err := json.Unmarshal(body, &order); err != nil {
		s.logger.Error("malformed order message discarded", "message_id", messageID, "error", err)
		s.metrics.OrdersRejected.Inc()
		return nil
	}

	if !s.validate(&order) {
		s.metrics.OrdersRejected.Inc()
		s.markProcessed(ctx, messageID)
		return nil
	}

	order.Status = domain.StatusOpen

	result, err := s.engine.SubmitOrder(ctx, &order)
	if err != nil {
		s.logger.Error("engine rejected order", "symbol", order.Symbol, "error", err)
		return nil
	}

	s.logger.Info("order processed by engine",
		"symbol", order.Symbol,
		"side", order.Side,
		"trades_count", len(result.Trades),
		"remaining_qty", result.RemainingQuantity.String(),
		"rested", result.Rested,
	)

	s.persistResult(ctx, result)
	s.publishSnapshot(ctx, order.Symbol)
	s.markProcessed(ctx, messageID)
	s.metrics.OrdersResting.Set(float64(s.engine.RestingCount()))

	return nil
}

// validate 校验消息字段与订单类型。不支持的类型记录后丢弃。
func (s *WorkerService) validate(order *domain.Order) bool {
	if order.Symbol == "" {
		s.logger.Error("order is missing a symbol")
		return false
	}

	switch order.Type {
	case domain.TypeLimit:
	case domain.TypeMarket:
		s.logger.Warn("market order processing is not supported, order dropped", "symbol", order.Symbol)
		return false
	default:
		s.logger.Warn("unsupported order type", "type", order.Type, "symbol", order.Symbol)
		return false
	}

	if !order.Quantity.IsPositive() {
		s.logger.Error("order quantity must be positive", "symbol", order.Symbol)
		return false
	}
	if !order.Price.IsPositive() {
		s.logger.Error("limit order price must be positive", "symbol", order.Symbol)
		return false
	}
	return true
}

// persistResult 落库成交、驻留订单与挂单状态变更。
// 持久化失败只记录日志，内存撮合结果不回滚。
func (s *WorkerService) persistResult(ctx context.Context, result *domain.MatchingResult) {
	for _, trade := range result.Trades {
		s.metrics.TradesMatched.Inc()
		if trade.TxHash == "" {
			s.metrics.SettlementFailures.Inc()
		}
	}

	for _, fill := range result.MakerFills {
		if fill.OrderID == "" {
			continue
		}
		if err := s.orderRepo.UpdateOrderFill(ctx, fill.OrderID, fill.Remaining, fill.Status()); err != nil {
			s.logger.Error("failed to update maker order fill",
				"order_id", fill.OrderID, "status", fill.Status(), "error", err)
		}
	}

	if result.Rested {
		if err := s.orderRepo.SaveRestingOrder(ctx, result.Order); err != nil {
			s.logger.Error("failed to persist resting order",
				"symbol", result.Order.Symbol, "error", err)
		}
	}

	if len(result.Trades) > 0 {
		if err := s.tradeRepo.SaveTrades(ctx, result.Order.Symbol, result.Trades); err != nil {
			s.logger.Error("failed to persist trades",
				"symbol", result.Order.Symbol, "count", len(result.Trades), "error", err)
		}
	}
}

func (s *WorkerService) publishSnapshot(ctx context.Context, symbol string) {
	snapshot := s.engine.Snapshot(symbol, SnapshotDepth)
	if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("failed to publish order book snapshot", "symbol", symbol, "error", err)
		return
	}
	s.metrics.SnapshotsPublished.Inc()
}

func (s *WorkerService) markProcessed(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := s.processedRepo.MarkProcessed(ctx, messageID); err != nil {
		s.logger.Error("failed to record processed message", "message_id", messageID, "error", err)
	}
}
