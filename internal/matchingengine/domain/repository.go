package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderRepository 订单持久化仓储接口
type OrderRepository interface {
	// LoadOpenOrders 返回所有仍可撮合的订单 (open / partially_filled)，
	// 按 created_at 升序，供启动恢复使用。
	LoadOpenOrders(ctx context.Context) ([]*Order, error)
	// SaveRestingOrder 保存撮合后仍有剩余数量的驻留订单，
	// 写入时分配持久化 ID 与 created_at。
	SaveRestingOrder(ctx context.Context, order *Order) error
	// UpdateOrderFill 更新被成交消耗的挂单的剩余数量与状态。
	UpdateOrderFill(ctx context.Context, orderID string, remaining decimal.Decimal, status OrderStatus) error
}

// TradeRepository 成交记录仓储接口
type TradeRepository interface {
	// SaveTrades 批量追加一个交易对的成交记录
	SaveTrades(ctx context.Context, symbol string, trades []*Trade) error
}

// ProcessedMessageRepository 消息幂等仓储接口，按消息 ID 去重
type ProcessedMessageRepository interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// Settler 链上结算能力。实现方构造、签名并提交 settleTrade 交易，
// 返回交易哈希。撮合不依赖结算成功。
type Settler interface {
	SettleTrade(ctx context.Context, symbol, buyerAddr, sellerAddr string, price, quantity decimal.Decimal) (string, error)
}

// SnapshotPublisher 订单簿快照发布接口
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot *OrderBookSnapshot) error
}
