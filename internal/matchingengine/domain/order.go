// Package domain 撮合引擎的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 订单方向，与消息总线上的 JSON 表示一致
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType 订单类型
type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	StatusOpen            OrderStatus = "open"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// Order 订单实体。Quantity 在撮合过程中被原地扣减，
// 驻留在订单簿中的订单 Quantity 恒为正。
type Order struct {
	ID        string          `json:"id,omitempty"`
	Symbol    string          `json:"symbol"`
	Side      OrderSide       `json:"side"`
	Type      OrderType       `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Address   string          `json:"address"`
	Signature string          `json:"signature"`
	Status    OrderStatus     `json:"status,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`

	// Sequence 引擎在首次入簿时分配的到达序号，同价位按其先后成交。
	// 不持久化，恢复时按 created_at 重新分配。
	Sequence uint64 `json:"-"`
}

// Trade 一次撮合成交。Price 恒为挂单方（maker）价格。
// TxHash 为空表示链上结算失败，成交仍然有效。
type Trade struct {
	TradeID     string          `json:"trade_id"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	TxHash      string          `json:"tx_hash,omitempty"`
	BuyAddress  string          `json:"buy_address,omitempty"`
	SellAddress string          `json:"sell_address,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// PriceLevelView 订单簿档位摘要
type PriceLevelView struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBookSnapshot 订单簿快照，档位按优先级排列，最多 depth 档
type OrderBookSnapshot struct {
	Symbol string           `json:"symbol"`
	Bids   []PriceLevelView `json:"bids"`
	Asks   []PriceLevelView `json:"asks"`
}

// MakerFill 描述一次成交对挂单方的影响，供持久化层更新订单状态
type MakerFill struct {
	OrderID   string
	Remaining decimal.Decimal
}

// Status 成交后挂单方应处的状态
func (f MakerFill) Status() OrderStatus {
	if f.Remaining.IsZero() {
		return StatusFilled
	}
	return StatusPartiallyFilled
}

// MatchingResult 一次 ProcessOrder 的完整结果
type MatchingResult struct {
	// Order 入参订单，Quantity 已扣减为剩余数量
	Order *Order
	// Trades 本次撮合产生的成交，按发生顺序排列
	Trades []*Trade
	// RemainingQuantity 撮合后剩余未成交数量
	RemainingQuantity decimal.Decimal
	// Rested 剩余数量是否已作为挂单驻留
	Rested bool
	// MakerFills 被消耗的挂单及其剩余数量，按发生顺序排列
	MakerFills []MakerFill
}
