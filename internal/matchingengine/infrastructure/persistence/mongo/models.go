// Package mongo 订单、成交与幂等记录的 MongoDB 仓储实现
package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

// 集合名称
const (
	ordersCollection            = "orders"
	tradesCollection            = "trades"
	processedMessagesCollection = "processed_messages"
)

// orderDocument orders 集合的持久化映射。
// 数量与价格以字符串存储，避免 BSON 浮点精度损失。
type orderDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Symbol    string             `bson:"symbol"`
	Side      string             `bson:"side"`
	Type      string             `bson:"type"`
	Quantity  string             `bson:"quantity"`
	Price     string             `bson:"price"`
	Address   string             `bson:"address"`
	Signature string             `bson:"signature"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *orderDocument) toDomain() (*domain.Order, error) {
	quantity, err := decimal.NewFromString(d.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", d.Quantity, err)
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", d.Price, err)
	}

	return &domain.Order{
		ID:        d.ID.Hex(),
		Symbol:    d.Symbol,
		Side:      domain.OrderSide(d.Side),
		Type:      domain.OrderType(d.Type),
		Quantity:  quantity,
		Price:     price,
		Address:   d.Address,
		Signature: d.Signature,
		Status:    domain.OrderStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}, nil
}

func fromDomainOrder(o *domain.Order) *orderDocument {
	return &orderDocument{
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Type:      string(o.Type),
		Quantity:  o.Quantity.String(),
		Price:     o.Price.String(),
		Address:   o.Address,
		Signature: o.Signature,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

// tradeDocument trades 集合的持久化映射
type tradeDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	TradeID     string             `bson:"trade_id"`
	Symbol      string             `bson:"symbol"`
	Price       string             `bson:"price"`
	Quantity    string             `bson:"quantity"`
	TxHash      *string            `bson:"tx_hash"`
	BuyAddress  string             `bson:"buy_address"`
	SellAddress string             `bson:"sell_address"`
	Timestamp   time.Time          `bson:"timestamp"`
}

func fromDomainTrade(t *domain.Trade) *tradeDocument {
	doc := &tradeDocument{
		TradeID:     t.TradeID,
		Symbol:      t.Symbol,
		Price:       t.Price.String(),
		Quantity:    t.Quantity.String(),
		BuyAddress:  t.BuyAddress,
		SellAddress: t.SellAddress,
		Timestamp:   t.Timestamp,
	}
	// 结算失败的成交 tx_hash 落库为 null
	if t.TxHash != "" {
		doc.TxHash = &t.TxHash
	}
	return doc
}
