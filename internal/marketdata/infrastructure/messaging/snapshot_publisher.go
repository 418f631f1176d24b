// Package messaging 订单簿快照在行情交换机上的发布实现
package messaging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

// snapshotPayload 快照的线上格式：档位编码为 [price, quantity] 数组
type snapshotPayload struct {
	Symbol string               `json:"symbol"`
	Bids   [][2]decimal.Decimal `json:"bids"`
	Asks   [][2]decimal.Decimal `json:"asks"`
}

// SnapshotPublisher 向行情交换机发布快照。
// 投递为非持久化、fire-and-forget：丢失的快照会被下一次全量快照覆盖。
type SnapshotPublisher struct {
	conn     *mq.Conn
	exchange string
	logger   *slog.Logger
}

// NewSnapshotPublisher 构造函数
func NewSnapshotPublisher(conn *mq.Conn, exchange string, logger *slog.Logger) *SnapshotPublisher {
	return &SnapshotPublisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger.With("module", "snapshot_publisher"),
	}
}

// PublishSnapshot 发布一个交易对的全量 top-N 快照
func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, snapshot *domain.OrderBookSnapshot) error {
	payload := snapshotPayload{
		Symbol: snapshot.Symbol,
		Bids:   encodeLevels(snapshot.Bids),
		Asks:   encodeLevels(snapshot.Asks),
	}

	routingKey := RoutingKey(snapshot.Symbol)
	if err := p.conn.PublishJSON(ctx, p.exchange, routingKey, "", false, payload); err != nil {
		return err
	}

	p.logger.Debug("order book snapshot published", "symbol", snapshot.Symbol, "routing_key", routingKey)
	return nil
}

func encodeLevels(levels []domain.PriceLevelView) [][2]decimal.Decimal {
	encoded := make([][2]decimal.Decimal, 0, len(levels))
	for _, level := range levels {
		encoded = append(encoded, [2]decimal.Decimal{level.Price, level.Quantity})
	}
	return encoded
}

// RoutingKey 返回交易对的快照路由键：小写并去掉斜杠，
// 如 BTC/USDT -> orderbook.btcusdt
func RoutingKey(symbol string) string {
	normalized := strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
	return "orderbook." + normalized
}
