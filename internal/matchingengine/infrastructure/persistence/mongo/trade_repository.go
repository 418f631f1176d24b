package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

// TradeRepository trades 集合仓储
type TradeRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewTradeRepository 构造函数
func NewTradeRepository(db *mongo.Database, logger *slog.Logger) *TradeRepository {
	return &TradeRepository{
		collection: db.Collection(tradesCollection),
		logger:     logger.With("module", "trade_repository"),
	}
}

// SaveTrades 批量追加成交记录
func (r *TradeRepository) SaveTrades(ctx context.Context, symbol string, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(trades))
	for _, t := range trades {
		docs = append(docs, fromDomainTrade(t))
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert trades: %w", err)
	}

	r.logger.Info("trades saved", "symbol", symbol, "count", len(trades))
	return nil
}
