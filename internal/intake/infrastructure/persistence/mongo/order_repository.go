// Package mongo 接入侧订单查询与撤单的 MongoDB 实现
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	intake "github.com/wyfcoding/onchainexchange/internal/intake/domain"
	matching "github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

const ordersCollection = "orders"

// OrderRepository orders 集合的接入侧仓储
type OrderRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewOrderRepository 构造函数
func NewOrderRepository(db *mongo.Database, logger *slog.Logger) *OrderRepository {
	return &OrderRepository{
		collection: db.Collection(ordersCollection),
		logger:     logger.With("module", "intake_order_repository"),
	}
}

type orderDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Symbol    string             `bson:"symbol"`
	Side      string             `bson:"side"`
	Type      string             `bson:"type"`
	Quantity  string             `bson:"quantity"`
	Price     string             `bson:"price"`
	Address   string             `bson:"address"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *orderDocument) toDomain() (*matching.Order, error) {
	quantity, err := decimal.NewFromString(d.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", d.Quantity, err)
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", d.Price, err)
	}

	return &matching.Order{
		ID:        d.ID.Hex(),
		Symbol:    d.Symbol,
		Side:      matching.OrderSide(d.Side),
		Type:      matching.OrderType(d.Type),
		Quantity:  quantity,
		Price:     price,
		Address:   d.Address,
		Status:    matching.OrderStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}, nil
}

// ListOrders 返回最多 limit 条订单
func (r *OrderRepository) ListOrders(ctx context.Context, limit int64) ([]*matching.Order, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*matching.Order
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order document: %w", err)
		}
		order, err := doc.toDomain()
		if err != nil {
			// 脏数据跳过，不污染响应
			r.logger.Error("skipping undecodable order", "order_id", doc.ID.Hex(), "error", err)
			continue
		}
		orders = append(orders, order)
	}
	return orders, cursor.Err()
}

// CancelOrder 删除指定订单
func (r *OrderRepository) CancelOrder(ctx context.Context, orderID string) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return intake.ErrInvalidOrderID
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}
	if result.DeletedCount == 0 {
		return intake.ErrOrderNotFound
	}
	return nil
}
