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

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

// OrderRepository orders 集合仓储
type OrderRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewOrderRepository 构造函数
func NewOrderRepository(db *mongo.Database, logger *slog.Logger) *OrderRepository {
	return &OrderRepository{
		collection: db.Collection(ordersCollection),
		logger:     logger.With("module", "order_repository"),
	}
}

// LoadOpenOrders 返回所有仍可撮合的订单，按 created_at 升序。
// 排序保证恢复重放时同价位的到达序号是确定的。
func (r *OrderRepository) LoadOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{
		string(domain.StatusOpen),
		string(domain.StatusPartiallyFilled),
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order document: %w", err)
		}
		order, err := doc.toDomain()
		if err != nil {
			// 脏数据跳过，不阻塞恢复
			r.logger.Error("skipping undecodable order", "order_id", doc.ID.Hex(), "error", err)
			continue
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error while loading open orders: %w", err)
	}

	return orders, nil
}

// SaveRestingOrder 保存驻留订单，分配持久化 ID 与 created_at
func (r *OrderRepository) SaveRestingOrder(ctx context.Context, order *domain.Order) error {
	order.CreatedAt = time.Now().UTC()
	if order.Status == "" {
		order.Status = domain.StatusOpen
	}

	result, err := r.collection.InsertOne(ctx, fromDomainOrder(order))
	if err != nil {
		return fmt.Errorf("failed to insert resting order: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid.Hex()
	}

	r.logger.Info("resting order saved", "order_id", order.ID, "symbol", order.Symbol)
	return nil
}

// UpdateOrderFill 更新挂单剩余数量与状态
func (r *OrderRepository) UpdateOrderFill(ctx context.Context, orderID string, remaining decimal.Decimal, status domain.OrderStatus) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}

	update := bson.M{"$set": bson.M{
		"quantity": remaining.String(),
		"status":   string(status),
	}}
	if _, err := r.collection.UpdateByID(ctx, oid, update); err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return nil
}
