package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DedupRepository processed_messages 集合仓储，以消息 ID 为 _id 去重
type DedupRepository struct {
	collection *mongo.Collection
}

// NewDedupRepository 构造函数
func NewDedupRepository(db *mongo.Database) *DedupRepository {
	return &DedupRepository{collection: db.Collection(processedMessagesCollection)}
}

type processedDocument struct {
	ID          string    `bson:"_id"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// Seen 查询消息是否已处理
func (r *DedupRepository) Seen(ctx context.Context, messageID string) (bool, error) {
	err := r.collection.FindOne(ctx, bson.M{"_id": messageID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up processed message: %w", err)
	}
	return true, nil
}

// MarkProcessed 记录消息已处理。主键冲突视为已记录，非错误。
func (r *DedupRepository) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := r.collection.InsertOne(ctx, processedDocument{
		ID:          messageID,
		ProcessedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}
