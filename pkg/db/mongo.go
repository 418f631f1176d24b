// Package db 提供 MongoDB 客户端初始化与连接管理
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/wyfcoding/onchainexchange/pkg/logger"
)

// Config MongoDB 配置
type Config struct {
	URL         string
	Database    string
	ConnTimeout int
}

// Mongo 数据库实例包装
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	config   Config
}

// Init 建立连接并 ping 校验可达性
func Init(ctx context.Context, cfg Config) (*Mongo, error) {
	timeout := time.Duration(cfg.ConnTimeout) * time.Second
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Get().Info("mongodb connected", "database", cfg.Database)
	return &Mongo{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

// Database 返回目标数据库句柄
func (m *Mongo) Database() *mongo.Database {
	return m.database
}

// Collection 返回指定集合句柄
func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Close 断开连接
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
