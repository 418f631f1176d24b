package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/application"
	matching "github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
	match_mongo "github.com/wyfcoding/onchainexchange/internal/matchingengine/infrastructure/persistence/mongo"
	"github.com/wyfcoding/onchainexchange/internal/matchingengine/interfaces/consumer"
	md_messaging "github.com/wyfcoding/onchainexchange/internal/marketdata/infrastructure/messaging"
	settle_domain "github.com/wyfcoding/onchainexchange/internal/settlement/domain"
	"github.com/wyfcoding/onchainexchange/internal/settlement/infrastructure/chain"
	"github.com/wyfcoding/onchainexchange/pkg/config"
	"github.com/wyfcoding/onchainexchange/pkg/db"
	"github.com/wyfcoding/onchainexchange/pkg/logger"
	"github.com/wyfcoding/onchainexchange/pkg/metrics"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/orderworker/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
	if err := cfg.ValidateChain(); err != nil {
		panic(fmt.Sprintf("invalid chain config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	log := logger.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Database (MongoDB)
	mongo, err := db.Init(ctx, db.Config{
		URL:         cfg.Mongo.URL,
		Database:    cfg.Mongo.Database,
		ConnTimeout: cfg.Mongo.ConnTimeout,
	})
	if err != nil {
		panic(fmt.Sprintf("connect mongodb failed: %v", err))
	}
	defer mongo.Close(context.Background())

	// 4. Message broker (RabbitMQ)
	conn, err := mq.Dial(mq.Config{
		URL:                cfg.RabbitMQ.URL,
		OrderQueue:         cfg.RabbitMQ.OrderQueue,
		OrdersExchange:     cfg.RabbitMQ.OrdersExchange,
		MarketDataExchange: cfg.RabbitMQ.MarketDataExchange,
	})
	if err != nil {
		panic(fmt.Sprintf("connect rabbitmq failed: %v", err))
	}
	defer conn.Close()
	if err := conn.DeclareTopology(); err != nil {
		panic(fmt.Sprintf("declare topology failed: %v", err))
	}

	// 5. Settlement client
	tokens := make(map[string]settle_domain.Token, len(cfg.Tokens))
	for symbol, t := range cfg.Tokens {
		tokens[symbol] = settle_domain.Token{Address: t.Address, Decimals: t.Decimals}
	}
	settler, err := chain.NewClient(ctx, chain.Config{
		RPCURL:          cfg.Chain.RPCURL,
		ContractAddress: cfg.Chain.ContractAddress,
		PrivateKey:      cfg.Chain.PrivateKey,
		GasLimit:        cfg.Chain.GasLimit,
		SubmitTimeout:   time.Duration(cfg.Chain.SubmitTimeout) * time.Second,
	}, settle_domain.NewTokenRegistry(tokens), log)
	if err != nil {
		panic(fmt.Sprintf("init settlement client failed: %v", err))
	}
	defer settler.Close()

	// 6. Domain engine + infrastructure
	engine := matching.NewEngine(settler, 1024, log)
	orderRepo := match_mongo.NewOrderRepository(mongo.Database(), log)
	tradeRepo := match_mongo.NewTradeRepository(mongo.Database(), log)
	dedupRepo := match_mongo.NewDedupRepository(mongo.Database())
	publisher := md_messaging.NewSnapshotPublisher(conn, cfg.RabbitMQ.MarketDataExchange, log)
	m := metrics.New("orderworker")

	// 7. Application service + state recovery (before the consumer starts)
	service := application.NewWorkerService(engine, orderRepo, tradeRepo, dedupRepo, publisher, m, log)
	if err := service.RecoverState(ctx); err != nil {
		panic(fmt.Sprintf("state recovery failed: %v", err))
	}
	engine.Start()
	defer engine.Stop()

	// 8. Metrics endpoint
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(cfg.Metrics.Port, cfg.Metrics.Path); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server exited", "error", err)
			}
		}()
	}

	// 9. Consumer
	orderConsumer := consumer.NewOrderConsumer(conn, cfg.RabbitMQ.OrderQueue, service, log)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- orderConsumer.Run(ctx)
	}()

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("shutting down worker...")
		cancel()
		<-consumerDone
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
		shutdownCancel()
	case err := <-consumerDone:
		if err != nil && ctx.Err() == nil {
			log.Error("consumer exited unexpectedly", "error", err)
		}
	}
	log.Info("worker exiting")
}
