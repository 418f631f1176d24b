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

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/onchainexchange/internal/intake/application"
	intake_mongo "github.com/wyfcoding/onchainexchange/internal/intake/infrastructure/persistence/mongo"
	intake_http "github.com/wyfcoding/onchainexchange/internal/intake/interfaces/http"
	"github.com/wyfcoding/onchainexchange/pkg/config"
	"github.com/wyfcoding/onchainexchange/pkg/db"
	"github.com/wyfcoding/onchainexchange/pkg/logger"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/intakeapi/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
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

	ctx := context.Background()

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

	// 5. Application + interfaces
	orderRepo := intake_mongo.NewOrderRepository(mongo.Database(), log)
	service := application.NewIntakeService(conn, cfg.RabbitMQ.OrdersExchange, orderRepo, log)
	handler := intake_http.NewHandler(service, conn, cfg.RabbitMQ.MarketDataExchange, cfg.HTTP.AllowedOrigins, log)

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 6. Start
	go func() {
		log.Info("intake api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	log.Info("server exiting")
}
