// Package metrics 提供 Prometheus helper，包含撮合/结算相关的业务指标模板
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/onchainexchange/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// 消费到的订单消息总数
	OrdersConsumed prometheus.Counter
	// 被拒绝（缺字段/不支持类型/重复投递）的订单总数
	OrdersRejected prometheus.Counter
	// 当前驻留在订单簿中的订单数
	OrdersResting prometheus.Gauge
	// 撮合产生的成交总数
	TradesMatched prometheus.Counter
	// 链上结算失败总数
	SettlementFailures prometheus.Counter
	// 已发布的订单簿快照总数
	SnapshotsPublished prometheus.Counter

	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
}

// New 创建指标实例并完成注册
func New(serviceName string) *Metrics {
	m := &Metrics{
		OrdersConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "orders_consumed_total",
			Help:      "Total order messages consumed from the queue",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Total order messages rejected before matching",
		}),
		OrdersResting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "orders_resting",
			Help:      "Orders currently resting in the in-memory book",
		}),
		TradesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "trades_matched_total",
			Help:      "Total trades produced by the matching loop",
		}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "settlement_failures_total",
			Help:      "Total on-chain settlement submissions that failed",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "snapshots_published_total",
			Help:      "Total order book snapshots published",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.OrdersConsumed,
		m.OrdersRejected,
		m.OrdersResting,
		m.TradesMatched,
		m.SettlementFailures,
		m.SnapshotsPublished,
	)

	return m
}

// Serve 在独立端口上暴露指标端点，阻塞运行，应在 goroutine 中调用。
// 通过 Shutdown 关闭后返回 http.ErrServerClosed。
func (m *Metrics) Serve(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	m.mu.Lock()
	m.server = srv
	m.mu.Unlock()

	logger.Get().Info("metrics endpoint listening", "addr", addr, "path", path)
	return srv.ListenAndServe()
}

// Shutdown 优雅关闭指标端点。Serve 未启动时为空操作。
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.server
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
