// Package http 订单接入的 HTTP 与 WebSocket 接口
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wyfcoding/onchainexchange/internal/intake/application"
	"github.com/wyfcoding/onchainexchange/internal/intake/domain"
	"github.com/wyfcoding/onchainexchange/internal/marketdata/infrastructure/messaging"
	"github.com/wyfcoding/onchainexchange/pkg/mq"
)

// Handler 接入 API 的 gin 处理器
type Handler struct {
	service            *application.IntakeService
	conn               *mq.Conn
	marketDataExchange string
	upgrader           websocket.Upgrader
	logger             *slog.Logger
}

// NewHandler 构造函数。allowedOrigins 为空时允许所有 Origin。
func NewHandler(service *application.IntakeService, conn *mq.Conn, marketDataExchange string, allowedOrigins []string, logger *slog.Logger) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Handler{
		service:            service,
		conn:               conn,
		marketDataExchange: marketDataExchange,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger.With("module", "intake_handler"),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.DELETE("/:id", h.CancelOrder)
	}
	r.GET("/ws/orderbook/:symbol", h.StreamOrderBook)
}

// CreateOrder 接受一笔签名订单并异步处理
func (h *Handler) CreateOrder(c *gin.Context) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SubmitOrder(c.Request.Context(), &req); err != nil {
		h.logger.Warn("order rejected", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"msg": "Order accepted for processing."})
}

// ListOrders 返回订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.service.ListOrders(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// CancelOrder 撤销一笔订单
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	err := h.service.CancelOrder(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, domain.ErrInvalidOrderID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id format: " + orderID})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found: " + orderID})
	case err != nil:
		h.logger.Error("failed to cancel order", "order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel order"})
	default:
		c.JSON(http.StatusOK, gin.H{"msg": "Order " + orderID + " cancelled successfully."})
	}
}

// StreamOrderBook 将行情交换机上的快照转发给 WebSocket 订阅方。
// 每个连接绑定一个排他临时队列，断开即清理。
func (h *Handler) StreamOrderBook(c *gin.Context) {
	symbol := c.Param("symbol")

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade rejected", "symbol", symbol, "origin", c.GetHeader("Origin"), "error", err)
		return
	}
	defer ws.Close()

	routingKey := messaging.RoutingKey(symbol)
	deliveries, cleanup, err := h.conn.SubscribeEphemeral(h.marketDataExchange, routingKey)
	if err != nil {
		h.logger.Error("failed to subscribe market data", "symbol", symbol, "error", err)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"), wsDeadline())
		return
	}
	defer cleanup()

	h.logger.Info("websocket client connected", "symbol", symbol, "routing_key", routingKey)

	// 读泵仅用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Info("websocket client disconnected", "symbol", symbol)
			return
		case <-c.Request.Context().Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, d.Body); err != nil {
				h.logger.Info("websocket write failed, closing", "symbol", symbol, "error", err)
				return
			}
		}
	}
}

func wsDeadline() time.Time {
	return time.Now().Add(5 * time.Second)
}
