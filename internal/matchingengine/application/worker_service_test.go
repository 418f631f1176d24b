package application

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
	"github.com/wyfcoding/onchainexchange/pkg/metrics"
)

// ----------------------------------------------------------------------------
// 内存 fake：仓储、发布器与结算
// ----------------------------------------------------------------------------

type fakeOrderRepo struct {
	openOrders []*domain.Order
	saved      []*domain.Order
	fills      map[string]domain.OrderStatus
	nextID     int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{fills: make(map[string]domain.OrderStatus)}
}

func (r *fakeOrderRepo) LoadOpenOrders(context.Context) ([]*domain.Order, error) {
	return r.openOrders, nil
}

func (r *fakeOrderRepo) SaveRestingOrder(_ context.Context, order *domain.Order) error {
	r.nextID++
	order.ID = strconv.Itoa(r.nextID)
	r.saved = append(r.saved, order)
	return nil
}

func (r *fakeOrderRepo) UpdateOrderFill(_ context.Context, orderID string, _ decimal.Decimal, status domain.OrderStatus) error {
	r.fills[orderID] = status
	return nil
}

type fakeTradeRepo struct {
	trades []*domain.Trade
}

func (r *fakeTradeRepo) SaveTrades(_ context.Context, _ string, trades []*domain.Trade) error {
	r.trades = append(r.trades, trades...)
	return nil
}

type fakeDedupRepo struct {
	seen map[string]bool
}

func newFakeDedupRepo() *fakeDedupRepo {
	return &fakeDedupRepo{seen: make(map[string]bool)}
}

func (r *fakeDedupRepo) Seen(_ context.Context, messageID string) (bool, error) {
	return r.seen[messageID], nil
}

func (r *fakeDedupRepo) MarkProcessed(_ context.Context, messageID string) error {
	r.seen[messageID] = true
	return nil
}

type fakePublisher struct {
	snapshots []*domain.OrderBookSnapshot
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, snapshot *domain.OrderBookSnapshot) error {
	p.snapshots = append(p.snapshots, snapshot)
	return nil
}

type fakeSettler struct{}

func (fakeSettler) SettleTrade(context.Context, string, string, string, decimal.Decimal, decimal.Decimal) (string, error) {
	return "0xsettled", nil
}

type workerFixture struct {
	service   *WorkerService
	engine    *domain.Engine
	orderRepo *fakeOrderRepo
	tradeRepo *fakeTradeRepo
	dedupRepo *fakeDedupRepo
	publisher *fakePublisher
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := domain.NewEngine(fakeSettler{}, 16, log)
	engine.Start()
	t.Cleanup(engine.Stop)

	f := &workerFixture{
		engine:    engine,
		orderRepo: newFakeOrderRepo(),
		tradeRepo: &fakeTradeRepo{},
		dedupRepo: newFakeDedupRepo(),
		publisher: &fakePublisher{},
	}
	f.service = NewWorkerService(engine, f.orderRepo, f.tradeRepo, f.dedupRepo, f.publisher, metrics.New("test"), log)
	return f
}

func orderMessage(side domain.OrderSide, price, quantity string) []byte {
	return []byte(`{"symbol":"BTC/USDT","side":"` + string(side) +
		`","type":"limit","quantity":"` + quantity + `","price":"` + price + `","address":"0xabc"}`)
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestHandleMessageRestsAndPersistsOrder(t *testing.T) {
	f := newWorkerFixture(t)

	err := f.service.HandleMessage(context.Background(), "msg-1", orderMessage(domain.SideBuy, "100", "2"))
	require.NoError(t, err)

	require.Len(t, f.orderRepo.saved, 1)
	saved := f.orderRepo.saved[0]
	assert.Equal(t, "BTC/USDT", saved.Symbol)
	assert.True(t, saved.Quantity.Equal(decimal.RequireFromString("2")))

	assert.Empty(t, f.tradeRepo.trades)
	require.Len(t, f.publisher.snapshots, 1)
	require.Len(t, f.publisher.snapshots[0].Bids, 1)
	assert.True(t, f.dedupRepo.seen["msg-1"])
}

func TestHandleMessageMatchPersistsTradeAndFill(t *testing.T) {
	f := newWorkerFixture(t)

	require.NoError(t, f.service.HandleMessage(context.Background(), "msg-1", orderMessage(domain.SideSell, "100", "1")))
	require.NoError(t, f.service.HandleMessage(context.Background(), "msg-2", orderMessage(domain.SideBuy, "100", "1")))

	require.Len(t, f.tradeRepo.trades, 1)
	trade := f.tradeRepo.trades[0]
	assert.True(t, trade.Price.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, "0xsettled", trade.TxHash)

	// 挂单方被完全成交，状态落库为 filled
	makerID := f.orderRepo.saved[0].ID
	assert.Equal(t, domain.StatusFilled, f.orderRepo.fills[makerID])

	// 成交后的快照两侧均为空
	last := f.publisher.snapshots[len(f.publisher.snapshots)-1]
	assert.Empty(t, last.Bids)
	assert.Empty(t, last.Asks)
}

func TestHandleMessageDuplicateDropped(t *testing.T) {
	f := newWorkerFixture(t)

	require.NoError(t, f.service.HandleMessage(context.Background(), "msg-1", orderMessage(domain.SideBuy, "100", "1")))
	require.NoError(t, f.service.HandleMessage(context.Background(), "msg-1", orderMessage(domain.SideBuy, "100", "1")))

	// 重复投递不会再次入簿
	assert.Equal(t, 1, f.engine.RestingCount())
	assert.Len(t, f.orderRepo.saved, 1)
	assert.Len(t, f.publisher.snapshots, 1)
}

func TestHandleMessageMalformedDiscarded(t *testing.T) {
	f := newWorkerFixture(t)

	err := f.service.HandleMessage(context.Background(), "msg-1", []byte("not json"))
	require.NoError(t, err)

	assert.Equal(t, 0, f.engine.RestingCount())
	assert.Empty(t, f.orderRepo.saved)
	assert.Empty(t, f.publisher.snapshots)
}

func TestHandleMessageMarketOrderDropped(t *testing.T) {
	f := newWorkerFixture(t)

	body := []byte(`{"symbol":"BTC/USDT","side":"buy","type":"market","quantity":"1","price":"0","address":"0xabc"}`)
	require.NoError(t, f.service.HandleMessage(context.Background(), "msg-1", body))

	assert.Equal(t, 0, f.engine.RestingCount())
	assert.Empty(t, f.orderRepo.saved)
	// 丢弃的消息仍标记为已处理，避免重投
	assert.True(t, f.dedupRepo.seen["msg-1"])
}

func TestHandleMessageRejectsInvalidFields(t *testing.T) {
	f := newWorkerFixture(t)

	cases := map[string][]byte{
		"missing symbol": []byte(`{"side":"buy","type":"limit","quantity":"1","price":"100"}`),
		"zero quantity":  []byte(`{"symbol":"BTC/USDT","side":"buy","type":"limit","quantity":"0","price":"100"}`),
		"negative price": []byte(`{"symbol":"BTC/USDT","side":"buy","type":"limit","quantity":"1","price":"-5"}`),
		"unknown type":   []byte(`{"symbol":"BTC/USDT","side":"buy","type":"stop","quantity":"1","price":"100"}`),
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, f.service.HandleMessage(context.Background(), "", body))
		})
	}
	assert.Equal(t, 0, f.engine.RestingCount())
}

func TestRecoverStateReplaysOpenOrders(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := domain.NewEngine(fakeSettler{}, 16, log)

	orderRepo := newFakeOrderRepo()
	orderRepo.openOrders = []*domain.Order{
		{ID: "a", Symbol: "BTC/USDT", Side: domain.SideSell, Type: domain.TypeLimit,
			Price: decimal.RequireFromString("101"), Quantity: decimal.RequireFromString("1")},
		{ID: "b", Symbol: "BTC/USDT", Side: domain.SideBuy, Type: domain.TypeLimit,
			Price: decimal.RequireFromString("99"), Quantity: decimal.RequireFromString("2")},
		// 数量为零的残留记录跳过
		{ID: "c", Symbol: "BTC/USDT", Side: domain.SideBuy, Type: domain.TypeLimit,
			Price: decimal.RequireFromString("98"), Quantity: decimal.Zero},
	}

	service := NewWorkerService(engine, orderRepo, &fakeTradeRepo{}, newFakeDedupRepo(), &fakePublisher{}, metrics.New("test"), log)
	require.NoError(t, service.RecoverState(context.Background()))

	engine.Start()
	defer engine.Stop()

	assert.Equal(t, 2, engine.RestingCount())
	snapshot := engine.Snapshot("BTC/USDT", 10)
	require.Len(t, snapshot.Bids, 1)
	require.Len(t, snapshot.Asks, 1)
	assert.True(t, snapshot.Bids[0].Price.Equal(decimal.RequireFromString("99")))
	assert.True(t, snapshot.Asks[0].Price.Equal(decimal.RequireFromString("101")))
}
