package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// MatchingEngine：单 Worker 撮合核心
// ----------------------------------------------------------------------------

// matchTask 定序队列中的任务单元
type matchTask struct {
	ctx        context.Context
	order      *Order
	resultChan chan *MatchingResult
}

// Engine 价格-时间优先撮合引擎。所有订单簿由唯一的 Worker goroutine
// 独占访问，结算提交在撮合循环内同步发生，因此同一引擎实例内
// nonce 天然单调。
type Engine struct {
	books    map[string]*OrderBook
	settler  Settler
	tasks    chan *matchTask
	stopChan chan struct{}
	doneChan chan struct{}
	seq      uint64
	tradeSeq uint64
	halted   atomic.Bool
	logger   *slog.Logger
}

// NewEngine 创建引擎，capacity 为任务队列容量
func NewEngine(settler Settler, capacity int, logger *slog.Logger) *Engine {
	return &Engine{
		books:    make(map[string]*OrderBook),
		settler:  settler,
		tasks:    make(chan *matchTask, capacity),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		logger:   logger.With("module", "matching_engine"),
	}
}

// Start 启动核心撮合 Worker (单 goroutine)
func (e *Engine) Start() {
	go e.run()
}

// Stop 停止 Worker 并等待退出
func (e *Engine) Stop() {
	close(e.stopChan)
	<-e.doneChan
}

func (e *Engine) run() {
	defer close(e.doneChan)
	for {
		select {
		case <-e.stopChan:
			return
		case task := <-e.tasks:
			task.resultChan <- e.applyOrder(task.ctx, task.order)
		}
	}
}

// SubmitOrder 提交限价单进行撮合，同步等待结果
func (e *Engine) SubmitOrder(ctx context.Context, order *Order) (*MatchingResult, error) {
	resChan := make(chan *MatchingResult, 1)
	task := &matchTask{ctx: ctx, order: order, resultChan: resChan}

	select {
	case e.tasks <- task:
	case <-e.stopChan:
		return nil, fmt.Errorf("engine stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resChan:
		return result, nil
	case <-e.stopChan:
		return nil, fmt.Errorf("engine stopped")
	}
}

// ReplayOrder 恢复阶段直接将持久化订单插入订单簿。
// 仅允许在 Start 之前调用，到达序号按调用顺序分配。
func (e *Engine) ReplayOrder(order *Order) {
	e.seq++
	order.Sequence = e.seq
	e.book(order.Symbol).Insert(order)
}

// Snapshot 获取指定交易对的订单簿快照，最多 depth 档
func (e *Engine) Snapshot(symbol string, depth int) *OrderBookSnapshot {
	book := e.book(symbol)
	return &OrderBookSnapshot{
		Symbol: symbol,
		Bids:   book.TopN(SideBuy, depth),
		Asks:   book.TopN(SideSell, depth),
	}
}

// RestingCount 全部订单簿中驻留订单总数
func (e *Engine) RestingCount() int {
	total := 0
	for _, b := range e.books {
		total += b.RestingCount()
	}
	return total
}

func (e *Engine) book(symbol string) *OrderBook {
	b, ok := e.books[symbol]
	if !ok {
		b = NewOrderBook(symbol)
		e.books[symbol] = b
	}
	return b
}

// applyOrder 核心撮合逻辑，Worker goroutine 内执行
func (e *Engine) applyOrder(ctx context.Context, order *Order) *MatchingResult {
	result := &MatchingResult{
		Order:             order,
		RemainingQuantity: order.Quantity,
	}

	if e.halted.Load() {
		e.logger.Error("engine halted, order dropped", "symbol", order.Symbol)
		return result
	}

	book := e.book(order.Symbol)
	if order.Side == SideBuy {
		e.matchAgainst(ctx, book, order, SideSell, result)
	} else {
		e.matchAgainst(ctx, book, order, SideBuy, result)
	}

	if result.RemainingQuantity.IsPositive() {
		order.Quantity = result.RemainingQuantity
		e.seq++
		order.Sequence = e.seq
		book.Insert(order)
		result.Rested = true
	} else {
		order.Quantity = decimal.Zero
	}

	return result
}

// matchAgainst 消耗对手盘。成交价恒为挂单方价格；同价位按到达顺序消耗。
func (e *Engine) matchAgainst(ctx context.Context, book *OrderBook, order *Order, opponent OrderSide, result *MatchingResult) {
	for result.RemainingQuantity.IsPositive() {
		maker, ok := book.PeekBest(opponent)
		if !ok {
			return
		}

		// 价格不再交叉即停止
		if opponent == SideSell {
			if order.Price.LessThan(maker.Price) {
				return
			}
		} else {
			if order.Price.GreaterThan(maker.Price) {
				return
			}
		}

		fill := decimal.Min(result.RemainingQuantity, maker.Quantity)

		var buyerAddr, sellerAddr string
		if order.Side == SideBuy {
			buyerAddr, sellerAddr = order.Address, maker.Address
		} else {
			buyerAddr, sellerAddr = maker.Address, order.Address
		}

		trade := &Trade{
			TradeID:     e.nextTradeID(),
			Symbol:      order.Symbol,
			Price:       maker.Price,
			Quantity:    fill,
			BuyAddress:  buyerAddr,
			SellAddress: sellerAddr,
			Timestamp:   time.Now().UTC(),
		}

		txHash, err := e.settler.SettleTrade(ctx, order.Symbol, buyerAddr, sellerAddr, maker.Price, fill)
		if err != nil {
			// 结算失败不回滚撮合，成交以空 tx_hash 落库
			e.logger.Error("on-chain settlement failed",
				"symbol", order.Symbol, "price", maker.Price.String(), "quantity", fill.String(), "error", err)
		} else {
			trade.TxHash = txHash
		}

		result.Trades = append(result.Trades, trade)
		result.RemainingQuantity = result.RemainingQuantity.Sub(fill)
		maker.Quantity = maker.Quantity.Sub(fill)

		result.MakerFills = append(result.MakerFills, MakerFill{
			OrderID:   maker.ID,
			Remaining: maker.Quantity,
		})

		if maker.Quantity.IsZero() {
			book.PopBest(opponent)
		}
	}
}

// Halt 熔断引擎：内存状态与持久化状态出现分歧时停止接收订单
func (e *Engine) Halt() {
	e.halted.Store(true)
}

func (e *Engine) nextTradeID() string {
	e.tradeSeq++
	return fmt.Sprintf("T-%d-%d", time.Now().UnixNano(), e.tradeSeq)
}
