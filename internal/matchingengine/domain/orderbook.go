package domain

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel 同一价格档位下的订单队列，时间优先 (FIFO)
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

func (pl *priceLevel) totalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range pl.orders {
		total = total.Add(o.Quantity)
	}
	return total
}

// priceKeyAsc 卖盘比较器：价格升序
type priceKeyAsc struct{}

func (priceKeyAsc) Compare(lhs, rhs interface{}) int {
	return lhs.(decimal.Decimal).Cmp(rhs.(decimal.Decimal))
}

func (priceKeyAsc) CalcScore(key interface{}) float64 {
	f, _ := key.(decimal.Decimal).Float64()
	return f
}

// priceKeyDesc 买盘比较器：价格降序
type priceKeyDesc struct{}

func (priceKeyDesc) Compare(lhs, rhs interface{}) int {
	return rhs.(decimal.Decimal).Cmp(lhs.(decimal.Decimal))
}

func (priceKeyDesc) CalcScore(key interface{}) float64 {
	f, _ := key.(decimal.Decimal).Float64()
	return -f
}

// OrderBook 单交易对的内存订单簿。无锁，由引擎 Worker 独占访问。
type OrderBook struct {
	Symbol string

	// bids 买盘：价格降序
	bids *skiplist.SkipList
	// asks 卖盘：价格升序
	asks *skiplist.SkipList

	restingCount int
}

// NewOrderBook 创建空订单簿
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   skiplist.New(priceKeyDesc{}),
		asks:   skiplist.New(priceKeyAsc{}),
	}
}

func (b *OrderBook) sideList(side OrderSide) *skiplist.SkipList {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

// Insert 将订单驻留到对应盘口，同价位追加到队尾
func (b *OrderBook) Insert(order *Order) {
	list := b.sideList(order.Side)
	if elem := list.Get(order.Price); elem != nil {
		level := elem.Value.(*priceLevel)
		level.orders = append(level.orders, order)
	} else {
		list.Set(order.Price, &priceLevel{price: order.Price, orders: []*Order{order}})
	}
	b.restingCount++
}

// PeekBest 返回指定盘口的最优挂单，不移除。
// 买盘最优为最高价，卖盘最优为最低价；同价位返回最早到达者。
func (b *OrderBook) PeekBest(side OrderSide) (*Order, bool) {
	front := b.sideList(side).Front()
	if front == nil {
		return nil, false
	}
	level := front.Value.(*priceLevel)
	return level.orders[0], true
}

// PopBest 移除指定盘口的最优挂单。仅应在该挂单数量扣减为零后调用。
func (b *OrderBook) PopBest(side OrderSide) {
	list := b.sideList(side)
	front := list.Front()
	if front == nil {
		return
	}
	level := front.Value.(*priceLevel)
	level.orders = level.orders[1:]
	if len(level.orders) == 0 {
		list.Remove(level.price)
	}
	b.restingCount--
}

// TopN 返回指定盘口前 n 个价格档位的 (价格, 总量) 摘要
func (b *OrderBook) TopN(side OrderSide, n int) []PriceLevelView {
	views := make([]PriceLevelView, 0, n)
	for elem := b.sideList(side).Front(); elem != nil && len(views) < n; elem = elem.Next() {
		level := elem.Value.(*priceLevel)
		views = append(views, PriceLevelView{
			Price:    level.price,
			Quantity: level.totalQuantity(),
		})
	}
	return views
}

// RestingCount 当前驻留订单数
func (b *OrderBook) RestingCount() int {
	return b.restingCount
}
