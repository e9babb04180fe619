package orderbook

// OrderBook is the per-symbol price-level index. Bids match from the
// highest price, asks from the lowest; each level is a FIFO, so the book
// as a whole enforces price-time priority. Two id lookup tables make
// RemoveOrder O(log P) in the number of levels plus an O(1) unlink.
//
// The book does not own orders. Callers must not destroy an order that is
// still registered here.
type OrderBook struct {
	symbol string

	bids *levelTree
	asks *levelTree

	bidOrders map[uint64]*Order
	askOrders map[uint64]*Order
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:    symbol,
		bids:      newLevelTree(),
		asks:      newLevelTree(),
		bidOrders: make(map[uint64]*Order),
		askOrders: make(map[uint64]*Order),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// AddOrder rests a limit order at its price level. The caller guarantees
// RemainingQty > 0; market orders never rest.
func (b *OrderBook) AddOrder(o *Order) {
	if o.Side == Buy {
		b.bids.GetOrCreate(o.Price).enqueue(o)
		b.bidOrders[o.ID] = o
	} else {
		b.asks.GetOrCreate(o.Price).enqueue(o)
		b.askOrders[o.ID] = o
	}
}

// RemoveOrder unlinks an order from its level and drops the level once
// empty. Reports whether the order was resting here.
func (b *OrderBook) RemoveOrder(id uint64) bool {
	if o, ok := b.bidOrders[id]; ok {
		b.removeFromLevel(b.bids, o)
		delete(b.bidOrders, id)
		return true
	}
	if o, ok := b.askOrders[id]; ok {
		b.removeFromLevel(b.asks, o)
		delete(b.askOrders, id)
		return true
	}
	return false
}

func (b *OrderBook) removeFromLevel(tree *levelTree, o *Order) {
	lvl := tree.Find(o.Price)
	if lvl == nil {
		return
	}
	lvl.unlink(o)
	if lvl.Empty() {
		tree.Delete(o.Price)
	}
}

// UpdateOrderQty sets a resting order's remaining quantity from the match
// loop. At zero the order is marked FILLED and removed; otherwise PARTIAL.
func (b *OrderBook) UpdateOrderQty(id uint64, newRemaining int64) {
	o := b.restingOrder(id)
	if o == nil {
		return
	}
	if lvl := b.levelFor(o); lvl != nil {
		lvl.TotalQty -= o.RemainingQty - newRemaining
	}
	o.RemainingQty = newRemaining
	if newRemaining == 0 {
		o.Status = StatusFilled
		b.RemoveOrder(id)
	} else {
		o.Status = StatusPartial
	}
}

func (b *OrderBook) restingOrder(id uint64) *Order {
	if o, ok := b.bidOrders[id]; ok {
		return o
	}
	if o, ok := b.askOrders[id]; ok {
		return o
	}
	return nil
}

func (b *OrderBook) levelFor(o *Order) *PriceLevel {
	if o.Side == Buy {
		return b.bids.Find(o.Price)
	}
	return b.asks.Find(o.Price)
}

func (b *OrderBook) BestBidPrice() (int64, bool) {
	lvl := b.bids.Max()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

func (b *OrderBook) BestAskPrice() (int64, bool) {
	lvl := b.asks.Min()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// PeekBestBid returns the head of the best bid level, or nil.
func (b *OrderBook) PeekBestBid() *Order {
	lvl := b.bids.Max()
	if lvl == nil {
		return nil
	}
	return lvl.Head()
}

// PeekBestAsk returns the head of the best ask level, or nil.
func (b *OrderBook) PeekBestAsk() *Order {
	lvl := b.asks.Min()
	if lvl == nil {
		return nil
	}
	return lvl.Head()
}

// BidsAtBest returns the best bid level's queue in priority order.
func (b *OrderBook) BidsAtBest() []*Order {
	lvl := b.bids.Max()
	if lvl == nil {
		return nil
	}
	return lvl.Orders()
}

// AsksAtBest returns the best ask level's queue in priority order.
func (b *OrderBook) AsksAtBest() []*Order {
	lvl := b.asks.Min()
	if lvl == nil {
		return nil
	}
	return lvl.Orders()
}

// BidLevels aggregates up to depth bid levels, best first.
func (b *OrderBook) BidLevels(depth int) []BookLevel {
	out := make([]BookLevel, 0, depth)
	b.bids.Descend(func(lvl *PriceLevel) bool {
		if len(out) >= depth {
			return false
		}
		out = append(out, BookLevel{
			Price:      lvl.Price,
			Quantity:   lvl.TotalQty,
			OrderCount: lvl.OrderCount,
		})
		return true
	})
	return out
}

// AskLevels aggregates up to depth ask levels, best first.
func (b *OrderBook) AskLevels(depth int) []BookLevel {
	out := make([]BookLevel, 0, depth)
	b.asks.Ascend(func(lvl *PriceLevel) bool {
		if len(out) >= depth {
			return false
		}
		out = append(out, BookLevel{
			Price:      lvl.Price,
			Quantity:   lvl.TotalQty,
			OrderCount: lvl.OrderCount,
		})
		return true
	})
	return out
}

// IsCrossed reports best_bid >= best_ask. A well-behaved book is never
// crossed after a public operation returns.
func (b *OrderBook) IsCrossed() bool {
	bid, okB := b.BestBidPrice()
	ask, okA := b.BestAskPrice()
	return okB && okA && bid >= ask
}

func (b *OrderBook) BidCount() int { return len(b.bidOrders) }
func (b *OrderBook) AskCount() int { return len(b.askOrders) }
