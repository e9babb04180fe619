package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hermes/domain/orderbook"
	"hermes/domain/risk"
	"hermes/infra/outbox"
	"hermes/infra/wal"
	"hermes/snapshot"
)

// OrderService is the matching engine core and the only write entry point.
// It owns the order registry, the per-symbol books, the trade history, the
// idempotency set and the id counters, and drives the event log, the
// snapshot store and the optional outbox.
//
// All state mutation happens on one goroutine; the driver loop calls in
// synchronously. Re-entrant or concurrent calls are a programming error.
type OrderService struct {
	instanceID uuid.UUID

	books           map[string]*orderbook.OrderBook
	orders          map[uint64]*orderbook.Order
	trades          []orderbook.Trade
	idempotencyKeys map[string]struct{}

	nextOrderID uint64
	nextTradeID uint64

	risk      *risk.Checker
	wal       *wal.WAL
	snapshots *snapshot.Store
	outbox    *outbox.Outbox // optional, may be nil

	stats EngineStats
	log   *zap.Logger
}

// EngineStats are lifetime counters for this engine instance. They are not
// reconstructed by replay; only event_sequence survives recovery.
type EngineStats struct {
	TotalOrders   uint64 `json:"total_orders"`
	TotalTrades   uint64 `json:"total_trades"`
	TotalCancels  uint64 `json:"total_cancels"`
	TotalRejects  uint64 `json:"total_rejects"`
	EventSequence uint64 `json:"event_sequence"`
}

type PlaceOrderResult struct {
	Success bool
	Code    orderbook.ErrorCode
	Order   orderbook.Order
	Trades  []orderbook.Trade
}

type CancelOrderResult struct {
	Success bool
	Code    orderbook.ErrorCode
	Order   orderbook.Order
}

// NewOrderService wires all dependencies. The outbox may be nil when
// downstream publication is disabled.
func NewOrderService(
	checker *risk.Checker,
	w *wal.WAL,
	snapshots *snapshot.Store,
	ob *outbox.Outbox,
	log *zap.Logger,
) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		instanceID:      uuid.New(),
		books:           make(map[string]*orderbook.OrderBook),
		orders:          make(map[uint64]*orderbook.Order),
		idempotencyKeys: make(map[string]struct{}),
		nextOrderID:     1,
		nextTradeID:     1,
		risk:            checker,
		wal:             w,
		snapshots:       snapshots,
		outbox:          ob,
		log:             log,
	}
}

func (s *OrderService) InstanceID() string {
	return s.instanceID.String()
}

// PlaceOrder validates, logs, matches and finally rests or rejects one
// incoming order. The returned order is a snapshot of its state at return.
func (s *OrderService) PlaceOrder(o orderbook.Order) PlaceOrderResult {
	r := PlaceOrderResult{Trades: []orderbook.Trade{}}

	if o.IdempotencyKey != "" {
		if _, seen := s.idempotencyKeys[o.IdempotencyKey]; seen {
			r.Code = orderbook.CodeDuplicateIdempotencyKey
			o.Status = orderbook.StatusRejected
			r.Order = o // id stays 0: rejected before assignment
			s.stats.TotalRejects++
			return r
		}
	}

	if res := s.risk.Check(&o); !res.Passed {
		r.Code = res.Code
		o.Status = orderbook.StatusRejected
		r.Order = o
		s.stats.TotalRejects++
		return r
	}

	o.ID = s.nextOrderID
	s.nextOrderID++
	o.TimestampNs = nowNs()
	o.RemainingQty = o.Quantity
	o.Status = orderbook.StatusNew

	if o.IdempotencyKey != "" {
		s.idempotencyKeys[o.IdempotencyKey] = struct{}{}
	}

	ord := &o
	s.orders[ord.ID] = ord

	s.logEvent(wal.EventOrderPlaced, ord)
	s.stats.TotalOrders++

	r.Trades = s.match(ord)

	switch {
	case ord.RemainingQty == 0:
		ord.Status = orderbook.StatusFilled

	case ord.Type == orderbook.Market:
		if ord.RemainingQty == ord.Quantity {
			// Nothing crossed: market orders never rest.
			ord.Status = orderbook.StatusRejected
			r.Code = orderbook.CodeNoLiquidity
			s.stats.TotalRejects++
			r.Order = *ord
			return r
		}
		ord.Status = orderbook.StatusPartial

	default: // resting limit
		book := s.getOrCreateBook(ord.Symbol)

		// Resting may only cross the book when self-trade prevention
		// stopped the match against an own order at the crossing price.
		wouldCross := false
		if ord.Side == orderbook.Buy {
			if ask, ok := book.BestAskPrice(); ok && ord.Price >= ask {
				wouldCross = true
			}
		} else {
			if bid, ok := book.BestBidPrice(); ok && ord.Price <= bid {
				wouldCross = true
			}
		}
		if wouldCross {
			ord.Status = orderbook.StatusRejected
			r.Code = orderbook.CodeSelfTradePrevented
			s.stats.TotalRejects++
			r.Order = *ord
			return r
		}

		book.AddOrder(ord)
		if ord.RemainingQty < ord.Quantity {
			ord.Status = orderbook.StatusPartial
		}
	}

	r.Success = true
	r.Order = *ord
	return r
}

// match runs the incoming order against the opposite side of its book.
// Trades execute at the resting price in strict price-then-time order.
func (s *OrderService) match(incoming *orderbook.Order) []orderbook.Trade {
	trades := []orderbook.Trade{}
	book := s.getOrCreateBook(incoming.Symbol)

	for incoming.RemainingQty > 0 {
		var best *orderbook.Order
		if incoming.Side == orderbook.Buy {
			best = book.PeekBestAsk()
		} else {
			best = book.PeekBestBid()
		}
		if best == nil {
			break
		}

		if incoming.Type == orderbook.Limit {
			if incoming.Side == orderbook.Buy && best.Price > incoming.Price {
				break
			}
			if incoming.Side == orderbook.Sell && best.Price < incoming.Price {
				break
			}
		}

		// Self-trade prevention stops the whole match; the caller decides
		// whether the aggressor rests, completes or is rejected.
		if incoming.AccountID == best.AccountID {
			break
		}

		qty := min(incoming.RemainingQty, best.RemainingQty)

		t := orderbook.Trade{
			ID:          s.nextTradeID,
			Symbol:      incoming.Symbol,
			Price:       best.Price,
			Quantity:    qty,
			TimestampNs: nowNs(),
		}
		s.nextTradeID++

		if incoming.Side == orderbook.Buy {
			t.BuyOrderID = incoming.ID
			t.SellOrderID = best.ID
			t.BuyerAccountID = incoming.AccountID
			t.SellerAccountID = best.AccountID
		} else {
			t.BuyOrderID = best.ID
			t.SellOrderID = incoming.ID
			t.BuyerAccountID = best.AccountID
			t.SellerAccountID = incoming.AccountID
		}

		trades = append(trades, t)
		s.trades = append(s.trades, t)
		s.logEvent(wal.EventTradeExecuted, t)
		s.stats.TotalTrades++

		incoming.RemainingQty -= qty
		book.UpdateOrderQty(best.ID, best.RemainingQty-qty)
	}

	return trades
}

// CancelOrder removes a live order from its book and marks it CANCELLED.
// Terminal and unknown orders both report ORDER_NOT_FOUND; for terminal
// orders the result still carries the order snapshot.
func (s *OrderService) CancelOrder(orderID uint64) CancelOrderResult {
	r := CancelOrderResult{Code: orderbook.CodeOrderNotFound}

	ord, ok := s.orders[orderID]
	if !ok {
		return r
	}
	if !ord.IsActive() {
		r.Order = *ord
		return r
	}

	if book, ok := s.books[ord.Symbol]; ok {
		book.RemoveOrder(orderID)
	}
	ord.Status = orderbook.StatusCancelled

	s.logEvent(wal.EventOrderCancelled, cancelPayload{OrderID: orderID})
	s.stats.TotalCancels++

	r.Success = true
	r.Code = orderbook.CodeNone
	r.Order = *ord
	return r
}

type cancelPayload struct {
	OrderID uint64 `json:"order_id"`
}

func (s *OrderService) GetOrder(orderID uint64) (orderbook.Order, bool) {
	ord, ok := s.orders[orderID]
	if !ok {
		return orderbook.Order{}, false
	}
	return *ord, true
}

// GetBook returns a non-owning view of the symbol's book, or nil.
func (s *OrderService) GetBook(symbol string) *orderbook.OrderBook {
	return s.books[symbol]
}

// GetTrades returns up to limit most recent trades for the symbol, oldest
// first. It walks newest-first to bound work, then reverses.
func (s *OrderService) GetTrades(symbol string, limit int) []orderbook.Trade {
	out := []orderbook.Trade{}
	if limit <= 0 {
		return out
	}

	for i := len(s.trades) - 1; i >= 0 && len(out) < limit; i-- {
		if s.trades[i].Symbol == symbol {
			out = append(out, s.trades[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *OrderService) GetStats() EngineStats {
	st := s.stats
	st.EventSequence = s.wal.CurrentSequence()
	return st
}

func (s *OrderService) getOrCreateBook(symbol string) *orderbook.OrderBook {
	book, ok := s.books[symbol]
	if !ok {
		book = orderbook.NewOrderBook(symbol)
		s.books[symbol] = book
	}
	return book
}

func (s *OrderService) logEvent(typ wal.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("event payload marshal failed", zap.Error(err))
		return
	}

	e := wal.Event{
		Sequence:    s.wal.NextSequence(),
		TimestampNs: nowNs(),
		Type:        typ,
		Payload:     data,
	}
	if err := s.wal.Append(e); err != nil {
		s.log.Warn("event append failed", zap.Uint64("sequence", e.Sequence), zap.Error(err))
	}

	if s.outbox != nil {
		raw, err := json.Marshal(e)
		if err == nil {
			if err := s.outbox.Put(e.Sequence, raw); err != nil {
				s.log.Warn("outbox stage failed", zap.Uint64("sequence", e.Sequence), zap.Error(err))
			}
		}
	}
}

func nowNs() uint64 {
	return uint64(time.Now().UnixNano())
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
