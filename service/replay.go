package service

import (
	"encoding/json"

	"go.uber.org/zap"

	"hermes/domain/orderbook"
	"hermes/infra/wal"
)

// Recover rebuilds engine state from durable storage: the latest snapshot
// if one exists, then every event strictly after it; otherwise the whole
// event log. Returns false when there was nothing to recover from.
//
// Replay applies recorded facts sequentially and never re-enters the match
// loop: trades in the log are history, not decisions to remake.
func (s *OrderService) Recover() bool {
	snap, err := s.snapshots.LoadLatest()
	if err != nil {
		s.log.Warn("snapshot load failed, falling back to full replay", zap.Error(err))
		snap = nil
	}

	if snap != nil {
		s.books = make(map[string]*orderbook.OrderBook)
		s.orders = make(map[uint64]*orderbook.Order)
		s.idempotencyKeys = make(map[string]struct{})
		s.trades = nil

		for i := range snap.Orders {
			o := snap.Orders[i]
			ord := &o
			if ord.IsActive() && ord.Type == orderbook.Limit && ord.RemainingQty > 0 {
				s.getOrCreateBook(ord.Symbol).AddOrder(ord)
			}
			if ord.IdempotencyKey != "" {
				s.idempotencyKeys[ord.IdempotencyKey] = struct{}{}
			}
			s.orders[ord.ID] = ord
		}

		s.nextOrderID = snap.NextOrderID
		s.nextTradeID = snap.NextTradeID

		lastSeq := s.replayEvents(s.wal.ReadFrom(snap.Sequence + 1))
		if lastSeq < snap.Sequence {
			lastSeq = snap.Sequence
		}
		s.wal.ResetSequence(lastSeq)

		s.log.Info("recovered from snapshot",
			zap.Uint64("snapshot_sequence", snap.Sequence),
			zap.Uint64("event_sequence", lastSeq),
			zap.Int("orders", len(s.orders)))
		return true
	}

	events := s.wal.ReadAll()
	if len(events) == 0 {
		return false
	}

	lastSeq := s.replayEvents(events)
	s.wal.ResetSequence(lastSeq)

	s.log.Info("recovered from event log",
		zap.Uint64("event_sequence", lastSeq),
		zap.Int("events", len(events)))
	return true
}

// replayEvents applies events in order and returns the highest sequence
// seen.
func (s *OrderService) replayEvents(events []wal.Event) uint64 {
	var lastSeq uint64
	for _, e := range events {
		if e.Sequence > lastSeq {
			lastSeq = e.Sequence
		}
		s.applyEvent(e)
	}
	return lastSeq
}

func (s *OrderService) applyEvent(e wal.Event) {
	switch e.Type {
	case wal.EventOrderPlaced:
		var o orderbook.Order
		if err := json.Unmarshal(e.Payload, &o); err != nil {
			s.log.Warn("bad ORDER_PLACED payload", zap.Uint64("sequence", e.Sequence), zap.Error(err))
			return
		}
		// Already present means the snapshot covered it.
		if _, ok := s.orders[o.ID]; ok {
			return
		}

		ord := &o
		if ord.IsActive() && ord.Type == orderbook.Limit && ord.RemainingQty > 0 {
			s.getOrCreateBook(ord.Symbol).AddOrder(ord)
		}
		if ord.IdempotencyKey != "" {
			s.idempotencyKeys[ord.IdempotencyKey] = struct{}{}
		}
		s.orders[ord.ID] = ord

		if ord.ID >= s.nextOrderID {
			s.nextOrderID = ord.ID + 1
		}

	case wal.EventOrderCancelled:
		var p cancelPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			s.log.Warn("bad ORDER_CANCELLED payload", zap.Uint64("sequence", e.Sequence), zap.Error(err))
			return
		}
		ord, ok := s.orders[p.OrderID]
		if !ok {
			return
		}
		ord.Status = orderbook.StatusCancelled
		if book, ok := s.books[ord.Symbol]; ok {
			book.RemoveOrder(p.OrderID)
		}

	case wal.EventTradeExecuted:
		var t orderbook.Trade
		if err := json.Unmarshal(e.Payload, &t); err != nil {
			s.log.Warn("bad TRADE_EXECUTED payload", zap.Uint64("sequence", e.Sequence), zap.Error(err))
			return
		}
		s.trades = append(s.trades, t)

		if t.ID >= s.nextTradeID {
			s.nextTradeID = t.ID + 1
		}

		s.applyTradeToOrder(t.BuyOrderID, t.Quantity)
		s.applyTradeToOrder(t.SellOrderID, t.Quantity)

	default:
		// Reserved types are ignored.
	}
}

// applyTradeToOrder replays one fill against a participating order,
// clamping at zero and removing it from its book once filled. A resting
// order goes through the book so its level's aggregate quantity follows.
func (s *OrderService) applyTradeToOrder(orderID uint64, qty int64) {
	ord, ok := s.orders[orderID]
	if !ok {
		return
	}

	remaining := ord.RemainingQty - qty
	if remaining < 0 {
		remaining = 0
	}
	if book, ok := s.books[ord.Symbol]; ok {
		book.UpdateOrderQty(orderID, remaining) // no-op when not resting
	}
	ord.RemainingQty = remaining
	if remaining == 0 {
		ord.Status = orderbook.StatusFilled
	} else {
		ord.Status = orderbook.StatusPartial
	}
}
