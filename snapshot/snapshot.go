package snapshot

import "hermes/domain/orderbook"

// Snapshot is a point-in-time dump of recoverable engine state: every
// active order plus the id counters, tagged with the last event sequence
// whose effect it includes. Trade history is not snapshotted; only trades
// in events after the snapshot survive recovery.
type Snapshot struct {
	Sequence    uint64            `json:"sequence"`
	TimestampNs uint64            `json:"timestamp_ns"`
	NextOrderID uint64            `json:"next_order_id"`
	NextTradeID uint64            `json:"next_trade_id"`
	Orders      []orderbook.Order `json:"orders"`
}
