package service

import (
	"sort"

	"go.uber.org/zap"

	"hermes/snapshot"
)

// CreateSnapshot dumps every active order plus the id counters, tagged
// with the log's current sequence. Orders are sorted by id so a restore
// re-enqueues each price level in its original time priority.
func (s *OrderService) CreateSnapshot() snapshot.Snapshot {
	snap := snapshot.Snapshot{
		Sequence:    s.wal.CurrentSequence(),
		TimestampNs: nowNs(),
		NextOrderID: s.nextOrderID,
		NextTradeID: s.nextTradeID,
	}

	for _, ord := range s.orders {
		if ord.IsActive() {
			snap.Orders = append(snap.Orders, *ord)
		}
	}
	sort.Slice(snap.Orders, func(i, j int) bool {
		return snap.Orders[i].ID < snap.Orders[j].ID
	})

	return snap
}

// MaybeSnapshot saves a snapshot once enough events accumulated since the
// last one. Called from the driver loop between requests, so all snapshot
// writes stay on the engine goroutine. Acked outbox entries at or below
// the snapshot sequence are garbage-collected afterwards.
func (s *OrderService) MaybeSnapshot() {
	if s.snapshots == nil || !s.snapshots.ShouldSnapshot(s.wal.CurrentSequence()) {
		return
	}

	snap := s.CreateSnapshot()
	if err := s.snapshots.Save(&snap); err != nil {
		s.log.Warn("snapshot save failed", zap.Uint64("sequence", snap.Sequence), zap.Error(err))
		return
	}
	s.log.Info("snapshot saved",
		zap.Uint64("sequence", snap.Sequence),
		zap.Int("orders", len(snap.Orders)))

	if s.outbox != nil {
		if err := s.outbox.TruncateAckedUpTo(snap.Sequence); err != nil {
			s.log.Warn("outbox truncate failed", zap.Error(err))
		}
	}
}
