// Package wal implements the durable event log: an append-only sequence
// of self-describing JSON records, one per line, flushed on every append.
// Replaying the log from an empty engine reproduces the in-memory state
// that wrote it; a snapshot only shortens the replay. Placements rejected
// after matching (NO_LIQUIDITY, SELF_TRADE_PREVENTED) are logged only as
// ORDER_PLACED, so replay restores them as placed, not as REJECTED.
package wal
