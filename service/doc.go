// Package service orchestrates the core components of the matching
// engine — order books, risk gate, event log, snapshot store and outbox.
//
// It exposes a transport-agnostic API for placing, cancelling and
// querying orders; recovery replays the durable event stream back into
// the same in-memory state, except for placements rejected after matching,
// which the log records only as ORDER_PLACED.
package service
