package wal

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates log records. ORDER_REJECTED and SNAPSHOT_MARKER
// are reserved; nothing emits them today.
type EventType int

const (
	EventOrderPlaced EventType = iota
	EventOrderCancelled
	EventOrderRejected
	EventTradeExecuted
	EventSnapshotMarker
)

var eventTypeNames = [...]string{
	"ORDER_PLACED",
	"ORDER_CANCELLED",
	"ORDER_REJECTED",
	"TRADE_EXECUTED",
	"SNAPSHOT_MARKER",
}

func (t EventType) String() string {
	if t < EventOrderPlaced || t > EventSnapshotMarker {
		return "UNKNOWN"
	}
	return eventTypeNames[t]
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	for i, name := range eventTypeNames {
		if name == v {
			*t = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", v)
}

// Event is one self-describing log record. The payload shape depends on
// Type: a full order for ORDER_PLACED, a full trade for TRADE_EXECUTED,
// {"order_id": n} for ORDER_CANCELLED.
type Event struct {
	Sequence    uint64          `json:"sequence"`
	TimestampNs uint64          `json:"timestamp_ns"`
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload"`
}
