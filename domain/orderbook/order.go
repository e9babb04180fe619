package orderbook

import (
	"encoding/json"
	"fmt"
)

// PriceScale is the fixed-point factor for prices: 1e8 units = 1.0.
// Quantities are plain integers and are not scaled.
const PriceScale int64 = 100_000_000

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("unknown side %q", v)
	}
	return nil
}

type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

func (t OrderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OrderType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "LIMIT":
		*t = Limit
	case "MARKET":
		*t = Market
	default:
		return fmt.Errorf("unknown order type %q", v)
	}
	return nil
}

type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusPartial
	StatusFilled
	StatusCancelled
	StatusRejected
)

var statusNames = [...]string{"NEW", "PARTIAL", "FILLED", "CANCELLED", "REJECTED"}

func (st OrderStatus) String() string {
	if st < StatusNew || st > StatusRejected {
		return "NEW"
	}
	return statusNames[st]
}

func (st OrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(st.String())
}

func (st *OrderStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	for i, name := range statusNames {
		if name == v {
			*st = OrderStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown order status %q", v)
}

// Order is owned by the engine's registry. The book holds non-owning
// references plus the intrusive next/prev links of the price-level FIFO.
type Order struct {
	ID             uint64      `json:"id"`
	AccountID      string      `json:"account_id"`
	Symbol         string      `json:"symbol"`
	Side           Side        `json:"side"`
	Type           OrderType   `json:"type"`
	Price          int64       `json:"price"`
	Quantity       int64       `json:"quantity"`
	RemainingQty   int64       `json:"remaining_qty"`
	TimestampNs    uint64      `json:"timestamp_ns"`
	Status         OrderStatus `json:"status"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	ClientOrderID  string      `json:"client_order_id,omitempty"`

	next *Order
	prev *Order
}

func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartial
}

func (o *Order) FilledQty() int64 {
	return o.Quantity - o.RemainingQty
}

// Trade executes at the resting order's price; price improvement
// accrues to the aggressor.
type Trade struct {
	ID              uint64 `json:"id"`
	BuyOrderID      uint64 `json:"buy_order_id"`
	SellOrderID     uint64 `json:"sell_order_id"`
	Symbol          string `json:"symbol"`
	Price           int64  `json:"price"`
	Quantity        int64  `json:"quantity"`
	TimestampNs     uint64 `json:"timestamp_ns"`
	BuyerAccountID  string `json:"buyer_account_id"`
	SellerAccountID string `json:"seller_account_id"`
}

// BookLevel is a read-only aggregate of one price level.
type BookLevel struct {
	Price      int64 `json:"price"`
	Quantity   int64 `json:"quantity"`
	OrderCount int   `json:"order_count"`
}
