package service

import (
	"path/filepath"
	"testing"

	"hermes/domain/orderbook"
	"hermes/domain/risk"
	"hermes/infra/wal"
	"hermes/snapshot"
)

func newEngine() *OrderService {
	return NewOrderService(
		risk.NewChecker(risk.DefaultLimits()),
		wal.Open("", nil),
		snapshot.NewStore("", 1000),
		nil,
		nil,
	)
}

func newDurableEngine(t *testing.T, logPath string) *OrderService {
	t.Helper()
	return NewOrderService(
		risk.NewChecker(risk.DefaultLimits()),
		wal.Open(logPath, nil),
		snapshot.NewStore("", 1000),
		nil,
		nil,
	)
}

func limit(account string, side orderbook.Side, price, qty int64) orderbook.Order {
	return orderbook.Order{
		AccountID: account,
		Symbol:    "BTC-USD",
		Side:      side,
		Type:      orderbook.Limit,
		Price:     price,
		Quantity:  qty,
	}
}

func market(account string, side orderbook.Side, qty int64) orderbook.Order {
	return orderbook.Order{
		AccountID: account,
		Symbol:    "BTC-USD",
		Side:      side,
		Type:      orderbook.Market,
		Quantity:  qty,
	}
}

const px = orderbook.PriceScale

func TestFullFill(t *testing.T) {
	svc := newEngine()

	sell := svc.PlaceOrder(limit("alice", orderbook.Sell, 10_000*px, 100))
	if !sell.Success || sell.Order.Status != orderbook.StatusNew || len(sell.Trades) != 0 {
		t.Fatalf("sell = %+v", sell)
	}

	buy := svc.PlaceOrder(limit("bob", orderbook.Buy, 10_000*px, 100))
	if !buy.Success || buy.Order.Status != orderbook.StatusFilled {
		t.Fatalf("buy = %+v", buy)
	}
	if len(buy.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(buy.Trades))
	}
	tr := buy.Trades[0]
	if tr.Quantity != 100 || tr.Price != 10_000*px {
		t.Errorf("trade = %+v", tr)
	}
	if tr.BuyOrderID != buy.Order.ID || tr.SellOrderID != sell.Order.ID {
		t.Errorf("trade ids = %+v", tr)
	}
	if tr.BuyerAccountID != "bob" || tr.SellerAccountID != "alice" {
		t.Errorf("trade accounts = %+v", tr)
	}

	restingSell, _ := svc.GetOrder(sell.Order.ID)
	if restingSell.Status != orderbook.StatusFilled || restingSell.RemainingQty != 0 {
		t.Errorf("resting sell after match = %+v", restingSell)
	}
	if book := svc.GetBook("BTC-USD"); book.AskCount() != 0 || book.BidCount() != 0 {
		t.Error("book should be empty after full fill")
	}
}

func TestPartialRest(t *testing.T) {
	svc := newEngine()

	sell := svc.PlaceOrder(limit("alice", orderbook.Sell, 10_000*px, 100))
	buy := svc.PlaceOrder(limit("bob", orderbook.Buy, 10_000*px, 40))

	if buy.Order.Status != orderbook.StatusFilled || len(buy.Trades) != 1 || buy.Trades[0].Quantity != 40 {
		t.Fatalf("buy = %+v", buy)
	}

	resting, _ := svc.GetOrder(sell.Order.ID)
	if resting.RemainingQty != 60 || resting.Status != orderbook.StatusPartial {
		t.Errorf("resting sell = %+v", resting)
	}
	if ask, ok := svc.GetBook("BTC-USD").BestAskPrice(); !ok || ask != 10_000*px {
		t.Error("partial sell should still be on the book")
	}
}

func TestMultiLevelSweep(t *testing.T) {
	svc := newEngine()

	a := svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	bOrd := svc.PlaceOrder(limit("carol", orderbook.Sell, 110*px, 50))
	buy := svc.PlaceOrder(limit("bob", orderbook.Buy, 120*px, 80))

	if buy.Order.Status != orderbook.StatusFilled {
		t.Fatalf("buy = %+v", buy)
	}
	if len(buy.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(buy.Trades))
	}
	if buy.Trades[0].Price != 100*px || buy.Trades[0].Quantity != 50 {
		t.Errorf("trade[0] = %+v", buy.Trades[0])
	}
	if buy.Trades[1].Price != 110*px || buy.Trades[1].Quantity != 30 {
		t.Errorf("trade[1] = %+v", buy.Trades[1])
	}

	first, _ := svc.GetOrder(a.Order.ID)
	if first.Status != orderbook.StatusFilled {
		t.Errorf("level-1 sell = %+v", first)
	}
	second, _ := svc.GetOrder(bOrd.Order.ID)
	if second.RemainingQty != 20 || second.Status != orderbook.StatusPartial {
		t.Errorf("level-2 sell = %+v", second)
	}
}

func TestMarketNoLiquidity(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	svc := newDurableEngine(t, logPath)

	r := svc.PlaceOrder(market("bob", orderbook.Buy, 100))
	if r.Success || r.Code != orderbook.CodeNoLiquidity {
		t.Fatalf("result = %+v", r)
	}
	if r.Order.ID == 0 || r.Order.Status != orderbook.StatusRejected {
		t.Errorf("order = %+v", r.Order)
	}

	st := svc.GetStats()
	if st.TotalRejects != 1 || st.TotalOrders != 1 || st.TotalTrades != 0 {
		t.Errorf("stats = %+v", st)
	}

	// The placement was logged before matching; no trade events follow.
	events := wal.Open(logPath, nil).ReadAll()
	if len(events) != 1 || events[0].Type != wal.EventOrderPlaced {
		t.Errorf("events = %+v", events)
	}
}

func TestMarketPartialFill(t *testing.T) {
	svc := newEngine()

	svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	r := svc.PlaceOrder(market("bob", orderbook.Buy, 100))

	if !r.Success || r.Order.Status != orderbook.StatusPartial {
		t.Fatalf("result = %+v", r)
	}
	if len(r.Trades) != 1 || r.Trades[0].Quantity != 50 {
		t.Fatalf("trades = %+v", r.Trades)
	}
	// Market remainder never rests.
	if svc.GetBook("BTC-USD").BidCount() != 0 {
		t.Error("market order must not rest on the book")
	}
}

func TestSelfTradePrevention(t *testing.T) {
	svc := newEngine()

	sell := svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	buy := svc.PlaceOrder(limit("alice", orderbook.Buy, 100*px, 50))

	if buy.Success || buy.Code != orderbook.CodeSelfTradePrevented {
		t.Fatalf("buy = %+v", buy)
	}
	if buy.Order.Status != orderbook.StatusRejected || len(buy.Trades) != 0 {
		t.Errorf("buy order = %+v trades = %v", buy.Order, buy.Trades)
	}

	resting, _ := svc.GetOrder(sell.Order.ID)
	if resting.RemainingQty != 50 || resting.Status != orderbook.StatusNew {
		t.Errorf("resting sell should be untouched: %+v", resting)
	}
	if svc.GetBook("BTC-USD").IsCrossed() {
		t.Error("book must never be crossed")
	}
}

func TestSelfTradePreventionNonCrossingRests(t *testing.T) {
	svc := newEngine()

	svc.PlaceOrder(limit("alice", orderbook.Sell, 110*px, 50))
	// Same account, but resting at 100 does not cross the 110 ask.
	buy := svc.PlaceOrder(limit("alice", orderbook.Buy, 100*px, 50))

	if !buy.Success || buy.Order.Status != orderbook.StatusNew {
		t.Fatalf("buy = %+v", buy)
	}
	book := svc.GetBook("BTC-USD")
	if book.BidCount() != 1 || book.IsCrossed() {
		t.Error("non-crossing same-account order should rest")
	}
}

func TestIdempotency(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	svc := newDurableEngine(t, logPath)

	first := limit("alice", orderbook.Sell, 100*px, 10)
	first.IdempotencyKey = "key-1"
	r1 := svc.PlaceOrder(first)
	if !r1.Success {
		t.Fatalf("first = %+v", r1)
	}

	r2 := svc.PlaceOrder(first)
	if r2.Success || r2.Code != orderbook.CodeDuplicateIdempotencyKey {
		t.Fatalf("second = %+v", r2)
	}
	if r2.Order.ID != 0 {
		t.Error("duplicate must not mint an id")
	}

	// No side effects: next id is still 2, no extra events, book unchanged.
	r3 := svc.PlaceOrder(limit("bob", orderbook.Buy, 90*px, 5))
	if r3.Order.ID != 2 {
		t.Errorf("next id = %d, want 2", r3.Order.ID)
	}
	events := wal.Open(logPath, nil).ReadAll()
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
	if svc.GetBook("BTC-USD").AskCount() != 1 {
		t.Error("duplicate changed the book")
	}
}

func TestRiskRejection(t *testing.T) {
	svc := newEngine()

	r := svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 0))
	if r.Success || r.Code != orderbook.CodeInvalidQuantity {
		t.Fatalf("result = %+v", r)
	}
	r = svc.PlaceOrder(orderbook.Order{
		AccountID: "alice", Symbol: "DOGE-USD",
		Side: orderbook.Sell, Type: orderbook.Limit, Price: 100, Quantity: 1,
	})
	if r.Success || r.Code != orderbook.CodeInvalidSymbol {
		t.Fatalf("result = %+v", r)
	}
	if st := svc.GetStats(); st.TotalRejects != 2 || st.TotalOrders != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCancelOrder(t *testing.T) {
	svc := newEngine()

	r := svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	c := svc.CancelOrder(r.Order.ID)
	if !c.Success || c.Order.Status != orderbook.StatusCancelled {
		t.Fatalf("cancel = %+v", c)
	}
	if svc.GetBook("BTC-USD").AskCount() != 0 {
		t.Error("cancelled order still on the book")
	}

	// Cancelling a terminal order reports not-found, with the snapshot.
	c2 := svc.CancelOrder(r.Order.ID)
	if c2.Success || c2.Code != orderbook.CodeOrderNotFound {
		t.Fatalf("second cancel = %+v", c2)
	}
	if c2.Order.ID != r.Order.ID {
		t.Error("terminal cancel should carry the order snapshot")
	}

	c3 := svc.CancelOrder(9999)
	if c3.Success || c3.Code != orderbook.CodeOrderNotFound {
		t.Fatalf("unknown cancel = %+v", c3)
	}

	if st := svc.GetStats(); st.TotalCancels != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCancelPartiallyFilled(t *testing.T) {
	svc := newEngine()

	sell := svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 100))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 100*px, 30))

	c := svc.CancelOrder(sell.Order.ID)
	if !c.Success || c.Order.Status != orderbook.StatusCancelled || c.Order.RemainingQty != 70 {
		t.Fatalf("cancel = %+v", c)
	}
}

func TestPlaceThenCancelLeavesBookUnchanged(t *testing.T) {
	svc := newEngine()
	svc.PlaceOrder(limit("alice", orderbook.Sell, 110*px, 5))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 90*px, 5))
	before := svc.GetBook("BTC-USD").BidLevels(10)

	r := svc.PlaceOrder(limit("carol", orderbook.Buy, 95*px, 5))
	svc.CancelOrder(r.Order.ID)

	after := svc.GetBook("BTC-USD").BidLevels(10)
	if len(before) != len(after) {
		t.Fatalf("levels changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("level %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestGetTrades(t *testing.T) {
	svc := newEngine()

	svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 10))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 100*px, 4))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 100*px, 6))

	eth := limit("alice", orderbook.Sell, 50*px, 5)
	eth.Symbol = "ETH-USD"
	svc.PlaceOrder(eth)
	ethBuy := limit("bob", orderbook.Buy, 50*px, 5)
	ethBuy.Symbol = "ETH-USD"
	svc.PlaceOrder(ethBuy)

	btc := svc.GetTrades("BTC-USD", 100)
	if len(btc) != 2 {
		t.Fatalf("btc trades = %d, want 2", len(btc))
	}
	// Oldest first.
	if btc[0].Quantity != 4 || btc[1].Quantity != 6 {
		t.Errorf("order wrong: %+v", btc)
	}
	if btc[0].ID >= btc[1].ID {
		t.Error("trade ids must increase")
	}

	if got := svc.GetTrades("BTC-USD", 1); len(got) != 1 || got[0].Quantity != 6 {
		t.Errorf("limit=1 should return most recent: %+v", got)
	}
	if got := svc.GetTrades("ETH-USD", 100); len(got) != 1 {
		t.Errorf("eth trades = %+v", got)
	}
	if got := svc.GetTrades("BTC-USD", 0); len(got) != 0 {
		t.Errorf("limit=0 = %+v", got)
	}
}

func TestEventSequenceOrdering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.log")
	svc := newDurableEngine(t, logPath)

	svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 100*px, 50))

	events := wal.Open(logPath, nil).ReadAll()
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	wantTypes := []wal.EventType{wal.EventOrderPlaced, wal.EventOrderPlaced, wal.EventTradeExecuted}
	for i, e := range events {
		if e.Sequence != uint64(i+1) {
			t.Errorf("events[%d].Sequence = %d, want %d", i, e.Sequence, i+1)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("events[%d].Type = %v, want %v", i, e.Type, wantTypes[i])
		}
	}
	// The trade's sequence strictly exceeds the aggressor's placement.
	if events[2].Sequence <= events[1].Sequence {
		t.Error("trade must be sequenced after the placement")
	}
}

func TestStats(t *testing.T) {
	svc := newEngine()

	svc.PlaceOrder(limit("alice", orderbook.Sell, 100*px, 50))
	svc.PlaceOrder(limit("bob", orderbook.Buy, 100*px, 20))
	r := svc.PlaceOrder(limit("carol", orderbook.Buy, 90*px, 5))
	svc.CancelOrder(r.Order.ID)
	svc.PlaceOrder(limit("dave", orderbook.Sell, 100*px, 0)) // rejected

	st := svc.GetStats()
	if st.TotalOrders != 3 || st.TotalTrades != 1 || st.TotalCancels != 1 || st.TotalRejects != 1 {
		t.Errorf("stats = %+v", st)
	}
	// place, place, trade, place, cancel = 5 events
	if st.EventSequence != 5 {
		t.Errorf("event_sequence = %d, want 5", st.EventSequence)
	}
}
