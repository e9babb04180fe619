package risk

import (
	"os"
	"path/filepath"
	"testing"

	"hermes/domain/orderbook"
)

func checkOrder(symbol string, typ orderbook.OrderType, price, qty int64) *orderbook.Order {
	return &orderbook.Order{
		AccountID: "acct",
		Symbol:    symbol,
		Side:      orderbook.Buy,
		Type:      typ,
		Price:     price,
		Quantity:  qty,
	}
}

func TestCheckPasses(t *testing.T) {
	c := NewChecker(DefaultLimits())

	r := c.Check(checkOrder("BTC-USD", orderbook.Limit, 10_000*orderbook.PriceScale, 100))
	if !r.Passed {
		t.Fatalf("expected pass, got %v", r.Code)
	}
	r = c.Check(checkOrder("ETH-USD", orderbook.Market, 0, 100))
	if !r.Passed {
		t.Fatalf("market order with zero price should pass, got %v", r.Code)
	}
}

func TestCheckOrderOfRules(t *testing.T) {
	c := NewChecker(DefaultLimits())

	cases := []struct {
		name  string
		order *orderbook.Order
		want  orderbook.ErrorCode
	}{
		{"zero qty", checkOrder("BTC-USD", orderbook.Limit, 100, 0), orderbook.CodeInvalidQuantity},
		{"negative qty", checkOrder("BTC-USD", orderbook.Limit, 100, -5), orderbook.CodeInvalidQuantity},
		{"zero price limit", checkOrder("BTC-USD", orderbook.Limit, 0, 10), orderbook.CodeInvalidPrice},
		{"bad symbol", checkOrder("DOGE-USD", orderbook.Limit, 100, 10), orderbook.CodeInvalidSymbol},
		{"oversize", checkOrder("BTC-USD", orderbook.Limit, 100, 1001*orderbook.PriceScale), orderbook.CodeMaxOrderSizeExceeded},
		// qty checked before symbol: both invalid -> quantity wins
		{"qty before symbol", checkOrder("DOGE-USD", orderbook.Limit, 100, 0), orderbook.CodeInvalidQuantity},
	}

	for _, tc := range cases {
		r := c.Check(tc.order)
		if r.Passed || r.Code != tc.want {
			t.Errorf("%s: got passed=%v code=%v, want %v", tc.name, r.Passed, r.Code, tc.want)
		}
	}
}

func TestNotionalBoundary(t *testing.T) {
	c := NewChecker(DefaultLimits())

	// price * qty / SCALE == max_notional exactly: allowed.
	atLimit := checkOrder("BTC-USD", orderbook.Limit, 10_000_000*orderbook.PriceScale, orderbook.PriceScale)
	if r := c.Check(atLimit); !r.Passed {
		t.Errorf("notional at limit should pass, got %v", r.Code)
	}

	over := checkOrder("BTC-USD", orderbook.Limit, 10_000_000*orderbook.PriceScale, orderbook.PriceScale+1)
	if r := c.Check(over); r.Passed || r.Code != orderbook.CodeMaxNotionalExceeded {
		t.Errorf("notional over limit: got passed=%v code=%v", r.Passed, r.Code)
	}

	// Market orders skip the notional check entirely.
	market := checkOrder("BTC-USD", orderbook.Market, 0, 500)
	if r := c.Check(market); !r.Passed {
		t.Errorf("market order should skip notional, got %v", r.Code)
	}
}

func TestLoadLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	yaml := "max_order_size: 500\nmax_notional: 100000\nallowed_symbols:\n  - FOO-USD\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := LoadLimits(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.MaxOrderSize != 500 || l.MaxNotional != 100000 {
		t.Errorf("limits = %+v", l)
	}

	c := NewChecker(l)
	if !c.IsValidSymbol("FOO-USD") || c.IsValidSymbol("BTC-USD") {
		t.Error("allowed symbols not applied")
	}
}

func TestLoadLimitsMissingFile(t *testing.T) {
	if _, err := LoadLimits(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
