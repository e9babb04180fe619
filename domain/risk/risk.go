package risk

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"hermes/domain/orderbook"
)

// Limits are the static per-order bounds applied before matching.
type Limits struct {
	MaxOrderSize   int64    `yaml:"max_order_size"`
	MaxNotional    int64    `yaml:"max_notional"`
	AllowedSymbols []string `yaml:"allowed_symbols"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxOrderSize:   1000 * orderbook.PriceScale,
		MaxNotional:    10_000_000 * orderbook.PriceScale,
		AllowedSymbols: []string{"BTC-USD", "ETH-USD"},
	}
}

// LoadLimits reads limits from a YAML file. Missing fields keep the
// defaults; a zero or negative limit, or an empty symbol list, is an error.
func LoadLimits(path string) (Limits, error) {
	l := DefaultLimits()

	data, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("read risk limits: %w", err)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("parse risk limits: %w", err)
	}

	if l.MaxOrderSize <= 0 || l.MaxNotional <= 0 {
		return l, fmt.Errorf("risk limits must be positive (max_order_size=%d max_notional=%d)",
			l.MaxOrderSize, l.MaxNotional)
	}
	if len(l.AllowedSymbols) == 0 {
		return l, fmt.Errorf("risk limits need at least one allowed symbol")
	}
	return l, nil
}

// Result reports a risk decision. Code is CodeNone when Passed is true.
type Result struct {
	Passed bool
	Code   orderbook.ErrorCode
}

// Checker is the stateless risk gate. Checks run in declaration order and
// short-circuit on the first failure.
type Checker struct {
	limits  Limits
	allowed map[string]struct{}
}

func NewChecker(limits Limits) *Checker {
	allowed := make(map[string]struct{}, len(limits.AllowedSymbols))
	for _, s := range limits.AllowedSymbols {
		allowed[s] = struct{}{}
	}
	return &Checker{limits: limits, allowed: allowed}
}

func (c *Checker) IsValidSymbol(symbol string) bool {
	_, ok := c.allowed[symbol]
	return ok
}

func (c *Checker) Check(o *orderbook.Order) Result {
	if o.Quantity <= 0 {
		return Result{Code: orderbook.CodeInvalidQuantity}
	}
	if o.Type == orderbook.Limit && o.Price <= 0 {
		return Result{Code: orderbook.CodeInvalidPrice}
	}
	if !c.IsValidSymbol(o.Symbol) {
		return Result{Code: orderbook.CodeInvalidSymbol}
	}
	if o.Quantity > c.limits.MaxOrderSize {
		return Result{Code: orderbook.CodeMaxOrderSizeExceeded}
	}
	if o.Type == orderbook.Limit {
		// price * quantity / PRICE_SCALE, in extended precision. The one
		// computation off the exact int64 path.
		notional := decimal.NewFromInt(o.Price).
			Mul(decimal.NewFromInt(o.Quantity)).
			Div(decimal.NewFromInt(orderbook.PriceScale))
		if notional.GreaterThan(decimal.NewFromInt(c.limits.MaxNotional)) {
			return Result{Code: orderbook.CodeMaxNotionalExceeded}
		}
	}
	return Result{Passed: true, Code: orderbook.CodeNone}
}
