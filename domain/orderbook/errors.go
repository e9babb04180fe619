package orderbook

// ErrorCode identifies why an engine operation or a protocol request failed.
// CodeNone means success; it is not the type's zero value (the empty string).
type ErrorCode string

const (
	CodeNone                    ErrorCode = "NONE"
	CodeInvalidQuantity         ErrorCode = "INVALID_QUANTITY"
	CodeInvalidPrice            ErrorCode = "INVALID_PRICE"
	CodeInvalidSymbol           ErrorCode = "INVALID_SYMBOL"
	CodeOrderNotFound           ErrorCode = "ORDER_NOT_FOUND"
	CodeMaxOrderSizeExceeded    ErrorCode = "MAX_ORDER_SIZE_EXCEEDED"
	CodeMaxNotionalExceeded     ErrorCode = "MAX_NOTIONAL_EXCEEDED"
	CodeSelfTradePrevented      ErrorCode = "SELF_TRADE_PREVENTED"
	CodeNoLiquidity             ErrorCode = "NO_LIQUIDITY"
	CodeDuplicateIdempotencyKey ErrorCode = "DUPLICATE_IDEMPOTENCY_KEY"
	CodeParseError              ErrorCode = "PARSE_ERROR"
	CodeUnknownCommand          ErrorCode = "UNKNOWN_COMMAND"
	CodeInternalError           ErrorCode = "INTERNAL_ERROR"
)

var errorMessages = map[ErrorCode]string{
	CodeNone:                    "Success",
	CodeInvalidQuantity:         "Quantity must be positive",
	CodeInvalidPrice:            "Price must be positive for limit orders",
	CodeInvalidSymbol:           "Unknown or invalid symbol",
	CodeOrderNotFound:           "Order not found",
	CodeMaxOrderSizeExceeded:    "Order size exceeds maximum allowed",
	CodeMaxNotionalExceeded:     "Order notional value exceeds maximum allowed",
	CodeSelfTradePrevented:      "Order would result in self-trade",
	CodeNoLiquidity:             "No liquidity available for market order",
	CodeDuplicateIdempotencyKey: "Duplicate idempotency key",
	CodeParseError:              "Malformed request",
	CodeUnknownCommand:          "Unknown command",
	CodeInternalError:           "Internal engine error",
}

func (c ErrorCode) Message() string {
	if m, ok := errorMessages[c]; ok {
		return m
	}
	return "Unknown error"
}
