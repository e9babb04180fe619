package stdio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"hermes/domain/orderbook"
	"hermes/service"
)

const maxLineBytes = 1 << 20

// Server adapts OrderService to the line protocol: one JSON request per
// line in, one JSON response per line out.
type Server struct {
	svc *service.OrderService
	log *zap.Logger
}

func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

type request struct {
	Cmd     string          `json:"cmd"`
	ReqID   string          `json:"req_id"`
	Order   json.RawMessage `json:"order"`
	OrderID uint64          `json:"order_id"`
	Symbol  string          `json:"symbol"`
	Depth   *int            `json:"depth"`
	Limit   *int            `json:"limit"`
}

type response struct {
	ReqID   string         `json:"req_id"`
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code    orderbook.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

func ok(reqID string, data any) response {
	return response{ReqID: reqID, Success: true, Data: data}
}

func fail(reqID string, code orderbook.ErrorCode, message string) response {
	if message == "" {
		message = code.Message()
	}
	return response{ReqID: reqID, Success: false, Error: &responseError{Code: code, Message: message}}
}

// Handle processes one request line and returns the response line plus
// whether the caller should stop reading. It never panics outward;
// unexpected faults become INTERNAL_ERROR.
func (s *Server) Handle(line []byte) (out []byte, shutdown bool) {
	var resp response

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("request handler panicked", zap.Any("panic", r))
				resp = fail("", orderbook.CodeInternalError, fmt.Sprintf("Internal error: %v", r))
				shutdown = false
			}
		}()
		resp, shutdown = s.dispatch(line)
	}()

	data, err := json.Marshal(resp)
	if err != nil {
		// The envelope itself failed to serialize; last resort.
		s.log.Error("response marshal failed", zap.Error(err))
		data = []byte(`{"req_id":"","success":false,"error":{"code":"INTERNAL_ERROR","message":"Internal engine error"}}`)
	}
	return data, shutdown
}

func (s *Server) dispatch(line []byte) (response, bool) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return fail("", orderbook.CodeParseError, "JSON parse error: "+err.Error()), false
	}

	switch req.Cmd {
	case "place_order":
		return s.handlePlace(req), false

	case "cancel_order":
		r := s.svc.CancelOrder(req.OrderID)
		if !r.Success {
			return fail(req.ReqID, r.Code, ""), false
		}
		return ok(req.ReqID, map[string]any{"order": r.Order}), false

	case "get_order":
		ord, found := s.svc.GetOrder(req.OrderID)
		if !found {
			return fail(req.ReqID, orderbook.CodeOrderNotFound, ""), false
		}
		return ok(req.ReqID, map[string]any{"order": ord}), false

	case "get_book":
		depth := 10
		if req.Depth != nil {
			depth = *req.Depth
		}
		bids := []orderbook.BookLevel{}
		asks := []orderbook.BookLevel{}
		if book := s.svc.GetBook(req.Symbol); book != nil {
			bids = book.BidLevels(depth)
			asks = book.AskLevels(depth)
		}
		return ok(req.ReqID, map[string]any{
			"symbol": req.Symbol,
			"bids":   bids,
			"asks":   asks,
		}), false

	case "get_trades":
		limit := 100
		if req.Limit != nil {
			limit = *req.Limit
		}
		trades := s.svc.GetTrades(req.Symbol, limit)
		return ok(req.ReqID, map[string]any{
			"symbol": req.Symbol,
			"trades": trades,
		}), false

	case "get_stats":
		return ok(req.ReqID, s.svc.GetStats()), false

	case "health":
		return ok(req.ReqID, map[string]any{
			"status":       "healthy",
			"timestamp_ns": nowNs(),
		}), false

	case "shutdown", "exit", "quit":
		return ok(req.ReqID, map[string]any{"status": "shutting_down"}), true

	default:
		return fail(req.ReqID, orderbook.CodeUnknownCommand, "Unknown command: "+req.Cmd), false
	}
}

func (s *Server) handlePlace(req request) response {
	if len(req.Order) == 0 {
		return fail(req.ReqID, orderbook.CodeParseError, "missing order")
	}

	var o orderbook.Order
	if err := json.Unmarshal(req.Order, &o); err != nil {
		return fail(req.ReqID, orderbook.CodeParseError, "JSON parse error: "+err.Error())
	}

	r := s.svc.PlaceOrder(o)
	if !r.Success {
		return fail(req.ReqID, r.Code, "")
	}
	return ok(req.ReqID, map[string]any{
		"order":  r.Order,
		"trades": r.Trades,
	})
}

// Run drives the engine from r until EOF or a shutdown command. The loop
// is strictly sequential: read one line, mutate, respond, then give the
// engine a chance to snapshot.
func (s *Server) Run(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	bw := bufio.NewWriter(w)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, shutdown := s.Handle(line)
		if _, err := bw.Write(resp); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}

		s.svc.MaybeSnapshot()

		if shutdown {
			s.log.Info("shutdown requested")
			return nil
		}
	}
	return sc.Err()
}

func nowNs() uint64 {
	return uint64(time.Now().UnixNano())
}
