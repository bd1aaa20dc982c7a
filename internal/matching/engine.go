package matching

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"simtrade/internal/instrument"
	"simtrade/internal/obs"
	"simtrade/internal/schema"
)

const idPrefix = "BT_"

// PendingOrder is an accepted order resting in a per-instrument FIFO queue.
type PendingOrder struct {
	ID          string
	Request     schema.OrderRequest
	Remaining   int64
	SubmittedAt time.Time
}

// Engine matches queued orders against the latest top-of-book tick of each instrument.
//
// Engine is not safe for concurrent use: one feed goroutine drives ticks and
// placements. Status events are delivered synchronously, possibly before Place returns.
type Engine struct {
	catalog  *instrument.Catalog
	ids      *obs.IDGenerator
	handler  schema.StatusHandler
	lastTick map[string]schema.Tick
	pending  map[string][]*PendingOrder
	now      func() time.Time
}

// NewEngine creates a matching engine. A nil catalog means defaults for every instrument.
func NewEngine(catalog *instrument.Catalog) *Engine {
	if catalog == nil {
		catalog = instrument.NewCatalog()
	}
	return &Engine{
		catalog:  catalog,
		ids:      obs.NewIDGenerator(idPrefix),
		lastTick: make(map[string]schema.Tick),
		pending:  make(map[string][]*PendingOrder),
		now:      time.Now,
	}
}

// SetStatusHandler installs the single status subscriber; the last registration wins.
func (e *Engine) SetStatusHandler(h schema.StatusHandler) {
	e.handler = h
}

// Place accepts an order, emits Accepted and matches it when a tick is known.
func (e *Engine) Place(req schema.OrderRequest) string {
	rec := &PendingOrder{
		ID:          e.ids.Next(),
		Request:     req,
		Remaining:   req.Qty,
		SubmittedAt: e.now(),
	}
	e.emit(rec.ID, schema.StatusAccepted, "accepted", req.Instrument, 0, decimal.Zero, rec.Remaining)

	if reason, ok := validate(req); !ok {
		logs.Warnf("reject order %s: %s", rec.ID, reason)
		e.emit(rec.ID, schema.StatusRejected, reason, req.Instrument, 0, decimal.Zero, schema.UnknownRemaining)
		return rec.ID
	}

	tick, hasTick := e.lastTick[req.Instrument]
	switch req.Kind {
	case schema.OrderKindFOK:
		e.placeFOK(rec, tick, hasTick)
	case schema.OrderKindIOC:
		if hasTick {
			e.enqueue(rec)
			e.matchQueue(req.Instrument, tick)
		}
		if rec.Remaining > 0 {
			e.remove(req.Instrument, rec.ID)
			e.emit(rec.ID, schema.StatusCanceled, "IOC remainder canceled", req.Instrument, 0, decimal.Zero, rec.Remaining)
		}
	default:
		e.enqueue(rec)
		if hasTick {
			e.matchQueue(req.Instrument, tick)
		}
	}
	return rec.ID
}

// Cancel removes a resting order and emits Canceled. It reports false when the
// order is unknown or already terminal.
func (e *Engine) Cancel(orderID string) bool {
	for instr, q := range e.pending {
		for i, ord := range q {
			if ord.ID != orderID {
				continue
			}
			e.setQueue(instr, append(q[:i:i], q[i+1:]...))
			e.emit(orderID, schema.StatusCanceled, "user canceled", instr, 0, decimal.Zero, ord.Remaining)
			return true
		}
	}
	return false
}

// OnTick replaces the instrument's last tick and runs a match pass over its queue.
func (e *Engine) OnTick(tick schema.Tick) {
	e.lastTick[tick.Instrument] = tick
	e.matchQueue(tick.Instrument, tick)
}

// LastTick returns the latest tick seen for an instrument.
func (e *Engine) LastTick(instr string) (schema.Tick, bool) {
	t, ok := e.lastTick[instr]
	return t, ok
}

// Pending returns a copy of the instrument's queue in arrival order.
func (e *Engine) Pending(instr string) []PendingOrder {
	q := e.pending[instr]
	out := make([]PendingOrder, 0, len(q))
	for _, ord := range q {
		out = append(out, *ord)
	}
	return out
}

// PendingCount returns the number of resting orders across all instruments.
func (e *Engine) PendingCount() int {
	n := 0
	for _, q := range e.pending {
		n += len(q)
	}
	return n
}

func (e *Engine) placeFOK(rec *PendingOrder, tick schema.Tick, hasTick bool) {
	req := rec.Request
	if hasTick {
		avail := tick.AskLiquidity()
		if !req.IsBuy() {
			avail = tick.BidLiquidity()
		}
		if cross, _ := e.quote(req, tick); cross && avail >= rec.Remaining {
			// a transient single-order queue keeps resting orders from taking the liquidity first
			_, events := e.match(req.Instrument, tick, []*PendingOrder{rec})
			e.emitAll(events)
			return
		}
	}
	e.emit(rec.ID, schema.StatusRejected, "FOK not fully matchable", req.Instrument, 0, decimal.Zero, rec.Remaining)
}

func (e *Engine) matchQueue(instr string, tick schema.Tick) {
	q := e.pending[instr]
	if len(q) == 0 {
		return
	}
	kept, events := e.match(instr, tick, q)
	e.setQueue(instr, kept)
	e.emitAll(events)
}

// match runs one pass over queue in arrival order. It returns the orders still
// resting and the fill events to emit once the queue has been stored.
func (e *Engine) match(instr string, tick schema.Tick, queue []*PendingOrder) ([]*PendingOrder, []schema.OrderStatusEvent) {
	availBuy := tick.AskLiquidity()
	availSell := tick.BidLiquidity()
	tickSize := e.catalog.TickSize(instr)
	partial := e.catalog.Rules().PartialFillEnabled

	var events []schema.OrderStatusEvent
	kept := make([]*PendingOrder, 0, len(queue))
	for i, ord := range queue {
		avail := &availSell
		if ord.Request.IsBuy() {
			avail = &availBuy
		}
		// a side that opened the pass empty never fills
		if *avail <= 0 {
			kept = append(kept, ord)
			continue
		}

		cross, px := e.quote(ord.Request, tick)
		if !cross {
			kept = append(kept, ord)
			continue
		}

		var fill int64
		if !partial && ord.Request.Kind != schema.OrderKindIOC {
			if *avail < ord.Remaining {
				kept = append(kept, ord)
				continue
			}
			fill = ord.Remaining
		} else {
			fill = min(*avail, ord.Remaining)
		}

		ord.Remaining -= fill
		*avail -= fill
		px = roundTradePrice(ord.Request, px, tickSize)

		status := schema.StatusFilled
		if ord.Remaining > 0 {
			status = schema.StatusPartiallyFilled
			kept = append(kept, ord)
		}
		events = append(events, schema.OrderStatusEvent{
			OrderID:      ord.ID,
			Status:       status,
			Message:      fmt.Sprintf("px=%s,qty=%d", px.String(), fill),
			Instrument:   instr,
			FilledQty:    fill,
			FillPrice:    px,
			RemainingQty: ord.Remaining,
		})

		if *avail == 0 {
			// side liquidity used up for this tick, the rest waits for the next one
			kept = append(kept, queue[i+1:]...)
			break
		}
	}

	return kept, events
}

// quote returns whether the order crosses the tick and its candidate trade price.
// Market orders always cross at the touch moved by slippage; limit-priced orders
// cross when the touch is at least as good as the limit and never trade worse than it.
func (e *Engine) quote(req schema.OrderRequest, tick schema.Tick) (bool, decimal.Decimal) {
	slip := e.catalog.Slippage(req.Instrument)
	buy := req.IsBuy()
	if req.Kind == schema.OrderKindMarket {
		if buy {
			return true, tick.AskPrice.Add(slip)
		}
		return true, tick.BidPrice.Sub(slip)
	}
	if buy {
		return tick.AskPrice.LessThanOrEqual(req.Price), decimal.Min(req.Price, tick.AskPrice.Add(slip))
	}
	return tick.BidPrice.GreaterThanOrEqual(req.Price), decimal.Max(req.Price, tick.BidPrice.Sub(slip))
}

// roundTradePrice aligns px to the tick grid, keeping limit-priced orders within their limit.
func roundTradePrice(req schema.OrderRequest, px, tickSize decimal.Decimal) decimal.Decimal {
	rounded := instrument.RoundToTick(px, tickSize)
	if req.Kind == schema.OrderKindMarket || !tickSize.IsPositive() {
		return rounded
	}
	if req.IsBuy() && rounded.GreaterThan(req.Price) {
		return req.Price.Div(tickSize).Floor().Mul(tickSize)
	}
	if !req.IsBuy() && rounded.LessThan(req.Price) {
		return req.Price.Div(tickSize).Ceil().Mul(tickSize)
	}
	return rounded
}

func (e *Engine) enqueue(rec *PendingOrder) {
	instr := rec.Request.Instrument
	e.pending[instr] = append(e.pending[instr], rec)
}

func (e *Engine) remove(instr, orderID string) {
	q := e.pending[instr]
	for i, ord := range q {
		if ord.ID == orderID {
			e.setQueue(instr, append(q[:i:i], q[i+1:]...))
			return
		}
	}
}

func (e *Engine) setQueue(instr string, q []*PendingOrder) {
	if len(q) == 0 {
		delete(e.pending, instr)
		return
	}
	e.pending[instr] = q
}

func (e *Engine) emitAll(events []schema.OrderStatusEvent) {
	for _, ev := range events {
		if e.handler != nil {
			e.handler(ev)
		}
	}
}

func (e *Engine) emit(id string, status schema.Status, msg, instr string, filled int64, px decimal.Decimal, remaining int64) {
	if e.handler == nil {
		return
	}
	e.handler(schema.OrderStatusEvent{
		OrderID:      id,
		Status:       status,
		Message:      msg,
		Instrument:   instr,
		FilledQty:    filled,
		FillPrice:    px,
		RemainingQty: remaining,
	})
}

func validate(req schema.OrderRequest) (string, bool) {
	switch {
	case req.Qty <= 0:
		return "invalid quantity", false
	case req.Direction != schema.DirectionBuy && req.Direction != schema.DirectionSell:
		return "invalid direction", false
	case req.Kind < schema.OrderKindLimit || req.Kind > schema.OrderKindFOK:
		return "invalid order kind", false
	case req.Instrument == "":
		return "empty instrument", false
	default:
		return "", true
	}
}
