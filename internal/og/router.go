package og

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/internal/obs"
	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

type awaitingEntry struct {
	req      schema.OrderRequest
	consumed bool
}

// Router gates placements through the risk ledger before they reach the sink and
// binds sink order ids to their requests as Accepted events arrive.
//
// A sink may emit Accepted and fills synchronously inside Place, ahead of the
// returned id. Requests wait in arrival order and each Accepted consumes the
// front one, so the ledger knows an order before it sees that order's fills.
type Router struct {
	sink     OrderSink
	ledger   Ledger
	handler  schema.StatusHandler
	awaiting []*awaitingEntry
	rejects  *obs.Sequence
	orders   *StateMachine
	metrics  *obs.Metrics
	now      func() time.Time
}

// NewRouter wraps sink with the ledger's gate and takes over the sink's status handler.
func NewRouter(sink OrderSink, ledger Ledger) (*Router, error) {
	if sink == nil {
		return nil, errors.Wrap(exception.ErrOrderNilSink, "new router")
	}
	if ledger == nil {
		return nil, errors.Wrap(exception.ErrOrderNilLedger, "new router")
	}
	r := &Router{
		sink:    sink,
		ledger:  ledger,
		rejects: obs.NewSequence(0),
		orders:  NewStateMachine(),
		now:     time.Now,
	}
	sink.SetStatusHandler(r.onSinkStatus)
	return r, nil
}

// SetMetrics attaches pipeline metrics. nil disables them.
func (r *Router) SetMetrics(m *obs.Metrics) {
	r.metrics = m
}

// SetStatusHandler installs the single downstream subscriber; the last registration wins.
func (r *Router) SetStatusHandler(h schema.StatusHandler) {
	r.handler = h
}

// Place gates the request and forwards it to the sink. Rejected requests get a
// local REJECT_ id and never reach the sink.
func (r *Router) Place(req schema.OrderRequest) string {
	start := r.now()
	decision := r.ledger.Gate(req)
	r.metrics.ObserveRiskEval(r.now().Sub(start))
	if !decision.Allowed() {
		id := fmt.Sprintf("REJECT_%s_%d", req.Instrument, r.rejects.Next())
		r.metrics.IncRiskReason(decision.Reason)
		logs.Infof("risk reject %s %s %s qty=%d: %s", req.Instrument, req.Direction, req.Offset, req.Qty, decision.Reason)
		r.emit(schema.OrderStatusEvent{
			OrderID:      id,
			Status:       schema.StatusRejected,
			Message:      decision.Reason.String(),
			Instrument:   req.Instrument,
			FillPrice:    decimal.Zero,
			RemainingQty: schema.UnknownRemaining,
		})
		return id
	}

	entry := &awaitingEntry{req: req}
	r.awaiting = append(r.awaiting, entry)
	id := r.sink.Place(req)
	r.ledger.OnOrderPlaced(req.Instrument)
	if !entry.consumed {
		// the sink answered asynchronously or not at all; bind by the returned id
		r.withdraw(entry)
		r.ledger.Register(id, req)
		r.orders.Track(id, req)
	}
	r.metrics.ObservePlace(r.now().Sub(start))
	return id
}

// Cancel passes through to the sink.
func (r *Router) Cancel(orderID string) bool {
	return r.sink.Cancel(orderID)
}

// CancelOpen cancels every order the router still sees as working and returns how many the sink accepted.
func (r *Router) CancelOpen() int {
	n := 0
	for _, id := range r.orders.Open() {
		if r.sink.Cancel(id) {
			n++
		}
	}
	return n
}

// OnTick forwards market data to the sink when it consumes ticks.
func (r *Router) OnTick(tick schema.Tick) {
	if tc, ok := AsTickConsumer(r.sink); ok {
		tc.OnTick(tick)
	}
}

// Order returns the router's view of an order.
func (r *Router) Order(id string) (Order, bool) {
	return r.orders.Order(id)
}

// Awaiting returns the number of placements whose Accepted has not arrived yet.
func (r *Router) Awaiting() int {
	return len(r.awaiting)
}

func (r *Router) onSinkStatus(ev schema.OrderStatusEvent) {
	if ev.Status == schema.StatusAccepted && len(r.awaiting) > 0 {
		entry := r.awaiting[0]
		r.awaiting[0] = nil
		r.awaiting = r.awaiting[1:]
		entry.consumed = true
		r.ledger.Register(ev.OrderID, entry.req)
		r.orders.Track(ev.OrderID, entry.req)
	}
	r.ledger.OnStatus(ev)
	if _, err := r.orders.ApplyStatus(ev); err != nil {
		logs.Warnf("order state %s: %+v", ev.OrderID, err)
	}
	r.emit(ev)
}

func (r *Router) withdraw(entry *awaitingEntry) {
	for i, e := range r.awaiting {
		if e == entry {
			r.awaiting = append(r.awaiting[:i:i], r.awaiting[i+1:]...)
			return
		}
	}
}

func (r *Router) emit(ev schema.OrderStatusEvent) {
	r.metrics.ObserveStatus(ev)
	if r.handler != nil {
		r.handler(ev)
	}
}
