package og

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAccepted
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "Sent"
	case OrderStateAccepted:
		return "Accepted"
	case OrderStatePartFilled:
		return "PartFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCanceled:
		return "Canceled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Order holds the router's view of an order.
type Order struct {
	ID        string
	Request   schema.OrderRequest
	FilledQty int64
	LeavesQty int64
	// Notional is the sum of fill price times fill quantity.
	Notional decimal.Decimal
	State    OrderState
}

// AvgPrice returns the volume weighted fill price, zero before the first fill.
func (o Order) AvgPrice() decimal.Decimal {
	if o.FilledQty == 0 {
		return decimal.Zero
	}
	return o.Notional.Div(decimal.NewFromInt(o.FilledQty))
}

// StateMachine updates orders from status events.
type StateMachine struct {
	orders map[string]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[string]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id string) (Order, bool) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Track starts following an order in Sent state.
func (m *StateMachine) Track(id string, req schema.OrderRequest) {
	if id == "" {
		return
	}
	if _, ok := m.orders[id]; ok {
		return
	}
	m.orders[id] = &Order{
		ID:        id,
		Request:   req,
		LeavesQty: req.Qty,
		State:     OrderStateSent,
	}
}

// Open returns the ids of orders that have not reached a terminal state.
func (m *StateMachine) Open() []string {
	out := make([]string, 0, len(m.orders))
	for id, o := range m.orders {
		if !isTerminal(o.State) {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of tracked orders.
func (m *StateMachine) Len() int {
	return len(m.orders)
}

// ApplyStatus updates an order from a status event.
func (m *StateMachine) ApplyStatus(ev schema.OrderStatusEvent) (Order, error) {
	o, ok := m.orders[ev.OrderID]
	if !ok {
		return Order{}, errors.Wrapf(exception.ErrOrderNotFound, "order %s", ev.OrderID)
	}
	if isTerminal(o.State) {
		return *o, errors.Wrapf(exception.ErrOrderUnknownState, "order %s is %s, got %s", o.ID, o.State, ev.Status)
	}

	switch ev.Status {
	case schema.StatusAccepted:
		o.State = OrderStateAccepted
	case schema.StatusPartiallyFilled, schema.StatusFilled:
		if o.FilledQty+ev.FilledQty > o.Request.Qty {
			return *o, errors.Wrapf(exception.ErrOrderOverfill, "order %s filled %d of %d, got %d",
				o.ID, o.FilledQty, o.Request.Qty, ev.FilledQty)
		}
		o.FilledQty += ev.FilledQty
		o.Notional = o.Notional.Add(ev.FillPrice.Mul(decimal.NewFromInt(ev.FilledQty)))
		o.State = OrderStatePartFilled
		if ev.Status == schema.StatusFilled {
			o.State = OrderStateFilled
		}
	case schema.StatusCanceled:
		o.State = OrderStateCanceled
	case schema.StatusRejected:
		o.State = OrderStateRejected
	default:
		return *o, errors.Wrapf(exception.ErrOrderUnknownState, "order %s got %s", o.ID, ev.Status)
	}

	if ev.RemainingQty != schema.UnknownRemaining {
		o.LeavesQty = ev.RemainingQty
	}
	if isTerminal(o.State) {
		o.LeavesQty = 0
	}
	return *o, nil
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}
