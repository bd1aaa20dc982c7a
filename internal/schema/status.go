package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnknownRemaining marks an event whose remaining quantity is not applicable.
const UnknownRemaining int64 = -1

// Status is the lifecycle state carried by an order status event.
type Status uint16

const (
	StatusUnknown Status = iota
	StatusAccepted
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

var statusNames = [...]string{
	StatusUnknown:         "Unknown",
	StatusAccepted:        "Accepted",
	StatusPartiallyFilled: "PartiallyFilled",
	StatusFilled:          "Filled",
	StatusCanceled:        "Canceled",
	StatusRejected:        "Rejected",
}

// String returns the wire form used by reports and persistence.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return statusNames[StatusUnknown]
}

// ParseStatus maps the wire form back to a Status.
func ParseStatus(s string) (Status, bool) {
	for i, name := range statusNames {
		if i != int(StatusUnknown) && name == s {
			return Status(i), true
		}
	}
	return StatusUnknown, false
}

// IsFill reports whether the status carries a fill.
func (s Status) IsFill() bool {
	return s == StatusPartiallyFilled || s == StatusFilled
}

// IsTerminal reports whether no further events follow for the order.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// OrderStatusEvent is an append-only order lifecycle notification.
// FilledQty and FillPrice describe this event only, never a cumulative total.
type OrderStatusEvent struct {
	OrderID      string
	Status       Status
	Message      string
	Instrument   string
	FilledQty    int64
	FillPrice    decimal.Decimal
	RemainingQty int64
}

func (e OrderStatusEvent) String() string {
	return fmt.Sprintf("id=%s status=%s inst=%s qty=%d px=%s remaining=%d msg=%s",
		e.OrderID, e.Status, e.Instrument, e.FilledQty, e.FillPrice.String(), e.RemainingQty, e.Message)
}

// StatusHandler receives order status events.
type StatusHandler func(OrderStatusEvent)
