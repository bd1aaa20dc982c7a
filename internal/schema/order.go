package schema

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Direction describes order direction.
type Direction uint16

const (
	DirectionUnknown Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "Buy"
	case DirectionSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() int64 {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	default:
		return 0
	}
}

// Offset tells whether an order opens or closes a directional position.
type Offset uint16

const (
	OffsetUnknown Offset = iota
	OffsetOpen
	OffsetClose
)

func (o Offset) String() string {
	switch o {
	case OffsetOpen:
		return "Open"
	case OffsetClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// OrderKind describes the execution style. IOC and FOK are limit priced.
type OrderKind uint16

const (
	OrderKindUnknown OrderKind = iota
	OrderKindLimit
	OrderKindMarket
	OrderKindIOC
	OrderKindFOK
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindLimit:
		return "Limit"
	case OrderKindMarket:
		return "Market"
	case OrderKindIOC:
		return "IOC"
	case OrderKindFOK:
		return "FOK"
	default:
		return "Unknown"
	}
}

// ParseOrderKind maps the wire form back to an OrderKind.
func ParseOrderKind(s string) (OrderKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT":
		return OrderKindLimit, true
	case "MARKET":
		return OrderKindMarket, true
	case "IOC":
		return OrderKindIOC, true
	case "FOK":
		return OrderKindFOK, true
	default:
		return OrderKindUnknown, false
	}
}

// OrderRequest is an immutable order submission.
type OrderRequest struct {
	Instrument string
	Direction  Direction
	Offset     Offset
	Kind       OrderKind
	// Price is ignored for market orders.
	Price decimal.Decimal
	Qty   int64
}

// IsBuy reports whether the request buys.
func (r OrderRequest) IsBuy() bool {
	return r.Direction == DirectionBuy
}
