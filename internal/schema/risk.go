package schema

// RiskAction is the outcome of a risk decision.
type RiskAction uint16

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is a coarse reason code for risk decisions.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonMaxOrdersPerBar
	RiskReasonOrderInterval
	RiskReasonPositionLimit
)

// String returns the human readable rejection reason carried by Rejected events.
func (r RiskReason) String() string {
	switch r {
	case RiskReasonMaxOrdersPerBar:
		return "exceeded max orders per bar"
	case RiskReasonOrderInterval:
		return "order interval too short"
	case RiskReasonPositionLimit:
		return "exceeded max position per instrument"
	default:
		return "none"
	}
}

// Label returns a short metric label for the reason.
func (r RiskReason) Label() string {
	switch r {
	case RiskReasonMaxOrdersPerBar:
		return "max_orders_per_bar"
	case RiskReasonOrderInterval:
		return "order_interval"
	case RiskReasonPositionLimit:
		return "position_limit"
	default:
		return "none"
	}
}

// RiskDecision is the result of gating an order request.
type RiskDecision struct {
	Instrument string
	Action     RiskAction
	Reason     RiskReason
	CurrentPos int64
	MaxPos     int64
}

// Allowed reports whether the order may be placed.
func (d RiskDecision) Allowed() bool {
	return d.Action == RiskActionAllow
}
