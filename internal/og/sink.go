package og

import "simtrade/internal/schema"

// OrderSink accepts orders and reports their lifecycle through a single status handler.
type OrderSink interface {
	Place(req schema.OrderRequest) string
	Cancel(orderID string) bool
	SetStatusHandler(h schema.StatusHandler)
}

// TickConsumer is implemented by sinks that match against market data, such as a backtest engine.
type TickConsumer interface {
	OnTick(tick schema.Tick)
}

// AsTickConsumer returns the sink's market data role when it has one.
func AsTickConsumer(sink OrderSink) (TickConsumer, bool) {
	if sink == nil {
		return nil, false
	}
	tc, ok := sink.(TickConsumer)
	return tc, ok
}

// Ledger is the risk collaborator of the router.
type Ledger interface {
	Gate(req schema.OrderRequest) schema.RiskDecision
	OnOrderPlaced(instrument string)
	Register(orderID string, req schema.OrderRequest)
	OnStatus(ev schema.OrderStatusEvent)
}
