// Package strategy holds the bar-driven trading strategies run by the backtest pipeline.
package strategy

import "simtrade/internal/schema"

// Placer submits orders on behalf of a strategy and returns the order id.
type Placer interface {
	Place(req schema.OrderRequest) string
}

// Strategy reacts to market data and order updates. All callbacks run on the
// feed goroutine.
type Strategy interface {
	OnTick(tick schema.Tick)
	OnBar(bar schema.Bar, placer Placer)
	OnStatus(ev schema.OrderStatusEvent)
}
