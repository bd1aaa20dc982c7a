package schema

import "github.com/shopspring/decimal"

// Tick is one top-of-book market data update for an instrument.
type Tick struct {
	Instrument string
	LastPrice  decimal.Decimal
	BidPrice   decimal.Decimal
	BidVolume  int64
	AskPrice   decimal.Decimal
	AskVolume  int64
	Volume     int64
	UpdateTime string
}

// AskLiquidity returns the volume buyers can take, zero when the ask side is empty.
func (t Tick) AskLiquidity() int64 {
	if !t.AskPrice.IsPositive() || t.AskVolume <= 0 {
		return 0
	}
	return t.AskVolume
}

// BidLiquidity returns the volume sellers can hit, zero when the bid side is empty.
func (t Tick) BidLiquidity() int64 {
	if !t.BidPrice.IsPositive() || t.BidVolume <= 0 {
		return 0
	}
	return t.BidVolume
}

// TickHandler receives market data ticks.
type TickHandler func(Tick)

// Bar is an OHLCV rollup of ticks over an interval.
type Bar struct {
	Instrument string
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     int64
	Timestamp  string
}

// BarHandler receives completed bars.
type BarHandler func(Bar)
