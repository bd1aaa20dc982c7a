package state

import (
	"sort"

	"github.com/shopspring/decimal"

	"simtrade/internal/schema"
)

// PositionDetail splits an instrument's position into its long and short legs.
type PositionDetail struct {
	Long  int64
	Short int64
}

// Net returns long minus short.
func (d PositionDetail) Net() int64 {
	return d.Long - d.Short
}

// PnL tracks open inventory at cost and the instrument's profit and loss.
type PnL struct {
	LongOpenQty   int64
	LongCostSum   decimal.Decimal
	ShortOpenQty  int64
	ShortCostSum  decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// AvgLongCost returns the weighted average cost of open long inventory.
func (p PnL) AvgLongCost() decimal.Decimal {
	return avgCost(p.LongCostSum, p.LongOpenQty)
}

// AvgShortCost returns the weighted average cost of open short inventory.
func (p PnL) AvgShortCost() decimal.Decimal {
	return avgCost(p.ShortCostSum, p.ShortOpenQty)
}

func avgCost(sum decimal.Decimal, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(qty))
}

// Book holds positions, open inventory and PnL per instrument.
//
// Net position is derived from the long and short legs, so the two can never disagree.
// Book is not safe for concurrent use.
type Book struct {
	detail map[string]PositionDetail
	pnl    map[string]PnL
	last   map[string]decimal.Decimal
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		detail: make(map[string]PositionDetail),
		pnl:    make(map[string]PnL),
		last:   make(map[string]decimal.Decimal),
	}
}

// ApplyOpen adds qty at price to the inventory on dir's side.
func (b *Book) ApplyOpen(instr string, dir schema.Direction, qty int64, price decimal.Decimal) {
	if qty <= 0 {
		return
	}
	d := b.detail[instr]
	p := b.pnl[instr]
	cost := price.Mul(decimal.NewFromInt(qty))
	switch dir {
	case schema.DirectionBuy:
		d.Long += qty
		p.LongOpenQty += qty
		p.LongCostSum = p.LongCostSum.Add(cost)
	case schema.DirectionSell:
		d.Short += qty
		p.ShortOpenQty += qty
		p.ShortCostSum = p.ShortCostSum.Add(cost)
	default:
		return
	}
	b.detail[instr] = d
	b.pnl[instr] = p
}

// ApplyClose offsets the opposite inventory at its weighted average cost. A buy
// closes shorts and a sell closes longs. Only the open quantity can be closed;
// any excess fill is ignored. It returns the quantity used and the PnL realized.
func (b *Book) ApplyClose(instr string, dir schema.Direction, qty int64, price decimal.Decimal) (int64, decimal.Decimal) {
	if qty <= 0 {
		return 0, decimal.Zero
	}
	d := b.detail[instr]
	p := b.pnl[instr]

	var used int64
	var realized decimal.Decimal
	switch dir {
	case schema.DirectionBuy:
		avg := p.AvgShortCost()
		used = min(qty, max(p.ShortOpenQty, 0))
		realized = avg.Sub(price).Mul(decimal.NewFromInt(used))
		p.ShortOpenQty -= used
		p.ShortCostSum = reduceCost(p.ShortCostSum, avg, used, p.ShortOpenQty)
		d.Short = max(d.Short-used, 0)
	case schema.DirectionSell:
		avg := p.AvgLongCost()
		used = min(qty, max(p.LongOpenQty, 0))
		realized = price.Sub(avg).Mul(decimal.NewFromInt(used))
		p.LongOpenQty -= used
		p.LongCostSum = reduceCost(p.LongCostSum, avg, used, p.LongOpenQty)
		d.Long = max(d.Long-used, 0)
	default:
		return 0, decimal.Zero
	}
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	b.detail[instr] = d
	b.pnl[instr] = p
	return used, realized
}

func reduceCost(sum, avg decimal.Decimal, used, remaining int64) decimal.Decimal {
	if remaining <= 0 {
		return decimal.Zero
	}
	next := sum.Sub(avg.Mul(decimal.NewFromInt(used)))
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// Mark records the last price and recomputes unrealized PnL from scratch.
func (b *Book) Mark(instr string, last decimal.Decimal) {
	b.last[instr] = last
	p, ok := b.pnl[instr]
	if !ok {
		return
	}
	long := last.Sub(p.AvgLongCost()).Mul(decimal.NewFromInt(max(p.LongOpenQty, 0)))
	short := p.AvgShortCost().Sub(last).Mul(decimal.NewFromInt(max(p.ShortOpenQty, 0)))
	p.UnrealizedPnL = long.Add(short)
	b.pnl[instr] = p
}

// Position returns the net position of an instrument.
func (b *Book) Position(instr string) int64 {
	return b.detail[instr].Net()
}

// Detail returns the long and short legs of an instrument.
func (b *Book) Detail(instr string) PositionDetail {
	return b.detail[instr]
}

// PnL returns the PnL record of an instrument.
func (b *Book) PnL(instr string) PnL {
	return b.pnl[instr]
}

// LastPrice returns the last marked price of an instrument.
func (b *Book) LastPrice(instr string) (decimal.Decimal, bool) {
	px, ok := b.last[instr]
	return px, ok
}

// Positions returns a copy of the net positions.
func (b *Book) Positions() map[string]int64 {
	out := make(map[string]int64, len(b.detail))
	for instr, d := range b.detail {
		out[instr] = d.Net()
	}
	return out
}

// Details returns a copy of the position legs.
func (b *Book) Details() map[string]PositionDetail {
	out := make(map[string]PositionDetail, len(b.detail))
	for instr, d := range b.detail {
		out[instr] = d
	}
	return out
}

// PnLs returns a copy of the PnL records.
func (b *Book) PnLs() map[string]PnL {
	out := make(map[string]PnL, len(b.pnl))
	for instr, p := range b.pnl {
		out[instr] = p
	}
	return out
}

// LastPrices returns a copy of the marked prices.
func (b *Book) LastPrices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.last))
	for instr, px := range b.last {
		out[instr] = px
	}
	return out
}

// Instruments returns every instrument with a position or PnL record, sorted.
func (b *Book) Instruments() []string {
	seen := make(map[string]struct{}, len(b.detail)+len(b.pnl))
	for instr := range b.detail {
		seen[instr] = struct{}{}
	}
	for instr := range b.pnl {
		seen[instr] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for instr := range seen {
		out = append(out, instr)
	}
	sort.Strings(out)
	return out
}
