package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"simtrade/internal/schema"
)

// DualMA crosses a fast and a slow moving average of bar closes.
//
// Once slow bars are buffered, a fast average above the slow one opens a long
// unless the strategy already leans long, and a fast average below opens a
// short unless it already leans short. Orders are single-lot limits priced
// threshold through the close. The lean counts submissions, not fills.
type DualMA struct {
	fast      int
	slow      int
	threshold decimal.Decimal
	closes    map[string][]decimal.Decimal
	lean      map[string]int
}

// NewDualMA creates the strategy. fast is at least 1 and slow at least fast.
func NewDualMA(fast, slow int, threshold decimal.Decimal) *DualMA {
	if fast < 1 {
		fast = 1
	}
	if slow < fast {
		slow = fast + 1
	}
	return &DualMA{
		fast:      fast,
		slow:      slow,
		threshold: threshold,
		closes:    make(map[string][]decimal.Decimal),
		lean:      make(map[string]int),
	}
}

// Windows returns the fast and slow window lengths in use.
func (s *DualMA) Windows() (fast, slow int) {
	return s.fast, s.slow
}

// Lean returns the submitted long minus short count for instr.
func (s *DualMA) Lean(instr string) int {
	return s.lean[instr]
}

func (s *DualMA) OnTick(schema.Tick) {}

func (s *DualMA) OnBar(bar schema.Bar, placer Placer) {
	closes := append(s.closes[bar.Instrument], bar.Close)
	if len(closes) > s.slow {
		closes = closes[len(closes)-s.slow:]
	}
	s.closes[bar.Instrument] = closes
	if len(closes) < s.slow || placer == nil {
		return
	}

	fastMA := average(closes, s.fast)
	slowMA := average(closes, s.slow)
	lean := s.lean[bar.Instrument]
	switch {
	case fastMA.GreaterThan(slowMA) && lean <= 0:
		placer.Place(s.order(bar, schema.DirectionBuy, bar.Close.Add(s.threshold)))
		s.lean[bar.Instrument] = lean + 1
	case fastMA.LessThan(slowMA) && lean >= 0:
		placer.Place(s.order(bar, schema.DirectionSell, bar.Close.Sub(s.threshold)))
		s.lean[bar.Instrument] = lean - 1
	}
}

func (s *DualMA) OnStatus(ev schema.OrderStatusEvent) {
	logs.Infof("[Strategy] order %s status=%s instrument=%s qty=%d px=%s remaining=%d msg=%s",
		ev.OrderID, ev.Status, ev.Instrument, ev.FilledQty, ev.FillPrice, ev.RemainingQty, ev.Message)
}

func (s *DualMA) order(bar schema.Bar, dir schema.Direction, price decimal.Decimal) schema.OrderRequest {
	return schema.OrderRequest{
		Instrument: bar.Instrument,
		Direction:  dir,
		Offset:     schema.OffsetOpen,
		Kind:       schema.OrderKindLimit,
		Price:      price,
		Qty:        1,
	}
}

func average(closes []decimal.Decimal, n int) decimal.Decimal {
	if n > len(closes) {
		n = len(closes)
	}
	if n == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range closes[len(closes)-n:] {
		sum = sum.Add(c)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
