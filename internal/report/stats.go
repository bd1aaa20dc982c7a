package report

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"simtrade/internal/schema"
)

// MultiplierSource resolves contract multipliers for turnover.
type MultiplierSource interface {
	Multiplier(instrument string) int64
}

// SummaryRow aggregates the fills of one instrument.
type SummaryRow struct {
	Instrument string
	TotalQty   int64
	AvgPrice   decimal.Decimal
	// Turnover is the filled notional times the contract multiplier.
	Turnover decimal.Decimal
}

type fillAgg struct {
	qty      int64
	notional decimal.Decimal
}

// TradeStats accumulates filled quantity and notional per instrument.
type TradeStats struct {
	mu    sync.Mutex
	fills map[string]*fillAgg
}

func NewTradeStats() *TradeStats {
	return &TradeStats{fills: make(map[string]*fillAgg)}
}

// OnStatus counts fill events with a positive quantity and a known instrument.
func (s *TradeStats) OnStatus(ev schema.OrderStatusEvent) {
	if !ev.Status.IsFill() || ev.FilledQty <= 0 || ev.Instrument == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.fills[ev.Instrument]
	if !ok {
		agg = &fillAgg{}
		s.fills[ev.Instrument] = agg
	}
	agg.qty += ev.FilledQty
	agg.notional = agg.notional.Add(ev.FillPrice.Mul(decimal.NewFromInt(ev.FilledQty)))
}

// Summary returns one row per traded instrument in instrument order.
// A nil multipliers source counts every contract as one unit.
func (s *TradeStats) Summary(multipliers MultiplierSource) []SummaryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]SummaryRow, 0, len(s.fills))
	for instr, agg := range s.fills {
		row := SummaryRow{Instrument: instr, TotalQty: agg.qty, AvgPrice: decimal.Zero}
		if agg.qty > 0 {
			row.AvgPrice = agg.notional.Div(decimal.NewFromInt(agg.qty))
		}
		mult := int64(1)
		if multipliers != nil {
			mult = multipliers.Multiplier(instr)
		}
		row.Turnover = agg.notional.Mul(decimal.NewFromInt(mult))
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Instrument < rows[j].Instrument })
	return rows
}
