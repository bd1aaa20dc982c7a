package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/schema"
	"simtrade/internal/state"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

type multipliers map[string]int64

func (m multipliers) Multiplier(instr string) int64 {
	if v, ok := m[instr]; ok {
		return v
	}
	return 1
}

func filled(instr string, qty int64, px string) schema.OrderStatusEvent {
	return schema.OrderStatusEvent{
		OrderID: "BT_1", Status: schema.StatusFilled, Instrument: instr,
		FilledQty: qty, FillPrice: decimal.RequireFromString(px),
	}
}

func TestTradeStatsSummary(t *testing.T) {
	s := NewTradeStats()
	s.OnStatus(filled("IF2411", 1, "3500"))
	s.OnStatus(filled("IF2411", 3, "3504"))
	s.OnStatus(filled("rb2410", 2, "3600"))
	s.OnStatus(schema.OrderStatusEvent{Status: schema.StatusAccepted, Instrument: "IF2411", RemainingQty: 1})
	s.OnStatus(filled("", 5, "1"))
	s.OnStatus(filled("rb2410", 0, "1"))

	rows := s.Summary(multipliers{"IF2411": 300})
	require.Len(t, rows, 2)
	assert.Equal(t, "IF2411", rows[0].Instrument)
	assert.Equal(t, int64(4), rows[0].TotalQty)
	assert.True(t, rows[0].AvgPrice.Equal(decimal.NewFromInt(3503)), "avg %s", rows[0].AvgPrice)
	assert.True(t, rows[0].Turnover.Equal(decimal.NewFromInt(14012*300)))
	assert.True(t, rows[1].Turnover.Equal(decimal.NewFromInt(7200)))

	rows = s.Summary(nil)
	assert.True(t, rows[0].Turnover.Equal(decimal.NewFromInt(14012)))
}

func TestTradeLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	log, err := OpenTradeLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.Write(schema.OrderStatusEvent{
		OrderID: "BT_1", Status: schema.StatusPartiallyFilled, Instrument: "X",
		FilledQty: 2, FillPrice: decimal.RequireFromString("100.5"), RemainingQty: 1, Message: "px=100.5,qty=2",
	}))
	require.NoError(t, log.Close())

	records := readCSV(t, filepath.Join(dir, TradeLogFile))
	require.Len(t, records, 2)
	assert.Equal(t, tradeLogHeader, records[0])
	assert.Equal(t, []string{"BT_1", "PartiallyFilled", "X", "2", "100.5", "1", "px=100.5,qty=2"}, records[1])

	var nilLog *TradeLog
	require.NoError(t, nilLog.Write(schema.OrderStatusEvent{}))
	require.NoError(t, nilLog.Close())
}

type fakeSource struct{}

func (fakeSource) Positions() map[string]int64 {
	return map[string]int64{"B": -1, "A": 2}
}

func (fakeSource) PositionDetails() map[string]state.PositionDetail {
	return map[string]state.PositionDetail{"A": {Long: 3, Short: 1}}
}

func (fakeSource) PnL() map[string]state.PnL {
	return map[string]state.PnL{"A": {
		LongOpenQty:   2,
		LongCostSum:   decimal.NewFromInt(204),
		RealizedPnL:   decimal.NewFromInt(20),
		UnrealizedPnL: decimal.NewFromInt(16),
	}}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewWriter(dir)
	require.NoError(t, w.WriteAll([]SummaryRow{{
		Instrument: "A", TotalQty: 2, AvgPrice: decimal.NewFromInt(102), Turnover: decimal.NewFromInt(204),
	}}, fakeSource{}))

	assert.Equal(t, [][]string{tradeSummaryHeader, {"A", "2", "102", "204"}}, readCSV(t, filepath.Join(dir, TradeSummaryFile)))
	assert.Equal(t, [][]string{positionsHeader, {"A", "2"}, {"B", "-1"}}, readCSV(t, filepath.Join(dir, PositionsFile)))
	assert.Equal(t, [][]string{positionsDetailHeader, {"A", "3", "1", "2"}}, readCSV(t, filepath.Join(dir, PositionsDetailFile)))
	assert.Equal(t, [][]string{pnlHeader, {"A", "20", "16", "2", "102", "0", "0"}}, readCSV(t, filepath.Join(dir, PnLFile)))
}

func TestWritePnLFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, PnLFile), 0o755))

	w := NewWriter(dir)
	w.now = func() time.Time { return time.Date(2024, 10, 8, 15, 4, 5, 0, time.Local) }
	path, err := w.WritePnL(fakeSource{}.PnL())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pnl_20241008_150405.csv"), path)
	assert.Len(t, readCSV(t, path), 2)
}
