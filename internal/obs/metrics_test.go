package obs

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/schema"
)

func TestIDGeneratorIsPerInstance(t *testing.T) {
	a := NewIDGenerator("BT_")
	b := NewIDGenerator("BT_")

	assert.Equal(t, "BT_1", a.Next())
	assert.Equal(t, "BT_2", a.Next())
	assert.Equal(t, "BT_1", b.Next(), "generators must not share a counter")
}

func TestNilSequence(t *testing.T) {
	var s *Sequence
	assert.Equal(t, uint64(0), s.Next())
	assert.Equal(t, uint64(0), s.Last())
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveStatus(schema.OrderStatusEvent{Status: schema.StatusAccepted})
	m.ObserveStatus(schema.OrderStatusEvent{Status: schema.StatusFilled})
	m.ObserveStatus(schema.OrderStatusEvent{Status: schema.StatusFilled})
	m.IncRiskReason(schema.RiskReasonPositionLimit)
	m.IncUnmatchedFill()
	m.ObserveTick(2 * time.Millisecond)
	m.ObserveTick(4 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.StatusCounts[schema.StatusAccepted])
	assert.Equal(t, uint64(2), snap.StatusCounts[schema.StatusFilled])
	assert.Equal(t, uint64(1), snap.RiskReasonCounts[schema.RiskReasonPositionLimit])
	assert.Equal(t, uint64(1), snap.UnmatchedFills)
	assert.Equal(t, uint64(2), snap.Ticks)
	assert.Equal(t, 2*time.Millisecond, snap.TickLatency.Min)
	assert.Equal(t, 4*time.Millisecond, snap.TickLatency.Max)
	assert.Equal(t, 3*time.Millisecond, snap.TickLatency.Avg)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStatus(schema.OrderStatusEvent{Status: schema.StatusFilled})
	m.IncQueueDrop()
	assert.Empty(t, m.Snapshot().StatusCounts)
}

func TestCollectorExports(t *testing.T) {
	m := NewMetrics()
	m.ObserveStatus(schema.OrderStatusEvent{Status: schema.StatusRejected})
	m.IncRiskReason(schema.RiskReasonOrderInterval)

	c := NewCollector(m, func() []InstrumentGauge {
		return []InstrumentGauge{{Instrument: "X", Position: 2, RealizedPnL: 10, UnrealizedPnL: -1.5}}
	})
	reg := NewRegistry(c)

	expected := `
# HELP simtrade_ledger_position Net position per instrument.
# TYPE simtrade_ledger_position gauge
simtrade_ledger_position{instrument="X"} 2
# HELP simtrade_risk_reject_total Orders rejected by the risk gate by reason.
# TYPE simtrade_risk_reject_total counter
simtrade_risk_reject_total{reason="order_interval"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"simtrade_ledger_position", "simtrade_risk_reject_total")
	require.NoError(t, err)
}
