package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/matching"
	"simtrade/internal/obs"
	"simtrade/internal/og"
	"simtrade/internal/schema"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLedger(cfg Config) (*Ledger, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := NewLedger(cfg)
	l.now = clock.now
	return l, clock
}

func open(dir schema.Direction) schema.OrderRequest {
	return schema.OrderRequest{
		Instrument: "X",
		Direction:  dir,
		Offset:     schema.OffsetOpen,
		Kind:       schema.OrderKindLimit,
		Price:      decimal.NewFromInt(100),
		Qty:        1,
	}
}

func closeReq(dir schema.Direction, qty int64) schema.OrderRequest {
	r := open(dir)
	r.Offset = schema.OffsetClose
	r.Qty = qty
	return r
}

func fill(id string, status schema.Status, qty int64, px string) schema.OrderStatusEvent {
	return schema.OrderStatusEvent{
		OrderID:    id,
		Status:     status,
		Instrument: "X",
		FilledQty:  qty,
		FillPrice:  decimal.RequireFromString(px),
	}
}

func TestPositionCapThroughRouter(t *testing.T) {
	ledger := NewLedger(Config{MaxPosPerInstrument: 1, MaxOrdersPerBar: 10})
	engine := matching.NewEngine(nil)
	router, err := og.NewRouter(engine, ledger)
	require.NoError(t, err)

	var got []schema.OrderStatusEvent
	router.SetStatusHandler(func(ev schema.OrderStatusEvent) { got = append(got, ev) })

	router.OnTick(schema.Tick{
		Instrument: "X", LastPrice: decimal.NewFromInt(100),
		BidPrice: decimal.NewFromInt(99), BidVolume: 10,
		AskPrice: decimal.NewFromInt(100), AskVolume: 10,
	})

	first := router.Place(open(schema.DirectionBuy))
	assert.Equal(t, "BT_1", first)
	assert.Equal(t, int64(1), ledger.Position("X"))

	got = nil
	second := router.Place(open(schema.DirectionBuy))
	require.Len(t, got, 1)
	assert.Equal(t, second, got[0].OrderID)
	assert.Equal(t, schema.StatusRejected, got[0].Status)
	assert.Equal(t, "exceeded max position per instrument", got[0].Message)
	assert.Equal(t, int64(1), ledger.Position("X"))
	assert.Zero(t, ledger.Registered(), "terminal orders release their registration")
}

func TestGateOrder(t *testing.T) {
	l, clock := newTestLedger(Config{MaxPosPerInstrument: 0, MaxOrdersPerBar: 1, MinOrderInterval: time.Second})

	d := l.Gate(open(schema.DirectionBuy))
	assert.Equal(t, schema.RiskReasonPositionLimit, d.Reason)
	assert.True(t, l.Gate(closeReq(schema.DirectionSell, 1)).Allowed(), "close orders are never position capped")

	l.OnOrderPlaced("X")
	assert.Equal(t, schema.RiskReasonMaxOrdersPerBar, l.Gate(closeReq(schema.DirectionSell, 1)).Reason)

	l.OnNewBar("X")
	assert.Equal(t, schema.RiskReasonOrderInterval, l.Gate(closeReq(schema.DirectionSell, 1)).Reason)

	clock.advance(time.Second)
	assert.True(t, l.Gate(closeReq(schema.DirectionSell, 1)).Allowed())
	assert.Equal(t, schema.RiskReasonPositionLimit, l.Gate(open(schema.DirectionSell)).Reason)
}

func TestGateIsDeterministic(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	req := open(schema.DirectionBuy)
	first := l.Gate(req)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, l.Gate(req))
	}
	assert.True(t, first.Allowed())
	assert.Equal(t, int64(1), first.MaxPos)
}

func TestOpenThenCloseBooksPnL(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	l.Register("A", open(schema.DirectionBuy))
	l.OnStatus(fill("A", schema.StatusFilled, 1, "100"))
	l.Register("B", open(schema.DirectionBuy))
	l.OnStatus(fill("B", schema.StatusFilled, 1, "104"))

	l.OnMarketData(schema.Tick{Instrument: "X", LastPrice: decimal.NewFromInt(110)})
	p := l.PnL()["X"]
	assert.True(t, p.UnrealizedPnL.Equal(decimal.NewFromInt(16)), "unrealized %s", p.UnrealizedPnL)

	l.Register("C", closeReq(schema.DirectionSell, 2))
	l.OnStatus(fill("C", schema.StatusPartiallyFilled, 1, "112"))
	assert.Equal(t, 1, l.Registered(), "partial fill keeps the registration")
	l.OnStatus(fill("C", schema.StatusFilled, 1, "112"))

	p = l.PnL()["X"]
	assert.True(t, p.RealizedPnL.Equal(decimal.NewFromInt(20)), "realized %s", p.RealizedPnL)
	assert.Zero(t, p.LongOpenQty)
	assert.True(t, p.LongCostSum.IsZero())
	assert.Equal(t, int64(0), l.Position("X"))
	assert.Equal(t, int64(0), l.PositionDetails()["X"].Long)

	l.OnMarketData(schema.Tick{Instrument: "X", LastPrice: decimal.NewFromInt(50)})
	assert.True(t, l.PnL()["X"].UnrealizedPnL.IsZero())
	assert.Zero(t, l.Registered())
}

func TestCloseBeyondInventoryIsCapped(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	l.Register("S", open(schema.DirectionSell))
	l.OnStatus(fill("S", schema.StatusFilled, 1, "50"))
	assert.Equal(t, int64(-1), l.Position("X"))

	l.Register("C", closeReq(schema.DirectionBuy, 3))
	l.OnStatus(fill("C", schema.StatusFilled, 3, "40"))

	assert.Equal(t, int64(0), l.Position("X"))
	d := l.PositionDetails()["X"]
	assert.Equal(t, d.Long-d.Short, l.Position("X"))
	assert.True(t, l.PnL()["X"].RealizedPnL.Equal(decimal.NewFromInt(10)))
}

func TestUnmatchedFillIsDropped(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	m := obs.NewMetrics()
	l.SetMetrics(m)

	l.OnStatus(fill("ghost", schema.StatusFilled, 5, "10"))
	assert.Empty(t, l.Positions())
	assert.Empty(t, l.PnL())
	assert.Equal(t, uint64(1), m.Snapshot().UnmatchedFills)
}

func TestNonFillStatusesOnlyRelease(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	l.Register("A", open(schema.DirectionBuy))
	l.OnStatus(schema.OrderStatusEvent{OrderID: "A", Status: schema.StatusAccepted, RemainingQty: 1})
	assert.Equal(t, 1, l.Registered())
	l.OnStatus(schema.OrderStatusEvent{OrderID: "A", Status: schema.StatusCanceled, RemainingQty: 1})
	assert.Zero(t, l.Registered())
	assert.Empty(t, l.Positions())
}

func TestSetConfigKeepsCounters(t *testing.T) {
	l, _ := newTestLedger(Config{MaxPosPerInstrument: 5, MaxOrdersPerBar: 1})
	l.OnOrderPlaced("X")
	l.SetConfig(Config{MaxPosPerInstrument: 5, MaxOrdersPerBar: 2})
	assert.Equal(t, 2, l.Config().MaxOrdersPerBar)
	assert.True(t, l.Gate(open(schema.DirectionBuy)).Allowed())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{MaxOrdersPerBar: -1}.Validate())
	require.Error(t, Config{MinOrderInterval: -time.Second}.Validate())
}

func TestGauges(t *testing.T) {
	l, _ := newTestLedger(DefaultConfig())
	l.Register("A", open(schema.DirectionBuy))
	l.OnStatus(fill("A", schema.StatusFilled, 1, "100"))
	g := l.Gauges()
	require.Len(t, g, 1)
	assert.Equal(t, "X", g[0].Instrument)
	assert.Equal(t, float64(1), g[0].Position)
}
