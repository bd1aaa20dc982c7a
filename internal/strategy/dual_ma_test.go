package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/schema"
)

type recordingPlacer struct {
	reqs []schema.OrderRequest
}

func (p *recordingPlacer) Place(req schema.OrderRequest) string {
	p.reqs = append(p.reqs, req)
	return "id"
}

func bar(instr string, close int64) schema.Bar {
	return schema.Bar{Instrument: instr, Close: decimal.NewFromInt(close)}
}

func TestNewDualMAWindows(t *testing.T) {
	fast, slow := NewDualMA(0, 0, decimal.Zero).Windows()
	assert.Equal(t, 1, fast)
	assert.Equal(t, 2, slow)

	fast, slow = NewDualMA(3, 3, decimal.Zero).Windows()
	assert.Equal(t, 3, fast)
	assert.Equal(t, 3, slow)
}

func TestDualMAWaitsForSlowWindow(t *testing.T) {
	s := NewDualMA(1, 3, decimal.Zero)
	p := &recordingPlacer{}
	s.OnBar(bar("X", 10), p)
	s.OnBar(bar("X", 11), p)
	assert.Empty(t, p.reqs)
	s.OnBar(bar("X", 12), p)
	require.Len(t, p.reqs, 1)
}

func TestDualMACrossovers(t *testing.T) {
	s := NewDualMA(1, 2, decimal.RequireFromString("0.5"))
	p := &recordingPlacer{}

	s.OnBar(bar("X", 10), p)
	s.OnBar(bar("X", 12), p)
	require.Len(t, p.reqs, 1)
	buy := p.reqs[0]
	assert.Equal(t, schema.DirectionBuy, buy.Direction)
	assert.Equal(t, schema.OffsetOpen, buy.Offset)
	assert.Equal(t, schema.OrderKindLimit, buy.Kind)
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(1), buy.Qty)
	assert.Equal(t, 1, s.Lean("X"))

	s.OnBar(bar("X", 13), p)
	assert.Len(t, p.reqs, 1, "already long")

	s.OnBar(bar("X", 11), p)
	require.Len(t, p.reqs, 2)
	sell := p.reqs[1]
	assert.Equal(t, schema.DirectionSell, sell.Direction)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, 0, s.Lean("X"))

	s.OnBar(bar("X", 10), p)
	require.Len(t, p.reqs, 3)
	assert.Equal(t, -1, s.Lean("X"))

	s.OnBar(bar("X", 10), p)
	assert.Len(t, p.reqs, 3, "flat averages do nothing")
}

func TestDualMAInstrumentsAreIndependent(t *testing.T) {
	s := NewDualMA(1, 2, decimal.Zero)
	p := &recordingPlacer{}
	s.OnBar(bar("A", 10), p)
	s.OnBar(bar("B", 20), p)
	assert.Empty(t, p.reqs)
	s.OnBar(bar("A", 9), p)
	require.Len(t, p.reqs, 1)
	assert.Equal(t, "A", p.reqs[0].Instrument)
	assert.Equal(t, schema.DirectionSell, p.reqs[0].Direction)
}
