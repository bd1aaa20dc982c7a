package feed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

type sliceSource []schema.Tick

func (s sliceSource) Run(ctx context.Context, emit schema.TickHandler) error {
	for _, tk := range s {
		emit(tk)
	}
	return nil
}

func numbered(n int) sliceSource {
	out := make(sliceSource, n)
	for i := range out {
		out[i] = schema.Tick{Instrument: "X", LastPrice: decimal.NewFromInt(int64(i))}
	}
	return out
}

func TestChaosValidate(t *testing.T) {
	_, err := NewChaos(nil, ChaosConfig{})
	require.ErrorIs(t, err, exception.ErrFeedNilSource)
	_, err = NewChaos(numbered(1), ChaosConfig{DropRate: 2})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	_, err = NewChaos(numbered(1), ChaosConfig{ReorderWindow: -1})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	assert.False(t, ChaosConfig{ReorderWindow: 1}.Enabled())
}

func TestChaosPassThrough(t *testing.T) {
	c, err := NewChaos(numbered(5), ChaosConfig{})
	require.NoError(t, err)
	got := collect(t, c)
	require.Len(t, got, 5)
	for i, tk := range got {
		assert.True(t, tk.LastPrice.Equal(decimal.NewFromInt(int64(i))))
	}
}

func TestChaosDropAndDuplicate(t *testing.T) {
	c, err := NewChaos(numbered(10), ChaosConfig{DropRate: 1})
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))

	c, err = NewChaos(numbered(10), ChaosConfig{DuplicateRate: 1})
	require.NoError(t, err)
	assert.Len(t, collect(t, c), 20)
}

func TestChaosReorderKeepsEveryTick(t *testing.T) {
	c, err := NewChaos(numbered(20), ChaosConfig{Seed: 3, ReorderWindow: 4})
	require.NoError(t, err)
	got := collect(t, c)
	require.Len(t, got, 20)

	seen := make(map[int64]bool)
	for _, tk := range got {
		seen[tk.LastPrice.IntPart()] = true
	}
	assert.Len(t, seen, 20)

	again, err := NewChaos(numbered(20), ChaosConfig{Seed: 3, ReorderWindow: 4})
	require.NoError(t, err)
	replay := collect(t, again)
	for i := range got {
		assert.True(t, got[i].LastPrice.Equal(replay[i].LastPrice), "same seed, same order")
	}
}
