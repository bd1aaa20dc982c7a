package instrument

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/pkg/exception"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCatalogDefaults(t *testing.T) {
	c := NewCatalog()

	assert.True(t, c.TickSize("X").Equal(d("1")))
	assert.Equal(t, int64(1), c.Multiplier("X"))
	assert.True(t, c.SlippageTicks("X").IsZero())
	assert.True(t, c.Rules().PartialFillEnabled)
	_, ok := c.Meta("X")
	assert.False(t, ok)
}

func TestCatalogSlippageOverride(t *testing.T) {
	c := NewCatalog()
	c.SetRules(Rules{GlobalSlippageTicks: d("2"), PartialFillEnabled: true})
	c.Set("IF", Meta{TickSize: d("0.2"), ContractMultiplier: 300, SlippageTicks: d("1")})
	c.Set("RB", Meta{TickSize: d("1")})

	assert.True(t, c.Slippage("IF").Equal(d("0.2")), "instrument override wins")
	assert.True(t, c.Slippage("RB").Equal(d("2")), "zero override falls back to global")
	assert.True(t, c.Slippage("unknown").Equal(d("2")), "unknown instrument uses global with tick 1")
}

func TestCatalogNormalizesInvalidMeta(t *testing.T) {
	c := NewCatalog()
	c.Set("BAD", Meta{TickSize: d("-1"), ContractMultiplier: 0, SlippageTicks: d("-3")})

	m, ok := c.Meta("BAD")
	require.True(t, ok)
	assert.True(t, m.TickSize.Equal(d("1")))
	assert.Equal(t, int64(1), m.ContractMultiplier)
	assert.True(t, m.SlippageTicks.IsZero())
}

func TestRoundToTick(t *testing.T) {
	cases := []struct {
		price, tick, want string
	}{
		{"100.3", "0.2", "100.4"},
		{"100.1", "0.2", "100.2"},
		{"100.29", "0.2", "100.2"},
		{"99.5", "1", "100"},
		{"-0.5", "1", "-1"},
		{"3912.6", "0.2", "3912.6"},
		{"7", "0", "7"},
	}
	for _, tc := range cases {
		got := RoundToTick(d(tc.price), d(tc.tick))
		assert.Truef(t, got.Equal(d(tc.want)), "round %s to %s: got %s want %s", tc.price, tc.tick, got, tc.want)
	}
}

func TestRoundToTickIdempotent(t *testing.T) {
	ticks := []string{"0.01", "0.2", "0.5", "1", "5"}
	for _, tick := range ticks {
		step := d(tick)
		for i := int64(-50); i <= 50; i++ {
			aligned := step.Mul(decimal.NewFromInt(i))
			got := RoundToTick(aligned, step)
			require.Truef(t, got.Equal(aligned), "tick %s value %s rounded to %s", tick, aligned, got)
		}
	}
}

func TestDecodeMetaSkipsMalformedEntries(t *testing.T) {
	c := NewCatalog()
	data := []byte(`[
		{"instrument":"IF2401","tick_size":0.2,"contract_multiplier":300,"slippage_tick":0.5},
		{"instrument":"rb2410","tick_size":"1"},
		{"instrument":"","tick_size":1},
		{"instrument":"bad","tick_size":"abc"}
	]`)

	n, err := DecodeMeta(c, data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, ok := c.Meta("IF2401")
	require.True(t, ok)
	assert.True(t, m.TickSize.Equal(d("0.2")))
	assert.Equal(t, int64(300), m.ContractMultiplier)
	assert.True(t, m.SlippageTicks.Equal(d("0.5")))

	m, ok = c.Meta("rb2410")
	require.True(t, ok)
	assert.Equal(t, int64(1), m.ContractMultiplier)

	_, ok = c.Meta("bad")
	assert.False(t, ok)
}

func TestDecodeMetaRejectsGarbage(t *testing.T) {
	_, err := DecodeMeta(NewCatalog(), []byte(`{not json`))
	require.ErrorIs(t, err, exception.ErrConfigDecode)
}

func TestDecodeRules(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, DecodeRules(c, []byte(`{"slippage_tick":1.5,"partial_fill":false}`)))
	assert.True(t, c.Rules().GlobalSlippageTicks.Equal(d("1.5")))
	assert.False(t, c.Rules().PartialFillEnabled)

	require.NoError(t, DecodeRules(c, []byte(`{}`)))
	assert.True(t, c.Rules().PartialFillEnabled, "missing key resets to default")
	assert.True(t, c.Rules().GlobalSlippageTicks.IsZero())
}

func TestConfigureFallsBackOnMissingFiles(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rules, []byte(`{"partial_fill":false}`), 0o644))

	c := NewCatalog()
	Configure(c, filepath.Join(dir, "missing.json"), rules)

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Rules().PartialFillEnabled)
}
