package instrument

import (
	"github.com/shopspring/decimal"
)

var (
	defaultTickSize   = decimal.NewFromInt(1)
	defaultMultiplier = int64(1)
)

// Meta holds per-instrument trading parameters.
type Meta struct {
	TickSize           decimal.Decimal
	ContractMultiplier int64
	// SlippageTicks overrides the global slippage when positive.
	SlippageTicks decimal.Decimal
}

// Rules holds engine-wide matching rules.
type Rules struct {
	GlobalSlippageTicks decimal.Decimal
	PartialFillEnabled  bool
}

// DefaultRules returns the rules used when none are configured.
func DefaultRules() Rules {
	return Rules{
		GlobalSlippageTicks: decimal.Zero,
		PartialFillEnabled:  true,
	}
}

// Catalog resolves trading parameters for instruments, falling back to defaults.
type Catalog struct {
	meta  map[string]Meta
	rules Rules
}

// NewCatalog creates a catalog with default rules and no instrument entries.
func NewCatalog() *Catalog {
	return &Catalog{
		meta:  make(map[string]Meta),
		rules: DefaultRules(),
	}
}

// Set stores the meta for an instrument, normalizing invalid fields to defaults.
func (c *Catalog) Set(instrument string, m Meta) {
	c.meta[instrument] = normalizeMeta(m)
}

// SetRules replaces the engine-wide rules.
func (c *Catalog) SetRules(r Rules) {
	if r.GlobalSlippageTicks.IsNegative() {
		r.GlobalSlippageTicks = decimal.Zero
	}
	c.rules = r
}

// Rules returns the engine-wide rules.
func (c *Catalog) Rules() Rules {
	return c.rules
}

// Meta returns the meta for an instrument and whether it was configured.
func (c *Catalog) Meta(instrument string) (Meta, bool) {
	m, ok := c.meta[instrument]
	if !ok {
		return Meta{TickSize: defaultTickSize, ContractMultiplier: defaultMultiplier, SlippageTicks: decimal.Zero}, false
	}
	return m, true
}

// TickSize returns the price quantization unit, 1 when unknown.
func (c *Catalog) TickSize(instrument string) decimal.Decimal {
	m, _ := c.Meta(instrument)
	return m.TickSize
}

// Multiplier returns the contract multiplier, 1 when unknown.
func (c *Catalog) Multiplier(instrument string) int64 {
	m, _ := c.Meta(instrument)
	return m.ContractMultiplier
}

// SlippageTicks returns the instrument override when positive, otherwise the global default.
func (c *Catalog) SlippageTicks(instrument string) decimal.Decimal {
	if m, ok := c.meta[instrument]; ok && m.SlippageTicks.IsPositive() {
		return m.SlippageTicks
	}
	return c.rules.GlobalSlippageTicks
}

// Slippage returns the slippage in price units: slippage ticks times tick size.
func (c *Catalog) Slippage(instrument string) decimal.Decimal {
	return c.SlippageTicks(instrument).Mul(c.TickSize(instrument))
}

// Len returns the number of configured instruments.
func (c *Catalog) Len() int {
	return len(c.meta)
}

// RoundToTick rounds price to the nearest multiple of tick, halves away from zero.
// A non-positive tick leaves the price untouched.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}

func normalizeMeta(m Meta) Meta {
	if !m.TickSize.IsPositive() {
		m.TickSize = defaultTickSize
	}
	if m.ContractMultiplier <= 0 {
		m.ContractMultiplier = defaultMultiplier
	}
	if m.SlippageTicks.IsNegative() {
		m.SlippageTicks = decimal.Zero
	}
	return m
}
