package risk

import (
	"time"

	"github.com/yanun0323/errors"

	"simtrade/pkg/exception"
)

// Config defines the pre-trade limits applied per instrument.
type Config struct {
	// MaxPosPerInstrument caps the absolute net position an opening order may lead to.
	MaxPosPerInstrument int64 `json:"maxPosPerInstrument" mapstructure:"max_pos_per_instrument"`
	// MaxOrdersPerBar caps placements between two bar boundaries.
	MaxOrdersPerBar int `json:"maxOrdersPerBar" mapstructure:"max_orders_per_bar"`
	// MinOrderInterval is the shortest allowed gap between two placements.
	MinOrderInterval time.Duration `json:"minOrderInterval" mapstructure:"min_order_interval"`
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxPosPerInstrument: 1,
		MaxOrdersPerBar:     1,
		MinOrderInterval:    500 * time.Millisecond,
	}
}

// Validate rejects negative limits.
func (c Config) Validate() error {
	if c.MaxPosPerInstrument < 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "max position per instrument %d", c.MaxPosPerInstrument)
	}
	if c.MaxOrdersPerBar < 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "max orders per bar %d", c.MaxOrdersPerBar)
	}
	if c.MinOrderInterval < 0 {
		return errors.Wrapf(exception.ErrConfigInvalid, "min order interval %s", c.MinOrderInterval)
	}
	return nil
}
