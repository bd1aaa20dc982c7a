package feed

import (
	"context"
	"math/rand"

	"github.com/yanun0323/errors"

	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

// ChaosConfig perturbs a tick stream to stress the pipeline with lossy,
// duplicated or out of order market data.
type ChaosConfig struct {
	Seed          int64   `mapstructure:"seed"`
	DropRate      float64 `mapstructure:"drop_rate"`
	DuplicateRate float64 `mapstructure:"duplicate_rate"`
	// ReorderWindow buffers that many ticks and releases them in random order.
	ReorderWindow int `mapstructure:"reorder_window"`
}

// Enabled reports whether the config changes the stream at all.
func (c ChaosConfig) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.ReorderWindow > 1
}

func (c ChaosConfig) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Wrapf(exception.ErrInvalidArgument, "drop rate %v", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.Wrapf(exception.ErrInvalidArgument, "duplicate rate %v", c.DuplicateRate)
	}
	if c.ReorderWindow < 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "reorder window %d", c.ReorderWindow)
	}
	return nil
}

// Chaos wraps a source and applies seeded drop, duplicate and reorder rules to its ticks.
type Chaos struct {
	source  Source
	cfg     ChaosConfig
	rng     *rand.Rand
	pending []schema.Tick
}

func NewChaos(source Source, cfg ChaosConfig) (*Chaos, error) {
	if source == nil {
		return nil, exception.ErrFeedNilSource
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow < 1 {
		cfg.ReorderWindow = 1
	}
	return &Chaos{
		source: source,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (c *Chaos) Run(ctx context.Context, emit schema.TickHandler) error {
	c.pending = c.pending[:0]
	err := c.source.Run(ctx, func(tick schema.Tick) {
		c.process(tick, emit)
	})
	if err == nil {
		c.flush(emit)
	}
	return err
}

func (c *Chaos) process(tick schema.Tick, emit schema.TickHandler) {
	if c.cfg.DropRate > 0 && c.rng.Float64() < c.cfg.DropRate {
		return
	}
	if c.cfg.ReorderWindow <= 1 {
		c.duplicate(tick, emit)
		return
	}
	c.pending = append(c.pending, tick)
	if len(c.pending) < c.cfg.ReorderWindow {
		return
	}
	c.duplicate(c.take(), emit)
}

func (c *Chaos) flush(emit schema.TickHandler) {
	for len(c.pending) > 0 {
		c.duplicate(c.take(), emit)
	}
}

func (c *Chaos) take() schema.Tick {
	idx := c.rng.Intn(len(c.pending))
	tick := c.pending[idx]
	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	return tick
}

func (c *Chaos) duplicate(tick schema.Tick, emit schema.TickHandler) {
	emit(tick)
	if c.cfg.DuplicateRate > 0 && c.rng.Float64() < c.cfg.DuplicateRate {
		emit(tick)
	}
}
