package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"simtrade/internal/schema"
)

const (
	syntheticLow   = 100.0
	syntheticHigh  = 500.0
	syntheticDepth = 10
	syntheticTime  = "stub"
)

// Synthetic emits uniformly random quotes for every instrument once per round.
// A fixed seed yields the same tick sequence on every run.
type Synthetic struct {
	instruments []string
	rounds      int
	interval    time.Duration
	rng         *rand.Rand
	clock       Clock
}

// NewSynthetic creates a synthetic source of rounds rounds spaced by interval.
// A non-positive rounds runs until ctx is done.
func NewSynthetic(instruments []string, rounds int, interval time.Duration, seed int64) *Synthetic {
	return &Synthetic{
		instruments: append([]string(nil), instruments...),
		rounds:      rounds,
		interval:    interval,
		rng:         rand.New(rand.NewSource(seed)),
		clock:       realClock{},
	}
}

// WithClock swaps the pacing clock.
func (s *Synthetic) WithClock(clock Clock) *Synthetic {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Synthetic) Run(ctx context.Context, emit schema.TickHandler) error {
	for round := 0; s.rounds <= 0 || round < s.rounds; round++ {
		for _, instr := range s.instruments {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(s.next(instr))
		}
		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthetic) next(instr string) schema.Tick {
	last := decimal.NewFromFloat(s.uniform()).Round(2)
	return schema.Tick{
		Instrument: instr,
		LastPrice:  last,
		BidPrice:   last.Sub(halfSpread),
		BidVolume:  1 + s.rng.Int63n(syntheticDepth),
		AskPrice:   last.Add(halfSpread),
		AskVolume:  1 + s.rng.Int63n(syntheticDepth),
		Volume:     int64(s.uniform()),
		UpdateTime: syntheticTime,
	}
}

func (s *Synthetic) uniform() float64 {
	return syntheticLow + s.rng.Float64()*(syntheticHigh-syntheticLow)
}
