package bar

import (
	"sort"
	"time"

	"simtrade/internal/schema"
)

const timestampLayout = "2006-01-02 15:04:05"

type accum struct {
	start time.Time
	bar   schema.Bar
}

// Rollup accumulates ticks into wall-clock OHLCV bars per instrument.
//
// The first tick of an instrument opens its bar without emitting. A tick arriving
// at least one interval after the bar opened emits the bar and opens the next one
// from that tick. Rollup is not safe for concurrent use.
type Rollup struct {
	interval time.Duration
	handler  schema.BarHandler
	acc      map[string]*accum
	now      func() time.Time
}

// NewRollup creates a rollup. Intervals below one second are raised to one second.
func NewRollup(interval time.Duration) *Rollup {
	if interval < time.Second {
		interval = time.Second
	}
	return &Rollup{
		interval: interval,
		acc:      make(map[string]*accum),
		now:      time.Now,
	}
}

// SetBarHandler installs the bar subscriber.
func (r *Rollup) SetBarHandler(h schema.BarHandler) {
	r.handler = h
}

// Interval returns the bar length.
func (r *Rollup) Interval() time.Duration {
	return r.interval
}

// OnTick folds a tick into its instrument's bar.
func (r *Rollup) OnTick(tick schema.Tick) {
	now := r.now()
	a, ok := r.acc[tick.Instrument]
	if !ok {
		a = &accum{}
		r.acc[tick.Instrument] = a
		a.reset(now, tick)
		return
	}
	if now.Sub(a.start) >= r.interval {
		r.emit(a.bar)
		a.reset(now, tick)
		return
	}
	px := tick.LastPrice
	a.bar.Close = px
	if px.GreaterThan(a.bar.High) {
		a.bar.High = px
	}
	if px.LessThan(a.bar.Low) {
		a.bar.Low = px
	}
	a.bar.Volume += tick.Volume
}

// Flush emits every open bar in instrument order. Bars stay open afterwards.
func (r *Rollup) Flush() {
	instruments := make([]string, 0, len(r.acc))
	for instr := range r.acc {
		instruments = append(instruments, instr)
	}
	sort.Strings(instruments)
	for _, instr := range instruments {
		r.emit(r.acc[instr].bar)
	}
}

func (r *Rollup) emit(b schema.Bar) {
	if r.handler != nil {
		r.handler(b)
	}
}

func (a *accum) reset(now time.Time, tick schema.Tick) {
	a.start = now
	a.bar = schema.Bar{
		Instrument: tick.Instrument,
		Open:       tick.LastPrice,
		High:       tick.LastPrice,
		Low:        tick.LastPrice,
		Close:      tick.LastPrice,
		Volume:     tick.Volume,
		Timestamp:  now.Format(timestampLayout),
	}
}
