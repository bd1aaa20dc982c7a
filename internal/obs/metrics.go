package obs

import (
	"sync/atomic"
	"time"

	"simtrade/internal/schema"
)

const (
	maxStatus     = int(schema.StatusRejected)
	maxRiskReason = int(schema.RiskReasonPositionLimit)
)

// Metrics collects lightweight counters and latency stats for the trading pipeline.
type Metrics struct {
	statusCounts     [maxStatus + 1]uint64
	riskReasonCounts [maxRiskReason + 1]uint64
	unmatchedFills   uint64
	ticks            uint64
	queueDrops       uint64
	queueClosed      uint64

	tickLatency     LatencyStats
	placeLatency    LatencyStats
	riskEvalLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	StatusCounts     map[schema.Status]uint64
	RiskReasonCounts map[schema.RiskReason]uint64
	UnmatchedFills   uint64
	Ticks            uint64
	QueueDrops       uint64
	QueueClosed      uint64
	TickLatency      LatencySnapshot
	PlaceLatency     LatencySnapshot
	RiskEvalLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveStatus counts an order status event.
func (m *Metrics) ObserveStatus(ev schema.OrderStatusEvent) {
	if m == nil {
		return
	}
	idx := int(ev.Status)
	if idx >= 0 && idx < len(m.statusCounts) {
		atomic.AddUint64(&m.statusCounts[idx], 1)
	}
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncUnmatchedFill records a fill dropped for lack of registration.
func (m *Metrics) IncUnmatchedFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.unmatchedFills, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveTick counts a tick and measures how long the pipeline spent on it.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
	m.tickLatency.Observe(d)
}

// ObservePlace measures order placement latency, matching included.
func (m *Metrics) ObservePlace(d time.Duration) {
	if m == nil {
		return
	}
	m.placeLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	statusCounts := make(map[schema.Status]uint64)
	for i := range m.statusCounts {
		if v := atomic.LoadUint64(&m.statusCounts[i]); v > 0 {
			statusCounts[schema.Status(i)] = v
		}
	}
	riskCounts := make(map[schema.RiskReason]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[schema.RiskReason(i)] = v
		}
	}
	return Snapshot{
		StatusCounts:     statusCounts,
		RiskReasonCounts: riskCounts,
		UnmatchedFills:   atomic.LoadUint64(&m.unmatchedFills),
		Ticks:            atomic.LoadUint64(&m.ticks),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		TickLatency:      m.tickLatency.Snapshot(),
		PlaceLatency:     m.placeLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
