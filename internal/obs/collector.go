package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "simtrade"

// InstrumentGauge is a per-instrument reading exported as gauges.
type InstrumentGauge struct {
	Instrument    string
	Position      float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

// GaugeSource returns the current per-instrument readings.
type GaugeSource func() []InstrumentGauge

// Collector exports Metrics and ledger readings to Prometheus at scrape time.
type Collector struct {
	metrics *Metrics
	source  GaugeSource

	statusDesc     *prometheus.Desc
	rejectDesc     *prometheus.Desc
	unmatchedDesc  *prometheus.Desc
	ticksDesc      *prometheus.Desc
	dropsDesc      *prometheus.Desc
	tickAvgDesc    *prometheus.Desc
	positionDesc   *prometheus.Desc
	realizedDesc   *prometheus.Desc
	unrealizedDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector. source may be nil.
func NewCollector(m *Metrics, source GaugeSource) *Collector {
	return &Collector{
		metrics: m,
		source:  source,
		statusDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "order", "status_total"),
			"Order status events by status.", []string{"status"}, nil),
		rejectDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "risk", "reject_total"),
			"Orders rejected by the risk gate by reason.", []string{"reason"}, nil),
		unmatchedDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "risk", "unmatched_fill_total"),
			"Fill events dropped because the order id was never registered.", nil, nil),
		ticksDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "feed", "ticks_total"),
			"Ticks processed by the pipeline.", nil, nil),
		dropsDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "bus", "drops_total"),
			"Events dropped because the bus queue was full.", nil, nil),
		tickAvgDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "feed", "tick_latency_avg_seconds"),
			"Average time spent processing a tick.", nil, nil),
		positionDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "ledger", "position"),
			"Net position per instrument.", []string{"instrument"}, nil),
		realizedDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "ledger", "realized_pnl"),
			"Realized PnL per instrument.", []string{"instrument"}, nil),
		unrealizedDesc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "ledger", "unrealized_pnl"),
			"Unrealized PnL per instrument.", []string{"instrument"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.statusDesc
	ch <- c.rejectDesc
	ch <- c.unmatchedDesc
	ch <- c.ticksDesc
	ch <- c.dropsDesc
	ch <- c.tickAvgDesc
	ch <- c.positionDesc
	ch <- c.realizedDesc
	ch <- c.unrealizedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	for status, v := range snap.StatusCounts {
		ch <- prometheus.MustNewConstMetric(c.statusDesc, prometheus.CounterValue, float64(v), status.String())
	}
	for reason, v := range snap.RiskReasonCounts {
		ch <- prometheus.MustNewConstMetric(c.rejectDesc, prometheus.CounterValue, float64(v), reason.Label())
	}
	ch <- prometheus.MustNewConstMetric(c.unmatchedDesc, prometheus.CounterValue, float64(snap.UnmatchedFills))
	ch <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.CounterValue, float64(snap.Ticks))
	ch <- prometheus.MustNewConstMetric(c.dropsDesc, prometheus.CounterValue, float64(snap.QueueDrops))
	ch <- prometheus.MustNewConstMetric(c.tickAvgDesc, prometheus.GaugeValue, snap.TickLatency.Avg.Seconds())

	if c.source == nil {
		return
	}
	for _, g := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.positionDesc, prometheus.GaugeValue, g.Position, g.Instrument)
		ch <- prometheus.MustNewConstMetric(c.realizedDesc, prometheus.GaugeValue, g.RealizedPnL, g.Instrument)
		ch <- prometheus.MustNewConstMetric(c.unrealizedDesc, prometheus.GaugeValue, g.UnrealizedPnL, g.Instrument)
	}
}

// NewRegistry returns a registry with the collector registered.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return reg
}
