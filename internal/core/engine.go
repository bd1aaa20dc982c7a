package core

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/internal/bar"
	"simtrade/internal/bus"
	"simtrade/internal/feed"
	"simtrade/internal/instrument"
	"simtrade/internal/matching"
	"simtrade/internal/obs"
	"simtrade/internal/og"
	"simtrade/internal/report"
	"simtrade/internal/risk"
	"simtrade/internal/schema"
	"simtrade/internal/strategy"
	"simtrade/pkg/exception"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics attaches pipeline metrics to the engine, router and ledger.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTradeLog streams every status event to a trade log.
func WithTradeLog(l *report.TradeLog) Option {
	return func(e *Engine) { e.tradeLog = l }
}

// WithPublisher forwards status events and ledger snapshots to the event bus.
// Snapshots are published every interval; a non-positive interval publishes only the final one.
func WithPublisher(p *bus.Publisher, interval time.Duration) Option {
	return func(e *Engine) {
		e.publisher = p
		e.snapshotInterval = interval
	}
}

// Engine wires a tick source through strategy, matching, risk and bar rollup.
type Engine struct {
	ledger   *risk.Ledger
	strategy strategy.Strategy
	matcher  *matching.Engine
	router   *og.Router
	rollup   *bar.Rollup
	worker   *feed.Worker
	stats    *report.TradeStats

	metrics          *obs.Metrics
	tradeLog         *report.TradeLog
	publisher        *bus.Publisher
	snapshotInterval time.Duration
}

// New builds the pipeline. catalog may be nil for default instrument parameters.
func New(catalog *instrument.Catalog, ledger *risk.Ledger, source feed.Source, strat strategy.Strategy, barInterval time.Duration, opts ...Option) (*Engine, error) {
	if ledger == nil || strat == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "new core engine")
	}

	e := &Engine{
		ledger:   ledger,
		strategy: strat,
		matcher:  matching.NewEngine(catalog),
		rollup:   bar.NewRollup(barInterval),
		stats:    report.NewTradeStats(),
	}
	for _, opt := range opts {
		opt(e)
	}

	router, err := og.NewRouter(e.matcher, ledger)
	if err != nil {
		return nil, errors.Wrap(err, "new router")
	}
	e.router = router
	e.router.SetMetrics(e.metrics)
	e.router.SetStatusHandler(e.onStatus)
	e.ledger.SetMetrics(e.metrics)
	e.rollup.SetBarHandler(e.onBar)

	worker, err := feed.NewWorker(source, e.onTick)
	if err != nil {
		return nil, errors.Wrap(err, "new feed worker")
	}
	e.worker = worker
	return e, nil
}

// Router returns the order router strategies place through.
func (e *Engine) Router() *og.Router {
	return e.router
}

// Matcher returns the backtest matching engine.
func (e *Engine) Matcher() *matching.Engine {
	return e.matcher
}

// Ledger returns the risk ledger.
func (e *Engine) Ledger() *risk.Ledger {
	return e.ledger
}

// Stats returns the fill statistics.
func (e *Engine) Stats() *report.TradeStats {
	return e.stats
}

// Run drives the feed until runFor elapses, the feed is exhausted or ctx is done.
// A non-positive runFor waits for the feed alone. Orders still resting afterwards
// are canceled. The returned error is the feed's, if it failed.
func (e *Engine) Run(ctx context.Context, runFor time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := e.worker.Start(runCtx); err != nil {
		return errors.Wrap(err, "start feed")
	}
	snapshotsDone := e.startSnapshots(runCtx)

	var deadline <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-runCtx.Done():
	case <-deadline:
		logs.Infof("[Engine] run time %s elapsed", runFor)
	case <-e.worker.Done():
		logs.Infof("[Engine] feed finished")
	}

	e.worker.Stop()
	cancel()
	<-snapshotsDone

	if n := e.router.CancelOpen(); n > 0 {
		logs.Infof("[Engine] canceled %d resting orders", n)
	}
	e.publishSnapshot()
	return e.worker.Err()
}

func (e *Engine) startSnapshots(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if e.publisher == nil || e.snapshotInterval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(e.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.publishSnapshot()
			}
		}
	}()
	return done
}

func (e *Engine) publishSnapshot() {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishSnapshot(e.ledger.Snapshot()); err != nil {
		logs.Warnf("[Engine] publish snapshot, err: %+v", err)
	}
}

func (e *Engine) onTick(tick schema.Tick) {
	start := time.Now()
	e.strategy.OnTick(tick)
	e.router.OnTick(tick)
	e.ledger.OnMarketData(tick)
	e.rollup.OnTick(tick)
	e.metrics.ObserveTick(time.Since(start))
}

func (e *Engine) onBar(b schema.Bar) {
	e.ledger.OnNewBar(b.Instrument)
	e.strategy.OnBar(b, e.router)
}

func (e *Engine) onStatus(ev schema.OrderStatusEvent) {
	logs.Infof("[OrderStatus] %s", ev)
	e.stats.OnStatus(ev)
	if err := e.tradeLog.Write(ev); err != nil {
		logs.Errorf("[Engine] trade log, err: %+v", err)
	}
	e.strategy.OnStatus(ev)
	// drops are counted by the publisher
	_ = e.publisher.PublishStatus(ev)
}
