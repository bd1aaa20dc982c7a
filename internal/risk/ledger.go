package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"simtrade/internal/obs"
	"simtrade/internal/schema"
	"simtrade/internal/state"
)

// Ledger gates order placement and keeps positions and PnL from status events.
//
// The pipeline drives it from one goroutine. The lock only lets other readers,
// such as a metrics scrape, see whole updates.
type Ledger struct {
	mu sync.RWMutex

	cfg         Config
	ordersInBar map[string]int
	lastOrderAt map[string]time.Time
	registered  map[string]schema.OrderRequest
	book        *state.Book

	metrics *obs.Metrics
	now     func() time.Time
}

// NewLedger creates a ledger with the given limits.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:         cfg,
		ordersInBar: make(map[string]int),
		lastOrderAt: make(map[string]time.Time),
		registered:  make(map[string]schema.OrderRequest),
		book:        state.NewBook(),
		now:         time.Now,
	}
}

// SetMetrics attaches pipeline metrics. nil disables them.
func (l *Ledger) SetMetrics(m *obs.Metrics) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = m
}

// SetConfig replaces the limits. Counters and positions are kept.
func (l *Ledger) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Config returns the active limits.
func (l *Ledger) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Gate decides whether req may be placed. It never changes ledger state.
func (l *Ledger) Gate(req schema.OrderRequest) schema.RiskDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	instr := req.Instrument
	decision := schema.RiskDecision{
		Instrument: instr,
		Action:     schema.RiskActionAllow,
		Reason:     schema.RiskReasonNone,
		CurrentPos: l.book.Position(instr),
		MaxPos:     l.cfg.MaxPosPerInstrument,
	}

	if l.ordersInBar[instr] >= l.cfg.MaxOrdersPerBar {
		return deny(decision, schema.RiskReasonMaxOrdersPerBar)
	}

	if last, ok := l.lastOrderAt[instr]; ok && l.now().Sub(last) < l.cfg.MinOrderInterval {
		return deny(decision, schema.RiskReasonOrderInterval)
	}

	if req.Offset == schema.OffsetOpen {
		// each opening order counts as one unit regardless of its quantity
		trial := decision.CurrentPos + req.Direction.Sign()
		if abs(trial) > l.cfg.MaxPosPerInstrument {
			return deny(decision, schema.RiskReasonPositionLimit)
		}
	}
	return decision
}

// OnOrderPlaced counts a placement against the bar and stamps its time.
func (l *Ledger) OnOrderPlaced(instr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ordersInBar[instr]++
	l.lastOrderAt[instr] = l.now()
}

// OnNewBar resets the instrument's per-bar order count.
func (l *Ledger) OnNewBar(instr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ordersInBar[instr] = 0
}

// Register binds an order id to its request so later fills can be booked.
func (l *Ledger) Register(orderID string, req schema.OrderRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered[orderID] = req
}

// OnStatus books fills of registered orders. Events for unknown ids are logged and dropped.
func (l *Ledger) OnStatus(ev schema.OrderStatusEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.registered[ev.OrderID]
	if !ok {
		logs.Warnf("[Risk] unmatched order_id=%s status=%s inst=%s", ev.OrderID, ev.Status, ev.Instrument)
		if ev.Status.IsFill() {
			l.metrics.IncUnmatchedFill()
		}
		return
	}

	if ev.Status.IsFill() && ev.FilledQty > 0 {
		switch req.Offset {
		case schema.OffsetOpen:
			l.book.ApplyOpen(req.Instrument, req.Direction, ev.FilledQty, ev.FillPrice)
		case schema.OffsetClose:
			used, _ := l.book.ApplyClose(req.Instrument, req.Direction, ev.FilledQty, ev.FillPrice)
			if used < ev.FilledQty {
				logs.Warnf("[Risk] close %s on %s exceeds open inventory: filled=%d used=%d",
					ev.OrderID, req.Instrument, ev.FilledQty, used)
			}
		}
	}

	if ev.Status.IsTerminal() {
		delete(l.registered, ev.OrderID)
	}
}

// OnMarketData records the last price and recomputes unrealized PnL.
func (l *Ledger) OnMarketData(tick schema.Tick) {
	if tick.Instrument == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.book.Mark(tick.Instrument, tick.LastPrice)
}

// Registered returns the number of orders awaiting a terminal status.
func (l *Ledger) Registered() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.registered)
}

// Position returns the net position of an instrument.
func (l *Ledger) Position(instr string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Position(instr)
}

// Positions returns a copy of the net positions.
func (l *Ledger) Positions() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Positions()
}

// PositionDetails returns a copy of the long and short legs.
func (l *Ledger) PositionDetails() map[string]state.PositionDetail {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Details()
}

// PnL returns a copy of the PnL records.
func (l *Ledger) PnL() map[string]state.PnL {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.PnLs()
}

// LastPrices returns a copy of the last marked prices.
func (l *Ledger) LastPrices() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.LastPrices()
}

// Snapshot returns a point in time view of the whole book.
func (l *Ledger) Snapshot() state.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.SnapshotAt(l.now())
}

// Gauges reports per-instrument readings for the metrics collector.
func (l *Ledger) Gauges() []obs.InstrumentGauge {
	snap := l.Snapshot()
	out := make([]obs.InstrumentGauge, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		out = append(out, obs.InstrumentGauge{
			Instrument:    p.Instrument,
			Position:      float64(p.Net),
			RealizedPnL:   p.RealizedPnL.InexactFloat64(),
			UnrealizedPnL: p.UnrealizedPnL.InexactFloat64(),
		})
	}
	return out
}

func deny(d schema.RiskDecision, reason schema.RiskReason) schema.RiskDecision {
	d.Action = schema.RiskActionDeny
	d.Reason = reason
	return d
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
