// Package report writes the end-of-run CSV reports and the streaming trade log.
package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/internal/schema"
	"simtrade/internal/state"
)

const (
	TradeLogFile        = "trade_log.csv"
	TradeSummaryFile    = "trade_summary.csv"
	PositionsFile       = "positions.csv"
	PositionsDetailFile = "positions_detail.csv"
	PnLFile             = "pnl.csv"

	fallbackLayout = "20060102_150405"
)

var (
	tradeLogHeader        = []string{"order_id", "status", "instrument", "filled_qty", "fill_price", "remaining_qty", "message"}
	tradeSummaryHeader    = []string{"instrument", "total_qty", "avg_price", "turnover"}
	positionsHeader       = []string{"instrument", "net_pos"}
	positionsDetailHeader = []string{"instrument", "long_pos", "short_pos", "net_pos"}
	pnlHeader             = []string{"instrument", "realized_pnl", "unrealized_pnl", "long_open_qty", "long_avg_cost", "short_open_qty", "short_avg_cost"}
)

// PositionSource is the ledger view the reports are built from.
type PositionSource interface {
	Positions() map[string]int64
	PositionDetails() map[string]state.PositionDetail
	PnL() map[string]state.PnL
}

// TradeLog appends every status event to trade_log.csv as it happens.
type TradeLog struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// OpenTradeLog creates dir if needed and truncates the trade log in it.
func OpenTradeLog(dir string) (*TradeLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create report dir %s", dir)
	}
	path := filepath.Join(dir, TradeLogFile)
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	w := csv.NewWriter(file)
	if err := w.Write(tradeLogHeader); err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "write %s header", path)
	}
	return &TradeLog{file: file, w: w}, nil
}

// Write appends one event. A nil log discards it.
func (l *TradeLog) Write(ev schema.OrderStatusEvent) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write([]string{
		ev.OrderID,
		ev.Status.String(),
		ev.Instrument,
		itoa(ev.FilledQty),
		ev.FillPrice.String(),
		itoa(ev.RemainingQty),
		ev.Message,
	}); err != nil {
		return errors.Wrap(err, "write trade log")
	}
	return nil
}

// Close flushes and closes the file.
func (l *TradeLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.file.Close()
		return errors.Wrap(err, "flush trade log")
	}
	if err := l.file.Close(); err != nil {
		return errors.Wrap(err, "close trade log")
	}
	return nil
}

// Writer produces the end-of-run reports in a directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the report directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteAll writes the summary, positions, positions detail and PnL reports.
func (w *Writer) WriteAll(summary []SummaryRow, src PositionSource) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create report dir %s", w.dir)
	}
	if err := w.WriteSummary(summary); err != nil {
		return err
	}
	if err := w.WritePositions(src.Positions()); err != nil {
		return err
	}
	if err := w.WritePositionsDetail(src.PositionDetails()); err != nil {
		return err
	}
	_, err := w.WritePnL(src.PnL())
	return err
}

func (w *Writer) WriteSummary(rows []SummaryRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Instrument,
			itoa(row.TotalQty),
			row.AvgPrice.String(),
			row.Turnover.String(),
		})
	}
	return writeCSV(filepath.Join(w.dir, TradeSummaryFile), tradeSummaryHeader, records)
}

func (w *Writer) WritePositions(positions map[string]int64) error {
	records := make([][]string, 0, len(positions))
	for _, instr := range sortedKeys(positions) {
		records = append(records, []string{instr, itoa(positions[instr])})
	}
	return writeCSV(filepath.Join(w.dir, PositionsFile), positionsHeader, records)
}

func (w *Writer) WritePositionsDetail(details map[string]state.PositionDetail) error {
	records := make([][]string, 0, len(details))
	for _, instr := range sortedKeys(details) {
		d := details[instr]
		records = append(records, []string{instr, itoa(d.Long), itoa(d.Short), itoa(d.Net())})
	}
	return writeCSV(filepath.Join(w.dir, PositionsDetailFile), positionsDetailHeader, records)
}

// WritePnL writes pnl.csv, or pnl_YYYYmmdd_HHMMSS.csv when pnl.csv cannot be
// created, and returns the path written.
func (w *Writer) WritePnL(pnl map[string]state.PnL) (string, error) {
	records := make([][]string, 0, len(pnl))
	for _, instr := range sortedKeys(pnl) {
		p := pnl[instr]
		records = append(records, []string{
			instr,
			p.RealizedPnL.String(),
			p.UnrealizedPnL.String(),
			itoa(p.LongOpenQty),
			p.AvgLongCost().String(),
			itoa(p.ShortOpenQty),
			p.AvgShortCost().String(),
		})
	}

	path := filepath.Join(w.dir, PnLFile)
	err := writeCSV(path, pnlHeader, records)
	if err == nil {
		return path, nil
	}
	fallback := filepath.Join(w.dir, "pnl_"+w.now().Format(fallbackLayout)+".csv")
	if fbErr := writeCSV(fallback, pnlHeader, records); fbErr != nil {
		return "", errors.Wrapf(fbErr, "write pnl fallback after %v", err)
	}
	logs.Warnf("[Report] %s open failed; wrote fallback %s, err: %+v", path, fallback, err)
	return fallback, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := w.WriteAll(records); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

