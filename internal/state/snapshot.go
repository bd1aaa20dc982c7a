package state

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Snapshot captures the book at a point in time.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	RunID     string          `json:"runId,omitempty"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is a single instrument's position and PnL.
type PositionEntry struct {
	Instrument    string          `json:"instrument"`
	Net           int64           `json:"net"`
	Long          int64           `json:"long"`
	Short         int64           `json:"short"`
	LongOpenQty   int64           `json:"longOpenQty"`
	LongAvgCost   decimal.Decimal `json:"longAvgCost"`
	ShortOpenQty  int64           `json:"shortOpenQty"`
	ShortAvgCost  decimal.Decimal `json:"shortAvgCost"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	LastPrice     decimal.Decimal `json:"lastPrice"`
}

// Snapshot builds a snapshot from the current book.
func (b *Book) Snapshot() Snapshot {
	return b.SnapshotAt(time.Now())
}

// SnapshotAt builds a snapshot stamped with ts.
func (b *Book) SnapshotAt(ts time.Time) Snapshot {
	instruments := b.Instruments()
	entries := make([]PositionEntry, 0, len(instruments))
	for _, instr := range instruments {
		d := b.detail[instr]
		p := b.pnl[instr]
		entries = append(entries, PositionEntry{
			Instrument:    instr,
			Net:           d.Net(),
			Long:          d.Long,
			Short:         d.Short,
			LongOpenQty:   p.LongOpenQty,
			LongAvgCost:   p.AvgLongCost(),
			ShortOpenQty:  p.ShortOpenQty,
			ShortAvgCost:  p.AvgShortCost(),
			RealizedPnL:   p.RealizedPnL,
			UnrealizedPnL: p.UnrealizedPnL,
			LastPrice:     b.last[instr],
		})
	}
	return Snapshot{
		Timestamp: ts.UTC().UnixNano(),
		Positions: entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "read snapshot %s", path)
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrapf(err, "decode snapshot %s", path)
	}
	return snap, nil
}

// CompareSnapshots checks that two snapshots hold the same positions and PnL.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return errors.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.Instrument] = entry
	}
	actualEntries := append([]PositionEntry(nil), actual.Positions...)
	sort.Slice(actualEntries, func(i, j int) bool {
		return actualEntries[i].Instrument < actualEntries[j].Instrument
	})
	for _, entry := range actualEntries {
		want, ok := expectedMap[entry.Instrument]
		if !ok {
			return errors.Errorf("snapshot missing instrument: %s", entry.Instrument)
		}
		if want.Net != entry.Net || want.Long != entry.Long || want.Short != entry.Short {
			return errors.Errorf("snapshot position mismatch: instrument=%s expected=%d/%d/%d actual=%d/%d/%d",
				entry.Instrument, want.Net, want.Long, want.Short, entry.Net, entry.Long, entry.Short)
		}
		if !want.RealizedPnL.Equal(entry.RealizedPnL) {
			return errors.Errorf("snapshot realized pnl mismatch: instrument=%s expected=%s actual=%s",
				entry.Instrument, want.RealizedPnL, entry.RealizedPnL)
		}
	}
	return nil
}
