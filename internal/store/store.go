package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"simtrade/internal/bus"
	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

// Store persists runs, order events and PnL snapshots.
type Store struct {
	db    *gorm.DB
	runID string
	now   func() time.Time
}

// New migrates the schema and returns a store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "new store")
	}
	if err := db.AutoMigrate(&Run{}, &OrderEvent{}, &PnLSnapshot{}); err != nil {
		return nil, errors.Wrap(err, "migrate store")
	}
	return &Store{db: db, now: time.Now}, nil
}

// RunID returns the id of the current run, empty before StartRun.
func (s *Store) RunID() string {
	return s.runID
}

// StartRun records a new run and makes it current.
func (s *Store) StartRun(ctx context.Context, instruments []string, configPath string) (string, error) {
	run := Run{
		ID:          uuid.NewString(),
		Instruments: strings.Join(instruments, ","),
		ConfigPath:  configPath,
		StartedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return "", errors.Wrap(err, "create run")
	}
	s.runID = run.ID
	logs.Infof("store run started: %s", run.ID)
	return run.ID, nil
}

// FinishRun stamps the current run's end time.
func (s *Store) FinishRun(ctx context.Context) error {
	if s.runID == "" {
		return nil
	}
	finished := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", s.runID).Update("finished_at", finished).Error; err != nil {
		return errors.Wrapf(err, "finish run %s", s.runID)
	}
	return nil
}

// Save persists one bus event.
func (s *Store) Save(ctx context.Context, e bus.Event) error {
	at := time.Unix(0, e.Header.TsEvent).UTC()
	switch e.Header.Type {
	case schema.EventOrderStatus:
		ev := e.Status
		row := OrderEvent{
			RunID:        s.runID,
			Seq:          e.Header.Seq,
			OrderID:      ev.OrderID,
			Status:       ev.Status.String(),
			Instrument:   ev.Instrument,
			FilledQty:    ev.FilledQty,
			FillPrice:    ev.FillPrice,
			RemainingQty: ev.RemainingQty,
			Message:      ev.Message,
			EventAt:      at,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return errors.Wrapf(err, "save order event %s", ev.OrderID)
		}
		return nil
	case schema.EventSnapshot:
		if e.Snapshot == nil || len(e.Snapshot.Positions) == 0 {
			return nil
		}
		rows := make([]PnLSnapshot, 0, len(e.Snapshot.Positions))
		for _, p := range e.Snapshot.Positions {
			rows = append(rows, PnLSnapshot{
				RunID:         s.runID,
				Seq:           e.Header.Seq,
				Instrument:    p.Instrument,
				Net:           p.Net,
				Long:          p.Long,
				Short:         p.Short,
				RealizedPnL:   p.RealizedPnL,
				UnrealizedPnL: p.UnrealizedPnL,
				LastPrice:     p.LastPrice,
				TakenAt:       at,
			})
		}
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return errors.Wrap(err, "save pnl snapshot")
		}
		return nil
	default:
		return nil
	}
}

// Consume saves queued events until ctx is done or the queue is closed and drained.
func (s *Store) Consume(ctx context.Context, q *bus.Queue) {
	q.Run(ctx, func(e bus.Event) {
		if err := s.Save(ctx, e); err != nil {
			logs.Errorf("store save failed: %+v", err)
		}
	})
}

// OrderEvents returns the persisted events of a run in publish order.
func (s *Store) OrderEvents(ctx context.Context, runID string) ([]OrderEvent, error) {
	var out []OrderEvent
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq").Find(&out).Error; err != nil {
		return nil, errors.Wrapf(err, "load order events %s", runID)
	}
	return out, nil
}

// Snapshots returns the persisted snapshot rows of a run.
func (s *Store) Snapshots(ctx context.Context, runID string) ([]PnLSnapshot, error) {
	var out []PnLSnapshot
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq, instrument").Find(&out).Error; err != nil {
		return nil, errors.Wrapf(err, "load snapshots %s", runID)
	}
	return out, nil
}

// Run loads a run record.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	var run Run
	if err := s.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return Run{}, errors.Wrapf(err, "load run %s", runID)
	}
	return run, nil
}
