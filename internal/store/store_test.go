package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"simtrade/internal/bus"
	"simtrade/internal/schema"
	"simtrade/internal/state"
	"simtrade/pkg/exception"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would see its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	s, err := New(db)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, exception.ErrNilInstance)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.StartRun(ctx, []string{"IF2411", "rb2410"}, "app.yaml")
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, id, s.RunID())

	require.NoError(t, s.FinishRun(ctx))
	run, err := s.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "IF2411,rb2410", run.Instruments)
	require.NotNil(t, run.FinishedAt)
}

func TestConsumePersistsEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, err := s.StartRun(ctx, []string{"X"}, "")
	require.NoError(t, err)

	q := bus.NewQueue(8)
	pub := bus.NewPublisher(q, nil)
	require.NoError(t, pub.PublishStatus(schema.OrderStatusEvent{
		OrderID: "BT_1", Status: schema.StatusAccepted, Instrument: "X", RemainingQty: 2,
	}))
	require.NoError(t, pub.PublishStatus(schema.OrderStatusEvent{
		OrderID: "BT_1", Status: schema.StatusFilled, Instrument: "X",
		FilledQty: 2, FillPrice: decimal.RequireFromString("100.5"), Message: "px=100.5,qty=2",
	}))

	book := state.NewBook()
	book.ApplyOpen("X", schema.DirectionBuy, 2, decimal.RequireFromString("100.5"))
	book.Mark("X", decimal.NewFromInt(101))
	require.NoError(t, pub.PublishSnapshot(book.Snapshot()))
	q.Close()

	s.Consume(ctx, q)

	events, err := s.OrderEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Accepted", events[0].Status)
	assert.Equal(t, "Filled", events[1].Status)
	assert.Equal(t, int64(2), events[1].FilledQty)
	assert.True(t, events[1].FillPrice.Equal(decimal.RequireFromString("100.5")), "price %s", events[1].FillPrice)

	snaps, err := s.Snapshots(ctx, id)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(2), snaps[0].Net)
	assert.True(t, snaps[0].UnrealizedPnL.Equal(decimal.NewFromInt(1)))
}

func TestSaveIgnoresOtherEvents(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), bus.Event{Header: schema.NewHeader(schema.EventUnknown, 1, 0, 0)}))
	require.NoError(t, s.Save(context.Background(), bus.Event{Header: schema.NewHeader(schema.EventSnapshot, 2, 0, 0)}))
}
