package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrade/internal/obs"
	"simtrade/internal/schema"
	"simtrade/internal/state"
)

func TestQueueFullAndClosed(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{}))
	require.ErrorIs(t, q.TryPublish(Event{}), ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Close()
	q.Close()
	require.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)

	var n int
	q.Run(context.Background(), func(Event) { n++ })
	assert.Equal(t, 1, n, "buffered events drain after close")
}

func TestRunStopsOnContext(t *testing.T) {
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Run(ctx, func(Event) { t.Fatalf("handler must not run") })
}

func TestPublisherStampsAndCountsDrops(t *testing.T) {
	q := NewQueue(2)
	m := obs.NewMetrics()
	p := NewPublisher(q, m)

	require.NoError(t, p.PublishStatus(schema.OrderStatusEvent{OrderID: "BT_1", Status: schema.StatusFilled}))
	require.NoError(t, p.PublishSnapshot(state.Snapshot{Timestamp: 1}))
	require.ErrorIs(t, p.PublishStatus(schema.OrderStatusEvent{OrderID: "BT_2"}), ErrQueueFull)
	assert.Equal(t, uint64(1), m.Snapshot().QueueDrops)

	q.Close()
	require.ErrorIs(t, p.PublishStatus(schema.OrderStatusEvent{}), ErrQueueClosed)
	assert.Equal(t, uint64(1), m.Snapshot().QueueClosed)

	var got []Event
	q.Run(context.Background(), func(e Event) { got = append(got, e) })
	require.Len(t, got, 2)
	assert.Equal(t, schema.EventOrderStatus, got[0].Header.Type)
	assert.Equal(t, uint64(1), got[0].Header.Seq)
	assert.Equal(t, "BT_1", got[0].Status.OrderID)
	assert.Equal(t, schema.EventSnapshot, got[1].Header.Type)
	assert.Equal(t, "snapshot", got[1].Header.Type.String())
	require.NotNil(t, got[1].Snapshot)
	assert.Equal(t, schema.SchemaVersion, got[1].Header.Version)
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.PublishStatus(schema.OrderStatusEvent{}))
}
