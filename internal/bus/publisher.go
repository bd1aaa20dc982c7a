package bus

import (
	"time"

	"github.com/yanun0323/errors"

	"simtrade/internal/obs"
	"simtrade/internal/schema"
	"simtrade/internal/state"
)

// Publisher stamps headers on pipeline events and offers them to a queue without blocking.
// A full queue drops the event and counts it.
type Publisher struct {
	queue   *Queue
	seq     *obs.Sequence
	metrics *obs.Metrics
	now     func() time.Time
}

// NewPublisher creates a publisher for queue. metrics may be nil.
func NewPublisher(queue *Queue, metrics *obs.Metrics) *Publisher {
	return &Publisher{
		queue:   queue,
		seq:     obs.NewSequence(0),
		metrics: metrics,
		now:     time.Now,
	}
}

// PublishStatus offers an order status event.
func (p *Publisher) PublishStatus(ev schema.OrderStatusEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(Event{Header: p.header(schema.EventOrderStatus), Status: ev})
}

// PublishSnapshot offers a book snapshot.
func (p *Publisher) PublishSnapshot(snap state.Snapshot) error {
	if p == nil {
		return nil
	}
	return p.publish(Event{Header: p.header(schema.EventSnapshot), Snapshot: &snap})
}

func (p *Publisher) header(t schema.EventType) schema.EventHeader {
	ts := p.now().UnixNano()
	return schema.NewHeader(t, p.seq.Next(), ts, ts)
}

func (p *Publisher) publish(e Event) error {
	if p.queue == nil {
		return nil
	}
	err := p.queue.TryPublish(e)
	switch {
	case errors.Is(err, ErrQueueFull):
		p.metrics.IncQueueDrop()
	case errors.Is(err, ErrQueueClosed):
		p.metrics.IncQueueClosed()
	}
	return err
}
