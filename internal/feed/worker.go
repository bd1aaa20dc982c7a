package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"simtrade/internal/schema"
	"simtrade/pkg/exception"
)

// Worker drives a Source on its own goroutine and hands every tick to a handler.
// The handler runs on the worker goroutine.
type Worker struct {
	source  Source
	handler schema.TickHandler
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewWorker binds a source to a tick handler.
func NewWorker(source Source, handler schema.TickHandler) (*Worker, error) {
	if source == nil {
		return nil, exception.ErrFeedNilSource
	}
	if handler == nil {
		return nil, exception.ErrFeedNilHandler
	}
	done := make(chan struct{})
	close(done)
	return &Worker{source: source, handler: handler, done: done}, nil
}

// Start launches the worker. It stops on its own when the source is exhausted,
// on Stop, when ctx is done, or on process shutdown.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running.Load() {
		return exception.ErrFeedAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.err = nil
	w.running.Store(true)

	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-runCtx.Done():
		}
	}()

	go func() {
		defer close(done)
		defer cancel()
		err := w.source.Run(runCtx, w.emit)
		w.running.Store(false)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logs.Errorf("[Feed] source stopped, err: %+v", err)
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
		}
	}()
	return nil
}

func (w *Worker) emit(tick schema.Tick) {
	if !w.running.Load() {
		return
	}
	w.handler(tick)
}

// Stop clears the running flag, cancels the source and waits for it to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	w.running.Store(false)
	if cancel != nil {
		cancel()
	}
	<-done
}

// Running reports whether the source is still producing.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Done is closed once the current run has returned.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Err returns the source error of the last run, nil on a clean stop.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
