package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned when an asynchronous sink cannot accept more events.
var ErrBufferFull = errors.New("audit buffer full")

// AsyncSink decouples request handling from a slow sink (Kafka): Append
// enqueues without blocking and a Worker drains the queue.
type AsyncSink struct {
	inbox chan Event
}

func NewAsyncSink(capacity int) *AsyncSink {
	return &AsyncSink{inbox: make(chan Event, capacity)}
}

func (a *AsyncSink) Append(_ context.Context, e Event) error {
	select {
	case a.inbox <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Worker consumes queued audit events and forwards them to a sink.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, queue *AsyncSink, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: queue.inbox, logger: logger}
}

// Run forwards events until ctx is cancelled. Forwarding failures are logged
// and the event is dropped; audit never blocks the linking flows.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.inbox:
			w.forward(ctx, event)
		}
	}
}

// Start runs the worker on its own context so it outlives the server's
// shutdown signal. The returned stop cancels it and blocks until everything
// queued so far has been forwarded.
func (w *Worker) Start() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) forward(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

// flush forwards whatever is still queued on a detached context.
func (w *Worker) flush() {
	ctx := context.Background()
	for {
		select {
		case event := <-w.inbox:
			w.forward(ctx, event)
		default:
			return
		}
	}
}
