package audit

import (
	"context"
	"errors"
	"log/slog"

	"ulp-gateway/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps events and fans them out to every sink. It is append-only.
type Publisher struct {
	sinks []Sink
}

func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks}
}

// Emit fills the timestamp and request id from ctx when unset and appends
// the event to every sink. All sinks are attempted; their errors are joined.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if p == nil {
		return nil
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Append(ctx, base); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Append(ctx context.Context, e Event) error {
	attrs := []any{
		"action", e.Action,
		"status", e.Status,
		"outcome", e.Outcome,
		"request_id", e.RequestID,
	}
	if e.Role != "" {
		attrs = append(attrs, "role", e.Role)
	}
	if e.Subject != "" {
		attrs = append(attrs, "subject", e.Subject)
	}
	for k, v := range e.Detail {
		attrs = append(attrs, "detail_"+k, v)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// MemorySink keeps events in memory; used by tests and local runs.
type MemorySink struct {
	events chan Event
}

func NewMemorySink(capacity int) *MemorySink {
	return &MemorySink{events: make(chan Event, capacity)}
}

func (m *MemorySink) Append(_ context.Context, e Event) error {
	select {
	case m.events <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Drain returns every event appended so far.
func (m *MemorySink) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-m.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
