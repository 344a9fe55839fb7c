package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"sproutmarket/pkg/requestcontext"
)

// Publisher fans events out to a sink either synchronously or through a
// bounded buffer with a background drainer. In async mode a full buffer drops
// the event rather than blocking the request path: notification fan-out must
// never stall a checkout.
type Publisher struct {
	sink   Sink
	logger *zap.Logger

	inbox   chan Event
	drained sync.WaitGroup
	closer  sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// buffer capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithLogger sets the logger used for drop/failure reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher over the given sink. Without options the
// publisher is synchronous.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.inbox != nil {
		p.drained.Add(1)
		go p.drain()
	}
	return p
}

// Emit publishes an event. The event's timestamp and request ID are filled
// from ctx when unset. Errors are reported for logging but callers are
// expected to continue: event delivery is best-effort by contract.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		return p.sink.Publish(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("event buffer full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID.String()),
		)
		return nil
	}
}

// drain consumes the inbox until Close. Sink failures are logged and the
// event is dropped; there is no retry here by design of the delivery contract.
func (p *Publisher) drain() {
	defer p.drained.Done()
	for event := range p.inbox {
		if err := p.sink.Publish(context.Background(), event); err != nil {
			p.logger.Warn("event publish failed",
				zap.String("type", string(event.Type)),
				zap.String("order_id", event.OrderID.String()),
				zap.Error(err),
			)
		}
	}
}

// Close drains buffered events and stops the background worker. Safe to call
// more than once.
func (p *Publisher) Close() {
	p.closer.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.drained.Wait()
		}
	})
}
