// Package publisher fans registry audit events out to a store and any number of sinks.
//
// In sync mode Emit blocks until the store write finishes. WithAsyncBuffer switches
// to a bounded queue drained by one goroutine; Close drains what is left.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	id "citadel/pkg/domain"
	audit "citadel/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the queue has no room.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	queue chan audit.Event
	done  chan struct{}
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer queues up to size events and persists them in the background.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSinks adds downstream sinks that receive every persisted event.
func WithSinks(sinks ...audit.Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sinks...)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit stamps the event and hands it to the store, synchronously or via the queue.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.queue == nil {
		return p.persist(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"asset_id", event.AssetID,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"action", event.Action,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
	return nil
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.persist(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}

// List returns the audit trail for one asset.
func (p *Publisher) List(ctx context.Context, assetID id.AssetID) ([]audit.Event, error) {
	return p.store.ListByAsset(ctx, assetID)
}

// Recent returns the latest events across all assets.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting async events and waits for the queue to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.queue != nil {
			close(p.queue)
			<-p.done
		}
	})
}
