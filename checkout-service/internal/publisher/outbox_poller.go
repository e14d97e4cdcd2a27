package publisher

import (
	"context"
	"log/slog"
	"time"

	r "github.com/gonzalofreyna/melocoton-move/checkout-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	Topic = "checkout-completed"

	batchSize = 100
	// processed events are kept this long for inspection before cleanup
	retention = 7 * 24 * time.Hour
)

// MessageWriter is the subset of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller publishes outbox events written alongside orders. Delivery is
// at least once: an event is marked processed only after Kafka accepts it.
type OutboxPoller struct {
	timeout     time.Duration
	eventTick   time.Duration
	cleanupTick time.Duration
	repo        r.OutboxRepository
	writer      MessageWriter
	log         *slog.Logger
}

func NewOutboxPoller(repo r.OutboxRepository, log *slog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newOutboxPoller(repo, w, log)
}

func newOutboxPoller(repo r.OutboxRepository, w MessageWriter, log *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		timeout:     5 * time.Second,
		eventTick:   time.Second,
		cleanupTick: time.Hour,
		repo:        repo,
		writer:      w,
		log:         log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	cleanupTicker := time.NewTicker(p.cleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.cleanupProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "error", err)
			// keep ordering per batch: later events wait for the next tick
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			continue
		}
		p.log.DebugContext(ctx, "outbox event published", "event_id", event.ID, "aggregate_id", event.AggregateId)
	}
}

func (p *OutboxPoller) cleanupProcessedEvents(ctx context.Context) {
	n, err := p.repo.DeleteProcessedEvents(ctx, time.Now().Add(-retention))
	if err != nil {
		p.log.ErrorContext(ctx, "failed to delete processed outbox events", "error", err)
		return
	}
	if n > 0 {
		p.log.InfoContext(ctx, "deleted processed outbox events", "count", n)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id for partitioning
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
