package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/pawmart/internal/repository"
)

const HeaderEventType = "event_type"

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublishRecorder interface {
	ObservePublished(eventType string)
}

// OutboxPoller relays committed outbox rows to the event bus. Delivery is at least once: a row is
// marked processed only after the broker acknowledged it.
type OutboxPoller struct {
	eventTick time.Duration
	batch     int
	repo      OutboxRepository
	writer    MessageWriter
	metrics   PublishRecorder
	log       *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxRepository, writer MessageWriter, interval time.Duration, batch int, metrics PublishRecorder, log *slog.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &OutboxPoller{
		eventTick: interval,
		batch:     batch,
		repo:      repo,
		writer:    writer,
		metrics:   metrics,
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batch)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", slog.Any("error", err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			// Later rows of the same order must not overtake this one.
			p.log.ErrorContext(ctx, "failed to publish event", slog.Int64("id", event.ID), slog.Any("error", err))
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark event as processed", slog.Int64("id", event.ID), slog.Any("error", err))
			continue
		}
		if p.metrics != nil {
			p.metrics.ObservePublished(event.EventType)
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
