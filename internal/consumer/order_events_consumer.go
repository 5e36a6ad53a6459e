package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/fjod/pawmart/internal/domain"
)

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *domain.Notification) (bool, error)
}

type Broadcaster interface {
	Broadcast(v any) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventsConsumer turns order events into ORDER notifications for the buyer and mirrors
// them to the live admin feed. Offsets are committed after the notification is stored, so
// redelivered events are absorbed by the event id index.
type OrderEventsConsumer struct {
	store  NotificationStore
	live   Broadcaster
	reader MessageReader
	log    *slog.Logger
	now    func() time.Time
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewOrderEventsConsumer(store NotificationStore, live Broadcaster, reader MessageReader, log *slog.Logger) *OrderEventsConsumer {
	return &OrderEventsConsumer{store: store, live: live, reader: reader, log: log, now: time.Now}
}

func (c *OrderEventsConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *OrderEventsConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", slog.Any("error", err))
	}
}

func (c *OrderEventsConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.ErrorContext(ctx, "error reading message", slog.Any("error", err))
		return
	}

	if err := c.handle(ctx, m); err != nil {
		// Leave the offset uncommitted; the group redelivers after a rebalance or restart.
		c.log.ErrorContext(ctx, "failed to handle order event",
			slog.String("key", string(m.Key)), slog.Int64("offset", m.Offset), slog.Any("error", err))
		return
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.ErrorContext(ctx, "failed to commit offset", slog.Int64("offset", m.Offset), slog.Any("error", err))
	}
}

// handle returns an error only for failures worth redelivering. Malformed payloads are logged
// and skipped.
func (c *OrderEventsConsumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WarnContext(ctx, "error parsing message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		return nil
	}
	if event.EventID == uuid.Nil || event.UserID == "" {
		c.log.WarnContext(ctx, "skipping order event without identity", slog.Int64("offset", m.Offset))
		return nil
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    event.UserID,
		Type:      domain.NotificationOrder,
		OrderID:   event.OrderID.String(),
		EventID:   event.EventID.String(),
		Message:   orderMessage(event),
		CreatedAt: c.now().UTC(),
	}
	inserted, err := c.store.InsertNotification(ctx, n)
	if err != nil {
		return err
	}
	if !inserted {
		c.log.InfoContext(ctx, "order event already handled, skipping", slog.String("event_id", n.EventID))
		return nil
	}

	if c.live != nil {
		if err := c.live.Broadcast(event); err != nil {
			c.log.WarnContext(ctx, "failed to broadcast order event", slog.String("event_id", n.EventID), slog.Any("error", err))
		}
	}
	c.log.InfoContext(ctx, "order notification stored",
		slog.String("event_id", n.EventID), slog.String("order_id", n.OrderID), slog.String("event_type", event.EventType))
	return nil
}

func orderMessage(e domain.OrderEvent) string {
	short := e.OrderID.String()[:8]
	switch e.EventType {
	case domain.EventOrderPlaced:
		return fmt.Sprintf("Order %s placed, total %s", short, e.TotalPrice.StringFixed(2))
	case domain.EventOrderStatusChanged:
		return fmt.Sprintf("Order %s is now %s", short, e.Status)
	default:
		return fmt.Sprintf("Order %s updated", short)
	}
}
