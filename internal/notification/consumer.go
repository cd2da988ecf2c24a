// Package notification consumes order events and fans them out to delivery
// channels. Channels here log the notification; real senders plug in behind
// the same interface.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tickrush/flash-sale/internal/order/domain"
	"github.com/tickrush/flash-sale/pkg/dedupe"
	"github.com/tickrush/flash-sale/pkg/tracing"
)

// Channel delivers one notification. Failures are logged and the message is
// still committed: delivery is best effort per channel, retry comes from the
// at-least-once topic plus the dedupe window.
type Channel interface {
	Name() string
	Notify(ctx context.Context, ev domain.OrderCreated) error
}

type Consumer struct {
	log      *slog.Logger
	reader   *kafka.Reader
	dedupe   *dedupe.Store
	channels []Channel
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, dd *dedupe.Store, channels ...Channel) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		dedupe:   dd,
		channels: channels,
		tracer:   otel.Tracer("notify-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.dedupe.MessageKey(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.dedupe.Seen(ctx, key)
		if err != nil {
			c.log.Error("dedupe check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		c.Process(ctx, msg)
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

// Process decodes one message and notifies every channel. Split out of Run
// so the fan-out is testable without a broker.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated")
	defer span.End()

	var ev domain.OrderCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal order created failed", "err", err)
		return
	}

	for _, ch := range c.channels {
		if err := ch.Notify(msgCtx, ev); err != nil {
			c.log.Error("notification failed", "channel", ch.Name(), "order_id", ev.OrderID, "err", err)
			continue
		}
		c.log.Info("notification sent", "channel", ch.Name(), "order_id", ev.OrderID, "user_id", ev.UserID)
	}
}

// LogChannel writes the notification to the service log. It stands in for
// email and push senders in environments without them.
type LogChannel struct {
	log *slog.Logger
}

func NewLogChannel(log *slog.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Notify(ctx context.Context, ev domain.OrderCreated) error {
	c.log.Info("order confirmation",
		"order_id", ev.OrderID, "user_id", ev.UserID, "items", len(ev.Items), "event_id", ev.EventID)
	return nil
}
