package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickrush/flash-sale/internal/notification"
	"github.com/tickrush/flash-sale/internal/order/domain"
)

type recordingChannel struct {
	name   string
	err    error
	events []domain.OrderCreated
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Notify(ctx context.Context, ev domain.OrderCreated) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func newConsumer(t *testing.T, channels ...notification.Channel) *notification.Consumer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return notification.NewConsumer(log, []string{"localhost:9092"}, "order.created.v1", "notify-test", nil, channels...)
}

func message(t *testing.T, ev domain.OrderCreated) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "order.created.v1", Value: payload}
}

func TestProcessFansOut(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}
	c := newConsumer(t, a, b)

	ev := domain.OrderCreated{OrderID: "ord-1", UserID: 7, Items: []domain.OrderCreatedItem{{TicketID: 10, Qty: 2}}}
	c.Process(context.Background(), message(t, ev))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "ord-1", a.events[0].OrderID)
}

func TestProcessChannelFailureDoesNotStopOthers(t *testing.T) {
	broken := &recordingChannel{name: "email", err: errors.New("smtp down")}
	ok := &recordingChannel{name: "log"}
	c := newConsumer(t, broken, ok)

	c.Process(context.Background(), message(t, domain.OrderCreated{OrderID: "ord-2"}))

	assert.Empty(t, broken.events)
	require.Len(t, ok.events, 1)
}

func TestProcessBadPayloadIgnored(t *testing.T) {
	ch := &recordingChannel{name: "log"}
	c := newConsumer(t, ch)

	c.Process(context.Background(), kafka.Message{Value: []byte("{not json")})

	assert.Empty(t, ch.events)
}
