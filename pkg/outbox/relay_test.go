package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/tickrush/flash-sale/pkg/logging"
)

type fakeStore struct {
	events   []Event
	sent     []int64
	failed   []int64
	extended [][]int64
}

func (s *fakeStore) LockBatch(_ context.Context, _ string, _ int, _ time.Duration) ([]Event, error) {
	out := s.events
	s.events = nil
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, _ string) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeStore) ExtendLease(_ context.Context, _ string, ids []int64, _ time.Duration) error {
	s.extended = append(s.extended, ids)
	return nil
}

type fakeProducer struct {
	failKeys map[string]bool
	written  []kafka.Message
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if p.failKeys[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		p.written = append(p.written, m)
	}
	return nil
}

func TestRelayProcessOnce(t *testing.T) {
	log := logging.NewWithLevel("error")
	store := &fakeStore{events: []Event{
		{ID: 1, AggregateID: "order-1", Type: "OrderCreated", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "order-2", Type: "OrderCreated", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failKeys: map[string]bool{"order-2": true}}

	relay := NewRelay(log, store, NewDispatcher(log, producer, "order.events"), "relay-test")
	require.NoError(t, relay.ProcessOnce(context.Background()))

	require.Equal(t, []int64{1}, store.sent)
	require.Equal(t, []int64{2}, store.failed)
	require.Len(t, producer.written, 1)
	require.Equal(t, "order.events", producer.written[0].Topic)
}

type slowProducer struct {
	delay time.Duration
}

func (p *slowProducer) WriteMessages(_ context.Context, _ ...kafka.Message) error {
	time.Sleep(p.delay)
	return nil
}

func TestRelayExtendsLeaseOnSlowBatch(t *testing.T) {
	log := logging.NewWithLevel("error")
	store := &fakeStore{events: []Event{
		{ID: 1, AggregateID: "order-1", Type: "OrderCreated", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "order-2", Type: "OrderCreated", Payload: []byte(`{}`)},
		{ID: 3, AggregateID: "order-3", Type: "OrderCreated", Payload: []byte(`{}`)},
	}}

	relay := NewRelay(log, store, NewDispatcher(log, &slowProducer{delay: 20 * time.Millisecond}, "order.events"), "relay-test")
	relay.lease = 10 * time.Millisecond

	require.NoError(t, relay.ProcessOnce(context.Background()))
	require.Equal(t, []int64{1, 2, 3}, store.sent)

	// Each dispatch outlives half the lease, so the remainder is re-leased
	// before events 2 and 3.
	require.Len(t, store.extended, 2)
	require.Equal(t, []int64{2, 3}, store.extended[0])
	require.Equal(t, []int64{3}, store.extended[1])
}

func TestRelayProcessOnceEmpty(t *testing.T) {
	log := logging.NewWithLevel("error")
	store := &fakeStore{}
	relay := NewRelay(log, store, NewDispatcher(log, &fakeProducer{}, "order.events"), "relay-test")

	require.NoError(t, relay.ProcessOnce(context.Background()))
	require.Empty(t, store.sent)
	require.Empty(t, store.failed)
}
