package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickrush/flash-sale/internal/order/domain"
	"github.com/tickrush/flash-sale/pkg/outbox"
	"github.com/tickrush/flash-sale/pkg/tracing"
)

// OutboxStore implements the relay's view of the outbox_events table.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch claims up to batchSize pending rows for relayID. Rows whose lease
// expired are reclaimed; FOR UPDATE SKIP LOCKED keeps concurrent relays off
// each other's batches.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE outbox_events
		SET status = $1, relay_id = $2, locked_until = now() + $3
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $4
			   OR (status = $1 AND locked_until < now())
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, event_type, payload, traceparent, created_at, status, relay_id, retry_count, last_error
	`, outbox.StatusInProgress, relayID, lease, outbox.StatusPending, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		var rid *string
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload,
			&e.Traceparent, &e.CreatedAt, &e.Status, &rid, &e.RetryCount, &e.LastError); err != nil {
			return nil, err
		}
		if rid != nil {
			e.RelayID = *rid
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, relay_id = NULL, locked_until = NULL, last_error = NULL
		WHERE id = ANY($2)
	`, outbox.StatusSent, ids)
	return err
}

// MarkFailed returns the row to pending with the error recorded, so the next
// batch retries it.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, relay_id = NULL, locked_until = NULL,
		    retry_count = retry_count + 1, last_error = $2
		WHERE id = $3
	`, outbox.StatusPending, errMsg, id)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET locked_until = now() + $1
		WHERE relay_id = $2 AND id = ANY($3)
	`, lease, relayID, ids)
	return err
}

// Publisher enqueues order events as outbox rows. The insert is the publish:
// once the row is durable, the relay guarantees at-least-once delivery.
type Publisher struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewPublisher(log *slog.Logger, pool *pgxpool.Pool) *Publisher {
	return &Publisher{log: log, pool: pool}
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev domain.OrderCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent)
		VALUES ($1, $2, $3, $4, $5)
	`, "order", ev.OrderID, domain.OrderCreatedTopic, payload, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	p.log.Info("order created enqueued", "order_id", ev.OrderID, "event_id", ev.EventID)
	return nil
}
