package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickrush/flash-sale/internal/order/domain"
)

// EnsureSchema creates the order service tables: orders and line items, the
// idempotency ledger, and the transactional outbox.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id              UUID PRIMARY KEY,
			user_id         BIGINT NOT NULL,
			status          VARCHAR(16) NOT NULL,
			failure_reason  VARCHAR(32) NOT NULL DEFAULT '',
			total_cents     BIGINT NOT NULL DEFAULT 0,
			currency        VARCHAR(8) NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, idempotency_key)
		);
		CREATE INDEX IF NOT EXISTS idx_orders_user_created
			ON orders (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS order_items (
			order_id         UUID NOT NULL REFERENCES orders(id),
			ticket_id        BIGINT NOT NULL,
			qty              INT NOT NULL CHECK (qty > 0),
			unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0),
			PRIMARY KEY (order_id, ticket_id)
		);

		CREATE TABLE IF NOT EXISTS idempotency_keys (
			user_id    BIGINT NOT NULL,
			key        VARCHAR(128) NOT NULL,
			status     VARCHAR(16) NOT NULL,
			order_id   UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, key)
		);

		CREATE TABLE IF NOT EXISTS outbox_events (
			id             BIGSERIAL PRIMARY KEY,
			aggregate_type VARCHAR(32) NOT NULL,
			aggregate_id   VARCHAR(64) NOT NULL,
			event_type     VARCHAR(64) NOT NULL,
			payload        JSONB NOT NULL,
			traceparent    VARCHAR(64) NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			status         VARCHAR(16) NOT NULL DEFAULT 'pending',
			relay_id       VARCHAR(64),
			locked_until   TIMESTAMPTZ,
			retry_count    INT NOT NULL DEFAULT 0,
			last_error     TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_status_created
			ON outbox_events (status, created_at);
	`)
	return err
}

type OrderRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOrderRepository(log *slog.Logger, pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{log: log, pool: pool}
}

// Create persists the order and its line items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, failure_reason, total_cents, currency, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.UserID, o.Status, o.FailureReason, o.TotalCents, o.Currency, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, ticket_id, qty, unit_price_cents)
			VALUES ($1, $2, $3, $4)
		`, o.ID, it.TicketID, it.Qty, it.UnitPriceCents)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, reason domain.FailureReason) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, status, failure_reason, total_cents, currency, idempotency_key, created_at, updated_at
	`, orderID, status, reason).Scan(
		&o.ID, &o.UserID, &o.Status, &o.FailureReason, &o.TotalCents,
		&o.Currency, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, userID int64, orderID string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, failure_reason, total_cents, currency, idempotency_key, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2
	`, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.FailureReason, &o.TotalCents,
		&o.Currency, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, userID int64, status domain.OrderStatus, page, size int) ([]domain.Order, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
	`, userID, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, status, failure_reason, total_cents, currency, idempotency_key, created_at, updated_at
		FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, string(status), size, page*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.FailureReason, &o.TotalCents,
			&o.Currency, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT ticket_id, qty, unit_price_cents
		FROM order_items WHERE order_id = $1
		ORDER BY ticket_id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.TicketID, &it.Qty, &it.UnitPriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
