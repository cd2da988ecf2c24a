package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickrush/flash-sale/internal/order/domain"
)

const uniqueViolation = "23505"

// Ledger backs the idempotency gate with the idempotency_keys table. The
// primary key on (user_id, key) is the whole concurrency story: exactly one
// of any number of simultaneous inserts lands, every loser re-reads the
// winner's row.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

func (l *Ledger) Begin(ctx context.Context, userID int64, key string) (domain.IdempotencyRecord, bool, error) {
	rec := domain.NewIdempotencyRecord(userID, key)
	_, err := l.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.UserID, rec.Key, rec.Status, rec.CreatedAt, rec.UpdatedAt)
	if err == nil {
		return rec, true, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return domain.IdempotencyRecord{}, false, err
	}
	existing, err := l.Get(ctx, userID, key)
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	return existing, false, nil
}

// Complete flips IN_PROGRESS to COMPLETED. The status condition makes the
// flip single-shot: a second call affects zero rows and is reported.
func (l *Ledger) Complete(ctx context.Context, userID int64, key, orderID string) error {
	ct, err := l.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $3, order_id = $4, updated_at = now()
		WHERE user_id = $1 AND key = $2 AND status = $5
	`, userID, key, domain.IdemCompleted, orderID, domain.IdemInProgress)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrIdemKeyNotFound
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, userID int64, key string) (domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	var orderID *string
	err := l.pool.QueryRow(ctx, `
		SELECT user_id, key, status, order_id, created_at, updated_at
		FROM idempotency_keys WHERE user_id = $1 AND key = $2
	`, userID, key).Scan(&rec.UserID, &rec.Key, &rec.Status, &orderID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdemKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	if orderID != nil {
		rec.OrderID = *orderID
	}
	return rec, nil
}
