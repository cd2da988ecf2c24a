package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickrush/flash-sale/internal/inventory/domain"
)

// EnsureSchema creates the inventory tables. Reservations are append-only:
// rows move through the state machine but are never deleted.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS inventory (
			ticket_id  BIGINT PRIMARY KEY,
			available  INT NOT NULL CHECK (available >= 0),
			reserved   INT NOT NULL CHECK (reserved >= 0),
			sold       INT NOT NULL CHECK (sold >= 0),
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS inventory_reservations (
			reservation_id VARCHAR(128) PRIMARY KEY,
			ticket_id      BIGINT NOT NULL,
			qty            INT NOT NULL CHECK (qty > 0),
			status         VARCHAR(16) NOT NULL,
			expires_at     TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_resv_ticket_status
			ON inventory_reservations (ticket_id, status);
	`)
	return err
}

type CounterRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewCounterRepository(log *slog.Logger, pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{log: log, pool: pool}
}

func (r *CounterRepository) Get(ctx context.Context, ticketID int64) (domain.Counter, error) {
	var c domain.Counter
	err := r.pool.QueryRow(ctx, `
		SELECT ticket_id, available, reserved, sold, version, updated_at
		FROM inventory WHERE ticket_id = $1
	`, ticketID).Scan(&c.TicketID, &c.Available, &c.Reserved, &c.Sold, &c.Version, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Counter{}, domain.ErrTicketNotFound
	}
	if err != nil {
		return domain.Counter{}, err
	}
	return c, nil
}

func (r *CounterRepository) Exists(ctx context.Context, ticketID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inventory WHERE ticket_id = $1)`, ticketID).Scan(&exists)
	return exists, err
}

// Reserve moves qty from available to reserved. The WHERE clause is the
// guard: zero rows affected means insufficient stock, and concurrent updates
// can never drive available below zero.
func (r *CounterRepository) Reserve(ctx context.Context, ticketID int64, qty int) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE inventory
		SET available = available - $2,
		    reserved  = reserved + $2,
		    version   = version + 1,
		    updated_at = now()
		WHERE ticket_id = $1 AND available >= $2
	`, ticketID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *CounterRepository) Release(ctx context.Context, ticketID int64, qty int) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE inventory
		SET reserved  = reserved - $2,
		    available = available + $2,
		    version   = version + 1,
		    updated_at = now()
		WHERE ticket_id = $1 AND reserved >= $2
	`, ticketID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *CounterRepository) Commit(ctx context.Context, ticketID int64, qty int) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE inventory
		SET reserved  = reserved - $2,
		    sold      = sold + $2,
		    version   = version + 1,
		    updated_at = now()
		WHERE ticket_id = $1 AND reserved >= $2
	`, ticketID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *CounterRepository) InitStock(ctx context.Context, ticketID int64, available int) (domain.Counter, error) {
	var c domain.Counter
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inventory (ticket_id, available, reserved, sold, version)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (ticket_id) DO UPDATE
			SET available = EXCLUDED.available,
			    version   = inventory.version + 1,
			    updated_at = now()
		RETURNING ticket_id, available, reserved, sold, version, updated_at
	`, ticketID, available).Scan(&c.TicketID, &c.Available, &c.Reserved, &c.Sold, &c.Version, &c.UpdatedAt)
	if err != nil {
		return domain.Counter{}, err
	}
	return c, nil
}

type ReservationRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewReservationRepository(log *slog.Logger, pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{log: log, pool: pool}
}

func (r *ReservationRepository) Get(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return r.scanOne(ctx, `
		SELECT reservation_id, ticket_id, qty, status, expires_at, created_at, updated_at
		FROM inventory_reservations WHERE reservation_id = $1
	`, reservationID)
}

// CreateIfAbsent inserts the INIT row. ON CONFLICT DO NOTHING keeps the
// insert race-free: the loser re-reads the winner's row.
func (r *ReservationRepository) CreateIfAbsent(ctx context.Context, res domain.Reservation) (domain.Reservation, bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_reservations (reservation_id, ticket_id, qty, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reservation_id) DO NOTHING
	`, res.ReservationID, res.TicketID, res.Qty, res.Status, res.ExpiresAt, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return domain.Reservation{}, false, err
	}
	if ct.RowsAffected() == 1 {
		return res, true, nil
	}
	existing, err := r.Get(ctx, res.ReservationID)
	if err != nil {
		return domain.Reservation{}, false, err
	}
	return existing, false, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, reservationID string, status domain.ReservationStatus) (domain.Reservation, error) {
	res, err := r.scanOne(ctx, `
		UPDATE inventory_reservations
		SET status = $2, updated_at = now()
		WHERE reservation_id = $1
		RETURNING reservation_id, ticket_id, qty, status, expires_at, created_at, updated_at
	`, reservationID, status)
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) scanOne(ctx context.Context, sql string, args ...any) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.pool.QueryRow(ctx, sql, args...).Scan(
		&res.ReservationID, &res.TicketID, &res.Qty, &res.Status,
		&res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}
