package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickrush/flash-sale/internal/catalog/domain"
)

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sale_events (
			id         BIGSERIAL PRIMARY KEY,
			name       VARCHAR(256) NOT NULL,
			starts_at  TIMESTAMPTZ NOT NULL,
			ends_at    TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS tickets (
			id            BIGSERIAL PRIMARY KEY,
			sale_event_id BIGINT NOT NULL REFERENCES sale_events(id),
			name          VARCHAR(256) NOT NULL,
			price_cents   BIGINT NOT NULL CHECK (price_cents >= 0),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_event ON tickets (sale_event_id);
	`)
	return err
}

// Repository backs both the event and ticket stores with one pool.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateEvent(ctx context.Context, ev domain.SaleEvent) (domain.SaleEvent, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sale_events (name, starts_at, ends_at)
		VALUES ($1, $2, $3)
		RETURNING id, name, starts_at, ends_at, created_at, updated_at
	`, ev.Name, ev.StartsAt, ev.EndsAt).Scan(
		&ev.ID, &ev.Name, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return domain.SaleEvent{}, err
	}
	return ev, nil
}

func (r *Repository) GetEvent(ctx context.Context, id int64) (domain.SaleEvent, error) {
	var ev domain.SaleEvent
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, starts_at, ends_at, created_at, updated_at
		FROM sale_events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Name, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SaleEvent{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.SaleEvent{}, err
	}
	return ev, nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]domain.SaleEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, starts_at, ends_at, created_at, updated_at
		FROM sale_events ORDER BY starts_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SaleEvent
	for rows.Next() {
		var ev domain.SaleEvent
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) CreateTicket(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tickets (sale_event_id, name, price_cents)
		VALUES ($1, $2, $3)
		RETURNING id, sale_event_id, name, price_cents, created_at, updated_at
	`, t.SaleEventID, t.Name, t.PriceCents).Scan(
		&t.ID, &t.SaleEventID, &t.Name, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Ticket{}, err
	}
	return t, nil
}

func (r *Repository) UpdateTicketPrice(ctx context.Context, id, priceCents int64) (domain.Ticket, error) {
	var t domain.Ticket
	err := r.pool.QueryRow(ctx, `
		UPDATE tickets SET price_cents = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, sale_event_id, name, price_cents, created_at, updated_at
	`, id, priceCents).Scan(&t.ID, &t.SaleEventID, &t.Name, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	if err != nil {
		return domain.Ticket{}, err
	}
	return t, nil
}

func (r *Repository) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	var t domain.Ticket
	err := r.pool.QueryRow(ctx, `
		SELECT id, sale_event_id, name, price_cents, created_at, updated_at
		FROM tickets WHERE id = $1
	`, id).Scan(&t.ID, &t.SaleEventID, &t.Name, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	if err != nil {
		return domain.Ticket{}, err
	}
	return t, nil
}

func (r *Repository) ListTicketsByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_event_id, name, price_cents, created_at, updated_at
		FROM tickets WHERE sale_event_id = $1 ORDER BY id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.SaleEventID, &t.Name, &t.PriceCents, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
