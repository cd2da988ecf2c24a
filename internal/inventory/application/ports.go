package application

import (
	"context"

	"github.com/tickrush/flash-sale/internal/inventory/domain"
)

// CounterStore mutates per-ticket stock counters. Reserve/Release/Commit are
// single-row conditional updates: the guard and the arithmetic happen as one
// atomic step, and a false return means the guard did not hold.
type CounterStore interface {
	Get(ctx context.Context, ticketID int64) (domain.Counter, error)
	Exists(ctx context.Context, ticketID int64) (bool, error)

	// Reserve applies available-=qty, reserved+=qty iff available>=qty.
	Reserve(ctx context.Context, ticketID int64, qty int) (bool, error)
	// Release applies reserved-=qty, available+=qty iff reserved>=qty.
	Release(ctx context.Context, ticketID int64, qty int) (bool, error)
	// Commit applies reserved-=qty, sold+=qty iff reserved>=qty.
	Commit(ctx context.Context, ticketID int64, qty int) (bool, error)

	// InitStock creates the counter or overwrites available on an existing
	// row, bumping version. The reserved/sold==0 precondition is the
	// service's job.
	InitStock(ctx context.Context, ticketID int64, available int) (domain.Counter, error)
}

type ReservationStore interface {
	Get(ctx context.Context, reservationID string) (domain.Reservation, error)

	// CreateIfAbsent inserts r. When the reservation id already exists it
	// returns the stored row with created=false; exactly one concurrent
	// caller observes created=true.
	CreateIfAbsent(ctx context.Context, r domain.Reservation) (domain.Reservation, bool, error)

	UpdateStatus(ctx context.Context, reservationID string, status domain.ReservationStatus) (domain.Reservation, error)
}
