package domain

import (
	"errors"
	"time"
)

type ReservationStatus string

const (
	StatusInit      ReservationStatus = "INIT"
	StatusReserved  ReservationStatus = "RESERVED"
	StatusFailed    ReservationStatus = "FAILED"
	StatusReleased  ReservationStatus = "RELEASED"
	StatusCommitted ReservationStatus = "COMMITTED"
)

// Terminal reports whether no further transition is allowed. RESERVED is the
// only non-terminal state reachable after creation.
func (s ReservationStatus) Terminal() bool {
	return s == StatusFailed || s == StatusReleased || s == StatusCommitted
}

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTicketNotFound      = errors.New("ticket stock not initialized")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidState        = errors.New("invalid reservation state")
	ErrStockInUse          = errors.New("cannot overwrite stock while reserved or sold is non-zero")
	ErrInconsistentState   = errors.New("inventory counters inconsistent with reservation")
)

// Counter is the per-ticket stock row. available+reserved+sold stays constant
// outside stock initialization; version increments on every successful
// conditional update.
type Counter struct {
	TicketID  int64
	Available int
	Reserved  int
	Sold      int
	Version   int64
	UpdatedAt time.Time
}

func NewCounter(ticketID int64, available int) Counter {
	return Counter{
		TicketID:  ticketID,
		Available: available,
		Version:   0,
		UpdatedAt: time.Now().UTC(),
	}
}

// Reservation is the audit record of a stock claim. Rows are never deleted;
// terminal rows keep the full history of the claim.
type Reservation struct {
	ReservationID string
	TicketID      int64
	Qty           int
	Status        ReservationStatus
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewReservation(reservationID string, ticketID int64, qty int) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ReservationID: reservationID,
		TicketID:      ticketID,
		Qty:           qty,
		Status:        StatusInit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
