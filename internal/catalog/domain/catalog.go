package domain

import (
	"errors"
	"time"
)

var (
	ErrEventNotFound  = errors.New("sale event not found")
	ErrTicketNotFound = errors.New("ticket not found")
)

// SaleEvent groups the tickets of one flash sale.
type SaleEvent struct {
	ID        int64
	Name      string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ticket is a purchasable tier of a sale event. PriceCents is the
// authoritative unit price quoted to the order service.
type Ticket struct {
	ID          int64
	SaleEventID int64
	Name        string
	PriceCents  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
