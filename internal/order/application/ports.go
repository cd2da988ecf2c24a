package application

import (
	"context"
	"errors"

	"github.com/tickrush/flash-sale/internal/order/domain"
)

// Collaborator failure classification. The HTTP clients fold every failure
// into one of these kinds; the saga maps them to a FailureReason per phase.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidState      = errors.New("invalid reservation state")
	ErrTimeout           = errors.New("collaborator timeout")
)

// Request-level errors surfaced before any order exists.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrRequestInProgress = errors.New("request already in progress")
)

type OrderRepository interface {
	Create(ctx context.Context, o domain.Order) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, reason domain.FailureReason) (domain.Order, error)
	GetByID(ctx context.Context, userID int64, orderID string) (domain.Order, error)
	List(ctx context.Context, userID int64, status domain.OrderStatus, page, size int) ([]domain.Order, int64, error)
}

// IdempotencyLedger guards at-most-one in-flight saga per (user, key).
type IdempotencyLedger interface {
	// Begin attempts the unconditional insert. started=true means this
	// caller owns the execution; otherwise rec is the existing row.
	Begin(ctx context.Context, userID int64, key string) (rec domain.IdempotencyRecord, started bool, err error)
	// Complete flips IN_PROGRESS to COMPLETED, recording the terminal order.
	// Called exactly once per saga execution.
	Complete(ctx context.Context, userID int64, key, orderID string) error
	Get(ctx context.Context, userID int64, key string) (domain.IdempotencyRecord, error)
}

// ReservationInfo mirrors the inventory service's reservation view.
type ReservationInfo struct {
	ReservationID string `json:"reservation_id"`
	TicketID      int64  `json:"ticket_id"`
	Qty           int    `json:"qty"`
	Status        string `json:"status"`
}

type InventoryClient interface {
	Reserve(ctx context.Context, reservationID string, ticketID int64, qty int) (ReservationInfo, error)
	Release(ctx context.Context, reservationID string) (ReservationInfo, error)
	Commit(ctx context.Context, reservationID string) (ReservationInfo, error)
}

type CatalogClient interface {
	// GetTicketPrice returns the authoritative unit price in cents.
	GetTicketPrice(ctx context.Context, ticketID int64) (int64, error)
}

// EventPublisher hands the order-created notification to the delivery
// pipeline. Enqueue failures are the caller's to log and ignore.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev domain.OrderCreated) error
}
