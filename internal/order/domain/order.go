package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusFailed    OrderStatus = "FAILED"
)

func ParseStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusPending, StatusConfirmed, StatusFailed:
		return OrderStatus(s), true
	}
	return "", false
}

// FailureReason is the terminal saga outcome recorded on a FAILED order.
type FailureReason string

const (
	ReasonInsufficientStock FailureReason = "INSUFFICIENT_STOCK"
	ReasonInventoryTimeout  FailureReason = "INVENTORY_TIMEOUT"
	ReasonInventoryError    FailureReason = "INVENTORY_ERROR"
	ReasonInvalidRequest    FailureReason = "INVALID_REQUEST"
	ReasonCatalogError      FailureReason = "CATALOG_ERROR"
	ReasonCatalogTimeout    FailureReason = "CATALOG_TIMEOUT"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderItem struct {
	TicketID       int64
	Qty            int
	UnitPriceCents int64
}

type Order struct {
	ID             string
	UserID         int64
	Status         OrderStatus
	FailureReason  FailureReason // empty unless Status == FAILED
	TotalCents     int64
	Currency       string
	IdempotencyKey string
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPendingOrder is the first durable record of a committed intent to buy:
// all reservations are held and prices are authoritative.
func NewPendingOrder(id string, userID int64, idemKey, currency string, items []OrderItem) Order {
	var total int64
	for _, it := range items {
		total += int64(it.Qty) * it.UnitPriceCents
	}
	now := time.Now().UTC()
	return Order{
		ID:             id,
		UserID:         userID,
		Status:         StatusPending,
		TotalCents:     total,
		Currency:       currency,
		IdempotencyKey: idemKey,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewFailedOrder records a saga that terminated before pricing completed.
// Line items are kept zero-priced for audit.
func NewFailedOrder(id string, userID int64, idemKey, currency string, reason FailureReason, items []OrderItem) Order {
	audit := make([]OrderItem, len(items))
	for i, it := range items {
		audit[i] = OrderItem{TicketID: it.TicketID, Qty: it.Qty, UnitPriceCents: 0}
	}
	now := time.Now().UTC()
	return Order{
		ID:             id,
		UserID:         userID,
		Status:         StatusFailed,
		FailureReason:  reason,
		Currency:       currency,
		IdempotencyKey: idemKey,
		Items:          audit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
