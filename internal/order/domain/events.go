package domain

import "time"

const OrderCreatedTopic = "order.created.v1"

type OrderCreatedItem struct {
	TicketID int64 `json:"ticket_id"`
	Qty      int   `json:"qty"`
}

// OrderCreated announces a CONFIRMED order. Delivered at least once.
type OrderCreated struct {
	EventID        string             `json:"event_id"`
	OccurredAt     time.Time          `json:"occurred_at"`
	OrderID        string             `json:"order_id"`
	UserID         int64              `json:"user_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Items          []OrderCreatedItem `json:"items"`
}
