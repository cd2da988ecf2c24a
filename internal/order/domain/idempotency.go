package domain

import (
	"errors"
	"time"
)

type IdempotencyStatus string

const (
	IdemInProgress IdempotencyStatus = "IN_PROGRESS"
	IdemCompleted  IdempotencyStatus = "COMPLETED"
)

var ErrIdemKeyNotFound = errors.New("idempotency key not found")

// IdempotencyRecord pins (user, key) to at most one saga execution. Inserted
// IN_PROGRESS exactly once; flipped to COMPLETED with the terminal order id
// exactly once.
type IdempotencyRecord struct {
	UserID    int64
	Key       string
	Status    IdempotencyStatus
	OrderID   string // set when Status == COMPLETED
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewIdempotencyRecord(userID int64, key string) IdempotencyRecord {
	now := time.Now().UTC()
	return IdempotencyRecord{
		UserID:    userID,
		Key:       key,
		Status:    IdemInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
