package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tickrush/flash-sale/internal/order/domain"
	"github.com/tickrush/flash-sale/pkg/metrics"
)

const (
	defaultCurrency = "USD"
	maxPageSize     = 100
)

type CreateItem struct {
	TicketID int64
	Qty      int
}

type CreateResult struct {
	Order domain.Order
	// Created is false on an idempotent replay: the prior completed order
	// was returned unchanged.
	Created bool
}

type OrderPage struct {
	Orders []domain.Order
	Page   int
	Size   int
	Total  int64
}

// Service runs the order-placement saga: idempotency gate, sequential
// reserve, pricing, persist, commit, finalize. All compensation lives here.
// Correctness under concurrency comes entirely from the ledger's unique
// insert and the inventory engine's conditional updates; multiple instances
// of this service may run against the same key and the same tickets.
type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	ledger    IdempotencyLedger
	inventory InventoryClient
	catalog   CatalogClient
	publisher EventPublisher
}

func NewService(
	log *slog.Logger,
	repo OrderRepository,
	ledger IdempotencyLedger,
	inventory InventoryClient,
	catalog CatalogClient,
	publisher EventPublisher,
) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		ledger:    ledger,
		inventory: inventory,
		catalog:   catalog,
		publisher: publisher,
	}
}

// CreateOrder places an order for userID under idemKey. Once the idempotency
// gate passes, the saga runs to a terminal state: every outcome, success or
// failure, persists exactly one order and completes the ledger entry exactly
// once.
func (s *Service) CreateOrder(ctx context.Context, userID int64, idemKey, currency string, items []CreateItem) (CreateResult, error) {
	if idemKey == "" {
		return CreateResult{}, fmt.Errorf("%w: missing idempotency key", ErrBadRequest)
	}
	if currency == "" {
		currency = defaultCurrency
	}

	normalized, err := normalizeItems(items)
	if err != nil {
		return CreateResult{}, err
	}

	s.log.Info("create order attempt",
		"user_id", userID, "idem_key", idemKey, "items", len(normalized), "currency", currency)

	rec, started, err := s.ledger.Begin(ctx, userID, idemKey)
	if err != nil {
		return CreateResult{}, err
	}
	if !started {
		return s.replay(ctx, userID, idemKey, rec)
	}
	s.log.Info("idempotency slot acquired", "user_id", userID, "idem_key", idemKey)

	// Reserve phase: sorted ticket order, sequential, stop on first failure.
	var reserved []string
	var reason domain.FailureReason
	for _, it := range normalized {
		rid := reservationID(idemKey, it.TicketID)
		if _, err := s.inventory.Reserve(ctx, rid, it.TicketID, it.Qty); err != nil {
			reason = classifyReserveErr(err)
			s.log.Warn("reserve failed",
				"reservation_id", rid, "ticket_id", it.TicketID, "qty", it.Qty,
				"reason", reason, "err", err)
			break
		}
		reserved = append(reserved, rid)
		s.log.Info("inventory reserved", "reservation_id", rid, "ticket_id", it.TicketID, "qty", it.Qty)
	}
	if reason != "" {
		s.releaseAll(ctx, reserved, "reserve failed")
		return s.finishFailed(ctx, userID, idemKey, currency, normalized, reason)
	}

	// Pricing phase: authoritative unit prices from the catalog.
	priced := make([]domain.OrderItem, 0, len(normalized))
	for _, it := range normalized {
		price, err := s.catalog.GetTicketPrice(ctx, it.TicketID)
		if err != nil {
			reason = classifyCatalogErr(err)
			s.log.Warn("price lookup failed", "ticket_id", it.TicketID, "reason", reason, "err", err)
			break
		}
		priced = append(priced, domain.OrderItem{TicketID: it.TicketID, Qty: it.Qty, UnitPriceCents: price})
	}
	if reason != "" {
		s.releaseAll(ctx, reserved, "price lookup failed")
		return s.finishFailed(ctx, userID, idemKey, currency, normalized, reason)
	}

	// Persist PENDING: the first durable record of the intent to buy.
	pending := domain.NewPendingOrder(uuid.NewString(), userID, idemKey, currency, priced)
	saved, err := s.repo.Create(ctx, pending)
	if err != nil {
		// Nothing to complete the ledger against; release what we hold and
		// surface the storage failure. The ledger entry stays IN_PROGRESS.
		s.log.Error("persist pending order failed", "user_id", userID, "idem_key", idemKey, "err", err)
		s.releaseAll(ctx, reserved, "persist failed")
		return CreateResult{}, err
	}
	s.log.Info("order pending", "order_id", saved.ID, "user_id", userID, "total_cents", saved.TotalCents)

	// Commit phase: fail fast, no rollback of reservations already committed.
	for _, rid := range reserved {
		if _, err := s.inventory.Commit(ctx, rid); err != nil {
			reason = classifyCommitErr(err)
			s.log.Error("commit failed", "reservation_id", rid, "reason", reason, "err", err)
			break
		}
		s.log.Info("inventory committed", "reservation_id", rid)
	}
	if reason != "" {
		failed, err := s.repo.UpdateStatus(ctx, saved.ID, domain.StatusFailed, reason)
		if err != nil {
			return CreateResult{}, err
		}
		s.completeLedger(ctx, userID, idemKey, failed.ID)
		metrics.OrdersTotal.WithLabelValues(string(domain.StatusFailed), string(reason)).Inc()
		return CreateResult{Order: failed, Created: true}, nil
	}

	confirmed, err := s.repo.UpdateStatus(ctx, saved.ID, domain.StatusConfirmed, "")
	if err != nil {
		return CreateResult{}, err
	}
	s.completeLedger(ctx, userID, idemKey, confirmed.ID)
	s.log.Info("order confirmed", "order_id", confirmed.ID, "user_id", userID, "idem_key", idemKey)
	metrics.OrdersTotal.WithLabelValues(string(domain.StatusConfirmed), "").Inc()

	s.publishCreated(ctx, confirmed, normalized)
	return CreateResult{Order: confirmed, Created: true}, nil
}

// replay resolves a lost Begin race: concurrent duplicates conflict,
// completed keys return the prior order unchanged.
func (s *Service) replay(ctx context.Context, userID int64, idemKey string, rec domain.IdempotencyRecord) (CreateResult, error) {
	if rec.Status == domain.IdemInProgress {
		s.log.Warn("duplicate request in progress", "user_id", userID, "idem_key", idemKey)
		return CreateResult{}, ErrRequestInProgress
	}
	if rec.OrderID == "" {
		// COMPLETED without an order id should not happen; treat as a
		// conflict rather than inventing an order.
		s.log.Error("ledger anomaly: completed without order id", "user_id", userID, "idem_key", idemKey)
		return CreateResult{}, ErrRequestInProgress
	}
	order, err := s.repo.GetByID(ctx, userID, rec.OrderID)
	if err != nil {
		s.log.Error("ledger anomaly: completed but order missing",
			"user_id", userID, "idem_key", idemKey, "order_id", rec.OrderID, "err", err)
		return CreateResult{}, ErrRequestInProgress
	}
	s.log.Info("idempotent replay", "user_id", userID, "idem_key", idemKey, "order_id", order.ID)
	return CreateResult{Order: order, Created: false}, nil
}

// finishFailed records the terminal failure: a FAILED order with zero-priced
// audit items, and the ledger completed against it.
func (s *Service) finishFailed(ctx context.Context, userID int64, idemKey, currency string, items []CreateItem, reason domain.FailureReason) (CreateResult, error) {
	audit := make([]domain.OrderItem, len(items))
	for i, it := range items {
		audit[i] = domain.OrderItem{TicketID: it.TicketID, Qty: it.Qty}
	}
	failed := domain.NewFailedOrder(uuid.NewString(), userID, idemKey, currency, reason, audit)
	saved, err := s.repo.Create(ctx, failed)
	if err != nil {
		s.log.Error("persist failed order failed", "user_id", userID, "idem_key", idemKey, "err", err)
		return CreateResult{}, err
	}
	s.completeLedger(ctx, userID, idemKey, saved.ID)
	s.log.Info("order failed", "order_id", saved.ID, "user_id", userID, "reason", reason)
	metrics.OrdersTotal.WithLabelValues(string(domain.StatusFailed), string(reason)).Inc()
	return CreateResult{Order: saved, Created: true}, nil
}

// releaseAll compensates acquired reservations, best effort: failures are
// logged and left for manual intervention.
func (s *Service) releaseAll(ctx context.Context, reserved []string, cause string) {
	if len(reserved) == 0 {
		return
	}
	for _, rid := range reserved {
		if _, err := s.inventory.Release(ctx, rid); err != nil {
			s.log.Error("compensating release failed", "reservation_id", rid, "cause", cause, "err", err)
			continue
		}
		s.log.Info("inventory released", "reservation_id", rid, "cause", cause)
	}
}

func (s *Service) completeLedger(ctx context.Context, userID int64, idemKey, orderID string) {
	if err := s.ledger.Complete(ctx, userID, idemKey, orderID); err != nil {
		s.log.Error("ledger complete failed", "user_id", userID, "idem_key", idemKey, "order_id", orderID, "err", err)
	}
}

// publishCreated enqueues the notification. Fire and forget: a publish
// failure never changes the order's status.
func (s *Service) publishCreated(ctx context.Context, order domain.Order, items []CreateItem) {
	ev := domain.OrderCreated{
		EventID:        uuid.NewString(),
		OccurredAt:     time.Now().UTC(),
		OrderID:        order.ID,
		UserID:         order.UserID,
		IdempotencyKey: order.IdempotencyKey,
		Items:          make([]domain.OrderCreatedItem, len(items)),
	}
	for i, it := range items {
		ev.Items[i] = domain.OrderCreatedItem{TicketID: it.TicketID, Qty: it.Qty}
	}
	if err := s.publisher.PublishOrderCreated(ctx, ev); err != nil {
		s.log.Error("publish order created failed", "order_id", order.ID, "event_id", ev.EventID, "err", err)
	}
}

func (s *Service) GetOrder(ctx context.Context, userID int64, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: missing order id", ErrBadRequest)
	}
	return s.repo.GetByID(ctx, userID, orderID)
}

func (s *Service) ListOrders(ctx context.Context, userID int64, status string, page, size int) (OrderPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	var st domain.OrderStatus
	if status != "" {
		parsed, ok := domain.ParseStatus(status)
		if !ok {
			return OrderPage{}, fmt.Errorf("%w: invalid status %q (allowed: PENDING, CONFIRMED, FAILED)", ErrBadRequest, status)
		}
		st = parsed
	}

	orders, total, err := s.repo.List(ctx, userID, st, page, size)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Orders: orders, Page: page, Size: size, Total: total}, nil
}

// GetByIdempotencyKey resolves a request key to its order, reporting
// in-flight executions as conflicts.
func (s *Service) GetByIdempotencyKey(ctx context.Context, userID int64, idemKey string) (domain.Order, error) {
	if idemKey == "" {
		return domain.Order{}, fmt.Errorf("%w: missing idempotency key", ErrBadRequest)
	}
	rec, err := s.ledger.Get(ctx, userID, idemKey)
	if err != nil {
		return domain.Order{}, err
	}
	if rec.Status == domain.IdemInProgress {
		return domain.Order{}, ErrRequestInProgress
	}
	if rec.OrderID == "" {
		s.log.Error("ledger anomaly: completed without order id", "user_id", userID, "idem_key", idemKey)
		return domain.Order{}, ErrRequestInProgress
	}
	return s.repo.GetByID(ctx, userID, rec.OrderID)
}

// normalizeItems validates and sorts by ticket id so distinct executions
// acquire reservations in the same order.
func normalizeItems(items []CreateItem) ([]CreateItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items is required", ErrBadRequest)
	}
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if it.TicketID <= 0 {
			return nil, fmt.Errorf("%w: ticket id must be positive", ErrBadRequest)
		}
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: qty must be positive", ErrBadRequest)
		}
		if seen[it.TicketID] {
			return nil, fmt.Errorf("%w: duplicate ticket id %d", ErrBadRequest, it.TicketID)
		}
		seen[it.TicketID] = true
	}
	normalized := make([]CreateItem, len(items))
	copy(normalized, items)
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].TicketID < normalized[j].TicketID })
	return normalized, nil
}

func reservationID(idemKey string, ticketID int64) string {
	return idemKey + ":" + strconv.FormatInt(ticketID, 10)
}

func classifyReserveErr(err error) domain.FailureReason {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return domain.ReasonInsufficientStock
	case errors.Is(err, ErrItemNotFound):
		return domain.ReasonInvalidRequest
	case errors.Is(err, ErrTimeout):
		return domain.ReasonInventoryTimeout
	default:
		return domain.ReasonInventoryError
	}
}

func classifyCommitErr(err error) domain.FailureReason {
	if errors.Is(err, ErrTimeout) {
		return domain.ReasonInventoryTimeout
	}
	return domain.ReasonInventoryError
}

func classifyCatalogErr(err error) domain.FailureReason {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return domain.ReasonInvalidRequest
	case errors.Is(err, ErrTimeout):
		return domain.ReasonCatalogTimeout
	default:
		return domain.ReasonCatalogError
	}
}
