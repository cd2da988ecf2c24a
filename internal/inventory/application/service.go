package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tickrush/flash-sale/internal/inventory/domain"
	"github.com/tickrush/flash-sale/pkg/metrics"
)

// Service drives the reservation state machine:
//
//	INIT -> RESERVED -> COMMITTED
//	INIT -> FAILED
//	RESERVED -> RELEASED
//
// Reserve is idempotent on reservation id; release on an already-RELEASED
// reservation and commit on an already-COMMITTED one are no-op successes.
type Service struct {
	log          *slog.Logger
	counters     CounterStore
	reservations ReservationStore
}

func NewService(log *slog.Logger, counters CounterStore, reservations ReservationStore) *Service {
	return &Service{log: log, counters: counters, reservations: reservations}
}

// Reserve claims qty units of ticketID under reservationID.
//
// Step order matters: the reservation row is inserted first (INIT) to occupy
// the idempotency slot, then the counter is decremented conditionally, then
// the row is moved to RESERVED or FAILED. A repeated or racing reserve with
// the same id returns the stored row verbatim and never re-applies counter
// arithmetic.
func (s *Service) Reserve(ctx context.Context, reservationID string, ticketID int64, qty int) (domain.Reservation, error) {
	if reservationID == "" || qty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidArgument
	}

	// Idempotency fast path.
	existing, err := s.reservations.Get(ctx, reservationID)
	if err == nil {
		s.log.Info("reserve idempotent replay", "reservation_id", reservationID, "status", existing.Status)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrReservationNotFound) {
		return domain.Reservation{}, err
	}

	created, won, err := s.reservations.CreateIfAbsent(ctx, domain.NewReservation(reservationID, ticketID, qty))
	if err != nil {
		return domain.Reservation{}, err
	}
	if !won {
		// Another request inserted the same reservation id concurrently.
		s.log.Info("reserve lost create race", "reservation_id", reservationID, "status", created.Status)
		return created, nil
	}

	exists, err := s.counters.Exists(ctx, ticketID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !exists {
		if _, err := s.reservations.UpdateStatus(ctx, reservationID, domain.StatusFailed); err != nil {
			s.log.Error("mark reservation failed", "reservation_id", reservationID, "err", err)
		}
		s.log.Warn("reserve failed: ticket not found",
			"reservation_id", reservationID, "ticket_id", ticketID, "qty", qty)
		metrics.ReservationsTotal.WithLabelValues("not_found").Inc()
		return domain.Reservation{}, domain.ErrTicketNotFound
	}

	ok, err := s.counters.Reserve(ctx, ticketID, qty)
	if err != nil {
		return domain.Reservation{}, err
	}
	if ok {
		res, err := s.reservations.UpdateStatus(ctx, reservationID, domain.StatusReserved)
		if err != nil {
			return domain.Reservation{}, err
		}
		s.log.Info("reserve success", "reservation_id", reservationID, "ticket_id", ticketID, "qty", qty)
		metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
		return res, nil
	}

	if _, err := s.reservations.UpdateStatus(ctx, reservationID, domain.StatusFailed); err != nil {
		s.log.Error("mark reservation failed", "reservation_id", reservationID, "err", err)
	}
	s.log.Info("reserve insufficient", "reservation_id", reservationID, "ticket_id", ticketID, "qty", qty)
	metrics.ReservationsTotal.WithLabelValues("insufficient").Inc()
	return domain.Reservation{}, domain.ErrInsufficientStock
}

// Release returns reserved units to available. Only RESERVED admits release;
// RELEASED replays are no-ops.
func (s *Service) Release(ctx context.Context, reservationID string) (domain.Reservation, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}

	switch res.Status {
	case domain.StatusReleased:
		s.log.Info("release idempotent", "reservation_id", reservationID)
		return res, nil
	case domain.StatusCommitted:
		s.log.Warn("release rejected: already committed", "reservation_id", reservationID)
		return domain.Reservation{}, domain.ErrInvalidState
	case domain.StatusInit, domain.StatusFailed:
		s.log.Warn("release rejected: not reserved",
			"reservation_id", reservationID, "status", res.Status)
		return domain.Reservation{}, domain.ErrInvalidState
	}

	ok, err := s.counters.Release(ctx, res.TicketID, res.Qty)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !ok {
		s.log.Error("release conditional update matched no row",
			"reservation_id", reservationID, "ticket_id", res.TicketID, "qty", res.Qty)
		return domain.Reservation{}, domain.ErrInconsistentState
	}

	released, err := s.reservations.UpdateStatus(ctx, reservationID, domain.StatusReleased)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.log.Info("release success", "reservation_id", reservationID, "ticket_id", res.TicketID, "qty", res.Qty)
	metrics.ReservationsTotal.WithLabelValues("released").Inc()
	return released, nil
}

// Commit converts reserved units into sold. Only RESERVED admits commit;
// COMMITTED replays are no-ops.
func (s *Service) Commit(ctx context.Context, reservationID string) (domain.Reservation, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}

	switch res.Status {
	case domain.StatusCommitted:
		s.log.Info("commit idempotent", "reservation_id", reservationID)
		return res, nil
	case domain.StatusReleased:
		s.log.Warn("commit rejected: already released", "reservation_id", reservationID)
		return domain.Reservation{}, domain.ErrInvalidState
	case domain.StatusInit, domain.StatusFailed:
		s.log.Warn("commit rejected: not reserved",
			"reservation_id", reservationID, "status", res.Status)
		return domain.Reservation{}, domain.ErrInvalidState
	}

	ok, err := s.counters.Commit(ctx, res.TicketID, res.Qty)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !ok {
		s.log.Error("commit conditional update matched no row",
			"reservation_id", reservationID, "ticket_id", res.TicketID, "qty", res.Qty)
		return domain.Reservation{}, domain.ErrInconsistentState
	}

	committed, err := s.reservations.UpdateStatus(ctx, reservationID, domain.StatusCommitted)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.log.Info("commit success", "reservation_id", reservationID, "ticket_id", res.TicketID, "qty", res.Qty)
	metrics.ReservationsTotal.WithLabelValues("committed").Inc()
	return committed, nil
}

// InitStock sets available to an absolute value. Overwriting is rejected
// while any units are reserved or sold, so in-flight claims cannot be
// silently clobbered.
func (s *Service) InitStock(ctx context.Context, ticketID int64, available int) (domain.Counter, error) {
	if available < 0 {
		return domain.Counter{}, domain.ErrInvalidArgument
	}

	current, err := s.counters.Get(ctx, ticketID)
	if err != nil && !errors.Is(err, domain.ErrTicketNotFound) {
		return domain.Counter{}, err
	}
	if err == nil && (current.Reserved != 0 || current.Sold != 0) {
		s.log.Warn("init stock rejected",
			"ticket_id", ticketID, "reserved", current.Reserved, "sold", current.Sold)
		return domain.Counter{}, domain.ErrStockInUse
	}

	counter, err := s.counters.InitStock(ctx, ticketID, available)
	if err != nil {
		return domain.Counter{}, err
	}
	s.log.Info("stock initialized", "ticket_id", ticketID, "available", available, "version", counter.Version)
	return counter, nil
}

func (s *Service) GetCounter(ctx context.Context, ticketID int64) (domain.Counter, error) {
	return s.counters.Get(ctx, ticketID)
}
