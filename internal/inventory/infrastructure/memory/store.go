// Package memory backs the reservation engine with in-process maps. Used by
// unit tests and the STORE=memory dev profile; the conditional-update
// contract matches the postgres implementation.
package memory

import (
	"context"
	"sync"

	"github.com/tickrush/flash-sale/internal/inventory/domain"
)

type Store struct {
	mu           sync.Mutex
	counters     map[int64]domain.Counter
	reservations map[string]domain.Reservation
}

func NewStore() *Store {
	return &Store{
		counters:     make(map[int64]domain.Counter),
		reservations: make(map[string]domain.Reservation),
	}
}

// Counters exposes the CounterStore view; Reservations the ReservationStore
// view. Both share the store's lock.
func (s *Store) Counters() *Counters         { return &Counters{s: s} }
func (s *Store) Reservations() *Reservations { return &Reservations{s: s} }

type Counters struct {
	s *Store
}

func (c *Counters) Get(_ context.Context, ticketID int64) (domain.Counter, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	counter, ok := c.s.counters[ticketID]
	if !ok {
		return domain.Counter{}, domain.ErrTicketNotFound
	}
	return counter, nil
}

func (c *Counters) Exists(_ context.Context, ticketID int64) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	_, ok := c.s.counters[ticketID]
	return ok, nil
}

func (c *Counters) Reserve(_ context.Context, ticketID int64, qty int) (bool, error) {
	return c.update(ticketID, func(ct *domain.Counter) bool {
		if ct.Available < qty {
			return false
		}
		ct.Available -= qty
		ct.Reserved += qty
		return true
	})
}

func (c *Counters) Release(_ context.Context, ticketID int64, qty int) (bool, error) {
	return c.update(ticketID, func(ct *domain.Counter) bool {
		if ct.Reserved < qty {
			return false
		}
		ct.Reserved -= qty
		ct.Available += qty
		return true
	})
}

func (c *Counters) Commit(_ context.Context, ticketID int64, qty int) (bool, error) {
	return c.update(ticketID, func(ct *domain.Counter) bool {
		if ct.Reserved < qty {
			return false
		}
		ct.Reserved -= qty
		ct.Sold += qty
		return true
	})
}

func (c *Counters) update(ticketID int64, mutate func(*domain.Counter) bool) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	counter, ok := c.s.counters[ticketID]
	if !ok {
		return false, nil
	}
	if !mutate(&counter) {
		return false, nil
	}
	counter.Version++
	c.s.counters[ticketID] = counter
	return true, nil
}

func (c *Counters) InitStock(_ context.Context, ticketID int64, available int) (domain.Counter, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	counter, ok := c.s.counters[ticketID]
	if !ok {
		counter = domain.NewCounter(ticketID, available)
	} else {
		counter.Available = available
		counter.Version++
	}
	c.s.counters[ticketID] = counter
	return counter, nil
}

type Reservations struct {
	s *Store
}

func (r *Reservations) Get(_ context.Context, reservationID string) (domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

func (r *Reservations) CreateIfAbsent(_ context.Context, res domain.Reservation) (domain.Reservation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.reservations[res.ReservationID]; ok {
		return existing, false, nil
	}
	r.s.reservations[res.ReservationID] = res
	return res, true, nil
}

func (r *Reservations) UpdateStatus(_ context.Context, reservationID string, status domain.ReservationStatus) (domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	res.Status = status
	r.s.reservations[reservationID] = res
	return res, nil
}
