package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tickrush/flash-sale/internal/catalog/domain"
)

// Service serves the read-heavy ticket lookups behind a cache and the small
// admin write surface. Writes evict so the next read repopulates from the
// store; a stale ticket lives at most one cache TTL.
type Service struct {
	log     *slog.Logger
	events  EventStore
	tickets TicketStore
	cache   TicketCache
}

func NewService(log *slog.Logger, events EventStore, tickets TicketStore, cache TicketCache) *Service {
	return &Service{log: log, events: events, tickets: tickets, cache: cache}
}

// GetTicket is cache-aside: cache failures degrade to the store, never to
// an error.
func (s *Service) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	if t, ok, err := s.cache.Get(ctx, id); err != nil {
		s.log.Warn("ticket cache read failed", "ticket_id", id, "err", err)
	} else if ok {
		return t, nil
	}

	t, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.cache.Set(ctx, t); err != nil {
		s.log.Warn("ticket cache write failed", "ticket_id", id, "err", err)
	}
	return t, nil
}

func (s *Service) CreateEvent(ctx context.Context, name string, ev domain.SaleEvent) (domain.SaleEvent, error) {
	if name == "" {
		return domain.SaleEvent{}, fmt.Errorf("event name is required")
	}
	ev.Name = name
	created, err := s.events.CreateEvent(ctx, ev)
	if err != nil {
		return domain.SaleEvent{}, err
	}
	s.log.Info("sale event created", "event_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (domain.SaleEvent, error) {
	return s.events.GetEvent(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context) ([]domain.SaleEvent, error) {
	return s.events.ListEvents(ctx)
}

func (s *Service) CreateTicket(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	if t.PriceCents < 0 {
		return domain.Ticket{}, fmt.Errorf("price must not be negative")
	}
	if _, err := s.events.GetEvent(ctx, t.SaleEventID); err != nil {
		return domain.Ticket{}, err
	}
	created, err := s.tickets.CreateTicket(ctx, t)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.log.Info("ticket created", "ticket_id", created.ID, "event_id", created.SaleEventID, "price_cents", created.PriceCents)
	return created, nil
}

// UpdateTicketPrice persists the new price, then evicts. Eviction failures
// are logged: the TTL bounds the staleness window.
func (s *Service) UpdateTicketPrice(ctx context.Context, id, priceCents int64) (domain.Ticket, error) {
	if priceCents < 0 {
		return domain.Ticket{}, fmt.Errorf("price must not be negative")
	}
	t, err := s.tickets.UpdateTicketPrice(ctx, id, priceCents)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.cache.Evict(ctx, id); err != nil {
		s.log.Warn("ticket cache evict failed", "ticket_id", id, "err", err)
	}
	s.log.Info("ticket price updated", "ticket_id", id, "price_cents", priceCents)
	return t, nil
}

func (s *Service) ListTicketsByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.tickets.ListTicketsByEvent(ctx, eventID)
}
