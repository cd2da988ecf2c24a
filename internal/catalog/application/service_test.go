package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickrush/flash-sale/internal/catalog/application"
	"github.com/tickrush/flash-sale/internal/catalog/domain"
)

type memStore struct {
	events  map[int64]domain.SaleEvent
	tickets map[int64]domain.Ticket
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{events: map[int64]domain.SaleEvent{}, tickets: map[int64]domain.Ticket{}}
}

func (s *memStore) CreateEvent(ctx context.Context, ev domain.SaleEvent) (domain.SaleEvent, error) {
	s.nextID++
	ev.ID = s.nextID
	s.events[ev.ID] = ev
	return ev, nil
}

func (s *memStore) GetEvent(ctx context.Context, id int64) (domain.SaleEvent, error) {
	ev, ok := s.events[id]
	if !ok {
		return domain.SaleEvent{}, domain.ErrEventNotFound
	}
	return ev, nil
}

func (s *memStore) ListEvents(ctx context.Context) ([]domain.SaleEvent, error) {
	var out []domain.SaleEvent
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out, nil
}

func (s *memStore) CreateTicket(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	s.nextID++
	t.ID = s.nextID
	s.tickets[t.ID] = t
	return t, nil
}

func (s *memStore) UpdateTicketPrice(ctx context.Context, id, priceCents int64) (domain.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	t.PriceCents = priceCents
	s.tickets[id] = t
	return t, nil
}

func (s *memStore) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	return t, nil
}

func (s *memStore) ListTicketsByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.SaleEventID == eventID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memCache struct {
	entries map[int64]domain.Ticket
	getErr  error
	gets    int
	sets    int
	evicts  int
}

func newMemCache() *memCache {
	return &memCache{entries: map[int64]domain.Ticket{}}
}

func (c *memCache) Get(ctx context.Context, id int64) (domain.Ticket, bool, error) {
	c.gets++
	if c.getErr != nil {
		return domain.Ticket{}, false, c.getErr
	}
	t, ok := c.entries[id]
	return t, ok, nil
}

func (c *memCache) Set(ctx context.Context, t domain.Ticket) error {
	c.sets++
	c.entries[t.ID] = t
	return nil
}

func (c *memCache) Evict(ctx context.Context, id int64) error {
	c.evicts++
	delete(c.entries, id)
	return nil
}

func newService(t *testing.T) (*application.Service, *memStore, *memCache) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	cache := newMemCache()
	return application.NewService(log, store, store, cache), store, cache
}

func TestGetTicketCacheAside(t *testing.T) {
	svc, store, cache := newService(t)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, "midnight drop", domain.SaleEvent{})
	require.NoError(t, err)
	created, err := svc.CreateTicket(ctx, domain.Ticket{SaleEventID: ev.ID, Name: "GA", PriceCents: 2500})
	require.NoError(t, err)

	// First read misses and populates.
	got, err := svc.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.PriceCents)
	assert.Equal(t, 1, cache.sets)

	// Second read is served by the cache: mutate the store underneath.
	store.tickets[created.ID] = domain.Ticket{ID: created.ID, PriceCents: 9999}
	got, err = svc.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.PriceCents)
	assert.Equal(t, 1, cache.sets)
}

func TestGetTicketCacheFailureFallsThrough(t *testing.T) {
	svc, _, cache := newService(t)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, "drop", domain.SaleEvent{})
	require.NoError(t, err)
	created, err := svc.CreateTicket(ctx, domain.Ticket{SaleEventID: ev.ID, Name: "VIP", PriceCents: 10000})
	require.NoError(t, err)

	cache.getErr = errors.New("redis down")
	got, err := svc.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.PriceCents)
}

func TestGetTicketNotFound(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.GetTicket(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestUpdateTicketPriceEvicts(t *testing.T) {
	svc, _, cache := newService(t)
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, "drop", domain.SaleEvent{})
	require.NoError(t, err)
	created, err := svc.CreateTicket(ctx, domain.Ticket{SaleEventID: ev.ID, Name: "GA", PriceCents: 2500})
	require.NoError(t, err)

	_, err = svc.GetTicket(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.UpdateTicketPrice(ctx, created.ID, 3000)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.evicts)

	got, err := svc.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.PriceCents)
}

func TestCreateTicketRequiresEvent(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreateTicket(context.Background(), domain.Ticket{SaleEventID: 99, PriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestUpdateTicketPriceNegative(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.UpdateTicketPrice(context.Background(), 1, -1)
	assert.Error(t, err)
}
