package application

import (
	"context"

	"github.com/tickrush/flash-sale/internal/catalog/domain"
)

type EventStore interface {
	CreateEvent(ctx context.Context, ev domain.SaleEvent) (domain.SaleEvent, error)
	GetEvent(ctx context.Context, id int64) (domain.SaleEvent, error)
	ListEvents(ctx context.Context) ([]domain.SaleEvent, error)
}

type TicketStore interface {
	CreateTicket(ctx context.Context, t domain.Ticket) (domain.Ticket, error)
	UpdateTicketPrice(ctx context.Context, id, priceCents int64) (domain.Ticket, error)
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID int64) ([]domain.Ticket, error)
}

// TicketCache is the read-through cache in front of TicketStore. A miss is
// (zero, false, nil); errors are cache-infrastructure failures the caller
// may ignore.
type TicketCache interface {
	Get(ctx context.Context, id int64) (domain.Ticket, bool, error)
	Set(ctx context.Context, t domain.Ticket) error
	Evict(ctx context.Context, id int64) error
}
