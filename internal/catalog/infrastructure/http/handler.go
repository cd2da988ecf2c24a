package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tickrush/flash-sale/internal/catalog/application"
	"github.com/tickrush/flash-sale/internal/catalog/domain"
	"github.com/tickrush/flash-sale/pkg/httpapi"
)

type Handler struct {
	log      *slog.Logger
	svc      *application.Service
	validate *validator.Validate
}

func NewHandler(log *slog.Logger, svc *application.Service) *Handler {
	return &Handler{log: log, svc: svc, validate: validator.New()}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/catalog/tickets/{ticketID}", h.getTicket)
	r.Get("/catalog/events", h.listEvents)
	r.Get("/catalog/events/{eventID}", h.getEvent)
	r.Get("/catalog/events/{eventID}/tickets", h.listTickets)
	r.Post("/catalog/admin/events", h.createEvent)
	r.Post("/catalog/admin/tickets", h.createTicket)
	r.Put("/catalog/admin/tickets/{ticketID}/price", h.updatePrice)
	return r
}

type createEventReq struct {
	Name     string    `json:"name" validate:"required,max=256"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

type createTicketReq struct {
	SaleEventID int64  `json:"sale_event_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=256"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
}

type updatePriceReq struct {
	PriceCents int64 `json:"price_cents" validate:"gte=0"`
}

type eventResp struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type ticketResp struct {
	ID          int64  `json:"id"`
	SaleEventID int64  `json:"sale_event_id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	t, err := h.svc.GetTicket(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toTicketResp(t))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]eventResp, len(events))
	for i, ev := range events {
		out[i] = toEventResp(ev)
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	ev, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toEventResp(ev))
}

func (h *Handler) listTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	tickets, err := h.svc.ListTicketsByEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]ticketResp, len(tickets))
	for i, t := range tickets {
		out[i] = toTicketResp(t)
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	ev, err := h.svc.CreateEvent(r.Context(), req.Name, domain.SaleEvent{StartsAt: req.StartsAt, EndsAt: req.EndsAt})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toEventResp(ev))
}

func (h *Handler) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	t, err := h.svc.CreateTicket(r.Context(), domain.Ticket{
		SaleEventID: req.SaleEventID, Name: req.Name, PriceCents: req.PriceCents,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toTicketResp(t))
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "ticketID")
	if !ok {
		return
	}
	var req updatePriceReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	t, err := h.svc.UpdateTicketPrice(r.Context(), id, req.PriceCents)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toTicketResp(t))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found")
	case errors.Is(err, domain.ErrEventNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "sale event not found")
	default:
		h.log.Error("catalog handler error", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected error")
	}
}

func toEventResp(ev domain.SaleEvent) eventResp {
	return eventResp{ID: ev.ID, Name: ev.Name, StartsAt: ev.StartsAt, EndsAt: ev.EndsAt}
}

func toTicketResp(t domain.Ticket) ticketResp {
	return ticketResp{ID: t.ID, SaleEventID: t.SaleEventID, Name: t.Name, PriceCents: t.PriceCents}
}
