package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tickrush/flash-sale/internal/inventory/application"
	"github.com/tickrush/flash-sale/internal/inventory/domain"
	"github.com/tickrush/flash-sale/pkg/httpapi"
)

type Handler struct {
	log      *slog.Logger
	svc      *application.Service
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, svc *application.Service) *Handler {
	return &Handler{
		log:      log,
		svc:      svc,
		validate: validator.New(),
		tracer:   otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/inventory/reservations", h.reserve)
	r.Post("/inventory/reservations/{reservationID}/release", h.release)
	r.Post("/inventory/reservations/{reservationID}/commit", h.commit)
	r.Put("/inventory/admin/stocks/{ticketID}", h.initStock)
	r.Get("/inventory/stocks/{ticketID}", h.getStock)
	return r
}

type reserveReq struct {
	ReservationID string `json:"reservation_id" validate:"required,max=128"`
	TicketID      int64  `json:"ticket_id" validate:"required,gt=0"`
	Qty           int    `json:"qty" validate:"required,gt=0"`
}

type initStockReq struct {
	Available int `json:"available" validate:"gte=0"`
}

type reservationResp struct {
	ReservationID string `json:"reservation_id"`
	TicketID      int64  `json:"ticket_id"`
	Qty           int    `json:"qty"`
	Status        string `json:"status"`
}

type counterResp struct {
	TicketID  int64 `json:"ticket_id"`
	Available int   `json:"available"`
	Reserved  int   `json:"reserved"`
	Sold      int   `json:"sold"`
	Version   int64 `json:"version"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Reserve")
	defer span.End()

	var req reserveReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.svc.Reserve(ctx, req.ReservationID, req.TicketID, req.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toReservationResp(res))
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Release")
	defer span.End()

	res, err := h.svc.Release(ctx, chi.URLParam(r, "reservationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toReservationResp(res))
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Commit")
	defer span.End()

	res, err := h.svc.Commit(ctx, chi.URLParam(r, "reservationID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toReservationResp(res))
}

func (h *Handler) initStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitStock")
	defer span.End()

	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil || ticketID <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ticketID must be a positive integer")
		return
	}

	var req initStockReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	counter, err := h.svc.InitStock(ctx, ticketID, req.Available)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toCounterResp(counter))
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil || ticketID <= 0 {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ticketID must be a positive integer")
		return
	}
	counter, err := h.svc.GetCounter(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toCounterResp(counter))
}

// writeError is the single translation from engine errors to the wire.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		httpapi.WriteError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "insufficient stock")
	case errors.Is(err, domain.ErrTicketNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "TICKET_NOT_FOUND", "ticket stock not initialized")
	case errors.Is(err, domain.ErrReservationNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "reservation not found")
	case errors.Is(err, domain.ErrInvalidState):
		httpapi.WriteError(w, http.StatusConflict, "INVALID_STATE", "transition not allowed from current state")
	case errors.Is(err, domain.ErrStockInUse):
		httpapi.WriteError(w, http.StatusConflict, "STOCK_ALREADY_IN_USE", "cannot overwrite stock when reserved or sold is non-zero")
	case errors.Is(err, domain.ErrInconsistentState):
		httpapi.WriteError(w, http.StatusConflict, "INVALID_STATE", "inventory state inconsistent")
	default:
		h.log.Error("inventory handler error", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected error")
	}
}

func toReservationResp(res domain.Reservation) reservationResp {
	return reservationResp{
		ReservationID: res.ReservationID,
		TicketID:      res.TicketID,
		Qty:           res.Qty,
		Status:        string(res.Status),
	}
}

func toCounterResp(c domain.Counter) counterResp {
	return counterResp{
		TicketID:  c.TicketID,
		Available: c.Available,
		Reserved:  c.Reserved,
		Sold:      c.Sold,
		Version:   c.Version,
	}
}
