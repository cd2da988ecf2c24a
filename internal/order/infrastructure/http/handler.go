package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tickrush/flash-sale/internal/order/application"
	"github.com/tickrush/flash-sale/internal/order/domain"
	"github.com/tickrush/flash-sale/pkg/httpapi"
)

const (
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// OrderService is the slice of the application service the handler needs.
type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, idemKey, currency string, items []application.CreateItem) (application.CreateResult, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID int64, status string, page, size int) (application.OrderPage, error)
	GetByIdempotencyKey(ctx context.Context, userID int64, idemKey string) (domain.Order, error)
}

type Handler struct {
	log      *slog.Logger
	svc      OrderService
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, svc OrderService) *Handler {
	return &Handler{
		log:      log,
		svc:      svc,
		validate: validator.New(),
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{orderID}", h.get)
	r.Get("/orders/by-key/{key}", h.getByKey)
	return r
}

type createItemReq struct {
	TicketID int64 `json:"ticket_id" validate:"required,gt=0"`
	Qty      int   `json:"qty" validate:"required,gt=0"`
}

type createReq struct {
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Items    []createItemReq `json:"items" validate:"required,min=1,max=20,dive"`
}

type orderItemResp struct {
	TicketID       int64 `json:"ticket_id"`
	Qty            int   `json:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

type orderResp struct {
	ID             string          `json:"id"`
	UserID         int64           `json:"user_id"`
	Status         string          `json:"status"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	TotalCents     int64           `json:"total_cents"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
	Items          []orderItemResp `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type orderPageResp struct {
	Orders []orderResp `json:"orders"`
	Page   int         `json:"page"`
	Size   int         `json:"size"`
	Total  int64       `json:"total"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	idemKey := r.Header.Get(headerIdempotencyKey)
	if idemKey == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Idempotency-Key header is required")
		return
	}

	var req createReq
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	items := make([]application.CreateItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = application.CreateItem{TicketID: it.TicketID, Qty: it.Qty}
	}

	res, err := h.svc.CreateOrder(ctx, userID, idemKey, req.Currency, items)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	httpapi.WriteJSON(w, status, toOrderResp(res.Order))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	pageRes, err := h.svc.ListOrders(r.Context(), userID, q.Get("status"), page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := orderPageResp{
		Orders: make([]orderResp, len(pageRes.Orders)),
		Page:   pageRes.Page,
		Size:   pageRes.Size,
		Total:  pageRes.Total,
	}
	for i, o := range pageRes.Orders {
		resp.Orders[i] = toOrderResp(o)
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) getByKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetByIdempotencyKey(r.Context(), userID, chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(headerUserID)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "X-User-ID header is required")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrBadRequest):
		httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, application.ErrRequestInProgress):
		httpapi.WriteError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
	case errors.Is(err, domain.ErrOrderNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "order not found")
	case errors.Is(err, domain.ErrIdemKeyNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "idempotency key not found")
	default:
		h.log.Error("order handler error", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected error")
	}
}

func toOrderResp(o domain.Order) orderResp {
	items := make([]orderItemResp, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResp{TicketID: it.TicketID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents}
	}
	return orderResp{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		FailureReason:  string(o.FailureReason),
		TotalCents:     o.TotalCents,
		Currency:       o.Currency,
		IdempotencyKey: o.IdempotencyKey,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
