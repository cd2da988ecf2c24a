package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickrush/flash-sale/internal/order/application"
	"github.com/tickrush/flash-sale/internal/order/domain"
	orderhttp "github.com/tickrush/flash-sale/internal/order/infrastructure/http"
)

type stubService struct {
	createRes application.CreateResult
	createErr error
	getRes    domain.Order
	getErr    error
	listRes   application.OrderPage
	listErr   error
	byKeyRes  domain.Order
	byKeyErr  error

	gotUserID int64
	gotKey    string
	gotItems  []application.CreateItem
}

func (s *stubService) CreateOrder(ctx context.Context, userID int64, idemKey, currency string, items []application.CreateItem) (application.CreateResult, error) {
	s.gotUserID = userID
	s.gotKey = idemKey
	s.gotItems = items
	return s.createRes, s.createErr
}

func (s *stubService) GetOrder(ctx context.Context, userID int64, orderID string) (domain.Order, error) {
	s.gotUserID = userID
	return s.getRes, s.getErr
}

func (s *stubService) ListOrders(ctx context.Context, userID int64, status string, page, size int) (application.OrderPage, error) {
	s.gotUserID = userID
	return s.listRes, s.listErr
}

func (s *stubService) GetByIdempotencyKey(ctx context.Context, userID int64, idemKey string) (domain.Order, error) {
	s.gotUserID = userID
	s.gotKey = idemKey
	return s.byKeyRes, s.byKeyErr
}

func newServer(t *testing.T, svc *stubService) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return orderhttp.NewHandler(log, svc).Routes()
}

func confirmedOrder() domain.Order {
	return domain.Order{
		ID:             "ord-1",
		UserID:         7,
		Status:         domain.StatusConfirmed,
		TotalCents:     5000,
		Currency:       "USD",
		IdempotencyKey: "key-1",
		Items:          []domain.OrderItem{{TicketID: 10, Qty: 2, UnitPriceCents: 2500}},
	}
}

func TestCreateOrderCreated(t *testing.T) {
	svc := &stubService{createRes: application.CreateResult{Order: confirmedOrder(), Created: true}}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"items":[{"ticket_id":10,"qty":2}]}`))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(7), svc.gotUserID)
	assert.Equal(t, "key-1", svc.gotKey)
	require.Len(t, svc.gotItems, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFIRMED", body["status"])
	assert.EqualValues(t, 5000, body["total_cents"])
}

func TestCreateOrderReplayIs200(t *testing.T) {
	svc := &stubService{createRes: application.CreateResult{Order: confirmedOrder(), Created: false}}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"items":[{"ticket_id":10,"qty":2}]}`))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderInProgressConflict(t *testing.T) {
	svc := &stubService{createErr: application.ErrRequestInProgress}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"items":[{"ticket_id":10,"qty":2}]}`))
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "REQUEST_IN_PROGRESS", body["code"])
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		idemKey string
		body    string
		want    int
	}{
		{"missing user", "", "k", `{"items":[{"ticket_id":1,"qty":1}]}`, http.StatusUnauthorized},
		{"bad user", "abc", "k", `{"items":[{"ticket_id":1,"qty":1}]}`, http.StatusUnauthorized},
		{"missing key", "7", "", `{"items":[{"ticket_id":1,"qty":1}]}`, http.StatusBadRequest},
		{"empty items", "7", "k", `{"items":[]}`, http.StatusBadRequest},
		{"zero qty", "7", "k", `{"items":[{"ticket_id":1,"qty":0}]}`, http.StatusBadRequest},
		{"unknown field", "7", "k", `{"items":[{"ticket_id":1,"qty":1}],"x":1}`, http.StatusBadRequest},
		{"bad currency", "7", "k", `{"currency":"DOLLARS","items":[{"ticket_id":1,"qty":1}]}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newServer(t, &stubService{})
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body))
			if tc.userID != "" {
				req.Header.Set("X-User-ID", tc.userID)
			}
			if tc.idemKey != "" {
				req.Header.Set("Idempotency-Key", tc.idemKey)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetOrder(t *testing.T) {
	svc := &stubService{getRes: confirmedOrder()}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ord-1", body["id"])
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubService{getErr: domain.ErrOrderNotFound}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	svc := &stubService{listRes: application.OrderPage{
		Orders: []domain.Order{confirmedOrder()},
		Page:   0, Size: 20, Total: 1,
	}}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=CONFIRMED&page=0&size=20", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
}

func TestListOrdersBadStatus(t *testing.T) {
	svc := &stubService{listErr: application.ErrBadRequest}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders?status=SHIPPED", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetByKey(t *testing.T) {
	svc := &stubService{byKeyRes: confirmedOrder()}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/by-key/key-1", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key-1", svc.gotKey)
}

func TestGetByKeyInProgress(t *testing.T) {
	svc := &stubService{byKeyErr: application.ErrRequestInProgress}
	h := newServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/orders/by-key/key-1", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
