package inventoryclient_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickrush/flash-sale/internal/order/application"
	"github.com/tickrush/flash-sale/internal/order/infrastructure/inventoryclient"
)

func newClient(t *testing.T, handler http.HandlerFunc) *inventoryclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return inventoryclient.New(log, srv.URL, time.Second)
}

func TestReserveOK(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/inventory/reservations", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "k1:10", body["reservation_id"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"reservation_id": "k1:10", "ticket_id": 10, "qty": 2, "status": "RESERVED",
		})
	})

	info, err := c.Reserve(context.Background(), "k1:10", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, "RESERVED", info.Status)
	assert.Equal(t, int64(10), info.TicketID)
}

func TestReserveInsufficientStock(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"code": "INSUFFICIENT_STOCK", "message": "insufficient stock"})
	})

	_, err := c.Reserve(context.Background(), "k1:10", 10, 99)
	assert.ErrorIs(t, err, application.ErrInsufficientStock)
}

func TestReserveUnknownTicket(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "TICKET_NOT_FOUND"})
	})

	_, err := c.Reserve(context.Background(), "k1:99", 99, 1)
	assert.ErrorIs(t, err, application.ErrItemNotFound)
}

func TestReleaseInvalidState(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory/reservations/k1:10/release", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"code": "INVALID_STATE"})
	})

	_, err := c.Release(context.Background(), "k1:10")
	assert.ErrorIs(t, err, application.ErrInvalidState)
}

func TestCommitServerError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Commit(context.Background(), "k1:10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrTimeout)
	assert.NotErrorIs(t, err, application.ErrInvalidState)
}

func TestTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := inventoryclient.New(log, srv.URL, 20*time.Millisecond)

	_, err := c.Commit(context.Background(), "k1:10")
	assert.ErrorIs(t, err, application.ErrTimeout)
}
