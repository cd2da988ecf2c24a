package catalogclient_test

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
	"github.com/tickrush/flash-sale/internal/order/infrastructure/catalogclient"
)

func newClient(t *testing.T, handler http.HandlerFunc) *catalogclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return catalogclient.New(log, srv.URL, time.Second)
}

func TestGetTicketPrice(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/catalog/tickets/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": "GA", "price_cents": 5500})
	})

	price, err := c.GetTicketPrice(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), price)
}

func TestGetTicketPriceNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetTicketPrice(context.Background(), 404)
	assert.ErrorIs(t, err, application.ErrItemNotFound)
}

func TestGetTicketPriceServerError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetTicketPrice(context.Background(), 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrItemNotFound)
	assert.NotErrorIs(t, err, application.ErrTimeout)
}

func TestGetTicketPriceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := catalogclient.New(log, srv.URL, 20*time.Millisecond)

	_, err := c.GetTicketPrice(context.Background(), 1)
	assert.ErrorIs(t, err, application.ErrTimeout)
}
