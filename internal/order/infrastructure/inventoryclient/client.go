// Package inventoryclient is the order service's HTTP client for the
// inventory reservation engine.
package inventoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tickrush/flash-sale/internal/order/application"
	"github.com/tickrush/flash-sale/pkg/httpapi"
)

type Client struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
}

func New(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		log:     log,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type reserveReq struct {
	ReservationID string `json:"reservation_id"`
	TicketID      int64  `json:"ticket_id"`
	Qty           int    `json:"qty"`
}

func (c *Client) Reserve(ctx context.Context, reservationID string, ticketID int64, qty int) (application.ReservationInfo, error) {
	body := reserveReq{ReservationID: reservationID, TicketID: ticketID, Qty: qty}
	return c.post(ctx, c.baseURL+"/inventory/reservations", body)
}

func (c *Client) Release(ctx context.Context, reservationID string) (application.ReservationInfo, error) {
	return c.post(ctx, c.baseURL+"/inventory/reservations/"+reservationID+"/release", nil)
}

func (c *Client) Commit(ctx context.Context, reservationID string) (application.ReservationInfo, error) {
	return c.post(ctx, c.baseURL+"/inventory/reservations/"+reservationID+"/commit", nil)
}

func (c *Client) post(ctx context.Context, url string, body any) (application.ReservationInfo, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return application.ReservationInfo{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return application.ReservationInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures and client timeouts both land here; the saga
		// cannot tell them apart and treats both as a timeout.
		return application.ReservationInfo{}, fmt.Errorf("%w: %v", application.ErrTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var info application.ReservationInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return application.ReservationInfo{}, fmt.Errorf("decode inventory response: %w", err)
		}
		return info, nil
	}

	var eb httpapi.ErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	return application.ReservationInfo{}, classify(resp.StatusCode, eb)
}

func classify(status int, eb httpapi.ErrorBody) error {
	switch status {
	case http.StatusConflict:
		if eb.Code == "INSUFFICIENT_STOCK" {
			return application.ErrInsufficientStock
		}
		return fmt.Errorf("%w: %s", application.ErrInvalidState, eb.Code)
	case http.StatusNotFound:
		return application.ErrItemNotFound
	default:
		return fmt.Errorf("inventory service status %d: %s", status, eb.Code)
	}
}
