// Package catalogclient resolves authoritative ticket prices from the
// catalog service.
package catalogclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tickrush/flash-sale/internal/order/application"
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

type ticketResp struct {
	ID         int64 `json:"id"`
	PriceCents int64 `json:"price_cents"`
}

func (c *Client) GetTicketPrice(ctx context.Context, ticketID int64) (int64, error) {
	url := c.baseURL + "/catalog/tickets/" + strconv.FormatInt(ticketID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", application.ErrTimeout, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var t ticketResp
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return 0, fmt.Errorf("decode catalog response: %w", err)
		}
		return t.PriceCents, nil
	case http.StatusNotFound:
		return 0, application.ErrItemNotFound
	default:
		return 0, fmt.Errorf("catalog service status %d", resp.StatusCode)
	}
}
