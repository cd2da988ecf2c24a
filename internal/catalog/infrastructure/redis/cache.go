package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tickrush/flash-sale/internal/catalog/domain"
)

// Cache keeps hot tickets in redis with a jittered TTL, so a popular ticket's
// entries do not all expire on the same tick during a sale.
type Cache struct {
	log *slog.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{log: log, rdb: rdb, ttl: ttl}
}

type entry struct {
	ID          int64  `json:"id"`
	SaleEventID int64  `json:"sale_event_id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
}

func key(id int64) string {
	return "catalog:ticket:" + strconv.FormatInt(id, 10)
}

func (c *Cache) Get(ctx context.Context, id int64) (domain.Ticket, bool, error) {
	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Ticket{}, false, nil
	}
	if err != nil {
		return domain.Ticket{}, false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry: drop it and report a miss.
		c.log.Warn("corrupt ticket cache entry evicted", "ticket_id", id, "err", err)
		_ = c.rdb.Del(ctx, key(id)).Err()
		return domain.Ticket{}, false, nil
	}
	return domain.Ticket{ID: e.ID, SaleEventID: e.SaleEventID, Name: e.Name, PriceCents: e.PriceCents}, true, nil
}

func (c *Cache) Set(ctx context.Context, t domain.Ticket) error {
	raw, err := json.Marshal(entry{ID: t.ID, SaleEventID: t.SaleEventID, Name: t.Name, PriceCents: t.PriceCents})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(t.ID), raw, c.jitteredTTL()).Err()
}

func (c *Cache) Evict(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, key(id)).Err()
}

// jitteredTTL spreads expiry over [ttl, ttl*1.1).
func (c *Cache) jitteredTTL() time.Duration {
	return c.ttl + time.Duration(rand.Int63n(int64(c.ttl)/10))
}
