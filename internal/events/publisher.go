// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/storefront-checkout/internal/model"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
)

// Publisher emits an event for an order that reached a new status.
type Publisher interface {
	Publish(ctx context.Context, o model.Order) error
}

// Fields flattens an order into stream entry fields.
func Fields(o model.Order) map[string]any {
	return map[string]any{
		"id":         o.ID,
		"product_id": o.ProductID,
		"price":      o.Price,
		"fee":        o.Fee,
		"total":      o.Total,
		"quantity":   o.Quantity,
		"status":     string(o.Status),
		"created_at": o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewRedisPublisher(rdb *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, o model.Order) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: Fields(o),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LogPublisher writes events to the structured log. It stands in for Redis
// when no REDIS_ADDR is configured.
type LogPublisher struct {
	Stream string
}

func (p LogPublisher) Publish(_ context.Context, o model.Order) error {
	args := []any{"stream", p.Stream}
	for k, v := range Fields(o) {
		args = append(args, k, v)
	}
	obs.Logger.Info("order_event_published", args...)
	return nil
}
