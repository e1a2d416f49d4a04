package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOutcomeStore stores the latest outcome per order in Redis and appends
// every event to a stream.
type RedisOutcomeStore struct {
	client    RedisPipelineClient
	stream    string
	keyPrefix string
	ttl       time.Duration
	maxLen    int64
}

// RedisPipelineClient is the minimal client surface used by RedisOutcomeStore.
type RedisPipelineClient interface {
	Pipeline() RedisPipeliner
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisOutcomeStore constructs a Redis-backed outcome store.
func NewRedisOutcomeStore(client RedisPipelineClient, stream string, ttl time.Duration, maxLen int64) *RedisOutcomeStore {
	if stream == "" {
		stream = "order_events"
	}
	return &RedisOutcomeStore{
		client:    client,
		stream:    stream,
		keyPrefix: "order:",
		ttl:       ttl,
		maxLen:    maxLen,
	}
}

// Record writes the latest outcome and appends to the stream.
func (r *RedisOutcomeStore) Record(ctx context.Context, evt OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := r.keyPrefix + evt.OrderID
	timestamp := evt.Timestamp.UTC().Format(time.RFC3339Nano)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"order_id":   evt.OrderID,
		"product_id": evt.ProductID,
		"quantity":   evt.Quantity,
		"outcome":    string(evt.Outcome),
		"timestamp":  timestamp,
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"order_id":   evt.OrderID,
			"product_id": evt.ProductID,
			"quantity":   evt.Quantity,
			"outcome":    string(evt.Outcome),
			"timestamp":  timestamp,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	pipe.XAdd(ctx, args)

	_, err := pipe.Exec(ctx)
	return err
}
