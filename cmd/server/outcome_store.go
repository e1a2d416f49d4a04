package main

import (
	"context"
	"log"
	"time"

	"stockgate/cmd/server/config"
	eventsdb "stockgate/internal/db/events"
	"stockgate/internal/events"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// buildOutcomeStore assembles the optional outcome storage: Postgres keeps the
// full event history, Redis keeps the latest outcome per order plus a stream.
// Either side may be absent; with neither configured the store is nil.
func buildOutcomeStore(ctx context.Context, databaseURL string) (events.OutcomeStore, func(), error) {
	var stores []events.OutcomeStore
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if databaseURL != "" {
		db, err := openDB("pgx", databaseURL)
		if err != nil {
			return nil, nil, err
		}
		historyStore, err := eventsdb.NewPostgresOutcomeStoreWithSchema(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		stores = append(stores, historyStore)
		cleanups = append(cleanups, func() {
			if err := db.Close(); err != nil {
				log.Printf("close events db: %v", err)
			}
		})
	}

	redisStore, closeRedis, err := buildRedisOutcomeStore(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if redisStore != nil {
		stores = append(stores, redisStore)
		cleanups = append(cleanups, closeRedis)
	}

	switch len(stores) {
	case 0:
		return nil, func() {}, nil
	case 1:
		return stores[0], cleanup, nil
	default:
		return events.NewMultiStore(stores...), cleanup, nil
	}
}

func buildRedisOutcomeStore(ctx context.Context) (*events.RedisOutcomeStore, func(), error) {
	cfg, enabled, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}
	if !enabled {
		return nil, nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	store := events.NewRedisOutcomeStore(redisClientAdapter{client: client}, cfg.Stream, cfg.OutcomeTTL, cfg.StreamMaxLen)
	closeRedis := func() {
		if err := client.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	return store, closeRedis, nil
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() events.RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return p.pipe.HSet(ctx, key, values...)
}

func (p redisPipelineAdapter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return p.pipe.Expire(ctx, key, expiration)
}

func (p redisPipelineAdapter) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	return p.pipe.XAdd(ctx, a)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
