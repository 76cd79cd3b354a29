package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/wplc/livechat/internal/config"
)

// Namespace prefixes every key the service writes.
const Namespace = "livechat"

const pingTimeout = 5 * time.Second

// Key joins parts under Namespace, e.g. Key("flow", id) is "livechat:flow:<id>".
func Key(parts ...string) string {
	return Namespace + ":" + strings.Join(parts, ":")
}

// New connects to Redis and fails when the server does not answer a PING.
func New(ctx context.Context, cfg config.RedisCfg) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Instrument adds tracing and connection pool metrics. Call it after telemetry setup so the
// global providers are in place.
func Instrument(rdb *redis.Client) error {
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return fmt.Errorf("redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(rdb); err != nil {
		return fmt.Errorf("redis metrics: %w", err)
	}
	return nil
}
