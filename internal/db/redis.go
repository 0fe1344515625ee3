package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/migration"
)

const (
	// MigrationRunChannel receives a summary of every finished migration run.
	MigrationRunChannel = "format-migration-runs"
	// LastRunKey holds the summary of the most recent run.
	LastRunKey = "formats:migration:last_run"
	// FormatUpdateChannel receives single ad format edits made through the API.
	FormatUpdateChannel = "format-updates"
)

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
	// LastRunTTL bounds how long the last run summary is kept. Zero keeps it forever.
	LastRunTTL time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// PublishRun stores the run summary under LastRunKey and announces it on
// MigrationRunChannel.
func (r *RedisStore) PublishRun(ctx context.Context, rep *migration.Report) error {
	payload, err := json.Marshal(rep.Summary())
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := r.Client.Set(ctx, LastRunKey, payload, r.LastRunTTL).Err(); err != nil {
		return fmt.Errorf("store last run: %w", err)
	}
	if err := r.Client.Publish(ctx, MigrationRunChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish run: %w", err)
	}
	return nil
}

// LastRun returns the most recent run summary, or nil when no run was recorded.
func (r *RedisStore) LastRun(ctx context.Context) (*migration.Summary, error) {
	payload, err := r.Client.Get(ctx, LastRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last run: %w", err)
	}
	var s migration.Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode last run: %w", err)
	}
	return &s, nil
}

// FormatUpdate announces a format edit on a single newsletter ad.
type FormatUpdate struct {
	PublicationID string   `json:"publication_id"`
	Newsletter    int      `json:"newsletter"`
	Ad            int      `json:"ad"`
	Dimensions    []string `json:"dimensions"`
}

// PublishFormatUpdate notifies subscribers that an ad format was edited.
func (r *RedisStore) PublishFormatUpdate(ctx context.Context, u FormatUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal format update: %w", err)
	}
	return r.Client.Publish(ctx, FormatUpdateChannel, payload).Err()
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
