package blobstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blobPrefix = "brandforge:blob:"

// Redis is the shared blob store. Expiry rides on Redis TTLs; destructive
// reads use GETDEL so two callers can never claim the same blob.
type Redis struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis connects a Redis-backed blob store.
func NewRedis(redisURL string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, logger: logger}, nil
}

// Close shuts down the Redis connection.
func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Put(ctx context.Context, data []byte) (string, error) {
	id := uuid.New().String()
	if err := r.rdb.Set(ctx, blobPrefix+id, data, TTL).Err(); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	r.logger.Debug("blob stored", zap.String("id", id), zap.Int("bytes", len(data)))
	return id, nil
}

func (r *Redis) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := r.rdb.GetDel(ctx, blobPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w", id, err)
	}
	return data, nil
}
