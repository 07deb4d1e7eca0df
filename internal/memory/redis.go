package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the shared Store implementation, for deployments where several
// service instances need to see the same session logs. Each log is a Redis
// list trimmed to its cap on every push; newest entries sit at the head.
type Redis struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis connects a Redis-backed memory store.
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

const keyPrefix = "brandforge:mem:"

func listKey(key, log string) string { return keyPrefix + key + ":" + log }

func (r *Redis) push(ctx context.Context, key, log string, v any, cap int64) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	k := listKey(key, log)
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, k, data)
	pipe.LTrim(ctx, k, 0, cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %s: %w", k, err)
	}
	return nil
}

// rangeInto reads up to limit newest-first entries and decodes them
// oldest-first into out (a pointer to a slice).
func rangeJSON[T any](ctx context.Context, r *Redis, key, log string, limit int64) ([]T, error) {
	if limit <= 0 {
		limit = -1
	}
	end := limit - 1
	if limit == -1 {
		end = -1
	}
	raw, err := r.rdb.LRange(ctx, listKey(key, log), 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", listKey(key, log), err)
	}
	out := make([]T, 0, len(raw))
	// LPUSH stores newest first; reverse to chronological order.
	for i := len(raw) - 1; i >= 0; i-- {
		var v T
		if err := json.Unmarshal([]byte(raw[i]), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Redis) AppendTurn(ctx context.Context, key string, t Turn) error {
	return r.push(ctx, key, "turns", t, MaxTurns)
}

func (r *Redis) Turns(ctx context.Context, key string, limit int) ([]Turn, error) {
	return rangeJSON[Turn](ctx, r, key, "turns", int64(limit))
}

func (r *Redis) PushUndo(ctx context.Context, key string, u UndoEntry) error {
	return r.push(ctx, key, "undo", u, MaxUndo)
}

func (r *Redis) PopUndo(ctx context.Context, key string) (*UndoEntry, error) {
	raw, err := r.rdb.LPop(ctx, listKey(key, "undo")).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop undo: %w", err)
	}
	var u UndoEntry
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode undo entry: %w", err)
	}
	return &u, nil
}

func (r *Redis) RecordAsset(ctx context.Context, key string, a Asset) error {
	return r.push(ctx, key, "assets", a, MaxAssets)
}

func (r *Redis) Assets(ctx context.Context, key string, limit int) ([]Asset, error) {
	return rangeJSON[Asset](ctx, r, key, "assets", int64(limit))
}

func (r *Redis) RecordCorrection(ctx context.Context, key string, c Correction) error {
	return r.push(ctx, key, "corrections", c, MaxCorrections)
}

func (r *Redis) Corrections(ctx context.Context, key string) ([]Correction, error) {
	return rangeJSON[Correction](ctx, r, key, "corrections", -1)
}

func (r *Redis) SnapshotStyle(ctx context.Context, key string, s StyleSnapshot) error {
	return r.push(ctx, key, "snapshots", s, MaxSnapshots)
}

func (r *Redis) Snapshots(ctx context.Context, key string) ([]StyleSnapshot, error) {
	return rangeJSON[StyleSnapshot](ctx, r, key, "snapshots", -1)
}

func (r *Redis) ContextSummary(ctx context.Context, key string) (string, error) {
	turns, err := r.Turns(ctx, key, 10)
	if err != nil {
		return "", err
	}
	corrections, err := r.Corrections(ctx, key)
	if err != nil {
		return "", err
	}
	return renderSummary(turns, corrections), nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	logs := []string{"turns", "undo", "assets", "corrections", "snapshots"}
	keys := make([]string, len(logs))
	for i, l := range logs {
		keys[i] = listKey(key, l)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}
	return nil
}
