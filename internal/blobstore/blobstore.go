// Package blobstore holds generated images for one-time retrieval, so
// progress event streams carry small blob ids instead of inline image
// payloads. Entries expire after a fixed TTL.
package blobstore

import (
	"context"
	"errors"
	"time"
)

// TTL is how long an unclaimed blob survives.
const TTL = 10 * time.Minute

// ErrNotFound is returned when a blob is missing or already claimed.
var ErrNotFound = errors.New("blob not found")

// Store is the transient blob surface. Get is destructive: a blob can be
// retrieved exactly once.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}
