package blobstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMem is the process-local blob store: a mutex-guarded map plus a
// background sweep deleting entries older than the TTL.
type InMem struct {
	mu    sync.Mutex
	blobs map[string]inmemBlob
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

type inmemBlob struct {
	data    []byte
	created time.Time
}

// NewInMem creates an in-memory blob store and starts its sweeper.
func NewInMem() *InMem {
	s := &InMem{
		blobs: make(map[string]inmemBlob),
		ttl:   TTL,
		stop:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Close stops the background sweeper.
func (s *InMem) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *InMem) Put(_ context.Context, data []byte) (string, error) {
	id := uuid.New().String()
	s.mu.Lock()
	s.blobs[id] = inmemBlob{data: data, created: time.Now()}
	s.mu.Unlock()
	return id, nil
}

func (s *InMem) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[id]
	if !ok || time.Since(b.created) > s.ttl {
		delete(s.blobs, id)
		return nil, ErrNotFound
	}
	delete(s.blobs, id)
	return b.data, nil
}

func (s *InMem) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for id, b := range s.blobs {
				if b.created.Before(cutoff) {
					delete(s.blobs, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
