package docstore

import (
	"context"
	"sync"
)

// subscriptions is the in-process change fan-out. Slow subscribers drop
// intermediate updates rather than blocking writers; the next change delivers
// the full document anyway.
type subscriptions struct {
	mu   sync.Mutex
	subs map[string][]chan *Document // collection/id -> listeners
}

func newSubscriptions() *subscriptions {
	return &subscriptions{subs: make(map[string][]chan *Document)}
}

func subKey(collection, id string) string { return collection + "/" + id }

func (s *subscriptions) add(ctx context.Context, collection, id string) chan *Document {
	ch := make(chan *Document, 8)
	key := subKey(collection, id)

	s.mu.Lock()
	s.subs[key] = append(s.subs[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		listeners := s.subs[key]
		for i, c := range listeners {
			if c == ch {
				s.subs[key] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
		// Closed under the lock so notify can never hit a closed channel.
		close(ch)
	}()

	return ch
}

// notify delivers to every listener under the lock; sends are non-blocking.
func (s *subscriptions) notify(collection, id string, d *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[subKey(collection, id)] {
		select {
		case ch <- d:
		default:
		}
	}
}
