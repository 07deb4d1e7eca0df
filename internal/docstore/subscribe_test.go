package docstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubscriptionsDeliverAndCloseOnCancel(t *testing.T) {
	s := newSubscriptions()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.add(ctx, CollectionBrands, "doc-1")

	s.notify(CollectionBrands, "doc-1", &Document{ID: "doc-1"})
	select {
	case d := <-ch:
		if d.ID != "doc-1" {
			t.Fatalf("got %q, want doc-1", d.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestSubscriptionsNotifyDuringCancellation(t *testing.T) {
	s := newSubscriptions()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.notify(CollectionBrands, "doc-1", &Document{ID: "doc-1"})
			}
		}
	}()

	// Churn subscribers while the writer keeps notifying. A send landing on
	// a channel closed by cancellation would panic here.
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch := s.add(ctx, CollectionBrands, "doc-1")
		cancel()
		for range ch {
		}
	}

	close(stop)
	wg.Wait()
}

func TestSubscriptionsIsolateDocuments(t *testing.T) {
	s := newSubscriptions()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.add(ctx, CollectionBrands, "doc-1")

	s.notify(CollectionBrands, "doc-2", &Document{ID: "doc-2"})
	s.notify(CollectionCampaigns, "doc-1", &Document{ID: "doc-1"})

	select {
	case d := <-ch:
		t.Fatalf("unexpected delivery %q for a different key", d.ID)
	default:
	}
}
