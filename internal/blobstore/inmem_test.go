package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetIsDestructive(t *testing.T) {
	s := NewInMem()
	defer s.Close()
	ctx := context.Background()

	payload := []byte{0xFF, 0xD8, 0x01, 0x02}
	id, err := s.Put(ctx, payload)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if id == "" {
		t.Fatal("empty blob id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch")
	}

	// Second retrieval finds nothing.
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := NewInMem()
	defer s.Close()

	if _, err := s.Get(context.Background(), "no-such-blob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestExpiredBlobIsGone(t *testing.T) {
	s := NewInMem()
	defer s.Close()
	s.ttl = 10 * time.Millisecond
	ctx := context.Background()

	id, _ := s.Put(ctx, []byte{1})
	time.Sleep(30 * time.Millisecond)

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after expiry", err)
	}
}

func TestBlobIDsAreUnique(t *testing.T) {
	s := NewInMem()
	defer s.Close()
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, _ := s.Put(ctx, []byte{byte(i)})
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
