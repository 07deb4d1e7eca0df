package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored record: an opaque JSON body plus metadata.
type Document struct {
	ID        string          `json:"id"`
	Doc       json.RawMessage `json:"doc"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Create inserts a new document and returns its generated id. Subscribers of
// the new id (none yet, by definition) are not notified.
func (s *Store) Create(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, now())`, collection),
		id, doc)
	if err != nil {
		return "", fmt.Errorf("create %s doc: %w", collection, err)
	}
	return id, nil
}

// Get fetches one document.
func (s *Store) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, doc, updated_at FROM %s WHERE id = $1`, collection), id)

	var d Document
	if err := row.Scan(&d.ID, &d.Doc, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &d, nil
}

// List returns every document in a collection, newest first.
func (s *Store) List(ctx context.Context, collection string) ([]*Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT id, doc, updated_at FROM %s ORDER BY updated_at DESC`, collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Doc, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s doc: %w", collection, err)
		}
		docs = append(docs, &d)
	}
	return docs, nil
}

// Update merges patch into the stored document at the top level (jsonb
// concatenation: patch keys replace existing keys, others survive) and
// notifies subscribers with the full merged document.
func (s *Store) Update(ctx context.Context, collection, id string, patch json.RawMessage) (*Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb, updated_at = now()
		 WHERE id = $1 RETURNING id, doc, updated_at`, collection),
		id, patch)

	var d Document
	if err := row.Scan(&d.ID, &d.Doc, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.subs.notify(collection, id, &d)
	return &d, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscribe delivers the full current document on every change until ctx is
// cancelled. The current document (if any) is delivered immediately so
// subscribers never start blind.
func (s *Store) Subscribe(ctx context.Context, collection, id string) (<-chan *Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	ch := s.subs.add(ctx, collection, id)

	if d, err := s.Get(ctx, collection, id); err == nil {
		select {
		case ch <- d:
		default:
		}
	}
	return ch, nil
}
