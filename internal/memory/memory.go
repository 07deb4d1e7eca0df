// Package memory holds the keyed, append-only session and brand logs the
// planner and agents draw context from. Retention is bounded per log; the
// oldest entries are trimmed ring-buffer style at each cap.
package memory

import (
	"context"
	"time"
)

// Retention caps per log. Oldest entries are dropped first.
const (
	MaxTurns       = 50
	MaxUndo        = 20
	MaxAssets      = 100
	MaxCorrections = 25
	MaxSnapshots   = 10
)

// Turn is one conversation exchange.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UndoEntry snapshots a reversible editing step.
type UndoEntry struct {
	Label     string    `json:"label"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Asset records an approved generated asset.
type Asset struct {
	BlobID    string    `json:"blob_id"`
	Prompt    string    `json:"prompt"`
	Platform  string    `json:"platform,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Correction records a recurring user correction pattern.
type Correction struct {
	Pattern   string    `json:"pattern"`
	Fix       string    `json:"fix"`
	Timestamp time.Time `json:"timestamp"`
}

// StyleSnapshot preserves a point-in-time style summary.
type StyleSnapshot struct {
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the keyed memory surface. Keys are session or brand ids; a key is
// created lazily on first reference and only removed by an explicit Clear.
// Concurrent writes to the same key are last-write-wins; distinct keys never
// contend.
type Store interface {
	AppendTurn(ctx context.Context, key string, t Turn) error
	Turns(ctx context.Context, key string, limit int) ([]Turn, error)

	PushUndo(ctx context.Context, key string, e UndoEntry) error
	PopUndo(ctx context.Context, key string) (*UndoEntry, error)

	RecordAsset(ctx context.Context, key string, a Asset) error
	Assets(ctx context.Context, key string, limit int) ([]Asset, error)

	RecordCorrection(ctx context.Context, key string, c Correction) error
	Corrections(ctx context.Context, key string) ([]Correction, error)

	SnapshotStyle(ctx context.Context, key string, s StyleSnapshot) error
	Snapshots(ctx context.Context, key string) ([]StyleSnapshot, error)

	// ContextSummary renders recent turns and corrections into a prompt
	// context block. Empty string when the key holds nothing.
	ContextSummary(ctx context.Context, key string) (string, error)

	Clear(ctx context.Context, key string) error
}
