package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// InMem is the process-local Store implementation. A single mutex guards the
// key map; entries within a key are plain slices trimmed at their caps.
type InMem struct {
	mu   sync.Mutex
	keys map[string]*entry
}

type entry struct {
	turns       []Turn
	undo        []UndoEntry
	assets      []Asset
	corrections []Correction
	snapshots   []StyleSnapshot
}

// NewInMem creates an empty in-process store.
func NewInMem() *InMem {
	return &InMem{keys: make(map[string]*entry)}
}

func (m *InMem) get(key string) *entry {
	e, ok := m.keys[key]
	if !ok {
		e = &entry{}
		m.keys[key] = e
	}
	return e
}

func (m *InMem) AppendTurn(_ context.Context, key string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.turns = append(e.turns, t)
	if len(e.turns) > MaxTurns {
		e.turns = e.turns[len(e.turns)-MaxTurns:]
	}
	return nil
}

func (m *InMem) Turns(_ context.Context, key string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	turns := e.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *InMem) PushUndo(_ context.Context, key string, u UndoEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.undo = append(e.undo, u)
	if len(e.undo) > MaxUndo {
		e.undo = e.undo[len(e.undo)-MaxUndo:]
	}
	return nil
}

func (m *InMem) PopUndo(_ context.Context, key string) (*UndoEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	if len(e.undo) == 0 {
		return nil, nil
	}
	last := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	return &last, nil
}

func (m *InMem) RecordAsset(_ context.Context, key string, a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.assets = append(e.assets, a)
	if len(e.assets) > MaxAssets {
		e.assets = e.assets[len(e.assets)-MaxAssets:]
	}
	return nil
}

func (m *InMem) Assets(_ context.Context, key string, limit int) ([]Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	assets := e.assets
	if limit > 0 && len(assets) > limit {
		assets = assets[len(assets)-limit:]
	}
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out, nil
}

func (m *InMem) RecordCorrection(_ context.Context, key string, c Correction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.corrections = append(e.corrections, c)
	if len(e.corrections) > MaxCorrections {
		e.corrections = e.corrections[len(e.corrections)-MaxCorrections:]
	}
	return nil
}

func (m *InMem) Corrections(_ context.Context, key string) ([]Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	out := make([]Correction, len(e.corrections))
	copy(out, e.corrections)
	return out, nil
}

func (m *InMem) SnapshotStyle(_ context.Context, key string, s StyleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	e.snapshots = append(e.snapshots, s)
	if len(e.snapshots) > MaxSnapshots {
		e.snapshots = e.snapshots[len(e.snapshots)-MaxSnapshots:]
	}
	return nil
}

func (m *InMem) Snapshots(_ context.Context, key string) ([]StyleSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(key)
	out := make([]StyleSnapshot, len(e.snapshots))
	copy(out, e.snapshots)
	return out, nil
}

func (m *InMem) ContextSummary(ctx context.Context, key string) (string, error) {
	turns, _ := m.Turns(ctx, key, 10)
	corrections, _ := m.Corrections(ctx, key)
	return renderSummary(turns, corrections), nil
}

func (m *InMem) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// renderSummary is shared by both Store implementations so their context
// blocks stay textually identical.
func renderSummary(turns []Turn, corrections []Correction) string {
	if len(turns) == 0 && len(corrections) == 0 {
		return ""
	}
	var b strings.Builder
	if len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Content)
		}
	}
	if len(corrections) > 0 {
		b.WriteString("Known correction patterns:\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- when %q, prefer %q\n", c.Pattern, c.Fix)
		}
	}
	return b.String()
}
