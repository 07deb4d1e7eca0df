package agents

import (
	"context"
	"time"

	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/task"
)

// MemoryAgent bridges the context_memory role to the session store. It makes
// no backend call and does no dedup; call frequency is the caller's
// responsibility.
type MemoryAgent struct {
	store memory.Store
}

// NewMemoryAgent creates the context_memory agent.
func NewMemoryAgent(store memory.Store) *MemoryAgent {
	return &MemoryAgent{store: store}
}

func (m *MemoryAgent) Role() task.Role { return task.RoleContextMemory }

// MemoryOutput is what a memory task returns to the run.
type MemoryOutput struct {
	Recorded bool   `json:"recorded"`
	Summary  string `json:"summary,omitempty"`
}

// Execute records the task's message as a conversation turn (action "record",
// the default) or renders the session's context block (action "summarize").
func (m *MemoryAgent) Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome {
	switch t.Action {
	case "summarize":
		summary, err := m.store.ContextSummary(ctx, st.SessionID)
		if err != nil {
			return task.Fail("context summary: %v", err)
		}
		return task.Ok(&MemoryOutput{Summary: summary})
	default:
		msg := stringParam(t, "message", "")
		role := stringParam(t, "turn_role", "user")
		if msg == "" {
			return task.Fail("context_memory: no message to record")
		}
		if err := m.store.AppendTurn(ctx, st.SessionID, memory.Turn{
			Role:      role,
			Content:   msg,
			Timestamp: time.Now(),
		}); err != nil {
			return task.Fail("record turn: %v", err)
		}
		return task.Ok(&MemoryOutput{Recorded: true})
	}
}
