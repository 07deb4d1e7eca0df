package orchestrator

import "github.com/halcyard/brandforge/internal/task"

// Phase orders the externally visible stages of a run.
type Phase string

const (
	PhaseParsing   Phase = "parsing"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// Event is one progress update streamed to the caller. Progress is a 0-100
// integer, non-decreasing across a run, and reaches 100 only on the final
// complete event. Exactly one complete or error event ends every stream.
type Event struct {
	Phase       Phase      `json:"phase"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	Thinking    string     `json:"thinking,omitempty"`
	CurrentTask *task.Task `json:"current_task,omitempty"`
	AgentRole   task.Role  `json:"agent_role,omitempty"`
	Result      *RunResult `json:"result,omitempty"`
}

// EmitFunc receives progress events during execution.
type EmitFunc func(Event)

// emitter clamps progress to be monotone so no downstream consumer ever sees
// it move backwards, whatever pacing formula produced it.
type emitter struct {
	emit EmitFunc
	last int
}

func newEmitter(emit EmitFunc) *emitter {
	if emit == nil {
		emit = func(Event) {}
	}
	return &emitter{emit: emit}
}

func (e *emitter) send(ev Event) {
	if ev.Progress < e.last {
		ev.Progress = e.last
	}
	if ev.Progress > 100 {
		ev.Progress = 100
	}
	// Only the terminal complete event may report 100.
	if ev.Progress == 100 && ev.Phase != PhaseComplete {
		ev.Progress = 99
	}
	e.last = ev.Progress
	e.emit(ev)
}
