package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// Terminal executor failures. Partial results accompany every one of them.
var (
	ErrSelfDependency  = errors.New("task depends on itself")
	ErrDeadlock        = errors.New("dependency deadlock: no runnable task")
	ErrCriticalFailure = errors.New("critical task failed")
)

// Executor drains a planned task list respecting dependency edges.
type Executor struct {
	registry *agents.Registry
	logger   *zap.Logger
}

// NewExecutor creates an Executor dispatching against the given registry.
func NewExecutor(registry *agents.Registry, logger *zap.Logger) *Executor {
	return &Executor{registry: registry, logger: logger}
}

// Progress pacing: planning hands over at 15%, execution fills 75 points,
// each finished task bumps 5 extra, complete lands on 100.
const (
	progressExecBase = 15
	progressExecSpan = 75
	progressTaskBump = 5
)

// Execute runs tasks in dependency order, sequentially and in original list
// order among ready tasks. It returns the results accumulated so far together
// with a terminal error for deadlock, critical-role failure, self-dependency
// or cancellation; partial results are valid output in every case. Only
// executing-phase events are emitted here; the caller turns a returned error
// into the run's single error event.
func (e *Executor) Execute(ctx context.Context, tasks []*task.Task, st *task.State, em *emitter) ([]task.Result, error) {
	// A task depending on its own id is a planner bug, rejected up front
	// rather than silently dropped.
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return nil, fmt.Errorf("task %s: %w", t.ID, ErrSelfDependency)
			}
		}
	}

	pending := make([]*task.Task, len(tasks))
	copy(pending, tasks)
	completed := make(map[string]bool)
	var results []task.Result
	total := len(tasks)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		ready := readySet(pending, completed)
		if len(ready) == 0 {
			return results, fmt.Errorf("%d task(s) can never run: %w", len(pending), ErrDeadlock)
		}

		for _, t := range ready {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			st.CurrentRole = t.Role
			em.send(Event{
				Phase:       PhaseExecuting,
				Progress:    e.progress(len(results), total, 0),
				Message:     phaseMessage(t.Role),
				CurrentTask: t,
				AgentRole:   t.Role,
			})

			res := e.runOne(ctx, t, st)
			results = append(results, res)
			completed[t.ID] = true
			pending = remove(pending, t.ID)
			e.applyState(t, res, st)

			em.send(Event{
				Phase:     PhaseExecuting,
				Progress:  e.progress(len(results), total, progressTaskBump),
				Message:   fmt.Sprintf("%s finished", t.Role),
				AgentRole: t.Role,
			})

			if !res.Success && task.Critical(t.Role) {
				return results, fmt.Errorf("%s: %s: %w", t.Role, res.Error, ErrCriticalFailure)
			}
		}
	}

	return results, nil
}

// runOne dispatches a single task and wraps the outcome into a Result.
// Results are created exactly once per executed task and never mutated.
func (e *Executor) runOne(ctx context.Context, t *task.Task, st *task.State) task.Result {
	start := time.Now()

	agent, ok := e.registry.Get(t.Role)
	var out task.Outcome
	if !ok {
		out = task.Fail("no agent registered for role %s", t.Role)
	} else {
		out = agent.Execute(ctx, t, st)
	}

	if out.Success {
		e.logger.Info("task done",
			zap.String("task", t.ID),
			zap.String("role", string(t.Role)),
			zap.Duration("took", time.Since(start)))
	} else {
		e.logger.Warn("task failed",
			zap.String("task", t.ID),
			zap.String("role", string(t.Role)),
			zap.String("error", out.Error))
	}

	return task.Result{
		TaskID:     t.ID,
		Role:       t.Role,
		Success:    out.Success,
		Data:       out.Data,
		Error:      out.Error,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// applyState folds a successful result back into the shared run state.
func (e *Executor) applyState(t *task.Task, res task.Result, st *task.State) {
	if !res.Success {
		return
	}
	switch t.Role {
	case task.RoleBrandAnalyst:
		if c, ok := res.Data.(*brand.Constitution); ok {
			st.Constitution = c
		}
	case task.RoleCreativeDirector:
		if out, ok := res.Data.(*agents.DirectorOutput); ok {
			st.CurrentImage = out.Image
			st.ExpandedPrompt = out.ExpandedPrompt
		}
	}
}

func (e *Executor) progress(done, total, bump int) int {
	if total == 0 {
		return progressExecBase
	}
	return progressExecBase + done*progressExecSpan/total + bump
}

func readySet(pending []*task.Task, completed map[string]bool) []*task.Task {
	var ready []*task.Task
	for _, t := range pending {
		ok := true
		for _, dep := range t.DependsOn {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

func remove(tasks []*task.Task, id string) []*task.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func phaseMessage(r task.Role) string {
	switch r {
	case task.RoleBrandAnalyst:
		return "Analyzing your moodboard..."
	case task.RoleCreativeDirector:
		return "Generating your image..."
	case task.RoleComplianceAuditor:
		return "Auditing brand compliance..."
	case task.RoleTrendScout:
		return "Researching trends..."
	case task.RoleContextMemory:
		return "Updating session memory..."
	case task.RoleExportOptimizer:
		return "Preparing export formats..."
	default:
		return fmt.Sprintf("Running %s...", r)
	}
}
