package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/planner"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// Strategy selects who drives task selection during a run.
type Strategy string

const (
	// StrategyPlanned builds a static task DAG up front and drains it.
	StrategyPlanned Strategy = "planned"
	// StrategyLoop lets the backend pick the next tool step by step.
	StrategyLoop Strategy = "loop"
)

// Request is the single inbound entry point's payload.
type Request struct {
	Prompt         string               `json:"prompt"`
	CanvasElements []task.CanvasElement `json:"canvas_elements,omitempty"`
	Constitution   *brand.Constitution  `json:"constitution,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
}

// RunResult is the synthesized final outcome of one orchestration run.
type RunResult struct {
	Success      bool                `json:"success"`
	Image        []byte              `json:"image,omitempty"`
	Message      string              `json:"message"`
	Constitution *brand.Constitution `json:"constitution,omitempty"`
	TaskResults  []task.Result       `json:"task_results"`
	DurationMs   int64               `json:"duration_ms"`
}

// Service is the orchestration facade the API layer drives.
type Service struct {
	planner  *planner.Planner
	executor *Executor
	loop     *Loop
	memory   memory.Store
	strategy Strategy
	logger   *zap.Logger
}

// NewService wires the orchestration core. strategy defaults to planned.
func NewService(p *planner.Planner, ex *Executor, loop *Loop, mem memory.Store, strategy Strategy, logger *zap.Logger) *Service {
	if strategy == "" {
		strategy = StrategyPlanned
	}
	return &Service{
		planner:  p,
		executor: ex,
		loop:     loop,
		memory:   mem,
		strategy: strategy,
		logger:   logger,
	}
}

// Run starts one orchestration run and returns its event stream. The channel
// is closed after exactly one terminal complete or error event; the caller
// must drain it. Cancelling ctx stops dispatching promptly; an in-flight
// backend call is allowed to finish and its result is discarded.
func (s *Service) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		// Buffer space is tried first so the terminal event still lands
		// after the caller cancels; ctx only breaks the send when a
		// non-draining caller has filled the buffer.
		em := newEmitter(func(ev Event) {
			select {
			case events <- ev:
			default:
				select {
				case events <- ev:
				case <-ctx.Done():
				}
			}
		})
		s.run(ctx, req, em)
	}()
	return events
}

func (s *Service) run(ctx context.Context, req Request, em *emitter) {
	start := time.Now()

	st := task.NewState()
	if req.SessionID != "" {
		st.SessionID = req.SessionID
	}
	st.CanvasElements = req.CanvasElements
	st.Constitution = req.Constitution

	em.send(Event{
		Phase:    PhaseParsing,
		Progress: 5,
		Message:  "Understanding your request...",
	})

	if s.memory != nil && req.Prompt != "" {
		if err := s.memory.AppendTurn(ctx, st.SessionID, memory.Turn{
			Role: "user", Content: req.Prompt, Timestamp: time.Now(),
		}); err != nil {
			s.logger.Warn("record turn failed", zap.Error(err))
		}
	}

	var (
		results []task.Result
		runErr  error
	)

	if s.strategy == StrategyLoop && s.loop != nil {
		em.send(Event{
			Phase:    PhasePlanning,
			Progress: 15,
			Message:  "Letting the model drive the run...",
		})
		results, runErr = s.loop.Run(ctx, req.Prompt, st, em)
	} else {
		results, runErr = s.runPlanned(ctx, req, st, em)
		if runErr != nil && errors.Is(runErr, errNothingToDo) {
			s.finish(em, st, results, start, true, "Nothing to do for this request.")
			return
		}
	}

	if ctx.Err() != nil {
		em.send(Event{
			Phase:    PhaseError,
			Progress: 99,
			Message:  "Run cancelled.",
			Result:   s.result(st, results, start, false, "Run cancelled."),
		})
		return
	}

	// Partial progress beats total failure: an image produced at any point
	// in the run is reported as success even when a later side task failed.
	success := runErr == nil || st.HasImage()
	msg := s.summarize(st, results, runErr)
	s.finish(em, st, results, start, success, msg)
}

var errNothingToDo = errors.New("nothing to do")

func (s *Service) runPlanned(ctx context.Context, req Request, st *task.State, em *emitter) ([]task.Result, error) {
	flags := planner.Flags{
		HasConstitution: st.HasConstitution(),
		HasCanvas:       st.HasCanvas(),
		HasImage:        st.HasImage(),
	}

	tasks, source, planErr := s.planner.Plan(ctx, req.Prompt, flags)

	thinking := ""
	if planErr != nil {
		thinking = fmt.Sprintf("model plan unavailable (%v), used deterministic plan", planErr)
	}
	em.send(Event{
		Phase:    PhasePlanning,
		Progress: 15,
		Message:  fmt.Sprintf("Planned %d task(s) (%s)", len(tasks), source),
		Thinking: thinking,
	})

	if len(tasks) == 0 {
		return nil, errNothingToDo
	}
	return s.executor.Execute(ctx, tasks, st, em)
}

func (s *Service) finish(em *emitter, st *task.State, results []task.Result, start time.Time, success bool, msg string) {
	res := s.result(st, results, start, success, msg)
	if success {
		em.send(Event{Phase: PhaseComplete, Progress: 100, Message: msg, Result: res})
	} else {
		em.send(Event{Phase: PhaseError, Progress: 99, Message: msg, Result: res})
	}
}

func (s *Service) result(st *task.State, results []task.Result, start time.Time, success bool, msg string) *RunResult {
	if results == nil {
		results = []task.Result{}
	}
	return &RunResult{
		Success:      success,
		Image:        st.CurrentImage,
		Message:      msg,
		Constitution: st.Constitution,
		TaskResults:  results,
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

// summarize renders the human-readable final message. Non-critical failures
// appear in the task summary only; they never read as a top-level failure
// when an artifact exists.
func (s *Service) summarize(st *task.State, results []task.Result, runErr error) string {
	var done, failed []string
	var audit *agents.AuditResult
	for _, r := range results {
		if r.Success {
			done = append(done, string(r.Role))
			if a, ok := r.Data.(*agents.AuditResult); ok {
				audit = a
			}
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", r.Role, r.Error))
		}
	}

	var b strings.Builder
	switch {
	case runErr != nil && !st.HasImage():
		fmt.Fprintf(&b, "Run failed: %v.", runErr)
	case runErr != nil && st.HasImage():
		b.WriteString("Your image is ready (some follow-up steps did not finish).")
	case st.HasImage():
		b.WriteString("Your image is ready.")
	case st.HasConstitution():
		b.WriteString("Brand constitution updated.")
	default:
		b.WriteString("Done.")
	}

	if audit != nil {
		fmt.Fprintf(&b, " Compliance score: %.0f (pass=%t).", audit.ComplianceScore, audit.Pass)
	}
	if len(done) > 0 {
		fmt.Fprintf(&b, " Completed: %s.", strings.Join(done, ", "))
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, " Failed: %s.", strings.Join(failed, "; "))
	}
	return b.String()
}
