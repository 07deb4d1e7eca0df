package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/planner"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// scriptedBackend answers each Complete call with the next canned response.
type scriptedBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedBackend) Complete(ctx context.Context, parts []backend.Part, opts backend.Options) (*backend.Completion, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return &backend.Completion{Text: "[]"}, nil
	}
	return &backend.Completion{Text: s.responses[i]}, nil
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func newPlannedService(b backend.Backend, reg *agents.Registry) *Service {
	logger := zap.NewNop()
	return NewService(
		planner.New(b, logger),
		NewExecutor(reg, logger),
		nil,
		memory.NewInMem(),
		StrategyPlanned,
		logger,
	)
}

func TestRunPlannedHappyPath(t *testing.T) {
	img := []byte{0xFF, 0xD8}
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleBrandAnalyst, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok((&brand.Constitution{BrandEssence: "warm minimalism"}).Normalize())
	}})
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.DirectorOutput{Image: img, ExpandedPrompt: "expanded"})
	}})
	reg.Register(&stubAgent{role: task.RoleComplianceAuditor, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.AuditResult{ComplianceScore: 94, Pass: true})
	}})

	// Planner backend fails; the deterministic fallback drives the run.
	svc := newPlannedService(&scriptedBackend{errs: []error{fmt.Errorf("x: %w", backend.ErrUnavailable)}}, reg)

	events := drain(svc.Run(context.Background(), Request{
		Prompt:         "make a product banner",
		CanvasElements: []task.CanvasElement{{Type: "image", Data: []byte{1}}},
	}))
	if len(events) == 0 {
		t.Fatal("no events")
	}

	first, last := events[0], events[len(events)-1]
	if first.Phase != PhaseParsing {
		t.Errorf("got first phase %q, want parsing", first.Phase)
	}
	if last.Phase != PhaseComplete || last.Progress != 100 {
		t.Fatalf("got terminal %q/%d, want complete/100", last.Phase, last.Progress)
	}
	if last.Result == nil || !last.Result.Success {
		t.Fatal("terminal event must carry a successful result")
	}
	if len(last.Result.Image) == 0 || last.Result.Constitution == nil {
		t.Error("result missing image or constitution")
	}
	if len(last.Result.TaskResults) != 3 {
		t.Errorf("got %d task results, want 3", len(last.Result.TaskResults))
	}
	if !strings.Contains(last.Result.Message, "Compliance score: 94") {
		t.Errorf("message missing audit score: %q", last.Result.Message)
	}

	// Planner failure must surface in the planning event's thinking.
	var sawFallbackNote bool
	for _, ev := range events {
		if ev.Phase == PhasePlanning && strings.Contains(ev.Thinking, "deterministic plan") {
			sawFallbackNote = true
		}
	}
	if !sawFallbackNote {
		t.Error("planning event should note the fallback")
	}

	// Exactly one terminal event, and progress never decreases.
	lastP, terminals := -1, 0
	for _, ev := range events {
		if ev.Progress < lastP {
			t.Fatalf("progress went backwards: %d after %d", ev.Progress, lastP)
		}
		lastP = ev.Progress
		if ev.Phase == PhaseComplete || ev.Phase == PhaseError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want 1", terminals)
	}
}

func TestRunNothingToDo(t *testing.T) {
	svc := newPlannedService(&scriptedBackend{responses: []string{"[]"}}, agents.NewRegistry())

	events := drain(svc.Run(context.Background(), Request{Prompt: "thanks, that's all"}))
	last := events[len(events)-1]
	if last.Phase != PhaseComplete {
		t.Fatalf("got %q, want complete", last.Phase)
	}
	if last.Result == nil || !last.Result.Success {
		t.Fatal("nothing-to-do is a success")
	}
	if !strings.Contains(last.Result.Message, "Nothing to do") {
		t.Errorf("got message %q", last.Result.Message)
	}
	if len(last.Result.TaskResults) != 0 {
		t.Errorf("expected no task results, got %d", len(last.Result.TaskResults))
	}
}

func TestRunImageSurvivesLateFailure(t *testing.T) {
	img := []byte{1, 2, 3}
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.DirectorOutput{Image: img, ExpandedPrompt: "x"})
	}})
	reg.Register(&stubAgent{role: task.RoleComplianceAuditor, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Fail("auditor crashed")
	}})

	// Fallback plan: director then auditor (constitution already present).
	svc := newPlannedService(&scriptedBackend{errs: []error{fmt.Errorf("x: %w", backend.ErrTimeout)}}, reg)

	events := drain(svc.Run(context.Background(), Request{
		Prompt:       "generate a post image",
		Constitution: (&brand.Constitution{}).Normalize(),
	}))
	last := events[len(events)-1]
	if last.Phase != PhaseComplete {
		t.Fatalf("got %q, want complete despite audit failure", last.Phase)
	}
	if !last.Result.Success || len(last.Result.Image) == 0 {
		t.Error("image produced mid-run must be delivered as success")
	}
	if !strings.Contains(last.Result.Message, "auditor crashed") {
		t.Errorf("failed step should be named in message: %q", last.Result.Message)
	}
}

func TestRunCriticalFailureIsError(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleBrandAnalyst, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Fail("no images to analyze")
	}})

	svc := newPlannedService(&scriptedBackend{errs: []error{fmt.Errorf("x: %w", backend.ErrUnavailable)}}, reg)

	events := drain(svc.Run(context.Background(), Request{
		Prompt:         "make a banner",
		CanvasElements: []task.CanvasElement{{Type: "note", Text: "no images here"}},
	}))
	last := events[len(events)-1]
	if last.Phase != PhaseError {
		t.Fatalf("got %q, want error", last.Phase)
	}
	if last.Result == nil || last.Result.Success {
		t.Error("critical failure with no image is not a success")
	}
	if last.Progress >= 100 {
		t.Errorf("error event must not report 100, got %d", last.Progress)
	}
	errorEvents := 0
	for _, ev := range events {
		if ev.Phase == PhaseError {
			errorEvents++
		}
	}
	if errorEvents != 1 {
		t.Errorf("got %d error events, want exactly 1", errorEvents)
	}
}

func TestRunDeadlockedPlanEmitsSingleError(t *testing.T) {
	// Model plan with a two-task dependency cycle.
	plan := `[{"role": "trend_scout", "action": "research", "depends_on": [1]},
	          {"role": "export_optimizer", "action": "resize", "depends_on": [0]}]`
	svc := newPlannedService(&scriptedBackend{responses: []string{plan}}, newTestRegistry(nil))

	events := drain(svc.Run(context.Background(), Request{Prompt: "research formats"}))
	last := events[len(events)-1]
	if last.Phase != PhaseError {
		t.Fatalf("got %q, want error", last.Phase)
	}
	if !strings.Contains(last.Result.Message, "deadlock") {
		t.Errorf("message should name the deadlock: %q", last.Result.Message)
	}
	errorEvents := 0
	for _, ev := range events {
		if ev.Phase == PhaseError {
			errorEvents++
		}
	}
	if errorEvents != 1 {
		t.Errorf("got %d error events, want exactly 1", errorEvents)
	}
}

func TestRunCancelledEmitsTerminalError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(*task.Task, *task.State) task.Outcome {
		cancel()
		return task.Ok(&agents.DirectorOutput{Image: []byte{1}})
	}})

	// Fallback plan: director then auditor. The cancellation lands before the
	// auditor is dispatched.
	svc := newPlannedService(&scriptedBackend{errs: []error{fmt.Errorf("x: %w", backend.ErrUnavailable)}}, reg)

	events := drain(svc.Run(ctx, Request{
		Prompt:       "generate a banner",
		Constitution: (&brand.Constitution{}).Normalize(),
	}))
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last.Phase != PhaseError {
		t.Fatalf("got terminal %q, want error", last.Phase)
	}
	if !strings.Contains(last.Message, "cancelled") {
		t.Errorf("got message %q, want cancellation named", last.Message)
	}
	terminals := 0
	for _, ev := range events {
		if ev.Phase == PhaseComplete || ev.Phase == PhaseError {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
}

func TestRunRecordsUserTurn(t *testing.T) {
	mem := memory.NewInMem()
	logger := zap.NewNop()
	svc := NewService(
		planner.New(&scriptedBackend{responses: []string{"[]"}}, logger),
		NewExecutor(agents.NewRegistry(), logger),
		nil, mem, StrategyPlanned, logger,
	)

	drain(svc.Run(context.Background(), Request{Prompt: "hello", SessionID: "sess-1"}))

	turns, err := mem.Turns(context.Background(), "sess-1", 0)
	if err != nil || len(turns) != 1 || turns[0].Content != "hello" {
		t.Errorf("turn not recorded: %v %v", turns, err)
	}
}

func TestLoopStrategyDrivesTools(t *testing.T) {
	img := []byte{9, 9}
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(tk *task.Task, st *task.State) task.Outcome {
		if tk.Params["prompt"] == nil {
			return task.Fail("prompt missing")
		}
		return task.Ok(&agents.DirectorOutput{Image: img, ExpandedPrompt: "expanded"})
	}})
	reg.Register(&stubAgent{role: task.RoleComplianceAuditor, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.AuditResult{ComplianceScore: 88, Pass: true})
	}})

	sb := &scriptedBackend{responses: []string{
		`{"tool": "generate_image", "thought": "start with the hero shot"}`,
		`{"tool": "audit_image"}`,
		`{"tool": "complete_task", "args": {"message": "done"}}`,
	}}
	logger := zap.NewNop()
	loop := NewLoop(sb, reg, 0, 0, logger)
	svc := NewService(planner.New(sb, logger), NewExecutor(reg, logger), loop, memory.NewInMem(), StrategyLoop, logger)

	events := drain(svc.Run(context.Background(), Request{
		Prompt:       "hero image for the launch",
		Constitution: (&brand.Constitution{}).Normalize(),
	}))
	last := events[len(events)-1]
	if last.Phase != PhaseComplete || !last.Result.Success {
		t.Fatalf("got %q success=%v", last.Phase, last.Result != nil && last.Result.Success)
	}
	if len(last.Result.Image) == 0 {
		t.Error("image missing from loop result")
	}
	if len(last.Result.TaskResults) != 2 {
		t.Errorf("got %d tool results, want 2", len(last.Result.TaskResults))
	}
}

func TestLoopAuditUsesLowerDefaultThreshold(t *testing.T) {
	logger := zap.NewNop()
	sb := &scriptedBackend{responses: []string{
		`{"tool": "audit_image"}`,
		`{"compliance_score": 75}`,
		`{"tool": "complete_task"}`,
	}}
	reg := agents.NewRegistry()
	reg.Register(agents.NewAuditor(sb, 0, logger))

	st := task.NewState()
	st.CurrentImage = []byte{1}
	st.Constitution = (&brand.Constitution{}).Normalize()

	loop := NewLoop(sb, reg, 5, 0, logger)
	em, _ := collectEmitter()
	results, err := loop.Run(context.Background(), "audit the hero image", st, em)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	audit, ok := results[0].Data.(*agents.AuditResult)
	if !ok {
		t.Fatalf("got %T, want *agents.AuditResult", results[0].Data)
	}
	if audit.ComplianceScore != 75 || !audit.Pass {
		t.Errorf("score 75 must pass the backend-driven default of 70, got pass=%v", audit.Pass)
	}

	// The same score through a directly dispatched audit stays below the
	// planned default of 90.
	direct := agents.NewAuditor(&scriptedBackend{responses: []string{`{"compliance_score": 75}`}}, 0, logger)
	out := direct.Execute(context.Background(), &task.Task{}, st)
	if res, ok := out.Data.(*agents.AuditResult); !ok || res.Pass {
		t.Error("score 75 must fail the planned default of 90")
	}
}

func TestLoopCapIsBestEffort(t *testing.T) {
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleTrendScout, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.TrendReport{})
	}})

	// The backend never signals completion.
	sb := &scriptedBackend{}
	for i := 0; i < 20; i++ {
		sb.responses = append(sb.responses, `{"tool": "search_trends"}`)
	}
	loop := NewLoop(sb, reg, 3, 0, zap.NewNop())

	em, _ := collectEmitter()
	results, err := loop.Run(context.Background(), "keep researching", task.NewState(), em)
	if err != nil {
		t.Fatalf("cap exhaustion must not error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d steps, want the cap of 3", len(results))
	}
}

func TestLoopDecisionFailureWithoutArtifactErrors(t *testing.T) {
	sb := &scriptedBackend{errs: []error{fmt.Errorf("x: %w", backend.ErrTimeout)}}
	loop := NewLoop(sb, agents.NewRegistry(), 5, 0, zap.NewNop())

	em, _ := collectEmitter()
	_, err := loop.Run(context.Background(), "anything", task.NewState(), em)
	if err == nil {
		t.Fatal("expected an error with no accumulated artifact")
	}
}

func TestLoopDecisionFailureWithArtifactExitsClean(t *testing.T) {
	img := []byte{1}
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.DirectorOutput{Image: img})
	}})

	sb := &scriptedBackend{
		responses: []string{`{"tool": "generate_image", "args": {"prompt": "x"}}`},
		errs:      []error{nil, fmt.Errorf("x: %w", backend.ErrUnavailable)},
	}
	loop := NewLoop(sb, reg, 5, 0, zap.NewNop())

	em, _ := collectEmitter()
	results, err := loop.Run(context.Background(), "make an image", task.NewState(), em)
	if err != nil {
		t.Fatalf("image in hand should exit best-effort: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}
