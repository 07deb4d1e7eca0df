package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// LoopPhase is the internal state of the backend-driven strategy.
type LoopPhase string

const (
	LoopPlanning   LoopPhase = "planning"
	LoopAnalyzing  LoopPhase = "analyzing"
	LoopGenerating LoopPhase = "generating"
	LoopAuditing   LoopPhase = "auditing"
	LoopRefining   LoopPhase = "refining"
	LoopComplete   LoopPhase = "complete"
)

// DefaultLoopCap bounds the number of tool steps in one backend-driven run.
const DefaultLoopCap = 12

// DefaultLoopPassThreshold is the audit pass score used when the
// backend-driven strategy audits without an explicit threshold.
const DefaultLoopPassThreshold = 70

// Loop is the alternative orchestration strategy: a single conversation in
// which the backend chooses the next tool each step, instead of a statically
// planned DAG. Same external contract as the executor, different driver.
type Loop struct {
	backend       backend.Backend
	registry      *agents.Registry
	maxSteps      int
	passThreshold float64
	logger        *zap.Logger
}

// NewLoop creates the backend-driven strategy. maxSteps <= 0 selects the
// default cap, passThreshold <= 0 the default audit threshold.
func NewLoop(b backend.Backend, registry *agents.Registry, maxSteps int, passThreshold float64, logger *zap.Logger) *Loop {
	if maxSteps <= 0 {
		maxSteps = DefaultLoopCap
	}
	if passThreshold <= 0 {
		passThreshold = DefaultLoopPassThreshold
	}
	return &Loop{
		backend:       b,
		registry:      registry,
		maxSteps:      maxSteps,
		passThreshold: passThreshold,
		logger:        logger,
	}
}

// toolDecision is what the backend returns each step.
type toolDecision struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Thought string         `json:"thought,omitempty"`
}

const loopPrompt = `You are driving a brand design session step by step.
Available tools:
- analyze_canvas: derive a brand constitution from the moodboard (needs canvas images)
- generate_image: create a marketing image. args: {"prompt": "...", "aspect_ratio": "..."}
- audit_image: score the current image against the constitution
- refine_prompt: improve the generation prompt. args: {"feedback": "..."}
- search_trends: research current trends. args: {"query": "..."}
- complete_task: finish the session. args: {"message": "..."}

User request: %s
Session: has_constitution=%t, has_image=%t, has_canvas=%t.
Steps so far:
%s

Reply with ONLY a JSON object: {"tool": "...", "args": {...}, "thought": "..."}`

// Run drives the loop until the backend signals completion or the step cap
// is exhausted. Cap exhaustion is a best-effort exit: whatever image and
// state accumulated is returned, not a hard failure.
func (l *Loop) Run(ctx context.Context, prompt string, st *task.State, em *emitter) ([]task.Result, error) {
	phase := LoopPlanning
	var results []task.Result
	var transcript []string

	for step := 0; step < l.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		decision, err := l.decide(ctx, prompt, st, transcript)
		if err != nil {
			l.logger.Warn("loop decision failed, exiting best-effort",
				zap.Int("step", step), zap.Error(err))
			if st.HasImage() || st.HasConstitution() {
				return results, nil
			}
			return results, fmt.Errorf("loop decision: %w", backend.Classify(err))
		}

		if decision.Tool == "complete_task" {
			phase = LoopComplete
			em.send(Event{
				Phase:    PhaseExecuting,
				Progress: l.progress(step),
				Message:  "Model signalled completion",
				Thinking: decision.Thought,
			})
			break
		}

		phase = phaseFor(decision.Tool)
		em.send(Event{
			Phase:     PhaseExecuting,
			Progress:  l.progress(step),
			Message:   fmt.Sprintf("Step %d: %s (%s)", step+1, decision.Tool, phase),
			Thinking:  decision.Thought,
			AgentRole: roleFor(decision.Tool),
		})

		res := l.runTool(ctx, decision, prompt, st)
		results = append(results, res)
		transcript = append(transcript, stepLine(decision.Tool, res))
	}

	if phase != LoopComplete {
		l.logger.Info("loop step cap reached, returning accumulated state",
			zap.Int("cap", l.maxSteps))
	}
	return results, nil
}

// decide asks the backend for the next tool.
func (l *Loop) decide(ctx context.Context, prompt string, st *task.State, transcript []string) (*toolDecision, error) {
	history := "(none yet)"
	if len(transcript) > 0 {
		history = strings.Join(transcript, "\n")
	}
	p := fmt.Sprintf(loopPrompt, prompt, st.HasConstitution(), st.HasImage(), st.HasCanvas(), history)

	resp, err := l.backend.Complete(ctx, []backend.Part{backend.TextPart(p)}, backend.Options{
		JSONOutput: true,
		Timeout:    backend.TimeoutFast,
	})
	if err != nil {
		return nil, err
	}

	var d toolDecision
	if err := json.Unmarshal([]byte(brand.StripFences(resp.Text)), &d); err != nil {
		return nil, fmt.Errorf("parse tool decision: %w", err)
	}
	if d.Tool == "" {
		return nil, fmt.Errorf("tool decision missing tool name")
	}
	return &d, nil
}

// runTool executes one chosen tool through the same agents the executor
// uses, wrapping the outcome into a Result.
func (l *Loop) runTool(ctx context.Context, d *toolDecision, userPrompt string, st *task.State) task.Result {
	start := time.Now()
	role := roleFor(d.Tool)

	t := &task.Task{
		ID:     task.NewID(),
		Role:   role,
		Action: d.Tool,
		Params: d.Args,
	}

	var out task.Outcome
	switch d.Tool {
	case "refine_prompt":
		out = l.refinePrompt(ctx, d, userPrompt, st)
	case "analyze_canvas", "generate_image", "audit_image", "search_trends":
		if d.Tool == "generate_image" {
			if t.Params == nil {
				t.Params = map[string]any{}
			}
			if _, ok := t.Params["prompt"]; !ok {
				p := userPrompt
				if st.ExpandedPrompt != "" {
					p = st.ExpandedPrompt
				}
				t.Params["prompt"] = p
			}
		}
		if d.Tool == "audit_image" {
			if t.Params == nil {
				t.Params = map[string]any{}
			}
			if _, ok := t.Params["pass_threshold"]; !ok {
				t.Params["pass_threshold"] = l.passThreshold
			}
		}
		agent, ok := l.registry.Get(role)
		if !ok {
			out = task.Fail("no agent registered for role %s", role)
		} else {
			out = agent.Execute(ctx, t, st)
		}
	default:
		out = task.Fail("unknown tool %q", d.Tool)
	}

	res := task.Result{
		TaskID:     t.ID,
		Role:       role,
		Success:    out.Success,
		Data:       out.Data,
		Error:      out.Error,
		DurationMs: time.Since(start).Milliseconds(),
	}

	// Same state folding as the executor.
	if res.Success {
		switch role {
		case task.RoleBrandAnalyst:
			if c, ok := res.Data.(*brand.Constitution); ok {
				st.Constitution = c
			}
		case task.RoleCreativeDirector:
			if o, ok := res.Data.(*agents.DirectorOutput); ok {
				st.CurrentImage = o.Image
				st.ExpandedPrompt = o.ExpandedPrompt
			}
		}
	}
	return res
}

// refinePrompt rewrites the working generation prompt from audit feedback.
func (l *Loop) refinePrompt(ctx context.Context, d *toolDecision, userPrompt string, st *task.State) task.Outcome {
	feedback, _ := d.Args["feedback"].(string)
	current := st.ExpandedPrompt
	if current == "" {
		current = userPrompt
	}

	p := fmt.Sprintf(`Improve this image generation prompt.
Current prompt: %s
Feedback to address: %s
Reply with ONLY the improved prompt text.`, current, feedback)

	resp, err := l.backend.Complete(ctx, []backend.Part{backend.TextPart(p)}, backend.Options{
		Timeout: backend.TimeoutFast,
	})
	if err != nil {
		return task.Fail("refine prompt: %v", err)
	}
	refined := strings.TrimSpace(resp.Text)
	if refined == "" {
		return task.Fail("refine prompt: empty response")
	}
	st.ExpandedPrompt = refined
	return task.Ok(map[string]any{"refined_prompt": refined})
}

func (l *Loop) progress(step int) int {
	return progressExecBase + step*progressExecSpan/l.maxSteps
}

func phaseFor(tool string) LoopPhase {
	switch tool {
	case "analyze_canvas":
		return LoopAnalyzing
	case "generate_image":
		return LoopGenerating
	case "audit_image":
		return LoopAuditing
	case "refine_prompt":
		return LoopRefining
	case "complete_task":
		return LoopComplete
	default:
		return LoopPlanning
	}
}

func roleFor(tool string) task.Role {
	switch tool {
	case "analyze_canvas":
		return task.RoleBrandAnalyst
	case "generate_image":
		return task.RoleCreativeDirector
	case "audit_image":
		return task.RoleComplianceAuditor
	case "search_trends":
		return task.RoleTrendScout
	case "refine_prompt":
		return task.RoleCreativeDirector
	default:
		return task.RoleContextMemory
	}
}

func stepLine(tool string, res task.Result) string {
	if res.Success {
		return fmt.Sprintf("%s -> ok", tool)
	}
	return fmt.Sprintf("%s -> failed: %s", tool, res.Error)
}
