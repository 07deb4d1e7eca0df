// Package planner turns a free-text user request into an ordered task list
// with dependency edges. One backend call produces the plan; a deterministic
// keyword rule takes over whenever that call fails, is unparsable, or yields
// nothing.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// Flags describe the session state the plan depends on.
type Flags struct {
	HasConstitution bool
	HasCanvas       bool
	HasImage        bool
}

// Source records which path produced the plan.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Planner plans orchestration runs.
type Planner struct {
	backend backend.Backend
	logger  *zap.Logger
}

// New creates a Planner.
func New(b backend.Backend, logger *zap.Logger) *Planner {
	return &Planner{backend: b, logger: logger}
}

// plannedTask is the wire shape the model returns. DependsOn entries are
// indices into the returned array, not ids.
type plannedTask struct {
	Role      string         `json:"role"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Priority  string         `json:"priority"`
	DependsOn []int          `json:"depends_on"`
}

const planPrompt = `You are an orchestration planner for a brand design
assistant. Available specialist roles: brand_analyst, creative_director,
compliance_auditor, trend_scout, context_memory, export_optimizer.

Session state: has_constitution=%t, has_canvas_elements=%t, has_image=%t.

User request: %s

Reply with ONLY a JSON array of tasks:
[{"role": "...", "action": "...", "params": {...}, "priority": "high|normal|low",
  "depends_on": [indices of earlier tasks in THIS array]}]
Return [] if nothing needs to be done.`

// Plan produces the task list for one request. The error describes why the
// model path was abandoned (already classified). It is informational: the
// returned tasks are always usable.
func (p *Planner) Plan(ctx context.Context, userMessage string, flags Flags) ([]*task.Task, Source, error) {
	prompt := fmt.Sprintf(planPrompt, flags.HasConstitution, flags.HasCanvas, flags.HasImage, userMessage)

	resp, err := p.backend.Complete(ctx, []backend.Part{backend.TextPart(prompt)}, backend.Options{
		JSONOutput: true,
		Timeout:    backend.TimeoutFast,
	})
	if err != nil {
		classified := backend.Classify(err)
		p.logger.Warn("plan call failed, using fallback", zap.Error(err))
		return p.Fallback(userMessage, flags), SourceFallback, fmt.Errorf("plan call: %w", classified)
	}

	tasks, parseErr := p.resolve(resp.Text)
	if parseErr != nil {
		p.logger.Warn("plan unparsable, using fallback", zap.Error(parseErr))
		return p.Fallback(userMessage, flags), SourceFallback, parseErr
	}
	if len(tasks) == 0 {
		fb := p.Fallback(userMessage, flags)
		if len(fb) > 0 {
			return fb, SourceFallback, nil
		}
		// Both paths agree there is nothing to do.
		return nil, SourceModel, nil
	}
	return tasks, SourceModel, nil
}

// resolve decodes the model's plan and rewrites index back-references into
// real task ids, in array order. Entries with unknown roles are dropped, as
// are dependency edges pointing at dropped entries.
func (p *Planner) resolve(raw string) ([]*task.Task, error) {
	var planned []plannedTask
	if err := json.Unmarshal([]byte(brand.StripFences(raw)), &planned); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	ids := make([]string, len(planned))
	for i := range planned {
		ids[i] = task.NewID()
	}

	kept := make(map[string]bool)
	var tasks []*task.Task
	for i, pt := range planned {
		role := task.Role(pt.Role)
		if !task.Known(role) {
			p.logger.Warn("dropping planned task with unknown role", zap.String("role", pt.Role))
			continue
		}
		t := &task.Task{
			ID:       ids[i],
			Role:     role,
			Action:   pt.Action,
			Params:   pt.Params,
			Priority: normalizePriority(pt.Priority),
		}
		for _, idx := range pt.DependsOn {
			if idx < 0 || idx >= len(ids) || idx == i {
				continue
			}
			t.DependsOn = append(t.DependsOn, ids[idx])
		}
		kept[t.ID] = true
		tasks = append(tasks, t)
	}

	// Prune edges to dropped entries so the executor never deadlocks on them.
	for _, t := range tasks {
		deps := t.DependsOn[:0]
		for _, d := range t.DependsOn {
			if kept[d] {
				deps = append(deps, d)
			}
		}
		t.DependsOn = deps
	}
	return tasks, nil
}

func normalizePriority(s string) task.Priority {
	switch task.Priority(strings.ToLower(s)) {
	case task.PriorityHigh:
		return task.PriorityHigh
	case task.PriorityLow:
		return task.PriorityLow
	default:
		return task.PriorityNormal
	}
}

// Intent keywords for the deterministic fallback.
var (
	generateKeywords = []string{"create", "generate", "make", "thumbnail", "image", "banner", "post", "design", "draw"}
	trendKeywords    = []string{"trend", "popular", "current", "viral"}
)

func containsAny(msg string, keywords []string) bool {
	lower := strings.ToLower(msg)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Fallback is the deterministic keyword plan: analysis first when the session
// lacks a constitution but has canvas material, generation plus a dependent
// audit on generation intent, and an independent trend task on trend intent.
// Given the same (message, flags) it always returns the same role sequence.
// An empty plan is a legitimate "nothing to do", not an error.
func (p *Planner) Fallback(userMessage string, flags Flags) []*task.Task {
	var tasks []*task.Task

	var analystID string
	if !flags.HasConstitution && flags.HasCanvas {
		analyst := &task.Task{
			ID:       task.NewID(),
			Role:     task.RoleBrandAnalyst,
			Action:   "analyze_canvas",
			Priority: task.PriorityHigh,
		}
		analystID = analyst.ID
		tasks = append(tasks, analyst)
	}

	if containsAny(userMessage, generateKeywords) {
		director := &task.Task{
			ID:       task.NewID(),
			Role:     task.RoleCreativeDirector,
			Action:   "generate_image",
			Params:   map[string]any{"prompt": userMessage},
			Priority: task.PriorityHigh,
		}
		if analystID != "" {
			director.DependsOn = []string{analystID}
		}
		auditor := &task.Task{
			ID:        task.NewID(),
			Role:      task.RoleComplianceAuditor,
			Action:    "audit_image",
			Priority:  task.PriorityNormal,
			DependsOn: []string{director.ID},
		}
		tasks = append(tasks, director, auditor)
	}

	if containsAny(userMessage, trendKeywords) {
		tasks = append(tasks, &task.Task{
			ID:       task.NewID(),
			Role:     task.RoleTrendScout,
			Action:   "search_trends",
			Params:   map[string]any{"query": userMessage},
			Priority: task.PriorityLow,
		})
	}

	return tasks
}
