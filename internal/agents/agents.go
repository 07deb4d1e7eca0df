// Package agents implements the six specialist roles. Every agent wraps at
// most one backend call behind a uniform contract: failures are returned as
// structured outcomes, never panics, and malformed backend JSON is recovered
// into role-specific defaults instead of surfacing as errors.
package agents

import (
	"context"
	"encoding/json"

	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/task"
)

// Agent is the uniform execution contract the executor dispatches against.
type Agent interface {
	Role() task.Role
	Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome
}

// Registry maps roles to their agents.
type Registry struct {
	agents map[task.Role]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[task.Role]Agent)}
}

// Register adds an agent under its role, replacing any previous one.
func (r *Registry) Register(a Agent) {
	r.agents[a.Role()] = a
}

// Get returns the agent for a role.
func (r *Registry) Get(role task.Role) (Agent, bool) {
	a, ok := r.agents[role]
	return a, ok
}

// looseUnmarshal strips markdown fences and decodes into v.
func looseUnmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(brand.StripFences(raw)), v)
}

// clamp bounds n into [lo, hi].
func clamp(n, lo, hi float64) float64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// stringParam reads a string task parameter with a fallback.
func stringParam(t *task.Task, key, fallback string) string {
	if t == nil || t.Params == nil {
		return fallback
	}
	if v, ok := t.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// stringsParam reads a string-list task parameter.
func stringsParam(t *task.Task, key string) []string {
	if t == nil || t.Params == nil {
		return nil
	}
	switch v := t.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
