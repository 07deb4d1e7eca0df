package task

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies one of the six specialist agent categories.
type Role string

const (
	RoleBrandAnalyst      Role = "brand_analyst"
	RoleCreativeDirector  Role = "creative_director"
	RoleComplianceAuditor Role = "compliance_auditor"
	RoleTrendScout        Role = "trend_scout"
	RoleContextMemory     Role = "context_memory"
	RoleExportOptimizer   Role = "export_optimizer"
)

// Roles lists every known role in a stable order.
var Roles = []Role{
	RoleBrandAnalyst,
	RoleCreativeDirector,
	RoleComplianceAuditor,
	RoleTrendScout,
	RoleContextMemory,
	RoleExportOptimizer,
}

// Known reports whether r is one of the six defined roles.
func Known(r Role) bool {
	for _, k := range Roles {
		if k == r {
			return true
		}
	}
	return false
}

// Critical reports whether a failure of this role aborts the whole run.
func Critical(r Role) bool {
	return r == RoleBrandAnalyst || r == RoleCreativeDirector
}

// Priority orders tasks of equal readiness.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Task is a single planned unit of work. Tasks are immutable once queued;
// the executor never rewrites them.
type Task struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Priority  Priority       `json:"priority"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// Result is the record of one executed task. Exactly one Result exists per
// task that actually ran; tasks dropped by a deadlock abort never get one.
type Result struct {
	TaskID     string `json:"task_id"`
	Role       Role   `json:"role"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Outcome is what an agent hands back to the executor. The executor wraps it
// into a Result with the task id and timing attached.
type Outcome struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Fail builds a failed Outcome from a formatted message.
func Fail(format string, args ...any) Outcome {
	return Outcome{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Ok builds a successful Outcome carrying data.
func Ok(data any) Outcome {
	return Outcome{Success: true, Data: data}
}

// CanvasElement is a moodboard item supplied by the caller.
type CanvasElement struct {
	Type  string `json:"type"` // "image", "note" or "color"
	Mime  string `json:"mime,omitempty"`
	Data  []byte `json:"data,omitempty"`
	Text  string `json:"text,omitempty"`
	Value string `json:"value,omitempty"`
}

// NewID returns a fresh task id.
func NewID() string {
	return "task-" + uuid.New().String()
}

// NewSessionID returns a fresh orchestration session id.
func NewSessionID() string {
	return uuid.New().String()
}
