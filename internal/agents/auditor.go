package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// DefaultPassThreshold is the compliance score at or above which an audit
// passes, unless configured otherwise.
const DefaultPassThreshold = 90

// AuditResult is the compliance verdict for one image.
type AuditResult struct {
	ComplianceScore float64          `json:"compliance_score"`
	Pass            bool             `json:"pass"`
	Violations      []AuditViolation `json:"violations,omitempty"`
	FixInstructions string           `json:"fix_instructions,omitempty"`
	Strengths       []string         `json:"strengths,omitempty"`
}

// AuditViolation pinpoints one deviation from the constitution.
type AuditViolation struct {
	Area     string `json:"area"`
	Severity string `json:"severity,omitempty"`
	Detail   string `json:"detail"`
}

// Auditor scores a generated image against the brand constitution. It only
// reports; deciding to regenerate is the caller's job.
type Auditor struct {
	backend   backend.Backend
	threshold float64
	logger    *zap.Logger
}

// NewAuditor creates the compliance_auditor agent. threshold <= 0 selects the
// default. A task may override the threshold per call through its
// "pass_threshold" param.
func NewAuditor(b backend.Backend, threshold float64, logger *zap.Logger) *Auditor {
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	return &Auditor{backend: b, threshold: threshold, logger: logger}
}

func (a *Auditor) Role() task.Role { return task.RoleComplianceAuditor }

// Execute audits the run's current image.
func (a *Auditor) Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome {
	if !st.HasImage() {
		return task.Fail("compliance_auditor: no image to audit")
	}
	if st.Constitution == nil {
		return task.Fail("compliance_auditor: no brand constitution to audit against")
	}

	constitutionJSON, _ := json.Marshal(st.Constitution)
	prompt := fmt.Sprintf(`You are a brand compliance auditor. Score how well
the attached image adheres to this brand constitution:

%s

Reply with ONLY a JSON object:
{"compliance_score": 0-100, "pass": true|false,
 "violations": [{"area": "...", "severity": "low|medium|high", "detail": "..."}],
 "fix_instructions": "...", "strengths": ["..."]}`, constitutionJSON)

	parts := []backend.Part{
		backend.TextPart(prompt),
		backend.ImagePart("image/png", st.CurrentImage),
	}
	resp, err := a.backend.Complete(ctx, parts, backend.Options{
		JSONOutput: true,
		Timeout:    backend.TimeoutReasoning,
	})
	if err != nil {
		return task.Fail("audit failed: %v", err)
	}

	threshold := a.threshold
	if v, ok := t.Params["pass_threshold"].(float64); ok && v > 0 {
		threshold = v
	}
	return task.Ok(a.normalize(resp.Text, threshold))
}

// normalize decodes the audit response leniently: fences stripped, the score
// clamped into [0,100], and pass derived from the threshold whenever the
// backend omitted or mistyped its own pass field.
func (a *Auditor) normalize(raw string, threshold float64) *AuditResult {
	var loose struct {
		ComplianceScore float64          `json:"compliance_score"`
		Pass            any              `json:"pass"`
		Violations      []AuditViolation `json:"violations"`
		FixInstructions string           `json:"fix_instructions"`
		Strengths       []string         `json:"strengths"`
	}
	res := &AuditResult{}
	if err := looseUnmarshal(raw, &loose); err != nil {
		a.logger.Warn("audit response unparsable, defaulting to failed audit",
			zap.Error(err), zap.String("raw", truncate(raw, 200)))
		res.ComplianceScore = 0
		res.Pass = false
		res.FixInstructions = "audit response was unparsable; re-run the audit"
		return res
	}

	res.ComplianceScore = clamp(loose.ComplianceScore, 0, 100)
	res.Violations = loose.Violations
	res.FixInstructions = loose.FixInstructions
	res.Strengths = loose.Strengths

	if b, ok := loose.Pass.(bool); ok {
		res.Pass = b
	} else {
		res.Pass = res.ComplianceScore >= threshold
	}
	return res
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
