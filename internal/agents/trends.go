package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// TrendScout researches what is currently working on social platforms. Trend
// data is advisory: a failed call degrades to an explicitly-empty result, not
// an error.
type TrendScout struct {
	backend backend.Backend
	logger  *zap.Logger
}

// NewTrendScout creates the trend_scout agent.
func NewTrendScout(b backend.Backend, logger *zap.Logger) *TrendScout {
	return &TrendScout{backend: b, logger: logger}
}

func (s *TrendScout) Role() task.Role { return task.RoleTrendScout }

// TrendReport is the structured trend summary.
type TrendReport struct {
	Query    string      `json:"query"`
	Trends   []TrendItem `json:"trends"`
	Summary  string      `json:"summary"`
	Degraded bool        `json:"degraded,omitempty"`
}

// TrendItem is one observed trend.
type TrendItem struct {
	Name      string   `json:"name"`
	Platforms []string `json:"platforms,omitempty"`
	Why       string   `json:"why,omitempty"`
}

// Execute asks the backend for a grounded trend summary.
func (s *TrendScout) Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome {
	query := stringParam(t, "query", "current visual trends in social media marketing")
	platforms := stringsParam(t, "platforms")

	prompt := fmt.Sprintf(`You are a trend researcher for marketing visuals.
Research: %s`, query)
	if len(platforms) > 0 {
		prompt += fmt.Sprintf("\nFocus on these platforms: %s.", strings.Join(platforms, ", "))
	}
	prompt += `
Reply with ONLY a JSON object:
{"trends": [{"name": "...", "platforms": ["..."], "why": "..."}], "summary": "..."}`

	resp, err := s.backend.Complete(ctx, []backend.Part{backend.TextPart(prompt)}, backend.Options{
		JSONOutput: true,
		Timeout:    backend.TimeoutFast,
	})
	if err != nil {
		s.logger.Warn("trend research unavailable, returning empty report", zap.Error(err))
		return task.Ok(&TrendReport{Query: query, Trends: []TrendItem{}, Degraded: true})
	}

	report := &TrendReport{Query: query}
	if err := looseUnmarshal(resp.Text, report); err != nil {
		s.logger.Warn("trend response unparsable, returning empty report", zap.Error(err))
		return task.Ok(&TrendReport{Query: query, Trends: []TrendItem{}, Degraded: true})
	}
	if report.Trends == nil {
		report.Trends = []TrendItem{}
	}
	return task.Ok(report)
}
