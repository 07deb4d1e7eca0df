package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/brand"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// Analyst derives a brand constitution from the moodboard canvas.
type Analyst struct {
	backend backend.Backend
	logger  *zap.Logger
}

// NewAnalyst creates the brand_analyst agent.
func NewAnalyst(b backend.Backend, logger *zap.Logger) *Analyst {
	return &Analyst{backend: b, logger: logger}
}

func (a *Analyst) Role() task.Role { return task.RoleBrandAnalyst }

const analystPrompt = `You are a senior brand analyst. Study the attached
moodboard images and the textual context below. Derive the brand's visual and
verbal identity and reply with ONLY a JSON object of this shape:
{
  "visual_identity": {
    "color_palette_hex": ["#RRGGBB", ...],
    "photography_style": "...",
    "forbidden_elements": ["..."],
    "fonts": ["..."],
    "composition_rules": ["..."],
    "signature_elements": ["..."],
    "visual_density": "..."
  },
  "voice": {"tone": "...", "keywords": ["..."], "catchphrases": ["..."], "vocabulary_level": "..."},
  "content_patterns": {"post_formats": ["..."], "recurring_motifs": ["..."]},
  "risk_thresholds": {"nudity": "none|suggestive|artistic", "political": "none|mild|open"},
  "brand_essence": "one sentence"
}`

// Execute builds the multimodal payload from image elements, folds notes and
// colors into a text context block, and normalizes whatever JSON comes back.
// Zero usable image elements is a structured failure the caller can surface
// as "add images first", not a system fault.
func (a *Analyst) Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome {
	var parts []backend.Part
	var notes, colors []string

	for _, el := range st.CanvasElements {
		switch el.Type {
		case "image":
			if len(el.Data) == 0 {
				continue
			}
			mime := el.Mime
			if mime == "" {
				mime = "image/png"
			}
			parts = append(parts, backend.ImagePart(mime, el.Data))
		case "note":
			if el.Text != "" {
				notes = append(notes, el.Text)
			}
		case "color":
			if el.Value != "" {
				colors = append(colors, el.Value)
			}
		}
	}

	if len(parts) == 0 {
		return task.Fail("no valid image elements on canvas; add at least one image to analyze")
	}

	prompt := analystPrompt
	var ctxBlock strings.Builder
	if len(notes) > 0 {
		fmt.Fprintf(&ctxBlock, "\nMoodboard notes:\n- %s", strings.Join(notes, "\n- "))
	}
	if len(colors) > 0 {
		fmt.Fprintf(&ctxBlock, "\nPinned colors: %s", strings.Join(colors, ", "))
	}
	if ctxBlock.Len() > 0 {
		prompt += "\n" + ctxBlock.String()
	}
	parts = append([]backend.Part{backend.TextPart(prompt)}, parts...)

	resp, err := a.backend.Complete(ctx, parts, backend.Options{
		JSONOutput: true,
		Timeout:    backend.TimeoutReasoning,
	})
	if err != nil {
		return task.Fail("brand analysis failed: %v", err)
	}

	constitution, parseErr := brand.Parse(resp.Text)
	if parseErr != nil {
		// Defaults substituted; log the recovery, keep the run alive.
		a.logger.Warn("constitution response unparsable, using defaults", zap.Error(parseErr))
	}
	return task.Ok(constitution)
}
