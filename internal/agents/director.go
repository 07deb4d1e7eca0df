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

// Director generates marketing images steered by the brand constitution.
// It is retry-transparent: one call in, one result out; retry orchestration
// lives in the backend wrapper.
type Director struct {
	backend backend.Backend
	logger  *zap.Logger
}

// NewDirector creates the creative_director agent.
func NewDirector(b backend.Backend, logger *zap.Logger) *Director {
	return &Director{backend: b, logger: logger}
}

func (d *Director) Role() task.Role { return task.RoleCreativeDirector }

// DirectorOutput carries the generated image and the prompt actually sent.
type DirectorOutput struct {
	Image          []byte `json:"image"`
	ExpandedPrompt string `json:"expanded_prompt"`
}

// Execute expands the request prompt with the constitution and asks the
// backend for an image.
func (d *Director) Execute(ctx context.Context, t *task.Task, st *task.State) task.Outcome {
	prompt := stringParam(t, "prompt", "")
	if prompt == "" {
		return task.Fail("creative_director: no prompt provided")
	}
	aspect := stringParam(t, "aspect_ratio", "")

	expanded := ExpandPrompt(prompt, st.Constitution)

	resp, err := d.backend.Complete(ctx, []backend.Part{backend.TextPart(expanded)}, backend.Options{
		ImageOutput: true,
		AspectRatio: aspect,
		Timeout:     backend.TimeoutImageGen,
	})
	if err != nil {
		return task.Fail("image generation failed: %v", err)
	}
	if len(resp.ImageBytes) == 0 {
		return task.Fail("backend returned no image for prompt")
	}

	d.logger.Info("image generated",
		zap.Int("bytes", len(resp.ImageBytes)),
		zap.Int("prompt_len", len(expanded)))

	return task.Ok(&DirectorOutput{Image: resp.ImageBytes, ExpandedPrompt: expanded})
}

// ExpandPrompt folds the constitution into the user prompt in a fixed order:
// essence, palette, photography style, forbidden elements as a negative
// constraint, then voice tone. The same constitution always yields the same
// expansion for a given prompt.
func ExpandPrompt(prompt string, c *brand.Constitution) string {
	if c == nil {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	if c.BrandEssence != "" {
		fmt.Fprintf(&b, "\nBrand essence: %s.", c.BrandEssence)
	}
	if len(c.VisualIdentity.ColorPaletteHex) > 0 {
		fmt.Fprintf(&b, "\nUse the brand palette: %s.", strings.Join(c.VisualIdentity.ColorPaletteHex, ", "))
	}
	if c.VisualIdentity.PhotographyStyle != "" {
		fmt.Fprintf(&b, "\nPhotography style: %s.", c.VisualIdentity.PhotographyStyle)
	}
	if len(c.VisualIdentity.ForbiddenElements) > 0 {
		fmt.Fprintf(&b, "\nDo NOT include: %s.", strings.Join(c.VisualIdentity.ForbiddenElements, ", "))
	}
	if c.Voice.Tone != "" {
		fmt.Fprintf(&b, "\nOverall tone: %s.", c.Voice.Tone)
	}
	return b.String()
}
