// Package backend abstracts the multimodal generation service the agents
// call. Anything that can take a list of prompt parts and return text and/or
// image bytes satisfies the Backend interface; vendor quirks stay inside the
// concrete adapter.
package backend

import (
	"context"
	"time"
)

// Backend is the single outbound capability of the orchestration core.
type Backend interface {
	Complete(ctx context.Context, parts []Part, opts Options) (*Completion, error)
}

// Part is one element of a multimodal prompt: either text or an inline image.
type Part struct {
	Text      string `json:"text,omitempty"`
	ImageMime string `json:"image_mime,omitempty"`
	ImageData []byte `json:"image_data,omitempty"`
}

// TextPart builds a text prompt part.
func TextPart(s string) Part { return Part{Text: s} }

// ImagePart builds an inline image prompt part.
func ImagePart(mime string, data []byte) Part {
	return Part{ImageMime: mime, ImageData: data}
}

// Options tune a single completion call.
type Options struct {
	JSONOutput  bool
	ImageOutput bool
	AspectRatio string
	Temperature float64
	Timeout     time.Duration
}

// Per-call timeout classes. Image generation is the long pole.
const (
	TimeoutFast      = 30 * time.Second
	TimeoutReasoning = 90 * time.Second
	TimeoutImageGen  = 600 * time.Second
)

// Completion is the backend's answer. Signature is an opaque continuation
// token some backends return for multi-turn context; the core passes it
// through untouched.
type Completion struct {
	Text       string `json:"text,omitempty"`
	ImageBytes []byte `json:"image_bytes,omitempty"`
	Signature  string `json:"signature,omitempty"`
}
