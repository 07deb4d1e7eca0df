package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds settings for the HTTP generation adapter.
type Config struct {
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"api_key"`
	Model      string        `json:"model"`
	ImageModel string        `json:"image_model"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// GoogleBackend implements Backend against the Generative Language API wire
// shape. Any server speaking the same shape (including a local model server)
// is substitutable.
type GoogleBackend struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewGoogleBackend creates the HTTP adapter.
func NewGoogleBackend(cfg Config, logger *zap.Logger) *GoogleBackend {
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.0-flash-exp-image-generation"
	}
	return &GoogleBackend{
		config: cfg,
		client: &http.Client{},
		logger: logger,
	}
}

// Wire types for the Generative Language API.
type glContent struct {
	Parts []glPart `json:"parts"`
}

type glPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *glInlineData `json:"inlineData,omitempty"`
}

type glInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type glGenerationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type glRequest struct {
	Contents         []glContent         `json:"contents"`
	GenerationConfig *glGenerationConfig `json:"generationConfig,omitempty"`
}

type glResponse struct {
	Candidates []struct {
		Content struct {
			Parts []glPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

// Complete sends one generation request and normalizes the answer.
func (b *GoogleBackend) Complete(ctx context.Context, parts []Part, opts Options) (*Completion, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = b.config.Timeout
	}
	if timeout == 0 {
		timeout = TimeoutReasoning
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := b.convertRequest(parts, opts)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	model := b.config.Model
	if opts.ImageOutput {
		model = b.config.ImageModel
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", b.config.Endpoint, model, b.config.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("complete after %s: %w", timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	var gl glResponse
	if err := json.NewDecoder(resp.Body).Decode(&gl); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return b.convertResponse(&gl)
}

func (b *GoogleBackend) convertRequest(parts []Part, opts Options) *glRequest {
	content := glContent{}
	hasImageInput := false
	for _, p := range parts {
		if len(p.ImageData) > 0 {
			hasImageInput = true
			content.Parts = append(content.Parts, glPart{
				InlineData: &glInlineData{
					MimeType: p.ImageMime,
					Data:     base64.StdEncoding.EncodeToString(p.ImageData),
				},
			})
			continue
		}
		content.Parts = append(content.Parts, glPart{Text: p.Text})
	}

	gc := &glGenerationConfig{Temperature: opts.Temperature}
	// The preview API rejects structured-output mime types on multimodal
	// requests, so JSON is requested only for text-only prompts; multimodal
	// callers get JSON via prompt instruction instead.
	if opts.JSONOutput && !hasImageInput && !opts.ImageOutput {
		gc.ResponseMimeType = "application/json"
	}
	if opts.ImageOutput {
		gc.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	if opts.AspectRatio != "" {
		content.Parts = append(content.Parts, glPart{
			Text: fmt.Sprintf("Aspect ratio: %s", opts.AspectRatio),
		})
	}
	return &glRequest{Contents: []glContent{content}, GenerationConfig: gc}
}

func (b *GoogleBackend) convertResponse(gl *glResponse) (*Completion, error) {
	if len(gl.Candidates) == 0 {
		return nil, fmt.Errorf("empty response: no candidates")
	}
	out := &Completion{Signature: gl.ThoughtSignature}
	for _, p := range gl.Candidates[0].Content.Parts {
		if p.InlineData != nil {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				b.logger.Warn("undecodable inline image in response", zap.Error(err))
				continue
			}
			out.ImageBytes = data
			continue
		}
		out.Text += p.Text
	}
	return out, nil
}
