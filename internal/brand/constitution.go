package brand

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Constitution is the reusable style profile derived from a moodboard. It is
// a value type: agents replace it wholesale on update and never field-patch.
type Constitution struct {
	VisualIdentity  VisualIdentity  `json:"visual_identity"`
	Voice           Voice           `json:"voice"`
	ContentPatterns ContentPatterns `json:"content_patterns,omitempty"`
	RiskThresholds  RiskThresholds  `json:"risk_thresholds"`
	BrandEssence    string          `json:"brand_essence,omitempty"`
}

// VisualIdentity captures the look of the brand.
type VisualIdentity struct {
	ColorPaletteHex   []string `json:"color_palette_hex"`
	PhotographyStyle  string   `json:"photography_style"`
	ForbiddenElements []string `json:"forbidden_elements"`
	Fonts             []string `json:"fonts,omitempty"`
	CompositionRules  []string `json:"composition_rules,omitempty"`
	SignatureElements []string `json:"signature_elements,omitempty"`
	VisualDensity     string   `json:"visual_density,omitempty"`
}

// Voice captures the verbal register of the brand.
type Voice struct {
	Tone            string   `json:"tone"`
	Keywords        []string `json:"keywords"`
	Catchphrases    []string `json:"catchphrases,omitempty"`
	VocabularyLevel string   `json:"vocabulary_level,omitempty"`
}

// ContentPatterns holds optional recurring content structures.
type ContentPatterns struct {
	PostFormats    []string `json:"post_formats,omitempty"`
	RecurringMotifs []string `json:"recurring_motifs,omitempty"`
}

// RiskThresholds gate what the compliance auditor tolerates.
type RiskThresholds struct {
	Nudity    string `json:"nudity"`
	Political string `json:"political"`
}

// Defaults substituted when the model response misses required fields.
const (
	DefaultPhotographyStyle = "clean, modern photography with natural lighting"
	DefaultTone             = "professional and approachable"
	DefaultRiskThreshold    = "none"
)

// DefaultPalette is used when no colors could be extracted.
var DefaultPalette = []string{"#000000", "#FFFFFF"}

// Normalize fills every required field with its documented default so a
// constitution is never missing color_palette_hex, photography_style, tone or
// either risk threshold. It mutates and returns the receiver.
func (c *Constitution) Normalize() *Constitution {
	if len(c.VisualIdentity.ColorPaletteHex) == 0 {
		c.VisualIdentity.ColorPaletteHex = append([]string(nil), DefaultPalette...)
	}
	if strings.TrimSpace(c.VisualIdentity.PhotographyStyle) == "" {
		c.VisualIdentity.PhotographyStyle = DefaultPhotographyStyle
	}
	if c.VisualIdentity.ForbiddenElements == nil {
		c.VisualIdentity.ForbiddenElements = []string{}
	}
	if strings.TrimSpace(c.Voice.Tone) == "" {
		c.Voice.Tone = DefaultTone
	}
	if c.Voice.Keywords == nil {
		c.Voice.Keywords = []string{}
	}
	if strings.TrimSpace(c.RiskThresholds.Nudity) == "" {
		c.RiskThresholds.Nudity = DefaultRiskThreshold
	}
	if strings.TrimSpace(c.RiskThresholds.Political) == "" {
		c.RiskThresholds.Political = DefaultRiskThreshold
	}
	return c
}

// Parse decodes a model response into a normalized Constitution. Markdown
// code fences are stripped first. A response that cannot be decoded at all
// yields a default constitution and the decode error, so callers can log the
// recovery without propagating a nil.
func Parse(raw string) (*Constitution, error) {
	cleaned := StripFences(raw)
	var c Constitution
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		return (&Constitution{}).Normalize(), fmt.Errorf("parse constitution: %w", err)
	}
	return c.Normalize(), nil
}

// StripFences removes a wrapping markdown code fence (``` or ```json) if one
// is present, returning the inner payload trimmed.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
