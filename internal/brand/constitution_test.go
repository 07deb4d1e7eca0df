package brand

import (
	"strings"
	"testing"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	c := (&Constitution{}).Normalize()

	if len(c.VisualIdentity.ColorPaletteHex) != 2 {
		t.Fatalf("got palette %v, want default black/white", c.VisualIdentity.ColorPaletteHex)
	}
	if c.VisualIdentity.PhotographyStyle != DefaultPhotographyStyle {
		t.Errorf("got style %q, want default", c.VisualIdentity.PhotographyStyle)
	}
	if c.Voice.Tone != DefaultTone {
		t.Errorf("got tone %q, want default", c.Voice.Tone)
	}
	if c.RiskThresholds.Nudity != DefaultRiskThreshold || c.RiskThresholds.Political != DefaultRiskThreshold {
		t.Errorf("got thresholds %q/%q, want %q", c.RiskThresholds.Nudity, c.RiskThresholds.Political, DefaultRiskThreshold)
	}
	if c.VisualIdentity.ForbiddenElements == nil || c.Voice.Keywords == nil {
		t.Error("optional lists should normalize to empty, not nil")
	}
}

func TestNormalizeKeepsProvidedValues(t *testing.T) {
	c := &Constitution{
		VisualIdentity: VisualIdentity{
			ColorPaletteHex:  []string{"#FF6B35"},
			PhotographyStyle: "grainy film",
		},
		Voice:          Voice{Tone: "irreverent"},
		RiskThresholds: RiskThresholds{Nudity: "strict", Political: "moderate"},
	}
	c.Normalize()

	if c.VisualIdentity.PhotographyStyle != "grainy film" {
		t.Errorf("style was overwritten: %q", c.VisualIdentity.PhotographyStyle)
	}
	if c.Voice.Tone != "irreverent" {
		t.Errorf("tone was overwritten: %q", c.Voice.Tone)
	}
	if c.RiskThresholds.Nudity != "strict" {
		t.Errorf("threshold was overwritten: %q", c.RiskThresholds.Nudity)
	}
}

func TestParseFencedResponse(t *testing.T) {
	raw := "```json\n{\"visual_identity\":{\"color_palette_hex\":[\"#112233\"]},\"voice\":{\"tone\":\"bold\"},\"brand_essence\":\"urban energy\"}\n```"

	c, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.BrandEssence != "urban energy" {
		t.Errorf("got essence %q, want %q", c.BrandEssence, "urban energy")
	}
	if c.VisualIdentity.ColorPaletteHex[0] != "#112233" {
		t.Errorf("got palette %v", c.VisualIdentity.ColorPaletteHex)
	}
	// Fields the model omitted still come back normalized.
	if c.RiskThresholds.Nudity != DefaultRiskThreshold {
		t.Errorf("got nudity threshold %q, want default", c.RiskThresholds.Nudity)
	}
}

func TestParseGarbageFallsBackToDefaults(t *testing.T) {
	c, err := Parse("I'm sorry, I can't produce JSON right now.")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if c == nil {
		t.Fatal("fallback constitution must not be nil")
	}
	if c.Voice.Tone != DefaultTone {
		t.Errorf("got tone %q, want default fallback", c.Voice.Tone)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
	// A fence whose first line is actual payload must not lose it.
	got := StripFences("```{\"a\":1}```")
	if !strings.Contains(got, `"a"`) {
		t.Errorf("payload lost: %q", got)
	}
}
