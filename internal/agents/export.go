package agents

import (
	"context"
	"sort"

	"github.com/halcyard/brandforge/internal/task"
)

// ExportTemplate holds the dimensional and format metadata for one
// platform/asset-type pair.
type ExportTemplate struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	AssetType   string `json:"asset_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	MaxFileKB   int    `json:"max_file_kb"`
	AspectRatio string `json:"aspect_ratio"`
}

// exportTemplates is the static lookup table. Keys are platform/asset_type.
var exportTemplates = map[string]ExportTemplate{
	"instagram/post":     {ID: "ig-post", Platform: "instagram", AssetType: "post", Width: 1080, Height: 1080, Format: "jpeg", MaxFileKB: 8192, AspectRatio: "1:1"},
	"instagram/story":    {ID: "ig-story", Platform: "instagram", AssetType: "story", Width: 1080, Height: 1920, Format: "jpeg", MaxFileKB: 8192, AspectRatio: "9:16"},
	"instagram/reel":     {ID: "ig-reel", Platform: "instagram", AssetType: "reel", Width: 1080, Height: 1920, Format: "jpeg", MaxFileKB: 8192, AspectRatio: "9:16"},
	"youtube/thumbnail":  {ID: "yt-thumb", Platform: "youtube", AssetType: "thumbnail", Width: 1280, Height: 720, Format: "png", MaxFileKB: 2048, AspectRatio: "16:9"},
	"youtube/banner":     {ID: "yt-banner", Platform: "youtube", AssetType: "banner", Width: 2560, Height: 1440, Format: "png", MaxFileKB: 6144, AspectRatio: "16:9"},
	"x/post":             {ID: "x-post", Platform: "x", AssetType: "post", Width: 1600, Height: 900, Format: "png", MaxFileKB: 5120, AspectRatio: "16:9"},
	"x/header":           {ID: "x-header", Platform: "x", AssetType: "header", Width: 1500, Height: 500, Format: "png", MaxFileKB: 5120, AspectRatio: "3:1"},
	"linkedin/post":      {ID: "li-post", Platform: "linkedin", AssetType: "post", Width: 1200, Height: 627, Format: "png", MaxFileKB: 5120, AspectRatio: "1.91:1"},
	"linkedin/banner":    {ID: "li-banner", Platform: "linkedin", AssetType: "banner", Width: 1584, Height: 396, Format: "png", MaxFileKB: 4096, AspectRatio: "4:1"},
	"facebook/post":      {ID: "fb-post", Platform: "facebook", AssetType: "post", Width: 1200, Height: 630, Format: "jpeg", MaxFileKB: 8192, AspectRatio: "1.91:1"},
	"facebook/cover":     {ID: "fb-cover", Platform: "facebook", AssetType: "cover", Width: 820, Height: 312, Format: "jpeg", MaxFileKB: 4096, AspectRatio: "2.63:1"},
	"tiktok/video_cover": {ID: "tt-cover", Platform: "tiktok", AssetType: "video_cover", Width: 1080, Height: 1920, Format: "jpeg", MaxFileKB: 8192, AspectRatio: "9:16"},
	"pinterest/pin":      {ID: "pin", Platform: "pinterest", AssetType: "pin", Width: 1000, Height: 1500, Format: "png", MaxFileKB: 10240, AspectRatio: "2:3"},
	"web/og_image":       {ID: "og", Platform: "web", AssetType: "og_image", Width: 1200, Height: 630, Format: "png", MaxFileKB: 5120, AspectRatio: "1.91:1"},
}

// LookupTemplate resolves platform/assetType against the static table.
func LookupTemplate(platform, assetType string) (ExportTemplate, bool) {
	tpl, ok := exportTemplates[platform+"/"+assetType]
	return tpl, ok
}

// LookupTemplateID resolves a template by its short id.
func LookupTemplateID(id string) (ExportTemplate, bool) {
	for _, tpl := range exportTemplates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return ExportTemplate{}, false
}

// Templates returns every template, sorted by id for stable output.
func Templates() []ExportTemplate {
	out := make([]ExportTemplate, 0, len(exportTemplates))
	for _, tpl := range exportTemplates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Exporter answers export_optimizer tasks from the static template table.
// Deterministic, no network.
type Exporter struct{}

// NewExporter creates the export_optimizer agent.
func NewExporter() *Exporter { return &Exporter{} }

func (e *Exporter) Role() task.Role { return task.RoleExportOptimizer }

// Execute looks up a template by id, or by platform + asset_type.
func (e *Exporter) Execute(_ context.Context, t *task.Task, _ *task.State) task.Outcome {
	if id := stringParam(t, "template_id", ""); id != "" {
		if tpl, ok := LookupTemplateID(id); ok {
			return task.Ok(tpl)
		}
		return task.Fail("unknown export template id %q", id)
	}

	platform := stringParam(t, "platform", "")
	assetType := stringParam(t, "asset_type", "")
	if platform == "" || assetType == "" {
		return task.Fail("export_optimizer: platform and asset_type (or template_id) are required")
	}
	tpl, ok := LookupTemplate(platform, assetType)
	if !ok {
		return task.Fail("no export template for %s/%s", platform, assetType)
	}
	return task.Ok(tpl)
}
