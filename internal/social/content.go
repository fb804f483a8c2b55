package social

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Default post templates per platform. Platforms not listed use the
// generic template.
var defaultTemplates = map[string]string{
	"twitter":  `{{ name }} is taking off: {{ ctr | percent }} click-through so far. {{ link }}`,
	"linkedin": "{{ name }} is resonating with our audience, reaching a {{ ctr | percent }} click-through rate.\n\nLearn more: {{ link }}",
	"generic":  "{{ name }} is performing great with a {{ ctr | percent }} click-through rate! Check it out: {{ link }}",
}

// Renderer turns a campaign and its snapshot into post copy.
type Renderer struct {
	engine    *liquid.Engine
	templates map[string]string
	cache     sync.Map // template source -> *liquid.Template
}

// NewRenderer creates a renderer. overrides maps a platform name to a
// Liquid template replacing its default.
func NewRenderer(overrides map[string]string) *Renderer {
	engine := liquid.NewEngine()

	// {{ ctr | percent }} renders a ratio as a percentage with one decimal.
	engine.RegisterFilter("percent", func(v float64) string {
		return fmt.Sprintf("%.1f%%", v*100)
	})
	// {{ text | clip: 280 }}
	engine.RegisterFilter("clip", func(s string, n int) string {
		return clip(s, n)
	})

	templates := make(map[string]string, len(defaultTemplates)+len(overrides))
	for k, v := range defaultTemplates {
		templates[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			templates[k] = v
		}
	}
	return &Renderer{engine: engine, templates: templates}
}

// Render produces the post copy for platform.
func (r *Renderer) Render(platform string, c domain.Campaign, snap domain.PerformanceSnapshot) (string, error) {
	src, ok := r.templates[platform]
	if !ok {
		src = r.templates["generic"]
	}

	tpl, err := r.parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", platform, err)
	}
	out, rerr := tpl.RenderString(liquid.Bindings{
		"name":        c.Name,
		"link":        c.LandingURL,
		"tracking_id": c.TrackingID,
		"platform":    platform,
		"ctr":         snap.CTR,
		"impressions": snap.Counters.Impressions,
		"clicks":      snap.Counters.Clicks,
		"conversions": snap.Counters.Conversions,
	})
	if rerr != nil {
		return "", fmt.Errorf("render %s template: %w", platform, rerr)
	}
	out = strings.TrimSpace(out)
	if limit := charLimit(platform); limit > 0 {
		out = clip(out, limit)
	}
	return out, nil
}

func (r *Renderer) parse(src string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(src); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	r.cache.Store(src, tpl)
	return tpl, nil
}

func charLimit(platform string) int {
	switch platform {
	case "twitter":
		return 280
	case "instagram":
		return 2200
	case "linkedin":
		return 3000
	}
	return 0
}

func clip(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
