package social

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/httpretry"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
)

// Dispatcher fans a cross-post out to platform clients.
type Dispatcher struct {
	clients  map[string]Client
	renderer *Renderer
	now      func() time.Time
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given clients.
func NewDispatcher(clients map[string]Client, renderer *Renderer) *Dispatcher {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Dispatcher{
		clients:  clients,
		renderer: renderer,
		now:      time.Now,
		log:      logger.With("component", "social"),
	}
}

// NewDispatcherFromConfig builds a client for every enabled platform with
// a token.
func NewDispatcherFromConfig(cfg config.SocialConfig, opts ...httpretry.Option) *Dispatcher {
	clients := make(map[string]Client)
	overrides := make(map[string]string)
	for _, name := range cfg.EnabledPlatforms() {
		p := cfg.Platforms[name]
		overrides[name] = p.Template
		switch name {
		case "facebook":
			clients[name] = &FacebookClient{
				api:    newAPIClient(name, orDefault(p.BaseURL, DefaultGraphURL), p.AccessToken, cfg.Timeout(), cfg.MaxRetries, opts...),
				pageID: p.AccountID,
			}
		case "instagram":
			clients[name] = &InstagramClient{
				api:      newAPIClient(name, orDefault(p.BaseURL, DefaultGraphURL), p.AccessToken, cfg.Timeout(), cfg.MaxRetries, opts...),
				userID:   p.AccountID,
				imageURL: p.ImageURL,
			}
		case "twitter":
			clients[name] = &TwitterClient{
				api: newAPIClient(name, orDefault(p.BaseURL, DefaultTwitterURL), p.AccessToken, cfg.Timeout(), cfg.MaxRetries, opts...),
			}
		case "linkedin":
			clients[name] = &LinkedInClient{
				api:   newAPIClient(name, orDefault(p.BaseURL, DefaultLinkedInURL), p.AccessToken, cfg.Timeout(), cfg.MaxRetries, opts...),
				orgID: p.AccountID,
			}
		}
	}
	return NewDispatcher(clients, NewRenderer(overrides))
}

// Platforms returns the names of the configured platforms.
func (d *Dispatcher) Platforms() []string {
	var out []string
	for _, name := range []string{"facebook", "instagram", "twitter", "linkedin"} {
		if _, ok := d.clients[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Publish posts to each platform concurrently and returns the results in
// the order the platforms were given.
func (d *Dispatcher) Publish(ctx context.Context, c domain.Campaign, snap domain.PerformanceSnapshot, platforms []string) []domain.PostResult {
	results := make([]domain.PostResult, len(platforms))
	var g errgroup.Group
	for i, platform := range platforms {
		g.Go(func() error {
			results[i] = d.publishOne(ctx, platform, c, snap)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) publishOne(ctx context.Context, platform string, c domain.Campaign, snap domain.PerformanceSnapshot) domain.PostResult {
	res := domain.PostResult{Platform: platform, PostedAt: d.now().UTC()}

	client, ok := d.clients[platform]
	if !ok {
		res.Error = ErrNotConfigured.Error()
		return res
	}
	content, err := d.renderer.Render(platform, c, snap)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Content = content

	id, err := client.Post(ctx, content)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			d.log.Warn("social: platform rejected post", "platform", platform, "campaign_id", c.ID, "status", apiErr.StatusCode)
		} else {
			d.log.Warn("social: post failed", "platform", platform, "campaign_id", c.ID, "error", err.Error())
		}
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.PostID = id
	d.log.Info("social: posted", "platform", platform, "campaign_id", c.ID, "post_id", id)
	return res
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
