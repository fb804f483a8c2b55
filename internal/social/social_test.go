package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/httpretry"
)

var (
	campaign = domain.Campaign{ID: "c-1", Name: "Summer Fest", LandingURL: "https://events.example.com/summer"}
	snapshot = domain.PerformanceSnapshot{CampaignID: "c-1", CTR: 0.045, Counters: domain.Counters{Impressions: 20000, Clicks: 900}}
)

type platformServer struct {
	*httptest.Server
	mu      sync.Mutex
	auth    map[string]string
	bodies  map[string]string
	tweetFn func(w http.ResponseWriter)
}

func newPlatformServer(t *testing.T) *platformServer {
	t.Helper()
	ps := &platformServer{auth: map[string]string{}, bodies: map[string]string{}}
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		ps.auth[r.URL.Path] = r.Header.Get("Authorization")
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			r.ParseForm()
			ps.bodies[r.URL.Path] = r.PostForm.Encode()
			return
		}
		body, _ := io.ReadAll(r.Body)
		ps.bodies[r.URL.Path] = string(body)
	}
	mux.HandleFunc("POST /page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"id":"page-1_987"}`))
	})
	mux.HandleFunc("POST /ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"id":"container-5"}`))
	})
	mux.HandleFunc("POST /ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Write([]byte(`{"id":"ig-post-7"}`))
	})
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if ps.tweetFn != nil {
			ps.tweetFn(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1790","text":"ok"}}`))
	})
	mux.HandleFunc("POST /v2/posts", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.Header().Set("x-restli-id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func (ps *platformServer) config() config.SocialConfig {
	platform := func(account string) config.PlatformConfig {
		return config.PlatformConfig{Enabled: true, BaseURL: ps.URL, AccountID: account}
	}
	fb, ig, tw, li := platform("page-1"), platform("ig-1"), platform(""), platform("1234")
	fb.AccessToken, ig.AccessToken, tw.AccessToken, li.AccessToken = "tok-fb", "tok-ig", "tok-tw", "tok-li"
	ig.ImageURL = "https://cdn.example.com/summer.png"
	return config.SocialConfig{
		Enabled:        true,
		TimeoutSeconds: 5,
		MaxRetries:     2,
		Platforms:      map[string]config.PlatformConfig{"facebook": fb, "instagram": ig, "twitter": tw, "linkedin": li},
	}
}

func fastRetry() httpretry.Option {
	return httpretry.WithBackoff(time.Millisecond, 5*time.Millisecond)
}

// =============================================================================
// DISPATCHER
// =============================================================================

func TestDispatcherPublishesToEveryPlatform(t *testing.T) {
	ps := newPlatformServer(t)
	d := NewDispatcherFromConfig(ps.config(), fastRetry())
	require.Equal(t, []string{"facebook", "instagram", "twitter", "linkedin"}, d.Platforms())

	results := d.Publish(context.Background(), campaign, snapshot, d.Platforms())
	require.Len(t, results, 4)

	ids := map[string]string{}
	for _, r := range results {
		assert.True(t, r.Success, "%s: %s", r.Platform, r.Error)
		assert.Contains(t, r.Content, "Summer Fest")
		assert.Contains(t, r.Content, "4.5%")
		assert.False(t, r.PostedAt.IsZero())
		ids[r.Platform] = r.PostID
	}
	assert.Equal(t, map[string]string{
		"facebook":  "page-1_987",
		"instagram": "ig-post-7",
		"twitter":   "1790",
		"linkedin":  "urn:li:share:42",
	}, ids)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, "Bearer tok-fb", ps.auth["/page-1/feed"])
	assert.Equal(t, "Bearer tok-ig", ps.auth["/ig-1/media_publish"])
	assert.Equal(t, "Bearer tok-tw", ps.auth["/2/tweets"])
	assert.Equal(t, "Bearer tok-li", ps.auth["/v2/posts"])
	assert.Contains(t, ps.bodies["/ig-1/media_publish"], "creation_id=container-5")

	var li map[string]any
	require.NoError(t, json.Unmarshal([]byte(ps.bodies["/v2/posts"]), &li))
	assert.Equal(t, "urn:li:organization:1234", li["author"])
	assert.Equal(t, "PUBLISHED", li["lifecycleState"])
}

func TestDispatcherIsolatesPlatformFailure(t *testing.T) {
	ps := newPlatformServer(t)
	ps.tweetFn = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Forbidden"}`))
	}
	d := NewDispatcherFromConfig(ps.config(), fastRetry())

	results := d.Publish(context.Background(), campaign, snapshot, []string{"facebook", "twitter"})
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "twitter", results[1].Platform)
	assert.Contains(t, results[1].Error, "HTTP 403")
}

func TestDispatcherRetriesRateLimitedPost(t *testing.T) {
	ps := newPlatformServer(t)
	var calls atomic.Int32
	ps.tweetFn = func(w http.ResponseWriter) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":{"id":"1791"}}`))
	}
	d := NewDispatcherFromConfig(ps.config(), fastRetry())

	results := d.Publish(context.Background(), campaign, snapshot, []string{"twitter"})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, "1791", results[0].PostID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherDoesNotRepostAfterServerError(t *testing.T) {
	ps := newPlatformServer(t)
	var calls atomic.Int32
	ps.tweetFn = func(w http.ResponseWriter) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	d := NewDispatcherFromConfig(ps.config(), fastRetry())

	results := d.Publish(context.Background(), campaign, snapshot, []string{"twitter"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "HTTP 503")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcherReportsUnconfiguredPlatform(t *testing.T) {
	d := NewDispatcher(map[string]Client{}, nil)

	results := d.Publish(context.Background(), campaign, snapshot, []string{"tiktok"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, ErrNotConfigured.Error(), results[0].Error)
}

func TestDispatcherSkipsPlatformsWithoutToken(t *testing.T) {
	ps := newPlatformServer(t)
	cfg := ps.config()
	tw := cfg.Platforms["twitter"]
	tw.AccessToken = ""
	cfg.Platforms["twitter"] = tw

	d := NewDispatcherFromConfig(cfg, fastRetry())
	assert.NotContains(t, d.Platforms(), "twitter")
}

func TestInstagramRequiresImage(t *testing.T) {
	ps := newPlatformServer(t)
	cfg := ps.config()
	ig := cfg.Platforms["instagram"]
	ig.ImageURL = ""
	cfg.Platforms["instagram"] = ig

	d := NewDispatcherFromConfig(cfg, fastRetry())
	results := d.Publish(context.Background(), campaign, snapshot, []string{"instagram"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "image_url")
}

// =============================================================================
// CONTENT
// =============================================================================

func TestRendererDefaultCopy(t *testing.T) {
	r := NewRenderer(nil)

	out, err := r.Render("facebook", campaign, snapshot)
	require.NoError(t, err)
	assert.Equal(t, "Summer Fest is performing great with a 4.5% click-through rate! Check it out: https://events.example.com/summer", out)
}

func TestRendererOverrideAndClip(t *testing.T) {
	r := NewRenderer(map[string]string{
		"twitter": `{{ name }} {{ clicks }} clicks on {{ platform }} ` + strings.Repeat("x", 400),
	})

	out, err := r.Render("twitter", campaign, snapshot)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Summer Fest 900 clicks on twitter "))
	assert.Len(t, []rune(out), 280)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestRendererRejectsBrokenTemplate(t *testing.T) {
	r := NewRenderer(map[string]string{"linkedin": "{% if name %}unclosed"})

	_, err := r.Render("linkedin", campaign, snapshot)
	assert.Error(t, err)
}
