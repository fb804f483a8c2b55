package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/eventnexus/autopilot/internal/pkg/httpretry"
)

// ErrNotConfigured is reported for platforms without a client.
var ErrNotConfigured = errors.New("social: platform not configured")

// Client posts content to one platform and returns the platform's post ID.
type Client interface {
	Post(ctx context.Context, content string) (string, error)
}

// APIError is a non-2xx response from a platform API.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Platform, e.StatusCode, e.Body)
}

// apiClient holds what every platform client needs: a base URL and an
// authenticated, retrying HTTP doer.
type apiClient struct {
	platform string
	baseURL  string
	http     httpretry.HTTPDoer
}

// newAPIClient builds a bearer-authenticated client. The oauth2 transport
// adds the Authorization header; the retry wrapper sits on top.
func newAPIClient(platform, baseURL, token string, timeout time.Duration, maxRetries int, opts ...httpretry.Option) apiClient {
	authed := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	if timeout > 0 {
		authed.Timeout = timeout
	}
	return apiClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpretry.NewRetryClient(authed, maxRetries, opts...),
	}
}

func (c apiClient) postJSON(ctx context.Context, path string, body any, out any) (http.Header, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.platform, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.platform, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c apiClient) postForm(ctx context.Context, path string, form url.Values, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.platform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c apiClient) do(req *http.Request, out any) (http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.platform, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, &APIError{Platform: c.platform, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.Header, fmt.Errorf("%s: decode response: %w", c.platform, err)
		}
	}
	return resp.Header, nil
}

// idResponse is the {"id": "..."} shape returned by the Graph API.
type idResponse struct {
	ID string `json:"id"`
}
