package social

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Default API roots per platform.
const (
	DefaultGraphURL    = "https://graph.facebook.com/v19.0"
	DefaultTwitterURL  = "https://api.twitter.com"
	DefaultLinkedInURL = "https://api.linkedin.com"
)

// FacebookClient posts to a Page feed.
type FacebookClient struct {
	api    apiClient
	pageID string
}

func (c *FacebookClient) Post(ctx context.Context, content string) (string, error) {
	var out idResponse
	form := url.Values{"message": {content}}
	if _, err := c.api.postForm(ctx, "/"+c.pageID+"/feed", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// InstagramClient publishes an image post in two steps: create a media
// container, then publish it.
type InstagramClient struct {
	api      apiClient
	userID   string
	imageURL string
}

func (c *InstagramClient) Post(ctx context.Context, content string) (string, error) {
	if c.imageURL == "" {
		return "", errors.New("instagram: an image_url is required")
	}
	var container idResponse
	form := url.Values{"image_url": {c.imageURL}, "caption": {content}}
	if _, err := c.api.postForm(ctx, "/"+c.userID+"/media", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", errors.New("instagram: empty media container id")
	}

	var published idResponse
	form = url.Values{"creation_id": {container.ID}}
	if _, err := c.api.postForm(ctx, "/"+c.userID+"/media_publish", form, &published); err != nil {
		return "", err
	}
	return published.ID, nil
}

// TwitterClient posts through the v2 tweets endpoint.
type TwitterClient struct {
	api apiClient
}

func (c *TwitterClient) Post(ctx context.Context, content string) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if _, err := c.api.postJSON(ctx, "/2/tweets", map[string]string{"text": content}, &out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

// LinkedInClient posts as an organization through the posts API. The new
// post's URN comes back in the x-restli-id header.
type LinkedInClient struct {
	api   apiClient
	orgID string
}

func (c *LinkedInClient) Post(ctx context.Context, content string) (string, error) {
	body := map[string]any{
		"author":     fmt.Sprintf("urn:li:organization:%s", c.orgID),
		"commentary": content,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []string{},
			"thirdPartyDistributionChannels": []string{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}
	header, err := c.api.postJSON(ctx, "/v2/posts", body, nil)
	if err != nil {
		return "", err
	}
	return header.Get("x-restli-id"), nil
}
