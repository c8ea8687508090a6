// Package twitter adapts the Apify-backed profile scraper.
package twitter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/infrastructure/httpjson"
	"PersonaPipeline/internal/ports"
)

// Client lists the recent posts of a profile.
type Client struct {
	http *httpjson.Client
}

var _ ports.ProfileLister = (*Client)(nil)

// NewClient creates a client for the scraper service at endpoint.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{http: httpjson.NewClient(endpoint, apiKey, timeout)}
}

type tweet struct {
	URL      string         `json:"url"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// ListProfile returns the profile's posts as the service orders them.
// Posts without a URL are dropped; empty text is kept for the caller to judge.
func (c *Client) ListProfile(ctx context.Context, profileURL string) ([]domain.Discovered, error) {
	var resp struct {
		Tweets []tweet `json:"tweets"`
	}
	if err := c.http.PostJSON(ctx, "/api/twitter/profile", map[string]string{"url": profileURL}, &resp); err != nil {
		return nil, fmt.Errorf("list profile %s: %w", profileURL, err)
	}

	out := make([]domain.Discovered, 0, len(resp.Tweets))
	for _, t := range resp.Tweets {
		if strings.TrimSpace(t.URL) == "" {
			continue
		}
		out = append(out, domain.Discovered{
			URL:         t.URL,
			Text:        t.Text,
			Metadata:    t.Metadata,
			ContentType: domain.ContentTweet,
		})
	}
	return out, nil
}
