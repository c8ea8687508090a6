// Package youtube adapts the youtube-dl service and the public channel page.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/infrastructure/httpjson"
	"PersonaPipeline/internal/ports"
)

// Client lists channels and downloads audio through the youtube-dl service,
// falling back to page scraping for listings when the service fails.
type Client struct {
	service  *httpjson.Client
	audio    *httpjson.Client
	fallback ports.ChannelLister
	audioDir string
	logger   *slog.Logger
}

var (
	_ ports.ChannelLister = (*Client)(nil)
	_ ports.AudioFetcher  = (*Client)(nil)
)

// Config configures the client.
type Config struct {
	ServiceURL    string
	AudioDir      string
	ListTimeout   time.Duration
	AudioTimeout  time.Duration
	DisableScrape bool
}

// NewClient builds the adapter. Audio files land in cfg.AudioDir, or the OS
// temp dir when empty.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		service:  httpjson.NewClient(cfg.ServiceURL, "", cfg.ListTimeout),
		audio:    httpjson.NewClient(cfg.ServiceURL, "", cfg.AudioTimeout),
		audioDir: cfg.AudioDir,
		logger:   logger,
	}
	if !cfg.DisableScrape {
		c.fallback = NewPageScraper(&http.Client{Timeout: cfg.ListTimeout})
	}
	return c
}

type channelVideo struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Duration *float64       `json:"duration"`
	Metadata map[string]any `json:"metadata"`
}

// ListChannel returns the channel's current videos, newest first.
func (c *Client) ListChannel(ctx context.Context, sourceURL string, maxItems int) ([]domain.Discovered, error) {
	var resp struct {
		Videos []channelVideo `json:"videos"`
	}
	err := c.service.PostJSON(ctx, "/channel", map[string]any{
		"url":        sourceURL,
		"max_videos": maxItems,
	}, &resp)
	if err == nil {
		return toDiscovered(resp.Videos, maxItems), nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("list channel %s: %w", sourceURL, err)
	}

	c.logger.Warn("youtube-dl listing failed, scraping channel page", "url", sourceURL, "error", err)
	videos, scrapeErr := c.fallback.ListChannel(ctx, sourceURL, maxItems)
	if scrapeErr != nil {
		return nil, fmt.Errorf("list channel %s: %w", sourceURL, errors.Join(err, scrapeErr))
	}
	return videos, nil
}

func toDiscovered(videos []channelVideo, maxItems int) []domain.Discovered {
	out := make([]domain.Discovered, 0, len(videos))
	for _, v := range videos {
		if strings.TrimSpace(v.URL) == "" {
			continue
		}
		d := domain.Discovered{
			URL:         v.URL,
			Title:       v.Title,
			Metadata:    v.Metadata,
			ContentType: domain.ContentYouTubeVideo,
		}
		if v.Duration != nil {
			secs := int(*v.Duration)
			d.DurationSecs = &secs
		}
		out = append(out, d)
		if maxItems > 0 && len(out) == maxItems {
			break
		}
	}
	return out
}

// FetchAudio downloads the audio track into a new temp file and returns its
// path. The caller owns the file. An empty path means the service had no
// audio for the video.
func (c *Client) FetchAudio(ctx context.Context, videoURL string) (string, error) {
	resp, err := c.audio.Post(ctx, "/audio", map[string]string{"url": videoURL})
	if errors.Is(err, httpjson.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("download audio %s: %w", videoURL, err)
	}
	defer resp.Body.Close()

	file, err := os.CreateTemp(c.audioDir, "persona-audio-*.audio")
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	path := file.Name()

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write audio %s: %w", videoURL, err)
	}
	if written == 0 {
		_ = os.Remove(path)
		return "", nil
	}

	c.logger.Debug("audio downloaded", "url", videoURL, "bytes", written)
	return path, nil
}
